// Package sql implements a db.Gateway for SQL databases.
package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/jacobpatterson1549/selene-ludo/db"
)

type (
	// Database is a SQL database with additional configuration.
	Database struct {
		DB *sql.DB
		db.Config
	}

	// Scanner reads the columns of a row.
	Scanner interface {
		Scan(dest ...interface{}) error
	}
)

var (
	// ErrNoRows is returned by the Scanner when there are no rows to scan.
	ErrNoRows = sql.ErrNoRows
	// errRowsAffected is returned when an Update does not change exactly one row.
	errRowsAffected = errors.New("wanted to change exactly one row")
)

// Setup initializes the database by reading the files and executing their contents as raw queries.
func (db Database) Setup(ctx context.Context, files []io.Reader) error {
	queries := make([]Query, len(files))
	for i, f := range files {
		b, err := io.ReadAll(f)
		if err != nil {
			return fmt.Errorf("reading sql setup query %v: %w", i, err)
		}
		queries[i] = RawQuery(b)
	}
	if err := db.Exec(ctx, queries...); err != nil {
		return fmt.Errorf("running setup queries %w", err)
	}
	return nil
}

// Query queries a single row, scanning into the destination array.
func (db Database) Query(ctx context.Context, q Query, dest ...interface{}) error {
	ctx, cancelFunc := context.WithTimeout(ctx, db.QueryPeriod)
	defer cancelFunc()
	row := db.DB.QueryRowContext(ctx, q.Cmd(), q.Args()...)
	if err := row.Scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("querying into destination arguments: %w", err)
	}
	return nil
}

// QueryRows queries many rows, calling the scan function for each.
func (db Database) QueryRows(ctx context.Context, q Query, scan func(s Scanner) error) error {
	ctx, cancelFunc := context.WithTimeout(ctx, db.QueryPeriod)
	defer cancelFunc()
	rows, err := db.DB.QueryContext(ctx, q.Cmd(), q.Args()...)
	if err != nil {
		return fmt.Errorf("querying rows: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("scanning row: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading rows: %w", err)
	}
	return nil
}

// Exec evaluates multiple queries in a transaction, ensuring each Update changes exactly one row.
func (db Database) Exec(ctx context.Context, queries ...Query) error {
	ctx, cancelFunc := context.WithTimeout(ctx, db.QueryPeriod)
	defer cancelFunc()
	tx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	for i, q := range queries {
		result, err := tx.ExecContext(ctx, q.Cmd(), q.Args()...)
		if u, ok := q.(Update); err == nil && ok {
			var n int64
			n, err = result.RowsAffected()
			if err == nil && n != 1 {
				err = fmt.Errorf("%w, but changed %d when calling %s", errRowsAffected, n, u.name)
			}
		}
		if err != nil {
			err = fmt.Errorf("executing query %v: %w", i, err)
			err2 := tx.Rollback()
			if err2 != nil {
				return fmt.Errorf("rolling back transaction due to %v: %w", err, err2)
			}
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
