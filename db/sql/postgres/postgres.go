// Package postgres opens PostgreSQL databases.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// DriverName is the name of the registered database driver.
const DriverName = "postgres"

// Open connects to the database at the url and checks that it can be reached.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	connector, err := pq.NewConnector(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres database url: %w", err)
	}
	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return db, nil
}
