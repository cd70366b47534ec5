// Package sqlite opens local, single-file SQL databases.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // register "sqlite" database driver from package init() function
)

// DriverName is the name of the registered database driver.
const DriverName = "sqlite"

var pragmas = []string{
	"PRAGMA busy_timeout = 5000;",
	"PRAGMA journal_mode = WAL;",
	"PRAGMA foreign_keys = ON;",
}

// Open opens the database file at the path, creating its directory if needed.
// Only one connection is used, so writes never wait on each other inside the process.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	path = strings.TrimSpace(path)
	if len(path) == 0 {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating sqlite database directory: %w", err)
			}
		}
	}
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("running %q: %w", p, err)
		}
	}
	return db, nil
}
