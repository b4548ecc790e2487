// Package platform wires the pod's single-file sqlite database, including a
// golang-migrate driver over it.
package platform

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

// OpenSQLite opens the single-file database at path (the caller must ensure
// its parent directory exists) and configures it for a single-process
// server: WAL journaling for concurrent readers alongside the one writer,
// and foreign key enforcement, which sqlite otherwise leaves off by default.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", path, err)
	}

	// A single shared connection avoids "database is locked" errors under
	// modernc.org/sqlite, which (unlike mattn/go-sqlite3) does not itself
	// serialize writers across connections from the same pool.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", p, err)
		}
	}

	return db, nil
}
