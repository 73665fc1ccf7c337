package shared

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// InMemoryDB is the sqlite path for a throwaway in-memory database.
const InMemoryDB = ":memory:"

// NewDatabase opens a connection to a SQLite database at the specified path.
// The path can be ":memory:" for an in-memory database.
//
// Foreign keys are enforced and writers wait on a busy database instead of failing.
// Transactions take the write lock when they begin, so two writers on separate
// connections queue on the busy timeout rather than deadlocking on lock upgrade.
// File databases use WAL so readers do not block the writer. An in-memory database
// is pinned to one connection, since each new connection would otherwise open an
// empty database.
func NewDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == InMemoryDB {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	params := "_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
	if path != InMemoryDB {
		params += "&_journal_mode=WAL"
	}
	return path + sep + params
}

// ConfigureDatabase sets connection pool settings for the database.
//
// Values <= 0 are ignored.
func ConfigureDatabase(db *sql.DB, maxOpenConns, maxIdleConns int) {
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}
}
