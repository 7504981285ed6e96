package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Backend names a supported SQL engine. The values double as database/sql
// driver names.
type Backend string

const (
	Postgres Backend = "postgres"
	SQLite   Backend = "sqlite"
)

func (b Backend) Valid() bool {
	return b == Postgres || b == SQLite
}

var placeholder = regexp.MustCompile(`\$(\d+)`)

// Rebind rewrites the $n placeholders used across the repositories into the
// numbered ?n form for SQLite. Postgres queries are returned unchanged.
func (b Backend) Rebind(query string) string {
	if b != SQLite {
		return query
	}
	return placeholder.ReplaceAllString(query, "?$1")
}

// DB is a connection pool that knows which backend it talks to.
type DB struct {
	*sql.DB
	Backend Backend
}

func (db *DB) Rebind(query string) string {
	return db.Backend.Rebind(query)
}

// Open connects to the backend and applies any pending migration. For SQLite
// dsn is a file path; its directory is created when missing.
func Open(ctx context.Context, backend Backend, dsn string) (*DB, error) {
	switch backend {
	case Postgres:
	case SQLite:
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
		dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	default:
		return nil, fmt.Errorf("unsupported backend %q", backend)
	}

	db, err := sql.Open(string(backend), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", backend, err)
	}
	if backend == SQLite {
		// single writer
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := Migrate(backend, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &DB{DB: db, Backend: backend}, nil
}
