package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrate brings the schema of the backend up to date.
func Migrate(backend Backend, dsn string) error {
	// The migrate drivers close the handle they are given, so they get their own.
	migrateDB, err := sql.Open(string(backend), dsn)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	var driver migratedb.Driver
	switch backend {
	case Postgres:
		driver, err = postgres.WithInstance(migrateDB, &postgres.Config{})
	case SQLite:
		driver, err = sqlite.WithInstance(migrateDB, &sqlite.Config{})
	default:
		return fmt.Errorf("unsupported backend %q", backend)
	}
	if err != nil {
		return fmt.Errorf("create %s driver: %w", backend, err)
	}

	d, err := iofs.New(migrationsFS, "migrations/"+string(backend))
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, string(backend), driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}
