package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/smallbiznis/relevamientos/pkg/db"
)

//go:embed migrations
var embeddedMigrations embed.FS

// RunMigrations creates the surveys table on startup so a fresh
// database file is usable without a manual setup step.
func RunMigrations(conn *sql.DB, dbType string) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}

	dir, err := migrationsDir(dbType)
	if err != nil {
		return err
	}

	sub, err := fs.Sub(embeddedMigrations, dir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, driverName, err := newDriver(conn, dbType)
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, driverName, driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

func migrationsDir(dbType string) (string, error) {
	switch dbType {
	case db.TypeSQLite, db.TypeSQLite3:
		return "migrations/sqlite", nil
	case db.TypePostgres:
		return "migrations/postgres", nil
	case db.TypeMySQL:
		return "migrations/mysql", nil
	default:
		return "", fmt.Errorf("no migrations for database type %q", dbType)
	}
}

func newDriver(conn *sql.DB, dbType string) (database.Driver, string, error) {
	switch dbType {
	case db.TypeSQLite, db.TypeSQLite3:
		driver, err := sqlite3.WithInstance(conn, &sqlite3.Config{})
		return driver, "sqlite3", err
	case db.TypePostgres:
		driver, err := postgres.WithInstance(conn, &postgres.Config{})
		return driver, "postgres", err
	case db.TypeMySQL:
		driver, err := mysql.WithInstance(conn, &mysql.Config{})
		return driver, "mysql", err
	default:
		return nil, "", fmt.Errorf("unsupported database type %q", dbType)
	}
}
