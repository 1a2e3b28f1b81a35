package database

import (
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"snapletter/internal/infra/config"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Migration commands understood by Migrate.
const (
	MigrateUp     = "up"
	MigrateDown   = "down"
	MigrateStatus = "status"
)

// goose keeps its dialect, base FS and logger in package globals.
var gooseMu sync.Mutex

// Migrate runs a goose command against db using the embedded migrations for driver.
func Migrate(db *sql.DB, driver, command string, log goose.Logger) error {
	var dialect, dir string
	switch driver {
	case config.DriverPostgres:
		dialect, dir = "postgres", "migrations/postgres"
	case config.DriverSQLite:
		dialect, dir = "sqlite3", "migrations/sqlite"
	default:
		return fmt.Errorf("unsupported database driver %q", driver)
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)
	if log != nil {
		goose.SetLogger(log)
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	var err error
	switch command {
	case MigrateUp:
		err = goose.Up(db, dir)
	case MigrateDown:
		err = goose.Down(db, dir)
	case MigrateStatus:
		err = goose.Status(db, dir)
	default:
		return fmt.Errorf("unknown migration command %q", command)
	}
	if err != nil {
		return fmt.Errorf("migration %s failed: %w", command, err)
	}
	return nil
}
