package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Custom errors shared by the preference repositories.
var ErrPreferencesNotFound = errors.New("subscriber preferences not found")
var ErrConstraintViolation = errors.New("subscriber preferences violate a table constraint")
var ErrDispatchSuperseded = errors.New("preferences changed since the occurrence was dispatched")

// PostgreSQL error codes
const (
	checkViolationCode   = "23514"
	notNullViolationCode = "23502"
)

// mapPostgresError turns driver errors into the package's sentinel errors.
func mapPostgresError(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrPreferencesNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case checkViolationCode, notNullViolationCode:
			return fmt.Errorf("%w (%s): %v", ErrConstraintViolation, pqErr.Constraint, err)
		}
	}
	return fmt.Errorf("error %s: %w", op, err)
}

// mapSQLiteError does the same for the SQLite driver, using its extended
// result codes.
func mapSQLiteError(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrPreferencesNotFound
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_CHECK, sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return fmt.Errorf("%w: %v", ErrConstraintViolation, err)
		}
	}
	return fmt.Errorf("error %s: %w", op, err)
}
