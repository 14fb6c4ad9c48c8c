package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

//go:embed schema/*.sql
var schemaFS embed.FS

func Connect(driverName, dsn string) (*sqlx.DB, error) {
	if driverName != DriverPostgres && driverName != DriverSQLite {
		return nil, fmt.Errorf("unsupported db driver %q", driverName)
	}
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	if driverName == DriverSQLite {
		// sqlite serializes writers, and every :memory: connection is its own database
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}
	return db, nil
}

// Migrate applies the embedded schema for the connection's driver.
// The schema is idempotent so it is safe to run on every start.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	ddl, err := schemaFS.ReadFile("schema/" + db.DriverName() + ".sql")
	if err != nil {
		return fmt.Errorf("no schema for driver %q: %w", db.DriverName(), err)
	}
	if _, err := db.ExecContext(ctx, string(ddl)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// dbTime normalizes timestamps before they are written: UTC keeps sqlite's
// text comparison ordered, microseconds match what postgres keeps.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
