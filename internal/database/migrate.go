package database

import (
	"context"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"

	"sql-question-agent/internal/config"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate creates and seeds the demo work-order tables. It targets local
// SQLite or Postgres databases; production MSSQL views are never migrated.
func Migrate(ctx context.Context, db *DB) error {
	var dialect string
	switch db.Dialect {
	case config.DialectSQLite:
		dialect = "sqlite3"
	case config.DialectPostgres:
		dialect = "postgres"
	default:
		return fmt.Errorf("database: demo migrations do not support %q", db.Dialect)
	}

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("database: set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db.DB.DB, "migrations"); err != nil {
		return fmt.Errorf("database: migrate: %w", err)
	}
	return nil
}
