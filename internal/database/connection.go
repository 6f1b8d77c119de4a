package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/microsoft/go-mssqldb"

	"sql-question-agent/internal/config"
)

// DB is the read-only connection the SQL tools run against.
type DB struct {
	*sqlx.DB
	Dialect string
}

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultPoolConfig suits one agent run per request: a handful of short queries.
func DefaultPoolConfig(maxOpen int) PoolConfig {
	if maxOpen <= 0 {
		maxOpen = 5
	}
	return PoolConfig{
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxOpen,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

func driverName(dialect string) (string, error) {
	switch dialect {
	case config.DialectMSSQL:
		return "sqlserver", nil
	case config.DialectPostgres:
		return "postgres", nil
	case config.DialectSQLite:
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("database: unsupported dialect %q", dialect)
	}
}

// Open connects and pings the database.
func Open(ctx context.Context, dialect, dsn string, pool PoolConfig) (*DB, error) {
	driver, err := driverName(dialect)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("database: connect %s: %w", dialect, err)
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	return &DB{DB: db, Dialect: dialect}, nil
}

func (d *DB) HealthCheck(ctx context.Context) error {
	var result int
	if err := d.DB.GetContext(ctx, &result, "SELECT 1"); err != nil {
		return fmt.Errorf("database: health check: %w", err)
	}
	return nil
}

func (d *DB) Close() error {
	return d.DB.Close()
}
