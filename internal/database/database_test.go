package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"sql-question-agent/internal/config"
)

func openMemory(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), config.DialectSQLite, ":memory:", DefaultPoolConfig(1))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen_UnsupportedDialect(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "dsn", DefaultPoolConfig(1))
	require.ErrorContains(t, err, "unsupported dialect")
}

func TestDriverName(t *testing.T) {
	for dialect, want := range map[string]string{
		config.DialectMSSQL:    "sqlserver",
		config.DialectPostgres: "postgres",
		config.DialectSQLite:   "sqlite3",
	} {
		got, err := driverName(dialect)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestDefaultPoolConfig(t *testing.T) {
	require.Equal(t, 5, DefaultPoolConfig(0).MaxOpenConns)
	require.Equal(t, 2, DefaultPoolConfig(2).MaxIdleConns)
}

func TestHealthCheck(t *testing.T) {
	db := openMemory(t)
	require.NoError(t, db.HealthCheck(context.Background()))

	require.NoError(t, db.Close())
	require.Error(t, db.HealthCheck(context.Background()))
}

func TestMigrate_SeedsDemoTables(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()
	require.NoError(t, Migrate(ctx, db))

	var total int
	require.NoError(t, db.GetContext(ctx, &total, "SELECT COUNT(*) FROM vw_Maximo_WorkOrders"))
	require.Equal(t, 58, total)

	var june int
	require.NoError(t, db.GetContext(ctx, &june,
		"SELECT COUNT(*) FROM vw_Maximo_WorkOrders WHERE statusdate >= '2023-06-01' AND statusdate < '2023-07-01'"))
	require.Equal(t, 6, june)

	// Running again is a no-op.
	require.NoError(t, Migrate(ctx, db))
}

func TestMigrate_RejectsMSSQL(t *testing.T) {
	err := Migrate(context.Background(), &DB{Dialect: config.DialectMSSQL})
	require.ErrorContains(t, err, "do not support")
}
