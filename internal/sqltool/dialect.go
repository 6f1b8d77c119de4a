package sqltool

import (
	"fmt"
	"strings"

	"sql-question-agent/internal/config"
)

// dialect holds the introspection queries and quoting rules of one database
// flavour.
type dialect interface {
	// promptName is the dialect name given to the model.
	promptName() string
	listTables(schema string) (string, []any)
	listColumns(schema, table string) (string, []any)
	sampleRows(qualified string, n int) string
	qualify(schema, table string) string
}

func dialectFor(name string) (dialect, error) {
	switch name {
	case config.DialectMSSQL:
		return mssql{}, nil
	case config.DialectPostgres:
		return postgres{}, nil
	case config.DialectSQLite:
		return sqlite{}, nil
	default:
		return nil, fmt.Errorf("sqltool: unsupported dialect %q", name)
	}
}

// PromptDialect returns the dialect name used in the agent's system prompt.
func PromptDialect(name string) string {
	d, err := dialectFor(name)
	if err != nil {
		return name
	}
	return d.promptName()
}

type mssql struct{}

func (mssql) promptName() string { return "mssql" }

// INFORMATION_SCHEMA.TABLES lists views as well as base tables.
func (mssql) listTables(schema string) (string, []any) {
	return "SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = @p1 ORDER BY TABLE_NAME", []any{schema}
}

func (mssql) listColumns(schema, table string) (string, []any) {
	return "SELECT COLUMN_NAME AS col_name, DATA_TYPE AS col_type FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2 ORDER BY ORDINAL_POSITION",
		[]any{schema, table}
}

func (mssql) sampleRows(qualified string, n int) string {
	return fmt.Sprintf("SELECT TOP %d * FROM %s", n, qualified)
}

func (mssql) qualify(schema, table string) string {
	if schema == "" {
		return "[" + table + "]"
	}
	return "[" + schema + "].[" + table + "]"
}

type postgres struct{}

func (postgres) promptName() string { return "postgresql" }

func (postgres) listTables(schema string) (string, []any) {
	return "SELECT table_name FROM information_schema.tables WHERE table_schema = $1 ORDER BY table_name", []any{schemaOr(schema, "public")}
}

func (postgres) listColumns(schema, table string) (string, []any) {
	return "SELECT column_name AS col_name, data_type AS col_type FROM information_schema.columns WHERE table_schema = $1 AND table_name = $2 ORDER BY ordinal_position",
		[]any{schemaOr(schema, "public"), table}
}

func (postgres) sampleRows(qualified string, n int) string {
	return fmt.Sprintf("SELECT * FROM %s LIMIT %d", qualified, n)
}

func (postgres) qualify(schema, table string) string {
	return quoteDouble(schemaOr(schema, "public")) + "." + quoteDouble(table)
}

// sqlite has no schemas; the configured schema is ignored.
type sqlite struct{}

func (sqlite) promptName() string { return "sqlite" }

func (sqlite) listTables(string) (string, []any) {
	return "SELECT name FROM sqlite_master WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%' ORDER BY name", nil
}

func (sqlite) listColumns(_, table string) (string, []any) {
	return "SELECT name AS col_name, type AS col_type FROM pragma_table_info(?) ORDER BY cid", []any{table}
}

func (sqlite) sampleRows(qualified string, n int) string {
	return fmt.Sprintf("SELECT * FROM %s LIMIT %d", qualified, n)
}

func (sqlite) qualify(_, table string) string {
	return quoteDouble(table)
}

func schemaOr(schema, def string) string {
	if schema == "" {
		return def
	}
	return schema
}

func quoteDouble(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
