// Package sqltool exposes a read-only SQL database to the agent as a set of
// tools: listing tables, describing them, checking a query and running it.
package sqltool

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"sql-question-agent/internal/agent"
	"sql-question-agent/internal/database"
)

const (
	defaultSampleRows = 3
	defaultMaxRows    = 100
	sampleValueLimit  = 100
)

// tables that exist for bookkeeping and are never shown to the model
var hiddenTables = map[string]bool{
	"goose_db_version": true,
}

type Options struct {
	Schema        string
	IncludeTables []string
	SampleRows    int
	MaxRows       int
}

// Toolkit answers the agent's database questions. It is safe for concurrent
// use once constructed.
type Toolkit struct {
	db      *database.DB
	dialect dialect
	checker agent.LLM

	schema     string
	include    []string
	sampleRows int
	maxRows    int
}

type column struct {
	Name string `db:"col_name"`
	Type string `db:"col_type"`
}

func New(db *database.DB, checker agent.LLM, opts Options) (*Toolkit, error) {
	if db == nil {
		return nil, errors.New("sqltool: db must not be nil")
	}
	if checker == nil {
		return nil, errors.New("sqltool: checker must not be nil")
	}
	d, err := dialectFor(db.Dialect)
	if err != nil {
		return nil, err
	}
	if opts.SampleRows < 0 {
		opts.SampleRows = 0
	} else if opts.SampleRows == 0 {
		opts.SampleRows = defaultSampleRows
	}
	if opts.MaxRows <= 0 {
		opts.MaxRows = defaultMaxRows
	}

	include := make([]string, 0, len(opts.IncludeTables))
	for _, t := range opts.IncludeTables {
		if t = strings.TrimSpace(t); t != "" {
			include = append(include, t)
		}
	}

	return &Toolkit{
		db:         db,
		dialect:    d,
		checker:    checker,
		schema:     strings.TrimSpace(opts.Schema),
		include:    include,
		sampleRows: opts.SampleRows,
		maxRows:    opts.MaxRows,
	}, nil
}

// Dialect returns the name the model should use when writing SQL.
func (k *Toolkit) Dialect() string { return k.dialect.promptName() }

func (k *Toolkit) Schema() string { return k.schema }

// Tools returns the agent tools bound to model, which the query checker uses.
func (k *Toolkit) Tools(model string) []agent.Tool {
	return []agent.Tool{
		&queryTool{kit: k},
		&infoTool{kit: k},
		&listTablesTool{kit: k},
		&checkerTool{kit: k, model: model},
	}
}

// ListTables returns the usable tables in name order. When an include list
// is configured only those tables that exist are returned.
func (k *Toolkit) ListTables(ctx context.Context) ([]string, error) {
	q, args := k.dialect.listTables(k.schema)
	var names []string
	if err := k.db.SelectContext(ctx, &names, q, args...); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	out := names[:0]
	for _, n := range names {
		if hiddenTables[n] {
			continue
		}
		if len(k.include) > 0 && !slices.Contains(k.include, n) {
			continue
		}
		out = append(out, n)
	}
	slices.Sort(out)
	return out, nil
}

// TableInfo describes each named table as a CREATE TABLE statement followed
// by a few sample rows.
func (k *Toolkit) TableInfo(ctx context.Context, names []string) (string, error) {
	usable, err := k.ListTables(ctx)
	if err != nil {
		return "", err
	}

	var missing []string
	for _, n := range names {
		if !slices.Contains(usable, n) {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("table_names %v not found in database", missing)
	}

	blocks := make([]string, 0, len(names))
	for _, n := range names {
		block, err := k.describe(ctx, n)
		if err != nil {
			return "", err
		}
		blocks = append(blocks, block)
	}
	return strings.Join(blocks, "\n\n"), nil
}

func (k *Toolkit) describe(ctx context.Context, table string) (string, error) {
	q, args := k.dialect.listColumns(k.schema, table)
	var cols []column
	if err := k.db.SelectContext(ctx, &cols, q, args...); err != nil {
		return "", fmt.Errorf("describe %s: %w", table, err)
	}

	qualified := k.dialect.qualify(k.schema, table)
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", qualified)
	for i, c := range cols {
		fmt.Fprintf(&b, "\t%s %s", c.Name, strings.ToUpper(c.Type))
		if i < len(cols)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString(")")

	if k.sampleRows == 0 {
		return b.String(), nil
	}

	sample, err := k.sample(ctx, qualified)
	if err != nil {
		return "", fmt.Errorf("sample %s: %w", table, err)
	}
	fmt.Fprintf(&b, "\n\n/*\n%d rows from %s table:\n%s*/", k.sampleRows, table, sample)
	return b.String(), nil
}

func (k *Toolkit) sample(ctx context.Context, qualified string) (string, error) {
	rows, err := k.db.QueryContext(ctx, k.dialect.sampleRows(qualified, k.sampleRows))
	if err != nil {
		return "", err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(strings.Join(cols, "\t"))
	b.WriteByte('\n')
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return "", err
		}
		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = plainValue(v)
		}
		b.WriteString(strings.Join(cells, "\t"))
		b.WriteByte('\n')
	}
	return b.String(), rows.Err()
}

// Run executes a read-only query and renders the rows as a literal list of
// tuples.
func (k *Toolkit) Run(ctx context.Context, query string) (string, error) {
	q, err := readOnlyQuery(query)
	if err != nil {
		return "", err
	}
	rows, err := k.db.QueryContext(ctx, q)
	if err != nil {
		return "", err
	}
	defer rows.Close()
	return formatRows(rows, k.maxRows)
}

func plainValue(v any) string {
	var s string
	switch x := v.(type) {
	case nil:
		s = "None"
	case []byte:
		s = string(x)
	case string:
		s = x
	case time.Time:
		s = strings.Trim(formatValue(x), "'")
	default:
		s = formatValue(x)
	}
	if len(s) > sampleValueLimit {
		s = s[:sampleValueLimit]
	}
	return s
}
