package sqltool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"sql-question-agent/internal/domain"
)

const (
	ToolQuery      = "sql_db_query"
	ToolSchema     = "sql_db_schema"
	ToolListTables = "sql_db_list_tables"
	ToolChecker    = "sql_db_query_checker"
)

const queryCheckerPrompt = `%s
Double check the %s query above for common mistakes, including:
- Using NOT IN with NULL values
- Using UNION when UNION ALL should have been used
- Using BETWEEN for exclusive ranges
- Data type mismatch in predicates
- Properly quoting identifiers
- Using the correct number of arguments for functions
- Casting to the correct data type
- Using the proper columns for joins

If there are any of the above mistakes, rewrite the query. If there are no mistakes, just reproduce the original query.

Output the final SQL query only.

SQL Query: `

func stringParam(name, description string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			name: map[string]any{"type": "string", "description": description},
		},
		"required": []string{name},
	}
}

// decodeArg pulls one string argument out of the model's JSON arguments.
// Models occasionally send the bare value instead of an object.
func decodeArg(args, name string) (string, error) {
	args = strings.TrimSpace(args)
	if args == "" {
		return "", nil
	}
	if !strings.HasPrefix(args, "{") {
		return args, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(args), &m); err != nil {
		return "", fmt.Errorf("invalid tool arguments: %w", err)
	}
	v, ok := m[name]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", name)
	}
	return s, nil
}

type queryTool struct{ kit *Toolkit }

func (t *queryTool) Spec() domain.ToolSpec {
	return domain.ToolSpec{
		Name: ToolQuery,
		Description: "Input to this tool is a detailed and correct SQL query, output is a result from the database. " +
			"If the query is not correct, an error message will be returned. If an error is returned, rewrite the query, check the query, and try again. " +
			"If you encounter an issue with Unknown column 'xxxx' in 'field list', use " + ToolSchema + " to query the correct table fields.",
		Parameters: stringParam("query", "A detailed and correct SQL query."),
	}
}

func (t *queryTool) Call(ctx context.Context, args string) (string, error) {
	q, err := decodeArg(args, "query")
	if err != nil {
		return "", err
	}
	return t.kit.Run(ctx, q)
}

type infoTool struct{ kit *Toolkit }

func (t *infoTool) Spec() domain.ToolSpec {
	return domain.ToolSpec{
		Name: ToolSchema,
		Description: "Input to this tool is a comma-separated list of tables, output is the schema and sample rows for those tables. " +
			"Be sure that the tables actually exist by calling " + ToolListTables + " first! Example Input: table1, table2, table3",
		Parameters: stringParam("table_names", "A comma-separated list of the table names for which to return the schema."),
	}
}

func (t *infoTool) Call(ctx context.Context, args string) (string, error) {
	raw, err := decodeArg(args, "table_names")
	if err != nil {
		return "", err
	}
	var names []string
	for _, n := range strings.Split(raw, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return "", errors.New("no table names given")
	}
	return t.kit.TableInfo(ctx, names)
}

type listTablesTool struct{ kit *Toolkit }

func (t *listTablesTool) Spec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        ToolListTables,
		Description: "Input is an empty string, output is a comma-separated list of tables in the database.",
		Parameters:  stringParam("tool_input", "An empty string."),
	}
}

func (t *listTablesTool) Call(ctx context.Context, _ string) (string, error) {
	names, err := t.kit.ListTables(ctx)
	if err != nil {
		return "", err
	}
	return strings.Join(names, ", "), nil
}

type checkerTool struct {
	kit   *Toolkit
	model string
}

func (t *checkerTool) Spec() domain.ToolSpec {
	return domain.ToolSpec{
		Name: ToolChecker,
		Description: "Use this tool to double check if your query is correct before executing it. " +
			"Always use this tool before executing a query with " + ToolQuery + "!",
		Parameters: stringParam("query", "A detailed and SQL query to be checked."),
	}
}

func (t *checkerTool) Call(ctx context.Context, args string) (string, error) {
	q, err := decodeArg(args, "query")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(q) == "" {
		return "", ErrEmptyQuery
	}

	prompt := fmt.Sprintf(queryCheckerPrompt, q, t.kit.Dialect())
	reply, err := t.kit.checker.Chat(ctx, t.model, []domain.ChatMessage{{Role: "user", Content: prompt}}, nil)
	if err != nil {
		return "", fmt.Errorf("check query: %w", err)
	}
	return stripFences(reply.Content), nil
}
