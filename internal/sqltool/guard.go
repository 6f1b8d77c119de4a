package sqltool

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrEmptyQuery     = errors.New("query is empty")
	ErrNotReadOnly    = errors.New("only SELECT statements are allowed")
	ErrMultiStatement = errors.New("only one statement per query is allowed")
)

var (
	leadingKeyword   = regexp.MustCompile(`(?i)^\s*(select|with)\b`)
	forbiddenKeyword = regexp.MustCompile(`(?i)\b(insert|update|delete|merge|drop|alter|create|truncate|exec|execute|grant|revoke|deny|into|backup|restore|dbcc|shutdown|attach|detach|pragma|vacuum|copy)\b`)
	stringLiteral    = regexp.MustCompile(`'(?:[^']|'')*'`)
)

// readOnlyQuery returns the statement to execute or an error explaining why
// it was refused. String literals are ignored when looking for keywords.
func readOnlyQuery(query string) (string, error) {
	q := stripFences(query)
	q = strings.TrimSpace(q)
	q = strings.TrimRight(q, "; \t\r\n")
	if q == "" {
		return "", ErrEmptyQuery
	}

	bare := stringLiteral.ReplaceAllString(q, "''")
	if strings.Contains(bare, ";") {
		return "", ErrMultiStatement
	}
	if !leadingKeyword.MatchString(bare) {
		return "", ErrNotReadOnly
	}
	if kw := forbiddenKeyword.FindString(bare); kw != "" {
		return "", fmt.Errorf("%w: found %s", ErrNotReadOnly, strings.ToUpper(kw))
	}
	return q, nil
}

// stripFences removes a surrounding markdown code fence, which models often
// wrap SQL in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(strings.TrimPrefix(s, "sql"), "SQL")
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
