// Package visualize turns an agent trace into chart-ready labels and values.
//
// Two text formats are recognised: the literal list of tuples the SQL query
// tool emits for (value, month, year) rows, and markdown summaries with
// "### <year>" headings followed by "- **<Month>**: <n>" bullets. Content that
// matches neither simply yields no chart.
package visualize

import (
	"strings"

	"sql-question-agent/internal/domain"
)

// Kind names the format a chart was extracted from.
type Kind string

const (
	KindLiteral Kind = "literal"
	KindBullets Kind = "bullets"
)

// Extract returns the first chart found in steps, or nil when visualize is
// false or no step holds chartable content.
func Extract(visualize bool, steps []domain.Step) *domain.ChartData {
	chart, _ := ExtractKind(visualize, steps)
	return chart
}

// ExtractKind is Extract that also reports which format matched.
func ExtractKind(visualize bool, steps []domain.Step) (*domain.ChartData, Kind) {
	if !visualize {
		return nil, ""
	}
	for _, step := range steps {
		content := strings.TrimSpace(step.Content)
		if chart, ok := ParseLiteral(content); ok {
			return &chart, KindLiteral
		}
		if !strings.Contains(content, "###") {
			continue
		}
		if chart := ParseBullets(content); chart.Len() > 0 {
			return &chart, KindBullets
		}
	}
	return nil, ""
}
