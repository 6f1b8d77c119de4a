package visualize

import (
	"regexp"
	"strconv"
	"strings"

	"sql-question-agent/internal/domain"
)

var (
	yearHeading = regexp.MustCompile(`^###\s+(\d{4})`)
	monthBullet = regexp.MustCompile(`^- \*\*(\w+)\*\*: (\d+)`)
)

// ParseBullets reads markdown summaries of the form
//
//	### 2024
//	- **January**: 1160
//	- **February**: 1382
//
// emitting one "<word> <year>" label per bullet. Bullets that appear before
// any year heading are skipped. The result may be empty.
func ParseBullets(s string) domain.ChartData {
	var out domain.ChartData
	year := ""
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if m := yearHeading.FindStringSubmatch(line); m != nil {
			year = m[1]
			continue
		}
		if year == "" {
			continue
		}
		m := monthBullet.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		v, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			continue
		}
		out.Labels = append(out.Labels, m[1]+" "+year)
		out.Values = append(out.Values, float64(v))
	}
	return out
}
