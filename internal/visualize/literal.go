package visualize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"sql-question-agent/internal/domain"
)

type nodeKind int

const (
	kindNumber nodeKind = iota
	kindString
	kindName
	kindList
	kindTuple
)

// node is a parsed literal value: a number, a string, a bare name such as
// None, or a list/tuple of nodes.
type node struct {
	kind  nodeKind
	num   float64
	isInt bool
	text  string
	items []node
}

// ParseLiteral reads s as a literal sequence of (value, month, year) tuples,
// the shape the SQL query tool renders result rows in, and maps each tuple to
// the label "<Month> <year>". It reports false when s is not such a sequence.
func ParseLiteral(s string) (domain.ChartData, bool) {
	p := &literalParser{src: s}
	root, err := p.parse()
	if err != nil {
		return domain.ChartData{}, false
	}
	if root.kind != kindList && root.kind != kindTuple {
		return domain.ChartData{}, false
	}
	if len(root.items) == 0 {
		return domain.ChartData{}, false
	}

	out := domain.ChartData{
		Labels: make([]string, 0, len(root.items)),
		Values: make([]float64, 0, len(root.items)),
	}
	for _, item := range root.items {
		if item.kind != kindTuple || len(item.items) != 3 {
			return domain.ChartData{}, false
		}
		value, month, year := item.items[0], item.items[1], item.items[2]
		if value.kind != kindNumber {
			return domain.ChartData{}, false
		}
		if month.kind != kindNumber || !month.isInt || month.num < 1 || month.num > 12 {
			return domain.ChartData{}, false
		}
		if year.kind != kindNumber || !year.isInt {
			return domain.ChartData{}, false
		}
		out.Labels = append(out.Labels, fmt.Sprintf("%s %d", time.Month(int(month.num)), int64(year.num)))
		out.Values = append(out.Values, value.num)
	}
	return out, true
}

type literalParser struct {
	src string
	pos int
}

func (p *literalParser) parse() (node, error) {
	n, err := p.value()
	if err != nil {
		return node{}, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return node{}, fmt.Errorf("visualize: trailing input at offset %d", p.pos)
	}
	return n, nil
}

func (p *literalParser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *literalParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *literalParser) value() (node, error) {
	c := p.peek()
	switch {
	case c == '[':
		p.pos++
		items, _, err := p.sequence(']')
		if err != nil {
			return node{}, err
		}
		return node{kind: kindList, items: items}, nil
	case c == '(':
		p.pos++
		items, trailingComma, err := p.sequence(')')
		if err != nil {
			return node{}, err
		}
		// "(x)" is a parenthesized expression, not a one-element tuple.
		if len(items) == 1 && !trailingComma {
			return items[0], nil
		}
		return node{kind: kindTuple, items: items}, nil
	case c == '\'' || c == '"':
		return p.str(c)
	case c == '-' || c == '+' || c == '.' || isDigit(c):
		return p.number()
	case isNameStart(c):
		start := p.pos
		for p.pos < len(p.src) && (isNameStart(p.src[p.pos]) || isDigit(p.src[p.pos])) {
			p.pos++
		}
		return node{kind: kindName, text: p.src[start:p.pos]}, nil
	case c == 0:
		return node{}, fmt.Errorf("visualize: unexpected end of input")
	default:
		return node{}, fmt.Errorf("visualize: unexpected %q at offset %d", c, p.pos)
	}
}

// sequence parses comma separated values up to the closing delimiter. It
// reports whether the last element was followed by a comma.
func (p *literalParser) sequence(closing byte) ([]node, bool, error) {
	var items []node
	trailingComma := false
	for {
		if p.peek() == closing {
			p.pos++
			return items, trailingComma, nil
		}
		n, err := p.value()
		if err != nil {
			return nil, false, err
		}
		items = append(items, n)
		trailingComma = false

		switch p.peek() {
		case ',':
			p.pos++
			trailingComma = true
		case closing:
		default:
			return nil, false, fmt.Errorf("visualize: expected ',' or %q at offset %d", closing, p.pos)
		}
	}
}

func (p *literalParser) number() (node, error) {
	start := p.pos
	if p.src[p.pos] == '-' || p.src[p.pos] == '+' {
		p.pos++
	}
	isInt := true
scan:
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case isDigit(c):
		case c == '.' || c == 'e' || c == 'E':
			isInt = false
		case (c == '-' || c == '+') && (p.src[p.pos-1] == 'e' || p.src[p.pos-1] == 'E'):
		default:
			break scan
		}
		p.pos++
	}
	text := p.src[start:p.pos]
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return node{}, fmt.Errorf("visualize: invalid number %q", text)
	}
	return node{kind: kindNumber, num: v, isInt: isInt}, nil
}

func (p *literalParser) str(quote byte) (node, error) {
	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch c {
		case '\\':
			if p.pos+1 >= len(p.src) {
				return node{}, fmt.Errorf("visualize: unterminated string")
			}
			b.WriteByte(p.src[p.pos+1])
			p.pos += 2
			continue
		case quote:
			p.pos++
			return node{kind: kindString, text: b.String()}, nil
		}
		b.WriteByte(c)
		p.pos++
	}
	return node{}, fmt.Errorf("visualize: unterminated string")
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
