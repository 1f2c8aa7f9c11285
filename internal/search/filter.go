package search

import (
	"fmt"
	"strconv"
	"strings"
)

// FilterOp is a comparison supported in filter expressions
type FilterOp string

const (
	OpStartsWith FilterOp = "starts_with"
	OpEquals     FilterOp = "=="
)

// Condition is one parsed `field op "value"` clause
type Condition struct {
	Field string
	Op    FilterOp
	Value string
}

// IsOrigin reports whether the condition addresses the hit origin.
// memsearch calls the field "source"; "origin" is accepted as well.
func (c Condition) IsOrigin() bool {
	return c.Field == "source" || c.Field == "origin"
}

// OriginPrefix builds the filter restricting hits to origins under prefix.
func OriginPrefix(prefix string) string {
	return fmt.Sprintf("source starts_with %s", strconv.Quote(prefix))
}

// ParseFilter parses a conjunction of conditions joined by "and".
// An empty expression yields no conditions.
//
//	source starts_with "/home/me/repo" and name == "notes"
func ParseFilter(expr string) ([]Condition, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	var conds []Condition
	rest := expr
	for {
		cond, tail, err := parseCondition(rest)
		if err != nil {
			return nil, fmt.Errorf("invalid filter %q: %w", expr, err)
		}
		conds = append(conds, cond)

		tail = strings.TrimSpace(tail)
		if tail == "" {
			return conds, nil
		}
		lower := strings.ToLower(tail)
		if !strings.HasPrefix(lower, "and ") {
			return nil, fmt.Errorf("invalid filter %q: expected 'and' near %q", expr, tail)
		}
		rest = tail[4:]
	}
}

func parseCondition(s string) (Condition, string, error) {
	s = strings.TrimSpace(s)

	field, s, ok := strings.Cut(s, " ")
	if !ok || field == "" {
		return Condition{}, "", fmt.Errorf("missing operator")
	}

	s = strings.TrimSpace(s)
	var op FilterOp
	switch {
	case strings.HasPrefix(s, string(OpStartsWith)):
		op = OpStartsWith
	case strings.HasPrefix(s, string(OpEquals)):
		op = OpEquals
	default:
		return Condition{}, "", fmt.Errorf("unsupported operator near %q", s)
	}
	s = strings.TrimSpace(s[len(op):])

	if s == "" || s[0] != '"' {
		return Condition{}, "", fmt.Errorf("expected quoted value for %s", field)
	}
	quoted, err := strconv.QuotedPrefix(s)
	if err != nil {
		return Condition{}, "", fmt.Errorf("bad quoted value for %s: %w", field, err)
	}
	value, err := strconv.Unquote(quoted)
	if err != nil {
		return Condition{}, "", fmt.Errorf("bad quoted value for %s: %w", field, err)
	}

	return Condition{Field: field, Op: op, Value: value}, s[len(quoted):], nil
}

// Match reports whether a hit satisfies every condition. Fields other than
// the origin and name are looked up in the hit metadata.
func Match(h Hit, conds []Condition) bool {
	for _, c := range conds {
		var v string
		switch {
		case c.IsOrigin():
			v = h.Origin
		case c.Field == "name":
			v = h.Name
		case c.Field == "chunk_hash":
			v = h.ChunkHash
		default:
			v = h.Metadata[c.Field]
		}

		switch c.Op {
		case OpStartsWith:
			if !strings.HasPrefix(v, c.Value) {
				return false
			}
		case OpEquals:
			if v != c.Value {
				return false
			}
		}
	}
	return true
}
