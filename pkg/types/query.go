package types

import (
	"fmt"
	"strings"
)

// QueryKind selects how query text is matched against marker text
type QueryKind string

const (
	QueryLiteral      QueryKind = "literal"       // Substring containment
	QueryRegex        QueryKind = "regex"         // Regular expression search
	QueryKeywordArray QueryKind = "keyword_array" // Comma-separated keywords, any may match
	QueryPreset       QueryKind = "preset"        // Named entry in the preset tables
)

// ParseQueryKind converts a string into a QueryKind; empty input means literal
func ParseQueryKind(s string) (QueryKind, error) {
	switch QueryKind(strings.ToLower(strings.TrimSpace(s))) {
	case "", QueryLiteral:
		return QueryLiteral, nil
	case QueryRegex:
		return QueryRegex, nil
	case QueryKeywordArray, "keywords", "array":
		return QueryKeywordArray, nil
	case QueryPreset:
		return QueryPreset, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownQueryKind, s)
	}
}

// Query is an immutable search request against marker text
type Query struct {
	Text          string
	Kind          QueryKind
	Radius        float64
	CaseSensitive bool
}

// MatchesEverything reports whether the query is the empty literal, which matches every marker
func (q Query) MatchesEverything() bool {
	return (q.Kind == QueryLiteral || q.Kind == "") && q.Text == ""
}

// Validate checks the query kind and radius
func (q Query) Validate() error {
	switch q.Kind {
	case QueryLiteral, QueryRegex, QueryKeywordArray, QueryPreset:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownQueryKind, q.Kind)
	}
	if q.Radius <= 0 {
		return ErrInvalidRadius
	}
	return nil
}
