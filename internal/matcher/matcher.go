package matcher

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/dshills/signscope/pkg/types"
)

// MaxPresetDepth bounds how many preset hops a query may take before it fails closed
const MaxPresetDepth = 5

// Preset is a named query stored in the text preset table
type Preset struct {
	Text string          `yaml:"text" json:"text"`
	Kind types.QueryKind `yaml:"kind" json:"kind"`
}

// Presets holds the two preset tables. Text presets may resolve to any query
// kind, including another preset; regex presets always resolve to a regex.
type Presets struct {
	Text  map[string]Preset `yaml:"text" json:"text"`
	Regex map[string]string `yaml:"regex" json:"regex"`
}

// Matcher evaluates queries against marker text
type Matcher struct {
	patterns *PatternCache

	mu      sync.RWMutex
	presets Presets
}

// New creates a Matcher backed by the given pattern cache
func New(patterns *PatternCache, presets Presets) *Matcher {
	if patterns == nil {
		patterns = NewPatternCache(DefaultPatternCapacity)
	}
	return &Matcher{
		patterns: patterns,
		presets:  copyPresets(presets),
	}
}

// SetPresets replaces both preset tables
func (m *Matcher) SetPresets(presets Presets) {
	p := copyPresets(presets)
	m.mu.Lock()
	m.presets = p
	m.mu.Unlock()
}

// Patterns returns the pattern cache used for regex queries
func (m *Matcher) Patterns() *PatternCache {
	return m.patterns
}

// Matches reports whether text satisfies the query
func (m *Matcher) Matches(text string, q types.Query) bool {
	_, ok := m.match(text, q, 0)
	return ok
}

// Match reports whether text satisfies the query and returns the fragment responsible
func (m *Matcher) Match(text string, q types.Query) (string, bool) {
	return m.match(text, q, 0)
}

// PatternValid reports whether a regex query compiles; other kinds are always valid
func (m *Matcher) PatternValid(q types.Query) bool {
	if q.Kind != types.QueryRegex {
		return true
	}
	_, ok := m.patterns.GetOrCompile(q.Text, q.CaseSensitive)
	return ok
}

func (m *Matcher) match(text string, q types.Query, depth int) (string, bool) {
	if depth > MaxPresetDepth {
		slog.Debug("preset expansion exceeded max depth", "query", q.Text, "depth", depth)
		return "", false
	}

	switch q.Kind {
	case types.QueryLiteral, "":
		return matchLiteral(text, q.Text, q.CaseSensitive)
	case types.QueryRegex:
		return m.matchRegex(text, q.Text, q.CaseSensitive)
	case types.QueryKeywordArray:
		return matchKeywords(text, q.Text, q.CaseSensitive)
	case types.QueryPreset:
		resolved, ok := m.resolvePreset(q)
		if !ok {
			slog.Debug("unknown preset", "name", q.Text)
			return "", false
		}
		return m.match(text, resolved, depth+1)
	default:
		return "", false
	}
}

// resolvePreset looks the name up in the text table, then the regex table
func (m *Matcher) resolvePreset(q types.Query) (types.Query, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if p, ok := m.presets.Text[q.Text]; ok {
		kind, err := types.ParseQueryKind(string(p.Kind))
		if err != nil {
			return types.Query{}, false
		}
		return types.Query{Text: p.Text, Kind: kind, Radius: q.Radius, CaseSensitive: q.CaseSensitive}, true
	}
	if pattern, ok := m.presets.Regex[q.Text]; ok {
		return types.Query{Text: pattern, Kind: types.QueryRegex, Radius: q.Radius, CaseSensitive: q.CaseSensitive}, true
	}
	return types.Query{}, false
}

func (m *Matcher) matchRegex(text, pattern string, caseSensitive bool) (string, bool) {
	re, ok := m.patterns.GetOrCompile(pattern, caseSensitive)
	if !ok {
		// Logged per marker at debug; callers warn once per query through PatternValid
		slog.Debug("invalid regex, falling back to literal search", "pattern", pattern)
		return matchLiteral(text, pattern, caseSensitive)
	}
	loc := re.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	return text[loc[0]:loc[1]], true
}

func matchLiteral(text, needle string, caseSensitive bool) (string, bool) {
	if !caseSensitive {
		text = strings.ToLower(text)
		if strings.Contains(text, strings.ToLower(needle)) {
			return needle, true
		}
		return "", false
	}
	if strings.Contains(text, needle) {
		return needle, true
	}
	return "", false
}

func matchKeywords(text, list string, caseSensitive bool) (string, bool) {
	haystack := text
	if !caseSensitive {
		haystack = strings.ToLower(text)
	}
	for _, keyword := range SplitKeywords(list) {
		needle := keyword
		if !caseSensitive {
			needle = strings.ToLower(keyword)
		}
		if strings.Contains(haystack, needle) {
			return keyword, true
		}
	}
	return "", false
}

// SplitKeywords splits a keyword list on ASCII and full-width commas,
// trimming each token and dropping empty ones
func SplitKeywords(list string) []string {
	fields := strings.FieldsFunc(list, func(r rune) bool {
		return r == ',' || r == '，'
	})
	keywords := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			keywords = append(keywords, f)
		}
	}
	return keywords
}

func copyPresets(p Presets) Presets {
	out := Presets{
		Text:  make(map[string]Preset, len(p.Text)),
		Regex: make(map[string]string, len(p.Regex)),
	}
	for k, v := range p.Text {
		out.Text[k] = v
	}
	for k, v := range p.Regex {
		out.Regex[k] = v
	}
	return out
}
