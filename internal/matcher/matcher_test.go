package matcher

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/signscope/pkg/types"
)

func newTestMatcher(presets Presets) *Matcher {
	return New(NewPatternCache(DefaultPatternCapacity), presets)
}

func TestMatchLiteral(t *testing.T) {
	m := newTestMatcher(Presets{})

	tests := []struct {
		name          string
		text          string
		query         string
		caseSensitive bool
		want          bool
	}{
		{"Exact", "Chest Storage", "Chest", false, true},
		{"CaseInsensitive", "Chest Storage", "chest storage", false, true},
		{"CaseSensitiveMiss", "Chest Storage", "chest", true, false},
		{"CaseSensitiveHit", "Chest Storage", "Storage", true, true},
		{"Missing", "Chest Storage", "barrel", false, false},
		{"EmptyMatchesAll", "anything", "", false, true},
		{"EmptyMatchesEmpty", "", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := types.Query{Text: tt.query, Kind: types.QueryLiteral, CaseSensitive: tt.caseSensitive}
			assert.Equal(t, tt.want, m.Matches(tt.text, q))
		})
	}
}

func TestMatchLiteralProperty(t *testing.T) {
	m := newTestMatcher(Presets{})
	texts := []string{"Iron Farm", "iron", "GOLD", "Ünïcode Sign", "", "a,b"}
	queries := []string{"iron", "IRON", "old", "ünï", "", "x", ","}

	for _, text := range texts {
		for _, query := range queries {
			want := strings.Contains(strings.ToLower(text), strings.ToLower(query))
			got := m.Matches(text, types.Query{Text: query, Kind: types.QueryLiteral})
			assert.Equal(t, want, got, "text=%q query=%q", text, query)
		}
	}
}

func TestMatchKeywordArray(t *testing.T) {
	m := newTestMatcher(Presets{})

	tests := []struct {
		name  string
		text  string
		query string
		want  bool
		frag  string
	}{
		{"FirstToken", "Iron Farm", "iron, gold", true, "iron"},
		{"SecondToken", "Gold Farm", "iron,gold", true, "gold"},
		{"FullWidthComma", "Gold Farm", "iron，gold", true, "gold"},
		{"TrimmedTokens", "Wheat", "  wheat  ,", true, "wheat"},
		{"NoTokens", "Wheat", " , ，", false, ""},
		{"EmptyList", "Wheat", "", false, ""},
		{"NoMatch", "Wheat", "iron,gold", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frag, ok := m.Match(tt.text, types.Query{Text: tt.query, Kind: types.QueryKeywordArray})
			assert.Equal(t, tt.want, ok)
			assert.Equal(t, tt.frag, frag)
		})
	}
}

func TestSplitKeywords(t *testing.T) {
	assert.Equal(t, []string{"a", "b c", "d"}, SplitKeywords(" a ,b c，, d"))
	assert.Empty(t, SplitKeywords(",,"))
}

func TestMatchRegex(t *testing.T) {
	m := newTestMatcher(Presets{})

	t.Run("Match", func(t *testing.T) {
		frag, ok := m.Match("Storage 42", types.Query{Text: `\d+`, Kind: types.QueryRegex})
		assert.True(t, ok)
		assert.Equal(t, "42", frag)
	})

	t.Run("CaseInsensitiveVariant", func(t *testing.T) {
		frag, ok := m.Match("CHEST", types.Query{Text: "ch.st", Kind: types.QueryRegex})
		assert.True(t, ok)
		assert.Equal(t, "CHEST", frag)
		assert.False(t, m.Matches("CHEST", types.Query{Text: "ch.st", Kind: types.QueryRegex, CaseSensitive: true}))
	})

	t.Run("InvalidFallsBackToLiteral", func(t *testing.T) {
		q := types.Query{Text: "[invalid", Kind: types.QueryRegex}
		assert.True(t, m.Matches("sign with [INVALID text", q))
		assert.False(t, m.Matches("sign with invalid text", q))
		assert.False(t, m.PatternValid(q))
		assert.False(t, m.Patterns().Contains("[invalid", false), "failures must not be cached")
	})
}

func TestMatchPreset(t *testing.T) {
	presets := Presets{
		Text: map[string]Preset{
			"ores":    {Text: "iron,gold,diamond", Kind: types.QueryKeywordArray},
			"storage": {Text: "chest"},
			"alias":   {Text: "ores", Kind: types.QueryPreset},
			"dup":     {Text: "text-wins"},
			"self":    {Text: "self", Kind: types.QueryPreset},
		},
		Regex: map[string]string{
			"numbers": `\d{3}`,
			"dup":     "regex-loses",
		},
	}
	m := newTestMatcher(presets)

	preset := func(name string) types.Query {
		return types.Query{Text: name, Kind: types.QueryPreset}
	}

	assert.True(t, m.Matches("Gold Farm", preset("ores")))
	assert.True(t, m.Matches("Big Chest", preset("storage")))
	assert.True(t, m.Matches("Diamond", preset("alias")))
	assert.True(t, m.Matches("room 101", preset("numbers")))
	assert.True(t, m.Matches("text-wins", preset("dup")))
	assert.False(t, m.Matches("regex-loses", preset("dup")))
	assert.False(t, m.Matches("anything", preset("missing")))
	assert.False(t, m.Matches("self", preset("self")), "self reference must fail closed")
}

func TestPresetDepthLimit(t *testing.T) {
	chain := func(length int) Presets {
		p := Presets{Text: map[string]Preset{}}
		for i := 1; i < length; i++ {
			p.Text[fmt.Sprintf("p%d", i)] = Preset{Text: fmt.Sprintf("p%d", i+1), Kind: types.QueryPreset}
		}
		p.Text[fmt.Sprintf("p%d", length)] = Preset{Text: "target"}
		return p
	}

	q := types.Query{Text: "p1", Kind: types.QueryPreset}

	assert.True(t, newTestMatcher(chain(MaxPresetDepth)).Matches("target", q))
	assert.False(t, newTestMatcher(chain(MaxPresetDepth+1)).Matches("target", q))
}

func TestSetPresets(t *testing.T) {
	m := newTestMatcher(Presets{})
	q := types.Query{Text: "farm", Kind: types.QueryPreset}
	assert.False(t, m.Matches("wheat", q))

	m.SetPresets(Presets{Text: map[string]Preset{"farm": {Text: "wheat"}}})
	assert.True(t, m.Matches("wheat", q))
}

func TestPatternCacheEviction(t *testing.T) {
	c := NewPatternCache(100)

	for i := 0; i < 100; i++ {
		_, ok := c.GetOrCompile(fmt.Sprintf("p%d", i), i%2 == 0)
		require.True(t, ok)
	}
	// Touch p0 so p1 becomes the least recently accessed entry
	_, ok := c.GetOrCompile("p0", true)
	require.True(t, ok)

	_, ok = c.GetOrCompile("p100", false)
	require.True(t, ok)

	assert.Equal(t, 100, c.Len())
	assert.False(t, c.Contains("p1", false), "least recently accessed entry evicted")
	assert.True(t, c.Contains("p0", true))
	for i := 2; i < 100; i++ {
		assert.True(t, c.Contains(fmt.Sprintf("p%d", i), i%2 == 0), "p%d", i)
	}
	assert.True(t, c.Contains("p100", false))
}

func TestPatternCacheCaseVariants(t *testing.T) {
	c := NewPatternCache(10)

	sensitive, ok := c.GetOrCompile("abc", true)
	require.True(t, ok)
	insensitive, ok := c.GetOrCompile("abc", false)
	require.True(t, ok)

	assert.Equal(t, 2, c.Len())
	assert.NotSame(t, sensitive, insensitive)
	assert.False(t, sensitive.MatchString("ABC"))
	assert.True(t, insensitive.MatchString("ABC"))
}

func TestPatternCacheConcurrent(t *testing.T) {
	c := NewPatternCache(DefaultPatternCapacity)
	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				pattern := fmt.Sprintf("k%d", (g*31+i)%150)
				re, ok := c.GetOrCompile(pattern, i%2 == 0)
				if assert.True(t, ok) {
					assert.True(t, re.MatchString(pattern))
				}
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), DefaultPatternCapacity)
}
