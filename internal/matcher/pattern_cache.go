package matcher

import (
	"fmt"
	"regexp"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultPatternCapacity is the number of compiled patterns kept by default
const DefaultPatternCapacity = 100

// patternKey identifies one compiled form of a pattern
type patternKey struct {
	pattern       string
	caseSensitive bool
}

// PatternCache is a bounded LRU cache of compiled regular expressions.
// The same pattern text has independent entries for each case sensitivity.
type PatternCache struct {
	cache *lru.Cache[patternKey, *regexp.Regexp]
	group singleflight.Group
}

// NewPatternCache creates a pattern cache holding at most capacity entries
func NewPatternCache(capacity int) *PatternCache {
	if capacity <= 0 {
		capacity = DefaultPatternCapacity
	}

	cache, err := lru.New[patternKey, *regexp.Regexp](capacity)
	if err != nil {
		// This should never happen with valid size parameter
		panic(fmt.Sprintf("failed to create pattern cache: %v", err))
	}

	return &PatternCache{cache: cache}
}

// GetOrCompile returns the compiled pattern, compiling and caching it on a miss.
// Invalid patterns return false and are never cached.
func (c *PatternCache) GetOrCompile(pattern string, caseSensitive bool) (*regexp.Regexp, bool) {
	key := patternKey{pattern: pattern, caseSensitive: caseSensitive}
	if re, ok := c.cache.Get(key); ok {
		return re, true
	}

	flightKey := fmt.Sprintf("%t\x00%s", caseSensitive, pattern)
	v, err, _ := c.group.Do(flightKey, func() (interface{}, error) {
		if re, ok := c.cache.Get(key); ok {
			return re, nil
		}
		re, err := compile(pattern, caseSensitive)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, re)
		return re, nil
	})
	if err != nil {
		return nil, false
	}
	return v.(*regexp.Regexp), true
}

// Contains reports whether a compiled form is cached without updating recency
func (c *PatternCache) Contains(pattern string, caseSensitive bool) bool {
	return c.cache.Contains(patternKey{pattern: pattern, caseSensitive: caseSensitive})
}

// Len returns the number of cached patterns
func (c *PatternCache) Len() int {
	return c.cache.Len()
}

// Purge removes every cached pattern
func (c *PatternCache) Purge() {
	c.cache.Purge()
}

// compile builds the case-sensitive or case-insensitive variant of pattern
func compile(pattern string, caseSensitive bool) (*regexp.Regexp, error) {
	if caseSensitive {
		return regexp.Compile(pattern)
	}
	return regexp.Compile("(?i)" + pattern)
}
