// Package matcher evaluates search queries against marker text.
//
// Four query kinds are supported:
//   - literal: substring containment; the empty literal matches everything
//   - regex: compiled through a shared PatternCache; invalid patterns fall back
//     to literal substring search instead of failing the search
//   - keyword_array: comma (or full-width comma) separated keywords, any of
//     which may match
//   - preset: a named entry in the text or regex preset table, expanded at most
//     MaxPresetDepth times before failing closed
//
// Case-insensitive queries lower-case both sides, except regex queries which
// are compiled with the (?i) flag.
package matcher
