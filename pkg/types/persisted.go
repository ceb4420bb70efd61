package types

import (
	"slices"
	"strings"
	"time"
	"unicode"
)

// DefaultPartition is used when a region identifier sanitizes to nothing
const DefaultPartition PartitionKey = "unknown"

// PartitionKey is a filesystem-safe region/dimension identifier
type PartitionKey string

// SanitizePartition turns any region identifier into a PartitionKey.
// Namespace and path separators, characters illegal in file names, control
// characters and whitespace become '_' and the result is lower-cased.
func SanitizePartition(id string) PartitionKey {
	id = strings.TrimSpace(id)
	if id == "" {
		return DefaultPartition
	}

	var b strings.Builder
	b.Grow(len(id))
	for _, r := range id {
		switch {
		case strings.ContainsRune(`:/\<>"|?*`, r):
			b.WriteRune('_')
		case unicode.IsSpace(r), unicode.IsControl(r):
			b.WriteRune('_')
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}

	key := b.String()
	// "." and ".." are valid tokens but not valid file names
	if strings.Trim(key, ".") == "" {
		return PartitionKey(strings.Repeat("_", len(key)))
	}
	return PartitionKey(key)
}

// PersistedEntry is a marker remembered across sessions
type PersistedEntry struct {
	Position    Position   `json:"pos"`
	Kind        MarkerKind `json:"kind,omitempty"`
	Lines       []string   `json:"lines"`
	MatchedText string     `json:"matched"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// PartitionedEntries is the unit handed to and from a persistence backend
type PartitionedEntries map[PartitionKey][]PersistedEntry

// Content returns the entry's marker content; a missing kind is treated as a sign
func (e PersistedEntry) Content() MarkerContent {
	kind := e.Kind
	if kind == "" {
		kind = KindSign
	}
	return MarkerContent{Kind: kind, Lines: e.Lines}
}

// SameContent reports whether two entries carry identical marker content
func (e PersistedEntry) SameContent(other PersistedEntry) bool {
	return e.Content().Equal(other.Content())
}

// Clone returns a copy that does not share the line slice
func (e PersistedEntry) Clone() PersistedEntry {
	e.Lines = slices.Clone(e.Lines)
	return e
}

// Text returns the combined text used for matching
func (e PersistedEntry) Text() string {
	return CombineLines(e.Lines)
}
