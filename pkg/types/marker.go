package types

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

// MarkerKind represents the type of labeled object
type MarkerKind string

const (
	KindSign        MarkerKind = "sign"
	KindItemDisplay MarkerKind = "item_display"
)

// PreviewLength is the maximum number of runes in a marker preview, excluding ellipses
const PreviewLength = 40

const ellipsis = "..."

// ParseMarkerKind converts a string into a MarkerKind
func ParseMarkerKind(s string) (MarkerKind, error) {
	switch MarkerKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindSign:
		return KindSign, nil
	case KindItemDisplay:
		return KindItemDisplay, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMarkerKind, s)
	}
}

// MarkerContent is the raw content of a marker as read from the world
type MarkerContent struct {
	Kind  MarkerKind
	Lines []string
}

// Equal reports whether both contents have the same kind and the exact same lines in order
func (c MarkerContent) Equal(other MarkerContent) bool {
	return c.Kind == other.Kind && slices.Equal(c.Lines, other.Lines)
}

// Clone returns a copy that does not share the line slice
func (c MarkerContent) Clone() MarkerContent {
	return MarkerContent{Kind: c.Kind, Lines: slices.Clone(c.Lines)}
}

// Text returns the combined text used for matching
func (c MarkerContent) Text() string {
	return CombineLines(c.Lines)
}

// CombineLines joins the non-empty lines of a marker with a single space
func CombineLines(lines []string) string {
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}

// MarkerParams holds the inputs needed to build a Marker
type MarkerParams struct {
	Position  Position
	Kind      MarkerKind
	Lines     []string
	Fragment  string
	Persisted bool
	LastSeen  time.Time
}

// Marker is a detected sign or item display returned by a search.
// All derived fields are computed once in NewMarker; the zero value is not useful.
type Marker struct {
	position  Position
	kind      MarkerKind
	lines     []string
	combined  string
	distance  float64
	fragment  string
	preview   string
	persisted bool
	lastSeen  time.Time
}

// NewMarker builds a Marker, deriving its combined text, distance from reference and preview
func NewMarker(p MarkerParams, reference Position) Marker {
	combined := CombineLines(p.Lines)
	return Marker{
		position:  p.Position,
		kind:      p.Kind,
		lines:     slices.Clone(p.Lines),
		combined:  combined,
		distance:  p.Position.DistanceTo(reference),
		fragment:  p.Fragment,
		preview:   buildPreview(combined, p.Fragment, PreviewLength),
		persisted: p.Persisted,
		lastSeen:  p.LastSeen,
	}
}

func (m Marker) Position() Position      { return m.position }
func (m Marker) Kind() MarkerKind        { return m.kind }
func (m Marker) CombinedText() string    { return m.combined }
func (m Marker) Distance() float64       { return m.distance }
func (m Marker) MatchedFragment() string { return m.fragment }
func (m Marker) Preview() string         { return m.preview }
func (m Marker) IsPersisted() bool       { return m.persisted }
func (m Marker) LastSeen() time.Time     { return m.lastSeen }

// Lines returns a copy of the marker's text lines
func (m Marker) Lines() []string {
	return slices.Clone(m.lines)
}

// Content returns the marker's raw content
func (m Marker) Content() MarkerContent {
	return MarkerContent{Kind: m.kind, Lines: slices.Clone(m.lines)}
}

type markerJSON struct {
	Position  Position   `json:"position"`
	Kind      MarkerKind `json:"kind"`
	Lines     []string   `json:"lines"`
	Text      string     `json:"text"`
	Distance  float64    `json:"distance"`
	Matched   string     `json:"matched"`
	Preview   string     `json:"preview"`
	Persisted bool       `json:"persisted"`
	LastSeen  time.Time  `json:"last_seen"`
}

// MarshalJSON exposes the read-only marker fields to front-ends
func (m Marker) MarshalJSON() ([]byte, error) {
	return json.Marshal(markerJSON{
		Position:  m.position,
		Kind:      m.kind,
		Lines:     m.lines,
		Text:      m.combined,
		Distance:  m.distance,
		Matched:   m.fragment,
		Preview:   m.preview,
		Persisted: m.persisted,
		LastSeen:  m.lastSeen,
	})
}

// buildPreview returns at most maxRunes runes of text centered on fragment,
// with ellipses marking the trimmed ends
func buildPreview(text, fragment string, maxRunes int) string {
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}

	center := 0
	if fragment != "" {
		lower := strings.ToLower(text)
		if idx := strings.Index(lower, strings.ToLower(fragment)); idx >= 0 {
			start := utf8.RuneCountInString(lower[:idx])
			center = start + utf8.RuneCountInString(fragment)/2
		}
	}

	start := center - maxRunes/2
	if start < 0 {
		start = 0
	}
	if start > len(runes)-maxRunes {
		start = len(runes) - maxRunes
	}
	end := start + maxRunes

	var b strings.Builder
	if start > 0 {
		b.WriteString(ellipsis)
	}
	b.WriteString(string(runes[start:end]))
	if end < len(runes) {
		b.WriteString(ellipsis)
	}
	return b.String()
}
