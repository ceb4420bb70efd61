package world

import (
	"context"

	"github.com/dshills/signscope/pkg/types"
)

// MarkerSnapshot is a marker currently resident in the loaded world
type MarkerSnapshot struct {
	Position types.Position
	Kind     types.MarkerKind
	Lines    []string
}

// Content returns the snapshot's marker content
func (s MarkerSnapshot) Content() types.MarkerContent {
	return types.MarkerContent{Kind: s.Kind, Lines: s.Lines}
}

// Scanner yields the markers currently loaded around a point.
// Absence from the result does not mean a marker no longer exists.
type Scanner interface {
	Scan(ctx context.Context, center types.Position, radius float64) ([]MarkerSnapshot, error)
}

// ProbeState is the outcome of inspecting a single position
type ProbeState int

const (
	// ProbeUnknown means the chunk is not loaded or could not be read
	ProbeUnknown ProbeState = iota
	// ProbeAbsent means the chunk is loaded and holds no marker at the position
	ProbeAbsent
	// ProbePresent means the chunk is loaded and holds a marker of ProbeResult.Kind
	ProbePresent
)

func (s ProbeState) String() string {
	switch s {
	case ProbeAbsent:
		return "absent"
	case ProbePresent:
		return "present"
	default:
		return "unknown"
	}
}

// ProbeResult describes what currently occupies a position
type ProbeResult struct {
	State ProbeState
	Kind  types.MarkerKind
}

// Confirms reports whether a marker of the given kind is known to be at the position
func (r ProbeResult) Confirms(kind types.MarkerKind) bool {
	return r.State == ProbePresent && r.Kind == kind
}

// ConfirmsAbsence reports whether the position is loaded and no longer holds a marker of the given kind
func (r ProbeResult) ConfirmsAbsence(kind types.MarkerKind) bool {
	switch r.State {
	case ProbeAbsent:
		return true
	case ProbePresent:
		return r.Kind != kind
	default:
		return false
	}
}

// Prober inspects current world state at a single position
type Prober interface {
	Probe(ctx context.Context, pos types.Position) ProbeResult
}

// World is the full collaborator the search engine consumes
type World interface {
	Scanner
	Prober
	// Dimension returns the identifier of the region currently loaded
	Dimension() string
}
