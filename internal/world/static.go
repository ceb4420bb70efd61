package world

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/dshills/signscope/pkg/types"
)

// DefaultDimension is used when a snapshot does not name its dimension
const DefaultDimension = "minecraft:overworld"

// SnapshotFile is the on-disk form of a StaticWorld, written by a host exporter
type SnapshotFile struct {
	Dimension      string           `yaml:"dimension"`
	UnloadedChunks []types.ChunkPos `yaml:"unloaded_chunks"`
	Markers        []SnapshotMarker `yaml:"markers"`
}

// SnapshotMarker is one marker entry in a SnapshotFile
type SnapshotMarker struct {
	Pos   [3]int   `yaml:"pos"`
	Kind  string   `yaml:"kind"`
	Lines []string `yaml:"lines"`
}

// StaticWorld is an in-memory world. Every chunk counts as loaded unless it
// has been explicitly unloaded.
type StaticWorld struct {
	mu        sync.RWMutex
	dimension string
	markers   map[types.Position]MarkerSnapshot
	unloaded  map[types.ChunkPos]struct{}
}

// NewStaticWorld creates an empty world for the given dimension
func NewStaticWorld(dimension string) *StaticWorld {
	if dimension == "" {
		dimension = DefaultDimension
	}
	return &StaticWorld{
		dimension: dimension,
		markers:   make(map[types.Position]MarkerSnapshot),
		unloaded:  make(map[types.ChunkPos]struct{}),
	}
}

// LoadSnapshot creates a world from a YAML snapshot file
func LoadSnapshot(path string) (*StaticWorld, error) {
	w := NewStaticWorld("")
	if err := w.Reload(path); err != nil {
		return nil, err
	}
	return w, nil
}

// Reload replaces the world contents with the snapshot at path
func (w *StaticWorld) Reload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read world snapshot: %w", err)
	}

	var file SnapshotFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse world snapshot: %w", err)
	}

	markers := make(map[types.Position]MarkerSnapshot, len(file.Markers))
	for i, m := range file.Markers {
		kind, err := types.ParseMarkerKind(m.Kind)
		if err != nil {
			return fmt.Errorf("marker %d: %w", i, err)
		}
		pos := types.Position{X: m.Pos[0], Y: m.Pos[1], Z: m.Pos[2]}
		markers[pos] = MarkerSnapshot{Position: pos, Kind: kind, Lines: slices.Clone(m.Lines)}
	}

	unloaded := make(map[types.ChunkPos]struct{}, len(file.UnloadedChunks))
	for _, c := range file.UnloadedChunks {
		unloaded[c] = struct{}{}
	}

	w.mu.Lock()
	// A snapshot without a dimension keeps the current one
	if file.Dimension != "" {
		w.dimension = file.Dimension
	}
	w.markers = markers
	w.unloaded = unloaded
	w.mu.Unlock()
	return nil
}

// Dimension returns the identifier of the loaded region
func (w *StaticWorld) Dimension() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.dimension
}

// Set places or replaces a marker
func (w *StaticWorld) Set(m MarkerSnapshot) {
	m.Lines = slices.Clone(m.Lines)
	w.mu.Lock()
	w.markers[m.Position] = m
	w.mu.Unlock()
}

// Remove deletes the marker at pos
func (w *StaticWorld) Remove(pos types.Position) {
	w.mu.Lock()
	delete(w.markers, pos)
	w.mu.Unlock()
}

// UnloadChunk marks a chunk as not resident
func (w *StaticWorld) UnloadChunk(c types.ChunkPos) {
	w.mu.Lock()
	w.unloaded[c] = struct{}{}
	w.mu.Unlock()
}

// LoadChunk marks a chunk as resident again
func (w *StaticWorld) LoadChunk(c types.ChunkPos) {
	w.mu.Lock()
	delete(w.unloaded, c)
	w.mu.Unlock()
}

// Scan returns every loaded marker within radius of center
func (w *StaticWorld) Scan(ctx context.Context, center types.Position, radius float64) ([]MarkerSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]MarkerSnapshot, 0)
	for pos, m := range w.markers {
		if _, unloaded := w.unloaded[pos.Chunk()]; unloaded {
			continue
		}
		if !pos.Within(center, radius) {
			continue
		}
		m.Lines = slices.Clone(m.Lines)
		out = append(out, m)
	}
	return out, nil
}

// Probe reports what occupies pos, or ProbeUnknown for an unloaded chunk
func (w *StaticWorld) Probe(ctx context.Context, pos types.Position) ProbeResult {
	if ctx.Err() != nil {
		return ProbeResult{State: ProbeUnknown}
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	if _, unloaded := w.unloaded[pos.Chunk()]; unloaded {
		return ProbeResult{State: ProbeUnknown}
	}
	m, ok := w.markers[pos]
	if !ok {
		return ProbeResult{State: ProbeAbsent}
	}
	return ProbeResult{State: ProbePresent, Kind: m.Kind}
}
