package types

import (
	"fmt"
	"math"
)

// Position is an integer block coordinate in the world
type Position struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	Z int `json:"z" yaml:"z"`
}

// ChunkPos identifies a 16x16 column of the world
type ChunkPos struct {
	X int `json:"x" yaml:"x"`
	Z int `json:"z" yaml:"z"`
}

// DistanceTo returns the Euclidean distance between two positions
func (p Position) DistanceTo(other Position) float64 {
	dx := float64(p.X - other.X)
	dy := float64(p.Y - other.Y)
	dz := float64(p.Z - other.Z)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Within reports whether p lies inside the sphere of the given radius around center
func (p Position) Within(center Position, radius float64) bool {
	return p.DistanceTo(center) <= radius
}

// Chunk returns the chunk column containing p
func (p Position) Chunk() ChunkPos {
	// Arithmetic shift keeps negative coordinates in the correct chunk
	return ChunkPos{X: p.X >> 4, Z: p.Z >> 4}
}

// Less orders positions by X, then Y, then Z
func (p Position) Less(other Position) bool {
	if p.X != other.X {
		return p.X < other.X
	}
	if p.Y != other.Y {
		return p.Y < other.Y
	}
	return p.Z < other.Z
}

func (p Position) String() string {
	return fmt.Sprintf("(%d, %d, %d)", p.X, p.Y, p.Z)
}
