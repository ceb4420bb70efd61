package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/signscope/pkg/types"
)

var (
	// ErrUnknownRotation is returned for an unrecognized rotation policy
	ErrUnknownRotation = errors.New("unknown rotation policy")
	// ErrUnknownBackend is returned for an unrecognized backend name
	ErrUnknownBackend = errors.New("unknown storage backend")
)

// Backend persists the partitioned marker map.
// Save writes a complete snapshot; Load returns the most recent one.
type Backend interface {
	Save(ctx context.Context, data types.PartitionedEntries) error
	Load(ctx context.Context) (types.PartitionedEntries, error)
	// Location describes where data is stored, for status output
	Location() string
	Close() error
}

// Rotation selects how saves are spread across files
type Rotation string

const (
	// RotationOverwrite always replaces a single fixed file
	RotationOverwrite Rotation = "overwrite"
	// RotationNewFile writes a timestamp-suffixed file per save
	RotationNewFile Rotation = "new_file"
	// RotationDailySplit writes one date-suffixed file per calendar day
	RotationDailySplit Rotation = "daily_split"
)

// ParseRotation converts a string into a Rotation; empty input means overwrite
func ParseRotation(s string) (Rotation, error) {
	switch Rotation(strings.ToLower(strings.TrimSpace(s))) {
	case "", RotationOverwrite:
		return RotationOverwrite, nil
	case RotationNewFile:
		return RotationNewFile, nil
	case RotationDailySplit:
		return RotationDailySplit, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRotation, s)
	}
}

// Kind names a backend implementation
type Kind string

const (
	KindFile   Kind = "file"
	KindSQLite Kind = "sqlite"
)

// Options selects and configures a backend
type Options struct {
	Kind       Kind
	File       FileConfig
	SQLitePath string
}

// Open creates the backend described by opts
func Open(opts Options) (Backend, error) {
	switch opts.Kind {
	case KindFile, "":
		return NewFileBackend(opts.File)
	case KindSQLite:
		return NewSQLiteBackend(opts.SQLitePath)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Kind)
	}
}

// CountEntries returns the total number of entries across all partitions
func CountEntries(data types.PartitionedEntries) int {
	n := 0
	for _, entries := range data {
		n += len(entries)
	}
	return n
}
