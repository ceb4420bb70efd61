package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/dshills/signscope/pkg/types"
)

const (
	// FormatVersion is written into every saved document
	FormatVersion = 1

	jsonExt = ".json"
	zstdExt = ".json.zst"

	newFileLayout = "20060102-150405"
	dailyLayout   = "2006-01-02"
)

// FileConfig configures a FileBackend
type FileConfig struct {
	Dir      string
	BaseName string
	Rotation Rotation
	Compress bool
}

// document is the on-disk JSON layout
type document struct {
	Version    int                      `json:"version"`
	SavedAt    time.Time                `json:"saved_at"`
	Partitions types.PartitionedEntries `json:"partitions"`
}

// FileBackend stores snapshots as JSON files, optionally zstd-compressed
type FileBackend struct {
	cfg FileConfig
	now func() time.Time
	mu  sync.Mutex

	// failedPath is the snapshot the last Load could not read
	failedPath string
}

// NewFileBackend creates the data directory and returns a file backend
func NewFileBackend(cfg FileConfig) (*FileBackend, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("file backend: directory is required")
	}
	if cfg.BaseName == "" {
		cfg.BaseName = "markers"
	}
	rotation, err := ParseRotation(string(cfg.Rotation))
	if err != nil {
		return nil, err
	}
	cfg.Rotation = rotation

	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &FileBackend{cfg: cfg, now: time.Now}, nil
}

// Location returns the data directory
func (b *FileBackend) Location() string {
	return b.cfg.Dir
}

// Close is a no-op; files are closed after each operation
func (b *FileBackend) Close() error {
	return nil
}

// fileName returns the file a save at time t writes to
func (b *FileBackend) fileName(t time.Time) string {
	ext := jsonExt
	if b.cfg.Compress {
		ext = zstdExt
	}

	switch b.cfg.Rotation {
	case RotationNewFile:
		stamp := fmt.Sprintf("%s-%03d", t.Format(newFileLayout), t.Nanosecond()/int(time.Millisecond))
		return b.cfg.BaseName + "_" + stamp + ext
	case RotationDailySplit:
		return b.cfg.BaseName + "_" + t.Format(dailyLayout) + ext
	default:
		return b.cfg.BaseName + ext
	}
}

// Save writes data to the file selected by the rotation policy.
// The file is replaced atomically via a temporary file and rename.
func (b *FileBackend) Save(ctx context.Context, data types.PartitionedEntries) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	payload, err := json.Marshal(document{Version: FormatVersion, SavedAt: now.UTC(), Partitions: data})
	if err != nil {
		return fmt.Errorf("failed to encode markers: %w", err)
	}

	if b.cfg.Compress {
		payload, err = compress(payload)
		if err != nil {
			return err
		}
	}

	path := filepath.Join(b.cfg.Dir, b.fileName(now))
	if err := writeFileAtomic(path, payload); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Load reads the most recent snapshot. A missing file yields an empty map.
//
// Snapshots written under any rotation policy are candidates, so switching
// policy keeps the data. The newest file of each policy is decoded and the one
// with the latest saved_at wins.
func (b *FileBackend) Load(ctx context.Context) (types.PartitionedEntries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.failedPath = ""
	files, err := b.snapshots()
	if err != nil {
		if os.IsNotExist(err) {
			return types.PartitionedEntries{}, nil
		}
		return nil, err
	}

	var best *document
	var bestRot Rotation
	var loadErr error
	for _, f := range latestPerRotation(files) {
		doc, err := readDocument(f.path)
		if err != nil {
			if f.rotation != b.cfg.Rotation {
				slog.Warn("skipping unreadable snapshot from another rotation", "path", f.path, "error", err)
				continue
			}
			b.failedPath = f.path
			loadErr = err
			continue
		}
		if best == nil || doc.SavedAt.After(best.SavedAt) ||
			(doc.SavedAt.Equal(best.SavedAt) && f.rotation == b.cfg.Rotation) {
			best, bestRot = doc, f.rotation
		}
	}

	// An unreadable file of the current rotation is reported even when another rotation loaded
	if loadErr != nil {
		return nil, loadErr
	}
	if best == nil {
		return types.PartitionedEntries{}, nil
	}
	if bestRot != b.cfg.Rotation {
		slog.Info("loaded snapshot written under another rotation", "rotation", bestRot, "saved_at", best.SavedAt)
	}
	if best.Partitions == nil {
		best.Partitions = types.PartitionedEntries{}
	}
	return best.Partitions, nil
}

// SetAside renames the snapshot that failed the last Load to
// <name>.unreadable-<timestamp> so later saves cannot replace it. It returns
// the new path, or "" when the last Load did not fail on a file.
func (b *FileBackend) SetAside() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failedPath == "" {
		return "", nil
	}
	target := b.failedPath + ".unreadable-" + b.now().UTC().Format(newFileLayout)
	if err := os.Rename(b.failedPath, target); err != nil {
		return "", fmt.Errorf("failed to set aside %s: %w", b.failedPath, err)
	}
	b.failedPath = ""
	return target, nil
}

func readDocument(path string) (*document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if strings.HasSuffix(path, zstdExt) {
		raw, err = decompress(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress %s: %w", path, err)
		}
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if doc.Version > FormatVersion {
		return nil, fmt.Errorf("%s: unsupported format version %d", path, doc.Version)
	}
	return &doc, nil
}

// snapshotFile is a file in the data directory named like one of our saves
type snapshotFile struct {
	path     string
	rotation Rotation
	stamp    time.Time
	modTime  time.Time
}

// Files lists the snapshot files belonging to this backend under any
// rotation, oldest first within each rotation
func (b *FileBackend) Files() ([]string, error) {
	files, err := b.snapshots()
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths, nil
}

func (b *FileBackend) snapshots() ([]snapshotFile, error) {
	entries, err := os.ReadDir(b.cfg.Dir)
	if err != nil {
		return nil, err
	}

	var files []snapshotFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		rotation, stamp, ok := b.parseName(name)
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, snapshotFile{
			path:     filepath.Join(b.cfg.Dir, name),
			rotation: rotation,
			stamp:    stamp,
			modTime:  info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].rotation != files[j].rotation {
			return files[i].rotation < files[j].rotation
		}
		if !files[i].stamp.Equal(files[j].stamp) {
			return files[i].stamp.Before(files[j].stamp)
		}
		// Same stamp with and without compression
		return files[i].modTime.Before(files[j].modTime)
	})
	return files, nil
}

// parseName reports whether name is a snapshot of this backend, under which
// rotation it was written and the time encoded in its name. Only the exact
// suffix shapes written by fileName are accepted.
func (b *FileBackend) parseName(name string) (Rotation, time.Time, bool) {
	var stem string
	switch {
	case strings.HasSuffix(name, zstdExt):
		stem = strings.TrimSuffix(name, zstdExt)
	case strings.HasSuffix(name, jsonExt):
		stem = strings.TrimSuffix(name, jsonExt)
	default:
		return "", time.Time{}, false
	}

	if stem == b.cfg.BaseName {
		return RotationOverwrite, time.Time{}, true
	}
	suffix, ok := strings.CutPrefix(stem, b.cfg.BaseName+"_")
	if !ok {
		return "", time.Time{}, false
	}
	if t, err := time.ParseInLocation(dailyLayout, suffix, time.Local); err == nil {
		return RotationDailySplit, t, true
	}
	if t, ok := parseNewFileStamp(suffix); ok {
		return RotationNewFile, t, true
	}
	return "", time.Time{}, false
}

// parseNewFileStamp parses "20060102-150405-000" with millisecond suffix
func parseNewFileStamp(s string) (time.Time, bool) {
	if len(s) != len(newFileLayout)+4 || s[len(newFileLayout)] != '-' {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(newFileLayout, s[:len(newFileLayout)], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	ms, err := strconv.Atoi(s[len(newFileLayout)+1:])
	if err != nil || ms < 0 {
		return time.Time{}, false
	}
	return t.Add(time.Duration(ms) * time.Millisecond), true
}

// latestPerRotation returns the newest file of each rotation; files must be
// sorted as snapshots sorts them
func latestPerRotation(files []snapshotFile) []snapshotFile {
	var out []snapshotFile
	for i, f := range files {
		if i == len(files)-1 || files[i+1].rotation != f.rotation {
			out = append(out, f)
		}
	}
	return out
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	if _, err := enc.Write(data); err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("failed to compress markers: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress markers: %w", err)
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return io.ReadAll(dec)
}
