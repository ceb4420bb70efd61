// Package storage persists the partitioned marker cache.
//
// Two backends implement Backend:
//   - FileBackend writes one JSON document per save, optionally zstd
//     compressed, under one of three rotation policies
//   - SQLiteBackend keeps a single markers table, replaced on every save
//
// # Rotation
//
// File names for the default base name "markers":
//
//	overwrite    markers.json
//	new_file     markers_20261018-142501-123.json
//	daily_split  markers_2026-10-18.json
//
// Compressed saves use the ".json.zst" extension. Only these exact name
// shapes are snapshots. Load takes the newest file of each rotation and
// returns the one with the latest saved_at, so changing the rotation keeps
// the data. A missing file is an empty cache.
//
// After a failed Load, SetAside renames the unreadable file to
// "<name>.unreadable-<timestamp>" so the next save cannot replace it.
//
// # Build Tags
//
// The SQLite driver is selected at build time:
//
//	go build ./...                    # modernc.org/sqlite, no C compiler
//	go build -tags sqlite_cgo ./...   # github.com/mattn/go-sqlite3
//
// # Basic Usage
//
//	backend, err := storage.Open(storage.Options{
//	    Kind: storage.KindFile,
//	    File: storage.FileConfig{Dir: dataDir, Rotation: storage.RotationDailySplit},
//	})
//	if err != nil {
//	    return err
//	}
//	defer backend.Close()
//
//	data, err := backend.Load(ctx)
package storage
