package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dshills/signscope/pkg/types"
)

// SQLiteBackend stores snapshots in a single SQLite database.
// Rotation policies do not apply; each save replaces the table contents.
type SQLiteBackend struct {
	db   *sql.DB
	path string
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// NewSQLiteBackend opens the database at dbPath and applies migrations
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite backend: database path is required")
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteBackend{db: db, path: dbPath}, nil
}

// Location returns the database path
func (b *SQLiteBackend) Location() string {
	return b.path
}

// Close closes the database connection
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

// Save replaces every stored marker with data inside one transaction
func (b *SQLiteBackend) Save(ctx context.Context, data types.PartitionedEntries) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM markers`); err != nil {
		return fmt.Errorf("failed to clear markers: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO markers (partition_key, x, y, z, kind, lines, matched_text, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for key, entries := range data {
		for _, e := range entries {
			lines, err := json.Marshal(e.Lines)
			if err != nil {
				return fmt.Errorf("failed to encode lines: %w", err)
			}
			_, err = stmt.ExecContext(ctx,
				string(key), e.Position.X, e.Position.Y, e.Position.Z,
				string(e.Kind), string(lines), e.MatchedText, e.UpdatedAt.UnixNano())
			if err != nil {
				return fmt.Errorf("failed to insert marker %s in %s: %w", e.Position, key, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Load returns every stored marker grouped by partition
func (b *SQLiteBackend) Load(ctx context.Context) (types.PartitionedEntries, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT partition_key, x, y, z, kind, lines, matched_text, updated_at
		FROM markers
		ORDER BY partition_key, x, y, z
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(types.PartitionedEntries)
	for rows.Next() {
		var (
			key       string
			e         types.PersistedEntry
			kind      string
			lines     string
			updatedAt int64
		)
		if err := rows.Scan(&key, &e.Position.X, &e.Position.Y, &e.Position.Z,
			&kind, &lines, &e.MatchedText, &updatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(lines), &e.Lines); err != nil {
			return nil, fmt.Errorf("failed to decode lines at %s: %w", e.Position, err)
		}
		e.Kind = types.MarkerKind(kind)
		e.UpdatedAt = time.Unix(0, updatedAt).UTC()

		pk := types.PartitionKey(key)
		out[pk] = append(out[pk], e)
	}
	return out, rows.Err()
}
