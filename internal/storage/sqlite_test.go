package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/signscope/pkg/types"
)

func setupTestDB(t *testing.T) *SQLiteBackend {
	t.Helper()
	b, err := NewSQLiteBackend(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestSQLiteBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := setupTestDB(t)

	data := sampleData()
	require.NoError(t, b.Save(ctx, data))

	loaded, err := b.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, len(data))

	for key, entries := range data {
		assert.ElementsMatch(t, entries, loaded[key], "partition %s", key)
	}
}

func TestSQLiteBackendSaveReplaces(t *testing.T) {
	ctx := context.Background()
	b := setupTestDB(t)

	require.NoError(t, b.Save(ctx, sampleData()))

	only := types.PartitionedEntries{
		"minecraft_overworld": sampleData()["minecraft_overworld"][:1],
	}
	require.NoError(t, b.Save(ctx, only))

	loaded, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, only, loaded)
}

func TestSQLiteBackendEmpty(t *testing.T) {
	b := setupTestDB(t)

	loaded, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestSQLiteBackendPersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "markers.db")

	b, err := NewSQLiteBackend(path)
	require.NoError(t, err)
	require.NoError(t, b.Save(ctx, sampleData()))
	require.NoError(t, b.Close())

	reopened, err := NewSQLiteBackend(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	loaded, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, CountEntries(loaded))
	assert.Equal(t, path, reopened.Location())
}

func TestSQLiteBackendRequiresPath(t *testing.T) {
	_, err := NewSQLiteBackend("")
	assert.Error(t, err)
}

func TestMigrations(t *testing.T) {
	ctx := context.Background()
	b := setupTestDB(t)

	v, err := schemaVersion(ctx, b.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v.String())

	// Re-applying is a no-op
	require.NoError(t, ApplyMigrations(ctx, b.db))

	require.NoError(t, RollbackMigration(ctx, b.db))
	v, err = schemaVersion(ctx, b.db)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0", v.String())

	require.NoError(t, ApplyMigrations(ctx, b.db))
	require.NoError(t, b.Save(ctx, sampleData()))
}
