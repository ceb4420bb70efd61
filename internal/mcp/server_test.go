package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/signscope/internal/app"
	"github.com/dshills/signscope/internal/config"
	"github.com/dshills/signscope/pkg/types"
)

const worldYAML = `
dimension: "minecraft:overworld"
markers:
  - pos: [3, 64, 0]
    kind: sign
    lines: ["Chest", "Storage"]
  - pos: [10, 64, 0]
    kind: sign
    lines: ["Barrel room"]
  - pos: [0, 64, 6]
    kind: item_display
    lines: ["Diamond Sword"]
`

func setupTestServer(t *testing.T, persistence bool) *Server {
	t.Helper()
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "world.yaml")
	require.NoError(t, os.WriteFile(snapshot, []byte(worldYAML), 0644))

	cfg := config.Default()
	cfg.Persistence.Enabled = persistence
	cfg.Persistence.Dir = filepath.Join(dir, "data")
	cfg.World.SnapshotPath = snapshot

	a, err := app.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	s, err := NewServer(a)
	require.NoError(t, err)
	return s
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	if args != nil {
		req.Params.Arguments = args
	}
	return req
}

func decodeResult(t *testing.T, res *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func TestNewServer(t *testing.T) {
	_, err := NewServer(nil)
	assert.Error(t, err)

	s := setupTestServer(t, true)
	assert.NotNil(t, s.mcp, "MCP server should be initialized")
	assert.NotNil(t, s.app, "Engine should be attached")
}

func TestHandleSearchMarkers(t *testing.T) {
	ctx := context.Background()
	s := setupTestServer(t, true)

	t.Run("keyword search", func(t *testing.T) {
		res, err := s.handleSearchMarkers(ctx, callRequest(map[string]interface{}{
			"query":  "chest, barrel",
			"kind":   "keyword_array",
			"radius": float64(20),
		}))
		require.NoError(t, err)

		out := decodeResult(t, res)
		assert.Equal(t, float64(2), out["total_results"])
		assert.Equal(t, float64(2), out["live_count"])
		assert.Equal(t, "minecraft_overworld", out["partition"])

		results := out["results"].([]interface{})
		first := results[0].(map[string]interface{})
		assert.Equal(t, "Chest Storage", first["text"])
	})

	t.Run("limit truncates", func(t *testing.T) {
		res, err := s.handleSearchMarkers(ctx, callRequest(map[string]interface{}{
			"query":  "",
			"radius": float64(20),
			"limit":  float64(1),
		}))
		require.NoError(t, err)

		out := decodeResult(t, res)
		assert.Equal(t, float64(3), out["total_results"])
		assert.Equal(t, true, out["truncated"])
		assert.Len(t, out["results"], 1)
	})

	t.Run("case sensitive", func(t *testing.T) {
		res, err := s.handleSearchMarkers(ctx, callRequest(map[string]interface{}{
			"query":          "chest",
			"radius":         float64(20),
			"case_sensitive": true,
		}))
		require.NoError(t, err)
		// The persisted entry recorded above matches neither
		assert.Equal(t, float64(0), decodeResult(t, res)["total_results"])
	})

	t.Run("no arguments", func(t *testing.T) {
		res, err := s.handleSearchMarkers(ctx, callRequest(nil))
		require.NoError(t, err)
		assert.Equal(t, float64(3), decodeResult(t, res)["total_results"])
	})
}

func TestHandleSearchMarkersInvalidParams(t *testing.T) {
	ctx := context.Background()
	s := setupTestServer(t, false)

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"unknown kind", map[string]interface{}{"kind": "fuzzy"}},
		{"negative radius", map[string]interface{}{"radius": float64(-5)}},
		{"limit too large", map[string]interface{}{"limit": float64(1000)}},
		{"limit zero", map[string]interface{}{"limit": float64(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.handleSearchMarkers(ctx, callRequest(tt.args))
			assert.True(t, IsMCPError(err, ErrorCodeInvalidParams), "got %v", err)
		})
	}

	var req mcp.CallToolRequest
	req.Params.Arguments = "not a map"
	_, err := s.handleSearchMarkers(ctx, req)
	assert.True(t, IsMCPError(err, ErrorCodeInvalidParams))
}

func TestHandleCacheLifecycle(t *testing.T) {
	ctx := context.Background()
	s := setupTestServer(t, true)

	_, err := s.handleSearchMarkers(ctx, callRequest(map[string]interface{}{"query": "", "radius": float64(20)}))
	require.NoError(t, err)

	res, err := s.handleCacheStatus(ctx, callRequest(nil))
	require.NoError(t, err)
	status := decodeResult(t, res)
	persisted := status["persisted"].(map[string]interface{})
	assert.Equal(t, float64(3), persisted["total"])
	assert.Equal(t, true, persisted["dirty"])
	assert.Equal(t, float64(3), status["live_entries"])

	res, err = s.handleSaveCache(ctx, callRequest(nil))
	require.NoError(t, err)
	saved := decodeResult(t, res)
	assert.Equal(t, true, saved["saved"])
	assert.Equal(t, float64(3), saved["entries"])

	res, err = s.handleCacheStatus(ctx, callRequest(nil))
	require.NoError(t, err)
	status = decodeResult(t, res)
	assert.Equal(t, false, status["persisted"].(map[string]interface{})["dirty"])
	assert.Contains(t, status, "last_saved_at")

	s.app.World.Remove(types.Position{X: 3, Y: 64, Z: 0})
	res, err = s.handleValidateCache(ctx, callRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, float64(1), decodeResult(t, res)["evicted"])

	res, err = s.handleClearCache(ctx, callRequest(map[string]interface{}{"dimension": "minecraft:the_nether"}))
	require.NoError(t, err)
	assert.Equal(t, float64(0), decodeResult(t, res)["removed"])

	res, err = s.handleClearCache(ctx, callRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, float64(2), decodeResult(t, res)["removed"])
}

func TestHandleSaveCacheDisabled(t *testing.T) {
	s := setupTestServer(t, false)
	_, err := s.handleSaveCache(context.Background(), callRequest(nil))
	assert.True(t, IsMCPError(err, ErrorCodePersistenceDisabled))
}

func TestMCPError(t *testing.T) {
	err := newMCPError(ErrorCodeInternalError, "boom", nil)
	assert.Equal(t, "MCP error -32603: boom", err.Error())
	assert.False(t, IsMCPError(assert.AnError, ErrorCodeInternalError))
}

func TestArgumentHelpers(t *testing.T) {
	args := map[string]interface{}{
		"f": float64(2.5),
		"i": 3,
		"s": "text",
	}
	assert.Equal(t, 2, getIntDefault(args, "f", 0))
	assert.Equal(t, 3, getIntDefault(args, "i", 0))
	assert.Equal(t, 7, getIntDefault(args, "missing", 7))
	assert.Equal(t, 2.5, getFloatDefault(args, "f", 0))
	assert.Equal(t, 3.0, getFloatDefault(args, "i", 0))
	assert.Equal(t, "text", getStringDefault(args, "s", ""))
	assert.Equal(t, "d", getStringDefault(args, "f", "d"))
}
