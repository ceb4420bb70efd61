package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/signscope/internal/app"
	"github.com/dshills/signscope/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams       = -32602 // Invalid method parameters
	ErrorCodeInternalError       = -32603 // Internal JSON-RPC error
	ErrorCodePersistenceDisabled = -32001 // Persistence is turned off in the configuration
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// handleSearchMarkers handles the search_markers tool invocation
func (s *Server) handleSearchMarkers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	kind := getStringDefault(args, "kind", string(types.QueryLiteral))
	if _, err := types.ParseQueryKind(kind); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid kind", map[string]interface{}{
			"param":   "kind",
			"value":   kind,
			"allowed": []string{"literal", "regex", "keyword_array", "preset"},
		})
	}

	radius := getFloatDefault(args, "radius", 0)
	if radius < 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "radius must be positive", map[string]interface{}{
			"param": "radius",
			"value": radius,
		})
	}

	limit := getIntDefault(args, "limit", defaultLimit)
	if limit < 1 || limit > maxLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("limit must be between 1 and %d", maxLimit), map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	opts := app.SearchOptions{
		Text:   getStringDefault(args, "query", ""),
		Kind:   kind,
		Radius: radius,
		Center: types.Position{
			X: getIntDefault(args, "x", 0),
			Y: getIntDefault(args, "y", 64),
			Z: getIntDefault(args, "z", 0),
		},
	}
	if v, ok := args["case_sensitive"].(bool); ok {
		opts.CaseSensitive = &v
	}

	resp, err := s.app.Search(ctx, opts)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := resp.Results
	truncated := false
	if len(results) > limit {
		results = results[:limit]
		truncated = true
	}

	response := map[string]interface{}{
		"results":         results,
		"total_results":   len(resp.Results),
		"truncated":       truncated,
		"live_count":      resp.LiveCount,
		"persisted_count": resp.PersistedCount,
		"scanned":         resp.Scanned,
		"updated":         resp.Updated,
		"evicted":         resp.Evicted,
		"recorded":        resp.Recorded,
		"partition":       resp.Partition,
		"radius":          resp.Radius,
		"duration_ms":     resp.Duration.Milliseconds(),
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleCacheStatus handles the cache_status tool invocation
func (s *Server) handleCacheStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := s.app.Status()

	response := map[string]interface{}{
		"dimension":       status.Dimension,
		"partition":       status.Partition,
		"persistence":     status.Persistence,
		"build_mode":      status.BuildMode,
		"live_entries":    status.LiveEntries,
		"pattern_entries": status.PatternsCache,
		"persisted": map[string]interface{}{
			"total":      status.Local.Total,
			"partitions": status.Local.Partitions,
			"dirty":      status.Local.Dirty,
			"location":   status.Local.Location,
		},
	}
	if !status.Local.LastSaved.IsZero() {
		response["last_saved_at"] = status.Local.LastSaved.Format("2006-01-02T15:04:05Z07:00")
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSaveCache handles the save_cache tool invocation
func (s *Server) handleSaveCache(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.app.Status().Persistence {
		return nil, newMCPError(ErrorCodePersistenceDisabled, "persistence is disabled", nil)
	}

	wasDirty := s.app.Local.Dirty()
	if err := s.app.Save(ctx); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "save failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"saved":    wasDirty,
		"entries":  s.app.Local.Stats().Total,
		"location": s.app.Backend.Location(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleClearCache handles the clear_cache tool invocation
func (s *Server) handleClearCache(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	dimension := getStringDefault(args, "dimension", "")
	removed := s.app.Clear(dimension)

	response := map[string]interface{}{
		"removed": removed,
	}
	if dimension != "" {
		response["partition"] = types.SanitizePartition(dimension)
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleValidateCache handles the validate_cache tool invocation
func (s *Server) handleValidateCache(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	evicted := s.app.Validate(ctx)

	response := map[string]interface{}{
		"partition": types.SanitizePartition(s.app.World.Dimension()),
		"evicted":   evicted,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// arguments returns the tool arguments; a call without arguments yields an empty map
func arguments(request mcp.CallToolRequest) (map[string]interface{}, error) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, nil
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	return args, nil
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// IsMCPError reports whether err carries the given MCP error code
func IsMCPError(err error, code int) bool {
	var mcpErr *MCPError
	return errors.As(err, &mcpErr) && mcpErr.Code == code
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getFloatDefault extracts a number parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := args[key].(float64); ok {
		return val
	}
	if val, ok := args[key].(int); ok {
		return float64(val)
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
