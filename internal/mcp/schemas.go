package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// searchMarkersTool returns the tool definition for search_markers
func searchMarkersTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_markers",
		Description: "Search signs and item displays around a position, including markers remembered from earlier searches",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Text to match. An empty literal query returns every marker in range",
					"default":     "",
				},
				"kind": map[string]interface{}{
					"type":        "string",
					"description": "How the query is matched: literal substring, regex, comma-separated keyword_array, or a named preset",
					"enum":        []string{"literal", "regex", "keyword_array", "preset"},
					"default":     "literal",
				},
				"radius": map[string]interface{}{
					"type":        "number",
					"description": "Search radius in blocks (uses the configured default when omitted)",
					"minimum":     1,
				},
				"x": map[string]interface{}{
					"type":        "integer",
					"description": "X coordinate of the search center",
					"default":     0,
				},
				"y": map[string]interface{}{
					"type":        "integer",
					"description": "Y coordinate of the search center",
					"default":     64,
				},
				"z": map[string]interface{}{
					"type":        "integer",
					"description": "Z coordinate of the search center",
					"default":     0,
				},
				"case_sensitive": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, match case exactly (uses the configured default when omitted)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-500)",
					"default":     50,
					"minimum":     1,
					"maximum":     500,
				},
			},
		},
	}
}

// cacheStatusTool returns the tool definition for cache_status
func cacheStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "cache_status",
		Description: "Report live cache, pattern cache and persisted marker counts per dimension",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// saveCacheTool returns the tool definition for save_cache
func saveCacheTool() mcp.Tool {
	return mcp.Tool{
		Name:        "save_cache",
		Description: "Write pending changes of the persisted marker cache to storage",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// clearCacheTool returns the tool definition for clear_cache
func clearCacheTool() mcp.Tool {
	return mcp.Tool{
		Name:        "clear_cache",
		Description: "Forget persisted markers, for one dimension or for all of them",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"dimension": map[string]interface{}{
					"type":        "string",
					"description": "Dimension identifier such as minecraft:the_nether. Clears every dimension when omitted",
				},
			},
		},
	}
}

// validateCacheTool returns the tool definition for validate_cache
func validateCacheTool() mcp.Tool {
	return mcp.Tool{
		Name:        "validate_cache",
		Description: "Remove persisted markers of the current dimension that are confirmed gone from loaded chunks",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
