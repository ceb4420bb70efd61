// Package mcp implements the Model Context Protocol (MCP) server for signscope.
//
// The MCP server exposes five tools:
//   - search_markers: Search signs and item displays around a position
//   - cache_status: Report cache sizes and persisted entries per dimension
//   - save_cache: Write pending persisted-cache changes to storage
//   - clear_cache: Forget persisted markers for one or every dimension
//   - validate_cache: Evict persisted markers confirmed gone from loaded chunks
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Logs go to stderr; stdout carries only protocol messages.
//
// # Basic Usage
//
//	signscope serve --config signscope.yaml
//
// # Tool: search_markers
//
//	Request:
//	{
//	  "name": "search_markers",
//	  "arguments": {
//	    "query": "chest, barrel",
//	    "kind": "keyword_array",
//	    "radius": 48,
//	    "x": 120, "y": 64, "z": -300
//	  }
//	}
//
//	Response:
//	{
//	  "results": [
//	    {
//	      "position": {"x": 124, "y": 65, "z": -298},
//	      "kind": "sign",
//	      "lines": ["Chest", "Storage", "", ""],
//	      "text": "Chest Storage",
//	      "distance": 4.58,
//	      "matched": "chest",
//	      "preview": "Chest Storage",
//	      "persisted": false,
//	      "last_seen": "2026-10-18T14:25:01Z"
//	    }
//	  ],
//	  "total_results": 1,
//	  "live_count": 1,
//	  "persisted_count": 0,
//	  "evicted": 0,
//	  "partition": "minecraft_overworld"
//	}
//
// Live results always precede persisted-only results; each group is sorted
// by distance from the request position.
//
// # Error Codes
//
//	-32602  invalid parameters (unknown kind, limit out of range)
//	-32603  internal error
//	-32001  persistence disabled (save_cache)
package mcp
