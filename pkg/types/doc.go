// Package types provides shared type definitions for the signscope search engine.
//
// # Markers
//
// Marker is a sign or item display found by a search. It is built once by
// NewMarker and is read-only afterwards:
//
//	m := types.NewMarker(types.MarkerParams{
//	    Position: types.Position{X: 10, Y: 64, Z: 10},
//	    Kind:     types.KindSign,
//	    Lines:    []string{"Chest", "Storage"},
//	    Fragment: "chest",
//	}, playerPos)
//
//	m.CombinedText() // "Chest Storage"
//	m.Distance()     // distance to playerPos at construction time
//
// # Queries
//
// Query pairs the query text with one of four kinds: literal, regex,
// keyword_array and preset. The empty literal matches every marker.
//
// # Persistence
//
// PersistedEntry is a marker remembered across sessions. Entries are grouped
// by PartitionKey, produced by SanitizePartition from an arbitrary region
// identifier such as "minecraft:the_nether" or a third-party dimension name.
package types
