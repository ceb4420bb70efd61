// Package world defines the boundary between the search engine and the host
// world it inspects.
//
// A Scanner returns the markers currently loaded around a point; a Prober
// inspects a single position and distinguishes "nothing here" from "chunk not
// loaded". Only a confirmed absence may cause persisted data to be evicted.
//
// StaticWorld is an in-memory implementation loaded from a YAML snapshot:
//
//	dimension: minecraft:overworld
//	unloaded_chunks:
//	  - {x: 4, z: -2}
//	markers:
//	  - pos: [10, 64, 10]
//	    kind: sign
//	    lines: ["Chest", "Storage"]
package world
