// Package livecache caches marker content read from the loaded world.
//
// Entries have two time bounds. Get serves an entry only while it is younger
// than the validity window (5s by default) and the world still confirms a
// marker of the same kind at that position; otherwise the entry is dropped.
// Sweep purges entries older than the expiry window (10s by default) and is
// run by Put once the cache grows past its soft limit, and periodically by
// the maintenance service.
package livecache
