// Package localcache keeps markers seen in earlier searches so they can be
// reported after their region leaves the loaded world.
//
// Entries are grouped by partition, a sanitized region identifier, and are
// unique by position within a partition. Adding an entry whose content is
// identical to the stored one does nothing, which keeps saves rare.
//
// Writes are deferred: mutations mark the cache dirty and CheckAndSave
// flushes to the storage backend only when something changed and save on
// detection is enabled. Flush ignores the policy and backs explicit saves.
//
// A failed Load never leads to the stored snapshot being replaced: the
// backend moves it aside, or saves return ErrStoreUnreadable until a Load
// succeeds.
//
//	cache := localcache.New(backend, localcache.Config{SaveOnDetection: true})
//	cache.Load(ctx)
//
//	p := cache.PartitionFor("minecraft:overworld")
//	p.Add(types.PersistedEntry{Position: pos, Lines: lines, MatchedText: "chest"})
//
//	saved, err := cache.CheckAndSave(ctx)
package localcache
