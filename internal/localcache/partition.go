package localcache

import (
	"github.com/dshills/signscope/pkg/types"
)

// Partition is a view of one region's entries. All methods are safe for
// concurrent use; readers see a partition either before or after a mutation.
type Partition struct {
	c   *Cache
	key types.PartitionKey
}

// Key returns the partition key
func (p *Partition) Key() types.PartitionKey {
	return p.key
}

// Add stores e, replacing any entry at the same position. It is a no-op when
// the stored entry already has identical content, and reports whether it wrote.
func (p *Partition) Add(e types.PersistedEntry) bool {
	if e.Kind == "" {
		e.Kind = types.KindSign
	}

	p.c.mu.Lock()
	defer p.c.mu.Unlock()

	part := p.c.partitions[p.key]
	if cur, ok := part[e.Position]; ok && cur.SameContent(e) {
		return false
	}
	if part == nil {
		part = make(partition)
		p.c.partitions[p.key] = part
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = p.c.now()
	}
	part[e.Position] = e.Clone()
	p.c.generation++
	return true
}

// Update replaces the entry at pos with e when one exists and its content
// differs. The stored entry keeps pos even if e names another position.
func (p *Partition) Update(pos types.Position, e types.PersistedEntry) bool {
	if e.Kind == "" {
		e.Kind = types.KindSign
	}
	e.Position = pos

	p.c.mu.Lock()
	defer p.c.mu.Unlock()

	part := p.c.partitions[p.key]
	cur, ok := part[pos]
	if !ok || cur.SameContent(e) {
		return false
	}
	e.UpdatedAt = p.c.now()
	part[pos] = e.Clone()
	p.c.generation++
	return true
}

// Remove deletes the entry at pos and reports whether one existed
func (p *Partition) Remove(pos types.Position) bool {
	p.c.mu.Lock()
	defer p.c.mu.Unlock()

	part := p.c.partitions[p.key]
	if _, ok := part[pos]; !ok {
		return false
	}
	delete(part, pos)
	p.c.generation++
	return true
}

// RemoveIfUnchanged deletes the entry at e.Position only if it still holds
// e's content, so a concurrent update is not lost
func (p *Partition) RemoveIfUnchanged(e types.PersistedEntry) bool {
	p.c.mu.Lock()
	defer p.c.mu.Unlock()

	part := p.c.partitions[p.key]
	cur, ok := part[e.Position]
	if !ok || !cur.SameContent(e) {
		return false
	}
	delete(part, e.Position)
	p.c.generation++
	return true
}

// Get returns the entry at pos
func (p *Partition) Get(pos types.Position) (types.PersistedEntry, bool) {
	p.c.mu.RLock()
	defer p.c.mu.RUnlock()

	e, ok := p.c.partitions[p.key][pos]
	if !ok {
		return types.PersistedEntry{}, false
	}
	return e.Clone(), true
}

// All returns every entry, sorted by position
func (p *Partition) All() []types.PersistedEntry {
	p.c.mu.RLock()
	defer p.c.mu.RUnlock()
	return sortedEntries(p.c.partitions[p.key], nil)
}

// WithinRadius returns the entries within radius of center, sorted by position
func (p *Partition) WithinRadius(center types.Position, radius float64) []types.PersistedEntry {
	p.c.mu.RLock()
	defer p.c.mu.RUnlock()
	return sortedEntries(p.c.partitions[p.key], func(e types.PersistedEntry) bool {
		return e.Position.Within(center, radius)
	})
}

// Len returns the number of entries in the partition
func (p *Partition) Len() int {
	p.c.mu.RLock()
	defer p.c.mu.RUnlock()
	return len(p.c.partitions[p.key])
}
