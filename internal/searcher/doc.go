// Package searcher implements the marker search and reconciliation pass.
//
// A search runs in four steps:
//   - scan: the world yields the markers loaded within the radius; content is
//     resolved through the live cache and matched in parallel
//   - reconcile: every persisted entry within the radius is checked against
//     the scan. Drifted content is refreshed; entries with no scanned marker
//     are probed and evicted only when the probe confirms they are gone.
//     Entries in unloaded chunks are never evicted.
//   - record: live matches are added to the local cache
//   - supplement: persisted entries that match the query and have no live
//     counterpart are appended, subject to the supplement policy
//
// Results are live matches sorted by distance followed by persisted-only
// matches sorted by distance. The two groups are never interleaved.
//
// # Basic Usage
//
//	s := searcher.NewSearcher(world, live, matcher, local, searcher.Config{
//	    PersistenceEnabled: true,
//	    Supplement:         searcher.SupplementAlways,
//	})
//
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    Query:  types.Query{Text: "chest", Kind: types.QueryLiteral, Radius: 32},
//	    Center: playerPos,
//	})
//
//	for _, m := range resp.Results {
//	    fmt.Printf("%s %.1f %s\n", m.Position(), m.Distance(), m.Preview())
//	}
//
// A failed scan or probe never fails the search. The scan error is logged,
// reconciliation is skipped and persisted matches are still returned.
package searcher
