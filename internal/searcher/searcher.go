package searcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/signscope/internal/livecache"
	"github.com/dshills/signscope/internal/localcache"
	"github.com/dshills/signscope/internal/matcher"
	"github.com/dshills/signscope/internal/world"
	"github.com/dshills/signscope/pkg/types"
)

// SupplementPolicy decides when persisted-only markers are added to results
type SupplementPolicy string

const (
	SupplementAlways    SupplementPolicy = "always"     // Always append persisted-only matches
	SupplementWhenEmpty SupplementPolicy = "when_empty" // Only when nothing live matched, or the query matches everything
)

// ErrUnknownSupplementPolicy is returned for an unrecognized policy name
var ErrUnknownSupplementPolicy = errors.New("unknown supplement policy")

// ParseSupplementPolicy converts a string into a SupplementPolicy; empty input means always
func ParseSupplementPolicy(s string) (SupplementPolicy, error) {
	switch SupplementPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", SupplementAlways:
		return SupplementAlways, nil
	case SupplementWhenEmpty:
		return SupplementWhenEmpty, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSupplementPolicy, s)
	}
}

const (
	// DefaultRadius is used when a request carries no radius
	DefaultRadius = 64.0
	// DefaultMaxRadius caps the requested radius
	DefaultMaxRadius = 512.0
)

// Config controls search behavior
type Config struct {
	// PersistenceEnabled turns on reconciliation, recording and supplements
	PersistenceEnabled bool
	Supplement         SupplementPolicy
	// Workers bounds parallel matching of scanned markers
	Workers       int
	DefaultRadius float64
	MaxRadius     float64
}

func (c *Config) defaults() {
	if c.Supplement == "" {
		c.Supplement = SupplementAlways
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.DefaultRadius <= 0 {
		c.DefaultRadius = DefaultRadius
	}
	if c.MaxRadius <= 0 {
		c.MaxRadius = DefaultMaxRadius
	}
}

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query  types.Query
	Center types.Position
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	// Results holds live matches by distance, then persisted-only matches by distance
	Results        []types.Marker
	LiveCount      int
	PersistedCount int
	Scanned        int
	Updated        int // Persisted entries refreshed from live content
	Evicted        int // Persisted entries confirmed gone
	Recorded       int // Live matches newly written to the local cache
	Partition      types.PartitionKey
	Radius         float64
	Duration       time.Duration
}

// Searcher runs queries against the loaded world and reconciles the local cache
type Searcher struct {
	world   world.World
	live    *livecache.Cache
	matcher *matcher.Matcher
	local   *localcache.Cache
	cfg     Config
	now     func() time.Time
}

// NewSearcher creates a new Searcher instance. local may be nil when
// persistence is disabled.
func NewSearcher(w world.World, live *livecache.Cache, m *matcher.Matcher, local *localcache.Cache, cfg Config) *Searcher {
	cfg.defaults()
	if m == nil {
		m = matcher.New(nil, matcher.Presets{})
	}
	if local == nil {
		cfg.PersistenceEnabled = false
	}
	return &Searcher{
		world:   w,
		live:    live,
		matcher: m,
		local:   local,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Matcher returns the query matcher
func (s *Searcher) Matcher() *matcher.Matcher {
	return s.matcher
}

// liveMatch is a scanned marker with its resolved content and match outcome
type liveMatch struct {
	snapshot world.MarkerSnapshot
	content  types.MarkerContent
	fragment string
	matched  bool
}

// Search scans the world around req.Center, matches the query, reconciles the
// local cache and returns the ordered results. Only an invalid request or a
// cancelled context produce an error; other failures reduce the result.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := s.now()

	// Validate searcher state
	if s.world == nil {
		return nil, fmt.Errorf("world not initialized")
	}

	// Validate request
	if err := s.validateRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	q := req.Query
	if !s.matcher.PatternValid(q) {
		slog.Warn("invalid regex, using literal search", "pattern", q.Text)
	}

	response := &SearchResponse{Radius: q.Radius}

	scanned, scanOK, err := s.scan(ctx, req)
	if err != nil {
		return nil, err
	}
	response.Scanned = len(scanned)

	// At most one live result per position
	live := make(map[types.Position]liveMatch, len(scanned))
	for _, m := range scanned {
		if m.matched {
			live[m.snapshot.Position] = m
		}
	}

	var partition *localcache.Partition
	if s.cfg.PersistenceEnabled {
		partition = s.local.PartitionFor(s.world.Dimension())
		response.Partition = partition.Key()

		if scanOK {
			response.Updated, response.Evicted = s.reconcile(ctx, partition, req, scanned)
			response.Recorded = s.record(partition, live)
		} else {
			slog.Debug("skipping reconciliation after failed scan", "partition", partition.Key())
		}
	}

	now := s.now()
	results := make([]types.Marker, 0, len(live))
	for pos, m := range live {
		results = append(results, types.NewMarker(types.MarkerParams{
			Position: pos,
			Kind:     m.content.Kind,
			Lines:    m.content.Lines,
			Fragment: m.fragment,
			LastSeen: now,
		}, req.Center))
	}
	sortByDistance(results)
	response.LiveCount = len(results)

	if partition != nil && s.includeSupplement(q, len(results)) {
		supplement := s.supplement(partition, req, live)
		sortByDistance(supplement)
		response.PersistedCount = len(supplement)
		results = append(results, supplement...)
	}

	response.Results = results
	response.Duration = s.now().Sub(startTime)

	slog.Debug("search completed",
		"query", q.Text,
		"kind", q.Kind,
		"radius", q.Radius,
		"live", response.LiveCount,
		"persisted", response.PersistedCount,
		"updated", response.Updated,
		"evicted", response.Evicted,
		"duration", response.Duration,
	)

	return response, nil
}

// scan reads the loaded markers around the center and matches them in
// parallel. A failed scan is logged and reported through ok so reconciliation
// can be skipped; only context cancellation is returned as an error.
func (s *Searcher) scan(ctx context.Context, req SearchRequest) ([]liveMatch, bool, error) {
	snapshots, err := s.world.Scan(ctx, req.Center, req.Query.Radius)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, false, ctxErr
		}
		slog.Warn("world scan failed", "center", req.Center.String(), "radius", req.Query.Radius, "error", err)
		return nil, false, nil
	}

	matches := make([]liveMatch, len(snapshots))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	for i, snap := range snapshots {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content := s.resolveContent(gctx, snap)
			fragment, ok := s.matcher.Match(content.Text(), req.Query)
			matches[i] = liveMatch{snapshot: snap, content: content, fragment: fragment, matched: ok}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, err
	}

	return matches, true, nil
}

// resolveContent returns the snapshot content through the live cache
func (s *Searcher) resolveContent(ctx context.Context, snap world.MarkerSnapshot) types.MarkerContent {
	if s.live == nil {
		return snap.Content().Clone()
	}
	return s.live.GetOrCompute(ctx, snap.Position, func() types.MarkerContent {
		return snap.Content()
	})
}

// reconcile repairs drifted entries and evicts entries confirmed gone.
// Every persisted entry within range is examined, whether or not the query matched it.
func (s *Searcher) reconcile(ctx context.Context, partition *localcache.Partition, req SearchRequest, scanned []liveMatch) (updated, evicted int) {
	byPos := make(map[types.Position]liveMatch, len(scanned))
	for _, m := range scanned {
		byPos[m.snapshot.Position] = m
	}

	for _, entry := range partition.WithinRadius(req.Center, req.Query.Radius) {
		if m, ok := byPos[entry.Position]; ok {
			if entry.Content().Equal(m.content) {
				continue
			}
			matched := entry.MatchedText
			if m.matched {
				matched = m.fragment
			}
			if partition.Update(entry.Position, types.PersistedEntry{
				Kind:        m.content.Kind,
				Lines:       m.content.Lines,
				MatchedText: matched,
			}) {
				slog.Debug("refreshed persisted marker", "partition", partition.Key(), "pos", entry.Position.String())
				updated++
			}
			continue
		}

		probe := s.world.Probe(ctx, entry.Position)
		if !probe.ConfirmsAbsence(entry.Content().Kind) {
			if probe.State == world.ProbeUnknown {
				slog.Debug("cannot confirm persisted marker, keeping", "partition", partition.Key(), "pos", entry.Position.String())
			}
			continue
		}
		if partition.RemoveIfUnchanged(entry) {
			if s.live != nil {
				s.live.Invalidate(entry.Position)
			}
			slog.Info("evicted persisted marker", "partition", partition.Key(), "pos", entry.Position.String(), "state", probe.State.String())
			evicted++
		}
	}
	return updated, evicted
}

// record writes live matches to the local cache; identical entries are skipped
func (s *Searcher) record(partition *localcache.Partition, live map[types.Position]liveMatch) int {
	recorded := 0
	for pos, m := range live {
		if partition.Add(types.PersistedEntry{
			Position:    pos,
			Kind:        m.content.Kind,
			Lines:       m.content.Lines,
			MatchedText: m.fragment,
		}) {
			recorded++
		}
	}
	return recorded
}

func (s *Searcher) includeSupplement(q types.Query, liveCount int) bool {
	switch s.cfg.Supplement {
	case SupplementWhenEmpty:
		return liveCount == 0 || q.MatchesEverything()
	default:
		return true
	}
}

// supplement returns persisted entries within range that match the query and
// have no live result at their position
func (s *Searcher) supplement(partition *localcache.Partition, req SearchRequest, live map[types.Position]liveMatch) []types.Marker {
	var out []types.Marker
	for _, entry := range partition.WithinRadius(req.Center, req.Query.Radius) {
		if _, ok := live[entry.Position]; ok {
			continue
		}
		fragment, ok := s.matcher.Match(entry.Text(), req.Query)
		if !ok {
			continue
		}
		out = append(out, types.NewMarker(types.MarkerParams{
			Position:  entry.Position,
			Kind:      entry.Content().Kind,
			Lines:     entry.Lines,
			Fragment:  fragment,
			Persisted: true,
			LastSeen:  entry.UpdatedAt,
		}, req.Center))
	}
	return out
}

// validateRequest fills defaults and rejects malformed queries
func (s *Searcher) validateRequest(req *SearchRequest) error {
	if req.Query.Kind == "" {
		req.Query.Kind = types.QueryLiteral // Default kind
	}

	if req.Query.Radius <= 0 {
		req.Query.Radius = s.cfg.DefaultRadius
	}

	if req.Query.Radius > s.cfg.MaxRadius {
		req.Query.Radius = s.cfg.MaxRadius
	}

	return req.Query.Validate()
}

// sortByDistance orders markers by ascending distance, ties broken by position
func sortByDistance(markers []types.Marker) {
	sort.Slice(markers, func(i, j int) bool {
		di, dj := markers[i].Distance(), markers[j].Distance()
		if di != dj {
			return di < dj
		}
		return markers[i].Position().Less(markers[j].Position())
	})
}
