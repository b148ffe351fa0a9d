package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/scrypster/warmconnector/internal/cache"
	"github.com/scrypster/warmconnector/internal/storage"
	"github.com/scrypster/warmconnector/pkg/types"
)

var searchTracer = otel.Tracer("warmconnector.engine")

// Search defaults.
const (
	DefaultMaxHops       = 2
	MaxSupportedHops     = 3
	DefaultResultLimit   = 10
	DefaultMaxCandidates = 5
)

// PathOptions tunes a single graph search.
type PathOptions struct {
	MaxHops         int
	MinStrength     int
	IncludeWeakTies bool
	ResultLimit     int
	MaxCandidates   int
}

func (o PathOptions) normalized() PathOptions {
	if o.MaxHops <= 0 {
		o.MaxHops = DefaultMaxHops
	}
	if o.MaxHops > MaxSupportedHops {
		o.MaxHops = MaxSupportedHops
	}
	if o.ResultLimit <= 0 {
		o.ResultLimit = DefaultResultLimit
	}
	if o.MaxCandidates <= 0 {
		o.MaxCandidates = DefaultMaxCandidates
	}
	o.MinStrength = types.ClampStrength(o.MinStrength)
	return o
}

// TargetQuery describes a target by attributes rather than id.
type TargetQuery struct {
	Name    string
	Company string
	Title   string
}

// PathSearchResult is the output of a graph search.
type PathSearchResult struct {
	// Paths are ranked: hops ascending, strength descending, then via id.
	Paths []types.ConnectionPath

	// Candidates are the target people considered. FindPaths reports the
	// single target when it exists.
	Candidates []types.PersonSummary

	// SourceFound is false when the source person is not in the store.
	SourceFound bool

	// Truncated is set when a deep search stopped at its bounds.
	Truncated bool
}

// ProfileLooker is implemented by stores that serve batch person lookups
// from a cache. GraphSearch prefers it over GetPersonsByIDs.
type ProfileLooker interface {
	BatchProfileLookup(ctx context.Context, ids []string) (map[string]*types.Person, error)
}

// GraphSearch finds ranked connection paths between people.
type GraphSearch struct {
	store  storage.PersonStore
	cache  *cache.PathCache
	bounds SearchBounds
	logger *slog.Logger
}

// GraphSearchOption configures a GraphSearch.
type GraphSearchOption func(*GraphSearch)

// WithPathCache memoizes FindPaths results in c.
func WithPathCache(c *cache.PathCache) GraphSearchOption {
	return func(g *GraphSearch) { g.cache = c }
}

// WithSearchBounds sets the limits for searches deeper than two hops.
func WithSearchBounds(b SearchBounds) GraphSearchOption {
	return func(g *GraphSearch) { g.bounds = b }
}

// WithGraphLogger sets the logger.
func WithGraphLogger(l *slog.Logger) GraphSearchOption {
	return func(g *GraphSearch) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGraphSearch creates a graph search over store.
func NewGraphSearch(store storage.PersonStore, opts ...GraphSearchOption) *GraphSearch {
	g := &GraphSearch{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	g.bounds.Normalize()
	return g
}

// FindPaths returns ranked paths from fromID to toID.
//
// A self-search returns one zero-hop SamePerson path without touching the
// store. An unknown source yields an empty result and no error.
func (g *GraphSearch) FindPaths(ctx context.Context, fromID, toID string, opts PathOptions) (PathSearchResult, error) {
	return g.findPaths(ctx, fromID, toID, opts.normalized(), nil)
}

func (g *GraphSearch) findPaths(ctx context.Context, fromID, toID string, opts PathOptions, st *SearchTrace) (PathSearchResult, error) {
	if fromID == "" || toID == "" {
		return PathSearchResult{}, fmt.Errorf("engine: FindPaths: ids are required: %w", storage.ErrInvalidInput)
	}

	if fromID == toID {
		self := types.ConnectionPath{
			Path:          []types.PathNode{{PersonSummary: types.PersonSummary{ID: fromID}}},
			Hops:          0,
			TotalStrength: types.MaxStrength,
			TargetID:      toID,
			SamePerson:    true,
		}
		st.PathFound(toID, "", 0, types.MaxStrength)
		return PathSearchResult{
			Paths:       []types.ConnectionPath{self},
			Candidates:  []types.PersonSummary{{ID: toID}},
			SourceFound: true,
		}, nil
	}

	ctx, span := searchTracer.Start(ctx, "GraphSearch.FindPaths",
		trace.WithAttributes(
			attribute.String("from_id", fromID),
			attribute.String("to_id", toID),
			attribute.Int("max_hops", opts.MaxHops),
		),
	)
	defer span.End()

	key, keyErr := cache.Key(string(cache.Pathfinding), pathCacheParams{
		From: fromID, To: toID, MaxHops: opts.MaxHops,
		MinStrength: opts.MinStrength, IncludeWeakTies: opts.IncludeWeakTies,
		ResultLimit: opts.ResultLimit,
	})
	if g.cache != nil && keyErr == nil && st == nil {
		if v, ok := g.cache.Get(key); ok {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			cached := v.(PathSearchResult)
			cached.Paths = append([]types.ConnectionPath(nil), cached.Paths...)
			return cached, nil
		}
	}

	var gen uint64
	if g.cache != nil {
		gen = g.cache.Generation()
	}
	res, err := g.search(ctx, fromID, toID, opts, st)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return PathSearchResult{}, err
	}
	span.SetAttributes(
		attribute.Int("path_count", len(res.Paths)),
		attribute.Bool("truncated", res.Truncated),
	)

	if g.cache != nil && keyErr == nil && !res.Truncated {
		stored := res
		stored.Paths = append([]types.ConnectionPath(nil), res.Paths...)
		g.cache.SetIfGeneration(key, stored, gen)
	}
	return res, nil
}

// pathCacheParams is the argument object hashed into pathfinding keys.
type pathCacheParams struct {
	From            string
	To              string
	MaxHops         int
	MinStrength     int
	IncludeWeakTies bool
	ResultLimit     int
}

// rawPath is a path before people are attached.
type rawPath struct {
	ids       []string
	relTypes  []types.RelationshipType
	strengths []int
}

func (g *GraphSearch) search(ctx context.Context, fromID, toID string, opts PathOptions, st *SearchTrace) (PathSearchResult, error) {
	var raws []rawPath

	direct, err := g.directEdge(ctx, fromID, toID)
	if err != nil {
		return PathSearchResult{}, err
	}
	if direct != nil {
		raws = append(raws, rawPath{
			ids:       []string{fromID, toID},
			relTypes:  []types.RelationshipType{direct.Type},
			strengths: []int{direct.Strength},
		})
	}

	if opts.MaxHops >= 2 {
		mutuals, err := g.store.FindTwoHopEdges(ctx, fromID, toID)
		if err != nil {
			return PathSearchResult{}, fmt.Errorf("engine: two-hop search: %w", err)
		}
		for _, m := range mutuals {
			raws = append(raws, rawPath{
				ids:       []string{fromID, m.MiddleID, toID},
				relTypes:  []types.RelationshipType{m.Type1, m.Type2},
				strengths: []int{m.Strength1, m.Strength2},
			})
		}
	}

	truncated := false
	if opts.MaxHops >= 3 {
		if lister, ok := g.store.(storage.NeighborLister); ok {
			deep, stopped, err := g.threeHop(ctx, lister, fromID, toID, st)
			if err != nil {
				return PathSearchResult{}, err
			}
			raws = append(raws, deep...)
			truncated = stopped
		}
	}

	ids := []string{fromID, toID}
	for _, r := range raws {
		ids = append(ids, r.ids...)
	}
	people, err := g.lookupPeople(ctx, ids)
	if err != nil {
		return PathSearchResult{}, fmt.Errorf("engine: person lookup: %w", err)
	}

	res := PathSearchResult{Truncated: truncated}
	if _, ok := people[fromID]; !ok {
		// Unknown source: nothing to report.
		return res, nil
	}
	res.SourceFound = true
	if target, ok := people[toID]; ok {
		res.Candidates = []types.PersonSummary{target.Summary()}
	}

	seen := make(map[string]bool, len(raws))
	for _, r := range raws {
		p := buildPath(r, people)
		if seen[p.Via] {
			st.FilteredOut(toID, p.Via, "duplicate intermediate")
			continue
		}
		seen[p.Via] = true
		st.PathFound(toID, p.Via, p.Hops, p.TotalStrength)

		if !opts.IncludeWeakTies && p.TotalStrength < opts.MinStrength {
			st.FilteredOut(toID, p.Via, fmt.Sprintf("strength %d below minimum %d", p.TotalStrength, opts.MinStrength))
			continue
		}
		res.Paths = append(res.Paths, p)
	}

	SortPaths(res.Paths)
	if len(res.Paths) > opts.ResultLimit {
		res.Paths = res.Paths[:opts.ResultLimit]
	}
	return res, nil
}

// directEdge looks the edge up in both directions and returns the stronger.
func (g *GraphSearch) directEdge(ctx context.Context, fromID, toID string) (*types.RelationshipEdge, error) {
	var best *types.RelationshipEdge
	for _, pair := range [2][2]string{{fromID, toID}, {toID, fromID}} {
		edge, err := g.store.FindDirectEdge(ctx, pair[0], pair[1])
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("engine: direct edge: %w", err)
		}
		if best == nil || edge.Strength > best.Strength {
			best = edge
		}
	}
	return best, nil
}

// threeHop expands the source's strongest neighbors and looks for two-hop
// routes from each of them to the target. It stops early, reporting
// stopped=true, when the search bounds are reached.
func (g *GraphSearch) threeHop(ctx context.Context, lister storage.NeighborLister, fromID, toID string, st *SearchTrace) (paths []rawPath, stopped bool, err error) {
	checker := NewBoundsChecker(g.bounds)

	neighbors, err := lister.FindNeighbors(ctx, fromID, g.bounds.MaxNodes)
	if err != nil {
		return nil, false, fmt.Errorf("engine: neighbor expansion: %w", err)
	}

	for _, n := range neighbors {
		if n.PersonID == toID || n.PersonID == fromID {
			continue
		}
		if err := checker.CanContinue(ctx); err != nil {
			if isCancellation(err) {
				return nil, false, err
			}
			st.BoundsHit(err.Error())
			g.logger.Debug("deep search stopped early", "from", fromID, "to", toID, "reason", err)
			return paths, true, nil
		}
		checker.RecordNode()

		legs, err := g.store.FindTwoHopEdges(ctx, n.PersonID, toID)
		if err != nil {
			return nil, false, fmt.Errorf("engine: three-hop search via %s: %w", n.PersonID, err)
		}
		checker.RecordEdges(len(legs))

		for _, l := range legs {
			if l.MiddleID == fromID {
				continue
			}
			paths = append(paths, rawPath{
				ids:       []string{fromID, n.PersonID, l.MiddleID, toID},
				relTypes:  []types.RelationshipType{n.Type, l.Type1, l.Type2},
				strengths: []int{n.Strength, l.Strength1, l.Strength2},
			})
		}
	}
	return paths, false, nil
}

func (g *GraphSearch) lookupPeople(ctx context.Context, ids []string) (map[string]*types.Person, error) {
	ids = storage.DedupeIDs(ids)
	if pl, ok := g.store.(ProfileLooker); ok {
		return pl.BatchProfileLookup(ctx, ids)
	}
	return g.store.GetPersonsByIDs(ctx, ids)
}

// buildPath attaches person summaries to a raw path. People missing from
// the map keep their id with empty attributes.
func buildPath(r rawPath, people map[string]*types.Person) types.ConnectionPath {
	nodes := make([]types.PathNode, len(r.ids))
	for i, id := range r.ids {
		summary := types.PersonSummary{ID: id}
		if p, ok := people[id]; ok {
			summary = p.Summary()
		}
		nodes[i] = types.PathNode{PersonSummary: summary}
		if i > 0 {
			nodes[i].RelationshipType = r.relTypes[i-1]
			nodes[i].Strength = types.ClampStrength(r.strengths[i-1])
		}
	}

	hops := len(r.ids) - 1
	return types.ConnectionPath{
		Path:          nodes,
		Hops:          hops,
		TotalStrength: CombineStrengths(r.strengths...),
		TargetID:      r.ids[hops],
		Via:           strings.Join(r.ids[1:hops], ","),
	}
}

// SortPaths orders paths by hops ascending, strength descending, then via
// and target id for a stable result.
func SortPaths(paths []types.ConnectionPath) {
	sort.SliceStable(paths, func(i, j int) bool {
		a, b := paths[i], paths[j]
		if a.Hops != b.Hops {
			return a.Hops < b.Hops
		}
		if a.TotalStrength != b.TotalStrength {
			return a.TotalStrength > b.TotalStrength
		}
		if a.Via != b.Via {
			return a.Via < b.Via
		}
		return a.TargetID < b.TargetID
	})
}

// FindPathsToTarget resolves target candidates by name and company (title
// is filtered in process), searches paths to each of up to MaxCandidates
// candidates and merges the ranked results.
func (g *GraphSearch) FindPathsToTarget(ctx context.Context, fromID string, target TargetQuery, opts PathOptions) (PathSearchResult, error) {
	return g.findPathsToTarget(ctx, fromID, target, opts.normalized(), nil)
}

func (g *GraphSearch) findPathsToTarget(ctx context.Context, fromID string, target TargetQuery, opts PathOptions, st *SearchTrace) (PathSearchResult, error) {
	ctx, span := searchTracer.Start(ctx, "GraphSearch.FindPathsToTarget",
		trace.WithAttributes(
			attribute.String("from_id", fromID),
			attribute.String("target_name", target.Name),
		),
	)
	defer span.End()

	st.SearchStarted(strings.TrimSpace(strings.Join([]string{target.Name, target.Company, target.Title}, " ")))

	candidates, err := g.resolveCandidates(ctx, target, opts.MaxCandidates, st)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return PathSearchResult{}, err
	}
	st.CandidatesFound(len(candidates))

	// The searcher is only the target when nobody else matches; otherwise
	// they share the name with the people actually being looked for.
	if len(candidates) == 1 && candidates[0].ID == fromID {
		self, _ := g.findPaths(ctx, fromID, fromID, opts, st)
		self.Paths[0].Path[0].PersonSummary = candidates[0].Summary()
		self.Candidates = []types.PersonSummary{candidates[0].Summary()}
		return self, nil
	}
	others := candidates[:0:0]
	for _, c := range candidates {
		if c.ID != fromID {
			others = append(others, c)
		}
	}
	candidates = others

	res := PathSearchResult{SourceFound: true}
	for _, c := range candidates {
		res.Candidates = append(res.Candidates, c.Summary())
	}
	if len(candidates) == 0 {
		return res, nil
	}

	perTarget := opts
	perTarget.ResultLimit = opts.ResultLimit * len(candidates)
	for _, c := range candidates {
		sub, err := g.findPaths(ctx, fromID, c.ID, perTarget, st)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return PathSearchResult{}, err
		}
		if !sub.SourceFound {
			res.SourceFound = false
			return res, nil
		}
		res.Paths = append(res.Paths, sub.Paths...)
		res.Truncated = res.Truncated || sub.Truncated
	}

	SortPaths(res.Paths)
	if len(res.Paths) > opts.ResultLimit {
		res.Paths = res.Paths[:opts.ResultLimit]
	}
	st.ResultsReturned(len(res.Paths))
	span.SetAttributes(attribute.Int("candidate_count", len(candidates)), attribute.Int("path_count", len(res.Paths)))
	return res, nil
}

// resolveCandidates finds people matching the target, applying the title
// filter in process and bounding the result to limit.
func (g *GraphSearch) resolveCandidates(ctx context.Context, target TargetQuery, limit int, st *SearchTrace) ([]*types.Person, error) {
	people, err := g.store.FindPeople(ctx, strings.TrimSpace(target.Name), strings.TrimSpace(target.Company))
	if err != nil {
		return nil, fmt.Errorf("engine: resolve candidates: %w", err)
	}

	title := strings.ToLower(strings.TrimSpace(target.Title))
	out := make([]*types.Person, 0, limit)
	for _, p := range people {
		if title != "" && !strings.Contains(strings.ToLower(p.Title), title) {
			st.FilteredOut(p.ID, "", "title mismatch")
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
