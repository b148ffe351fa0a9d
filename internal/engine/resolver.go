package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/scrypster/warmconnector/internal/cache"
	"github.com/scrypster/warmconnector/pkg/types"
)

var resolverTracer = otel.Tracer("warmconnector.resolver")

var requestValidate = validator.New()

// OpFindConnections is the monitor operation recorded for each resolver call.
const OpFindConnections = "find_connections"

// Resolver timeouts.
const (
	DefaultNarrativeTimeout  = 2 * time.Second
	DefaultEnrichmentTimeout = 3 * time.Second
)

// ValidateRequest checks req's struct tags and returns a display-ready
// message for the first failure.
func ValidateRequest(req SearchRequest) error {
	if strings.TrimSpace(req.TargetName) == "" {
		return errors.New(NarrativeInvalidRequest)
	}
	err := requestValidate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("Invalid search request: %s failed rule '%s'.", fe.StructNamespace(), fe.Tag())
	}
	return fmt.Errorf("Invalid search request: %v", err)
}

// Config tunes the resolver.
type Config struct {
	// DefaultFromPersonID is used when a request carries no FromPersonID.
	DefaultFromPersonID string

	DefaultMode   SearchMode
	MaxHops       int
	MinStrength   int
	ResultLimit   int
	MaxCandidates int

	NarrativeTimeout  time.Duration
	EnrichmentTimeout time.Duration
}

func (c *Config) normalize() {
	mode, ok := ParseSearchMode(string(c.DefaultMode))
	if !ok {
		mode = ModeSmart
	}
	c.DefaultMode = mode
	if c.MaxHops <= 0 {
		c.MaxHops = DefaultMaxHops
	}
	if c.ResultLimit <= 0 {
		c.ResultLimit = DefaultResultLimit
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = DefaultMaxCandidates
	}
	if c.NarrativeTimeout <= 0 {
		c.NarrativeTimeout = DefaultNarrativeTimeout
	}
	if c.EnrichmentTimeout <= 0 {
		c.EnrichmentTimeout = DefaultEnrichmentTimeout
	}
}

// Resolver is the single entry point for connection searches. It picks a
// strategy per request, contains every collaborator failure and caches
// whole responses.
type Resolver struct {
	search *GraphSearch
	caches *cache.Registry
	cfg    Config

	matcher  Matcher
	enricher EnrichmentProvider
	narrator NarrativeGenerator
	monitor  *PerformanceMonitor
	metrics  *Metrics
	logger   *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithMatcher sets the fuzzy matcher used by smart and comprehensive modes.
func WithMatcher(m Matcher) ResolverOption {
	return func(r *Resolver) { r.matcher = m }
}

// WithEnrichmentProvider sets the external enrichment provider.
func WithEnrichmentProvider(p EnrichmentProvider) ResolverOption {
	return func(r *Resolver) { r.enricher = p }
}

// WithNarrativeGenerator sets the optional narrative decorator.
func WithNarrativeGenerator(g NarrativeGenerator) ResolverOption {
	return func(r *Resolver) { r.narrator = g }
}

// WithMonitor records every search in m.
func WithMonitor(m *PerformanceMonitor) ResolverOption {
	return func(r *Resolver) { r.monitor = m }
}

// WithResolverMetrics exports search counts and durations.
func WithResolverMetrics(m *Metrics) ResolverOption {
	return func(r *Resolver) { r.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a resolver. caches may be nil to disable response
// caching.
func NewResolver(search *GraphSearch, caches *cache.Registry, cfg Config, opts ...ResolverOption) *Resolver {
	cfg.normalize()
	r := &Resolver{
		search: search,
		caches: caches,
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// connectionParams is the argument object hashed into connection_search keys.
type connectionParams struct {
	TargetName               string
	TargetCompany            string
	TargetTitle              string
	Mode                     SearchMode
	FromPersonID             string
	MaxHops                  int
	MinStrength              int
	IncludeWeakTies          bool
	EnableExternalEnrichment bool
}

// uncacheable carries a response that must reach every waiter but must not
// be stored.
type uncacheable struct {
	resp SearchResponse
}

func (u *uncacheable) Error() string { return "engine: response not cacheable" }

// FindConnections runs a search and always returns a well-formed response.
// ProcessingTime is measured from entry on every outcome.
func (r *Resolver) FindConnections(ctx context.Context, req SearchRequest) SearchResponse {
	start := time.Now()
	requestID := uuid.NewString()

	ctx, span := resolverTracer.Start(ctx, "Resolver.FindConnections",
		trace.WithAttributes(
			attribute.String("request_id", requestID),
			attribute.String("search_mode", string(req.SearchMode)),
		),
	)
	defer span.End()

	req, mode, err := r.prepare(req)
	if err != nil {
		resp := SearchResponse{Source: SourceInvalidRequest, Strategy: err.Error()}
		return r.finish(span, start, requestID, mode, resp, false)
	}

	if req.Options.Trace || r.caches == nil {
		return r.finish(span, start, requestID, mode, r.execute(ctx, req, mode), false)
	}

	key, err := cache.Key(string(cache.ConnectionSearch), connectionParams{
		TargetName:               strings.ToLower(req.TargetName),
		TargetCompany:            strings.ToLower(req.TargetCompany),
		TargetTitle:              strings.ToLower(req.TargetTitle),
		Mode:                     mode,
		FromPersonID:             req.UserContext.FromPersonID,
		MaxHops:                  req.Options.MaxHops,
		MinStrength:              req.Options.MinStrength,
		IncludeWeakTies:          req.Options.IncludeWeakTies,
		EnableExternalEnrichment: req.Options.EnableExternalEnrichment,
	})
	if err != nil {
		r.logger.Warn("connection search key failed, bypassing cache", "request_id", requestID, "error", err)
		return r.finish(span, start, requestID, mode, r.execute(ctx, req, mode), false)
	}

	v, hit, err := r.caches.GetOrCompute(ctx, cache.ConnectionSearch, key, func(ctx context.Context) (any, error) {
		resp := r.execute(ctx, req, mode)
		if resp.Source == SourceError {
			return nil, &uncacheable{resp: resp}
		}
		return resp, nil
	})
	if err != nil {
		var u *uncacheable
		if errors.As(err, &u) {
			return r.finish(span, start, requestID, mode, u.resp, false)
		}
		if ctx.Err() != nil {
			r.logger.Debug("connection search abandoned by caller", "request_id", requestID, "error", ctx.Err())
			return r.finish(span, start, requestID, mode, errorResponse(), false)
		}
		r.logger.Error("connection search cache failed", "request_id", requestID, "error", err)
		return r.finish(span, start, requestID, mode, errorResponse(), false)
	}
	return r.finish(span, start, requestID, mode, v.(SearchResponse), hit)
}

// prepare trims and validates req and fills defaults.
func (r *Resolver) prepare(req SearchRequest) (SearchRequest, SearchMode, error) {
	req.TargetName = strings.TrimSpace(req.TargetName)
	req.TargetCompany = strings.TrimSpace(req.TargetCompany)
	req.TargetTitle = strings.TrimSpace(req.TargetTitle)
	req.UserContext.FromPersonID = strings.TrimSpace(req.UserContext.FromPersonID)

	mode := r.cfg.DefaultMode
	if req.SearchMode != "" {
		parsed, ok := ParseSearchMode(string(req.SearchMode))
		if !ok {
			return req, mode, fmt.Errorf("Invalid search request: unknown search mode %q.", req.SearchMode)
		}
		mode = parsed
	}
	req.SearchMode = mode

	if err := ValidateRequest(req); err != nil {
		return req, mode, err
	}

	if req.UserContext.FromPersonID == "" {
		req.UserContext.FromPersonID = r.cfg.DefaultFromPersonID
	}
	if req.UserContext.FromPersonID == "" {
		return req, mode, errors.New("Invalid search request: no searching person was given.")
	}

	if req.Options.MaxHops <= 0 {
		req.Options.MaxHops = r.cfg.MaxHops
	}
	if req.Options.MaxHops > MaxSupportedHops {
		req.Options.MaxHops = MaxSupportedHops
	}
	if req.Options.MinStrength <= 0 {
		req.Options.MinStrength = r.cfg.MinStrength
	}
	return req, mode, nil
}

// finish stamps per-call fields and records instrumentation.
func (r *Resolver) finish(span trace.Span, start time.Time, requestID string, mode SearchMode, resp SearchResponse, hit bool) SearchResponse {
	resp.RequestID = requestID
	resp.CacheHit = hit
	if resp.Paths == nil {
		resp.Paths = []types.ConnectionPath{}
	}
	if resp.Strategy == "" {
		resp.Strategy = RuleNarrative(NarrativeInput{Source: resp.Source, Found: resp.Found, Paths: resp.Paths})
	}

	elapsed := time.Since(start)
	resp.ProcessingTime = elapsed.Milliseconds()

	span.SetAttributes(
		attribute.String("source", string(resp.Source)),
		attribute.Bool("found", resp.Found),
		attribute.Bool("cache_hit", hit),
		attribute.Int("total_results", resp.TotalResults),
	)
	if resp.Source == SourceError {
		span.SetStatus(codes.Error, resp.Strategy)
	}

	if r.monitor != nil {
		qm := QueryMetric{QueryTime: elapsed, ResultCount: resp.TotalResults, CacheHit: hit, At: start}
		if hit {
			qm.OptimizationsApplied = []string{"cache"}
		}
		if resp.Source == SourceError {
			r.monitor.RecordFailure(OpFindConnections, qm)
		} else {
			r.monitor.Record(OpFindConnections, qm)
		}
	}
	r.metrics.observeSearch(mode, resp.Source, elapsed.Seconds())

	r.logger.Debug("connection search finished",
		"request_id", requestID,
		"mode", mode,
		"source", resp.Source,
		"found", resp.Found,
		"results", resp.TotalResults,
		"cache_hit", hit,
		"duration", elapsed,
	)
	return resp
}

func errorResponse() SearchResponse {
	return SearchResponse{Source: SourceError, Strategy: NarrativeSearchFailed}
}

// execute runs the strategy for mode. It never fails; failures become
// SourceError responses.
func (r *Resolver) execute(ctx context.Context, req SearchRequest, mode SearchMode) SearchResponse {
	var st *SearchTrace
	if req.Options.Trace {
		st = &SearchTrace{}
	}

	opts := PathOptions{
		MaxHops:         req.Options.MaxHops,
		MinStrength:     req.Options.MinStrength,
		IncludeWeakTies: req.Options.IncludeWeakTies,
		ResultLimit:     r.cfg.ResultLimit,
		MaxCandidates:   r.cfg.MaxCandidates,
	}.normalized()
	target := TargetQuery{Name: req.TargetName, Company: req.TargetCompany, Title: req.TargetTitle}

	graph := fromStore(r.search.findPathsToTarget(ctx, req.UserContext.FromPersonID, target, opts, st))
	if !graph.OK() {
		r.logger.Error("graph search failed",
			"kind", graph.Kind,
			"from", req.UserContext.FromPersonID,
			"target", req.TargetName,
			"error", graph.Err,
		)
		resp := errorResponse()
		resp.Trace = st.Events()
		return resp
	}

	var resp SearchResponse
	switch mode {
	case ModeAdvanced:
		resp = r.graphOutcome(ctx, req, graph.Value, opts)
	case ModeComprehensive:
		resp = r.comprehensive(ctx, req, graph.Value, opts)
	default:
		resp = r.smart(ctx, req, graph.Value, opts)
	}
	resp.Trace = st.Events()
	return resp
}

// graphOutcome maps a graph search result onto a response.
func (r *Resolver) graphOutcome(ctx context.Context, req SearchRequest, res PathSearchResult, opts PathOptions) SearchResponse {
	resp := SearchResponse{Paths: res.Paths, TotalResults: len(res.Paths), Source: SourceGraph}
	switch {
	case len(res.Candidates) == 0:
		resp.Source = SourceNotFound
	case len(res.Paths) > 0 && res.Paths[0].SamePerson:
		resp.Source = SourceSamePerson
		resp.Found = true
	case !res.SourceFound:
		r.logger.Warn("searching person not in store", "from", req.UserContext.FromPersonID)
	default:
		resp.Found = len(res.Paths) > 0
	}
	resp.Strategy = r.narrate(ctx, req, resp, nil, opts.MaxHops)
	return resp
}

// smart returns graph paths when there are any and otherwise falls back to
// the fuzzy matcher. Matcher failures degrade to the graph outcome.
func (r *Resolver) smart(ctx context.Context, req SearchRequest, res PathSearchResult, opts PathOptions) SearchResponse {
	if len(res.Paths) > 0 || r.matcher == nil {
		return r.graphOutcome(ctx, req, res, opts)
	}

	fuzzy := r.fuzzy(ctx, req)
	if !fuzzy.OK() || len(fuzzy.Value.Matches) == 0 {
		return r.graphOutcome(ctx, req, res, opts)
	}

	resp := SearchResponse{
		Found:         true,
		Paths:         []types.ConnectionPath{},
		Matches:       fuzzy.Value.Matches,
		MatchStrategy: fuzzy.Value.Strategy,
		TotalResults:  len(fuzzy.Value.Matches),
		Source:        SourceFuzzy,
	}
	resp.Strategy = r.narrate(ctx, req, resp, nil, opts.MaxHops)
	return resp
}

// comprehensive merges graph paths, fuzzy matches and optional enrichment,
// keeping one path per target and dropping matches already reached by a path.
func (r *Resolver) comprehensive(ctx context.Context, req SearchRequest, res PathSearchResult, opts PathOptions) SearchResponse {
	if len(res.Paths) > 0 && res.Paths[0].SamePerson {
		return r.graphOutcome(ctx, req, res, opts)
	}

	paths := BestPathPerTarget(res.Paths)
	reached := make(map[string]bool, len(paths))
	for _, p := range paths {
		reached[p.TargetID] = true
	}

	var matches []Match
	var matchStrategy string
	if r.matcher != nil {
		if fuzzy := r.fuzzy(ctx, req); fuzzy.OK() {
			matchStrategy = fuzzy.Value.Strategy
			for _, m := range fuzzy.Value.Matches {
				if !reached[m.Person.ID] {
					matches = append(matches, m)
				}
			}
		}
	}

	var items []EnrichmentItem
	if req.Options.EnableExternalEnrichment && r.enricher != nil {
		if enriched := r.enrich(ctx, req); enriched.OK() {
			items = enriched.Value
		}
	}

	counts := map[Source]int{
		SourceGraph:      len(paths),
		SourceFuzzy:      len(matches),
		sourceEnrichment: len(items),
	}
	total := len(paths) + len(matches) + len(items)
	if total == 0 && len(res.Candidates) == 0 {
		resp := SearchResponse{Source: SourceNotFound, Paths: []types.ConnectionPath{}}
		resp.Strategy = r.narrate(ctx, req, resp, nil, opts.MaxHops)
		return resp
	}

	resp := SearchResponse{
		Found:        len(paths) > 0 || len(matches) > 0,
		Paths:        paths,
		TotalResults: total,
		Source:       SourceComprehensive,
		Matches:      matches,
		Enrichment:   items,
	}
	if len(matches) > 0 {
		resp.MatchStrategy = matchStrategy
	}
	resp.Strategy = r.narrate(ctx, req, resp, counts, opts.MaxHops)
	return resp
}

func (r *Resolver) fuzzy(ctx context.Context, req SearchRequest) Result[MatchResult] {
	res := fromCollaborator(r.matcher.FindByMinimalInfo(ctx, req.TargetName, req.TargetCompany, req.TargetTitle))
	if !res.OK() {
		r.logger.Warn("fuzzy matcher failed", "kind", res.Kind, "target", req.TargetName, "error", res.Err)
	}
	return res
}

func (r *Resolver) enrich(ctx context.Context, req SearchRequest) Result[[]EnrichmentItem] {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.EnrichmentTimeout)
	defer cancel()

	res := fromCollaborator(r.enricher.Enrich(ctx, EnrichmentQuery{
		Name:    req.TargetName,
		Company: req.TargetCompany,
		Title:   req.TargetTitle,
	}))
	if !res.OK() {
		r.logger.Warn("external enrichment failed", "kind", res.Kind, "target", req.TargetName, "error", res.Err)
	}
	return res
}

// narrate builds the rule narrative and lets the optional generator
// decorate it within NarrativeTimeout.
func (r *Resolver) narrate(ctx context.Context, req SearchRequest, resp SearchResponse, counts map[Source]int, maxHops int) string {
	in := NarrativeInput{
		Request:       req,
		Found:         resp.Found,
		Source:        resp.Source,
		Paths:         resp.Paths,
		Matches:       resp.Matches,
		MatchStrategy: resp.MatchStrategy,
		Enrichment:    resp.Enrichment,
		SourceCounts:  counts,
		MaxHops:       maxHops,
	}
	base := RuleNarrative(in)
	if r.narrator == nil {
		return base
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.NarrativeTimeout)
	defer cancel()

	res := fromCollaborator(r.narrator.Narrate(ctx, in, base))
	if !res.OK() || strings.TrimSpace(res.Value) == "" {
		if res.Err != nil {
			r.logger.Warn("narrative generator failed, using rule narrative", "kind", res.Kind, "error", res.Err)
		}
		return base
	}
	return res.Value
}

// BestPathPerTarget keeps the first path for each target of an already
// ranked list.
func BestPathPerTarget(paths []types.ConnectionPath) []types.ConnectionPath {
	seen := make(map[string]bool, len(paths))
	out := make([]types.ConnectionPath, 0, len(paths))
	for _, p := range paths {
		if seen[p.TargetID] {
			continue
		}
		seen[p.TargetID] = true
		out = append(out, p)
	}
	return out
}
