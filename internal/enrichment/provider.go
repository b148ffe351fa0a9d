// Package enrichment looks search targets up in an external people
// directory over HTTP. It backs the comprehensive search mode.
package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/scrypster/warmconnector/internal/engine"
)

// Defaults.
const (
	DefaultRequestsPerSecond = 2.0
	DefaultBurst             = 4
	DefaultTimeout           = 3 * time.Second
	DefaultSourceName        = "directory"
	DefaultMaxResults        = 5
	maxErrorBody             = 512
)

// ErrUnavailable is returned while the provider's circuit is open.
var ErrUnavailable = errors.New("enrichment: provider unavailable")

// Config configures an HTTP directory provider.
type Config struct {
	BaseURL           string
	APIKey            string
	SourceName        string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	MaxResults        int

	// MaxFailures consecutive failures open the circuit for OpenTimeout.
	MaxFailures uint32
	OpenTimeout time.Duration
}

// HTTPProvider implements engine.EnrichmentProvider against a JSON search
// endpoint: GET {BaseURL}/people/search?name=&company=&title=.
type HTTPProvider struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// clientError marks 4xx responses. They do not count against the circuit.
type clientError struct {
	status int
	body   string
}

func (e *clientError) Error() string {
	return fmt.Sprintf("enrichment: status %d: %s", e.status, e.body)
}

type searchResponse struct {
	Results []struct {
		Name       string  `json:"name"`
		Company    string  `json:"company"`
		Title      string  `json:"title"`
		ProfileURL string  `json:"profile_url"`
		Confidence float64 `json:"confidence"`
	} `json:"results"`
}

// New creates a provider. BaseURL is required.
func New(cfg Config, logger *slog.Logger) (*HTTPProvider, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("enrichment: base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("enrichment: invalid base URL: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.SourceName == "" {
		cfg.SourceName = DefaultSourceName
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 3
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &HTTPProvider{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:  logger,
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "enrichment-" + cfg.SourceName,
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			var ce *clientError
			return err == nil || errors.As(err, &ce)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return p, nil
}

// Enrich implements engine.EnrichmentProvider. It waits for the rate
// limiter, so a tight ctx deadline turns a throttled call into an error.
func (p *HTTPProvider) Enrich(ctx context.Context, q engine.EnrichmentQuery) ([]engine.EnrichmentItem, error) {
	if strings.TrimSpace(q.Name) == "" {
		return nil, fmt.Errorf("enrichment: name is required")
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("enrichment: rate limit: %w", err)
	}

	out, err := p.breaker.Execute(func() (interface{}, error) {
		return p.search(ctx, q)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrUnavailable
		}
		return nil, err
	}
	return out.([]engine.EnrichmentItem), nil
}

func (p *HTTPProvider) search(ctx context.Context, q engine.EnrichmentQuery) ([]engine.EnrichmentItem, error) {
	params := url.Values{}
	params.Set("name", strings.TrimSpace(q.Name))
	if q.Company != "" {
		params.Set("company", q.Company)
	}
	if q.Title != "" {
		params.Set("title", q.Title)
	}
	params.Set("limit", fmt.Sprint(p.cfg.MaxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/people/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("enrichment: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("enrichment: request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return []engine.EnrichmentItem{}, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("enrichment: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &clientError{status: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("enrichment: decode response: %w", err)
	}

	items := make([]engine.EnrichmentItem, 0, len(sr.Results))
	for _, r := range sr.Results {
		if strings.TrimSpace(r.Name) == "" {
			continue
		}
		items = append(items, engine.EnrichmentItem{
			Name:       r.Name,
			Company:    r.Company,
			Title:      r.Title,
			ProfileURL: r.ProfileURL,
			Source:     p.cfg.SourceName,
			Confidence: clamp01(r.Confidence),
		})
		if len(items) == p.cfg.MaxResults {
			break
		}
	}
	p.logger.Debug("enrichment lookup", "source", p.cfg.SourceName, "name", q.Name, "results", len(items))
	return items, nil
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

var _ engine.EnrichmentProvider = (*HTTPProvider)(nil)
