package enrichment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/warmconnector/internal/engine"
)

func directoryServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.Error(t, err)
}

func TestHTTPProvider_Enrich(t *testing.T) {
	srv, _ := directoryServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/people/search", r.URL.Path)
		assert.Equal(t, "Jane Doe", r.URL.Query().Get("name"))
		assert.Equal(t, "Acme", r.URL.Query().Get("company"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"name":"Jane Doe","company":"Acme Corp","title":"VP Engineering","profile_url":"https://example.com/jane","confidence":1.4},
			{"name":"","company":"Nobody"},
			{"name":"J. Doe","company":"Acme","confidence":0.4}
		]}`))
	})

	p, err := New(Config{BaseURL: srv.URL + "/", APIKey: "secret", SourceName: "people-api"}, nil)
	require.NoError(t, err)

	items, err := p.Enrich(context.Background(), engine.EnrichmentQuery{Name: "Jane Doe", Company: "Acme"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Jane Doe", items[0].Name)
	assert.Equal(t, "people-api", items[0].Source)
	assert.Equal(t, 1.0, items[0].Confidence)
	assert.Equal(t, "https://example.com/jane", items[0].ProfileURL)
	assert.Equal(t, 0.4, items[1].Confidence)
}

func TestHTTPProvider_MaxResults(t *testing.T) {
	srv, _ := directoryServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"results":[{"name":"A"},{"name":"B"}]}`))
	})
	p, err := New(Config{BaseURL: srv.URL, MaxResults: 1}, nil)
	require.NoError(t, err)

	items, err := p.Enrich(context.Background(), engine.EnrichmentQuery{Name: "A"})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestHTTPProvider_NotFoundIsEmpty(t *testing.T) {
	srv, _ := directoryServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	p, err := New(Config{BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	items, err := p.Enrich(context.Background(), engine.EnrichmentQuery{Name: "Nobody"})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestHTTPProvider_CircuitOpensOnServerErrors(t *testing.T) {
	srv, calls := directoryServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})
	p, err := New(Config{BaseURL: srv.URL, MaxFailures: 2, OpenTimeout: time.Minute, RequestsPerSecond: 1000, Burst: 10}, nil)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := p.Enrich(context.Background(), engine.EnrichmentQuery{Name: "Jane"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 503")
	}
	_, err = p.Enrich(context.Background(), engine.EnrichmentQuery{Name: "Jane"})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestHTTPProvider_ClientErrorsDoNotTrip(t *testing.T) {
	srv, calls := directoryServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad query", http.StatusBadRequest)
	})
	p, err := New(Config{BaseURL: srv.URL, MaxFailures: 1, RequestsPerSecond: 1000, Burst: 10}, nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := p.Enrich(context.Background(), engine.EnrichmentQuery{Name: "Jane"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 400")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestHTTPProvider_RateLimitHonorsDeadline(t *testing.T) {
	srv, calls := directoryServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	})
	p, err := New(Config{BaseURL: srv.URL, RequestsPerSecond: 0.01, Burst: 1}, nil)
	require.NoError(t, err)

	_, err = p.Enrich(context.Background(), engine.EnrichmentQuery{Name: "Jane"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Enrich(ctx, engine.EnrichmentQuery{Name: "Jane"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestHTTPProvider_RequiresName(t *testing.T) {
	p, err := New(Config{BaseURL: "http://127.0.0.1:1"}, nil)
	require.NoError(t, err)
	_, err = p.Enrich(context.Background(), engine.EnrichmentQuery{Name: "  "})
	assert.Error(t, err)
}
