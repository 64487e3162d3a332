package rerank

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/kasane/internal/config"
	apperrors "github.com/hyperjump/kasane/internal/errors"
	"github.com/hyperjump/kasane/internal/models"
	"github.com/hyperjump/kasane/internal/search"
)

var testDocs = []search.RerankDocument{
	{ID: "a", Text: "apples"},
	{ID: "b", Text: "bananas"},
	{ID: "c", Text: "cherries"},
}

func TestHTTPReranker_Rerank(t *testing.T) {
	var got rerankRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/rerank", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"results":[{"index":2,"relevance_score":0.9},{"index":7,"relevance_score":0.5},{"index":0,"relevance_score":0.1}]}`))
	}))
	defer srv.Close()

	r, err := New(Config{BaseURL: srv.URL + "/", APIKey: "secret"})
	require.NoError(t, err)
	defer r.Close()

	ids, err := r.Rerank(context.Background(), "fruit", testDocs)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, ids, "out-of-range indices are skipped")
	assert.Equal(t, "fruit", got.Query)
	assert.Equal(t, []string{"apples", "bananas", "cherries"}, got.Documents)
	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, 3, got.TopN)
}

func TestHTTPReranker_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	r, _ := New(Config{BaseURL: srv.URL})
	_, err := r.Rerank(context.Background(), "q", testDocs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestHTTPReranker_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	r, _ := New(Config{BaseURL: srv.URL, Timeout: 30 * time.Millisecond})
	start := time.Now()
	_, err := r.Rerank(context.Background(), "q", testDocs)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestHTTPReranker_CircuitOpens(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r, _ := New(Config{BaseURL: srv.URL, MaxFailures: 2})
	for i := 0; i < 4; i++ {
		_, _ = r.Rerank(context.Background(), "q", testDocs)
	}
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, apperrors.StateOpen, r.State())

	_, err := r.Rerank(context.Background(), "q", testDocs)
	assert.ErrorIs(t, err, apperrors.ErrCircuitOpen)
}

func TestHTTPReranker_EmptyDocs(t *testing.T) {
	r, _ := New(Config{BaseURL: "http://unused.invalid"})
	ids, err := r.Rerank(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	env := map[string]string{"RERANK_KEY": "k123"}
	c := FromConfig(config.RerankerConfig{
		BaseURL:     "http://rerank",
		Model:       "m",
		APIKeyEnv:   "RERANK_KEY",
		Timeout:     time.Second,
		MaxFailures: 3,
	}, func(k string) string { return env[k] })
	assert.Equal(t, Config{BaseURL: "http://rerank", Model: "m", APIKey: "k123", Timeout: time.Second, MaxFailures: 3}, c)
}

func TestHTTPReranker_FallsBackInEngine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	r, _ := New(Config{BaseURL: srv.URL})

	matches := []*models.ScoredMatch{
		{ID: "a", CombinedScore: 0.9, Metadata: models.Metadata{"text": "apples"}},
		{ID: "b", CombinedScore: 0.8, Metadata: models.Metadata{"text": "bananas"}},
	}
	out := search.RunRerank(context.Background(), r, "q", matches, search.RerankOptions{TopN: 2, ContentField: "text"}, nil)
	assert.False(t, out.Available)
	assert.Equal(t, matches, search.ApplyRerank(matches, out, 2))
}
