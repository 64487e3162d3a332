// Package rerank provides an HTTP client for Cohere-compatible /v1/rerank endpoints.
package rerank

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hyperjump/kasane/internal/config"
	apperrors "github.com/hyperjump/kasane/internal/errors"
	"github.com/hyperjump/kasane/internal/search"
)

// Client defaults.
const (
	DefaultModel        = "rerank-english-v3.0"
	DefaultTimeout      = 2 * time.Second
	DefaultResetTimeout = 30 * time.Second
	maxErrorBody        = 4 << 10
)

// Config configures an HTTP reranker.
type Config struct {
	BaseURL     string
	Model       string
	APIKey      string
	Timeout     time.Duration
	MaxFailures int
}

// FromConfig builds a Config from the application reranker section. The API key is read from
// the environment variable it names.
func FromConfig(c config.RerankerConfig, getenv func(string) string) Config {
	key := ""
	if c.APIKeyEnv != "" && getenv != nil {
		key = getenv(c.APIKeyEnv)
	}
	return Config{
		BaseURL:     c.BaseURL,
		Model:       c.Model,
		APIKey:      key,
		Timeout:     c.Timeout,
		MaxFailures: c.MaxFailures,
	}
}

// HTTPReranker calls a rerank service and returns document ids in relevance order. Repeated
// failures open a circuit breaker so a dead service costs nothing per query.
type HTTPReranker struct {
	client  *http.Client
	cfg     Config
	breaker *apperrors.CircuitBreaker
	logger  *zap.Logger
}

// Option configures an HTTPReranker.
type Option func(*HTTPReranker)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *HTTPReranker) { r.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *HTTPReranker) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithBreaker replaces the circuit breaker.
func WithBreaker(cb *apperrors.CircuitBreaker) Option {
	return func(r *HTTPReranker) { r.breaker = cb }
}

// New creates an HTTP reranker. BaseURL is required.
func New(cfg Config, opts ...Option) (*HTTPReranker, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("reranker base URL is required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	r := &HTTPReranker{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		cfg: cfg,
		breaker: apperrors.NewCircuitBreaker("reranker",
			apperrors.WithMaxFailures(cfg.MaxFailures),
			apperrors.WithResetTimeout(DefaultResetTimeout)),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

type rerankRequest struct {
	Model           string   `json:"model"`
	Query           string   `json:"query"`
	Documents       []string `json:"documents"`
	TopN            int      `json:"top_n"`
	ReturnDocuments bool     `json:"return_documents"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank implements search.Reranker.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, docs []search.RerankDocument) ([]string, error) {
	if len(docs) == 0 {
		return []string{}, nil
	}
	var ids []string
	err := r.breaker.Execute(func() error {
		var err error
		ids, err = r.call(ctx, query, docs)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}
	return ids, nil
}

func (r *HTTPReranker) call(ctx context.Context, query string, docs []search.RerankDocument) ([]string, error) {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	body, err := json.Marshal(rerankRequest{
		Model:     r.cfg.Model,
		Query:     query,
		Documents: texts,
		TopN:      len(docs),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+"/v1/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if r.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var out rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	ids := make([]string, 0, len(out.Results))
	for _, res := range out.Results {
		if res.Index < 0 || res.Index >= len(docs) {
			continue
		}
		ids = append(ids, docs[res.Index].ID)
	}
	r.logger.Debug("rerank call completed",
		zap.Int("documents", len(docs)),
		zap.Int("results", len(ids)),
		zap.Duration("elapsed", time.Since(start)))
	return ids, nil
}

// State reports the circuit breaker state.
func (r *HTTPReranker) State() apperrors.State {
	return r.breaker.State()
}

// Close releases idle connections.
func (r *HTTPReranker) Close() error {
	if t, ok := r.client.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
	return nil
}

var _ search.Reranker = (*HTTPReranker)(nil)
