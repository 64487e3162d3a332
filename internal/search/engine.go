package search

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/kasane/internal/config"
	apperrors "github.com/hyperjump/kasane/internal/errors"
	"github.com/hyperjump/kasane/internal/models"
	"github.com/hyperjump/kasane/internal/normalize"
)

// ConfigProvider hands out the active fusion policy. *config.Store implements it.
type ConfigProvider interface {
	Active() config.SearchConfig
}

// Engine runs hybrid (vector + keyword) search.
type Engine struct {
	vector   VectorSource
	keyword  KeywordSource
	configs  ConfigProvider
	reranker Reranker
	settings config.EngineConfig
	logger   *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithReranker sets the reranker used when a query's config enables reranking. Without one,
// reranking is always reported unavailable.
func WithReranker(r Reranker) EngineOption {
	return func(e *Engine) { e.reranker = r }
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithEngineConfig sets field names, rerank depth and timeouts. Zero timeouts disable the
// corresponding deadline.
func WithEngineConfig(c config.EngineConfig) EngineOption {
	return func(e *Engine) { e.settings = c }
}

// NewEngine creates a search engine with the given sources and config provider.
func NewEngine(vs VectorSource, ks KeywordSource, configs ConfigProvider, opts ...EngineOption) *Engine {
	e := &Engine{
		vector:   vs,
		keyword:  ks,
		configs:  configs,
		settings: config.DefaultEngineConfig(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Settings returns the engine's query-time settings.
func (e *Engine) Settings() config.EngineConfig {
	return e.settings
}

type sourceResult struct {
	batch []NormalizedCandidate
	err   error
}

// Search runs one query. override, when non-nil, replaces the active config for this query
// only and must be valid.
func (e *Engine) Search(ctx context.Context, rawQuery string, override *config.SearchConfig) (*models.SearchResult, error) {
	start := time.Now()

	query := strings.TrimSpace(rawQuery)
	if query == "" {
		return nil, &apperrors.ValidationError{Field: "query", Reason: "must not be empty"}
	}
	if len(query) > normalize.LargeInput {
		e.logger.Warn("normalizing unusually large query", zap.Int("bytes", len(query)))
	}
	normalized := normalize.Text(query)
	if normalized == "" {
		return nil, &apperrors.ValidationError{Field: "query", Reason: "contains no searchable characters"}
	}

	cfg := e.configs.Active()
	if override != nil {
		if err := override.Validate(); err != nil {
			return nil, err
		}
		cfg = *override
	}

	qctx := ctx
	if e.settings.QueryTimeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, e.settings.QueryTimeout)
		defer cancel()
	}

	vres, kres := e.retrieve(qctx, normalized, cfg)
	if err := e.queryDeadline(ctx, qctx); err != nil {
		return nil, err
	}
	for _, r := range []sourceResult{vres, kres} {
		if apperrors.IsNormalization(r.err) {
			return nil, r.err
		}
	}

	degraded := ""
	switch {
	case vres.err != nil && kres.err != nil:
		return nil, &apperrors.UpstreamError{Err: errors.Join(
			&apperrors.UpstreamError{Source: models.SourceVector.String(), Err: vres.err},
			&apperrors.UpstreamError{Source: models.SourceKeyword.String(), Err: kres.err},
		)}
	case vres.err != nil:
		degraded = models.SourceVector.String()
		cfg = cfg.WithVectorWeight(0)
		e.logger.Warn("vector source failed, ranking on keyword scores only", zap.Error(vres.err))
	case kres.err != nil:
		degraded = models.SourceKeyword.String()
		cfg = cfg.WithVectorWeight(1)
		e.logger.Warn("keyword source failed, ranking on vector scores only", zap.Error(kres.err))
	}

	hybrid, err := Hybridize(vres.batch, kres.batch, normalized, cfg, e.settings.CanonicalKeyField)
	if err != nil {
		return nil, err
	}

	matches := hybrid.Matches
	rerankingEnabled := false
	if cfg.EnableReranking {
		if len(matches) == 0 {
			rerankingEnabled = true
		} else {
			outcome := RunRerank(qctx, e.reranker, normalized, matches, RerankOptions{
				TopN:          e.settings.RerankTopN,
				ContentField:  e.settings.ContentField,
				FallbackField: e.settings.CanonicalKeyField,
				Timeout:       e.settings.RerankTimeout,
			}, e.logger)
			matches = ApplyRerank(matches, outcome, e.settings.RerankTopN)
			rerankingEnabled = outcome.Available
		}
	}

	result := &models.SearchResult{
		ExactMatch: hybrid.ExactMatch,
		Matches:    matches,
		Analytics: BuildAnalytics(AnalyticsInput{
			Query:            query,
			NormalizedQuery:  normalized,
			TotalCandidates:  hybrid.TotalCandidates,
			ExactMatch:       hybrid.ExactMatch,
			Matches:          matches,
			Config:           cfg,
			GroupField:       e.settings.GroupField,
			RerankingEnabled: rerankingEnabled,
			DegradedSource:   degraded,
		}),
	}

	e.logger.Debug("search completed",
		zap.String("normalized_query", normalized),
		zap.Int("candidates", hybrid.TotalCandidates),
		zap.Int("matches", len(matches)),
		zap.Bool("exact_match", hybrid.ExactMatch != nil),
		zap.Bool("reranked", rerankingEnabled),
		zap.String("degraded_source", degraded),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

// queryDeadline reports a TimeoutError when the query deadline, not the caller, ended qctx.
func (e *Engine) queryDeadline(parent, qctx context.Context) error {
	if qctx.Err() == nil {
		return nil
	}
	if err := parent.Err(); err != nil {
		return err
	}
	return &apperrors.TimeoutError{Stage: "query", Timeout: e.settings.QueryTimeout, Err: qctx.Err()}
}

// retrieve queries both sources concurrently. Each source gets its own SourceTimeout; a failing
// source does not cancel the other.
func (e *Engine) retrieve(ctx context.Context, text string, cfg config.SearchConfig) (vres, kres sourceResult) {
	var g errgroup.Group
	g.Go(func() error {
		sctx, cancel := e.sourceContext(ctx)
		defer cancel()
		vres.batch, vres.err = e.fetchVector(sctx, text, cfg)
		return nil
	})
	g.Go(func() error {
		sctx, cancel := e.sourceContext(ctx)
		defer cancel()
		kres.batch, kres.err = e.fetchKeyword(sctx, text, cfg)
		return nil
	})
	_ = g.Wait()
	return vres, kres
}

func (e *Engine) sourceContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.settings.SourceTimeout > 0 {
		return context.WithTimeout(ctx, e.settings.SourceTimeout)
	}
	return context.WithCancel(ctx)
}

// fetchVector asks for InitialCandidates and widens to MaxCandidates when the best hit clears
// CandidateExpansionThreshold. A failed widening keeps the first batch.
func (e *Engine) fetchVector(ctx context.Context, text string, cfg config.SearchConfig) ([]NormalizedCandidate, error) {
	if e.vector == nil {
		return nil, errors.New("no vector source configured")
	}
	raw, err := e.vector.Query(ctx, text, cfg.InitialCandidates)
	if err != nil {
		return nil, err
	}
	batch, err := NormalizeVectorScores(raw)
	if err != nil {
		return nil, err
	}
	if cfg.MaxCandidates <= cfg.InitialCandidates || topScore(batch) < cfg.CandidateExpansionThreshold {
		return batch, nil
	}

	more, err := e.vector.Query(ctx, text, cfg.MaxCandidates)
	if err != nil {
		e.logger.Warn("candidate expansion failed, keeping initial vector batch",
			zap.Int("initial", len(batch)), zap.Error(err))
		return batch, nil
	}
	expanded, err := NormalizeVectorScores(more)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("expanded vector candidates",
		zap.Int("initial", len(batch)), zap.Int("expanded", len(expanded)))
	return expanded, nil
}

func (e *Engine) fetchKeyword(ctx context.Context, text string, cfg config.SearchConfig) ([]NormalizedCandidate, error) {
	if e.keyword == nil {
		return nil, errors.New("no keyword source configured")
	}
	raw, err := e.keyword.Query(ctx, text, cfg.MaxCandidates)
	if err != nil {
		return nil, err
	}
	return NormalizeKeywordScores(raw)
}

func topScore(batch []NormalizedCandidate) float64 {
	best := 0.0
	for _, c := range batch {
		if c.Score > best {
			best = c.Score
		}
	}
	return best
}
