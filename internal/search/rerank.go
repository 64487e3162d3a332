package search

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kasane/internal/models"
)

// DefaultRerankTopN is how many leading matches are sent to the reranker when unset.
const DefaultRerankTopN = 50

// RerankDocument is one item sent to a reranker.
type RerankDocument struct {
	ID   string
	Text string
}

// Reranker reorders documents by semantic relevance to query. It returns document ids, most
// relevant first; the result may be a subset of docs.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []RerankDocument) ([]string, error)
}

// NoOpReranker returns documents in their input order.
type NoOpReranker struct{}

// Rerank implements Reranker.
func (NoOpReranker) Rerank(_ context.Context, _ string, docs []RerankDocument) ([]string, error) {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

var _ Reranker = NoOpReranker{}

// RerankOutcome is the result of a best-effort rerank: either the reordered ids or unavailable.
type RerankOutcome struct {
	Reordered []string
	Available bool
}

// Unavailable is the outcome used when reranking failed or timed out.
var Unavailable = RerankOutcome{}

// RerankOptions controls which matches are sent and what text represents them.
type RerankOptions struct {
	TopN int
	// ContentField is the metadata field used as document text; FallbackField is used when the
	// content field is empty.
	ContentField  string
	FallbackField string
	Timeout       time.Duration
}

// RerankDocuments builds the reranker input for the first TopN matches.
func RerankDocuments(matches []*models.ScoredMatch, opts RerankOptions) []RerankDocument {
	n := opts.TopN
	if n <= 0 {
		n = DefaultRerankTopN
	}
	if n > len(matches) {
		n = len(matches)
	}
	docs := make([]RerankDocument, 0, n)
	for _, m := range matches[:n] {
		text := m.Metadata.String(opts.ContentField)
		if text == "" {
			text = m.Metadata.String(opts.FallbackField)
		}
		docs = append(docs, RerankDocument{ID: m.ID, Text: text})
	}
	return docs
}

// RunRerank calls r under its own sub-deadline. Any failure, including the deadline, yields
// Unavailable.
func RunRerank(ctx context.Context, r Reranker, query string, matches []*models.ScoredMatch, opts RerankOptions, logger *zap.Logger) RerankOutcome {
	if r == nil || len(matches) == 0 {
		return Unavailable
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	docs := RerankDocuments(matches, opts)
	start := time.Now()
	ids, err := r.Rerank(ctx, query, docs)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		logger.Warn("reranking unavailable, keeping fused order",
			zap.Error(err),
			zap.Int("documents", len(docs)),
			zap.Duration("elapsed", time.Since(start)))
		return Unavailable
	}
	logger.Debug("reranking completed",
		zap.Int("documents", len(docs)),
		zap.Int("returned", len(ids)),
		zap.Duration("elapsed", time.Since(start)))
	return RerankOutcome{Reordered: ids, Available: true}
}

// ApplyRerank returns matches with the reranked subset first, in rerank order with RerankRank
// set, followed by the remaining matches in their existing order. Ids that were not in the
// first topN matches, and repeated ids, are ignored. An unavailable outcome returns matches
// unchanged.
func ApplyRerank(matches []*models.ScoredMatch, outcome RerankOutcome, topN int) []*models.ScoredMatch {
	if !outcome.Available || len(matches) == 0 {
		return matches
	}
	if topN <= 0 {
		topN = DefaultRerankTopN
	}
	if topN > len(matches) {
		topN = len(matches)
	}
	eligible := make(map[string]*models.ScoredMatch, topN)
	for _, m := range matches[:topN] {
		eligible[m.ID] = m
	}

	out := make([]*models.ScoredMatch, 0, len(matches))
	placed := make(map[string]bool, len(outcome.Reordered))
	for _, id := range outcome.Reordered {
		m, ok := eligible[id]
		if !ok || placed[id] {
			continue
		}
		placed[id] = true
		m.RerankRank = len(out) + 1
		out = append(out, m)
	}
	for _, m := range matches {
		if !placed[m.ID] {
			out = append(out, m)
		}
	}
	return out
}
