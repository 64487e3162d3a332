package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/kasane/internal/embedding"
	apperrors "github.com/hyperjump/kasane/internal/errors"
	"github.com/hyperjump/kasane/internal/keyword"
	"github.com/hyperjump/kasane/internal/models"
	"github.com/hyperjump/kasane/internal/storage"
	"github.com/hyperjump/kasane/internal/vector"
)

// Metadata fields filled from the stored document when the document's own metadata lacks them.
const (
	MetadataText           = "text"
	MetadataNormalizedText = "normalized_text"
)

// VectorSource returns nearest-neighbour candidates with raw cosine scores in [-1,1].
type VectorSource interface {
	Query(ctx context.Context, text string, topK int) ([]models.Candidate, error)
}

// KeywordSource returns keyword candidates with raw BM25 scores (>= 0).
type KeywordSource interface {
	Query(ctx context.Context, text string, topK int) ([]models.Candidate, error)
}

// SourceOption configures the index-backed sources.
type SourceOption func(*sourceOptions)

type sourceOptions struct {
	retry  apperrors.RetryConfig
	logger *zap.Logger
}

// WithRetry sets the retry policy applied to each index query.
func WithRetry(cfg apperrors.RetryConfig) SourceOption {
	return func(o *sourceOptions) { o.retry = cfg }
}

// WithSourceLogger sets the logger used for hydration warnings.
func WithSourceLogger(l *zap.Logger) SourceOption {
	return func(o *sourceOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildSourceOptions(opts []SourceOption) sourceOptions {
	o := sourceOptions{retry: apperrors.DefaultRetryConfig(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// IndexVectorSource embeds the query and searches a vector index, then hydrates metadata from
// storage.
type IndexVectorSource struct {
	embedder embedding.Embedder
	index    vector.VectorIndex
	store    storage.Storage
	opts     sourceOptions
}

// NewIndexVectorSource creates a vector source over the given embedder, index and store.
func NewIndexVectorSource(embedder embedding.Embedder, index vector.VectorIndex, store storage.Storage, opts ...SourceOption) *IndexVectorSource {
	return &IndexVectorSource{embedder: embedder, index: index, store: store, opts: buildSourceOptions(opts)}
}

// Query implements VectorSource.
func (s *IndexVectorSource) Query(ctx context.Context, text string, topK int) ([]models.Candidate, error) {
	hits, err := apperrors.RetryWithResult(ctx, s.opts.retry, func() ([]*vector.VectorResult, error) {
		vec, err := s.embedder.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		return s.index.Search(ctx, vec, topK)
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(hits))
	scores := make(map[string]float64, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
		scores[h.ID] = h.Score
	}
	return hydrate(ctx, s.store, ids, scores, models.SourceVector, s.opts)
}

// IndexKeywordSource searches a keyword index and hydrates metadata from storage.
type IndexKeywordSource struct {
	index keyword.KeywordIndex
	store storage.Storage
	opts  sourceOptions
}

// NewIndexKeywordSource creates a keyword source over the given index and store.
func NewIndexKeywordSource(index keyword.KeywordIndex, store storage.Storage, opts ...SourceOption) *IndexKeywordSource {
	return &IndexKeywordSource{index: index, store: store, opts: buildSourceOptions(opts)}
}

// Query implements KeywordSource.
func (s *IndexKeywordSource) Query(ctx context.Context, text string, topK int) ([]models.Candidate, error) {
	hits, err := apperrors.RetryWithResult(ctx, s.opts.retry, func() ([]*keyword.KeywordResult, error) {
		return s.index.Search(ctx, text, topK)
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(hits))
	scores := make(map[string]float64, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
		scores[h.ID] = h.Score
	}
	return hydrate(ctx, s.store, ids, scores, models.SourceKeyword, s.opts)
}

// hydrate turns index hits into candidates in hit order. Ids with no stored document (deleted
// between index and store reads) are dropped.
func hydrate(ctx context.Context, store storage.Storage, ids []string, scores map[string]float64, src models.Source, o sourceOptions) ([]models.Candidate, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	docs, err := apperrors.RetryWithResult(ctx, o.retry, func() (map[string]*models.Document, error) {
		return store.GetDocuments(ctx, ids)
	})
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	out := make([]models.Candidate, 0, len(ids))
	for _, id := range ids {
		doc, ok := docs[id]
		if !ok {
			o.logger.Debug("dropping hit with no stored document",
				zap.String("source", src.String()), zap.String("id", id))
			continue
		}
		meta := doc.Metadata.Clone()
		if _, ok := meta[MetadataText]; !ok {
			meta[MetadataText] = doc.Text
		}
		if _, ok := meta[MetadataNormalizedText]; !ok {
			meta[MetadataNormalizedText] = doc.NormalizedText
		}
		out = append(out, models.Candidate{ID: id, Source: src, RawScore: scores[id], Metadata: meta})
	}
	return out, nil
}

var (
	_ VectorSource  = (*IndexVectorSource)(nil)
	_ KeywordSource = (*IndexKeywordSource)(nil)
)
