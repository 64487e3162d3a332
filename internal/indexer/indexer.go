// Package indexer writes documents into storage and both retrieval indices so the candidate
// sources can find them.
package indexer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	apperrors "github.com/hyperjump/kasane/internal/errors"
	"github.com/hyperjump/kasane/internal/embedding"
	"github.com/hyperjump/kasane/internal/keyword"
	"github.com/hyperjump/kasane/internal/models"
	"github.com/hyperjump/kasane/internal/normalize"
	"github.com/hyperjump/kasane/internal/storage"
	"github.com/hyperjump/kasane/internal/vector"
)

// maxLineBytes bounds one JSONL record.
const maxLineBytes = 4 << 20

// rebuildPage is the page size used when replaying storage into the indices.
const rebuildPage = 256

// Indexer indexes documents into storage, keyword index, and vector index.
type Indexer struct {
	storage      storage.Storage
	embedder     embedding.Embedder
	vectorIndex  vector.VectorIndex
	keywordIndex keyword.KeywordIndex
	poolSize     int
	logger       *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output (document indexed, document deleted, etc.).
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) {
		if l != nil {
			idx.logger = l
		}
	}
}

// WithPoolSize sets the number of concurrent workers used by IndexBatch.
// Default is runtime.NumCPU(), with a minimum of 1.
func WithPoolSize(n int) IndexerOption {
	return func(idx *Indexer) {
		if n < 1 {
			n = 1
		}
		idx.poolSize = n
	}
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(
	storage storage.Storage,
	embedder embedding.Embedder,
	vectorIndex vector.VectorIndex,
	keywordIndex keyword.KeywordIndex,
	opts ...IndexerOption,
) *Indexer {
	idx := &Indexer{
		storage:      storage,
		embedder:     embedder,
		vectorIndex:  vectorIndex,
		keywordIndex: keywordIndex,
		poolSize:     runtime.NumCPU(),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// IndexDocument stores input and indexes it in both retrieval indices. An empty id gets a
// fresh UUID; an existing id is replaced. The stored document is returned.
func (idx *Indexer) IndexDocument(ctx context.Context, input *models.DocumentInput) (*models.Document, error) {
	if input == nil {
		return nil, &apperrors.ValidationError{Field: "document", Reason: "must not be null"}
	}
	if len(input.Text) > normalize.LargeInput {
		idx.logger.Warn("indexing unusually large document", zap.String("id", input.ID), zap.Int("bytes", len(input.Text)))
	}
	text := Preprocess(input.Text)
	if text == "" {
		return nil, &apperrors.ValidationError{Field: "text", Reason: "must not be empty"}
	}
	normalized := normalize.Text(text)
	if normalized == "" {
		return nil, &apperrors.ValidationError{Field: "text", Reason: "contains no searchable characters"}
	}

	id := input.ID
	if id == "" {
		id = uuid.New().String()
	}
	doc := &models.Document{
		ID:             id,
		Text:           text,
		NormalizedText: normalized,
		Metadata:       input.Metadata.Clone(),
	}

	vec, err := idx.embedder.Embed(ctx, doc.NormalizedText)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if err := idx.storage.UpsertDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}
	if err := idx.vectorIndex.Add(ctx, []string{doc.ID}, [][]float32{vec}); err != nil {
		err = fmt.Errorf("failed to index vector: %w", err)
		idx.rollback(ctx, doc.ID, err)
		return nil, err
	}
	if err := idx.keywordIndex.Index(ctx, doc); err != nil {
		err = fmt.Errorf("failed to index keywords: %w", err)
		idx.rollback(ctx, doc.ID, err)
		return nil, err
	}

	idx.logger.Debug("indexer document indexed", zap.String("id", doc.ID))
	return doc, nil
}

// rollback removes a stored document whose index writes failed so storage never holds a
// document the sources cannot find. A replaced document is gone, not restored.
func (idx *Indexer) rollback(ctx context.Context, id string, cause error) {
	if err := idx.DeleteDocument(context.WithoutCancel(ctx), id); err != nil {
		idx.logger.Error("indexer left document partially indexed",
			zap.String("id", id), zap.Error(cause), zap.NamedError("rollback_error", err))
		return
	}
	idx.logger.Warn("indexer rolled back partially indexed document", zap.String("id", id), zap.Error(cause))
}

// IndexBatch indexes inputs on a bounded worker pool. It returns the number of documents
// indexed and the joined errors of the ones that failed.
func (idx *Indexer) IndexBatch(ctx context.Context, inputs []*models.DocumentInput) (int, error) {
	if len(inputs) == 0 {
		return 0, nil
	}
	pool, err := ants.NewPool(idx.poolSize)
	if err != nil {
		return 0, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		indexed int
		errs    []error
	)
	for i, input := range inputs {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			_, err := idx.IndexDocument(ctx, input)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("document %d: %w", i, err))
				return
			}
			indexed++
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			errs = append(errs, fmt.Errorf("document %d: %w", i, submitErr))
			mu.Unlock()
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	idx.logger.Info("indexer batch complete",
		zap.Int("requested", len(inputs)),
		zap.Int("indexed", indexed),
		zap.Int("failed", len(errs)),
	)
	return indexed, errors.Join(errs...)
}

// ReadJSONL decodes one DocumentInput per non-blank line of r.
func ReadJSONL(r io.Reader) ([]*models.DocumentInput, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var inputs []*models.DocumentInput
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(trimSpaceBytes(raw)) == 0 {
			continue
		}
		var in models.DocumentInput
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		inputs = append(inputs, &in)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read jsonl: %w", err)
	}
	return inputs, nil
}

func trimSpaceBytes(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && (b[start] == ' ' || b[start] == '\t' || b[start] == '\r') {
		start++
	}
	for end > start && (b[end-1] == ' ' || b[end-1] == '\t' || b[end-1] == '\r') {
		end--
	}
	return b[start:end]
}

// IndexJSONL reads newline-delimited DocumentInput records from r and indexes them.
func (idx *Indexer) IndexJSONL(ctx context.Context, r io.Reader) (int, error) {
	inputs, err := ReadJSONL(r)
	if err != nil {
		return 0, err
	}
	return idx.IndexBatch(ctx, inputs)
}

// Rebuild replays every stored document into the keyword and vector indices. Used at
// startup when an index was opened empty.
func (idx *Indexer) Rebuild(ctx context.Context) (int, error) {
	n := 0
	for offset := 0; ; offset += rebuildPage {
		docs, err := idx.storage.ListDocuments(ctx, offset, rebuildPage)
		if err != nil {
			return n, fmt.Errorf("list documents: %w", err)
		}
		if len(docs) == 0 {
			break
		}
		ids := make([]string, len(docs))
		texts := make([]string, len(docs))
		for i, d := range docs {
			ids[i] = d.ID
			texts[i] = d.NormalizedText
		}
		vecs, err := idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return n, fmt.Errorf("failed to generate embeddings: %w", err)
		}
		if err := idx.vectorIndex.Add(ctx, ids, vecs); err != nil {
			return n, fmt.Errorf("failed to index vectors: %w", err)
		}
		for _, d := range docs {
			if err := idx.keywordIndex.Index(ctx, d); err != nil {
				return n, fmt.Errorf("failed to index keywords: %w", err)
			}
		}
		n += len(docs)
		if len(docs) < rebuildPage {
			break
		}
	}
	idx.logger.Info("indexer rebuild complete", zap.Int("documents", n))
	return n, nil
}

// DeleteDocument removes a document from all indices and storage. A missing id returns an
// error wrapping storage.ErrNotFound.
func (idx *Indexer) DeleteDocument(ctx context.Context, id string) error {
	idx.logger.Debug("indexer deleting document", zap.String("id", id))
	if err := idx.keywordIndex.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete from keyword index: %w", err)
	}
	if err := idx.vectorIndex.Remove(ctx, []string{id}); err != nil {
		return fmt.Errorf("failed to delete from vector index: %w", err)
	}
	if err := idx.storage.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	idx.logger.Debug("indexer document deleted", zap.String("id", id))
	return nil
}
