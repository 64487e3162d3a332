// Package keyword provides the BM25 keyword index over normalized document text.
package keyword

import (
	"context"

	"github.com/hyperjump/kasane/internal/models"
)

// KeywordIndex defines keyword search operations.
type KeywordIndex interface {
	// Index adds or replaces doc. Only its normalized text is searchable.
	Index(ctx context.Context, doc *models.Document) error
	// Search returns up to limit hits with raw BM25 scores, best first.
	Search(ctx context.Context, query string, limit int) ([]*KeywordResult, error)
	Delete(ctx context.Context, id string) error
	// DocCount returns the total number of documents in the index.
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit.
type KeywordResult struct {
	ID string
	// Score is the raw BM25 relevance, >= 0 and unbounded.
	Score float64
}
