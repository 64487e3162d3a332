// Package storage defines the persistence interface for indexed documents.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/kasane/internal/models"
)

// ErrNotFound is returned when a document id has no stored record.
var ErrNotFound = errors.New("document not found")

// Storage defines document persistence operations. Candidate sources use GetDocuments to
// hydrate metadata for the ids an index returned.
type Storage interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	UpsertDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	// GetDocuments returns the stored documents for ids; missing ids are omitted from the map.
	GetDocuments(ctx context.Context, ids []string) (map[string]*models.Document, error)
	UpdateDocument(ctx context.Context, doc *models.Document) error
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)

	CountDocuments(ctx context.Context) (int64, error)

	Close() error
}
