// Package models defines core data structures for documents, candidates, and search results.
package models

import (
	"fmt"
	"time"
)

// Metadata is the opaque key-value record attached to a document. The engine passes it through
// untouched except for the few fields named in configuration (canonical key, group, content).
type Metadata map[string]interface{}

// String returns the value stored under key as a string, or "" when absent or nil.
func (m Metadata) String(key string) string {
	if m == nil || key == "" {
		return ""
	}
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Clone returns a shallow copy of m. A nil map clones to an empty map.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Document represents a stored, searchable item.
type Document struct {
	ID             string    `json:"id" db:"id"`
	Text           string    `json:"text" db:"text"`
	NormalizedText string    `json:"normalized_text" db:"normalized_text"`
	Metadata       Metadata  `json:"metadata" db:"metadata"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// DocumentInput is the input for creating or replacing a document.
type DocumentInput struct {
	ID       string   `json:"id,omitempty"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata,omitempty"`
}
