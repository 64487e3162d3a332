// Package search implements hybrid ranking: score normalization, fusion of the vector and
// keyword candidate sets, optional reranking, analytics and the query orchestrator.
package search

import (
	"math"

	apperrors "github.com/hyperjump/kasane/internal/errors"
	"github.com/hyperjump/kasane/internal/models"
)

// ScoreEpsilon is how far a raw cosine may sit outside [-1,1] before it is a contract breach.
const ScoreEpsilon = 1e-6

// NormalizedCandidate is a deduplicated candidate whose score is on [0,1].
type NormalizedCandidate struct {
	ID       string
	Score    float64
	Metadata models.Metadata
}

// dedupe keeps the highest raw score per id, in order of first appearance.
func dedupe(batch []models.Candidate) []models.Candidate {
	if len(batch) == 0 {
		return nil
	}
	pos := make(map[string]int, len(batch))
	out := make([]models.Candidate, 0, len(batch))
	for _, c := range batch {
		if i, ok := pos[c.ID]; ok {
			if c.RawScore > out[i].RawScore {
				out[i] = c
			}
			continue
		}
		pos[c.ID] = len(out)
		out = append(out, c)
	}
	return out
}

// NormalizeVectorScore maps a raw cosine from [-1,1] onto [0,1] via (raw+1)/2. Values within
// ScoreEpsilon of the range are clamped; anything further out is a *errors.NormalizationError.
func NormalizeVectorScore(id string, raw float64) (float64, error) {
	if math.IsNaN(raw) || raw < -1-ScoreEpsilon || raw > 1+ScoreEpsilon {
		return 0, &apperrors.NormalizationError{
			Source: models.SourceVector.String(),
			ID:     id,
			Raw:    raw,
			Reason: "cosine similarity must be in [-1,1]",
		}
	}
	return clamp01((raw + 1) / 2), nil
}

// NormalizeVectorScores normalizes a vector batch. Duplicate ids keep their highest score.
func NormalizeVectorScores(batch []models.Candidate) ([]NormalizedCandidate, error) {
	batch = dedupe(batch)
	out := make([]NormalizedCandidate, 0, len(batch))
	for _, c := range batch {
		s, err := NormalizeVectorScore(c.ID, c.RawScore)
		if err != nil {
			return nil, err
		}
		out = append(out, NormalizedCandidate{ID: c.ID, Score: s, Metadata: c.Metadata})
	}
	return out, nil
}

// NormalizeKeywordScores normalizes a BM25 batch to [0,1] by its max. When the max is 0 every
// item scores 0. Negative raw scores are a *errors.NormalizationError.
func NormalizeKeywordScores(batch []models.Candidate) ([]NormalizedCandidate, error) {
	batch = dedupe(batch)
	if len(batch) == 0 {
		return nil, nil
	}
	maxScore := 0.0
	for _, c := range batch {
		if math.IsNaN(c.RawScore) || math.IsInf(c.RawScore, 0) || c.RawScore < 0 {
			return nil, &apperrors.NormalizationError{
				Source: models.SourceKeyword.String(),
				ID:     c.ID,
				Raw:    c.RawScore,
				Reason: "BM25 score must be finite and non-negative",
			}
		}
		if c.RawScore > maxScore {
			maxScore = c.RawScore
		}
	}
	out := make([]NormalizedCandidate, 0, len(batch))
	for _, c := range batch {
		s := 0.0
		if maxScore > 0 {
			s = c.RawScore / maxScore
		}
		out = append(out, NormalizedCandidate{ID: c.ID, Score: clamp01(s), Metadata: c.Metadata})
	}
	return out, nil
}

// CombineScores is the weighted linear fusion vw*v + (1-vw)*k, clamped to [0,1].
func CombineScores(vectorScore, keywordScore, vectorWeight float64) float64 {
	return clamp01(vectorWeight*vectorScore + (1-vectorWeight)*keywordScore)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
