package search

import (
	"sort"
	"strings"

	"github.com/hyperjump/kasane/internal/config"
	"github.com/hyperjump/kasane/internal/models"
)

// HybridResult is the Hybridizer output before reranking.
type HybridResult struct {
	ExactMatch *models.ScoredMatch
	// Matches excludes ExactMatch and is sorted by CombinedScore desc, then ID asc.
	Matches []*models.ScoredMatch
	// TotalCandidates is the number of distinct ids across both batches before filtering.
	TotalCandidates int
}

// Hybridize merges the normalized vector and keyword batches under cfg, applies the three
// thresholds, extracts the exact match and sorts the rest. canonicalKey names the metadata
// field compared with normalizedQuery; empty disables exact matching.
func Hybridize(vectorBatch, keywordBatch []NormalizedCandidate, normalizedQuery string, cfg config.SearchConfig, canonicalKey string) (*HybridResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	byID := make(map[string]*models.ScoredMatch, len(vectorBatch)+len(keywordBatch))
	order := make([]*models.ScoredMatch, 0, len(vectorBatch)+len(keywordBatch))

	for _, c := range vectorBatch {
		m, ok := byID[c.ID]
		if !ok {
			m = &models.ScoredMatch{ID: c.ID, Metadata: c.Metadata.Clone()}
			byID[c.ID] = m
			order = append(order, m)
		}
		m.VectorScore = c.Score
		m.InVector = true
	}
	for _, c := range keywordBatch {
		m, ok := byID[c.ID]
		if !ok {
			m = &models.ScoredMatch{ID: c.ID, Metadata: c.Metadata.Clone()}
			byID[c.ID] = m
			order = append(order, m)
		} else {
			// vector metadata wins; keyword only fills gaps
			for k, v := range c.Metadata {
				if _, exists := m.Metadata[k]; !exists {
					m.Metadata[k] = v
				}
			}
		}
		m.KeywordScore = c.Score
		m.InKeyword = true
	}

	res := &HybridResult{TotalCandidates: len(order)}
	matches := make([]*models.ScoredMatch, 0, len(order))
	for _, m := range order {
		m.CombinedScore = CombineScores(m.VectorScore, m.KeywordScore, cfg.VectorWeight)
		if passes(m, cfg) {
			matches = append(matches, m)
		}
	}
	SortMatches(matches)

	if canonicalKey != "" && normalizedQuery != "" {
		for i, m := range matches {
			if isExactMatch(m, normalizedQuery, canonicalKey) {
				res.ExactMatch = m
				matches = append(matches[:i], matches[i+1:]...)
				break
			}
		}
	}
	res.Matches = matches
	return res, nil
}

// passes applies the per-source floors only to sources that returned the item; the combined
// floor always applies.
func passes(m *models.ScoredMatch, cfg config.SearchConfig) bool {
	if m.InVector && m.VectorScore < cfg.MinVectorScore {
		return false
	}
	if m.InKeyword && m.KeywordScore < cfg.MinKeywordScore {
		return false
	}
	return m.CombinedScore >= cfg.MinCombinedScore
}

func isExactMatch(m *models.ScoredMatch, normalizedQuery, canonicalKey string) bool {
	key := strings.TrimSpace(m.Metadata.String(canonicalKey))
	if key == "" {
		return false
	}
	return strings.EqualFold(key, strings.TrimSpace(normalizedQuery))
}

// SortMatches orders by CombinedScore desc with ID asc as the tie-break.
func SortMatches(matches []*models.ScoredMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].CombinedScore != matches[j].CombinedScore {
			return matches[i].CombinedScore > matches[j].CombinedScore
		}
		return matches[i].ID < matches[j].ID
	})
}
