package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/kasane/internal/config"
	apperrors "github.com/hyperjump/kasane/internal/errors"
	"github.com/hyperjump/kasane/internal/models"
)

const testCanonicalKey = "normalized_text"

func nc(id string, score float64, meta models.Metadata) NormalizedCandidate {
	return NormalizedCandidate{ID: id, Score: score, Metadata: meta}
}

func zeroThresholds(vw float64) config.SearchConfig {
	cfg := config.DefaultSearchConfig().WithVectorWeight(vw)
	cfg.MinVectorScore, cfg.MinKeywordScore, cfg.MinCombinedScore = 0, 0, 0
	return cfg
}

func ids(matches []*models.ScoredMatch) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.ID
	}
	return out
}

func TestHybridize_Examples(t *testing.T) {
	vector := []NormalizedCandidate{nc("a", 0.9, nil), nc("b", 0.5, nil)}
	keyword := []NormalizedCandidate{nc("a", 0.2, nil), nc("b", 0.9, nil)}

	tests := []struct {
		name        string
		minCombined float64
		keyword     []NormalizedCandidate
		wantIDs     []string
		wantScores  []float64
	}{
		{"both sources, no floors", 0, keyword, []string{"a", "b"}, []float64{0.69, 0.62}},
		{"combined floor drops b", 0.65, keyword, []string{"a"}, []float64{0.69}},
		{"empty keyword batch", 0, nil, []string{"a", "b"}, []float64{0.63, 0.35}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := zeroThresholds(0.7)
			cfg.MinCombinedScore = tt.minCombined
			res, err := Hybridize(vector, tt.keyword, "query", cfg, testCanonicalKey)
			require.NoError(t, err)
			assert.Nil(t, res.ExactMatch)
			assert.Equal(t, tt.wantIDs, ids(res.Matches))
			for i, m := range res.Matches {
				assert.InDelta(t, tt.wantScores[i], m.CombinedScore, 1e-9)
				if tt.keyword == nil {
					assert.Zero(t, m.KeywordScore)
				}
			}
			assert.Equal(t, 2, res.TotalCandidates)
		})
	}
}

func TestHybridize_ExactMatchRemovedFromMatches(t *testing.T) {
	vector := []NormalizedCandidate{
		nc("c", 0.99, models.Metadata{testCanonicalKey: "Neural Networks"}),
		nc("d", 0.6, models.Metadata{testCanonicalKey: "neural networks basics"}),
	}
	res, err := Hybridize(vector, nil, "neural networks", zeroThresholds(0.7), testCanonicalKey)
	require.NoError(t, err)
	require.NotNil(t, res.ExactMatch)
	assert.Equal(t, "c", res.ExactMatch.ID)
	assert.Equal(t, []string{"d"}, ids(res.Matches))
}

func TestHybridize_ExactMatchMustPassFloors(t *testing.T) {
	vector := []NormalizedCandidate{nc("c", 0.1, models.Metadata{testCanonicalKey: "q"})}
	cfg := zeroThresholds(0.7)
	cfg.MinCombinedScore = 0.5
	res, err := Hybridize(vector, nil, "q", cfg, testCanonicalKey)
	require.NoError(t, err)
	assert.Nil(t, res.ExactMatch)
	assert.Empty(t, res.Matches)
}

func TestHybridize_ExactMatchDisabledWithoutKey(t *testing.T) {
	vector := []NormalizedCandidate{nc("c", 0.9, models.Metadata{testCanonicalKey: "q"})}
	res, err := Hybridize(vector, nil, "q", zeroThresholds(0.7), "")
	require.NoError(t, err)
	assert.Nil(t, res.ExactMatch)
	assert.Len(t, res.Matches, 1)
}

func TestHybridize_PerSourceFloorsOnlyForPresentSources(t *testing.T) {
	cfg := zeroThresholds(0.5)
	cfg.MinVectorScore = 0.5
	cfg.MinKeywordScore = 0.5

	vector := []NormalizedCandidate{nc("v-low", 0.2, nil), nc("v-only", 0.9, nil)}
	keyword := []NormalizedCandidate{nc("v-low", 0.9, nil), nc("k-only", 0.9, nil), nc("k-low", 0.1, nil)}

	res, err := Hybridize(vector, keyword, "q", cfg, testCanonicalKey)
	require.NoError(t, err)
	// k-only has no vector score but is not held to the vector floor
	assert.ElementsMatch(t, []string{"v-only", "k-only"}, ids(res.Matches))
	assert.Equal(t, 4, res.TotalCandidates)
}

func TestHybridize_VectorMetadataWins(t *testing.T) {
	vector := []NormalizedCandidate{nc("a", 0.8, models.Metadata{"title": "from vector"})}
	keyword := []NormalizedCandidate{nc("a", 0.5, models.Metadata{"title": "from keyword", "extra": "kw"})}

	res, err := Hybridize(vector, keyword, "q", zeroThresholds(0.7), testCanonicalKey)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	m := res.Matches[0]
	assert.Equal(t, "from vector", m.Metadata["title"])
	assert.Equal(t, "kw", m.Metadata["extra"])
	assert.True(t, m.InVector)
	assert.True(t, m.InKeyword)
	assert.Nil(t, vector[0].Metadata["extra"], "input metadata must not be mutated")
}

func TestHybridize_TieBreakByID(t *testing.T) {
	vector := []NormalizedCandidate{nc("z", 0.5, nil), nc("m", 0.5, nil), nc("a", 0.5, nil)}
	res, err := Hybridize(vector, nil, "q", zeroThresholds(1), testCanonicalKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "m", "z"}, ids(res.Matches))
}

func TestHybridize_InvalidConfig(t *testing.T) {
	cfg := config.DefaultSearchConfig()
	cfg.KeywordWeight = 0.9
	_, err := Hybridize(nil, nil, "q", cfg, testCanonicalKey)
	assert.True(t, apperrors.IsConfig(err))
}

func TestHybridize_Empty(t *testing.T) {
	res, err := Hybridize(nil, nil, "q", config.DefaultSearchConfig(), testCanonicalKey)
	require.NoError(t, err)
	assert.Nil(t, res.ExactMatch)
	assert.Empty(t, res.Matches)
	assert.Zero(t, res.TotalCandidates)
}
