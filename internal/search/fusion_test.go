package search

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/hyperjump/kasane/internal/errors"
	"github.com/hyperjump/kasane/internal/models"
)

func vc(id string, raw float64) models.Candidate {
	return models.Candidate{ID: id, Source: models.SourceVector, RawScore: raw}
}

func kc(id string, raw float64) models.Candidate {
	return models.Candidate{ID: id, Source: models.SourceKeyword, RawScore: raw}
}

func TestNormalizeVectorScore(t *testing.T) {
	tests := []struct {
		name    string
		raw     float64
		want    float64
		wantErr bool
	}{
		{"max", 1, 1, false},
		{"min", -1, 0, false},
		{"zero", 0, 0.5, false},
		{"within epsilon above", 1 + 1e-7, 1, false},
		{"within epsilon below", -1 - 1e-7, 0, false},
		{"too high", 1.01, 0, true},
		{"too low", -1.5, 0, true},
		{"nan", math.NaN(), 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeVectorScore("x", tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsNormalization(err))
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestNormalizeVectorScores_DedupeKeepsHighest(t *testing.T) {
	out, err := NormalizeVectorScores([]models.Candidate{vc("a", 0.2), vc("b", 0), vc("a", 0.6)})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.InDelta(t, 0.8, out[0].Score, 1e-9)
	assert.Equal(t, "b", out[1].ID)
}

func TestNormalizeVectorScores_ErrorNamesCandidate(t *testing.T) {
	_, err := NormalizeVectorScores([]models.Candidate{vc("ok", 0.5), vc("bad", 3)})
	var ne *apperrors.NormalizationError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, "bad", ne.ID)
	assert.Equal(t, "vector", ne.Source)
}

func TestNormalizeKeywordScores(t *testing.T) {
	out, err := NormalizeKeywordScores([]models.Candidate{kc("a", 4), kc("b", 2), kc("c", 0)})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.InDelta(t, 1.0, out[0].Score, 1e-9)
	assert.InDelta(t, 0.5, out[1].Score, 1e-9)
	assert.InDelta(t, 0.0, out[2].Score, 1e-9)
}

func TestNormalizeKeywordScores_AllZero(t *testing.T) {
	out, err := NormalizeKeywordScores([]models.Candidate{kc("a", 0), kc("b", 0)})
	require.NoError(t, err)
	for _, c := range out {
		assert.Zero(t, c.Score)
	}
}

func TestNormalizeKeywordScores_Empty(t *testing.T) {
	out, err := NormalizeKeywordScores(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestNormalizeKeywordScores_RejectsBadRaw(t *testing.T) {
	for _, raw := range []float64{-0.1, math.NaN(), math.Inf(1)} {
		_, err := NormalizeKeywordScores([]models.Candidate{kc("a", 1), kc("b", raw)})
		assert.True(t, apperrors.IsNormalization(err), "raw=%v", raw)
	}
}

func TestCombineScores(t *testing.T) {
	assert.InDelta(t, 0.69, CombineScores(0.9, 0.2, 0.7), 1e-9)
	assert.InDelta(t, 0.62, CombineScores(0.5, 0.9, 0.7), 1e-9)
	assert.InDelta(t, 0.9, CombineScores(0.9, 0.2, 1), 1e-9)
	assert.InDelta(t, 0.2, CombineScores(0.9, 0.2, 0), 1e-9)
	assert.Equal(t, 1.0, CombineScores(1.5, 1.5, 0.5))
}
