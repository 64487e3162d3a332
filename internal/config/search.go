package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"gopkg.in/yaml.v3"

	apperrors "github.com/hyperjump/kasane/internal/errors"
	"github.com/hyperjump/kasane/internal/models"
)

// WeightTolerance is the allowed drift when checking that the two weights sum to 1.
const WeightTolerance = 1e-9

// SearchConfig is the fusion policy applied to a query. Values are immutable once built: the
// store hands out copies and replaces the whole record on every change.
type SearchConfig struct {
	VectorWeight     float64 `yaml:"vector_weight" json:"vector_weight"`
	KeywordWeight    float64 `yaml:"keyword_weight" json:"keyword_weight"`
	MinVectorScore   float64 `yaml:"min_vector_score" json:"min_vector_score"`
	MinKeywordScore  float64 `yaml:"min_keyword_score" json:"min_keyword_score"`
	MinCombinedScore float64 `yaml:"min_combined_score" json:"min_combined_score"`

	InitialCandidates           int     `yaml:"initial_candidates" json:"initial_candidates"`
	MaxCandidates               int     `yaml:"max_candidates" json:"max_candidates"`
	CandidateExpansionThreshold float64 `yaml:"candidate_expansion_threshold" json:"candidate_expansion_threshold"`

	EnableReranking bool `yaml:"enable_reranking" json:"enable_reranking"`
}

// DefaultSearchConfig returns the built-in factory defaults.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		VectorWeight:                0.7,
		KeywordWeight:               0.3,
		MinVectorScore:              0.0,
		MinKeywordScore:             0.0,
		MinCombinedScore:            0.25,
		InitialCandidates:           20,
		MaxCandidates:               100,
		CandidateExpansionThreshold: 0.8,
		EnableReranking:             false,
	}
}

// NewSearchConfig validates c and returns it. KeywordWeight must equal 1 - VectorWeight.
func NewSearchConfig(c SearchConfig) (SearchConfig, error) {
	if err := c.Validate(); err != nil {
		return SearchConfig{}, err
	}
	return c, nil
}

// Validate reports the first rule c breaks as a *errors.ConfigError. Out-of-range values are
// rejected, never clamped.
func (c SearchConfig) Validate() error {
	unit := []struct {
		field string
		value float64
	}{
		{"vector_weight", c.VectorWeight},
		{"keyword_weight", c.KeywordWeight},
		{"min_vector_score", c.MinVectorScore},
		{"min_keyword_score", c.MinKeywordScore},
		{"min_combined_score", c.MinCombinedScore},
		{"candidate_expansion_threshold", c.CandidateExpansionThreshold},
	}
	for _, u := range unit {
		if math.IsNaN(u.value) || u.value < 0 || u.value > 1 {
			return apperrors.NewConfigError(u.field, "must be between 0 and 1, got %g", u.value)
		}
	}
	if math.Abs(c.VectorWeight+c.KeywordWeight-1) > WeightTolerance {
		return apperrors.NewConfigError("keyword_weight", "weights must sum to 1, got %g + %g", c.VectorWeight, c.KeywordWeight)
	}
	if c.InitialCandidates <= 0 {
		return apperrors.NewConfigError("initial_candidates", "must be positive, got %d", c.InitialCandidates)
	}
	if c.MaxCandidates <= 0 {
		return apperrors.NewConfigError("max_candidates", "must be positive, got %d", c.MaxCandidates)
	}
	if c.MaxCandidates < c.InitialCandidates {
		return apperrors.NewConfigError("max_candidates", "must be at least initial_candidates (%d), got %d", c.InitialCandidates, c.MaxCandidates)
	}
	return nil
}

// Thresholds returns the three score floors.
func (c SearchConfig) Thresholds() models.Thresholds {
	return models.Thresholds{
		MinVectorScore:   c.MinVectorScore,
		MinKeywordScore:  c.MinKeywordScore,
		MinCombinedScore: c.MinCombinedScore,
	}
}

// Weights returns the fusion weights.
func (c SearchConfig) Weights() models.Weights {
	return models.Weights{Vector: c.VectorWeight, Keyword: c.KeywordWeight}
}

// WithVectorWeight returns a copy of c whose weights are vw and 1 - vw. The result is not
// validated.
func (c SearchConfig) WithVectorWeight(vw float64) SearchConfig {
	c.VectorWeight = vw
	c.KeywordWeight = complement(vw)
	return c
}

// complement returns 1 - w snapped to nine decimals so 1 - 0.7 is stored as 0.3.
func complement(w float64) float64 {
	return math.Round((1-w)*1e9) / 1e9
}

// SearchConfigPatch is a partial update. Nil fields keep their current value.
type SearchConfigPatch struct {
	VectorWeight                *float64 `yaml:"vector_weight" json:"vector_weight,omitempty"`
	KeywordWeight               *float64 `yaml:"keyword_weight" json:"keyword_weight,omitempty"`
	MinVectorScore              *float64 `yaml:"min_vector_score" json:"min_vector_score,omitempty"`
	MinKeywordScore             *float64 `yaml:"min_keyword_score" json:"min_keyword_score,omitempty"`
	MinCombinedScore            *float64 `yaml:"min_combined_score" json:"min_combined_score,omitempty"`
	InitialCandidates           *int     `yaml:"initial_candidates" json:"initial_candidates,omitempty"`
	MaxCandidates               *int     `yaml:"max_candidates" json:"max_candidates,omitempty"`
	CandidateExpansionThreshold *float64 `yaml:"candidate_expansion_threshold" json:"candidate_expansion_threshold,omitempty"`
	EnableReranking             *bool    `yaml:"enable_reranking" json:"enable_reranking,omitempty"`
}

// Empty reports whether p changes nothing.
func (p SearchConfigPatch) Empty() bool {
	return p == SearchConfigPatch{}
}

// Apply returns base with p applied and validated. Setting only one weight derives the other.
func (p SearchConfigPatch) Apply(base SearchConfig) (SearchConfig, error) {
	out := base
	switch {
	case p.VectorWeight != nil && p.KeywordWeight != nil:
		out.VectorWeight = *p.VectorWeight
		out.KeywordWeight = *p.KeywordWeight
	case p.VectorWeight != nil:
		out = out.WithVectorWeight(*p.VectorWeight)
	case p.KeywordWeight != nil:
		out.KeywordWeight = *p.KeywordWeight
		out.VectorWeight = complement(*p.KeywordWeight)
	}
	if p.MinVectorScore != nil {
		out.MinVectorScore = *p.MinVectorScore
	}
	if p.MinKeywordScore != nil {
		out.MinKeywordScore = *p.MinKeywordScore
	}
	if p.MinCombinedScore != nil {
		out.MinCombinedScore = *p.MinCombinedScore
	}
	if p.InitialCandidates != nil {
		out.InitialCandidates = *p.InitialCandidates
	}
	if p.MaxCandidates != nil {
		out.MaxCandidates = *p.MaxCandidates
	}
	if p.CandidateExpansionThreshold != nil {
		out.CandidateExpansionThreshold = *p.CandidateExpansionThreshold
	}
	if p.EnableReranking != nil {
		out.EnableReranking = *p.EnableReranking
	}
	return NewSearchConfig(out)
}

// ParsePatch decodes a YAML (or JSON) partial update. Unknown keys are rejected.
func ParsePatch(data []byte) (SearchConfigPatch, error) {
	var p SearchConfigPatch
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return SearchConfigPatch{}, nil
		}
		return SearchConfigPatch{}, &apperrors.ConfigError{Reason: err.Error()}
	}
	return p, nil
}

// searchConfigFile mirrors SearchConfig with optional fields so missing keys can be reported.
type searchConfigFile struct {
	VectorWeight                *float64 `yaml:"vector_weight"`
	KeywordWeight               *float64 `yaml:"keyword_weight"`
	MinVectorScore              *float64 `yaml:"min_vector_score"`
	MinKeywordScore             *float64 `yaml:"min_keyword_score"`
	MinCombinedScore            *float64 `yaml:"min_combined_score"`
	InitialCandidates           *int     `yaml:"initial_candidates"`
	MaxCandidates               *int     `yaml:"max_candidates"`
	CandidateExpansionThreshold *float64 `yaml:"candidate_expansion_threshold"`
	EnableReranking             *bool    `yaml:"enable_reranking"`
}

// ParseSearchConfig decodes a complete fusion policy from YAML. Every field except
// keyword_weight is required; a missing keyword_weight is derived from vector_weight.
func ParseSearchConfig(data []byte) (SearchConfig, error) {
	var f searchConfigFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return SearchConfig{}, &apperrors.ConfigError{Reason: fmt.Sprintf("parse: %v", err)}
	}

	required := []struct {
		field   string
		present bool
	}{
		{"vector_weight", f.VectorWeight != nil},
		{"min_vector_score", f.MinVectorScore != nil},
		{"min_keyword_score", f.MinKeywordScore != nil},
		{"min_combined_score", f.MinCombinedScore != nil},
		{"initial_candidates", f.InitialCandidates != nil},
		{"max_candidates", f.MaxCandidates != nil},
		{"candidate_expansion_threshold", f.CandidateExpansionThreshold != nil},
		{"enable_reranking", f.EnableReranking != nil},
	}
	for _, r := range required {
		if !r.present {
			return SearchConfig{}, apperrors.NewConfigError(r.field, "missing required field")
		}
	}

	c := SearchConfig{
		VectorWeight:                *f.VectorWeight,
		KeywordWeight:               complement(*f.VectorWeight),
		MinVectorScore:              *f.MinVectorScore,
		MinKeywordScore:             *f.MinKeywordScore,
		MinCombinedScore:            *f.MinCombinedScore,
		InitialCandidates:           *f.InitialCandidates,
		MaxCandidates:               *f.MaxCandidates,
		CandidateExpansionThreshold: *f.CandidateExpansionThreshold,
		EnableReranking:             *f.EnableReranking,
	}
	if f.KeywordWeight != nil {
		c.KeywordWeight = *f.KeywordWeight
	}
	return NewSearchConfig(c)
}

// MarshalSearchConfig encodes c as YAML.
func MarshalSearchConfig(c SearchConfig) ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search config: %w", err)
	}
	return data, nil
}
