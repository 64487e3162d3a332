package config

import (
	"strings"
	"testing"

	apperrors "github.com/hyperjump/kasane/internal/errors"
)

func TestDefaultSearchConfig_Valid(t *testing.T) {
	if err := DefaultSearchConfig().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestSearchConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *SearchConfig)
		field   string
		wantErr bool
	}{
		{"defaults", func(c *SearchConfig) {}, "", false},
		{"all vector", func(c *SearchConfig) { *c = c.WithVectorWeight(1) }, "", false},
		{"all keyword", func(c *SearchConfig) { *c = c.WithVectorWeight(0) }, "", false},
		{"weight above one", func(c *SearchConfig) { *c = c.WithVectorWeight(1.2) }, "vector_weight", true},
		{"weights do not sum", func(c *SearchConfig) { c.VectorWeight, c.KeywordWeight = 0.6, 0.6 }, "keyword_weight", true},
		{"negative threshold", func(c *SearchConfig) { c.MinVectorScore = -0.1 }, "min_vector_score", true},
		{"threshold above one", func(c *SearchConfig) { c.MinCombinedScore = 1.5 }, "min_combined_score", true},
		{"zero initial candidates", func(c *SearchConfig) { c.InitialCandidates = 0 }, "initial_candidates", true},
		{"max below initial", func(c *SearchConfig) { c.InitialCandidates, c.MaxCandidates = 50, 10 }, "max_candidates", true},
		{"expansion threshold", func(c *SearchConfig) { c.CandidateExpansionThreshold = 2 }, "candidate_expansion_threshold", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultSearchConfig()
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}
			ce, ok := err.(*apperrors.ConfigError)
			if !ok {
				t.Fatalf("expected *ConfigError, got %T", err)
			}
			if ce.Field != tt.field {
				t.Errorf("field = %s, want %s", ce.Field, tt.field)
			}
		})
	}
}

func TestSearchConfigPatch_Apply(t *testing.T) {
	vw := 0.4
	on := true
	got, err := SearchConfigPatch{VectorWeight: &vw, EnableReranking: &on}.Apply(DefaultSearchConfig())
	if err != nil {
		t.Fatal(err)
	}
	if got.VectorWeight != 0.4 || got.KeywordWeight != 0.6 {
		t.Errorf("weights = %g/%g, want 0.4/0.6", got.VectorWeight, got.KeywordWeight)
	}
	if !got.EnableReranking {
		t.Error("enable_reranking should be set")
	}
	if got.MinCombinedScore != DefaultSearchConfig().MinCombinedScore {
		t.Error("unpatched fields should keep their value")
	}

	kw := 0.9
	got, err = SearchConfigPatch{KeywordWeight: &kw}.Apply(DefaultSearchConfig())
	if err != nil {
		t.Fatal(err)
	}
	if diff := got.VectorWeight - 0.1; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("vector weight should be derived from keyword weight, got %g", got.VectorWeight)
	}
}

func TestSearchConfigPatch_ApplyRejectsInvalid(t *testing.T) {
	bad := 1.5
	base := DefaultSearchConfig()
	if _, err := (SearchConfigPatch{MinKeywordScore: &bad}).Apply(base); !apperrors.IsConfig(err) {
		t.Errorf("expected ConfigError, got %v", err)
	}
}

func TestParsePatch(t *testing.T) {
	p, err := ParsePatch([]byte(`{"vector_weight": 0.5, "enable_reranking": true}`))
	if err != nil {
		t.Fatal(err)
	}
	if p.VectorWeight == nil || *p.VectorWeight != 0.5 {
		t.Errorf("vector_weight not parsed: %+v", p)
	}
	if p.MinVectorScore != nil {
		t.Error("absent fields should stay nil")
	}

	if _, err := ParsePatch([]byte("bogus_key: 1\n")); !apperrors.IsConfig(err) {
		t.Errorf("unknown key should be rejected with ConfigError, got %v", err)
	}

	p, err = ParsePatch(nil)
	if err != nil || !p.Empty() {
		t.Errorf("empty input should give an empty patch, got %+v, %v", p, err)
	}
}

func TestParseSearchConfig(t *testing.T) {
	full := `
vector_weight: 0.6
min_vector_score: 0.1
min_keyword_score: 0.2
min_combined_score: 0.3
initial_candidates: 10
max_candidates: 40
candidate_expansion_threshold: 0.75
enable_reranking: true
`
	c, err := ParseSearchConfig([]byte(full))
	if err != nil {
		t.Fatal(err)
	}
	if c.KeywordWeight < 0.4-1e-12 || c.KeywordWeight > 0.4+1e-12 {
		t.Errorf("keyword weight should be derived, got %g", c.KeywordWeight)
	}
	if c.MaxCandidates != 40 || !c.EnableReranking {
		t.Errorf("unexpected config: %+v", c)
	}

	missing := strings.Replace(full, "min_combined_score: 0.3\n", "", 1)
	_, err = ParseSearchConfig([]byte(missing))
	if !apperrors.IsConfig(err) || !strings.Contains(err.Error(), "min_combined_score") {
		t.Errorf("expected missing field error, got %v", err)
	}

	mismatched := full + "keyword_weight: 0.5\n"
	if _, err := ParseSearchConfig([]byte(mismatched)); !apperrors.IsConfig(err) {
		t.Errorf("expected weight sum error, got %v", err)
	}
}

func TestMarshalSearchConfig_RoundTrip(t *testing.T) {
	want := DefaultSearchConfig().WithVectorWeight(0.55)
	data, err := MarshalSearchConfig(want)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ParseSearchConfig(data)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("round trip: got %+v, want %+v", got, want)
	}
}

func TestWithVectorWeight_ExactComplement(t *testing.T) {
	tests := []struct {
		vw, want float64
	}{
		{0.7, 0.3},
		{0.9, 0.1},
		{0.2, 0.8},
		{0, 1},
		{1, 0},
	}
	for _, tt := range tests {
		if got := DefaultSearchConfig().WithVectorWeight(tt.vw).KeywordWeight; got != tt.want {
			t.Errorf("WithVectorWeight(%g).KeywordWeight = %v, want %v", tt.vw, got, tt.want)
		}
	}

	vw := 0.7
	got, err := SearchConfigPatch{VectorWeight: &vw}.Apply(DefaultSearchConfig())
	if err != nil {
		t.Fatal(err)
	}
	if got.KeywordWeight != 0.3 {
		t.Errorf("patched keyword weight = %v, want 0.3", got.KeywordWeight)
	}
	kw := 0.3
	got, err = SearchConfigPatch{KeywordWeight: &kw}.Apply(DefaultSearchConfig())
	if err != nil {
		t.Fatal(err)
	}
	if got.VectorWeight != 0.7 {
		t.Errorf("derived vector weight = %v, want 0.7", got.VectorWeight)
	}
}
