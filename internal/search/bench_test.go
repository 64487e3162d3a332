package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/hyperjump/kasane/internal/config"
	"github.com/hyperjump/kasane/internal/models"
)

func benchBatches(n int) (vec, kw []models.Candidate) {
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("doc-%04d", i)
		meta := models.Metadata{"normalized_text": id, "category": fmt.Sprintf("g%d", i%7)}
		vec = append(vec, models.Candidate{ID: id, Source: models.SourceVector, RawScore: float64(n-i)/float64(n)*2 - 1, Metadata: meta})
		if i%2 == 0 {
			kw = append(kw, models.Candidate{ID: id, Source: models.SourceKeyword, RawScore: float64(i) * 0.37, Metadata: meta})
		}
	}
	return vec, kw
}

func BenchmarkHybridize(b *testing.B) {
	vec, kw := benchBatches(200)
	nv, _ := NormalizeVectorScores(vec)
	nk, _ := NormalizeKeywordScores(kw)
	cfg := config.DefaultSearchConfig()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Hybridize(nv, nk, "doc-0010", cfg, "normalized_text")
	}
}

func BenchmarkEngineSearch(b *testing.B) {
	vec, kw := benchBatches(100)
	e := NewEngine(&fakeSource{candidates: vec}, &fakeSource{candidates: kw}, staticConfig{cfg: config.DefaultSearchConfig()})
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Search(ctx, "doc 0010", nil)
	}
}
