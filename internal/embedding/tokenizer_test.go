package embedding

import (
	"context"
	"math"
	"testing"
)

func TestSimpleTokenizer_Tokenize(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, _ := tok.Tokenize("hello world", 10)
	if len(ids) != 10 {
		t.Errorf("len(ids)=%d", len(ids))
	}
	if ids[0] != 101 {
		t.Errorf("expected CLS 101, got %d", ids[0])
	}
	if ids[3] != 102 {
		t.Errorf("expected SEP 102 after two words, got %d", ids[3])
	}
	if attn[0] != 1 || attn[4] != 0 {
		t.Errorf("unexpected attention mask %v", attn)
	}
}

func TestHashString(t *testing.T) {
	h := HashString("abc")
	if h == 0 {
		t.Error("hash should be non-zero")
	}
	if HashString("abc") != HashString("abc") {
		t.Error("hash should be deterministic")
	}
	long := "a very long string that will overflow the int hash many times over and over again"
	if HashString(long) < 0 {
		t.Error("hash should be non-negative")
	}
}

func TestMockEmbedder(t *testing.T) {
	e := NewMockEmbedder(64)
	ctx := context.Background()

	a, _ := e.Embed(ctx, "red apple pie")
	b, _ := e.Embed(ctx, "red apple pie")
	c, _ := e.Embed(ctx, "red apple tart")
	d, _ := e.Embed(ctx, "quantum chromodynamics")

	if cosine(a, b) < 0.999 {
		t.Error("identical text should embed identically")
	}
	if cosine(a, c) <= cosine(a, d) {
		t.Errorf("overlapping text should be closer: sim(a,c)=%f sim(a,d)=%f", cosine(a, c), cosine(a, d))
	}
	var norm float64
	for _, v := range a {
		norm += float64(v * v)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("embedding should be unit length, got %f", norm)
	}

	empty, _ := e.Embed(ctx, "")
	for _, v := range empty {
		if v != 0 {
			t.Fatal("empty text should embed to zero vector")
		}
	}
}

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i] * b[i])
	}
	return dot
}
