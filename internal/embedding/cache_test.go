package embedding

import (
	"context"
	"errors"
	"testing"
)

type countingEmbedder struct {
	*MockEmbedder
	calls int
	texts int
	fail  bool
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	c.texts++
	if c.fail {
		return nil, errors.New("boom")
	}
	return c.MockEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	c.texts += len(texts)
	return c.MockEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder_Embed(t *testing.T) {
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(16)}
	c := NewCachedEmbedder(inner, 2)
	ctx := context.Background()

	a1, err := c.Embed(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	a2, _ := c.Embed(ctx, "a")
	if inner.calls != 1 {
		t.Errorf("expected one inner call, got %d", inner.calls)
	}
	if &a1[0] != &a2[0] {
		t.Error("expected cached slice on hit")
	}

	_, _ = c.Embed(ctx, "b")
	_, _ = c.Embed(ctx, "c") // evicts a
	_, _ = c.Embed(ctx, "a")
	if inner.calls != 4 {
		t.Errorf("expected a to be evicted and recomputed, calls = %d", inner.calls)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestCachedEmbedder_ErrorNotCached(t *testing.T) {
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(8), fail: true}
	c := NewCachedEmbedder(inner, 10)
	if _, err := c.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
	if c.Len() != 0 {
		t.Error("errors must not be cached")
	}
}

func TestCachedEmbedder_EmbedBatchOnlyMisses(t *testing.T) {
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(8)}
	c := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	if _, err := c.Embed(ctx, "cached"); err != nil {
		t.Fatal(err)
	}
	vecs, err := c.EmbedBatch(ctx, []string{"cached", "new one", "new two"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vecs))
	}
	if inner.texts != 3 {
		t.Errorf("expected 1 + 2 texts embedded by inner, got %d", inner.texts)
	}
	for i, v := range vecs {
		if len(v) != 8 {
			t.Errorf("vector %d has %d dims", i, len(v))
		}
	}
}
