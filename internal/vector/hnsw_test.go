package vector

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
)

func seedHNSW(t *testing.T, n int) *HNSWIndex {
	t.Helper()
	idx, err := NewHNSWIndex(4)
	if err != nil {
		t.Fatal(err)
	}
	ids := make([]string, n)
	vecs := make([][]float32, n)
	for i := 0; i < n; i++ {
		ids[i] = fmt.Sprintf("doc-%02d", i)
		vecs[i] = []float32{float32(i + 1), 1, float32(i % 3), 0.5}
	}
	if err := idx.Add(context.Background(), ids, vecs); err != nil {
		t.Fatal(err)
	}
	return idx
}

func TestHNSWIndex_Search(t *testing.T) {
	idx := seedHNSW(t, 20)
	ctx := context.Background()

	results, err := idx.Search(ctx, []float32{20, 1, 1, 0.5}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Score < -1 || r.Score > 1 {
			t.Errorf("score out of range: %f", r.Score)
		}
		if i > 0 && r.Score > results[i-1].Score {
			t.Error("results should be sorted by descending score")
		}
	}
}

func TestHNSWIndex_ReplaceAndRemove(t *testing.T) {
	idx, _ := NewHNSWIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"a", "b", "c"}, [][]float32{{1, 0}, {0, 1}, {1, 1}})

	_ = idx.Add(ctx, []string{"a"}, [][]float32{{0, 1}})
	if idx.Size() != 3 {
		t.Errorf("replacing should keep size 3, got %d", idx.Size())
	}
	if err := idx.Remove(ctx, []string{"b"}); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 2 {
		t.Errorf("size after remove = %d, want 2", idx.Size())
	}

	results, _ := idx.Search(ctx, []float32{0, 1}, 3)
	if len(results) != 2 {
		t.Fatalf("removed ids should not be returned, got %d results", len(results))
	}
	for _, r := range results {
		if r.ID == "b" {
			t.Error("removed id returned")
		}
	}
	if results[0].ID != "a" {
		t.Errorf("replaced vector should now match best, got %s", results[0].ID)
	}
}

func TestHNSWIndex_RejectsZeroVector(t *testing.T) {
	idx, _ := NewHNSWIndex(2)
	if err := idx.Add(context.Background(), []string{"z"}, [][]float32{{0, 0}}); err == nil {
		t.Error("expected zero vector to be rejected")
	}
}

func TestHNSWIndex_SaveLoad(t *testing.T) {
	idx := seedHNSW(t, 10)
	path := filepath.Join(t.TempDir(), "hnsw", "graph.bin")
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, _ := NewHNSWIndex(4)
	if err := loaded.Load(path); err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != 10 {
		t.Errorf("loaded size = %d, want 10", loaded.Size())
	}
	ctx := context.Background()
	want, _ := idx.Search(ctx, []float32{3, 1, 2, 0.5}, 1)
	got, _ := loaded.Search(ctx, []float32{3, 1, 2, 0.5}, 1)
	if got[0].ID != want[0].ID {
		t.Errorf("loaded index answers differently: %s vs %s", got[0].ID, want[0].ID)
	}

	other, _ := NewHNSWIndex(8)
	if err := other.Load(path); err == nil {
		t.Error("expected dimension mismatch")
	}
}
