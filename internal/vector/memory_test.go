package vector

import (
	"context"
	"math"
	"path/filepath"
	"testing"
)

func TestMemoryIndex_AddSearch(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
		{-1, 0, 0},
	}
	ids := []string{"a", "b", "c", "d"}
	if err := idx.Add(ctx, ids, vecs); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 4 {
		t.Errorf("Size=%d", idx.Size())
	}

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if results[0].ID != "a" || results[1].ID != "b" {
		t.Errorf("unexpected order: %s, %s", results[0].ID, results[1].ID)
	}
	last := results[3]
	if last.ID != "d" || math.Abs(last.Score+1) > 1e-9 {
		t.Errorf("opposite vector should score -1, got %s=%f", last.ID, last.Score)
	}
}

func TestMemoryIndex_UnnormalizedVectorsStayInRange(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"big"}, [][]float32{{30, 40}})
	results, err := idx.Search(ctx, []float32{3, 4}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Score > 1 || results[0].Score < 0.999 {
		t.Errorf("cosine of parallel vectors should be 1, got %f", results[0].Score)
	}
}

func TestMemoryIndex_AddReplaces(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"x"}, [][]float32{{1, 0}})
	_ = idx.Add(ctx, []string{"x"}, [][]float32{{0, 1}})
	if idx.Size() != 1 {
		t.Fatalf("re-adding an id should replace it, size=%d", idx.Size())
	}
	results, _ := idx.Search(ctx, []float32{0, 1}, 1)
	if results[0].Score < 0.999 {
		t.Errorf("expected replaced vector to match, got %f", results[0].Score)
	}
}

func TestMemoryIndex_TiesBrokenByID(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"z", "a", "m"}, [][]float32{{1, 0}, {1, 0}, {1, 0}})
	results, _ := idx.Search(ctx, []float32{1, 0}, 3)
	if results[0].ID != "a" || results[1].ID != "m" || results[2].ID != "z" {
		t.Errorf("ties should be ordered by id, got %s %s %s", results[0].ID, results[1].ID, results[2].ID)
	}
}

func TestMemoryIndex_Remove(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"x", "y"}, [][]float32{{1, 0}, {0, 1}})
	if err := idx.Remove(ctx, []string{"x"}); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 1 {
		t.Errorf("expected size 1, got %d", idx.Size())
	}
	_ = idx.Add(ctx, []string{"y"}, [][]float32{{1, 1}})
	if idx.Size() != 1 {
		t.Errorf("replace after remove should keep size 1, got %d", idx.Size())
	}
}

func TestMemoryIndex_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx", "vectors.bin")
	ctx := context.Background()

	idx, _ := NewMemoryIndex(3)
	_ = idx.Add(ctx, []string{"doc-1", "doc-2"}, [][]float32{{1, 0, 0}, {0, 0, 1}})
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, _ := NewMemoryIndex(3)
	if err := loaded.Load(path); err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != 2 {
		t.Fatalf("loaded size = %d, want 2", loaded.Size())
	}
	results, _ := loaded.Search(ctx, []float32{0, 0, 1}, 1)
	if results[0].ID != "doc-2" {
		t.Errorf("expected doc-2, got %s", results[0].ID)
	}

	wrongDim, _ := NewMemoryIndex(4)
	if err := wrongDim.Load(path); err == nil {
		t.Error("expected dimension mismatch error")
	}

	missing, _ := NewMemoryIndex(3)
	if err := missing.Load(filepath.Join(t.TempDir(), "nope.bin")); err != nil {
		t.Errorf("missing file should not error: %v", err)
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2}, []float32{1, 2}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-2, 0}, -1},
		{"zero", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine = %f, want %f", got, tt.want)
			}
		})
	}
}
