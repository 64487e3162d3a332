package vector

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coder/hnsw"
	json "github.com/goccy/go-json"
)

// HNSW graph parameters.
const (
	DefaultHNSWM        = 16
	DefaultHNSWEfSearch = 64
)

// HNSWIndex is an approximate nearest-neighbour index backed by coder/hnsw. Replaced and removed
// ids are orphaned in the graph rather than deleted and skipped at query time.
type HNSWIndex struct {
	dimensions int
	graph      *hnsw.Graph[uint64]
	idMap      map[string]uint64
	keyMap     map[uint64]string
	nextKey    uint64
	mu         sync.RWMutex
}

type hnswMeta struct {
	Dimensions int               `json:"dimensions"`
	IDMap      map[string]uint64 `json:"id_map"`
	NextKey    uint64            `json:"next_key"`
}

// NewHNSWIndex creates an empty HNSW index with the given dimension.
func NewHNSWIndex(dimensions int) (*HNSWIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &HNSWIndex{
		dimensions: dimensions,
		graph:      newGraph(),
		idMap:      make(map[string]uint64),
		keyMap:     make(map[uint64]string),
	}, nil
}

func newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = DefaultHNSWM
	g.EfSearch = DefaultHNSWEfSearch
	g.Ml = 0.25
	return g
}

// Type returns the index type identifier.
func (h *HNSWIndex) Type() string {
	return string(IndexTypeHNSW)
}

// Add inserts vectors. Zero vectors are rejected since they have no direction.
func (h *HNSWIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	for i, v := range vectors {
		if len(v) != h.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(v), h.dimensions)
		}
		if isZero(v) {
			return fmt.Errorf("vector for %q is all zeros", ids[i])
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, id := range ids {
		if old, ok := h.idMap[id]; ok {
			delete(h.keyMap, old)
		}
		key := h.nextKey
		h.nextKey++
		vec := make([]float32, h.dimensions)
		copy(vec, vectors[i])
		h.graph.Add(hnsw.MakeNode(key, vec))
		h.idMap[id] = key
		h.keyMap[key] = id
	}
	return nil
}

// Search returns up to k live hits with their raw cosine similarity.
func (h *HNSWIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(query) != h.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), h.dimensions)
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if k <= 0 || len(h.keyMap) == 0 || isZero(query) {
		return nil, nil
	}

	// over-fetch to make up for orphaned nodes
	want := k + (h.graph.Len() - len(h.keyMap))
	if want > h.graph.Len() {
		want = h.graph.Len()
	}
	nodes := h.graph.Search(query, want)

	results := make([]*VectorResult, 0, k)
	for _, node := range nodes {
		id, ok := h.keyMap[node.Key]
		if !ok {
			continue
		}
		results = append(results, &VectorResult{ID: id, Score: Cosine(query, node.Value)})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Remove orphans the given ids.
func (h *HNSWIndex) Remove(ctx context.Context, ids []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range ids {
		if key, ok := h.idMap[id]; ok {
			delete(h.keyMap, key)
			delete(h.idMap, id)
		}
	}
	return nil
}

// Save exports the graph to path and the id mapping to path+".meta", each via temp file and rename.
func (h *HNSWIndex) Save(path string) error {
	if path == "" {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	if err := h.graph.Export(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename index file: %w", err)
	}

	data, err := json.Marshal(hnswMeta{Dimensions: h.dimensions, IDMap: h.idMap, NextKey: h.nextKey})
	if err != nil {
		return fmt.Errorf("encode index metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta.tmp", data, 0644); err != nil {
		return fmt.Errorf("write index metadata: %w", err)
	}
	return os.Rename(path+".meta.tmp", path+".meta")
}

// Load replaces the index contents from path. A missing file leaves the index unchanged.
func (h *HNSWIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path + ".meta")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read index metadata: %w", err)
	}
	var meta hnswMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("decode index metadata: %w", err)
	}
	if meta.Dimensions != h.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", meta.Dimensions, h.dimensions)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	g := newGraph()
	// Import needs an io.ByteReader
	if err := g.Import(bufio.NewReader(f)); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.graph = g
	h.idMap = meta.IDMap
	if h.idMap == nil {
		h.idMap = make(map[string]uint64)
	}
	h.nextKey = meta.NextKey
	h.keyMap = make(map[uint64]string, len(h.idMap))
	for id, key := range h.idMap {
		h.keyMap[key] = id
	}
	return nil
}

// Size returns the number of live vectors.
func (h *HNSWIndex) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.keyMap)
}

// Close is a no-op; the graph is garbage collected.
func (h *HNSWIndex) Close() error {
	return nil
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 && !math.IsNaN(float64(x)) {
			return false
		}
	}
	return true
}
