package rag

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/nurtureai/nurture-go/internal/store"
)

func newTestChunkStore(t *testing.T) *ChunkStore {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "rag.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewChunkStore(s.DB())
}

func TestSearchRanksBySimilarity(t *testing.T) {
	cs := newTestChunkStore(t)
	ctx := context.Background()

	err := cs.Insert(ctx, []Chunk{
		{ID: "a", ProjectName: "Marina Heights", Source: "brochure.pdf", Position: 0, Content: "pool and gym", Embedding: []float32{1, 0, 0}},
		{ID: "b", ProjectName: "Marina Heights", Source: "brochure.pdf", Position: 1, Content: "payment plans", Embedding: []float32{0, 1, 0}},
		{ID: "c", ProjectName: "Marina Heights", Source: "brochure.pdf", Position: 2, Content: "location map", Embedding: []float32{0.9, 0.1, 0}},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	results, err := cs.Search(ctx, []float32{1, 0, 0}, "Marina Heights", 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("result count = %d, want 2", len(results))
	}
	if results[0].ID != "a" {
		t.Errorf("top result = %s, want a", results[0].ID)
	}
	if results[1].ID != "c" {
		t.Errorf("second result = %s, want c", results[1].ID)
	}
	if results[0].Score < results[1].Score {
		t.Error("results should be sorted by descending score")
	}
}

func TestSearchFiltersByProject(t *testing.T) {
	cs := newTestChunkStore(t)
	ctx := context.Background()

	err := cs.Insert(ctx, []Chunk{
		{ID: "a", ProjectName: "Marina Heights", Source: "a.pdf", Content: "x", Embedding: []float32{1, 0}},
		{ID: "b", ProjectName: "Palm Grove", Source: "b.pdf", Content: "y", Embedding: []float32{1, 0}},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	results, err := cs.Search(ctx, []float32{1, 0}, "Palm Grove", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "b" {
		t.Fatalf("project filter failed, got %v", results)
	}

	// Empty project searches everything.
	results, err = cs.Search(ctx, []float32{1, 0}, "", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("unfiltered result count = %d, want 2", len(results))
	}
}

func TestSearchSkipsDimensionMismatch(t *testing.T) {
	cs := newTestChunkStore(t)
	ctx := context.Background()

	err := cs.Insert(ctx, []Chunk{
		{ID: "a", ProjectName: "P", Source: "a.pdf", Content: "x", Embedding: []float32{1, 0, 0}},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	results, err := cs.Search(ctx, []float32{1, 0}, "P", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("mismatched dimensions should be skipped, got %v", results)
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := cosineSimilarity([]float32{1, 0}, []float32{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Errorf("identical vectors similarity = %v, want 1", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{0, 1}); math.Abs(got) > 1e-9 {
		t.Errorf("orthogonal vectors similarity = %v, want 0", got)
	}
	if got := cosineSimilarity(nil, nil); !math.IsNaN(got) {
		t.Errorf("empty vectors should be NaN, got %v", got)
	}
	if got := cosineSimilarity([]float32{0, 0}, []float32{1, 0}); !math.IsNaN(got) {
		t.Errorf("zero vector should be NaN, got %v", got)
	}
}

func TestEncodeDecodeFloat32s(t *testing.T) {
	in := []float32{0.5, -1.25, 3.0}
	out := decodeFloat32s(encodeFloat32s(in))
	if len(out) != len(in) {
		t.Fatalf("length = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("value %d = %v, want %v", i, out[i], in[i])
		}
	}
}
