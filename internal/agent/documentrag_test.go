package agent

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nurtureai/nurture-go/internal/rag"
	"github.com/nurtureai/nurture-go/internal/store"
)

// fixedEmbedder returns the same vector for every input.
type fixedEmbedder struct {
	vector []float32
	err    error
}

func (f *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vector, f.err
}

func newRAGToolStore(t *testing.T) *rag.ChunkStore {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "rag.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return rag.NewChunkStore(s.DB())
}

func TestRAGToolExecute(t *testing.T) {
	cs := newRAGToolStore(t)
	ctx := context.Background()

	err := cs.Insert(ctx, []rag.Chunk{
		{ID: "a", ProjectName: "Marina Heights", Source: "brochure.pdf", Content: "Residents enjoy an infinity pool and a private gym.", Embedding: []float32{1, 0}},
		{ID: "b", ProjectName: "Marina Heights", Source: "brochure.pdf", Content: "Flexible 60/40 payment plans are available.", Embedding: []float32{0, 1}},
	})
	if err != nil {
		t.Fatalf("seed chunks: %v", err)
	}

	tool := NewRAGTool(cs, &fixedEmbedder{vector: []float32{1, 0}})

	result, err := tool.Execute(ctx, "what amenities are there?", "Marina Heights")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(result, "infinity pool") {
		t.Errorf("result should contain the best chunk, got %q", result)
	}
	if !strings.Contains(result, "[From brochure.pdf]") {
		t.Errorf("result should attribute sources, got %q", result)
	}
}

func TestRAGToolEmptyRetrievalSet(t *testing.T) {
	cs := newRAGToolStore(t)
	tool := NewRAGTool(cs, &fixedEmbedder{vector: []float32{1, 0}})

	_, err := tool.Execute(context.Background(), "what amenities?", "Unknown Project")
	if !errors.Is(err, ErrToolExecution) {
		t.Fatalf("err = %v, want ErrToolExecution", err)
	}
}

func TestRAGToolEmbedFailure(t *testing.T) {
	cs := newRAGToolStore(t)
	tool := NewRAGTool(cs, &fixedEmbedder{err: errors.New("embedder down")})

	_, err := tool.Execute(context.Background(), "what amenities?", "")
	if !errors.Is(err, ErrToolExecution) {
		t.Fatalf("err = %v, want ErrToolExecution", err)
	}
}
