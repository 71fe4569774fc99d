package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/nurtureai/nurture-go/internal/rag"
)

// ragTopK is how many chunks feed into synthesis.
const ragTopK = 5

// RAGTool retrieves relevant brochure chunks for a query via embedding
// similarity.
type RAGTool struct {
	chunks   *rag.ChunkStore
	embedder rag.Embedder
}

// NewRAGTool creates the document retrieval tool.
func NewRAGTool(chunks *rag.ChunkStore, embedder rag.Embedder) *RAGTool {
	return &RAGTool{chunks: chunks, embedder: embedder}
}

// Name implements Tool.
func (t *RAGTool) Name() string { return ToolDocumentRAG }

// Execute embeds the query and returns the most similar brochure chunks
// with source attribution. An empty retrieval set wraps ErrToolExecution.
func (t *RAGTool) Execute(ctx context.Context, query, projectName string) (string, error) {
	embedding, err := t.embedder.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("%w: embed query: %v", ErrToolExecution, err)
	}

	results, err := t.chunks.Search(ctx, embedding, projectName, ragTopK)
	if err != nil {
		return "", fmt.Errorf("%w: search chunks: %v", ErrToolExecution, err)
	}
	if len(results) == 0 {
		return "", fmt.Errorf("%w: no relevant brochure content for %q", ErrToolExecution, query)
	}

	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[From %s]: %s", r.Source, r.Content)
	}
	return sb.String(), nil
}
