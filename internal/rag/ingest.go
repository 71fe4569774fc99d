package rag

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
)

// Embedder generates embedding vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Ingestor extracts, chunks, embeds, and stores brochure documents.
type Ingestor struct {
	store    *ChunkStore
	embedder Embedder
	config   ChunkConfig
}

// NewIngestor creates an Ingestor with default chunking.
func NewIngestor(store *ChunkStore, embedder Embedder) *Ingestor {
	return &Ingestor{
		store:    store,
		embedder: embedder,
		config:   DefaultChunkConfig(),
	}
}

// IngestFile extracts text from a brochure (PDF, text, or markdown),
// chunks it, embeds each chunk, and stores the result under projectName.
// Returns the number of chunks stored.
func (in *Ingestor) IngestFile(ctx context.Context, path, projectName string) (int, error) {
	text, err := ExtractText(path)
	if err != nil {
		return 0, err
	}
	return in.IngestText(ctx, text, filepath.Base(path), projectName)
}

// IngestText chunks and stores already-extracted text.
func (in *Ingestor) IngestText(ctx context.Context, text, source, projectName string) (int, error) {
	pieces := ChunkText(text, in.config)
	if len(pieces) == 0 {
		return 0, fmt.Errorf("no text content in %s", source)
	}

	chunks := make([]Chunk, 0, len(pieces))
	for i, piece := range pieces {
		embedding, err := in.embedder.Embed(ctx, piece)
		if err != nil {
			return 0, fmt.Errorf("embed chunk %d of %s: %w", i, source, err)
		}
		chunks = append(chunks, Chunk{
			ID:          uuid.New().String(),
			ProjectName: projectName,
			Source:      source,
			Position:    i,
			Content:     piece,
			Embedding:   embedding,
		})
	}

	if err := in.store.Insert(ctx, chunks); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}

	slog.Info("ingested document", "source", source, "project", projectName, "chunks", len(chunks))
	return len(chunks), nil
}

// ExtractText reads a document and returns its plain text. PDF content
// goes through ledongthuc/pdf; anything else is treated as UTF-8 text.
func ExtractText(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return extractPDF(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func extractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text %s: %w", path, err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", fmt.Errorf("read pdf text %s: %w", path, err)
	}
	return buf.String(), nil
}
