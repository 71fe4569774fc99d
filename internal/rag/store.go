package rag

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"
)

// Chunk is a stored piece of brochure text with its embedding.
type Chunk struct {
	ID          string
	ProjectName string
	Source      string
	Position    int
	Content     string
	Embedding   []float32
	CreatedAt   time.Time
}

// ScoredChunk pairs a chunk with its cosine similarity to a query.
type ScoredChunk struct {
	Chunk
	Score float64
}

// ChunkStore provides vector storage and brute-force cosine similarity
// search backed by the shared SQLite handle. Brute force is fine at
// brochure scale; revisit only if chunk counts reach six figures.
type ChunkStore struct {
	db *sql.DB
}

// NewChunkStore wraps an existing *sql.DB. The document_chunks table is
// created by the store package's schema init.
func NewChunkStore(db *sql.DB) *ChunkStore {
	return &ChunkStore{db: db}
}

// Insert adds chunks in one transaction.
func (s *ChunkStore) Insert(ctx context.Context, chunks []Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO document_chunks (id, project_name, source, position, content, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		blob := encodeFloat32s(c.Embedding)
		if _, err := stmt.ExecContext(ctx, c.ID, c.ProjectName, c.Source, c.Position, c.Content, blob, createdAt.Format(time.RFC3339)); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// Search returns the topK chunks most similar to the query embedding,
// optionally filtered by project name.
func (s *ChunkStore) Search(ctx context.Context, embedding []float32, projectName string, topK int) ([]ScoredChunk, error) {
	if topK <= 0 {
		topK = 5
	}

	query := `SELECT id, project_name, source, position, content, embedding, created_at FROM document_chunks`
	var args []any
	if projectName != "" {
		query += ` WHERE project_name = ?`
		args = append(args, projectName)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var scored []ScoredChunk
	for rows.Next() {
		var c Chunk
		var blob []byte
		var createdAt string
		if err := rows.Scan(&c.ID, &c.ProjectName, &c.Source, &c.Position, &c.Content, &blob, &createdAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.Embedding = decodeFloat32s(blob)
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			c.CreatedAt = t
		}

		score := cosineSimilarity(embedding, c.Embedding)
		if math.IsNaN(score) {
			continue
		}
		scored = append(scored, ScoredChunk{Chunk: c, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// Count returns the number of stored chunks for a project ("" for all).
func (s *ChunkStore) Count(ctx context.Context, projectName string) (int, error) {
	query := `SELECT COUNT(*) FROM document_chunks`
	var args []any
	if projectName != "" {
		query += ` WHERE project_name = ?`
		args = append(args, projectName)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return math.NaN()
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return math.NaN()
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func encodeFloat32s(values []float32) []byte {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeFloat32s(buf []byte) []float32 {
	values := make([]float32, len(buf)/4)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return values
}
