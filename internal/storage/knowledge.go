package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/terra-clan/puzzle-engine/internal/models"
)

// InsertResource stores a crawled document and its embedded chunks in one
// transaction
func (r *PostgresRepository) InsertResource(ctx context.Context, content string, metadata map[string]any, chunks []models.Chunk) (int64, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal resource metadata: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO resources (content, metadata) VALUES ($1, $2) RETURNING id`,
		content, metadataJSON,
	).Scan(&id)
	if err != nil {
		_ = tx.Rollback(ctx)
		return 0, fmt.Errorf("failed to insert resource: %w", err)
	}

	for _, c := range chunks {
		_, err := tx.Exec(ctx,
			`INSERT INTO embeddings (resource_id, content, embedding) VALUES ($1, $2, $3::vector)`,
			id, c.Content, vectorLiteral(c.Embedding),
		)
		if err != nil {
			_ = tx.Rollback(ctx)
			return 0, fmt.Errorf("failed to insert embedding: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit resource: %w", err)
	}
	return id, nil
}

// SearchSimilar returns chunks whose cosine similarity to embedding exceeds
// minSimilarity, most similar first
func (r *PostgresRepository) SearchSimilar(ctx context.Context, embedding []float32, minSimilarity float64, limit int) ([]models.Source, error) {
	query := `
		SELECT e.content, 1 - (e.embedding <=> $1::vector) AS similarity, r.metadata
		FROM embeddings e
		JOIN resources r ON r.id = e.resource_id
		WHERE 1 - (e.embedding <=> $1::vector) > $2
		ORDER BY e.embedding <=> $1::vector
		LIMIT $3
	`

	var sources []models.Source
	if err := pgxscan.Select(ctx, r.db, &sources, query, vectorLiteral(embedding), minSimilarity, limit); err != nil {
		return nil, fmt.Errorf("failed to search embeddings: %w", err)
	}
	return sources, nil
}

// vectorLiteral renders v in pgvector's text input format, e.g. [0.1,0.2]
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
