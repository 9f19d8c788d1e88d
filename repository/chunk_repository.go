package repository

import (
	"context"
	"fmt"
	"strings"

	"documentiq-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChunkRepository handles database operations for document chunks and
// their pgvector embeddings
type ChunkRepository struct {
	db           *pgxpool.Pool
	embeddingDim int
}

// NewChunkRepository creates a new chunk repository. embeddingDim is the
// vector width of the document_chunks.embedding column.
func NewChunkRepository(db *pgxpool.Pool, embeddingDim int) *ChunkRepository {
	return &ChunkRepository{db: db, embeddingDim: embeddingDim}
}

// formatVector formats an embedding vector as a string for pgx
func formatVector(embedding []float32) string {
	if len(embedding) == 0 {
		return "[]"
	}
	var parts []string
	for _, v := range embedding {
		parts = append(parts, fmt.Sprintf("%.6f", v))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// UpsertBatch stores a document's chunks in a single transaction. Chunk IDs
// are stable across re-ingestion, so conflicts overwrite the previous text
// and embedding.
func (r *ChunkRepository) UpsertBatch(ctx context.Context, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO document_chunks (
			id, document_id, chunk_index, chunk_text, token_count,
			title, category, tags, layer, embedding
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10::vector
		)
		ON CONFLICT (id) DO UPDATE SET
			chunk_text = EXCLUDED.chunk_text,
			token_count = EXCLUDED.token_count,
			title = EXCLUDED.title,
			category = EXCLUDED.category,
			tags = EXCLUDED.tags,
			layer = EXCLUDED.layer,
			embedding = EXCLUDED.embedding`

	for _, chunk := range chunks {
		if len(chunk.Embedding) != r.embeddingDim {
			return fmt.Errorf("chunk %s embedding must be %d dimensions, got %d",
				chunk.ID, r.embeddingDim, len(chunk.Embedding))
		}

		_, err = tx.Exec(ctx, query,
			chunk.ID, chunk.DocumentID, chunk.ChunkIndex, chunk.Text, chunk.TokenCount,
			chunk.Title, chunk.Category, chunk.Tags, chunk.Layer, formatVector(chunk.Embedding),
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", chunk.ChunkIndex, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// SearchSimilar performs a cosine similarity search over indexed chunks.
// embedding: query embedding vector
// limit: maximum number of chunks to return
// layer: optional layer filter ("policy", "principle", "sop"); empty matches all
func (r *ChunkRepository) SearchSimilar(
	ctx context.Context,
	embedding []float32,
	limit int,
	layer string,
) ([]models.RetrievedChunk, error) {
	if len(embedding) != r.embeddingDim {
		return nil, fmt.Errorf("embedding must be %d dimensions, got %d", r.embeddingDim, len(embedding))
	}

	vectorStr := formatVector(embedding)

	var layerFilter string
	var args []interface{}
	if layer == "" {
		layerFilter = "TRUE"
		args = []interface{}{vectorStr, limit}
	} else {
		layerFilter = "layer = $2"
		args = []interface{}{vectorStr, layer, limit}
	}

	query := fmt.Sprintf(`
		SELECT
			id,
			document_id,
			chunk_index,
			chunk_text,
			title,
			category,
			layer,
			embedding <=> $1::vector AS distance
		FROM document_chunks
		WHERE %s
		ORDER BY
			embedding <=> $1::vector
		LIMIT $%d`, layerFilter, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.RetrievedChunk
	for rows.Next() {
		var chunk models.RetrievedChunk
		var distance float64
		err := rows.Scan(
			&chunk.ID,
			&chunk.DocumentID,
			&chunk.ChunkIndex,
			&chunk.Text,
			&chunk.Title,
			&chunk.Category,
			&chunk.Layer,
			&distance,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		// Cosine distance to similarity
		chunk.Score = 1 - distance
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunks: %w", err)
	}

	return chunks, nil
}

// DeleteByDocument removes all chunks of a document and reports how many
// were deleted
func (r *ChunkRepository) DeleteByDocument(ctx context.Context, documentID uuid.UUID) (int64, error) {
	query := `DELETE FROM document_chunks WHERE document_id = $1`
	tag, err := r.db.Exec(ctx, query, documentID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListAll returns every chunk's identity and text, for re-embedding runs
func (r *ChunkRepository) ListAll(ctx context.Context) ([]models.DocumentChunk, error) {
	query := `
		SELECT id, document_id, chunk_index, chunk_text
		FROM document_chunks
		ORDER BY document_id, chunk_index`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []models.DocumentChunk
	for rows.Next() {
		var chunk models.DocumentChunk
		err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.ChunkIndex, &chunk.Text)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}

	return chunks, rows.Err()
}

// UpdateEmbedding replaces the stored embedding for one chunk
func (r *ChunkRepository) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	if len(embedding) != r.embeddingDim {
		return fmt.Errorf("embedding must be %d dimensions, got %d", r.embeddingDim, len(embedding))
	}

	query := `UPDATE document_chunks SET embedding = $2::vector WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id, formatVector(embedding))
	return err
}
