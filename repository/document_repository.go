package repository

import (
	"context"

	"documentiq-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DocumentRepository handles database operations for documents
type DocumentRepository struct {
	db *pgxpool.Pool
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create creates a new document record. The caller assigns the ID so the
// storage path and the record stay in agreement.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (
			id, title, filename, mime_type, size, storage_path, category, tags, layer, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING uploaded_at`

	err := r.db.QueryRow(
		ctx, query,
		doc.ID,
		doc.Title,
		doc.Filename,
		doc.MimeType,
		doc.Size,
		doc.StoragePath,
		doc.Category,
		doc.Tags,
		doc.Layer,
		doc.Status,
	).Scan(&doc.UploadedAt)

	return err
}

// GetByID retrieves a document by ID
func (r *DocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	doc := &models.Document{}
	query := `
		SELECT id, title, filename, mime_type, size, storage_path, category, tags, layer,
		       status, status_error, chunk_count, uploaded_at, indexed_at
		FROM documents
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&doc.ID,
		&doc.Title,
		&doc.Filename,
		&doc.MimeType,
		&doc.Size,
		&doc.StoragePath,
		&doc.Category,
		&doc.Tags,
		&doc.Layer,
		&doc.Status,
		&doc.StatusError,
		&doc.ChunkCount,
		&doc.UploadedAt,
		&doc.IndexedAt,
	)

	if err != nil {
		return nil, err
	}

	return doc, nil
}

// List retrieves all documents, optionally filtered by layer
func (r *DocumentRepository) List(ctx context.Context, layer string) ([]*models.Document, error) {
	query := `
		SELECT id, title, filename, mime_type, size, storage_path, category, tags, layer,
		       status, status_error, chunk_count, uploaded_at, indexed_at
		FROM documents`

	var args []interface{}
	if layer != "" {
		query += ` WHERE layer = $1`
		args = append(args, layer)
	}
	query += ` ORDER BY uploaded_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc := &models.Document{}
		err := rows.Scan(
			&doc.ID,
			&doc.Title,
			&doc.Filename,
			&doc.MimeType,
			&doc.Size,
			&doc.StoragePath,
			&doc.Category,
			&doc.Tags,
			&doc.Layer,
			&doc.Status,
			&doc.StatusError,
			&doc.ChunkCount,
			&doc.UploadedAt,
			&doc.IndexedAt,
		)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// MarkIndexed records a successful indexing run
func (r *DocumentRepository) MarkIndexed(ctx context.Context, id uuid.UUID, chunkCount int) error {
	query := `
		UPDATE documents
		SET status = $2, chunk_count = $3, status_error = NULL, indexed_at = NOW()
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, models.DocumentStatusIndexed, chunkCount)
	return err
}

// MarkFailed records an indexing failure with its reason
func (r *DocumentRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE documents
		SET status = $2, status_error = $3
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, models.DocumentStatusFailed, reason)
	return err
}

// Delete deletes a document record
func (r *DocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM documents WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}
