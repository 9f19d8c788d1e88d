package repository

import (
	"context"

	"documentiq-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GeneratedDocumentRepository handles database operations for generated
// compliance documents
type GeneratedDocumentRepository struct {
	db *pgxpool.Pool
}

// NewGeneratedDocumentRepository creates a new generated document repository
func NewGeneratedDocumentRepository(db *pgxpool.Pool) *GeneratedDocumentRepository {
	return &GeneratedDocumentRepository{db: db}
}

// Create records a generated document
func (r *GeneratedDocumentRepository) Create(ctx context.Context, doc *models.GeneratedDocument) error {
	query := `
		INSERT INTO generated_documents (
			document_type, title, author, layer, format, reference, storage_path
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.db.QueryRow(
		ctx, query,
		doc.DocumentType,
		doc.Title,
		doc.Author,
		doc.Layer,
		doc.Format,
		doc.Reference,
		doc.StoragePath,
	).Scan(&doc.ID, &doc.CreatedAt)

	return err
}

// GetByID retrieves a generated document record by ID
func (r *GeneratedDocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.GeneratedDocument, error) {
	doc := &models.GeneratedDocument{}
	query := `
		SELECT id, document_type, title, author, layer, format, reference, storage_path, created_at
		FROM generated_documents
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&doc.ID,
		&doc.DocumentType,
		&doc.Title,
		&doc.Author,
		&doc.Layer,
		&doc.Format,
		&doc.Reference,
		&doc.StoragePath,
		&doc.CreatedAt,
	)

	if err != nil {
		return nil, err
	}

	return doc, nil
}

// List retrieves the most recent generated documents
func (r *GeneratedDocumentRepository) List(ctx context.Context, limit int) ([]*models.GeneratedDocument, error) {
	query := `
		SELECT id, document_type, title, author, layer, format, reference, storage_path, created_at
		FROM generated_documents
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.GeneratedDocument
	for rows.Next() {
		doc := &models.GeneratedDocument{}
		err := rows.Scan(
			&doc.ID,
			&doc.DocumentType,
			&doc.Title,
			&doc.Author,
			&doc.Layer,
			&doc.Format,
			&doc.Reference,
			&doc.StoragePath,
			&doc.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}
