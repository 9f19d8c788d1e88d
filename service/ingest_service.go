package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"documentiq-backend/cache"
	"documentiq-backend/chunker"
	"documentiq-backend/models"
	"documentiq-backend/storage"

	"github.com/google/uuid"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidLayer     = errors.New("layer must be policy, principle, or sop")
	ErrEmptyDocument    = errors.New("document contains no indexable text")
)

// DocumentStore persists document records
type DocumentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	List(ctx context.Context, layer string) ([]*models.Document, error)
	MarkIndexed(ctx context.Context, id uuid.UUID, chunkCount int) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ChunkStore persists chunks and their embeddings
type ChunkStore interface {
	UpsertBatch(ctx context.Context, chunks []models.DocumentChunk) error
	DeleteByDocument(ctx context.Context, documentID uuid.UUID) (int64, error)
}

// BatchEmbedder embeds many texts at once
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// IngestService turns uploaded documents into indexed, searchable chunks
type IngestService struct {
	docs     DocumentStore
	chunks   ChunkStore
	embedder BatchEmbedder
	chunker  *chunker.Chunker
	storage  storage.Storage
	cache    *cache.Service
}

// IngestServiceOption is a functional option for IngestService
type IngestServiceOption func(*IngestService)

// IngestWithDocumentStore sets the document store
func IngestWithDocumentStore(store DocumentStore) IngestServiceOption {
	return func(s *IngestService) {
		s.docs = store
	}
}

// IngestWithChunkStore sets the chunk store
func IngestWithChunkStore(store ChunkStore) IngestServiceOption {
	return func(s *IngestService) {
		s.chunks = store
	}
}

// IngestWithEmbedder sets the batch embedder
func IngestWithEmbedder(embedder BatchEmbedder) IngestServiceOption {
	return func(s *IngestService) {
		s.embedder = embedder
	}
}

// IngestWithChunker sets the text chunker
func IngestWithChunker(c *chunker.Chunker) IngestServiceOption {
	return func(s *IngestService) {
		s.chunker = c
	}
}

// IngestWithStorage sets the blob storage
func IngestWithStorage(store storage.Storage) IngestServiceOption {
	return func(s *IngestService) {
		s.storage = store
	}
}

// IngestWithCache sets the cache to invalidate on corpus changes
func IngestWithCache(cacheSvc *cache.Service) IngestServiceOption {
	return func(s *IngestService) {
		s.cache = cacheSvc
	}
}

// NewIngestService creates a new ingest service
func NewIngestService(opts ...IngestServiceOption) *IngestService {
	s := &IngestService{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UploadDocumentRequest represents a document upload
type UploadDocumentRequest struct {
	Filename string
	MimeType string
	Title    string
	Category string
	Tags     []string
	Layer    string
	Content  []byte
}

// UploadDocument stores the raw file and creates the document record in the
// processing state. Chunking and embedding happen separately in
// IndexDocument so the upload request returns quickly.
func (s *IngestService) UploadDocument(ctx context.Context, req UploadDocumentRequest) (*models.Document, error) {
	if s.docs == nil {
		return nil, errors.New("document store not set")
	}
	if s.storage == nil {
		return nil, errors.New("storage not set")
	}

	if req.Layer != "" && !validLayer(req.Layer) {
		return nil, ErrInvalidLayer
	}
	if len(bytes.TrimSpace(req.Content)) == 0 {
		return nil, ErrEmptyDocument
	}

	docID := uuid.New()

	storagePath, err := s.storage.Upload(ctx, docID, req.Filename, bytes.NewReader(req.Content))
	if err != nil {
		return nil, fmt.Errorf("failed to upload document: %w", err)
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = strings.TrimSuffix(req.Filename, filepath.Ext(req.Filename))
	}

	doc := &models.Document{
		ID:          docID,
		Title:       title,
		Filename:    req.Filename,
		MimeType:    req.MimeType,
		Size:        int64(len(req.Content)),
		StoragePath: storagePath,
		Category:    req.Category,
		Tags:        req.Tags,
		Layer:       req.Layer,
		Status:      models.DocumentStatusProcessing,
	}

	if err := s.docs.Create(ctx, doc); err != nil {
		// Try to clean up the uploaded file
		s.storage.Delete(ctx, storagePath)
		return nil, fmt.Errorf("failed to save document record: %w", err)
	}

	return doc, nil
}

// IndexDocument chunks, embeds, and indexes a document's text. It is meant
// to run in a background goroutine after UploadDocument; progress is
// visible through the document's status.
func (s *IngestService) IndexDocument(ctx context.Context, doc *models.Document, text string) error {
	if s.docs == nil {
		return errors.New("document store not set")
	}
	if s.chunks == nil {
		return errors.New("chunk store not set")
	}
	if s.embedder == nil {
		return errors.New("batch embedder not set")
	}
	if s.chunker == nil {
		return errors.New("chunker not set")
	}

	pieces := s.chunker.Split(text)
	if len(pieces) == 0 {
		s.markFailed(ctx, doc.ID, "document contains no indexable text")
		return ErrEmptyDocument
	}

	texts := make([]string, len(pieces))
	for i, piece := range pieces {
		texts[i] = piece.Text
	}

	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		s.markFailed(ctx, doc.ID, "failed to embed chunks: "+err.Error())
		return fmt.Errorf("failed to embed chunks for document %s: %w", doc.ID, err)
	}

	records := make([]models.DocumentChunk, len(pieces))
	for i, piece := range pieces {
		records[i] = models.DocumentChunk{
			ID:         fmt.Sprintf("%s_%d", doc.ID, piece.Index),
			DocumentID: doc.ID,
			ChunkIndex: piece.Index,
			Text:       piece.Text,
			TokenCount: piece.TokenCount,
			Title:      doc.Title,
			Category:   doc.Category,
			Tags:       doc.Tags,
			Layer:      doc.Layer,
			Embedding:  embeddings[i],
		}
	}

	if err := s.chunks.UpsertBatch(ctx, records); err != nil {
		s.markFailed(ctx, doc.ID, "failed to store chunks: "+err.Error())
		return fmt.Errorf("failed to store chunks for document %s: %w", doc.ID, err)
	}

	if err := s.docs.MarkIndexed(ctx, doc.ID, len(records)); err != nil {
		return fmt.Errorf("failed to mark document %s indexed: %w", doc.ID, err)
	}

	// The corpus changed, so cached answers may now be stale.
	s.clearCache(ctx)

	log.Printf("Indexed document %s (%d chunks)", doc.ID, len(records))
	return nil
}

// GetDocument returns one document by ID
func (s *IngestService) GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	if s.docs == nil {
		return nil, errors.New("document store not set")
	}
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

// ListDocuments returns all documents, optionally filtered by layer
func (s *IngestService) ListDocuments(ctx context.Context, layer string) ([]*models.Document, error) {
	if s.docs == nil {
		return nil, errors.New("document store not set")
	}
	if layer != "" && !validLayer(layer) {
		return nil, ErrInvalidLayer
	}
	return s.docs.List(ctx, layer)
}

// DownloadDocument returns the stored original file for a document
func (s *IngestService) DownloadDocument(ctx context.Context, id uuid.UUID) (*models.Document, io.ReadCloser, error) {
	if s.docs == nil {
		return nil, nil, errors.New("document store not set")
	}
	if s.storage == nil {
		return nil, nil, errors.New("storage not set")
	}

	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, nil, ErrDocumentNotFound
	}

	reader, err := s.storage.Download(ctx, doc.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to download document: %w", err)
	}

	return doc, reader, nil
}

// DeleteDocument removes a document, its chunks, and its stored file
func (s *IngestService) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	if s.docs == nil {
		return errors.New("document store not set")
	}
	if s.chunks == nil {
		return errors.New("chunk store not set")
	}

	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return ErrDocumentNotFound
	}

	deleted, err := s.chunks.DeleteByDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}

	if s.storage != nil {
		if err := s.storage.Delete(ctx, doc.StoragePath); err != nil {
			log.Printf("Warning: Failed to delete stored file %s: %v", doc.StoragePath, err)
		}
	}

	if err := s.docs.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete document record: %w", err)
	}

	s.clearCache(ctx)

	log.Printf("Deleted document %s (%d chunks)", id, deleted)
	return nil
}

// markFailed records an indexing failure on the document
func (s *IngestService) markFailed(ctx context.Context, id uuid.UUID, reason string) {
	if err := s.docs.MarkFailed(ctx, id, reason); err != nil {
		log.Printf("Warning: Failed to mark document %s failed: %v", id, err)
	}
}

// clearCache invalidates every cached answer and embedding
func (s *IngestService) clearCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Clear(ctx); err != nil {
		log.Printf("Warning: Failed to clear cache after document change: %v", err)
	}
}

func validLayer(layer string) bool {
	switch layer {
	case models.LayerPolicy, models.LayerPrinciple, models.LayerSOP:
		return true
	}
	return false
}
