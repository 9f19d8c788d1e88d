package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"documentiq-backend/cache"
	"documentiq-backend/chunker"
	"documentiq-backend/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryDocumentStore struct {
	docs      map[uuid.UUID]*models.Document
	createErr error
}

func newMemoryDocumentStore() *memoryDocumentStore {
	return &memoryDocumentStore{docs: make(map[uuid.UUID]*models.Document)}
}

func (m *memoryDocumentStore) Create(ctx context.Context, doc *models.Document) error {
	if m.createErr != nil {
		return m.createErr
	}
	copied := *doc
	m.docs[doc.ID] = &copied
	return nil
}

func (m *memoryDocumentStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	doc, ok := m.docs[id]
	if !ok {
		return nil, errors.New("no rows in result set")
	}
	return doc, nil
}

func (m *memoryDocumentStore) List(ctx context.Context, layer string) ([]*models.Document, error) {
	var docs []*models.Document
	for _, doc := range m.docs {
		if layer == "" || doc.Layer == layer {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (m *memoryDocumentStore) MarkIndexed(ctx context.Context, id uuid.UUID, chunkCount int) error {
	doc, ok := m.docs[id]
	if !ok {
		return errors.New("no rows in result set")
	}
	doc.Status = models.DocumentStatusIndexed
	doc.ChunkCount = chunkCount
	doc.StatusError = nil
	return nil
}

func (m *memoryDocumentStore) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	doc, ok := m.docs[id]
	if !ok {
		return errors.New("no rows in result set")
	}
	doc.Status = models.DocumentStatusFailed
	doc.StatusError = &reason
	return nil
}

func (m *memoryDocumentStore) Delete(ctx context.Context, id uuid.UUID) error {
	delete(m.docs, id)
	return nil
}

type memoryChunkStore struct {
	upserts [][]models.DocumentChunk
	deleted []uuid.UUID
	err     error
}

func (m *memoryChunkStore) UpsertBatch(ctx context.Context, chunks []models.DocumentChunk) error {
	if m.err != nil {
		return m.err
	}
	m.upserts = append(m.upserts, chunks)
	return nil
}

func (m *memoryChunkStore) DeleteByDocument(ctx context.Context, documentID uuid.UUID) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.deleted = append(m.deleted, documentID)
	return 3, nil
}

type stubBatchEmbedder struct {
	batches [][]string
	err     error
}

func (e *stubBatchEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.batches = append(e.batches, texts)
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{float32(i), 0.5, 0.25}
	}
	return out, nil
}

// memoryStorage is an in-process storage.Storage for tests
type memoryStorage struct {
	files     map[string][]byte
	deleted   []string
	uploadErr error
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{files: make(map[string][]byte)}
}

func (m *memoryStorage) Upload(ctx context.Context, fileID uuid.UUID, filename string, data io.Reader) (string, error) {
	if m.uploadErr != nil {
		return "", m.uploadErr
	}
	content, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	path := fileID.String() + "/" + filename
	m.files[path] = content
	return path, nil
}

func (m *memoryStorage) Download(ctx context.Context, storagePath string) (io.ReadCloser, error) {
	content, ok := m.files[storagePath]
	if !ok {
		return nil, errors.New("file not found")
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (m *memoryStorage) Delete(ctx context.Context, storagePath string) error {
	m.deleted = append(m.deleted, storagePath)
	delete(m.files, storagePath)
	return nil
}

type ingestTestEnv struct {
	service  *IngestService
	docs     *memoryDocumentStore
	chunks   *memoryChunkStore
	embedder *stubBatchEmbedder
	storage  *memoryStorage
	cache    *cache.Service
}

func newIngestTestEnv(t *testing.T) *ingestTestEnv {
	t.Helper()

	splitter, err := chunker.New(100, 25)
	require.NoError(t, err)

	env := &ingestTestEnv{
		docs:     newMemoryDocumentStore(),
		chunks:   &memoryChunkStore{},
		embedder: &stubBatchEmbedder{},
		storage:  newMemoryStorage(),
		cache:    cache.NewService(cache.NewMemoryBackend(100)),
	}
	env.service = NewIngestService(
		IngestWithDocumentStore(env.docs),
		IngestWithChunkStore(env.chunks),
		IngestWithEmbedder(env.embedder),
		IngestWithChunker(splitter),
		IngestWithStorage(env.storage),
		IngestWithCache(env.cache),
	)
	return env
}

func uploadRequest() UploadDocumentRequest {
	return UploadDocumentRequest{
		Filename: "welding-procedures.txt",
		MimeType: "text/plain",
		Category: "safety",
		Tags:     []string{"welding", "hot-work"},
		Layer:    models.LayerSOP,
		Content:  []byte("Welding work requires a hot work permit."),
	}
}

func TestIngestService_UploadDocument(t *testing.T) {
	env := newIngestTestEnv(t)

	doc, err := env.service.UploadDocument(context.Background(), uploadRequest())
	require.NoError(t, err)

	assert.NotEqual(t, uuid.UUID{}, doc.ID)
	assert.Equal(t, "welding-procedures", doc.Title, "title defaults to the filename without extension")
	assert.Equal(t, models.DocumentStatusProcessing, doc.Status)
	assert.Equal(t, int64(40), doc.Size)
	assert.Contains(t, doc.StoragePath, doc.ID.String(), "stored file path and record must agree on the ID")

	stored, err := env.docs.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.StoragePath, stored.StoragePath)
	assert.Contains(t, env.storage.files, doc.StoragePath)
}

func TestIngestService_UploadDocument_ExplicitTitle(t *testing.T) {
	env := newIngestTestEnv(t)

	req := uploadRequest()
	req.Title = "  Welding Procedures Rev. 4  "
	doc, err := env.service.UploadDocument(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Welding Procedures Rev. 4", doc.Title)
}

func TestIngestService_UploadDocument_Validation(t *testing.T) {
	env := newIngestTestEnv(t)
	ctx := context.Background()

	req := uploadRequest()
	req.Layer = "handbook"
	_, err := env.service.UploadDocument(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidLayer)

	req = uploadRequest()
	req.Content = []byte("   \n\t ")
	_, err = env.service.UploadDocument(ctx, req)
	assert.ErrorIs(t, err, ErrEmptyDocument)

	assert.Empty(t, env.storage.files, "rejected uploads must not reach storage")
}

func TestIngestService_UploadDocument_RecordFailureRemovesFile(t *testing.T) {
	env := newIngestTestEnv(t)
	env.docs.createErr = errors.New("duplicate key value")

	_, err := env.service.UploadDocument(context.Background(), uploadRequest())
	require.Error(t, err)

	assert.Empty(t, env.storage.files, "orphaned file must be cleaned up")
	require.Len(t, env.storage.deleted, 1)
}

func TestIngestService_IndexDocument(t *testing.T) {
	env := newIngestTestEnv(t)
	ctx := context.Background()

	doc, err := env.service.UploadDocument(ctx, uploadRequest())
	require.NoError(t, err)

	// Seed the cache so indexing visibly invalidates it
	env.cache.SetJSON(ctx, cache.Key(cache.QueryPrefix, []string{"old question"}, nil), "old answer", cache.DefaultQueryTTL)

	// 250 words with chunk size 100 and overlap 25 yields 3 chunks
	words := make([]string, 250)
	for i := range words {
		words[i] = fmt.Sprintf("word%d", i)
	}
	err = env.service.IndexDocument(ctx, doc, strings.Join(words, " "))
	require.NoError(t, err)

	require.Len(t, env.chunks.upserts, 1)
	records := env.chunks.upserts[0]
	require.Len(t, records, 3)
	for i, record := range records {
		assert.Equal(t, fmt.Sprintf("%s_%d", doc.ID, i), record.ID)
		assert.Equal(t, doc.ID, record.DocumentID)
		assert.Equal(t, i, record.ChunkIndex)
		assert.Equal(t, doc.Title, record.Title)
		assert.Equal(t, models.LayerSOP, record.Layer)
		assert.NotEmpty(t, record.Embedding)
	}

	stored, err := env.docs.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusIndexed, stored.Status)
	assert.Equal(t, 3, stored.ChunkCount)

	stats := env.cache.Stats(ctx)
	assert.Zero(t, stats.Entries, "indexing must clear cached answers")
}

func TestIngestService_IndexDocument_EmptyText(t *testing.T) {
	env := newIngestTestEnv(t)
	ctx := context.Background()

	doc, err := env.service.UploadDocument(ctx, uploadRequest())
	require.NoError(t, err)

	err = env.service.IndexDocument(ctx, doc, "   \n ")
	assert.ErrorIs(t, err, ErrEmptyDocument)

	stored, err := env.docs.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusFailed, stored.Status)
	require.NotNil(t, stored.StatusError)
}

func TestIngestService_IndexDocument_EmbedFailureMarksFailed(t *testing.T) {
	env := newIngestTestEnv(t)
	env.embedder.err = errors.New("quota exceeded")
	ctx := context.Background()

	doc, err := env.service.UploadDocument(ctx, uploadRequest())
	require.NoError(t, err)

	err = env.service.IndexDocument(ctx, doc, "permit required for all hot work")
	require.Error(t, err)

	stored, err := env.docs.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusFailed, stored.Status)
	require.NotNil(t, stored.StatusError)
	assert.Contains(t, *stored.StatusError, "failed to embed")
}

func TestIngestService_ListDocuments_LayerFilter(t *testing.T) {
	env := newIngestTestEnv(t)
	ctx := context.Background()

	_, err := env.service.ListDocuments(ctx, "handbook")
	assert.ErrorIs(t, err, ErrInvalidLayer)

	req := uploadRequest()
	_, err = env.service.UploadDocument(ctx, req)
	require.NoError(t, err)

	docs, err := env.service.ListDocuments(ctx, models.LayerSOP)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	docs, err = env.service.ListDocuments(ctx, models.LayerPolicy)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestIngestService_DownloadDocument(t *testing.T) {
	env := newIngestTestEnv(t)
	ctx := context.Background()

	uploaded, err := env.service.UploadDocument(ctx, uploadRequest())
	require.NoError(t, err)

	doc, reader, err := env.service.DownloadDocument(ctx, uploaded.ID)
	require.NoError(t, err)
	defer reader.Close()

	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "Welding work requires a hot work permit.", string(content))
	assert.Equal(t, uploaded.ID, doc.ID)

	_, _, err = env.service.DownloadDocument(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestIngestService_DeleteDocument(t *testing.T) {
	env := newIngestTestEnv(t)
	ctx := context.Background()

	doc, err := env.service.UploadDocument(ctx, uploadRequest())
	require.NoError(t, err)

	err = env.service.DeleteDocument(ctx, doc.ID)
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{doc.ID}, env.chunks.deleted)
	assert.Empty(t, env.storage.files)
	_, err = env.service.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestIngestService_DeleteDocument_Unknown(t *testing.T) {
	env := newIngestTestEnv(t)

	err := env.service.DeleteDocument(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}
