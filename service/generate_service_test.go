package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"documentiq-backend/assembler"
	"documentiq-backend/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingGeneratedStore struct {
	created   []*models.GeneratedDocument
	createErr error
}

func (r *recordingGeneratedStore) Create(ctx context.Context, doc *models.GeneratedDocument) error {
	if r.createErr != nil {
		return r.createErr
	}
	doc.ID = uuid.New()
	r.created = append(r.created, doc)
	return nil
}

func (r *recordingGeneratedStore) GetByID(ctx context.Context, id uuid.UUID) (*models.GeneratedDocument, error) {
	for _, doc := range r.created {
		if doc.ID == id {
			return doc, nil
		}
	}
	return nil, errors.New("no rows in result set")
}

func (r *recordingGeneratedStore) List(ctx context.Context, limit int) ([]*models.GeneratedDocument, error) {
	if limit > len(r.created) {
		limit = len(r.created)
	}
	return r.created[:limit], nil
}

type generateTestEnv struct {
	service  *GenerateService
	embedder *stubEmbedder
	searcher *stubSearcher
	provider *stubProvider
	records  *recordingGeneratedStore
	storage  *memoryStorage
}

func newGenerateTestEnv(t *testing.T) *generateTestEnv {
	t.Helper()

	standardDoc := uuid.MustParse("33333333-3333-3333-3333-333333333333")
	env := &generateTestEnv{
		embedder: &stubEmbedder{vec: []float32{0.4, 0.5}},
		searcher: &stubSearcher{chunks: []models.RetrievedChunk{
			{ID: standardDoc.String() + "_1", DocumentID: standardDoc, ChunkIndex: 1, Text: "Hot work requires a permit and a dedicated fire watch.", Title: "Hot Work Standard", Score: 0.91},
		}},
		provider: &stubProvider{answer: "# Risk Assessment: hot work in the paint shop\n\n## Activity Description\n..."},
		records:  &recordingGeneratedStore{},
		storage:  newMemoryStorage(),
	}

	ctxAssembler, err := assembler.New(assembler.DefaultMaxContextSize)
	require.NoError(t, err)

	env.service = NewGenerateService(
		GenerateWithEmbedder(env.embedder),
		GenerateWithSearcher(env.searcher),
		GenerateWithAssembler(ctxAssembler),
		GenerateWithProvider(env.provider),
		GenerateWithRecordStore(env.records),
		GenerateWithStorage(env.storage),
	)
	return env
}

func TestGenerateService_GenerateDocument(t *testing.T) {
	env := newGenerateTestEnv(t)

	result, err := env.service.GenerateDocument(context.Background(), GenerateDocumentRequest{
		DocumentType: models.DocTypeRiskAssessment,
		Topic:        "hot work in the paint shop",
		Author:       "J. Kowalski",
		Layer:        models.LayerSOP,
	})
	require.NoError(t, err)

	assert.Equal(t, env.provider.answer, result.Content)
	assert.Equal(t, []string{"Hot Work Standard"}, result.Sources)

	doc := result.Document
	require.NotNil(t, doc)
	assert.Equal(t, models.DocTypeRiskAssessment, doc.DocumentType)
	assert.Equal(t, "Risk Assessment: hot work in the paint shop", doc.Title)
	assert.Equal(t, "J. Kowalski", doc.Author)
	assert.Equal(t, "markdown", doc.Format)
	assert.True(t, strings.HasPrefix(doc.Reference, "RA-"), "reference %q must carry the type prefix", doc.Reference)

	// The generated markdown was stored alongside the uploaded originals
	require.NotEmpty(t, doc.StoragePath)
	assert.True(t, strings.HasSuffix(doc.StoragePath, ".md"))
	assert.Contains(t, doc.StoragePath, "risk-assessment-hot-work-in-the-paint-shop")
	assert.Contains(t, env.storage.files, doc.StoragePath)

	require.Len(t, env.records.created, 1)

	// The prompt carried the template sections and the retrieved standard
	req := env.provider.lastReq
	assert.InDelta(t, 0.3, req.Temperature, 0.001)
	assert.Equal(t, 3000, req.MaxTokens)
	assert.Contains(t, req.UserPrompt, "Hazard Identification")
	assert.Contains(t, req.UserPrompt, "Residual Risk Ratings")
	assert.Contains(t, req.UserPrompt, "hot work in the paint shop")
	assert.Contains(t, req.UserPrompt, "dedicated fire watch")
	assert.Contains(t, req.UserPrompt, "[Source: Hot Work Standard]")
}

func TestGenerateService_GenerateDocument_Validation(t *testing.T) {
	env := newGenerateTestEnv(t)
	ctx := context.Background()

	_, err := env.service.GenerateDocument(ctx, GenerateDocumentRequest{
		DocumentType: "poem",
		Topic:        "ladders",
	})
	assert.ErrorIs(t, err, ErrUnsupportedDocType)

	_, err = env.service.GenerateDocument(ctx, GenerateDocumentRequest{
		DocumentType: models.DocTypeInspectionChecklist,
		Topic:        "   ",
	})
	assert.ErrorIs(t, err, ErrEmptyTopic)

	_, err = env.service.GenerateDocument(ctx, GenerateDocumentRequest{
		DocumentType: models.DocTypeInspectionChecklist,
		Topic:        "ladders",
		Layer:        "handbook",
	})
	assert.ErrorIs(t, err, ErrInvalidLayer)

	assert.Zero(t, env.provider.calls)
	assert.Empty(t, env.records.created)
}

func TestGenerateService_GenerateDocument_RetrievalFailureDegrades(t *testing.T) {
	env := newGenerateTestEnv(t)
	env.searcher.err = errors.New("connection refused")

	result, err := env.service.GenerateDocument(context.Background(), GenerateDocumentRequest{
		DocumentType: models.DocTypeMethodStatement,
		Topic:        "scaffold erection",
	})
	require.NoError(t, err, "generation must proceed without retrieved standards")

	assert.Empty(t, result.Sources)
	assert.Contains(t, env.provider.lastReq.UserPrompt, "No indexed standards were found")
}

func TestGenerateService_GenerateDocument_LayerGuidance(t *testing.T) {
	env := newGenerateTestEnv(t)
	ctx := context.Background()

	_, err := env.service.GenerateDocument(ctx, GenerateDocumentRequest{
		DocumentType: models.DocTypeSafeWorkProcedure,
		Topic:        "confined space entry",
		Layer:        models.LayerSOP,
	})
	require.NoError(t, err)
	assert.Contains(t, env.provider.lastReq.UserPrompt, "step-by-step operating instructions")

	_, err = env.service.GenerateDocument(ctx, GenerateDocumentRequest{
		DocumentType: models.DocTypeSafeWorkProcedure,
		Topic:        "confined space entry",
	})
	require.NoError(t, err)
	assert.NotContains(t, env.provider.lastReq.UserPrompt, "LAYER:")
}

func TestGenerateService_GenerateDocument_StorageFailureStillRecords(t *testing.T) {
	env := newGenerateTestEnv(t)
	env.storage.uploadErr = errors.New("disk full")

	result, err := env.service.GenerateDocument(context.Background(), GenerateDocumentRequest{
		DocumentType: models.DocTypeIncidentReport,
		Topic:        "forklift near miss",
	})
	require.NoError(t, err, "storage is best effort for generated documents")

	assert.Empty(t, result.Document.StoragePath)
	assert.Len(t, env.records.created, 1)
}

func TestGenerateService_TemplatesCoverAllDocumentTypes(t *testing.T) {
	for _, docType := range []string{
		models.DocTypePrinciple,
		models.DocTypeRiskAssessment,
		models.DocTypeMethodStatement,
		models.DocTypeSafeWorkProcedure,
		models.DocTypeQualityControlPlan,
		models.DocTypeInspectionChecklist,
		models.DocTypeTrainingRecord,
		models.DocTypeIncidentReport,
	} {
		template, ok := documentTemplates[docType]
		assert.True(t, ok, "missing template for %q", docType)
		assert.NotEmpty(t, template.sections, "template %q has no sections", docType)
		assert.NotEmpty(t, template.referencePrefix, "template %q has no reference prefix", docType)
	}
}

func TestGenerateService_DownloadGenerated(t *testing.T) {
	env := newGenerateTestEnv(t)
	ctx := context.Background()

	result, err := env.service.GenerateDocument(ctx, GenerateDocumentRequest{
		DocumentType: models.DocTypeTrainingRecord,
		Topic:        "manual handling refresher",
	})
	require.NoError(t, err)

	doc, reader, err := env.service.DownloadGenerated(ctx, result.Document.ID)
	require.NoError(t, err)
	defer reader.Close()

	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, result.Content, string(content))
	assert.Equal(t, result.Document.Reference, doc.Reference)

	_, _, err = env.service.DownloadGenerated(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestGenerateService_DownloadGenerated_FileNeverStored(t *testing.T) {
	env := newGenerateTestEnv(t)
	env.storage.uploadErr = errors.New("disk full")
	ctx := context.Background()

	result, err := env.service.GenerateDocument(ctx, GenerateDocumentRequest{
		DocumentType: models.DocTypeTrainingRecord,
		Topic:        "manual handling refresher",
	})
	require.NoError(t, err)

	_, _, err = env.service.DownloadGenerated(ctx, result.Document.ID)
	assert.ErrorIs(t, err, ErrGeneratedFileMissing)
}

func TestGenerateService_ListGenerated(t *testing.T) {
	env := newGenerateTestEnv(t)
	ctx := context.Background()

	for _, topic := range []string{"ladder inspection", "crane lifting plan"} {
		_, err := env.service.GenerateDocument(ctx, GenerateDocumentRequest{
			DocumentType: models.DocTypeInspectionChecklist,
			Topic:        topic,
		})
		require.NoError(t, err)
	}

	docs, err := env.service.ListGenerated(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	docs, err = env.service.ListGenerated(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}
