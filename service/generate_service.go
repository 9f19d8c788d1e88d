package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"documentiq-backend/assembler"
	"documentiq-backend/llm"
	"documentiq-backend/models"
	"documentiq-backend/storage"

	"github.com/google/uuid"
)

const (
	generationTemperature = 0.3
	generationMaxTokens   = 3000
	standardsTopK         = 5

	defaultGeneratedLimit = 20
)

var (
	ErrUnsupportedDocType   = errors.New("unsupported document type")
	ErrEmptyTopic           = errors.New("topic must not be empty")
	ErrGeneratedFileMissing = errors.New("generated document has no stored file")
)

// GeneratedDocumentStore persists generated document records
type GeneratedDocumentStore interface {
	Create(ctx context.Context, doc *models.GeneratedDocument) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.GeneratedDocument, error)
	List(ctx context.Context, limit int) ([]*models.GeneratedDocument, error)
}

// GenerateService produces structured compliance documents grounded in the
// indexed standards
type GenerateService struct {
	embedder  QueryEmbedder
	searcher  ChunkSearcher
	assembler *assembler.Assembler
	provider  CompletionProvider
	records   GeneratedDocumentStore
	storage   storage.Storage
}

// GenerateServiceOption is a functional option for GenerateService
type GenerateServiceOption func(*GenerateService)

// GenerateWithEmbedder sets the query embedder
func GenerateWithEmbedder(embedder QueryEmbedder) GenerateServiceOption {
	return func(s *GenerateService) {
		s.embedder = embedder
	}
}

// GenerateWithSearcher sets the chunk searcher
func GenerateWithSearcher(searcher ChunkSearcher) GenerateServiceOption {
	return func(s *GenerateService) {
		s.searcher = searcher
	}
}

// GenerateWithAssembler sets the context assembler
func GenerateWithAssembler(a *assembler.Assembler) GenerateServiceOption {
	return func(s *GenerateService) {
		s.assembler = a
	}
}

// GenerateWithProvider sets the completion provider
func GenerateWithProvider(provider CompletionProvider) GenerateServiceOption {
	return func(s *GenerateService) {
		s.provider = provider
	}
}

// GenerateWithRecordStore sets the generated document record store
func GenerateWithRecordStore(store GeneratedDocumentStore) GenerateServiceOption {
	return func(s *GenerateService) {
		s.records = store
	}
}

// GenerateWithStorage sets the blob storage for generated files
func GenerateWithStorage(store storage.Storage) GenerateServiceOption {
	return func(s *GenerateService) {
		s.storage = store
	}
}

// NewGenerateService creates a new generate service
func NewGenerateService(opts ...GenerateServiceOption) *GenerateService {
	s := &GenerateService{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateDocumentRequest represents a request for one compliance document
type GenerateDocumentRequest struct {
	DocumentType string // one of the models.DocType values
	Topic        string
	Author       string
	Layer        string // optional target layer, shapes the register
	Instructions string // optional extra instructions
}

// GenerateDocumentResult is a generated document with its record
type GenerateDocumentResult struct {
	Document *models.GeneratedDocument
	Content  string
	Sources  []string
}

// documentTemplate describes the structure of one generated document type
type documentTemplate struct {
	name            string
	referencePrefix string
	sections        []string
}

var documentTemplates = map[string]documentTemplate{
	models.DocTypePrinciple: {
		name:            "Principle",
		referencePrefix: "PR",
		sections: []string{
			"Purpose", "Scope", "Principle Statement", "Linked Policies",
			"Linked Procedures", "Responsibilities", "Review",
		},
	},
	models.DocTypeRiskAssessment: {
		name:            "Risk Assessment",
		referencePrefix: "RA",
		sections: []string{
			"Activity Description", "Hazard Identification", "Persons at Risk",
			"Risk Ratings Before Controls", "Control Measures",
			"Residual Risk Ratings", "Monitoring and Review",
		},
	},
	models.DocTypeMethodStatement: {
		name:            "Method Statement",
		referencePrefix: "MS",
		sections: []string{
			"Scope of Works", "Sequence of Operations", "Plant and Equipment",
			"Materials", "Workforce and Competency", "Health and Safety Controls",
			"Emergency Arrangements",
		},
	},
	models.DocTypeSafeWorkProcedure: {
		name:            "Safe Work Procedure",
		referencePrefix: "SWP",
		sections: []string{
			"Purpose", "Scope", "Required PPE", "Pre-start Checks",
			"Step-by-step Procedure", "Prohibited Actions", "Emergency Response",
		},
	},
	models.DocTypeQualityControlPlan: {
		name:            "Quality Control Plan",
		referencePrefix: "QCP",
		sections: []string{
			"Quality Objectives", "Applicable Standards", "Inspection and Test Points",
			"Acceptance Criteria", "Records and Traceability", "Non-conformance Handling",
		},
	},
	models.DocTypeInspectionChecklist: {
		name:            "Inspection Checklist",
		referencePrefix: "IC",
		sections: []string{
			"Inspection Scope", "Checklist Items", "Pass/Fail Criteria",
			"Corrective Actions", "Sign-off",
		},
	},
	models.DocTypeTrainingRecord: {
		name:            "Training Record",
		referencePrefix: "TR",
		sections: []string{
			"Training Objective", "Topics Covered", "Competency Criteria",
			"Assessment Method", "Attendee Record", "Trainer Sign-off",
		},
	},
	models.DocTypeIncidentReport: {
		name:            "Incident Report",
		referencePrefix: "IR",
		sections: []string{
			"Incident Summary", "Location and Time", "Persons Involved",
			"Immediate Actions Taken", "Root Cause Analysis",
			"Corrective and Preventive Actions",
		},
	},
}

// GenerateDocument writes one compliance document. Retrieval failures
// degrade to generation without referenced standards rather than an error.
func (s *GenerateService) GenerateDocument(ctx context.Context, req GenerateDocumentRequest) (*GenerateDocumentResult, error) {
	if s.provider == nil {
		return nil, errors.New("completion provider not set")
	}
	if s.records == nil {
		return nil, errors.New("generated document store not set")
	}

	template, ok := documentTemplates[req.DocumentType]
	if !ok {
		return nil, ErrUnsupportedDocType
	}

	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	if req.Layer != "" && !validLayer(req.Layer) {
		return nil, ErrInvalidLayer
	}

	standards, sources := s.retrieveStandards(ctx, template.name+" "+topic)

	prompt := buildGenerationPrompt(template, topic, req.Layer, req.Instructions, standards)

	content, err := s.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: "You are a compliance documentation specialist for an industrial organization. " +
			"Use precise, auditable language. Ground requirements in the referenced standards.",
		UserPrompt:  prompt,
		Temperature: generationTemperature,
		MaxTokens:   generationMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate document: %w", err)
	}

	doc := &models.GeneratedDocument{
		DocumentType: req.DocumentType,
		Title:        fmt.Sprintf("%s: %s", template.name, topic),
		Author:       req.Author,
		Layer:        req.Layer,
		Format:       "markdown",
		Reference:    buildReference(template.referencePrefix),
	}

	// Keep a copy of the generated markdown next to the uploaded originals
	if s.storage != nil {
		fileID := uuid.New()
		filename := slugify(doc.Title) + ".md"
		storagePath, err := s.storage.Upload(ctx, fileID, filename, strings.NewReader(content))
		if err != nil {
			log.Printf("Warning: Failed to store generated document: %v", err)
		} else {
			doc.StoragePath = storagePath
		}
	}

	if err := s.records.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to record generated document: %w", err)
	}

	return &GenerateDocumentResult{
		Document: doc,
		Content:  content,
		Sources:  sources,
	}, nil
}

// ListGenerated returns the most recent generated documents
func (s *GenerateService) ListGenerated(ctx context.Context, limit int) ([]*models.GeneratedDocument, error) {
	if s.records == nil {
		return nil, errors.New("generated document store not set")
	}
	if limit <= 0 {
		limit = defaultGeneratedLimit
	}
	return s.records.List(ctx, limit)
}

// DownloadGenerated returns the stored file for a generated document. A
// record whose storage upload failed at generation time has no file.
func (s *GenerateService) DownloadGenerated(ctx context.Context, id uuid.UUID) (*models.GeneratedDocument, io.ReadCloser, error) {
	if s.records == nil {
		return nil, nil, errors.New("generated document store not set")
	}
	if s.storage == nil {
		return nil, nil, errors.New("storage not set")
	}

	doc, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, nil, ErrDocumentNotFound
	}
	if doc.StoragePath == "" {
		return nil, nil, ErrGeneratedFileMissing
	}

	reader, err := s.storage.Download(ctx, doc.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to download generated document: %w", err)
	}

	return doc, reader, nil
}

// retrieveStandards finds indexed standards relevant to the document being
// generated. Any failure yields empty context so generation can proceed.
func (s *GenerateService) retrieveStandards(ctx context.Context, query string) (string, []string) {
	if s.embedder == nil || s.searcher == nil || s.assembler == nil {
		return "", nil
	}

	embedding, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		log.Printf("Warning: Failed to embed generation query: %v. Continuing with empty context.", err)
		return "", nil
	}

	chunks, err := s.searcher.SearchSimilar(ctx, embedding, standardsTopK, "")
	if err != nil {
		log.Printf("Warning: Failed to retrieve standards: %v. Continuing with empty context.", err)
		return "", nil
	}

	return s.assembler.Assemble(chunks)
}

func buildGenerationPrompt(template documentTemplate, topic, layer, instructions, standards string) string {
	var sections strings.Builder
	for i, section := range template.sections {
		sections.WriteString(fmt.Sprintf("%d. %s\n", i+1, section))
	}

	if standards == "" {
		standards = "No indexed standards were found for this topic. State explicitly where " +
			"organization-specific standards must be consulted."
	}

	prompt := fmt.Sprintf(`REFERENCED STANDARDS:
%s

DOCUMENT TYPE: %s

TOPIC: %s

TASK:
Write a complete "%s" document for the topic above, in Markdown, containing these sections in order:
%s`,
		standards,
		template.name,
		topic,
		template.name,
		sections.String(),
	)

	if guidance := layerGuidance(layer); guidance != "" {
		prompt += "\n" + guidance + "\n"
	}
	if strings.TrimSpace(instructions) != "" {
		prompt += fmt.Sprintf("\nADDITIONAL INSTRUCTIONS:\n%s\n", strings.TrimSpace(instructions))
	}

	prompt += `
OUTPUT REQUIREMENTS:
- Ground every requirement in the referenced standards where they apply, and name the standard relied on
- Use precise, auditable language ("shall", "must"); no marketing tone
- Where an organization-specific value is unknown, insert a [TO BE COMPLETED] placeholder instead of inventing one
- Output Markdown only, starting with a level-1 title`

	return prompt
}

// layerGuidance shapes the register of the generated document for its
// place in the policy / principle / SOP hierarchy
func layerGuidance(layer string) string {
	switch layer {
	case models.LayerPolicy:
		return "LAYER: Write at the policy layer: high-level intent, accountabilities, and governance. Avoid step-by-step instructions."
	case models.LayerPrinciple:
		return "LAYER: Write at the principle layer: bridge policy intent to operational procedure. State the rules teams must apply, referencing the policies above and the procedures below them."
	case models.LayerSOP:
		return "LAYER: Write at the SOP layer: concrete, numbered, step-by-step operating instructions a worker can follow directly."
	default:
		return ""
	}
}

// buildReference produces a human-readable document reference such as
// RA-20260825-1a2b3c
func buildReference(prefix string) string {
	return fmt.Sprintf("%s-%s-%s",
		prefix,
		time.Now().UTC().Format("20060102"),
		uuid.New().String()[:6],
	)
}

// slugify turns a title into a safe filename stem
func slugify(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteRune('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
