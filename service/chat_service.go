package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"documentiq-backend/assembler"
	"documentiq-backend/cache"
	"documentiq-backend/llm"
	"documentiq-backend/models"

	"github.com/google/uuid"
)

const (
	// DefaultTopK is the number of chunks retrieved per query
	DefaultTopK = 7
	maxTopK     = 20

	chatTemperature = 0.7
	chatMaxTokens   = 700

	conversationTitleLimit   = 50
	defaultConversationLimit = 50
)

var (
	ErrEmptyMessage         = errors.New("message must not be empty")
	ErrInvalidRating        = errors.New("rating must be between 1 and 5")
	ErrConversationNotFound = errors.New("conversation not found")
)

// QueryEmbedder produces the embedding for a chat query
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ChunkSearcher finds the indexed chunks most similar to a query embedding
type ChunkSearcher interface {
	SearchSimilar(ctx context.Context, embedding []float32, limit int, layer string) ([]models.RetrievedChunk, error)
}

// CompletionProvider generates the answer text
type CompletionProvider interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (string, error)
}

// ConversationStore persists conversations, messages, and feedback
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	ListConversations(ctx context.Context, limit int) ([]*models.Conversation, error)
	AddMessage(ctx context.Context, msg *models.ConversationMessage) error
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]*models.ConversationMessage, error)
	AddRating(ctx context.Context, rating *models.MessageRating) error
	AddFeedback(ctx context.Context, feedback *models.MessageFeedback) error
}

// QueryLogger records answered queries for the analytics dashboard
type QueryLogger interface {
	Insert(ctx context.Context, record *models.QueryRecord) error
}

// ChatService answers natural-language questions against the indexed
// knowledge base
type ChatService struct {
	embedder  QueryEmbedder
	searcher  ChunkSearcher
	assembler *assembler.Assembler
	provider  CompletionProvider
	convs     ConversationStore
	queryLog  QueryLogger
	cache     *cache.Service
	topK      int
}

// ChatServiceOption is a functional option for ChatService
type ChatServiceOption func(*ChatService)

// ChatWithEmbedder sets the query embedder
func ChatWithEmbedder(embedder QueryEmbedder) ChatServiceOption {
	return func(s *ChatService) {
		s.embedder = embedder
	}
}

// ChatWithSearcher sets the chunk searcher
func ChatWithSearcher(searcher ChunkSearcher) ChatServiceOption {
	return func(s *ChatService) {
		s.searcher = searcher
	}
}

// ChatWithAssembler sets the context assembler
func ChatWithAssembler(a *assembler.Assembler) ChatServiceOption {
	return func(s *ChatService) {
		s.assembler = a
	}
}

// ChatWithProvider sets the completion provider
func ChatWithProvider(provider CompletionProvider) ChatServiceOption {
	return func(s *ChatService) {
		s.provider = provider
	}
}

// ChatWithConversationStore sets the conversation store
func ChatWithConversationStore(store ConversationStore) ChatServiceOption {
	return func(s *ChatService) {
		s.convs = store
	}
}

// ChatWithQueryLogger sets the query logger
func ChatWithQueryLogger(logger QueryLogger) ChatServiceOption {
	return func(s *ChatService) {
		s.queryLog = logger
	}
}

// ChatWithCache sets the response cache
func ChatWithCache(cacheSvc *cache.Service) ChatServiceOption {
	return func(s *ChatService) {
		s.cache = cacheSvc
	}
}

// ChatWithTopK sets the default number of chunks retrieved per query
func ChatWithTopK(topK int) ChatServiceOption {
	return func(s *ChatService) {
		if topK > 0 {
			s.topK = topK
		}
	}
}

// NewChatService creates a new chat service
func NewChatService(opts ...ChatServiceOption) *ChatService {
	s := &ChatService{topK: DefaultTopK}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ChatRequest represents one user question
type ChatRequest struct {
	Message        string
	ConversationID *uuid.UUID // nil starts a new conversation
	Language       string
	TopK           int // 0 uses the service default
}

// ChatResult represents one answered question
type ChatResult struct {
	Answer         string
	Sources        []string
	ConversationID uuid.UUID
	MessageID      uuid.UUID
	Language       string
	ResponseTimeMs float64
	Cached         bool
}

// cachedAnswer is the response cache payload
type cachedAnswer struct {
	Answer      string   `json:"answer"`
	Sources     []string `json:"sources"`
	DocumentIDs []string `json:"document_ids"`
}

// Chat answers a question using retrieval-augmented generation. Repeated
// questions are served from the response cache without touching the
// embedding or completion providers. Retrieval failures degrade to an
// answer without context rather than an error.
func (s *ChatService) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	if s.embedder == nil {
		return nil, errors.New("query embedder not set")
	}
	if s.searcher == nil {
		return nil, errors.New("chunk searcher not set")
	}
	if s.assembler == nil {
		return nil, errors.New("context assembler not set")
	}
	if s.provider == nil {
		return nil, errors.New("completion provider not set")
	}
	if s.convs == nil {
		return nil, errors.New("conversation store not set")
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	language := normalizeLanguage(req.Language)
	topK := req.TopK
	if topK <= 0 {
		topK = s.topK
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	start := time.Now()
	cacheKey := cache.Key(cache.QueryPrefix, []string{message}, map[string]string{
		"language": language,
		"top_k":    strconv.Itoa(topK),
	})

	// 1. Response cache check
	if s.cache != nil {
		var cached cachedAnswer
		if s.cache.GetJSON(ctx, cacheKey, &cached) && cached.Answer != "" {
			elapsed := msSince(start)
			convID, msgID := s.recordExchange(ctx, req.ConversationID, language, message, cached.Answer, cached.Sources, elapsed)
			s.logQuery(ctx, message, convID, language, elapsed, true, cached.Sources, cached.DocumentIDs)

			return &ChatResult{
				Answer:         cached.Answer,
				Sources:        cached.Sources,
				ConversationID: convID,
				MessageID:      msgID,
				Language:       language,
				ResponseTimeMs: elapsed,
				Cached:         true,
			}, nil
		}
	}

	// 2. Query embedding (embedding-cache checked inside the embedder)
	embedding, err := s.embedder.EmbedQuery(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// 3. Vector retrieval
	chunks, err := s.searcher.SearchSimilar(ctx, embedding, topK, "")
	if err != nil {
		log.Printf("Warning: Failed to retrieve context: %v. Continuing with empty context.", err)
		chunks = nil
	}

	// 4. Context assembly
	contextText, sources := s.assembler.Assemble(chunks)

	// 5. Generation
	answer, err := s.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: chatSystemPrompt(language),
		UserPrompt:   chatUserPrompt(contextText, message),
		Temperature:  chatTemperature,
		MaxTokens:    chatMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	documentIDs := documentIDsOf(chunks)

	// 6. Cache the response for identical follow-up questions
	if s.cache != nil {
		s.cache.SetJSON(ctx, cacheKey, cachedAnswer{
			Answer:      answer,
			Sources:     sources,
			DocumentIDs: documentIDs,
		}, cache.DefaultQueryTTL)
	}

	elapsed := msSince(start)
	convID, msgID := s.recordExchange(ctx, req.ConversationID, language, message, answer, sources, elapsed)
	s.logQuery(ctx, message, convID, language, elapsed, false, sources, documentIDs)

	return &ChatResult{
		Answer:         answer,
		Sources:        sources,
		ConversationID: convID,
		MessageID:      msgID,
		Language:       language,
		ResponseTimeMs: elapsed,
		Cached:         false,
	}, nil
}

// ListConversations returns the most recently active conversations
func (s *ChatService) ListConversations(ctx context.Context, limit int) ([]*models.Conversation, error) {
	if s.convs == nil {
		return nil, errors.New("conversation store not set")
	}
	if limit <= 0 {
		limit = defaultConversationLimit
	}
	return s.convs.ListConversations(ctx, limit)
}

// GetConversation returns one conversation by ID
func (s *ChatService) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	if s.convs == nil {
		return nil, errors.New("conversation store not set")
	}
	conv, err := s.convs.GetConversation(ctx, id)
	if err != nil {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}

// GetMessages returns a conversation's messages in chronological order
func (s *ChatService) GetMessages(ctx context.Context, conversationID uuid.UUID) ([]*models.ConversationMessage, error) {
	if s.convs == nil {
		return nil, errors.New("conversation store not set")
	}
	if _, err := s.convs.GetConversation(ctx, conversationID); err != nil {
		return nil, ErrConversationNotFound
	}
	return s.convs.ListMessages(ctx, conversationID)
}

// RateMessageRequest represents a quick 1-5 rating of an answer
type RateMessageRequest struct {
	ConversationID uuid.UUID
	MessageID      uuid.UUID
	Rating         int
}

// RateMessage stores a quick rating for an answer
func (s *ChatService) RateMessage(ctx context.Context, req RateMessageRequest) error {
	if s.convs == nil {
		return errors.New("conversation store not set")
	}
	if req.Rating < 1 || req.Rating > 5 {
		return ErrInvalidRating
	}

	rating := &models.MessageRating{
		ConversationID: req.ConversationID,
		MessageID:      req.MessageID,
		Rating:         req.Rating,
	}
	return s.convs.AddRating(ctx, rating)
}

// SubmitFeedbackRequest represents detailed feedback on an answer
type SubmitFeedbackRequest struct {
	ConversationID uuid.UUID
	MessageID      uuid.UUID
	Rating         int
	Comment        string
	Categories     []string
}

// SubmitFeedback stores detailed feedback for an answer
func (s *ChatService) SubmitFeedback(ctx context.Context, req SubmitFeedbackRequest) error {
	if s.convs == nil {
		return errors.New("conversation store not set")
	}
	if req.Rating < 1 || req.Rating > 5 {
		return ErrInvalidRating
	}

	feedback := &models.MessageFeedback{
		ConversationID: req.ConversationID,
		MessageID:      req.MessageID,
		Rating:         req.Rating,
		Comment:        req.Comment,
		Categories:     req.Categories,
	}
	return s.convs.AddFeedback(ctx, feedback)
}

// recordExchange appends the question and answer to a conversation,
// creating the conversation first when needed. Persistence failures are
// logged and do not fail the chat: the user still gets the answer.
func (s *ChatService) recordExchange(
	ctx context.Context,
	conversationID *uuid.UUID,
	language string,
	message string,
	answer string,
	sources []string,
	elapsed float64,
) (uuid.UUID, uuid.UUID) {
	var convID uuid.UUID
	if conversationID != nil {
		convID = *conversationID
	} else {
		conv := &models.Conversation{
			Title:    conversationTitle(message),
			Language: language,
		}
		if err := s.convs.CreateConversation(ctx, conv); err != nil {
			log.Printf("Warning: Failed to create conversation: %v", err)
			return uuid.UUID{}, uuid.UUID{}
		}
		convID = conv.ID
	}

	userMsg := &models.ConversationMessage{
		ConversationID: convID,
		Role:           models.RoleUser,
		Content:        message,
	}
	if err := s.convs.AddMessage(ctx, userMsg); err != nil {
		log.Printf("Warning: Failed to store user message: %v", err)
		return convID, uuid.UUID{}
	}

	assistantMsg := &models.ConversationMessage{
		ConversationID: convID,
		Role:           models.RoleAssistant,
		Content:        answer,
		Sources:        sources,
		ResponseTimeMs: &elapsed,
	}
	if err := s.convs.AddMessage(ctx, assistantMsg); err != nil {
		log.Printf("Warning: Failed to store assistant message: %v", err)
		return convID, uuid.UUID{}
	}

	return convID, assistantMsg.ID
}

// logQuery records the query for analytics. Logging failures are logged
// and swallowed.
func (s *ChatService) logQuery(
	ctx context.Context,
	message string,
	conversationID uuid.UUID,
	language string,
	elapsed float64,
	cacheHit bool,
	sources []string,
	documentIDs []string,
) {
	if s.queryLog == nil {
		return
	}

	record := &models.QueryRecord{
		QueryText:      message,
		Language:       language,
		ResponseTimeMs: elapsed,
		CacheHit:       cacheHit,
		Sources:        sources,
		DocumentIDs:    documentIDs,
	}
	if conversationID != (uuid.UUID{}) {
		record.ConversationID = &conversationID
	}

	if err := s.queryLog.Insert(ctx, record); err != nil {
		log.Printf("Warning: Failed to log query: %v", err)
	}
}

// documentIDsOf returns the distinct document IDs behind the retrieved
// chunks, in retrieval order
func documentIDsOf(chunks []models.RetrievedChunk) []string {
	var ids []string
	seen := make(map[uuid.UUID]bool)
	for _, chunk := range chunks {
		if seen[chunk.DocumentID] {
			continue
		}
		seen[chunk.DocumentID] = true
		ids = append(ids, chunk.DocumentID.String())
	}
	return ids
}

// normalizeLanguage maps unknown language codes to English
func normalizeLanguage(language string) string {
	switch strings.ToLower(strings.TrimSpace(language)) {
	case models.LanguagePolish:
		return models.LanguagePolish
	case models.LanguageRomanian:
		return models.LanguageRomanian
	default:
		return models.LanguageEnglish
	}
}

// conversationTitle derives a conversation title from its first question
func conversationTitle(message string) string {
	runes := []rune(message)
	if len(runes) <= conversationTitleLimit {
		return message
	}
	return string(runes[:conversationTitleLimit]) + "..."
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

func chatSystemPrompt(language string) string {
	base := "You are an assistant for an enterprise technical-standards knowledge base. " +
		"Answer questions using only the provided context from the organization's documents. " +
		"Name the source documents your answer relies on. " +
		"If the context does not contain the answer, say that the information is not in the " +
		"indexed documents instead of guessing."

	switch language {
	case models.LanguagePolish:
		return base + " Always answer in Polish."
	case models.LanguageRomanian:
		return base + " Always answer in Romanian."
	default:
		return base + " Always answer in English."
	}
}

func chatUserPrompt(contextText, message string) string {
	if contextText == "" {
		return fmt.Sprintf(`No relevant documents were found in the knowledge base for this question.

QUESTION:
%s

Tell the user that the indexed documents do not cover this question, and suggest rephrasing it or uploading the relevant standard.`, message)
	}

	return fmt.Sprintf(`CONTEXT:
%s

QUESTION:
%s

Answer the question based on the context above.`, contextText, message)
}
