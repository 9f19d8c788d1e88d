package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	defaultGeminiChatModel      = "gemini-2.0-flash"
	defaultGeminiEmbeddingModel = "text-embedding-004"
)

// GeminiProvider calls the Gemini API through the official SDK
type GeminiProvider struct {
	client         *genai.Client
	chatModel      string
	embeddingModel string
}

// GeminiOption is a functional option for GeminiProvider
type GeminiOption func(*GeminiProvider)

// GeminiWithChatModel overrides the chat model
func GeminiWithChatModel(model string) GeminiOption {
	return func(p *GeminiProvider) {
		p.chatModel = model
	}
}

// GeminiWithEmbeddingModel overrides the embedding model
func GeminiWithEmbeddingModel(model string) GeminiOption {
	return func(p *GeminiProvider) {
		p.embeddingModel = model
	}
}

// NewGeminiProvider creates a Gemini provider over an existing client
func NewGeminiProvider(client *genai.Client, opts ...GeminiOption) *GeminiProvider {
	p := &GeminiProvider{
		client:         client,
		chatModel:      defaultGeminiChatModel,
		embeddingModel: defaultGeminiEmbeddingModel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewGeminiProviderFromEnv creates a Gemini provider from environment variables
func NewGeminiProviderFromEnv(ctx context.Context) (*GeminiProvider, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	var opts []GeminiOption
	if model := os.Getenv("GEMINI_CHAT_MODEL"); model != "" {
		opts = append(opts, GeminiWithChatModel(model))
	}
	if model := os.Getenv("GEMINI_EMBEDDING_MODEL"); model != "" {
		opts = append(opts, GeminiWithEmbeddingModel(model))
	}

	return NewGeminiProvider(client, opts...), nil
}

// Name identifies the vendor in logs
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// EmbeddingModel returns the configured embedding model identifier
func (p *GeminiProvider) EmbeddingModel() string {
	return p.embeddingModel
}

// Complete generates text with the configured chat model
func (p *GeminiProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	model := p.client.GenerativeModel(p.chatModel)
	model.SetTemperature(float32(req.Temperature))
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.SystemPrompt)},
		}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.UserPrompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrGenerationFailed
	}

	var builder strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			builder.WriteString(string(text))
		}
	}
	if builder.Len() == 0 {
		return "", ErrGenerationFailed
	}
	return builder.String(), nil
}

// Embed returns one embedding per input text via a single batch call
func (p *GeminiProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	em := p.client.EmbeddingModel(p.embeddingModel)
	batch := em.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}

	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("failed to embed batch: %w", err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("API returned %d embeddings for %d inputs", len(res.Embeddings), len(texts))
	}

	embeddings := make([][]float32, len(texts))
	for i, embedding := range res.Embeddings {
		if embedding == nil || len(embedding.Values) == 0 {
			return nil, ErrEmbeddingFailed
		}
		embeddings[i] = embedding.Values
	}
	return embeddings, nil
}

// Close releases the underlying API client
func (p *GeminiProvider) Close() error {
	return p.client.Close()
}
