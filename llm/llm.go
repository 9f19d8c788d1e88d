package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// CompletionRequest describes one text-generation call
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
}

// Provider abstracts a hosted LLM vendor. Implementations must be safe for
// concurrent use.
type Provider interface {
	// Name identifies the vendor in logs
	Name() string
	// Complete generates text for the given prompts
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	// Embed returns one embedding vector per input text, in input order
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// EmbeddingModel returns the model identifier used by Embed, so callers
	// can key caches by it
	EmbeddingModel() string
}

var (
	ErrGenerationFailed = errors.New("failed to generate content")
	ErrEmbeddingFailed  = errors.New("failed to generate embedding")
)

const (
	maxRetries     = 3
	initialBackoff = time.Second
)

// NewProviderFromEnv builds the provider selected by LLM_PROVIDER.
// An unset or empty value selects OpenAI.
func NewProviderFromEnv(ctx context.Context) (Provider, error) {
	provider := strings.ToLower(strings.TrimSpace(os.Getenv("LLM_PROVIDER")))
	switch provider {
	case "", "openai":
		return NewOpenAIProviderFromEnv()
	case "gemini":
		return NewGeminiProviderFromEnv(ctx)
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER: %s", provider)
	}
}
