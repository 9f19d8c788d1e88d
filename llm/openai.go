package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultOpenAIBaseURL        = "https://api.openai.com/v1"
	defaultOpenAIChatModel      = "gpt-4o-mini"
	defaultOpenAIEmbeddingModel = "text-embedding-3-small"
	defaultEmbeddingDimensions  = 768
)

// OpenAIProvider calls the OpenAI REST API directly via HTTP
type OpenAIProvider struct {
	apiKey         string
	baseURL        string
	chatModel      string
	embeddingModel string
	embeddingDims  int
	httpClient     *http.Client
}

// OpenAIOption is a functional option for OpenAIProvider
type OpenAIOption func(*OpenAIProvider)

// OpenAIWithBaseURL overrides the API base URL
func OpenAIWithBaseURL(baseURL string) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// OpenAIWithChatModel overrides the chat model
func OpenAIWithChatModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.chatModel = model
	}
}

// OpenAIWithEmbeddingModel overrides the embedding model
func OpenAIWithEmbeddingModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.embeddingModel = model
	}
}

// OpenAIWithEmbeddingDimensions overrides the requested embedding width
func OpenAIWithEmbeddingDimensions(dims int) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.embeddingDims = dims
	}
}

// OpenAIWithHTTPClient overrides the HTTP client
func OpenAIWithHTTPClient(client *http.Client) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.httpClient = client
	}
}

// NewOpenAIProvider creates an OpenAI provider
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key not set")
	}

	p := &OpenAIProvider{
		apiKey:         apiKey,
		baseURL:        defaultOpenAIBaseURL,
		chatModel:      defaultOpenAIChatModel,
		embeddingModel: defaultOpenAIEmbeddingModel,
		embeddingDims:  defaultEmbeddingDimensions,
		httpClient:     &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// NewOpenAIProviderFromEnv creates an OpenAI provider from environment variables
func NewOpenAIProviderFromEnv() (*OpenAIProvider, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}

	var opts []OpenAIOption
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		opts = append(opts, OpenAIWithBaseURL(baseURL))
	}
	if model := os.Getenv("OPENAI_CHAT_MODEL"); model != "" {
		opts = append(opts, OpenAIWithChatModel(model))
	}
	if model := os.Getenv("OPENAI_EMBEDDING_MODEL"); model != "" {
		opts = append(opts, OpenAIWithEmbeddingModel(model))
	}
	if dims := os.Getenv("EMBEDDING_DIM"); dims != "" {
		n, err := strconv.Atoi(dims)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid EMBEDDING_DIM: %s", dims)
		}
		opts = append(opts, OpenAIWithEmbeddingDimensions(n))
	}

	return NewOpenAIProvider(apiKey, opts...)
}

// Name identifies the vendor in logs
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// EmbeddingModel returns the configured embedding model identifier
func (p *OpenAIProvider) EmbeddingModel() string {
	return p.embeddingModel
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason,omitempty"`
	} `json:"choices"`
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Complete generates text via the chat completions endpoint
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.UserPrompt})

	body := chatCompletionRequest{
		Model:       p.chatModel,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	var apiResp chatCompletionResponse
	if err := p.post(ctx, "/chat/completions", body, &apiResp); err != nil {
		return "", err
	}

	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("API returned no choices")
	}

	content := apiResp.Choices[0].Message.Content
	if content == "" {
		return "", ErrGenerationFailed
	}
	return content, nil
}

// Embed returns one embedding per input text, in input order. The dimensions
// parameter is only sent for models that accept it.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body := embeddingRequest{
		Model: p.embeddingModel,
		Input: texts,
	}
	if strings.HasPrefix(p.embeddingModel, "text-embedding-3") {
		body.Dimensions = p.embeddingDims
	}

	var apiResp embeddingResponse
	if err := p.post(ctx, "/embeddings", body, &apiResp); err != nil {
		return nil, err
	}

	if len(apiResp.Data) != len(texts) {
		return nil, fmt.Errorf("API returned %d embeddings for %d inputs", len(apiResp.Data), len(texts))
	}

	embeddings := make([][]float32, len(texts))
	for _, item := range apiResp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("API returned embedding with out-of-range index %d", item.Index)
		}
		embeddings[item.Index] = item.Embedding
	}
	for i, embedding := range embeddings {
		if len(embedding) == 0 {
			return nil, fmt.Errorf("API returned empty embedding for input %d", i)
		}
	}
	return embeddings, nil
}

// post sends a JSON request with retry and exponential backoff. Client
// errors on auth or request shape are not retried.
func (p *OpenAIProvider) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	backoff := initialBackoff
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+path, bytes.NewBuffer(jsonData))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+p.apiKey)

		resp, err := p.httpClient.Do(req)
		if err != nil {
			if attempt == maxRetries-1 {
				return fmt.Errorf("failed to send request after %d attempts: %w", maxRetries, err)
			}
			continue
		}

		if resp.StatusCode == http.StatusOK {
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				if attempt == maxRetries-1 {
					return fmt.Errorf("failed to decode response: %w", err)
				}
				continue
			}
			return nil
		}

		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		// Don't retry on 400 or 401 errors
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("API error: %d - %s", resp.StatusCode, string(bodyBytes))
		}

		if attempt == maxRetries-1 {
			return fmt.Errorf("API error after %d attempts: %d - %s", maxRetries, resp.StatusCode, string(bodyBytes))
		}
	}

	return fmt.Errorf("request failed after %d attempts", maxRetries)
}
