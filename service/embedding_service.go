package service

import (
	"context"
	"errors"
	"fmt"

	"documentiq-backend/cache"
)

const defaultEmbeddingBatchSize = 16

// EmbeddingProvider is the slice of the LLM provider the embedding service
// depends on
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbeddingModel() string
}

// EmbeddingService turns text into embedding vectors. Query embeddings are
// cached by text and model so repeated questions skip the provider call;
// document chunks are embedded straight through since their vectors live in
// the database.
type EmbeddingService struct {
	provider  EmbeddingProvider
	cache     *cache.Service
	batchSize int
}

// NewEmbeddingService creates an embedding service. cacheSvc may be nil to
// disable query embedding caching.
func NewEmbeddingService(provider EmbeddingProvider, cacheSvc *cache.Service) *EmbeddingService {
	return &EmbeddingService{
		provider:  provider,
		cache:     cacheSvc,
		batchSize: defaultEmbeddingBatchSize,
	}
}

// EmbedQuery returns the embedding for one query text, consulting the
// embedding cache first
func (s *EmbeddingService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if s.provider == nil {
		return nil, errors.New("embedding provider not set")
	}

	key := cache.Key(cache.EmbeddingPrefix, []string{text}, map[string]string{
		"model": s.provider.EmbeddingModel(),
	})

	if s.cache != nil {
		var cached []float32
		if s.cache.GetJSON(ctx, key, &cached) && len(cached) > 0 {
			return cached, nil
		}
	}

	embeddings, err := s.provider.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("provider returned %d embeddings for one input", len(embeddings))
	}

	if s.cache != nil {
		s.cache.SetJSON(ctx, key, embeddings[0], cache.DefaultEmbeddingTTL)
	}

	return embeddings[0], nil
}

// EmbedBatch embeds many texts in provider-sized batches. Results line up
// with the input order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if s.provider == nil {
		return nil, errors.New("embedding provider not set")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	embeddings := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := s.provider.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch starting at %d: %w", start, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("provider returned %d embeddings for %d inputs", len(batch), end-start)
		}

		embeddings = append(embeddings, batch...)
	}

	return embeddings, nil
}
