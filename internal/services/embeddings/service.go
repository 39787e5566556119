package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/contextq/contextq/internal/common"
	"github.com/contextq/contextq/internal/interfaces"
)

// Service generates embeddings through the Gemini API. Batches are
// order-preserving; transient failures retry with exponential backoff.
type Service struct {
	config    *common.EmbeddingsConfig
	logger    arbor.ILogger
	client    *genai.Client
	cache     interfaces.EmbeddingCache
	batchSize int
}

var _ interfaces.EmbeddingService = (*Service)(nil)

// NewService creates an embedding service over a shared genai client.
// The cache is optional; pass nil to disable query embedding caching.
func NewService(client *genai.Client, config *common.EmbeddingsConfig, cache interfaces.EmbeddingCache, logger arbor.ILogger) (*Service, error) {
	if client == nil {
		return nil, fmt.Errorf("genai client is required")
	}

	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = 64
	}

	logger.Debug().
		Str("model", config.Model).
		Int("dimension", config.Dimension).
		Int("batch_size", batchSize).
		Msg("Embedding service initialized")

	return &Service{
		config:    config,
		logger:    logger,
		client:    client,
		cache:     cache,
		batchSize: batchSize,
	}, nil
}

// EmbedTexts generates one embedding per input text, order-preserving
func (s *Service) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := s.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d-%d failed: %w", start, end, err)
		}
		results = append(results, batch...)
	}

	return results, nil
}

// EmbedQuery generates an embedding for a search query, consulting the
// bounded cache keyed by content hash
func (s *Service) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	key := hashText(query)

	if s.cache != nil {
		if embedding, ok := s.cache.Get(key); ok {
			s.logger.Debug().Str("key", key[:12]).Msg("Embedding cache hit")
			return embedding, nil
		}
	}

	embeddings, err := s.embedBatch(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(key, embeddings[0])
	}

	return embeddings[0], nil
}

// embedBatch embeds one provider-sized batch with retry.
// Backoff doubles each attempt: 1s, 2s, 4s.
func (s *Service) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	outputDim := int32(s.config.Dimension)
	embeddingConfig := &genai.EmbedContentConfig{
		OutputDimensionality: &outputDim,
	}

	retries := s.config.Retries
	if retries <= 0 {
		retries = 3
	}

	var result *genai.EmbedContentResponse
	var apiErr error
	backoff := time.Second

	for attempt := 0; attempt <= retries; attempt++ {
		result, apiErr = s.client.Models.EmbedContent(ctx, s.config.Model, contents, embeddingConfig)
		if apiErr == nil {
			break
		}

		if attempt == retries {
			break
		}

		s.logger.Warn().
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(apiErr).
			Msg("Retrying embedding API call")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	if apiErr != nil {
		return nil, fmt.Errorf("embedding generation failed after %d retries: %w", retries, apiErr)
	}

	if result == nil || len(result.Embeddings) != len(texts) {
		got := 0
		if result != nil {
			got = len(result.Embeddings)
		}
		return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(texts), got)
	}

	embeddings := make([][]float32, len(texts))
	for i, emb := range result.Embeddings {
		if len(emb.Values) != s.config.Dimension {
			return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", s.config.Dimension, len(emb.Values))
		}
		embeddings[i] = emb.Values
	}

	return embeddings, nil
}

// ModelName returns the embedding model identifier
func (s *Service) ModelName() string {
	return s.config.Model
}

// Dimension returns the embedding vector dimension
func (s *Service) Dimension() int {
	return s.config.Dimension
}

// hashText returns the hex SHA-256 of the text, used as a cache key
func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
