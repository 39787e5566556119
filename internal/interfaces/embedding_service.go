package interfaces

import (
	"context"
)

// EmbeddingService generates vector embeddings
type EmbeddingService interface {
	// EmbedTexts generates one embedding per input text, order-preserving.
	// Inputs are batched into provider-sized API calls internally.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a search query
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	// Get model information
	ModelName() string
	Dimension() int
}
