package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/contextq/contextq/internal/common"
)

// NewGenaiClient creates a standalone genai client. Used for embeddings when
// Claude is the generation provider, since embeddings always go through the
// Gemini API.
func NewGenaiClient(ctx context.Context, geminiConfig *common.GeminiConfig) (*genai.Client, error) {
	if geminiConfig.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required for embeddings (set GEMINI_API_KEY, CONTEXTQ_GEMINI_API_KEY, or gemini.api_key in config)")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  geminiConfig.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return client, nil
}
