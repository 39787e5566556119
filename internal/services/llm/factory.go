package llm

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/contextq/contextq/internal/common"
	"github.com/contextq/contextq/internal/interfaces"
)

// NewTextGenerator creates the text generation service for the configured
// provider. The provider is fixed at construction time; callers never select
// a provider per request.
func NewTextGenerator(ctx context.Context, config *common.Config, logger arbor.ILogger) (interfaces.TextGenerator, error) {
	switch config.LLM.Provider {
	case common.LLMProviderClaude:
		return NewClaudeService(&config.Claude, logger)
	case common.LLMProviderGemini:
		return NewGeminiService(ctx, &config.Gemini, logger)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", config.LLM.Provider)
	}
}
