package llm

import (
	"github.com/contextq/contextq/internal/interfaces"
)

// Compile-time interface checks
var (
	_ interfaces.TextGenerator = (*ClaudeService)(nil)
	_ interfaces.TextGenerator = (*GeminiService)(nil)
)
