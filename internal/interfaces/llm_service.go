package interfaces

import (
	"context"
)

// Message represents a single message in a chat conversation
type Message struct {
	// Role identifies the message sender: "user" or "assistant"
	Role string

	// Content contains the text content of the message
	Content string
}

// GenerateOptions tunes a single generation call
type GenerateOptions struct {
	// Model overrides the provider's configured model when non-empty
	Model string

	// MaxTokens limits the response length; 0 uses the provider default
	MaxTokens int

	// Temperature controls sampling randomness
	Temperature float64
}

// ToolSchema describes the JSON object a structured generation call must
// return. Claude implementations bind it as a forced tool, Gemini
// implementations as a response schema.
type ToolSchema struct {
	Name        string
	Description string
	Properties  map[string]any // JSON Schema property definitions
	Required    []string
}

// TextGenerator defines the interface for language model text generation.
// Implementations wrap a single provider (Anthropic Claude or Google Gemini)
// selected at construction time from configuration.
type TextGenerator interface {
	// Generate produces a complete response for the given system prompt and
	// conversation. The messages slice is in chronological order.
	Generate(ctx context.Context, system string, messages []Message, opts GenerateOptions) (string, error)

	// GenerateStream produces a response incrementally, invoking onDelta for
	// each text fragment as it arrives. Returns the full accumulated text.
	// A non-nil error after partial deltas means the stream broke mid-answer.
	GenerateStream(ctx context.Context, system string, messages []Message, opts GenerateOptions, onDelta func(text string)) (string, error)

	// GenerateStructured produces a JSON object conforming to the given
	// schema and returns the raw JSON bytes for the caller to unmarshal.
	GenerateStructured(ctx context.Context, system string, messages []Message, schema ToolSchema, opts GenerateOptions) ([]byte, error)

	// ModelName returns the configured generation model identifier
	ModelName() string

	// Close releases provider resources
	Close() error
}
