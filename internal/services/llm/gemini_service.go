package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/contextq/contextq/internal/common"
	"github.com/contextq/contextq/internal/interfaces"
)

// GeminiService implements the TextGenerator interface using the
// Google Gemini API.
type GeminiService struct {
	config  *common.GeminiConfig
	logger  arbor.ILogger
	client  *genai.Client
	timeout time.Duration
	retry   *RetryConfig
}

// NewGeminiService creates a new Gemini text generation service
func NewGeminiService(ctx context.Context, geminiConfig *common.GeminiConfig, logger arbor.ILogger) (*GeminiService, error) {
	if geminiConfig.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required (set GEMINI_API_KEY, CONTEXTQ_GEMINI_API_KEY, or gemini.api_key in config)")
	}

	if geminiConfig.Model == "" {
		geminiConfig.Model = "gemini-2.5-flash"
	}

	timeout, err := time.ParseDuration(geminiConfig.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", geminiConfig.Timeout, err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  geminiConfig.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	service := &GeminiService{
		config:  geminiConfig,
		logger:  logger,
		client:  client,
		timeout: timeout,
		retry:   NewDefaultRetryConfig(),
	}

	logger.Debug().
		Str("model", geminiConfig.Model).
		Dur("timeout", timeout).
		Msg("Gemini LLM service initialized")

	return service, nil
}

// convertMessagesToGemini converts []interfaces.Message to Gemini content
// format, maintaining chronological ordering. Unknown roles default to user.
func convertMessagesToGemini(messages []interfaces.Message) ([]*genai.Content, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("messages cannot be empty")
	}

	hasUserMessage := false
	for _, msg := range messages {
		if msg.Role == "user" {
			hasUserMessage = true
			break
		}
	}
	if !hasUserMessage {
		return nil, fmt.Errorf("at least one message must have role 'user'")
	}

	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		var geminiRole genai.Role
		switch msg.Role {
		case "assistant":
			geminiRole = genai.RoleModel
		default:
			geminiRole = genai.RoleUser
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, geminiRole))
	}

	return contents, nil
}

// buildConfig assembles the generation config shared by all modes
func (s *GeminiService) buildConfig(system string, opts interfaces.GenerateOptions) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if opts.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		config.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	return config
}

func (s *GeminiService) model(opts interfaces.GenerateOptions) string {
	if opts.Model != "" {
		return opts.Model
	}
	return s.config.Model
}

// Generate produces a complete response for the given conversation
func (s *GeminiService) Generate(ctx context.Context, system string, messages []interfaces.Message, opts interfaces.GenerateOptions) (string, error) {
	contents, err := convertMessagesToGemini(messages)
	if err != nil {
		return "", fmt.Errorf("failed to convert messages: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.callWithRetry(timeoutCtx, s.model(opts), contents, s.buildConfig(system, opts))
	if err != nil {
		return "", err
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("empty response from Gemini API")
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty text in Gemini response")
	}

	return text, nil
}

// GenerateStream produces a response incrementally, invoking onDelta for each
// text fragment. Returns the full accumulated text.
func (s *GeminiService) GenerateStream(ctx context.Context, system string, messages []interfaces.Message, opts interfaces.GenerateOptions, onDelta func(text string)) (string, error) {
	contents, err := convertMessagesToGemini(messages)
	if err != nil {
		return "", fmt.Errorf("failed to convert messages: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var full strings.Builder
	for resp, err := range s.client.Models.GenerateContentStream(timeoutCtx, s.model(opts), contents, s.buildConfig(system, opts)) {
		if err != nil {
			return full.String(), fmt.Errorf("Gemini stream failed: %w", err)
		}
		text := resp.Text()
		if text != "" {
			full.WriteString(text)
			if onDelta != nil {
				onDelta(text)
			}
		}
	}

	if full.Len() == 0 {
		return "", fmt.Errorf("empty response from Gemini API")
	}

	return full.String(), nil
}

// GenerateStructured produces a JSON object conforming to the given schema.
// Gemini enforces the shape through a response schema with JSON output.
func (s *GeminiService) GenerateStructured(ctx context.Context, system string, messages []interfaces.Message, schema interfaces.ToolSchema, opts interfaces.GenerateOptions) ([]byte, error) {
	contents, err := convertMessagesToGemini(messages)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages: %w", err)
	}

	genaiSchema, err := convertToGenaiSchema(map[string]any{
		"type":       "object",
		"properties": schema.Properties,
		"required":   schema.Required,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to convert output schema: %w", err)
	}

	config := s.buildConfig(system, opts)
	config.ResponseMIMEType = "application/json"
	config.ResponseSchema = genaiSchema

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.callWithRetry(timeoutCtx, s.model(opts), contents, config)
	if err != nil {
		return nil, err
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from Gemini API")
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("empty structured response from Gemini API")
	}

	return []byte(text), nil
}

// callWithRetry makes the API call with rate-limit aware retry
func (s *GeminiService) callWithRetry(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var resp *genai.GenerateContentResponse
	var apiErr error

	for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
		resp, apiErr = s.client.Models.GenerateContent(ctx, model, contents, config)
		if apiErr == nil {
			return resp, nil
		}

		if attempt == s.retry.MaxRetries {
			break
		}

		var backoff time.Duration
		if IsRateLimitError(apiErr) {
			backoff = s.retry.CalculateBackoff(attempt, ExtractRetryDelay(apiErr))
		} else {
			backoff = time.Duration(attempt+1) * 2 * time.Second
		}

		s.logger.Warn().
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(apiErr).
			Msg("Retrying Gemini API call")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("Gemini API call failed after %d retries: %w", s.retry.MaxRetries, apiErr)
}

// Client exposes the underlying genai client for services that share it
func (s *GeminiService) Client() *genai.Client {
	return s.client
}

// ModelName returns the configured generation model identifier
func (s *GeminiService) ModelName() string {
	return s.config.Model
}

// Close releases provider resources
func (s *GeminiService) Close() error {
	s.client = nil
	return nil
}
