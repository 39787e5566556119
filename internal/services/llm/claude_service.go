package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/contextq/contextq/internal/common"
	"github.com/contextq/contextq/internal/interfaces"
)

// ClaudeService implements the TextGenerator interface using the
// Anthropic Claude API.
type ClaudeService struct {
	config  *common.ClaudeConfig
	logger  arbor.ILogger
	client  anthropic.Client
	timeout time.Duration
	retry   *RetryConfig
}

// NewClaudeService creates a new Claude text generation service
func NewClaudeService(claudeConfig *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeService, error) {
	if claudeConfig.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required (set ANTHROPIC_API_KEY, CONTEXTQ_ANTHROPIC_API_KEY, or claude.api_key in config)")
	}

	if claudeConfig.Model == "" {
		claudeConfig.Model = "claude-sonnet-4-20250514"
	}

	timeout, err := time.ParseDuration(claudeConfig.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", claudeConfig.Timeout, err)
	}

	client := anthropic.NewClient(
		option.WithAPIKey(claudeConfig.APIKey),
	)

	service := &ClaudeService{
		config:  claudeConfig,
		logger:  logger,
		client:  client,
		timeout: timeout,
		retry:   NewDefaultRetryConfig(),
	}

	logger.Debug().
		Str("model", claudeConfig.Model).
		Dur("timeout", timeout).
		Msg("Claude LLM service initialized")

	return service, nil
}

// convertMessagesToClaude converts []interfaces.Message to Claude MessageParam
// format, maintaining chronological ordering. Unknown roles default to user.
func convertMessagesToClaude(messages []interfaces.Message) ([]anthropic.MessageParam, error) {
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

	claudeMessages := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "assistant":
			claudeMessages = append(claudeMessages, anthropic.NewAssistantMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		default:
			claudeMessages = append(claudeMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		}
	}

	return claudeMessages, nil
}

// buildParams assembles request parameters shared by all generation modes
func (s *ClaudeService) buildParams(system string, messages []interfaces.Message, opts interfaces.GenerateOptions) (anthropic.MessageNewParams, error) {
	claudeMessages, err := convertMessagesToClaude(messages)
	if err != nil {
		return anthropic.MessageNewParams{}, fmt.Errorf("failed to convert messages: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = s.config.Model
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  claudeMessages,
	}

	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}

	if system != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: system},
		}
	}

	return params, nil
}

// Generate produces a complete response for the given conversation
func (s *ClaudeService) Generate(ctx context.Context, system string, messages []interfaces.Message, opts interfaces.GenerateOptions) (string, error) {
	params, err := s.buildParams(system, messages, opts)
	if err != nil {
		return "", err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.callWithRetry(timeoutCtx, params)
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	if text.Len() == 0 {
		return "", fmt.Errorf("empty response from Claude API")
	}

	return text.String(), nil
}

// GenerateStream produces a response incrementally, invoking onDelta for each
// text fragment. Returns the full accumulated text.
func (s *ClaudeService) GenerateStream(ctx context.Context, system string, messages []interfaces.Message, opts interfaces.GenerateOptions, onDelta func(text string)) (string, error) {
	params, err := s.buildParams(system, messages, opts)
	if err != nil {
		return "", err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	stream := s.client.Messages.NewStreaming(timeoutCtx, params)

	var full strings.Builder
	for stream.Next() {
		event := stream.Current()
		switch eventVariant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch delta := eventVariant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if delta.Text != "" {
					full.WriteString(delta.Text)
					if onDelta != nil {
						onDelta(delta.Text)
					}
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		return full.String(), fmt.Errorf("Claude stream failed: %w", err)
	}

	if full.Len() == 0 {
		return "", fmt.Errorf("empty response from Claude API")
	}

	return full.String(), nil
}

// GenerateStructured produces a JSON object conforming to the given schema.
// The schema is bound as a forced tool so the model must answer through it.
func (s *ClaudeService) GenerateStructured(ctx context.Context, system string, messages []interfaces.Message, schema interfaces.ToolSchema, opts interfaces.GenerateOptions) ([]byte, error) {
	params, err := s.buildParams(system, messages, opts)
	if err != nil {
		return nil, err
	}

	tool := anthropic.ToolParam{
		Name:        schema.Name,
		Description: anthropic.String(schema.Description),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: schema.Properties,
			Required:   schema.Required,
		},
	}
	params.Tools = []anthropic.ToolUnionParam{
		{OfTool: &tool},
	}
	params.ToolChoice = anthropic.ToolChoiceUnionParam{
		OfTool: &anthropic.ToolChoiceToolParam{Name: schema.Name},
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.callWithRetry(timeoutCtx, params)
	if err != nil {
		return nil, err
	}

	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.ToolUseBlock); ok {
			raw := json.RawMessage(variant.JSON.Input.Raw())
			if len(raw) == 0 {
				continue
			}
			return raw, nil
		}
	}

	return nil, fmt.Errorf("no tool_use block in Claude response")
}

// callWithRetry makes the API call with rate-limit aware retry
func (s *ClaudeService) callWithRetry(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	var resp *anthropic.Message
	var apiErr error

	for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
		resp, apiErr = s.client.Messages.New(ctx, params)
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
			Msg("Retrying Claude API call")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("Claude API call failed after %d retries: %w", s.retry.MaxRetries, apiErr)
}

// ModelName returns the configured generation model identifier
func (s *ClaudeService) ModelName() string {
	return s.config.Model
}

// Close releases provider resources
func (s *ClaudeService) Close() error {
	return nil
}
