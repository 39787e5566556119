package history

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/contextq/contextq/internal/common"
	"github.com/contextq/contextq/internal/interfaces"
	"github.com/contextq/contextq/internal/models"
)

// summaryClipLength bounds each message fed to the summarizer
const summaryClipLength = 300

const summarySystemPrompt = "You summarize conversations. Produce a concise summary of the key topics, questions, and answers so far. Write in third person, no preamble."

// Service manages conversation context. Writes are best-effort: a failed
// persistence never fails the response that triggered it.
type Service struct {
	config    *common.HistoryConfig
	llmConfig *common.LLMConfig
	storage   interfaces.MessageStorage
	generator interfaces.TextGenerator
	logger    arbor.ILogger
}

var _ interfaces.HistoryService = (*Service)(nil)

// NewService creates a history service
func NewService(config *common.HistoryConfig, llmConfig *common.LLMConfig, storage interfaces.MessageStorage, generator interfaces.TextGenerator, logger arbor.ILogger) *Service {
	return &Service{
		config:    config,
		llmConfig: llmConfig,
		storage:   storage,
		generator: generator,
		logger:    logger,
	}
}

// GetContext returns the recent conversation as prompt-ready messages,
// prefixed by a summary turn when one exists
func (s *Service) GetContext(ctx context.Context, sessionID string) ([]interfaces.Message, error) {
	recent, err := s.storage.GetRecentMessages(ctx, sessionID, s.config.MaxContextMessages)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent messages: %w", err)
	}

	var result []interfaces.Message

	summary, err := s.storage.GetSummary(ctx, sessionID)
	if err == nil && summary.Summary != "" {
		result = append(result, interfaces.Message{
			Role:    "summary",
			Content: summary.Summary,
		})
	} else if err != nil && err != interfaces.ErrNotFound {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to load conversation summary")
	}

	for _, msg := range recent {
		result = append(result, interfaces.Message{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	return result, nil
}

// AppendExchange persists one user turn and one assistant turn.
// Failures are logged and swallowed.
func (s *Service) AppendExchange(ctx context.Context, sessionID, question, answer string, sources []models.Source) {
	userMsg := &models.ChatMessage{
		ID:        common.NewMessageID(),
		SessionID: sessionID,
		Role:      models.RoleUser,
		Content:   question,
	}
	if err := s.storage.StoreMessage(ctx, userMsg); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to persist user message")
		return
	}

	assistantMsg := &models.ChatMessage{
		ID:        common.NewMessageID(),
		SessionID: sessionID,
		Role:      models.RoleAssistant,
		Content:   answer,
		Sources:   sources,
	}
	if err := s.storage.StoreMessage(ctx, assistantMsg); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to persist assistant message")
	}
}

// MaybeSummarize regenerates the rolling summary when the message count
// crosses the threshold, then every interval messages thereafter.
// Failures are logged and swallowed.
func (s *Service) MaybeSummarize(ctx context.Context, sessionID string) {
	count, err := s.storage.CountMessages(ctx, sessionID)
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to count messages for summarization")
		return
	}

	if !s.shouldSummarize(count) {
		return
	}

	window, err := s.storage.GetRecentMessages(ctx, sessionID, s.config.SummaryWindow)
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to load messages for summarization")
		return
	}
	if len(window) == 0 {
		return
	}

	var transcript strings.Builder
	for _, msg := range window {
		content := clipMessage(msg.Content, summaryClipLength)
		transcript.WriteString(msg.Role)
		transcript.WriteString(": ")
		transcript.WriteString(content)
		transcript.WriteString("\n")
	}

	summaryText, err := s.generator.Generate(ctx, summarySystemPrompt,
		[]interfaces.Message{{Role: "user", Content: transcript.String()}},
		interfaces.GenerateOptions{
			MaxTokens:   s.llmConfig.SummaryMaxTokens,
			Temperature: s.llmConfig.SummaryTemp,
		})
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Conversation summarization failed")
		return
	}

	summary := &models.ConversationSummary{
		SessionID:    sessionID,
		Summary:      strings.TrimSpace(summaryText),
		MessageCount: count,
	}
	if err := s.storage.StoreSummary(ctx, summary); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to persist conversation summary")
		return
	}

	s.logger.Debug().
		Str("session_id", sessionID).
		Int("message_count", count).
		Msg("Conversation summary updated")
}

// clipMessage bounds a message to limit characters on a rune boundary so
// multi-byte text stays valid after clipping
func clipMessage(content string, limit int) string {
	if len(content) <= limit {
		return content
	}
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit])
}

// shouldSummarize reports whether the message count triggers a summary
// refresh: once the count passes the threshold, refresh every interval
// messages so the summary tracks the conversation without an LLM call on
// every turn.
func (s *Service) shouldSummarize(count int) bool {
	threshold := s.config.SummaryThreshold
	interval := s.config.SummaryInterval
	if threshold <= 0 || interval <= 0 {
		return false
	}
	if count <= threshold {
		return false
	}
	return (count-threshold)%interval == 0
}

// ClearSession removes a session's conversation state
func (s *Service) ClearSession(ctx context.Context, sessionID string) error {
	if err := s.storage.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to clear session history: %w", err)
	}
	return nil
}
