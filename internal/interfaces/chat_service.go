package interfaces

import (
	"context"

	"github.com/contextq/contextq/internal/models"
)

// MessageStorage persists chat messages and conversation summaries
type MessageStorage interface {
	// StoreMessage appends a chat message
	StoreMessage(ctx context.Context, msg *models.ChatMessage) error

	// GetRecentMessages returns the most recent messages in chronological
	// order, up to limit
	GetRecentMessages(ctx context.Context, sessionID string, limit int) ([]*models.ChatMessage, error)

	// CountMessages returns the total message count for a session
	CountMessages(ctx context.Context, sessionID string) (int, error)

	// GetSummary retrieves the session's conversation summary,
	// returns ErrNotFound when none has been generated
	GetSummary(ctx context.Context, sessionID string) (*models.ConversationSummary, error)

	// StoreSummary inserts or replaces the session's conversation summary
	StoreSummary(ctx context.Context, summary *models.ConversationSummary) error

	// DeleteSession removes all messages and the summary for a session
	DeleteSession(ctx context.Context, sessionID string) error
}

// HistoryService manages conversation context for prompt construction.
// All writes are best-effort: persistence failures are logged and never
// fail the response that triggered them.
type HistoryService interface {
	// GetContext returns the recent conversation as prompt-ready messages,
	// prefixed by a summary turn when one exists
	GetContext(ctx context.Context, sessionID string) ([]Message, error)

	// AppendExchange persists one user turn and one assistant turn
	AppendExchange(ctx context.Context, sessionID, question, answer string, sources []models.Source)

	// MaybeSummarize regenerates the rolling summary when the message count
	// crosses the configured threshold/interval. Runs synchronously; callers
	// fire it after the response is complete.
	MaybeSummarize(ctx context.Context, sessionID string)

	// ClearSession removes a session's conversation state
	ClearSession(ctx context.Context, sessionID string) error
}
