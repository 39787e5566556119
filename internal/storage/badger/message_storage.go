package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/contextq/contextq/internal/interfaces"
	"github.com/contextq/contextq/internal/models"
)

// MessageStorage implements the MessageStorage interface for Badger
type MessageStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewMessageStorage creates a new MessageStorage instance
func NewMessageStorage(db *BadgerDB, logger arbor.ILogger) interfaces.MessageStorage {
	return &MessageStorage{
		db:     db,
		logger: logger,
	}
}

// StoreMessage appends a chat message
func (s *MessageStorage) StoreMessage(ctx context.Context, msg *models.ChatMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	if err := s.db.Store().Upsert(msg.ID, msg); err != nil {
		return fmt.Errorf("failed to store message: %w", err)
	}

	return nil
}

// GetRecentMessages returns the most recent messages in chronological order
func (s *MessageStorage) GetRecentMessages(ctx context.Context, sessionID string, limit int) ([]*models.ChatMessage, error) {
	var messages []models.ChatMessage
	if err := s.db.Store().Find(&messages, badgerhold.Where("SessionID").Eq(sessionID).Index("SessionID")); err != nil {
		return nil, fmt.Errorf("failed to list session messages: %w", err)
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})

	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	result := make([]*models.ChatMessage, len(messages))
	for i := range messages {
		result[i] = &messages[i]
	}
	return result, nil
}

// CountMessages returns the total message count for a session
func (s *MessageStorage) CountMessages(ctx context.Context, sessionID string) (int, error) {
	count, err := s.db.Store().Count(&models.ChatMessage{}, badgerhold.Where("SessionID").Eq(sessionID).Index("SessionID"))
	if err != nil {
		return 0, fmt.Errorf("failed to count session messages: %w", err)
	}
	return int(count), nil
}

// GetSummary retrieves the session's conversation summary
func (s *MessageStorage) GetSummary(ctx context.Context, sessionID string) (*models.ConversationSummary, error) {
	var summary models.ConversationSummary
	err := s.db.Store().Get(sessionID, &summary)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}

	return &summary, nil
}

// StoreSummary inserts or replaces the session's conversation summary
func (s *MessageStorage) StoreSummary(ctx context.Context, summary *models.ConversationSummary) error {
	summary.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert(summary.SessionID, summary); err != nil {
		return fmt.Errorf("failed to store summary: %w", err)
	}

	return nil
}

// DeleteSession removes all messages and the summary for a session
func (s *MessageStorage) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.db.Store().DeleteMatching(&models.ChatMessage{}, badgerhold.Where("SessionID").Eq(sessionID).Index("SessionID")); err != nil {
		return fmt.Errorf("failed to delete session messages: %w", err)
	}

	err := s.db.Store().Delete(sessionID, &models.ConversationSummary{})
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete session summary: %w", err)
	}

	return nil
}
