package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/contextq/contextq/internal/common"
	"github.com/contextq/contextq/internal/interfaces"
)

// Manager groups the Badger-backed storage implementations over one connection
type Manager struct {
	db       *BadgerDB
	chunk    interfaces.VectorStorage
	document interfaces.DocumentStorage
	message  interfaces.MessageStorage
	logger   arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:       db,
		chunk:    NewChunkStorage(db, logger),
		document: NewDocumentStorage(db, logger),
		message:  NewMessageStorage(db, logger),
		logger:   logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// VectorStorage returns the chunk vector storage interface
func (m *Manager) VectorStorage() interfaces.VectorStorage {
	return m.chunk
}

// DocumentStorage returns the document storage interface
func (m *Manager) DocumentStorage() interfaces.DocumentStorage {
	return m.document
}

// MessageStorage returns the chat message storage interface
func (m *Manager) MessageStorage() interfaces.MessageStorage {
	return m.message
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
