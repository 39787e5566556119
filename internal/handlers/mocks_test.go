package handlers

import (
	"context"
	"errors"
	"sync"

	"github.com/contextq/contextq/internal/interfaces"
	"github.com/contextq/contextq/internal/models"
)

// stubGenerator implements interfaces.TextGenerator for handler tests
type stubGenerator struct {
	streamFn func(ctx context.Context, system string, messages []interfaces.Message, opts interfaces.GenerateOptions, onDelta func(string)) (string, error)
}

func (s *stubGenerator) Generate(ctx context.Context, system string, messages []interfaces.Message, opts interfaces.GenerateOptions) (string, error) {
	return "", errors.New("not configured")
}

func (s *stubGenerator) GenerateStream(ctx context.Context, system string, messages []interfaces.Message, opts interfaces.GenerateOptions, onDelta func(string)) (string, error) {
	if s.streamFn == nil {
		return "", errors.New("not configured")
	}
	return s.streamFn(ctx, system, messages, opts, onDelta)
}

func (s *stubGenerator) GenerateStructured(ctx context.Context, system string, messages []interfaces.Message, schema interfaces.ToolSchema, opts interfaces.GenerateOptions) ([]byte, error) {
	return nil, errors.New("not configured")
}

func (s *stubGenerator) ModelName() string { return "stub-model" }
func (s *stubGenerator) Close() error      { return nil }

// stubEmbedder implements interfaces.EmbeddingService
type stubEmbedder struct{}

func (s *stubEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("not configured")
}

func (s *stubEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("not configured")
}

func (s *stubEmbedder) ModelName() string { return "stub-embedder" }
func (s *stubEmbedder) Dimension() int    { return 3 }

// stubVectorStore implements interfaces.VectorStorage
type stubVectorStore struct {
	chunkCount int
}

func (s *stubVectorStore) UpsertChunks(ctx context.Context, chunks []*models.Chunk) error {
	return nil
}

func (s *stubVectorStore) Search(ctx context.Context, sessionID string, docIDs []string, queryVector []float32, topK int) ([]models.RetrievedChunk, error) {
	return nil, nil
}

func (s *stubVectorStore) DeleteDocument(ctx context.Context, documentID string) error { return nil }
func (s *stubVectorStore) DeleteSession(ctx context.Context, sessionID string) error   { return nil }
func (s *stubVectorStore) CountChunks(ctx context.Context, sessionID string) (int, error) {
	return s.chunkCount, nil
}

// stubDocumentStorage implements interfaces.DocumentStorage with a fixed count
type stubDocumentStorage struct {
	docCount int
}

func (s *stubDocumentStorage) StoreDocument(ctx context.Context, doc *models.Document) error {
	return nil
}

func (s *stubDocumentStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	return nil, interfaces.ErrNotFound
}

func (s *stubDocumentStorage) GetSessionDocuments(ctx context.Context, sessionID string) ([]*models.Document, error) {
	return nil, nil
}

func (s *stubDocumentStorage) FindByContentHash(ctx context.Context, sessionID, contentHash string) (*models.Document, error) {
	return nil, interfaces.ErrNotFound
}

func (s *stubDocumentStorage) DeleteDocument(ctx context.Context, id string) error { return nil }

func (s *stubDocumentStorage) CountDocuments(ctx context.Context, sessionID string) (int, error) {
	return s.docCount, nil
}

// stubHistory implements interfaces.HistoryService
type stubHistory struct {
	mu       sync.Mutex
	cleared  []string
	clearErr error
}

func (s *stubHistory) GetContext(ctx context.Context, sessionID string) ([]interfaces.Message, error) {
	return nil, nil
}

func (s *stubHistory) AppendExchange(ctx context.Context, sessionID, question, answer string, sources []models.Source) {
}

func (s *stubHistory) MaybeSummarize(ctx context.Context, sessionID string) {}

func (s *stubHistory) ClearSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clearErr != nil {
		return s.clearErr
	}
	s.cleared = append(s.cleared, sessionID)
	return nil
}
