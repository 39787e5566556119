package rag

import (
	"context"
	"errors"
	"sync"

	"github.com/contextq/contextq/internal/interfaces"
	"github.com/contextq/contextq/internal/models"
)

// mockGenerator implements interfaces.TextGenerator with overridable behavior
type mockGenerator struct {
	mu sync.Mutex

	generateFn           func(ctx context.Context, system string, messages []interfaces.Message, opts interfaces.GenerateOptions) (string, error)
	generateStreamFn     func(ctx context.Context, system string, messages []interfaces.Message, opts interfaces.GenerateOptions, onDelta func(string)) (string, error)
	generateStructuredFn func(ctx context.Context, system string, messages []interfaces.Message, schema interfaces.ToolSchema, opts interfaces.GenerateOptions) ([]byte, error)

	generateCalls   int
	streamCalls     int
	structuredCalls int
}

func (m *mockGenerator) Generate(ctx context.Context, system string, messages []interfaces.Message, opts interfaces.GenerateOptions) (string, error) {
	m.mu.Lock()
	m.generateCalls++
	fn := m.generateFn
	m.mu.Unlock()

	if fn == nil {
		return "", errors.New("generate not configured")
	}
	return fn(ctx, system, messages, opts)
}

func (m *mockGenerator) GenerateStream(ctx context.Context, system string, messages []interfaces.Message, opts interfaces.GenerateOptions, onDelta func(string)) (string, error) {
	m.mu.Lock()
	m.streamCalls++
	fn := m.generateStreamFn
	m.mu.Unlock()

	if fn == nil {
		return "", errors.New("stream not configured")
	}
	return fn(ctx, system, messages, opts, onDelta)
}

func (m *mockGenerator) GenerateStructured(ctx context.Context, system string, messages []interfaces.Message, schema interfaces.ToolSchema, opts interfaces.GenerateOptions) ([]byte, error) {
	m.mu.Lock()
	m.structuredCalls++
	fn := m.generateStructuredFn
	m.mu.Unlock()

	if fn == nil {
		return nil, errors.New("structured generation not configured")
	}
	return fn(ctx, system, messages, schema, opts)
}

func (m *mockGenerator) ModelName() string { return "mock-model" }
func (m *mockGenerator) Close() error      { return nil }

func (m *mockGenerator) streamCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streamCalls
}

// mockEmbedder implements interfaces.EmbeddingService
type mockEmbedder struct {
	embedTextsFn func(ctx context.Context, texts []string) ([][]float32, error)
	embedQueryFn func(ctx context.Context, text string) ([]float32, error)
}

func (m *mockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if m.embedTextsFn == nil {
		return nil, errors.New("embed texts not configured")
	}
	return m.embedTextsFn(ctx, texts)
}

func (m *mockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if m.embedQueryFn == nil {
		return nil, errors.New("embed query not configured")
	}
	return m.embedQueryFn(ctx, text)
}

func (m *mockEmbedder) ModelName() string { return "mock-embedder" }
func (m *mockEmbedder) Dimension() int    { return 3 }

// mockVectorStore implements interfaces.VectorStorage
type mockVectorStore struct {
	searchFn     func(ctx context.Context, sessionID string, docIDs []string, queryVector []float32, topK int) ([]models.RetrievedChunk, error)
	searchCalls  int
	searchDocIDs [][]string
}

func (m *mockVectorStore) UpsertChunks(ctx context.Context, chunks []*models.Chunk) error { return nil }

func (m *mockVectorStore) Search(ctx context.Context, sessionID string, docIDs []string, queryVector []float32, topK int) ([]models.RetrievedChunk, error) {
	m.searchCalls++
	m.searchDocIDs = append(m.searchDocIDs, docIDs)
	if m.searchFn == nil {
		return nil, nil
	}
	return m.searchFn(ctx, sessionID, docIDs, queryVector, topK)
}

func (m *mockVectorStore) DeleteDocument(ctx context.Context, documentID string) error { return nil }
func (m *mockVectorStore) DeleteSession(ctx context.Context, sessionID string) error   { return nil }
func (m *mockVectorStore) CountChunks(ctx context.Context, sessionID string) (int, error) {
	return 0, nil
}

// mockDocumentStorage implements interfaces.DocumentStorage
type mockDocumentStorage struct {
	countFn func(ctx context.Context, sessionID string) (int, error)
	listFn  func(ctx context.Context, sessionID string) ([]*models.Document, error)
}

func (m *mockDocumentStorage) StoreDocument(ctx context.Context, doc *models.Document) error {
	return nil
}

func (m *mockDocumentStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	return nil, interfaces.ErrNotFound
}

func (m *mockDocumentStorage) GetSessionDocuments(ctx context.Context, sessionID string) ([]*models.Document, error) {
	if m.listFn == nil {
		return nil, nil
	}
	return m.listFn(ctx, sessionID)
}

func (m *mockDocumentStorage) FindByContentHash(ctx context.Context, sessionID, contentHash string) (*models.Document, error) {
	return nil, interfaces.ErrNotFound
}

func (m *mockDocumentStorage) DeleteDocument(ctx context.Context, id string) error { return nil }

func (m *mockDocumentStorage) CountDocuments(ctx context.Context, sessionID string) (int, error) {
	if m.countFn == nil {
		return 0, nil
	}
	return m.countFn(ctx, sessionID)
}

// mockHistory implements interfaces.HistoryService
type mockHistory struct {
	mu sync.Mutex

	getContextFn    func(ctx context.Context, sessionID string) ([]interfaces.Message, error)
	appended        []string
	summarizeCalled bool
}

func (m *mockHistory) GetContext(ctx context.Context, sessionID string) ([]interfaces.Message, error) {
	if m.getContextFn == nil {
		return nil, nil
	}
	return m.getContextFn(ctx, sessionID)
}

func (m *mockHistory) AppendExchange(ctx context.Context, sessionID, question, answer string, sources []models.Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appended = append(m.appended, question, answer)
}

func (m *mockHistory) MaybeSummarize(ctx context.Context, sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summarizeCalled = true
}

func (m *mockHistory) ClearSession(ctx context.Context, sessionID string) error { return nil }

func (m *mockHistory) appendedTurns() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.appended...)
}
