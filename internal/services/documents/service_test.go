package documents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/contextq/contextq/internal/common"
	"github.com/contextq/contextq/internal/interfaces"
	"github.com/contextq/contextq/internal/models"
)

type mockEmbedder struct {
	embedTextsFn func(ctx context.Context, texts []string) ([][]float32, error)
}

func (m *mockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if m.embedTextsFn != nil {
		return m.embedTextsFn(ctx, texts)
	}
	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = []float32{1, 0, 0}
	}
	return vectors, nil
}

func (m *mockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (m *mockEmbedder) ModelName() string { return "mock-embedder" }
func (m *mockEmbedder) Dimension() int    { return 3 }

type mockVectorStore struct {
	upserted  []*models.Chunk
	upsertErr error
	deleted   []string
}

func (m *mockVectorStore) UpsertChunks(ctx context.Context, chunks []*models.Chunk) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserted = append(m.upserted, chunks...)
	return nil
}

func (m *mockVectorStore) Search(ctx context.Context, sessionID string, docIDs []string, queryVector []float32, topK int) ([]models.RetrievedChunk, error) {
	return nil, nil
}

func (m *mockVectorStore) DeleteDocument(ctx context.Context, documentID string) error {
	m.deleted = append(m.deleted, documentID)
	return nil
}

func (m *mockVectorStore) DeleteSession(ctx context.Context, sessionID string) error { return nil }
func (m *mockVectorStore) CountChunks(ctx context.Context, sessionID string) (int, error) {
	return len(m.upserted), nil
}

type mockDocumentStorage struct {
	docs map[string]*models.Document
}

func newMockDocumentStorage() *mockDocumentStorage {
	return &mockDocumentStorage{docs: make(map[string]*models.Document)}
}

func (m *mockDocumentStorage) StoreDocument(ctx context.Context, doc *models.Document) error {
	copied := *doc
	m.docs[doc.ID] = &copied
	return nil
}

func (m *mockDocumentStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	doc, ok := m.docs[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return doc, nil
}

func (m *mockDocumentStorage) GetSessionDocuments(ctx context.Context, sessionID string) ([]*models.Document, error) {
	var result []*models.Document
	for _, doc := range m.docs {
		if doc.SessionID == sessionID {
			result = append(result, doc)
		}
	}
	return result, nil
}

func (m *mockDocumentStorage) FindByContentHash(ctx context.Context, sessionID, contentHash string) (*models.Document, error) {
	for _, doc := range m.docs {
		if doc.SessionID == sessionID && doc.ContentHash == contentHash {
			return doc, nil
		}
	}
	return nil, interfaces.ErrNotFound
}

func (m *mockDocumentStorage) DeleteDocument(ctx context.Context, id string) error {
	delete(m.docs, id)
	return nil
}

func (m *mockDocumentStorage) CountDocuments(ctx context.Context, sessionID string) (int, error) {
	count := 0
	for _, doc := range m.docs {
		if doc.SessionID == sessionID {
			count++
		}
	}
	return count, nil
}

func newTestService(embedder *mockEmbedder, vectors *mockVectorStore, docs *mockDocumentStorage) *Service {
	logger := arbor.NewLogger()
	config := &common.ChunkingConfig{
		ChunkSize:    100,
		ChunkOverlap: 20,
		MaxChunks:    50,
		MaxFileSize:  1024,
	}
	return NewService(config, NewExtractor(logger), NewChunker(config), embedder, vectors, docs, logger)
}

func TestUploadTextDocument(t *testing.T) {
	embedder := &mockEmbedder{}
	vectors := &mockVectorStore{}
	docs := newMockDocumentStorage()
	service := newTestService(embedder, vectors, docs)

	content := []byte("The quick brown fox jumps over the lazy dog.")
	doc, err := service.Upload(context.Background(), "s1", "notes.txt", "text/plain", content)
	require.NoError(t, err)

	assert.Equal(t, models.DocumentStatusReady, doc.Status)
	assert.Equal(t, "notes.txt", doc.Filename)
	assert.Equal(t, int64(len(content)), doc.SizeBytes)
	assert.Equal(t, 1, doc.ChunkCount)
	assert.NotEmpty(t, doc.ContentHash)

	require.Len(t, vectors.upserted, 1)
	chunk := vectors.upserted[0]
	assert.Equal(t, doc.ID+":0", chunk.ID)
	assert.Equal(t, "s1", chunk.SessionID)
	assert.Equal(t, []float32{1, 0, 0}, chunk.Embedding)
}

func TestUploadDuplicateReturnsExisting(t *testing.T) {
	embedder := &mockEmbedder{}
	vectors := &mockVectorStore{}
	docs := newMockDocumentStorage()
	service := newTestService(embedder, vectors, docs)

	content := []byte("same content both times")
	first, err := service.Upload(context.Background(), "s1", "a.txt", "text/plain", content)
	require.NoError(t, err)

	second, err := service.Upload(context.Background(), "s1", "b.txt", "text/plain", content)
	assert.ErrorIs(t, err, ErrDuplicate)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID, "duplicate upload returns the existing record")

	// A different session can upload the same content
	_, err = service.Upload(context.Background(), "s2", "a.txt", "text/plain", content)
	assert.NoError(t, err)
}

func TestUploadValidation(t *testing.T) {
	embedder := &mockEmbedder{}
	service := newTestService(embedder, &mockVectorStore{}, newMockDocumentStorage())

	tests := []struct {
		name        string
		filename    string
		contentType string
		content     []byte
		wantErr     error
	}{
		{
			name:        "file too large",
			filename:    "big.txt",
			contentType: "text/plain",
			content:     []byte(strings.Repeat("a", 2048)),
			wantErr:     ErrFileTooLarge,
		},
		{
			name:        "unsupported type",
			filename:    "image.png",
			contentType: "image/png",
			content:     []byte("png bytes"),
			wantErr:     ErrUnsupportedType,
		},
		{
			name:        "no extractable text",
			filename:    "blank.txt",
			contentType: "text/plain",
			content:     []byte("   \n  "),
			wantErr:     ErrEmptyDocument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Upload(context.Background(), "s1", tt.filename, tt.contentType, tt.content)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUploadEmbeddingFailureMarksDocumentFailed(t *testing.T) {
	embedder := &mockEmbedder{
		embedTextsFn: func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, errors.New("quota exceeded")
		},
	}
	docs := newMockDocumentStorage()
	service := newTestService(embedder, &mockVectorStore{}, docs)

	_, err := service.Upload(context.Background(), "s1", "a.txt", "text/plain", []byte("some document content"))
	require.Error(t, err)

	stored, err := docs.GetSessionDocuments(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, models.DocumentStatusFailed, stored[0].Status)
	assert.Contains(t, stored[0].Error, "quota exceeded")
}

func TestDeleteDocument(t *testing.T) {
	embedder := &mockEmbedder{}
	vectors := &mockVectorStore{}
	docs := newMockDocumentStorage()
	service := newTestService(embedder, vectors, docs)

	doc, err := service.Upload(context.Background(), "s1", "a.txt", "text/plain", []byte("content to delete"))
	require.NoError(t, err)

	// Another session cannot delete it
	err = service.Delete(context.Background(), "s2", doc.ID)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	require.NoError(t, service.Delete(context.Background(), "s1", doc.ID))
	assert.Equal(t, []string{doc.ID}, vectors.deleted)

	_, err = docs.GetDocument(context.Background(), doc.ID)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestCountChunksTracksIndex(t *testing.T) {
	embedder := &mockEmbedder{}
	vectors := &mockVectorStore{}
	service := newTestService(embedder, vectors, newMockDocumentStorage())

	count, err := service.CountChunks(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, err = service.Upload(context.Background(), "s1", "a.txt", "text/plain", []byte("some indexed content"))
	require.NoError(t, err)

	count, err = service.CountChunks(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDeleteMissingDocument(t *testing.T) {
	service := newTestService(&mockEmbedder{}, &mockVectorStore{}, newMockDocumentStorage())

	err := service.Delete(context.Background(), "s1", "doc_missing")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestExtractPlainTextAndMarkdown(t *testing.T) {
	extractor := NewExtractor(arbor.NewLogger())

	extracted, err := extractor.Extract("text/plain", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", extracted.Text)
	assert.Equal(t, 0, extracted.PageCount)

	extracted, err = extractor.Extract("text/markdown", []byte("# Title"))
	require.NoError(t, err)
	assert.Equal(t, "# Title", extracted.Text)

	_, err = extractor.Extract("application/zip", []byte("zip"))
	assert.Error(t, err)
}
