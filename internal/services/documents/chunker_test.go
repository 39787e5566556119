package documents

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contextq/contextq/internal/common"
)

func newTestChunker(size, overlap int) *Chunker {
	return NewChunker(&common.ChunkingConfig{ChunkSize: size, ChunkOverlap: overlap})
}

func TestChunkTextEmpty(t *testing.T) {
	chunker := newTestChunker(100, 20)

	assert.Nil(t, chunker.ChunkText("", 0))
	assert.Nil(t, chunker.ChunkText("   \n\t  ", 0))
}

func TestChunkTextSingleChunk(t *testing.T) {
	chunker := newTestChunker(100, 20)

	chunks := chunker.ChunkText("a short document", 0)
	require.Len(t, chunks, 1)
	assert.Equal(t, "a short document", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, 0, chunks[0].StartChar)
	assert.Equal(t, 16, chunks[0].EndChar)
	assert.Equal(t, 0, chunks[0].PageNumber, "no page estimate without a page count")
}

func TestChunkTextCoversWholeText(t *testing.T) {
	chunker := newTestChunker(100, 20)
	text := strings.Repeat("lorem ipsum dolor sit amet ", 40)

	chunks := chunker.ChunkText(text, 0)
	require.Greater(t, len(chunks), 1)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.ChunkIndex)
		assert.NotEmpty(t, chunk.Text)
		assert.LessOrEqual(t, chunk.EndChar-chunk.StartChar, 100)
		if i > 0 {
			assert.Greater(t, chunk.StartChar, chunks[i-1].StartChar, "scan always advances")
		}
	}
	assert.Equal(t, len(text), chunks[len(chunks)-1].EndChar, "last chunk reaches the end of the text")
}

func TestChunkTextOverlap(t *testing.T) {
	chunker := newTestChunker(100, 20)
	// No break characters at all forces raw window cuts with full overlap
	text := strings.Repeat("a", 250)

	chunks := chunker.ChunkText(text, 0)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].EndChar-20, chunks[i].StartChar, "consecutive windows overlap by the configured amount")
	}
}

func TestChunkTextBreaksAtParagraph(t *testing.T) {
	chunker := newTestChunker(50, 10)
	text := strings.Repeat("a", 40) + "\n\n" + strings.Repeat("b", 100)

	chunks := chunker.ChunkText(text, 0)
	require.NotEmpty(t, chunks)

	// The first window ends just after the paragraph break, not mid-word
	assert.Equal(t, 42, chunks[0].EndChar)
	assert.Equal(t, strings.Repeat("a", 40), chunks[0].Text)
}

func TestChunkTextPageEstimation(t *testing.T) {
	chunker := newTestChunker(100, 20)

	// A single mid-text chunk of a 5 page document lands on the middle page
	chunks := chunker.ChunkText(strings.Repeat("x", 10), 5)
	require.Len(t, chunks, 1)
	assert.Equal(t, 3, chunks[0].PageNumber)

	// Page numbers stay within [1, pageCount]
	long := strings.Repeat("word salad filler text ", 50)
	chunks = chunker.ChunkText(long, 2)
	for _, chunk := range chunks {
		assert.GreaterOrEqual(t, chunk.PageNumber, 1)
		assert.LessOrEqual(t, chunk.PageNumber, 2)
	}
}

func TestNewChunkerDefaults(t *testing.T) {
	// Invalid overlap falls back to a fraction of the chunk size
	chunker := NewChunker(&common.ChunkingConfig{ChunkSize: 800, ChunkOverlap: 900})
	assert.Equal(t, 800, chunker.chunkSize)
	assert.Equal(t, 100, chunker.chunkOverlap)

	chunker = NewChunker(&common.ChunkingConfig{})
	assert.Equal(t, 1500, chunker.chunkSize)
	assert.Equal(t, 0, chunker.chunkOverlap)

	chunker = NewChunker(&common.ChunkingConfig{ChunkSize: 800, ChunkOverlap: -1})
	assert.Equal(t, 100, chunker.chunkOverlap)
}

func TestEstimateChunkCount(t *testing.T) {
	chunker := newTestChunker(100, 20)

	tests := []struct {
		name       string
		textLength int
		want       int
	}{
		{"empty", 0, 0},
		{"negative", -5, 0},
		{"fits one chunk", 100, 1},
		{"just over one chunk", 101, 2},
		{"several chunks", 250, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, chunker.EstimateChunkCount(tt.textLength))
		})
	}
}
