package interfaces

import (
	"github.com/contextq/contextq/internal/models"
)

// EmbeddingCache is a bounded cache of query embeddings keyed by content hash
type EmbeddingCache interface {
	Get(key string) ([]float32, bool)
	Set(key string, embedding []float32)
	Len() int
}

// CachedResponse is a completed answer stored for replay
type CachedResponse struct {
	Answer  string
	Sources []models.Source
}

// ResponseCache is a bounded TTL cache of completed answers keyed by
// question plus the document set it was answered against
type ResponseCache interface {
	Get(key string) (*CachedResponse, bool)
	Set(key string, response *CachedResponse)
	Purge()
}
