package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ternarybob/arbor"

	"github.com/contextq/contextq/internal/interfaces"
)

// EmbeddingCache is a bounded LRU cache of embeddings keyed by content hash
type EmbeddingCache struct {
	entries *lru.Cache[string, []float32]
	logger  arbor.ILogger
}

var _ interfaces.EmbeddingCache = (*EmbeddingCache)(nil)

// NewEmbeddingCache creates an embedding cache holding at most maxEntries
func NewEmbeddingCache(maxEntries int, logger arbor.ILogger) (*EmbeddingCache, error) {
	if maxEntries <= 0 {
		maxEntries = 4096
	}

	entries, err := lru.New[string, []float32](maxEntries)
	if err != nil {
		return nil, err
	}

	return &EmbeddingCache{
		entries: entries,
		logger:  logger,
	}, nil
}

func (c *EmbeddingCache) Get(key string) ([]float32, bool) {
	return c.entries.Get(key)
}

func (c *EmbeddingCache) Set(key string, embedding []float32) {
	c.entries.Add(key, embedding)
}

func (c *EmbeddingCache) Len() int {
	return c.entries.Len()
}

// responseEntry pairs a cached response with its expiry for TTL checks on read
type responseEntry struct {
	response *interfaces.CachedResponse
	expires  time.Time
}

// ResponseCache is a bounded LRU cache of completed answers with TTL.
// Expired entries are dropped lazily on read.
type ResponseCache struct {
	entries *lru.Cache[string, responseEntry]
	ttl     time.Duration
	logger  arbor.ILogger
}

var _ interfaces.ResponseCache = (*ResponseCache)(nil)

// NewResponseCache creates a response cache holding at most maxEntries,
// each valid for ttl after insertion
func NewResponseCache(maxEntries int, ttl time.Duration, logger arbor.ILogger) (*ResponseCache, error) {
	if maxEntries <= 0 {
		maxEntries = 512
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	entries, err := lru.New[string, responseEntry](maxEntries)
	if err != nil {
		return nil, err
	}

	return &ResponseCache{
		entries: entries,
		ttl:     ttl,
		logger:  logger,
	}, nil
}

func (c *ResponseCache) Get(key string) (*interfaces.CachedResponse, bool) {
	entry, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}

	if time.Now().After(entry.expires) {
		c.entries.Remove(key)
		return nil, false
	}

	return entry.response, true
}

func (c *ResponseCache) Set(key string, response *interfaces.CachedResponse) {
	c.entries.Add(key, responseEntry{
		response: response,
		expires:  time.Now().Add(c.ttl),
	})
}

func (c *ResponseCache) Purge() {
	c.entries.Purge()
}
