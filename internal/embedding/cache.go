package embedding

import (
	"crypto/sha256"
	"fmt"

	"github.com/quantdesk/recall/internal/models"
	"github.com/quantdesk/recall/internal/store"
)

// CachedEmbedder wraps a provider with content-hash caching via SQLite, so
// identical text never re-embeds.
type CachedEmbedder struct {
	provider Embedder
	cache    *store.EmbeddingCacheStore
	model    string
}

func NewCachedEmbedder(provider Embedder, cache *store.EmbeddingCacheStore, model string) *CachedEmbedder {
	return &CachedEmbedder{
		provider: provider,
		cache:    cache,
		model:    model,
	}
}

// Embed returns the embedding for text, using the cache when available.
func (e *CachedEmbedder) Embed(text string) ([]float32, error) {
	hash := ContentHash(text)

	entry, err := e.cache.Get(hash)
	if err == nil && entry != nil && entry.Model == e.model {
		if vec := store.BytesToFloat32(entry.Embedding); len(vec) > 0 {
			return vec, nil
		}
	}

	vec, err := e.provider.Embed(text)
	if err != nil {
		return nil, err
	}

	// Cache writes are best-effort.
	_ = e.cache.Put(&models.EmbeddingCacheEntry{
		ContentHash: hash,
		Embedding:   store.Float32ToBytes(vec),
		Dimension:   e.provider.Dimensions(),
		Model:       e.model,
	})

	return vec, nil
}

func (e *CachedEmbedder) Dimensions() int {
	return e.provider.Dimensions()
}

// ContentHash computes a SHA-256 hash of text content.
func ContentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", h)
}
