// Package cache provides a content-addressed embedding cache.
//
// CacheBackedEmbedder wraps an embedder with a persistent store.ByteStore.
// Vectors are keyed by (namespace, text), where the namespace is the
// embedding model identifier, so switching models never returns a stale
// vector. Entries are never evicted or invalidated.
package cache

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/smallnest/crag/log"
	"github.com/smallnest/crag/rag"
	"github.com/smallnest/crag/store"
)

// Stats counts lookups served by a CacheBackedEmbedder.
type Stats struct {
	Hits   int64
	Misses int64
}

// CacheBackedEmbedder is a read-through cache in front of an embedder. It
// implements rag.Embedder and langchaingo's embeddings.Embedder.
//
// Concurrent misses for the same text may both call the underlying embedder;
// the later write wins with an identical value.
type CacheBackedEmbedder struct {
	underlying rag.Embedder
	store      store.ByteStore
	namespace  string

	hits   atomic.Int64
	misses atomic.Int64
}

var _ rag.Embedder = (*CacheBackedEmbedder)(nil)

// NewCacheBackedEmbedder wraps underlying. namespace should identify the
// embedding model.
func NewCacheBackedEmbedder(underlying rag.Embedder, s store.ByteStore, namespace string) *CacheBackedEmbedder {
	return &CacheBackedEmbedder{
		underlying: underlying,
		store:      s,
		namespace:  namespace,
	}
}

// Namespace returns the key namespace.
func (c *CacheBackedEmbedder) Namespace() string {
	return c.namespace
}

// Stats returns the hit and miss counters accumulated so far.
func (c *CacheBackedEmbedder) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// EmbedDocument returns the cached vector for text, computing and storing it
// on a miss.
func (c *CacheBackedEmbedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedQuery is EmbedDocument under langchaingo's name.
func (c *CacheBackedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return c.EmbedDocument(ctx, text)
}

// EmbedDocuments looks all texts up with one MGet, embeds the distinct
// misses in one call and stores them with one MSet.
func (c *CacheBackedEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	if len(texts) == 0 {
		return results, nil
	}

	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = Key(c.namespace, text)
	}

	cached, err := c.store.MGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("embedding cache lookup: %w", err)
	}

	missing := make(map[string][]int)
	var unique []string
	hits := 0
	for i, raw := range cached {
		if raw != nil {
			v, err := DecodeVector(raw)
			if err == nil {
				results[i] = v
				hits++
				continue
			}
			log.Warn("discarding cached embedding %s: %v", keys[i], err)
		}
		if _, seen := missing[texts[i]]; !seen {
			unique = append(unique, texts[i])
		}
		missing[texts[i]] = append(missing[texts[i]], i)
	}
	c.hits.Add(int64(hits))
	c.misses.Add(int64(len(texts) - hits))

	if len(unique) == 0 {
		log.Debug("embedding cache: %d hits", hits)
		return results, nil
	}
	log.Debug("embedding cache: %d hits, %d misses (%d distinct)", hits, len(texts)-hits, len(unique))

	embedded, err := c.underlying.EmbedDocuments(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("embed %d texts: %w", len(unique), err)
	}
	if len(embedded) != len(unique) {
		return nil, fmt.Errorf("received %d embeddings for %d texts", len(embedded), len(unique))
	}

	entries := make([]store.KeyValue, len(unique))
	for j, text := range unique {
		if len(embedded[j]) == 0 {
			return nil, fmt.Errorf("%w for text %d", rag.ErrNoEmbedding, missing[text][0])
		}
		entries[j] = store.KeyValue{Key: Key(c.namespace, text), Value: EncodeVector(embedded[j])}
		for _, idx := range missing[text] {
			results[idx] = cloneVector(embedded[j])
		}
	}

	if err := c.store.MSet(ctx, entries); err != nil {
		return nil, fmt.Errorf("embedding cache write: %w", err)
	}
	return results, nil
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
