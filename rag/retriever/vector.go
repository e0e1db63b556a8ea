package retriever

import (
	"context"
	"fmt"

	"github.com/smallnest/crag/rag"
)

// VectorRetriever implements document retrieval using vector similarity
type VectorRetriever struct {
	vectorStore    rag.VectorStore
	embedder       rag.Embedder
	scoreThreshold float64
}

var _ rag.Retriever = (*VectorRetriever)(nil)

// VectorOption configures a VectorRetriever.
type VectorOption func(*VectorRetriever)

// WithScoreThreshold drops results scoring below threshold.
func WithScoreThreshold(threshold float64) VectorOption {
	return func(r *VectorRetriever) {
		r.scoreThreshold = threshold
	}
}

// NewVectorRetriever creates a new vector retriever. Queries are embedded
// with embedder, so pass the cache-backed embedder to reuse query vectors.
func NewVectorRetriever(vectorStore rag.VectorStore, embedder rag.Embedder, opts ...VectorOption) *VectorRetriever {
	r := &VectorRetriever{
		vectorStore: vectorStore,
		embedder:    embedder,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve embeds the query and returns up to k documents, most similar first.
func (r *VectorRetriever) Retrieve(ctx context.Context, query string, k int) ([]rag.Document, error) {
	if k <= 0 {
		return []rag.Document{}, nil
	}

	queryEmbedding, err := r.embedder.EmbedDocument(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := r.vectorStore.Search(ctx, queryEmbedding, k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	docs := make([]rag.Document, 0, len(results))
	for _, result := range results {
		if result.Score < r.scoreThreshold {
			continue
		}
		docs = append(docs, result.Document)
	}
	return docs, nil
}
