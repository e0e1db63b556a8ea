package retriever

import (
	"context"
	"fmt"

	"github.com/smallnest/crag/rag"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/vectorstores"
	"github.com/tmc/langchaingo/vectorstores/chroma"
)

// LangChainRetriever adapts langchaingo's vectorstores.VectorStore to rag.Retriever
type LangChainRetriever struct {
	store vectorstores.VectorStore
}

var _ rag.Retriever = (*LangChainRetriever)(nil)

// NewLangChainRetriever creates a new adapter for langchaingo vector stores as a retriever
func NewLangChainRetriever(store vectorstores.VectorStore) *LangChainRetriever {
	return &LangChainRetriever{
		store: store,
	}
}

// Retrieve runs a similarity search for query.
func (r *LangChainRetriever) Retrieve(ctx context.Context, query string, k int) ([]rag.Document, error) {
	if k <= 0 {
		return []rag.Document{}, nil
	}
	docs, err := r.store.SimilaritySearch(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	return rag.FromSchemaDocuments(docs), nil
}

// ChromaOptions configures a Chroma collection.
type ChromaOptions struct {
	URL        string
	Collection string
	Embedder   embeddings.Embedder
}

// NewChromaStore connects to a Chroma server. Documents and queries are
// embedded with opts.Embedder.
func NewChromaStore(opts ChromaOptions) (vectorstores.VectorStore, error) {
	if opts.Embedder == nil {
		return nil, fmt.Errorf("chroma: embedder is required")
	}
	store, err := chroma.New(
		chroma.WithChromaURL(opts.URL),
		chroma.WithEmbedder(opts.Embedder),
		chroma.WithDistanceFunction("cosine"),
		chroma.WithNameSpace(opts.Collection),
	)
	if err != nil {
		return nil, fmt.Errorf("chroma: %w", err)
	}
	return store, nil
}
