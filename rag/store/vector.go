package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/smallnest/crag/rag"
)

// InMemoryVectorStore is a simple in-memory vector store implementation
type InMemoryVectorStore struct {
	mu         sync.RWMutex
	documents  []rag.Document
	embeddings [][]float32
	embedder   rag.Embedder
}

var _ rag.VectorStore = (*InMemoryVectorStore)(nil)

// NewInMemoryVectorStore creates a new InMemoryVectorStore. embedder is used
// for documents added without an embedding and may be nil.
func NewInMemoryVectorStore(embedder rag.Embedder) *InMemoryVectorStore {
	return &InMemoryVectorStore{
		documents:  make([]rag.Document, 0),
		embeddings: make([][]float32, 0),
		embedder:   embedder,
	}
}

// Add adds documents, embedding those that carry no embedding in one batch.
func (s *InMemoryVectorStore) Add(ctx context.Context, documents []rag.Document) error {
	var pending []int
	var texts []string
	for i, doc := range documents {
		if len(doc.Embedding) == 0 {
			pending = append(pending, i)
			texts = append(texts, doc.Content)
		}
	}

	vectors := make([][]float32, len(documents))
	for i, doc := range documents {
		vectors[i] = doc.Embedding
	}

	if len(pending) > 0 {
		if s.embedder == nil {
			return errors.New("no embedder configured and document has no embedding")
		}
		embedded, err := s.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed documents: %w", err)
		}
		if len(embedded) != len(pending) {
			return fmt.Errorf("received %d embeddings for %d documents", len(embedded), len(pending))
		}
		for j, i := range pending {
			vectors[i] = embedded[j]
		}
	}

	return s.AddBatch(ctx, documents, vectors)
}

// AddBatch adds multiple documents with explicit embeddings
func (s *InMemoryVectorStore) AddBatch(_ context.Context, documents []rag.Document, embeddings [][]float32) error {
	if len(documents) != len(embeddings) {
		return fmt.Errorf("documents and embeddings must have same length")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents = append(s.documents, documents...)
	s.embeddings = append(s.embeddings, embeddings...)
	return nil
}

// Search returns the k documents most similar to queryEmbedding by cosine
// similarity, best first. Ties keep insertion order.
func (s *InMemoryVectorStore) Search(_ context.Context, queryEmbedding []float32, k int) ([]rag.DocumentSearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.documents) == 0 {
		return []rag.DocumentSearchResult{}, nil
	}

	type docScore struct {
		index int
		score float64
	}

	scores := make([]docScore, len(s.documents))
	for i, docEmb := range s.embeddings {
		scores[i] = docScore{index: i, score: cosineSimilarity32(queryEmbedding, docEmb)}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})

	k = min(k, len(scores))
	results := make([]rag.DocumentSearchResult, k)
	for i := range k {
		results[i] = rag.DocumentSearchResult{
			Document: s.documents[scores[i].index],
			Score:    scores[i].score,
		}
	}
	return results, nil
}

// Len returns the number of stored documents.
func (s *InMemoryVectorStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents)
}

// cosineSimilarity32 returns 0 when either vector is zero or the lengths differ.
func cosineSimilarity32(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
