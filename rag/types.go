package rag

import (
	"context"
	"errors"
	"strings"
)

// ErrNoEmbedding is returned when an embedder yields no vector for an input.
var ErrNoEmbedding = errors.New("no embedding returned")

// Document is a unit of retrievable text.
type Document struct {
	// ID is vector store bookkeeping. The pipeline never relies on it.
	ID string

	// Content is the text the grader and generator see.
	Content string

	// Metadata carries provenance such as "source" and "title".
	Metadata map[string]any

	// Embedding is optional; stores compute it when empty.
	Embedding []float32
}

// DocumentSearchResult is a document returned by a similarity search.
type DocumentSearchResult struct {
	Document Document
	Score    float64
}

// SearchResult is one hit from a web search provider.
type SearchResult struct {
	Title   string
	URL     string
	Content string
	Score   float64
}

// Grade is the binary relevance label assigned to a (question, document) pair.
type Grade int

const (
	// GradeNotRelevant marks a document that does not help answer the question.
	GradeNotRelevant Grade = iota
	// GradeRelevant marks a document worth keeping.
	GradeRelevant
)

// String returns "yes" for relevant documents and "no" otherwise.
func (g Grade) String() string {
	if g == GradeRelevant {
		return "yes"
	}
	return "no"
}

// ParseGrade maps a model answer to a Grade. Only "yes" (case-insensitive,
// surrounding whitespace and quotes ignored) is relevant.
func ParseGrade(s string) Grade {
	s = strings.Trim(strings.TrimSpace(s), "\"'.")
	if strings.EqualFold(s, "yes") {
		return GradeRelevant
	}
	return GradeNotRelevant
}

// Retriever returns up to k documents for a query, most similar first.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Document, error)
}

// Grader decides whether a document is relevant to a question.
// Implementations must be safe for concurrent use.
type Grader interface {
	Grade(ctx context.Context, question, document string) (Grade, error)
}

// WebSearcher queries a live web search provider.
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// Generator produces an answer to a question from a context string.
type Generator interface {
	Generate(ctx context.Context, question, contextText string) (string, error)
}

// Embedder turns text into vectors.
type Embedder interface {
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore stores documents and answers similarity queries.
type VectorStore interface {
	Add(ctx context.Context, docs []Document) error
	Search(ctx context.Context, query []float32, k int) ([]DocumentSearchResult, error)
}

// RetrieverFunc adapts a function to the Retriever interface.
type RetrieverFunc func(ctx context.Context, query string, k int) ([]Document, error)

// Retrieve implements Retriever.
func (f RetrieverFunc) Retrieve(ctx context.Context, query string, k int) ([]Document, error) {
	return f(ctx, query, k)
}

// GraderFunc adapts a function to the Grader interface.
type GraderFunc func(ctx context.Context, question, document string) (Grade, error)

// Grade implements Grader.
func (f GraderFunc) Grade(ctx context.Context, question, document string) (Grade, error) {
	return f(ctx, question, document)
}

// WebSearcherFunc adapts a function to the WebSearcher interface.
type WebSearcherFunc func(ctx context.Context, query string, maxResults int) ([]SearchResult, error)

// Search implements WebSearcher.
func (f WebSearcherFunc) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	return f(ctx, query, maxResults)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, question, contextText string) (string, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, question, contextText string) (string, error) {
	return f(ctx, question, contextText)
}

// JoinContents concatenates document contents with sep, in order.
func JoinContents(docs []Document, sep string) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.Content
	}
	return strings.Join(parts, sep)
}
