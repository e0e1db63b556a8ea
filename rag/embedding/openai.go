// Package embedding provides a rag.Embedder backed by an OpenAI-compatible
// embeddings endpoint.
package embedding

import (
	"context"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/smallnest/crag/rag"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "text-embedding-3-small"

// OpenAIEmbedder calls the /embeddings endpoint through go-openai.
type OpenAIEmbedder struct {
	client    *goopenai.Client
	model     string
	batchSize int
}

var _ rag.Embedder = (*OpenAIEmbedder)(nil)

// OpenAIOption configures an OpenAIEmbedder.
type OpenAIOption func(*openAIOptions)

type openAIOptions struct {
	model     string
	baseURL   string
	batchSize int
}

// WithModel sets the embedding model.
func WithModel(model string) OpenAIOption {
	return func(o *openAIOptions) {
		o.model = model
	}
}

// WithBaseURL points the client at another OpenAI-compatible server.
func WithBaseURL(url string) OpenAIOption {
	return func(o *openAIOptions) {
		o.baseURL = url
	}
}

// WithBatchSize caps the number of inputs per request.
func WithBatchSize(n int) OpenAIOption {
	return func(o *openAIOptions) {
		o.batchSize = n
	}
}

// NewOpenAIEmbedder creates an embedder authenticated with apiKey.
func NewOpenAIEmbedder(apiKey string, opts ...OpenAIOption) *OpenAIEmbedder {
	o := openAIOptions{
		model:     DefaultModel,
		batchSize: 512,
	}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := goopenai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}

	return &OpenAIEmbedder{
		client:    goopenai.NewClientWithConfig(cfg),
		model:     o.model,
		batchSize: o.batchSize,
	}
}

// Model returns the model identifier, which doubles as the cache namespace.
func (e *OpenAIEmbedder) Model() string {
	return e.model
}

// EmbedDocument embeds a single text.
func (e *OpenAIEmbedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedDocuments embeds texts in request-sized batches, preserving order.
func (e *OpenAIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		batch := texts[start:end]

		resp, err := e.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
			Input: batch,
			Model: goopenai.EmbeddingModel(e.model),
		})
		if err != nil {
			return nil, fmt.Errorf("create embeddings: %w", err)
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("received %d embeddings for %d texts", len(resp.Data), len(batch))
		}

		for i, d := range resp.Data {
			idx := i
			if d.Index >= 0 && d.Index < len(batch) {
				idx = d.Index
			}
			if len(d.Embedding) == 0 {
				return nil, fmt.Errorf("%w for input %d", rag.ErrNoEmbedding, start+idx)
			}
			out[start+idx] = d.Embedding
		}
	}
	return out, nil
}
