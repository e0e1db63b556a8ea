package rag

import (
	"context"
	"fmt"
	"maps"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/tmc/langchaingo/vectorstores"
)

// FromSchemaDocuments converts langchaingo documents to Documents. The
// "source" metadata entry, when present, becomes the ID.
func FromSchemaDocuments(schemaDocs []schema.Document) []Document {
	docs := make([]Document, len(schemaDocs))
	for i, schemaDoc := range schemaDocs {
		docs[i] = Document{
			Content:  schemaDoc.PageContent,
			Metadata: copyMetadata(schemaDoc.Metadata),
		}
		if source, ok := schemaDoc.Metadata["source"]; ok {
			docs[i].ID = fmt.Sprintf("%v", source)
		}
	}
	return docs
}

// ToSchemaDocuments converts Documents to langchaingo documents.
func ToSchemaDocuments(docs []Document) []schema.Document {
	schemaDocs := make([]schema.Document, len(docs))
	for i, doc := range docs {
		schemaDocs[i] = schema.Document{
			PageContent: doc.Content,
			Metadata:    copyMetadata(doc.Metadata),
		}
	}
	return schemaDocs
}

func copyMetadata(metadata map[string]any) map[string]any {
	result := make(map[string]any, len(metadata))
	maps.Copy(result, metadata)
	return result
}

// LangChainTextSplitter splits Documents with a langchaingo text splitter.
type LangChainTextSplitter struct {
	splitter textsplitter.TextSplitter
}

// NewLangChainTextSplitter creates a new adapter for langchaingo text splitters
func NewLangChainTextSplitter(splitter textsplitter.TextSplitter) *LangChainTextSplitter {
	return &LangChainTextSplitter{
		splitter: splitter,
	}
}

// SplitDocuments splits every document into chunks. Each chunk inherits a
// copy of its parent's metadata plus a "chunk" index.
func (l *LangChainTextSplitter) SplitDocuments(docs []Document) ([]Document, error) {
	var result []Document
	for _, doc := range docs {
		chunks, err := l.splitter.SplitText(doc.Content)
		if err != nil {
			return nil, fmt.Errorf("split %q: %w", doc.ID, err)
		}
		for i, chunk := range chunks {
			metadata := copyMetadata(doc.Metadata)
			metadata["chunk"] = i
			result = append(result, Document{
				ID:       doc.ID,
				Content:  chunk,
				Metadata: metadata,
			})
		}
	}
	return result, nil
}

// LangChainVectorStore writes Documents into a langchaingo vector store.
type LangChainVectorStore struct {
	store vectorstores.VectorStore
}

// NewLangChainVectorStore creates a new adapter for langchaingo vector stores
func NewLangChainVectorStore(store vectorstores.VectorStore) *LangChainVectorStore {
	return &LangChainVectorStore{
		store: store,
	}
}

// Add adds documents to the vector store. The store embeds them with the
// embedder it was constructed with.
func (l *LangChainVectorStore) Add(ctx context.Context, docs []Document) error {
	ids, err := l.store.AddDocuments(ctx, ToSchemaDocuments(docs))
	if err != nil {
		return err
	}

	for i, id := range ids {
		if i < len(docs) && docs[i].ID == "" {
			docs[i].ID = id
		}
	}
	return nil
}
