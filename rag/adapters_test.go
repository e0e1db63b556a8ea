package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/tmc/langchaingo/vectorstores"
)

type mockLCVectorStore struct {
	added []schema.Document
	err   error
}

func (m *mockLCVectorStore) AddDocuments(_ context.Context, docs []schema.Document, _ ...vectorstores.Option) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.added = append(m.added, docs...)
	ids := make([]string, len(docs))
	for i := range docs {
		ids[i] = "id-" + docs[i].PageContent
	}
	return ids, nil
}

func (m *mockLCVectorStore) SimilaritySearch(context.Context, string, int, ...vectorstores.Option) ([]schema.Document, error) {
	return nil, nil
}

func TestSchemaConversion(t *testing.T) {
	schemaDocs := []schema.Document{
		{PageContent: "content", Metadata: map[string]any{"source": "https://example.com/a"}},
		{PageContent: "no source"},
	}

	docs := FromSchemaDocuments(schemaDocs)
	require.Len(t, docs, 2)
	assert.Equal(t, "content", docs[0].Content)
	assert.Equal(t, "https://example.com/a", docs[0].ID)
	assert.Empty(t, docs[1].ID)
	assert.NotNil(t, docs[1].Metadata)

	back := ToSchemaDocuments(docs)
	assert.Equal(t, "content", back[0].PageContent)
	assert.Equal(t, "https://example.com/a", back[0].Metadata["source"])

	// Metadata is copied, not shared.
	docs[0].Metadata["title"] = "changed"
	assert.NotContains(t, schemaDocs[0].Metadata, "title")
}

func TestLangChainTextSplitter(t *testing.T) {
	splitter := NewLangChainTextSplitter(textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(30),
		textsplitter.WithChunkOverlap(0),
	))

	docs := []Document{{
		ID:       "page",
		Content:  "first paragraph here\n\nsecond paragraph here",
		Metadata: map[string]any{"source": "page"},
	}}

	chunks, err := splitter.SplitDocuments(docs)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "first paragraph here", chunks[0].Content)
	assert.Equal(t, "second paragraph here", chunks[1].Content)
	assert.Equal(t, 1, chunks[1].Metadata["chunk"])
	assert.Equal(t, "page", chunks[1].Metadata["source"])
	assert.NotContains(t, docs[0].Metadata, "chunk")
}

func TestLangChainVectorStore_Add(t *testing.T) {
	lc := &mockLCVectorStore{}
	store := NewLangChainVectorStore(lc)

	docs := []Document{{Content: "a"}, {ID: "keep", Content: "b"}}
	require.NoError(t, store.Add(context.Background(), docs))

	assert.Len(t, lc.added, 2)
	assert.Equal(t, "id-a", docs[0].ID)
	assert.Equal(t, "keep", docs[1].ID)

	lc.err = errors.New("down")
	assert.Error(t, store.Add(context.Background(), docs))
}

func TestGrade(t *testing.T) {
	tests := []struct {
		in   string
		want Grade
	}{
		{"yes", GradeRelevant},
		{" YES ", GradeRelevant},
		{"\"yes\"", GradeRelevant},
		{"Yes.", GradeRelevant},
		{"no", GradeNotRelevant},
		{"", GradeNotRelevant},
		{"yes, it is", GradeNotRelevant},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseGrade(tt.in), tt.in)
	}
	assert.Equal(t, "yes", GradeRelevant.String())
	assert.Equal(t, "no", GradeNotRelevant.String())
}

func TestJoinContents(t *testing.T) {
	docs := []Document{{Content: "a"}, {Content: "b"}, {Content: "c"}}
	assert.Equal(t, "a\n\nb\n\nc", JoinContents(docs, "\n\n"))
	assert.Equal(t, "", JoinContents(nil, "\n\n"))
}
