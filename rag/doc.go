// Package rag defines the documents and capability interfaces shared by the
// corrective RAG pipeline.
//
// The pipeline core (packages graph and prebuilt) depends only on the
// interfaces declared here:
//
//   - Retriever: top-k similarity lookup for a question
//   - Grader: binary relevance label for one (question, document) pair
//   - WebSearcher: live search fallback
//   - Generator: answer synthesis from a context string
//   - Embedder: text to vector
//
// Concrete implementations live in sub-packages: rag/cache wraps an
// Embedder with a persistent byte store, rag/embedding talks to an
// OpenAI-compatible embeddings endpoint, rag/grader and rag/generator use a
// langchaingo llms.Model, rag/retriever and rag/store provide similarity
// search, and rag/loader fetches web pages for ingestion.
//
// The adapters in this package bridge langchaingo types (schema.Document,
// embeddings.Embedder, vectorstores.VectorStore, textsplitter.TextSplitter)
// to the interfaces above and back.
package rag
