// Package ingest loads web pages, splits them into chunks and writes the
// chunks into a vector store, embedding them through the embedding cache.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/smallnest/crag/log"
	"github.com/smallnest/crag/rag"
	"github.com/smallnest/crag/rag/cache"
	"github.com/tmc/langchaingo/textsplitter"
)

// MarkerFile is created inside the data directory after a successful run.
const MarkerFile = ".ingested"

// DefaultBatchSize is the number of chunks written to the store per call.
const DefaultBatchSize = 100

// DefaultURLs is the built-in corpus: Model Context Protocol, LLM
// quantization and fine-tuning, and LangChain agents documentation.
var DefaultURLs = []string{
	"https://www.anthropic.com/news/model-context-protocol",
	"https://modelcontextprotocol.io/introduction",
	"https://en.wikipedia.org/wiki/Model_Context_Protocol",

	"https://www.symbl.ai/developers/blog/a-guide-to-quantization-in-llms",
	"https://www.datacamp.com/tutorial/fine-tuning-large-language-models",
	"https://arxiv.org/abs/2403.03775",

	"https://docs.langchain.com/oss/python/langchain/overview",
	"https://docs.langchain.com/oss/python/langchain/agents",
	"https://docs.langchain.com/oss/python/langchain/models",
	"https://docs.langchain.com/oss/python/langchain/tools",
	"https://docs.langchain.com/oss/python/deepagents/overview",
	"https://docs.langchain.com/oss/python/deepagents/harness",
}

// Loader fetches source documents.
type Loader interface {
	Load(ctx context.Context, urls []string) ([]rag.Document, error)
}

// Splitter cuts documents into chunks.
type Splitter interface {
	SplitDocuments(docs []rag.Document) ([]rag.Document, error)
}

// Store receives embedded chunks. Ingestion only writes, so search-only
// methods are not required.
type Store interface {
	Add(ctx context.Context, docs []rag.Document) error
}

var (
	_ Store = (rag.VectorStore)(nil)
	_ Store = (*rag.LangChainVectorStore)(nil)
)

// StatsSource reports embedding cache counters.
type StatsSource interface {
	Stats() cache.Stats
}

// Report summarizes one ingestion run.
type Report struct {
	Documents   int
	Chunks      int
	CacheHits   int64
	CacheMisses int64
	Skipped     bool
	Duration    time.Duration
}

// Config wires an Ingestor. Loader and Store are required.
type Config struct {
	Loader   Loader
	Splitter Splitter
	// Store embeds chunks with the cache-backed embedder it was built with.
	Store Store
	// DataDir holds the marker file. Empty disables the skip check.
	DataDir   string
	BatchSize int
	// Cache, when set, is sampled before and after the run.
	Cache StatsSource
}

// Ingestor runs the ingestion pipeline.
type Ingestor struct {
	cfg Config
}

// NewTokenSplitter returns the default splitter: token chunks of size
// chunkSize with the given overlap.
func NewTokenSplitter(chunkSize, chunkOverlap int) Splitter {
	return rag.NewLangChainTextSplitter(textsplitter.NewTokenSplitter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	))
}

// New validates cfg and returns an Ingestor.
func New(cfg Config) (*Ingestor, error) {
	if cfg.Loader == nil {
		return nil, errors.New("ingest: loader is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("ingest: vector store is required")
	}
	if cfg.Splitter == nil {
		cfg.Splitter = NewTokenSplitter(250, 0)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Ingestor{cfg: cfg}, nil
}

// MarkerPath returns the marker location, or "" when no data dir is set.
func (in *Ingestor) MarkerPath() string {
	if in.cfg.DataDir == "" {
		return ""
	}
	return filepath.Join(in.cfg.DataDir, MarkerFile)
}

// Run ingests urls. When the data directory already carries the marker the
// run is skipped and the report has Skipped set.
func (in *Ingestor) Run(ctx context.Context, urls []string) (*Report, error) {
	start := time.Now()
	report := &Report{}

	marker := in.MarkerPath()
	if marker != "" {
		if _, err := os.Stat(marker); err == nil {
			log.Info("vector store already exists at %s", in.cfg.DataDir)
			log.Info("delete the directory to re-ingest data")
			report.Skipped = true
			return report, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("check marker: %w", err)
		}
	}

	var before cache.Stats
	if in.cfg.Cache != nil {
		before = in.cfg.Cache.Stats()
	}

	log.Info("loading %d URLs...", len(urls))
	docs, err := in.cfg.Loader.Load(ctx, urls)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	report.Documents = len(docs)
	log.Info("loaded %d documents", len(docs))

	chunks, err := in.cfg.Splitter.SplitDocuments(docs)
	if err != nil {
		return nil, fmt.Errorf("split documents: %w", err)
	}
	report.Chunks = len(chunks)
	log.Info("split into %d chunks", len(chunks))

	for i := 0; i < len(chunks); i += in.cfg.BatchSize {
		end := min(i+in.cfg.BatchSize, len(chunks))
		if err := in.cfg.Store.Add(ctx, chunks[i:end]); err != nil {
			return nil, fmt.Errorf("add chunks %d-%d: %w", i, end, err)
		}
		log.Debug("stored chunks %d-%d", i, end)
	}

	if in.cfg.Cache != nil {
		after := in.cfg.Cache.Stats()
		report.CacheHits = after.Hits - before.Hits
		report.CacheMisses = after.Misses - before.Misses
	}

	if marker != "" {
		if err := os.MkdirAll(in.cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		if err := os.WriteFile(marker, []byte(time.Now().UTC().Format(time.RFC3339)+"\n"), 0o644); err != nil {
			return nil, fmt.Errorf("write marker: %w", err)
		}
	}

	report.Duration = time.Since(start)
	log.Info("data ingestion completed: %d documents, %d chunks, %d cache hits, %d cache misses",
		report.Documents, report.Chunks, report.CacheHits, report.CacheMisses)
	return report, nil
}
