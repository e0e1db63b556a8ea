package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/smallnest/crag/config"
	"github.com/smallnest/crag/graph"
	"github.com/smallnest/crag/ingest"
	"github.com/smallnest/crag/log"
	"github.com/smallnest/crag/metrics"
	"github.com/smallnest/crag/prebuilt"
	"github.com/smallnest/crag/rag"
	"github.com/smallnest/crag/rag/cache"
	"github.com/smallnest/crag/rag/embedding"
	"github.com/smallnest/crag/rag/generator"
	"github.com/smallnest/crag/rag/grader"
	"github.com/smallnest/crag/rag/loader"
	"github.com/smallnest/crag/rag/retriever"
	vstore "github.com/smallnest/crag/rag/store"
	"github.com/smallnest/crag/store"
	"github.com/smallnest/crag/store/file"
	"github.com/smallnest/crag/store/lru"
	"github.com/smallnest/crag/store/memory"
	"github.com/smallnest/crag/store/postgres"
	"github.com/smallnest/crag/store/redis"
	"github.com/smallnest/crag/store/sqlite"
	"github.com/smallnest/crag/tool"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// app holds the capabilities built from configuration. Everything is
// constructed once and passed by reference.
type app struct {
	cfg       *config.Config
	byteStore store.ByteStore
	embedder  *cache.CacheBackedEmbedder
	index     ingest.Store
	retriever rag.Retriever
	// ingestDir is where the ingestion marker lives; empty for indexes that
	// do not outlive the process.
	ingestDir string
	crag      *prebuilt.CorrectiveRAG
	collector *metrics.Collector
}

func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	if err := cfg.RequireCredentials(); err != nil {
		return nil, err
	}

	bs, err := newByteStore(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			bs.Close()
		}
	}()

	a := &app{cfg: cfg, byteStore: bs}

	underlying := embedding.NewOpenAIEmbedder(cfg.Embedding.APIKey,
		embedding.WithModel(cfg.Embedding.Model),
		embedding.WithBaseURL(cfg.Embedding.BaseURL),
		embedding.WithBatchSize(cfg.Embedding.BatchSize),
	)
	a.embedder = cache.NewCacheBackedEmbedder(underlying, bs, underlying.Model())

	if err = a.buildIndex(); err != nil {
		return nil, err
	}

	llm, err := newLLM(cfg.LLM)
	if err != nil {
		return nil, err
	}
	searcher, err := newSearcher(cfg.Search)
	if err != nil {
		return nil, err
	}

	a.collector = metrics.NewCollector(nil)
	if err = a.collector.RegisterCache(a.embedder); err != nil {
		return nil, err
	}
	tracer := graph.NewTracer()
	tracer.AddHook(a.collector)

	ragCfg, err := pipelineConfig(cfg.RAG)
	if err != nil {
		return nil, err
	}
	ragCfg.Retriever = a.retriever
	ragCfg.Grader = grader.New(llm)
	ragCfg.WebSearcher = searcher
	ragCfg.Generator = generator.New(llm, generator.WithCallOptions(llms.WithTemperature(cfg.LLM.Temperature)))
	ragCfg.MaxWebResults = cfg.Search.MaxResults
	ragCfg.Tracer = tracer

	a.crag, err = prebuilt.NewCorrectiveRAG(ragCfg)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) Close() error {
	return a.byteStore.Close()
}

func (a *app) buildIndex() error {
	switch a.cfg.Vector.Backend {
	case "chroma":
		cs, err := retriever.NewChromaStore(retriever.ChromaOptions{
			URL:        a.cfg.Vector.ChromaURL,
			Collection: a.cfg.Vector.Collection,
			Embedder:   a.embedder,
		})
		if err != nil {
			return err
		}
		a.index = rag.NewLangChainVectorStore(cs)
		a.retriever = retriever.NewLangChainRetriever(cs)
		a.ingestDir = a.cfg.Vector.DataDir
	default:
		vs := vstore.NewInMemoryVectorStore(a.embedder)
		a.index = vs
		a.retriever = retriever.NewVectorRetriever(vs, a.embedder)
	}
	return nil
}

// persistentIndex reports whether the index survives the process.
func (a *app) persistentIndex() bool {
	return a.ingestDir != ""
}

func (a *app) ingestor() (*ingest.Ingestor, error) {
	return ingest.New(ingest.Config{
		Loader:   loader.NewWebLoader(),
		Splitter: ingest.NewTokenSplitter(a.cfg.Ingest.ChunkSize, a.cfg.Ingest.ChunkOverlap),
		Store:    a.index,
		DataDir:  a.ingestDir,
		Cache:    a.embedder,
	})
}

// prepare fills a process-local index before the first question.
func (a *app) prepare(ctx context.Context) error {
	if a.persistentIndex() {
		return nil
	}
	log.Info("in-memory vector index, ingesting %d URLs", len(a.cfg.Ingest.URLs))
	in, err := a.ingestor()
	if err != nil {
		return err
	}
	_, err = in.Run(ctx, a.cfg.Ingest.URLs)
	return err
}

func newByteStore(ctx context.Context, cfg config.CacheConfig) (store.ByteStore, error) {
	var (
		bs  store.ByteStore
		err error
	)
	switch cfg.Backend {
	case "memory":
		bs = memory.New()
	case "redis":
		bs = redis.NewRedisStore(redis.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.SqlitePath), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
		bs, err = sqlite.NewSqliteStore(sqlite.SqliteOptions{Path: cfg.SqlitePath, TableName: cfg.Table})
	case "postgres":
		var pg *postgres.PostgresStore
		pg, err = postgres.NewPostgresStore(ctx, postgres.PostgresOptions{ConnString: cfg.PostgresDSN, TableName: cfg.Table})
		if err == nil {
			if err = pg.InitSchema(ctx); err != nil {
				pg.Close()
			}
		}
		bs = pg
	case "file":
		bs, err = file.New(cfg.Dir)
	default:
		err = fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s cache store: %w", cfg.Backend, err)
	}

	if cfg.LRUSize > 0 {
		cached, err := lru.New(bs, cfg.LRUSize)
		if err != nil {
			bs.Close()
			return nil, err
		}
		return cached, nil
	}
	return bs, nil
}

func newLLM(cfg config.LLMConfig) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}
	return llm, nil
}

func newSearcher(cfg config.SearchConfig) (rag.WebSearcher, error) {
	switch cfg.Provider {
	case "brave":
		s, err := tool.NewBraveSearch(cfg.BraveAPIKey, tool.WithBraveCount(cfg.MaxResults))
		if err != nil {
			return nil, err
		}
		return s, nil
	case "tavily":
		s, err := tool.NewTavilySearch(cfg.TavilyAPIKey)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.Provider)
	}
}

// pipelineConfig maps the configured policy names onto the pipeline
// settings. Capabilities are filled in by the caller.
func pipelineConfig(cfg config.RAGConfig) (prebuilt.CorrectiveRAGConfig, error) {
	out := prebuilt.CorrectiveRAGConfig{
		TopK:              cfg.TopK,
		GradeConcurrency:  cfg.GradeConcurrency,
		SequentialGrading: cfg.SequentialGrading,
	}

	switch cfg.GradeFailure {
	case "propagate", "":
		out.GradeFailure = prebuilt.GradeFailurePropagate
	case "not_relevant":
		out.GradeFailure = prebuilt.GradeFailureAsNotRelevant
	default:
		return out, fmt.Errorf("unknown grade failure policy %q", cfg.GradeFailure)
	}

	switch cfg.EmptyRetrieval {
	case "generate", "":
		out.EmptyRetrieval = prebuilt.EmptyRetrievalGenerate
	case "websearch":
		out.EmptyRetrieval = prebuilt.EmptyRetrievalWebSearch
	default:
		return out, fmt.Errorf("unknown empty retrieval policy %q", cfg.EmptyRetrieval)
	}

	switch cfg.WebSearchMode {
	case "replace", "":
		out.WebSearchMode = prebuilt.WebSearchReplace
	case "append":
		out.WebSearchMode = prebuilt.WebSearchAppend
	default:
		return out, fmt.Errorf("unknown web search mode %q", cfg.WebSearchMode)
	}
	return out, nil
}

var errNoCapability = errors.New("capability not configured")

// topologyOnly builds the pipeline with inert capabilities, for rendering.
func topologyOnly() (*prebuilt.CorrectiveRAG, error) {
	return prebuilt.NewCorrectiveRAG(prebuilt.CorrectiveRAGConfig{
		Retriever: rag.RetrieverFunc(func(context.Context, string, int) ([]rag.Document, error) {
			return nil, errNoCapability
		}),
		Grader: rag.GraderFunc(func(context.Context, string, string) (rag.Grade, error) {
			return rag.GradeNotRelevant, errNoCapability
		}),
		WebSearcher: rag.WebSearcherFunc(func(context.Context, string, int) ([]rag.SearchResult, error) {
			return nil, errNoCapability
		}),
		Generator: rag.GeneratorFunc(func(context.Context, string, string) (string, error) {
			return "", errNoCapability
		}),
		Logger: &log.NoOpLogger{},
	})
}
