// Package config loads crag settings from defaults, a .env file and CRAG_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/smallnest/crag/ingest"
	"github.com/smallnest/crag/log"
)

// EnvPrefix prefixes every environment override, e.g. CRAG_LLM_MODEL.
const EnvPrefix = "CRAG_"

// Config is the full application configuration.
type Config struct {
	LLM       LLMConfig       `koanf:"llm"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Search    SearchConfig    `koanf:"search"`
	Cache     CacheConfig     `koanf:"cache"`
	Vector    VectorConfig    `koanf:"vector"`
	Ingest    IngestConfig    `koanf:"ingest"`
	RAG       RAGConfig       `koanf:"rag"`
	Log       LogConfig       `koanf:"log"`
}

// LLMConfig configures the chat model used for grading and generation. Any
// OpenAI-compatible endpoint works; the default is Groq.
type LLMConfig struct {
	BaseURL     string  `koanf:"base_url"`
	APIKey      string  `koanf:"api_key"`
	Model       string  `koanf:"model"`
	Temperature float64 `koanf:"temperature"`
}

// EmbeddingConfig configures the embedding model.
type EmbeddingConfig struct {
	BaseURL   string `koanf:"base_url"`
	APIKey    string `koanf:"api_key"`
	Model     string `koanf:"model"`
	BatchSize int    `koanf:"batch_size"`
}

// SearchConfig selects the web search provider.
type SearchConfig struct {
	Provider     string `koanf:"provider"`
	TavilyAPIKey string `koanf:"tavily_api_key"`
	BraveAPIKey  string `koanf:"brave_api_key"`
	MaxResults   int    `koanf:"max_results"`
}

// CacheConfig selects the byte store behind the embedding cache.
type CacheConfig struct {
	Backend       string `koanf:"backend"`
	Dir           string `koanf:"dir"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	RedisPrefix   string `koanf:"redis_prefix"`
	SqlitePath    string `koanf:"sqlite_path"`
	PostgresDSN   string `koanf:"postgres_dsn"`
	Table         string `koanf:"table"`
	// LRUSize > 0 puts an in-process LRU in front of the backend.
	LRUSize int `koanf:"lru_size"`
}

// VectorConfig selects the vector index.
type VectorConfig struct {
	Backend    string `koanf:"backend"`
	ChromaURL  string `koanf:"chroma_url"`
	Collection string `koanf:"collection"`
	DataDir    string `koanf:"data_dir"`
}

// IngestConfig configures document loading and splitting.
type IngestConfig struct {
	ChunkSize    int      `koanf:"chunk_size"`
	ChunkOverlap int      `koanf:"chunk_overlap"`
	URLs         []string `koanf:"urls"`
}

// RAGConfig configures the corrective RAG graph.
type RAGConfig struct {
	TopK              int    `koanf:"top_k"`
	GradeConcurrency  int    `koanf:"grade_concurrency"`
	SequentialGrading bool   `koanf:"sequential_grading"`
	GradeFailure      string `koanf:"grade_failure"`
	EmptyRetrieval    string `koanf:"empty_retrieval"`
	WebSearchMode     string `koanf:"web_search_mode"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `koanf:"level"`
}

// Accepted values of the enumerated settings.
var (
	SearchProviders   = []string{"tavily", "brave"}
	CacheBackends     = []string{"file", "memory", "redis", "sqlite", "postgres"}
	VectorBackends    = []string{"memory", "chroma"}
	GradeFailures     = []string{"propagate", "not_relevant"}
	EmptyRetrievals   = []string{"generate", "websearch"}
	WebSearchModes    = []string{"replace", "append"}
	fallbackVariables = map[string]string{
		"llm.api_key":           "GROQ_API_KEY",
		"embedding.api_key":     "OPENAI_API_KEY",
		"search.tavily_api_key": "TAVILY_API_KEY",
		"search.brave_api_key":  "BRAVE_API_KEY",
	}
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			BaseURL: "https://api.groq.com/openai/v1",
			Model:   "llama-3.3-70b-versatile",
		},
		Embedding: EmbeddingConfig{
			Model:     "text-embedding-3-small",
			BatchSize: 512,
		},
		Search: SearchConfig{
			Provider:   "tavily",
			MaxResults: 3,
		},
		Cache: CacheConfig{
			Backend:     "file",
			Dir:         "./.cache/embeddings",
			RedisAddr:   "localhost:6379",
			RedisPrefix: "crag:",
			SqlitePath:  "./.cache/embeddings.db",
			Table:       "embeddings",
		},
		Vector: VectorConfig{
			Backend:    "memory",
			ChromaURL:  "http://localhost:8000",
			Collection: "rag-chroma",
			DataDir:    "./.chroma",
		},
		Ingest: IngestConfig{
			ChunkSize:    250,
			ChunkOverlap: 0,
			URLs:         slices.Clone(ingest.DefaultURLs),
		},
		RAG: RAGConfig{
			TopK:           4,
			GradeFailure:   "propagate",
			EmptyRetrieval: "generate",
			WebSearchMode:  "replace",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads envFiles (".env" when none are given; missing files are
// ignored), then builds the configuration from defaults, CRAG_* variables
// and the well-known provider key variables, and validates it.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
		log.Debug("loaded environment from %s", f)
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	for path, variable := range fallbackVariables {
		if v := os.Getenv(variable); v != "" {
			if err := k.Set(path, v); err != nil {
				return nil, fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			path := transformEnvKey(key)
			if path == "ingest.urls" {
				return path, splitList(value)
			}
			return path, value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// transformEnvKey converts environment variable names to koanf paths.
// For example: CRAG_CACHE_REDIS_ADDR -> cache.redis_addr
func transformEnvKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(s, "_")
	if !ok {
		return section
	}
	return section + "." + field
}

func splitList(s string) []string {
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate checks the structural settings. It does not require API keys;
// see RequireCredentials.
func (c *Config) Validate() error {
	var errs []error
	oneOf := func(name, value string, allowed []string) {
		if !slices.Contains(allowed, value) {
			errs = append(errs, fmt.Errorf("%s must be one of %s, got %q", name, strings.Join(allowed, "|"), value))
		}
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	oneOf("search.provider", c.Search.Provider, SearchProviders)
	oneOf("cache.backend", c.Cache.Backend, CacheBackends)
	oneOf("vector.backend", c.Vector.Backend, VectorBackends)
	oneOf("rag.grade_failure", c.RAG.GradeFailure, GradeFailures)
	oneOf("rag.empty_retrieval", c.RAG.EmptyRetrieval, EmptyRetrievals)
	oneOf("rag.web_search_mode", c.RAG.WebSearchMode, WebSearchModes)

	if c.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	if c.Embedding.Model == "" {
		errs = append(errs, errors.New("embedding.model is required"))
	}
	if c.RAG.TopK <= 0 {
		errs = append(errs, fmt.Errorf("rag.top_k must be positive, got %d", c.RAG.TopK))
	}
	if c.RAG.GradeConcurrency < 0 {
		errs = append(errs, fmt.Errorf("rag.grade_concurrency must not be negative, got %d", c.RAG.GradeConcurrency))
	}
	if c.Search.MaxResults <= 0 {
		errs = append(errs, fmt.Errorf("search.max_results must be positive, got %d", c.Search.MaxResults))
	}
	if c.Ingest.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("ingest.chunk_size must be positive, got %d", c.Ingest.ChunkSize))
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		errs = append(errs, fmt.Errorf("ingest.chunk_overlap must be in [0, chunk_size), got %d", c.Ingest.ChunkOverlap))
	}

	switch c.Cache.Backend {
	case "file":
		if c.Cache.Dir == "" {
			errs = append(errs, errors.New("cache.dir is required for the file backend"))
		}
	case "redis":
		if c.Cache.RedisAddr == "" {
			errs = append(errs, errors.New("cache.redis_addr is required for the redis backend"))
		}
	case "sqlite":
		if c.Cache.SqlitePath == "" {
			errs = append(errs, errors.New("cache.sqlite_path is required for the sqlite backend"))
		}
	case "postgres":
		if c.Cache.PostgresDSN == "" {
			errs = append(errs, errors.New("cache.postgres_dsn is required for the postgres backend"))
		}
	}
	if c.Vector.Backend == "chroma" && c.Vector.ChromaURL == "" {
		errs = append(errs, errors.New("vector.chroma_url is required for the chroma backend"))
	}

	return errors.Join(errs...)
}

// RequireCredentials checks the API keys needed to answer questions or
// ingest documents.
func (c *Config) RequireCredentials() error {
	var errs []error
	if c.LLM.APIKey == "" {
		errs = append(errs, errors.New("llm.api_key is required (set GROQ_API_KEY or CRAG_LLM_API_KEY)"))
	}
	if c.Embedding.APIKey == "" {
		errs = append(errs, errors.New("embedding.api_key is required (set OPENAI_API_KEY or CRAG_EMBEDDING_API_KEY)"))
	}
	switch c.Search.Provider {
	case "tavily":
		if c.Search.TavilyAPIKey == "" {
			errs = append(errs, errors.New("search.tavily_api_key is required (set TAVILY_API_KEY)"))
		}
	case "brave":
		if c.Search.BraveAPIKey == "" {
			errs = append(errs, errors.New("search.brave_api_key is required (set BRAVE_API_KEY)"))
		}
	}
	return errors.Join(errs...)
}
