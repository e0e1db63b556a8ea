package tool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/smallnest/crag/rag"
)

// TavilySearch searches the web through the Tavily API.
type TavilySearch struct {
	APIKey      string
	SearchDepth string
	client      *resty.Client
}

var _ rag.WebSearcher = (*TavilySearch)(nil)

// TavilyOption configures a TavilySearch.
type TavilyOption func(*tavilyOptions)

type tavilyOptions struct {
	baseURL     string
	searchDepth string
	timeout     time.Duration
}

// WithTavilyBaseURL sets the base URL for the Tavily API.
func WithTavilyBaseURL(baseURL string) TavilyOption {
	return func(o *tavilyOptions) {
		o.baseURL = baseURL
	}
}

// WithTavilySearchDepth sets "basic" or "advanced" search.
func WithTavilySearchDepth(depth string) TavilyOption {
	return func(o *tavilyOptions) {
		o.searchDepth = depth
	}
}

// WithTavilyTimeout sets the request timeout.
func WithTavilyTimeout(d time.Duration) TavilyOption {
	return func(o *tavilyOptions) {
		o.timeout = d
	}
}

// NewTavilySearch creates a Tavily client.
func NewTavilySearch(apiKey string, opts ...TavilyOption) (*TavilySearch, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("TAVILY_API_KEY not set")
	}

	o := tavilyOptions{
		baseURL:     "https://api.tavily.com",
		searchDepth: "basic",
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &TavilySearch{
		APIKey:      apiKey,
		SearchDepth: o.searchDepth,
		client:      newHTTPClient(o.baseURL, o.timeout).SetAuthToken(apiKey),
	}, nil
}

type tavilyRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

type tavilyResponse struct {
	Query   string `json:"query"`
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search returns up to maxResults hits for query. No hits is not an error.
func (t *TavilySearch) Search(ctx context.Context, query string, maxResults int) ([]rag.SearchResult, error) {
	var out tavilyResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(tavilyRequest{
			APIKey:      t.APIKey,
			Query:       query,
			SearchDepth: t.SearchDepth,
			MaxResults:  maxResults,
		}).
		SetResult(&out).
		Post("/search")
	if err != nil {
		return nil, fmt.Errorf("tavily search: %w", err)
	}
	if err := checkResponse("tavily", resp); err != nil {
		return nil, err
	}

	results := make([]rag.SearchResult, 0, len(out.Results))
	for _, r := range out.Results {
		if maxResults > 0 && len(results) == maxResults {
			break
		}
		results = append(results, rag.SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Content,
			Score:   r.Score,
		})
	}
	return results, nil
}

// Name returns the name of the tool.
func (t *TavilySearch) Name() string {
	return "Tavily_Search"
}

// Description returns the description of the tool.
func (t *TavilySearch) Description() string {
	return "A search engine optimized for LLM agents. " +
		"Useful for answering questions about current events. " +
		"Input should be a search query."
}

// Call searches and formats the hits as text, one block per result.
func (t *TavilySearch) Call(ctx context.Context, input string) (string, error) {
	results, err := t.Search(ctx, input, 5)
	if err != nil {
		return "", err
	}
	return FormatResults(results), nil
}

// FormatResults renders hits as numbered title/URL/content blocks.
func FormatResults(results []rag.SearchResult) string {
	if len(results) == 0 {
		return "No results found"
	}
	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. Title: %s\nURL: %s\nContent: %s\n\n", i+1, r.Title, r.URL, r.Content)
	}
	return sb.String()
}
