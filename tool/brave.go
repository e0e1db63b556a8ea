package tool

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/smallnest/crag/rag"
)

// BraveSearch is a tool that uses the Brave Search API to search the web.
type BraveSearch struct {
	APIKey  string
	Count   int
	Country string
	Lang    string
	client  *resty.Client
}

var _ rag.WebSearcher = (*BraveSearch)(nil)

type BraveOption func(*braveOptions)

type braveOptions struct {
	baseURL string
	count   int
	country string
	lang    string
	timeout time.Duration
}

// WithBraveBaseURL sets the base URL for the Brave Search API.
func WithBraveBaseURL(baseURL string) BraveOption {
	return func(b *braveOptions) {
		b.baseURL = baseURL
	}
}

// WithBraveCount sets the default number of results (1-20).
func WithBraveCount(count int) BraveOption {
	return func(b *braveOptions) {
		b.count = clampCount(count)
	}
}

// WithBraveCountry sets the country code for search results (e.g., "US", "CN").
func WithBraveCountry(country string) BraveOption {
	return func(b *braveOptions) {
		b.country = country
	}
}

// WithBraveLang sets the language code for search results (e.g., "en", "zh").
func WithBraveLang(lang string) BraveOption {
	return func(b *braveOptions) {
		b.lang = lang
	}
}

// WithBraveTimeout sets the request timeout.
func WithBraveTimeout(d time.Duration) BraveOption {
	return func(b *braveOptions) {
		b.timeout = d
	}
}

func clampCount(count int) int {
	return min(max(count, 1), 20)
}

// NewBraveSearch creates a new BraveSearch tool.
func NewBraveSearch(apiKey string, opts ...BraveOption) (*BraveSearch, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("BRAVE_API_KEY not set")
	}

	o := braveOptions{
		baseURL: "https://api.search.brave.com/res/v1",
		count:   10,
		country: "US",
		lang:    "en",
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &BraveSearch{
		APIKey:  apiKey,
		Count:   o.count,
		Country: o.country,
		Lang:    o.lang,
		client:  newHTTPClient(o.baseURL, o.timeout).SetHeader("X-Subscription-Token", apiKey),
	}, nil
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// Search returns up to maxResults web hits; maxResults <= 0 uses Count.
func (b *BraveSearch) Search(ctx context.Context, query string, maxResults int) ([]rag.SearchResult, error) {
	count := b.Count
	if maxResults > 0 {
		count = clampCount(maxResults)
	}

	params := map[string]string{
		"q":     query,
		"count": strconv.Itoa(count),
	}
	if b.Country != "" {
		params["country"] = b.Country
	}
	if b.Lang != "" {
		params["search_lang"] = b.Lang
	}

	var out braveResponse
	resp, err := b.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&out).
		Get("/web/search")
	if err != nil {
		return nil, fmt.Errorf("brave search: %w", err)
	}
	if err := checkResponse("brave", resp); err != nil {
		return nil, err
	}

	results := make([]rag.SearchResult, 0, len(out.Web.Results))
	for _, r := range out.Web.Results {
		if len(results) == count {
			break
		}
		results = append(results, rag.SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Description,
		})
	}
	return results, nil
}

// Name returns the name of the tool.
func (b *BraveSearch) Name() string {
	return "Brave_Search"
}

// Description returns the description of the tool.
func (b *BraveSearch) Description() string {
	return "A privacy-focused search engine powered by Brave. " +
		"Useful for finding current information and answering questions. " +
		"Input should be a search query."
}

// Call executes the search and formats the results as text.
func (b *BraveSearch) Call(ctx context.Context, input string) (string, error) {
	results, err := b.Search(ctx, input, b.Count)
	if err != nil {
		return "", err
	}
	return FormatResults(results), nil
}
