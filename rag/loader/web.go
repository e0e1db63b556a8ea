// Package loader fetches web pages and turns them into rag.Documents.
package loader

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/smallnest/crag/log"
	"github.com/smallnest/crag/rag"
)

const defaultUserAgent = "crag-loader/1.0"

// WebLoader downloads HTML pages and extracts their readable text.
type WebLoader struct {
	client   *resty.Client
	metadata map[string]any
}

// WebLoaderOption configures the WebLoader
type WebLoaderOption func(*WebLoader)

// WithMetadata sets additional metadata for loaded documents
func WithMetadata(metadata map[string]any) WebLoaderOption {
	return func(l *WebLoader) {
		maps.Copy(l.metadata, metadata)
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) WebLoaderOption {
	return func(l *WebLoader) {
		l.client.SetTimeout(d)
	}
}

// WithUserAgent overrides the User-Agent header
func WithUserAgent(ua string) WebLoaderOption {
	return func(l *WebLoader) {
		l.client.SetHeader("User-Agent", ua)
	}
}

// NewWebLoader creates a new WebLoader
func NewWebLoader(opts ...WebLoaderOption) *WebLoader {
	l := &WebLoader{
		client: resty.New().
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", defaultUserAgent),
		metadata: make(map[string]any),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fetches every URL in order and returns one document per page.
// The first failing URL aborts the load.
func (l *WebLoader) Load(ctx context.Context, urls []string) ([]rag.Document, error) {
	docs := make([]rag.Document, 0, len(urls))
	for _, u := range urls {
		doc, err := l.LoadURL(ctx, u)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// LoadURL fetches a single page.
func (l *WebLoader) LoadURL(ctx context.Context, url string) (rag.Document, error) {
	resp, err := l.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return rag.Document{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.IsError() {
		return rag.Document{}, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode())
	}

	title, text, err := ExtractText(resp.Body())
	if err != nil {
		return rag.Document{}, fmt.Errorf("parse %s: %w", url, err)
	}
	log.Debug("loaded %s (%d chars)", url, len(text))

	metadata := make(map[string]any, len(l.metadata)+2)
	maps.Copy(metadata, l.metadata)
	metadata["source"] = url
	metadata["title"] = title

	return rag.Document{
		ID:       url,
		Content:  text,
		Metadata: metadata,
	}, nil
}

// ExtractText returns the page title and the visible body text of an HTML
// document. Script, style and noscript elements are dropped and blank lines
// collapsed.
func ExtractText(html []byte) (title, text string, err error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", "", err
	}
	doc.Find("script, style, noscript, template").Remove()

	title = strings.TrimSpace(doc.Find("title").First().Text())

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var lines []string
	for line := range strings.SplitSeq(blockText(root), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return title, strings.Join(lines, "\n"), nil
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "header": true, "footer": true,
	"pre": true, "blockquote": true, "table": true, "ul": true, "ol": true,
}

// blockText is Selection.Text with a newline after block elements, so that
// paragraphs do not run into each other.
func blockText(s *goquery.Selection) string {
	var sb strings.Builder
	var walk func(*goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, c *goquery.Selection) {
			if goquery.NodeName(c) == "#text" {
				sb.WriteString(c.Text())
				return
			}
			walk(c)
			if blockElements[goquery.NodeName(c)] {
				sb.WriteByte('\n')
			}
		})
	}
	walk(s)
	return sb.String()
}
