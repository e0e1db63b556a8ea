package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
	"github.com/smallnest/crag/metrics"
	"github.com/smallnest/crag/prebuilt"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	answerStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("69")).Padding(0, 1)
	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Italic(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB454"))
)

// renderHTML converts a markdown answer to sanitized HTML.
func renderHTML(answer string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(answer))

	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	unsafe := markdown.Render(doc, renderer)

	return string(bluemonday.UGCPolicy().SanitizeBytes(unsafe))
}

func printResult(w io.Writer, res *prebuilt.Result, format string, elapsed time.Duration) error {
	switch format {
	case "html":
		_, err := fmt.Fprintln(w, renderHTML(res.Answer))
		return err
	case "raw":
		_, err := fmt.Fprintln(w, res.Answer)
		return err
	case "text", "":
	default:
		return fmt.Errorf("unknown output format %q (want text, html or raw)", format)
	}

	fmt.Fprintln(w, titleStyle.Render("Q: "+res.Question))
	fmt.Fprintln(w, answerStyle.Render(strings.TrimSpace(res.Answer)))

	route := "answered from the vector index"
	if res.WebSearch {
		route = "answered with web search results"
	}
	fmt.Fprintln(w, detailStyle.Render(fmt.Sprintf("%s · %d context documents · %s",
		route, len(res.Documents), elapsed.Round(time.Millisecond))))
	return nil
}

func printNodeStats(w io.Writer, stats []metrics.NodeStat) {
	if len(stats) == 0 {
		return
	}
	fmt.Fprintln(w, titleStyle.Render("Per-node latency"))
	fmt.Fprintf(w, "  %-16s %5s %10s %10s %10s\n", "node", "runs", "avg", "min", "max")
	for _, s := range stats {
		fmt.Fprintf(w, "  %-16s %5d %10s %10s %10s\n", s.Node, s.Count,
			s.Avg().Round(time.Millisecond), s.Min.Round(time.Millisecond), s.Max.Round(time.Millisecond))
	}
}

// writeMetrics dumps the collector in the Prometheus text format. An empty
// path does nothing and "-" writes to stdout.
func writeMetrics(path string, stdout io.Writer, c *metrics.Collector) (err error) {
	switch path {
	case "":
		return nil
	case "-":
		return c.WriteText(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create metrics file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return c.WriteText(f)
}
