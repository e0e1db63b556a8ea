package prebuilt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smallnest/crag/graph"
	"github.com/smallnest/crag/log"
	"github.com/smallnest/crag/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type staticRetriever struct {
	docs []rag.Document
	err  error
	k    int
}

func (r *staticRetriever) Retrieve(_ context.Context, _ string, k int) ([]rag.Document, error) {
	r.k = k
	if r.err != nil {
		return nil, r.err
	}
	return r.docs, nil
}

// contentGrader grades by document content. Unknown documents are relevant.
type contentGrader struct {
	notRelevant map[string]bool
	failing     map[string]error
	delay       time.Duration

	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (g *contentGrader) Grade(_ context.Context, _ string, document string) (rag.Grade, error) {
	g.calls.Add(1)
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if g.delay > 0 {
		time.Sleep(g.delay)
	}

	if err := g.failing[document]; err != nil {
		return rag.GradeNotRelevant, err
	}
	if g.notRelevant[document] {
		return rag.GradeNotRelevant, nil
	}
	return rag.GradeRelevant, nil
}

type recordingSearcher struct {
	results    []rag.SearchResult
	err        error
	calls      int
	maxResults int
}

func (s *recordingSearcher) Search(_ context.Context, _ string, maxResults int) ([]rag.SearchResult, error) {
	s.calls++
	s.maxResults = maxResults
	return s.results, s.err
}

type recordingGenerator struct {
	mu       sync.Mutex
	question string
	context  string
	calls    int
	err      error
}

func (g *recordingGenerator) Generate(_ context.Context, question, context string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.question = question
	g.context = context
	if g.err != nil {
		return "", g.err
	}
	return "answer: " + question, nil
}

func fourDocs() []rag.Document {
	return []rag.Document{
		{Content: "MCP is an open protocol."},
		{Content: "MCP connects models to tools."},
		{Content: "MCP was introduced by Anthropic."},
		{Content: "MCP servers expose resources."},
	}
}

type fixture struct {
	retriever *staticRetriever
	grader    *contentGrader
	searcher  *recordingSearcher
	generator *recordingGenerator
}

func newFixture(docs []rag.Document) *fixture {
	return &fixture{
		retriever: &staticRetriever{docs: docs},
		grader:    &contentGrader{notRelevant: map[string]bool{}, failing: map[string]error{}},
		searcher: &recordingSearcher{results: []rag.SearchResult{
			{Title: "one", URL: "https://example.com/1", Content: "web result one"},
			{Title: "two", URL: "https://example.com/2", Content: "web result two"},
		}},
		generator: &recordingGenerator{},
	}
}

func (f *fixture) build(t *testing.T, mutate func(*CorrectiveRAGConfig)) *CorrectiveRAG {
	t.Helper()
	cfg := CorrectiveRAGConfig{
		Retriever:   f.retriever,
		Grader:      f.grader,
		WebSearcher: f.searcher,
		Generator:   f.generator,
		Logger:      &log.NoOpLogger{},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewCorrectiveRAG(cfg)
	require.NoError(t, err)
	return c
}

func TestCorrectiveRAG_AllRelevantGeneratesDirectly(t *testing.T) {
	f := newFixture(fourDocs())
	c := f.build(t, nil)

	res, err := c.Invoke(context.Background(), "What is MCP?")
	require.NoError(t, err)

	assert.Equal(t, RouteGenerate, res.Route)
	assert.False(t, res.WebSearch)
	assert.Equal(t, 0, f.searcher.calls)
	assert.Equal(t, int32(4), f.grader.calls.Load())
	assert.Equal(t, DefaultTopK, f.retriever.k)
	assert.Len(t, res.Documents, 4)

	assert.Equal(t, "What is MCP?", f.generator.question)
	assert.Equal(t, rag.JoinContents(fourDocs(), "\n\n"), f.generator.context)
	assert.Equal(t, "answer: What is MCP?", res.Answer)
	assert.Equal(t, "What is MCP?", res.Question)
}

func TestCorrectiveRAG_OneIrrelevantTriggersWebSearch(t *testing.T) {
	f := newFixture(fourDocs())
	f.grader.notRelevant["MCP was introduced by Anthropic."] = true
	c := f.build(t, nil)

	res, err := c.Invoke(context.Background(), "What is MCP?")
	require.NoError(t, err)

	assert.Equal(t, RouteWebSearch, res.Route)
	assert.True(t, res.WebSearch)
	assert.Equal(t, 1, f.searcher.calls)
	assert.Equal(t, DefaultMaxWebResults, f.searcher.maxResults)

	require.Len(t, res.Documents, 1)
	assert.Equal(t, "web result one\nweb result two", res.Documents[0].Content)
	assert.Equal(t, WebSearchSource, res.Documents[0].Metadata["source"])
	assert.Equal(t, "web result one\nweb result two", f.generator.context)
}

func TestCorrectiveRAG_EmptyRetrieval(t *testing.T) {
	t.Run("generate with empty context", func(t *testing.T) {
		f := newFixture(nil)
		c := f.build(t, nil)

		res, err := c.Invoke(context.Background(), "What is MCP?")
		require.NoError(t, err)

		assert.Equal(t, RouteGenerate, res.Route)
		assert.Equal(t, 0, f.searcher.calls)
		assert.Equal(t, int32(0), f.grader.calls.Load())
		assert.Empty(t, res.Documents)
		assert.Equal(t, 1, f.generator.calls)
		assert.Equal(t, "", f.generator.context)
	})

	t.Run("force web search", func(t *testing.T) {
		f := newFixture(nil)
		c := f.build(t, func(cfg *CorrectiveRAGConfig) {
			cfg.EmptyRetrieval = EmptyRetrievalWebSearch
		})

		res, err := c.Invoke(context.Background(), "What is MCP?")
		require.NoError(t, err)

		assert.Equal(t, RouteWebSearch, res.Route)
		assert.Equal(t, 1, f.searcher.calls)
		require.Len(t, res.Documents, 1)
		assert.Equal(t, "web result one\nweb result two", f.generator.context)
	})
}

func TestCorrectiveRAG_WebSearchYieldsOneDocument(t *testing.T) {
	for _, hits := range []int{0, 1, 5} {
		t.Run(fmt.Sprintf("%d hits", hits), func(t *testing.T) {
			f := newFixture(fourDocs())
			f.grader.notRelevant["MCP is an open protocol."] = true
			f.searcher.results = nil
			for i := range hits {
				f.searcher.results = append(f.searcher.results, rag.SearchResult{Content: fmt.Sprintf("hit %d", i)})
			}
			c := f.build(t, nil)

			res, err := c.Invoke(context.Background(), "q")
			require.NoError(t, err)
			require.Len(t, res.Documents, 1)
			assert.Equal(t, strings.Count(res.Documents[0].Content, "\n"), max(hits-1, 0))
		})
	}
}

func TestCorrectiveRAG_WebSearchAppend(t *testing.T) {
	f := newFixture(fourDocs())
	f.grader.notRelevant["MCP servers expose resources."] = true
	c := f.build(t, func(cfg *CorrectiveRAGConfig) {
		cfg.WebSearchMode = WebSearchAppend
	})

	res, err := c.Invoke(context.Background(), "What is MCP?")
	require.NoError(t, err)

	require.Len(t, res.Documents, 4)
	assert.Equal(t, fourDocs()[:3], res.Documents[:3])
	assert.Equal(t, WebSearchSource, res.Documents[3].Metadata["source"])
	assert.Equal(t, []string{"https://example.com/1", "https://example.com/2"}, res.Documents[3].Metadata["urls"])
}

func TestCorrectiveRAG_GradeFailurePropagates(t *testing.T) {
	boom := errors.New("rate limited")
	f := newFixture(fourDocs())
	f.grader.failing["MCP connects models to tools."] = boom
	c := f.build(t, nil)

	res, err := c.Invoke(context.Background(), "What is MCP?")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "error in node grade_documents")

	// siblings are not cancelled
	assert.Equal(t, int32(4), f.grader.calls.Load())
	assert.Equal(t, 0, f.searcher.calls)
	assert.Equal(t, 0, f.generator.calls)
}

func TestCorrectiveRAG_GradeFailureAsNotRelevant(t *testing.T) {
	f := newFixture(fourDocs())
	f.grader.failing["MCP connects models to tools."] = errors.New("rate limited")
	c := f.build(t, func(cfg *CorrectiveRAGConfig) {
		cfg.GradeFailure = GradeFailureAsNotRelevant
	})

	res, err := c.Invoke(context.Background(), "What is MCP?")
	require.NoError(t, err)
	assert.Equal(t, RouteWebSearch, res.Route)
	assert.Equal(t, 1, f.searcher.calls)
}

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) add(level, format string, v ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+" "+fmt.Sprintf(format, v...))
}

func (l *recordingLogger) Debug(format string, v ...any) { l.add("DEBUG", format, v...) }
func (l *recordingLogger) Info(format string, v ...any) { l.add("INFO", format, v...) }
func (l *recordingLogger) Warn(format string, v ...any) { l.add("WARN", format, v...) }
func (l *recordingLogger) Error(format string, v ...any) { l.add("ERROR", format, v...) }

func (l *recordingLogger) joined() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.lines, "\n")
}

func TestCorrectiveRAG_GradingUsesConfiguredLogger(t *testing.T) {
	global := &recordingLogger{}
	previous := log.GetDefaultLogger()
	log.SetDefaultLogger(global)
	t.Cleanup(func() { log.SetDefaultLogger(previous) })

	for _, sequential := range []bool{false, true} {
		t.Run(fmt.Sprintf("sequential=%v", sequential), func(t *testing.T) {
			f := newFixture(fourDocs())
			f.grader.failing["MCP connects models to tools."] = errors.New("rate limited")
			pipelineLog := &recordingLogger{}
			c := f.build(t, func(cfg *CorrectiveRAGConfig) {
				cfg.GradeFailure = GradeFailureAsNotRelevant
				cfg.SequentialGrading = sequential
				cfg.Logger = pipelineLog
			})

			_, err := c.Invoke(context.Background(), "What is MCP?")
			require.NoError(t, err)

			out := pipelineLog.joined()
			assert.Contains(t, out, "WARN grade failed, treating document as not relevant: rate limited")
			assert.Contains(t, out, "DEBUG grade: document relevant")
			assert.Contains(t, out, "DEBUG grade: document not relevant")
		})
	}

	assert.Empty(t, global.joined())
}

func TestCorrectiveRAG_CapabilityErrors(t *testing.T) {
	boom := errors.New("unavailable")
	tests := []struct {
		name   string
		node   string
		mutate func(f *fixture)
	}{
		{
			name:   "retriever",
			node:   NodeRetrieve,
			mutate: func(f *fixture) { f.retriever.err = boom },
		},
		{
			name: "web search",
			node: NodeWebSearch,
			mutate: func(f *fixture) {
				f.grader.notRelevant["MCP is an open protocol."] = true
				f.searcher.err = boom
			},
		},
		{
			name:   "generator",
			node:   NodeGenerate,
			mutate: func(f *fixture) { f.generator.err = boom },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(fourDocs())
			tt.mutate(f)
			c := f.build(t, nil)

			_, err := c.Invoke(context.Background(), "What is MCP?")
			require.ErrorIs(t, err, boom)
			assert.Contains(t, err.Error(), "error in node "+tt.node)
		})
	}
}

func TestCorrectiveRAG_GradesConcurrently(t *testing.T) {
	f := newFixture(fourDocs())
	f.grader.delay = 50 * time.Millisecond
	c := f.build(t, nil)

	_, err := c.Invoke(context.Background(), "What is MCP?")
	require.NoError(t, err)
	assert.Equal(t, int32(4), f.grader.peak.Load())
}

func TestCorrectiveRAG_GradeConcurrencyLimit(t *testing.T) {
	f := newFixture(fourDocs())
	f.grader.delay = 20 * time.Millisecond
	c := f.build(t, func(cfg *CorrectiveRAGConfig) {
		cfg.GradeConcurrency = 2
	})

	_, err := c.Invoke(context.Background(), "What is MCP?")
	require.NoError(t, err)
	assert.LessOrEqual(t, f.grader.peak.Load(), int32(2))
}

func TestCorrectiveRAG_SequentialGrading(t *testing.T) {
	f := newFixture(fourDocs())
	f.grader.delay = 5 * time.Millisecond
	f.grader.notRelevant["MCP is an open protocol."] = true
	c := f.build(t, func(cfg *CorrectiveRAGConfig) {
		cfg.SequentialGrading = true
	})

	res, err := c.Invoke(context.Background(), "What is MCP?")
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.grader.peak.Load())
	assert.Equal(t, RouteWebSearch, res.Route)
}

func TestNewCorrectiveRAG_RequiresCapabilities(t *testing.T) {
	f := newFixture(nil)
	full := CorrectiveRAGConfig{
		Retriever:   f.retriever,
		Grader:      f.grader,
		WebSearcher: f.searcher,
		Generator:   f.generator,
	}

	missing := []func(*CorrectiveRAGConfig){
		func(c *CorrectiveRAGConfig) { c.Retriever = nil },
		func(c *CorrectiveRAGConfig) { c.Grader = nil },
		func(c *CorrectiveRAGConfig) { c.WebSearcher = nil },
		func(c *CorrectiveRAGConfig) { c.Generator = nil },
	}
	for _, drop := range missing {
		cfg := full
		drop(&cfg)
		_, err := NewCorrectiveRAG(cfg)
		assert.Error(t, err)
	}

	_, err := NewCorrectiveRAG(full)
	assert.NoError(t, err)
}

func TestDecideToGenerate(t *testing.T) {
	assert.Equal(t, RouteWebSearch, DecideToGenerate(GraphState{WebSearch: true}))
	assert.Equal(t, RouteGenerate, DecideToGenerate(GraphState{}))
	assert.Equal(t, NodeWebSearch, RouteWebSearch.String())
	assert.Equal(t, NodeGenerate, RouteGenerate.String())
}

func TestGradeParallelMatchesSequential(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 16).Draw(t, "n")
		relevant := rapid.SliceOfN(rapid.Bool(), n, n).Draw(t, "relevant")
		limit := rapid.IntRange(0, 5).Draw(t, "limit")

		docs := make([]rag.Document, n)
		notRelevant := make(map[string]bool)
		for i := range docs {
			docs[i] = rag.Document{Content: fmt.Sprintf("doc-%d", i)}
			if !relevant[i] {
				notRelevant[docs[i].Content] = true
			}
		}
		grader := &contentGrader{notRelevant: notRelevant}

		parKept, parWeb, err := GradeParallel(context.Background(), grader, "q", docs, limit, GradeFailurePropagate, &log.NoOpLogger{})
		if err != nil {
			t.Fatalf("parallel: %v", err)
		}
		seqKept, seqWeb, err := GradeSequential(context.Background(), grader, "q", docs, GradeFailurePropagate, &log.NoOpLogger{})
		if err != nil {
			t.Fatalf("sequential: %v", err)
		}

		if parWeb != seqWeb {
			t.Fatalf("web search flag differs: parallel=%v sequential=%v", parWeb, seqWeb)
		}
		if len(parKept) != len(seqKept) {
			t.Fatalf("kept count differs: %d vs %d", len(parKept), len(seqKept))
		}
		for i := range parKept {
			if parKept[i].Content != seqKept[i].Content {
				t.Fatalf("kept[%d] differs: %q vs %q", i, parKept[i].Content, seqKept[i].Content)
			}
		}

		wantWeb := len(notRelevant) > 0
		if parWeb != wantWeb {
			t.Fatalf("web search = %v, want %v", parWeb, wantWeb)
		}
		if len(parKept) != n-len(notRelevant) {
			t.Fatalf("kept %d documents, want %d", len(parKept), n-len(notRelevant))
		}
	})
}

func TestCorrectiveRAG_Tracing(t *testing.T) {
	var mu sync.Mutex
	var edges []string
	var nodes []string

	tracer := graph.NewTracer()
	tracer.AddHook(graph.TraceHookFunc(func(_ context.Context, span *graph.TraceSpan) {
		mu.Lock()
		defer mu.Unlock()
		switch span.Event {
		case graph.TraceEventEdgeTraversal:
			edges = append(edges, span.FromNode+"->"+span.ToNode)
		case graph.TraceEventNodeEnd:
			nodes = append(nodes, span.NodeName)
		}
	}))

	f := newFixture(fourDocs())
	f.grader.notRelevant["MCP is an open protocol."] = true
	c := f.build(t, func(cfg *CorrectiveRAGConfig) {
		cfg.Tracer = tracer
	})

	_, err := c.Invoke(context.Background(), "What is MCP?")
	require.NoError(t, err)

	assert.Equal(t, []string{NodeRetrieve, NodeGradeDocuments, NodeWebSearch, NodeGenerate}, nodes)
	assert.Equal(t, []string{
		"retrieve->grade_documents",
		"grade_documents->websearch",
		"websearch->generate",
		"generate->END",
	}, edges)
	assert.Same(t, tracer, c.Runnable().GetTracer())
}

func TestCorrectiveRAG_Mermaid(t *testing.T) {
	c := newFixture(nil).build(t, nil)

	out := graph.NewExporter(c.Graph()).DrawMermaid()
	assert.Contains(t, out, "START --> retrieve")
	assert.Contains(t, out, "retrieve --> grade_documents")
	assert.Contains(t, out, "grade_documents -.->|generate| generate")
	assert.Contains(t, out, "grade_documents -.->|websearch| websearch")
	assert.Contains(t, out, "websearch --> generate")
	assert.Contains(t, out, "generate --> END")
}
