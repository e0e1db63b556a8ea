package prebuilt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smallnest/crag/graph"
	"github.com/smallnest/crag/log"
	"github.com/smallnest/crag/rag"
)

// Defaults used when the matching CorrectiveRAGConfig field is zero.
const (
	DefaultTopK          = 4
	DefaultMaxWebResults = 3
)

// WebSearchSource is the "source" metadata of the synthetic web document.
const WebSearchSource = "web_search"

// CorrectiveRAGConfig holds the capabilities and policies of a corrective
// RAG pipeline. Retriever, Grader, WebSearcher and Generator are required.
type CorrectiveRAGConfig struct {
	Retriever   rag.Retriever
	Grader      rag.Grader
	WebSearcher rag.WebSearcher
	Generator   rag.Generator

	// TopK is the number of documents retrieved per question.
	TopK int
	// MaxWebResults bounds the number of web search hits.
	MaxWebResults int
	// GradeConcurrency bounds in-flight grader calls; 0 means one per document.
	GradeConcurrency int
	// SequentialGrading grades one document at a time.
	SequentialGrading bool

	GradeFailure   GradeFailurePolicy
	EmptyRetrieval EmptyRetrievalPolicy
	WebSearchMode  WebSearchMode

	// Logger defaults to the package-level logger.
	Logger log.Logger
	// Tracer, when set, receives graph, node and edge spans.
	Tracer *graph.Tracer
}

// CorrectiveRAG is a compiled retrieve, grade, websearch, generate pipeline.
//
//	START -> retrieve -> grade_documents -> websearch -> generate -> END
//	                                     \_________________^
type CorrectiveRAG struct {
	cfg      CorrectiveRAGConfig
	logger   log.Logger
	runnable *graph.StateRunnable[GraphState]
}

// NewCorrectiveRAG validates cfg, fills defaults and compiles the graph.
func NewCorrectiveRAG(cfg CorrectiveRAGConfig) (*CorrectiveRAG, error) {
	if cfg.Retriever == nil {
		return nil, errors.New("retriever is required for corrective RAG")
	}
	if cfg.Grader == nil {
		return nil, errors.New("grader is required for corrective RAG")
	}
	if cfg.WebSearcher == nil {
		return nil, errors.New("web searcher is required for corrective RAG")
	}
	if cfg.Generator == nil {
		return nil, errors.New("generator is required for corrective RAG")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MaxWebResults <= 0 {
		cfg.MaxWebResults = DefaultMaxWebResults
	}

	c := &CorrectiveRAG{cfg: cfg, logger: cfg.Logger}
	if c.logger == nil {
		c.logger = log.GetDefaultLogger()
	}

	workflow := graph.NewStateGraph[GraphState]()
	workflow.AddNode(NodeRetrieve, "Retrieve candidate documents from the vector index", c.Retrieve)
	workflow.AddNode(NodeGradeDocuments, "Grade every document for relevance in parallel", c.GradeDocuments)
	workflow.AddNode(NodeWebSearch, "Replace the context with web search results", c.WebSearch)
	workflow.AddNode(NodeGenerate, "Generate the answer from the context", c.Generate)

	workflow.SetEntryPoint(NodeRetrieve)
	workflow.AddEdge(NodeRetrieve, NodeGradeDocuments)
	workflow.AddConditionalEdges(NodeGradeDocuments, func(ctx context.Context, state GraphState) string {
		return c.decide(state).String()
	}, map[string]string{
		NodeWebSearch: NodeWebSearch,
		NodeGenerate:  NodeGenerate,
	})
	workflow.AddEdge(NodeWebSearch, NodeGenerate)
	workflow.AddEdge(NodeGenerate, graph.END)

	runnable, err := workflow.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile corrective RAG graph: %w", err)
	}
	if cfg.Tracer != nil {
		runnable.SetTracer(cfg.Tracer)
	}
	c.runnable = runnable
	return c, nil
}

// Runnable returns the compiled graph.
func (c *CorrectiveRAG) Runnable() *graph.StateRunnable[GraphState] {
	return c.runnable
}

// Graph returns the graph definition, for example to render it with
// graph.NewExporter.
func (c *CorrectiveRAG) Graph() *graph.StateGraph[GraphState] {
	return c.runnable.Graph()
}

// Invoke answers question. Any capability failure aborts the run and no
// answer is returned.
func (c *CorrectiveRAG) Invoke(ctx context.Context, question string) (*Result, error) {
	final, err := c.runnable.Invoke(ctx, GraphState{Question: question})
	if err != nil {
		return nil, err
	}

	route := DecideToGenerate(final)
	return &Result{
		Question:  final.Question,
		Answer:    final.Generation,
		Documents: final.Documents,
		WebSearch: route == RouteWebSearch,
		Route:     route,
	}, nil
}

// Retrieve fetches the top-k documents for the question. An empty result is
// not an error.
func (c *CorrectiveRAG) Retrieve(ctx context.Context, state GraphState) (GraphState, error) {
	c.logger.Info("retrieve")
	docs, err := c.cfg.Retriever.Retrieve(ctx, state.Question, c.cfg.TopK)
	if err != nil {
		return state, fmt.Errorf("retrieve documents: %w", err)
	}
	c.logger.Debug("retrieved %d documents", len(docs))
	state.Documents = docs
	return state, nil
}

// GradeDocuments keeps the documents judged relevant, in their original
// order, and sets WebSearch when any document was judged not relevant.
func (c *CorrectiveRAG) GradeDocuments(ctx context.Context, state GraphState) (GraphState, error) {
	c.logger.Info("check document relevance to question")

	var (
		kept      []rag.Document
		webSearch bool
		err       error
	)
	if c.cfg.SequentialGrading {
		kept, webSearch, err = GradeSequential(ctx, c.cfg.Grader, state.Question, state.Documents, c.cfg.GradeFailure, c.logger)
	} else {
		kept, webSearch, err = GradeParallel(ctx, c.cfg.Grader, state.Question, state.Documents, c.cfg.GradeConcurrency, c.cfg.GradeFailure, c.logger)
	}
	if err != nil {
		return state, err
	}

	c.logger.Debug("grade: %d of %d documents relevant", len(kept), len(state.Documents))

	if len(state.Documents) == 0 && c.cfg.EmptyRetrieval == EmptyRetrievalWebSearch {
		c.logger.Info("no documents retrieved, forcing web search")
		webSearch = true
	}

	state.Documents = kept
	state.WebSearch = webSearch
	return state, nil
}

// WebSearch searches the web for the question and wraps all hits, joined by
// newlines, into one document. Zero hits still yield one (empty) document.
func (c *CorrectiveRAG) WebSearch(ctx context.Context, state GraphState) (GraphState, error) {
	c.logger.Info("web search")
	results, err := c.cfg.WebSearcher.Search(ctx, state.Question, c.cfg.MaxWebResults)
	if err != nil {
		return state, fmt.Errorf("web search: %w", err)
	}

	webDoc := WebSearchDocument(results)
	switch c.cfg.WebSearchMode {
	case WebSearchAppend:
		docs := make([]rag.Document, 0, len(state.Documents)+1)
		docs = append(docs, state.Documents...)
		state.Documents = append(docs, webDoc)
	default:
		state.Documents = []rag.Document{webDoc}
	}
	return state, nil
}

// Generate joins the document contents into a context and asks the
// generator for the answer.
func (c *CorrectiveRAG) Generate(ctx context.Context, state GraphState) (GraphState, error) {
	c.logger.Info("generate")
	answer, err := c.cfg.Generator.Generate(ctx, state.Question, rag.JoinContents(state.Documents, "\n\n"))
	if err != nil {
		return state, fmt.Errorf("generate: %w", err)
	}
	state.Generation = answer
	return state, nil
}

func (c *CorrectiveRAG) decide(state GraphState) Route {
	c.logger.Info("assess graded documents")
	route := DecideToGenerate(state)
	if route == RouteWebSearch {
		c.logger.Info("decision: not all documents are relevant to question, include web search")
	} else {
		c.logger.Info("decision: generate")
	}
	return route
}

// DecideToGenerate routes to web search iff grading flagged it.
func DecideToGenerate(state GraphState) Route {
	if state.WebSearch {
		return RouteWebSearch
	}
	return RouteGenerate
}

// WebSearchDocument wraps search hits into a single document whose content
// is the hit contents joined by newlines.
func WebSearchDocument(results []rag.SearchResult) rag.Document {
	contents := make([]string, len(results))
	urls := make([]string, 0, len(results))
	for i, r := range results {
		contents[i] = r.Content
		if r.URL != "" {
			urls = append(urls, r.URL)
		}
	}

	doc := rag.Document{
		Content:  strings.Join(contents, "\n"),
		Metadata: map[string]any{"source": WebSearchSource},
	}
	if len(urls) > 0 {
		doc.Metadata["urls"] = urls
	}
	return doc
}
