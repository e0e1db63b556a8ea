package prebuilt

import "github.com/smallnest/crag/rag"

// Node names of the corrective RAG graph.
const (
	NodeRetrieve       = "retrieve"
	NodeGradeDocuments = "grade_documents"
	NodeWebSearch      = "websearch"
	NodeGenerate       = "generate"
)

// GraphState is the state passed between corrective RAG nodes.
type GraphState struct {
	// Question is set at entry and never modified.
	Question string `json:"question"`

	// Documents is replaced wholesale by retrieve, grade_documents and
	// websearch.
	Documents []rag.Document `json:"documents"`

	// WebSearch is written by grade_documents and read by the router.
	WebSearch bool `json:"web_search"`

	// Generation holds the answer produced by generate.
	Generation string `json:"generation"`
}

// Route is the decision taken after grading.
type Route int

const (
	RouteGenerate Route = iota
	RouteWebSearch
)

// String returns the name of the node the route leads to.
func (r Route) String() string {
	switch r {
	case RouteWebSearch:
		return NodeWebSearch
	default:
		return NodeGenerate
	}
}

// GradeFailurePolicy decides what a failing grader call means.
type GradeFailurePolicy int

const (
	// GradeFailurePropagate aborts grading with the first error once every
	// in-flight call has returned.
	GradeFailurePropagate GradeFailurePolicy = iota

	// GradeFailureAsNotRelevant drops the document and forces web search.
	GradeFailureAsNotRelevant
)

// EmptyRetrievalPolicy decides the route when retrieval returns nothing.
type EmptyRetrievalPolicy int

const (
	// EmptyRetrievalGenerate generates from an empty context. No document
	// was judged not relevant, so web search is not triggered.
	EmptyRetrievalGenerate EmptyRetrievalPolicy = iota

	// EmptyRetrievalWebSearch treats an empty retrieval as insufficient.
	EmptyRetrievalWebSearch
)

// WebSearchMode decides how web results combine with graded documents.
type WebSearchMode int

const (
	// WebSearchReplace discards the graded documents and keeps only the
	// web document.
	WebSearchReplace WebSearchMode = iota

	// WebSearchAppend keeps the relevant documents and appends the web
	// document after them.
	WebSearchAppend
)

// Result is the outcome of one corrective RAG invocation.
type Result struct {
	Question string
	Answer   string
	// Documents are the documents the answer was generated from.
	Documents []rag.Document
	// WebSearch reports whether the websearch node ran.
	WebSearch bool
	Route     Route
}
