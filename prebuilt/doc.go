// Package prebuilt provides the corrective RAG pipeline.
//
// The pipeline retrieves candidate documents, grades each one for relevance
// in parallel, falls back to web search when any document is not relevant,
// and generates an answer from the remaining context:
//
//	START -> retrieve -> grade_documents -+-> generate -> END
//	                                      |      ^
//	                                      +-> websearch
//
// Capabilities are injected through CorrectiveRAGConfig:
//
//	crag, err := prebuilt.NewCorrectiveRAG(prebuilt.CorrectiveRAGConfig{
//		Retriever:   retriever.NewVectorRetriever(vectors, embedder),
//		Grader:      grader.New(llm),
//		WebSearcher: tavily,
//		Generator:   generator.New(llm),
//	})
//	if err != nil {
//		return err
//	}
//
//	res, err := crag.Invoke(ctx, "What is MCP?")
//	fmt.Println(res.Answer)
//
// # Policies
//
// Grading failures abort the run by default (GradeFailurePropagate);
// GradeFailureAsNotRelevant drops the failing document instead. An empty
// retrieval goes straight to generation unless EmptyRetrievalWebSearch is
// set. Web search replaces the graded documents unless WebSearchAppend is
// set.
package prebuilt
