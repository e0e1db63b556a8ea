// Corrective RAG - retrieval augmented generation with a web search fallback
//
// crag answers questions from a local document index. Every retrieved
// document is graded for relevance by an LLM. When any document is judged
// irrelevant the pipeline runs a web search and adds the hits to the context
// before generating the answer.
//
//	START --> retrieve --> grade_documents --+--> generate --> END
//	                                        |        ^
//	                                        +--> websearch
//
// # Quick Start
//
// Install the command:
//
//	go install github.com/smallnest/crag/cmd/crag@latest
//
// Ingest the default pages and ask a question:
//
//	export GROQ_API_KEY=...
//	export OPENAI_API_KEY=...
//	export TAVILY_API_KEY=...
//	crag ingest
//	crag ask "What is MCP?"
//
// Library use:
//
//	c, err := prebuilt.NewCorrectiveRAG(prebuilt.CorrectiveRAGConfig{
//		Retriever:   retriever,
//		Grader:      grader.New(llm),
//		WebSearcher: search,
//		Generator:   generator.New(llm),
//	})
//	if err != nil {
//		return err
//	}
//	res, err := c.Invoke(ctx, "What is MCP?")
//
// # Package Structure
//
//   - graph: typed state graph, tracing, Mermaid export, bounded parallel map
//   - prebuilt: the corrective RAG pipeline built on graph
//   - rag: documents and capability interfaces, langchaingo adapters
//   - rag/cache: content-addressed embedding cache over a store.ByteStore
//   - rag/embedding, rag/grader, rag/generator: LLM backed capabilities
//   - rag/loader, ingest: fetch, split and index source pages
//   - rag/retriever, rag/store: similarity search backends
//   - store: ByteStore and its file, memory, redis, sqlite, postgres and lru backends
//   - tool: Tavily and Brave web search clients
//   - config: koanf based configuration from defaults, .env and environment
//   - metrics: Prometheus collector fed by graph trace events
//   - log: leveled logging interface backed by golog
//   - cmd/crag: the command line front end
package crag
