// Package tool provides the web search providers used by the corrective RAG
// pipeline.
//
// Both providers implement rag.WebSearcher and also expose Name, Description
// and Call so they can be handed to a langchaingo agent as a tools.Tool.
//
//	searcher, err := tool.NewTavilySearch(os.Getenv("TAVILY_API_KEY"))
//	if err != nil {
//		return err
//	}
//	results, err := searcher.Search(ctx, "What is MCP?", 3)
//
// A search that returns no hits yields an empty slice and no error.
package tool
