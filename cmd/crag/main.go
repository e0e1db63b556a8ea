// Command crag answers questions with a corrective RAG pipeline.
//
//	crag ingest            # load, split and index the default corpus
//	crag ask "What is MCP?"
//	crag bench --runs 3    # time repeated invocations
//	crag graph             # print the pipeline as a Mermaid flowchart
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
