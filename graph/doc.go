// Package graph provides a small typed state machine for LLM workflows.
//
// A StateGraph[S] is a set of named nodes, each a function from S to S,
// joined by plain edges and conditional edges. Compile validates the
// topology and returns a StateRunnable[S] that walks the graph from the
// entry point until it reaches END.
//
// # Core Concepts
//
// ## Nodes and Edges
// Every node has at most one outgoing edge. A plain edge always moves to the
// same target. A conditional edge calls a routing function on the current
// state and looks the returned key up in its path map; an unknown key stops
// the run with ErrInvalidRoute.
//
// ## Errors
// A node error ends the run immediately. It is returned wrapped as
// "error in node <name>: <cause>", so errors.Is and errors.As still see the
// original error.
//
// ## Tracing
// A Tracer attached with SetTracer receives graph, node and edge events.
// Hooks registered with AddHook are called synchronously, in order.
//
// ## Parallel helpers
// MapParallel runs a function over a slice with bounded concurrency and
// keeps results in input order. MapSequential is its one-at-a-time twin.
//
// # Example Usage
//
//	type state struct{ Steps []string }
//
//	g := graph.NewStateGraph[state]()
//	g.AddNode("a", "first step", func(ctx context.Context, s state) (state, error) {
//		s.Steps = append(s.Steps, "a")
//		return s, nil
//	})
//	g.AddNode("b", "second step", func(ctx context.Context, s state) (state, error) {
//		s.Steps = append(s.Steps, "b")
//		return s, nil
//	})
//	g.SetEntryPoint("a")
//	g.AddEdge("a", "b")
//	g.AddEdge("b", graph.END)
//
//	runnable, err := g.Compile()
//	if err != nil {
//		return err
//	}
//	out, err := runnable.Invoke(ctx, state{})
//
// # Visualization
//
//	fmt.Println(graph.NewExporter(g).DrawMermaid())
package graph
