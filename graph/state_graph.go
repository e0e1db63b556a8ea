package graph

import (
	"context"
	"fmt"
	"runtime/debug"
)

// StateGraph represents a state-based graph with compile-time type safety.
// The type parameter S is the state type, typically a struct. Every node
// receives the current state and returns the state that replaces it.
//
// Example usage:
//
//	type MyState struct {
//	    Count int
//	}
//
//	g := graph.NewStateGraph[MyState]()
//	g.AddNode("increment", "Increment counter", func(ctx context.Context, state MyState) (MyState, error) {
//	    state.Count++
//	    return state, nil
//	})
//	g.AddEdge("increment", graph.END)
//	g.SetEntryPoint("increment")
type StateGraph[S any] struct {
	// nodes is a map of node names to their corresponding nodes
	nodes map[string]TypedNode[S]

	// order keeps node insertion order for stable exports
	order []string

	// edges holds the unconditional connections between nodes
	edges []Edge

	// conditionalEdges maps a "From" node to its runtime router
	conditionalEdges map[string]ConditionalEdge[S]

	// entryPoint is the name of the entry point node in the graph
	entryPoint string
}

// NewStateGraph creates a new instance of StateGraph with type safety.
func NewStateGraph[S any]() *StateGraph[S] {
	return &StateGraph[S]{
		nodes:            make(map[string]TypedNode[S]),
		conditionalEdges: make(map[string]ConditionalEdge[S]),
	}
}

// AddNode adds a new node to the state graph with the given name, description and function.
func (g *StateGraph[S]) AddNode(name string, description string, fn func(ctx context.Context, state S) (S, error)) {
	if _, exists := g.nodes[name]; !exists {
		g.order = append(g.order, name)
	}
	g.nodes[name] = TypedNode[S]{
		Name:        name,
		Description: description,
		Function:    fn,
	}
}

// AddEdge adds a new edge to the state graph between the "from" and "to" nodes.
func (g *StateGraph[S]) AddEdge(from, to string) {
	g.edges = append(g.edges, Edge{
		From: from,
		To:   to,
	})
}

// AddConditionalEdges adds a conditional edge where the target node is
// determined at runtime. The condition returns a key of pathMap; pathMap
// may be nil, in which case the key is used as the node name.
//
// Example:
//
//	g.AddConditionalEdges("check", func(ctx context.Context, state MyState) string {
//	    if state.Count > 10 {
//	        return "high"
//	    }
//	    return "low"
//	}, map[string]string{"high": "alert", "low": graph.END})
func (g *StateGraph[S]) AddConditionalEdges(from string, condition func(ctx context.Context, state S) string, pathMap map[string]string) {
	g.conditionalEdges[from] = ConditionalEdge[S]{
		From:      from,
		Condition: condition,
		PathMap:   pathMap,
	}
}

// SetEntryPoint sets the entry point node name for the state graph.
func (g *StateGraph[S]) SetEntryPoint(name string) {
	g.entryPoint = name
}

// Compile validates the state graph and returns a StateRunnable instance.
func (g *StateGraph[S]) Compile() (*StateRunnable[S], error) {
	if g.entryPoint == "" {
		return nil, ErrEntryPointNotSet
	}
	if _, ok := g.nodes[g.entryPoint]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, g.entryPoint)
	}

	next := make(map[string]string, len(g.edges))
	for _, edge := range g.edges {
		if _, ok := g.nodes[edge.From]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, edge.From)
		}
		if _, ok := g.nodes[edge.To]; !ok && edge.To != END {
			return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, edge.To)
		}
		if _, dup := next[edge.From]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEdge, edge.From)
		}
		if _, dup := g.conditionalEdges[edge.From]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEdge, edge.From)
		}
		next[edge.From] = edge.To
	}

	for from, cond := range g.conditionalEdges {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, from)
		}
		for _, to := range cond.PathMap {
			if _, ok := g.nodes[to]; !ok && to != END {
				return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, to)
			}
		}
	}

	return &StateRunnable[S]{
		graph: g,
		next:  next,
	}, nil
}

// StateRunnable represents a compiled state graph that can be invoked with type safety.
type StateRunnable[S any] struct {
	graph  *StateGraph[S]
	next   map[string]string
	tracer *Tracer
}

// SetTracer sets a tracer for observability.
func (r *StateRunnable[S]) SetTracer(tracer *Tracer) {
	r.tracer = tracer
}

// GetTracer returns the current tracer.
func (r *StateRunnable[S]) GetTracer() *Tracer {
	return r.tracer
}

// Graph returns the graph the runnable was compiled from.
func (r *StateRunnable[S]) Graph() *StateGraph[S] {
	return r.graph
}

// Invoke executes the compiled state graph with the given input state.
// Nodes run one at a time on the calling goroutine. The first node error
// aborts the run and is returned wrapped with the node name.
func (r *StateRunnable[S]) Invoke(ctx context.Context, initialState S) (S, error) {
	var zero S
	state := initialState

	var graphSpan *TraceSpan
	if r.tracer != nil {
		graphSpan = r.tracer.StartSpan(ctx, TraceEventGraphStart, "graph")
		ctx = ContextWithSpan(ctx, graphSpan)
	}

	current := r.graph.entryPoint
	for current != END {
		if err := ctx.Err(); err != nil {
			r.endGraph(ctx, graphSpan, state, err)
			return zero, err
		}

		node, ok := r.graph.nodes[current]
		if !ok {
			err := fmt.Errorf("%w: %s", ErrNodeNotFound, current)
			r.endGraph(ctx, graphSpan, state, err)
			return zero, err
		}

		result, err := r.runNode(ctx, node, state)
		if err != nil {
			err = fmt.Errorf("error in node %s: %w", current, err)
			r.endGraph(ctx, graphSpan, state, err)
			return zero, err
		}
		state = result

		nextNode, err := r.nextNode(ctx, current, state)
		if err != nil {
			r.endGraph(ctx, graphSpan, state, err)
			return zero, err
		}
		if r.tracer != nil {
			r.tracer.TraceEdgeTraversal(ctx, current, nextNode)
		}
		current = nextNode
	}

	r.endGraph(ctx, graphSpan, state, nil)
	return state, nil
}

func (r *StateRunnable[S]) runNode(ctx context.Context, node TypedNode[S], state S) (result S, err error) {
	var span *TraceSpan
	if r.tracer != nil {
		span = r.tracer.StartSpan(ctx, TraceEventNodeStart, node.Name)
		ctx = ContextWithSpan(ctx, span)
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v\n%s", p, debug.Stack())
		}
		if span != nil {
			r.tracer.EndSpan(ctx, span, result, err)
		}
	}()

	return node.Function(ctx, state)
}

// nextNode determines the successor of a node from its conditional edge or
// its static edge.
func (r *StateRunnable[S]) nextNode(ctx context.Context, from string, state S) (string, error) {
	if cond, ok := r.graph.conditionalEdges[from]; ok {
		key := cond.Condition(ctx, state)
		to, ok := cond.resolve(key)
		if !ok {
			return "", fmt.Errorf("%w: %q from %s", ErrInvalidRoute, key, from)
		}
		if _, exists := r.graph.nodes[to]; !exists && to != END {
			return "", fmt.Errorf("%w: %s", ErrNodeNotFound, to)
		}
		return to, nil
	}

	if to, ok := r.next[from]; ok {
		return to, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoOutgoingEdge, from)
}

func (r *StateRunnable[S]) endGraph(ctx context.Context, span *TraceSpan, state S, err error) {
	if r.tracer != nil && span != nil {
		r.tracer.EndSpan(ctx, span, state, err)
	}
}
