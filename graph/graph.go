package graph

import (
	"context"
	"errors"
)

const (
	// START is the implicit node that precedes the entry point.
	START = "START"

	// END is a special constant used to represent the end node in the graph.
	END = "END"
)

var (
	// ErrEntryPointNotSet is returned when the entry point of the graph is not set.
	ErrEntryPointNotSet = errors.New("entry point not set")

	// ErrNodeNotFound is returned when a node is not found in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNoOutgoingEdge is returned when no outgoing edge is found for a node.
	ErrNoOutgoingEdge = errors.New("no outgoing edge found for node")

	// ErrInvalidRoute is returned when a conditional edge selects a target
	// that is not part of its path map.
	ErrInvalidRoute = errors.New("conditional edge returned an unknown route")

	// ErrDuplicateEdge is returned by Compile when a node has more than one
	// outgoing edge. The graph runs one node at a time.
	ErrDuplicateEdge = errors.New("node has more than one outgoing edge")
)

// TypedNode represents a typed node in the graph.
type TypedNode[S any] struct {
	// Name is the unique identifier for the node.
	Name string

	// Description describes the functionality of the node.
	Description string

	// Function takes the current state and returns the replacement state.
	Function func(ctx context.Context, state S) (S, error)
}

// Edge represents an unconditional edge in the graph.
type Edge struct {
	// From is the name of the node from which the edge originates.
	From string

	// To is the name of the node to which the edge points.
	To string
}

// ConditionalEdge routes from a node to one of several targets, chosen at
// runtime by Condition.
type ConditionalEdge[S any] struct {
	From string

	// Condition returns a key of PathMap.
	Condition func(ctx context.Context, state S) string

	// PathMap maps the keys returned by Condition to node names. A nil map
	// means the returned key is the node name.
	PathMap map[string]string
}

// resolve maps a condition result to a node name.
func (e ConditionalEdge[S]) resolve(key string) (string, bool) {
	if e.PathMap == nil {
		return key, key != ""
	}
	to, ok := e.PathMap[key]
	return to, ok
}
