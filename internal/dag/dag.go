// Package dag implements a small directed graph used to resolve dependency
// order between named definitions, e.g. custom rate variables that reference
// each other. Insertion order is preserved so traversal results are
// deterministic across runs.
package dag

import (
	"fmt"
	"sync"
)

type node struct {
	id         string
	deps       map[string]*node
	dependents map[string]*node
}

// Graph is a directed graph keyed by string IDs. Edges point from a
// prerequisite to the definitions that depend on it.
type Graph struct {
	mutex sync.RWMutex
	nodes map[string]*node
	order []string // insertion order of node IDs
}

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*node),
	}
}

// AddNode adds a new node with the given ID to the graph. If a node with
// the same ID already exists, the function does nothing.
func (g *Graph) AddNode(id string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[id]; ok {
		return
	}

	g.nodes[id] = &node{
		id:         id,
		deps:       make(map[string]*node),
		dependents: make(map[string]*node),
	}
	g.order = append(g.order, id)
}

// Has reports whether a node with the given ID exists.
func (g *Graph) Has(id string) bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	_, ok := g.nodes[id]
	return ok
}

// AddEdge creates a directed edge from the `fromID` node to the `toID` node.
// This signifies that `toID` depends on `fromID`. An error is returned if
// either node does not exist or if the edge would create a self-reference.
func (g *Graph) AddEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", fromID, fromID)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	fromNode, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}

	toNode, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}

	toNode.deps[fromID] = fromNode
	fromNode.dependents[toID] = toNode

	return nil
}

// DetectCycles checks the graph for any cycles. It returns a non-nil error
// if a cycle is found, indicating the first node involved in the detected cycle.
func (g *Graph) DetectCycles() error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	// Classic depth-first search with three sets of nodes:
	// permanent: fully visited and known not to be part of a cycle.
	// temporary: currently in the recursion stack.
	// unvisited: everything else.
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)

	var visit func(n *node) error
	visit = func(n *node) error {
		if permanent[n.id] {
			return nil
		}
		if temporary[n.id] {
			return fmt.Errorf("cycle detected involving node '%s'", n.id)
		}

		temporary[n.id] = true

		for _, id := range g.order {
			if dependent, ok := n.dependents[id]; ok {
				if err := visit(dependent); err != nil {
					return err
				}
			}
		}

		delete(temporary, n.id)
		permanent[n.id] = true

		return nil
	}

	for _, id := range g.order {
		if !permanent[id] {
			if err := visit(g.nodes[id]); err != nil {
				return err
			}
		}
	}

	return nil
}

// TopoSort returns the node IDs in dependency order: every node appears
// after all of its prerequisites. Ties are broken by insertion order, so
// the result is stable. An error is returned if the graph has a cycle.
func (g *Graph) TopoSort() ([]string, error) {
	if err := g.DetectCycles(); err != nil {
		return nil, err
	}

	g.mutex.RLock()
	defer g.mutex.RUnlock()

	visited := make(map[string]bool)
	sorted := make([]string, 0, len(g.order))

	var visit func(n *node)
	visit = func(n *node) {
		if visited[n.id] {
			return
		}
		visited[n.id] = true
		for _, id := range g.order {
			if dep, ok := n.deps[id]; ok {
				visit(dep)
			}
		}
		sorted = append(sorted, n.id)
	}

	for _, id := range g.order {
		visit(g.nodes[id])
	}

	return sorted, nil
}
