package dag

import (
	"fmt"
	"sort"
	"strings"
)

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*node),
	}
}

// AddNode adds a node with the given ID. Adding an existing ID does nothing.
func (g *Graph) AddNode(id string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[id]; ok {
		return
	}
	g.nodes[id] = &node{
		id:         id,
		order:      g.next,
		deps:       make(map[string]*node),
		dependents: make(map[string]*node),
	}
	g.next++
}

// Has reports whether id is a node of the graph.
func (g *Graph) Has(id string) bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// AddEdge records that toID depends on fromID.
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

func sorted(m map[string]*node) []*node {
	out := make([]*node, 0, len(m))
	for _, n := range m {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].order < out[j].order })
	return out
}

func ids(nodes []*node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.id
	}
	return out
}

// Dependencies returns the IDs id depends on, in insertion order.
func (g *Graph) Dependencies(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return ids(sorted(n.deps)), nil
}

// Dependents returns the IDs that depend on id, in insertion order.
func (g *Graph) Dependents(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return ids(sorted(n.dependents)), nil
}

// DetectCycles returns an error naming the nodes of the first cycle found.
func (g *Graph) DetectCycles() error {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	// permanent: fully visited; temporary: on the current DFS path.
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)
	var path []string

	var visit func(n *node) error
	visit = func(n *node) error {
		if permanent[n.id] {
			return nil
		}
		if temporary[n.id] {
			start := 0
			for i, id := range path {
				if id == n.id {
					start = i
					break
				}
			}
			cycle := append(append([]string(nil), path[start:]...), n.id)
			return fmt.Errorf("cycle detected: %s", strings.Join(cycle, " -> "))
		}

		temporary[n.id] = true
		path = append(path, n.id)
		for _, dependent := range sorted(n.dependents) {
			if err := visit(dependent); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		delete(temporary, n.id)
		permanent[n.id] = true
		return nil
	}

	for _, n := range sorted(g.nodes) {
		if err := visit(n); err != nil {
			return err
		}
	}
	return nil
}

// Upstream returns roots and everything they transitively depend on, in a
// topological order: every node comes after all of its dependencies. Ties
// are broken by insertion order. With no roots, every node is returned.
func (g *Graph) Upstream(roots ...string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	start := make([]*node, 0, len(roots))
	if len(roots) == 0 {
		start = sorted(g.nodes)
	}
	for _, id := range roots {
		n, ok := g.nodes[id]
		if !ok {
			return nil, fmt.Errorf("node not found: %s", id)
		}
		start = append(start, n)
	}

	visited := make(map[string]bool)
	onPath := make(map[string]bool)
	var order []string

	var visit func(n *node) error
	visit = func(n *node) error {
		if visited[n.id] {
			return nil
		}
		if onPath[n.id] {
			return fmt.Errorf("cycle detected involving node '%s'", n.id)
		}
		onPath[n.id] = true
		for _, dep := range sorted(n.deps) {
			if err := visit(dep); err != nil {
				return err
			}
		}
		onPath[n.id] = false
		visited[n.id] = true
		order = append(order, n.id)
		return nil
	}

	for _, n := range start {
		if err := visit(n); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.nodes)
}
