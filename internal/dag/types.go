package dag

import "sync"

// Graph is a set of targets and the dependencies between them. All
// operations are safe for concurrent use.
type Graph struct {
	mutex sync.RWMutex
	nodes map[string]*node
	// next is the insertion counter; iteration follows insertion order so
	// that every traversal is deterministic.
	next int
}

// node is a single vertex. It is unexported so callers work with IDs only.
type node struct {
	id    string
	order int
	// deps are the nodes this node depends on (predecessors).
	deps map[string]*node
	// dependents are the nodes that depend on this node (successors).
	dependents map[string]*node
}
