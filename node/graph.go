package node

import (
	"errors"
	"fmt"
	"sync"
)

// ID is a stable arena index. IDs are never reused within a graph.
type ID uint64

// InvalidNode is the zero ID; no node ever carries it.
const InvalidNode ID = 0

// ErrUnknownNode is returned for IDs that do not name a live node.
var ErrUnknownNode = errors.New("node: unknown node")

// Graph is an arena of nodes. Connections are stored on the consuming
// input as the upstream node's ID, so no node owns another and teardown is
// a map drop.
//
// Structural edits and evaluation take the same lock; the render backend
// serializes evaluation on its worker, and UI edits land between frames.
type Graph struct {
	mu     sync.RWMutex
	nodes  map[ID]*Node
	nextID uint64
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{nodes: make(map[ID]*Node)}
}

// AddNode creates a node of the given kind and returns its ID.
func (g *Graph) AddNode(kind Kind, label string) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	id := ID(g.nextID)
	g.nodes[id] = &Node{id: id, kind: kind, label: label, params: paramsFor(kind)}
	return id
}

// Node returns the node for an ID, nil when unknown.
func (g *Graph) Node(id ID) *Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

// RemoveNode deletes a node and disconnects every input that referenced it.
func (g *Graph) RemoveNode(id ID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[id]; !ok {
		return
	}
	delete(g.nodes, id)
	for _, n := range g.nodes {
		for i := range n.params {
			if n.params[i].conn == id {
				n.params[i].conn = InvalidNode
			}
		}
	}
}

// Connect feeds from's output into to's named input, replacing any prior
// connection. Type compatibility is not checked here; a mismatched
// connection evaluates to absent, matching unset-input behavior.
func (g *Graph) Connect(from, to ID, input string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[from]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownNode, from)
	}
	n, ok := g.nodes[to]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownNode, to)
	}
	p := n.Param(input)
	if p == nil {
		return fmt.Errorf("node: %s has no input %q", n.kind, input)
	}
	p.conn = from
	return nil
}

// Disconnect clears the named input's connection.
func (g *Graph) Disconnect(to ID, input string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[to]
	if !ok {
		return
	}
	if p := n.Param(input); p != nil {
		p.conn = InvalidNode
	}
}

// SetLiteral stores a literal on a node's input.
func (g *Graph) SetLiteral(id ID, input string, v Value) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	if !n.SetLiteral(input, v) {
		return fmt.Errorf("node: %s has no input %q", n.kind, input)
	}
	return nil
}

// reachable collects the IDs reachable from id through connections,
// including id itself, in depth-first input order.
func (g *Graph) reachable(id ID) []ID {
	seen := make(map[ID]bool)
	var order []ID
	var walk func(ID)
	walk = func(cur ID) {
		if cur == InvalidNode || seen[cur] {
			return
		}
		n, ok := g.nodes[cur]
		if !ok {
			return
		}
		seen[cur] = true
		order = append(order, cur)
		for i := range n.params {
			walk(n.params[i].conn)
		}
	}
	walk(id)
	return order
}
