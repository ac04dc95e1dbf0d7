package template

import (
	"errors"
	"sort"
)

// ErrCyclic is returned by TopologicalSort when the graph has a cycle.
var ErrCyclic = errors.New("dependency graph is cyclic")

// Graph is a directed graph over part internal ids. An edge a -> b means
// part a uses part b as its source or object.
type Graph struct {
	nodes []int64
	seen  map[int64]bool
	edges map[int64][]int64
	count int
}

func NewGraph() *Graph {
	return &Graph{
		seen:  make(map[int64]bool),
		edges: make(map[int64][]int64),
	}
}

// AddNode registers id, keeping insertion order.
func (g *Graph) AddNode(id int64) {
	if g.seen[id] {
		return
	}
	g.seen[id] = true
	g.nodes = append(g.nodes, id)
}

// AddEdge adds from -> to, registering both ends.
func (g *Graph) AddEdge(from, to int64) {
	g.AddNode(from)
	g.AddNode(to)
	g.edges[from] = append(g.edges[from], to)
	g.count++
}

func (g *Graph) Nodes() []int64 {
	return append([]int64(nil), g.nodes...)
}

// Dependencies returns the parts id depends on.
func (g *Graph) Dependencies(id int64) []int64 {
	return append([]int64(nil), g.edges[id]...)
}

// EdgeCount returns the number of edges, self-loops included.
func (g *Graph) EdgeCount() int {
	return g.count
}

// SelfLoops returns the nodes that depend on themselves, sorted.
func (g *Graph) SelfLoops() []int64 {
	var out []int64
	for _, n := range g.nodes {
		for _, to := range g.edges[n] {
			if to == n {
				out = append(out, n)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// TopologicalSort orders the nodes so that every part comes before the parts
// it depends on. Ties are broken by insertion order. Self-loops are ignored.
func (g *Graph) TopologicalSort() ([]int64, error) {
	indegree := make(map[int64]int, len(g.nodes))
	for _, n := range g.nodes {
		for _, to := range g.edges[n] {
			if to != n {
				indegree[to]++
			}
		}
	}

	queue := make([]int64, 0, len(g.nodes))
	for _, n := range g.nodes {
		if indegree[n] == 0 {
			queue = append(queue, n)
		}
	}

	order := make([]int64, 0, len(g.nodes))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, to := range g.edges[n] {
			if to == n {
				continue
			}
			indegree[to]--
			if indegree[to] == 0 {
				queue = append(queue, to)
			}
		}
	}

	if len(order) != len(g.nodes) {
		return nil, ErrCyclic
	}
	return order, nil
}

// IsDAG reports whether the graph, ignoring self-loops, is acyclic.
func (g *Graph) IsDAG() bool {
	_, err := g.TopologicalSort()
	return err == nil
}

// Root returns the top of the dependency structure: the first node in
// topological order among the parts that take part in a dependency. With no
// dependencies at all it returns fallback.
func (g *Graph) Root(fallback int64) (int64, error) {
	if g.count == 0 {
		return fallback, nil
	}
	sub := NewGraph()
	for _, n := range g.nodes {
		for _, to := range g.edges[n] {
			sub.AddEdge(n, to)
		}
	}
	order, err := sub.TopologicalSort()
	if err != nil {
		return 0, err
	}
	return order[0], nil
}

// GraphFromPayload builds the dependency graph of an authoring payload,
// keyed by internal id.
func GraphFromPayload(parts []Part) *Graph {
	g := NewGraph()
	for _, p := range parts {
		g.AddNode(int64(p.InternalID))
	}
	for _, p := range parts {
		for _, f := range [...]Field{FieldSource, FieldObject} {
			role := p.Role(f)
			if role.NodeType == NodeTypeRelation && role.RelationInternalID != nil {
				g.AddEdge(int64(p.InternalID), int64(*role.RelationInternalID))
			}
		}
	}
	return g
}

// GraphFromParts builds the dependency graph of persisted parts. Nodes are
// internal ids, as in GraphFromPayload; durable references are mapped back
// to the internal id of the part they point at.
func GraphFromParts(parts []Part) *Graph {
	internal := make(map[int64]int, len(parts))
	for _, p := range parts {
		internal[p.ID] = p.InternalID
	}

	g := NewGraph()
	for _, p := range parts {
		g.AddNode(int64(p.InternalID))
	}
	for _, p := range parts {
		for _, f := range [...]Field{FieldSource, FieldObject} {
			role := p.Role(f)
			if role.NodeType != NodeTypeRelation {
				continue
			}
			switch {
			case role.RelationPartID != nil:
				if to, ok := internal[*role.RelationPartID]; ok {
					g.AddEdge(int64(p.InternalID), int64(to))
				}
			case role.RelationInternalID != nil:
				g.AddEdge(int64(p.InternalID), int64(*role.RelationInternalID))
			}
		}
	}
	return g
}
