package graph

import (
	"github.com/vsinha/bom/pkg/domain/entities"
)

// Lookup resolves a component id to its node handle
func (g *Graph) Lookup(id entities.ComponentID) (NodeIndex, error) {
	if idx, ok := g.lookup(id); ok {
		return idx, nil
	}
	return NoNode, entities.NotFound(id)
}

// Contains reports whether id is a vertex of the graph
func (g *Graph) Contains(id entities.ComponentID) bool {
	_, ok := g.lookup(id)
	return ok
}

// Node returns the vertex for a handle. Callers must treat it as read-only.
func (g *Graph) Node(i NodeIndex) *Node {
	return &g.nodes[i]
}

// Edge returns the edge for a handle. Callers must treat it as read-only.
func (g *Graph) Edge(e EdgeIndex) *Edge {
	return &g.edges[e]
}

// Component returns the current payload of a vertex, including any Reload
func (g *Graph) Component(i NodeIndex) entities.Component {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[i].Component
}

// ID returns the component id of a vertex
func (g *Graph) ID(i NodeIndex) entities.ComponentID {
	return g.nodes[i].ID
}

// Children returns the outgoing edge handles of a vertex in sibling order
func (g *Graph) Children(i NodeIndex) []EdgeIndex {
	return g.nodes[i].Outgoing
}

// Parents returns the incoming edge handles of a vertex
func (g *Graph) Parents(i NodeIndex) []EdgeIndex {
	return g.nodes[i].Incoming
}

// IsPhantomEdge reports whether the edge carries the phantom flag
func (g *Graph) IsPhantomEdge(e EdgeIndex) bool {
	return g.edges[e].IsPhantom()
}

// NodeCount returns the number of vertices
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// Roots returns the vertices without parents
func (g *Graph) Roots() []NodeIndex {
	return g.roots
}

// TopologicalOrder returns every vertex with parents before children
func (g *Graph) TopologicalOrder() []NodeIndex {
	return g.topo
}

// ReverseTopologicalOrder returns every vertex with children before parents
func (g *Graph) ReverseTopologicalOrder() []NodeIndex {
	out := make([]NodeIndex, len(g.topo))
	for i, n := range g.topo {
		out[len(g.topo)-1-i] = n
	}
	return out
}

// Levels returns the level groups, leaves at index 0. Vertices in one group share no edge.
func (g *Graph) Levels() [][]NodeIndex {
	return g.levels
}

// Level returns 1 + the maximum child level, 0 for leaves
func (g *Graph) Level(i NodeIndex) int {
	return g.nodes[i].Level
}

// Reachable marks every vertex reachable from root, root included
func (g *Graph) Reachable(root NodeIndex) []bool {
	seen := make([]bool, len(g.nodes))
	seen[root] = true
	stack := []NodeIndex{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range g.nodes[n].Outgoing {
			child := g.edges[e].Child
			if !seen[child] {
				seen[child] = true
				stack = append(stack, child)
			}
		}
	}
	return seen
}

// LevelsFrom returns the level groups restricted to the subgraph under root.
// Index 0 holds leaves; the last group holds root alone.
func (g *Graph) LevelsFrom(root NodeIndex) [][]NodeIndex {
	reach := g.Reachable(root)
	top := g.nodes[root].Level
	out := make([][]NodeIndex, top+1)
	for l := 0; l <= top; l++ {
		for _, n := range g.levels[l] {
			if reach[n] {
				out[l] = append(out[l], n)
			}
		}
	}
	return out
}

// Stats summarises the shape of a graph
type Stats struct {
	NodeCount    int `json:"node_count"`
	EdgeCount    int `json:"edge_count"`
	RootCount    int `json:"root_count"`
	MaxLevel     int `json:"max_level"`
	SharedNodes  int `json:"shared_nodes"`
	PhantomEdges int `json:"phantom_edges"`
}

// Stats computes node, edge and root counts, the top level, the number of vertices
// with more than one distinct parent, and the number of phantom edges
func (g *Graph) Stats() Stats {
	s := Stats{
		NodeCount: len(g.nodes),
		EdgeCount: len(g.edges),
		RootCount: len(g.roots),
		MaxLevel:  len(g.levels) - 1,
	}
	for i := range g.nodes {
		if g.distinctParents(NodeIndex(i)) > 1 {
			s.SharedNodes++
		}
	}
	for i := range g.edges {
		if g.edges[i].IsPhantom() {
			s.PhantomEdges++
		}
	}
	return s
}

// DistinctParents returns the number of distinct parent vertices of i
func (g *Graph) DistinctParents(i NodeIndex) int {
	return g.distinctParents(i)
}

func (g *Graph) distinctParents(i NodeIndex) int {
	in := g.nodes[i].Incoming
	if len(in) < 2 {
		return len(in)
	}
	seen := make(map[NodeIndex]struct{}, len(in))
	for _, e := range in {
		seen[g.edges[e].Parent] = struct{}{}
	}
	return len(seen)
}
