package graph

import (
	"github.com/shopspring/decimal"

	"github.com/vsinha/bom/pkg/domain/entities"
)

// NodeIndex is a handle into the graph's node arena
type NodeIndex int32

// EdgeIndex is a handle into the graph's edge arena
type EdgeIndex int32

// NoNode is returned where no node applies
const NoNode NodeIndex = -1

// Node is one component vertex. Adjacency is stored as edge handles, never pointers,
// so the backing slices can grow during build without invalidating anything.
type Node struct {
	ID        entities.ComponentID
	Component entities.Component
	Outgoing  []EdgeIndex
	Incoming  []EdgeIndex
	Level     int

	// guarded by Graph.mu
	dirty bool
	cost  *CostCache
}

// Edge is a parent -> child BOM item with its effective quantity precomputed
type Edge struct {
	Parent            NodeIndex
	Child             NodeIndex
	Item              entities.BomItem
	EffectiveQuantity decimal.Decimal
}

// IsPhantom reports whether the edge's item carries the phantom flag
func (e *Edge) IsPhantom() bool {
	return e.Item.Phantom
}

// CostCache holds a node's last committed unit cost split into its own part and the
// part rolled up from its children
type CostCache struct {
	Direct   decimal.Decimal
	Children decimal.Decimal
}

// Total is direct plus rolled-up child cost
func (c CostCache) Total() decimal.Decimal {
	return c.Direct.Add(c.Children)
}

type arena struct {
	nodes []Node
	edges []Edge
	index map[entities.ComponentID]NodeIndex
}

func newArena(nodeHint, edgeHint int) arena {
	return arena{
		nodes: make([]Node, 0, nodeHint),
		edges: make([]Edge, 0, edgeHint),
		index: make(map[entities.ComponentID]NodeIndex, nodeHint),
	}
}

func (a *arena) addNode(component entities.Component) NodeIndex {
	if idx, ok := a.index[component.ID]; ok {
		return idx
	}
	idx := NodeIndex(len(a.nodes))
	a.nodes = append(a.nodes, Node{ID: component.ID, Component: component})
	a.index[component.ID] = idx
	return idx
}

func (a *arena) addEdge(parent, child NodeIndex, item entities.BomItem) EdgeIndex {
	idx := EdgeIndex(len(a.edges))
	a.edges = append(a.edges, Edge{
		Parent:            parent,
		Child:             child,
		Item:              item,
		EffectiveQuantity: item.EffectiveQuantity(),
	})
	a.nodes[parent].Outgoing = append(a.nodes[parent].Outgoing, idx)
	a.nodes[child].Incoming = append(a.nodes[child].Incoming, idx)
	return idx
}

func (a *arena) lookup(id entities.ComponentID) (NodeIndex, bool) {
	idx, ok := a.index[id]
	return idx, ok
}
