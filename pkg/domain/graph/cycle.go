package graph

import "github.com/vsinha/bom/pkg/domain/entities"

const (
	white uint8 = iota
	gray
	black
)

type dfsFrame struct {
	node NodeIndex
	next int
}

// findCycle runs an iterative three-colour DFS over every edge, phantom ones included,
// and returns the first cycle found as a closed id path (first id repeated at the end).
// Returns nil for an acyclic graph.
func (a *arena) findCycle() []entities.ComponentID {
	color := make([]uint8, len(a.nodes))
	stack := make([]dfsFrame, 0, 16)

	for start := range a.nodes {
		if color[start] != white {
			continue
		}
		stack = append(stack[:0], dfsFrame{node: NodeIndex(start)})
		color[start] = gray

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			out := a.nodes[top.node].Outgoing
			if top.next == len(out) {
				color[top.node] = black
				stack = stack[:len(stack)-1]
				continue
			}

			child := a.edges[out[top.next]].Child
			top.next++

			switch color[child] {
			case white:
				color[child] = gray
				stack = append(stack, dfsFrame{node: child})
			case gray:
				return a.cyclePath(stack, child)
			}
		}
	}
	return nil
}

// cyclePath cuts the DFS stack from the first occurrence of closing to its top
func (a *arena) cyclePath(stack []dfsFrame, closing NodeIndex) []entities.ComponentID {
	from := 0
	for i, f := range stack {
		if f.node == closing {
			from = i
			break
		}
	}
	path := make([]entities.ComponentID, 0, len(stack)-from+1)
	for _, f := range stack[from:] {
		path = append(path, a.nodes[f.node].ID)
	}
	return append(path, a.nodes[closing].ID)
}
