package graph

import (
	"context"
	"fmt"

	"github.com/vsinha/bom/pkg/domain/entities"
	"github.com/vsinha/bom/pkg/domain/repositories"
)

// MarkDirty flags id and every ancestor up to the roots as stale. Nothing is recomputed
// here; the next costing call that covers those vertices does it.
func (g *Graph) MarkDirty(id entities.ComponentID) error {
	idx, err := g.Lookup(id)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.markDirtyLocked(idx)
	return nil
}

func (g *Graph) markDirtyLocked(start NodeIndex) {
	queue := []NodeIndex{start}
	g.nodes[start].dirty = true
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, e := range g.nodes[current].Incoming {
			parent := g.edges[e].Parent
			if !g.nodes[parent].dirty {
				g.nodes[parent].dirty = true
				queue = append(queue, parent)
			}
		}
	}
}

// Reload refetches a component's payload (for example a changed standard cost) and marks
// it dirty. Edges are not refetched; a structural change needs a new Build.
func (g *Graph) Reload(ctx context.Context, repo repositories.BomRepository, id entities.ComponentID) error {
	idx, err := g.Lookup(id)
	if err != nil {
		return err
	}

	component, err := repo.GetComponent(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to reload component %s: %w", id, err)
	}
	if component == nil {
		return entities.NotFound(id)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	c := *component
	c.ID = id
	g.nodes[idx].Component = c
	g.markDirtyLocked(idx)
	return nil
}

// IsDirty reports whether id is flagged stale
func (g *Graph) IsDirty(id entities.ComponentID) (bool, error) {
	idx, err := g.Lookup(id)
	if err != nil {
		return false, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[idx].dirty, nil
}

// DirtyCount returns the number of stale vertices
func (g *Graph) DirtyCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	count := 0
	for i := range g.nodes {
		if g.nodes[i].dirty {
			count++
		}
	}
	return count
}

// CachedCost returns the committed cost of a vertex, only if it is clean
func (g *Graph) CachedCost(i NodeIndex) (CostCache, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := &g.nodes[i]
	if n.dirty || n.cost == nil {
		return CostCache{}, false
	}
	return *n.cost, true
}

// CommitCosts stores freshly computed costs and clears the dirty flag of each vertex covered
func (g *Graph) CommitCosts(costs map[NodeIndex]CostCache) {
	if len(costs) == 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, c := range costs {
		c := c
		g.nodes[i].cost = &c
		g.nodes[i].dirty = false
	}
}

// ClearCache drops every committed cost; flags are left as they are
func (g *Graph) ClearCache() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.nodes {
		g.nodes[i].cost = nil
	}
}
