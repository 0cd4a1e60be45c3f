// Package whereused answers reverse BOM queries: which assemblies consume a component,
// directly or transitively, and what a change to it affects.
package whereused

import (
	"context"
	"sort"

	"github.com/vsinha/bom/pkg/application/dto"
	"github.com/vsinha/bom/pkg/application/services/shared"
	"github.com/vsinha/bom/pkg/domain/entities"
	"github.com/vsinha/bom/pkg/domain/graph"
)

// Engine runs where-used queries. It holds no per-call state.
type Engine struct {
	runner *shared.LevelRunner
}

// NewEngine creates a where-used engine; nil uses GOMAXPROCS workers
func NewEngine(runner *shared.LevelRunner) *Engine {
	if runner == nil {
		runner = shared.NewLevelRunner(0)
	}
	return &Engine{runner: runner}
}

// ancestors walks reverse adjacency breadth-first from start and returns the hop
// distance of every reached vertex (-1 where unreached) plus one entry per traversed edge
func ancestors(g *graph.Graph, start graph.NodeIndex) ([]int, []dto.WhereUsedEntry) {
	dist := make([]int, g.NodeCount())
	for i := range dist {
		dist[i] = -1
	}
	dist[start] = 0

	entries := make([]dto.WhereUsedEntry, 0)
	queue := []graph.NodeIndex{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, ei := range g.Parents(current) {
			edge := g.Edge(ei)
			parent := edge.Parent
			if dist[parent] < 0 {
				dist[parent] = dist[current] + 1
				queue = append(queue, parent)
			}
			entries = append(entries, dto.WhereUsedEntry{
				ParentID:     g.ID(parent),
				ChildID:      g.ID(current),
				EdgeQuantity: edge.Item.Quantity,
				Level:        dist[current] + 1,
			})
		}
	}
	return dist, entries
}

// WhereUsed lists every edge between id and the roots above it. Level is one more than the
// shortest number of hops from id to the entry's child, so level 1 holds exactly the direct
// parents of id. Entries are ordered by level, parent, child.
func (e *Engine) WhereUsed(g *graph.Graph, id entities.ComponentID) (*dto.WhereUsedResult, error) {
	start, err := g.Lookup(id)
	if err != nil {
		return nil, err
	}

	_, entries := ancestors(g, start)
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		if a.ParentID != b.ParentID {
			return a.ParentID < b.ParentID
		}
		return a.ChildID < b.ChildID
	})
	return &dto.WhereUsedResult{Component: id, UsedIn: entries}, nil
}

// DirectParents returns the level-1 where-used entries of id
func (e *Engine) DirectParents(g *graph.Graph, id entities.ComponentID) ([]dto.WhereUsedEntry, error) {
	result, err := e.WhereUsed(g, id)
	if err != nil {
		return nil, err
	}
	direct := make([]dto.WhereUsedEntry, 0)
	for _, entry := range result.UsedIn {
		if entry.Level == 1 {
			direct = append(direct, entry)
		}
	}
	return direct, nil
}

// RootAssemblies returns the sorted roots among the ancestors of id
func (e *Engine) RootAssemblies(g *graph.Graph, id entities.ComponentID) ([]entities.ComponentID, error) {
	impact, err := e.ChangeImpact(g, id)
	if err != nil {
		return nil, err
	}
	return impact.AffectedRoots, nil
}

// ChangeImpact reports every distinct ancestor of id, the roots among them, and which
// of id and its ancestors have more than one distinct direct parent
func (e *Engine) ChangeImpact(g *graph.Graph, id entities.ComponentID) (*dto.ImpactAnalysis, error) {
	start, err := g.Lookup(id)
	if err != nil {
		return nil, err
	}

	dist, _ := ancestors(g, start)
	impact := &dto.ImpactAnalysis{
		ChangedComponent:   id,
		AffectedComponents: make([]entities.ComponentID, 0),
		AffectedRoots:      make([]entities.ComponentID, 0),
		SharedComponents:   make([]entities.ComponentID, 0),
	}

	for i, d := range dist {
		if d < 0 {
			continue
		}
		n := graph.NodeIndex(i)
		if g.DistinctParents(n) > 1 {
			impact.SharedComponents = append(impact.SharedComponents, g.ID(n))
		}
		if n == start {
			continue
		}
		impact.AffectedComponents = append(impact.AffectedComponents, g.ID(n))
		if len(g.Parents(n)) == 0 {
			impact.AffectedRoots = append(impact.AffectedRoots, g.ID(n))
		}
	}

	sortIDs(impact.AffectedComponents)
	sortIDs(impact.AffectedRoots)
	sortIDs(impact.SharedComponents)
	return impact, nil
}

// SharedComponents finds descendants common to at least two of the given assemblies.
// UsedBy keeps the order of assemblyIDs; results are sorted by component id.
func (e *Engine) SharedComponents(ctx context.Context, g *graph.Graph, assemblyIDs []entities.ComponentID) ([]dto.SharedComponent, error) {
	nodes := make([]graph.NodeIndex, len(assemblyIDs))
	for i, id := range assemblyIDs {
		n, err := g.Lookup(id)
		if err != nil {
			return nil, err
		}
		nodes[i] = n
	}

	reach := make([][]bool, len(nodes))
	err := e.runner.RunLevel(ctx, nodes, func(_ context.Context, pos int, n graph.NodeIndex) error {
		reach[pos] = g.Reachable(n)
		reach[pos][n] = false
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]dto.SharedComponent, 0)
	for i := 0; i < g.NodeCount(); i++ {
		var usedBy []entities.ComponentID
		for pos, r := range reach {
			if r[i] {
				usedBy = append(usedBy, assemblyIDs[pos])
			}
		}
		if len(usedBy) > 1 {
			out = append(out, dto.SharedComponent{ComponentID: g.ID(graph.NodeIndex(i)), UsedBy: usedBy})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ComponentID < out[j].ComponentID })
	return out, nil
}

func sortIDs(ids []entities.ComponentID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
