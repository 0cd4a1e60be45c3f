// Package costing rolls standard costs up a BOM graph, bottom-up one level at a time,
// and ranks the descendants that drive a root's unit cost.
package costing

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/vsinha/bom/pkg/application/dto"
	"github.com/vsinha/bom/pkg/application/services/explosion"
	"github.com/vsinha/bom/pkg/application/services/shared"
	"github.com/vsinha/bom/pkg/domain/entities"
	"github.com/vsinha/bom/pkg/domain/graph"
)

var hundred = decimal.NewFromInt(100)

// PercentagePlaces is the rounding applied to driver percentages
const PercentagePlaces = 4

// Options tunes a costing call
type Options struct {
	// TopDrivers keeps only the first N drivers; 0 keeps all
	TopDrivers int
	// Recompute ignores cached costs; results are committed either way
	Recompute bool
}

// Engine computes rolled-up unit costs. It holds no per-call state; the only state it
// touches is the graph's own cost cache.
type Engine struct {
	runner    *shared.LevelRunner
	explosion *explosion.Engine
}

// NewEngine creates a costing engine on the given runner; nil uses GOMAXPROCS workers
func NewEngine(runner *shared.LevelRunner) *Engine {
	if runner == nil {
		runner = shared.NewLevelRunner(0)
	}
	return &Engine{
		runner:    runner,
		explosion: explosion.NewEngine(runner),
	}
}

// Cost returns the unit cost of rootID with its ranked cost drivers
func (e *Engine) Cost(ctx context.Context, g *graph.Graph, rootID entities.ComponentID, opts Options) (*dto.CostResult, error) {
	root, err := g.Lookup(rootID)
	if err != nil {
		return nil, err
	}

	costs, err := e.rollup(ctx, g, g.LevelsFrom(root), opts.Recompute)
	if err != nil {
		return nil, fmt.Errorf("failed to roll up cost of %s: %w", rootID, err)
	}

	drivers, err := e.drivers(ctx, g, root, costs)
	if err != nil {
		return nil, fmt.Errorf("failed to rank cost drivers of %s: %w", rootID, err)
	}
	if opts.TopDrivers > 0 && len(drivers) > opts.TopDrivers {
		drivers = drivers[:opts.TopDrivers]
	}

	return &dto.CostResult{
		ComponentID:       rootID,
		TotalCost:         costs[root].Total(),
		DirectCost:        costs[root].Direct,
		RolledUpChildCost: costs[root].Children,
		CostDrivers:       drivers,
	}, nil
}

// CostBatch costs several roots concurrently; results keep the input order
func (e *Engine) CostBatch(ctx context.Context, g *graph.Graph, rootIDs []entities.ComponentID, opts Options) ([]*dto.CostResult, error) {
	results := make([]*dto.CostResult, len(rootIDs))
	err := e.runner.RunAll(ctx, len(rootIDs), func(ctx context.Context, i int) error {
		result, err := e.Cost(ctx, g, rootIDs[i], opts)
		if err != nil {
			return err
		}
		results[i] = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Rollup returns the cost of qty units of id
func (e *Engine) Rollup(ctx context.Context, g *graph.Graph, id entities.ComponentID, qty decimal.Decimal) (decimal.Decimal, error) {
	if qty.IsNegative() {
		return decimal.Zero, &entities.InvalidQuantityError{Value: qty}
	}
	root, err := g.Lookup(id)
	if err != nil {
		return decimal.Zero, err
	}
	costs, err := e.rollup(ctx, g, g.LevelsFrom(root), false)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to roll up cost of %s: %w", id, err)
	}
	return costs[root].Total().Mul(qty), nil
}

// AllCosts returns the rolled-up unit cost of every vertex of the graph
func (e *Engine) AllCosts(ctx context.Context, g *graph.Graph) (map[entities.ComponentID]decimal.Decimal, error) {
	costs, err := e.rollup(ctx, g, g.Levels(), false)
	if err != nil {
		return nil, fmt.Errorf("failed to roll up costs: %w", err)
	}
	out := make(map[entities.ComponentID]decimal.Decimal, g.NodeCount())
	for i := 0; i < g.NodeCount(); i++ {
		out[g.ID(graph.NodeIndex(i))] = costs[i].Total()
	}
	return out, nil
}

// rollup walks levels leaves first. Clean cached vertices are reused; every other vertex
// is recomputed from its children and committed back to the graph afterwards.
func (e *Engine) rollup(ctx context.Context, g *graph.Graph, levels [][]graph.NodeIndex, recompute bool) ([]graph.CostCache, error) {
	costs := make([]graph.CostCache, g.NodeCount())
	fresh := make([]bool, g.NodeCount())

	for _, nodes := range levels {
		err := e.runner.RunLevel(ctx, nodes, func(_ context.Context, _ int, n graph.NodeIndex) error {
			if !recompute {
				if cached, ok := g.CachedCost(n); ok {
					costs[n] = cached
					return nil
				}
			}
			costs[n] = unitCost(g, n, costs)
			fresh[n] = true
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	committed := make(map[graph.NodeIndex]graph.CostCache)
	for i, ok := range fresh {
		if ok {
			committed[graph.NodeIndex(i)] = costs[i]
		}
	}
	g.CommitCosts(committed)
	return costs, nil
}

// unitCost is direct cost plus each child's contribution times the edge's effective
// quantity. A phantom edge passes on only what lies beneath the child.
func unitCost(g *graph.Graph, n graph.NodeIndex, costs []graph.CostCache) graph.CostCache {
	children := decimal.Zero
	for _, ei := range g.Children(n) {
		edge := g.Edge(ei)
		child := costs[edge.Child]
		contribution := child.Total()
		if edge.IsPhantom() {
			contribution = child.Children
		}
		children = children.Add(contribution.Mul(edge.EffectiveQuantity))
	}
	return graph.CostCache{
		Direct:   g.Component(n).DirectCost(),
		Children: children,
	}
}

// drivers ranks every non-phantom descendant by what it adds to one root unit. Each incoming
// edge counts the way the rollup counts it: a phantom edge carries only the cost beneath the
// child, a normal edge its full rolled cost.
func (e *Engine) drivers(ctx context.Context, g *graph.Graph, root graph.NodeIndex, costs []graph.CostCache) ([]dto.CostDriver, error) {
	p, err := e.explosion.Propagate(ctx, g, root, decimal.NewFromInt(1), false)
	if err != nil {
		return nil, err
	}

	total := costs[root].Total()
	drivers := make([]dto.CostDriver, 0)
	for i, reached := range p.Reached {
		n := graph.NodeIndex(i)
		if !reached || p.Hidden[i] || n == root {
			continue
		}
		contribution := decimal.Zero
		for _, ei := range g.Parents(n) {
			edge := g.Edge(ei)
			if !p.Reached[edge.Parent] {
				continue
			}
			unit := costs[i].Total()
			if edge.IsPhantom() {
				unit = costs[i].Children
			}
			contribution = contribution.Add(unit.Mul(edge.EffectiveQuantity).Mul(p.Quantity[edge.Parent]))
		}
		percentage := decimal.Zero
		if !total.IsZero() {
			percentage = contribution.Mul(hundred).Div(total).Round(PercentagePlaces)
		}
		drivers = append(drivers, dto.CostDriver{
			ComponentID:  g.ID(n),
			Contribution: contribution,
			Percentage:   percentage,
		})
	}

	sort.Slice(drivers, func(i, j int) bool {
		if c := drivers[i].Contribution.Cmp(drivers[j].Contribution); c != 0 {
			return c > 0
		}
		return drivers[i].ComponentID < drivers[j].ComponentID
	})
	return drivers, nil
}
