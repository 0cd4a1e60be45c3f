// Package explosion computes the total quantity of every component needed to build a
// given quantity of a root, propagating top-down one graph level at a time.
package explosion

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/vsinha/bom/pkg/application/dto"
	"github.com/vsinha/bom/pkg/application/services/shared"
	"github.com/vsinha/bom/pkg/domain/entities"
	"github.com/vsinha/bom/pkg/domain/graph"
)

// Options tunes an explosion
type Options struct {
	// IncludePaths records every root-to-component path on each item
	IncludePaths bool
}

// Engine explodes BOM graphs. It holds no per-call state and is safe for concurrent use.
type Engine struct {
	runner *shared.LevelRunner
}

// NewEngine creates an explosion engine on the given runner; nil uses GOMAXPROCS workers
func NewEngine(runner *shared.LevelRunner) *Engine {
	if runner == nil {
		runner = shared.NewLevelRunner(0)
	}
	return &Engine{runner: runner}
}

// Propagation is the raw outcome of pushing a quantity down from a root. Slices are
// indexed by graph.NodeIndex and only meaningful where Reached is true.
type Propagation struct {
	Root     graph.NodeIndex
	Reached  []bool
	Quantity []decimal.Decimal
	Depth    []int
	// Hidden marks phantom vertices: phantom typed, or reached only through phantom edges.
	// They carry quantity through but are left out of material lists. The root is never hidden.
	Hidden []bool
	Paths  [][][]entities.ComponentID
}

type contribution struct {
	child    graph.NodeIndex
	quantity decimal.Decimal
	depth    int
	phantom  bool
	paths    [][]entities.ComponentID
}

// Propagate pushes qty from root through every reachable edge. Levels are processed from
// the root down; within a level each vertex computes its outgoing contributions
// concurrently and the contributions are summed after the level barrier.
func (e *Engine) Propagate(
	ctx context.Context,
	g *graph.Graph,
	root graph.NodeIndex,
	qty decimal.Decimal,
	withPaths bool,
) (*Propagation, error) {
	n := g.NodeCount()
	p := &Propagation{
		Root:     root,
		Reached:  make([]bool, n),
		Quantity: make([]decimal.Decimal, n),
		Depth:    make([]int, n),
		Hidden:   make([]bool, n),
	}
	if withPaths {
		p.Paths = make([][][]entities.ComponentID, n)
		p.Paths[root] = [][]entities.ComponentID{{g.ID(root)}}
	}
	p.Reached[root] = true
	p.Quantity[root] = qty

	incoming := make([]int, n)
	phantomIncoming := make([]int, n)

	levels := g.LevelsFrom(root)
	for l := len(levels) - 1; l >= 0; l-- {
		nodes := levels[l]
		results := make([][]contribution, len(nodes))

		err := e.runner.RunLevel(ctx, nodes, func(_ context.Context, pos int, parent graph.NodeIndex) error {
			out := g.Children(parent)
			if len(out) == 0 {
				return nil
			}
			contributions := make([]contribution, 0, len(out))
			for _, ei := range out {
				edge := g.Edge(ei)
				c := contribution{
					child:    edge.Child,
					quantity: p.Quantity[parent].Mul(edge.EffectiveQuantity),
					depth:    p.Depth[parent] + 1,
					phantom:  edge.IsPhantom(),
				}
				if withPaths {
					childID := g.ID(edge.Child)
					c.paths = make([][]entities.ComponentID, 0, len(p.Paths[parent]))
					for _, path := range p.Paths[parent] {
						extended := make([]entities.ComponentID, len(path), len(path)+1)
						copy(extended, path)
						c.paths = append(c.paths, append(extended, childID))
					}
				}
				contributions = append(contributions, c)
			}
			results[pos] = contributions
			return nil
		})
		if err != nil {
			return nil, err
		}

		for _, contributions := range results {
			for _, c := range contributions {
				if !p.Reached[c.child] {
					p.Reached[c.child] = true
					p.Quantity[c.child] = c.quantity
				} else {
					p.Quantity[c.child] = p.Quantity[c.child].Add(c.quantity)
				}
				if c.depth > p.Depth[c.child] {
					p.Depth[c.child] = c.depth
				}
				incoming[c.child]++
				if c.phantom {
					phantomIncoming[c.child]++
				}
				if withPaths {
					p.Paths[c.child] = append(p.Paths[c.child], c.paths...)
				}
			}
		}
	}

	for i := range p.Reached {
		if !p.Reached[i] || graph.NodeIndex(i) == root {
			continue
		}
		p.Hidden[i] = g.Component(graph.NodeIndex(i)).IsPhantom() ||
			(incoming[i] > 0 && incoming[i] == phantomIncoming[i])
	}
	return p, nil
}

// Explode computes the required quantity of every non-phantom component under rootID,
// root included, for qty units. Items are ordered by level, then id.
func (e *Engine) Explode(
	ctx context.Context,
	g *graph.Graph,
	rootID entities.ComponentID,
	qty decimal.Decimal,
	opts Options,
) (*dto.ExplosionResult, error) {
	if qty.IsNegative() {
		return nil, &entities.InvalidQuantityError{Value: qty}
	}
	root, err := g.Lookup(rootID)
	if err != nil {
		return nil, err
	}

	p, err := e.Propagate(ctx, g, root, qty, opts.IncludePaths)
	if err != nil {
		return nil, fmt.Errorf("failed to explode %s: %w", rootID, err)
	}

	result := &dto.ExplosionResult{
		Root:     rootID,
		Quantity: qty,
		Items:    make([]dto.ExplosionItem, 0),
	}
	for i, reached := range p.Reached {
		if !reached || p.Hidden[i] {
			continue
		}
		item := dto.ExplosionItem{
			ComponentID:      g.ID(graph.NodeIndex(i)),
			Level:            p.Depth[i],
			RequiredQuantity: p.Quantity[i],
		}
		if opts.IncludePaths {
			item.Paths = p.Paths[i]
		}
		result.Items = append(result.Items, item)
		if item.Level > result.MaxDepth {
			result.MaxDepth = item.Level
		}
	}
	sortItems(result.Items)
	result.UniqueComponentCount = len(result.Items)
	return result, nil
}

// ExplodeSingleLevel lists only the direct children of rootID for qty units. A phantom
// child (phantom typed or on a phantom edge) is replaced by its own children with
// multiplied quantities, recursively, so only stocked components appear.
func (e *Engine) ExplodeSingleLevel(
	ctx context.Context,
	g *graph.Graph,
	rootID entities.ComponentID,
	qty decimal.Decimal,
) (*dto.ExplosionResult, error) {
	if qty.IsNegative() {
		return nil, &entities.InvalidQuantityError{Value: qty}
	}
	root, err := g.Lookup(rootID)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	totals := make(map[graph.NodeIndex]decimal.Decimal)
	order := make([]graph.NodeIndex, 0, len(g.Children(root)))

	var expand func(parent graph.NodeIndex, parentQty decimal.Decimal)
	expand = func(parent graph.NodeIndex, parentQty decimal.Decimal) {
		for _, ei := range g.Children(parent) {
			edge := g.Edge(ei)
			amount := parentQty.Mul(edge.EffectiveQuantity)
			if edge.IsPhantom() || g.Component(edge.Child).IsPhantom() {
				expand(edge.Child, amount)
				continue
			}
			if current, ok := totals[edge.Child]; ok {
				totals[edge.Child] = current.Add(amount)
			} else {
				totals[edge.Child] = amount
				order = append(order, edge.Child)
			}
		}
	}
	expand(root, qty)

	result := &dto.ExplosionResult{
		Root:     rootID,
		Quantity: qty,
		Items:    make([]dto.ExplosionItem, 0, len(order)),
	}
	for _, n := range order {
		result.Items = append(result.Items, dto.ExplosionItem{
			ComponentID:      g.ID(n),
			Level:            1,
			RequiredQuantity: totals[n],
		})
	}
	sortItems(result.Items)
	result.UniqueComponentCount = len(result.Items)
	if len(result.Items) > 0 {
		result.MaxDepth = 1
	}
	return result, nil
}

// Flatten maps every non-phantom component under rootID, root included, to its total
// quantity for one unit of the root
func (e *Engine) Flatten(ctx context.Context, g *graph.Graph, rootID entities.ComponentID) (map[entities.ComponentID]decimal.Decimal, error) {
	result, err := e.Explode(ctx, g, rootID, decimal.NewFromInt(1), Options{})
	if err != nil {
		return nil, err
	}
	flat := make(map[entities.ComponentID]decimal.Decimal, len(result.Items))
	for _, item := range result.Items {
		flat[item.ComponentID] = item.RequiredQuantity
	}
	return flat, nil
}

func sortItems(items []dto.ExplosionItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Level != items[j].Level {
			return items[i].Level < items[j].Level
		}
		return items[i].ComponentID < items[j].ComponentID
	})
}
