// Package graph holds the arena-allocated BOM graph: an immutable topology snapshot built
// from a repository, with topological order, level groups and per-node dirty flags and
// cost caches for incremental recomputation.
package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vsinha/bom/pkg/domain/entities"
	"github.com/vsinha/bom/pkg/domain/repositories"
)

const tracerName = "github.com/vsinha/bom/pkg/domain/graph"

// Graph is a built BOM snapshot. Topology is read-only after Build; only dirty flags,
// cached costs and reloaded component payloads change afterwards, under mu.
//
// Calculations may share a Graph across goroutines. Calling MarkDirty or Reload while
// a calculation runs on the same Graph is the caller's responsibility to serialize.
type Graph struct {
	arena

	roots  []NodeIndex
	topo   []NodeIndex
	levels [][]NodeIndex

	mu sync.RWMutex
}

type buildOptions struct {
	logger *zap.Logger
	tracer trace.Tracer
}

// Option configures Build and BuildAll
type Option func(*buildOptions)

// WithLogger sets the logger used during build
func WithLogger(logger *zap.Logger) Option {
	return func(o *buildOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracer sets the tracer used for the build span
func WithTracer(tracer trace.Tracer) Option {
	return func(o *buildOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

func newBuildOptions(opts []Option) buildOptions {
	o := buildOptions{
		logger: zap.NewNop(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Build loads the subgraph reachable from rootID breadth-first, visiting each component
// once, then checks it for cycles and computes ordering and levels. A nil asOf disables
// effectivity filtering. Any error leaves no graph.
func Build(
	ctx context.Context,
	repo repositories.BomRepository,
	rootID entities.ComponentID,
	asOf *time.Time,
	opts ...Option,
) (*Graph, error) {
	o := newBuildOptions(opts)
	ctx, span := o.tracer.Start(ctx, "graph.Build", trace.WithAttributes(
		attribute.String("bom.root", string(rootID)),
	))
	defer span.End()

	g, err := build(ctx, repo, []entities.ComponentID{rootID}, asOf, o)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("bom.nodes", len(g.nodes)),
		attribute.Int("bom.edges", len(g.edges)),
	)
	return g, nil
}

// BuildAll builds one multi-root graph covering every component the catalog lists
func BuildAll(
	ctx context.Context,
	repo repositories.CatalogRepository,
	asOf *time.Time,
	opts ...Option,
) (*Graph, error) {
	o := newBuildOptions(opts)
	ctx, span := o.tracer.Start(ctx, "graph.BuildAll")
	defer span.End()

	ids, err := repo.ListComponentIDs(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list components: %w", err)
	}
	if len(ids) == 0 {
		err := &entities.EmptyGraphError{}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	g, err := build(ctx, repo, ids, asOf, o)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("bom.nodes", len(g.nodes)),
		attribute.Int("bom.edges", len(g.edges)),
		attribute.Int("bom.roots", len(g.roots)),
	)
	return g, nil
}

type builder struct {
	repo  repositories.BomRepository
	asOf  *time.Time
	g     *Graph
	queue []NodeIndex
}

func build(
	ctx context.Context,
	repo repositories.BomRepository,
	seeds []entities.ComponentID,
	asOf *time.Time,
	o buildOptions,
) (*Graph, error) {
	start := time.Now()
	b := &builder{
		repo: repo,
		asOf: asOf,
		g:    &Graph{arena: newArena(len(seeds), len(seeds))},
	}

	for _, id := range seeds {
		if id == "" {
			return nil, &entities.EmptyGraphError{}
		}
		if _, err := b.resolve(ctx, id, true); err != nil {
			return nil, err
		}
	}

	for len(b.queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		parent := b.queue[0]
		b.queue = b.queue[1:]
		if err := b.expand(ctx, parent); err != nil {
			return nil, err
		}
	}

	if err := b.g.finalize(); err != nil {
		return nil, err
	}

	o.logger.Debug("built BOM graph",
		zap.Int("nodes", len(b.g.nodes)),
		zap.Int("edges", len(b.g.edges)),
		zap.Int("roots", len(b.g.roots)),
		zap.Int("levels", len(b.g.levels)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return b.g, nil
}

// resolve returns the node for id, fetching and enqueuing it on first sight
func (b *builder) resolve(ctx context.Context, id entities.ComponentID, seed bool) (NodeIndex, error) {
	if idx, ok := b.g.lookup(id); ok {
		return idx, nil
	}

	component, err := b.repo.GetComponent(ctx, id)
	if err != nil {
		return NoNode, fmt.Errorf("failed to get component %s: %w", id, err)
	}
	if component == nil {
		if seed {
			return NoNode, &entities.EmptyGraphError{Root: id}
		}
		return NoNode, entities.NotFound(id)
	}

	c := *component
	c.ID = id
	idx := b.g.addNode(c)
	b.queue = append(b.queue, idx)
	return idx, nil
}

// expand attaches the time-effective children of parent, siblings ordered by sequence then id
func (b *builder) expand(ctx context.Context, parent NodeIndex) error {
	parentID := b.g.nodes[parent].ID
	items, err := b.repo.GetBomItems(ctx, parentID, b.asOf)
	if err != nil {
		return fmt.Errorf("failed to get BOM items for %s: %w", parentID, err)
	}

	sorted := make([]entities.BomItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Sequence != sorted[j].Sequence {
			return sorted[i].Sequence < sorted[j].Sequence
		}
		return sorted[i].ChildID < sorted[j].ChildID
	})

	for _, item := range sorted {
		item.ParentID = parentID
		if err := item.Validate(); err != nil {
			return err
		}
		child, err := b.resolve(ctx, item.ChildID, false)
		if err != nil {
			return err
		}
		b.g.addEdge(parent, child, item)
	}
	return nil
}

// finalize rejects cycles, then computes roots, topological order and levels
func (g *Graph) finalize() error {
	if len(g.nodes) == 0 {
		return &entities.EmptyGraphError{}
	}
	if path := g.findCycle(); path != nil {
		return &entities.CycleDetectedError{Path: path}
	}

	g.roots = g.roots[:0]
	inDegree := make([]int, len(g.nodes))
	queue := make([]NodeIndex, 0, len(g.nodes))
	for i := range g.nodes {
		inDegree[i] = len(g.nodes[i].Incoming)
		if inDegree[i] == 0 {
			g.roots = append(g.roots, NodeIndex(i))
			queue = append(queue, NodeIndex(i))
		}
	}

	// Kahn's algorithm, parents before children
	g.topo = make([]NodeIndex, 0, len(g.nodes))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		g.topo = append(g.topo, current)
		for _, e := range g.nodes[current].Outgoing {
			child := g.edges[e].Child
			inDegree[child]--
			if inDegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}
	if len(g.topo) != len(g.nodes) {
		return fmt.Errorf("failed to order graph: %w", entities.ErrCycleDetected)
	}

	maxLevel := 0
	for i := len(g.topo) - 1; i >= 0; i-- {
		n := &g.nodes[g.topo[i]]
		level := 0
		for _, e := range n.Outgoing {
			if l := g.nodes[g.edges[e].Child].Level + 1; l > level {
				level = l
			}
		}
		n.Level = level
		if level > maxLevel {
			maxLevel = level
		}
	}

	g.levels = make([][]NodeIndex, maxLevel+1)
	for i := range g.nodes {
		l := g.nodes[i].Level
		g.levels[l] = append(g.levels[l], NodeIndex(i))
	}
	return nil
}
