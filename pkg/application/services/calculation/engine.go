// Package calculation is the entry point embedding applications use: it builds graphs from a
// repository and runs the explosion, costing and where-used engines over them with logging,
// metrics and tracing around every call.
package calculation

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vsinha/bom/pkg/application/dto"
	"github.com/vsinha/bom/pkg/application/services/costing"
	"github.com/vsinha/bom/pkg/application/services/explosion"
	"github.com/vsinha/bom/pkg/application/services/shared"
	"github.com/vsinha/bom/pkg/application/services/whereused"
	"github.com/vsinha/bom/pkg/domain/entities"
	"github.com/vsinha/bom/pkg/domain/graph"
	"github.com/vsinha/bom/pkg/domain/repositories"
	"github.com/vsinha/bom/pkg/infrastructure/metrics"
)

const tracerName = "github.com/vsinha/bom/pkg/application/services/calculation"

// EngineConfig holds engine-wide defaults
type EngineConfig struct {
	// Workers bounds per-level parallelism; 0 means GOMAXPROCS
	Workers int
	// IncludePaths records every root-to-vertex path in explosions
	IncludePaths bool
	// TopDrivers caps the cost driver list; 0 keeps all
	TopDrivers int
}

// DefaultEngineConfig returns the defaults used when no configuration is given
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Workers:    0,
		TopDrivers: 10,
	}
}

// Engine ties a repository to the three calculation engines
type Engine struct {
	repo   repositories.BomRepository
	config EngineConfig

	runner    *shared.LevelRunner
	explosion *explosion.Engine
	costing   *costing.Engine
	whereUsed *whereused.Engine

	logger   *zap.Logger
	tracer   trace.Tracer
	recorder *metrics.Recorder
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTracer sets the tracer for engine and build spans
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(recorder *metrics.Recorder) Option {
	return func(e *Engine) {
		if recorder != nil {
			e.recorder = recorder
		}
	}
}

// NewEngine creates a calculation engine over repo
func NewEngine(repo repositories.BomRepository, config EngineConfig, opts ...Option) *Engine {
	runner := shared.NewLevelRunner(config.Workers)
	e := &Engine{
		repo:      repo,
		config:    config,
		runner:    runner,
		explosion: explosion.NewEngine(runner),
		costing:   costing.NewEngine(runner),
		whereUsed: whereused.NewEngine(runner),
		logger:    zap.NewNop(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.recorder == nil {
		e.recorder = metrics.NewRecorder(nil)
	}
	return e
}

// Workers returns the effective worker count
func (e *Engine) Workers() int {
	return e.runner.Workers()
}

// Load builds the graph under rootID as of asOf (nil disables effectivity filtering)
func (e *Engine) Load(ctx context.Context, rootID entities.ComponentID, asOf *time.Time) (*graph.Graph, error) {
	start := time.Now()
	g, err := graph.Build(ctx, e.repo, rootID, asOf, graph.WithLogger(e.logger), graph.WithTracer(e.tracer))
	e.recordBuild(g, err, start)
	if err != nil {
		return nil, fmt.Errorf("failed to load BOM for %s: %w", rootID, err)
	}
	return g, nil
}

// LoadAll builds one graph over every component; the repository must list its catalog
func (e *Engine) LoadAll(ctx context.Context, asOf *time.Time) (*graph.Graph, error) {
	catalog, ok := e.repo.(repositories.CatalogRepository)
	if !ok {
		return nil, fmt.Errorf("repository %T cannot list components", e.repo)
	}

	start := time.Now()
	g, err := graph.BuildAll(ctx, catalog, asOf, graph.WithLogger(e.logger), graph.WithTracer(e.tracer))
	e.recordBuild(g, err, start)
	if err != nil {
		return nil, fmt.Errorf("failed to load BOM catalog: %w", err)
	}
	return g, nil
}

func (e *Engine) recordBuild(g *graph.Graph, err error, start time.Time) {
	if err != nil {
		e.recorder.RecordBuild(err, 0, 0, time.Since(start))
		e.logger.Warn("BOM graph build failed", zap.Error(err))
		return
	}
	e.recorder.RecordBuild(nil, g.NodeCount(), g.EdgeCount(), time.Since(start))
}

// observe wraps one engine call in a span, a metric sample and a debug log line
func observe[T any](
	ctx context.Context,
	e *Engine,
	kind, op string,
	id entities.ComponentID,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	ctx, span := e.tracer.Start(ctx, "calculation."+op, trace.WithAttributes(
		attribute.String("bom.component", string(id)),
		attribute.String("bom.kind", kind),
	))
	defer span.End()

	start := time.Now()
	result, err := fn(ctx)
	elapsed := time.Since(start)
	e.recorder.RecordCalculation(kind, err, elapsed)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Debug("calculation failed",
			zap.String("op", op),
			zap.String("component", string(id)),
			zap.String("kind", entities.KindOf(err).String()),
			zap.Error(err),
		)
		return result, err
	}
	e.logger.Debug("calculation finished",
		zap.String("op", op),
		zap.String("component", string(id)),
		zap.Duration("elapsed", elapsed),
	)
	return result, nil
}

// Explode runs a multi-level explosion of qty units of rootID
func (e *Engine) Explode(ctx context.Context, g *graph.Graph, rootID entities.ComponentID, qty decimal.Decimal) (*dto.ExplosionResult, error) {
	return observe(ctx, e, metrics.KindExplosion, "Explode", rootID, func(ctx context.Context) (*dto.ExplosionResult, error) {
		return e.explosion.Explode(ctx, g, rootID, qty, explosion.Options{IncludePaths: e.config.IncludePaths})
	})
}

// ExplodeSingleLevel lists the direct children of rootID, phantoms expanded
func (e *Engine) ExplodeSingleLevel(ctx context.Context, g *graph.Graph, rootID entities.ComponentID, qty decimal.Decimal) (*dto.ExplosionResult, error) {
	return observe(ctx, e, metrics.KindExplosion, "ExplodeSingleLevel", rootID, func(ctx context.Context) (*dto.ExplosionResult, error) {
		return e.explosion.ExplodeSingleLevel(ctx, g, rootID, qty)
	})
}

// Flatten maps every component under rootID to its quantity per unit of rootID
func (e *Engine) Flatten(ctx context.Context, g *graph.Graph, rootID entities.ComponentID) (map[entities.ComponentID]decimal.Decimal, error) {
	return observe(ctx, e, metrics.KindExplosion, "Flatten", rootID, func(ctx context.Context) (map[entities.ComponentID]decimal.Decimal, error) {
		return e.explosion.Flatten(ctx, g, rootID)
	})
}

// Cost rolls up the unit cost of rootID with ranked drivers
func (e *Engine) Cost(ctx context.Context, g *graph.Graph, rootID entities.ComponentID) (*dto.CostResult, error) {
	return observe(ctx, e, metrics.KindCosting, "Cost", rootID, func(ctx context.Context) (*dto.CostResult, error) {
		return e.costing.Cost(ctx, g, rootID, costing.Options{TopDrivers: e.config.TopDrivers})
	})
}

// CostBatch costs several roots of one graph; results keep input order
func (e *Engine) CostBatch(ctx context.Context, g *graph.Graph, rootIDs []entities.ComponentID) ([]*dto.CostResult, error) {
	return observe(ctx, e, metrics.KindCosting, "CostBatch", "", func(ctx context.Context) ([]*dto.CostResult, error) {
		return e.costing.CostBatch(ctx, g, rootIDs, costing.Options{TopDrivers: e.config.TopDrivers})
	})
}

// Rollup returns the total cost of qty units of id
func (e *Engine) Rollup(ctx context.Context, g *graph.Graph, id entities.ComponentID, qty decimal.Decimal) (decimal.Decimal, error) {
	return observe(ctx, e, metrics.KindCosting, "Rollup", id, func(ctx context.Context) (decimal.Decimal, error) {
		return e.costing.Rollup(ctx, g, id, qty)
	})
}

// AllCosts returns the unit cost of every vertex in g
func (e *Engine) AllCosts(ctx context.Context, g *graph.Graph) (map[entities.ComponentID]decimal.Decimal, error) {
	return observe(ctx, e, metrics.KindCosting, "AllCosts", "", func(ctx context.Context) (map[entities.ComponentID]decimal.Decimal, error) {
		return e.costing.AllCosts(ctx, g)
	})
}

// WhereUsed lists every assembly edge above id
func (e *Engine) WhereUsed(ctx context.Context, g *graph.Graph, id entities.ComponentID) (*dto.WhereUsedResult, error) {
	return observe(ctx, e, metrics.KindWhereUsed, "WhereUsed", id, func(context.Context) (*dto.WhereUsedResult, error) {
		return e.whereUsed.WhereUsed(g, id)
	})
}

// RootAssemblies returns the top-level assemblies containing id
func (e *Engine) RootAssemblies(ctx context.Context, g *graph.Graph, id entities.ComponentID) ([]entities.ComponentID, error) {
	return observe(ctx, e, metrics.KindWhereUsed, "RootAssemblies", id, func(context.Context) ([]entities.ComponentID, error) {
		return e.whereUsed.RootAssemblies(g, id)
	})
}

// ChangeImpact reports what a change to id affects
func (e *Engine) ChangeImpact(ctx context.Context, g *graph.Graph, id entities.ComponentID) (*dto.ImpactAnalysis, error) {
	return observe(ctx, e, metrics.KindImpact, "ChangeImpact", id, func(context.Context) (*dto.ImpactAnalysis, error) {
		return e.whereUsed.ChangeImpact(g, id)
	})
}

// SharedComponents lists descendants common to two or more of assemblyIDs
func (e *Engine) SharedComponents(ctx context.Context, g *graph.Graph, assemblyIDs []entities.ComponentID) ([]dto.SharedComponent, error) {
	return observe(ctx, e, metrics.KindWhereUsed, "SharedComponents", "", func(ctx context.Context) ([]dto.SharedComponent, error) {
		return e.whereUsed.SharedComponents(ctx, g, assemblyIDs)
	})
}

// Refresh reloads the payload of each changed component from the repository and marks it
// and its ancestors dirty, so the next costing call recomputes only what changed
func (e *Engine) Refresh(ctx context.Context, g *graph.Graph, changed ...entities.ComponentID) error {
	before := g.DirtyCount()
	for _, id := range changed {
		if err := g.Reload(ctx, e.repo, id); err != nil {
			return err
		}
	}
	marked := g.DirtyCount() - before
	e.recorder.RecordDirty(marked)
	e.logger.Debug("refreshed components",
		zap.Int("changed", len(changed)),
		zap.Int("dirty", marked),
	)
	return nil
}

// Invalidate drops every committed cost on g so the next costing call recomputes the whole
// graph. Use it after bulk repository changes where listing each changed id is impractical.
func (e *Engine) Invalidate(g *graph.Graph) {
	g.ClearCache()
	e.logger.Debug("cleared cost cache", zap.Int("nodes", g.NodeCount()))
}
