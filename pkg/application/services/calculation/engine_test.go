package calculation_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"github.com/vsinha/bom/pkg/application/services/calculation"
	"github.com/vsinha/bom/pkg/domain/entities"
	"github.com/vsinha/bom/pkg/domain/graph"
	"github.com/vsinha/bom/pkg/domain/repositories"
	"github.com/vsinha/bom/pkg/infrastructure/metrics"
	"github.com/vsinha/bom/pkg/infrastructure/repositories/memory"
	bomtesting "github.com/vsinha/bom/pkg/infrastructure/testing"
)

type harness struct {
	engine *calculation.Engine
	repo   *memory.BomRepository
	reg    *prometheus.Registry
	spans  *tracetest.SpanRecorder
}

func setup(t *testing.T, repo *memory.BomRepository, config calculation.EngineConfig) harness {
	t.Helper()
	reg := prometheus.NewRegistry()
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	engine := calculation.NewEngine(repo, config,
		calculation.WithLogger(zaptest.NewLogger(t)),
		calculation.WithTracer(tp.Tracer("test")),
		calculation.WithRecorder(metrics.NewRecorder(reg)),
	)
	return harness{engine: engine, repo: repo, reg: reg, spans: spans}
}

func (h harness) spanNames() []string {
	var names []string
	for _, s := range h.spans.Ended() {
		names = append(names, s.Name())
	}
	return names
}

func TestEngine_Analyze(t *testing.T) {
	h := setup(t, bomtesting.BuildBikeTestData(), calculation.DefaultEngineConfig())

	result, err := h.engine.Analyze(context.Background(), "BIKE", decimal.NewFromInt(10), nil)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Explosion.UniqueComponentCount)
	assert.True(t, result.Cost.TotalCost.Equal(decimal.NewFromInt(750)))
	assert.True(t, result.TotalCost.Equal(decimal.NewFromInt(7500)))
	assert.Equal(t, 3, result.Stats.NodeCount)

	summary := result.GetSummary()
	assert.Contains(t, summary, "BOM Summary for BIKE x 10")
	assert.Contains(t, summary, "Total cost: 7500.00")
	assert.Contains(t, summary, "Top driver: FRAME (20.0%)")

	assert.Equal(t, []string{"graph.Build", "calculation.Explode", "calculation.Cost"}, h.spanNames())

	expected := `
# HELP bom_calculations_total Total number of BOM calculations
# TYPE bom_calculations_total counter
bom_calculations_total{kind="costing",status="ok"} 1
bom_calculations_total{kind="explosion",status="ok"} 1
`
	require.NoError(t, testutil.GatherAndCompare(h.reg, strings.NewReader(expected), "bom_calculations_total"))
}

func TestEngine_LoadFailureIsRecorded(t *testing.T) {
	h := setup(t, bomtesting.BuildBikeTestData(), calculation.DefaultEngineConfig())

	_, err := h.engine.Load(context.Background(), "MISSING", nil)
	require.Error(t, err)
	assert.Equal(t, entities.KindBadInput, entities.KindOf(err))

	expected := `
# HELP bom_graph_builds_total Total number of BOM graph builds
# TYPE bom_graph_builds_total counter
bom_graph_builds_total{status="error"} 1
`
	require.NoError(t, testutil.GatherAndCompare(h.reg, strings.NewReader(expected), "bom_graph_builds_total"))
}

func TestEngine_CalculationErrorsKeepTheirKind(t *testing.T) {
	h := setup(t, bomtesting.BuildBikeTestData(), calculation.DefaultEngineConfig())
	ctx := context.Background()

	g, err := h.engine.Load(ctx, "BIKE", nil)
	require.NoError(t, err)

	_, err = h.engine.Explode(ctx, g, "BIKE", decimal.NewFromInt(-1))
	assert.True(t, errors.Is(err, entities.ErrInvalidQuantity))

	_, err = h.engine.WhereUsed(ctx, g, "GHOST")
	assert.True(t, errors.Is(err, entities.ErrComponentNotFound))

	expected := `
# HELP bom_calculations_total Total number of BOM calculations
# TYPE bom_calculations_total counter
bom_calculations_total{kind="explosion",status="error"} 1
bom_calculations_total{kind="where_used",status="error"} 1
`
	require.NoError(t, testutil.GatherAndCompare(h.reg, strings.NewReader(expected), "bom_calculations_total"))
}

func TestEngine_RefreshRecomputesChangedCost(t *testing.T) {
	h := setup(t, bomtesting.BuildBikeTestData(), calculation.DefaultEngineConfig())
	ctx := context.Background()

	g, err := h.engine.Load(ctx, "BIKE", nil)
	require.NoError(t, err)

	before, err := h.engine.Cost(ctx, g, "BIKE")
	require.NoError(t, err)
	require.True(t, before.TotalCost.Equal(decimal.NewFromInt(750)))

	h.repo.AddComponent(bomtesting.MustComponent("WHEEL", entities.Subassembly, "65"))
	require.NoError(t, h.engine.Refresh(ctx, g, "WHEEL"))
	assert.Equal(t, 2, g.DirtyCount())

	after, err := h.engine.Cost(ctx, g, "BIKE")
	require.NoError(t, err)
	assert.True(t, after.TotalCost.Equal(decimal.NewFromInt(780)), "got %s", after.TotalCost)
	assert.Equal(t, 0, g.DirtyCount())

	expected := `
# HELP bom_dirty_marks_total Total number of components marked dirty, ancestors included
# TYPE bom_dirty_marks_total counter
bom_dirty_marks_total 2
`
	require.NoError(t, testutil.GatherAndCompare(h.reg, strings.NewReader(expected), "bom_dirty_marks_total"))
}

func TestEngine_InvalidateRecomputesEveryCost(t *testing.T) {
	h := setup(t, bomtesting.BuildBikeTestData(), calculation.DefaultEngineConfig())
	ctx := context.Background()

	g, err := h.engine.Load(ctx, "BIKE", nil)
	require.NoError(t, err)
	before, err := h.engine.Cost(ctx, g, "BIKE")
	require.NoError(t, err)

	h.engine.Invalidate(g)
	for i := 0; i < g.NodeCount(); i++ {
		_, cached := g.CachedCost(graph.NodeIndex(i))
		assert.False(t, cached, g.ID(graph.NodeIndex(i)))
	}

	after, err := h.engine.Cost(ctx, g, "BIKE")
	require.NoError(t, err)
	assert.True(t, after.TotalCost.Equal(before.TotalCost), "got %s", after.TotalCost)
	for i := 0; i < g.NodeCount(); i++ {
		_, cached := g.CachedCost(graph.NodeIndex(i))
		assert.True(t, cached, g.ID(graph.NodeIndex(i)))
	}
}

func TestEngine_WhereUsedFamily(t *testing.T) {
	h := setup(t, bomtesting.BuildAerospaceTestData(), calculation.EngineConfig{Workers: 2})
	ctx := context.Background()

	g, err := h.engine.LoadAll(ctx, nil)
	require.NoError(t, err)

	roots, err := h.engine.RootAssemblies(ctx, g, "BOLT")
	require.NoError(t, err)
	assert.Contains(t, roots, entities.ComponentID("SATURN_V"))

	impact, err := h.engine.ChangeImpact(ctx, g, "INJECTOR")
	require.NoError(t, err)
	assert.Contains(t, impact.AffectedComponents, entities.ComponentID("F1_ENGINE"))

	common, err := h.engine.SharedComponents(ctx, g, []entities.ComponentID{"F1_ENGINE", "J2_ENGINE_V1"})
	require.NoError(t, err)
	assert.NotEmpty(t, common)

	costs, err := h.engine.CostBatch(ctx, g, []entities.ComponentID{"F1_ENGINE", "J2_ENGINE_V1"})
	require.NoError(t, err)
	require.Len(t, costs, 2)
	assert.Equal(t, entities.ComponentID("F1_ENGINE"), costs[0].ComponentID)
}

func TestEngine_ExplosionVariants(t *testing.T) {
	h := setup(t, bomtesting.BuildPhantomTestData(), calculation.EngineConfig{IncludePaths: true, TopDrivers: 1})
	ctx := context.Background()

	g, err := h.engine.Load(ctx, "BIKE", nil)
	require.NoError(t, err)

	exploded, err := h.engine.Explode(ctx, g, "BIKE", decimal.NewFromInt(1))
	require.NoError(t, err)
	tube, ok := exploded.Find("TUBE")
	require.True(t, ok)
	assert.Len(t, tube.Paths, 1, "IncludePaths comes from the engine config")

	single, err := h.engine.ExplodeSingleLevel(ctx, g, "BIKE", decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.Len(t, single.Items, 1)

	flat, err := h.engine.Flatten(ctx, g, "FRAME")
	require.NoError(t, err)
	assert.True(t, flat["TUBE"].Equal(decimal.NewFromInt(4)))

	cost, err := h.engine.Cost(ctx, g, "BIKE")
	require.NoError(t, err)
	assert.Len(t, cost.CostDrivers, 1, "TopDrivers comes from the engine config")

	total, err := h.engine.Rollup(ctx, g, "FRAME", decimal.NewFromInt(2))
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(380)))

	all, err := h.engine.AllCosts(ctx, g)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

type componentsOnly struct {
	repositories.BomRepository
}

func TestEngine_LoadAllNeedsCatalog(t *testing.T) {
	engine := calculation.NewEngine(componentsOnly{bomtesting.BuildBikeTestData()}, calculation.DefaultEngineConfig())

	_, err := engine.LoadAll(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot list components")
}

func TestNewEngine_Workers(t *testing.T) {
	engine := calculation.NewEngine(bomtesting.BuildBikeTestData(), calculation.EngineConfig{Workers: 3})
	assert.Equal(t, 3, engine.Workers())
}
