package costing_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/bom/pkg/application/services/costing"
	"github.com/vsinha/bom/pkg/application/services/shared"
	"github.com/vsinha/bom/pkg/domain/entities"
	"github.com/vsinha/bom/pkg/domain/graph"
	"github.com/vsinha/bom/pkg/domain/repositories"
	"github.com/vsinha/bom/pkg/infrastructure/repositories/memory"
	bomtesting "github.com/vsinha/bom/pkg/infrastructure/testing"
)

func buildGraph(t *testing.T, repo repositories.BomRepository, root entities.ComponentID) *graph.Graph {
	t.Helper()
	g, err := graph.Build(context.Background(), repo, root, nil)
	require.NoError(t, err)
	return g
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]interface{}{fmt.Sprintf("want %s got %s", want, got)}, msgAndArgs...)...)
}

func TestCost_BikeScenario(t *testing.T) {
	g := buildGraph(t, bomtesting.BuildBikeTestData(), "BIKE")

	result, err := costing.NewEngine(shared.NewLevelRunner(2)).Cost(context.Background(), g, "BIKE", costing.Options{})
	require.NoError(t, err)

	assertDecimal(t, "750", result.TotalCost)
	assertDecimal(t, "500", result.DirectCost)
	assertDecimal(t, "250", result.RolledUpChildCost)

	require.Len(t, result.CostDrivers, 2)
	assert.Equal(t, entities.ComponentID("FRAME"), result.CostDrivers[0].ComponentID)
	assertDecimal(t, "150", result.CostDrivers[0].Contribution)
	assertDecimal(t, "20", result.CostDrivers[0].Percentage)
	assert.Equal(t, entities.ComponentID("WHEEL"), result.CostDrivers[1].ComponentID)
	assertDecimal(t, "100", result.CostDrivers[1].Contribution)
	assertDecimal(t, "13.3333", result.CostDrivers[1].Percentage)
}

func TestCost_LeafEqualsDirectCost(t *testing.T) {
	g := buildGraph(t, bomtesting.BuildBikeTestData(), "BIKE")

	result, err := costing.NewEngine(nil).Cost(context.Background(), g, "WHEEL", costing.Options{})
	require.NoError(t, err)

	assertDecimal(t, "50", result.TotalCost)
	assert.True(t, result.RolledUpChildCost.IsZero())
	assert.Empty(t, result.CostDrivers)
}

func TestCost_ScrapFactor(t *testing.T) {
	g := buildGraph(t, bomtesting.BuildScrapTestData(), "PANEL")

	result, err := costing.NewEngine(nil).Cost(context.Background(), g, "PANEL", costing.Options{})
	require.NoError(t, err)

	// 20 + 0.25 * 105
	assertDecimal(t, "46.25", result.TotalCost)
}

func TestCost_Phantom(t *testing.T) {
	g := buildGraph(t, bomtesting.BuildPhantomTestData(), "BIKE")
	engine := costing.NewEngine(nil)

	frame, err := engine.Cost(context.Background(), g, "FRAME", costing.Options{})
	require.NoError(t, err)
	assertDecimal(t, "190", frame.TotalCost, "FRAME includes 4 x $10 of TUBE through PHANTOM")
	assertDecimal(t, "40", frame.RolledUpChildCost)

	bike, err := engine.Cost(context.Background(), g, "BIKE", costing.Options{})
	require.NoError(t, err)
	assertDecimal(t, "690", bike.TotalCost)

	var ids []entities.ComponentID
	for _, d := range bike.CostDrivers {
		ids = append(ids, d.ComponentID)
	}
	assert.Equal(t, []entities.ComponentID{"FRAME", "TUBE"}, ids)
}

func TestCost_DriverReachedThroughPhantomAndNormalEdges(t *testing.T) {
	repo := memory.NewBomRepository(4, 4)
	repo.AddComponent(bomtesting.MustComponent("ROOT", entities.FinishedProduct, "0"))
	repo.AddComponent(bomtesting.MustComponent("A", entities.Subassembly, "0"))
	repo.AddComponent(bomtesting.MustComponent("K", entities.Subassembly, "10"))
	repo.AddComponent(bomtesting.MustComponent("L", entities.RawMaterial, "5"))
	repo.AddBomItem(bomtesting.MustItem("ROOT", "A", "1", "0"))
	repo.AddBomItem(bomtesting.MustItem("ROOT", "K", "1", "0"))
	kit := bomtesting.MustItem("A", "K", "2", "0")
	kit.Phantom = true
	repo.AddBomItem(kit)
	repo.AddBomItem(bomtesting.MustItem("K", "L", "1", "0"))
	g := buildGraph(t, repo, "ROOT")

	result, err := costing.NewEngine(nil).Cost(context.Background(), g, "ROOT", costing.Options{})
	require.NoError(t, err)
	assertDecimal(t, "25", result.TotalCost)

	// K adds its children twice through the kit and its full cost once directly
	want := map[entities.ComponentID][2]string{
		"K": {"25", "100"},
		"L": {"15", "60"},
		"A": {"10", "40"},
	}
	require.Len(t, result.CostDrivers, len(want))
	for i, id := range []entities.ComponentID{"K", "L", "A"} {
		d := result.CostDrivers[i]
		assert.Equal(t, id, d.ComponentID)
		assertDecimal(t, want[id][0], d.Contribution, id)
		assertDecimal(t, want[id][1], d.Percentage, id)
	}
}

func TestCost_MissingCostIsZero(t *testing.T) {
	repo := bomtesting.BuildBikeTestData()
	repo.AddComponent(bomtesting.MustComponent("BIKE", entities.FinishedProduct, ""))
	repo.AddComponent(bomtesting.MustComponent("FRAME", entities.Subassembly, ""))
	repo.AddComponent(bomtesting.MustComponent("WHEEL", entities.Subassembly, ""))
	g := buildGraph(t, repo, "BIKE")

	result, err := costing.NewEngine(nil).Cost(context.Background(), g, "BIKE", costing.Options{})
	require.NoError(t, err)

	assert.True(t, result.TotalCost.IsZero())
	for _, d := range result.CostDrivers {
		assert.True(t, d.Percentage.IsZero())
	}
}

func TestCost_TopDriversAndTieBreak(t *testing.T) {
	g := buildGraph(t, bomtesting.BuildAerospaceTestData(), "SATURN_V")

	all, err := costing.NewEngine(nil).Cost(context.Background(), g, "SATURN_V", costing.Options{})
	require.NoError(t, err)
	for i := 1; i < len(all.CostDrivers); i++ {
		prev, cur := all.CostDrivers[i-1], all.CostDrivers[i]
		c := prev.Contribution.Cmp(cur.Contribution)
		assert.True(t, c > 0 || (c == 0 && prev.ComponentID < cur.ComponentID), "driver order at %d", i)
	}

	top, err := costing.NewEngine(nil).Cost(context.Background(), g, "SATURN_V", costing.Options{TopDrivers: 3})
	require.NoError(t, err)
	require.Len(t, top.CostDrivers, 3)
	assert.Equal(t, all.CostDrivers[:3], top.CostDrivers)
	assert.True(t, top.TotalCost.Equal(all.TotalCost))
}

func TestCost_ReloadAfterCostChange(t *testing.T) {
	ctx := context.Background()
	repo := bomtesting.BuildBikeTestData()
	g := buildGraph(t, repo, "BIKE")
	engine := costing.NewEngine(nil)

	before, err := engine.Cost(ctx, g, "BIKE", costing.Options{})
	require.NoError(t, err)
	assertDecimal(t, "750", before.TotalCost)
	assert.Equal(t, 0, g.DirtyCount())

	bike, _ := g.Lookup("BIKE")
	cached, ok := g.CachedCost(bike)
	require.True(t, ok)
	assertDecimal(t, "750", cached.Total())

	repo.AddComponent(bomtesting.MustComponent("WHEEL", entities.Subassembly, "65"))
	require.NoError(t, g.Reload(ctx, repo, "WHEEL"))

	dirty, err := g.IsDirty("BIKE")
	require.NoError(t, err)
	assert.True(t, dirty)
	dirty, err = g.IsDirty("FRAME")
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, 2, g.DirtyCount())
	_, ok = g.CachedCost(bike)
	assert.False(t, ok, "dirty vertices must not serve cached costs")

	after, err := engine.Cost(ctx, g, "BIKE", costing.Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, g.DirtyCount())

	fresh, err := engine.Cost(ctx, buildGraph(t, repo, "BIKE"), "BIKE", costing.Options{})
	require.NoError(t, err)
	assertDecimal(t, "780", after.TotalCost)
	assert.Equal(t, fresh, after)
}

func TestCost_MarkDirtyWithoutChangeIsStable(t *testing.T) {
	ctx := context.Background()
	g := buildGraph(t, bomtesting.BuildAerospaceTestData(), "SATURN_V")
	engine := costing.NewEngine(nil)

	first, err := engine.Cost(ctx, g, "SATURN_V", costing.Options{})
	require.NoError(t, err)

	require.NoError(t, g.MarkDirty("BOLT"))
	assert.Equal(t, 5, g.DirtyCount(), "BOLT, FASTENER_KIT, F1_ENGINE, J2_ENGINE_V1, SATURN_V")

	second, err := engine.Cost(ctx, g, "SATURN_V", costing.Options{})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	recomputed, err := engine.Cost(ctx, g, "SATURN_V", costing.Options{Recompute: true})
	require.NoError(t, err)
	assert.Equal(t, first, recomputed)

	assert.ErrorIs(t, g.MarkDirty("UNKNOWN"), entities.ErrComponentNotFound)
}

func TestCostBatch(t *testing.T) {
	g, err := graph.BuildAll(context.Background(), bomtesting.BuildAerospaceTestData(), nil)
	require.NoError(t, err)
	engine := costing.NewEngine(shared.NewLevelRunner(4))

	roots := []entities.ComponentID{"SATURN_V", "F1_ENGINE", "J2_ENGINE_V2", "BOLT"}
	results, err := engine.CostBatch(context.Background(), g, roots, costing.Options{})
	require.NoError(t, err)
	require.Len(t, results, len(roots))

	for i, id := range roots {
		assert.Equal(t, id, results[i].ComponentID)
		single, err := engine.Cost(context.Background(), g, id, costing.Options{})
		require.NoError(t, err)
		assert.Equal(t, single, results[i])
	}

	_, err = engine.CostBatch(context.Background(), g, []entities.ComponentID{"SATURN_V", "NOPE"}, costing.Options{})
	assert.ErrorIs(t, err, entities.ErrComponentNotFound)
}

func TestRollup(t *testing.T) {
	g := buildGraph(t, bomtesting.BuildBikeTestData(), "BIKE")
	engine := costing.NewEngine(nil)

	total, err := engine.Rollup(context.Background(), g, "BIKE", dec("10"))
	require.NoError(t, err)
	assertDecimal(t, "7500", total)

	_, err = engine.Rollup(context.Background(), g, "BIKE", dec("-1"))
	assert.ErrorIs(t, err, entities.ErrInvalidQuantity)
}

func TestAllCosts(t *testing.T) {
	g := buildGraph(t, bomtesting.BuildPhantomTestData(), "BIKE")

	costs, err := costing.NewEngine(nil).AllCosts(context.Background(), g)
	require.NoError(t, err)

	assert.Len(t, costs, 4)
	assertDecimal(t, "690", costs["BIKE"])
	assertDecimal(t, "190", costs["FRAME"])
	assertDecimal(t, "40", costs["PHANTOM"])
	assertDecimal(t, "10", costs["TUBE"])
}

// rolledOracle recomputes every unit cost by direct recursion
func rolledOracle(bom bomtesting.RandomBom) map[entities.ComponentID]decimal.Decimal {
	children := make(map[entities.ComponentID][]entities.BomItem)
	for _, item := range bom.Items {
		children[item.ParentID] = append(children[item.ParentID], item)
	}
	direct := make(map[entities.ComponentID]decimal.Decimal)
	for _, c := range bom.Components {
		direct[c.ID] = c.DirectCost()
	}

	memo := make(map[entities.ComponentID]decimal.Decimal)
	var rolled func(id entities.ComponentID) decimal.Decimal
	rolled = func(id entities.ComponentID) decimal.Decimal {
		if v, ok := memo[id]; ok {
			return v
		}
		total := direct[id]
		for _, item := range children[id] {
			child := rolled(item.ChildID)
			if item.Phantom {
				child = child.Sub(direct[item.ChildID])
			}
			total = total.Add(child.Mul(item.EffectiveQuantity()))
		}
		memo[id] = total
		return total
	}
	out := make(map[entities.ComponentID]decimal.Decimal)
	for _, c := range bom.Components {
		out[c.ID] = rolled(c.ID)
	}
	return out
}

func TestCost_MatchesRecursiveOracle(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		bom := bomtesting.GenerateRandomDAG(seed, 30, 25)
		want := rolledOracle(bom)

		for _, workers := range []int{1, 4} {
			t.Run(fmt.Sprintf("seed=%d/workers=%d", seed, workers), func(t *testing.T) {
				g := buildGraph(t, bom.Repo, bom.Root)
				engine := costing.NewEngine(shared.NewLevelRunner(workers))

				costs, err := engine.AllCosts(context.Background(), g)
				require.NoError(t, err)
				for id, cost := range costs {
					assert.True(t, want[id].Equal(cost), "%s: want %s got %s", id, want[id], cost)
				}

				result, err := engine.Cost(context.Background(), g, bom.Root, costing.Options{})
				require.NoError(t, err)
				assert.True(t, want[bom.Root].Equal(result.TotalCost))

				again, err := engine.Cost(context.Background(), g, bom.Root, costing.Options{})
				require.NoError(t, err)
				assert.Equal(t, result, again, "costing must be idempotent")
			})
		}
	}
}
