package explosion_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/bom/pkg/application/services/explosion"
	"github.com/vsinha/bom/pkg/application/services/shared"
	"github.com/vsinha/bom/pkg/domain/entities"
	"github.com/vsinha/bom/pkg/domain/graph"
	"github.com/vsinha/bom/pkg/domain/repositories"
	bomtesting "github.com/vsinha/bom/pkg/infrastructure/testing"
)

func buildGraph(t *testing.T, repo repositories.BomRepository, root entities.ComponentID) *graph.Graph {
	t.Helper()
	g, err := graph.Build(context.Background(), repo, root, nil)
	require.NoError(t, err)
	return g
}

func qty(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestExplode_BikeScenario(t *testing.T) {
	g := buildGraph(t, bomtesting.BuildBikeTestData(), "BIKE")
	engine := explosion.NewEngine(shared.NewLevelRunner(4))

	result, err := engine.Explode(context.Background(), g, "BIKE", qty("10"), explosion.Options{})
	require.NoError(t, err)

	require.Len(t, result.Items, 3)
	assert.Equal(t, entities.ComponentID("BIKE"), result.Items[0].ComponentID)
	assert.Equal(t, 0, result.Items[0].Level)
	assert.True(t, result.Items[0].RequiredQuantity.Equal(qty("10")))

	frame, ok := result.Find("FRAME")
	require.True(t, ok)
	assert.True(t, frame.RequiredQuantity.Equal(qty("10")), "FRAME = %s", frame.RequiredQuantity)
	assert.Equal(t, 1, frame.Level)

	wheel, ok := result.Find("WHEEL")
	require.True(t, ok)
	assert.True(t, wheel.RequiredQuantity.Equal(qty("20")), "WHEEL = %s", wheel.RequiredQuantity)

	assert.Equal(t, 3, result.UniqueComponentCount)
	assert.Equal(t, 1, result.MaxDepth)
	assert.Nil(t, wheel.Paths)
}

func TestExplode_ScrapFactor(t *testing.T) {
	g := buildGraph(t, bomtesting.BuildScrapTestData(), "PANEL")

	result, err := explosion.NewEngine(nil).Explode(context.Background(), g, "PANEL", qty("1"), explosion.Options{})
	require.NoError(t, err)

	sheet, ok := result.Find("SHEET")
	require.True(t, ok)
	assert.True(t, sheet.RequiredQuantity.Equal(qty("105")), "SHEET = %s", sheet.RequiredQuantity)
}

func TestExplode_PhantomIsTransparent(t *testing.T) {
	g := buildGraph(t, bomtesting.BuildPhantomTestData(), "BIKE")

	result, err := explosion.NewEngine(nil).Explode(context.Background(), g, "BIKE", qty("3"), explosion.Options{IncludePaths: true})
	require.NoError(t, err)

	_, found := result.Find("PHANTOM")
	assert.False(t, found, "phantom must not appear in the material list")

	tube, ok := result.Find("TUBE")
	require.True(t, ok)
	assert.True(t, tube.RequiredQuantity.Equal(qty("12")))
	assert.Equal(t, 3, tube.Level)
	assert.Equal(t, [][]entities.ComponentID{{"BIKE", "FRAME", "PHANTOM", "TUBE"}}, tube.Paths)
	assert.Equal(t, 3, result.MaxDepth)
}

func TestExplode_MixedPhantomAndNormalEdgesKeepsVertex(t *testing.T) {
	repo := bomtesting.BuildPhantomTestData()
	repo.AddComponent(bomtesting.MustComponent("KIT", entities.Subassembly, "5"))
	viaPhantom := bomtesting.MustItem("BIKE", "KIT", "1", "0")
	viaPhantom.Phantom = true
	viaPhantom.Sequence = 20
	repo.AddBomItem(viaPhantom)
	direct := bomtesting.MustItem("FRAME", "KIT", "2", "0")
	direct.Sequence = 20
	repo.AddBomItem(direct)

	g := buildGraph(t, repo, "BIKE")
	result, err := explosion.NewEngine(nil).Explode(context.Background(), g, "BIKE", qty("1"), explosion.Options{})
	require.NoError(t, err)

	kit, ok := result.Find("KIT")
	require.True(t, ok)
	assert.True(t, kit.RequiredQuantity.Equal(qty("3")))
}

func TestExplode_SharedComponentAggregates(t *testing.T) {
	g := buildGraph(t, bomtesting.BuildAerospaceTestData(), "SATURN_V")

	result, err := explosion.NewEngine(nil).Explode(context.Background(), g, "SATURN_V", qty("1"), explosion.Options{IncludePaths: true})
	require.NoError(t, err)

	count := 0
	for _, item := range result.Items {
		if item.ComponentID == "INJECTOR" {
			count++
		}
	}
	assert.Equal(t, 1, count, "shared component must appear once")

	// 5 via F1_ENGINE plus 6 via J2_ENGINE_V1
	injector, _ := result.Find("INJECTOR")
	assert.True(t, injector.RequiredQuantity.Equal(qty("11")))
	assert.Len(t, injector.Paths, 2)

	// (5 + 6) kits * 24
	bolt, _ := result.Find("BOLT")
	assert.True(t, bolt.RequiredQuantity.Equal(qty("264")))

	// 5 * 4 * 1.02
	bearing, _ := result.Find("BEARING")
	assert.True(t, bearing.RequiredQuantity.Equal(qty("20.4")))

	_, found := result.Find("FASTENER_KIT")
	assert.False(t, found)
	_, found = result.Find("J2_ENGINE_V2")
	assert.False(t, found, "losing substitute must not be exploded")
}

func TestExplode_OrderedByLevelThenID(t *testing.T) {
	g := buildGraph(t, bomtesting.BuildAerospaceTestData(), "SATURN_V")

	result, err := explosion.NewEngine(nil).Explode(context.Background(), g, "SATURN_V", qty("1"), explosion.Options{})
	require.NoError(t, err)

	for i := 1; i < len(result.Items); i++ {
		prev, cur := result.Items[i-1], result.Items[i]
		if prev.Level == cur.Level {
			assert.Less(t, string(prev.ComponentID), string(cur.ComponentID))
		} else {
			assert.Less(t, prev.Level, cur.Level)
		}
	}
}

func TestExplode_ZeroQuantityVisitsEverything(t *testing.T) {
	g := buildGraph(t, bomtesting.BuildBikeTestData(), "BIKE")

	result, err := explosion.NewEngine(nil).Explode(context.Background(), g, "BIKE", decimal.Zero, explosion.Options{})
	require.NoError(t, err)

	require.Len(t, result.Items, 3)
	for _, item := range result.Items {
		assert.True(t, item.RequiredQuantity.IsZero(), "%s = %s", item.ComponentID, item.RequiredQuantity)
	}
}

func TestExplode_Errors(t *testing.T) {
	g := buildGraph(t, bomtesting.BuildBikeTestData(), "BIKE")
	engine := explosion.NewEngine(nil)

	_, err := engine.Explode(context.Background(), g, "BIKE", qty("-1"), explosion.Options{})
	assert.ErrorIs(t, err, entities.ErrInvalidQuantity)

	_, err = engine.Explode(context.Background(), g, "SADDLE", qty("1"), explosion.Options{})
	assert.ErrorIs(t, err, entities.ErrComponentNotFound)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = engine.Explode(ctx, g, "BIKE", qty("1"), explosion.Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExplodeSingleLevel(t *testing.T) {
	g := buildGraph(t, bomtesting.BuildAerospaceTestData(), "SATURN_V")
	engine := explosion.NewEngine(nil)

	result, err := engine.ExplodeSingleLevel(context.Background(), g, "SATURN_V", qty("2"))
	require.NoError(t, err)

	got := make(map[entities.ComponentID]string)
	for _, item := range result.Items {
		assert.Equal(t, 1, item.Level)
		got[item.ComponentID] = item.RequiredQuantity.String()
	}
	assert.Equal(t, map[entities.ComponentID]string{
		"F1_ENGINE":     "10",
		"J2_ENGINE_V1":  "12",
		"GUIDANCE_UNIT": "2",
	}, got)

	// Phantom child is replaced by its stocked children
	f1, err := engine.ExplodeSingleLevel(context.Background(), g, "F1_ENGINE", qty("1"))
	require.NoError(t, err)
	ids := make([]entities.ComponentID, len(f1.Items))
	for i, item := range f1.Items {
		ids[i] = item.ComponentID
	}
	assert.Equal(t, []entities.ComponentID{"BOLT", "F1_TURBOPUMP", "INJECTOR", "WASHER"}, ids)
	assert.Equal(t, 1, f1.MaxDepth)
}

func TestFlatten(t *testing.T) {
	g := buildGraph(t, bomtesting.BuildPhantomTestData(), "BIKE")

	flat, err := explosion.NewEngine(nil).Flatten(context.Background(), g, "BIKE")
	require.NoError(t, err)

	assert.Len(t, flat, 3)
	assert.True(t, flat["BIKE"].Equal(qty("1")))
	assert.True(t, flat["TUBE"].Equal(qty("4")))
	_, hasPhantom := flat["PHANTOM"]
	assert.False(t, hasPhantom)
}

// oracle sums the product of effective quantities over every root-to-vertex path
func oracle(bom bomtesting.RandomBom, q decimal.Decimal) (map[entities.ComponentID]decimal.Decimal, map[entities.ComponentID]int) {
	children := make(map[entities.ComponentID][]entities.BomItem)
	for _, item := range bom.Items {
		children[item.ParentID] = append(children[item.ParentID], item)
	}

	totals := make(map[entities.ComponentID]decimal.Decimal)
	depth := make(map[entities.ComponentID]int)
	var walk func(id entities.ComponentID, mult decimal.Decimal, d int)
	walk = func(id entities.ComponentID, mult decimal.Decimal, d int) {
		totals[id] = totals[id].Add(mult)
		if d > depth[id] {
			depth[id] = d
		}
		for _, item := range children[id] {
			walk(item.ChildID, mult.Mul(item.EffectiveQuantity()), d+1)
		}
	}
	walk(bom.Root, q, 0)
	return totals, depth
}

func hiddenOracle(bom bomtesting.RandomBom) map[entities.ComponentID]bool {
	incoming := make(map[entities.ComponentID]int)
	phantom := make(map[entities.ComponentID]int)
	for _, item := range bom.Items {
		incoming[item.ChildID]++
		if item.Phantom {
			phantom[item.ChildID]++
		}
	}
	hidden := make(map[entities.ComponentID]bool)
	for _, c := range bom.Components {
		if c.ID == bom.Root {
			continue
		}
		hidden[c.ID] = c.IsPhantom() || (incoming[c.ID] > 0 && incoming[c.ID] == phantom[c.ID])
	}
	return hidden
}

func TestExplode_MatchesPathSumOracle(t *testing.T) {
	for seed := int64(1); seed <= 12; seed++ {
		bom := bomtesting.GenerateRandomDAG(seed, 24, 18)
		g := buildGraph(t, bom.Repo, bom.Root)
		q := qty("7.5")

		want, wantDepth := oracle(bom, q)
		hidden := hiddenOracle(bom)

		var baseline []byte
		for _, workers := range []int{1, 3, 8} {
			t.Run(fmt.Sprintf("seed=%d/workers=%d", seed, workers), func(t *testing.T) {
				engine := explosion.NewEngine(shared.NewLevelRunner(workers))
				result, err := engine.Explode(context.Background(), g, bom.Root, q, explosion.Options{})
				require.NoError(t, err)

				seen := make(map[entities.ComponentID]bool)
				for _, item := range result.Items {
					require.False(t, seen[item.ComponentID], "duplicate item %s", item.ComponentID)
					seen[item.ComponentID] = true
					assert.False(t, hidden[item.ComponentID], "phantom %s listed", item.ComponentID)
					assert.True(t, want[item.ComponentID].Equal(item.RequiredQuantity),
						"%s: want %s got %s", item.ComponentID, want[item.ComponentID], item.RequiredQuantity)
					assert.Equal(t, wantDepth[item.ComponentID], item.Level, "depth of %s", item.ComponentID)
				}
				for id := range want {
					if !hidden[id] {
						assert.True(t, seen[id], "missing %s", id)
					}
				}

				encoded := []byte(fmt.Sprintf("%v", result.Items))
				if baseline == nil {
					baseline = encoded
				} else {
					assert.Equal(t, string(baseline), string(encoded), "result must not depend on worker count")
				}
			})
		}
	}
}

func TestExplode_Idempotent(t *testing.T) {
	bom := bomtesting.GenerateRandomDAG(42, 40, 30)
	g := buildGraph(t, bom.Repo, bom.Root)
	engine := explosion.NewEngine(shared.NewLevelRunner(4))

	first, err := engine.Explode(context.Background(), g, bom.Root, qty("3"), explosion.Options{IncludePaths: true})
	require.NoError(t, err)
	second, err := engine.Explode(context.Background(), g, bom.Root, qty("3"), explosion.Options{IncludePaths: true})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
