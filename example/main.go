package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vsinha/bom/pkg/application/services/calculation"
	"github.com/vsinha/bom/pkg/domain/entities"
	"github.com/vsinha/bom/pkg/infrastructure/logging"
	"github.com/vsinha/bom/pkg/infrastructure/repositories/memory"
)

func main() {
	ctx := context.Background()

	logger := logging.NewDefaultLogger()
	defer func() { _ = logger.Sync() }()

	// Set up a simple rocket engine BOM
	repo := memory.NewBomRepository(8, 8)
	setupRocketEngineBOM(repo)

	engine := calculation.NewEngine(repo, calculation.DefaultEngineConfig(), calculation.WithLogger(logger))

	fmt.Println("🚀 Analyzing 9 engines for the first stage...")
	analysis, err := engine.Analyze(ctx, "ROCKET_ENGINE", decimal.NewFromInt(9), nil)
	if err != nil {
		fmt.Printf("❌ Analysis failed: %v\n", err)
		return
	}
	fmt.Println(analysis.GetSummary())
	fmt.Println()

	fmt.Println("📦 Material list:")
	for _, item := range analysis.Explosion.Items {
		fmt.Printf("  %*s%s: %s\n", item.Level*2, "", item.ComponentID, item.RequiredQuantity)
	}
	fmt.Println()

	g, err := engine.Load(ctx, "ROCKET_ENGINE", nil)
	if err != nil {
		fmt.Printf("❌ Load failed: %v\n", err)
		return
	}

	usedIn, err := engine.WhereUsed(ctx, g, "VALVE")
	if err != nil {
		fmt.Printf("❌ Where-used failed: %v\n", err)
		return
	}
	fmt.Println("🔎 Where VALVE is used:")
	for _, e := range usedIn.UsedIn {
		fmt.Printf("  L%d %s -> %s x%s\n", e.Level, e.ParentID, e.ChildID, e.EdgeQuantity)
	}
	fmt.Println()

	// A supplier price change only re-rolls the valve and its ancestors
	valve, err := repo.GetComponent(ctx, "VALVE")
	if err != nil {
		fmt.Printf("❌ Lookup failed: %v\n", err)
		return
	}
	repo.AddComponent(valve.WithCost(decimal.NewFromInt(900)))
	if err := engine.Refresh(ctx, g, "VALVE"); err != nil {
		fmt.Printf("❌ Refresh failed: %v\n", err)
		return
	}
	cost, err := engine.Cost(ctx, g, "ROCKET_ENGINE")
	if err != nil {
		fmt.Printf("❌ Cost failed: %v\n", err)
		return
	}
	fmt.Printf("💰 Unit cost after valve price change: %s\n", cost.TotalCost.StringFixed(2))
}

func setupRocketEngineBOM(repo *memory.BomRepository) {
	components := []struct {
		id   entities.ComponentID
		kind entities.ComponentType
		cost int64
	}{
		{"ROCKET_ENGINE", entities.FinishedProduct, 250000},
		{"TURBOPUMP", entities.Subassembly, 40000},
		{"COMBUSTION_CHAMBER", entities.Subassembly, 60000},
		{"VALVE", entities.RawMaterial, 750},
		{"SEAL", entities.RawMaterial, 12},
	}
	for _, c := range components {
		component, err := entities.NewComponent(c.id, string(c.id), c.kind)
		if err != nil {
			panic(err)
		}
		repo.AddComponent(component.WithCost(decimal.NewFromInt(c.cost)))
	}

	items := []struct {
		parent, child entities.ComponentID
		qty, scrap    string
	}{
		{"ROCKET_ENGINE", "TURBOPUMP", "1", "0"},
		{"ROCKET_ENGINE", "COMBUSTION_CHAMBER", "1", "0"},
		{"ROCKET_ENGINE", "VALVE", "4", "0"},
		{"TURBOPUMP", "VALVE", "2", "0"},
		{"TURBOPUMP", "SEAL", "8", "0.1"},
		{"COMBUSTION_CHAMBER", "SEAL", "12", "0.1"},
	}
	for i, it := range items {
		item, err := entities.NewBomItem(it.parent, it.child,
			decimal.RequireFromString(it.qty), decimal.RequireFromString(it.scrap))
		if err != nil {
			panic(err)
		}
		item.Sequence = 10 * (i + 1)
		repo.AddBomItem(*item)
	}
}
