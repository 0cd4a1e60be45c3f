// Package testing holds BOM fixtures shared by the engine, CLI and example tests
package testing

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vsinha/bom/pkg/domain/entities"
	"github.com/vsinha/bom/pkg/infrastructure/repositories/memory"
)

// MustItem builds a validated BOM item from decimal strings - panics on validation error
func MustItem(parent, child entities.ComponentID, qty, scrap string) entities.BomItem {
	item, err := entities.NewBomItem(parent, child, decimal.RequireFromString(qty), decimal.RequireFromString(scrap))
	if err != nil {
		panic(err)
	}
	return *item
}

// MustComponent builds a component with an optional cost ("" for none) - panics on empty id
func MustComponent(id entities.ComponentID, componentType entities.ComponentType, cost string) entities.Component {
	c, err := entities.NewComponent(id, fmt.Sprintf("Component %s", id), componentType)
	if err != nil {
		panic(err)
	}
	if cost == "" {
		return *c
	}
	return c.WithCost(decimal.RequireFromString(cost))
}

// BuildBikeTestData builds BIKE ($500) -> FRAME x1 ($150), WHEEL x2 ($50)
func BuildBikeTestData() *memory.BomRepository {
	repo := memory.NewBomRepository(3, 2)
	repo.AddComponent(MustComponent("BIKE", entities.FinishedProduct, "500"))
	repo.AddComponent(MustComponent("FRAME", entities.Subassembly, "150"))
	repo.AddComponent(MustComponent("WHEEL", entities.Subassembly, "50"))

	repo.AddBomItem(MustItem("BIKE", "FRAME", "1", "0"))
	wheel := MustItem("BIKE", "WHEEL", "2", "0")
	wheel.Sequence = 20
	repo.AddBomItem(wheel)
	return repo
}

// BuildPhantomTestData builds BIKE -> FRAME ($150) -> PHANTOM x1 (phantom) -> TUBE x4 ($10)
func BuildPhantomTestData() *memory.BomRepository {
	repo := memory.NewBomRepository(4, 3)
	repo.AddComponent(MustComponent("BIKE", entities.FinishedProduct, "500"))
	repo.AddComponent(MustComponent("FRAME", entities.Subassembly, "150"))
	repo.AddComponent(MustComponent("PHANTOM", entities.Phantom, ""))
	repo.AddComponent(MustComponent("TUBE", entities.RawMaterial, "10"))

	repo.AddBomItem(MustItem("BIKE", "FRAME", "1", "0"))
	phantom := MustItem("FRAME", "PHANTOM", "1", "0")
	phantom.Phantom = true
	repo.AddBomItem(phantom)
	repo.AddBomItem(MustItem("PHANTOM", "TUBE", "4", "0"))
	return repo
}

// BuildScrapTestData builds PANEL -> SHEET x100 with a 5% scrap factor
func BuildScrapTestData() *memory.BomRepository {
	repo := memory.NewBomRepository(2, 1)
	repo.AddComponent(MustComponent("PANEL", entities.Subassembly, "20"))
	repo.AddComponent(MustComponent("SHEET", entities.RawMaterial, "0.25"))
	repo.AddBomItem(MustItem("PANEL", "SHEET", "100", "0.05"))
	return repo
}

// BuildAerospaceTestData builds a launch vehicle BOM with shared parts, a phantom
// hardware kit and a substitute group on the upper stage engine:
//
//	SATURN_V -> F1_ENGINE x5, J2_ENGINE_V1|J2_ENGINE_V2 x6 (group J2), GUIDANCE_UNIT x1
//	F1_ENGINE -> F1_TURBOPUMP x1, INJECTOR x1, FASTENER_KIT x1 (phantom)
//	J2_ENGINE_V1 -> INJECTOR x1, FASTENER_KIT x1 (phantom)
//	J2_ENGINE_V2 -> INJECTOR x2
//	F1_TURBOPUMP -> BEARING x4 (2% scrap)
//	FASTENER_KIT -> BOLT x24, WASHER x24
func BuildAerospaceTestData() *memory.BomRepository {
	repo := memory.NewBomRepository(12, 14)

	components := []entities.Component{
		MustComponent("SATURN_V", entities.FinishedProduct, "1000000"),
		MustComponent("F1_ENGINE", entities.Subassembly, "50000"),
		MustComponent("J2_ENGINE_V1", entities.Subassembly, "30000"),
		MustComponent("J2_ENGINE_V2", entities.Subassembly, "32000"),
		MustComponent("GUIDANCE_UNIT", entities.Subassembly, "75000"),
		MustComponent("F1_TURBOPUMP", entities.Subassembly, "12000"),
		MustComponent("INJECTOR", entities.Subassembly, "4000"),
		MustComponent("FASTENER_KIT", entities.Phantom, ""),
		MustComponent("BEARING", entities.RawMaterial, "250"),
		MustComponent("BOLT", entities.RawMaterial, "1.25"),
		MustComponent("WASHER", entities.RawMaterial, "0.10"),
	}
	for _, c := range components {
		repo.AddComponent(c)
	}

	f1 := MustItem("SATURN_V", "F1_ENGINE", "5", "0")
	j2v1 := MustItem("SATURN_V", "J2_ENGINE_V1", "6", "0")
	j2v1.Sequence = 20
	j2v1.AlternativeGroup = "J2"
	j2v1.AlternativePriority = 1
	j2v2 := MustItem("SATURN_V", "J2_ENGINE_V2", "6", "0")
	j2v2.Sequence = 20
	j2v2.AlternativeGroup = "J2"
	j2v2.AlternativePriority = 2
	guidance := MustItem("SATURN_V", "GUIDANCE_UNIT", "1", "0")
	guidance.Sequence = 30

	f1Kit := MustItem("F1_ENGINE", "FASTENER_KIT", "1", "0")
	f1Kit.Phantom = true
	f1Kit.Sequence = 30
	f1Injector := MustItem("F1_ENGINE", "INJECTOR", "1", "0")
	f1Injector.Sequence = 20

	j2Kit := MustItem("J2_ENGINE_V1", "FASTENER_KIT", "1", "0")
	j2Kit.Phantom = true
	j2Kit.Sequence = 20

	washer := MustItem("FASTENER_KIT", "WASHER", "24", "0")
	washer.Sequence = 20

	items := []entities.BomItem{
		f1, j2v1, j2v2, guidance,
		MustItem("F1_ENGINE", "F1_TURBOPUMP", "1", "0"), f1Injector, f1Kit,
		MustItem("J2_ENGINE_V1", "INJECTOR", "1", "0"), j2Kit,
		MustItem("J2_ENGINE_V2", "INJECTOR", "2", "0"),
		MustItem("F1_TURBOPUMP", "BEARING", "4", "0.02"),
		MustItem("FASTENER_KIT", "BOLT", "24", "0"), washer,
	}
	for _, item := range items {
		repo.AddBomItem(item)
	}
	return repo
}

// RandomBom is a generated acyclic BOM rooted at Root with every component reachable
type RandomBom struct {
	Repo       *memory.BomRepository
	Root       entities.ComponentID
	Components []entities.Component
	Items      []entities.BomItem
}

// GenerateRandomDAG builds a seeded random DAG of n components. Edges only run from a
// lower to a higher index, so it is acyclic; each component past the first gets one
// parent below it so everything hangs off the root, and extra edges create shared parts.
// Some edges are phantom, some components have no cost and some are phantom typed.
func GenerateRandomDAG(seed int64, n, extraEdges int) RandomBom {
	rng := rand.New(rand.NewSource(seed))
	out := RandomBom{Repo: memory.NewBomRepository(n, n+extraEdges)}

	scraps := []string{"0", "0", "0.05", "0.1", "0.125"}
	for i := 0; i < n; i++ {
		id := entities.ComponentID(fmt.Sprintf("C%03d", i))
		componentType := entities.Subassembly
		switch {
		case i == 0:
			componentType = entities.FinishedProduct
		case rng.Intn(10) == 0:
			componentType = entities.Phantom
		}
		cost := ""
		if rng.Intn(8) != 0 {
			cost = decimal.New(int64(rng.Intn(100000)), -2).String()
		}
		c := MustComponent(id, componentType, cost)
		out.Components = append(out.Components, c)
		out.Repo.AddComponent(c)
	}
	out.Root = out.Components[0].ID

	seen := make(map[[2]int]bool)
	addEdge := func(p, c int) {
		if seen[[2]int{p, c}] {
			return
		}
		seen[[2]int{p, c}] = true
		item := MustItem(out.Components[p].ID, out.Components[c].ID,
			decimal.New(int64(1+rng.Intn(40)), -1).String(), scraps[rng.Intn(len(scraps))])
		item.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%d-%d", p, c)))
		item.Sequence = 10 * (1 + rng.Intn(5))
		item.Phantom = rng.Intn(6) == 0
		out.Items = append(out.Items, item)
		out.Repo.AddBomItem(item)
	}

	for c := 1; c < n; c++ {
		addEdge(rng.Intn(c), c)
	}
	for k := 0; k < extraEdges && n > 2; k++ {
		p := rng.Intn(n - 1)
		c := p + 1 + rng.Intn(n-p-1)
		addEdge(p, c)
	}
	return out
}
