package dto

import (
	"github.com/shopspring/decimal"

	"github.com/vsinha/bom/pkg/domain/entities"
)

// ExplosionItem is one material line of an explosion
type ExplosionItem struct {
	ComponentID      entities.ComponentID     `json:"component_id"`
	Level            int                      `json:"level"`
	RequiredQuantity decimal.Decimal          `json:"required_quantity"`
	Paths            [][]entities.ComponentID `json:"paths,omitempty"`
}

// ExplosionResult contains the materials required to build Quantity units of Root
type ExplosionResult struct {
	Root                 entities.ComponentID `json:"root"`
	Quantity             decimal.Decimal      `json:"quantity"`
	Items                []ExplosionItem      `json:"items"`
	UniqueComponentCount int                  `json:"unique_component_count"`
	MaxDepth             int                  `json:"max_depth"`
}

// Find returns the item for id, if present
func (r *ExplosionResult) Find(id entities.ComponentID) (ExplosionItem, bool) {
	for _, item := range r.Items {
		if item.ComponentID == id {
			return item, true
		}
	}
	return ExplosionItem{}, false
}

// CostDriver is a descendant's share of a root's unit cost
type CostDriver struct {
	ComponentID  entities.ComponentID `json:"component_id"`
	Contribution decimal.Decimal      `json:"contribution"`
	Percentage   decimal.Decimal      `json:"percentage"`
}

// CostResult is the rolled-up unit cost of a component with its ranked drivers
type CostResult struct {
	ComponentID       entities.ComponentID `json:"component_id"`
	TotalCost         decimal.Decimal      `json:"total_cost"`
	DirectCost        decimal.Decimal      `json:"direct_cost"`
	RolledUpChildCost decimal.Decimal      `json:"rolled_up_child_cost"`
	CostDrivers       []CostDriver         `json:"cost_drivers"`
}

// WhereUsedEntry is one traversed parent -> child edge seen from the queried component
type WhereUsedEntry struct {
	ParentID     entities.ComponentID `json:"parent_id"`
	ChildID      entities.ComponentID `json:"child_id"`
	EdgeQuantity decimal.Decimal      `json:"edge_quantity"`
	Level        int                  `json:"level"`
}

// WhereUsedResult lists every edge on the way from Component up to the roots
type WhereUsedResult struct {
	Component entities.ComponentID `json:"component"`
	UsedIn    []WhereUsedEntry     `json:"used_in"`
}

// ImpactAnalysis answers what must be re-evaluated when ChangedComponent changes
type ImpactAnalysis struct {
	ChangedComponent   entities.ComponentID   `json:"changed_component"`
	AffectedComponents []entities.ComponentID `json:"affected_components"`
	AffectedRoots      []entities.ComponentID `json:"affected_roots"`
	SharedComponents   []entities.ComponentID `json:"shared_components"`
}

// SharedComponent is a descendant used by more than one of a set of assemblies
type SharedComponent struct {
	ComponentID entities.ComponentID   `json:"component_id"`
	UsedBy      []entities.ComponentID `json:"used_by"`
}
