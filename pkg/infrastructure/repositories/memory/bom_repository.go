package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vsinha/bom/pkg/domain/entities"
	"github.com/vsinha/bom/pkg/domain/repositories"
	"github.com/vsinha/bom/pkg/domain/services"
)

// BomRepository keeps components, BOM headers and BOM items in slices with id indexes.
// It resolves the active header for its configured usage and alternative, filters items
// by effectivity and collapses substitute groups before handing items out.
type BomRepository struct {
	mu sync.RWMutex

	components    []entities.Component
	componentsMap map[entities.ComponentID]int
	headers       []entities.BomHeader
	headerIndexes map[entities.ComponentID][]int
	items         []entities.BomItem
	itemIndexes   map[entities.ComponentID][]int

	usage       entities.BomUsage
	alternative string
}

// NewBomRepository creates a memory BOM repository sized for the expected data
func NewBomRepository(expectedComponents, expectedItems int) *BomRepository {
	return &BomRepository{
		components:    make([]entities.Component, 0, expectedComponents),
		componentsMap: make(map[entities.ComponentID]int, expectedComponents),
		headerIndexes: make(map[entities.ComponentID][]int),
		items:         make([]entities.BomItem, 0, expectedItems),
		itemIndexes:   make(map[entities.ComponentID][]int, expectedComponents),
		usage:         entities.UsageProduction,
	}
}

// Verify interface compliance
var _ repositories.CatalogRepository = (*BomRepository)(nil)

// SetUsage selects which header usage and alternative GetBomItems resolves
func (r *BomRepository) SetUsage(usage entities.BomUsage, alternative string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usage = usage
	r.alternative = alternative
}

// AddComponent adds a component, replacing any previous payload with the same id
func (r *BomRepository) AddComponent(component entities.Component) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index, exists := r.componentsMap[component.ID]; exists {
		r.components[index] = component
		return
	}
	r.componentsMap[component.ID] = len(r.components)
	r.components = append(r.components, component)
}

// LoadComponents loads components into the repository
func (r *BomRepository) LoadComponents(components []*entities.Component) error {
	for _, c := range components {
		if c.ID == "" {
			return entities.ErrEmptyComponentID
		}
		r.AddComponent(*c)
	}
	return nil
}

// AddHeader registers a BOM header for its component
func (r *BomRepository) AddHeader(header entities.BomHeader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.headerIndexes[header.ComponentID] = append(r.headerIndexes[header.ComponentID], len(r.headers))
	r.headers = append(r.headers, header)
}

// AddBomItem adds a BOM item under its parent
func (r *BomRepository) AddBomItem(item entities.BomItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.itemIndexes[item.ParentID] = append(r.itemIndexes[item.ParentID], len(r.items))
	r.items = append(r.items, item)
}

// LoadBomItems validates and loads BOM items into the repository
func (r *BomRepository) LoadBomItems(items []*entities.BomItem) error {
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
		r.AddBomItem(*item)
	}
	return nil
}

// GetComponent returns a copy of the component
func (r *BomRepository) GetComponent(_ context.Context, id entities.ComponentID) (*entities.Component, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	index, exists := r.componentsMap[id]
	if !exists {
		return nil, entities.NotFound(id)
	}
	c := r.components[index]
	return &c, nil
}

// GetBomItems returns the resolved items under parentID.
// Items without a header are always candidates; header items count only when their
// header is the active one. Effectivity is applied when asOf is set, then substitute
// groups collapse to their best member.
func (r *BomRepository) GetBomItems(_ context.Context, parentID entities.ComponentID, asOf *time.Time) ([]entities.BomItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	indexes, exists := r.itemIndexes[parentID]
	if !exists {
		return []entities.BomItem{}, nil
	}

	activeHeader := r.activeHeaderLocked(parentID, asOf)

	items := make([]entities.BomItem, 0, len(indexes))
	for _, index := range indexes {
		item := r.items[index]
		if item.HeaderID != "" && item.HeaderID != activeHeader {
			continue
		}
		if asOf != nil && !item.IsEffectiveAt(*asOf) {
			continue
		}
		items = append(items, item)
	}

	return services.ResolveSubstituteGroups(items), nil
}

// activeHeaderLocked picks the active header id for parentID; among several active ones the
// most recently effective wins, then the lowest id. Empty when none is active.
func (r *BomRepository) activeHeaderLocked(parentID entities.ComponentID, asOf *time.Time) string {
	var best *entities.BomHeader
	for _, index := range r.headerIndexes[parentID] {
		h := &r.headers[index]
		if !h.IsActive(r.usage, r.alternative, asOf) {
			continue
		}
		if best == nil ||
			h.EffectiveFrom.After(best.EffectiveFrom) ||
			(h.EffectiveFrom.Equal(best.EffectiveFrom) && h.ID < best.ID) {
			best = h
		}
	}
	if best == nil {
		return ""
	}
	return best.ID
}

// ListComponentIDs returns every component id in sorted order
func (r *BomRepository) ListComponentIDs(_ context.Context) ([]entities.ComponentID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]entities.ComponentID, 0, len(r.components))
	for _, c := range r.components {
		ids = append(ids, c.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// GetAllComponents returns a copy of every component in insertion order
func (r *BomRepository) GetAllComponents() []entities.Component {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entities.Component, len(r.components))
	copy(out, r.components)
	return out
}

// GetAllBomItems returns a copy of every stored item, unresolved
func (r *BomRepository) GetAllBomItems() []entities.BomItem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entities.BomItem, len(r.items))
	copy(out, r.items)
	return out
}
