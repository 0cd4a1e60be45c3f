package services

import (
	"fmt"
	"sort"

	"github.com/vsinha/bom/pkg/domain/entities"
)

// BOMValidator checks a raw component and item set for structural integrity before
// it is handed to a repository or a graph build
type BOMValidator struct{}

// NewBOMValidator creates a new BOM validator
func NewBOMValidator() *BOMValidator {
	return &BOMValidator{}
}

// ValidationResult contains the results of BOM validation
type ValidationResult struct {
	HasCycles          bool
	CyclePaths         [][]entities.ComponentID
	DuplicateItems     []entities.BomItem
	OrphanedReferences []entities.ComponentID
	DuplicateIDs       []entities.ComponentID
	InvalidItems       []error
	Errors             []string
}

// IsValid reports whether no problem was found
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// ValidateBOM performs comprehensive validation on a set of components and BOM items
func (v *BOMValidator) ValidateBOM(components []entities.Component, items []entities.BomItem) *ValidationResult {
	result := &ValidationResult{
		CyclePaths:         make([][]entities.ComponentID, 0),
		DuplicateItems:     make([]entities.BomItem, 0),
		OrphanedReferences: make([]entities.ComponentID, 0),
		DuplicateIDs:       make([]entities.ComponentID, 0),
		InvalidItems:       make([]error, 0),
		Errors:             make([]string, 0),
	}

	for i := range items {
		if err := items[i].Validate(); err != nil {
			result.InvalidItems = append(result.InvalidItems, err)
			result.Errors = append(result.Errors, err.Error())
		}
	}

	result.CyclePaths = v.detectCycles(v.buildAdjacencyMap(items))
	result.HasCycles = len(result.CyclePaths) > 0
	for _, cycle := range result.CyclePaths {
		result.Errors = append(result.Errors, (&entities.CycleDetectedError{Path: cycle}).Error())
	}

	result.DuplicateItems = v.detectDuplicateItems(items)
	if len(result.DuplicateItems) > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("found %d duplicate BOM items", len(result.DuplicateItems)))
	}

	if components != nil {
		result.DuplicateIDs = v.detectDuplicateIDs(components)
		if len(result.DuplicateIDs) > 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("duplicate component ids found: %v", result.DuplicateIDs))
		}

		result.OrphanedReferences = v.detectOrphans(components, items)
		for _, id := range result.OrphanedReferences {
			result.Errors = append(result.Errors, entities.NotFound(id).Error())
		}
	}

	return result
}

// buildAdjacencyMap creates a map of parent -> distinct children, in first-seen order
func (v *BOMValidator) buildAdjacencyMap(items []entities.BomItem) map[entities.ComponentID][]entities.ComponentID {
	adjacencyMap := make(map[entities.ComponentID][]entities.ComponentID)
	seen := make(map[[2]entities.ComponentID]bool)

	for _, item := range items {
		key := [2]entities.ComponentID{item.ParentID, item.ChildID}
		if seen[key] {
			continue
		}
		seen[key] = true
		adjacencyMap[item.ParentID] = append(adjacencyMap[item.ParentID], item.ChildID)
	}

	return adjacencyMap
}

// detectCycles uses DFS to find cycles; parents are visited in sorted order so the
// reported paths are stable between runs
func (v *BOMValidator) detectCycles(adjacencyMap map[entities.ComponentID][]entities.ComponentID) [][]entities.ComponentID {
	visited := make(map[entities.ComponentID]bool)
	onStack := make(map[entities.ComponentID]bool)
	cycles := make([][]entities.ComponentID, 0)

	parents := make([]entities.ComponentID, 0, len(adjacencyMap))
	for parent := range adjacencyMap {
		parents = append(parents, parent)
	}
	sort.Slice(parents, func(i, j int) bool { return parents[i] < parents[j] })

	for _, parent := range parents {
		if !visited[parent] {
			v.dfsDetectCycle(parent, adjacencyMap, visited, onStack, nil, &cycles)
		}
	}

	return cycles
}

func (v *BOMValidator) dfsDetectCycle(
	current entities.ComponentID,
	adjacencyMap map[entities.ComponentID][]entities.ComponentID,
	visited map[entities.ComponentID]bool,
	onStack map[entities.ComponentID]bool,
	path []entities.ComponentID,
	cycles *[][]entities.ComponentID,
) {
	visited[current] = true
	onStack[current] = true
	path = append(path, current)

	for _, child := range adjacencyMap[current] {
		if !visited[child] {
			v.dfsDetectCycle(child, adjacencyMap, visited, onStack, path, cycles)
			continue
		}
		if !onStack[child] {
			continue
		}
		for i, id := range path {
			if id == child {
				cycle := make([]entities.ComponentID, 0, len(path)-i+1)
				cycle = append(cycle, path[i:]...)
				cycle = append(cycle, child)
				*cycles = append(*cycles, cycle)
				break
			}
		}
	}

	onStack[current] = false
}

// detectDuplicateItems finds items sharing parent, child, sequence and substitute group
func (v *BOMValidator) detectDuplicateItems(items []entities.BomItem) []entities.BomItem {
	seen := make(map[string]entities.BomItem)
	duplicates := make([]entities.BomItem, 0)

	for _, item := range items {
		key := fmt.Sprintf("%s|%s|%s|%d|%s", item.HeaderID, item.ParentID, item.ChildID, item.Sequence, item.AlternativeGroup)
		if existing, exists := seen[key]; exists {
			duplicates = append(duplicates, existing, item)
		} else {
			seen[key] = item
		}
	}

	return duplicates
}

func (v *BOMValidator) detectDuplicateIDs(components []entities.Component) []entities.ComponentID {
	seen := make(map[entities.ComponentID]bool)
	duplicates := make([]entities.ComponentID, 0)

	for _, c := range components {
		if seen[c.ID] {
			duplicates = append(duplicates, c.ID)
		} else {
			seen[c.ID] = true
		}
	}

	return duplicates
}

// detectOrphans lists ids referenced by items but absent from the component set, sorted
func (v *BOMValidator) detectOrphans(components []entities.Component, items []entities.BomItem) []entities.ComponentID {
	known := make(map[entities.ComponentID]bool, len(components))
	for _, c := range components {
		known[c.ID] = true
	}

	missing := make(map[entities.ComponentID]bool)
	for _, item := range items {
		if item.ParentID != "" && !known[item.ParentID] {
			missing[item.ParentID] = true
		}
		if item.ChildID != "" && !known[item.ChildID] {
			missing[item.ChildID] = true
		}
	}

	orphans := make([]entities.ComponentID, 0, len(missing))
	for id := range missing {
		orphans = append(orphans, id)
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i] < orphans[j] })
	return orphans
}
