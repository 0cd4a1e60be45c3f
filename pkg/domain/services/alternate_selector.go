package services

import (
	"sort"

	"github.com/vsinha/bom/pkg/domain/entities"
)

// SelectBestAlternateByPriority selects the best item of a substitute group.
// Lower AlternativePriority wins; ties fall back to Sequence, then child id.
// Returns nil if no alternates are provided.
func SelectBestAlternateByPriority(alternates []entities.BomItem) *entities.BomItem {
	if len(alternates) == 0 {
		return nil
	}

	sorted := make([]entities.BomItem, len(alternates))
	copy(sorted, alternates)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.AlternativePriority != b.AlternativePriority {
			return a.AlternativePriority < b.AlternativePriority
		}
		if a.Sequence != b.Sequence {
			return a.Sequence < b.Sequence
		}
		return a.ChildID < b.ChildID
	})

	return &sorted[0]
}

// ResolveSubstituteGroups collapses every substitute group of one parent's items to its
// best member. Items outside any group pass through; input order is preserved.
func ResolveSubstituteGroups(items []entities.BomItem) []entities.BomItem {
	groups := make(map[string][]entities.BomItem)
	for _, item := range items {
		if item.AlternativeGroup != "" {
			groups[item.AlternativeGroup] = append(groups[item.AlternativeGroup], item)
		}
	}
	if len(groups) == 0 {
		return items
	}

	chosen := make(map[string]entities.BomItem, len(groups))
	for group, members := range groups {
		chosen[group] = *SelectBestAlternateByPriority(members)
	}

	resolved := make([]entities.BomItem, 0, len(items))
	emitted := make(map[string]bool, len(groups))
	for _, item := range items {
		if item.AlternativeGroup == "" {
			resolved = append(resolved, item)
			continue
		}
		if emitted[item.AlternativeGroup] {
			continue
		}
		emitted[item.AlternativeGroup] = true
		resolved = append(resolved, chosen[item.AlternativeGroup])
	}
	return resolved
}
