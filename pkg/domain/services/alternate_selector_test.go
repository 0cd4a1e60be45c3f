package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/bom/pkg/domain/entities"
)

func TestSelectBestAlternateByPriority(t *testing.T) {
	assert.Nil(t, SelectBestAlternateByPriority(nil))

	primary := item("BIKE", "STEEL_FRAME", 1)
	primary.AlternativeGroup = "FRAME"
	primary.AlternativePriority = 0

	substitute := item("BIKE", "ALU_FRAME", 1)
	substitute.AlternativeGroup = "FRAME"
	substitute.AlternativePriority = 1

	best := SelectBestAlternateByPriority([]entities.BomItem{substitute, primary})
	require.NotNil(t, best)
	assert.Equal(t, entities.ComponentID("STEEL_FRAME"), best.ChildID)
}

func TestSelectBestAlternateByPriority_TieBreaks(t *testing.T) {
	a := item("P", "B_CHILD", 1)
	a.Sequence = 20
	b := item("P", "A_CHILD", 1)
	b.Sequence = 20
	c := item("P", "Z_CHILD", 1)
	c.Sequence = 10

	assert.Equal(t, entities.ComponentID("Z_CHILD"), SelectBestAlternateByPriority([]entities.BomItem{a, b, c}).ChildID)
	assert.Equal(t, entities.ComponentID("A_CHILD"), SelectBestAlternateByPriority([]entities.BomItem{a, b}).ChildID)
}

func TestResolveSubstituteGroups(t *testing.T) {
	seat := item("BIKE", "SEAT", 1)
	steel := item("BIKE", "STEEL_FRAME", 1)
	steel.AlternativeGroup = "FRAME"
	steel.AlternativePriority = 2
	alu := item("BIKE", "ALU_FRAME", 1)
	alu.AlternativeGroup = "FRAME"
	alu.AlternativePriority = 1
	wheel := item("BIKE", "WHEEL", 2)

	resolved := ResolveSubstituteGroups([]entities.BomItem{seat, steel, alu, wheel})

	ids := make([]entities.ComponentID, len(resolved))
	for i, r := range resolved {
		ids[i] = r.ChildID
	}
	assert.Equal(t, []entities.ComponentID{"SEAT", "ALU_FRAME", "WHEEL"}, ids)
}

func TestResolveSubstituteGroups_NoGroups(t *testing.T) {
	items := []entities.BomItem{item("A", "B", 1), item("A", "C", 1)}
	assert.Equal(t, items, ResolveSubstituteGroups(items))
}
