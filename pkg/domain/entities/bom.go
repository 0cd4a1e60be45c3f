package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BomItem is a directed parent -> child edge of a Bill of Materials
type BomItem struct {
	ID                  uuid.UUID       `json:"id"`
	HeaderID            string          `json:"header_id,omitempty"`
	ParentID            ComponentID     `json:"parent_id"`
	ChildID             ComponentID     `json:"child_id"`
	Quantity            decimal.Decimal `json:"quantity"`
	ScrapFactor         decimal.Decimal `json:"scrap_factor"`
	Sequence            int             `json:"sequence"`
	EffectiveFrom       time.Time       `json:"effective_from,omitempty"`
	EffectiveTo         *time.Time      `json:"effective_to,omitempty"`
	AlternativeGroup    string          `json:"alternative_group,omitempty"`
	AlternativePriority int             `json:"alternative_priority,omitempty"`
	Phantom             bool            `json:"is_phantom"`
	ReferenceDesignator string          `json:"reference_designator,omitempty"`
}

// NewBomItem creates a validated BomItem with a fresh id and open effectivity
func NewBomItem(parentID, childID ComponentID, quantity, scrapFactor decimal.Decimal) (*BomItem, error) {
	item := NewUncheckedBomItem(parentID, childID, quantity, scrapFactor)
	if err := item.Validate(); err != nil {
		return nil, err
	}
	return item, nil
}

// NewUncheckedBomItem fills the same defaults as NewBomItem but skips Validate; readers
// feeding BOMValidator use it
func NewUncheckedBomItem(parentID, childID ComponentID, quantity, scrapFactor decimal.Decimal) *BomItem {
	return &BomItem{
		ID:          uuid.New(),
		ParentID:    parentID,
		ChildID:     childID,
		Quantity:    quantity,
		ScrapFactor: scrapFactor,
		Sequence:    10,
	}
}

// Validate rejects out-of-domain numbers and degenerate endpoints.
// A zero quantity is allowed; it contributes nothing downstream.
func (b *BomItem) Validate() error {
	if b.ParentID == "" || b.ChildID == "" {
		return ErrEmptyComponentID
	}
	if b.ParentID == b.ChildID {
		return &CycleDetectedError{Path: []ComponentID{b.ParentID, b.ChildID}}
	}
	if b.Quantity.IsNegative() {
		return &InvalidQuantityError{Parent: b.ParentID, Child: b.ChildID, Value: b.Quantity}
	}
	if b.ScrapFactor.IsNegative() {
		return &InvalidScrapFactorError{Parent: b.ParentID, Child: b.ChildID, Value: b.ScrapFactor}
	}
	return nil
}

// EffectiveQuantity is quantity * (1 + scrap factor)
func (b *BomItem) EffectiveQuantity() decimal.Decimal {
	return b.Quantity.Mul(decimal.NewFromInt(1).Add(b.ScrapFactor))
}

// IsEffectiveAt reports whether the item is in effect at the given instant (inclusive bounds)
func (b *BomItem) IsEffectiveAt(at time.Time) bool {
	if !b.EffectiveFrom.IsZero() && at.Before(b.EffectiveFrom) {
		return false
	}
	if b.EffectiveTo != nil && at.After(*b.EffectiveTo) {
		return false
	}
	return true
}

// BomUsage classifies what a BOM is used for
type BomUsage int

const (
	UsageProduction BomUsage = iota
	UsageEngineering
	UsageCosting
	UsageMaintenance
)

// String method for BomUsage enum
func (u BomUsage) String() string {
	switch u {
	case UsageProduction:
		return "Production"
	case UsageEngineering:
		return "Engineering"
	case UsageCosting:
		return "Costing"
	case UsageMaintenance:
		return "Maintenance"
	default:
		return "Unknown"
	}
}

// ParseBomUsage accepts the enum name or the SAP usage digit
func ParseBomUsage(s string) (BomUsage, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "production", "1":
		return UsageProduction, nil
	case "engineering", "2":
		return UsageEngineering, nil
	case "costing", "6":
		return UsageCosting, nil
	case "maintenance", "4":
		return UsageMaintenance, nil
	default:
		return UsageProduction, fmt.Errorf("unknown BOM usage: %s", s)
	}
}

// BomStatus is the release state of a BOM header
type BomStatus int

const (
	StatusDraft BomStatus = iota
	StatusReleased
	StatusFrozen
	StatusObsolete
)

// String method for BomStatus enum
func (s BomStatus) String() string {
	switch s {
	case StatusDraft:
		return "Draft"
	case StatusReleased:
		return "Released"
	case StatusFrozen:
		return "Frozen"
	case StatusObsolete:
		return "Obsolete"
	default:
		return "Unknown"
	}
}

// ParseBomStatus parses a header release state; empty means Released
func ParseBomStatus(s string) (BomStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "draft":
		return StatusDraft, nil
	case "", "released", "active":
		return StatusReleased, nil
	case "frozen":
		return StatusFrozen, nil
	case "obsolete":
		return StatusObsolete, nil
	default:
		return StatusDraft, fmt.Errorf("unknown BOM status: %s", s)
	}
}

// BomHeader groups the items of one BOM variant of a component
type BomHeader struct {
	ID            string          `json:"id"`
	ComponentID   ComponentID     `json:"component_id"`
	Usage         BomUsage        `json:"usage"`
	Status        BomStatus       `json:"status"`
	Alternative   string          `json:"alternative,omitempty"`
	BaseQuantity  decimal.Decimal `json:"base_quantity"`
	EffectiveFrom time.Time       `json:"effective_from,omitempty"`
	EffectiveTo   *time.Time      `json:"effective_to,omitempty"`
	Organization  string          `json:"organization,omitempty"`
}

// IsActive reports whether this header is the usable BOM for (usage, alternative, asOf).
// A nil asOf skips the date check.
func (h *BomHeader) IsActive(usage BomUsage, alternative string, asOf *time.Time) bool {
	if h.Usage != usage || h.Alternative != alternative {
		return false
	}
	if h.Status != StatusReleased && h.Status != StatusFrozen {
		return false
	}
	if asOf == nil {
		return true
	}
	if !h.EffectiveFrom.IsZero() && asOf.Before(h.EffectiveFrom) {
		return false
	}
	if h.EffectiveTo != nil && asOf.After(*h.EffectiveTo) {
		return false
	}
	return true
}

// MarshalText renders the enum name
func (u BomUsage) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText parses the enum name or SAP usage digit
func (u *BomUsage) UnmarshalText(text []byte) error {
	parsed, err := ParseBomUsage(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// MarshalText renders the enum name
func (s BomStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses the enum name
func (s *BomStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseBomStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
