package entities

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ComponentID is the case-sensitive identity of a component
type ComponentID string

// ComponentType classifies a component's role in the BOM
type ComponentType int

const (
	FinishedProduct ComponentType = iota
	Subassembly
	RawMaterial
	Phantom
)

// String method for ComponentType enum
func (c ComponentType) String() string {
	switch c {
	case FinishedProduct:
		return "FinishedProduct"
	case Subassembly:
		return "Subassembly"
	case RawMaterial:
		return "RawMaterial"
	case Phantom:
		return "Phantom"
	default:
		return "Unknown"
	}
}

// ParseComponentType accepts the enum name or the SAP material type code
func ParseComponentType(s string) (ComponentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "finishedproduct", "finished_product", "finished", "fert":
		return FinishedProduct, nil
	case "subassembly", "semifinished", "semi_finished", "halb":
		return Subassembly, nil
	case "rawmaterial", "raw_material", "raw", "roh":
		return RawMaterial, nil
	case "phantom":
		return Phantom, nil
	default:
		return FinishedProduct, fmt.Errorf("unknown component type: %s", s)
	}
}

// ProcurementType tells whether a component is made in-house or bought
type ProcurementType int

const (
	Make ProcurementType = iota
	Buy
	Both
)

// String method for ProcurementType enum
func (p ProcurementType) String() string {
	switch p {
	case Make:
		return "Make"
	case Buy:
		return "Buy"
	case Both:
		return "Both"
	default:
		return "Unknown"
	}
}

// ParseProcurementType parses a make-or-buy tag
func ParseProcurementType(s string) (ProcurementType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "make", "produce":
		return Make, nil
	case "buy", "purchase":
		return Buy, nil
	case "both":
		return Both, nil
	default:
		return Make, fmt.Errorf("unknown procurement type: %s", s)
	}
}

// Component is the payload of a BOM vertex
type Component struct {
	ID            ComponentID         `json:"id"`
	Description   string              `json:"description"`
	Type          ComponentType       `json:"component_type"`
	StandardCost  decimal.NullDecimal `json:"standard_cost"`
	UnitOfMeasure string              `json:"uom"`
	Procurement   ProcurementType     `json:"procurement_type"`
	LeadTimeDays  int                 `json:"lead_time_days"`
	Organization  string              `json:"organization"`
}

// NewComponent creates a validated Component without a standard cost
func NewComponent(id ComponentID, description string, componentType ComponentType) (*Component, error) {
	if id == "" {
		return nil, ErrEmptyComponentID
	}
	return &Component{
		ID:            id,
		Description:   description,
		Type:          componentType,
		UnitOfMeasure: "EA",
	}, nil
}

// WithCost returns a copy of the component carrying the given standard cost
func (c Component) WithCost(cost decimal.Decimal) Component {
	c.StandardCost = decimal.NewNullDecimal(cost)
	return c
}

// DirectCost is the component's own unit cost. Phantoms and components
// without cost data contribute zero.
func (c Component) DirectCost() decimal.Decimal {
	if c.Type == Phantom || !c.StandardCost.Valid {
		return decimal.Zero
	}
	return c.StandardCost.Decimal
}

// IsPhantom reports whether the component is never stocked
func (c Component) IsPhantom() bool {
	return c.Type == Phantom
}

// MarshalText renders the enum name
func (c ComponentType) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses the enum name
func (c *ComponentType) UnmarshalText(text []byte) error {
	parsed, err := ParseComponentType(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MarshalText renders the enum name
func (p ProcurementType) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses the enum name
func (p *ProcurementType) UnmarshalText(text []byte) error {
	parsed, err := ParseProcurementType(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
