// Package document reads whole BOMs (components, headers and items) from a single JSON or
// YAML file into an in-memory repository
package document

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vsinha/bom/pkg/domain/entities"
	"github.com/vsinha/bom/pkg/infrastructure/repositories/memory"
)

// Format is a document encoding
type Format int

const (
	JSON Format = iota
	YAML
)

// String method for Format enum
func (f Format) String() string {
	switch f {
	case JSON:
		return "json"
	case YAML:
		return "yaml"
	default:
		return "unknown"
	}
}

// FormatFromPath picks the format from a file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return JSON, nil
	case ".yaml", ".yml":
		return YAML, nil
	default:
		return JSON, fmt.Errorf("unsupported BOM document extension %q (want .json, .yaml or .yml)", filepath.Ext(path))
	}
}

// Number is a decimal written either as a bare number or a quoted string.
// Quoting keeps values like 0.1 exact regardless of the decoder.
type Number string

// UnmarshalJSON accepts "1.5", 1.5 and null
func (n *Number) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*n = Number(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return fmt.Errorf("invalid number %s", b)
	}
	*n = Number(num.String())
	return nil
}

func (n Number) decimal(field string, fallback decimal.Decimal) (decimal.Decimal, error) {
	s := strings.TrimSpace(string(n))
	if s == "" {
		return fallback, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %s", field, s)
	}
	return d, nil
}

// Document is the serialized form of a BOM
type Document struct {
	Components []ComponentDoc `json:"components" yaml:"components"`
	Headers    []HeaderDoc    `json:"headers,omitempty" yaml:"headers,omitempty"`
	Items      []ItemDoc      `json:"items" yaml:"items"`
}

// ComponentDoc is one component entry
type ComponentDoc struct {
	ID           string `json:"id" yaml:"id"`
	Description  string `json:"description,omitempty" yaml:"description,omitempty"`
	Type         string `json:"type" yaml:"type"`
	StandardCost Number `json:"standard_cost,omitempty" yaml:"standard_cost,omitempty"`
	UOM          string `json:"uom,omitempty" yaml:"uom,omitempty"`
	Procurement  string `json:"procurement,omitempty" yaml:"procurement,omitempty"`
	LeadTimeDays int    `json:"lead_time_days,omitempty" yaml:"lead_time_days,omitempty"`
	Organization string `json:"organization,omitempty" yaml:"organization,omitempty"`
}

// HeaderDoc is one BOM header entry
type HeaderDoc struct {
	ID            string `json:"id" yaml:"id"`
	ComponentID   string `json:"component_id" yaml:"component_id"`
	Usage         string `json:"usage,omitempty" yaml:"usage,omitempty"`
	Status        string `json:"status,omitempty" yaml:"status,omitempty"`
	Alternative   string `json:"alternative,omitempty" yaml:"alternative,omitempty"`
	BaseQuantity  Number `json:"base_quantity,omitempty" yaml:"base_quantity,omitempty"`
	EffectiveFrom string `json:"effective_from,omitempty" yaml:"effective_from,omitempty"`
	EffectiveTo   string `json:"effective_to,omitempty" yaml:"effective_to,omitempty"`
	Organization  string `json:"organization,omitempty" yaml:"organization,omitempty"`
}

// ItemDoc is one parent -> child line
type ItemDoc struct {
	HeaderID            string `json:"header_id,omitempty" yaml:"header_id,omitempty"`
	Parent              string `json:"parent" yaml:"parent"`
	Child               string `json:"child" yaml:"child"`
	Quantity            Number `json:"quantity" yaml:"quantity"`
	ScrapFactor         Number `json:"scrap_factor,omitempty" yaml:"scrap_factor,omitempty"`
	Sequence            int    `json:"sequence,omitempty" yaml:"sequence,omitempty"`
	Phantom             bool   `json:"phantom,omitempty" yaml:"phantom,omitempty"`
	EffectiveFrom       string `json:"effective_from,omitempty" yaml:"effective_from,omitempty"`
	EffectiveTo         string `json:"effective_to,omitempty" yaml:"effective_to,omitempty"`
	AlternativeGroup    string `json:"alternative_group,omitempty" yaml:"alternative_group,omitempty"`
	AlternativePriority int    `json:"alternative_priority,omitempty" yaml:"alternative_priority,omitempty"`
	ReferenceDesignator string `json:"reference_designator,omitempty" yaml:"reference_designator,omitempty"`
}

// Decode reads a document in the given format
func Decode(r io.Reader, format Format) (*Document, error) {
	var doc Document
	switch format {
	case JSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode JSON BOM document: %w", err)
		}
	case YAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode YAML BOM document: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported BOM document format %s", format)
	}
	return &doc, nil
}

// LoadFile decodes path, picking the format from its extension, into a repository
func LoadFile(path string) (*memory.BomRepository, error) {
	doc, err := DecodeFile(path)
	if err != nil {
		return nil, err
	}
	return doc.Repository()
}

// DecodeFile decodes path, picking the format from its extension
func DecodeFile(path string) (*Document, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open BOM document %s: %w", path, err)
	}
	defer file.Close()
	return Decode(file, format)
}

// Rows converts components and items without checking item numbers or endpoints, and
// without the de-duplication a repository performs. Headers are not returned.
func (d *Document) Rows() ([]entities.Component, []entities.BomItem, error) {
	components := make([]entities.Component, 0, len(d.Components))
	for i, c := range d.Components {
		component, err := c.toEntity()
		if err != nil {
			return nil, nil, fmt.Errorf("component %d (%s): %w", i+1, c.ID, err)
		}
		components = append(components, *component)
	}

	items := make([]entities.BomItem, 0, len(d.Items))
	for i, it := range d.Items {
		item, err := it.toEntity(false)
		if err != nil {
			return nil, nil, fmt.Errorf("item %d (%s -> %s): %w", i+1, it.Parent, it.Child, err)
		}
		items = append(items, *item)
	}
	return components, items, nil
}

// Repository converts the document into a validated in-memory repository
func (d *Document) Repository() (*memory.BomRepository, error) {
	repo := memory.NewBomRepository(len(d.Components), len(d.Items))

	for i, c := range d.Components {
		component, err := c.toEntity()
		if err != nil {
			return nil, fmt.Errorf("component %d (%s): %w", i+1, c.ID, err)
		}
		repo.AddComponent(*component)
	}

	for i, h := range d.Headers {
		header, err := h.toEntity()
		if err != nil {
			return nil, fmt.Errorf("header %d (%s): %w", i+1, h.ID, err)
		}
		repo.AddHeader(*header)
	}

	for i, it := range d.Items {
		item, err := it.toEntity(true)
		if err != nil {
			return nil, fmt.Errorf("item %d (%s -> %s): %w", i+1, it.Parent, it.Child, err)
		}
		repo.AddBomItem(*item)
	}
	return repo, nil
}

func (c ComponentDoc) toEntity() (*entities.Component, error) {
	componentType, err := entities.ParseComponentType(c.Type)
	if err != nil {
		return nil, err
	}
	component, err := entities.NewComponent(entities.ComponentID(c.ID), c.Description, componentType)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(string(c.StandardCost)) != "" {
		cost, err := c.StandardCost.decimal("standard_cost", decimal.Zero)
		if err != nil {
			return nil, err
		}
		*component = component.WithCost(cost)
	}
	if c.UOM != "" {
		component.UnitOfMeasure = c.UOM
	}
	component.Procurement, err = entities.ParseProcurementType(c.Procurement)
	if err != nil {
		return nil, err
	}
	component.LeadTimeDays = c.LeadTimeDays
	component.Organization = c.Organization
	return component, nil
}

func (h HeaderDoc) toEntity() (*entities.BomHeader, error) {
	if h.ID == "" || h.ComponentID == "" {
		return nil, fmt.Errorf("header needs both id and component_id")
	}
	usage, err := entities.ParseBomUsage(h.Usage)
	if err != nil {
		return nil, err
	}
	status, err := entities.ParseBomStatus(h.Status)
	if err != nil {
		return nil, err
	}
	base, err := h.BaseQuantity.decimal("base_quantity", decimal.NewFromInt(1))
	if err != nil {
		return nil, err
	}
	from, err := parseDate("effective_from", h.EffectiveFrom)
	if err != nil {
		return nil, err
	}
	to, err := parseOptionalDate("effective_to", h.EffectiveTo)
	if err != nil {
		return nil, err
	}
	return &entities.BomHeader{
		ID:            h.ID,
		ComponentID:   entities.ComponentID(h.ComponentID),
		Usage:         usage,
		Status:        status,
		Alternative:   h.Alternative,
		BaseQuantity:  base,
		EffectiveFrom: from,
		EffectiveTo:   to,
		Organization:  h.Organization,
	}, nil
}

func (it ItemDoc) toEntity(check bool) (*entities.BomItem, error) {
	quantity, err := it.Quantity.decimal("quantity", decimal.Zero)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(it.Quantity)) == "" {
		return nil, fmt.Errorf("quantity is required")
	}
	scrap, err := it.ScrapFactor.decimal("scrap_factor", decimal.Zero)
	if err != nil {
		return nil, err
	}

	item := entities.NewUncheckedBomItem(entities.ComponentID(it.Parent), entities.ComponentID(it.Child), quantity, scrap)
	if check {
		if err := item.Validate(); err != nil {
			return nil, err
		}
	}
	item.HeaderID = it.HeaderID
	if it.Sequence != 0 {
		item.Sequence = it.Sequence
	}
	item.Phantom = it.Phantom
	item.AlternativeGroup = it.AlternativeGroup
	item.AlternativePriority = it.AlternativePriority
	item.ReferenceDesignator = it.ReferenceDesignator

	if item.EffectiveFrom, err = parseDate("effective_from", it.EffectiveFrom); err != nil {
		return nil, err
	}
	if item.EffectiveTo, err = parseOptionalDate("effective_to", it.EffectiveTo); err != nil {
		return nil, err
	}
	return item, nil
}

// parseDate accepts YYYY-MM-DD or RFC 3339; empty means the zero time
func parseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %s (expected YYYY-MM-DD or RFC 3339)", field, s)
	}
	return t, nil
}

func parseOptionalDate(field, s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := parseDate(field, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
