package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/bom/pkg/domain/entities"
	"github.com/vsinha/bom/pkg/infrastructure/repositories/memory"
)

const dateLayout = "2006-01-02"

// Column sets. Required columns must be present; the rest may be omitted or left blank.
var (
	componentColumns  = []string{"id", "description", "component_type", "standard_cost", "uom", "procurement_type", "lead_time_days"}
	componentRequired = []string{"id", "component_type"}

	bomColumns = []string{
		"parent_id", "child_id", "quantity", "scrap_factor", "sequence", "is_phantom",
		"effective_from", "effective_to", "alternative_group", "alternative_priority", "reference_designator",
	}

	bomRequired = []string{"parent_id", "child_id", "quantity"}
)

// Loader handles loading BOM data from CSV files
type Loader struct {
	checkItems bool
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

// WithoutItemValidation keeps rows with a negative quantity or scrap factor, a blank id or
// a self-reference instead of failing on them. Use it to feed BOMValidator.
func WithoutItemValidation() LoaderOption {
	return func(l *Loader) {
		l.checkItems = false
	}
}

// NewLoader creates a new CSV loader
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{checkItems: true}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadRepository loads a components file and a BOM items file into a validated
// in-memory repository
func (l *Loader) LoadRepository(componentsFile, itemsFile string) (*memory.BomRepository, error) {
	components, err := l.LoadComponents(componentsFile)
	if err != nil {
		return nil, err
	}
	items, err := l.LoadBomItems(itemsFile)
	if err != nil {
		return nil, err
	}

	repo := memory.NewBomRepository(len(components), len(items))
	if err := repo.LoadComponents(components); err != nil {
		return nil, fmt.Errorf("failed to load components: %w", err)
	}
	if err := repo.LoadBomItems(items); err != nil {
		return nil, fmt.Errorf("failed to load BOM items: %w", err)
	}
	return repo, nil
}

// LoadComponents loads components from a CSV file
func (l *Loader) LoadComponents(filename string) ([]*entities.Component, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open components file %s: %w", filename, err)
	}
	defer file.Close()
	return l.ReadComponents(file)
}

// ReadComponents parses components CSV from r
func (l *Loader) ReadComponents(r io.Reader) ([]*entities.Component, error) {
	records, columns, err := readTable(r, "components", componentColumns, componentRequired)
	if err != nil {
		return nil, err
	}

	var components []*entities.Component
	for i, record := range records {
		component, err := parseComponent(row{record, columns})
		if err != nil {
			return nil, fmt.Errorf("components CSV row %d: %w", i+2, err)
		}
		components = append(components, component)
	}
	return components, nil
}

// LoadBomItems loads BOM items from a CSV file
func (l *Loader) LoadBomItems(filename string) ([]*entities.BomItem, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open BOM file %s: %w", filename, err)
	}
	defer file.Close()
	return l.ReadBomItems(file)
}

// ReadBomItems parses BOM items CSV from r
func (l *Loader) ReadBomItems(r io.Reader) ([]*entities.BomItem, error) {
	records, columns, err := readTable(r, "BOM", bomColumns, bomRequired)
	if err != nil {
		return nil, err
	}

	var items []*entities.BomItem
	for i, record := range records {
		item, err := parseBomItem(row{record, columns}, l.checkItems)
		if err != nil {
			return nil, fmt.Errorf("BOM CSV row %d: %w", i+2, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// Helper functions for parsing CSV records

func readTable(r io.Reader, name string, known, required []string) ([][]string, map[string]int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s CSV: %w", name, err)
	}

	if len(records) < 2 {
		return nil, nil, fmt.Errorf("%s CSV must have header and at least one data row", name)
	}

	columns, err := indexHeader(records[0], known, required)
	if err != nil {
		return nil, nil, fmt.Errorf("%s CSV header mismatch: %w", name, err)
	}

	for i, record := range records[1:] {
		if len(record) != len(records[0]) {
			return nil, nil, fmt.Errorf("%s CSV row %d: expected %d columns, got %d", name, i+2, len(records[0]), len(record))
		}
	}
	return records[1:], columns, nil
}

func indexHeader(header, known, required []string) (map[string]int, error) {
	allowed := make(map[string]bool, len(known))
	for _, col := range known {
		allowed[col] = true
	}

	columns := make(map[string]int, len(header))
	for i, col := range header {
		col = strings.ToLower(strings.TrimSpace(col))
		if !allowed[col] {
			return nil, fmt.Errorf("unknown column %q (expected some of %v)", col, known)
		}
		if _, dup := columns[col]; dup {
			return nil, fmt.Errorf("duplicate column %q", col)
		}
		columns[col] = i
	}

	for _, col := range required {
		if _, ok := columns[col]; !ok {
			return nil, fmt.Errorf("missing required column %q", col)
		}
	}
	return columns, nil
}

type row struct {
	record  []string
	columns map[string]int
}

func (r row) get(col string) string {
	i, ok := r.columns[col]
	if !ok {
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

func parseComponent(r row) (*entities.Component, error) {
	componentType, err := entities.ParseComponentType(r.get("component_type"))
	if err != nil {
		return nil, err
	}

	component, err := entities.NewComponent(entities.ComponentID(r.get("id")), r.get("description"), componentType)
	if err != nil {
		return nil, err
	}

	if s := r.get("standard_cost"); s != "" {
		cost, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid standard_cost: %s", s)
		}
		*component = component.WithCost(cost)
	}

	if s := r.get("uom"); s != "" {
		component.UnitOfMeasure = s
	}

	component.Procurement, err = entities.ParseProcurementType(r.get("procurement_type"))
	if err != nil {
		return nil, err
	}

	if s := r.get("lead_time_days"); s != "" {
		component.LeadTimeDays, err = strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid lead_time_days: %s", s)
		}
	}
	return component, nil
}

func parseBomItem(r row, check bool) (*entities.BomItem, error) {
	quantity, err := decimal.NewFromString(r.get("quantity"))
	if err != nil {
		return nil, fmt.Errorf("invalid quantity: %s", r.get("quantity"))
	}

	scrap := decimal.Zero
	if s := r.get("scrap_factor"); s != "" {
		scrap, err = decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid scrap_factor: %s", s)
		}
	}

	item := entities.NewUncheckedBomItem(entities.ComponentID(r.get("parent_id")), entities.ComponentID(r.get("child_id")), quantity, scrap)
	if check {
		if err := item.Validate(); err != nil {
			return nil, err
		}
	}

	if s := r.get("sequence"); s != "" {
		item.Sequence, err = strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid sequence: %s", s)
		}
	}

	if s := r.get("is_phantom"); s != "" {
		item.Phantom, err = strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("invalid is_phantom: %s (expected true or false)", s)
		}
	}

	if s := r.get("effective_from"); s != "" {
		item.EffectiveFrom, err = time.Parse(dateLayout, s)
		if err != nil {
			return nil, fmt.Errorf("invalid effective_from format: %s (expected YYYY-MM-DD)", s)
		}
	}

	if s := r.get("effective_to"); s != "" {
		to, err := time.Parse(dateLayout, s)
		if err != nil {
			return nil, fmt.Errorf("invalid effective_to format: %s (expected YYYY-MM-DD)", s)
		}
		item.EffectiveTo = &to
	}

	item.AlternativeGroup = r.get("alternative_group")
	if s := r.get("alternative_priority"); s != "" {
		item.AlternativePriority, err = strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid alternative_priority: %s", s)
		}
	}

	item.ReferenceDesignator = r.get("reference_designator")
	return item, nil
}
