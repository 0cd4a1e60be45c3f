package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/vsinha/bom/pkg/application/dto"
	"github.com/vsinha/bom/pkg/domain/entities"
	"github.com/vsinha/bom/pkg/domain/services"
)

// Format selects how results are rendered
type Format int

const (
	Table Format = iota
	JSON
	CSV
)

// String method for Format enum
func (f Format) String() string {
	switch f {
	case Table:
		return "table"
	case JSON:
		return "json"
	case CSV:
		return "csv"
	default:
		return "unknown"
	}
}

// ParseFormat parses an output format name; "text" is accepted for table
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "table", "text":
		return Table, nil
	case "json":
		return JSON, nil
	case "csv":
		return CSV, nil
	default:
		return Table, fmt.Errorf("unsupported output format: %s", s)
	}
}

// Writer renders calculation results to w
type Writer struct {
	w      io.Writer
	format Format

	title  lipgloss.Style
	header lipgloss.Style
	muted  lipgloss.Style
}

// NewWriter creates a writer. Colours are only emitted when w is a terminal.
func NewWriter(w io.Writer, format Format) *Writer {
	r := lipgloss.NewRenderer(w)
	return &Writer{
		w:      w,
		format: format,
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("#00A3FF")),
		header: r.NewStyle().Bold(true),
		muted:  r.NewStyle().Foreground(lipgloss.Color("#888888")),
	}
}

// Explosion renders a material list
func (o *Writer) Explosion(result *dto.ExplosionResult) error {
	switch o.format {
	case JSON:
		return o.json(result)
	case CSV:
		rows := make([][]string, 0, len(result.Items))
		for _, item := range result.Items {
			rows = append(rows, []string{string(item.ComponentID), strconv.Itoa(item.Level), item.RequiredQuantity.String()})
		}
		return o.csv([]string{"component_id", "level", "required_quantity"}, rows)
	}

	withPaths := false
	for _, item := range result.Items {
		if len(item.Paths) > 0 {
			withPaths = true
			break
		}
	}

	headers := []string{"Component", "Level", "Quantity"}
	if withPaths {
		headers = append(headers, "Paths")
	}
	rows := make([][]string, 0, len(result.Items))
	for _, item := range result.Items {
		row := []string{indent(item.Level) + string(item.ComponentID), strconv.Itoa(item.Level), item.RequiredQuantity.String()}
		if withPaths {
			row = append(row, formatPaths(item.Paths))
		}
		rows = append(rows, row)
	}

	o.printf("%s\n", o.title.Render(fmt.Sprintf("Explosion of %s x %s", result.Root, result.Quantity)))
	o.table(headers, rows)
	o.printf("%s\n", o.muted.Render(fmt.Sprintf("%d components, max depth %d", result.UniqueComponentCount, result.MaxDepth)))
	return nil
}

// Cost renders a cost rollup with its drivers
func (o *Writer) Cost(result *dto.CostResult) error {
	switch o.format {
	case JSON:
		return o.json(result)
	case CSV:
		return o.csv(costHeader, costRows(result))
	}
	o.costTable(result)
	return nil
}

// Costs renders several rollups: a JSON array, one CSV table, or consecutive tables
func (o *Writer) Costs(results []*dto.CostResult) error {
	switch o.format {
	case JSON:
		return o.json(results)
	case CSV:
		var rows [][]string
		for _, result := range results {
			rows = append(rows, costRows(result)...)
		}
		return o.csv(costHeader, rows)
	}
	for i, result := range results {
		if i > 0 {
			o.printf("\n")
		}
		o.costTable(result)
	}
	return nil
}

var costHeader = []string{"component_id", "contribution", "percentage"}

// costRows lists the root at 100% followed by its drivers
func costRows(result *dto.CostResult) [][]string {
	rows := [][]string{{string(result.ComponentID), result.TotalCost.String(), "100"}}
	for _, d := range result.CostDrivers {
		rows = append(rows, []string{string(d.ComponentID), d.Contribution.String(), d.Percentage.String()})
	}
	return rows
}

func (o *Writer) costTable(result *dto.CostResult) {
	o.printf("%s\n", o.title.Render(fmt.Sprintf("Unit cost of %s", result.ComponentID)))
	o.table([]string{"", "Cost"}, [][]string{
		{"Direct", money(result.DirectCost)},
		{"Children", money(result.RolledUpChildCost)},
		{"Total", money(result.TotalCost)},
	})

	if len(result.CostDrivers) == 0 {
		return
	}
	o.printf("\n%s\n", o.title.Render("Cost drivers"))
	rows := make([][]string, 0, len(result.CostDrivers))
	for i, d := range result.CostDrivers {
		rows = append(rows, []string{strconv.Itoa(i + 1), string(d.ComponentID), money(d.Contribution), d.Percentage.StringFixed(2) + "%"})
	}
	o.table([]string{"#", "Component", "Contribution", "Share"}, rows)
}

// WhereUsed renders the assemblies above a component
func (o *Writer) WhereUsed(result *dto.WhereUsedResult) error {
	switch o.format {
	case JSON:
		return o.json(result)
	case CSV:
		rows := make([][]string, 0, len(result.UsedIn))
		for _, e := range result.UsedIn {
			rows = append(rows, []string{strconv.Itoa(e.Level), string(e.ParentID), string(e.ChildID), e.EdgeQuantity.String()})
		}
		return o.csv([]string{"level", "parent_id", "child_id", "edge_quantity"}, rows)
	}

	o.printf("%s\n", o.title.Render(fmt.Sprintf("Where %s is used", result.Component)))
	if len(result.UsedIn) == 0 {
		o.printf("%s\n", o.muted.Render("not used in any assembly"))
		return nil
	}
	rows := make([][]string, 0, len(result.UsedIn))
	for _, e := range result.UsedIn {
		rows = append(rows, []string{strconv.Itoa(e.Level), string(e.ParentID), string(e.ChildID), e.EdgeQuantity.String()})
	}
	o.table([]string{"Level", "Parent", "Child", "Quantity"}, rows)
	return nil
}

// Components renders a titled list of component ids
func (o *Writer) Components(title string, ids []entities.ComponentID) error {
	switch o.format {
	case JSON:
		return o.json(ids)
	case CSV:
		rows := make([][]string, len(ids))
		for i, id := range ids {
			rows[i] = []string{string(id)}
		}
		return o.csv([]string{"component_id"}, rows)
	}

	o.printf("%s\n", o.title.Render(title))
	if len(ids) == 0 {
		o.printf("%s\n", o.muted.Render("none"))
	}
	for _, id := range ids {
		o.printf("  %s\n", id)
	}
	return nil
}

// Impact renders a change impact analysis
func (o *Writer) Impact(result *dto.ImpactAnalysis) error {
	switch o.format {
	case JSON:
		return o.json(result)
	case CSV:
		var rows [][]string
		for _, id := range result.AffectedComponents {
			rows = append(rows, []string{"affected", string(id)})
		}
		for _, id := range result.AffectedRoots {
			rows = append(rows, []string{"root", string(id)})
		}
		for _, id := range result.SharedComponents {
			rows = append(rows, []string{"shared", string(id)})
		}
		return o.csv([]string{"category", "component_id"}, rows)
	}

	o.printf("%s\n", o.title.Render(fmt.Sprintf("Impact of changing %s", result.ChangedComponent)))
	o.table([]string{"Category", "Count", "Components"}, [][]string{
		{"Affected", strconv.Itoa(len(result.AffectedComponents)), joinIDs(result.AffectedComponents)},
		{"Roots", strconv.Itoa(len(result.AffectedRoots)), joinIDs(result.AffectedRoots)},
		{"Shared", strconv.Itoa(len(result.SharedComponents)), joinIDs(result.SharedComponents)},
	})
	return nil
}

// Shared renders the components common to several assemblies
func (o *Writer) Shared(shared []dto.SharedComponent) error {
	switch o.format {
	case JSON:
		return o.json(shared)
	case CSV:
		rows := make([][]string, 0, len(shared))
		for _, s := range shared {
			rows = append(rows, []string{string(s.ComponentID), strings.Join(idStrings(s.UsedBy), ";")})
		}
		return o.csv([]string{"component_id", "used_by"}, rows)
	}

	if len(shared) == 0 {
		o.printf("%s\n", o.muted.Render("no shared components"))
		return nil
	}
	rows := make([][]string, 0, len(shared))
	for _, s := range shared {
		rows = append(rows, []string{string(s.ComponentID), joinIDs(s.UsedBy)})
	}
	o.table([]string{"Component", "Used by"}, rows)
	return nil
}

type validationView struct {
	Valid              bool                     `json:"valid"`
	HasCycles          bool                     `json:"has_cycles"`
	CyclePaths         [][]entities.ComponentID `json:"cycle_paths"`
	DuplicateItems     []itemRef                `json:"duplicate_items"`
	OrphanedReferences []entities.ComponentID   `json:"orphaned_references"`
	DuplicateIDs       []entities.ComponentID   `json:"duplicate_ids"`
	Errors             []string                 `json:"errors"`
}

type itemRef struct {
	ParentID entities.ComponentID `json:"parent_id"`
	ChildID  entities.ComponentID `json:"child_id"`
}

// Validation renders a data validation report
func (o *Writer) Validation(result *services.ValidationResult) error {
	switch o.format {
	case JSON:
		view := validationView{
			Valid:              result.IsValid(),
			HasCycles:          result.HasCycles,
			CyclePaths:         result.CyclePaths,
			DuplicateItems:     make([]itemRef, 0, len(result.DuplicateItems)),
			OrphanedReferences: result.OrphanedReferences,
			DuplicateIDs:       result.DuplicateIDs,
			Errors:             result.Errors,
		}
		for _, item := range result.DuplicateItems {
			view.DuplicateItems = append(view.DuplicateItems, itemRef{item.ParentID, item.ChildID})
		}
		return o.json(view)
	case CSV:
		rows := make([][]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			rows = append(rows, []string{e})
		}
		return o.csv([]string{"error"}, rows)
	}

	if result.IsValid() {
		o.printf("%s\n", o.title.Render("BOM is valid"))
		return nil
	}
	o.printf("%s\n", o.title.Render(fmt.Sprintf("BOM has %d problems", len(result.Errors))))
	for _, e := range result.Errors {
		o.printf("  - %s\n", e)
	}
	return nil
}

func (o *Writer) json(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	data = append(data, '\n')
	if _, err := o.w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	return nil
}

func (o *Writer) csv(header []string, rows [][]string) error {
	cw := csv.NewWriter(o.w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

// table prints left-aligned columns with a styled header and a dashed rule
func (o *Writer) table(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if l := lipgloss.Width(cell); l > widths[i] {
				widths[i] = l
			}
		}
	}

	cells := make([]string, len(headers))
	for i, h := range headers {
		cells[i] = o.header.Width(widths[i]).Render(h)
	}
	o.printf("%s\n", strings.TrimRight(strings.Join(cells, "  "), " "))

	for i := range headers {
		cells[i] = strings.Repeat("-", widths[i])
	}
	o.printf("%s\n", strings.Join(cells, "  "))

	for _, row := range rows {
		for i, cell := range row {
			cells[i] = cell + strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
		}
		o.printf("%s\n", strings.TrimRight(strings.Join(cells, "  "), " "))
	}
}

func (o *Writer) printf(format string, args ...any) {
	fmt.Fprintf(o.w, format, args...)
}

func indent(level int) string {
	return strings.Repeat("  ", level)
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func idStrings(ids []entities.ComponentID) []string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return parts
}

func joinIDs(ids []entities.ComponentID) string {
	return strings.Join(idStrings(ids), ", ")
}

func formatPaths(paths [][]entities.ComponentID) string {
	parts := make([]string, len(paths))
	for i, p := range paths {
		parts[i] = strings.Join(idStrings(p), " > ")
	}
	return strings.Join(parts, " | ")
}
