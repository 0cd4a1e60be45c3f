package calculation

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/bom/pkg/application/dto"
	"github.com/vsinha/bom/pkg/domain/entities"
	"github.com/vsinha/bom/pkg/domain/graph"
)

// AnalysisResult combines the explosion and cost of one root with the shape of its graph
type AnalysisResult struct {
	Explosion  *dto.ExplosionResult
	Cost       *dto.CostResult
	Stats      graph.Stats
	TotalCost  decimal.Decimal
	AnalyzedAt time.Time
}

// Analyze builds the graph under rootID, explodes qty units and costs the root
func (e *Engine) Analyze(
	ctx context.Context,
	rootID entities.ComponentID,
	qty decimal.Decimal,
	asOf *time.Time,
) (*AnalysisResult, error) {
	g, err := e.Load(ctx, rootID, asOf)
	if err != nil {
		return nil, err
	}

	exploded, err := e.Explode(ctx, g, rootID, qty)
	if err != nil {
		return nil, fmt.Errorf("failed to run explosion: %w", err)
	}

	cost, err := e.Cost(ctx, g, rootID)
	if err != nil {
		return nil, fmt.Errorf("failed to run cost rollup: %w", err)
	}

	return &AnalysisResult{
		Explosion:  exploded,
		Cost:       cost,
		Stats:      g.Stats(),
		TotalCost:  cost.TotalCost.Mul(qty),
		AnalyzedAt: time.Now(),
	}, nil
}

// GetSummary returns a formatted summary of the analysis
func (r *AnalysisResult) GetSummary() string {
	summary := fmt.Sprintf("BOM Summary for %s x %s:\n", r.Explosion.Root, r.Explosion.Quantity)
	summary += fmt.Sprintf("  Graph: %d components, %d relationships, %d levels, %d shared\n",
		r.Stats.NodeCount, r.Stats.EdgeCount, r.Stats.MaxLevel+1, r.Stats.SharedNodes)
	summary += fmt.Sprintf("  Explosion: %d components, max depth %d\n",
		r.Explosion.UniqueComponentCount, r.Explosion.MaxDepth)
	summary += fmt.Sprintf("  Unit cost: %s (direct %s, children %s)\n",
		r.Cost.TotalCost.StringFixed(2), r.Cost.DirectCost.StringFixed(2), r.Cost.RolledUpChildCost.StringFixed(2))
	summary += fmt.Sprintf("  Total cost: %s", r.TotalCost.StringFixed(2))
	if len(r.Cost.CostDrivers) > 0 {
		top := r.Cost.CostDrivers[0]
		summary += fmt.Sprintf("\n  Top driver: %s (%s%%)", top.ComponentID, top.Percentage.StringFixed(1))
	}
	return summary
}
