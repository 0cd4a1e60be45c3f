package commands

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vsinha/bom/pkg/application/dto"
	"github.com/vsinha/bom/pkg/domain/entities"
)

func newCostCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cost <component> [component...]",
		Short: "Roll up the unit cost of one or more components and rank the cost drivers",
		Example: `  bom cost BIKE --dir scenario --top 5
  bom cost ENGINE GEARBOX --database-url postgres://localhost/bom -f csv`,
		Args: cobra.MinimumNArgs(1),
	}
	cmd.Flags().Int("top", 10, "Number of cost drivers to list (0 = all)")

	cmd.RunE = a.run(func(ctx context.Context, args []string) error {
		ids := make([]entities.ComponentID, len(args))
		for i, arg := range args {
			ids[i] = componentID(arg)
		}

		results, err := a.cost(ctx, ids)
		if err != nil {
			return err
		}
		if len(results) == 1 {
			return a.out.Cost(results[0])
		}
		return a.out.Costs(results)
	})
	return cmd
}

// cost costs a single root over its own graph, or several roots over the catalog graph
func (a *app) cost(ctx context.Context, ids []entities.ComponentID) ([]*dto.CostResult, error) {
	if len(ids) == 1 {
		g, err := a.engine.Load(ctx, ids[0], a.asOf)
		if err != nil {
			return nil, err
		}
		result, err := a.engine.Cost(ctx, g, ids[0])
		if err != nil {
			return nil, err
		}
		return []*dto.CostResult{result}, nil
	}

	g, err := a.engine.LoadAll(ctx, a.asOf)
	if err != nil {
		return nil, err
	}
	a.logger.Info("costing components", zap.Int("roots", len(ids)), zap.Int("components", g.NodeCount()))
	return a.engine.CostBatch(ctx, g, ids)
}
