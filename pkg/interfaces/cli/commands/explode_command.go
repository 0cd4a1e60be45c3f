package commands

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vsinha/bom/pkg/application/dto"
	"github.com/vsinha/bom/pkg/domain/entities"
)

// ExplodeConfig holds the arguments of one explosion run
type ExplodeConfig struct {
	ComponentID entities.ComponentID
	Quantity    decimal.Decimal
	SingleLevel bool
}

func newExplodeCommand(a *app) *cobra.Command {
	var qty string
	var singleLevel bool

	cmd := &cobra.Command{
		Use:   "explode <component>",
		Short: "List the materials needed to build a quantity of a component",
		Example: `  bom explode BIKE --dir scenario --qty 10
  bom explode BIKE --bom bike.yaml --single-level -f json`,
		Args: cobra.ExactArgs(1),
	}
	cmd.Flags().StringVarP(&qty, "qty", "q", "1", "Quantity of the root to build")
	cmd.Flags().BoolVar(&singleLevel, "single-level", false, "Only list direct children (phantoms expanded)")
	cmd.Flags().Bool("include-paths", false, "Record every root-to-component path")

	cmd.RunE = a.run(func(ctx context.Context, args []string) error {
		quantity, err := decimal.NewFromString(qty)
		if err != nil {
			return fmt.Errorf("invalid --qty %q: %w", qty, err)
		}
		result, err := a.explode(ctx, ExplodeConfig{
			ComponentID: componentID(args[0]),
			Quantity:    quantity,
			SingleLevel: singleLevel,
		})
		if err != nil {
			return err
		}
		return a.out.Explosion(result)
	})
	return cmd
}

func (a *app) explode(ctx context.Context, cfg ExplodeConfig) (*dto.ExplosionResult, error) {
	g, err := a.engine.Load(ctx, cfg.ComponentID, a.asOf)
	if err != nil {
		return nil, err
	}

	a.logger.Info("exploding BOM",
		zap.String("root", string(cfg.ComponentID)),
		zap.String("quantity", cfg.Quantity.String()),
		zap.Bool("single_level", cfg.SingleLevel),
		zap.Int("components", g.NodeCount()))

	if cfg.SingleLevel {
		return a.engine.ExplodeSingleLevel(ctx, g, cfg.ComponentID, cfg.Quantity)
	}
	return a.engine.Explode(ctx, g, cfg.ComponentID, cfg.Quantity)
}
