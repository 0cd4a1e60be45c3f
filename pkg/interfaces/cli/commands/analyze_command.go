package commands

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newAnalyzeCommand(a *app) *cobra.Command {
	var qty string

	cmd := &cobra.Command{
		Use:   "analyze <component>",
		Short: "Explode and cost a component and print a short summary",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().StringVarP(&qty, "qty", "q", "1", "Quantity of the root to build")

	cmd.RunE = a.run(func(ctx context.Context, args []string) error {
		quantity, err := decimal.NewFromString(qty)
		if err != nil {
			return fmt.Errorf("invalid --qty %q: %w", qty, err)
		}
		result, err := a.engine.Analyze(ctx, componentID(args[0]), quantity, a.asOf)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), result.GetSummary())
		return err
	})
	return cmd
}
