package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vsinha/bom/pkg/domain/entities"
)

func newWhereUsedCommand(a *app) *cobra.Command {
	var rootsOnly bool

	cmd := &cobra.Command{
		Use:   "where-used <component>",
		Short: "Show every assembly a component is used in, level by level",
		Example: `  bom where-used SPOKE --dir scenario
  bom where-used INJECTOR --bom rocket.yaml --roots`,
		Args: cobra.ExactArgs(1),
	}
	cmd.Flags().BoolVar(&rootsOnly, "roots", false, "Only list the top-level assemblies")

	cmd.RunE = a.run(func(ctx context.Context, args []string) error {
		id := componentID(args[0])
		g, err := a.engine.LoadAll(ctx, a.asOf)
		if err != nil {
			return err
		}

		if rootsOnly {
			roots, err := a.engine.RootAssemblies(ctx, g, id)
			if err != nil {
				return err
			}
			return a.out.Components(fmt.Sprintf("Root assemblies using %s", id), roots)
		}

		result, err := a.engine.WhereUsed(ctx, g, id)
		if err != nil {
			return err
		}
		return a.out.WhereUsed(result)
	})
	return cmd
}

func newImpactCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "impact <component>",
		Short: "List the assemblies, roots and shared parts affected by changing a component",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, args []string) error {
			g, err := a.engine.LoadAll(ctx, a.asOf)
			if err != nil {
				return err
			}
			result, err := a.engine.ChangeImpact(ctx, g, componentID(args[0]))
			if err != nil {
				return err
			}
			return a.out.Impact(result)
		}),
	}
}

func newSharedCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shared <assembly> <assembly> [assembly...]",
		Short: "List the components used by more than one of the given assemblies",
		Args:  cobra.MinimumNArgs(2),
		RunE: a.run(func(ctx context.Context, args []string) error {
			ids := make([]entities.ComponentID, len(args))
			for i, arg := range args {
				ids[i] = componentID(arg)
			}

			g, err := a.engine.LoadAll(ctx, a.asOf)
			if err != nil {
				return err
			}
			shared, err := a.engine.SharedComponents(ctx, g, ids)
			if err != nil {
				return err
			}
			return a.out.Shared(shared)
		}),
	}
}
