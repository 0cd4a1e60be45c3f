package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vsinha/bom/pkg/domain/entities"
	"github.com/vsinha/bom/pkg/domain/services"
	"github.com/vsinha/bom/pkg/infrastructure/repositories/csv"
	"github.com/vsinha/bom/pkg/infrastructure/repositories/document"
)

// ErrInvalidBOM is returned by validate when the data has structural problems
var ErrInvalidBOM = errors.New("BOM validation failed")

func newValidateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check file-based BOM data for cycles, duplicates and dangling references",
		Args:  cobra.NoArgs,
		// Rows are read raw in rawData; opening a repository would reject bad rows first
		Annotations: map[string]string{rawSourceAnnotation: "true"},
		RunE: a.run(func(_ context.Context, _ []string) error {
			components, items, err := a.rawData()
			if err != nil {
				return err
			}

			result := services.NewBOMValidator().ValidateBOM(components, items)
			a.logger.Info("validated BOM",
				zap.Int("components", len(components)),
				zap.Int("items", len(items)),
				zap.Int("problems", len(result.Errors)))

			if err := a.out.Validation(result); err != nil {
				return err
			}
			if !result.IsValid() {
				return fmt.Errorf("%w: %d problems", ErrInvalidBOM, len(result.Errors))
			}
			return nil
		}),
	}
}

// rawSourceAnnotation marks commands that read the source themselves instead of
// through a repository
const rawSourceAnnotation = "bom/raw-source"

// rawData returns components and items as read from the source, before the per-row checks
// and de-duplication a repository performs
func (a *app) rawData() ([]entities.Component, []entities.BomItem, error) {
	if a.opts.BOMFile != "" {
		doc, err := document.DecodeFile(a.opts.BOMFile)
		if err != nil {
			return nil, nil, err
		}
		return doc.Rows()
	}

	components, items := a.csvFiles()
	if components == "" && items == "" {
		return nil, nil, errors.New("validate needs a file source: pass --bom, --dir, or --components with --items")
	}
	if components == "" || items == "" {
		return nil, nil, errors.New("both --components and --items are required")
	}

	loader := csv.NewLoader(csv.WithoutItemValidation())
	cs, err := loader.LoadComponents(components)
	if err != nil {
		return nil, nil, err
	}
	is, err := loader.LoadBomItems(items)
	if err != nil {
		return nil, nil, err
	}

	outC := make([]entities.Component, len(cs))
	for i, c := range cs {
		outC[i] = *c
	}
	outI := make([]entities.BomItem, len(is))
	for i, item := range is {
		outI[i] = *item
	}
	return outC, outI, nil
}
