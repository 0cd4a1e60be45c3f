// Package commands implements the bom command-line interface
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vsinha/bom/pkg/application/services/calculation"
	"github.com/vsinha/bom/pkg/domain/entities"
	"github.com/vsinha/bom/pkg/domain/repositories"
	"github.com/vsinha/bom/pkg/infrastructure/config"
	"github.com/vsinha/bom/pkg/infrastructure/logging"
	"github.com/vsinha/bom/pkg/infrastructure/metrics"
	"github.com/vsinha/bom/pkg/infrastructure/repositories/csv"
	"github.com/vsinha/bom/pkg/infrastructure/repositories/document"
	"github.com/vsinha/bom/pkg/infrastructure/repositories/postgres"
	"github.com/vsinha/bom/pkg/infrastructure/telemetry"
	"github.com/vsinha/bom/pkg/interfaces/cli/output"
)

// Version is reported by --version and attached to exported traces
var Version = "dev"

const (
	componentsFileName = "components.csv"
	itemsFileName      = "bom_items.csv"
)

// Options holds the flags shared by every subcommand
type Options struct {
	ConfigFile  string
	ScenarioDir string
	Components  string
	Items       string
	BOMFile     string
	Usage       string
	Alternative string
	AsOf        string
	MetricsOut  string
}

// app is the state a subcommand runs with once flags and configuration are resolved
type app struct {
	opts Options

	config   *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	engine   *calculation.Engine
	out      *output.Writer
	asOf     *time.Time

	shutdown telemetry.Shutdown
	closeDB  func()
}

// NewRootCommand builds the bom command tree
func NewRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "bom",
		Short: "Bill of materials explosion, costing and where-used analysis",
		Long: `bom loads a product structure from CSV files, a JSON/YAML document or PostgreSQL,
builds the BOM graph and answers explosion, cost rollup and where-used questions.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd); err != nil {
				return errors.Join(err, a.close(cmd.Context()))
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.opts.ConfigFile, "config", "", "Path to a YAML configuration file")
	flags.StringVarP(&a.opts.ScenarioDir, "dir", "d", "", "Directory holding "+componentsFileName+" and "+itemsFileName)
	flags.StringVar(&a.opts.Components, "components", "", "Components CSV file")
	flags.StringVar(&a.opts.Items, "items", "", "BOM items CSV file")
	flags.StringVar(&a.opts.BOMFile, "bom", "", "BOM document (.json, .yaml or .yml)")
	flags.StringVar(&a.opts.Usage, "usage", "production", "BOM usage to resolve (production, engineering, costing, maintenance)")
	flags.StringVar(&a.opts.Alternative, "alternative", "", "BOM alternative to resolve")
	flags.StringVar(&a.opts.AsOf, "as-of", "", "Effectivity date (YYYY-MM-DD or RFC3339); empty disables date filtering")
	flags.StringVar(&a.opts.MetricsOut, "metrics-out", "", "Write Prometheus metrics in text format to this file on exit")
	flags.Int("workers", 0, "Worker goroutines per graph level (0 = GOMAXPROCS)")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "console", "Log format (console, json)")
	flags.StringP("format", "f", "table", "Output format (table, json, csv)")
	flags.String("otel-endpoint", "", "OTLP/HTTP endpoint for traces")
	flags.String("database-url", "", "PostgreSQL connection string")

	cmd.AddCommand(
		newExplodeCommand(a),
		newCostCommand(a),
		newWhereUsedCommand(a),
		newImpactCommand(a),
		newSharedCommand(a),
		newAnalyzeCommand(a),
		newValidateCommand(a),
	)
	return cmd
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	cmd := NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (a *app) setup(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(a.opts.ConfigFile, cmd.Flags())
	if err != nil {
		return err
	}
	a.config = cfg

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	a.logger = logger

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry.ServiceName, Version, cfg.Telemetry.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to initialise tracing: %w", err)
	}
	a.shutdown = shutdown

	format, err := output.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}
	a.out = output.NewWriter(cmd.OutOrStdout(), format)

	if a.asOf, err = parseAsOf(a.opts.AsOf); err != nil {
		return err
	}

	var repo repositories.BomRepository
	if cmd.Annotations[rawSourceAnnotation] != "true" {
		if repo, err = a.openRepository(ctx); err != nil {
			return err
		}
	}

	engineConfig := calculation.EngineConfig{
		Workers:      cfg.Workers,
		IncludePaths: cfg.Explosion.IncludePaths,
		TopDrivers:   cfg.Costing.TopDrivers,
	}
	a.registry = prometheus.NewRegistry()
	a.engine = calculation.NewEngine(repo, engineConfig,
		calculation.WithLogger(logger),
		calculation.WithTracer(telemetry.Tracer("github.com/vsinha/bom")),
		calculation.WithRecorder(metrics.NewRecorder(a.registry)),
	)

	logger.Debug("configuration loaded",
		zap.Int("workers", a.engine.Workers()),
		zap.String("format", format.String()),
		zap.String("repository", fmt.Sprintf("%T", repo)))
	return nil
}

// openRepository picks the BOM source: a document, CSV files, or PostgreSQL
func (a *app) openRepository(ctx context.Context) (repositories.BomRepository, error) {
	usage, err := entities.ParseBomUsage(a.opts.Usage)
	if err != nil {
		return nil, err
	}

	components, items := a.csvFiles()
	switch {
	case a.opts.BOMFile != "":
		repo, err := document.LoadFile(a.opts.BOMFile)
		if err != nil {
			return nil, err
		}
		repo.SetUsage(usage, a.opts.Alternative)
		return repo, nil

	case components != "" || items != "":
		if components == "" || items == "" {
			return nil, errors.New("both --components and --items are required")
		}
		repo, err := csv.NewLoader().LoadRepository(components, items)
		if err != nil {
			return nil, err
		}
		repo.SetUsage(usage, a.opts.Alternative)
		return repo, nil

	case a.config.Database.URL != "":
		pool, err := postgres.Connect(ctx, a.config.Database.URL)
		if err != nil {
			return nil, err
		}
		a.closeDB = pool.Close
		return postgres.NewBomRepository(pool,
			postgres.WithUsage(usage, a.opts.Alternative),
			postgres.WithLogger(a.logger)), nil
	}

	return nil, errors.New("no BOM source: pass --bom, --dir, --components with --items, or --database-url")
}

// csvFiles resolves explicit CSV paths, falling back to the scenario directory
func (a *app) csvFiles() (string, string) {
	components, items := a.opts.Components, a.opts.Items
	if a.opts.ScenarioDir != "" {
		if components == "" {
			components = filepath.Join(a.opts.ScenarioDir, componentsFileName)
		}
		if items == "" {
			items = filepath.Join(a.opts.ScenarioDir, itemsFileName)
		}
	}
	return components, items
}

// run wraps a subcommand body so resources are released whether or not it fails
func (a *app) run(fn func(ctx context.Context, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		err := fn(ctx, args)
		return errors.Join(err, a.close(ctx))
	}
}

func (a *app) close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var errs []error

	if a.closeDB != nil {
		a.closeDB()
	}
	if a.opts.MetricsOut != "" && a.registry != nil {
		if err := prometheus.WriteToTextfile(a.opts.MetricsOut, a.registry); err != nil {
			errs = append(errs, fmt.Errorf("failed to write metrics: %w", err))
		}
	}
	if a.shutdown != nil {
		if err := a.shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush traces: %w", err))
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return errors.Join(errs...)
}

func parseAsOf(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("invalid --as-of %q: want YYYY-MM-DD or RFC3339", s)
	}
	return &t, nil
}

func componentID(arg string) entities.ComponentID {
	return entities.ComponentID(strings.TrimSpace(arg))
}
