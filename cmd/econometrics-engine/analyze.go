package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/miradorstack/climate-econometrics/internal/api"
	"github.com/miradorstack/climate-econometrics/internal/source"
	"github.com/miradorstack/climate-econometrics/internal/utils"
)

type analyzeOptions struct {
	explanatory       string
	dependent         string
	dateColumn        string
	explanatoryColumn string
	dependentColumn   string
	output            string
	timeout           time.Duration
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the diagnostic pipeline once and print the report as YAML",
		Long: `Load two already-downloaded series, run every diagnostic stage and print the
report. Files ending in .json are read as the CO2 trend document; anything else is
read as CSV with a header row.

Examples:
  econometrics-engine analyze --explanatory data/co2.json --dependent data/dow.csv
  econometrics-engine analyze --dependent dow.csv --dependent-column close --output report.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalyze(cmd, root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.explanatory, "explanatory", "", "Explanatory (CO2) series file (default input.explanatoryPath)")
	cmd.Flags().StringVar(&opts.dependent, "dependent", "", "Dependent (stock index) series file (default input.dependentPath)")
	cmd.Flags().StringVar(&opts.dateColumn, "date-column", "", "CSV date column (default input.dateColumn)")
	cmd.Flags().StringVar(&opts.explanatoryColumn, "explanatory-column", "", "CSV value column of the explanatory file")
	cmd.Flags().StringVar(&opts.dependentColumn, "dependent-column", "", "CSV value column of the dependent file")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the report to this file instead of stdout")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "Abort the run after this long")
	return cmd
}

func runAnalyze(cmd *cobra.Command, root *rootOptions, opts *analyzeOptions) error {
	cfg, err := root.load()
	if err != nil {
		return err
	}
	logger := utils.NewLoggerTo(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.JSON)

	in := cfg.Input
	override(&in.ExplanatoryPath, opts.explanatory)
	override(&in.DependentPath, opts.dependent)
	override(&in.DateColumn, opts.dateColumn)
	override(&in.ExplanatoryColumn, opts.explanatoryColumn)
	override(&in.DependentColumn, opts.dependentColumn)
	if in.ExplanatoryPath == "" || in.DependentPath == "" {
		return fmt.Errorf("both --explanatory and --dependent files are required")
	}

	explanatory, err := source.LoadFile(in.ExplanatoryPath, in.ExplanatoryName,
		source.CSVOptions{DateColumn: in.DateColumn, ValueColumn: in.ExplanatoryColumn})
	if err != nil {
		return err
	}
	dependent, err := source.LoadFile(in.DependentPath, in.DependentName,
		source.CSVOptions{DateColumn: in.DateColumn, ValueColumn: in.DependentColumn})
	if err != nil {
		return err
	}
	logger.Info("inputs loaded",
		slog.String("explanatory", in.ExplanatoryPath), slog.Int("explanatory_points", explanatory.Len()),
		slog.String("dependent", in.DependentPath), slog.Int("dependent_points", dependent.Len()),
	)

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	provider := openCache(ctx, cfg.Cache, logger)
	defer provider.Close()

	service, err := newAnalysisService(cfg, logger, provider)
	if err != nil {
		return err
	}
	report, err := service.Analyze(ctx, explanatory, dependent)
	if err != nil {
		logger.Error("analysis failed", slog.String("stage", utils.StageOf(err)), slog.Any("error", err))
		return err
	}

	out := cmd.OutOrStdout()
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}
	return writeYAML(out, api.ReportMap(report))
}

func writeYAML(w io.Writer, doc map[string]any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return enc.Close()
}

func override(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}
