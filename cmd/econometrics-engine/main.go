package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/miradorstack/climate-econometrics/internal/cache"
	"github.com/miradorstack/climate-econometrics/internal/config"
	"github.com/miradorstack/climate-econometrics/internal/engine"
	"github.com/miradorstack/climate-econometrics/internal/services"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "econometrics-engine",
		Short: "Diagnose the regression of a stock index on atmospheric CO2",
		Long: `econometrics-engine aligns a CO2 series with a stock-index series, checks the
classical regression assumptions, fits OLS and switches to weighted least squares
when heteroscedasticity is detected.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to configuration file (defaults to $"+config.EnvConfigPath+")")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override logging.level")

	root.AddCommand(newAnalyzeCmd(opts), newServeCmd(opts))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}

// openCache returns the configured report cache, degrading to no caching when the
// backend cannot be opened.
func openCache(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) cache.Provider {
	provider, err := cache.Open(ctx, cfg)
	if err != nil {
		logger.Warn("report cache unavailable", slog.String("backend", cfg.Backend), slog.Any("error", err))
		return provider
	}
	if cfg.Enabled {
		logger.Info("report cache enabled",
			slog.String("backend", cfg.Backend),
			slog.Duration("ttl", cfg.ReportTTL),
		)
	}
	return provider
}

func newAnalysisService(cfg *config.Config, logger *slog.Logger, provider cache.Provider) (*services.AnalysisService, error) {
	rules, err := engine.NewRuleEngine(cfg.Rules.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("load rule pack: %w", err)
	}
	pipeline := engine.NewPipeline(logger, engine.OptionsFromConfig(cfg.Analysis), rules)

	var since time.Time
	if cfg.Input.StartDate != "" {
		since, err = time.Parse("2006-01-02", cfg.Input.StartDate)
		if err != nil {
			return nil, fmt.Errorf("input.startDate: %w", err)
		}
	}
	return services.NewAnalysisService(logger, pipeline, provider, services.ServiceOptions{
		CacheTTL:  cfg.Cache.ReportTTL,
		KeyPrefix: cfg.Cache.KeyPrefix,
		Since:     since,
	}), nil
}
