package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tradingmodels/internal/config"
	"tradingmodels/internal/loader"
	"tradingmodels/internal/logger"
	"tradingmodels/internal/pipeline"
	"tradingmodels/internal/provider"
	"tradingmodels/internal/recorder"
)

var (
	cfgFile       string
	symbol        string
	lookbackDays  int
	epochs        int
	forceDownload bool
	format        string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tradingmodels",
		Short: "Intraday trading-signal models",
		Long: `tradingmodels trains an online logistic classifier on intraday bars and
scores the freshest bars with it.

Examples:
  tradingmodels train --symbol AAPL --epochs 12
  tradingmodels status --runs 10
  tradingmodels stream --tail 20
  tradingmodels serve`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&symbol, "symbol", "", "ticker symbol (default from config)")
	rootCmd.PersistentFlags().IntVar(&lookbackDays, "lookback-days", 0, "days of intraday history to load")
	rootCmd.PersistentFlags().IntVar(&epochs, "epochs", 0, "training passes")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "output format: table, json")

	rootCmd.AddCommand(
		newTrainCmd(),
		newStatusCmd(),
		newStreamCmd(),
		newServeCmd(),
		newExportCmd(),
		newBrokerCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the collaborators shared by every command
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	loader *loader.Loader
	runs   *recorder.SQLiteRecorder

	closers []func() error
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	overrides := map[string]interface{}{}
	if symbol != "" {
		overrides["symbol"] = symbol
	}
	if cmd.Flags().Changed("lookback-days") {
		overrides["lookback_days"] = lookbackDays
	}
	if cmd.Flags().Changed("epochs") {
		overrides["epochs"] = epochs
	}
	dt, err := cfg.DayTrading.WithOverrides(overrides)
	if err != nil {
		return nil, err
	}
	cfg.DayTrading = dt

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	log, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	a := &app{cfg: cfg, log: log}

	fallback := provider.NewFallbackProvider(createProviders(cfg, log)...)
	fallback.SetLogger(log)
	cache, err := a.createCache()
	if err != nil {
		return nil, err
	}
	a.loader = loader.New(fallback, cache, log)

	if cfg.Recorder.Enabled {
		runs, err := recorder.NewSQLiteRecorder(cfg.RecorderPath(), log)
		if err != nil {
			log.Warn("run history disabled", logger.Error(err))
		} else {
			a.runs = runs
			a.closers = append(a.closers, runs.Close)
		}
	}
	return a, nil
}

func createProviders(cfg *config.Config, log *logger.Logger) []provider.Provider {
	var providers []provider.Provider

	// Yahoo Finance (primary - no key required)
	yahoo := provider.NewYahooProvider(cfg.API.Yahoo.RateLimit, cfg.API.Yahoo.Timeout)
	yahoo.SetLogger(log)
	providers = append(providers, yahoo)

	// Alpha Vantage (fallback)
	if cfg.API.AlphaVantage.Key != "" {
		providers = append(providers, provider.NewAlphaVantageProvider(
			cfg.API.AlphaVantage.Key, cfg.API.AlphaVantage.RateLimit, cfg.API.AlphaVantage.Timeout))
	}
	return providers
}

func (a *app) createCache() (loader.Cache, error) {
	switch a.cfg.Cache.Backend {
	case "redis":
		rc := loader.NewRedisCache(loader.RedisConfig{
			Addr:     a.cfg.Cache.Redis.Addr,
			Password: a.cfg.Cache.Redis.Password,
			DB:       a.cfg.Cache.Redis.DB,
			TTL:      a.cfg.Cache.Redis.TTL,
		})
		a.closers = append(a.closers, rc.Close)
		return rc, nil
	case "", "file":
		return loader.NewFileCache(a.cfg.DayTradingData()), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q (file or redis)", a.cfg.Cache.Backend)
	}
}

// pipeline builds a training pipeline for the configured model
func (a *app) pipeline() (*pipeline.Pipeline, error) {
	p, err := pipeline.New(a.cfg.DayTrading, a.cfg.DayTradingStorage(), a.loader, a.log)
	if err != nil {
		return nil, err
	}
	if a.runs != nil {
		p.SetRecorder(a.runs)
	}
	return p, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", logger.Error(err))
		}
	}
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
