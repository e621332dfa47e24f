package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"conductor-hq/tollbooth/pkg/config"
	"conductor-hq/tollbooth/pkg/load"
	"conductor-hq/tollbooth/pkg/policy"
	"conductor-hq/tollbooth/pkg/policy/source"
	"conductor-hq/tollbooth/pkg/receipt"
	"conductor-hq/tollbooth/pkg/server"
	"conductor-hq/tollbooth/pkg/signature"
	"conductor-hq/tollbooth/pkg/storage"
	"conductor-hq/tollbooth/pkg/telemetry/logging"
	"conductor-hq/tollbooth/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Tollbooth server",
	Long: `Start the Tollbooth decision server with the specified configuration.

The server exposes the decision, rule, observation, and receipt APIs and
runs the background relax sweep and optional rule file watch.

Examples:
  # Start with default config
  tollbooth run

  # Start with custom config
  tollbooth run --config /etc/tollbooth/config.yaml

  # Override listen address
  tollbooth run --listen 0.0.0.0:8484

  # Validate config without starting the server
  tollbooth run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return err
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.New(cfg.Telemetry.Logging, os.Stdout)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage backend: one store serves receipts, rules, and feature
	// history so rule toggles stay atomic with their audit receipts.
	var store interface {
		receipt.Storage
		policy.RuleStore
		load.FeatureSink
		Close() error
	}
	switch cfg.Storage.Backend {
	case "sqlite":
		store, err = storage.NewSQLite(&storage.SQLiteConfig{
			Path:         cfg.Storage.SQLite.Path,
			MaxOpenConns: cfg.Storage.SQLite.MaxOpenConns,
			MaxIdleConns: cfg.Storage.SQLite.MaxIdleConns,
			WALMode:      cfg.Storage.SQLite.WALMode,
			BusyTimeout:  cfg.Storage.SQLite.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to open sqlite storage: %w", err)
		}
	case "memory":
		store = storage.NewMemory()
	default:
		return fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}
	defer store.Close()

	signer, err := signature.New([]byte(cfg.Signing.Secret))
	if err != nil {
		return fmt.Errorf("failed to create signature engine: %w", err)
	}

	ledger := receipt.NewLedger(signer, store, &receipt.LedgerConfig{
		TokenTTL: cfg.Signing.TokenTTL,
	})

	estimator, err := load.NewEstimator(&load.Config{
		Alpha:          cfg.Load.Alpha,
		ThresholdLow:   cfg.Load.ThresholdLow,
		ThresholdHigh:  cfg.Load.ThresholdHigh,
		RelaxThreshold: cfg.Load.RelaxThreshold,
		SeedLambda:     cfg.Load.SeedLambda,
		SeedMu:         cfg.Load.SeedMu,
	}, store, logger)
	if err != nil {
		return fmt.Errorf("failed to create load estimator: %w", err)
	}

	engine, err := policy.NewEngine(ctx, store, estimator, ledger, logger)
	if err != nil {
		return fmt.Errorf("failed to create policy engine: %w", err)
	}

	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Telemetry.Metrics, nil)
	}

	if cfg.Rules.File != "" {
		ruleFile, err := source.NewFile(cfg.Rules.File, cfg.Rules.Actor, engine, logger)
		if err != nil {
			return fmt.Errorf("failed to create rule file source: %w", err)
		}
		if err := ruleFile.Sync(ctx); err != nil {
			return fmt.Errorf("failed to apply rule file: %w", err)
		}
		if cfg.Rules.Watch {
			go func() {
				if err := ruleFile.Watch(ctx); err != nil && ctx.Err() == nil {
					logger.Error("rule file watch stopped", "error", err)
				}
			}()
		}
	}

	if cfg.Sweep.Enabled {
		sweeper := load.NewSweeper(estimator, &load.SweepConfig{
			Schedule: cfg.Sweep.Schedule,
		}, func(f load.Feature) {
			if collector != nil {
				collector.RecordFeature(f, load.LevelPermissive)
			}
		})
		if err := sweeper.Start(ctx); err != nil {
			return fmt.Errorf("failed to start relax sweeper: %w", err)
		}
		defer sweeper.Stop()
	}

	srv, err := server.NewServer(cfg.Server, engine, estimator, ledger, collector, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start(ctx)
}
