// Package main renders the learning report from the configured stores.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"candle-learning-lab/internal/bootstrap"
	"candle-learning-lab/internal/config"
	"candle-learning-lab/internal/engine"
	"candle-learning-lab/internal/ledger"
	"candle-learning-lab/internal/logging"
	"candle-learning-lab/internal/reporting"
	"candle-learning-lab/internal/simulation"
	"candle-learning-lab/internal/universe"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("CANDLE_LAB_CONFIG"), "Path to YAML config file")
	outputDir := flag.String("output-dir", "reports", "Output directory for generated files")
	format := flag.String("format", "all", "Output format: markdown, csv or all")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage (combine with --warmup-ticks)")
	warmupTicks := flag.Int("warmup-ticks", 0, "Run this many learning ticks before reporting")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: load config: %v\n", err)
		os.Exit(1)
	}
	if *useMemory {
		cfg.Storage.StrategiesBackend = config.BackendMemory
		cfg.Storage.TradesBackend = config.BackendMemory
	}

	logger := logging.New(cfg.App.LogLevel, cfg.App.LogFormat)

	if err := run(context.Background(), cfg, logger, *outputDir, *format, *warmupTicks); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger, outputDir, format string, warmupTicks int) error {
	writeMarkdown, writeCSV := false, false
	switch format {
	case "markdown":
		writeMarkdown = true
	case "csv":
		writeCSV = true
	case "all":
		writeMarkdown, writeCSV = true, true
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	stores, cleanup, err := bootstrap.OpenStores(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if warmupTicks > 0 {
		if err := warmup(ctx, cfg, stores, logger, warmupTicks); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	reports := reporting.NewService(reporting.Options{
		Strategies: stores.Strategies,
		Trades:     stores.Trades,
		IsLearning: func() bool { return false },
		Logger:     logger,
	})

	if writeMarkdown {
		stats, err := reports.LearningStats(ctx)
		if err != nil {
			return fmt.Errorf("learning stats: %w", err)
		}
		path := filepath.Join(outputDir, "LEARNING_REPORT.md")
		if err := os.WriteFile(path, []byte(reporting.RenderMarkdown(stats)), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Printf("Generated: %s\n", path)
	}

	if writeCSV {
		all, err := stores.Strategies.GetAll(ctx)
		if err != nil {
			return fmt.Errorf("load strategies: %w", err)
		}
		out, err := reporting.RenderCSV(all)
		if err != nil {
			return fmt.Errorf("render csv: %w", err)
		}
		path := filepath.Join(outputDir, "strategies.csv")
		if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Printf("Generated: %s\n", path)
	}

	return nil
}

// warmup runs ticks synchronously so a fresh store has something to report.
func warmup(ctx context.Context, cfg *config.Config, stores *bootstrap.Stores, logger zerolog.Logger, ticks int) error {
	ldg := ledger.New(stores.Strategies, stores.Trades, ledger.Options{SerializePatterns: true})

	symbols := universe.Default()
	if cfg.Engine.UniverseFile != "" {
		var err error
		if symbols, err = universe.LoadFile(cfg.Engine.UniverseFile); err != nil {
			return fmt.Errorf("load universe: %w", err)
		}
	}

	eng, err := engine.New(engine.Options{
		Simulator:      simulation.NewSimulator(simulation.NewRandomCandles(), ldg),
		Universe:       symbols,
		Logger:         logger,
		BatchSize:      cfg.Engine.BatchSize,
		CycleInterval:  cfg.Engine.CycleInterval,
		MaxConcurrency: cfg.Engine.MaxConcurrency,
	})
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	for i := 0; i < ticks; i++ {
		report := eng.RunTick(ctx)
		logger.Debug().Int("tick", i+1).Int("ok", report.Succeeded).Int("failed", report.Failed).Msg("warmup tick")
	}
	return nil
}
