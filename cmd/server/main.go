// Package main runs the learning engine behind the HTTP control surface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"candle-learning-lab/internal/api"
	"candle-learning-lab/internal/bootstrap"
	"candle-learning-lab/internal/config"
	"candle-learning-lab/internal/engine"
	"candle-learning-lab/internal/ledger"
	"candle-learning-lab/internal/logging"
	"candle-learning-lab/internal/reporting"
	tradesignal "candle-learning-lab/internal/signal"
	"candle-learning-lab/internal/simulation"
	"candle-learning-lab/internal/universe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("CANDLE_LAB_CONFIG"), "Path to YAML config file")
	httpAddr := flag.String("http-addr", "", "HTTP listen address (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage and cache regardless of config")
	autoStart := flag.Bool("auto-start", false, "Start the learning engine at boot")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *httpAddr != "" {
		cfg.App.HTTPAddr = *httpAddr
	}
	if *useMemory {
		cfg.Storage.StrategiesBackend = config.BackendMemory
		cfg.Storage.TradesBackend = config.BackendMemory
		cfg.Cache.Backend = config.BackendMemory
	}
	if *autoStart {
		cfg.App.AutoStart = true
	}

	logger := logging.New(cfg.App.LogLevel, cfg.App.LogFormat).
		With().Str("app", cfg.App.Name).Str("env", cfg.App.Env).Logger()

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, closeStores, err := bootstrap.OpenStores(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer closeStores()

	snapshots, closeCache, err := bootstrap.OpenSnapshotCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	symbols, err := loadUniverse(cfg.Engine.UniverseFile)
	if err != nil {
		return err
	}
	logger.Info().Int("symbols", symbols.Size()).Msg("universe loaded")

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := api.NewHub(logger)
	go hub.Run(hubCtx)

	ldg := ledger.New(stores.Strategies, stores.Trades, ledger.Options{
		SerializePatterns: cfg.Engine.SerializePatterns,
		OnRecorded:        hub.PublishTrade,
	})

	candles := simulation.NewRandomCandles()
	var rng *rand.Rand
	if cfg.Engine.Seed != 0 {
		candles = simulation.NewSeededCandles(cfg.Engine.Seed)
		rng = rand.New(rand.NewPCG(cfg.Engine.Seed, 1))
	}

	eng, err := engine.New(engine.Options{
		Simulator:      simulation.NewSimulator(candles, ldg),
		Universe:       symbols,
		Logger:         logger,
		BatchSize:      cfg.Engine.BatchSize,
		CycleInterval:  cfg.Engine.CycleInterval,
		MaxConcurrency: cfg.Engine.MaxConcurrency,
		Rand:           rng,
	})
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	reports := reporting.NewService(reporting.Options{
		Strategies: stores.Strategies,
		Trades:     stores.Trades,
		Cache:      snapshots,
		IsLearning: eng.Running,
		Logger:     logger,
	})

	server := api.NewServer(api.Options{
		Engine:      eng,
		Signals:     tradesignal.NewService(ldg),
		Stats:       reports,
		Hub:         hub,
		Scalability: cfg.Scalability,
		Logger:      logger,
		Production:  cfg.App.Env == "production",
	})

	if cfg.App.AutoStart {
		eng.Start()
		logger.Info().Msg("engine auto-started")
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start(cfg.App.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := eng.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("engine shutdown: %w", err))
	}
	stopHub()

	stats := eng.Stats()
	logger.Info().
		Int64("ticks", stats.TicksCompleted).
		Int64("simulations_ok", stats.SimulationsOK).
		Int64("simulations_failed", stats.SimulationsFailed).
		Msg("server stopped")

	return errors.Join(errs...)
}

func loadUniverse(path string) (*universe.Universe, error) {
	if path == "" {
		return universe.Default(), nil
	}
	u, err := universe.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}
	return u, nil
}
