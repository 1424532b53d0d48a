// Package bootstrap opens the stores and cache selected by configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"candle-learning-lab/internal/cache"
	"candle-learning-lab/internal/config"
	"candle-learning-lab/internal/reporting"
	"candle-learning-lab/internal/storage"
	chstore "candle-learning-lab/internal/storage/clickhouse"
	"candle-learning-lab/internal/storage/memory"
	"candle-learning-lab/internal/storage/migrations"
	pgstore "candle-learning-lab/internal/storage/postgres"
)

// Stores bundles the persistence ports.
type Stores struct {
	Strategies storage.StrategyStore
	Trades     storage.TradeSimulationStore
}

// closers runs cleanup functions in reverse order.
type closers []func()

func (c closers) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

// OpenStores connects the configured backends, running migrations when enabled.
// The returned cleanup closes every connection that was opened.
func OpenStores(ctx context.Context, cfg config.Storage, logger zerolog.Logger) (*Stores, func(), error) {
	var cleanup closers
	stores := &Stores{}

	var pool *pgstore.Pool
	if cfg.StrategiesBackend == config.BackendPostgres || cfg.TradesBackend == config.BackendPostgres {
		var err error
		pool, err = pgstore.NewPoolWithOptions(ctx, cfg.PostgresDSN, pgstore.PoolOptions{MaxConns: cfg.PostgresMaxConns})
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		cleanup = append(cleanup, pool.Close)

		if cfg.RunMigrations {
			applied, err := migrations.RunPostgresMigrations(ctx, pool)
			if err != nil {
				cleanup.run()
				return nil, nil, fmt.Errorf("postgres migrations: %w", err)
			}
			logger.Info().Strs("applied", applied).Msg("postgres migrations done")
		}
	}

	switch cfg.StrategiesBackend {
	case config.BackendPostgres:
		stores.Strategies = pgstore.NewStrategyStore(pool)
	case config.BackendMemory:
		stores.Strategies = memory.NewStrategyStore()
	default:
		cleanup.run()
		return nil, nil, fmt.Errorf("unknown strategies backend %q", cfg.StrategiesBackend)
	}

	switch cfg.TradesBackend {
	case config.BackendPostgres:
		stores.Trades = pgstore.NewTradeSimulationStore(pool)
	case config.BackendClickhouse:
		conn, err := openClickhouse(ctx, cfg)
		if err != nil {
			cleanup.run()
			return nil, nil, err
		}
		cleanup = append(cleanup, func() {
			if err := conn.Close(); err != nil {
				logger.Warn().Err(err).Msg("close clickhouse")
			}
		})
		stores.Trades = chstore.NewTradeSimulationStore(conn)
	case config.BackendMemory:
		stores.Trades = memory.NewTradeSimulationStore()
	default:
		cleanup.run()
		return nil, nil, fmt.Errorf("unknown trades backend %q", cfg.TradesBackend)
	}

	logger.Info().
		Str("strategies", cfg.StrategiesBackend).
		Str("trades", cfg.TradesBackend).
		Msg("stores ready")

	return stores, cleanup.run, nil
}

func openClickhouse(ctx context.Context, cfg config.Storage) (*chstore.Conn, error) {
	if cfg.RunMigrations {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			return nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		return conn, nil
	}
	conn, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse: %w", err)
	}
	return conn, nil
}

// OpenSnapshotCache builds the reporting cache. A disabled cache still returns
// a cache that always misses.
func OpenSnapshotCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (cache.Cache[reporting.Snapshot], func(), error) {
	switch cfg.Cache.Backend {
	case config.BackendMemory, "":
		return cache.NewTTLCache[reporting.Snapshot](cfg.CacheConfig()), func() {}, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr, DB: cfg.Cache.RedisDB})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis %s: %w", cfg.Cache.RedisAddr, err)
		}
		closeFn := func() {
			if err := client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
				logger.Warn().Err(err).Msg("close redis")
			}
		}
		logger.Info().Str("addr", cfg.Cache.RedisAddr).Msg("redis cache ready")
		return cache.NewRedisCache[reporting.Snapshot](client, cfg.Cache.KeyPrefix, cfg.CacheConfig()), closeFn, nil

	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}
