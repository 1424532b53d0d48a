package storage

import (
	"context"

	"candle-learning-lab/internal/domain"
)

// StrategyStore provides access to strategies storage.
// Name is unique; rows are created lazily and never deleted.
type StrategyStore interface {
	// GetByName retrieves a strategy by its pattern key. Returns ErrNotFound if not exists.
	GetByName(ctx context.Context, name string) (*domain.Strategy, error)

	// Upsert inserts or replaces the strategy identified by Name (last writer wins).
	Upsert(ctx context.Context, s *domain.Strategy) error

	// TopByWinRate retrieves up to limit strategies with total_simulations >= minSimulations,
	// ordered by win_rate DESC, then name ASC.
	TopByWinRate(ctx context.Context, minSimulations int64, limit int) ([]*domain.Strategy, error)

	// GetAll retrieves all strategies ordered by name.
	GetAll(ctx context.Context) ([]*domain.Strategy, error)

	// Count returns the number of strategies.
	Count(ctx context.Context) (int64, error)
}

// TradeSimulationStore provides access to trade_simulations storage.
type TradeSimulationStore interface {
	// Insert adds a new simulation. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, t *domain.TradeSimulation) error

	// Recent retrieves up to limit simulations ordered by created_at DESC.
	Recent(ctx context.Context, limit int) ([]*domain.TradeSimulation, error)

	// Count returns the number of simulations.
	Count(ctx context.Context) (int64, error)
}
