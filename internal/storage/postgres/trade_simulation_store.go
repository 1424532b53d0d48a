package postgres

import (
	"context"
	"fmt"
	"time"

	"candle-learning-lab/internal/domain"
	"candle-learning-lab/internal/storage"
)

// TradeSimulationStore implements storage.TradeSimulationStore using PostgreSQL.
type TradeSimulationStore struct {
	pool *Pool
}

// NewTradeSimulationStore creates a new TradeSimulationStore.
func NewTradeSimulationStore(pool *Pool) *TradeSimulationStore {
	return &TradeSimulationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeSimulationStore = (*TradeSimulationStore)(nil)

// Insert adds a new simulation. Returns ErrDuplicateKey if id exists.
func (s *TradeSimulationStore) Insert(ctx context.Context, t *domain.TradeSimulation) (err error) {
	if t == nil || t.ID == "" || t.StrategyID == "" || !t.Result.IsValid() {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("trade_insert", start, err) }(time.Now())

	query := `
		INSERT INTO trade_simulations (id, pair, strategy_id, result, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = s.pool.Exec(ctx, query, t.ID, t.Pair, t.StrategyID, string(t.Result), t.CreatedAt)
	return classify("insert trade simulation", err)
}

// Recent retrieves up to limit simulations ordered by created_at DESC.
func (s *TradeSimulationStore) Recent(ctx context.Context, limit int) (result []*domain.TradeSimulation, err error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("trade_recent", start, err) }(time.Now())

	query := `
		SELECT id, pair, strategy_id, result, created_at
		FROM trade_simulations
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent trade simulations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t domain.TradeSimulation
		var res string
		if err := rows.Scan(&t.ID, &t.Pair, &t.StrategyID, &res, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trade simulation row: %w", err)
		}
		t.Result = domain.TradeResult(res)
		t.CreatedAt = t.CreatedAt.UTC()
		result = append(result, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade simulation rows: %w", err)
	}

	return result, nil
}

// Count returns the number of simulations.
func (s *TradeSimulationStore) Count(ctx context.Context) (n int64, err error) {
	defer func(start time.Time) { observe("trade_count", start, err) }(time.Now())

	if err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM trade_simulations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count trade simulations: %w", err)
	}
	return n, nil
}
