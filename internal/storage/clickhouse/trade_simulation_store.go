package clickhouse

import (
	"context"
	"fmt"
	"time"

	"candle-learning-lab/internal/domain"
	"candle-learning-lab/internal/storage"
)

// TradeSimulationStore implements storage.TradeSimulationStore using ClickHouse.
// MergeTree does not enforce uniqueness, so Insert checks for the id first.
type TradeSimulationStore struct {
	conn *Conn
}

// NewTradeSimulationStore creates a new TradeSimulationStore.
func NewTradeSimulationStore(conn *Conn) *TradeSimulationStore {
	return &TradeSimulationStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeSimulationStore = (*TradeSimulationStore)(nil)

// Insert adds a new simulation. Returns ErrDuplicateKey if id exists.
func (s *TradeSimulationStore) Insert(ctx context.Context, t *domain.TradeSimulation) (err error) {
	if t == nil || t.ID == "" || t.StrategyID == "" || !t.Result.IsValid() {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("trade_insert", start, err) }(time.Now())

	exists, err := s.exists(ctx, t.ID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	query := `
		INSERT INTO trade_simulations (id, pair, strategy_id, result, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	err = s.conn.Exec(ctx, query, t.ID, t.Pair, t.StrategyID, string(t.Result), t.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert trade simulation: %w", err)
	}
	return nil
}

// InsertBulk appends many simulations in one batch. Fails entire batch on any duplicate.
func (s *TradeSimulationStore) InsertBulk(ctx context.Context, trades []*domain.TradeSimulation) (err error) {
	if len(trades) == 0 {
		return nil
	}
	defer func(start time.Time) { observe("trade_insert_bulk", start, err) }(time.Now())

	// Check for intra-batch duplicates
	seen := make(map[string]struct{}, len(trades))
	for _, t := range trades {
		if t == nil || t.ID == "" || t.StrategyID == "" || !t.Result.IsValid() {
			return storage.ErrInvalidInput
		}
		if _, dup := seen[t.ID]; dup {
			return storage.ErrDuplicateKey
		}
		seen[t.ID] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, t := range trades {
		exists, err := s.exists(ctx, t.ID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO trade_simulations (id, pair, strategy_id, result, created_at)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, t := range trades {
		if err := batch.Append(t.ID, t.Pair, t.StrategyID, string(t.Result), t.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
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
		LIMIT ?
	`

	rows, err := s.conn.Query(ctx, query, uint64(limit))
	if err != nil {
		return nil, fmt.Errorf("query recent trade simulations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t domain.TradeSimulation
		var res string
		if err := rows.Scan(&t.ID, &t.Pair, &t.StrategyID, &res, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trade simulation: %w", err)
		}
		t.Result = domain.TradeResult(res)
		t.CreatedAt = t.CreatedAt.UTC()
		result = append(result, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade simulations: %w", err)
	}
	return result, nil
}

// Count returns the number of simulations.
func (s *TradeSimulationStore) Count(ctx context.Context) (n int64, err error) {
	defer func(start time.Time) { observe("trade_count", start, err) }(time.Now())

	var count uint64
	if err = s.conn.QueryRow(ctx, `SELECT count(*) FROM trade_simulations`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count trade simulations: %w", err)
	}
	return int64(count), nil
}

func (s *TradeSimulationStore) exists(ctx context.Context, id string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM trade_simulations WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
