package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"candle-learning-lab/internal/domain"
	"candle-learning-lab/internal/storage"
)

// StrategyStore implements storage.StrategyStore using PostgreSQL.
type StrategyStore struct {
	pool *Pool
}

// NewStrategyStore creates a new StrategyStore.
func NewStrategyStore(pool *Pool) *StrategyStore {
	return &StrategyStore{pool: pool}
}

// Compile-time interface check.
var _ storage.StrategyStore = (*StrategyStore)(nil)

const strategyColumns = `id, name, total_simulations, total_wins, win_rate, last_seen_at`

// GetByName retrieves a strategy by its pattern key. Returns ErrNotFound if not exists.
func (s *StrategyStore) GetByName(ctx context.Context, name string) (st *domain.Strategy, err error) {
	defer func(start time.Time) { observe("strategy_get", start, err) }(time.Now())

	query := `SELECT ` + strategyColumns + ` FROM strategies WHERE name = $1`

	st, err = scanStrategy(s.pool.QueryRow(ctx, query, name))
	if err != nil {
		return nil, classify("get strategy by name", err)
	}
	return st, nil
}

// Upsert inserts or replaces the counters of the strategy identified by Name.
// The id of an existing row is never overwritten.
func (s *StrategyStore) Upsert(ctx context.Context, st *domain.Strategy) (err error) {
	if st == nil || st.Name == "" || st.ID == "" {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("strategy_upsert", start, err) }(time.Now())

	query := `
		INSERT INTO strategies (` + strategyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE SET
			total_simulations = EXCLUDED.total_simulations,
			total_wins = EXCLUDED.total_wins,
			win_rate = EXCLUDED.win_rate,
			last_seen_at = EXCLUDED.last_seen_at
	`

	_, err = s.pool.Exec(ctx, query,
		st.ID, st.Name, st.TotalSimulations, st.TotalWins, st.WinRate, st.LastSeenAt,
	)
	// a unique violation here is an id reused under a different name
	return classify("upsert strategy", err)
}

// TopByWinRate retrieves the best strategies with at least minSimulations samples.
func (s *StrategyStore) TopByWinRate(ctx context.Context, minSimulations int64, limit int) (result []*domain.Strategy, err error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("strategy_top", start, err) }(time.Now())

	query := `
		SELECT ` + strategyColumns + `
		FROM strategies
		WHERE total_simulations >= $1
		ORDER BY win_rate DESC, name ASC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, minSimulations, limit)
	if err != nil {
		return nil, fmt.Errorf("get top strategies: %w", err)
	}
	defer rows.Close()

	return scanStrategies(rows)
}

// GetAll retrieves all strategies ordered by name.
func (s *StrategyStore) GetAll(ctx context.Context) (result []*domain.Strategy, err error) {
	defer func(start time.Time) { observe("strategy_get_all", start, err) }(time.Now())

	query := `SELECT ` + strategyColumns + ` FROM strategies ORDER BY name ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all strategies: %w", err)
	}
	defer rows.Close()

	return scanStrategies(rows)
}

// Count returns the number of strategies.
func (s *StrategyStore) Count(ctx context.Context) (n int64, err error) {
	defer func(start time.Time) { observe("strategy_count", start, err) }(time.Now())

	if err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM strategies`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count strategies: %w", err)
	}
	return n, nil
}

// scanStrategy scans a single row into a Strategy.
func scanStrategy(row pgx.Row) (*domain.Strategy, error) {
	var st domain.Strategy
	var lastSeen *time.Time

	err := row.Scan(&st.ID, &st.Name, &st.TotalSimulations, &st.TotalWins, &st.WinRate, &lastSeen)
	if err != nil {
		return nil, err
	}
	if lastSeen != nil {
		utc := lastSeen.UTC()
		st.LastSeenAt = &utc
	}
	return &st, nil
}

// scanStrategies scans multiple rows into a slice of Strategy.
func scanStrategies(rows pgx.Rows) ([]*domain.Strategy, error) {
	var result []*domain.Strategy

	for rows.Next() {
		st, err := scanStrategy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan strategy row: %w", err)
		}
		result = append(result, st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate strategy rows: %w", err)
	}

	return result, nil
}
