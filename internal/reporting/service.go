// Package reporting computes learning and system statistics from the stores
// and renders them for humans.
package reporting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"candle-learning-lab/internal/cache"
	"candle-learning-lab/internal/domain"
	"candle-learning-lab/internal/storage"
)

const (
	learningKey = "learning-stats"
	systemKey   = "system-stats"
)

// Snapshot is the cached value type. Exactly one field is set.
type Snapshot struct {
	Learning *LearningStats `msgpack:"learning,omitempty"`
	System   *SystemStats   `msgpack:"system,omitempty"`
}

// Options for creating a Service.
type Options struct {
	Strategies storage.StrategyStore
	Trades     storage.TradeSimulationStore

	// Cache memoizes snapshots. Nil disables memoization.
	Cache cache.Cache[Snapshot]

	// Clock stamps LearningStats.GeneratedAt. Defaults to time.Now in UTC.
	Clock func() time.Time

	// IsLearning reports whether the engine is ticking. Nil means always true.
	IsLearning func() bool

	Logger zerolog.Logger
}

// Service builds statistics snapshots. Safe for concurrent use.
type Service struct {
	strategies storage.StrategyStore
	trades     storage.TradeSimulationStore
	now        func() time.Time
	isLearning func() bool
	logger     zerolog.Logger

	cacheMu sync.Mutex // the in-process cache has a single owner
	cache   cache.Cache[Snapshot]
}

// NewService creates a Service.
func NewService(opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	if opts.IsLearning == nil {
		opts.IsLearning = func() bool { return true }
	}
	return &Service{
		strategies: opts.Strategies,
		trades:     opts.Trades,
		now:        opts.Clock,
		isLearning: opts.IsLearning,
		logger:     opts.Logger.With().Str("component", "reporting").Logger(),
		cache:      opts.Cache,
	}
}

// LearningStats returns the learning summary, served from cache when fresh.
func (s *Service) LearningStats(ctx context.Context) (*LearningStats, error) {
	if snap, ok := s.cached(ctx, learningKey); ok && snap.Learning != nil {
		return snap.Learning, nil
	}

	stats, err := s.computeLearningStats(ctx)
	if err != nil {
		return nil, err
	}
	s.store(ctx, learningKey, Snapshot{Learning: stats})
	return stats, nil
}

// SystemStats returns the trade count and most recent trades, served from cache when fresh.
func (s *Service) SystemStats(ctx context.Context) (*SystemStats, error) {
	if snap, ok := s.cached(ctx, systemKey); ok && snap.System != nil {
		return snap.System, nil
	}

	total, err := s.trades.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count trades: %w", err)
	}
	recent, err := s.trades.Recent(ctx, SystemRecentLimit)
	if err != nil {
		return nil, fmt.Errorf("recent trades: %w", err)
	}

	stats := &SystemStats{TotalSimulations: total, RecentTrades: nonNil(recent)}
	s.store(ctx, systemKey, Snapshot{System: stats})
	return stats, nil
}

// Invalidate drops every cached snapshot.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.cache.Clear(ctx)
}

func (s *Service) computeLearningStats(ctx context.Context) (*LearningStats, error) {
	top, err := s.strategies.TopByWinRate(ctx, TopStrategiesMinSims, TopStrategiesLimit)
	if err != nil {
		return nil, fmt.Errorf("top strategies: %w", err)
	}
	all, err := s.strategies.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("all strategies: %w", err)
	}
	recent, err := s.trades.Recent(ctx, LearningRecentLimit)
	if err != nil {
		return nil, fmt.Errorf("recent trades: %w", err)
	}

	stats := &LearningStats{
		GeneratedAt:     s.now(),
		TotalStrategies: len(all),
		TopStrategies:   nonNil(top),
		RecentTrades:    nonNil(recent),
	}
	for _, st := range all {
		stats.TotalSimulations += st.TotalSimulations
		stats.TotalWins += st.TotalWins
		if st.WinRate > HighConfidenceThreshold {
			stats.HighConfidenceStrategies++
		}
	}

	avg := domain.ComputeWinRate(stats.TotalWins, stats.TotalSimulations)
	stats.AverageWinRate = RoundWinRate(avg)
	stats.LearningProgress = LearningProgress{
		IsLearning:     s.isLearning(),
		Confidence:     ConfidenceLabel(avg),
		Recommendation: Recommendation(avg),
	}
	return stats, nil
}

// RoundWinRate rounds to two decimals, half away from zero.
func RoundWinRate(rate float64) float64 {
	return decimal.NewFromFloat(rate).Round(2).InexactFloat64()
}

func (s *Service) cached(ctx context.Context, key string) (Snapshot, bool) {
	if s.cache == nil {
		return Snapshot{}, false
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.cache.Get(ctx, key)
}

func (s *Service) store(ctx context.Context, key string, snap Snapshot) {
	if s.cache == nil {
		return
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if err := s.cache.Set(ctx, key, snap); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
