// Package ledger maintains the running accuracy record of every candle pattern
// and the append-only log of simulated trades.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"candle-learning-lab/internal/domain"
	"candle-learning-lab/internal/idhash"
	"candle-learning-lab/internal/storage"
)

// ErrNoConfidentStrategy is matched by *NoConfidentStrategyError.
var ErrNoConfidentStrategy = errors.New("no confident strategy")

// NoConfidentStrategyError reports that no strategy passed the confidence gate.
// BestWinRate is the win rate of the best sufficiently sampled strategy, or 0 when none exists.
type NoConfidentStrategyError struct {
	BestWinRate float64
}

func (e *NoConfidentStrategyError) Error() string {
	return fmt.Sprintf("no confident strategy (best win rate %.1f)", e.BestWinRate)
}

// Is reports whether target is ErrNoConfidentStrategy.
func (e *NoConfidentStrategyError) Is(target error) bool {
	return target == ErrNoConfidentStrategy
}

// Options configures a Ledger.
type Options struct {
	// Clock returns the current time. Defaults to time.Now in UTC.
	Clock func() time.Time

	// IDs generates strategy and trade identifiers. Defaults to idhash.Random.
	IDs idhash.Generator

	// SerializePatterns makes read-modify-write of one pattern mutually exclusive
	// within this process. Off by default: concurrent updates of the same pattern
	// may then lose increments (last writer wins).
	SerializePatterns bool

	// OnRecorded is invoked after a simulation has been persisted.
	OnRecorded func(*domain.TradeSimulation)
}

// Ledger records simulation outcomes against strategies.
// Safe for concurrent use.
type Ledger struct {
	strategies storage.StrategyStore
	trades     storage.TradeSimulationStore
	clock      func() time.Time
	ids        idhash.Generator
	locks      *keyedMutex
	onRecorded func(*domain.TradeSimulation)
}

// New creates a Ledger over the given stores.
func New(strategies storage.StrategyStore, trades storage.TradeSimulationStore, opts Options) *Ledger {
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	if opts.IDs == nil {
		opts.IDs = idhash.Random{}
	}

	l := &Ledger{
		strategies: strategies,
		trades:     trades,
		clock:      opts.Clock,
		ids:        opts.IDs,
		onRecorded: opts.OnRecorded,
	}
	if opts.SerializePatterns {
		l.locks = newKeyedMutex()
	}
	return l
}

// RecordOutcome folds one simulation into the strategy named patternKey and
// appends the matching TradeSimulation.
//
// Steps: load or create the strategy, bump counters, recompute win rate,
// upsert, then insert the trade. A failure at any step aborts the rest; an
// upsert that succeeded is not rolled back if the trade insert fails.
func (l *Ledger) RecordOutcome(ctx context.Context, pair, patternKey string, isWin bool) (*domain.TradeSimulation, error) {
	if _, err := domain.ParsePattern(patternKey); err != nil {
		return nil, err
	}

	if l.locks != nil {
		unlock := l.locks.Lock(patternKey)
		defer unlock()
	}

	st, err := l.strategies.GetByName(ctx, patternKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		st = domain.NewStrategy(l.ids.StrategyID(), patternKey)
	case err != nil:
		return nil, fmt.Errorf("load strategy %s: %w", patternKey, err)
	}

	now := l.clock()
	st.RecordOutcome(isWin, now)

	if err := l.strategies.Upsert(ctx, st); err != nil {
		return nil, fmt.Errorf("upsert strategy %s: %w", patternKey, err)
	}

	trade := &domain.TradeSimulation{
		ID:         l.ids.TradeID(),
		Pair:       pair,
		StrategyID: patternKey,
		Result:     domain.ResultFromWin(isWin),
		CreatedAt:  now,
	}
	if err := l.trades.Insert(ctx, trade); err != nil {
		return nil, fmt.Errorf("insert trade simulation: %w", err)
	}

	if l.onRecorded != nil {
		l.onRecorded(trade)
	}
	return trade, nil
}

// BestStrategy returns the highest win-rate strategy with at least
// minSimulations samples, provided its win rate is >= minWinRate.
// Otherwise it returns a *NoConfidentStrategyError.
func (l *Ledger) BestStrategy(ctx context.Context, minSimulations int64, minWinRate float64) (*domain.Strategy, error) {
	top, err := l.strategies.TopByWinRate(ctx, minSimulations, 1)
	if err != nil {
		return nil, fmt.Errorf("query best strategy: %w", err)
	}
	if len(top) == 0 {
		return nil, &NoConfidentStrategyError{}
	}

	best := top[0]
	if best.WinRate < minWinRate {
		return nil, &NoConfidentStrategyError{BestWinRate: best.WinRate}
	}
	return best, nil
}

// keyedMutex hands out one mutex per key, dropping it when unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock acquires the mutex for key and returns its release func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
