// Package simulation runs single candle-pattern simulations and records them in the ledger.
package simulation

import (
	"context"
	"fmt"

	"candle-learning-lab/internal/domain"
)

// Recorder persists one simulation outcome.
type Recorder interface {
	RecordOutcome(ctx context.Context, pair, patternKey string, isWin bool) (*domain.TradeSimulation, error)
}

// Outcome describes one completed simulation.
type Outcome struct {
	Pair       string
	Pattern    string
	Predicted  domain.Color
	Actual     domain.Color
	IsWin      bool
	Simulation *domain.TradeSimulation
}

// Simulator generates candle sequences and grades the pattern's prediction.
type Simulator struct {
	candles  CandleSource
	recorder Recorder
}

// NewSimulator creates a Simulator.
func NewSimulator(candles CandleSource, recorder Recorder) *Simulator {
	return &Simulator{candles: candles, recorder: recorder}
}

// SimulateOne runs a single simulation for pair.
//
// The first PatternLength candles form the pattern key and the last one is
// the actual outcome. The prediction is the pattern's final candle.
func (s *Simulator) SimulateOne(ctx context.Context, pair string) (Outcome, error) {
	seq := s.candles.Sequence()

	key, err := domain.PatternKey(seq[:domain.PatternLength])
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{
		Pair:      pair,
		Pattern:   key,
		Predicted: seq[domain.PatternLength-1],
		Actual:    seq[domain.PatternLength],
	}
	out.IsWin = out.Predicted == out.Actual

	trade, err := s.recorder.RecordOutcome(ctx, pair, key, out.IsWin)
	if err != nil {
		return out, fmt.Errorf("simulate %s: %w", pair, err)
	}
	out.Simulation = trade
	return out, nil
}
