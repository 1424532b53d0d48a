package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Strategy is the running accuracy record of one candle pattern.
// Corresponds to the strategies table; Name is the natural key.
type Strategy struct {
	ID               string     `json:"id"`                // surrogate key, assigned once
	Name             string     `json:"name"`              // pattern key, e.g. GREEN_RED_GREEN
	TotalSimulations int64      `json:"total_simulations"` // simulations that matched this pattern
	TotalWins        int64      `json:"total_wins"`        // simulations where prediction matched
	WinRate          float64    `json:"win_rate"`          // 100 * wins / simulations
	LastSeenAt       *time.Time `json:"last_seen_at"`      // nil until first observation
}

// ErrInconsistentStrategy is returned by Validate when counters and win rate disagree.
var ErrInconsistentStrategy = errors.New("inconsistent strategy counters")

const winRateTolerance = 1e-9

// NewStrategy creates a never-observed strategy for a pattern key.
func NewStrategy(id, name string) *Strategy {
	return &Strategy{ID: id, Name: name}
}

// RecordOutcome folds one simulation into the counters and recomputes the win rate.
func (s *Strategy) RecordOutcome(isWin bool, at time.Time) {
	s.TotalSimulations++
	if isWin {
		s.TotalWins++
	}
	s.WinRate = ComputeWinRate(s.TotalWins, s.TotalSimulations)

	seen := at
	s.LastSeenAt = &seen
}

// Direction returns the color this strategy predicts (3rd element of its pattern).
func (s *Strategy) Direction() (Color, error) {
	return PatternDirection(s.Name)
}

// Validate checks the counter invariants.
func (s *Strategy) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInconsistentStrategy)
	}
	if s.TotalWins < 0 || s.TotalWins > s.TotalSimulations {
		return fmt.Errorf("%w: wins=%d simulations=%d", ErrInconsistentStrategy, s.TotalWins, s.TotalSimulations)
	}
	if s.TotalSimulations > 0 {
		want := ComputeWinRate(s.TotalWins, s.TotalSimulations)
		if math.Abs(want-s.WinRate) > winRateTolerance {
			return fmt.Errorf("%w: win_rate=%f want %f", ErrInconsistentStrategy, s.WinRate, want)
		}
	}
	return nil
}

// ComputeWinRate returns 100 * wins / simulations, or 0 when there are no simulations.
func ComputeWinRate(wins, simulations int64) float64 {
	if simulations <= 0 {
		return 0
	}
	return float64(wins) / float64(simulations) * 100
}
