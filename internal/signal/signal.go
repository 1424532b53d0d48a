// Package signal projects a trade suggestion from the best-performing strategy.
package signal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"candle-learning-lab/internal/domain"
	"candle-learning-lab/internal/ledger"
	"candle-learning-lab/internal/observability"
)

// Confidence gate for issuing a signal.
const (
	MinSimulations = 10
	MinWinRate     = 75.0
)

// ErrInvalidPair is returned when the requested pair is empty.
var ErrInvalidPair = errors.New("invalid pair")

// StrategySource finds the best strategy passing a confidence gate.
type StrategySource interface {
	BestStrategy(ctx context.Context, minSimulations int64, minWinRate float64) (*domain.Strategy, error)
}

// Result is the outcome of a signal request. Exactly one of Signal and Message is set.
type Result struct {
	Success bool           `json:"success"`
	Signal  *domain.Signal `json:"signal,omitempty"`
	Message string         `json:"message,omitempty"`
}

// Service generates signals. It never mutates the ledger.
type Service struct {
	strategies     StrategySource
	minSimulations int64
	minWinRate     float64
}

// NewService creates a Service with the default confidence gate.
func NewService(strategies StrategySource) *Service {
	return &Service{
		strategies:     strategies,
		minSimulations: MinSimulations,
		minWinRate:     MinWinRate,
	}
}

// Generate builds a signal for pair from the best strategy with at least
// MinSimulations samples and a win rate of at least MinWinRate.
// When no strategy qualifies it returns a failed Result, not an error.
func (s *Service) Generate(ctx context.Context, pair string) (*Result, error) {
	pair = strings.TrimSpace(pair)
	if pair == "" {
		observability.RecordSignalRequest("error")
		return nil, ErrInvalidPair
	}

	best, err := s.strategies.BestStrategy(ctx, s.minSimulations, s.minWinRate)
	if err != nil {
		var nce *ledger.NoConfidentStrategyError
		if errors.As(err, &nce) {
			observability.RecordSignalRequest("no_strategy")
			return &Result{Success: false, Message: noStrategyMessage(s.minWinRate, nce.BestWinRate)}, nil
		}
		observability.RecordSignalRequest("error")
		return nil, fmt.Errorf("generate signal for %s: %w", pair, err)
	}

	direction, err := best.Direction()
	if err != nil {
		observability.RecordSignalRequest("error")
		return nil, fmt.Errorf("strategy %s: %w", best.Name, err)
	}

	observability.RecordSignalRequest("issued")
	return &Result{
		Success: true,
		Signal: &domain.Signal{
			Pair:       pair,
			Direction:  direction,
			Confidence: best.WinRate,
			Strategy:   best.Name,
		},
	}, nil
}

// FormatWinRate renders a win rate with one decimal, e.g. 74.9.
func FormatWinRate(rate float64) string {
	return decimal.NewFromFloat(rate).StringFixed(1)
}

// noStrategyMessage never shows the rejected rate rounded up to the threshold.
func noStrategyMessage(threshold, best float64) string {
	limit := decimal.NewFromFloat(threshold)
	shown := decimal.NewFromFloat(best).Round(1)
	if shown.GreaterThanOrEqual(limit) {
		shown = decimal.NewFromFloat(best).Truncate(1)
	}
	return fmt.Sprintf(
		"Nenhuma estratégia confiável encontrada (acima de %s%%). Melhor estratégia atual: %s%%",
		limit.String(), shown.StringFixed(1),
	)
}
