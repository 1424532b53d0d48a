package simulation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candle-learning-lab/internal/domain"
	"candle-learning-lab/internal/idhash"
	"candle-learning-lab/internal/ledger"
	"candle-learning-lab/internal/storage/memory"
)

const (
	G = domain.ColorGreen
	R = domain.ColorRed
)

func TestSimulateOne_LossUpdatesCounters(t *testing.T) {
	ctx := context.Background()
	strategies := memory.NewStrategyStore()
	trades := memory.NewTradeSimulationStore()
	l := ledger.New(strategies, trades, ledger.Options{IDs: &idhash.Sequence{}})

	sim := NewSimulator(NewFixedCandles(Sequence{G, R, G, R}), l)

	out, err := sim.SimulateOne(ctx, "BTCUSDT")
	require.NoError(t, err)

	assert.Equal(t, "GREEN_RED_GREEN", out.Pattern)
	assert.Equal(t, G, out.Predicted)
	assert.Equal(t, R, out.Actual)
	assert.False(t, out.IsWin)
	require.NotNil(t, out.Simulation)
	assert.Equal(t, domain.ResultLoss, out.Simulation.Result)

	st, err := strategies.GetByName(ctx, "GREEN_RED_GREEN")
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.TotalSimulations)
	assert.Equal(t, int64(0), st.TotalWins)
}

func TestSimulateOne_WinWhenLastCandleRepeats(t *testing.T) {
	ctx := context.Background()
	strategies := memory.NewStrategyStore()
	l := ledger.New(strategies, memory.NewTradeSimulationStore(), ledger.Options{})

	sim := NewSimulator(NewFixedCandles(Sequence{R, R, G, G}), l)

	out, err := sim.SimulateOne(ctx, "ETHUSDT")
	require.NoError(t, err)
	assert.True(t, out.IsWin)
	assert.Equal(t, domain.ResultWin, out.Simulation.Result)

	st, err := strategies.GetByName(ctx, "RED_RED_GREEN")
	require.NoError(t, err)
	assert.Equal(t, 100.0, st.WinRate)
}

type recorderFunc func(ctx context.Context, pair, key string, isWin bool) (*domain.TradeSimulation, error)

func (f recorderFunc) RecordOutcome(ctx context.Context, pair, key string, isWin bool) (*domain.TradeSimulation, error) {
	return f(ctx, pair, key, isWin)
}

func TestSimulateOne_PropagatesRecorderError(t *testing.T) {
	boom := errors.New("store unavailable")
	sim := NewSimulator(NewFixedCandles(Sequence{G, G, G, G}), recorderFunc(
		func(context.Context, string, string, bool) (*domain.TradeSimulation, error) { return nil, boom },
	))

	out, err := sim.SimulateOne(context.Background(), "SOLUSDT")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "GREEN_GREEN_GREEN", out.Pattern)
	assert.Nil(t, out.Simulation)
}

func TestRandomCandles_Distribution(t *testing.T) {
	src := NewSeededCandles(42)

	const runs = 10000
	var green int
	for i := 0; i < runs; i++ {
		seq := src.Sequence()
		for _, c := range seq {
			require.True(t, c.IsValid())
			if c == G {
				green++
			}
		}
	}

	ratio := float64(green) / float64(runs*domain.SequenceLength)
	assert.InDelta(t, 0.5, ratio, 0.02)
}

func TestRandomCandles_SeededIsReproducible(t *testing.T) {
	a, b := NewSeededCandles(7), NewSeededCandles(7)
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.Sequence(), b.Sequence())
	}
}

func TestFixedCandles_Wraps(t *testing.T) {
	src := NewFixedCandles(Sequence{G, G, G, G}, Sequence{R, R, R, R})
	assert.Equal(t, Sequence{G, G, G, G}, src.Sequence())
	assert.Equal(t, Sequence{R, R, R, R}, src.Sequence())
	assert.Equal(t, Sequence{G, G, G, G}, src.Sequence())
}

func TestSimulateOne_RandomSourceKeepsInvariant(t *testing.T) {
	ctx := context.Background()
	strategies := memory.NewStrategyStore()
	trades := memory.NewTradeSimulationStore()
	l := ledger.New(strategies, trades, ledger.Options{Clock: func() time.Time { return time.Unix(0, 0).UTC() }})
	sim := NewSimulator(NewSeededCandles(1), l)

	for i := 0; i < 500; i++ {
		_, err := sim.SimulateOne(ctx, "PAIR")
		require.NoError(t, err)
	}

	all, err := strategies.GetAll(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(all), 8)

	var sims int64
	for _, st := range all {
		require.NoError(t, st.Validate())
		sims += st.TotalSimulations
	}
	assert.Equal(t, int64(500), sims)
}
