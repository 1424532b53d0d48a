package signal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candle-learning-lab/internal/domain"
	"candle-learning-lab/internal/ledger"
	"candle-learning-lab/internal/storage/memory"
)

func newService(t *testing.T, fixtures ...*domain.Strategy) *Service {
	t.Helper()
	strategies := memory.NewStrategyStore()
	for _, st := range fixtures {
		require.NoError(t, strategies.Upsert(context.Background(), st))
	}
	return NewService(ledger.New(strategies, memory.NewTradeSimulationStore(), ledger.Options{}))
}

func strategy(name string, sims int64, winRate float64) *domain.Strategy {
	return &domain.Strategy{
		ID:               "id-" + name,
		Name:             name,
		TotalSimulations: sims,
		TotalWins:        int64(winRate * float64(sims) / 100),
		WinRate:          winRate,
	}
}

func TestGenerate_PicksSufficientlySampledStrategy(t *testing.T) {
	svc := newService(t,
		strategy("GREEN_RED_RED", 20, 80), // A
		strategy("RED_RED_GREEN", 5, 90),  // B, below the simulations floor
		strategy("GREEN_GREEN_GREEN", 40, 55),
	)

	res, err := svc.Generate(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotNil(t, res.Signal)

	assert.Equal(t, "BTCUSDT", res.Signal.Pair)
	assert.Equal(t, "GREEN_RED_RED", res.Signal.Strategy)
	assert.Equal(t, domain.ColorRed, res.Signal.Direction)
	assert.InDelta(t, 80.0, res.Signal.Confidence, 1e-9)
	assert.Empty(t, res.Message)
}

func TestGenerate_BelowThresholdEmbedsBestRate(t *testing.T) {
	svc := newService(t, strategy("RED_GREEN_RED", 1000, 74.9))

	res, err := svc.Generate(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Nil(t, res.Signal)
	assert.Contains(t, res.Message, "74.9")
	assert.Contains(t, res.Message, "75%")
}

func TestGenerate_NoStrategies(t *testing.T) {
	svc := newService(t)

	res, err := svc.Generate(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "0.0%")
}

func TestGenerate_OnlyUnderSampledStrategies(t *testing.T) {
	svc := newService(t, strategy("GREEN_GREEN_RED", 9, 100))

	res, err := svc.Generate(context.Background(), "SOLUSDT")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "0.0%")
}

func TestGenerate_ExactlyAtThreshold(t *testing.T) {
	svc := newService(t, strategy("RED_RED_GREEN", 20, 75))

	res, err := svc.Generate(context.Background(), "BNBUSDT")
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, domain.ColorGreen, res.Signal.Direction)
}

func TestGenerate_EmptyPair(t *testing.T) {
	svc := newService(t)

	_, err := svc.Generate(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrInvalidPair)
}

type failingSource struct{ err error }

func (f failingSource) BestStrategy(context.Context, int64, float64) (*domain.Strategy, error) {
	return nil, f.err
}

func TestGenerate_StoreFailure(t *testing.T) {
	boom := errors.New("timeout")
	svc := NewService(failingSource{err: boom})

	_, err := svc.Generate(context.Background(), "BTCUSDT")
	assert.ErrorIs(t, err, boom)
}

func TestGenerate_ReadOnly(t *testing.T) {
	strategies := memory.NewStrategyStore()
	trades := memory.NewTradeSimulationStore()
	require.NoError(t, strategies.Upsert(context.Background(), strategy("GREEN_RED_RED", 20, 80)))
	svc := NewService(ledger.New(strategies, trades, ledger.Options{}))

	for i := 0; i < 3; i++ {
		_, err := svc.Generate(context.Background(), "BTCUSDT")
		require.NoError(t, err)
	}

	st, err := strategies.GetByName(context.Background(), "GREEN_RED_RED")
	require.NoError(t, err)
	assert.Equal(t, int64(20), st.TotalSimulations)

	count, err := trades.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestFormatWinRate(t *testing.T) {
	assert.Equal(t, "74.9", FormatWinRate(74.9))
	assert.Equal(t, "0.0", FormatWinRate(0))
	assert.Equal(t, "66.7", FormatWinRate(200.0/3))
}

func TestNoStrategyMessage_DoesNotRoundUpToThreshold(t *testing.T) {
	assert.Contains(t, noStrategyMessage(75, 74.95), "Melhor estratégia atual: 74.9%")
	assert.Contains(t, noStrategyMessage(75, 74.94), "Melhor estratégia atual: 74.9%")
	assert.Contains(t, noStrategyMessage(75, 66.66), "Melhor estratégia atual: 66.7%")
	assert.Contains(t, noStrategyMessage(75, 74.95), "acima de 75%")
}
