package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candle-learning-lab/internal/config"
	"candle-learning-lab/internal/domain"
	"candle-learning-lab/internal/engine"
	"candle-learning-lab/internal/reporting"
	"candle-learning-lab/internal/signal"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeEngine struct {
	mu        sync.Mutex
	running   bool
	batch     int
	interval  time.Duration
	updateErr error
	starts    int
	stops     int
}

func (f *fakeEngine) Start() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.running {
		return false
	}
	f.running = true
	return true
}

func (f *fakeEngine) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.running = false
}

func (f *fakeEngine) Stats() engine.Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return engine.Stats{
		Running:         f.running,
		BatchSize:       f.batch,
		CycleInterval:   f.interval,
		CycleIntervalMs: f.interval.Milliseconds(),
	}
}

func (f *fakeEngine) UpdateConfig(u engine.Update) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.BatchSize != nil {
		f.batch = *u.BatchSize
	}
	if u.CycleInterval != nil {
		f.interval = *u.CycleInterval
	}
	return nil
}

type fakeSignals struct {
	result *signal.Result
	err    error
	pair   string
}

func (f *fakeSignals) Generate(_ context.Context, pair string) (*signal.Result, error) {
	f.pair = pair
	return f.result, f.err
}

type fakeStats struct {
	learning *reporting.LearningStats
	system   *reporting.SystemStats
	err      error
}

func (f *fakeStats) LearningStats(context.Context) (*reporting.LearningStats, error) {
	return f.learning, f.err
}

func (f *fakeStats) SystemStats(context.Context) (*reporting.SystemStats, error) {
	return f.system, f.err
}

type fixture struct {
	server  *Server
	engine  *fakeEngine
	signals *fakeSignals
	stats   *fakeStats
}

func newFixture() *fixture {
	f := &fixture{
		engine:  &fakeEngine{batch: 100, interval: 2 * time.Second},
		signals: &fakeSignals{},
		stats:   &fakeStats{},
	}
	f.server = NewServer(Options{
		Engine:      f.engine,
		Signals:     f.signals,
		Stats:       f.stats,
		Scalability: config.Default().Scalability,
		Logger:      zerolog.Nop(),
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	var decoded map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &decoded)
	return rec, decoded
}

func TestAutoStart(t *testing.T) {
	f := newFixture()

	rec, body := f.do(t, http.MethodPost, "/api/auto-start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Motor de Aprendizado Ativo", body["message"])
	assert.True(t, f.engine.Stats().Running)

	// second call is idempotent
	rec, body = f.do(t, http.MethodPost, "/api/auto-start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 2, f.engine.starts)
}

func TestStop(t *testing.T) {
	f := newFixture()
	f.engine.Start()

	rec, body := f.do(t, http.MethodPost, "/api/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.False(t, f.engine.Stats().Running)
}

func TestEngineStats(t *testing.T) {
	f := newFixture()

	rec, body := f.do(t, http.MethodGet, "/api/engine", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(100), data["batchSize"])
	assert.Equal(t, float64(2000), data["cycleInterval"])
}

func TestEngineConfig(t *testing.T) {
	f := newFixture()

	rec, body := f.do(t, http.MethodPatch, "/api/engine/config", `{"batchSize":25,"cycleInterval":500}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	stats := f.engine.Stats()
	assert.Equal(t, 25, stats.BatchSize)
	assert.Equal(t, 500*time.Millisecond, stats.CycleInterval)
}

func TestEngineConfig_Invalid(t *testing.T) {
	f := newFixture()
	f.engine.updateErr = engine.ErrInvalidConfig

	rec, body := f.do(t, http.MethodPatch, "/api/engine/config", `{"batchSize":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])

	rec, _ = f.do(t, http.MethodPatch, "/api/engine/config", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEngineConfig_IntervalOutOfRange(t *testing.T) {
	for _, body := range []string{
		`{"cycleInterval":18446744073710}`,
		`{"cycleInterval":9223372036855}`,
		`{"cycleInterval":0}`,
		`{"cycleInterval":-500}`,
	} {
		f := newFixture()

		rec, resp := f.do(t, http.MethodPatch, "/api/engine/config", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, false, resp["success"], body)
		assert.Equal(t, 2*time.Second, f.engine.interval, body)
	}
}

func TestGenerateSignal_Issued(t *testing.T) {
	f := newFixture()
	f.signals.result = &signal.Result{
		Success: true,
		Signal: &domain.Signal{
			Pair:       "BTCUSDT",
			Direction:  domain.ColorGreen,
			Confidence: 80,
			Strategy:   "GREEN_RED_GREEN",
		},
	}

	rec, body := f.do(t, http.MethodPost, "/api/generate-signal", `{"pair":"BTCUSDT"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "BTCUSDT", f.signals.pair)

	sig := body["signal"].(map[string]any)
	assert.Equal(t, "BTCUSDT", sig["pair"])
	assert.Equal(t, "GREEN_RED_GREEN", sig["strategy"])
}

func TestGenerateSignal_NoConfidentStrategy(t *testing.T) {
	f := newFixture()
	f.signals.result = &signal.Result{
		Success: false,
		Message: "Nenhuma estratégia confiável encontrada (acima de 75%). Melhor estratégia atual: 74.9%",
	}

	rec, body := f.do(t, http.MethodPost, "/api/generate-signal", `{"pair":"ETHUSDT"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["message"], "74.9%")
	assert.NotContains(t, body, "signal")
}

func TestGenerateSignal_Failures(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"malformed body", `{"pair":`, nil, http.StatusBadRequest},
		{"empty pair", `{"pair":""}`, signal.ErrInvalidPair, http.StatusBadRequest},
		{"store failure", `{"pair":"BTCUSDT"}`, errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.signals.err = tt.err

			rec, body := f.do(t, http.MethodPost, "/api/generate-signal", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, "Não foi possível analisar o mercado.", body["message"])
		})
	}
}

func TestLearningStats(t *testing.T) {
	f := newFixture()
	f.stats.learning = &reporting.LearningStats{
		TotalSimulations: 40,
		TotalWins:        22,
		AverageWinRate:   55,
		TopStrategies:    []*domain.Strategy{},
		RecentTrades:     []*domain.TradeSimulation{},
		LearningProgress: reporting.LearningProgress{IsLearning: true, Confidence: "MÉDIA"},
	}

	rec, body := f.do(t, http.MethodGet, "/api/learning-stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(40), data["totalSimulations"])
	assert.Equal(t, "MÉDIA", data["learningProgress"].(map[string]any)["confidence"])
}

func TestStats_Errors(t *testing.T) {
	for _, path := range []string{"/api/learning-stats", "/api/system-stats"} {
		t.Run(path, func(t *testing.T) {
			f := newFixture()
			f.stats.err = errors.New("boom")

			rec, body := f.do(t, http.MethodGet, path, "")
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, "Erro ao buscar estatísticas", body["error"])
		})
	}
}

func TestSystemStats(t *testing.T) {
	f := newFixture()
	f.stats.system = &reporting.SystemStats{
		TotalSimulations: 3,
		RecentTrades: []*domain.TradeSimulation{
			{ID: "t1", Pair: "BTCUSDT", StrategyID: "GREEN_GREEN_GREEN", Result: domain.ResultWin},
		},
	}

	rec, body := f.do(t, http.MethodGet, "/api/system-stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(3), data["totalSimulations"])
	assert.Len(t, data["recentTrades"], 1)
}

func TestScalabilityConfig(t *testing.T) {
	f := newFixture()

	rec, body := f.do(t, http.MethodGet, "/api/scalability-config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	cfg := body["config"].(map[string]any)
	assert.Equal(t, float64(1000), cfg["maxConcurrentPairs"])
	assert.Equal(t, float64(100), cfg["batchSize"])
	assert.Equal(t, float64(2000), cfg["cycleInterval"])
	assert.Len(t, cfg["providers"], 3)

	cache := cfg["cache"].(map[string]any)
	assert.Equal(t, true, cache["enabled"])
	assert.Equal(t, float64(300), cache["ttl"])
	assert.Equal(t, float64(1000), cache["maxSize"])
}

func TestHealth(t *testing.T) {
	f := newFixture()

	rec, body := f.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestMetrics(t *testing.T) {
	f := newFixture()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "candle_learning_lab_engine_running")
}

func TestTradeFeed_DisabledWithoutHub(t *testing.T) {
	f := newFixture()

	rec, _ := f.do(t, http.MethodGet, "/ws/trades", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
