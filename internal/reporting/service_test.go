package reporting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"candle-learning-lab/internal/cache"
	"candle-learning-lab/internal/domain"
	"candle-learning-lab/internal/storage"
	"candle-learning-lab/internal/storage/memory"
)

var fixedNow = time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

func setupTestData(t *testing.T) (*memory.StrategyStore, *memory.TradeSimulationStore) {
	t.Helper()
	ctx := context.Background()

	strategies := memory.NewStrategyStore()
	trades := memory.NewTradeSimulationStore()

	fixtures := []struct {
		name       string
		sims, wins int64
	}{
		{"GREEN_GREEN_GREEN", 20, 16}, // 80%
		{"GREEN_RED_GREEN", 10, 7},    // 70%, not "high confidence"
		{"RED_RED_RED", 5, 5},         // 100%, under-sampled
		{"RED_GREEN_RED", 40, 12},     // 30%
	}
	for _, f := range fixtures {
		st := &domain.Strategy{
			ID:               "id-" + f.name,
			Name:             f.name,
			TotalSimulations: f.sims,
			TotalWins:        f.wins,
			WinRate:          domain.ComputeWinRate(f.wins, f.sims),
		}
		if err := strategies.Upsert(ctx, st); err != nil {
			t.Fatalf("Upsert strategy failed: %v", err)
		}
	}

	for i := 0; i < 20; i++ {
		tr := &domain.TradeSimulation{
			ID:         fmt.Sprintf("t%02d", i),
			Pair:       "BTCUSDT",
			StrategyID: "GREEN_GREEN_GREEN",
			Result:     domain.ResultFromWin(i%2 == 0),
			CreatedAt:  fixedNow.Add(time.Duration(i) * time.Second),
		}
		if err := trades.Insert(ctx, tr); err != nil {
			t.Fatalf("Insert trade failed: %v", err)
		}
	}

	return strategies, trades
}

func newTestService(strategies storage.StrategyStore, trades storage.TradeSimulationStore, c cache.Cache[Snapshot]) *Service {
	return NewService(Options{
		Strategies: strategies,
		Trades:     trades,
		Cache:      c,
		Clock:      func() time.Time { return fixedNow },
	})
}

func TestLearningStats(t *testing.T) {
	strategies, trades := setupTestData(t)
	svc := newTestService(strategies, trades, nil)

	stats, err := svc.LearningStats(context.Background())
	if err != nil {
		t.Fatalf("LearningStats failed: %v", err)
	}

	if stats.TotalSimulations != 75 {
		t.Errorf("expected 75 simulations, got %d", stats.TotalSimulations)
	}
	if stats.TotalWins != 40 {
		t.Errorf("expected 40 wins, got %d", stats.TotalWins)
	}
	// 40 / 75 = 53.333...
	if stats.AverageWinRate != 53.33 {
		t.Errorf("expected average 53.33, got %v", stats.AverageWinRate)
	}
	if stats.HighConfidenceStrategies != 2 {
		t.Errorf("expected 2 high confidence strategies, got %d", stats.HighConfidenceStrategies)
	}
	if stats.TotalStrategies != 4 {
		t.Errorf("expected 4 strategies, got %d", stats.TotalStrategies)
	}

	if len(stats.TopStrategies) != 3 {
		t.Fatalf("expected 3 top strategies, got %d", len(stats.TopStrategies))
	}
	if stats.TopStrategies[0].Name != "GREEN_GREEN_GREEN" {
		t.Errorf("expected GREEN_GREEN_GREEN first, got %s", stats.TopStrategies[0].Name)
	}
	for _, st := range stats.TopStrategies {
		if st.TotalSimulations < TopStrategiesMinSims {
			t.Errorf("under-sampled strategy in top list: %s", st.Name)
		}
	}

	if len(stats.RecentTrades) != LearningRecentLimit {
		t.Fatalf("expected %d recent trades, got %d", LearningRecentLimit, len(stats.RecentTrades))
	}
	if stats.RecentTrades[0].ID != "t19" {
		t.Errorf("expected newest trade first, got %s", stats.RecentTrades[0].ID)
	}

	if stats.LearningProgress.Confidence != ConfidenceMedium {
		t.Errorf("expected MÉDIA, got %s", stats.LearningProgress.Confidence)
	}
	if stats.LearningProgress.Recommendation != RecommendationContinue {
		t.Errorf("unexpected recommendation: %s", stats.LearningProgress.Recommendation)
	}
	if !stats.LearningProgress.IsLearning {
		t.Error("expected isLearning true by default")
	}
	if !stats.GeneratedAt.Equal(fixedNow) {
		t.Errorf("expected GeneratedAt %v, got %v", fixedNow, stats.GeneratedAt)
	}
}

func TestLearningStats_Empty(t *testing.T) {
	svc := newTestService(memory.NewStrategyStore(), memory.NewTradeSimulationStore(), nil)

	stats, err := svc.LearningStats(context.Background())
	if err != nil {
		t.Fatalf("LearningStats failed: %v", err)
	}
	if stats.AverageWinRate != 0 {
		t.Errorf("expected 0 average, got %v", stats.AverageWinRate)
	}
	if stats.LearningProgress.Confidence != ConfidenceLow {
		t.Errorf("expected BAIXA, got %s", stats.LearningProgress.Confidence)
	}
	if stats.TopStrategies == nil || stats.RecentTrades == nil {
		t.Error("expected empty slices, not nil")
	}
}

func TestSystemStats(t *testing.T) {
	strategies, trades := setupTestData(t)
	svc := newTestService(strategies, trades, nil)

	stats, err := svc.SystemStats(context.Background())
	if err != nil {
		t.Fatalf("SystemStats failed: %v", err)
	}
	if stats.TotalSimulations != 20 {
		t.Errorf("expected 20 simulations, got %d", stats.TotalSimulations)
	}
	if len(stats.RecentTrades) != SystemRecentLimit {
		t.Fatalf("expected %d recent trades, got %d", SystemRecentLimit, len(stats.RecentTrades))
	}
	for i := 1; i < len(stats.RecentTrades); i++ {
		if stats.RecentTrades[i].CreatedAt.After(stats.RecentTrades[i-1].CreatedAt) {
			t.Fatalf("recent trades not ordered newest first at %d", i)
		}
	}
}

func TestStats_ServedFromCache(t *testing.T) {
	strategies, trades := setupTestData(t)
	clock := fixedNow
	c := cache.NewTTLCache[Snapshot](
		cache.Config{Enabled: true, TTL: 5 * time.Second, MaxSize: 10},
		cache.WithClock(func() time.Time { return clock }),
	)
	svc := newTestService(strategies, trades, c)
	ctx := context.Background()

	first, err := svc.SystemStats(ctx)
	if err != nil {
		t.Fatalf("SystemStats failed: %v", err)
	}

	// new trade is invisible while the snapshot is fresh
	if err := trades.Insert(ctx, &domain.TradeSimulation{
		ID: "late", Pair: "ETHUSDT", StrategyID: "RED_RED_RED", Result: domain.ResultWin, CreatedAt: fixedNow.Add(time.Hour),
	}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	second, err := svc.SystemStats(ctx)
	if err != nil {
		t.Fatalf("SystemStats failed: %v", err)
	}
	if second.TotalSimulations != first.TotalSimulations {
		t.Errorf("expected cached total %d, got %d", first.TotalSimulations, second.TotalSimulations)
	}

	clock = clock.Add(6 * time.Second)
	third, err := svc.SystemStats(ctx)
	if err != nil {
		t.Fatalf("SystemStats failed: %v", err)
	}
	if third.TotalSimulations != 21 {
		t.Errorf("expected refreshed total 21, got %d", third.TotalSimulations)
	}

	if err := svc.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache after Invalidate, got %d", c.Len())
	}
}

type failingTrades struct {
	storage.TradeSimulationStore
}

func (failingTrades) Count(context.Context) (int64, error) {
	return 0, errors.New("db down")
}

func TestSystemStats_StoreError(t *testing.T) {
	svc := newTestService(memory.NewStrategyStore(), failingTrades{memory.NewTradeSimulationStore()}, nil)

	if _, err := svc.SystemStats(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestConfidenceLabel(t *testing.T) {
	tests := []struct {
		avg  float64
		want string
	}{
		{60.01, ConfidenceHigh},
		{60, ConfidenceMedium},
		{50.01, ConfidenceMedium},
		{50, ConfidenceLow},
		{0, ConfidenceLow},
	}
	for _, tt := range tests {
		if got := ConfidenceLabel(tt.avg); got != tt.want {
			t.Errorf("ConfidenceLabel(%v) = %s, want %s", tt.avg, got, tt.want)
		}
	}
}

func TestRecommendation(t *testing.T) {
	if Recommendation(70.01) != RecommendationReady {
		t.Error("expected ready above 70")
	}
	if Recommendation(70) != RecommendationContinue {
		t.Error("expected continue at 70")
	}
}

func TestRoundWinRate(t *testing.T) {
	if got := RoundWinRate(200.0 / 3); got != 66.67 {
		t.Errorf("expected 66.67, got %v", got)
	}
	if got := RoundWinRate(12.345); got != 12.35 {
		t.Errorf("expected 12.35, got %v", got)
	}
}

func TestRenderMarkdown(t *testing.T) {
	strategies, trades := setupTestData(t)
	svc := newTestService(strategies, trades, nil)

	stats, err := svc.LearningStats(context.Background())
	if err != nil {
		t.Fatalf("LearningStats failed: %v", err)
	}

	md := RenderMarkdown(stats)
	for _, want := range []string{
		"# Learning Report",
		"| Total Simulations | 75 |",
		"| Average Win Rate | 53.33% |",
		"| GREEN_GREEN_GREEN | 20 | 16 | 80.00 |",
		RecommendationContinue,
		"## Recent Simulations",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestRenderMarkdown_Empty(t *testing.T) {
	md := RenderMarkdown(&LearningStats{GeneratedAt: fixedNow})
	if !strings.Contains(md, "No strategy has enough simulations yet.") {
		t.Error("expected empty strategies notice")
	}
	if !strings.Contains(md, "No simulations recorded.") {
		t.Error("expected empty trades notice")
	}
}

func TestRenderCSV(t *testing.T) {
	seen := fixedNow
	out, err := RenderCSV([]*domain.Strategy{
		{ID: "a", Name: "GREEN_RED_GREEN", TotalSimulations: 3, TotalWins: 2, WinRate: 200.0 / 3, LastSeenAt: &seen},
		{ID: "b", Name: "RED_RED_RED"},
	})
	if err != nil {
		t.Fatalf("RenderCSV failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "id,name,total_simulations,total_wins,win_rate,last_seen_at" {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if lines[1] != "a,GREEN_RED_GREEN,3,2,66.666667,2026-02-03T04:05:06Z" {
		t.Errorf("unexpected row: %s", lines[1])
	}
	if lines[2] != "b,RED_RED_RED,0,0,0.000000," {
		t.Errorf("unexpected row: %s", lines[2])
	}
}
