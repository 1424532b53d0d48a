package reporting

import (
	"time"

	"candle-learning-lab/internal/domain"
)

// Confidence labels derived from the average win rate.
const (
	ConfidenceHigh   = "ALTA"
	ConfidenceMedium = "MÉDIA"
	ConfidenceLow    = "BAIXA"
)

// Recommendations derived from the average win rate.
const (
	RecommendationReady    = "Sistema pronto para sinais reais!"
	RecommendationContinue = "Continue aprendendo..."
)

// Report sizing.
const (
	TopStrategiesLimit      = 5
	TopStrategiesMinSims    = 10
	HighConfidenceThreshold = 70.0
	LearningRecentLimit     = 10
	SystemRecentLimit       = 15
)

// LearningStats summarizes what the engine has learned so far.
type LearningStats struct {
	GeneratedAt              time.Time                 `json:"generatedAt"`
	TotalSimulations         int64                     `json:"totalSimulations"`
	TotalWins                int64                     `json:"totalWins"`
	AverageWinRate           float64                   `json:"averageWinRate"` // 100 * wins / sims, 2 decimals
	HighConfidenceStrategies int                       `json:"highConfidenceStrategies"`
	TotalStrategies          int                       `json:"totalStrategies"`
	TopStrategies            []*domain.Strategy        `json:"topStrategies"`
	RecentTrades             []*domain.TradeSimulation `json:"recentTrades"`
	LearningProgress         LearningProgress          `json:"learningProgress"`
}

// LearningProgress is the human-facing verdict on the learning state.
type LearningProgress struct {
	IsLearning     bool   `json:"isLearning"`
	Confidence     string `json:"confidence"`
	Recommendation string `json:"recommendation"`
}

// SystemStats reports the size of the trade log and its newest rows.
type SystemStats struct {
	TotalSimulations int64                     `json:"totalSimulations"`
	RecentTrades     []*domain.TradeSimulation `json:"recentTrades"`
}

// ConfidenceLabel maps an average win rate to ALTA (>60), MÉDIA (>50) or BAIXA.
func ConfidenceLabel(avg float64) string {
	switch {
	case avg > 60:
		return ConfidenceHigh
	case avg > 50:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Recommendation maps an average win rate to the operator recommendation.
func Recommendation(avg float64) string {
	if avg > 70 {
		return RecommendationReady
	}
	return RecommendationContinue
}
