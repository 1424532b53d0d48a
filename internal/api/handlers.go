package api

import (
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"candle-learning-lab/internal/config"
	"candle-learning-lab/internal/engine"
	"candle-learning-lab/internal/signal"
)

// Response messages.
const (
	msgEngineStarted  = "Motor de Aprendizado Ativo"
	msgEngineStopped  = "Motor de Aprendizado Parado"
	msgMarketFailure  = "Não foi possível analisar o mercado."
	msgStatsFailure   = "Erro ao buscar estatísticas"
	msgInvalidRequest = "Requisição inválida"
)

type generateSignalRequest struct {
	Pair string `json:"pair"`
}

// engineConfigRequest carries optional updates; cycleInterval is in milliseconds.
type engineConfigRequest struct {
	BatchSize     *int   `json:"batchSize"`
	CycleInterval *int64 `json:"cycleInterval"`
}

// maxCycleIntervalMs is the largest millisecond value that fits a time.Duration.
const maxCycleIntervalMs = math.MaxInt64 / int64(time.Millisecond)

// scalabilityConfig is the JSON shape of the capacity plan.
type scalabilityConfig struct {
	MaxConcurrentPairs int               `json:"maxConcurrentPairs"`
	BatchSize          int               `json:"batchSize"`
	CycleInterval      int64             `json:"cycleInterval"`
	Providers          []config.Provider `json:"providers"`
	Cache              config.CachePlan  `json:"cache"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"running": s.engine.Stats().Running,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// handleAutoStart is idempotent: starting a running engine reports success.
func (s *Server) handleAutoStart(c *gin.Context) {
	if s.engine.Start() {
		s.logger.Info().Msg("engine started")
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msgEngineStarted})
}

func (s *Server) handleStop(c *gin.Context) {
	s.engine.Stop()
	s.logger.Info().Msg("engine stopped")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msgEngineStopped})
}

func (s *Server) handleEngineStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": s.engine.Stats()})
}

func (s *Server) handleEngineConfig(c *gin.Context) {
	var req engineConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	update := engine.Update{BatchSize: req.BatchSize}
	if req.CycleInterval != nil {
		if ms := *req.CycleInterval; ms <= 0 || ms > maxCycleIntervalMs {
			failure(c, http.StatusBadRequest, msgInvalidRequest)
			return
		}
		d := time.Duration(*req.CycleInterval) * time.Millisecond
		update.CycleInterval = &d
	}

	if err := s.engine.UpdateConfig(update); err != nil {
		if errors.Is(err, engine.ErrInvalidConfig) {
			failure(c, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error().Err(err).Msg("update engine config")
		failure(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": s.engine.Stats()})
}

func (s *Server) handleGenerateSignal(c *gin.Context) {
	var req generateSignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, msgMarketFailure)
		return
	}

	result, err := s.signals.Generate(c.Request.Context(), req.Pair)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, signal.ErrInvalidPair) {
			status = http.StatusBadRequest
		} else {
			s.logger.Error().Err(err).Str("pair", req.Pair).Msg("generate signal")
		}
		failure(c, status, msgMarketFailure)
		return
	}

	// no confident strategy is a normal answer, not an HTTP error
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleLearningStats(c *gin.Context) {
	stats, err := s.stats.LearningStats(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("learning stats")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": msgStatsFailure})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats})
}

func (s *Server) handleSystemStats(c *gin.Context) {
	stats, err := s.stats.SystemStats(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("system stats")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": msgStatsFailure})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats})
}

// handleScalabilityConfig reports the static plan with the engine's live batch and interval.
func (s *Server) handleScalabilityConfig(c *gin.Context) {
	stats := s.engine.Stats()
	providers := s.scalability.Providers
	if providers == nil {
		providers = []config.Provider{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"config": scalabilityConfig{
			MaxConcurrentPairs: s.scalability.MaxConcurrentPairs,
			BatchSize:          stats.BatchSize,
			CycleInterval:      stats.CycleIntervalMs,
			Providers:          providers,
			Cache:              s.scalability.Cache,
		},
	})
}

func failure(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}
