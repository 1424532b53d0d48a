// Package api exposes the learning engine over HTTP with gin.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"candle-learning-lab/internal/config"
	"candle-learning-lab/internal/engine"
	"candle-learning-lab/internal/logging"
	"candle-learning-lab/internal/observability"
	"candle-learning-lab/internal/reporting"
	"candle-learning-lab/internal/signal"
)

// EngineControl is the part of the engine the control surface drives.
type EngineControl interface {
	Start() bool
	Stop()
	Stats() engine.Stats
	UpdateConfig(u engine.Update) error
}

// SignalGenerator produces trade signals.
type SignalGenerator interface {
	Generate(ctx context.Context, pair string) (*signal.Result, error)
}

// StatsProvider builds statistics snapshots.
type StatsProvider interface {
	LearningStats(ctx context.Context) (*reporting.LearningStats, error)
	SystemStats(ctx context.Context) (*reporting.SystemStats, error)
}

// Options wires the Server to its collaborators.
type Options struct {
	Engine      EngineControl
	Signals     SignalGenerator
	Stats       StatsProvider
	Hub         *Hub // nil disables /ws/trades
	Scalability config.Scalability
	Logger      zerolog.Logger

	// AllowOrigins for CORS. Empty allows any origin.
	AllowOrigins []string
	Production   bool
}

// Server is the HTTP control surface.
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	engine      EngineControl
	signals     SignalGenerator
	stats       StatsProvider
	hub         *Hub
	scalability config.Scalability
	logger      zerolog.Logger
}

// NewServer creates a Server with all routes registered.
func NewServer(opts Options) *Server {
	if opts.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(requestLogger(opts.Logger))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(opts.AllowOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = opts.AllowOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:      router,
		engine:      opts.Engine,
		signals:     opts.Signals,
		stats:       opts.Stats,
		hub:         opts.Hub,
		scalability: opts.Scalability,
		logger:      logging.Component(opts.Logger, "api"),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(observability.Handler()))

	api := s.router.Group("/api")
	{
		api.POST("/auto-start", s.handleAutoStart)
		api.POST("/stop", s.handleStop)
		api.GET("/engine", s.handleEngineStats)
		api.PATCH("/engine/config", s.handleEngineConfig)

		api.POST("/generate-signal", s.handleGenerateSignal)
		api.GET("/learning-stats", s.handleLearningStats)
		api.GET("/system-stats", s.handleSystemStats)
		api.GET("/scalability-config", s.handleScalabilityConfig)
	}

	if s.hub != nil {
		s.router.GET("/ws/trades", s.handleTradeFeed)
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info().Msg("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// requestLogger logs one line per request.
func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	logger = logging.Component(logger, "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := logger.Debug()
		switch {
		case status >= http.StatusInternalServerError:
			event = logger.Error()
		case status >= http.StatusBadRequest:
			event = logger.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
