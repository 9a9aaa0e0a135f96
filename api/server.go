// Package api exposes counters, tracks and alerts over HTTP and streams events over websocket
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/LdDl/linecount-go/alerts"
	"github.com/LdDl/linecount-go/crossing"
	"github.com/LdDl/linecount-go/mot"
)

// Source is read side of the counting pipeline. Implemented by *counter.Counter.
type Source interface {
	Counts() crossing.CountsSnapshot
	Tracks() []mot.TrackSnapshot
	RecentAlerts(n int) []alerts.Event
	AlertStats() alerts.Stats
	Frame() int64
	Line() crossing.Line
}

// ConnectionCheck reports whether an outbound connection is alive
type ConnectionCheck func() bool

// ServerOption customizes Server
type ServerOption func(*Server)

// WithConnectionCheck reports state of named connection on /health
func WithConnectionCheck(name string, check ConnectionCheck) ServerOption {
	return func(s *Server) {
		if check == nil {
			return
		}
		s.checkNames = append(s.checkNames, name)
		s.checks[name] = check
	}
}

// Server is HTTP API server
type Server struct {
	router     *gin.Engine
	server     *http.Server
	source     Source
	hub        *Hub
	checks     map[string]ConnectionCheck
	checkNames []string
	logger     zerolog.Logger
}

// NewServer creates server listening on addr
func NewServer(addr string, source Source, hub *Hub, logger zerolog.Logger, options ...ServerOption) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	s := &Server{
		router: router,
		source: source,
		hub:    hub,
		checks: make(map[string]ConnectionCheck),
		logger: logger,
	}
	for _, option := range options {
		option(s)
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving requests. Returns nil after Shutdown.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting HTTP API")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Stopping HTTP API")
	return s.server.Shutdown(ctx)
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("HTTP request")
	}
}

func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	v1.GET("/health", s.health)
	v1.GET("/counts", s.counts)
	v1.GET("/tracks", s.tracks)
	v1.GET("/alerts/recent", s.recentAlerts)
	v1.GET("/alerts/stats", s.alertStats)
	if s.hub != nil {
		v1.GET("/events", s.events)
	}
}
