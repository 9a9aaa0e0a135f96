package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/LdDl/linecount-go/crossing"
	"github.com/LdDl/linecount-go/mot"
)

const defaultRecentAlerts = 3

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"

	connectionUp   = "connected"
	connectionDown = "disconnected"
)

// HealthResponse is body of /health
type HealthResponse struct {
	Status      string            `json:"status"`
	Frame       int64             `json:"frame"`
	Connections map[string]string `json:"connections,omitempty"`
}

// CountsResponse is body of /counts
type CountsResponse struct {
	crossing.CountsSnapshot
	Frame       int64  `json:"frame"`
	Orientation string `json:"orientation"`
	Position    int    `json:"position"`
	Hysteresis  int    `json:"hysteresis"`
}

// TracksResponse is body of /tracks
type TracksResponse struct {
	Frame  int64               `json:"frame"`
	Tracks []mot.TrackSnapshot `json:"tracks"`
}

// ErrorResponse is body of failed requests
type ErrorResponse struct {
	Error string `json:"error"`
}

// health stays 200 when a connection is down: counting goes on without notifications
func (s *Server) health(c *gin.Context) {
	response := HealthResponse{
		Status: statusHealthy,
		Frame:  s.source.Frame(),
	}
	if len(s.checkNames) > 0 {
		response.Connections = make(map[string]string, len(s.checkNames))
	}
	for _, name := range s.checkNames {
		if s.checks[name]() {
			response.Connections[name] = connectionUp
			continue
		}
		response.Connections[name] = connectionDown
		response.Status = statusDegraded
	}
	c.JSON(http.StatusOK, response)
}

func (s *Server) counts(c *gin.Context) {
	line := s.source.Line()
	c.JSON(http.StatusOK, CountsResponse{
		CountsSnapshot: s.source.Counts(),
		Frame:          s.source.Frame(),
		Orientation:    line.Orientation.String(),
		Position:       line.Position,
		Hysteresis:     line.Hysteresis,
	})
}

func (s *Server) tracks(c *gin.Context) {
	c.JSON(http.StatusOK, TracksResponse{
		Frame:  s.source.Frame(),
		Tracks: s.source.Tracks(),
	})
}

func (s *Server) recentAlerts(c *gin.Context) {
	limit := defaultRecentAlerts
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, s.source.RecentAlerts(limit))
}

func (s *Server) alertStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.source.AlertStats())
}
