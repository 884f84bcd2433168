// Package api exposes the operational health and status endpoints. There is
// no product-facing API: the pipeline has no interactive surface.
package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ageree/curator/pkg/database"
	"github.com/ageree/curator/pkg/engine"
)

// Server serves /health and /status.
type Server struct {
	engine *engine.Engine
	db     *sql.DB
	logger *slog.Logger
}

// NewServer creates the operational HTTP server.
func NewServer(e *engine.Engine, db *sql.DB) *Server {
	return &Server{
		engine: e,
		db:     db,
		logger: slog.Default().With("component", "api"),
	}
}

// Router builds the gin router.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", s.handleHealth)
	router.GET("/status", s.handleStatus)
	return router
}

// Run starts the HTTP server on the given port, shutting down when ctx is
// cancelled.
func (s *Server) Run(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("HTTP server shutdown failed", "error", err)
		}
	}()

	s.logger.Info("HTTP server listening", "port", port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbHealth, err := database.Health(reqCtx, s.db)
	status := s.engine.Status()

	unhealthyAgents := []string{}
	for name, agentStatus := range status.Agents {
		if agentStatus.Enabled && !agentStatus.Healthy {
			unhealthyAgents = append(unhealthyAgents, name)
		}
	}

	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": dbHealth,
			"error":    err.Error(),
		})
		return
	}

	overall := "healthy"
	code := http.StatusOK
	if len(unhealthyAgents) > 0 {
		overall = "degraded"
	}
	if !status.Running {
		overall = "stopped"
	}

	c.JSON(code, gin.H{
		"status":           overall,
		"database":         dbHealth,
		"running":          status.Running,
		"unhealthy_agents": unhealthyAgents,
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Status())
}
