// Package api exposes the agent over HTTP with gin.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opsbuddy/bob/pkg/bob"
)

// Server is the HTTP façade over an Agent.
type Server struct {
	agent  *bob.Agent
	cfg    bob.Config
	logger *slog.Logger
}

// NewServer creates the façade. A nil logger falls back to
// slog.Default().
func NewServer(agent *bob.Agent, cfg bob.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{agent: agent, cfg: cfg, logger: logger}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", s.root)
	r.GET("/health", s.health)
	r.POST("/chat", s.chat)
	r.POST("/chat/stream", s.chatStream)
	r.GET("/history/:thread_id", s.history)
	r.GET("/summary/:thread_id", s.summary)
	r.GET("/analysis/:thread_id", s.analysis)
	r.DELETE("/thread/:thread_id", s.clearThread)

	return r
}

// Run starts the server on addr, blocking until it fails.
func (s *Server) Run(addr string) error {
	s.logger.Info("starting server", "addr", addr)
	return s.Router().Run(addr)
}

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "Bob Agent API",
		"version":     "1.0.0",
		"description": "Your AI Operations Buddy",
		"health":      "/health",
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{
		Status: "healthy",
		Model:  s.cfg.Model,
	})
}
