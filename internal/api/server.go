// Package api exposes the coordinator over HTTP. It is a thin adapter:
// all semantics live in the coordinator, the handlers only translate
// requests and map errors to status codes.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/phytolab/sage/internal/logging"
	"github.com/phytolab/sage/pkg/models"
)

// Engine is the coordinator surface the API serves.
type Engine interface {
	SubmitTask(category models.TaskCategory, input map[string]any, priority models.TaskPriority) (string, error)
	GetTaskStatus(taskID string) (*models.CoordinatedTask, error)
	ListActiveTasks() []*models.CoordinatedTask
	WorkerStatuses() map[models.WorkerType]models.HealthReport
	ActiveCount() int
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	ListenAddr   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (c ServerConfig) withDefaults() ServerConfig {
	if c.ListenAddr == "" {
		c.ListenAddr = "127.0.0.1:8080"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	return c
}

// Server serves the task API over HTTP.
type Server struct {
	engine     Engine
	router     *gin.Engine
	httpServer *http.Server
	logger     logging.Logger
}

// NewServer builds the router. Call Start to begin serving.
func NewServer(engine Engine, cfg ServerConfig, logger logging.Logger) *Server {
	cfg = cfg.withDefaults()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(jsonMiddleware())

	s := &Server{
		engine: engine,
		router: router,
		logger: logging.OrNop(logger),
		httpServer: &http.Server{
			Addr:         cfg.ListenAddr,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/tasks", s.submitTask)
		v1.GET("/tasks", s.listTasks)
		v1.GET("/tasks/:id", s.getTask)
		v1.GET("/workers", s.listWorkers)
	}

	s.router.GET("/healthz", s.health)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called. It blocks.
func (s *Server) Start() error {
	s.logger.Info("api listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
