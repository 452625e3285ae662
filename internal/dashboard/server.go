// Package dashboard serves the operator HTTP API: load warehouse data, pick
// events, edit prompts, generate, review and export content.
package dashboard

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/event-content-agent/internal/agent/generator"
	"github.com/event-content-agent/internal/export"
	"github.com/event-content-agent/internal/metrics"
	"github.com/event-content-agent/internal/models"
	"github.com/event-content-agent/internal/session"
	"github.com/event-content-agent/internal/storage"
	"github.com/event-content-agent/pkg/logger"
)

// Pipeline is the part of the generator agent the dashboard drives
type Pipeline interface {
	LoadEvents(ctx context.Context) (*generator.LoadResult, error)
	Run(ctx context.Context, opts generator.RunOptions) (*generator.RunResult, error)
	Regenerate(ctx context.Context, e *models.EnrichedEvent, angle models.Angle, opts generator.RunOptions) (*models.ContentItem, error)
}

// Server holds the handlers' dependencies
type Server struct {
	pipeline    Pipeline
	session     *session.Session
	writer      *export.Writer
	repo        storage.Repository
	metrics     *metrics.Metrics
	metricsPath string
	log         *logger.Logger
	now         func() time.Time
}

// Option configures a Server
type Option func(*Server)

// WithRepository exposes stored runs and persists regenerated content
func WithRepository(repo storage.Repository) Option {
	return func(s *Server) { s.repo = repo }
}

// WithMetrics records request metrics and serves them at path
func WithMetrics(m *metrics.Metrics, path string) Option {
	return func(s *Server) {
		s.metrics = m
		s.metricsPath = path
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer creates the dashboard API server
func NewServer(pipeline Pipeline, sess *session.Session, writer *export.Writer, log *logger.Logger, opts ...Option) *Server {
	s := &Server{
		pipeline: pipeline,
		session:  sess,
		writer:   writer,
		log:      log.WithComponent("dashboard"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the gin engine with every route registered
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", s.health)
	if s.metrics != nil && s.metricsPath != "" {
		r.GET(s.metricsPath, gin.WrapH(s.metrics.Handler()))
	}

	api := r.Group("/api")
	{
		api.GET("/session", s.getSession)
		api.POST("/session/reset", s.resetSession)

		api.POST("/data/load", s.loadData)
		api.GET("/events", s.listEvents)
		api.POST("/events/select", s.selectEvents)
		api.GET("/quality", s.quality)

		api.GET("/prompts/templates", s.promptTemplates)
		api.GET("/prompts", s.getPrompts)
		api.PUT("/prompts", s.setPrompts)

		api.POST("/generate", s.generate)
		api.GET("/content", s.listContent)
		api.POST("/content/:content_id/regenerate", s.regenerate)
		api.GET("/schedule", s.schedule)

		api.POST("/export", s.exportContent)
		api.GET("/exports", s.exportHistory)

		api.GET("/runs", s.listRuns)
		api.GET("/runs/:run_id", s.getRun)
	}
	return r
}

// requestLogger logs and times each request
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		s.metrics.ObserveHTTP(c.Request.Method, path, strconv.Itoa(status), elapsed)

		event := s.log.Debug()
		if status >= http.StatusInternalServerError {
			event = s.log.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration", elapsed).
			Msg("Request handled")
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
