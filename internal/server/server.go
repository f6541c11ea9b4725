// Package server exposes processed trials, detection runs and ground-truth annotations over HTTP.
package server

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roman-kulish/gait-fusion/internal/storage"
)

// WithLogger sets the logger for the server
func WithLogger(logger *slog.Logger) func(s *Server) {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithSecret enables bearer token authentication of annotation writes.
func WithSecret(secret string) func(s *Server) {
	return func(s *Server) {
		s.secret = []byte(secret)
	}
}

// WithClock replaces time.Now for annotation timestamps.
func WithClock(now func() time.Time) func(s *Server) {
	return func(s *Server) {
		s.now = now
	}
}

// Server serves the read API over a store and the annotation files in one directory.
type Server struct {
	store          storage.Store
	annotationsDir string
	secret         []byte
	now            func() time.Time
	logger         *slog.Logger
}

func New(store storage.Store, annotationsDir string, options ...func(s *Server)) *Server {
	s := Server{
		store:          store,
		annotationsDir: annotationsDir,
		now:            time.Now,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, option := range options {
		option(&s)
	}
	return &s
}

// Handler builds the gin engine with every route registered.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))

	r.GET("/health", s.health)

	api := r.Group("/api/v1")
	{
		trials := api.Group("/trials")
		{
			trials.GET("", s.listTrials)
			trials.GET("/:id", s.getTrial)
		}

		annotations := api.Group("/annotations")
		{
			annotations.GET("/:id", s.getAnnotations)

			write := []gin.HandlerFunc{s.postAnnotations}
			if len(s.secret) > 0 {
				write = append([]gin.HandlerFunc{requireToken(s.secret)}, write...)
			}
			annotations.POST("/:id", write...)
		}

		runs := api.Group("/runs")
		{
			runs.GET("", s.listRuns)
			runs.GET("/:id", s.getRun)
			runs.GET("/:id/events", s.listEvents)
		}
	}

	return r
}
