package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/quantflow/optimizer/internal/events"
	"github.com/quantflow/optimizer/internal/metrics"
	"github.com/quantflow/optimizer/internal/modules/analysis"
	"github.com/quantflow/optimizer/internal/modules/improvement"
	"github.com/quantflow/optimizer/internal/modules/pipeline"
)

// Config holds server configuration
type Config struct {
	Port    int
	Log     zerolog.Logger
	DevMode bool

	Registry *improvement.Registry
	Engine   *improvement.Engine
	Tasks    *improvement.TaskRepository
	Runner   *pipeline.Runner
	Rollouts pipeline.RolloutStore
	Analyzer *analysis.Analyzer
	Events   *events.Manager
	Metrics  *metrics.Metrics
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger

	registry *improvement.Registry
	engine   *improvement.Engine
	tasks    *improvement.TaskRepository
	runner   *pipeline.Runner
	rollouts pipeline.RolloutStore
	analyzer *analysis.Analyzer
	events   *events.Manager
	metrics  *metrics.Metrics

	startedAt time.Time
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		registry:  cfg.Registry,
		engine:    cfg.Engine,
		tasks:     cfg.Tasks,
		runner:    cfg.Runner,
		rollouts:  cfg.Rollouts,
		analyzer:  cfg.Analyzer,
		events:    cfg.Events,
		metrics:   cfg.Metrics,
		startedAt: time.Now(),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	s.router.Get("/ws/events", s.handleEventStream)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.handleSystemStatus)
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Post("/", s.handleCreateTask)
			r.Get("/summary", s.handleTaskSummary)
			r.Get("/{taskID}", s.handleGetTask)
			r.Delete("/{taskID}", s.handleDeleteTask)
			r.Post("/{taskID}/enable", s.handleEnableTask)
		})

		r.Route("/improvement", func(r chi.Router) {
			r.Post("/cycle", s.handleRunCycle)
			r.Get("/results", s.handleCycleResults)
			r.Get("/events", s.handleImprovementEvents)
		})

		r.Route("/analysis", func(r chi.Router) {
			r.Get("/report", s.handleAnalysisReport)
		})

		r.Route("/rollouts", func(r chi.Router) {
			r.Get("/", s.handleListRollouts)
			r.Get("/{rolloutID}", s.handleGetRollout)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
