package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	gorillaws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/gdeltwatch/internal/llm"
	"github.com/ppiankov/gdeltwatch/internal/model"
	"github.com/ppiankov/gdeltwatch/internal/websocket"
)

// Server holds the handler dependencies
type Server struct {
	store        *SnapshotStore
	hub          *websocket.Hub
	summarizer   *llm.Summarizer
	upgrader     *gorillaws.Upgrader
	middleware   MiddlewareConfig
	mapPrecision uint
	window       time.Duration
	started      time.Time
	version      string
}

// Options configures a Server
type Options struct {
	Store        *SnapshotStore
	Hub          *websocket.Hub  // Optional; nil disables push notifications
	Summarizer   *llm.Summarizer // Optional; nil disables briefings
	Middleware   MiddlewareConfig
	MapPrecision uint
	Window       time.Duration
	Version      string
}

// NewServer creates a server over the given store
func NewServer(opts Options) *Server {
	precision := opts.MapPrecision
	if precision == 0 {
		precision = 3
	}
	return &Server{
		store:        opts.Store,
		hub:          opts.Hub,
		summarizer:   opts.Summarizer,
		upgrader:     websocket.Upgrader(opts.Middleware.CORSAllowedOrigins),
		middleware:   opts.Middleware,
		mapPrecision: precision,
		window:       opts.Window,
		started:      time.Now().UTC(),
		version:      opts.Version,
	}
}

// OptionsFromConfig maps the server section of the config
func OptionsFromConfig(cfg *model.Config) Options {
	return Options{
		Middleware: MiddlewareConfig{
			CORSAllowedOrigins: cfg.Server.CORSOrigins,
			RateLimitRequests:  cfg.Server.RateLimitRequests,
			RateLimitWindow:    time.Minute,
		},
		MapPrecision: cfg.Server.MapPrecision,
		Window:       cfg.Feed.Window,
	}
}

// Store returns the snapshot store
func (s *Server) Store() *SnapshotStore {
	return s.store
}

// Handler builds the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDWithLogging)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsMiddleware(s.middleware.CORSAllowedOrigins))
	r.Use(accessLog)

	r.Get("/", s.Dashboard)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rateLimitMiddleware(s.middleware))
		r.Use(prometheusMetrics)

		r.Get("/health", s.Health)
		r.Post("/refresh", s.Refresh)
		r.Get("/events", s.Events)
		r.Get("/stats", s.Stats)
		r.Get("/map", s.Map)
		r.Get("/export.csv", s.ExportCSV)
		r.Get("/export.json", s.ExportJSON)
		r.Post("/briefing", s.Briefing)
		r.Get("/ws", s.WebSocket)
	})

	return r
}
