// Package api exposes the HTTP surface: entry CRUD, streak and
// coherence queries, aura checks, oracle draws, health and metrics.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/lumenlab/lumenos/internal/aura"
	"github.com/lumenlab/lumenos/internal/logger"
	"github.com/lumenlab/lumenos/internal/metrics"
	"github.com/lumenlab/lumenos/internal/oracle"
	"github.com/lumenlab/lumenos/internal/storage"
	"github.com/lumenlab/lumenos/internal/streak"
)

// Config carries the request-handling knobs of the HTTP layer.
type Config struct {
	DefaultPreset  aura.Preset
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
	RequestTimeout time.Duration
}

// Handler owns the HTTP routes and their dependencies.
type Handler struct {
	store     storage.Store
	analyzer  *streak.Analyzer
	evaluator *aura.Evaluator
	oracle    *oracle.Oracle
	metrics   *metrics.Metrics
	config    Config
	limiter   *visitorLimiter
	now       func() time.Time
	newID     func() string
}

// NewHandler wires the HTTP layer. All dependencies are required.
func NewHandler(store storage.Store, analyzer *streak.Analyzer, evaluator *aura.Evaluator, orc *oracle.Oracle, m *metrics.Metrics, cfg Config) *Handler {
	return &Handler{
		store:     store,
		analyzer:  analyzer,
		evaluator: evaluator,
		oracle:    orc,
		metrics:   m,
		config:    cfg,
		limiter:   newVisitorLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Router assembles the middleware chain and route tree.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.instrument)
	r.Use(middleware.Recoverer)
	if h.config.RequestTimeout > 0 {
		r.Use(middleware.Timeout(h.config.RequestTimeout))
	}
	if h.limiter != nil {
		r.Use(h.limiter.middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.config.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.healthz)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/entries", func(r chi.Router) {
			r.Post("/", h.createEntry)
			r.Get("/", h.listEntries)
			r.Get("/{entryID}", h.getEntry)
			r.Put("/{entryID}", h.updateEntry)
			r.Delete("/{entryID}", h.deleteEntry)
		})

		r.Get("/streaks", h.listStreaks)
		r.Get("/streaks/{kind}", h.getStreak)

		r.Route("/aura", func(r chi.Router) {
			r.Post("/check", h.checkAura)
			r.Get("/checks", h.listAuraChecks)
		})

		r.Post("/coherence/field", h.coherenceField)
		r.Post("/coherence/earned-light", h.earnedLight)

		r.Route("/oracle", func(r chi.Router) {
			r.Post("/draws", h.createDraw)
			r.Get("/draws", h.listDraws)
		})
	})

	return r
}

// instrument records request metrics and a debug log line once the
// route pattern is known.
func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		h.metrics.RecordHTTPRequest(r.Method, route, strconv.Itoa(status), elapsed)
		logger.Debug("%s %s -> %d (%s, %d bytes)",
			r.Method, r.URL.Path, status, elapsed.Round(time.Millisecond), ww.BytesWritten())
	})
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		logger.Warn("Health check failed: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "down"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
