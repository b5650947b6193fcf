// Package server exposes the watcher's HTTP surface: the Current RMS
// webhook receiver and the read/write dashboard API for forecast and
// risk data.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/xthestreams/current-rms-watcher/internal/risk"
	"github.com/xthestreams/current-rms-watcher/internal/store"
	"github.com/xthestreams/current-rms-watcher/internal/webhook"
	"github.com/xthestreams/current-rms-watcher/pkg/currentrms"
)

// Server holds the dependencies behind the HTTP handlers.
type Server struct {
	store         store.Store
	client        currentrms.Client
	settings      *risk.SettingsCache
	processor     *webhook.Processor
	webhookSecret string
	origins       []string
	now           func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithWebhookSecret requires the X-Webhook-Secret header on deliveries.
func WithWebhookSecret(secret string) Option {
	return func(s *Server) { s.webhookSecret = secret }
}

// WithAllowedOrigins sets the CORS allow list.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

// WithNow overrides the time source, for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a Server. client may be nil; the risk round-trip endpoints
// then respond 503 and webhook deliveries cannot be refetched by id.
func New(st store.Store, client currentrms.Client, settings *risk.SettingsCache, processor *webhook.Processor, opts ...Option) *Server {
	s := &Server{
		store:     st,
		client:    client,
		settings:  settings,
		processor: processor,
		origins:   []string{"*"},
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Router builds the chi router with middleware and all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/webhook/current-rms", s.handleWebhook)

	r.Route("/api", func(r chi.Router) {
		r.Get("/opportunities", s.handleListOpportunities)
		r.Get("/opportunities/{id}", s.handleGetOpportunity)
		r.Get("/opportunities/{id}/forecast", s.handleGetForecast)
		r.Put("/opportunities/{id}/forecast", s.handlePutForecast)
		r.Delete("/opportunities/{id}/forecast", s.handleDeleteForecast)
		r.Get("/opportunities/{id}/risk", s.handleGetRisk)
		r.Put("/opportunities/{id}/risk", s.handlePutRisk)

		r.Get("/forecast/summary", s.handleForecastSummary)
		r.Get("/forecast/by-owner", s.handleForecastByOwner)
		r.Get("/forecast/by-customer", s.handleForecastByCustomer)
		r.Get("/forecast/by-band", s.handleForecastByBand)
		r.Get("/forecast/timeseries", s.handleForecastTimeSeries)

		r.Get("/risk/settings", s.handleRiskSettings)
		r.Get("/events", s.handleListEvents)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestLogger logs each request through the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}
