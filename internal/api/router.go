package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/testforge/smartfill/internal/api/handlers"
	"github.com/testforge/smartfill/internal/api/middleware"
	"github.com/testforge/smartfill/internal/channel"
	"github.com/testforge/smartfill/internal/observability"
	"github.com/testforge/smartfill/pkg/httputil"
)

// Router holds the HTTP router and its dependencies
type Router struct {
	chi.Router
	logger *zap.Logger
}

// HealthCheck probes one dependency for the readiness endpoint.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// RouterConfig contains configuration for the router
type RouterConfig struct {
	Dispatcher     *channel.Dispatcher
	Store          handlers.Store
	Guard          *PageGuard
	Limiter        middleware.Limiter
	RateLimit      int
	Metrics        *observability.Metrics
	Checks         []HealthCheck
	Logger         *zap.Logger
	EnableCORS     bool
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(cfg RouterConfig) *Router {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Guard == nil {
		cfg.Guard = NewPageGuard(DefaultCooldown)
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	// Base middleware stack
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(cfg.Logger).Handler)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Handler)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.HTTPMiddleware)
	}
	r.Use(chimw.Timeout(cfg.RequestTimeout))

	if cfg.EnableCORS {
		origins := cfg.AllowedOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
			MaxAge:         300,
		}))
	}

	if cfg.Limiter != nil && cfg.RateLimit > 0 {
		r.Use(middleware.NewRateLimitMiddleware(cfg.Limiter, cfg.RateLimit, true).Handler)
	}

	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(cfg.Checks))
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	messages := newMessageHandler(cfg.Dispatcher, cfg.Guard, cfg.Logger)
	profiles := handlers.NewProfileHandler(cfg.Store, cfg.Logger)
	settings := handlers.NewSettingsHandler(cfg.Store, cfg.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/messages", messages.Post)
		r.Get("/operations", messages.Operations)

		r.Route("/profiles", func(r chi.Router) {
			r.Get("/", profiles.List)
			r.Post("/", profiles.Save)
			r.Get("/{name}", profiles.Get)
			r.Delete("/{name}", profiles.Delete)
		})

		r.Get("/settings", settings.Get)
		r.Put("/settings", settings.Update)
	})

	return &Router{
		Router: r,
		logger: cfg.Logger,
	}
}

// healthHandler returns basic health status
func healthHandler(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "smartfill-api",
	})
}

// readyHandler checks if all dependencies are ready
func readyHandler(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := make(map[string]string, len(checks))
		allHealthy := true

		for _, c := range checks {
			if err := c.Check(r.Context()); err != nil {
				results[c.Name] = "unhealthy: " + err.Error()
				allHealthy = false
				continue
			}
			results[c.Name] = "healthy"
		}

		status := http.StatusOK
		statusText := "ready"
		if !allHealthy {
			status = http.StatusServiceUnavailable
			statusText = "not ready"
		}

		httputil.JSON(w, status, map[string]any{
			"status": statusText,
			"checks": results,
		})
	}
}
