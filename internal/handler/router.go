package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/expensync/expensync/internal/metrics"
	"github.com/expensync/expensync/internal/middleware"
)

// RouterConfig carries everything the router mounts.
type RouterConfig struct {
	Logger   *slog.Logger
	Recorder metrics.Recorder

	Health        *HealthHandler
	Lists         *ListHandler
	Expenses      *ExpenseHandler
	Notifications *NotificationHandler
	Users         *UserHandler
	// Socket serves the real-time upgrade. Nil leaves /api/socket unmounted.
	Socket http.Handler
	// Metrics serves the scrape endpoint. Nil leaves /metrics unmounted.
	Metrics http.Handler

	Auth          middleware.AuthConfig
	RateLimit     middleware.RateLimitConfig
	CORSOrigins   []string
	IsDevelopment bool
	MaxBodyBytes  int64
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	h := New()
	r := chi.NewRouter()

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = middleware.DefaultMaxBodyBytes
	}

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Metrics(cfg.Recorder))
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment}))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))

	// Unauthenticated endpoints
	if cfg.Health != nil {
		r.Get("/healthz", cfg.Health.Healthz)
		r.Get("/readyz", cfg.Health.Readyz)
	}
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimitIP(cfg.RateLimit))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.Auth))
			r.Use(middleware.RateLimitUser(cfg.RateLimit))
			r.Use(middleware.MaxBodySize(maxBody))

			r.Route("/expenses-list", func(r chi.Router) {
				r.Get("/", cfg.Lists.List)
				r.Post("/", cfg.Lists.Create)
				r.Get("/{id}", cfg.Lists.Get)
				r.Put("/{id}", cfg.Lists.Update)
				r.Delete("/{id}", cfg.Lists.Delete)
			})

			r.Route("/expenses", func(r chi.Router) {
				r.Get("/", cfg.Expenses.List)
				r.Post("/", cfg.Expenses.Create)
				r.Get("/{id}", cfg.Expenses.Get)
				r.Put("/{id}", cfg.Expenses.Update)
				r.Delete("/{id}", cfg.Expenses.Delete)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", cfg.Notifications.List)
				r.Post("/clear", cfg.Notifications.Clear)
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/me", cfg.Users.Me)
				r.Put("/me", cfg.Users.UpdateMe)
			})
		})

		if cfg.Socket != nil {
			socketAuth := cfg.Auth
			socketAuth.AllowQueryToken = true
			r.With(middleware.Auth(socketAuth)).Get("/socket", cfg.Socket.ServeHTTP)
		}
	})

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}
