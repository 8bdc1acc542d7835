package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/bookfit/credits/internal/adapter/http/handler"
	"github.com/bookfit/credits/internal/adapter/http/middleware"
	"github.com/bookfit/credits/internal/infrastructure/metrics"
	"github.com/bookfit/credits/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	TransactionHandler *handler.TransactionHandler
	CreditsHandler     *handler.CreditsHandler
	BalanceHandler     *handler.BalanceHandler
	BookingHandler     *handler.BookingHandler
	AdminHandler       *handler.AdminHandler
	HealthHandler      *handler.HealthHandler
	IdempotencyStore   usecase.IdempotencyStore
	Metrics            *metrics.Metrics
	Logger             zerolog.Logger
	RateLimit          float64
	RateBurst          int
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	r.Use(middleware.Recovery)
	if cfg.RateLimit > 0 {
		var hits *prometheus.CounterVec
		if cfg.Metrics != nil {
			hits = cfg.Metrics.RateLimitHits
		}
		r.Use(middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst, hits).Limit)
	}

	// Operational endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			idempotencyMiddleware := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore)
			r.Use(idempotencyMiddleware.Wrap)
		}

		// Credit-granting triggers
		r.Route("/credits", func(r chi.Router) {
			r.Post("/purchase", cfg.CreditsHandler.Purchase)
			r.Post("/gift", cfg.CreditsHandler.Gift)
			r.Post("/subscription-renewal", cfg.CreditsHandler.SubscriptionRenewal)
		})

		// Raw ledger transactions
		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", cfg.TransactionHandler.Create)
			r.Get("/{id}", cfg.TransactionHandler.Get)
			r.Get("/{id}/entries", cfg.TransactionHandler.GetEntries)
		})

		// User balances and history
		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/balance", cfg.BalanceHandler.GetUserBalance)
			r.Get("/history", cfg.BalanceHandler.GetUserHistory)
		})

		// Business earnings
		r.Get("/businesses/{id}/earnings", cfg.BalanceHandler.GetBusinessEarnings)

		// Booking workflow
		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", cfg.BookingHandler.Create)
			r.Get("/{id}", cfg.BookingHandler.Get)
			r.Post("/{id}/cancel", cfg.BookingHandler.Cancel)
			r.Post("/{id}/complete", cfg.BookingHandler.Complete)
			r.Post("/{id}/no-show", cfg.BookingHandler.NoShow)
		})

		// Admin
		r.Route("/admin", func(r chi.Router) {
			r.Post("/reconcile", cfg.AdminHandler.ReconcileBatch)
			r.Post("/reconcile/{userID}", cfg.AdminHandler.ReconcileUser)
			r.Post("/sweep-pending", cfg.AdminHandler.SweepPending)
		})
	})

	return r
}
