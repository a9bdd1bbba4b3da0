package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/careflow/referral-scheduling/internal/auth"
)

type RouterConfig struct {
	Service   RegulationService
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	JWTSecret string
	Env       string
	Version   string
	Logger    zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints stay open
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Everything else requires a bearer token
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.JWTSecret))

		r.Get("/me", meHandler())

		r.Post("/requests", createRequestHandler(cfg.Service))
		r.Get("/requests/{id}", getRequestHandler(cfg.Service))
		r.Put("/requests/{id}/status", updateRequestStatusHandler(cfg.Service))

		r.Post("/slots", createSlotHandler(cfg.Service))

		r.Post("/bookings/{id}/confirm", confirmBookingHandler(cfg.Service))
		r.Post("/bookings/{id}/deny", denyBookingHandler(cfg.Service))
		r.Post("/bookings/{id}/complete", completeBookingHandler(cfg.Service))

		r.Post("/reviews", createReviewHandler(cfg.Service))
	})

	return r
}
