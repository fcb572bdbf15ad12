package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hackgods/dean-appointment-requests/internal/appointment"
)

type RouterConfig struct {
	Service      *appointment.Service
	Admins       *appointment.AdminDirectory
	Logger       *zap.Logger
	Observer     RequestObserver
	Metrics      http.Handler
	LoginLimiter *RateLimiter
	Checks       []DependencyCheck
	Env          string
	Version      string
	Now          func() time.Time
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger, cfg.Observer))

	// Health endpoints
	health := NewHealthHandler(cfg.Checks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		// Appointment endpoints
		r.Get("/appointments", listAppointmentsHandler(cfg.Service, logger))
		r.Post("/appointments", createAppointmentHandler(cfg.Service, logger))
		r.Get("/appointments/search", searchAppointmentsHandler(cfg.Service, logger))
		r.Get("/appointments/booked-slots", bookedSlotsHandler(cfg.Service, logger))
		r.Get("/appointments/available-slots", availableSlotsHandler(cfg.Service, logger))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service, logger))
		r.Patch("/appointments/{id}", updateAppointmentHandler(cfg.Service, logger))

		r.Get("/schedule", scheduleHandler(cfg.Service, logger, now))

		r.Group(func(r chi.Router) {
			if cfg.LoginLimiter != nil {
				r.Use(cfg.LoginLimiter.Middleware)
			}
			r.Post("/admin/login", loginHandler(cfg.Admins, logger))
		})
	})

	return r
}
