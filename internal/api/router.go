package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/directory"
	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/notification"
)

type RouterConfig struct {
	Service   *appointment.Service
	Directory directory.Directory
	Auth      identity.Authenticator
	// Inbox is optional; without it the /notifications routes are not mounted.
	Inbox        *notification.Inbox
	Dependencies []Dependency
	Gatherer     prometheus.Gatherer
	Logger       zerolog.Logger

	RateLimit rate.Limit // zero disables rate limiting
	RateBurst int

	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(RecoveryMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.Dependencies, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		if cfg.RateLimit > 0 {
			r.Use(RateLimitMiddleware(cfg.RateLimit, cfg.RateBurst))
		}

		// Directory browsing is public
		r.Get("/doctors", listDoctorsHandler(cfg.Directory))
		r.Get("/doctors/{id}", getDoctorHandler(cfg.Directory))
		r.Get("/clinics", listClinicsHandler(cfg.Directory))
		r.Get("/clinics/{id}", getClinicHandler(cfg.Directory))

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(cfg.Auth))

			svc := cfg.Service

			// Appointment endpoints
			r.Post("/appointments", createAppointmentHandler(svc))
			r.Get("/appointments", listAppointmentsHandler(svc))
			r.Get("/appointments/{id}", getAppointmentHandler(svc))
			r.Post("/appointments/{id}/confirm", transitionHandler(svc, svc.Confirm))
			r.Post("/appointments/{id}/reject", transitionHandler(svc, svc.Reject))
			r.Post("/appointments/{id}/complete", transitionHandler(svc, svc.Complete))
			r.Post("/appointments/{id}/cancel", transitionHandler(svc, svc.Cancel))
			r.Post("/appointments/{id}/reschedule", rescheduleAppointmentHandler(svc))

			r.Get("/patients/{id}/appointments", listByOwnerHandler(svc, svc.ListForPatient))
			r.Get("/doctors/{id}/appointments", listByOwnerHandler(svc, svc.ListForDoctor))
			r.Get("/slots", availableSlotsHandler(svc))

			if cfg.Inbox != nil {
				r.Get("/notifications", listNotificationsHandler(cfg.Inbox))
				r.Post("/notifications/{id}/read", markNotificationReadHandler(cfg.Inbox))
				r.Delete("/notifications/{id}", deleteNotificationHandler(cfg.Inbox))
			}
		})
	})

	return r
}
