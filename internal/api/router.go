package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hackgods/clinic-appointments/internal/appointment"
)

type RouterConfig struct {
	Service     *appointment.Service
	Ready       map[string]Pinger
	Credentials Credentials
	CORSOrigins []string
	Logger      *slog.Logger
	Env         string
	Version     string

	// Now defaults to time.Now. It decides "today" for stats and lists.
	Now func() time.Time
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger.With(slog.String("component", "http"))))
	r.Use(middleware.Recoverer)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(BasicAuthMiddleware(cfg.Credentials))

	health := NewHealthHandler(cfg.Ready, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	h := &handlers{svc: cfg.Service, creds: cfg.Credentials, now: cfg.Now}
	r.Post("/login", h.login)
	r.Get("/patients", h.listPatients)
	r.Get("/doctors", h.listDoctors)
	r.Get("/slots", h.listSlots)
	r.Get("/stats", h.stats)

	r.Route("/appointments", func(r chi.Router) {
		r.Get("/", h.listAppointments)
		r.Post("/", h.createAppointment)
		r.Get("/{id}", h.getAppointment)
		r.Put("/{id}", h.updateAppointment)
		r.Delete("/{id}", h.deleteAppointment)
	})
	r.Get("/calendar/{year}/{month}", h.month)
	r.Get("/calendar.ics", h.calendarFeed)

	return r
}
