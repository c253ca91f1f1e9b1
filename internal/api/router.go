package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/probewatch/probewatch/internal/config"
	"github.com/probewatch/probewatch/internal/scheduler"
	"github.com/probewatch/probewatch/internal/store"
)

// NewRouter creates the control API router. Authentication is owned by the
// dashboard gateway in front of this service.
func NewRouter(cfg *config.Config, st *store.Store, sched *scheduler.Scheduler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(SecurityHeadersMiddleware(cfg))
	r.Use(RateLimitMiddleware(NewRateLimiter(20, 40)))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	h := &MonitorHandlers{
		Store:     st,
		Scheduler: sched,
		Config:    cfg,
		Logger:    logger,
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/monitors", h.List)
		r.Post("/monitors", h.Create)
		r.Get("/monitors/{id}", h.Get)
		r.Put("/monitors/{id}", h.Update)
		r.Delete("/monitors/{id}", h.Delete)
		r.Get("/monitors/{id}/results", h.Results)

		r.Post("/monitors/{id}/enable", h.Enable)
		r.Post("/monitors/{id}/disable", h.Disable)
		r.Post("/monitors/{id}/pause", h.Pause)
		r.Post("/monitors/{id}/resume", h.Resume)
		r.Post("/monitors/{id}/run", h.RunNow)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
