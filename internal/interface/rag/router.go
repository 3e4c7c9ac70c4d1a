package rag

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/auth"
	"github.com/saintwyss/rag-corp-sub003/internal/infra/config"
)

// NewRouter builds the *http.Server bound to cfg.Address, generalizing the
// teacher's gin route table (auth routes public, everything else behind
// the bearer-token middleware) onto go-chi.
func NewRouter(cfg config.HTTPConfig, authSvc auth.Service, handler *Handler) *http.Server {
	r := chi.NewRouter()
	r.Use(recoverMiddleware(handler.logger))
	r.Use(requestLogger(handler.logger))
	r.Use(corsMiddleware(cfg.AllowedOrigins))
	if cfg.RateLimit.Enabled {
		r.Use(rateLimitMiddleware(handler.logger, cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, handler.logger, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", handler.Register)
			r.Post("/login", handler.Login)
			r.Post("/refresh", handler.Refresh)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(authSvc, handler.logger))

			r.Route("/me", func(r chi.Router) {
				r.Use(requireAuth(handler.logger))
				r.Get("/", handler.Profile)
				r.Post("/logout", handler.Logout)
			})

			r.Route("/workspaces", func(r chi.Router) {
				r.With(requireAuth(handler.logger)).Post("/", handler.CreateWorkspace)

				r.Route("/{workspaceID}", func(r chi.Router) {
					r.Get("/", handler.GetWorkspace)
					r.With(requireAuth(handler.logger)).Delete("/", handler.ArchiveWorkspace)

					r.With(requireAuth(handler.logger)).Post("/documents", handler.UploadDocument)
					r.With(requireAuth(handler.logger)).Post("/documents/text", handler.IngestText)
					r.With(requireAuth(handler.logger)).Post("/documents/{documentID}/reprocess", handler.ReprocessDocument)
					r.With(requireAuth(handler.logger)).Post("/documents/{documentID}/cancel", handler.CancelDocument)

					r.Post("/ask", handler.AskQuestion)
					r.Post("/ask/stream", handler.AskQuestionStream)
				})
			})
		})
	})

	return &http.Server{
		Addr:         cfg.Address,
		Handler:      r,
		ReadTimeout:  nonZero(cfg.ReadTimeout, 15*time.Second),
		WriteTimeout: nonZero(cfg.WriteTimeout, 0), // 0: streaming responses must not be cut off
	}
}

func nonZero(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
