package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kinesica-health/kinesica/internal/api"
	"github.com/kinesica-health/kinesica/internal/api/handlers"
	"github.com/kinesica-health/kinesica/internal/api/middleware"
)

type RouterConfig struct {
	AssistantHandler *handlers.AssistantHandler
	IngestHandler    *handlers.IngestHandler
	DocumentHandler  *handlers.DocumentHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/ingest", cfg.IngestHandler.Ingest)

		r.Route("/assistants/{type}", func(r chi.Router) {
			r.Post("/answer", cfg.AssistantHandler.Answer)
			r.Get("/history", cfg.AssistantHandler.History)
			r.Delete("/history", cfg.AssistantHandler.DeleteHistory)
		})

		r.Route("/documents", func(r chi.Router) {
			r.Get("/", cfg.DocumentHandler.List)
			r.Get("/{id}", cfg.DocumentHandler.Get)
			r.Delete("/{id}", cfg.DocumentHandler.Delete)
		})
	})

	return r
}
