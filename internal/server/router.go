package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lumora-ai/lumora/internal/api"
	"github.com/lumora-ai/lumora/internal/api/handlers"
	"github.com/lumora-ai/lumora/internal/api/middleware"
)

type RouterConfig struct {
	DocumentHandler *handlers.DocumentHandler
	ChatHandler     *handlers.ChatHandler
	MaxBodyBytes    int64
	Health          HealthInfo
}

// HealthInfo describes the model backend reported by the health endpoint.
type HealthInfo struct {
	Provider        string `json:"provider,omitempty"`
	EmbeddingModel  string `json:"embedding_model,omitempty"`
	GenerationModel string `json:"generation_model,omitempty"`
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	maxBodyBytes := cfg.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = 12 * 1024 * 1024
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]any{
			"status": "ok",
			"models": cfg.Health,
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireUser)

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", cfg.DocumentHandler.Upload)
			r.Get("/", cfg.DocumentHandler.List)
			r.Get("/stats", cfg.DocumentHandler.Stats)
			r.Get("/{documentID}", cfg.DocumentHandler.Get)
			r.Delete("/{documentID}", cfg.DocumentHandler.Delete)
			r.Post("/{documentID}/reprocess", cfg.DocumentHandler.Reprocess)
		})

		r.Route("/chat", func(r chi.Router) {
			r.Post("/", cfg.ChatHandler.Ask)
			r.Get("/history", cfg.ChatHandler.History)
			r.Delete("/history", cfg.ChatHandler.ClearHistory)
		})
	})

	return r
}
