package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tipo-sto/kbase/internal/api"
	"github.com/tipo-sto/kbase/internal/api/handlers"
	"github.com/tipo-sto/kbase/internal/api/middleware"
	"github.com/tipo-sto/kbase/internal/logger"
)

type RouterConfig struct {
	KnowledgeBaseHandler *handlers.KnowledgeBaseHandler
	// AuthValidator guards /knowledge-base when set.
	AuthValidator middleware.AuthValidator
	Logger        *logger.Logger
	MaxBodyBytes  int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = handlers.DefaultMaxUploadBytes + 1<<20
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Sentry)
	r.Use(middleware.AccessLog(log))
	r.Use(middleware.MaxBodyBytes(maxBody))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/knowledge-base", func(r chi.Router) {
		if cfg.AuthValidator != nil {
			r.Use(middleware.BearerAuth(cfg.AuthValidator))
		}

		h := cfg.KnowledgeBaseHandler
		r.Get("/documents", h.List)
		r.Post("/documents", h.Upload)
		r.Get("/documents/{id}", h.Get)
		r.Delete("/documents/{id}", h.Delete)
		r.Get("/documents/{id}/original", h.Original)
		r.Post("/search", h.Search)
		r.Get("/stats", h.Stats)
	})

	return r
}
