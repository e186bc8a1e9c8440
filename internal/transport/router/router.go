package router

import (
	"github.com/go-chi/chi/v5"
	"github.com/trunov/imagegate/internal/transport/handler"
)

func NewRouter(h *handler.Handler) chi.Router {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Post("/images", h.UploadImage)
	})

	// The derivative endpoint validates the segment count itself so that a
	// malformed path answers 400 rather than the router's 404.
	r.Get("/*", h.ServeDerivative)

	return r
}
