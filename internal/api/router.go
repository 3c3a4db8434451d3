/**
 * @description
 * This file sets up the HTTP router for the gateway-service using the
 * go-chi/chi router. Only panic recovery sits in front of the ingestion
 * path; per-request logging middleware would dominate the handler's own
 * cost under load.
 */
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new Chi router and registers the gateway-service routes.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Gateway service is healthy"))
	})

	r.Post("/payments", h.handleSubmitPayment)
	r.Get("/payments-summary", h.handleGetSummary)
	r.Post("/purge-payments", h.handlePurgePayments)

	return r
}
