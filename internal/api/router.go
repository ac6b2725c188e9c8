/**
 * @description
 * This file sets up the HTTP router for the ATS transfer service. It defines
 * the public ATS endpoints, the carrier webhook and the internal reassignment
 * route, and applies the shared middleware stack.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: router and standard middleware.
 * - github.com/go-chi/cors: CORS for the browser front ends.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const requestTimeout = 60 * time.Second

// NewRouter creates a new Chi router and registers the service routes.
func NewRouter(h *Handlers, webhook *WebhookHandler, internalAPIKey string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Idempotency-Key"},
		ExposedHeaders: []string{"Location"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/ats/v1", func(r chi.Router) {
		r.Post("/transfers", h.SubmitTransferHandler)
		r.Get("/transfers", h.ListTransfersHandler)
		r.Get("/transfers/{id}", h.GetTransferHandler)
		r.Post("/transfers/{id}/release", h.ReleaseTransferHandler)

		r.Post("/status", h.IngestStatusHandler)
		r.Get("/status/{fein}", h.ListStatusesHandler)

		r.Get("/contracts/{fein}", h.ListContractsHandler)
		r.Get("/agents/{npn}", h.GetAgentHandler)
	})

	r.Method(http.MethodPost, "/hooks/ats-status", webhook)

	r.Group(func(r chi.Router) {
		r.Use(ServiceTokenMiddleware(internalAPIKey))
		r.Post("/internal/contracts/reassign", h.ReassignContractsHandler)
	})

	return r
}
