/**
 * @description
 * This file sets up the HTTP router for the payment-service. It defines the
 * API endpoints, associates them with their corresponding handlers, and
 * applies middleware. Webhook routes skip the optional-auth middleware:
 * providers authenticate with signatures, not bearer tokens.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// PaymentRoutes creates and returns the router for the payment service.
func PaymentRoutes(h *PaymentHandlers, jwtSecret string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	r.Route("/payments", func(r chi.Router) {
		r.Use(OptionalAuthMiddleware(jwtSecret))

		r.Post("/create-order", h.CreateOrderHandler)
		r.Get("/gateways", h.ListGatewaysHandler)
		r.Get("/order-status", h.OrderStatusHandler)
	})

	r.Post("/webhooks/{provider}", h.WebhookHandler)

	return r
}
