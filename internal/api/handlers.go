/**
 * @description
 * This file contains the HTTP handlers for the payment-service's API
 * endpoints. Handlers are responsible for parsing incoming requests, calling
 * the application service, and mapping its typed failures onto HTTP statuses.
 * Clients always receive a `{success, ...}` envelope; error text never carries
 * stack traces or credential material.
 *
 * @dependencies
 * - encoding/json, errors, io, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction for webhook routes.
 * - internal/app, internal/domain, internal/gateway, internal/store.
 */

package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fundedlabs/payment-service/internal/app"
	"github.com/fundedlabs/payment-service/internal/domain"
	"github.com/fundedlabs/payment-service/internal/gateway"
	"github.com/fundedlabs/payment-service/internal/store"
)

// PaymentHandlers holds the application service that handlers will use.
type PaymentHandlers struct {
	service *app.Service
}

// NewPaymentHandlers creates a new instance of PaymentHandlers.
func NewPaymentHandlers(service *app.Service) *PaymentHandlers {
	return &PaymentHandlers{service: service}
}

// CreateOrderHandler handles POST /payments/create-order.
func (h *PaymentHandlers) CreateOrderHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	var userID *string
	if uid, ok := GetAuthenticatedUserID(r.Context()); ok {
		userID = &uid
	}

	resp, err := h.service.CreateOrder(r.Context(), userID, req)
	if err != nil {
		h.writeCreateOrderError(w, req, err)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *PaymentHandlers) writeCreateOrderError(w http.ResponseWriter, req domain.CreateOrderRequest, err error) {
	var validationErr *app.ValidationError
	if errors.As(err, &validationErr) {
		h.writeError(w, http.StatusBadRequest, validationErr.Error())
		return
	}

	var unknownGateway *app.UnknownGatewayError
	if errors.As(err, &unknownGateway) {
		h.writeError(w, http.StatusBadRequest, unknownGateway.Error())
		return
	}

	if errors.Is(err, store.ErrDuplicateOrder) {
		h.writeError(w, http.StatusConflict, "An order with this orderId already exists")
		return
	}

	if errors.Is(err, gateway.ErrMissingCredentials) {
		// Configuration fault: diagnose in logs, keep the response generic.
		log.Printf("level=error component=api endpoint=create_order gateway=%s order_id=%s msg=\"gateway credentials missing\"", req.Gateway, req.OrderID)
		h.writeError(w, http.StatusInternalServerError, "Payment gateway is not configured")
		return
	}

	// Provider rejections and network failures both surface their message so
	// the checkout UI can show the provider's own diagnostic.
	log.Printf("level=error component=api endpoint=create_order gateway=%s order_id=%s outcome=failed err=%v", req.Gateway, req.OrderID, err)
	h.writeError(w, http.StatusInternalServerError, err.Error())
}

// ListGatewaysHandler handles GET /payments/gateways.
func (h *PaymentHandlers) ListGatewaysHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"gateways": h.service.ListGateways(),
	})
}

// OrderStatusHandler handles GET /payments/order-status?orderId=...; the
// checkout UI polls it while waiting for the provider webhook.
func (h *PaymentHandlers) OrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("orderId")
	if orderID == "" {
		h.writeError(w, http.StatusBadRequest, "orderId query parameter is required")
		return
	}

	order, err := h.service.OrderStatus(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			h.writeError(w, http.StatusNotFound, "Order not found")
			return
		}
		log.Printf("level=error component=api endpoint=order_status order_id=%s err=%v", orderID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"orderId": order.OrderID,
		"status":  order.Status,
		"gateway": order.Gateway,
	})
}

// WebhookHandler handles POST /webhooks/{provider}. The raw body bytes are
// passed through untouched: both signature schemes are computed over the bytes
// as received, and any re-serialization would break them.
func (h *PaymentHandlers) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Cannot read request body")
		return
	}

	if err := h.service.ProcessWebhook(r.Context(), provider, r.Header, body); err != nil {
		var unknownGateway *app.UnknownGatewayError
		switch {
		case errors.As(err, &unknownGateway):
			h.writeError(w, http.StatusNotFound, unknownGateway.Error())
		case errors.Is(err, app.ErrInvalidSignature):
			h.writeError(w, http.StatusUnauthorized, "Invalid signature")
		default:
			log.Printf("level=error component=api endpoint=webhook gateway=%s outcome=failed err=%v", provider, err)
			h.writeError(w, http.StatusInternalServerError, "Webhook processing failed")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// writeJSON is a helper for writing JSON responses.
func (h *PaymentHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *PaymentHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]interface{}{"success": false, "error": message})
}
