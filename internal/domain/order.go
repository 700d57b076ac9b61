/**
 * @description
 * This file defines the core domain models for the payment-service.
 * These structs represent the main entities and data transfer objects (DTOs)
 * used throughout the service's business logic, database interactions, and API layers.
 *
 * @notes
 * - `OrderID` is caller-generated and is the correlation key between the
 *   initial order-creation call and the later provider webhook.
 * - An order reaches exactly one terminal state (`success` or `failed`) and is
 *   never deleted; payment orders are the financial audit trail.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Payment order statuses. The vocabulary is deliberately tri-state: providers
// with richer vocabularies (expired, cancelled, disputed) are normalized down
// to these three by their adapters.
const (
	OrderStatusPending = "pending"
	OrderStatusSuccess = "success"
	OrderStatusFailed  = "failed"
)

// PaymentOrder is the central ledger record for one purchase attempt.
// This struct maps directly to the `payment_orders` table in the database.
type PaymentOrder struct {
	ID            uuid.UUID         `json:"id"`
	OrderID       string            `json:"order_id"`
	PaymentID     *string           `json:"payment_id,omitempty"` // provider-assigned, absent until the provider responds
	Gateway       string            `json:"gateway"`
	Amount        float64           `json:"amount"`
	Currency      string            `json:"currency"`
	Status        string            `json:"status"`
	AccountTypeID *int              `json:"account_type_id,omitempty"`
	AccountSize   string            `json:"account_size,omitempty"`
	Platform      string            `json:"platform,omitempty"`
	Model         string            `json:"model,omitempty"`
	CouponCode    *string           `json:"coupon_code,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedBy     *string           `json:"created_by,omitempty"` // nullable: guest checkout is permitted
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// CreateOrderRequest is the DTO for incoming order-creation API requests.
type CreateOrderRequest struct {
	Gateway       string            `json:"gateway"`
	OrderID       string            `json:"orderId"`
	Amount        float64           `json:"amount"`
	Currency      string            `json:"currency"`
	CustomerEmail string            `json:"customerEmail"`
	CustomerName  string            `json:"customerName"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// CreateOrderResponse is returned to the caller once the remote order exists.
type CreateOrderResponse struct {
	Success        bool   `json:"success"`
	GatewayOrderID string `json:"gatewayOrderId"`
	PaymentURL     string `json:"paymentUrl"`
}

// GatewayConfig is the per-provider credential bundle consumed by adapters.
// It is sourced from the `gateway_configs` table with environment-variable
// fallback; the core only reads it, never mutates it.
type GatewayConfig struct {
	Gateway       string  `json:"gateway"`
	KeyID         string  `json:"key_id"`
	KeySecret     string  `json:"key_secret"`
	WebhookSecret string  `json:"webhook_secret"`
	MerchantID    string  `json:"merchant_id,omitempty"`
	BaseURL       string  `json:"base_url"`
	Environment   string  `json:"environment,omitempty"`
	USDToINRRate  float64 `json:"usd_inr_rate,omitempty"` // fixed conversion rate; see swiftupi adapter
}
