/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access the payment-service needs. The interface decouples the order-intake
 * and webhook-processing logic from the PostgreSQL implementation, which keeps
 * both testable with in-memory stubs.
 *
 * @dependencies
 * - context: Standard Go library.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"

	"github.com/fundedlabs/payment-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Payment order methods
	CreatePaymentOrder(ctx context.Context, order *domain.PaymentOrder) error
	FindPaymentOrderByOrderID(ctx context.Context, orderID string) (*domain.PaymentOrder, error)

	// SettlePaymentOrder moves an order from pending to a terminal status.
	// The update is conditional on the current status still being pending, so
	// duplicate webhook deliveries and concurrent deliveries for the same
	// order are both harmless. Returns whether a row actually transitioned.
	SettlePaymentOrder(ctx context.Context, orderID, paymentID, status string) (bool, error)

	// Gateway configuration methods
	GetActiveGatewayConfig(ctx context.Context, gateway string) (*domain.GatewayConfig, error)
}
