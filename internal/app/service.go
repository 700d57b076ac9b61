/**
 * @description
 * This file contains the core application service for the payment-service:
 * order intake (validate → resolve adapter → create the remote order → resolve
 * account type → persist) and webhook processing (verify → parse → dedup →
 * conditional terminal transition → event publish).
 *
 * Two deliberate asymmetries to be aware of:
 * - The remote order is the source of truth. A local persistence failure after
 *   a successful provider call does not fail the customer-facing request; it
 *   publishes an orphaned-order reconciliation event instead.
 * - Terminal transitions go through a conditional update guarded on the
 *   current status, so at-least-once webhook delivery can never double-credit
 *   or downgrade a settled order.
 *
 * @dependencies
 * - context, errors, fmt, log, net/http, time: Standard Go libraries.
 * - github.com/google/uuid: Row and event identifiers.
 * - internal/domain, internal/gateway, internal/store, pkg/rabbitmq.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/fundedlabs/payment-service/internal/domain"
	"github.com/fundedlabs/payment-service/internal/gateway"
	"github.com/fundedlabs/payment-service/internal/store"
	"github.com/fundedlabs/payment-service/pkg/rabbitmq"
)

// Service implements order intake and webhook processing.
type Service struct {
	repo          store.Repository
	registry      *gateway.Registry
	producer      rabbitmq.Publisher
	dedup         WebhookDedup
	eventExchange string
	dedupTTL      time.Duration
}

// NewService creates the application service with its dependencies.
func NewService(repo store.Repository, registry *gateway.Registry, producer rabbitmq.Publisher, dedup WebhookDedup, eventExchange string, dedupTTL time.Duration) *Service {
	if producer == nil {
		producer = &rabbitmq.EventProducerFallback{}
	}
	if dedup == nil {
		dedup = NewMemoryWebhookDedup()
	}
	if eventExchange == "" {
		eventExchange = "payments.events"
	}
	if dedupTTL <= 0 {
		dedupTTL = 24 * time.Hour
	}
	return &Service{
		repo:          repo,
		registry:      registry,
		producer:      producer,
		dedup:         dedup,
		eventExchange: eventExchange,
		dedupTTL:      dedupTTL,
	}
}

// ListGateways returns the registered gateway names.
func (s *Service) ListGateways() []string {
	return s.registry.Names()
}

// OrderStatus returns the current state of an order for checkout polling.
func (s *Service) OrderStatus(ctx context.Context, orderID string) (*domain.PaymentOrder, error) {
	return s.repo.FindPaymentOrderByOrderID(ctx, orderID)
}

// CreateOrder runs the full intake pass for one purchase request. userID is
// nil for guest checkout. The adapter's error is propagated verbatim so the
// provider's diagnostic reaches the caller.
func (s *Service) CreateOrder(ctx context.Context, userID *string, req domain.CreateOrderRequest) (*domain.CreateOrderResponse, error) {
	if err := validateCreateOrder(req); err != nil {
		return nil, err
	}

	adapter, ok := s.registry.Get(req.Gateway)
	if !ok {
		return nil, &UnknownGatewayError{Gateway: req.Gateway, Valid: s.registry.Names()}
	}

	// Reject a retried orderId before touching the provider: a duplicate call
	// would open a second remote order for the same purchase. The check is
	// best-effort; if the lookup itself fails we favor availability and let
	// the unique constraint catch the insert later.
	if existing, err := s.repo.FindPaymentOrderByOrderID(ctx, req.OrderID); err == nil && existing != nil {
		return nil, store.ErrDuplicateOrder
	} else if err != nil && !errors.Is(err, store.ErrOrderNotFound) {
		log.Printf("level=warn component=payments op=create_order order_id=%s msg=\"duplicate pre-check failed; continuing\" err=%v", req.OrderID, err)
	}

	result, err := adapter.CreateOrder(ctx, gateway.CreateOrderParams{
		OrderID:       req.OrderID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		CustomerEmail: req.CustomerEmail,
		CustomerName:  req.CustomerName,
		Metadata:      req.Metadata,
	})
	if err != nil {
		return nil, err
	}

	order := s.buildOrder(userID, req, result)
	if err := s.repo.CreatePaymentOrder(ctx, order); err != nil {
		// The remote order already exists; the customer must not be blocked
		// by a local bookkeeping fault. Emit the orphan for reconciliation.
		log.Printf("level=error component=payments op=create_order order_id=%s gateway=%s msg=\"ORPHANED ORDER: remote order created but local persist failed\" err=%v", req.OrderID, req.Gateway, err)
		if pubErr := s.producer.Publish(ctx, s.eventExchange, rabbitmq.RoutingKeyOrphanedOrder, rabbitmq.OrphanedOrderEvent{
			EventID:        uuid.New(),
			OrderID:        req.OrderID,
			GatewayOrderID: result.GatewayOrderID,
			Gateway:        adapter.Name(),
			Amount:         req.Amount,
			Currency:       req.Currency,
			Reason:         err.Error(),
			Timestamp:      time.Now().UTC(),
		}); pubErr != nil {
			log.Printf("level=error component=payments op=create_order order_id=%s msg=\"orphan event publish failed\" err=%v", req.OrderID, pubErr)
		}
	} else if pubErr := s.producer.Publish(ctx, s.eventExchange, rabbitmq.RoutingKeyOrderCreated, orderEvent(order, "")); pubErr != nil {
		log.Printf("level=warn component=payments op=create_order order_id=%s msg=\"order created event publish failed\" err=%v", req.OrderID, pubErr)
	}

	return &domain.CreateOrderResponse{
		Success:        true,
		GatewayOrderID: result.GatewayOrderID,
		PaymentURL:     result.PaymentURL,
	}, nil
}

// ProcessWebhook handles one provider callback: signature verification, payload
// normalization, dedup, and the conditional terminal transition. A rejected
// signature never touches order state.
func (s *Service) ProcessWebhook(ctx context.Context, provider string, headers http.Header, body []byte) error {
	adapter, ok := s.registry.Get(provider)
	if !ok {
		return &UnknownGatewayError{Gateway: provider, Valid: s.registry.Names()}
	}

	if !adapter.VerifyWebhook(headers, body) {
		log.Printf("level=warn component=payments op=webhook gateway=%s msg=\"signature verification failed\"", adapter.Name())
		return ErrInvalidSignature
	}

	data := adapter.ParseWebhookData(body)
	if data.OrderID == "" {
		return fmt.Errorf("%s webhook carried no order reference", adapter.Name())
	}

	if data.Status == domain.OrderStatusPending {
		// Interim event; nothing to transition. Acknowledge so the provider
		// stops retrying.
		log.Printf("level=info component=payments op=webhook gateway=%s order_id=%s msg=\"interim status; no transition\"", adapter.Name(), data.OrderID)
		return nil
	}

	dedupKey := fmt.Sprintf("%s:%s:%s:%s", adapter.Name(), data.OrderID, data.PaymentID, data.Status)
	if seen, err := s.dedup.Seen(ctx, dedupKey, s.dedupTTL); err != nil {
		log.Printf("level=warn component=payments op=webhook gateway=%s order_id=%s msg=\"dedup check failed; relying on status guard\" err=%v", adapter.Name(), data.OrderID, err)
	} else if seen {
		log.Printf("level=info component=payments op=webhook gateway=%s order_id=%s msg=\"duplicate delivery ignored\"", adapter.Name(), data.OrderID)
		return nil
	}

	transitioned, err := s.repo.SettlePaymentOrder(ctx, data.OrderID, data.PaymentID, data.Status)
	if err != nil {
		// Release the dedup key: this delivery was marked seen but never
		// reached the ledger, and the provider's retry must not be swallowed
		// as a duplicate. The status guard keeps the retry itself safe.
		if forgetErr := s.dedup.Forget(ctx, dedupKey); forgetErr != nil {
			log.Printf("level=warn component=payments op=webhook gateway=%s order_id=%s msg=\"dedup key release failed\" err=%v", adapter.Name(), data.OrderID, forgetErr)
		}
		return fmt.Errorf("failed to settle order %s: %w", data.OrderID, err)
	}
	if !transitioned {
		// Already terminal, or the order is unknown locally (possibly an
		// orphan awaiting reconciliation). Either way this delivery is a no-op.
		log.Printf("level=info component=payments op=webhook gateway=%s order_id=%s status=%s msg=\"no transition applied\"", adapter.Name(), data.OrderID, data.Status)
		return nil
	}

	routingKey := rabbitmq.RoutingKeyOrderFailed
	if data.Status == domain.OrderStatusSuccess {
		routingKey = rabbitmq.RoutingKeyOrderSucceeded
	}

	// The webhook payload carries the provider's amount but not the currency
	// the order was priced in; the ledger row has both.
	currency := ""
	amount := data.Amount
	if order, findErr := s.repo.FindPaymentOrderByOrderID(ctx, data.OrderID); findErr == nil {
		currency = order.Currency
		if amount == 0 {
			amount = order.Amount
		}
	} else {
		log.Printf("level=warn component=payments op=webhook gateway=%s order_id=%s msg=\"order lookup for event failed\" err=%v", adapter.Name(), data.OrderID, findErr)
	}

	if pubErr := s.producer.Publish(ctx, s.eventExchange, routingKey, rabbitmq.OrderEvent{
		EventID:   uuid.New(),
		OrderID:   data.OrderID,
		PaymentID: data.PaymentID,
		Gateway:   adapter.Name(),
		Status:    data.Status,
		Amount:    amount,
		Currency:  currency,
		Timestamp: time.Now().UTC(),
	}); pubErr != nil {
		log.Printf("level=warn component=payments op=webhook gateway=%s order_id=%s msg=\"event publish failed\" err=%v", adapter.Name(), data.OrderID, pubErr)
	}

	log.Printf("level=info component=payments op=webhook gateway=%s order_id=%s status=%s msg=\"order settled\"", adapter.Name(), data.OrderID, data.Status)
	return nil
}

// buildOrder assembles the pending order row: metadata bag merged with the
// customer identity, account type resolved from the metadata, never guessed.
func (s *Service) buildOrder(userID *string, req domain.CreateOrderRequest, result *gateway.CreateOrderResult) *domain.PaymentOrder {
	metadata := make(map[string]string, len(req.Metadata)+2)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	metadata["customer_name"] = req.CustomerName
	metadata["customer_email"] = req.CustomerEmail

	var paymentID *string
	if result.GatewayOrderID != "" {
		paymentID = &result.GatewayOrderID
	}

	var couponCode *string
	if coupon := req.Metadata["coupon_code"]; coupon != "" {
		couponCode = &coupon
	}

	return &domain.PaymentOrder{
		ID:            uuid.New(),
		OrderID:       req.OrderID,
		PaymentID:     paymentID,
		Gateway:       req.Gateway,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Status:        domain.OrderStatusPending,
		AccountTypeID: domain.ResolveAccountTypeFromMetadata(req.Metadata),
		AccountSize:   req.Metadata["account_size"],
		Platform:      req.Metadata["platform"],
		Model:         req.Metadata["model"],
		CouponCode:    couponCode,
		Metadata:      metadata,
		CreatedBy:     userID,
	}
}

func validateCreateOrder(req domain.CreateOrderRequest) error {
	var missing []string
	if req.Gateway == "" {
		missing = append(missing, "gateway")
	}
	if req.OrderID == "" {
		missing = append(missing, "orderId")
	}
	if req.Amount <= 0 {
		missing = append(missing, "amount")
	}
	if req.Currency == "" {
		missing = append(missing, "currency")
	}
	if req.CustomerEmail == "" {
		missing = append(missing, "customerEmail")
	}
	if req.CustomerName == "" {
		missing = append(missing, "customerName")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

func orderEvent(order *domain.PaymentOrder, paymentID string) rabbitmq.OrderEvent {
	if paymentID == "" && order.PaymentID != nil {
		paymentID = *order.PaymentID
	}
	return rabbitmq.OrderEvent{
		EventID:   uuid.New(),
		OrderID:   order.OrderID,
		PaymentID: paymentID,
		Gateway:   order.Gateway,
		Status:    order.Status,
		Amount:    order.Amount,
		Currency:  order.Currency,
		Timestamp: time.Now().UTC(),
	}
}
