package app

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/fundedlabs/payment-service/internal/domain"
	"github.com/fundedlabs/payment-service/internal/gateway"
	"github.com/fundedlabs/payment-service/internal/store"
	"github.com/fundedlabs/payment-service/pkg/rabbitmq"
)

type settleCall struct {
	orderID   string
	paymentID string
	status    string
}

type repoStub struct {
	existing     *domain.PaymentOrder
	findErr      error
	createErr    error
	created      *domain.PaymentOrder
	settleResult bool
	settleErr    error
	settled      []settleCall
}

func (r *repoStub) CreatePaymentOrder(ctx context.Context, order *domain.PaymentOrder) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.created = order
	return nil
}

func (r *repoStub) FindPaymentOrderByOrderID(ctx context.Context, orderID string) (*domain.PaymentOrder, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	if r.existing != nil {
		return r.existing, nil
	}
	return nil, store.ErrOrderNotFound
}

func (r *repoStub) SettlePaymentOrder(ctx context.Context, orderID, paymentID, status string) (bool, error) {
	r.settled = append(r.settled, settleCall{orderID: orderID, paymentID: paymentID, status: status})
	return r.settleResult, r.settleErr
}

func (r *repoStub) GetActiveGatewayConfig(ctx context.Context, gw string) (*domain.GatewayConfig, error) {
	return nil, store.ErrGatewayConfigNotFound
}

type adapterStub struct {
	name         string
	createResult *gateway.CreateOrderResult
	createErr    error
	createCalled bool
	verifyResult bool
	parseResult  gateway.WebhookData
}

func (a *adapterStub) Name() string { return a.name }

func (a *adapterStub) CreateOrder(ctx context.Context, params gateway.CreateOrderParams) (*gateway.CreateOrderResult, error) {
	a.createCalled = true
	if a.createErr != nil {
		return nil, a.createErr
	}
	return a.createResult, nil
}

func (a *adapterStub) VerifyWebhook(headers http.Header, body []byte) bool { return a.verifyResult }

func (a *adapterStub) ParseWebhookData(body []byte) gateway.WebhookData { return a.parseResult }

type publishedEvent struct {
	routingKey string
	body       interface{}
}

type publisherStub struct {
	events []publishedEvent
}

func (p *publisherStub) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.events = append(p.events, publishedEvent{routingKey: routingKey, body: body})
	return nil
}

func (p *publisherStub) Close() {}

func validRequest() domain.CreateOrderRequest {
	return domain.CreateOrderRequest{
		Gateway:       "stubpay",
		OrderID:       "ord-1",
		Amount:        250,
		Currency:      "USD",
		CustomerEmail: "trader@example.com",
		CustomerName:  "Jo Trader",
		Metadata:      map[string]string{"model": "prime", "type": "2-step", "platform": "mt5"},
	}
}

func newTestService(repo *repoStub, adapter *adapterStub, producer *publisherStub) *Service {
	return NewService(repo, gateway.NewRegistry(adapter), producer, NewMemoryWebhookDedup(), "payments.events", 0)
}

func TestCreateOrderMissingFieldsNamedAndNoProviderCall(t *testing.T) {
	repo := &repoStub{}
	adapter := &adapterStub{name: "stubpay", createResult: &gateway.CreateOrderResult{GatewayOrderID: "g1", PaymentURL: "u"}}
	svc := newTestService(repo, adapter, &publisherStub{})

	req := validRequest()
	req.CustomerEmail = ""

	_, err := svc.CreateOrder(context.Background(), nil, req)

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	found := false
	for _, field := range validationErr.Missing {
		if field == "customerEmail" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected customerEmail named in %v", validationErr.Missing)
	}
	if adapter.createCalled {
		t.Fatal("expected no provider call for an invalid request")
	}
}

func TestCreateOrderUnknownGatewayEnumeratesValidNames(t *testing.T) {
	repo := &repoStub{}
	adapter := &adapterStub{name: "stubpay"}
	svc := newTestService(repo, adapter, &publisherStub{})

	req := validRequest()
	req.Gateway = "doesnotexist"

	_, err := svc.CreateOrder(context.Background(), nil, req)

	var unknownErr *UnknownGatewayError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("expected UnknownGatewayError, got %v", err)
	}
	if len(unknownErr.Valid) != 1 || unknownErr.Valid[0] != "stubpay" {
		t.Fatalf("expected valid set [stubpay], got %v", unknownErr.Valid)
	}
}

func TestCreateOrderRejectsDuplicateOrderID(t *testing.T) {
	repo := &repoStub{existing: &domain.PaymentOrder{OrderID: "ord-1", Status: domain.OrderStatusPending}}
	adapter := &adapterStub{name: "stubpay", createResult: &gateway.CreateOrderResult{GatewayOrderID: "g1"}}
	svc := newTestService(repo, adapter, &publisherStub{})

	_, err := svc.CreateOrder(context.Background(), nil, validRequest())
	if !errors.Is(err, store.ErrDuplicateOrder) {
		t.Fatalf("expected ErrDuplicateOrder, got %v", err)
	}
	if adapter.createCalled {
		t.Fatal("expected no second remote order for a retried orderId")
	}
}

func TestCreateOrderPropagatesAdapterErrorVerbatim(t *testing.T) {
	provErr := &gateway.ProviderError{Gateway: "stubpay", Code: "00001", Message: "insufficient funds"}
	repo := &repoStub{}
	adapter := &adapterStub{name: "stubpay", createErr: provErr}
	svc := newTestService(repo, adapter, &publisherStub{})

	_, err := svc.CreateOrder(context.Background(), nil, validRequest())
	if !errors.Is(err, provErr) {
		t.Fatalf("expected the adapter error untouched, got %v", err)
	}
	if repo.created != nil {
		t.Fatal("expected no order persisted when the provider rejected it")
	}
}

func TestCreateOrderPersistsPendingOrderWithResolvedAccountType(t *testing.T) {
	repo := &repoStub{}
	adapter := &adapterStub{name: "stubpay", createResult: &gateway.CreateOrderResult{GatewayOrderID: "g1", PaymentURL: "https://pay"}}
	producer := &publisherStub{}
	svc := newTestService(repo, adapter, producer)

	userID := "user_42"
	resp, err := svc.CreateOrder(context.Background(), &userID, validRequest())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if !resp.Success || resp.GatewayOrderID != "g1" || resp.PaymentURL != "https://pay" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	order := repo.created
	if order == nil {
		t.Fatal("expected order persisted")
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected pending status, got %q", order.Status)
	}
	if order.AccountTypeID == nil || *order.AccountTypeID != 7 {
		t.Fatalf("expected account type 7 for (prime, 2-step), got %v", order.AccountTypeID)
	}
	if order.CreatedBy == nil || *order.CreatedBy != "user_42" {
		t.Fatalf("expected order attributed to user_42, got %v", order.CreatedBy)
	}
	if order.Metadata["customer_email"] != "trader@example.com" || order.Metadata["customer_name"] != "Jo Trader" {
		t.Fatalf("expected customer identity merged into metadata, got %v", order.Metadata)
	}

	if len(producer.events) != 1 || producer.events[0].routingKey != rabbitmq.RoutingKeyOrderCreated {
		t.Fatalf("expected order created event, got %+v", producer.events)
	}
}

func TestCreateOrderUnresolvableAccountTypeLeftNil(t *testing.T) {
	repo := &repoStub{}
	adapter := &adapterStub{name: "stubpay", createResult: &gateway.CreateOrderResult{GatewayOrderID: "g1"}}
	svc := newTestService(repo, adapter, &publisherStub{})

	req := validRequest()
	req.Metadata = map[string]string{"model": "lite", "type": "5-step"}

	if _, err := svc.CreateOrder(context.Background(), nil, req); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if repo.created.AccountTypeID != nil {
		t.Fatalf("expected nil account type for unknown combination, got %d", *repo.created.AccountTypeID)
	}
}

func TestCreateOrderPersistFailureStillSucceedsAndEmitsOrphan(t *testing.T) {
	repo := &repoStub{createErr: errors.New("connection refused")}
	adapter := &adapterStub{name: "stubpay", createResult: &gateway.CreateOrderResult{GatewayOrderID: "g1", PaymentURL: "https://pay"}}
	producer := &publisherStub{}
	svc := newTestService(repo, adapter, producer)

	resp, err := svc.CreateOrder(context.Background(), nil, validRequest())
	if err != nil {
		t.Fatalf("expected the customer-facing request to succeed, got %v", err)
	}
	if !resp.Success {
		t.Fatal("expected success despite persistence failure")
	}

	if len(producer.events) != 1 || producer.events[0].routingKey != rabbitmq.RoutingKeyOrphanedOrder {
		t.Fatalf("expected orphaned order reconciliation event, got %+v", producer.events)
	}
	orphan, ok := producer.events[0].body.(rabbitmq.OrphanedOrderEvent)
	if !ok {
		t.Fatalf("unexpected event payload %T", producer.events[0].body)
	}
	if orphan.OrderID != "ord-1" || orphan.GatewayOrderID != "g1" {
		t.Fatalf("unexpected orphan payload: %+v", orphan)
	}
}
