package app

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/fundedlabs/payment-service/internal/domain"
	"github.com/fundedlabs/payment-service/internal/gateway"
	"github.com/fundedlabs/payment-service/pkg/rabbitmq"
)

func TestProcessWebhookRejectsInvalidSignatureWithoutTransition(t *testing.T) {
	repo := &repoStub{settleResult: true}
	adapter := &adapterStub{name: "stubpay", verifyResult: false}
	svc := newTestService(repo, adapter, &publisherStub{})

	err := svc.ProcessWebhook(context.Background(), "stubpay", http.Header{}, []byte(`{}`))
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if len(repo.settled) != 0 {
		t.Fatal("a rejected signature must never cause a status transition")
	}
}

func TestProcessWebhookUnknownProvider(t *testing.T) {
	repo := &repoStub{}
	adapter := &adapterStub{name: "stubpay"}
	svc := newTestService(repo, adapter, &publisherStub{})

	err := svc.ProcessWebhook(context.Background(), "doesnotexist", http.Header{}, []byte(`{}`))

	var unknownErr *UnknownGatewayError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("expected UnknownGatewayError, got %v", err)
	}
}

func TestProcessWebhookSuccessTransitionPublishesEvent(t *testing.T) {
	repo := &repoStub{
		settleResult: true,
		existing: &domain.PaymentOrder{
			OrderID:  "ord-1",
			Currency: "USD",
			Amount:   250,
			Status:   domain.OrderStatusPending,
		},
	}
	adapter := &adapterStub{
		name:         "stubpay",
		verifyResult: true,
		parseResult: gateway.WebhookData{
			OrderID:   "ord-1",
			PaymentID: "pay-1",
			Status:    domain.OrderStatusSuccess,
			Amount:    250,
		},
	}
	producer := &publisherStub{}
	svc := newTestService(repo, adapter, producer)

	if err := svc.ProcessWebhook(context.Background(), "stubpay", http.Header{}, []byte(`{}`)); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	if len(repo.settled) != 1 {
		t.Fatalf("expected one settle call, got %d", len(repo.settled))
	}
	call := repo.settled[0]
	if call.orderID != "ord-1" || call.paymentID != "pay-1" || call.status != domain.OrderStatusSuccess {
		t.Fatalf("unexpected settle call: %+v", call)
	}

	if len(producer.events) != 1 || producer.events[0].routingKey != rabbitmq.RoutingKeyOrderSucceeded {
		t.Fatalf("expected order succeeded event, got %+v", producer.events)
	}
	event, ok := producer.events[0].body.(rabbitmq.OrderEvent)
	if !ok {
		t.Fatalf("unexpected event payload %T", producer.events[0].body)
	}
	if event.Currency != "USD" {
		t.Fatalf("expected the ledger currency on the event, got %q", event.Currency)
	}
}

func TestProcessWebhookDuplicateDeliveryIsNoOp(t *testing.T) {
	repo := &repoStub{settleResult: true}
	adapter := &adapterStub{
		name:         "stubpay",
		verifyResult: true,
		parseResult: gateway.WebhookData{
			OrderID:   "ord-1",
			PaymentID: "pay-1",
			Status:    domain.OrderStatusSuccess,
		},
	}
	producer := &publisherStub{}
	svc := newTestService(repo, adapter, producer)

	if err := svc.ProcessWebhook(context.Background(), "stubpay", http.Header{}, []byte(`{}`)); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := svc.ProcessWebhook(context.Background(), "stubpay", http.Header{}, []byte(`{}`)); err != nil {
		t.Fatalf("second delivery must be acknowledged, got %v", err)
	}

	// The dedup cache absorbs the replay: one settle, one event.
	if len(repo.settled) != 1 {
		t.Fatalf("expected one settle call across duplicate deliveries, got %d", len(repo.settled))
	}
	if len(producer.events) != 1 {
		t.Fatalf("expected one published event across duplicate deliveries, got %d", len(producer.events))
	}
}

func TestProcessWebhookRetryAfterSettleErrorReachesRepository(t *testing.T) {
	repo := &repoStub{settleResult: true, settleErr: errors.New("connection reset by peer")}
	adapter := &adapterStub{
		name:         "stubpay",
		verifyResult: true,
		parseResult: gateway.WebhookData{
			OrderID:   "ord-1",
			PaymentID: "pay-1",
			Status:    domain.OrderStatusSuccess,
		},
	}
	producer := &publisherStub{}
	svc := newTestService(repo, adapter, producer)

	if err := svc.ProcessWebhook(context.Background(), "stubpay", http.Header{}, []byte(`{}`)); err == nil {
		t.Fatal("expected the failed settle to surface so the provider retries")
	}

	// The transient fault clears; the provider redelivers. The delivery must
	// reach the repository again, not be absorbed as a duplicate.
	repo.settleErr = nil
	if err := svc.ProcessWebhook(context.Background(), "stubpay", http.Header{}, []byte(`{}`)); err != nil {
		t.Fatalf("expected the retry to succeed, got %v", err)
	}

	if len(repo.settled) != 2 {
		t.Fatalf("expected the retry to call settle again, got %d call(s)", len(repo.settled))
	}
	if len(producer.events) != 1 || producer.events[0].routingKey != rabbitmq.RoutingKeyOrderSucceeded {
		t.Fatalf("expected exactly one succeeded event from the retry, got %+v", producer.events)
	}
}

func TestProcessWebhookAlreadyTerminalOrderIsNoOp(t *testing.T) {
	// SettlePaymentOrder reports no row transitioned (already success).
	repo := &repoStub{settleResult: false}
	adapter := &adapterStub{
		name:         "stubpay",
		verifyResult: true,
		parseResult: gateway.WebhookData{
			OrderID: "ord-1",
			Status:  domain.OrderStatusFailed,
		},
	}
	producer := &publisherStub{}
	svc := newTestService(repo, adapter, producer)

	if err := svc.ProcessWebhook(context.Background(), "stubpay", http.Header{}, []byte(`{}`)); err != nil {
		t.Fatalf("expected ack for no-op transition, got %v", err)
	}
	if len(producer.events) != 0 {
		t.Fatalf("expected no event when nothing transitioned, got %+v", producer.events)
	}
}

func TestProcessWebhookInterimStatusDoesNotSettle(t *testing.T) {
	repo := &repoStub{settleResult: true}
	adapter := &adapterStub{
		name:         "stubpay",
		verifyResult: true,
		parseResult: gateway.WebhookData{
			OrderID: "ord-1",
			Status:  domain.OrderStatusPending,
		},
	}
	svc := newTestService(repo, adapter, &publisherStub{})

	if err := svc.ProcessWebhook(context.Background(), "stubpay", http.Header{}, []byte(`{}`)); err != nil {
		t.Fatalf("expected interim webhook acknowledged, got %v", err)
	}
	if len(repo.settled) != 0 {
		t.Fatal("expected no settle call for an interim status")
	}
}

func TestProcessWebhookMissingOrderReference(t *testing.T) {
	repo := &repoStub{}
	adapter := &adapterStub{
		name:         "stubpay",
		verifyResult: true,
		parseResult:  gateway.WebhookData{Status: domain.OrderStatusSuccess},
	}
	svc := newTestService(repo, adapter, &publisherStub{})

	if err := svc.ProcessWebhook(context.Background(), "stubpay", http.Header{}, []byte(`{}`)); err == nil {
		t.Fatal("expected an error for a webhook with no order reference")
	}
}

func TestMemoryWebhookDedup(t *testing.T) {
	dedup := NewMemoryWebhookDedup()

	seen, err := dedup.Seen(context.Background(), "k1", 0)
	if err != nil || seen {
		t.Fatalf("expected first sighting to be new, got seen=%t err=%v", seen, err)
	}
	// TTL of 0 expires immediately, so the key is new again.
	seen, err = dedup.Seen(context.Background(), "k1", 0)
	if err != nil || seen {
		t.Fatalf("expected expired key to be new, got seen=%t err=%v", seen, err)
	}
}
