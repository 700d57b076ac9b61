package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fundedlabs/payment-service/internal/app"
	"github.com/fundedlabs/payment-service/internal/domain"
	"github.com/fundedlabs/payment-service/internal/gateway"
	"github.com/fundedlabs/payment-service/internal/store"
)

type repoStub struct {
	created *domain.PaymentOrder
	settled int
}

func (r *repoStub) CreatePaymentOrder(ctx context.Context, order *domain.PaymentOrder) error {
	r.created = order
	return nil
}

func (r *repoStub) FindPaymentOrderByOrderID(ctx context.Context, orderID string) (*domain.PaymentOrder, error) {
	return nil, store.ErrOrderNotFound
}

func (r *repoStub) SettlePaymentOrder(ctx context.Context, orderID, paymentID, status string) (bool, error) {
	r.settled++
	return true, nil
}

func (r *repoStub) GetActiveGatewayConfig(ctx context.Context, gw string) (*domain.GatewayConfig, error) {
	return nil, store.ErrGatewayConfigNotFound
}

type adapterStub struct {
	name         string
	createCalled bool
	verifyResult bool
	parseResult  gateway.WebhookData
}

func (a *adapterStub) Name() string { return a.name }

func (a *adapterStub) CreateOrder(ctx context.Context, params gateway.CreateOrderParams) (*gateway.CreateOrderResult, error) {
	a.createCalled = true
	return &gateway.CreateOrderResult{GatewayOrderID: "g1", PaymentURL: "https://pay.example/g1"}, nil
}

func (a *adapterStub) VerifyWebhook(headers http.Header, body []byte) bool { return a.verifyResult }

func (a *adapterStub) ParseWebhookData(body []byte) gateway.WebhookData { return a.parseResult }

func newTestRouter(adapter *adapterStub) (http.Handler, *repoStub) {
	repo := &repoStub{}
	svc := app.NewService(repo, gateway.NewRegistry(adapter), nil, nil, "", 0)
	return PaymentRoutes(NewPaymentHandlers(svc), "test-jwt-secret"), repo
}

func TestCreateOrderHandlerMissingFieldNamed(t *testing.T) {
	adapter := &adapterStub{name: "stubpay"}
	router, _ := newTestRouter(adapter)

	body := `{"gateway":"stubpay","orderId":"ord-1","amount":100,"currency":"USD","customerName":"Jo"}`
	req := httptest.NewRequest(http.MethodPost, "/payments/create-order", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["success"] != false {
		t.Fatalf("expected success=false, got %v", resp)
	}
	if msg, _ := resp["error"].(string); !strings.Contains(msg, "customerEmail") {
		t.Fatalf("expected the missing field named, got %q", msg)
	}
	if adapter.createCalled {
		t.Fatal("expected no provider call for an invalid request")
	}
}

func TestCreateOrderHandlerUnknownGatewayListsValidOnes(t *testing.T) {
	adapter := &adapterStub{name: "stubpay"}
	router, _ := newTestRouter(adapter)

	body := `{"gateway":"doesnotexist","orderId":"ord-1","amount":100,"currency":"USD","customerEmail":"a@b.c","customerName":"Jo"}`
	req := httptest.NewRequest(http.MethodPost, "/payments/create-order", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if msg, _ := resp["error"].(string); !strings.Contains(msg, "stubpay") {
		t.Fatalf("expected registered gateways enumerated, got %q", msg)
	}
}

func TestCreateOrderHandlerSuccess(t *testing.T) {
	adapter := &adapterStub{name: "stubpay"}
	router, repo := newTestRouter(adapter)

	body := `{"gateway":"StubPay","orderId":"ord-1","amount":100,"currency":"USD","customerEmail":"a@b.c","customerName":"Jo"}`
	req := httptest.NewRequest(http.MethodPost, "/payments/create-order", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp domain.CreateOrderResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Success || resp.GatewayOrderID != "g1" || resp.PaymentURL != "https://pay.example/g1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if repo.created == nil {
		t.Fatal("expected order persisted")
	}
	if repo.created.CreatedBy != nil {
		t.Fatalf("expected guest checkout to leave created_by nil, got %v", *repo.created.CreatedBy)
	}
}

func TestListGatewaysHandler(t *testing.T) {
	adapter := &adapterStub{name: "stubpay"}
	router, _ := newTestRouter(adapter)

	req := httptest.NewRequest(http.MethodGet, "/payments/gateways", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Success  bool     `json:"success"`
		Gateways []string `json:"gateways"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Success || len(resp.Gateways) != 1 || resp.Gateways[0] != "stubpay" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestWebhookHandlerInvalidSignature(t *testing.T) {
	adapter := &adapterStub{name: "stubpay", verifyResult: false}
	router, repo := newTestRouter(adapter)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stubpay", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if repo.settled != 0 {
		t.Fatal("a rejected webhook must not transition any order")
	}
}

func TestWebhookHandlerUnknownProvider(t *testing.T) {
	adapter := &adapterStub{name: "stubpay"}
	router, _ := newTestRouter(adapter)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/doesnotexist", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestWebhookHandlerSuccess(t *testing.T) {
	adapter := &adapterStub{
		name:         "stubpay",
		verifyResult: true,
		parseResult: gateway.WebhookData{
			OrderID:   "ord-1",
			PaymentID: "pay-1",
			Status:    domain.OrderStatusSuccess,
		},
	}
	router, repo := newTestRouter(adapter)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stubpay", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if repo.settled != 1 {
		t.Fatalf("expected one settle call, got %d", repo.settled)
	}
}
