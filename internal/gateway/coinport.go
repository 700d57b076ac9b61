/**
 * @description
 * Adapter for Coinport, the crypto-settlement gateway. Order creation is an
 * authenticated JSON POST (HTTP Basic over key id/secret); success and failure
 * share one envelope distinguished by a string business code. Webhooks are
 * signed with HMAC-SHA256 over the raw body, hex-encoded in the
 * X-Coinport-Signature header.
 *
 * @dependencies
 * - bytes, crypto/hmac, crypto/sha256, encoding/hex, encoding/json, fmt, io,
 *   log, net/http, strings, time: Standard Go libraries.
 * - internal/domain: Order status vocabulary.
 */
package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/fundedlabs/payment-service/internal/domain"
)

const coinportSuccessCode = "00000"

// CoinportAdapter implements the Adapter contract for Coinport.
type CoinportAdapter struct {
	config     ConfigProvider
	urls       CallbackURLs
	httpClient *http.Client
}

// NewCoinportAdapter creates the Coinport adapter. The 30s client timeout
// bounds a hung provider so the intake request fails fast instead of pinning
// a connection.
func NewCoinportAdapter(config ConfigProvider, urls CallbackURLs) *CoinportAdapter {
	return &CoinportAdapter{
		config: config,
		urls:   urls,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (a *CoinportAdapter) Name() string { return GatewayCoinport }

type coinportOrderRequest struct {
	MerchantOrderID string            `json:"merchant_order_id"`
	Amount          string            `json:"amount"`
	Currency        string            `json:"currency"`
	PayerEmail      string            `json:"payer_email"`
	PayerName       string            `json:"payer_name"`
	SuccessURL      string            `json:"success_url"`
	CancelURL       string            `json:"cancel_url"`
	NotifyURL       string            `json:"notify_url"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

type coinportEnvelope struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		OrderID    string `json:"order_id"`
		PaymentURL string `json:"payment_url"`
	} `json:"data"`
}

// CreateOrder opens a crypto settlement order with Coinport.
func (a *CoinportAdapter) CreateOrder(ctx context.Context, params CreateOrderParams) (*CreateOrderResult, error) {
	cfg, err := a.config.GatewayConfig(ctx, GatewayCoinport)
	if err != nil {
		return nil, err
	}
	if cfg == nil || cfg.KeyID == "" || cfg.KeySecret == "" {
		log.Printf("level=error component=gateway gateway=%s msg=\"api credentials missing\"", GatewayCoinport)
		return nil, ErrMissingCredentials
	}

	reqPayload := coinportOrderRequest{
		MerchantOrderID: params.OrderID,
		Amount:          fmt.Sprintf("%.2f", params.Amount),
		Currency:        params.Currency,
		PayerEmail:      params.CustomerEmail,
		PayerName:       params.CustomerName,
		SuccessURL:      a.urls.Frontend + "/checkout/success?order_id=" + params.OrderID,
		CancelURL:       a.urls.Frontend + "/checkout/cancel?order_id=" + params.OrderID,
		NotifyURL:       a.urls.Backend + "/webhooks/" + GatewayCoinport,
		Metadata:        params.Metadata,
	}

	body, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal coinport order request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/api/v1/orders", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create coinport order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(cfg.KeyID, cfg.KeySecret)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Gateway: GatewayCoinport, Op: "create order", Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Gateway: GatewayCoinport, Op: "read order response", Err: err}
	}

	var envelope coinportEnvelope
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &ProviderError{Gateway: GatewayCoinport, Message: fmt.Sprintf("unexpected response (status %d)", resp.StatusCode)}
		}
		return nil, fmt.Errorf("failed to decode coinport response: %w", err)
	}

	if envelope.Code != coinportSuccessCode {
		log.Printf("level=warn component=gateway gateway=%s op=create_order status=%d code=%s msg=%q", GatewayCoinport, resp.StatusCode, envelope.Code, envelope.Msg)
		return nil, &ProviderError{Gateway: GatewayCoinport, Code: envelope.Code, Message: envelope.Msg}
	}

	return &CreateOrderResult{
		GatewayOrderID: envelope.Data.OrderID,
		PaymentURL:     envelope.Data.PaymentURL,
	}, nil
}

// VerifyWebhook checks the HMAC-SHA256 signature over the raw body against the
// X-Coinport-Signature header. A missing webhook secret is a configuration
// error and fails verification; Coinport always signs its callbacks.
func (a *CoinportAdapter) VerifyWebhook(headers http.Header, body []byte) bool {
	cfg, err := a.config.GatewayConfig(context.Background(), GatewayCoinport)
	if err != nil || cfg == nil || cfg.WebhookSecret == "" {
		log.Printf("level=error component=gateway gateway=%s msg=\"webhook secret not configured; rejecting webhook\"", GatewayCoinport)
		return false
	}

	signature := strings.ToLower(strings.TrimSpace(headers.Get("X-Coinport-Signature")))
	if signature == "" {
		log.Printf("level=warn component=gateway gateway=%s msg=\"webhook missing signature header\"", GatewayCoinport)
		return false
	}

	mac := hmac.New(sha256.New, []byte(cfg.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// ParseWebhookData normalizes a Coinport callback. Unrecognized statuses map
// to pending: Coinport posts interim events ("confirming") and an unknown code
// must never be read as success.
func (a *CoinportAdapter) ParseWebhookData(body []byte) WebhookData {
	payload := map[string]interface{}{}
	_ = json.Unmarshal(body, &payload)

	var status string
	switch strings.ToLower(stringField(payload, "status")) {
	case "paid", "completed":
		status = domain.OrderStatusSuccess
	case "failed", "expired", "cancelled":
		status = domain.OrderStatusFailed
	default:
		status = domain.OrderStatusPending
	}

	return WebhookData{
		OrderID:       stringField(payload, "merchant_order_id"),
		PaymentID:     stringField(payload, "order_id"),
		Status:        status,
		Amount:        floatField(payload, "amount"),
		PaymentMethod: "crypto",
		Metadata:      map[string]string{"pay_currency": stringField(payload, "pay_currency")},
	}
}
