/**
 * @description
 * Adapter for Bankline, the generic bank-transfer gateway. Orders are created
 * as payment links over HTTP Basic auth with minor-unit integer amounts.
 * Webhooks are signed with HMAC-SHA256 over the raw body, hex-encoded in the
 * X-Bankline-Signature header.
 *
 * Known weak spot, preserved deliberately: when no webhook secret is
 * configured this adapter logs a loud warning and lets the webhook through.
 * Several Bankline merchant tiers ship without webhook signing enabled and the
 * business accepts unverified callbacks from them. Flip requireWebhookSecret
 * to fail closed once every tier has signing.
 *
 * @dependencies
 * - bytes, crypto/hmac, crypto/sha256, encoding/hex, encoding/json, fmt, io,
 *   log, math, net/http, strings, time: Standard Go libraries.
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
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/fundedlabs/payment-service/internal/domain"
)

// requireWebhookSecret controls whether Bankline webhooks are rejected when no
// secret is configured. False preserves the permissive reference behavior.
const requireWebhookSecret = false

// BanklineAdapter implements the Adapter contract for Bankline.
type BanklineAdapter struct {
	config     ConfigProvider
	urls       CallbackURLs
	httpClient *http.Client
}

// NewBanklineAdapter creates the Bankline adapter.
func NewBanklineAdapter(config ConfigProvider, urls CallbackURLs) *BanklineAdapter {
	return &BanklineAdapter{
		config: config,
		urls:   urls,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (a *BanklineAdapter) Name() string { return GatewayBankline }

type banklineLinkRequest struct {
	Amount      int64             `json:"amount"` // minor units
	Currency    string            `json:"currency"`
	ReferenceID string            `json:"reference_id"`
	Customer    banklineCustomer  `json:"customer"`
	RedirectURL string            `json:"redirect_url"`
	WebhookURL  string            `json:"webhook_url"`
	Notes       map[string]string `json:"notes,omitempty"`
}

type banklineCustomer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type banklineLinkResponse struct {
	ID       string `json:"id"`
	ShortURL string `json:"short_url"`
	Status   string `json:"status"`
	Error    struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder creates a Bankline payment link for the order.
func (a *BanklineAdapter) CreateOrder(ctx context.Context, params CreateOrderParams) (*CreateOrderResult, error) {
	cfg, err := a.config.GatewayConfig(ctx, GatewayBankline)
	if err != nil {
		return nil, err
	}
	if cfg == nil || cfg.KeyID == "" || cfg.KeySecret == "" {
		log.Printf("level=error component=gateway gateway=%s msg=\"api credentials missing\"", GatewayBankline)
		return nil, ErrMissingCredentials
	}

	reqPayload := banklineLinkRequest{
		Amount:      int64(math.Round(params.Amount * 100)),
		Currency:    params.Currency,
		ReferenceID: params.OrderID,
		Customer: banklineCustomer{
			Name:  params.CustomerName,
			Email: params.CustomerEmail,
		},
		RedirectURL: a.urls.Frontend + "/checkout/success?order_id=" + params.OrderID,
		WebhookURL:  a.urls.Backend + "/webhooks/" + GatewayBankline,
		Notes:       params.Metadata,
	}

	body, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bankline link request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/v1/payment-links", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create bankline link request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(cfg.KeyID, cfg.KeySecret)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Gateway: GatewayBankline, Op: "create payment link", Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Gateway: GatewayBankline, Op: "read link response", Err: err}
	}

	var linkResp banklineLinkResponse
	if err := json.Unmarshal(bodyBytes, &linkResp); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &ProviderError{Gateway: GatewayBankline, Message: fmt.Sprintf("unexpected response (status %d)", resp.StatusCode)}
		}
		return nil, fmt.Errorf("failed to decode bankline response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("level=warn component=gateway gateway=%s op=create_order status=%d code=%s msg=%q", GatewayBankline, resp.StatusCode, linkResp.Error.Code, linkResp.Error.Description)
		return nil, &ProviderError{Gateway: GatewayBankline, Code: linkResp.Error.Code, Message: linkResp.Error.Description}
	}

	return &CreateOrderResult{
		GatewayOrderID: linkResp.ID,
		PaymentURL:     linkResp.ShortURL,
	}, nil
}

// VerifyWebhook checks the HMAC-SHA256 signature over the raw body against the
// X-Bankline-Signature header. See the package note on the permissive
// missing-secret default.
func (a *BanklineAdapter) VerifyWebhook(headers http.Header, body []byte) bool {
	cfg, err := a.config.GatewayConfig(context.Background(), GatewayBankline)
	if err != nil || cfg == nil || cfg.WebhookSecret == "" {
		if requireWebhookSecret {
			log.Printf("level=error component=gateway gateway=%s msg=\"webhook secret not configured; rejecting webhook\"", GatewayBankline)
			return false
		}
		log.Printf("level=warn component=gateway gateway=%s msg=\"webhook secret not configured; accepting UNVERIFIED webhook\"", GatewayBankline)
		return true
	}

	signature := strings.ToLower(strings.TrimSpace(headers.Get("X-Bankline-Signature")))
	if signature == "" {
		log.Printf("level=warn component=gateway gateway=%s msg=\"webhook missing signature header\"", GatewayBankline)
		return false
	}

	mac := hmac.New(sha256.New, []byte(cfg.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// ParseWebhookData normalizes a Bankline callback. Bankline posts interim
// events (link viewed, payment authorized), so unrecognized statuses map to
// pending.
func (a *BanklineAdapter) ParseWebhookData(body []byte) WebhookData {
	payload := map[string]interface{}{}
	_ = json.Unmarshal(body, &payload)

	var status string
	switch strings.ToLower(stringField(payload, "status")) {
	case "captured", "paid":
		status = domain.OrderStatusSuccess
	case "failed":
		status = domain.OrderStatusFailed
	default:
		status = domain.OrderStatusPending
	}

	return WebhookData{
		OrderID:       stringField(payload, "reference_id"),
		PaymentID:     stringField(payload, "payment_id", "id"),
		Status:        status,
		Amount:        floatField(payload, "amount") / 100, // minor units on the wire
		PaymentMethod: stringField(payload, "method"),
	}
}
