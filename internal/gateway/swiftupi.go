/**
 * @description
 * Adapter for SwiftUPI, the INR/UPI collection gateway. SwiftUPI prices
 * everything in INR; USD orders are converted with a fixed, configurable rate
 * rather than a live FX lookup (see usd_inr_rate on the gateway config).
 *
 * Signing rule, shared by order creation and webhooks: drop the `sign` field
 * and every null/empty-valued field, sort the remaining field names
 * lexicographically, concatenate the *values* in that order, prepend the API
 * secret, MD5, lowercase hex. The signature travels inside the body as `sign`.
 *
 * @dependencies
 * - bytes, crypto/hmac, crypto/md5, encoding/hex, encoding/json, fmt, io, log,
 *   math, net/http, sort, strconv, strings, time: Standard Go libraries.
 * - internal/domain: Order status vocabulary.
 */
package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fundedlabs/payment-service/internal/domain"
)

// SwiftUPIAdapter implements the Adapter contract for SwiftUPI.
type SwiftUPIAdapter struct {
	config     ConfigProvider
	urls       CallbackURLs
	httpClient *http.Client
}

// NewSwiftUPIAdapter creates the SwiftUPI adapter.
func NewSwiftUPIAdapter(config ConfigProvider, urls CallbackURLs) *SwiftUPIAdapter {
	return &SwiftUPIAdapter{
		config: config,
		urls:   urls,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (a *SwiftUPIAdapter) Name() string { return GatewaySwiftUPI }

type swiftupiEnvelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		OrderNo string `json:"order_no"`
		PayURL  string `json:"pay_url"`
	} `json:"data"`
}

// CreateOrder opens a UPI collection order. A USD amount is converted to INR
// with the configured fixed rate before signing; the provider only accepts INR.
func (a *SwiftUPIAdapter) CreateOrder(ctx context.Context, params CreateOrderParams) (*CreateOrderResult, error) {
	cfg, err := a.config.GatewayConfig(ctx, GatewaySwiftUPI)
	if err != nil {
		return nil, err
	}
	if cfg == nil || cfg.MerchantID == "" || cfg.KeySecret == "" {
		log.Printf("level=error component=gateway gateway=%s msg=\"api credentials missing\"", GatewaySwiftUPI)
		return nil, ErrMissingCredentials
	}

	amount := params.Amount
	if !strings.EqualFold(params.Currency, "INR") {
		rate := cfg.USDToINRRate
		if rate <= 0 {
			rate = defaultUSDToINRRate
		}
		amount = math.Round(params.Amount*rate*100) / 100
	}

	fields := map[string]interface{}{
		"mch_id":       cfg.MerchantID,
		"mch_order_no": params.OrderID,
		"amount":       fmt.Sprintf("%.2f", amount),
		"currency":     "INR",
		"payer_email":  params.CustomerEmail,
		"payer_name":   params.CustomerName,
		"notify_url":   a.urls.Backend + "/webhooks/" + GatewaySwiftUPI,
		"return_url":   a.urls.Frontend + "/checkout/success?order_id=" + params.OrderID,
	}
	fields["sign"] = signConcatMD5(cfg.KeySecret, fields)

	body, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal swiftupi order request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/gateway/v2/order/create", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create swiftupi order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Gateway: GatewaySwiftUPI, Op: "create order", Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Gateway: GatewaySwiftUPI, Op: "read order response", Err: err}
	}

	var envelope swiftupiEnvelope
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &ProviderError{Gateway: GatewaySwiftUPI, Message: fmt.Sprintf("unexpected response (status %d)", resp.StatusCode)}
		}
		return nil, fmt.Errorf("failed to decode swiftupi response: %w", err)
	}

	if envelope.Code != 0 {
		log.Printf("level=warn component=gateway gateway=%s op=create_order status=%d code=%d msg=%q", GatewaySwiftUPI, resp.StatusCode, envelope.Code, envelope.Message)
		return nil, &ProviderError{Gateway: GatewaySwiftUPI, Code: strconv.Itoa(envelope.Code), Message: envelope.Message}
	}

	return &CreateOrderResult{
		GatewayOrderID: envelope.Data.OrderNo,
		PaymentURL:     envelope.Data.PayURL,
	}, nil
}

// VerifyWebhook recomputes the concatenation signature over the body fields
// and compares it against the embedded `sign` field. A missing API secret
// fails closed.
func (a *SwiftUPIAdapter) VerifyWebhook(_ http.Header, body []byte) bool {
	cfg, err := a.config.GatewayConfig(context.Background(), GatewaySwiftUPI)
	if err != nil || cfg == nil || cfg.WebhookSecret == "" {
		log.Printf("level=error component=gateway gateway=%s msg=\"webhook secret not configured; rejecting webhook\"", GatewaySwiftUPI)
		return false
	}

	payload := map[string]interface{}{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}

	signature, _ := payload["sign"].(string)
	signature = strings.ToLower(strings.TrimSpace(signature))
	if signature == "" {
		log.Printf("level=warn component=gateway gateway=%s msg=\"webhook missing sign field\"", GatewaySwiftUPI)
		return false
	}

	expected := signConcatMD5(cfg.WebhookSecret, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ParseWebhookData normalizes a SwiftUPI callback. SwiftUPI only posts
// terminal callbacks, so anything that is not an explicit success maps to
// failed; there is no interim state to preserve.
func (a *SwiftUPIAdapter) ParseWebhookData(body []byte) WebhookData {
	payload := map[string]interface{}{}
	_ = json.Unmarshal(body, &payload)

	status := domain.OrderStatusFailed
	switch strings.ToLower(stringField(payload, "status", "trade_status")) {
	case "1", "success", "paid":
		status = domain.OrderStatusSuccess
	}

	return WebhookData{
		OrderID:       stringField(payload, "mch_order_no"),
		PaymentID:     stringField(payload, "order_no"),
		Status:        status,
		Amount:        floatField(payload, "amount"),
		PaymentMethod: "upi",
		Metadata:      map[string]string{"utr": stringField(payload, "utr")},
	}
}

// signConcatMD5 implements the SwiftUPI canonicalization: exclude `sign` and
// every null/empty field, sort the remaining keys, concatenate values in key
// order, prepend the secret, MD5, lowercase hex.
func signConcatMD5(secret string, fields map[string]interface{}) string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		if key == "sign" {
			continue
		}
		if signValue(fields[key]) == "" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(secret)
	for _, key := range keys {
		sb.WriteString(signValue(fields[key]))
	}

	sum := md5.Sum([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// signValue stringifies one field for concatenation. Nil and empty strings
// yield "" and are excluded by the caller.
func signValue(v interface{}) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	case json.Number:
		return value.String()
	default:
		return fmt.Sprint(value)
	}
}
