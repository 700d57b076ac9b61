/**
 * @description
 * This package defines the payment-gateway abstraction: the Adapter contract
 * every provider integration implements, the typed failure values adapters
 * return across their boundary, and the configuration capability they consume.
 *
 * Each provider has its own request-signing scheme, webhook-signature
 * canonicalization rule, and status vocabulary; adapters own all of that and
 * expose one uniform surface to the rest of the service.
 *
 * @dependencies
 * - context, errors, fmt, net, net/http: Standard Go libraries.
 * - internal/domain: For the GatewayConfig value object and status vocabulary.
 */
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/fundedlabs/payment-service/internal/domain"
)

// ErrMissingCredentials is returned when an adapter cannot load a usable
// credential bundle from any configuration source. The credential values
// themselves never appear in error text or logs.
var ErrMissingCredentials = errors.New("gateway credentials not configured")

// CreateOrderParams carries everything an adapter needs to open an order with
// its provider. Amount is in major units of Currency; any unit or currency
// conversion the provider requires is the adapter's job.
type CreateOrderParams struct {
	OrderID       string
	Amount        float64
	Currency      string
	CustomerEmail string
	CustomerName  string
	Metadata      map[string]string
}

// CreateOrderResult is the uniform success envelope for order creation.
type CreateOrderResult struct {
	GatewayOrderID string
	PaymentURL     string
}

// WebhookData is the provider-agnostic view of a webhook payload. Status is
// always one of the domain order statuses; adapters normalize their own
// vocabulary and never emit anything else.
type WebhookData struct {
	OrderID       string
	PaymentID     string
	Status        string
	Amount        float64
	PaymentMethod string
	Metadata      map[string]string
}

// Adapter is the contract every payment provider integration implements.
//
// CreateOrder performs exactly one outbound HTTP call and converts every
// failure mode (missing credentials, network error, non-2xx, provider business
// error) into a typed error; it never panics across this boundary.
//
// VerifyWebhook recomputes the provider's expected signature from the raw body
// using the provider's exact canonicalization rule and compares it against the
// signature carried in the headers or the body itself. It returns false, never
// an error, for missing signatures, mismatches, or any computation failure.
//
// ParseWebhookData is a pure function over the body bytes; it performs no I/O
// and always yields a WebhookData with a valid tri-state status.
type Adapter interface {
	Name() string
	CreateOrder(ctx context.Context, params CreateOrderParams) (*CreateOrderResult, error)
	VerifyWebhook(headers http.Header, body []byte) bool
	ParseWebhookData(body []byte) WebhookData
}

// ConfigProvider supplies the credential bundle for a gateway at call time.
// Adapters fetch fresh configuration per call rather than caching it, so
// credential rotation in the config store takes effect without a restart.
type ConfigProvider interface {
	GatewayConfig(ctx context.Context, gateway string) (*domain.GatewayConfig, error)
}

// ConfigProviderFunc adapts an ordinary function to the ConfigProvider interface.
type ConfigProviderFunc func(ctx context.Context, gateway string) (*domain.GatewayConfig, error)

func (f ConfigProviderFunc) GatewayConfig(ctx context.Context, gateway string) (*domain.GatewayConfig, error) {
	return f(ctx, gateway)
}

// FallbackConfigProvider tries each source in order and returns the first
// usable bundle. The usual wiring is config-store first, process environment
// second.
type FallbackConfigProvider struct {
	sources []ConfigProvider
}

// NewFallbackConfigProvider builds a provider chain. Nil sources are skipped.
func NewFallbackConfigProvider(sources ...ConfigProvider) *FallbackConfigProvider {
	chain := make([]ConfigProvider, 0, len(sources))
	for _, s := range sources {
		if s != nil {
			chain = append(chain, s)
		}
	}
	return &FallbackConfigProvider{sources: chain}
}

func (p *FallbackConfigProvider) GatewayConfig(ctx context.Context, gateway string) (*domain.GatewayConfig, error) {
	for _, source := range p.sources {
		cfg, err := source.GatewayConfig(ctx, gateway)
		if err != nil || cfg == nil {
			continue
		}
		if cfg.KeySecret != "" || cfg.KeyID != "" || cfg.MerchantID != "" {
			return cfg, nil
		}
	}
	return nil, ErrMissingCredentials
}

// ProviderError is a business-level rejection from the provider: an auth
// failure, a declined order, or any non-success envelope code. The provider's
// own diagnostic message is preserved verbatim so it can be relayed to the
// caller without loss.
type ProviderError struct {
	Gateway string
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s rejected order (code %s): %s", e.Gateway, e.Code, e.Message)
	}
	return fmt.Sprintf("%s rejected order: %s", e.Gateway, e.Message)
}

// NetworkError marks transport-level failures (timeout, connection reset, DNS)
// so operators can tell "provider said no" from "provider unreachable". A
// timeout is surfaced with its own prefix because it is retryable by the caller.
type NetworkError struct {
	Gateway string
	Op      string
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Timeout() {
		return fmt.Sprintf("%s timed out during %s: %v", e.Gateway, e.Op, e.Err)
	}
	return fmt.Sprintf("%s unreachable during %s: %v", e.Gateway, e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Timeout reports whether the underlying failure was a deadline expiry.
func (e *NetworkError) Timeout() bool {
	var netErr net.Error
	if errors.As(e.Err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(e.Err, context.DeadlineExceeded)
}
