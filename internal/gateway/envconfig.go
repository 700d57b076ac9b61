/**
 * @description
 * Environment-variable configuration source for gateway credentials. This is
 * the fallback behind the config-store source: it lets an environment run
 * without any rows in `gateway_configs`, and keeps local development working
 * with nothing but a .env file.
 *
 * @dependencies
 * - os, strconv: Standard Go libraries.
 * - internal/domain: For the GatewayConfig value object.
 */
package gateway

import (
	"context"
	"os"
	"strconv"

	"github.com/fundedlabs/payment-service/internal/domain"
)

// Gateway names as registered. Webhook routes, config rows, and env prefixes
// all key off these.
const (
	GatewayCoinport = "coinport"
	GatewaySwiftUPI = "swiftupi"
	GatewayBankline = "bankline"
)

// defaultUSDToINRRate is the fixed conversion rate applied when a swiftupi
// order is priced in USD. Deliberately a constant, not a live FX lookup; it
// can be overridden per environment via SWIFTUPI_USD_INR_RATE or the config
// store. A stale rate shifts the INR charge, so operations reviews it.
const defaultUSDToINRRate = 83.50

// CallbackURLs are the base URLs used to build the redirect and webhook links
// sent to providers at order creation.
type CallbackURLs struct {
	Frontend string
	Backend  string
}

// EnvConfigProvider reads per-provider credentials from process environment
// variables.
type EnvConfigProvider struct{}

// NewEnvConfigProvider returns the environment-backed configuration source.
func NewEnvConfigProvider() *EnvConfigProvider {
	return &EnvConfigProvider{}
}

func (p *EnvConfigProvider) GatewayConfig(_ context.Context, gateway string) (*domain.GatewayConfig, error) {
	switch gateway {
	case GatewayCoinport:
		return &domain.GatewayConfig{
			Gateway:       GatewayCoinport,
			KeyID:         os.Getenv("COINPORT_KEY_ID"),
			KeySecret:     os.Getenv("COINPORT_KEY_SECRET"),
			WebhookSecret: os.Getenv("COINPORT_WEBHOOK_SECRET"),
			BaseURL:       envOrDefault("COINPORT_API_BASE_URL", "https://api.coinport.io"),
			Environment:   os.Getenv("COINPORT_ENVIRONMENT"),
		}, nil
	case GatewaySwiftUPI:
		return &domain.GatewayConfig{
			Gateway:       GatewaySwiftUPI,
			MerchantID:    os.Getenv("SWIFTUPI_MERCHANT_ID"),
			KeySecret:     os.Getenv("SWIFTUPI_API_SECRET"),
			WebhookSecret: os.Getenv("SWIFTUPI_API_SECRET"),
			BaseURL:       envOrDefault("SWIFTUPI_API_BASE_URL", "https://pay.swiftupi.in"),
			USDToINRRate:  envFloatOrDefault("SWIFTUPI_USD_INR_RATE", defaultUSDToINRRate),
		}, nil
	case GatewayBankline:
		return &domain.GatewayConfig{
			Gateway:       GatewayBankline,
			KeyID:         os.Getenv("BANKLINE_KEY_ID"),
			KeySecret:     os.Getenv("BANKLINE_KEY_SECRET"),
			WebhookSecret: os.Getenv("BANKLINE_WEBHOOK_SECRET"),
			BaseURL:       envOrDefault("BANKLINE_API_BASE_URL", "https://api.bankline.co"),
		}, nil
	}
	return nil, ErrMissingCredentials
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloatOrDefault(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return fallback
}
