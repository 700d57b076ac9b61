/**
 * @description
 * Typed failures the application service reports to the API layer. Handlers
 * match on these with errors.As/Is to pick HTTP statuses; everything else
 * degrades to a generic 500 with the error text and no stack trace.
 */
package app

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSignature marks a webhook whose signature did not verify. It must
// never cause an order-status transition.
var ErrInvalidSignature = errors.New("webhook signature verification failed")

// ValidationError reports the request fields that were missing or empty.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Missing, ", "))
}

// UnknownGatewayError reports a request for an unregistered gateway, carrying
// the valid set so the caller sees what is actually supported.
type UnknownGatewayError struct {
	Gateway string
	Valid   []string
}

func (e *UnknownGatewayError) Error() string {
	return fmt.Sprintf("unsupported gateway %q; valid gateways: %s", e.Gateway, strings.Join(e.Valid, ", "))
}
