// Package errors provides standardized error types for the ingestion domain.
// Transport and data-shape failures share one classification so callers can
// treat "this provider attempt failed" uniformly and fall back.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransport indicates a failed HTTP exchange with a vendor API.
	ErrTransport = errors.New("transport error")

	// ErrDataShape indicates a vendor payload missing an expected field.
	ErrDataShape = errors.New("unexpected vendor payload shape")

	// ErrBadSignature indicates an inbound webhook failed authentication.
	ErrBadSignature = errors.New("invalid webhook signature")

	// ErrMissingAPIKey indicates a credential-required vendor has no key.
	ErrMissingAPIKey = errors.New("provider api key not configured")

	// ErrPrecisionLoss indicates an amount conversion could not be done
	// exactly. Fatal to that single conversion only.
	ErrPrecisionLoss = errors.New("conversion would lose precision")

	// ErrPriceUnavailable indicates the oracle could not quote an asset.
	// Always non-fatal to balance persistence.
	ErrPriceUnavailable = errors.New("usd price unavailable")

	// ErrNoProviders indicates no provider in the catalog can serve a
	// network, terminal for that sync invocation.
	ErrNoProviders = errors.New("no usable providers for network")

	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound = errors.New("resource not found")
)

// TransportError describes a failed HTTP exchange with a vendor API.
// StatusCode is zero for network-level failures (timeout, connection refused).
type TransportError struct {
	Method     string
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is makes every TransportError match ErrTransport under errors.Is.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// EffectiveStatus maps the failure to a single HTTP status for reporting.
// Network-level failures carry no vendor status and surface uniformly as 502;
// the real cause stays reachable through Unwrap.
func (e *TransportError) EffectiveStatus() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}
	return http.StatusBadGateway
}

// NewTransportError wraps a failed HTTP exchange.
func NewTransportError(method, url string, statusCode int, err error) *TransportError {
	return &TransportError{Method: method, URL: url, StatusCode: statusCode, Err: err}
}

// DataShapeError records a vendor payload that did not match expectations,
// with enough context to diagnose vendor API drift.
func DataShapeError(vendor, field string) error {
	return fmt.Errorf("%w: %s missing or malformed %q", ErrDataShape, vendor, field)
}

// IsProviderFailure reports whether err should trigger provider fallback.
// Anything else (persistence failures, cancellation) is not vendor trouble
// and aborts the fallback sequence instead.
func IsProviderFailure(err error) bool {
	return errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrDataShape) ||
		errors.Is(err, ErrMissingAPIKey)
}
