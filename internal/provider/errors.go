// Package provider holds the failure taxonomy shared by every upstream feed
// client and the source adapters that wrap them.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net"

	"github.com/checkthebay/checkthebay/internal/provider/resilience"
)

// Failure classes for upstream calls.
var (
	// ErrUpstreamUnavailable covers non-2xx responses, 5xx, timeouts and an
	// open circuit breaker.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrMalformedResponse is returned when a payload does not match the
	// expected schema.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrNotConfigured is returned when a feed needs a credential that was
	// not supplied. Adapters route it to an offline fallback.
	ErrNotConfigured = errors.New("not configured")

	// ErrUnreachable covers DNS and connect failures.
	ErrUnreachable = errors.New("unreachable")
)

// Classify maps an error from a feed client onto one of the failure classes.
// It returns nil for a nil error.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	for _, class := range []error{ErrNotConfigured, ErrMalformedResponse, ErrUnreachable, ErrUpstreamUnavailable} {
		if errors.Is(err, class) {
			return class
		}
	}

	var (
		dnsErr    *net.DNSError
		opErr     *net.OpError
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		serverErr *resilience.ServerError
		statusErr *resilience.StatusError
	)

	switch {
	case errors.As(err, &dnsErr):
		return ErrUnreachable
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return ErrUnreachable
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return ErrMalformedResponse
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, resilience.ErrCircuitOpen),
		errors.As(err, &serverErr),
		errors.As(err, &statusErr):
		return ErrUpstreamUnavailable
	default:
		return ErrUpstreamUnavailable
	}
}

// Describe renders err as a human-readable message prefixed by its class,
// for example "upstream unavailable: unexpected status code: 503".
func Describe(err error) string {
	if err == nil {
		return ""
	}
	class := Classify(err)
	if errors.Is(err, class) {
		return err.Error()
	}
	return class.Error() + ": " + err.Error()
}
