package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the booking/payment core. Handlers map these to
// HTTP statuses; services wrap them with context via %w.
var (
	// ErrSlotTaken: the requested start time is blocked by an active
	// booking (client should re-poll availability).
	ErrSlotTaken = errors.New("time slot is no longer available")

	// ErrNotFound: referenced booking, payment or consultation does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidSignature: payment confirmation signature mismatch.
	// Hard rejection, no state mutation.
	ErrInvalidSignature = errors.New("invalid payment signature")

	// ErrGatewayNotConfigured: missing gateway credentials. Fatal to
	// the request, never silently downgraded.
	ErrGatewayNotConfigured = errors.New("payment gateway is not configured")

	// ErrUpstreamUnavailable: calendar or payment provider is
	// unreachable.
	ErrUpstreamUnavailable = errors.New("upstream provider unavailable")

	// ErrTerminalState: the booking has reached COMPLETED or
	// CANCELLED and cannot transition further.
	ErrTerminalState = errors.New("booking is in a terminal state")
)

// ValidationError rejects malformed input before any write, carrying
// field-level detail for the client.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
