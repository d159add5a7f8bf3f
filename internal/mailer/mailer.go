// Package mailer sends transactional email for the booking lifecycle.
package mailer

import (
	"context"
	"time"
)

// Confirmation is everything the confirmation email needs. Times are
// UTC; the template renders them in the client's timezone.
type Confirmation struct {
	BookingID        string
	ClientName       string
	ClientEmail      string
	ClientTimezone   string
	ConsultationName string
	StartTime        time.Time
	EndTime          time.Time
}

type Service interface {
	SendBookingConfirmation(ctx context.Context, c Confirmation) error
}
