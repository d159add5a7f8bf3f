package calendar

import (
	"context"
	"time"

	"github.com/lexadvise/consult-bookings/internal/availability"
)

// EventInput describes the calendar event created for a confirmed
// booking.
type EventInput struct {
	StartTime   time.Time
	EndTime     time.Time
	Timezone    string
	Summary     string
	Description string
}

// Provider is the external calendar collaborator. Callers must treat
// BusyPeriods failures as degradable: availability stays visible even
// when the upstream calendar is down.
type Provider interface {
	// Configured reports whether the provider has credentials. An
	// unconfigured provider degrades reads and fails event writes.
	Configured() bool

	// BusyPeriods returns the calendar's busy intervals in [from, to].
	BusyPeriods(ctx context.Context, from, to time.Time) ([]availability.Interval, error)

	// InsertEvent creates an event and returns its provider-side id.
	InsertEvent(ctx context.Context, ev EventInput) (string, error)
}
