package domain

import "time"

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCompleted BookingStatus = "COMPLETED"
	BookingCancelled BookingStatus = "CANCELLED"
)

func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch BookingStatus(s) {
	case BookingPending, BookingConfirmed, BookingCompleted, BookingCancelled:
		return BookingStatus(s), true
	default:
		return "", false
	}
}

// ReservationHoldTTL is how long a PENDING booking blocks its start
// time from other reservations. Configurable at service construction;
// this is the default.
const ReservationHoldTTL = 15 * time.Minute

type Booking struct {
	ID                 string        `json:"id"`
	ClientID           string        `json:"clientId"`
	ConsultationTypeID string        `json:"consultationId"`
	StartTime          time.Time     `json:"startTime"`
	EndTime            time.Time     `json:"endTime"`
	Status             BookingStatus `json:"status"`
	IntakeNotes        string        `json:"intakeNotes,omitempty"`
	CalendarEventID    *string       `json:"calendarEventId,omitempty"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

// HoldExpiresAt is when this booking's reservation hold lapses. Only
// meaningful while the booking is PENDING.
func (b *Booking) HoldExpiresAt(ttl time.Duration) time.Time {
	return b.CreatedAt.Add(ttl)
}

// HoldExpired reports whether a PENDING booking has outlived its hold
// and no longer blocks its start time. Expiry is a read-time property;
// the row itself is reclaimed lazily or by the sweep.
func (b *Booking) HoldExpired(now time.Time, ttl time.Duration) bool {
	return b.Status == BookingPending && now.After(b.HoldExpiresAt(ttl))
}

// IsTerminal reports whether no further transitions are allowed.
func (b *Booking) IsTerminal() bool {
	return b.Status == BookingCompleted || b.Status == BookingCancelled
}

// Blocks reports whether this booking denies the slot at its start
// time to new reservations.
func (b *Booking) Blocks(now time.Time, ttl time.Duration) bool {
	switch b.Status {
	case BookingConfirmed:
		return true
	case BookingPending:
		return !b.HoldExpired(now, ttl)
	default:
		return false
	}
}

type BookingRequest struct {
	ConsultationID string         `json:"consultationId"`
	StartTime      time.Time      `json:"startTime"`
	Client         ClientInput    `json:"client"`
	IntakeNotes    string         `json:"intakeNotes,omitempty"`
	PaymentGateway PaymentGateway `json:"paymentGateway,omitempty"`
}

// BookingDetail is the booking joined with its collaborators, as
// returned by read endpoints.
type BookingDetail struct {
	Booking
	Client           *Client           `json:"client,omitempty"`
	ConsultationType *ConsultationType `json:"consultationType,omitempty"`
	Payment          *Payment          `json:"payment,omitempty"`
}

// CreatedBooking is the creation response: the booking plus the
// computed hold deadline the client must pay within.
type CreatedBooking struct {
	Booking
	ReservationExpiresAt time.Time `json:"reservationExpiresAt"`
}

// BookingPatch is the general update operation: reschedule and/or a
// status change. Rescheduling re-validates the reservation guard.
type BookingPatch struct {
	StartTime *time.Time     `json:"startTime,omitempty"`
	Status    *BookingStatus `json:"status,omitempty"`
}

// SlotCheck answers a reservation probe: free, or held until a known
// deadline.
type SlotCheck struct {
	Available     bool       `json:"available"`
	ReservedUntil *time.Time `json:"reservedUntil,omitempty"`
}
