// Package notify runs the post-confirmation side effects: the
// attorney's calendar event and the client's confirmation email.
// Both run off the event bus so a slow or failing provider never
// blocks payment reconciliation.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lexadvise/consult-bookings/internal/calendar"
	"github.com/lexadvise/consult-bookings/internal/mailer"
	"github.com/lexadvise/consult-bookings/internal/repository"
	"github.com/lexadvise/consult-bookings/pkg/events"
	"github.com/lexadvise/consult-bookings/pkg/logger"
)

const queueGroup = "notify-workers"

type Worker struct {
	bus           events.Subscriber
	provider      calendar.Provider
	mail          mailer.Service
	bookings      repository.BookingRepository
	consultations repository.ConsultationRepository
	timeout       time.Duration
}

func NewWorker(
	bus events.Subscriber,
	provider calendar.Provider,
	mail mailer.Service,
	bookings repository.BookingRepository,
	consultations repository.ConsultationRepository,
) *Worker {
	return &Worker{
		bus:           bus,
		provider:      provider,
		mail:          mail,
		bookings:      bookings,
		consultations: consultations,
		timeout:       30 * time.Second,
	}
}

// Start subscribes to confirmation events. Handlers run on the bus's
// delivery goroutine; each message gets its own timeout context.
func (w *Worker) Start() error {
	return w.bus.QueueSubscribe(events.BookingConfirmed, queueGroup, w.handleConfirmed)
}

func (w *Worker) handleConfirmed(msg *events.Message) {
	var ev events.BookingConfirmedEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		logger.Error("notify: malformed confirmation event", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, logger.BookingIDKey, ev.BookingID)

	consultationName := "Consultation"
	if ct, err := w.consultations.GetByID(ctx, ev.ConsultationID); err != nil {
		logger.ErrorContext(ctx, "notify: loading consultation type", "error", err)
	} else if ct != nil {
		consultationName = ct.Name
	}

	// The two side effects fail independently: a calendar outage must
	// not cost the client their email, and vice versa.
	w.createCalendarEvent(ctx, ev, consultationName)
	w.sendConfirmationEmail(ctx, ev, consultationName)
}

func (w *Worker) createCalendarEvent(ctx context.Context, ev events.BookingConfirmedEvent, consultationName string) {
	if w.provider == nil || !w.provider.Configured() {
		logger.DebugContext(ctx, "notify: calendar provider not configured, skipping event")
		return
	}

	booking, err := w.bookings.GetByID(ctx, ev.BookingID)
	if err != nil {
		logger.ErrorContext(ctx, "notify: loading booking", "error", err)
		return
	}
	if booking == nil {
		logger.WarnContext(ctx, "notify: booking vanished before calendar event")
		return
	}
	if booking.CalendarEventID != nil {
		// Redelivered event; the calendar already has it.
		return
	}

	eventID, err := w.provider.InsertEvent(ctx, calendar.EventInput{
		StartTime:   ev.StartTime,
		EndTime:     ev.EndTime,
		Timezone:    ev.ClientTimezone,
		Summary:     consultationName + ": " + ev.ClientName,
		Description: "Booking " + ev.BookingID + "\nClient: " + ev.ClientName + " <" + ev.ClientEmail + ">",
	})
	if err != nil {
		logger.ErrorContext(ctx, "notify: calendar event creation failed", "error", err)
		return
	}

	if err := w.bookings.SetCalendarEventID(ctx, ev.BookingID, eventID); err != nil {
		logger.ErrorContext(ctx, "notify: storing calendar event id", "error", err, "event_id", eventID)
		return
	}
	logger.InfoContext(ctx, "notify: calendar event created", "event_id", eventID)
}

func (w *Worker) sendConfirmationEmail(ctx context.Context, ev events.BookingConfirmedEvent, consultationName string) {
	err := w.mail.SendBookingConfirmation(ctx, mailer.Confirmation{
		BookingID:        ev.BookingID,
		ClientName:       ev.ClientName,
		ClientEmail:      ev.ClientEmail,
		ClientTimezone:   ev.ClientTimezone,
		ConsultationName: consultationName,
		StartTime:        ev.StartTime,
		EndTime:          ev.EndTime,
	})
	if err != nil {
		logger.ErrorContext(ctx, "notify: confirmation email failed", "error", err)
		return
	}
	logger.InfoContext(ctx, "notify: confirmation email sent", "to", ev.ClientEmail)
}
