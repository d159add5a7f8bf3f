package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lexadvise/consult-bookings/internal/domain"
	"github.com/lexadvise/consult-bookings/internal/repository"
	"github.com/lexadvise/consult-bookings/pkg/events"
	"github.com/lexadvise/consult-bookings/pkg/logger"
)

// BookingService owns the reservation guard and the booking lifecycle.
type BookingService interface {
	Create(ctx context.Context, req *domain.BookingRequest) (*domain.CreatedBooking, error)
	CheckSlot(ctx context.Context, start time.Time) (*domain.SlotCheck, error)
	Get(ctx context.Context, id string) (*domain.BookingDetail, error)
	// Confirm transitions PENDING to CONFIRMED. Calling it on an
	// already confirmed or terminal booking is a no-op, which is what
	// makes replayed payment signals harmless.
	Confirm(ctx context.Context, id string) error
	Cancel(ctx context.Context, id, reason string) error
	Update(ctx context.Context, id string, patch domain.BookingPatch) (*domain.Booking, error)
	List(ctx context.Context, status *domain.BookingStatus, limit, offset int) ([]domain.Booking, error)
	// ExpireStaleHolds cancels every PENDING booking whose hold has
	// lapsed. Run periodically; the create path also reclaims lazily.
	ExpireStaleHolds(ctx context.Context) (int64, error)
}

type bookingService struct {
	bookings      repository.BookingRepository
	clients       repository.ClientRepository
	consultations repository.ConsultationRepository
	payments      repository.PaymentRepository
	bus           events.Publisher
	holdTTL       time.Duration
	now           func() time.Time
}

func NewBookingService(
	bookings repository.BookingRepository,
	clients repository.ClientRepository,
	consultations repository.ConsultationRepository,
	payments repository.PaymentRepository,
	bus events.Publisher,
	holdTTL time.Duration,
) BookingService {
	if holdTTL <= 0 {
		holdTTL = domain.ReservationHoldTTL
	}
	return &bookingService{
		bookings:      bookings,
		clients:       clients,
		consultations: consultations,
		payments:      payments,
		bus:           bus,
		holdTTL:       holdTTL,
		now:           time.Now,
	}
}

func (s *bookingService) validate(req *domain.BookingRequest, now time.Time) error {
	if req.ConsultationID == "" {
		return domain.NewValidationError("consultationId", "consultation type is required")
	}
	if req.StartTime.IsZero() {
		return domain.NewValidationError("startTime", "start time is required")
	}
	if !req.StartTime.After(now) {
		return domain.NewValidationError("startTime", "start time must be in the future")
	}
	if strings.TrimSpace(req.Client.Name) == "" {
		return domain.NewValidationError("client.name", "name is required")
	}
	email := strings.TrimSpace(req.Client.Email)
	if email == "" || !strings.Contains(email, "@") {
		return domain.NewValidationError("client.email", "a valid email is required")
	}
	if strings.TrimSpace(req.Client.Timezone) == "" {
		return domain.NewValidationError("client.timezone", "timezone is required")
	}
	if _, err := time.LoadLocation(req.Client.Timezone); err != nil {
		return domain.NewValidationError("client.timezone", "unknown timezone")
	}
	if req.PaymentGateway != "" {
		if _, ok := domain.ParsePaymentGateway(string(req.PaymentGateway)); !ok {
			return domain.NewValidationError("paymentGateway", "unknown payment gateway")
		}
	}
	return nil
}

// guardSlot enforces the reservation rule for a start time: a
// CONFIRMED booking or a live PENDING hold blocks it. An expired hold
// is reclaimed in place so the caller can proceed.
func (s *bookingService) guardSlot(ctx context.Context, start, now time.Time) error {
	existing, err := s.bookings.GetActiveByStartTime(ctx, start)
	if err != nil {
		return fmt.Errorf("checking slot: %w", err)
	}
	if existing == nil {
		return nil
	}
	if existing.Blocks(now, s.holdTTL) {
		return domain.ErrSlotTaken
	}

	reclaimed, err := s.bookings.CancelExpiredHold(ctx, existing.ID, now.Add(-s.holdTTL))
	if err != nil {
		return fmt.Errorf("reclaiming expired hold: %w", err)
	}
	if reclaimed {
		logger.InfoContext(ctx, "reclaimed expired reservation hold",
			"booking_id", existing.ID, "start_time", start)
	}
	return nil
}

func (s *bookingService) Create(ctx context.Context, req *domain.BookingRequest) (*domain.CreatedBooking, error) {
	now := s.now()
	if err := s.validate(req, now); err != nil {
		return nil, err
	}

	consultation, err := s.consultations.GetByID(ctx, req.ConsultationID)
	if err != nil {
		return nil, fmt.Errorf("loading consultation type: %w", err)
	}
	if consultation == nil {
		return nil, domain.NewValidationError("consultationId", "unknown consultation type")
	}

	start := req.StartTime.UTC()
	if err := s.guardSlot(ctx, start, now); err != nil {
		return nil, err
	}

	client, err := s.clients.UpsertByEmail(ctx, req.Client)
	if err != nil {
		return nil, fmt.Errorf("upserting client: %w", err)
	}

	end := start.Add(consultation.Duration())
	booking, err := s.bookings.Create(ctx, client.ID, consultation.ID, start, end, req.IntakeNotes)
	if err != nil {
		// A concurrent create for the same start time loses here on
		// the unique index, not on the read above.
		return nil, err
	}

	if req.PaymentGateway != "" {
		if _, err := s.payments.UpsertOrder(ctx, booking.ID, req.PaymentGateway, "", consultation.Amount, consultation.Currency); err != nil {
			return nil, fmt.Errorf("creating payment record: %w", err)
		}
	}

	s.publish(ctx, events.BookingCreated, events.BookingCreatedEvent{
		BookingID:      booking.ID,
		ConsultationID: consultation.ID,
		ClientEmail:    client.Email,
		ClientName:     client.Name,
		StartTime:      booking.StartTime,
		EndTime:        booking.EndTime,
		HoldExpiresAt:  booking.HoldExpiresAt(s.holdTTL),
		CreatedAt:      booking.CreatedAt,
	})

	logger.InfoContext(ctx, "booking created",
		"booking_id", booking.ID, "start_time", booking.StartTime, "client_id", client.ID)

	return &domain.CreatedBooking{
		Booking:              *booking,
		ReservationExpiresAt: booking.HoldExpiresAt(s.holdTTL),
	}, nil
}

func (s *bookingService) CheckSlot(ctx context.Context, start time.Time) (*domain.SlotCheck, error) {
	existing, err := s.bookings.GetActiveByStartTime(ctx, start.UTC())
	if err != nil {
		return nil, fmt.Errorf("checking slot: %w", err)
	}
	if existing == nil || !existing.Blocks(s.now(), s.holdTTL) {
		return &domain.SlotCheck{Available: true}, nil
	}

	check := &domain.SlotCheck{Available: false}
	if existing.Status == domain.BookingPending {
		until := existing.HoldExpiresAt(s.holdTTL)
		check.ReservedUntil = &until
	}
	return check, nil
}

func (s *bookingService) Get(ctx context.Context, id string) (*domain.BookingDetail, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading booking: %w", err)
	}
	if booking == nil {
		return nil, domain.ErrNotFound
	}

	detail := &domain.BookingDetail{Booking: *booking}

	if detail.Client, err = s.clients.GetByID(ctx, booking.ClientID); err != nil {
		return nil, fmt.Errorf("loading client: %w", err)
	}
	if detail.ConsultationType, err = s.consultations.GetByID(ctx, booking.ConsultationTypeID); err != nil {
		return nil, fmt.Errorf("loading consultation type: %w", err)
	}
	if detail.Payment, err = s.payments.GetByBookingID(ctx, booking.ID); err != nil {
		return nil, fmt.Errorf("loading payment: %w", err)
	}
	return detail, nil
}

func (s *bookingService) Confirm(ctx context.Context, id string) error {
	transitioned, err := s.bookings.UpdateStatus(ctx, id, domain.BookingPending, domain.BookingConfirmed)
	if err != nil {
		return fmt.Errorf("confirming booking: %w", err)
	}
	if !transitioned {
		booking, err := s.bookings.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("loading booking: %w", err)
		}
		if booking == nil {
			return domain.ErrNotFound
		}
		// Duplicate or late signal; nothing to redo.
		logger.InfoContext(ctx, "confirm skipped, booking not PENDING",
			"booking_id", id, "status", booking.Status)
		return nil
	}

	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("loading booking: %w", err)
	}
	client, err := s.clients.GetByID(ctx, booking.ClientID)
	if err != nil {
		return fmt.Errorf("loading client: %w", err)
	}

	s.publish(ctx, events.BookingConfirmed, events.BookingConfirmedEvent{
		BookingID:      booking.ID,
		ConsultationID: booking.ConsultationTypeID,
		ClientEmail:    client.Email,
		ClientName:     client.Name,
		ClientTimezone: client.Timezone,
		StartTime:      booking.StartTime,
		EndTime:        booking.EndTime,
		ConfirmedAt:    s.now(),
	})

	logger.InfoContext(ctx, "booking confirmed", "booking_id", booking.ID)
	return nil
}

func (s *bookingService) Cancel(ctx context.Context, id, reason string) error {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("loading booking: %w", err)
	}
	if booking == nil {
		return domain.ErrNotFound
	}

	switch booking.Status {
	case domain.BookingCancelled:
		return nil
	case domain.BookingCompleted:
		return domain.ErrTerminalState
	}

	transitioned, err := s.bookings.UpdateStatus(ctx, id, booking.Status, domain.BookingCancelled)
	if err != nil {
		return fmt.Errorf("cancelling booking: %w", err)
	}
	if !transitioned {
		// Lost a race with another transition; report the conflict.
		return domain.ErrTerminalState
	}

	client, err := s.clients.GetByID(ctx, booking.ClientID)
	if err != nil {
		return fmt.Errorf("loading client: %w", err)
	}

	s.publish(ctx, events.BookingCanceled, events.BookingCanceledEvent{
		BookingID:   booking.ID,
		ClientEmail: client.Email,
		Reason:      reason,
		CanceledAt:  s.now(),
	})

	logger.InfoContext(ctx, "booking cancelled", "booking_id", id, "reason", reason)
	return nil
}

func (s *bookingService) complete(ctx context.Context, id string) error {
	transitioned, err := s.bookings.UpdateStatus(ctx, id, domain.BookingConfirmed, domain.BookingCompleted)
	if err != nil {
		return fmt.Errorf("completing booking: %w", err)
	}
	if transitioned {
		logger.InfoContext(ctx, "booking completed", "booking_id", id)
		return nil
	}

	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("loading booking: %w", err)
	}
	if booking == nil {
		return domain.ErrNotFound
	}
	if booking.Status == domain.BookingCompleted {
		return nil
	}
	if booking.Status == domain.BookingCancelled {
		return domain.ErrTerminalState
	}
	return domain.NewValidationError("status", "only a CONFIRMED booking can be marked COMPLETED")
}

func (s *bookingService) Update(ctx context.Context, id string, patch domain.BookingPatch) (*domain.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading booking: %w", err)
	}
	if booking == nil {
		return nil, domain.ErrNotFound
	}

	if patch.StartTime != nil && !patch.StartTime.UTC().Equal(booking.StartTime) {
		if booking.IsTerminal() {
			return nil, domain.ErrTerminalState
		}
		now := s.now()
		start := patch.StartTime.UTC()
		if !start.After(now) {
			return nil, domain.NewValidationError("startTime", "start time must be in the future")
		}

		// A reschedule competes for the new slot like a fresh booking.
		if err := s.guardSlot(ctx, start, now); err != nil {
			return nil, err
		}

		consultation, err := s.consultations.GetByID(ctx, booking.ConsultationTypeID)
		if err != nil {
			return nil, fmt.Errorf("loading consultation type: %w", err)
		}
		if consultation == nil {
			return nil, domain.ErrNotFound
		}

		booking, err = s.bookings.Reschedule(ctx, id, start, start.Add(consultation.Duration()))
		if err != nil {
			return nil, err
		}
		if booking == nil {
			return nil, domain.ErrTerminalState
		}
		logger.InfoContext(ctx, "booking rescheduled", "booking_id", id, "start_time", start)
	}

	if patch.Status != nil && *patch.Status != booking.Status {
		switch *patch.Status {
		case domain.BookingCancelled:
			if err := s.Cancel(ctx, id, "updated by operator"); err != nil {
				return nil, err
			}
		case domain.BookingCompleted:
			if err := s.complete(ctx, id); err != nil {
				return nil, err
			}
		case domain.BookingConfirmed:
			if err := s.Confirm(ctx, id); err != nil {
				return nil, err
			}
		default:
			return nil, domain.NewValidationError("status", "cannot transition to "+string(*patch.Status))
		}

		booking, err = s.bookings.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading booking: %w", err)
		}
	}

	return booking, nil
}

func (s *bookingService) List(ctx context.Context, status *domain.BookingStatus, limit, offset int) ([]domain.Booking, error) {
	return s.bookings.List(ctx, status, limit, offset)
}

func (s *bookingService) ExpireStaleHolds(ctx context.Context) (int64, error) {
	n, err := s.bookings.ExpireStaleHolds(ctx, s.now().Add(-s.holdTTL))
	if err != nil {
		return 0, fmt.Errorf("expiring stale holds: %w", err)
	}
	if n > 0 {
		logger.Info("expired stale reservation holds", "count", n)
	}
	return n, nil
}

func (s *bookingService) publish(ctx context.Context, subject string, payload any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, subject, payload); err != nil {
		logger.ErrorContext(ctx, "failed to publish event", "subject", subject, "error", err)
	}
}
