package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lexadvise/consult-bookings/internal/domain"
)

// The doubles below are small in-memory implementations of the
// repository interfaces. Keeping real conditional-transition semantics
// in them is what lets the idempotency tests mean something.

type memBookingRepo struct {
	mu       sync.Mutex
	bookings map[string]*domain.Booking
	clock    func() time.Time
}

func newMemBookingRepo() *memBookingRepo {
	return &memBookingRepo{bookings: map[string]*domain.Booking{}, clock: time.Now}
}

func (r *memBookingRepo) put(b *domain.Booking) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *b
	r.bookings[b.ID] = &cp
}

func (r *memBookingRepo) Create(ctx context.Context, clientID, consultationTypeID string, start, end time.Time, intakeNotes string) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bookings {
		if b.StartTime.Equal(start) && (b.Status == domain.BookingPending || b.Status == domain.BookingConfirmed) {
			return nil, domain.ErrSlotTaken
		}
	}
	now := r.clock()
	b := &domain.Booking{
		ID:                 uuid.NewString(),
		ClientID:           clientID,
		ConsultationTypeID: consultationTypeID,
		StartTime:          start,
		EndTime:            end,
		Status:             domain.BookingPending,
		IntakeNotes:        intakeNotes,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	r.bookings[b.ID] = b
	cp := *b
	return &cp, nil
}

func (r *memBookingRepo) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (r *memBookingRepo) GetActiveByStartTime(ctx context.Context, start time.Time) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bookings {
		if b.StartTime.Equal(start) && (b.Status == domain.BookingPending || b.Status == domain.BookingConfirmed) {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memBookingRepo) UpdateStatus(ctx context.Context, id string, from, to domain.BookingStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	b.UpdatedAt = r.clock()
	return true, nil
}

func (r *memBookingRepo) CancelExpiredHold(ctx context.Context, id string, cutoff time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok || b.Status != domain.BookingPending || !b.CreatedAt.Before(cutoff) {
		return false, nil
	}
	b.Status = domain.BookingCancelled
	return true, nil
}

func (r *memBookingRepo) ExpireStaleHolds(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, b := range r.bookings {
		if b.Status == domain.BookingPending && b.CreatedAt.Before(cutoff) {
			b.Status = domain.BookingCancelled
			n++
		}
	}
	return n, nil
}

func (r *memBookingRepo) Reschedule(ctx context.Context, id string, start, end time.Time) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok || b.Status == domain.BookingCompleted || b.Status == domain.BookingCancelled {
		return nil, nil
	}
	for _, other := range r.bookings {
		if other.ID != id && other.StartTime.Equal(start) &&
			(other.Status == domain.BookingPending || other.Status == domain.BookingConfirmed) {
			return nil, domain.ErrSlotTaken
		}
	}
	b.StartTime = start
	b.EndTime = end
	cp := *b
	return &cp, nil
}

func (r *memBookingRepo) SetCalendarEventID(ctx context.Context, id, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.bookings[id]; ok {
		b.CalendarEventID = &eventID
	}
	return nil
}

func (r *memBookingRepo) List(ctx context.Context, status *domain.BookingStatus, limit, offset int) ([]domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Booking
	for _, b := range r.bookings {
		if status == nil || b.Status == *status {
			out = append(out, *b)
		}
	}
	return out, nil
}

type memClientRepo struct {
	mu      sync.Mutex
	clients map[string]*domain.Client // by id
}

func newMemClientRepo() *memClientRepo {
	return &memClientRepo{clients: map[string]*domain.Client{}}
}

func (r *memClientRepo) UpsertByEmail(ctx context.Context, in domain.ClientInput) (*domain.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		if c.Email == in.Email {
			c.Name, c.Phone, c.Timezone = in.Name, in.Phone, in.Timezone
			cp := *c
			return &cp, nil
		}
	}
	c := &domain.Client{
		ID:       uuid.NewString(),
		Email:    in.Email,
		Name:     in.Name,
		Phone:    in.Phone,
		Timezone: in.Timezone,
	}
	r.clients[c.ID] = c
	cp := *c
	return &cp, nil
}

func (r *memClientRepo) GetByID(ctx context.Context, id string) (*domain.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

type memConsultationRepo struct {
	types map[string]*domain.ConsultationType
}

func newMemConsultationRepo(types ...*domain.ConsultationType) *memConsultationRepo {
	r := &memConsultationRepo{types: map[string]*domain.ConsultationType{}}
	for _, ct := range types {
		r.types[ct.ID] = ct
	}
	return r
}

func (r *memConsultationRepo) GetByID(ctx context.Context, id string) (*domain.ConsultationType, error) {
	ct, ok := r.types[id]
	if !ok {
		return nil, nil
	}
	cp := *ct
	return &cp, nil
}

func (r *memConsultationRepo) List(ctx context.Context) ([]domain.ConsultationType, error) {
	var out []domain.ConsultationType
	for _, ct := range r.types {
		out = append(out, *ct)
	}
	return out, nil
}

func (r *memConsultationRepo) UpsertByCategory(ctx context.Context, ct *domain.ConsultationType) error {
	r.types[ct.ID] = ct
	return nil
}

type memPaymentRepo struct {
	mu       sync.Mutex
	payments map[string]*domain.Payment // by booking id
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{payments: map[string]*domain.Payment{}}
}

func (r *memPaymentRepo) UpsertOrder(ctx context.Context, bookingID string, gateway domain.PaymentGateway, orderID string, amount int64, currency string) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.payments[bookingID]; ok {
		if p.Status != domain.PaymentPending {
			return nil, domain.ErrTerminalState
		}
		p.Gateway, p.GatewayOrderID, p.Amount, p.Currency = gateway, orderID, amount, currency
		cp := *p
		return &cp, nil
	}
	p := &domain.Payment{
		ID:             uuid.NewString(),
		BookingID:      bookingID,
		Gateway:        gateway,
		GatewayOrderID: orderID,
		Amount:         amount,
		Currency:       currency,
		Status:         domain.PaymentPending,
	}
	r.payments[bookingID] = p
	cp := *p
	return &cp, nil
}

func (r *memPaymentRepo) GetByBookingID(ctx context.Context, bookingID string) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[bookingID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *memPaymentRepo) GetByGatewayOrder(ctx context.Context, gateway domain.PaymentGateway, orderID string) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.findLocked(gateway, orderID)
	if p == nil {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *memPaymentRepo) findLocked(gateway domain.PaymentGateway, orderID string) *domain.Payment {
	for _, p := range r.payments {
		if p.Gateway == gateway && p.GatewayOrderID == orderID {
			return p
		}
	}
	return nil
}

func (r *memPaymentRepo) MarkSucceeded(ctx context.Context, gateway domain.PaymentGateway, orderID, gatewayPaymentID string, details []byte) (*domain.Payment, bool, error) {
	return r.finalize(gateway, orderID, gatewayPaymentID, domain.PaymentSuccess)
}

func (r *memPaymentRepo) MarkFailed(ctx context.Context, gateway domain.PaymentGateway, orderID, gatewayPaymentID string, details []byte) (*domain.Payment, bool, error) {
	return r.finalize(gateway, orderID, gatewayPaymentID, domain.PaymentFailed)
}

func (r *memPaymentRepo) finalize(gateway domain.PaymentGateway, orderID, gatewayPaymentID string, to domain.PaymentStatus) (*domain.Payment, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.findLocked(gateway, orderID)
	if p == nil {
		return nil, false, nil
	}
	if p.Status != domain.PaymentPending {
		cp := *p
		return &cp, false, nil
	}
	p.Status = to
	p.GatewayPaymentID = gatewayPaymentID
	cp := *p
	return &cp, true, nil
}

// recordingBus counts published events by subject.
type recordingBus struct {
	mu        sync.Mutex
	bySubject map[string]int
}

func newRecordingBus() *recordingBus {
	return &recordingBus{bySubject: map[string]int{}}
}

func (b *recordingBus) Publish(ctx context.Context, subject string, data interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bySubject[subject]++
	return nil
}

func (b *recordingBus) Close() error { return nil }

func (b *recordingBus) count(subject string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bySubject[subject]
}
