package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lexadvise/consult-bookings/internal/domain"
	"github.com/lexadvise/consult-bookings/pkg/events"
)

const testConsultationID = "ct-audio"

func testConsultation() *domain.ConsultationType {
	return &domain.ConsultationType{
		ID:              testConsultationID,
		Category:        domain.ConsultationAudioCall,
		Name:            "Audio Consultation",
		DurationMinutes: 30,
		Amount:          149900,
		Currency:        "INR",
	}
}

type bookingFixture struct {
	svc      BookingService
	bookings *memBookingRepo
	clients  *memClientRepo
	payments *memPaymentRepo
	bus      *recordingBus
	now      time.Time
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()
	f := &bookingFixture{
		bookings: newMemBookingRepo(),
		clients:  newMemClientRepo(),
		payments: newMemPaymentRepo(),
		bus:      newRecordingBus(),
		now:      time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
	}
	f.bookings.clock = func() time.Time { return f.now }
	svc := NewBookingService(f.bookings, f.clients, newMemConsultationRepo(testConsultation()), f.payments, f.bus, 15*time.Minute)
	svc.(*bookingService).now = func() time.Time { return f.now }
	f.svc = svc
	return f
}

func validRequest(start time.Time) *domain.BookingRequest {
	return &domain.BookingRequest{
		ConsultationID: testConsultationID,
		StartTime:      start,
		Client: domain.ClientInput{
			Name:     "Asha Rao",
			Email:    "asha@example.com",
			Timezone: "Asia/Kolkata",
		},
	}
}

func TestCreateBooking(t *testing.T) {
	f := newBookingFixture(t)
	start := f.now.Add(2 * time.Hour)

	created, err := f.svc.Create(context.Background(), validRequest(start))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != domain.BookingPending {
		t.Errorf("status = %s, want PENDING", created.Status)
	}
	if !created.EndTime.Equal(start.Add(30 * time.Minute)) {
		t.Errorf("end time = %v, want start+30m", created.EndTime)
	}
	if want := created.CreatedAt.Add(15 * time.Minute); !created.ReservationExpiresAt.Equal(want) {
		t.Errorf("reservation expires %v, want %v", created.ReservationExpiresAt, want)
	}
	if f.bus.count(events.BookingCreated) != 1 {
		t.Errorf("booking.created published %d times, want 1", f.bus.count(events.BookingCreated))
	}
}

func TestCreateBookingValidation(t *testing.T) {
	f := newBookingFixture(t)
	start := f.now.Add(2 * time.Hour)

	cases := []struct {
		name   string
		mutate func(*domain.BookingRequest)
	}{
		{"missing consultation", func(r *domain.BookingRequest) { r.ConsultationID = "" }},
		{"unknown consultation", func(r *domain.BookingRequest) { r.ConsultationID = "nope" }},
		{"zero start", func(r *domain.BookingRequest) { r.StartTime = time.Time{} }},
		{"past start", func(r *domain.BookingRequest) { r.StartTime = f.now.Add(-time.Hour) }},
		{"start exactly now", func(r *domain.BookingRequest) { r.StartTime = f.now }},
		{"missing name", func(r *domain.BookingRequest) { r.Client.Name = "  " }},
		{"bad email", func(r *domain.BookingRequest) { r.Client.Email = "not-an-email" }},
		{"missing timezone", func(r *domain.BookingRequest) { r.Client.Timezone = "" }},
		{"bad timezone", func(r *domain.BookingRequest) { r.Client.Timezone = "Mars/Olympus" }},
		{"bad gateway", func(r *domain.BookingRequest) { r.PaymentGateway = "STRIPE" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest(start)
			tc.mutate(req)
			_, err := f.svc.Create(context.Background(), req)
			if !domain.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateBookingSlotHeld(t *testing.T) {
	f := newBookingFixture(t)
	start := f.now.Add(2 * time.Hour)

	if _, err := f.svc.Create(context.Background(), validRequest(start)); err != nil {
		t.Fatalf("first create: %v", err)
	}

	// Second client, same slot, five minutes later: still inside the
	// first client's hold.
	f.now = f.now.Add(5 * time.Minute)
	req := validRequest(start)
	req.Client.Email = "vikram@example.com"

	if _, err := f.svc.Create(context.Background(), req); !errors.Is(err, domain.ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}
}

func TestCreateBookingReclaimsExpiredHold(t *testing.T) {
	f := newBookingFixture(t)
	start := f.now.Add(2 * time.Hour)

	first, err := f.svc.Create(context.Background(), validRequest(start))
	if err != nil {
		t.Fatalf("first create: %v", err)
	}

	// Sixteen minutes on, the unpaid hold has lapsed and the slot is
	// up for grabs again.
	f.now = f.now.Add(16 * time.Minute)
	req := validRequest(start)
	req.Client.Email = "vikram@example.com"

	second, err := f.svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("second create after hold expiry: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("expected a new booking, got the old one")
	}

	old, _ := f.bookings.GetByID(context.Background(), first.ID)
	if old.Status != domain.BookingCancelled {
		t.Errorf("expired hold status = %s, want CANCELLED", old.Status)
	}
}

func TestConfirmedBookingBlocksForever(t *testing.T) {
	f := newBookingFixture(t)
	start := f.now.Add(2 * time.Hour)

	created, err := f.svc.Create(context.Background(), validRequest(start))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.svc.Confirm(context.Background(), created.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	// Well past any hold TTL; a CONFIRMED booking never expires.
	f.now = f.now.Add(time.Hour)
	req := validRequest(start)
	req.Client.Email = "vikram@example.com"
	if _, err := f.svc.Create(context.Background(), req); !errors.Is(err, domain.ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}
}

func TestConfirmIdempotent(t *testing.T) {
	f := newBookingFixture(t)
	created, err := f.svc.Create(context.Background(), validRequest(f.now.Add(2*time.Hour)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := f.svc.Confirm(context.Background(), created.ID); err != nil {
			t.Fatalf("confirm #%d: %v", i+1, err)
		}
	}

	if n := f.bus.count(events.BookingConfirmed); n != 1 {
		t.Fatalf("booking.confirmed published %d times, want 1", n)
	}

	b, _ := f.bookings.GetByID(context.Background(), created.ID)
	if b.Status != domain.BookingConfirmed {
		t.Errorf("status = %s, want CONFIRMED", b.Status)
	}
}

func TestConfirmUnknownBooking(t *testing.T) {
	f := newBookingFixture(t)
	if err := f.svc.Confirm(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	f := newBookingFixture(t)
	created, err := f.svc.Create(context.Background(), validRequest(f.now.Add(2*time.Hour)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := f.svc.Cancel(context.Background(), created.ID, "client asked"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	// Idempotent.
	if err := f.svc.Cancel(context.Background(), created.ID, "again"); err != nil {
		t.Fatalf("repeat cancel: %v", err)
	}
	if n := f.bus.count(events.BookingCanceled); n != 1 {
		t.Errorf("booking.canceled published %d times, want 1", n)
	}
}

func TestCancelCompletedBooking(t *testing.T) {
	f := newBookingFixture(t)
	created, _ := f.svc.Create(context.Background(), validRequest(f.now.Add(2*time.Hour)))
	f.bookings.UpdateStatus(context.Background(), created.ID, domain.BookingPending, domain.BookingConfirmed)
	f.bookings.UpdateStatus(context.Background(), created.ID, domain.BookingConfirmed, domain.BookingCompleted)

	if err := f.svc.Cancel(context.Background(), created.ID, "too late"); !errors.Is(err, domain.ErrTerminalState) {
		t.Fatalf("expected ErrTerminalState, got %v", err)
	}
}

func TestRescheduleIntoHeldSlot(t *testing.T) {
	f := newBookingFixture(t)
	slotA := f.now.Add(2 * time.Hour)
	slotB := f.now.Add(4 * time.Hour)

	if _, err := f.svc.Create(context.Background(), validRequest(slotA)); err != nil {
		t.Fatalf("create first: %v", err)
	}
	reqB := validRequest(slotB)
	reqB.Client.Email = "vikram@example.com"
	second, err := f.svc.Create(context.Background(), reqB)
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	// Moving the second booking onto the first booking's live hold
	// must fail like a fresh create would.
	_, err = f.svc.Update(context.Background(), second.ID, domain.BookingPatch{StartTime: &slotA})
	if !errors.Is(err, domain.ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}

	// A free slot works and moves the end time along.
	slotC := f.now.Add(6 * time.Hour)
	updated, err := f.svc.Update(context.Background(), second.ID, domain.BookingPatch{StartTime: &slotC})
	if err != nil {
		t.Fatalf("reschedule to free slot: %v", err)
	}
	if !updated.StartTime.Equal(slotC) || !updated.EndTime.Equal(slotC.Add(30*time.Minute)) {
		t.Errorf("rescheduled to [%v, %v], want [%v, %v]",
			updated.StartTime, updated.EndTime, slotC, slotC.Add(30*time.Minute))
	}
}

func TestUpdateStatusToCompleted(t *testing.T) {
	f := newBookingFixture(t)
	created, _ := f.svc.Create(context.Background(), validRequest(f.now.Add(2*time.Hour)))

	completed := domain.BookingCompleted
	if _, err := f.svc.Update(context.Background(), created.ID, domain.BookingPatch{Status: &completed}); !domain.IsValidation(err) {
		t.Fatalf("completing a PENDING booking should fail validation, got %v", err)
	}

	if err := f.svc.Confirm(context.Background(), created.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	updated, err := f.svc.Update(context.Background(), created.ID, domain.BookingPatch{Status: &completed})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if updated.Status != domain.BookingCompleted {
		t.Errorf("status = %s, want COMPLETED", updated.Status)
	}
}

func TestExpireStaleHolds(t *testing.T) {
	f := newBookingFixture(t)
	created, _ := f.svc.Create(context.Background(), validRequest(f.now.Add(2*time.Hour)))

	// Within TTL: nothing to do.
	if n, _ := f.svc.ExpireStaleHolds(context.Background()); n != 0 {
		t.Fatalf("swept %d holds, want 0", n)
	}

	f.now = f.now.Add(20 * time.Minute)
	n, err := f.svc.ExpireStaleHolds(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("swept %d holds, want 1", n)
	}

	b, _ := f.bookings.GetByID(context.Background(), created.ID)
	if b.Status != domain.BookingCancelled {
		t.Errorf("status = %s, want CANCELLED", b.Status)
	}
}

func TestCheckSlot(t *testing.T) {
	f := newBookingFixture(t)
	start := f.now.Add(2 * time.Hour)

	check, err := f.svc.CheckSlot(context.Background(), start)
	if err != nil || !check.Available {
		t.Fatalf("free slot reported unavailable: %v %+v", err, check)
	}

	created, _ := f.svc.Create(context.Background(), validRequest(start))

	check, err = f.svc.CheckSlot(context.Background(), start)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if check.Available {
		t.Fatal("held slot reported available")
	}
	if check.ReservedUntil == nil || !check.ReservedUntil.Equal(created.ReservationExpiresAt) {
		t.Errorf("reservedUntil = %v, want %v", check.ReservedUntil, created.ReservationExpiresAt)
	}

	// Past the hold, the probe flips back to available.
	f.now = f.now.Add(16 * time.Minute)
	check, _ = f.svc.CheckSlot(context.Background(), start)
	if !check.Available {
		t.Fatal("slot with lapsed hold reported unavailable")
	}
}
