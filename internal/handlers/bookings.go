package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lexadvise/consult-bookings/internal/domain"
	"github.com/lexadvise/consult-bookings/internal/response"
)

// CreateBooking places a PENDING booking with a reservation hold on
// its start time. 409 means the slot went to someone else.
func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req domain.BookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.bookings.Create(r.Context(), &req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// CheckSlot probes whether a start time is currently reservable, and
// if held, until when. The consultation type does not change the
// answer; one attorney, one slot.
func (h *Handlers) CheckSlot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StartTime      time.Time `json:"startTime"`
		ConsultationID string    `json:"consultationId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.StartTime.IsZero() {
		response.BadRequest(w, "startTime is required")
		return
	}

	check, err := h.bookings.CheckSlot(r.Context(), req.StartTime)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, check)
}

// GetBooking returns the booking joined with its client, consultation
// type and payment.
func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	detail, err := h.bookings.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// PatchBooking is the client-facing update: reschedule and/or cancel.
// Any other status change is operator-only.
func (h *Handlers) PatchBooking(w http.ResponseWriter, r *http.Request) {
	var patch domain.BookingPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	if patch.StartTime == nil && patch.Status == nil {
		response.BadRequest(w, "nothing to update")
		return
	}
	if patch.Status != nil && *patch.Status != domain.BookingCancelled {
		response.Forbidden(w, "only cancellation is allowed here")
		return
	}

	booking, err := h.bookings.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// UpdateBooking reschedules and/or transitions a booking. Operator
// surface; a reschedule competes for the new slot like a fresh
// booking.
func (h *Handlers) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	var patch domain.BookingPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	if patch.StartTime == nil && patch.Status == nil {
		response.BadRequest(w, "nothing to update")
		return
	}
	if patch.Status != nil {
		if _, ok := domain.ParseBookingStatus(string(*patch.Status)); !ok {
			response.BadRequest(w, "unknown status")
			return
		}
	}

	booking, err := h.bookings.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// CancelBooking releases the slot. Idempotent: cancelling a cancelled
// booking succeeds.
func (h *Handlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	// Body optional.
	_ = decodeBody(r, &req)

	if err := h.bookings.Cancel(r.Context(), chi.URLParam(r, "id"), req.Reason); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(domain.BookingCancelled)})
}

// ListBookings is the operator listing, newest start time first.
func (h *Handlers) ListBookings(w http.ResponseWriter, r *http.Request) {
	var status *domain.BookingStatus
	if v := r.URL.Query().Get("status"); v != "" {
		s, ok := domain.ParseBookingStatus(v)
		if !ok {
			response.BadRequest(w, "unknown status filter")
			return
		}
		status = &s
	}

	limit, offset := parsePagination(r)
	bookings, err := h.bookings.List(r.Context(), status, limit, offset)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if bookings == nil {
		bookings = []domain.Booking{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"bookings": bookings,
		"limit":    limit,
		"offset":   offset,
	})
}
