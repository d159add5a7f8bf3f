package handlers

import (
	"net/http"
	"time"

	"github.com/lexadvise/consult-bookings/internal/availability"
	"github.com/lexadvise/consult-bookings/internal/response"
)

const (
	dateLayout    = "2006-01-02"
	maxWindowDays = 62
	defaultWindow = 14
)

// GetAvailability lists open slots between startDate and endDate
// (inclusive). Dates are calendar dates; the working-hours policy
// decides which instants inside them are bookable. A timezone
// parameter is accepted for symmetry with the checkout UI but slots
// are always returned in UTC.
func (h *Handlers) GetAvailability(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	from := now.Truncate(24 * time.Hour)
	to := from.AddDate(0, 0, defaultWindow)

	if v := r.URL.Query().Get("startDate"); v != "" {
		d, err := time.Parse(dateLayout, v)
		if err != nil {
			response.BadRequest(w, "startDate must be a YYYY-MM-DD date")
			return
		}
		from = d
	}
	if v := r.URL.Query().Get("endDate"); v != "" {
		d, err := time.Parse(dateLayout, v)
		if err != nil {
			response.BadRequest(w, "endDate must be a YYYY-MM-DD date")
			return
		}
		// Inclusive end date.
		to = d.AddDate(0, 0, 1)
	}
	if v := r.URL.Query().Get("timezone"); v != "" {
		if _, err := time.LoadLocation(v); err != nil {
			response.BadRequest(w, "unknown timezone")
			return
		}
	}

	if !to.After(from) {
		response.BadRequest(w, "endDate must not be before startDate")
		return
	}
	if to.Sub(from) > maxWindowDays*24*time.Hour {
		response.BadRequest(w, "date window too large")
		return
	}

	slots, err := h.availability.GetAvailableSlots(r.Context(), from, to)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if slots == nil {
		slots = []availability.Slot{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}
