package handlers

import (
	"net/http"
)

// ListConsultations returns the bookable consultation types, cheapest
// first.
func (h *Handlers) ListConsultations(w http.ResponseWriter, r *http.Request) {
	types, err := h.consultations.List(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"consultations": types})
}
