// Package handlers is the HTTP surface. Handlers decode, delegate to
// services and map domain errors to statuses; they hold no business
// rules of their own.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/lexadvise/consult-bookings/internal/domain"
	"github.com/lexadvise/consult-bookings/internal/repository"
	"github.com/lexadvise/consult-bookings/internal/response"
	"github.com/lexadvise/consult-bookings/internal/service"
	"github.com/lexadvise/consult-bookings/pkg/auth"
	"github.com/lexadvise/consult-bookings/pkg/logger"
)

type Handlers struct {
	availability  service.AvailabilityService
	bookings      service.BookingService
	payments      service.PaymentService
	consultations repository.ConsultationRepository
	jwtSecret     string
}

func New(
	availability service.AvailabilityService,
	bookings service.BookingService,
	payments service.PaymentService,
	consultations repository.ConsultationRepository,
	jwtSecret string,
) *Handlers {
	return &Handlers{
		availability:  availability,
		bookings:      bookings,
		payments:      payments,
		consultations: consultations,
		jwtSecret:     jwtSecret,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// decodeBody decodes an optional request body; an empty body is fine.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return false
	}
	return true
}

// handleError is the single error-to-status mapping for the API.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		response.WriteErrorWithDetails(w, http.StatusBadRequest, ve.Message, response.CodeInvalidInput, ve.Field)
	case errors.Is(err, domain.ErrSlotTaken):
		response.Conflict(w, "This time slot is no longer available. Please pick another slot.")
	case errors.Is(err, domain.ErrTerminalState):
		response.Conflict(w, "The booking cannot transition from its current state.")
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(w, "resource not found")
	case errors.Is(err, domain.ErrInvalidSignature):
		response.WriteError(w, http.StatusUnauthorized, "payment signature verification failed", response.CodeInvalidSignature)
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		response.UpstreamError(w, "upstream provider unavailable, please retry")
	case errors.Is(err, domain.ErrGatewayNotConfigured):
		logger.ErrorContext(r.Context(), "payment gateway not configured", "error", err)
		response.InternalError(w, "payment gateway unavailable")
	default:
		logger.ErrorContext(r.Context(), "request failed", "error", err, "path", r.URL.Path)
		response.InternalError(w, "something went wrong")
	}
}

// RequireAdmin gates the operator surface behind a bearer token with
// the admin role.
func (h *Handlers) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			response.Unauthorized(w, "missing bearer token")
			return
		}

		claims, err := auth.Parse(token, h.jwtSecret)
		if err != nil {
			response.Unauthorized(w, "invalid token")
			return
		}
		if claims.Role != "admin" {
			response.Forbidden(w, "admin role required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}
	return limit, offset
}
