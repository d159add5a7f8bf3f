package handlers

import (
	"io"
	"net/http"

	"github.com/lexadvise/consult-bookings/internal/response"
)

const razorpaySignatureHeader = "X-Razorpay-Signature"

// maxWebhookBody caps what we read from the provider.
const maxWebhookBody = 1 << 20

// CreateRazorpayOrder registers the booking's payment with Razorpay
// and returns what checkout needs.
func (h *Handlers) CreateRazorpayOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BookingID string `json:"bookingId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.BookingID == "" {
		response.BadRequest(w, "bookingId is required")
		return
	}

	order, err := h.payments.CreateRazorpayOrder(r.Context(), req.BookingID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// VerifyRazorpayPayment settles the client-side confirmation signal.
// Replays are answered with success without redoing side effects.
func (h *Handlers) VerifyRazorpayPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID   string `json:"razorpay_order_id"`
		PaymentID string `json:"razorpay_payment_id"`
		Signature string `json:"razorpay_signature"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		response.BadRequest(w, "razorpay_order_id, razorpay_payment_id and razorpay_signature are required")
		return
	}

	payment, err := h.payments.VerifyRazorpayPayment(r.Context(), req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

// RazorpayWebhook is the server-to-server confirmation channel. A
// non-2xx tells the provider to retry, so only unverifiable or
// malformed deliveries get one.
func (h *Handlers) RazorpayWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(w, "unreadable body")
		return
	}

	if err := h.payments.HandleRazorpayWebhook(r.Context(), body, r.Header.Get(razorpaySignatureHeader)); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreatePayPalOrder registers the booking's payment with PayPal.
func (h *Handlers) CreatePayPalOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BookingID string `json:"bookingId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.BookingID == "" {
		response.BadRequest(w, "bookingId is required")
		return
	}

	order, err := h.payments.CreatePayPalOrder(r.Context(), req.BookingID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// CapturePayPalOrder captures an approved PayPal order and settles
// the payment. The response carries the payment's final status; a
// failed capture leaves the booking PENDING for a retry.
func (h *Handlers) CapturePayPalOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID string `json:"orderId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.OrderID == "" {
		response.BadRequest(w, "orderId is required")
		return
	}

	payment, err := h.payments.CapturePayPalOrder(r.Context(), req.OrderID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}
