package domain

import (
	"encoding/json"
	"time"
)

type PaymentGateway string

const (
	GatewayRazorpay PaymentGateway = "RAZORPAY"
	GatewayPayPal   PaymentGateway = "PAYPAL"
)

func ParsePaymentGateway(s string) (PaymentGateway, bool) {
	switch PaymentGateway(s) {
	case GatewayRazorpay, GatewayPayPal:
		return PaymentGateway(s), true
	default:
		return "", false
	}
}

type PaymentStatus string

// Payment status transitions only PENDING to SUCCESS or PENDING to
// FAILED, never reversed.
const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
)

// Payment is one-to-one with a Booking. GatewayPaymentID stays empty
// until a confirmation signal is accepted. Details holds the raw
// provider payload for audit only; business logic never reads it back.
type Payment struct {
	ID               string          `json:"id"`
	BookingID        string          `json:"bookingId"`
	Gateway          PaymentGateway  `json:"gateway"`
	GatewayOrderID   string          `json:"gatewayOrderId"`
	GatewayPaymentID string          `json:"gatewayPaymentId,omitempty"`
	Amount           int64           `json:"amount"`
	Currency         string          `json:"currency"`
	Status           PaymentStatus   `json:"status"`
	Details          json.RawMessage `json:"-"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// PaymentOrder is what the client needs to launch a gateway checkout.
type PaymentOrder struct {
	OrderID  string         `json:"orderId"`
	Gateway  PaymentGateway `json:"gateway"`
	KeyID    string         `json:"keyId,omitempty"`    // Razorpay public key
	ClientID string         `json:"clientId,omitempty"` // PayPal client id
	Amount   int64          `json:"amount"`
	Currency string         `json:"currency"`
}
