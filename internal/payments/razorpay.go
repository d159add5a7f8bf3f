// Package payments holds the gateway adapters. Both adapters only
// talk to their provider and judge signal authenticity; every state
// write goes through the payment service so the PENDING->SUCCESS
// transition stays in one place.
package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"

	"github.com/lexadvise/consult-bookings/internal/domain"
	"github.com/lexadvise/consult-bookings/pkg/config"
)

// razorpayOrderAPI is the slice of the Razorpay SDK we use; tests
// substitute a fake.
type razorpayOrderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// RazorpayGateway implements the order/verify protocol: an order is
// created server-side, and confirmation arrives as an HMAC-signed
// (orderID, paymentID) pair via the client or a webhook.
type RazorpayGateway struct {
	cfg    config.RazorpayConfig
	orders razorpayOrderAPI
}

func NewRazorpayGateway(cfg config.RazorpayConfig) *RazorpayGateway {
	g := &RazorpayGateway{cfg: cfg}
	if cfg.KeyID != "" && cfg.KeySecret != "" {
		client := razorpay.NewClient(cfg.KeyID, cfg.KeySecret)
		g.orders = client.Order
	}
	return g
}

func (g *RazorpayGateway) Configured() bool {
	return g.orders != nil
}

// KeyID is the publishable key the client checkout needs.
func (g *RazorpayGateway) KeyID() string {
	return g.cfg.KeyID
}

func (g *RazorpayGateway) WebhookSecretConfigured() bool {
	return g.cfg.WebhookSecret != ""
}

// CreateOrder registers the order with Razorpay. Amount is already in
// minor units (paise), which is what the provider expects.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, amount int64, currency, bookingID string) (string, error) {
	if !g.Configured() {
		return "", domain.ErrGatewayNotConfigured
	}

	data := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  "booking_" + bookingID,
		"notes": map[string]interface{}{
			"booking_id": bookingID,
		},
	}

	body, err := g.orders.Create(data, nil)
	if err != nil {
		return "", fmt.Errorf("razorpay order create: %w", err)
	}

	orderID, ok := body["id"].(string)
	if !ok || orderID == "" {
		return "", fmt.Errorf("razorpay order create: %w", domain.ErrUpstreamUnavailable)
	}
	return orderID, nil
}

// VerifyPaymentSignature recomputes HMAC-SHA256 over "orderID|paymentID"
// with the key secret and compares in constant time.
func (g *RazorpayGateway) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	if g.cfg.KeySecret == "" || signature == "" {
		return false
	}
	expected := hmacHex([]byte(g.cfg.KeySecret), []byte(orderID+"|"+paymentID))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyWebhookSignature checks the X-Razorpay-Signature header: an
// HMAC-SHA256 over the raw request body with the webhook secret.
func (g *RazorpayGateway) VerifyWebhookSignature(body []byte, signature string) bool {
	if g.cfg.WebhookSecret == "" || signature == "" {
		return false
	}
	expected := hmacHex([]byte(g.cfg.WebhookSecret), body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func hmacHex(key, message []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}
