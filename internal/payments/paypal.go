package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lexadvise/consult-bookings/internal/domain"
	"github.com/lexadvise/consult-bookings/pkg/config"
)

const (
	paypalSandboxBase = "https://api-m.sandbox.paypal.com"
	paypalLiveBase    = "https://api-m.paypal.com"
)

// PayPalGateway implements the order/capture protocol over PayPal's
// REST API: client-credential token exchange, order creation, then a
// separate capture call after user approval.
type PayPalGateway struct {
	cfg        config.PayPalConfig
	baseURL    string
	httpClient *http.Client
}

func NewPayPalGateway(cfg config.PayPalConfig) *PayPalGateway {
	base := paypalSandboxBase
	if cfg.Mode == "live" {
		base = paypalLiveBase
	}
	return &PayPalGateway{
		cfg:        cfg,
		baseURL:    base,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// NewPayPalGatewayWithBase points the adapter at an arbitrary API
// base; tests use this with httptest servers.
func NewPayPalGatewayWithBase(cfg config.PayPalConfig, baseURL string) *PayPalGateway {
	g := NewPayPalGateway(cfg)
	g.baseURL = strings.TrimRight(baseURL, "/")
	return g
}

func (g *PayPalGateway) Configured() bool {
	return g.cfg.ClientID != "" && g.cfg.ClientSecret != ""
}

// ClientID is the publishable id the client checkout needs.
func (g *PayPalGateway) ClientID() string {
	return g.cfg.ClientID
}

// CaptureResult carries what reconciliation needs from a capture
// response, plus the raw payload for the audit column.
type CaptureResult struct {
	Status    string
	CaptureID string
	Raw       json.RawMessage
}

// Completed reports whether the provider finished the capture.
func (c *CaptureResult) Completed() bool {
	return strings.EqualFold(c.Status, "COMPLETED")
}

func (g *PayPalGateway) accessToken(ctx context.Context) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(g.cfg.ClientID, g.cfg.ClientSecret)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal token exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("paypal token exchange: status %d: %w", resp.StatusCode, domain.ErrUpstreamUnavailable)
	}

	var auth struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return "", fmt.Errorf("paypal token exchange: %w", err)
	}
	if auth.AccessToken == "" {
		return "", fmt.Errorf("paypal token exchange: empty token: %w", domain.ErrUpstreamUnavailable)
	}
	return auth.AccessToken, nil
}

// CreateOrder creates a CAPTURE-intent order referencing the booking.
// Amount is in minor units and rendered as the decimal string PayPal
// expects.
func (g *PayPalGateway) CreateOrder(ctx context.Context, amount int64, currency, bookingID, description string) (string, error) {
	if !g.Configured() {
		return "", domain.ErrGatewayNotConfigured
	}

	token, err := g.accessToken(ctx)
	if err != nil {
		return "", err
	}

	payload := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{
			{
				"reference_id": bookingID,
				"description":  description,
				"amount": map[string]string{
					"currency_code": currency,
					"value":         formatAmount(amount),
				},
			},
		},
	}

	body, err := g.post(ctx, "/v2/checkout/orders", token, payload)
	if err != nil {
		return "", fmt.Errorf("paypal order create: %w", err)
	}

	var order struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &order); err != nil {
		return "", fmt.Errorf("paypal order create: %w", err)
	}
	if order.ID == "" {
		return "", fmt.Errorf("paypal order create: empty order id: %w", domain.ErrUpstreamUnavailable)
	}
	return order.ID, nil
}

// CaptureOrder captures an approved order and extracts the capture id
// from the first purchase unit.
func (g *PayPalGateway) CaptureOrder(ctx context.Context, orderID string) (*CaptureResult, error) {
	if !g.Configured() {
		return nil, domain.ErrGatewayNotConfigured
	}

	token, err := g.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	body, err := g.post(ctx, "/v2/checkout/orders/"+orderID+"/capture", token, nil)
	if err != nil {
		return nil, fmt.Errorf("paypal capture: %w", err)
	}

	var capture struct {
		Status        string `json:"status"`
		PurchaseUnits []struct {
			Payments struct {
				Captures []struct {
					ID string `json:"id"`
				} `json:"captures"`
			} `json:"payments"`
		} `json:"purchase_units"`
	}
	if err := json.Unmarshal(body, &capture); err != nil {
		return nil, fmt.Errorf("paypal capture: %w", err)
	}

	result := &CaptureResult{Status: capture.Status, Raw: body}
	if len(capture.PurchaseUnits) > 0 && len(capture.PurchaseUnits[0].Payments.Captures) > 0 {
		result.CaptureID = capture.PurchaseUnits[0].Payments.Captures[0].ID
	}
	return result, nil
}

func (g *PayPalGateway) post(ctx context.Context, path, token string, payload interface{}) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, domain.ErrUpstreamUnavailable)
	}
	return raw, nil
}

func formatAmount(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}
