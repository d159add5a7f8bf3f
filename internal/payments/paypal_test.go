package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lexadvise/consult-bookings/internal/domain"
	"github.com/lexadvise/consult-bookings/pkg/config"
)

func paypalTestServer(t *testing.T, captureStatus int, captureBody string) (*httptest.Server, *map[string]interface{}) {
	t.Helper()
	var lastOrder map[string]interface{}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": "test-token"})
	})
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewDecoder(r.Body).Decode(&lastOrder)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "PP-ORDER-1", "status": "CREATED"})
	})
	mux.HandleFunc("/v2/checkout/orders/PP-ORDER-1/capture", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(captureStatus)
		w.Write([]byte(captureBody))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &lastOrder
}

func testPayPal(t *testing.T, baseURL string) *PayPalGateway {
	t.Helper()
	return NewPayPalGatewayWithBase(config.PayPalConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Mode:         "sandbox",
	}, baseURL)
}

func TestPayPalCreateOrder(t *testing.T) {
	srv, lastOrder := paypalTestServer(t, http.StatusCreated, `{}`)
	g := testPayPal(t, srv.URL)

	orderID, err := g.CreateOrder(context.Background(), 249900, "INR", "bk-1", "Consultation: Document Review")
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if orderID != "PP-ORDER-1" {
		t.Errorf("order id = %q", orderID)
	}

	if (*lastOrder)["intent"] != "CAPTURE" {
		t.Errorf("intent = %v", (*lastOrder)["intent"])
	}
	units := (*lastOrder)["purchase_units"].([]interface{})
	unit := units[0].(map[string]interface{})
	if unit["reference_id"] != "bk-1" {
		t.Errorf("reference_id = %v", unit["reference_id"])
	}
	amount := unit["amount"].(map[string]interface{})
	if amount["value"] != "2499.00" || amount["currency_code"] != "INR" {
		t.Errorf("amount = %v", amount)
	}
}

func TestPayPalCaptureOrder(t *testing.T) {
	body := `{
		"status": "COMPLETED",
		"purchase_units": [{"payments": {"captures": [{"id": "CAP-99"}]}}]
	}`
	srv, _ := paypalTestServer(t, http.StatusCreated, body)
	g := testPayPal(t, srv.URL)

	result, err := g.CaptureOrder(context.Background(), "PP-ORDER-1")
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if !result.Completed() {
		t.Errorf("status = %q, want COMPLETED", result.Status)
	}
	if result.CaptureID != "CAP-99" {
		t.Errorf("capture id = %q", result.CaptureID)
	}
	if len(result.Raw) == 0 {
		t.Error("raw payload not retained")
	}
}

func TestPayPalCaptureUpstreamError(t *testing.T) {
	srv, _ := paypalTestServer(t, http.StatusUnprocessableEntity, `{"name":"UNPROCESSABLE_ENTITY"}`)
	g := testPayPal(t, srv.URL)

	_, err := g.CaptureOrder(context.Background(), "PP-ORDER-1")
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestPayPalNotConfigured(t *testing.T) {
	g := NewPayPalGateway(config.PayPalConfig{})
	if g.Configured() {
		t.Fatal("gateway without credentials reports configured")
	}
	if _, err := g.CreateOrder(context.Background(), 100, "INR", "bk-1", ""); !errors.Is(err, domain.ErrGatewayNotConfigured) {
		t.Fatalf("expected ErrGatewayNotConfigured, got %v", err)
	}
	if _, err := g.CaptureOrder(context.Background(), "PP-ORDER-1"); !errors.Is(err, domain.ErrGatewayNotConfigured) {
		t.Fatalf("expected ErrGatewayNotConfigured, got %v", err)
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		minor int64
		want  string
	}{
		{249900, "2499.00"},
		{100, "1.00"},
		{5, "0.05"},
		{199950, "1999.50"},
	}
	for _, tc := range cases {
		if got := formatAmount(tc.minor); got != tc.want {
			t.Errorf("formatAmount(%d) = %q, want %q", tc.minor, got, tc.want)
		}
	}
}
