package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lexadvise/consult-bookings/internal/domain"
	"github.com/lexadvise/consult-bookings/internal/payments"
	"github.com/lexadvise/consult-bookings/internal/repository"
	"github.com/lexadvise/consult-bookings/pkg/events"
	"github.com/lexadvise/consult-bookings/pkg/logger"
)

// RazorpayProvider is the slice of the Razorpay adapter the service
// needs; tests substitute a fake.
type RazorpayProvider interface {
	Configured() bool
	KeyID() string
	WebhookSecretConfigured() bool
	CreateOrder(ctx context.Context, amount int64, currency, bookingID string) (string, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
}

// PayPalProvider is the slice of the PayPal adapter the service needs.
type PayPalProvider interface {
	Configured() bool
	ClientID() string
	CreateOrder(ctx context.Context, amount int64, currency, bookingID, description string) (string, error)
	CaptureOrder(ctx context.Context, orderID string) (*payments.CaptureResult, error)
}

// PaymentService reconciles gateway signals with payment and booking
// state. Every confirmation path funnels through the same conditional
// transition, so replayed, concurrent or cross-channel duplicates
// (client verify plus webhook) settle as no-ops.
type PaymentService interface {
	CreateRazorpayOrder(ctx context.Context, bookingID string) (*domain.PaymentOrder, error)
	VerifyRazorpayPayment(ctx context.Context, orderID, paymentID, signature string) (*domain.Payment, error)
	HandleRazorpayWebhook(ctx context.Context, body []byte, signature string) error
	CreatePayPalOrder(ctx context.Context, bookingID string) (*domain.PaymentOrder, error)
	CapturePayPalOrder(ctx context.Context, orderID string) (*domain.Payment, error)
}

type paymentService struct {
	payments repository.PaymentRepository
	bookings repository.BookingRepository
	consults repository.ConsultationRepository
	booking  BookingService
	razorpay RazorpayProvider
	paypal   PayPalProvider
	bus      events.Publisher
	now      func() time.Time
}

func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	bookingRepo repository.BookingRepository,
	consultRepo repository.ConsultationRepository,
	bookingSvc BookingService,
	razorpay RazorpayProvider,
	paypal PayPalProvider,
	bus events.Publisher,
) PaymentService {
	return &paymentService{
		payments: paymentRepo,
		bookings: bookingRepo,
		consults: consultRepo,
		booking:  bookingSvc,
		razorpay: razorpay,
		paypal:   paypal,
		bus:      bus,
		now:      time.Now,
	}
}

// payableBooking loads the booking and its consultation type, checking
// the booking is still awaiting payment.
func (s *paymentService) payableBooking(ctx context.Context, bookingID string) (*domain.Booking, *domain.ConsultationType, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading booking: %w", err)
	}
	if booking == nil {
		return nil, nil, domain.ErrNotFound
	}
	if booking.Status != domain.BookingPending {
		return nil, nil, domain.NewValidationError("bookingId", "booking is not awaiting payment")
	}

	consultation, err := s.consults.GetByID(ctx, booking.ConsultationTypeID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading consultation type: %w", err)
	}
	if consultation == nil {
		return nil, nil, domain.ErrNotFound
	}
	return booking, consultation, nil
}

func (s *paymentService) CreateRazorpayOrder(ctx context.Context, bookingID string) (*domain.PaymentOrder, error) {
	if !s.razorpay.Configured() {
		return nil, domain.ErrGatewayNotConfigured
	}

	booking, consultation, err := s.payableBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	orderID, err := s.razorpay.CreateOrder(ctx, consultation.Amount, consultation.Currency, booking.ID)
	if err != nil {
		return nil, err
	}

	payment, err := s.payments.UpsertOrder(ctx, booking.ID, domain.GatewayRazorpay, orderID, consultation.Amount, consultation.Currency)
	if err != nil {
		return nil, fmt.Errorf("recording payment order: %w", err)
	}

	s.publish(ctx, events.PaymentOrderCreated, events.PaymentOrderCreatedEvent{
		BookingID: booking.ID,
		PaymentID: payment.ID,
		Gateway:   string(domain.GatewayRazorpay),
		OrderID:   orderID,
		Amount:    payment.Amount,
		Currency:  payment.Currency,
	})

	logger.InfoContext(ctx, "razorpay order created",
		"booking_id", booking.ID, "order_id", orderID, "amount", payment.Amount)

	return &domain.PaymentOrder{
		OrderID:  orderID,
		Gateway:  domain.GatewayRazorpay,
		KeyID:    s.razorpay.KeyID(),
		Amount:   payment.Amount,
		Currency: payment.Currency,
	}, nil
}

func (s *paymentService) VerifyRazorpayPayment(ctx context.Context, orderID, paymentID, signature string) (*domain.Payment, error) {
	if !s.razorpay.VerifyPaymentSignature(orderID, paymentID, signature) {
		logger.WarnContext(ctx, "rejected razorpay signature", "order_id", orderID, "payment_id", paymentID)
		return nil, domain.ErrInvalidSignature
	}

	details, _ := json.Marshal(map[string]string{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
		"source":              "client_verify",
	})

	return s.settleSuccess(ctx, domain.GatewayRazorpay, orderID, paymentID, details)
}

// razorpayWebhookEvent is the subset of the webhook envelope we read.
type razorpayWebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

func (s *paymentService) HandleRazorpayWebhook(ctx context.Context, body []byte, signature string) error {
	if s.razorpay.WebhookSecretConfigured() {
		if !s.razorpay.VerifyWebhookSignature(body, signature) {
			logger.WarnContext(ctx, "rejected razorpay webhook signature")
			return domain.ErrInvalidSignature
		}
	} else {
		logger.Warn("razorpay webhook secret not configured, accepting unsigned webhook")
	}

	var event razorpayWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return domain.NewValidationError("body", "malformed webhook payload")
	}

	entity := event.Payload.Payment.Entity
	switch event.Event {
	case "payment.captured":
		if entity.OrderID == "" {
			return domain.NewValidationError("payload", "missing order id")
		}
		_, err := s.settleSuccess(ctx, domain.GatewayRazorpay, entity.OrderID, entity.ID, body)
		return err

	case "payment.failed":
		if entity.OrderID == "" {
			return domain.NewValidationError("payload", "missing order id")
		}
		return s.settleFailure(ctx, domain.GatewayRazorpay, entity.OrderID, entity.ID, body)

	default:
		logger.DebugContext(ctx, "ignoring razorpay webhook event", "event", event.Event)
		return nil
	}
}

func (s *paymentService) CreatePayPalOrder(ctx context.Context, bookingID string) (*domain.PaymentOrder, error) {
	if !s.paypal.Configured() {
		return nil, domain.ErrGatewayNotConfigured
	}

	booking, consultation, err := s.payableBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	orderID, err := s.paypal.CreateOrder(ctx, consultation.Amount, consultation.Currency, booking.ID, "Consultation: "+consultation.Name)
	if err != nil {
		return nil, err
	}

	payment, err := s.payments.UpsertOrder(ctx, booking.ID, domain.GatewayPayPal, orderID, consultation.Amount, consultation.Currency)
	if err != nil {
		return nil, fmt.Errorf("recording payment order: %w", err)
	}

	s.publish(ctx, events.PaymentOrderCreated, events.PaymentOrderCreatedEvent{
		BookingID: booking.ID,
		PaymentID: payment.ID,
		Gateway:   string(domain.GatewayPayPal),
		OrderID:   orderID,
		Amount:    payment.Amount,
		Currency:  payment.Currency,
	})

	logger.InfoContext(ctx, "paypal order created",
		"booking_id", booking.ID, "order_id", orderID, "amount", payment.Amount)

	return &domain.PaymentOrder{
		OrderID:  orderID,
		Gateway:  domain.GatewayPayPal,
		ClientID: s.paypal.ClientID(),
		Amount:   payment.Amount,
		Currency: payment.Currency,
	}, nil
}

func (s *paymentService) CapturePayPalOrder(ctx context.Context, orderID string) (*domain.Payment, error) {
	result, err := s.paypal.CaptureOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !result.Completed() {
		logger.WarnContext(ctx, "paypal capture not completed", "order_id", orderID, "status", result.Status)
		payment, _, err := s.payments.MarkFailed(ctx, domain.GatewayPayPal, orderID, result.CaptureID, result.Raw)
		if err != nil {
			return nil, fmt.Errorf("recording failed capture: %w", err)
		}
		if payment == nil {
			return nil, domain.ErrNotFound
		}
		s.publish(ctx, events.PaymentFailed, events.PaymentFailedEvent{
			BookingID: payment.BookingID,
			PaymentID: payment.ID,
			Gateway:   string(domain.GatewayPayPal),
			FailedAt:  s.now(),
		})
		return payment, nil
	}

	return s.settleSuccess(ctx, domain.GatewayPayPal, orderID, result.CaptureID, result.Raw)
}

// settleSuccess applies a verified success signal. The repository
// transition fires at most once per order; the booking confirmation is
// idempotent on its own, so it runs unconditionally as recovery for a
// crash between the two writes.
func (s *paymentService) settleSuccess(ctx context.Context, gateway domain.PaymentGateway, orderID, gatewayPaymentID string, details []byte) (*domain.Payment, error) {
	payment, transitioned, err := s.payments.MarkSucceeded(ctx, gateway, orderID, gatewayPaymentID, details)
	if err != nil {
		return nil, fmt.Errorf("settling payment: %w", err)
	}
	if payment == nil {
		return nil, domain.ErrNotFound
	}

	if !transitioned {
		if payment.Status == domain.PaymentFailed {
			logger.WarnContext(ctx, "success signal for failed payment ignored",
				"gateway", gateway, "order_id", orderID)
			return payment, nil
		}
		logger.InfoContext(ctx, "duplicate payment success signal",
			"gateway", gateway, "order_id", orderID)
	}

	if err := s.booking.Confirm(ctx, payment.BookingID); err != nil {
		return nil, fmt.Errorf("confirming booking %s: %w", payment.BookingID, err)
	}

	if transitioned {
		s.publish(ctx, events.PaymentSucceeded, events.PaymentSucceededEvent{
			BookingID:        payment.BookingID,
			PaymentID:        payment.ID,
			Gateway:          string(gateway),
			GatewayPaymentID: gatewayPaymentID,
			SucceededAt:      s.now(),
		})
		logger.InfoContext(ctx, "payment succeeded",
			"gateway", gateway, "order_id", orderID, "booking_id", payment.BookingID)
	}

	return payment, nil
}

// settleFailure records a failure signal. The booking stays PENDING so
// the client can retry within the reservation hold.
func (s *paymentService) settleFailure(ctx context.Context, gateway domain.PaymentGateway, orderID, gatewayPaymentID string, details []byte) error {
	payment, transitioned, err := s.payments.MarkFailed(ctx, gateway, orderID, gatewayPaymentID, details)
	if err != nil {
		return fmt.Errorf("settling payment: %w", err)
	}
	if payment == nil {
		return domain.ErrNotFound
	}
	if !transitioned {
		logger.InfoContext(ctx, "duplicate payment failure signal",
			"gateway", gateway, "order_id", orderID)
		return nil
	}

	s.publish(ctx, events.PaymentFailed, events.PaymentFailedEvent{
		BookingID: payment.BookingID,
		PaymentID: payment.ID,
		Gateway:   string(gateway),
		FailedAt:  s.now(),
	})

	logger.InfoContext(ctx, "payment failed",
		"gateway", gateway, "order_id", orderID, "booking_id", payment.BookingID)
	return nil
}

func (s *paymentService) publish(ctx context.Context, subject string, payload any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, subject, payload); err != nil {
		logger.ErrorContext(ctx, "failed to publish event", "subject", subject, "error", err)
	}
}
