package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/lexadvise/consult-bookings/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
		})
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// Event subjects
const (
	// Booking events
	BookingCreated   = "booking.created"
	BookingConfirmed = "booking.confirmed"
	BookingCanceled  = "booking.canceled"

	// Payment events
	PaymentOrderCreated = "payment.order.created"
	PaymentSucceeded    = "payment.succeeded"
	PaymentFailed       = "payment.failed"
)

// Event payloads
type BookingCreatedEvent struct {
	BookingID       string    `json:"booking_id"`
	ConsultationID  string    `json:"consultation_id"`
	ClientEmail     string    `json:"client_email"`
	ClientName      string    `json:"client_name"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	HoldExpiresAt   time.Time `json:"hold_expires_at"`
	CreatedAt       time.Time `json:"created_at"`
}

type BookingConfirmedEvent struct {
	BookingID       string    `json:"booking_id"`
	ConsultationID  string    `json:"consultation_id"`
	ClientEmail     string    `json:"client_email"`
	ClientName      string    `json:"client_name"`
	ClientTimezone  string    `json:"client_timezone"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	ConfirmedAt     time.Time `json:"confirmed_at"`
}

type BookingCanceledEvent struct {
	BookingID   string    `json:"booking_id"`
	ClientEmail string    `json:"client_email"`
	Reason      string    `json:"reason"`
	CanceledAt  time.Time `json:"canceled_at"`
}

type PaymentOrderCreatedEvent struct {
	BookingID string `json:"booking_id"`
	PaymentID string `json:"payment_id"`
	Gateway   string `json:"gateway"`
	OrderID   string `json:"order_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

type PaymentSucceededEvent struct {
	BookingID        string    `json:"booking_id"`
	PaymentID        string    `json:"payment_id"`
	Gateway          string    `json:"gateway"`
	GatewayPaymentID string    `json:"gateway_payment_id"`
	SucceededAt      time.Time `json:"succeeded_at"`
}

type PaymentFailedEvent struct {
	BookingID string    `json:"booking_id"`
	PaymentID string    `json:"payment_id"`
	Gateway   string    `json:"gateway"`
	FailedAt  time.Time `json:"failed_at"`
}
