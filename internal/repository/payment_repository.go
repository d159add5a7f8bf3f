package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lexadvise/consult-bookings/internal/domain"
)

type PaymentRepository interface {
	// UpsertOrder creates the booking's payment row, or repoints a
	// still-PENDING one at a fresh gateway order (retry with the
	// other gateway). A finalized payment is never overwritten.
	UpsertOrder(ctx context.Context, bookingID string, gateway domain.PaymentGateway, orderID string, amount int64, currency string) (*domain.Payment, error)
	GetByBookingID(ctx context.Context, bookingID string) (*domain.Payment, error)
	GetByGatewayOrder(ctx context.Context, gateway domain.PaymentGateway, orderID string) (*domain.Payment, error)
	// MarkSucceeded applies PENDING -> SUCCESS at most once. The bool
	// reports whether this call performed the transition; a false
	// with a non-nil payment means the signal was a duplicate.
	MarkSucceeded(ctx context.Context, gateway domain.PaymentGateway, orderID, gatewayPaymentID string, details []byte) (*domain.Payment, bool, error)
	MarkFailed(ctx context.Context, gateway domain.PaymentGateway, orderID, gatewayPaymentID string, details []byte) (*domain.Payment, bool, error)
}

type paymentRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentRepository(pool *pgxpool.Pool) PaymentRepository {
	return &paymentRepository{pool: pool}
}

const paymentCols = `id, booking_id, gateway, gateway_order_id, gateway_payment_id,
amount, currency, status, payment_details, created_at, updated_at`

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(
		&p.ID, &p.BookingID, &p.Gateway, &p.GatewayOrderID, &p.GatewayPaymentID,
		&p.Amount, &p.Currency, &p.Status, &p.Details, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepository) UpsertOrder(ctx context.Context, bookingID string, gateway domain.PaymentGateway, orderID string, amount int64, currency string) (*domain.Payment, error) {
	const q = `INSERT INTO payments (id, booking_id, gateway, gateway_order_id, amount, currency, status)
		VALUES ($1,$2,$3,$4,$5,$6,'PENDING')
		ON CONFLICT (booking_id) DO UPDATE SET
			gateway          = EXCLUDED.gateway,
			gateway_order_id = EXCLUDED.gateway_order_id,
			amount           = EXCLUDED.amount,
			currency         = EXCLUDED.currency,
			updated_at       = now()
		WHERE payments.status = 'PENDING'
		RETURNING ` + paymentCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	p, err := scanPayment(r.pool.QueryRow(ctx, q,
		uuid.NewString(), bookingID, gateway, orderID, amount, currency,
	))
	if err == pgx.ErrNoRows {
		// The row exists and is already terminal.
		return nil, domain.ErrTerminalState
	}
	return p, err
}

func (r *paymentRepository) GetByBookingID(ctx context.Context, bookingID string) (*domain.Payment, error) {
	const q = `SELECT ` + paymentCols + ` FROM payments WHERE booking_id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	p, err := scanPayment(r.pool.QueryRow(ctx, q, bookingID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (r *paymentRepository) GetByGatewayOrder(ctx context.Context, gateway domain.PaymentGateway, orderID string) (*domain.Payment, error) {
	const q = `SELECT ` + paymentCols + ` FROM payments WHERE gateway=$1 AND gateway_order_id=$2`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	p, err := scanPayment(r.pool.QueryRow(ctx, q, gateway, orderID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (r *paymentRepository) MarkSucceeded(ctx context.Context, gateway domain.PaymentGateway, orderID, gatewayPaymentID string, details []byte) (*domain.Payment, bool, error) {
	return r.finalize(ctx, gateway, orderID, gatewayPaymentID, details, domain.PaymentSuccess)
}

func (r *paymentRepository) MarkFailed(ctx context.Context, gateway domain.PaymentGateway, orderID, gatewayPaymentID string, details []byte) (*domain.Payment, bool, error) {
	return r.finalize(ctx, gateway, orderID, gatewayPaymentID, details, domain.PaymentFailed)
}

// finalize is the single conditional write that makes reconciliation
// idempotent: only a PENDING payment transitions, so a replayed signal
// finds zero rows and comes back as a duplicate.
func (r *paymentRepository) finalize(ctx context.Context, gateway domain.PaymentGateway, orderID, gatewayPaymentID string, details []byte, to domain.PaymentStatus) (*domain.Payment, bool, error) {
	const q = `UPDATE payments SET
			status             = $4,
			gateway_payment_id = $3,
			payment_details    = COALESCE($5, payment_details),
			updated_at         = now()
		WHERE gateway=$1 AND gateway_order_id=$2 AND status='PENDING'
		RETURNING ` + paymentCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	p, err := scanPayment(r.pool.QueryRow(ctx, q, gateway, orderID, gatewayPaymentID, to, details))
	if err == nil {
		return p, true, nil
	}
	if err != pgx.ErrNoRows {
		return nil, false, err
	}

	// No transition happened: either the order is unknown or the
	// payment is already terminal.
	existing, err := r.GetByGatewayOrder(ctx, gateway, orderID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}
