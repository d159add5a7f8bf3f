package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lexadvise/consult-bookings/internal/domain"
)

type BookingRepository interface {
	// Create inserts a PENDING booking. The partial unique index on
	// active start times resolves concurrent creations: the loser
	// gets domain.ErrSlotTaken.
	Create(ctx context.Context, clientID, consultationTypeID string, start, end time.Time, intakeNotes string) (*domain.Booking, error)
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	// GetActiveByStartTime returns the PENDING or CONFIRMED booking
	// occupying the exact start time, if any.
	GetActiveByStartTime(ctx context.Context, start time.Time) (*domain.Booking, error)
	// UpdateStatus applies a conditional transition and reports
	// whether a row actually changed.
	UpdateStatus(ctx context.Context, id string, from, to domain.BookingStatus) (bool, error)
	// CancelExpiredHold reclaims a single PENDING booking whose hold
	// started before cutoff.
	CancelExpiredHold(ctx context.Context, id string, cutoff time.Time) (bool, error)
	// ExpireStaleHolds is the sweep: cancels every PENDING booking
	// created before cutoff, returning how many were reclaimed.
	ExpireStaleHolds(ctx context.Context, cutoff time.Time) (int64, error)
	Reschedule(ctx context.Context, id string, start, end time.Time) (*domain.Booking, error)
	SetCalendarEventID(ctx context.Context, id, eventID string) error
	List(ctx context.Context, status *domain.BookingStatus, limit, offset int) ([]domain.Booking, error)
}

type bookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) BookingRepository {
	return &bookingRepository{pool: pool}
}

const bookingCols = `id, client_id, consultation_type_id, start_time, end_time,
status, intake_notes, calendar_event_id, created_at, updated_at`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(
		&b.ID, &b.ClientID, &b.ConsultationTypeID, &b.StartTime, &b.EndTime,
		&b.Status, &b.IntakeNotes, &b.CalendarEventID, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *bookingRepository) Create(ctx context.Context, clientID, consultationTypeID string, start, end time.Time, intakeNotes string) (*domain.Booking, error) {
	const q = `INSERT INTO bookings (
		id, client_id, consultation_type_id, start_time, end_time, status, intake_notes
	) VALUES ($1,$2,$3,$4,$5,'PENDING',$6)
	RETURNING ` + bookingCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	b, err := scanBooking(r.pool.QueryRow(ctx, q,
		uuid.NewString(), clientID, consultationTypeID, start, end, intakeNotes,
	))
	if isUniqueViolation(err) {
		return nil, domain.ErrSlotTaken
	}
	return b, err
}

func (r *bookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	b, err := scanBooking(r.pool.QueryRow(ctx, q, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return b, err
}

func (r *bookingRepository) GetActiveByStartTime(ctx context.Context, start time.Time) (*domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings
		WHERE start_time=$1 AND status IN ('PENDING','CONFIRMED')`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	b, err := scanBooking(r.pool.QueryRow(ctx, q, start))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return b, err
}

func (r *bookingRepository) UpdateStatus(ctx context.Context, id string, from, to domain.BookingStatus) (bool, error) {
	const q = `UPDATE bookings SET status=$3, updated_at=now() WHERE id=$1 AND status=$2`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, id, from, to)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func (r *bookingRepository) CancelExpiredHold(ctx context.Context, id string, cutoff time.Time) (bool, error) {
	const q = `UPDATE bookings SET status='CANCELLED', updated_at=now()
		WHERE id=$1 AND status='PENDING' AND created_at < $2`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, id, cutoff)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func (r *bookingRepository) ExpireStaleHolds(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `UPDATE bookings SET status='CANCELLED', updated_at=now()
		WHERE status='PENDING' AND created_at < $1`
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

func (r *bookingRepository) Reschedule(ctx context.Context, id string, start, end time.Time) (*domain.Booking, error) {
	const q = `UPDATE bookings SET start_time=$2, end_time=$3, updated_at=now()
		WHERE id=$1 AND status IN ('PENDING','CONFIRMED')
		RETURNING ` + bookingCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	b, err := scanBooking(r.pool.QueryRow(ctx, q, id, start, end))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if isUniqueViolation(err) {
		return nil, domain.ErrSlotTaken
	}
	return b, err
}

func (r *bookingRepository) SetCalendarEventID(ctx context.Context, id, eventID string) error {
	const q = `UPDATE bookings SET calendar_event_id=$2, updated_at=now() WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, id, eventID)
	return err
}

func (r *bookingRepository) List(ctx context.Context, status *domain.BookingStatus, limit, offset int) ([]domain.Booking, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	q := `SELECT ` + bookingCols + ` FROM bookings`
	args := []any{}
	if status != nil {
		q += ` WHERE status=$1 ORDER BY start_time DESC LIMIT $2 OFFSET $3`
		args = append(args, *status, limit, offset)
	} else {
		q += ` ORDER BY start_time DESC LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(
			&b.ID, &b.ClientID, &b.ConsultationTypeID, &b.StartTime, &b.EndTime,
			&b.Status, &b.IntakeNotes, &b.CalendarEventID, &b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
