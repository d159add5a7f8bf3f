package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lexadvise/consult-bookings/internal/domain"
)

type ConsultationRepository interface {
	GetByID(ctx context.Context, id string) (*domain.ConsultationType, error)
	List(ctx context.Context) ([]domain.ConsultationType, error)
	// UpsertByCategory seeds reference data; existing rows are left
	// untouched so operator price edits survive restarts.
	UpsertByCategory(ctx context.Context, ct *domain.ConsultationType) error
}

type consultationRepository struct {
	pool *pgxpool.Pool
}

func NewConsultationRepository(pool *pgxpool.Pool) ConsultationRepository {
	return &consultationRepository{pool: pool}
}

const consultationCols = `id, category, name, description, duration_minutes, amount, currency, created_at`

func (r *consultationRepository) GetByID(ctx context.Context, id string) (*domain.ConsultationType, error) {
	const q = `SELECT ` + consultationCols + ` FROM consultation_types WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var c domain.ConsultationType
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&c.ID, &c.Category, &c.Name, &c.Description,
		&c.DurationMinutes, &c.Amount, &c.Currency, &c.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *consultationRepository) List(ctx context.Context) ([]domain.ConsultationType, error) {
	const q = `SELECT ` + consultationCols + ` FROM consultation_types ORDER BY amount ASC`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ConsultationType
	for rows.Next() {
		var c domain.ConsultationType
		if err := rows.Scan(
			&c.ID, &c.Category, &c.Name, &c.Description,
			&c.DurationMinutes, &c.Amount, &c.Currency, &c.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *consultationRepository) UpsertByCategory(ctx context.Context, ct *domain.ConsultationType) error {
	const q = `INSERT INTO consultation_types (id, category, name, description, duration_minutes, amount, currency)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (category) DO NOTHING`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if ct.ID == "" {
		ct.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, q,
		ct.ID, ct.Category, ct.Name, ct.Description,
		ct.DurationMinutes, ct.Amount, ct.Currency,
	)
	return err
}
