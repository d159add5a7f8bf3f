package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lexadvise/consult-bookings/internal/domain"
)

type ClientRepository interface {
	// UpsertByEmail creates the client or refreshes name, phone and
	// timezone on the existing row. Email is the identity.
	UpsertByEmail(ctx context.Context, in domain.ClientInput) (*domain.Client, error)
	GetByID(ctx context.Context, id string) (*domain.Client, error)
}

type clientRepository struct {
	pool *pgxpool.Pool
}

func NewClientRepository(pool *pgxpool.Pool) ClientRepository {
	return &clientRepository{pool: pool}
}

const clientCols = `id, email, name, phone, timezone, created_at, updated_at`

func (r *clientRepository) UpsertByEmail(ctx context.Context, in domain.ClientInput) (*domain.Client, error) {
	const q = `INSERT INTO clients (id, email, name, phone, timezone)
		VALUES ($1, lower($2), $3, $4, $5)
		ON CONFLICT (email) DO UPDATE SET
			name       = EXCLUDED.name,
			phone      = EXCLUDED.phone,
			timezone   = EXCLUDED.timezone,
			updated_at = now()
		RETURNING ` + clientCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var c domain.Client
	err := r.pool.QueryRow(ctx, q, uuid.NewString(), in.Email, in.Name, in.Phone, in.Timezone).Scan(
		&c.ID, &c.Email, &c.Name, &c.Phone, &c.Timezone, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *clientRepository) GetByID(ctx context.Context, id string) (*domain.Client, error) {
	const q = `SELECT ` + clientCols + ` FROM clients WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var c domain.Client
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&c.ID, &c.Email, &c.Name, &c.Phone, &c.Timezone, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
