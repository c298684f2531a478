package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clubsync/presence/internal/domain"
)

type OrganizerRepository interface {
	Create(ctx context.Context, name, email, passwordHash, role string) (*domain.Organizer, error)
	FindByEmail(ctx context.Context, email string) (*domain.Organizer, error)
	FindByID(ctx context.Context, id int64) (*domain.Organizer, error)
}

type organizerRepository struct {
	pool *pgxpool.Pool
}

func NewOrganizerRepository(pool *pgxpool.Pool) OrganizerRepository {
	return &organizerRepository{pool: pool}
}

const organizerCols = `id, name, email, password_hash, role, created_at`

func (r *organizerRepository) Create(ctx context.Context, name, email, passwordHash, role string) (*domain.Organizer, error) {
	const q = `INSERT INTO organizers (name, email, password_hash, role)
	VALUES ($1,$2,$3,$4)
	RETURNING ` + organizerCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var o domain.Organizer
	err := r.pool.QueryRow(ctx, q, name, normalizeEmail(email), passwordHash, role).Scan(
		&o.ID, &o.Name, &o.Email, &o.PasswordHash, &o.Role, &o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *organizerRepository) FindByEmail(ctx context.Context, email string) (*domain.Organizer, error) {
	const q = `SELECT ` + organizerCols + ` FROM organizers WHERE email=$1`
	return r.findOne(ctx, q, normalizeEmail(email))
}

func (r *organizerRepository) FindByID(ctx context.Context, id int64) (*domain.Organizer, error) {
	const q = `SELECT ` + organizerCols + ` FROM organizers WHERE id=$1`
	return r.findOne(ctx, q, id)
}

func (r *organizerRepository) findOne(ctx context.Context, q string, arg any) (*domain.Organizer, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var o domain.Organizer
	err := r.pool.QueryRow(ctx, q, arg).Scan(
		&o.ID, &o.Name, &o.Email, &o.PasswordHash, &o.Role, &o.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var _ OrganizerRepository = (*organizerRepository)(nil)
