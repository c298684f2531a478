package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clubsync/presence/internal/domain"
)

type MeetingRepository interface {
	Create(ctx context.Context, organizerID int64, req *domain.MeetingCreateReq) (*domain.Meeting, error)
	GetByID(ctx context.Context, id int64) (*domain.Meeting, error)
	List(ctx context.Context, groupID string, limit, offset int) ([]domain.Meeting, error)
}

type meetingRepository struct {
	pool *pgxpool.Pool
}

func NewMeetingRepository(pool *pgxpool.Pool) MeetingRepository {
	return &meetingRepository{pool: pool}
}

const meetingCols = `id, group_id, title, location, scheduled_at, capacity, organizer_id, created_at, updated_at`

func (r *meetingRepository) Create(ctx context.Context, organizerID int64, req *domain.MeetingCreateReq) (*domain.Meeting, error) {
	const q = `INSERT INTO meetings (group_id, title, location, scheduled_at, capacity, organizer_id)
	VALUES ($1,$2,$3,$4,$5,$6)
	RETURNING ` + meetingCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var m domain.Meeting
	err := r.pool.QueryRow(ctx, q,
		req.GroupID, req.Title, req.Location, req.ScheduledAt, req.Capacity, organizerID,
	).Scan(
		&m.ID, &m.GroupID, &m.Title, &m.Location, &m.ScheduledAt,
		&m.Capacity, &m.OrganizerID, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *meetingRepository) GetByID(ctx context.Context, id int64) (*domain.Meeting, error) {
	const q = `SELECT ` + meetingCols + ` FROM meetings WHERE id=$1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var m domain.Meeting
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&m.ID, &m.GroupID, &m.Title, &m.Location, &m.ScheduledAt,
		&m.Capacity, &m.OrganizerID, &m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *meetingRepository) List(ctx context.Context, groupID string, limit, offset int) ([]domain.Meeting, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	q := `SELECT ` + meetingCols + ` FROM meetings`
	args := []any{}
	if groupID != "" {
		q += ` WHERE group_id=$1 ORDER BY scheduled_at DESC LIMIT $2 OFFSET $3`
		args = append(args, groupID, limit, offset)
	} else {
		q += ` ORDER BY scheduled_at DESC LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	meetings := []domain.Meeting{}
	for rows.Next() {
		var m domain.Meeting
		if err := rows.Scan(
			&m.ID, &m.GroupID, &m.Title, &m.Location, &m.ScheduledAt,
			&m.Capacity, &m.OrganizerID, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, err
		}
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}

var _ MeetingRepository = (*meetingRepository)(nil)
