package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clubsync/presence/internal/domain"
)

type AttendanceRepository interface {
	// Record writes one check-in row. Returns false when the member already
	// checked in to this subject; repeated accepted scans are no-ops.
	Record(ctx context.Context, subjectID, memberRef, integrityTag string, scannedAt time.Time) (bool, error)
	ListBySubject(ctx context.Context, subjectID string) ([]domain.Attendance, error)
	CountBySubject(ctx context.Context, subjectID string) (int, error)
}

type attendanceRepository struct {
	pool *pgxpool.Pool
}

func NewAttendanceRepository(pool *pgxpool.Pool) AttendanceRepository {
	return &attendanceRepository{pool: pool}
}

func (r *attendanceRepository) Record(ctx context.Context, subjectID, memberRef, integrityTag string, scannedAt time.Time) (bool, error) {
	const q = `INSERT INTO attendance (subject_id, member_ref, integrity_tag, scanned_at)
	VALUES ($1,$2,$3,$4)
	ON CONFLICT (subject_id, member_ref) DO NOTHING`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, subjectID, memberRef, integrityTag, scannedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *attendanceRepository) ListBySubject(ctx context.Context, subjectID string) ([]domain.Attendance, error) {
	const q = `SELECT id, subject_id, member_ref, integrity_tag, scanned_at
	FROM attendance WHERE subject_id=$1 ORDER BY scanned_at ASC`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []domain.Attendance{}
	for rows.Next() {
		var a domain.Attendance
		if err := rows.Scan(&a.ID, &a.SubjectID, &a.MemberRef, &a.IntegrityTag, &a.ScannedAt); err != nil {
			return nil, err
		}
		records = append(records, a)
	}
	return records, rows.Err()
}

func (r *attendanceRepository) CountBySubject(ctx context.Context, subjectID string) (int, error) {
	const q = `SELECT count(*) FROM attendance WHERE subject_id=$1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var n int
	if err := r.pool.QueryRow(ctx, q, subjectID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

var _ AttendanceRepository = (*attendanceRepository)(nil)
