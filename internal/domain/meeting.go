package domain

import "time"

type Meeting struct {
	ID          int64     `json:"id"`
	GroupID     string    `json:"group_id"`
	Title       string    `json:"title"`
	Location    string    `json:"location"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Capacity    int       `json:"capacity"`
	OrganizerID int64     `json:"organizer_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type MeetingCreateReq struct {
	GroupID     string    `json:"group_id"`
	Title       string    `json:"title"`
	Location    string    `json:"location"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Capacity    int       `json:"capacity"`
}

type Organizer struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Attendance is the durable check-in record written when a scan is accepted.
// One row per (subject, member) pair; repeated accepted scans are no-ops.
type Attendance struct {
	ID           int64     `json:"id"`
	SubjectID    string    `json:"subject_id"`
	MemberRef    string    `json:"member_ref"`
	IntegrityTag string    `json:"integrity_tag"`
	ScannedAt    time.Time `json:"scanned_at"`
}
