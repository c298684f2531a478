package handlers

import (
	"github.com/clubsync/presence/internal/ledger"
	"github.com/clubsync/presence/internal/platform/mailer"
	"github.com/clubsync/presence/internal/qr"
	"github.com/clubsync/presence/internal/repo/postgres"
	"github.com/clubsync/presence/pkg/config"
	"github.com/clubsync/presence/pkg/events"
)

type Handlers struct {
	cfg        *config.Config
	meetings   postgres.MeetingRepository
	organizers postgres.OrganizerRepository
	attendance postgres.AttendanceRepository
	generator  *qr.Generator
	validator  *qr.Validator
	history    *ledger.Ledger
	mail       mailer.Service
	bus        events.Publisher
}

func New(
	cfg *config.Config,
	meetings postgres.MeetingRepository,
	organizers postgres.OrganizerRepository,
	attendance postgres.AttendanceRepository,
	generator *qr.Generator,
	validator *qr.Validator,
	history *ledger.Ledger,
	mail mailer.Service,
	bus events.Publisher,
) *Handlers {
	return &Handlers{
		cfg:        cfg,
		meetings:   meetings,
		organizers: organizers,
		attendance: attendance,
		generator:  generator,
		validator:  validator,
		history:    history,
		mail:       mail,
		bus:        bus,
	}
}
