package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/clubsync/presence/internal/http/handlers"
	jwtmw "github.com/clubsync/presence/internal/http/middleware"
	"github.com/clubsync/presence/internal/ledger"
	"github.com/clubsync/presence/internal/platform/mailer"
	"github.com/clubsync/presence/internal/qr"
	"github.com/clubsync/presence/internal/repo/postgres"
	"github.com/clubsync/presence/pkg/auth"
	"github.com/clubsync/presence/pkg/config"
	"github.com/clubsync/presence/pkg/database"
	"github.com/clubsync/presence/pkg/events"
	"github.com/clubsync/presence/pkg/logger"
	mw "github.com/clubsync/presence/pkg/middleware"
)

func main() {
	cfg := config.Load()

	// Connect to database
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Ledger store: Redis in deployments, in-memory when none is configured.
	var store ledger.Store
	if cfg.Redis.URL != "" {
		redisStore, err := ledger.NewRedisStore(cfg.Redis.URL)
		if err != nil {
			logger.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer redisStore.Close()
		store = redisStore
	} else {
		logger.Warn("REDIS_URL not set, history will not survive restarts")
		store = ledger.NewMemoryStore()
	}

	// Connect to event bus
	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	// QR core
	checksum := qr.NewChecksum([]byte(cfg.QR.SecretKey))
	codec := qr.NewCodec(cfg.QR.Passphrase)
	history := ledger.New(store, ledger.Config{
		Cap:       cfg.QR.HistoryCap,
		Retention: cfg.QR.HistoryRetention,
	}, time.Now)
	generator := qr.NewGenerator(checksum, codec, history, eventBus, time.Now)
	validator := qr.NewValidator(checksum, codec, history, eventBus, time.Now, cfg.QR.ReplayWindow)

	// Repositories
	meetingRepo := postgres.NewMeetingRepository(pool)
	organizerRepo := postgres.NewOrganizerRepository(pool)
	attendanceRepo := postgres.NewAttendanceRepository(pool)

	// Mailer
	var mail mailer.Service
	switch {
	case cfg.Email.DevMode:
		mail = mailer.NewDevMailer()
	case cfg.Email.MailerSendKey != "":
		mail = mailer.NewMailer(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.SMTPFrom)
	default:
		mail = mailer.NewSMTPMailer(cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.SMTPFrom,
			cfg.Email.SMTPUser, cfg.Email.SMTPPass, cfg.Email.SMTPUseTLS)
	}

	h := handlers.New(cfg, meetingRepo, organizerRepo, attendanceRepo, generator, validator, history, mail, eventBus)

	// Setup router
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("presence"))
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	requireOrganizer := jwtmw.RequireJWT(cfg.Auth.JWTSecret, auth.RoleOrganizer)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
	})

	r.Route("/meetings", func(r chi.Router) {
		r.Use(requireOrganizer)
		r.Post("/", h.CreateMeeting)
		r.Get("/", h.ListMeetings)
		r.Get("/{id}", h.GetMeeting)
		r.Post("/{id}/code", h.IssueCode)
		r.Post("/{id}/code/share", h.ShareCode)
	})

	// Scanning needs no account: the code itself is the credential.
	r.Post("/scan", h.Scan)

	r.Route("/history", func(r chi.Router) {
		r.Get("/", h.ListHistory)
		r.Get("/stats", h.HistoryStats)
		r.With(requireOrganizer).Delete("/", h.ClearHistory)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Presence service listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
}
