package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clubsync/presence/internal/domain"
	"github.com/clubsync/presence/internal/http/middleware"
	"github.com/clubsync/presence/internal/http/response"
	"github.com/clubsync/presence/internal/qr"
	"github.com/clubsync/presence/pkg/logger"
)

func (h *Handlers) CreateMeeting(w http.ResponseWriter, r *http.Request) {
	var req domain.MeetingCreateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if req.GroupID == "" || req.Title == "" || req.ScheduledAt.IsZero() {
		response.BadRequest(w, "group_id, title, and scheduled_at are required")
		return
	}
	if req.Capacity < 0 {
		response.BadRequest(w, "capacity must not be negative")
		return
	}

	claims := middleware.Claims(r)
	meeting, err := h.meetings.Create(r.Context(), claims.Sub, &req)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to create meeting", "error", err)
		response.InternalError(w, "could not create meeting")
		return
	}

	response.WriteJSON(w, http.StatusCreated, meeting)
}

func (h *Handlers) GetMeeting(w http.ResponseWriter, r *http.Request) {
	meeting, ok := h.loadMeeting(w, r)
	if !ok {
		return
	}
	response.WriteJSON(w, http.StatusOK, meeting)
}

func (h *Handlers) ListMeetings(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	groupID := r.URL.Query().Get("group_id")

	meetings, err := h.meetings.List(r.Context(), groupID, limit, offset)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to list meetings", "error", err)
		response.InternalError(w, "could not list meetings")
		return
	}

	response.WriteJSON(w, http.StatusOK, meetings)
}

type issueCodeReq struct {
	ValidityMinutes int  `json:"validity_minutes"`
	MaxParticipants int  `json:"max_participants"`
	Private         bool `json:"private"`
}

// IssueCode mints a fresh signed code for a meeting.
func (h *Handlers) IssueCode(w http.ResponseWriter, r *http.Request) {
	meeting, ok := h.loadMeeting(w, r)
	if !ok {
		return
	}

	var req issueCodeReq
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "invalid JSON body")
			return
		}
	}

	code, ok := h.issueForMeeting(w, r, meeting, req)
	if !ok {
		return
	}

	response.WriteJSON(w, http.StatusCreated, code)
}

type shareCodeReq struct {
	Email string `json:"email"`
	issueCodeReq
}

// ShareCode mints a fresh code and emails its wire form. The transport is
// opaque to the QR core; mail is just one export surface.
func (h *Handlers) ShareCode(w http.ResponseWriter, r *http.Request) {
	meeting, ok := h.loadMeeting(w, r)
	if !ok {
		return
	}

	var req shareCodeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		response.BadRequest(w, "a valid email is required")
		return
	}

	code, ok := h.issueForMeeting(w, r, meeting, req.issueCodeReq)
	if !ok {
		return
	}

	if err := h.mail.SendCodeShare(req.Email, meeting.Title, code.Encoded); err != nil {
		logger.ErrorContext(r.Context(), "Failed to send code share email", "error", err, "meeting_id", meeting.ID)
		response.InternalError(w, "could not send email")
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"shared_with": req.Email,
		"expires_at":  code.Payload.ExpiresAt,
	})
}

func (h *Handlers) issueForMeeting(w http.ResponseWriter, r *http.Request, meeting *domain.Meeting, req issueCodeReq) (*qr.IssuedCode, bool) {
	claims := middleware.Claims(r)

	ic := qr.IssueContext{
		SubjectID: fmt.Sprintf("meeting-%d", meeting.ID),
		GroupID:   meeting.GroupID,
		IssuerID:  strconv.FormatInt(claims.Sub, 10),
		Metadata: map[string]any{
			"title":    meeting.Title,
			"location": meeting.Location,
		},
	}
	opts := qr.IssueOptions{
		Validity:        time.Duration(req.ValidityMinutes) * time.Minute,
		MaxParticipants: req.MaxParticipants,
		Private:         req.Private,
	}
	if opts.MaxParticipants == 0 {
		opts.MaxParticipants = meeting.Capacity
	}

	code, err := h.generator.Issue(r.Context(), ic, opts)
	if err != nil {
		if isInvalidOptions(err) {
			response.BadRequest(w, err.Error())
			return nil, false
		}
		logger.ErrorContext(r.Context(), "Failed to issue code", "error", err, "meeting_id", meeting.ID)
		response.InternalError(w, "could not issue code")
		return nil, false
	}
	return code, true
}

func isInvalidOptions(err error) bool {
	return errors.Is(err, qr.ErrInvalidGenerationOptions)
}

func (h *Handlers) loadMeeting(w http.ResponseWriter, r *http.Request) (*domain.Meeting, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "invalid meeting id")
		return nil, false
	}

	meeting, err := h.meetings.GetByID(r.Context(), id)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to load meeting", "error", err, "meeting_id", id)
		response.InternalError(w, "could not load meeting")
		return nil, false
	}
	if meeting == nil {
		response.NotFound(w, "meeting not found")
		return nil, false
	}
	return meeting, true
}
