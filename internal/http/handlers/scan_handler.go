package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/clubsync/presence/internal/domain"
	"github.com/clubsync/presence/internal/http/response"
	"github.com/clubsync/presence/pkg/logger"
)

type scanReq struct {
	// Code is the raw string, however it was obtained: camera decode, manual
	// entry, or paste.
	Code string `json:"code"`
	// MemberRef identifies who is checking in. Optional; without it the scan
	// is validated but no attendance row is written.
	MemberRef string `json:"member_ref"`
}

type scanRes struct {
	domain.ValidationOutcome
	AttendanceRecorded bool `json:"attendance_recorded"`
}

// Scan validates one scanned/typed string. Rejections come back as HTTP 200
// with accepted=false and the typed reason; only infrastructure faults map
// to a 5xx.
func (h *Handlers) Scan(w http.ResponseWriter, r *http.Request) {
	var req scanReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if req.Code == "" {
		response.BadRequest(w, "code is required")
		return
	}

	outcome, err := h.validator.Validate(r.Context(), req.Code)
	if err != nil {
		logger.ErrorContext(r.Context(), "Validation infrastructure fault", "error", err)
		response.InternalError(w, "could not validate code")
		return
	}

	res := scanRes{ValidationOutcome: outcome}

	if outcome.Accepted && req.MemberRef != "" && h.attendance != nil {
		recorded, err := h.attendance.Record(
			r.Context(),
			outcome.Payload.SubjectID,
			req.MemberRef,
			outcome.Payload.IntegrityTag,
			time.Now().UTC(),
		)
		if err != nil {
			logger.ErrorContext(r.Context(), "Failed to record attendance",
				"error", err,
				"subject_id", outcome.Payload.SubjectID,
				"member_ref", req.MemberRef,
			)
		} else {
			res.AttendanceRecorded = recorded
		}
	}

	response.WriteJSON(w, http.StatusOK, res)
}
