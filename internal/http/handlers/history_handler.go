package handlers

import (
	"net/http"
	"time"

	"github.com/clubsync/presence/internal/domain"
	"github.com/clubsync/presence/internal/http/response"
	"github.com/clubsync/presence/internal/ledger"
	"github.com/clubsync/presence/pkg/events"
	"github.com/clubsync/presence/pkg/logger"
)

func (h *Handlers) ListHistory(w http.ResponseWriter, r *http.Request) {
	filter := ledger.FilterAll
	if raw := r.URL.Query().Get("action"); raw != "" && raw != string(ledger.FilterAll) {
		action, ok := domain.ParseHistoryAction(raw)
		if !ok {
			response.BadRequest(w, "action must be all, generated, or scanned")
			return
		}
		filter = ledger.ActionFilter(action)
	}

	order := ledger.SortNewest
	if raw := r.URL.Query().Get("sort"); raw != "" {
		parsed, ok := ledger.ParseSortOrder(raw)
		if !ok {
			response.BadRequest(w, "sort must be newest, oldest, or byType")
			return
		}
		order = parsed
	}

	entries, err := h.history.Query(r.Context(), filter, order)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to query history", "error", err)
		response.InternalError(w, "could not load history")
		return
	}

	response.WriteJSON(w, http.StatusOK, entries)
}

func (h *Handlers) HistoryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.history.Stats(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to derive history stats", "error", err)
		response.InternalError(w, "could not load stats")
		return
	}

	response.WriteJSON(w, http.StatusOK, stats)
}

// ClearHistory empties the ledger. Explicit action behind the organizer role.
func (h *Handlers) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.history.Clear(r.Context()); err != nil {
		logger.ErrorContext(r.Context(), "Failed to clear history", "error", err)
		response.InternalError(w, "could not clear history")
		return
	}

	logger.InfoContext(r.Context(), "History ledger cleared")
	if h.bus != nil {
		if err := h.bus.Publish(r.Context(), events.HistoryCleared, map[string]any{
			"cleared_at": time.Now().UTC(),
		}); err != nil {
			logger.ErrorContext(r.Context(), "Failed to publish history cleared event", "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
