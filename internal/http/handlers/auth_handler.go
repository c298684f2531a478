package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clubsync/presence/internal/http/response"
	"github.com/clubsync/presence/pkg/auth"
	"github.com/clubsync/presence/pkg/logger"
)

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenRes struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in registerReq
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}

	in.Email = strings.TrimSpace(in.Email)
	if in.Name == "" || in.Email == "" || len(in.Password) < 8 {
		response.BadRequest(w, "name, email, and a password of at least 8 characters are required")
		return
	}

	hash, err := argon2id.CreateHash(in.Password, argon2id.DefaultParams)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to hash password", "error", err)
		response.InternalError(w, "could not create account")
		return
	}

	org, err := h.organizers.Create(r.Context(), in.Name, in.Email, hash, auth.RoleOrganizer)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			response.WriteError(w, http.StatusConflict, "email already registered", response.CodeEmailExists)
			return
		}
		logger.ErrorContext(r.Context(), "Failed to create organizer", "error", err)
		response.InternalError(w, "could not create account")
		return
	}

	response.WriteJSON(w, http.StatusCreated, org)
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in loginReq
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}

	org, err := h.organizers.FindByEmail(r.Context(), in.Email)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to look up organizer", "error", err)
		response.InternalError(w, "login failed")
		return
	}
	if org == nil {
		response.Unauthorized(w, "invalid credentials")
		return
	}

	ok, err := argon2id.ComparePasswordAndHash(in.Password, org.PasswordHash)
	if err != nil || !ok {
		response.Unauthorized(w, "invalid credentials")
		return
	}

	token, err := auth.NewAccessToken(org.ID, org.Email, org.Role, h.cfg.Auth.JWTSecret, h.cfg.Auth.AccessTokenTTL)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to sign token", "error", err)
		response.InternalError(w, "login failed")
		return
	}

	response.WriteJSON(w, http.StatusOK, tokenRes{AccessToken: token, Role: org.Role})
}
