package rag

import (
	"net/http"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/auth"
)

type registerPayload struct {
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
	Password string `json:"password"`
}

// Register creates a new user account.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var payload registerPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, h.logger, NewHTTPError(http.StatusBadRequest, "invalid_request", "invalid request body", err))
		return
	}
	view, err := h.auth.Register(r.Context(), auth.RegisterRequest{Email: payload.Email, Nickname: payload.Nickname, Password: payload.Password})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, view)
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates a user and issues a token pair.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var payload loginPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, h.logger, NewHTTPError(http.StatusBadRequest, "invalid_request", "invalid request body", err))
		return
	}
	resp, err := h.auth.Login(r.Context(), auth.LoginRequest{Email: payload.Email, Password: payload.Password})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

type refreshPayload struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh exchanges a refresh token for a new token pair.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var payload refreshPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, h.logger, NewHTTPError(http.StatusBadRequest, "invalid_request", "invalid request body", err))
		return
	}
	resp, err := h.auth.Refresh(r.Context(), payload.RefreshToken)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

// Profile returns the authenticated caller's user record.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
		return
	}
	view, err := h.auth.Profile(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, view)
}

// Logout invalidates server-trackable session state for the caller, best
// effort (the access token itself remains valid until it expires, per the
// caller-supplied conversation state model).
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
		return
	}
	if err := h.auth.Logout(r.Context(), claims.UserID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusNoContent, nil)
}
