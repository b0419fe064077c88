package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/staticnest/staticnest/internal/apperr"
	"github.com/staticnest/staticnest/internal/auth"
	"github.com/staticnest/staticnest/pkg/models"
)

// AuthHandler holds dependencies for the login endpoints.
type AuthHandler struct {
	auth       *auth.Manager
	sessionTTL time.Duration
	log        *zap.Logger
}

func NewAuthHandler(authMgr *auth.Manager, sessionTTL time.Duration, log *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: authMgr, sessionTTL: sessionTTL, log: log}
}

// Login handles POST /api/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.log, fmt.Errorf("%w: invalid request body", apperr.ErrValidation))
		return
	}

	token, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		// Failed logins all look the same to the client.
		writeJSON(w, http.StatusUnauthorized, envelope{Error: "invalid credentials"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	respondMessage(w, http.StatusOK, "logged in")
}

// Logout handles POST /api/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.SessionCookie); err == nil {
		h.auth.Logout(cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	respondMessage(w, http.StatusOK, "logged out")
}

// Check handles GET /api/auth/check.
func (h *AuthHandler) Check(w http.ResponseWriter, r *http.Request) {
	authenticated := false
	if cookie, err := r.Cookie(auth.SessionCookie); err == nil {
		authenticated = h.auth.Validate(cookie.Value)
	}
	respondData(w, http.StatusOK, map[string]bool{"authenticated": authenticated})
}
