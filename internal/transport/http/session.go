package http

import (
	"net/http"

	"github.com/google/uuid"

	"edalens/internal/config"
)

// EnsureSession returns the request's session ID, minting a new cookie when
// the request carries none. Every report endpoint goes through this, so a
// fresh browser gets a session on its first request.
func EnsureSession(w http.ResponseWriter, r *http.Request, cfg config.SessionConfig) string {
	if cookie, err := r.Cookie(cfg.CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	id := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(cfg.IdleTTL.Seconds()),
	})
	return id
}

// SessionFromRequest returns the session ID without minting one. Used by the
// websocket endpoint, where setting a cookie on an upgrade is pointless.
func SessionFromRequest(r *http.Request, cfg config.SessionConfig) string {
	if cookie, err := r.Cookie(cfg.CookieName); err == nil {
		return cookie.Value
	}
	return ""
}
