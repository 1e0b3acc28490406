package server

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
)

const (
	stateCookie  = "oauth_state"
	userCookie   = "oauth_user_id"
	cookieMaxAge = 600
	settingsPath = "/app/settings"
)

func (s *Server) calendarAvailable(w http.ResponseWriter) bool {
	if s.deps.Calendar == nil {
		writeError(w, http.StatusServiceUnavailable, errorCodeUnavailable, "google calendar is not configured")
		return false
	}
	return true
}

func (s *Server) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.deps.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) redirectToSettings(w http.ResponseWriter, r *http.Request, query string) {
	target := strings.TrimRight(s.deps.PublicURL, "/") + settingsPath + "?" + query
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *Server) handleOAuthAuthorize(w http.ResponseWriter, r *http.Request) {
	if !s.calendarAvailable(w) {
		return
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		writeMappedError(w, err)
		return
	}
	state := hex.EncodeToString(buf)

	s.setCookie(w, stateCookie, state, cookieMaxAge)
	s.setCookie(w, userCookie, actorFrom(r.Context()), cookieMaxAge)
	http.Redirect(w, r, s.deps.Calendar.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	if !s.calendarAvailable(w) {
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	var storedState, userID string
	if c, err := r.Cookie(stateCookie); err == nil {
		storedState = c.Value
	}
	if c, err := r.Cookie(userCookie); err == nil {
		userID = c.Value
	}
	s.setCookie(w, stateCookie, "", -1)
	s.setCookie(w, userCookie, "", -1)

	if code == "" || state == "" || state != storedState || userID == "" {
		s.redirectToSettings(w, r, "error=oauth_invalid")
		return
	}

	if err := s.deps.Calendar.Exchange(r.Context(), userID, code); err != nil {
		s.log.Error("oauth callback failed", "user", userID, "error", err)
		s.redirectToSettings(w, r, "error=oauth_failed")
		return
	}
	s.redirectToSettings(w, r, "oauth=success")
}

func (s *Server) handleOAuthStatus(w http.ResponseWriter, r *http.Request) {
	if !s.calendarAvailable(w) {
		return
	}
	connected, err := s.deps.Calendar.Connected(r.Context(), actorFrom(r.Context()))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"connected": connected})
}

func (s *Server) handleOAuthDisconnect(w http.ResponseWriter, r *http.Request) {
	if !s.calendarAvailable(w) {
		return
	}
	if err := s.deps.Calendar.Disconnect(r.Context(), actorFrom(r.Context())); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
