package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/jason-s-yu/promptbattle/internal/auth"
	"github.com/jason-s-yu/promptbattle/internal/battle"
	log "github.com/sirupsen/logrus"
)

const (
	authCookieName = "auth_token"
	maxBodyBytes   = 1 << 20
)

var errMissingToken = errors.New("missing auth_token")

// extractCookieToken extracts a named cookie value from "Cookie" header, or returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	parts := strings.Split(cookieHeader, cookieName+"=")
	if len(parts) < 2 {
		return ""
	}
	token := parts[1]
	if idx := strings.Index(token, ";"); idx != -1 {
		token = token[:idx]
	}
	return token
}

// requestToken finds the caller's token in the auth cookie or a Bearer header.
func requestToken(r *http.Request) string {
	if token := extractCookieToken(r.Header.Get("Cookie"), authCookieName); token != "" {
		return token
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

func authenticate(r *http.Request) (battle.Identity, error) {
	token := requestToken(r)
	if token == "" {
		return battle.Identity{}, errMissingToken
	}
	sess, err := auth.AuthenticateJWT(token)
	if err != nil {
		return battle.Identity{}, err
	}
	return battle.Identity{UserID: sess.UserID, Username: sess.Username}, nil
}

// requireIdentity writes 401 and reports false when the request carries no valid token.
func requireIdentity(w http.ResponseWriter, r *http.Request) (battle.Identity, bool) {
	id, err := authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized: "+err.Error())
		return battle.Identity{}, false
	}
	return id, true
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	switch battle.Kind(err) {
	case battle.ErrUnauthorized:
		return http.StatusUnauthorized
	case battle.ErrNotFound:
		return http.StatusNotFound
	case battle.ErrInvalidState, battle.ErrValidation:
		return http.StatusBadRequest
	case battle.ErrFull, battle.ErrNotParticipant:
		return http.StatusForbidden
	case battle.ErrConflict:
		return http.StatusConflict
	case battle.ErrUpstream:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError answers with the mapped status. Internal details are logged, not returned;
// upstream failures keep their message.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	}
	if battle.Kind(err) == battle.ErrInternal {
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}
