package handlers

import (
	"net/http"
	"strconv"

	"github.com/jason-s-yu/promptbattle/internal/auth"
	"github.com/jason-s-yu/promptbattle/internal/battle"
)

type guestRequest struct {
	Username string `json:"username"`
}

// GuestHandler creates a guest profile and hands back its token, also as the auth_token cookie.
func GuestHandler(svc *battle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req guestRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad guest request payload")
			return
		}

		profile, err := svc.CreateGuest(r.Context(), req.Username)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		token, err := auth.CreateJWT(profile.ID, profile.Username)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     authCookieName,
			Value:    token,
			HttpOnly: true,
			Path:     "/",
			SameSite: http.SameSiteLaxMode,
		})
		writeJSON(w, http.StatusOK, map[string]any{
			"profile": profile,
			"token":   token,
		})
	}
}

// MeHandler returns the caller's profile.
func MeHandler(svc *battle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireIdentity(w, r)
		if !ok {
			return
		}
		profile, err := svc.Profile(r.Context(), id.UserID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"profile": profile})
	}
}

// LeaderboardHandler lists the top profiles by wins.
func LeaderboardHandler(svc *battle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = n
		}
		profiles, err := svc.Leaderboard(r.Context(), limit)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"profiles": profiles})
	}
}
