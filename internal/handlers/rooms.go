// internal/handlers/rooms.go
package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/promptbattle/internal/battle"
)

type createRoomRequest struct {
	Topic string `json:"topic"`
}

type joinRoomRequest struct {
	RoomCode string `json:"roomCode"`
}

type readyRequest struct {
	RoomID string `json:"roomId"`
	Ready  *bool  `json:"ready"`
}

type submitPromptRequest struct {
	RoomID string `json:"roomId"`
	Prompt string `json:"prompt"`
}

func parseRoomID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	if raw == "" {
		writeError(w, http.StatusBadRequest, "roomId is required")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid roomId")
		return uuid.Nil, false
	}
	return id, true
}

// CreateRoomHandler opens a new room hosted by the caller. The body is optional.
func CreateRoomHandler(svc *battle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireIdentity(w, r)
		if !ok {
			return
		}
		var req createRoomRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad room request payload")
			return
		}

		room, err := svc.CreateRoom(r.Context(), id, req.Topic)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"room": room})
	}
}

// JoinRoomHandler seats the caller in the room with the given code.
func JoinRoomHandler(svc *battle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireIdentity(w, r)
		if !ok {
			return
		}
		var req joinRoomRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad join request payload")
			return
		}

		room, participant, err := svc.JoinRoom(r.Context(), req.RoomCode, id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"room":        room,
			"participant": participant,
		})
	}
}

// ReadyHandler toggles the caller's readiness.
func ReadyHandler(svc *battle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireIdentity(w, r)
		if !ok {
			return
		}
		var req readyRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad ready request payload")
			return
		}
		roomID, ok := parseRoomID(w, req.RoomID)
		if !ok {
			return
		}
		ready := true
		if req.Ready != nil {
			ready = *req.Ready
		}

		participant, err := svc.SetReady(r.Context(), roomID, id.UserID, ready)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"participant": participant})
	}
}

// SubmitPromptHandler records the caller's final prompt.
func SubmitPromptHandler(svc *battle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireIdentity(w, r)
		if !ok {
			return
		}
		var req submitPromptRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad submit request payload")
			return
		}
		roomID, ok := parseRoomID(w, req.RoomID)
		if !ok {
			return
		}

		participant, allSubmitted, err := svc.SubmitPrompt(r.Context(), roomID, id.UserID, req.Prompt)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"participant":  participant,
			"allSubmitted": allSubmitted,
		})
	}
}

// RoomStateHandler returns the room, its participants and its result.
func RoomStateHandler(svc *battle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID, ok := parseRoomID(w, r.PathValue("id"))
		if !ok {
			return
		}
		state, err := svc.RoomState(r.Context(), roomID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}
