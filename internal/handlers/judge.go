package handlers

import (
	"net/http"

	"github.com/jason-s-yu/promptbattle/internal/battle"
)

type judgeRequest struct {
	RoomID string `json:"roomId"`
}

// JudgeHandler judges a playing room on demand. Rooms where everyone submitted are judged
// automatically; this also covers rooms where someone never submits.
func JudgeHandler(svc *battle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireIdentity(w, r); !ok {
			return
		}
		var req judgeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad judge request payload")
			return
		}
		roomID, ok := parseRoomID(w, req.RoomID)
		if !ok {
			return
		}

		result, err := svc.JudgeRoom(r.Context(), roomID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"result":  result,
		})
	}
}
