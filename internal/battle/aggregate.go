package battle

import "github.com/jason-s-yu/promptbattle/internal/models"

// AllReady reports whether the room is full and every participant is ready.
func AllReady(room *models.GameRoom, parts []models.GameParticipant) bool {
	if room == nil || len(parts) != room.MaxPlayers {
		return false
	}
	for _, p := range parts {
		if !p.IsReady {
			return false
		}
	}
	return true
}

// AllSubmitted reports whether every participant has a prompt on record.
// An empty room has nothing to judge and is never complete.
func AllSubmitted(parts []models.GameParticipant) bool {
	if len(parts) == 0 {
		return false
	}
	for i := range parts {
		if !parts[i].HasSubmitted() {
			return false
		}
	}
	return true
}
