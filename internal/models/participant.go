package models

import (
	"time"

	"github.com/google/uuid"
)

// GameParticipant is one user's membership in one room. Prompt is set at most once.
type GameParticipant struct {
	ID          uuid.UUID  `json:"id"`
	RoomID      uuid.UUID  `json:"room_id"`
	UserID      string     `json:"user_id"`
	IsReady     bool       `json:"is_ready"`
	Prompt      *string    `json:"prompt"`
	SubmittedAt *time.Time `json:"submitted_at"`
	JoinedAt    time.Time  `json:"joined_at"`
}

// HasSubmitted reports whether the participant has a final prompt on record.
func (p *GameParticipant) HasSubmitted() bool {
	return p.Prompt != nil
}
