package models

import (
	"time"

	"github.com/google/uuid"
)

// GameResult is the judged outcome of a room. There is at most one per room.
type GameResult struct {
	ID             uuid.UUID          `json:"id"`
	RoomID         uuid.UUID          `json:"room_id"`
	WinnerID       *string            `json:"winner_id"`
	JudgeReasoning string             `json:"judge_reasoning"`
	CreatedAt      time.Time          `json:"created_at"`
	Scores         []ParticipantScore `json:"scores,omitempty"`

	// StatsApplied is flipped once the win/loss counters have been incremented.
	StatsApplied bool `json:"-"`
}

// ParticipantScore is the per-participant breakdown of a GameResult.
type ParticipantScore struct {
	ResultID           uuid.UUID `json:"result_id"`
	ParticipantID      uuid.UUID `json:"participant_id"`
	UserID             string    `json:"user_id"`
	CreativityScore    int       `json:"creativity_score"`
	EffectivenessScore int       `json:"effectiveness_score"`
	ClarityScore       int       `json:"clarity_score"`
	OriginalityScore   int       `json:"originality_score"`
	TotalScore         int       `json:"total_score"`
	Feedback           string    `json:"feedback"`
}

// Sum returns the sum of the four sub-scores.
func (s ParticipantScore) Sum() int {
	return s.CreativityScore + s.EffectivenessScore + s.ClarityScore + s.OriginalityScore
}
