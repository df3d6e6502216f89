// internal/models/room.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomStatus is the lifecycle state of a GameRoom. It only ever moves forward.
type RoomStatus string

const (
	RoomWaiting   RoomStatus = "waiting"
	RoomCountdown RoomStatus = "countdown"
	RoomPlaying   RoomStatus = "playing"
	RoomFinished  RoomStatus = "finished"
)

// legal forward edges of the room state machine
var roomTransitions = map[RoomStatus][]RoomStatus{
	RoomWaiting:   {RoomCountdown, RoomPlaying},
	RoomCountdown: {RoomPlaying},
	RoomPlaying:   {RoomFinished},
}

// Valid reports whether s is a known status.
func (s RoomStatus) Valid() bool {
	switch s {
	case RoomWaiting, RoomCountdown, RoomPlaying, RoomFinished:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s RoomStatus) CanTransitionTo(next RoomStatus) bool {
	for _, n := range roomTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Predecessors returns every status that may legally move to s.
func (s RoomStatus) Predecessors() []RoomStatus {
	var from []RoomStatus
	for prev, nexts := range roomTransitions {
		for _, n := range nexts {
			if n == s {
				from = append(from, prev)
			}
		}
	}
	return from
}

// GameRoom is one battle session.
type GameRoom struct {
	ID                uuid.UUID  `json:"id"`
	RoomCode          string     `json:"room_code"`
	HostID            string     `json:"host_id"`
	Topic             string     `json:"topic"`
	Status            RoomStatus `json:"status"`
	MaxPlayers        int        `json:"max_players"`
	CountdownDuration int        `json:"countdown_duration"` // seconds
	CreatedAt         time.Time  `json:"created_at"`
	CountdownAt       *time.Time `json:"countdown_at,omitempty"`
	StartedAt         *time.Time `json:"started_at"`
	FinishedAt        *time.Time `json:"finished_at"`
}

// CountdownEndsAt returns when a room in countdown should start playing.
func (r *GameRoom) CountdownEndsAt() (time.Time, bool) {
	if r.Status != RoomCountdown || r.CountdownAt == nil {
		return time.Time{}, false
	}
	return r.CountdownAt.Add(time.Duration(r.CountdownDuration) * time.Second), true
}
