package models

import "time"

// Profile is a player identity. Wins and Losses are only ever changed by judging.
type Profile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Wins      int       `json:"wins"`
	Losses    int       `json:"losses"`
	CreatedAt time.Time `json:"created_at"`
}
