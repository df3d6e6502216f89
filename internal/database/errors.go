package database

import "errors"

// Store errors. Callers match them with errors.Is.
var (
	// ErrNotFound means the requested row does not exist.
	ErrNotFound = errors.New("database: record not found")
	// ErrDuplicate means a unique constraint rejected the write.
	ErrDuplicate = errors.New("database: duplicate entry")
	// ErrCodeTaken means another open room already holds the room code.
	ErrCodeTaken = errors.New("database: room code already in use")
	// ErrRoomStatus means the room was not in a status that allows the write.
	ErrRoomStatus = errors.New("database: room status does not allow this change")
	// ErrRoomFull means the room already holds max_players participants.
	ErrRoomFull = errors.New("database: room is full")
	// ErrHostJoin means the host participant row could not be written; the room insert was rolled back.
	ErrHostJoin = errors.New("database: host participant insert failed")
)
