package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/promptbattle/internal/models"
)

const participantColumns = `id, room_id, user_id, is_ready, prompt, submitted_at, joined_at`

func scanParticipant(row pgx.Row) (*models.GameParticipant, error) {
	var p models.GameParticipant
	err := row.Scan(&p.ID, &p.RoomID, &p.UserID, &p.IsReady, &p.Prompt, &p.SubmittedAt, &p.JoinedAt)
	if err != nil {
		if noRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// AddParticipant joins p.UserID to p.RoomID. With the room row locked it checks, in order:
// the room exists (ErrNotFound), is waiting (ErrRoomStatus), has a free seat (ErrRoomFull),
// and the user is not already in it (ErrDuplicate).
func (s *Store) AddParticipant(ctx context.Context, p *models.GameParticipant) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		room, err := lockRoom(ctx, tx, p.RoomID)
		if err != nil {
			return err
		}
		if room.Status != models.RoomWaiting {
			return ErrRoomStatus
		}

		var count int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM game_participants WHERE room_id = $1`, p.RoomID).Scan(&count); err != nil {
			return fmt.Errorf("count participants: %w", err)
		}
		if count >= room.MaxPlayers {
			return ErrRoomFull
		}

		q := `
			INSERT INTO game_participants (id, room_id, user_id, is_ready)
			VALUES ($1, $2, $3, false)
			RETURNING ` + participantColumns
		created, err := scanParticipant(tx.QueryRow(ctx, q, p.ID, p.RoomID, p.UserID))
		if err != nil {
			if _, ok := uniqueConstraint(err); ok {
				return ErrDuplicate
			}
			return fmt.Errorf("insert participant: %w", err)
		}
		*p = *created
		return nil
	})
}

// ListParticipants returns a room's participants ordered by join time.
func (s *Store) ListParticipants(ctx context.Context, roomID uuid.UUID) ([]models.GameParticipant, error) {
	q := `
		SELECT ` + participantColumns + `
		FROM game_participants
		WHERE room_id = $1
		ORDER BY joined_at ASC, id ASC
	`
	rows, err := s.pool.Query(ctx, q, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.GameParticipant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// SetReady updates is_ready while the room is still waiting.
func (s *Store) SetReady(ctx context.Context, roomID uuid.UUID, userID string, ready bool) (*models.GameParticipant, error) {
	var out *models.GameParticipant
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		room, err := lockRoom(ctx, tx, roomID)
		if err != nil {
			return err
		}
		if room.Status != models.RoomWaiting {
			return ErrRoomStatus
		}

		q := `
			UPDATE game_participants
			SET is_ready = $3
			WHERE room_id = $1 AND user_id = $2
			RETURNING ` + participantColumns
		out, err = scanParticipant(tx.QueryRow(ctx, q, roomID, userID, ready))
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitPrompt records the participant's final prompt while the room is playing.
// The checks run under the room lock: not a participant (ErrNotFound), already submitted
// (ErrDuplicate, whatever the room status), room not playing (ErrRoomStatus).
func (s *Store) SubmitPrompt(ctx context.Context, roomID uuid.UUID, userID, prompt string) (*models.GameParticipant, error) {
	var out *models.GameParticipant
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		room, err := lockRoom(ctx, tx, roomID)
		if err != nil {
			return err
		}

		getQ := `SELECT ` + participantColumns + ` FROM game_participants WHERE room_id = $1 AND user_id = $2`
		current, err := scanParticipant(tx.QueryRow(ctx, getQ, roomID, userID))
		if err != nil {
			return err
		}
		if current.HasSubmitted() {
			return ErrDuplicate
		}
		if room.Status != models.RoomPlaying {
			return ErrRoomStatus
		}

		q := `
			UPDATE game_participants
			SET prompt = $2, submitted_at = NOW()
			WHERE id = $1 AND prompt IS NULL
			RETURNING ` + participantColumns
		out, err = scanParticipant(tx.QueryRow(ctx, q, current.ID, prompt))
		if errors.Is(err, ErrNotFound) {
			return ErrDuplicate
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
