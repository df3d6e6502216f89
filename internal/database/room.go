package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/promptbattle/internal/models"
)

// name of the partial unique index over room codes of non-finished rooms
const activeCodeIndex = "game_rooms_active_code_idx"

const roomColumns = `
	id, room_code, host_id, topic, status, max_players, countdown_duration,
	created_at, countdown_at, started_at, finished_at`

func scanRoom(row pgx.Row) (*models.GameRoom, error) {
	var r models.GameRoom
	err := row.Scan(
		&r.ID, &r.RoomCode, &r.HostID, &r.Topic, &r.Status, &r.MaxPlayers, &r.CountdownDuration,
		&r.CreatedAt, &r.CountdownAt, &r.StartedAt, &r.FinishedAt,
	)
	if err != nil {
		if noRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// CreateRoomWithHost inserts the room and its host participant in one transaction.
// A room code clash returns ErrCodeTaken; a failed host insert returns ErrHostJoin and
// leaves no room behind.
func (s *Store) CreateRoomWithHost(ctx context.Context, room *models.GameRoom, host *models.GameParticipant) error {
	insRoom := `
		INSERT INTO game_rooms (id, room_code, host_id, topic, status, max_players, countdown_duration)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + roomColumns
	insHost := `
		INSERT INTO game_participants (id, room_id, user_id, is_ready)
		VALUES ($1, $2, $3, false)
		RETURNING ` + participantColumns

	return s.inTx(ctx, func(tx pgx.Tx) error {
		created, err := scanRoom(tx.QueryRow(ctx, insRoom,
			room.ID, room.RoomCode, room.HostID, room.Topic, string(room.Status),
			room.MaxPlayers, room.CountdownDuration,
		))
		if err != nil {
			if name, ok := uniqueConstraint(err); ok && name == activeCodeIndex {
				return ErrCodeTaken
			}
			return fmt.Errorf("insert room: %w", err)
		}

		p, err := scanParticipant(tx.QueryRow(ctx, insHost, host.ID, created.ID, host.UserID))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrHostJoin, err)
		}

		*room = *created
		*host = *p
		return nil
	})
}

// GetRoom fetches a room by id.
func (s *Store) GetRoom(ctx context.Context, id uuid.UUID) (*models.GameRoom, error) {
	q := `SELECT ` + roomColumns + ` FROM game_rooms WHERE id = $1`
	return scanRoom(s.pool.QueryRow(ctx, q, id))
}

// GetOpenRoomByCode fetches the non-finished room holding code.
func (s *Store) GetOpenRoomByCode(ctx context.Context, code string) (*models.GameRoom, error) {
	q := `
		SELECT ` + roomColumns + `
		FROM game_rooms
		WHERE room_code = $1 AND status <> 'finished'
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanRoom(s.pool.QueryRow(ctx, q, code))
}

// ListRoomsByStatus returns rooms currently in any of statuses, oldest first.
func (s *Store) ListRoomsByStatus(ctx context.Context, statuses ...models.RoomStatus) ([]models.GameRoom, error) {
	q := `
		SELECT ` + roomColumns + `
		FROM game_rooms
		WHERE status = ANY($1)
		ORDER BY created_at ASC
	`
	rows, err := s.pool.Query(ctx, q, statusStrings(statuses))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.GameRoom
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// TransitionRoom moves a room to `to` if its current status is one of `from`.
// It stamps countdown_at, started_at or finished_at according to the target.
// Returns ErrRoomStatus when the room exists but is in another status.
func (s *Store) TransitionRoom(ctx context.Context, id uuid.UUID, to models.RoomStatus, from ...models.RoomStatus) (*models.GameRoom, error) {
	q := `
		UPDATE game_rooms
		SET status       = $2,
		    countdown_at = CASE WHEN $2 = 'countdown' THEN NOW() ELSE countdown_at END,
		    started_at   = CASE WHEN $2 = 'playing'   THEN NOW() ELSE started_at END,
		    finished_at  = CASE WHEN $2 = 'finished'  THEN NOW() ELSE finished_at END
		WHERE id = $1 AND status = ANY($3)
		RETURNING ` + roomColumns

	room, err := scanRoom(s.pool.QueryRow(ctx, q, id, string(to), statusStrings(from)))
	if errors.Is(err, ErrNotFound) {
		if _, getErr := s.GetRoom(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrRoomStatus
	}
	if err != nil {
		return nil, fmt.Errorf("transition room %v to %s: %w", id, to, err)
	}
	return room, nil
}

// lockRoom takes a row lock on the room for the rest of tx.
func lockRoom(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.GameRoom, error) {
	q := `SELECT ` + roomColumns + ` FROM game_rooms WHERE id = $1 FOR UPDATE`
	return scanRoom(tx.QueryRow(ctx, q, id))
}

func statusStrings(statuses []models.RoomStatus) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}
