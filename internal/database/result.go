// internal/database/result.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/promptbattle/internal/models"
)

const resultColumns = `id, room_id, winner_id, judge_reasoning, stats_applied, created_at`

func scanResult(row pgx.Row) (*models.GameResult, error) {
	var r models.GameResult
	if err := row.Scan(&r.ID, &r.RoomID, &r.WinnerID, &r.JudgeReasoning, &r.StatsApplied, &r.CreatedAt); err != nil {
		if noRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// SaveResult persists the result row and its per-participant scores in one transaction.
// A second result for the same room is rejected by the unique room_id constraint and
// reported as ErrDuplicate.
func (s *Store) SaveResult(ctx context.Context, result *models.GameResult) error {
	insResult := `
		INSERT INTO game_results (id, room_id, winner_id, judge_reasoning)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + resultColumns
	insScore := `
		INSERT INTO participant_scores (
			result_id, participant_id, user_id,
			creativity_score, effectiveness_score, clarity_score, originality_score,
			total_score, feedback
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	return s.inTx(ctx, func(tx pgx.Tx) error {
		saved, err := scanResult(tx.QueryRow(ctx, insResult,
			result.ID, result.RoomID, result.WinnerID, result.JudgeReasoning,
		))
		if err != nil {
			if _, ok := uniqueConstraint(err); ok {
				return ErrDuplicate
			}
			return fmt.Errorf("insert result: %w", err)
		}

		batch := &pgx.Batch{}
		for i := range result.Scores {
			sc := &result.Scores[i]
			sc.ResultID = saved.ID
			batch.Queue(insScore,
				sc.ResultID, sc.ParticipantID, sc.UserID,
				sc.CreativityScore, sc.EffectivenessScore, sc.ClarityScore, sc.OriginalityScore,
				sc.TotalScore, sc.Feedback,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert participant scores: %w", err)
		}

		saved.Scores = result.Scores
		*result = *saved
		return nil
	})
}

// GetResult fetches the result of a room together with its scores.
func (s *Store) GetResult(ctx context.Context, roomID uuid.UUID) (*models.GameResult, error) {
	q := `SELECT ` + resultColumns + ` FROM game_results WHERE room_id = $1`
	result, err := scanResult(s.pool.QueryRow(ctx, q, roomID))
	if err != nil {
		return nil, err
	}

	scoresQ := `
		SELECT s.result_id, s.participant_id, s.user_id,
		       s.creativity_score, s.effectiveness_score, s.clarity_score, s.originality_score,
		       s.total_score, s.feedback
		FROM participant_scores s
		JOIN game_participants p ON p.id = s.participant_id
		WHERE s.result_id = $1
		ORDER BY s.total_score DESC, p.joined_at ASC
	`
	rows, err := s.pool.Query(ctx, scoresQ, result.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var sc models.ParticipantScore
		if err := rows.Scan(
			&sc.ResultID, &sc.ParticipantID, &sc.UserID,
			&sc.CreativityScore, &sc.EffectivenessScore, &sc.ClarityScore, &sc.OriginalityScore,
			&sc.TotalScore, &sc.Feedback,
		); err != nil {
			return nil, err
		}
		result.Scores = append(result.Scores, sc)
	}
	return result, rows.Err()
}

// ApplyOutcome increments the winner's wins and every loser's losses exactly once per result.
// It reports false when the outcome had already been applied.
func (s *Store) ApplyOutcome(ctx context.Context, resultID uuid.UUID, winnerID *string, loserIDs []string) (bool, error) {
	applied := false
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, `
			UPDATE game_results SET stats_applied = true
			WHERE id = $1 AND stats_applied = false
		`, resultID)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return nil
		}

		if winnerID != nil {
			if _, err := tx.Exec(ctx, `UPDATE profiles SET wins = wins + 1 WHERE id = $1`, *winnerID); err != nil {
				return fmt.Errorf("increment wins: %w", err)
			}
		}
		if len(loserIDs) > 0 {
			if _, err := tx.Exec(ctx, `UPDATE profiles SET losses = losses + 1 WHERE id = ANY($1)`, loserIDs); err != nil {
				return fmt.Errorf("increment losses: %w", err)
			}
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// ListRoomsPendingStats returns finished rooms whose result has not been counted yet.
func (s *Store) ListRoomsPendingStats(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `SELECT room_id FROM game_results WHERE stats_applied = false`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
