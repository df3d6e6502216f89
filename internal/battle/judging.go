package battle

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/promptbattle/internal/database"
	"github.com/jason-s-yu/promptbattle/internal/judge"
	"github.com/jason-s-yu/promptbattle/internal/models"
	"github.com/jason-s-yu/promptbattle/internal/realtime"
	"github.com/sirupsen/logrus"
)

func judgeLockKey(roomID uuid.UUID) string {
	return "judge:" + roomID.String()
}

// JudgeRoom scores a playing room, persists the result, finishes the room and counts
// wins and losses. Only one caller across all instances gets past the judge lock; the
// unique result per room backs it up.
func (s *Service) JudgeRoom(ctx context.Context, roomID uuid.UUID) (*models.GameResult, error) {
	log := s.roomLog(roomID)

	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, s.mapRoomErr(err, "get room")
	}

	release, ok, err := s.locker.Acquire(ctx, judgeLockKey(roomID), s.settings.JudgeLockTTL)
	if err != nil {
		return nil, internalErr("acquire judge lock", err)
	}
	if !ok {
		return nil, ErrJudgingInProgress
	}
	defer release()

	parts, err := s.store.ListParticipants(ctx, roomID)
	if err != nil {
		return nil, internalErr("list participants", err)
	}
	if len(parts) == 0 {
		return nil, ErrNoParticipants
	}

	if _, err := s.store.GetResult(ctx, roomID); err == nil {
		return nil, ErrAlreadyJudged
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, internalErr("get result", err)
	}

	// re-read under the lock; the room may have moved since the first read
	if room, err = s.store.GetRoom(ctx, roomID); err != nil {
		return nil, s.mapRoomErr(err, "get room")
	}
	if room.Status != models.RoomPlaying {
		return nil, fmt.Errorf("%w: room is %s, not playing", ErrInvalidState, room.Status)
	}

	req := BuildJudgeRequest(room, parts)
	if !req.HasSubmissions() {
		return nil, ErrNoSubmissions
	}

	log.WithField("participants", len(parts)).Info("judging room")
	evalCtx, cancel := context.WithTimeout(ctx, s.settings.JudgeTimeout)
	verdict, err := s.evaluator.Evaluate(evalCtx, req)
	cancel()
	if err != nil {
		log.WithError(err).Error("judge call failed")
		if errors.Is(err, judge.ErrInvalidResponse) {
			return nil, fmt.Errorf("%w: %v", ErrJudgeResponse, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if err := verdict.Validate(req); err != nil {
		log.WithError(err).Error("judge verdict rejected")
		return nil, fmt.Errorf("%w: %v", ErrJudgeResponse, err)
	}

	// a prompt that arrived while the model ran would be scored as missing
	fresh, err := s.store.ListParticipants(ctx, roomID)
	if err != nil {
		return nil, internalErr("list participants", err)
	}
	if submissionsChanged(parts, fresh) {
		log.Warn("prompts changed while judging, verdict discarded")
		s.coord.Notify(roomID)
		return nil, ErrSubmissionsChanged
	}

	result := ScoreVerdict(room, parts, verdict)
	if err := s.store.SaveResult(ctx, result); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrAlreadyJudged
		}
		return nil, internalErr("save result", err)
	}
	log.WithField("winner_id", derefOr(result.WinnerID, "")).Info("room judged")
	s.publish(ctx, realtime.EventInsert, realtime.TableResults, roomID, result)

	// the result is durable from here on; later failures are left for the sweeper
	if _, err := s.FinishRoom(ctx, roomID); err != nil {
		log.WithError(err).Error("failed to finish judged room")
	}
	if err := s.applyOutcome(ctx, result, parts); err != nil {
		log.WithError(err).Error("failed to apply judged outcome")
	}
	return result, nil
}

// submissionsChanged reports whether the seats or their submitted prompts differ.
func submissionsChanged(before, after []models.GameParticipant) bool {
	if len(before) != len(after) {
		return true
	}
	for i := range before {
		if before[i].ID != after[i].ID || before[i].HasSubmitted() != after[i].HasSubmitted() {
			return true
		}
	}
	return false
}

// BuildJudgeRequest labels participants 1..n in join order.
func BuildJudgeRequest(room *models.GameRoom, parts []models.GameParticipant) judge.Request {
	req := judge.Request{Topic: room.Topic}
	for i, p := range parts {
		req.Submissions = append(req.Submissions, judge.Submission{Label: i + 1, Prompt: p.Prompt})
	}
	return req
}

// ScoreVerdict turns a validated verdict into a result. Totals are summed locally and the
// winner is the best total among participants who submitted; ties go to the model's pick
// when it is among them, otherwise to the earliest joiner.
func ScoreVerdict(room *models.GameRoom, parts []models.GameParticipant, v *judge.Verdict) *models.GameResult {
	result := &models.GameResult{
		ID:             uuid.New(),
		RoomID:         room.ID,
		JudgeReasoning: v.Reasoning,
	}

	best := -1
	var tied []int
	for i, p := range parts {
		label := i + 1
		e, _ := v.Evaluation(label)
		sc := models.ParticipantScore{
			ResultID:           result.ID,
			ParticipantID:      p.ID,
			UserID:             p.UserID,
			CreativityScore:    e.Creativity,
			EffectivenessScore: e.Effectiveness,
			ClarityScore:       e.Clarity,
			OriginalityScore:   e.Originality,
			Feedback:           e.Feedback,
		}
		sc.TotalScore = sc.Sum()
		result.Scores = append(result.Scores, sc)

		if !p.HasSubmitted() {
			continue
		}
		switch {
		case sc.TotalScore > best:
			best = sc.TotalScore
			tied = []int{label}
		case sc.TotalScore == best:
			tied = append(tied, label)
		}
	}

	if len(tied) > 0 {
		winner := tied[0]
		for _, label := range tied {
			if label == v.Winner {
				winner = label
				break
			}
		}
		id := parts[winner-1].UserID
		result.WinnerID = &id
	}
	return result
}

// applyOutcome counts the result into the profiles exactly once.
func (s *Service) applyOutcome(ctx context.Context, result *models.GameResult, parts []models.GameParticipant) error {
	var losers []string
	for _, p := range parts {
		if result.WinnerID == nil || p.UserID != *result.WinnerID {
			losers = append(losers, p.UserID)
		}
	}
	applied, err := s.store.ApplyOutcome(ctx, result.ID, result.WinnerID, losers)
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}
	result.StatsApplied = true
	s.roomLog(result.RoomID).WithFields(logrus.Fields{"losers": len(losers)}).Info("outcome applied")
	if s.leaderboard != nil {
		if err := s.leaderboard.Invalidate(ctx); err != nil {
			s.logger.WithError(err).Warn("leaderboard cache invalidation failed")
		}
	}
	return nil
}

func derefOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
