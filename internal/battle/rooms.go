package battle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jason-s-yu/promptbattle/internal/database"
	"github.com/jason-s-yu/promptbattle/internal/models"
	"github.com/jason-s-yu/promptbattle/internal/realtime"
	"github.com/sirupsen/logrus"
)

const maxTopicLength = 200

// RoomState is everything a client needs to render a room.
type RoomState struct {
	Room         *models.GameRoom         `json:"room"`
	Participants []models.GameParticipant `json:"participants"`
	Result       *models.GameResult       `json:"result"`
}

// CreateRoom opens a waiting room hosted by the caller and seats the host.
// Codes that clash with an open room are regenerated up to CodeAttempts times.
func (s *Service) CreateRoom(ctx context.Context, host Identity, topic string) (*models.GameRoom, error) {
	if err := s.ensureProfile(ctx, host); err != nil {
		return nil, err
	}
	topic = strings.TrimSpace(topic)
	if utf8.RuneCountInString(topic) > maxTopicLength {
		return nil, fmt.Errorf("%w: topic longer than %d characters", ErrValidation, maxTopicLength)
	}
	if topic == "" {
		topic = RandomTopic()
	}

	for attempt := 1; attempt <= s.settings.CodeAttempts; attempt++ {
		room := &models.GameRoom{
			ID:                uuid.New(),
			RoomCode:          s.codes.Generate(),
			HostID:            host.UserID,
			Topic:             topic,
			Status:            models.RoomWaiting,
			MaxPlayers:        s.settings.MaxPlayers,
			CountdownDuration: s.settings.CountdownSeconds,
		}
		seat := &models.GameParticipant{ID: uuid.New(), UserID: host.UserID}

		err := s.store.CreateRoomWithHost(ctx, room, seat)
		switch {
		case err == nil:
			s.logger.WithFields(logrus.Fields{
				"room_id":   room.ID,
				"room_code": room.RoomCode,
				"user_id":   host.UserID,
			}).Info("room created")
			s.publish(ctx, realtime.EventInsert, realtime.TableRooms, room.ID, room)
			s.publish(ctx, realtime.EventInsert, realtime.TableParticipants, room.ID, seat)
			return room, nil
		case errors.Is(err, database.ErrCodeTaken):
			s.logger.WithField("attempt", attempt).Debug("room code taken, retrying")
			continue
		case errors.Is(err, database.ErrHostJoin):
			return nil, fmt.Errorf("%w: %v", ErrHostJoinFailed, err)
		default:
			return nil, internalErr("create room", err)
		}
	}
	return nil, fmt.Errorf("%w: no free room code after %d attempts", ErrInternal, s.settings.CodeAttempts)
}

// JoinRoom seats the caller in the open room with code.
func (s *Service) JoinRoom(ctx context.Context, code string, who Identity) (*models.GameRoom, *models.GameParticipant, error) {
	if who.UserID == "" {
		return nil, nil, ErrUnauthorized
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil, fmt.Errorf("%w: roomCode is required", ErrValidation)
	}
	if !ValidRoomCode(code) {
		return nil, nil, fmt.Errorf("%w: no room with code %s", ErrNotFound, code)
	}

	room, err := s.store.GetOpenRoomByCode(ctx, code)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: no room with code %s", ErrNotFound, code)
	}
	if err != nil {
		return nil, nil, internalErr("find room", err)
	}
	if room.Status != models.RoomWaiting {
		return nil, nil, fmt.Errorf("%w: room is %s", ErrInvalidState, room.Status)
	}
	if err := s.ensureProfile(ctx, who); err != nil {
		return nil, nil, err
	}

	p := &models.GameParticipant{ID: uuid.New(), RoomID: room.ID, UserID: who.UserID}
	if err := s.store.AddParticipant(ctx, p); err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			return nil, nil, fmt.Errorf("%w: no room with code %s", ErrNotFound, code)
		case errors.Is(err, database.ErrRoomStatus):
			return nil, nil, fmt.Errorf("%w: room is no longer waiting", ErrInvalidState)
		case errors.Is(err, database.ErrRoomFull):
			return nil, nil, ErrFull
		case errors.Is(err, database.ErrDuplicate):
			return nil, nil, ErrAlreadyJoined
		default:
			return nil, nil, internalErr("add participant", err)
		}
	}

	s.logger.WithFields(logrus.Fields{"room_id": room.ID, "user_id": who.UserID}).Info("participant joined")
	s.publish(ctx, realtime.EventInsert, realtime.TableParticipants, room.ID, p)
	s.coord.Notify(room.ID)
	return room, p, nil
}

// SetReady toggles the caller's readiness while the room is waiting.
func (s *Service) SetReady(ctx context.Context, roomID uuid.UUID, userID string, ready bool) (*models.GameParticipant, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	p, err := s.store.SetReady(ctx, roomID, userID, ready)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, s.missingRoomOrParticipant(ctx, roomID)
		}
		return nil, s.mapRoomErr(err, "set ready")
	}

	s.publish(ctx, realtime.EventUpdate, realtime.TableParticipants, roomID, p)
	s.coord.Notify(roomID)
	return p, nil
}

// SubmitPrompt records the caller's final prompt. allSubmitted reports whether the room is now complete.
func (s *Service) SubmitPrompt(ctx context.Context, roomID uuid.UUID, userID, prompt string) (p *models.GameParticipant, allSubmitted bool, err error) {
	if userID == "" {
		return nil, false, ErrUnauthorized
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, false, fmt.Errorf("%w: prompt is required", ErrValidation)
	}
	if s.settings.MaxPromptLength > 0 && utf8.RuneCountInString(prompt) > s.settings.MaxPromptLength {
		return nil, false, fmt.Errorf("%w: prompt longer than %d characters", ErrValidation, s.settings.MaxPromptLength)
	}

	p, err = s.store.SubmitPrompt(ctx, roomID, userID, prompt)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			return nil, false, s.missingRoomOrParticipant(ctx, roomID)
		case errors.Is(err, database.ErrDuplicate):
			return nil, false, ErrAlreadySubmitted
		default:
			return nil, false, s.mapRoomErr(err, "submit prompt")
		}
	}

	parts, err := s.store.ListParticipants(ctx, roomID)
	if err != nil {
		return nil, false, internalErr("list participants", err)
	}
	allSubmitted = AllSubmitted(parts)

	s.logger.WithFields(logrus.Fields{
		"room_id":       roomID,
		"user_id":       userID,
		"all_submitted": allSubmitted,
	}).Info("prompt submitted")
	s.publish(ctx, realtime.EventUpdate, realtime.TableParticipants, roomID, p)
	s.coord.Notify(roomID)
	return p, allSubmitted, nil
}

// BeginCountdown moves a waiting room into countdown.
func (s *Service) BeginCountdown(ctx context.Context, roomID uuid.UUID) (*models.GameRoom, error) {
	return s.transition(ctx, roomID, models.RoomCountdown)
}

// StartPlaying moves a waiting or counting-down room into play.
func (s *Service) StartPlaying(ctx context.Context, roomID uuid.UUID) (*models.GameRoom, error) {
	return s.transition(ctx, roomID, models.RoomPlaying)
}

// FinishRoom closes a playing room. Its code becomes reusable.
func (s *Service) FinishRoom(ctx context.Context, roomID uuid.UUID) (*models.GameRoom, error) {
	return s.transition(ctx, roomID, models.RoomFinished)
}

func (s *Service) transition(ctx context.Context, roomID uuid.UUID, to models.RoomStatus) (*models.GameRoom, error) {
	room, err := s.store.TransitionRoom(ctx, roomID, to, to.Predecessors()...)
	if err != nil {
		if errors.Is(err, database.ErrRoomStatus) {
			return nil, fmt.Errorf("%w: cannot move room to %s", ErrInvalidState, to)
		}
		return nil, s.mapRoomErr(err, "transition room")
	}
	s.roomLog(roomID).WithField("status", to).Info("room status changed")
	s.publish(ctx, realtime.EventUpdate, realtime.TableRooms, roomID, room)
	return room, nil
}

// RoomState returns the room with its participants and result, if judged.
func (s *Service) RoomState(ctx context.Context, roomID uuid.UUID) (*RoomState, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, s.mapRoomErr(err, "get room")
	}
	parts, err := s.store.ListParticipants(ctx, roomID)
	if err != nil {
		return nil, internalErr("list participants", err)
	}
	if parts == nil {
		parts = []models.GameParticipant{}
	}
	state := &RoomState{Room: room, Participants: parts}

	result, err := s.store.GetResult(ctx, roomID)
	switch {
	case err == nil:
		state.Result = result
	case !errors.Is(err, database.ErrNotFound):
		return nil, internalErr("get result", err)
	}
	return state, nil
}

// missingRoomOrParticipant tells a missing room apart from a caller who is not seated in it.
func (s *Service) missingRoomOrParticipant(ctx context.Context, roomID uuid.UUID) error {
	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		return s.mapRoomErr(err, "get room")
	}
	return ErrNotParticipant
}

func (s *Service) mapRoomErr(err error, op string) error {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return fmt.Errorf("%w: room", ErrNotFound)
	case errors.Is(err, database.ErrRoomStatus):
		return fmt.Errorf("%w: %s not allowed in the room's current status", ErrInvalidState, op)
	default:
		return internalErr(op, err)
	}
}
