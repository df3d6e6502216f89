// Package battle runs the room lifecycle: creation, joining, readiness, submissions and judging.
package battle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/promptbattle/internal/judge"
	"github.com/jason-s-yu/promptbattle/internal/models"
	"github.com/jason-s-yu/promptbattle/internal/realtime"
	"github.com/sirupsen/logrus"
)

// Store is the persistence the service needs. database.Store and database.MemoryStore implement it.
type Store interface {
	CreateProfile(ctx context.Context, p *models.Profile) error
	EnsureProfile(ctx context.Context, id, username string) (*models.Profile, error)
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	TopProfiles(ctx context.Context, limit int) ([]models.Profile, error)

	CreateRoomWithHost(ctx context.Context, room *models.GameRoom, host *models.GameParticipant) error
	GetRoom(ctx context.Context, id uuid.UUID) (*models.GameRoom, error)
	GetOpenRoomByCode(ctx context.Context, code string) (*models.GameRoom, error)
	ListRoomsByStatus(ctx context.Context, statuses ...models.RoomStatus) ([]models.GameRoom, error)
	TransitionRoom(ctx context.Context, id uuid.UUID, to models.RoomStatus, from ...models.RoomStatus) (*models.GameRoom, error)

	AddParticipant(ctx context.Context, p *models.GameParticipant) error
	ListParticipants(ctx context.Context, roomID uuid.UUID) ([]models.GameParticipant, error)
	SetReady(ctx context.Context, roomID uuid.UUID, userID string, ready bool) (*models.GameParticipant, error)
	SubmitPrompt(ctx context.Context, roomID uuid.UUID, userID, prompt string) (*models.GameParticipant, error)

	SaveResult(ctx context.Context, result *models.GameResult) error
	GetResult(ctx context.Context, roomID uuid.UUID) (*models.GameResult, error)
	ApplyOutcome(ctx context.Context, resultID uuid.UUID, winnerID *string, loserIDs []string) (bool, error)
	ListRoomsPendingStats(ctx context.Context) ([]uuid.UUID, error)
}

// Locker guards judging of a room across server instances.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// LeaderboardCache caches leaderboard listings by limit.
type LeaderboardCache interface {
	Get(ctx context.Context, limit int) ([]models.Profile, bool, error)
	Set(ctx context.Context, limit int, profiles []models.Profile) error
	Invalidate(ctx context.Context) error
}

// Settings are the game tunables.
type Settings struct {
	MaxPlayers       int
	CountdownSeconds int
	CodeAttempts     int
	MaxPromptLength  int
	JudgeTimeout     time.Duration
	JudgeLockTTL     time.Duration
}

// Deps are the collaborators of a Service. Leaderboard may be nil.
type Deps struct {
	Store       Store
	Evaluator   judge.Evaluator
	Broker      realtime.Broker
	Locker      Locker
	Codes       CodeGenerator
	Leaderboard LeaderboardCache
	Logger      *logrus.Logger
}

// Service is the server-side authority over every room.
type Service struct {
	store       Store
	evaluator   judge.Evaluator
	broker      realtime.Broker
	locker      Locker
	codes       CodeGenerator
	leaderboard LeaderboardCache
	logger      *logrus.Logger
	settings    Settings

	coord *Coordinator
	now   func() time.Time
}

// NewService wires a Service and its Coordinator. The coordinator does nothing until Start.
func NewService(deps Deps, settings Settings) *Service {
	if deps.Codes == nil {
		deps.Codes = DigitCodes{}
	}
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	if settings.CodeAttempts < 1 {
		settings.CodeAttempts = 1
	}
	s := &Service{
		store:       deps.Store,
		evaluator:   deps.Evaluator,
		broker:      deps.Broker,
		locker:      deps.Locker,
		codes:       deps.Codes,
		leaderboard: deps.Leaderboard,
		logger:      deps.Logger,
		settings:    settings,
		now:         time.Now,
	}
	s.coord = newCoordinator(s)
	return s
}

// Coordinator returns the per-room worker pool driving automatic transitions.
func (s *Service) Coordinator() *Coordinator {
	return s.coord
}

// Broker returns the realtime broker events are published on.
func (s *Service) Broker() realtime.Broker {
	return s.broker
}

func (s *Service) roomLog(roomID uuid.UUID) *logrus.Entry {
	return s.logger.WithField("room_id", roomID)
}

// publish emits a row change. Feed failures never fail the operation that caused them.
func (s *Service) publish(ctx context.Context, typ, table string, roomID uuid.UUID, record any) {
	if s.broker == nil {
		return
	}
	ev, err := realtime.NewEvent(typ, table, roomID, record)
	if err == nil {
		err = s.broker.Publish(ctx, ev)
	}
	if err != nil {
		s.roomLog(roomID).WithError(err).WithField("table", table).Warn("failed to publish realtime event")
	}
}
