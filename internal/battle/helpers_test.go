package battle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/promptbattle/internal/cache"
	"github.com/jason-s-yu/promptbattle/internal/database"
	"github.com/jason-s-yu/promptbattle/internal/judge"
	"github.com/jason-s-yu/promptbattle/internal/models"
	"github.com/jason-s-yu/promptbattle/internal/realtime"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockEvaluator struct {
	mock.Mock
}

func (m *mockEvaluator) Evaluate(ctx context.Context, req judge.Request) (*judge.Verdict, error) {
	args := m.Called(ctx, req)
	v, _ := args.Get(0).(*judge.Verdict)
	return v, args.Error(1)
}

// fixedCodes hands out codes in order and repeats the last one.
type fixedCodes struct {
	mu    sync.Mutex
	codes []string
	next  int
}

func (f *fixedCodes) Generate() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.next
	if i >= len(f.codes) {
		i = len(f.codes) - 1
	}
	f.next++
	return f.codes[i]
}

type fixture struct {
	svc    *Service
	store  *database.MemoryStore
	eval   *mockEvaluator
	broker *realtime.MemoryBroker
	locker *cache.LocalLocker
}

var (
	host  = Identity{UserID: "user-host", Username: "Host"}
	guest = Identity{UserID: "user-guest", Username: "Guest"}
)

func testSettings() Settings {
	return Settings{
		MaxPlayers:       2,
		CountdownSeconds: 0,
		CodeAttempts:     10,
		MaxPromptLength:  200,
		JudgeTimeout:     5 * time.Second,
		JudgeLockTTL:     time.Minute,
	}
}

func newFixture(t *testing.T, settings Settings, codes ...string) *fixture {
	t.Helper()
	if len(codes) == 0 {
		codes = []string{"482913"}
	}
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	f := &fixture{
		store:  database.NewMemoryStore(),
		eval:   &mockEvaluator{},
		broker: realtime.NewMemoryBroker(logger),
		locker: cache.NewLocalLocker(),
	}
	f.svc = NewService(Deps{
		Store:     f.store,
		Evaluator: f.eval,
		Broker:    f.broker,
		Locker:    f.locker,
		Codes:     &fixedCodes{codes: codes},
		Logger:    logger,
	}, settings)
	return f
}

// waitingRoom creates a room hosted by host with guest seated.
func (f *fixture) waitingRoom(t *testing.T) *models.GameRoom {
	t.Helper()
	ctx := context.Background()
	room, err := f.svc.CreateRoom(ctx, host, "Space pirates")
	require.NoError(t, err)
	_, _, err = f.svc.JoinRoom(ctx, room.RoomCode, guest)
	require.NoError(t, err)
	return room
}

// playingRoom readies both players and reconciles the room into play.
func (f *fixture) playingRoom(t *testing.T) *models.GameRoom {
	t.Helper()
	ctx := context.Background()
	room := f.waitingRoom(t)
	_, err := f.svc.SetReady(ctx, room.ID, host.UserID, true)
	require.NoError(t, err)
	_, err = f.svc.SetReady(ctx, room.ID, guest.UserID, true)
	require.NoError(t, err)
	_, err = f.svc.Reconcile(ctx, room.ID)
	require.NoError(t, err)

	got, err := f.store.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	require.Equal(t, models.RoomPlaying, got.Status)
	return got
}

func (f *fixture) submitBoth(t *testing.T, roomID uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	_, _, err := f.svc.SubmitPrompt(ctx, roomID, host.UserID, "Prompt A")
	require.NoError(t, err)
	_, all, err := f.svc.SubmitPrompt(ctx, roomID, guest.UserID, "Prompt B")
	require.NoError(t, err)
	require.True(t, all)
}

// participant returns userID's stored row in roomID.
func (f *fixture) participant(t *testing.T, roomID uuid.UUID, userID string) models.GameParticipant {
	t.Helper()
	parts, err := f.store.ListParticipants(context.Background(), roomID)
	require.NoError(t, err)
	for _, p := range parts {
		if p.UserID == userID {
			return p
		}
	}
	t.Fatalf("%s is not in room %s", userID, roomID)
	return models.GameParticipant{}
}

func eval(label, c, e, cl, o int) judge.Evaluation {
	return judge.Evaluation{Participant: label, Creativity: c, Effectiveness: e, Clarity: cl, Originality: o, Feedback: "ok"}
}

// hostWins scores participant 1 (the host) above participant 2.
func hostWins() *judge.Verdict {
	return &judge.Verdict{
		Evaluations: []judge.Evaluation{eval(1, 8, 8, 8, 8), eval(2, 5, 5, 5, 5)},
		Winner:      1,
		Reasoning:   "Prompt A is more vivid",
	}
}
