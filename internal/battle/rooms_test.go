package battle

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/promptbattle/internal/database"
	"github.com/jason-s-yu/promptbattle/internal/models"
	"github.com/jason-s-yu/promptbattle/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRoomSeatsHost(t *testing.T) {
	f := newFixture(t, testSettings())
	ctx := context.Background()

	room, err := f.svc.CreateRoom(ctx, host, "")
	require.NoError(t, err)
	assert.Equal(t, "482913", room.RoomCode)
	assert.Equal(t, models.RoomWaiting, room.Status)
	assert.Equal(t, host.UserID, room.HostID)
	assert.Equal(t, 2, room.MaxPlayers)
	assert.NotEmpty(t, room.Topic, "a topic is picked when none is given")

	parts, err := f.store.ListParticipants(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, host.UserID, parts[0].UserID)
	assert.False(t, parts[0].IsReady)

	p, err := f.svc.Profile(ctx, host.UserID)
	require.NoError(t, err)
	assert.Equal(t, "Host", p.Username)
}

func TestCreateRoomRequiresIdentity(t *testing.T) {
	f := newFixture(t, testSettings())
	_, err := f.svc.CreateRoom(context.Background(), Identity{}, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCreateRoomRetriesTakenCode(t *testing.T) {
	f := newFixture(t, testSettings(), "482913", "482913", "100200")
	ctx := context.Background()

	first, err := f.svc.CreateRoom(ctx, host, "")
	require.NoError(t, err)
	second, err := f.svc.CreateRoom(ctx, guest, "")
	require.NoError(t, err)

	assert.Equal(t, "482913", first.RoomCode)
	assert.Equal(t, "100200", second.RoomCode)
}

func TestCreateRoomGivesUpAfterAttempts(t *testing.T) {
	settings := testSettings()
	settings.CodeAttempts = 3
	f := newFixture(t, settings, "482913")
	ctx := context.Background()

	_, err := f.svc.CreateRoom(ctx, host, "")
	require.NoError(t, err)
	_, err = f.svc.CreateRoom(ctx, guest, "")
	assert.ErrorIs(t, err, ErrInternal)
}

func TestFinishedRoomCodeIsReusable(t *testing.T) {
	f := newFixture(t, testSettings(), "482913")
	ctx := context.Background()

	room := f.playingRoom(t)
	_, err := f.svc.FinishRoom(ctx, room.ID)
	require.NoError(t, err)

	again, err := f.svc.CreateRoom(ctx, host, "")
	require.NoError(t, err)
	assert.Equal(t, "482913", again.RoomCode)
	assert.NotEqual(t, room.ID, again.ID)
}

// hostJoinFailStore fails the host seat so the room insert must roll back.
type hostJoinFailStore struct {
	*database.MemoryStore
}

func (s hostJoinFailStore) CreateRoomWithHost(context.Context, *models.GameRoom, *models.GameParticipant) error {
	return database.ErrHostJoin
}

func TestCreateRoomHostJoinFailure(t *testing.T) {
	f := newFixture(t, testSettings())
	f.svc.store = hostJoinFailStore{f.store}

	_, err := f.svc.CreateRoom(context.Background(), host, "")
	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, ErrHostJoinFailed)

	rooms, err := f.store.ListRoomsByStatus(context.Background(), models.RoomWaiting)
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestJoinRoom(t *testing.T) {
	f := newFixture(t, testSettings())
	ctx := context.Background()
	room, err := f.svc.CreateRoom(ctx, host, "")
	require.NoError(t, err)

	joined, p, err := f.svc.JoinRoom(ctx, "482913", guest)
	require.NoError(t, err)
	assert.Equal(t, room.ID, joined.ID)
	assert.Equal(t, guest.UserID, p.UserID)

	parts, _ := f.store.ListParticipants(ctx, room.ID)
	assert.Len(t, parts, 2)
}

func TestJoinRoomErrors(t *testing.T) {
	ctx := context.Background()
	third := Identity{UserID: "user-third", Username: "Third"}

	t.Run("unknown code", func(t *testing.T) {
		f := newFixture(t, testSettings())
		_, _, err := f.svc.JoinRoom(ctx, "000000", guest)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("malformed code", func(t *testing.T) {
		f := newFixture(t, testSettings())
		_, _, err := f.svc.JoinRoom(ctx, "abc", guest)
		assert.ErrorIs(t, err, ErrNotFound)
		_, _, err = f.svc.JoinRoom(ctx, "  ", guest)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("room full", func(t *testing.T) {
		f := newFixture(t, testSettings())
		room := f.waitingRoom(t)

		_, _, err := f.svc.JoinRoom(ctx, room.RoomCode, third)
		assert.ErrorIs(t, err, ErrFull)

		parts, _ := f.store.ListParticipants(ctx, room.ID)
		assert.Len(t, parts, 2, "no participant row is created")
	})

	t.Run("already joined", func(t *testing.T) {
		settings := testSettings()
		settings.MaxPlayers = 3
		f := newFixture(t, settings)
		room := f.waitingRoom(t)

		_, _, err := f.svc.JoinRoom(ctx, room.RoomCode, guest)
		assert.ErrorIs(t, err, ErrAlreadyJoined)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("room already playing", func(t *testing.T) {
		settings := testSettings()
		settings.MaxPlayers = 2
		f := newFixture(t, settings)
		room := f.playingRoom(t)

		_, _, err := f.svc.JoinRoom(ctx, room.RoomCode, third)
		assert.ErrorIs(t, err, ErrInvalidState)
	})
}

func TestSetReady(t *testing.T) {
	f := newFixture(t, testSettings())
	ctx := context.Background()
	room := f.waitingRoom(t)

	p, err := f.svc.SetReady(ctx, room.ID, guest.UserID, true)
	require.NoError(t, err)
	assert.True(t, p.IsReady)

	p, err = f.svc.SetReady(ctx, room.ID, guest.UserID, false)
	require.NoError(t, err)
	assert.False(t, p.IsReady)

	_, err = f.svc.SetReady(ctx, room.ID, "stranger", true)
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = f.svc.SetReady(ctx, uuid.New(), guest.UserID, true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetReadyAfterStartIsInvalid(t *testing.T) {
	f := newFixture(t, testSettings())
	room := f.playingRoom(t)

	_, err := f.svc.SetReady(context.Background(), room.ID, guest.UserID, false)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestSubmitPromptWhileWaitingIsInvalid(t *testing.T) {
	f := newFixture(t, testSettings())
	ctx := context.Background()
	room := f.waitingRoom(t)

	_, _, err := f.svc.SubmitPrompt(ctx, room.ID, host.UserID, "too early")
	assert.ErrorIs(t, err, ErrInvalidState)

	p := f.participant(t, room.ID, host.UserID)
	assert.Nil(t, p.Prompt, "no mutation")
}

func TestSubmitPromptOnce(t *testing.T) {
	f := newFixture(t, testSettings())
	ctx := context.Background()
	room := f.playingRoom(t)

	p, all, err := f.svc.SubmitPrompt(ctx, room.ID, host.UserID, "  Prompt A  ")
	require.NoError(t, err)
	assert.False(t, all)
	require.NotNil(t, p.Prompt)
	assert.Equal(t, "Prompt A", *p.Prompt)
	assert.NotNil(t, p.SubmittedAt)

	_, _, err = f.svc.SubmitPrompt(ctx, room.ID, host.UserID, "Prompt A2")
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
	assert.ErrorIs(t, err, ErrConflict)

	stored := f.participant(t, room.ID, host.UserID)
	assert.Equal(t, "Prompt A", *stored.Prompt, "stored prompt is unchanged")

	_, all, err = f.svc.SubmitPrompt(ctx, room.ID, guest.UserID, "Prompt B")
	require.NoError(t, err)
	assert.True(t, all)
}

func TestSubmitPromptValidation(t *testing.T) {
	f := newFixture(t, testSettings())
	ctx := context.Background()
	room := f.playingRoom(t)

	_, _, err := f.svc.SubmitPrompt(ctx, room.ID, host.UserID, "   ")
	assert.ErrorIs(t, err, ErrValidation)

	long := make([]byte, 201)
	for i := range long {
		long[i] = 'x'
	}
	_, _, err = f.svc.SubmitPrompt(ctx, room.ID, host.UserID, string(long))
	assert.ErrorIs(t, err, ErrValidation)

	_, _, err = f.svc.SubmitPrompt(ctx, room.ID, "stranger", "hello")
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, _, err = f.svc.SubmitPrompt(ctx, uuid.New(), host.UserID, "hello")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransitionsOnlyMoveForward(t *testing.T) {
	f := newFixture(t, testSettings())
	ctx := context.Background()
	room := f.waitingRoom(t)

	_, err := f.svc.FinishRoom(ctx, room.ID)
	assert.ErrorIs(t, err, ErrInvalidState, "waiting cannot jump to finished")

	_, err = f.svc.BeginCountdown(ctx, room.ID)
	require.NoError(t, err)
	_, err = f.svc.BeginCountdown(ctx, room.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	started, err := f.svc.StartPlaying(ctx, room.ID)
	require.NoError(t, err)
	assert.NotNil(t, started.StartedAt)
	assert.NotNil(t, started.CountdownAt)

	_, err = f.svc.StartPlaying(ctx, room.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	finished, err := f.svc.FinishRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.NotNil(t, finished.FinishedAt)

	_, err = f.svc.StartPlaying(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRoomState(t *testing.T) {
	f := newFixture(t, testSettings())
	ctx := context.Background()
	room := f.waitingRoom(t)

	state, err := f.svc.RoomState(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, room.ID, state.Room.ID)
	assert.Len(t, state.Participants, 2)
	assert.Equal(t, host.UserID, state.Participants[0].UserID, "ordered by join time")
	assert.Nil(t, state.Result)

	_, err = f.svc.RoomState(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMutationsArePublished(t *testing.T) {
	f := newFixture(t, testSettings())
	ctx := context.Background()
	room, err := f.svc.CreateRoom(ctx, host, "")
	require.NoError(t, err)

	sub, err := f.broker.Subscribe(ctx, room.ID)
	require.NoError(t, err)
	defer sub.Close()

	_, _, err = f.svc.JoinRoom(ctx, room.RoomCode, guest)
	require.NoError(t, err)
	_, err = f.svc.SetReady(ctx, room.ID, guest.UserID, true)
	require.NoError(t, err)

	ev := <-sub.C
	assert.Equal(t, realtime.EventInsert, ev.Type)
	assert.Equal(t, realtime.TableParticipants, ev.Table)
	ev = <-sub.C
	assert.Equal(t, realtime.EventUpdate, ev.Type)
	assert.Contains(t, string(ev.Record), `"is_ready":true`)
}

func TestAggregators(t *testing.T) {
	room := &models.GameRoom{MaxPlayers: 2}
	prompt := "p"

	assert.False(t, AllReady(room, nil))
	assert.False(t, AllReady(room, []models.GameParticipant{{IsReady: true}}), "room not full")
	assert.False(t, AllReady(room, []models.GameParticipant{{IsReady: true}, {IsReady: false}}))
	assert.True(t, AllReady(room, []models.GameParticipant{{IsReady: true}, {IsReady: true}}))

	assert.False(t, AllSubmitted(nil))
	assert.False(t, AllSubmitted([]models.GameParticipant{{Prompt: &prompt}, {}}))
	assert.True(t, AllSubmitted([]models.GameParticipant{{Prompt: &prompt}, {Prompt: &prompt}}))
}

func TestRoomCodes(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := DigitCodes{}.Generate()
		assert.True(t, ValidRoomCode(code), code)
	}
	assert.False(t, ValidRoomCode("12345"))
	assert.False(t, ValidRoomCode("12345a"))
	assert.True(t, ValidRoomCode("000123"))
}

func TestKind(t *testing.T) {
	assert.Equal(t, ErrConflict, Kind(ErrAlreadyJudged))
	assert.Equal(t, ErrInvalidState, Kind(ErrNoSubmissions))
	assert.Equal(t, ErrUpstream, Kind(ErrJudgeResponse))
	assert.Equal(t, ErrInternal, Kind(assert.AnError))
}
