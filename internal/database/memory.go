package database

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/promptbattle/internal/models"
)

// MemoryStore keeps everything in process memory. It enforces the same constraints as
// the Postgres schema and is used when no database is configured and in tests.
type MemoryStore struct {
	mu           sync.Mutex
	profiles     map[string]*models.Profile
	rooms        map[uuid.UUID]*models.GameRoom
	participants map[uuid.UUID][]*models.GameParticipant
	results      map[uuid.UUID]*models.GameResult
	clock        func() time.Time
	last         time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles:     make(map[string]*models.Profile),
		rooms:        make(map[uuid.UUID]*models.GameRoom),
		participants: make(map[uuid.UUID][]*models.GameParticipant),
		results:      make(map[uuid.UUID]*models.GameResult),
		clock:        time.Now,
	}
}

// now is strictly increasing so joined_at ordering matches insertion order.
func (m *MemoryStore) now() time.Time {
	t := m.clock().UTC()
	if !t.After(m.last) {
		t = m.last.Add(time.Microsecond)
	}
	m.last = t
	return t
}

func (m *MemoryStore) CreateProfile(_ context.Context, p *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, ok := m.profiles[p.ID]; ok {
		return ErrDuplicate
	}
	created := &models.Profile{ID: p.ID, Username: p.Username, CreatedAt: m.now()}
	m.profiles[p.ID] = created
	*p = *created
	return nil
}

func (m *MemoryStore) EnsureProfile(_ context.Context, id, username string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		p = &models.Profile{ID: id, Username: username, CreatedAt: m.now()}
		m.profiles[id] = p
	}
	out := *p
	return &out, nil
}

func (m *MemoryStore) GetProfile(_ context.Context, id string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *p
	return &out, nil
}

func (m *MemoryStore) TopProfiles(_ context.Context, limit int) ([]models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		if out[i].Losses != out[j].Losses {
			return out[i].Losses < out[j].Losses
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) CreateRoomWithHost(_ context.Context, room *models.GameRoom, host *models.GameParticipant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rooms {
		if r.RoomCode == room.RoomCode && r.Status != models.RoomFinished {
			return ErrCodeTaken
		}
	}
	if _, ok := m.rooms[room.ID]; ok {
		return ErrDuplicate
	}

	created := *room
	created.CreatedAt = m.now()
	created.CountdownAt, created.StartedAt, created.FinishedAt = nil, nil, nil
	m.rooms[created.ID] = &created

	p := &models.GameParticipant{ID: host.ID, RoomID: created.ID, UserID: host.UserID, JoinedAt: m.now()}
	m.participants[created.ID] = []*models.GameParticipant{p}

	*room = created
	*host = *p
	return nil
}

func (m *MemoryStore) GetRoom(_ context.Context, id uuid.UUID) (*models.GameRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *r
	return &out, nil
}

func (m *MemoryStore) GetOpenRoomByCode(_ context.Context, code string) (*models.GameRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rooms {
		if r.RoomCode == code && r.Status != models.RoomFinished {
			out := *r
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListRoomsByStatus(_ context.Context, statuses ...models.RoomStatus) ([]models.GameRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.GameRoom
	for _, r := range m.rooms {
		if slices.Contains(statuses, r.Status) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) TransitionRoom(_ context.Context, id uuid.UUID, to models.RoomStatus, from ...models.RoomStatus) (*models.GameRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !slices.Contains(from, r.Status) {
		return nil, ErrRoomStatus
	}
	now := m.now()
	r.Status = to
	switch to {
	case models.RoomCountdown:
		r.CountdownAt = &now
	case models.RoomPlaying:
		r.StartedAt = &now
	case models.RoomFinished:
		r.FinishedAt = &now
	}
	out := *r
	return &out, nil
}

func (m *MemoryStore) AddParticipant(_ context.Context, p *models.GameParticipant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[p.RoomID]
	if !ok {
		return ErrNotFound
	}
	if r.Status != models.RoomWaiting {
		return ErrRoomStatus
	}
	parts := m.participants[p.RoomID]
	if len(parts) >= r.MaxPlayers {
		return ErrRoomFull
	}
	for _, existing := range parts {
		if existing.UserID == p.UserID {
			return ErrDuplicate
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	created := &models.GameParticipant{ID: p.ID, RoomID: p.RoomID, UserID: p.UserID, JoinedAt: m.now()}
	m.participants[p.RoomID] = append(parts, created)
	*p = *created
	return nil
}

func (m *MemoryStore) ListParticipants(_ context.Context, roomID uuid.UUID) ([]models.GameParticipant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	parts := m.participants[roomID]
	out := make([]models.GameParticipant, 0, len(parts))
	for _, p := range parts {
		out = append(out, *p)
	}
	return out, nil
}

func (m *MemoryStore) findParticipant(roomID uuid.UUID, userID string) *models.GameParticipant {
	for _, p := range m.participants[roomID] {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

func (m *MemoryStore) SetReady(_ context.Context, roomID uuid.UUID, userID string, ready bool) (*models.GameParticipant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	if r.Status != models.RoomWaiting {
		return nil, ErrRoomStatus
	}
	p := m.findParticipant(roomID, userID)
	if p == nil {
		return nil, ErrNotFound
	}
	p.IsReady = ready
	out := *p
	return &out, nil
}

func (m *MemoryStore) SubmitPrompt(_ context.Context, roomID uuid.UUID, userID, prompt string) (*models.GameParticipant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	p := m.findParticipant(roomID, userID)
	if p == nil {
		return nil, ErrNotFound
	}
	if p.HasSubmitted() {
		return nil, ErrDuplicate
	}
	if r.Status != models.RoomPlaying {
		return nil, ErrRoomStatus
	}
	now := m.now()
	p.Prompt = &prompt
	p.SubmittedAt = &now
	out := *p
	return &out, nil
}

func (m *MemoryStore) SaveResult(_ context.Context, result *models.GameResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.results[result.RoomID]; ok {
		return ErrDuplicate
	}
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	saved := *result
	saved.CreatedAt = m.now()
	saved.StatsApplied = false
	saved.Scores = make([]models.ParticipantScore, len(result.Scores))
	for i, sc := range result.Scores {
		sc.ResultID = saved.ID
		saved.Scores[i] = sc
	}
	m.results[result.RoomID] = &saved
	*result = saved
	result.Scores = slices.Clone(saved.Scores)
	return nil
}

func (m *MemoryStore) GetResult(_ context.Context, roomID uuid.UUID) (*models.GameResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.results[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *r
	out.Scores = slices.Clone(r.Scores)

	joined := make(map[uuid.UUID]time.Time)
	for _, p := range m.participants[roomID] {
		joined[p.ID] = p.JoinedAt
	}
	sort.SliceStable(out.Scores, func(i, j int) bool {
		if out.Scores[i].TotalScore != out.Scores[j].TotalScore {
			return out.Scores[i].TotalScore > out.Scores[j].TotalScore
		}
		return joined[out.Scores[i].ParticipantID].Before(joined[out.Scores[j].ParticipantID])
	})
	return &out, nil
}

func (m *MemoryStore) ApplyOutcome(_ context.Context, resultID uuid.UUID, winnerID *string, loserIDs []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result *models.GameResult
	for _, r := range m.results {
		if r.ID == resultID {
			result = r
			break
		}
	}
	if result == nil || result.StatsApplied {
		return false, nil
	}
	result.StatsApplied = true
	if winnerID != nil {
		if p, ok := m.profiles[*winnerID]; ok {
			p.Wins++
		}
	}
	for _, id := range loserIDs {
		if p, ok := m.profiles[id]; ok {
			p.Losses++
		}
	}
	return true, nil
}

func (m *MemoryStore) ListRoomsPendingStats(_ context.Context) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for roomID, r := range m.results {
		if !r.StatsApplied {
			ids = append(ids, roomID)
		}
	}
	return ids, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() {}
