package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Tables whose row changes are published on the feed.
const (
	TableRooms        = "game_rooms"
	TableParticipants = "game_participants"
	TableResults      = "game_results"
)

// Event types.
const (
	EventInsert   = "INSERT"
	EventUpdate   = "UPDATE"
	EventSnapshot = "SNAPSHOT"
)

// Event is a row-level change scoped to one room. Record holds the changed row as JSON.
// Subscribers should treat it as a hint and re-fetch room state.
type Event struct {
	Type   string          `json:"type"`
	Table  string          `json:"table"`
	RoomID uuid.UUID       `json:"room_id"`
	Record json.RawMessage `json:"record"`
	At     time.Time       `json:"at"`
}

// NewEvent marshals record into an Event.
func NewEvent(typ, table string, roomID uuid.UUID, record any) (Event, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s record: %w", table, err)
	}
	return Event{
		Type:   typ,
		Table:  table,
		RoomID: roomID,
		Record: data,
		At:     time.Now().UTC(),
	}, nil
}

// Broker fans room events out to subscribers.
type Broker interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context, roomID uuid.UUID) (*Subscription, error)
}

// Subscription delivers events for one room until closed or its context ends.
type Subscription struct {
	C     <-chan Event
	close func()
}

// Close stops delivery. It is safe to call more than once.
func (s *Subscription) Close() {
	s.close()
}
