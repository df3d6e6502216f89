package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisBroker publishes room events over Redis pub/sub so every server instance sees them.
type RedisBroker struct {
	rdb    *redis.Client
	logger *logrus.Logger
}

func NewRedisBroker(rdb *redis.Client, logger *logrus.Logger) *RedisBroker {
	return &RedisBroker{rdb: rdb, logger: logger}
}

func roomChannel(roomID uuid.UUID) string {
	return "promptbattle:room:" + roomID.String()
}

// Publish serializes ev and publishes it on the room channel.
func (b *RedisBroker) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.rdb.Publish(ctx, roomChannel(ev.RoomID), data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", roomChannel(ev.RoomID), err)
	}
	return nil
}

// Subscribe opens a pub/sub subscription on the room channel and waits for Redis to confirm it.
func (b *RedisBroker) Subscribe(ctx context.Context, roomID uuid.UUID) (*Subscription, error) {
	ps := b.rdb.Subscribe(ctx, roomChannel(roomID))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", roomChannel(roomID), err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	out := make(chan Event, subscriberBuffer)
	msgs := ps.Channel()

	go func() {
		defer close(out)
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.logger.WithError(err).Warn("invalid realtime payload")
					continue
				}
				select {
				case out <- ev:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	var once sync.Once
	return &Subscription{
		C: out,
		close: func() {
			once.Do(func() {
				cancel()
				ps.Close()
			})
		},
	}, nil
}
