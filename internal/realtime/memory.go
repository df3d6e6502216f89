package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const subscriberBuffer = 32

type memorySub struct {
	ch   chan Event
	once sync.Once
}

// MemoryBroker is an in-process Broker. Slow subscribers drop events instead of blocking publishers.
type MemoryBroker struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]map[*memorySub]struct{}
	logger *logrus.Logger
}

// NewMemoryBroker returns an empty in-process broker.
func NewMemoryBroker(logger *logrus.Logger) *MemoryBroker {
	return &MemoryBroker{
		subs:   make(map[uuid.UUID]map[*memorySub]struct{}),
		logger: logger,
	}
}

// Publish delivers ev to every current subscriber of ev.RoomID.
func (b *MemoryBroker) Publish(_ context.Context, ev Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[ev.RoomID] {
		select {
		case sub.ch <- ev:
		default:
			b.logger.WithFields(logrus.Fields{
				"room_id": ev.RoomID,
				"table":   ev.Table,
			}).Warn("realtime subscriber buffer full, dropping event")
		}
	}
	return nil
}

// Subscribe registers a subscriber for roomID. It is removed when ctx ends or Close is called.
func (b *MemoryBroker) Subscribe(ctx context.Context, roomID uuid.UUID) (*Subscription, error) {
	sub := &memorySub{ch: make(chan Event, subscriberBuffer)}

	b.mu.Lock()
	if b.subs[roomID] == nil {
		b.subs[roomID] = make(map[*memorySub]struct{})
	}
	b.subs[roomID][sub] = struct{}{}
	b.mu.Unlock()

	done := make(chan struct{})
	closeFn := func() {
		sub.once.Do(func() {
			b.mu.Lock()
			delete(b.subs[roomID], sub)
			if len(b.subs[roomID]) == 0 {
				delete(b.subs, roomID)
			}
			close(sub.ch)
			b.mu.Unlock()
			close(done)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			closeFn()
		case <-done:
		}
	}()

	return &Subscription{C: sub.ch, close: closeFn}, nil
}
