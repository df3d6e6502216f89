package battle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/promptbattle/internal/database"
	"github.com/jason-s-yu/promptbattle/internal/models"
)

// a worker with no signals for this long exits; the next Notify starts a new one
const workerIdleTimeout = 2 * time.Minute

// Coordinator runs one worker goroutine per active room. Notify coalesces: any number of
// signals arriving while a worker is busy collapse into a single follow-up Reconcile.
type Coordinator struct {
	svc *Service

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	workers map[uuid.UUID]*roomWorker
	timers  map[uuid.UUID]*time.Timer
	wg      sync.WaitGroup
}

type roomWorker struct {
	signal chan struct{}
}

func newCoordinator(svc *Service) *Coordinator {
	return &Coordinator{
		svc:     svc,
		workers: make(map[uuid.UUID]*roomWorker),
		timers:  make(map[uuid.UUID]*time.Timer),
	}
}

// Start enables workers. They stop when ctx ends or Stop is called.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctx, c.cancel = context.WithCancel(ctx)
}

// Stop cancels every worker and countdown timer and waits for workers to exit.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
	c.mu.Unlock()
	c.wg.Wait()
}

// Notify asks for roomID to be reconciled. It never blocks and is a no-op before Start.
func (c *Coordinator) Notify(roomID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil || c.ctx.Err() != nil {
		return
	}
	w, ok := c.workers[roomID]
	if !ok {
		w = &roomWorker{signal: make(chan struct{}, 1)}
		c.workers[roomID] = w
		c.wg.Add(1)
		go c.run(c.ctx, roomID, w)
	}
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

// Active returns the number of live room workers.
func (c *Coordinator) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.workers)
}

func (c *Coordinator) run(ctx context.Context, roomID uuid.UUID, w *roomWorker) {
	defer c.wg.Done()
	log := c.svc.roomLog(roomID)

	idle := time.NewTimer(workerIdleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			c.remove(roomID, w, true)
			return
		case <-w.signal:
			done, err := c.svc.Reconcile(ctx, roomID)
			if err != nil && ctx.Err() == nil {
				log.WithError(err).Warn("room reconcile failed")
			}
			if done && c.remove(roomID, w, false) {
				return
			}
			idle.Reset(workerIdleTimeout)
		case <-idle.C:
			if c.remove(roomID, w, false) {
				return
			}
			idle.Reset(workerIdleTimeout)
		}
	}
}

// remove unregisters w unless a signal is already waiting for it.
func (c *Coordinator) remove(roomID uuid.UUID, w *roomWorker, force bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !force && len(w.signal) > 0 {
		return false
	}
	if c.workers[roomID] == w {
		delete(c.workers, roomID)
	}
	if t, ok := c.timers[roomID]; ok && force {
		t.Stop()
		delete(c.timers, roomID)
	}
	return true
}

// notifyAfter schedules a Notify, replacing any pending one for the room.
func (c *Coordinator) notifyAfter(roomID uuid.UUID, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil || c.ctx.Err() != nil {
		return
	}
	if t, ok := c.timers[roomID]; ok {
		t.Stop()
	}
	c.timers[roomID] = time.AfterFunc(d, func() {
		c.mu.Lock()
		delete(c.timers, roomID)
		c.mu.Unlock()
		c.Notify(roomID)
	})
}

// Reconcile drives roomID one step closer to finished from its current rows:
// waiting rooms that are full and ready enter countdown, expired countdowns start
// playing, complete playing rooms are judged and judged rooms get their outcome counted.
// done reports that nothing further will ever happen to the room.
func (s *Service) Reconcile(ctx context.Context, roomID uuid.UUID) (done bool, err error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if errors.Is(err, database.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, internalErr("get room", err)
	}

	switch room.Status {
	case models.RoomWaiting:
		return false, s.reconcileWaiting(ctx, room)
	case models.RoomCountdown:
		return false, s.reconcileCountdown(ctx, room)
	case models.RoomPlaying:
		return s.reconcilePlaying(ctx, room)
	case models.RoomFinished:
		return s.reconcileFinished(ctx, room)
	}
	return false, nil
}

func (s *Service) reconcileWaiting(ctx context.Context, room *models.GameRoom) error {
	parts, err := s.store.ListParticipants(ctx, room.ID)
	if err != nil {
		return internalErr("list participants", err)
	}
	if !AllReady(room, parts) {
		return nil
	}
	next, err := s.BeginCountdown(ctx, room.ID)
	if errors.Is(err, ErrInvalidState) {
		// someone else moved it; the next signal will see the new status
		return nil
	}
	if err != nil {
		return err
	}
	return s.reconcileCountdown(ctx, next)
}

func (s *Service) reconcileCountdown(ctx context.Context, room *models.GameRoom) error {
	ends, ok := room.CountdownEndsAt()
	if ok && room.CountdownDuration > 0 {
		if wait := ends.Sub(s.now()); wait > 0 {
			s.coord.notifyAfter(room.ID, wait)
			return nil
		}
	}
	_, err := s.StartPlaying(ctx, room.ID)
	if errors.Is(err, ErrInvalidState) {
		return nil
	}
	return err
}

func (s *Service) reconcilePlaying(ctx context.Context, room *models.GameRoom) (bool, error) {
	if _, err := s.store.GetResult(ctx, room.ID); err == nil {
		// judged but never finished
		if _, err := s.FinishRoom(ctx, room.ID); err != nil && !errors.Is(err, ErrInvalidState) {
			return false, err
		}
		return s.reconcileFinished(ctx, room)
	} else if !errors.Is(err, database.ErrNotFound) {
		return false, internalErr("get result", err)
	}

	parts, err := s.store.ListParticipants(ctx, room.ID)
	if err != nil {
		return false, internalErr("list participants", err)
	}
	if !AllSubmitted(parts) {
		return false, nil
	}

	_, err = s.JudgeRoom(ctx, room.ID)
	switch {
	case err == nil:
		return s.reconcileFinished(ctx, room)
	case errors.Is(err, ErrAlreadyJudged), errors.Is(err, ErrJudgingInProgress),
		errors.Is(err, ErrSubmissionsChanged), errors.Is(err, ErrInvalidState):
		return false, nil
	default:
		return false, err
	}
}

func (s *Service) reconcileFinished(ctx context.Context, room *models.GameRoom) (bool, error) {
	result, err := s.store.GetResult(ctx, room.ID)
	if errors.Is(err, database.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, internalErr("get result", err)
	}
	if result.StatsApplied {
		return true, nil
	}
	parts, err := s.store.ListParticipants(ctx, room.ID)
	if err != nil {
		return false, internalErr("list participants", err)
	}
	if err := s.applyOutcome(ctx, result, parts); err != nil {
		return false, internalErr("apply outcome", err)
	}
	return true, nil
}
