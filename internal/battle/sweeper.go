package battle

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jason-s-yu/promptbattle/internal/models"
	"github.com/sirupsen/logrus"
)

// Sweeper periodically re-notifies rooms whose progress may have been lost: countdowns
// whose timer died with a previous process, playing rooms awaiting judging and judged
// rooms whose outcome was never counted.
type Sweeper struct {
	svc       *Service
	scheduler gocron.Scheduler
	interval  time.Duration
	logger    *logrus.Logger
}

func NewSweeper(svc *Service, interval time.Duration, logger *logrus.Logger) (*Sweeper, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Sweeper{svc: svc, scheduler: scheduler, interval: interval, logger: logger}, nil
}

// Start registers the sweep job and starts the scheduler.
func (sw *Sweeper) Start(ctx context.Context) error {
	_, err := sw.scheduler.NewJob(
		gocron.DurationJob(sw.interval),
		gocron.NewTask(func() {
			n, err := sw.Sweep(ctx)
			if err != nil {
				sw.logger.WithError(err).Error("room sweep failed")
				return
			}
			if n > 0 {
				sw.logger.WithField("rooms", n).Debug("room sweep notified rooms")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("room-sweeper"),
	)
	if err != nil {
		return fmt.Errorf("register sweep job: %w", err)
	}
	sw.scheduler.Start()
	sw.logger.WithField("interval", sw.interval).Info("room sweeper started")
	return nil
}

// Sweep notifies every room that may need work and returns how many it notified.
func (sw *Sweeper) Sweep(ctx context.Context) (int, error) {
	rooms, err := sw.svc.store.ListRoomsByStatus(ctx, models.RoomCountdown, models.RoomPlaying)
	if err != nil {
		return 0, fmt.Errorf("list active rooms: %w", err)
	}
	pending, err := sw.svc.store.ListRoomsPendingStats(ctx)
	if err != nil {
		return 0, fmt.Errorf("list rooms pending stats: %w", err)
	}

	seen := make(map[uuid.UUID]bool, len(rooms)+len(pending))
	for _, r := range rooms {
		seen[r.ID] = true
	}
	for _, id := range pending {
		seen[id] = true
	}
	for id := range seen {
		sw.svc.coord.Notify(id)
	}
	return len(seen), nil
}

// Stop shuts the scheduler down, waiting for a running sweep.
func (sw *Sweeper) Stop() error {
	return sw.scheduler.Shutdown()
}
