// AngelaMos | 2026
// scheduler.go

package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

type Entry struct {
	Def      Definition
	Interval time.Duration
	Payload  any
}

// Scheduler enqueues periodic jobs. Each enqueue is keyed by its interval
// slot, so any number of scheduler instances produce one job per slot.
type Scheduler struct {
	enqueuer   Enqueuer
	entries    []Entry
	runOnStart bool
	logger     *slog.Logger
	now        func() time.Time
}

func NewScheduler(enqueuer Enqueuer, runOnStart bool, logger *slog.Logger, entries ...Entry) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		enqueuer:   enqueuer,
		entries:    entries,
		runOnStart: runOnStart,
		logger:     logger.With("component", "scheduler"),
		now:        time.Now,
	}
}

func (s *Scheduler) Run(ctx context.Context) error {
	for _, e := range s.entries {
		if e.Interval <= 0 {
			return fmt.Errorf("schedule %s: interval must be positive", e.Def.Kind)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	for _, e := range s.entries {
		g.Go(func() error {
			s.loop(ctx, e)
			return nil
		})
	}

	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, e Entry) {
	if s.runOnStart {
		s.Fire(ctx, e)
	}

	ticker := time.NewTicker(e.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Fire(ctx, e)
		}
	}
}

// Fire enqueues e for the current slot. A slot already taken is not an
// error.
func (s *Scheduler) Fire(ctx context.Context, e Entry) {
	slot := s.now().Truncate(e.Interval)
	key := fmt.Sprintf("schedule:%s:%d", e.Def.Kind, slot.Unix())

	log := s.logger.With("job_kind", e.Def.Kind, "slot", slot)

	job, err := s.enqueuer.Enqueue(ctx, e.Def, e.Payload, WithUniqueKey(key, e.Interval))
	switch {
	case err == nil:
		log.Info("scheduled job enqueued", "job_id", job.ID)
	case errors.Is(err, ErrDuplicateJob):
		log.Debug("slot already scheduled")
	default:
		log.Warn("schedule enqueue failed", "error", err)
	}
}
