// AngelaMos | 2026
// sweeps.go

package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/carterperez-dev/taskmanager/internal/metrics"
	"github.com/carterperez-dev/taskmanager/internal/queue"
	"github.com/carterperez-dev/taskmanager/internal/task"
)

type Archiver interface {
	ArchiveStale(ctx context.Context, age time.Duration, batchSize int) (task.ArchiveSummary, error)
}

type ArchivalSweep struct {
	tasks     Archiver
	age       time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewArchivalSweep(tasks Archiver, age time.Duration, batchSize int, logger *slog.Logger) *ArchivalSweep {
	return &ArchivalSweep{
		tasks:     tasks,
		age:       age,
		batchSize: batchSize,
		logger:    logger.With("component", "sweep", "sweep", "archival"),
	}
}

func (s *ArchivalSweep) Handle(ctx context.Context, job *queue.Job) error {
	start := time.Now()

	sum, err := s.tasks.ArchiveStale(ctx, s.age, s.batchSize)
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "archival sweep finished",
		"job_id", job.ID,
		"archived", sum.Archived,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
		"duration", time.Since(start),
	)
	return nil
}

type DueSource interface {
	DueBetween(ctx context.Context, from, to time.Time, afterID string, limit int) ([]task.Task, error)
}

type Reminder interface {
	SendReminder(ctx context.Context, t *task.Task) error
}

// Marker records that a key has been handled. MarkOnce reports false when
// the key was already set; Release forgets a key so it can be claimed again.
type Marker interface {
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type ReminderSummary struct {
	Sent    int
	Failed  int
	Skipped int
}

const reminderMarkTTL = 72 * time.Hour

type ReminderSweep struct {
	tasks     DueSource
	reminder  Reminder
	marks     Marker
	loc       *time.Location
	batchSize int
	now       func() time.Time
	logger    *slog.Logger
}

// NewReminderSweep builds the sweep. marks may be nil, in which case a
// retried sweep can send a second reminder for the same task.
func NewReminderSweep(
	tasks DueSource,
	reminder Reminder,
	marks Marker,
	loc *time.Location,
	batchSize int,
	logger *slog.Logger,
) *ReminderSweep {
	if loc == nil {
		loc = time.UTC
	}
	return &ReminderSweep{
		tasks:     tasks,
		reminder:  reminder,
		marks:     marks,
		loc:       loc,
		batchSize: max(batchSize, 1),
		now:       time.Now,
		logger:    logger.With("component", "sweep", "sweep", "reminder"),
	}
}

// TomorrowWindow is the whole calendar day after now in loc.
func TomorrowWindow(now time.Time, loc *time.Location) (from, to time.Time) {
	local := now.In(loc).AddDate(0, 0, 1)
	from = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	to = from.AddDate(0, 0, 1).Add(-time.Microsecond)
	return from, to
}

func (s *ReminderSweep) Handle(ctx context.Context, job *queue.Job) error {
	sum, err := s.Run(ctx)
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "reminder sweep finished",
		"job_id", job.ID,
		"sent", sum.Sent,
		"failed", sum.Failed,
		"skipped", sum.Skipped,
	)
	return nil
}

// Run sends one reminder per open, assigned task due tomorrow. Send
// failures are counted and the sweep moves on; a failed read aborts.
func (s *ReminderSweep) Run(ctx context.Context) (ReminderSummary, error) {
	var sum ReminderSummary
	from, to := TomorrowWindow(s.now(), s.loc)
	afterID := ""

	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		batch, err := s.tasks.DueBetween(ctx, from, to, afterID, s.batchSize)
		if err != nil {
			return sum, fmt.Errorf("reminder sweep: %w", err)
		}

		for i := range batch {
			s.remind(ctx, &batch[i], &sum)
		}

		if len(batch) < s.batchSize {
			return sum, nil
		}
		afterID = batch[len(batch)-1].ID
	}
}

func (s *ReminderSweep) remind(ctx context.Context, t *task.Task, sum *ReminderSummary) {
	key, owned := s.claim(ctx, t)
	if !owned {
		sum.Skipped++
		metrics.SweepRows.WithLabelValues("reminder", "skipped").Inc()
		return
	}

	if err := s.reminder.SendReminder(ctx, t); err != nil {
		sum.Failed++
		metrics.SweepRows.WithLabelValues("reminder", "failed").Inc()
		s.logger.ErrorContext(ctx, "reminder failed", "task_id", t.ID, "error", err)
		s.release(ctx, t, key)
		return
	}

	sum.Sent++
	metrics.SweepRows.WithLabelValues("reminder", "sent").Inc()
}

// claim reports whether this run owns the reminder for t on its due day,
// and the key it holds if so. It fails open when the marker store errors.
func (s *ReminderSweep) claim(ctx context.Context, t *task.Task) (string, bool) {
	if s.marks == nil || t.DueDate == nil {
		return "", true
	}

	key := fmt.Sprintf("reminder:%s:%s", t.ID, t.DueDate.In(s.loc).Format(time.DateOnly))
	ok, err := s.marks.MarkOnce(ctx, key, reminderMarkTTL)
	if err != nil {
		s.logger.WarnContext(ctx, "reminder dedupe unavailable", "task_id", t.ID, "error", err)
		return "", true
	}
	return key, ok
}

// release drops the claim after a failed send so a later run retries it.
func (s *ReminderSweep) release(ctx context.Context, t *task.Task, key string) {
	if key == "" {
		return
	}
	if err := s.marks.Release(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "release reminder claim failed", "task_id", t.ID, "error", err)
	}
}
