// AngelaMos | 2026
// service.go

package task

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/taskmanager/internal/core"
	"github.com/carterperez-dev/taskmanager/internal/metrics"
	"github.com/carterperez-dev/taskmanager/internal/policy"
)

// UserDirectory answers whether a user id resolves.
type UserDirectory interface {
	Exists(ctx context.Context, id string) (bool, error)
}

type Service struct {
	repo   Repository
	users  UserDirectory
	events EventSink
	logger *slog.Logger
	now    func() time.Time
}

func NewService(
	repo Repository,
	users UserDirectory,
	events EventSink,
	logger *slog.Logger,
) *Service {
	if events == nil {
		events = nopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		repo:   repo,
		users:  users,
		events: events,
		logger: logger.With("component", "task"),
		now:    time.Now,
	}
}

// SetEventSink replaces the sink. It exists so the dispatcher, which
// itself reads tasks, can be wired after the service is built.
func (s *Service) SetEventSink(sink EventSink) {
	if sink == nil {
		sink = nopSink{}
	}
	s.events = sink
}

func (s *Service) Create(
	ctx context.Context,
	actor *policy.Actor,
	req CreateTaskRequest,
) (out *Task, err error) {
	ctx, span := core.StartSpan(ctx, "task.create")
	defer func() { core.EndSpan(span, err) }()

	if !policy.Authorize(actor, policy.TaskCreate, nil) {
		return nil, fmt.Errorf("create task: %w", core.ErrForbidden)
	}

	now := s.now()
	t := &Task{
		ID:          uuid.New().String(),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Status:      StatusPending,
		Priority:    PriorityMedium,
		DueDate:     req.DueDate,
		CreatorID:   actor.ID,
	}
	if req.Status != "" {
		t.SetStatus(Status(req.Status), now)
	}
	if req.Priority != "" {
		t.Priority = Priority(req.Priority)
	}
	if req.AssigneeID != nil && *req.AssigneeID != "" {
		id := *req.AssigneeID
		t.AssigneeID = &id
	}

	v := core.NewValidationError(core.ErrInvalidInput)
	t.validate(v)

	if t.HasAssignee() {
		ok, err := s.users.Exists(ctx, *t.AssigneeID)
		if err != nil {
			return nil, fmt.Errorf("check assignee: %w", err)
		}
		if !ok {
			v.Add("assignee", "must exist")
		}
	}

	if err := v.OrNil(); err != nil {
		return nil, err
	}

	if err := s.repo.Insert(ctx, t); err != nil {
		return nil, err
	}

	if t.HasAssignee() {
		s.emit(ctx, EventCreated, t, actor)
	}

	return t, nil
}

func (s *Service) Update(
	ctx context.Context,
	actor *policy.Actor,
	id string,
	req UpdateTaskRequest,
) (out *Task, err error) {
	ctx, span := core.StartSpan(ctx, "task.update", attribute.String("task.id", id))
	defer func() { core.EndSpan(span, err) }()

	return s.repo.Mutate(ctx, id, func(t *Task) error {
		if !policy.Authorize(actor, policy.TaskUpdate, t.Subject()) {
			return fmt.Errorf("update task: %w", core.ErrForbidden)
		}

		if req.Status != nil {
			next := Status(*req.Status)
			if next == StatusCompleted && t.Status == StatusCompleted {
				return fmt.Errorf("update task: %w", core.ErrAlreadyCompleted)
			}
			t.SetStatus(next, s.now())
		}
		if req.Title != nil {
			t.Title = strings.TrimSpace(*req.Title)
		}
		if req.Description != nil {
			t.Description = req.Description
		}
		if req.Priority != nil {
			t.Priority = Priority(*req.Priority)
		}
		switch {
		case req.ClearDueDate:
			t.DueDate = nil
		case req.DueDate != nil:
			t.DueDate = req.DueDate
		}

		v := core.NewValidationError(core.ErrValidationFailed)
		t.validate(v)
		return v.OrNil()
	})
}

// Assign checks permission, then that the assignee exists, then that the
// task is not already theirs.
func (s *Service) Assign(
	ctx context.Context,
	actor *policy.Actor,
	id string,
	assigneeID string,
) (out *Task, err error) {
	ctx, span := core.StartSpan(ctx, "task.assign",
		attribute.String("task.id", id),
		attribute.String("task.assignee_id", assigneeID),
	)
	defer func() { core.EndSpan(span, err) }()

	t, err := s.repo.Mutate(ctx, id, func(t *Task) error {
		if !policy.Authorize(actor, policy.TaskAssign, t.Subject()) {
			return fmt.Errorf("assign task: %w", core.ErrForbidden)
		}

		ok, err := s.users.Exists(ctx, assigneeID)
		if err != nil {
			return fmt.Errorf("check assignee: %w", err)
		}
		if !ok {
			return fmt.Errorf("assign task: %w", core.ErrAssigneeNotFound)
		}

		if t.AssignedTo(assigneeID) {
			return fmt.Errorf("assign task: %w", core.ErrAlreadyAssigned)
		}

		t.AssigneeID = &assigneeID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, EventAssigned, t, actor)
	return t, nil
}

func (s *Service) Complete(
	ctx context.Context,
	actor *policy.Actor,
	id string,
) (out *Task, err error) {
	ctx, span := core.StartSpan(ctx, "task.complete", attribute.String("task.id", id))
	defer func() { core.EndSpan(span, err) }()

	t, err := s.repo.Mutate(ctx, id, func(t *Task) error {
		if !policy.Authorize(actor, policy.TaskComplete, t.Subject()) {
			return fmt.Errorf("complete task: %w", core.ErrForbidden)
		}
		if t.Status == StatusCompleted {
			return fmt.Errorf("complete task: %w", core.ErrAlreadyCompleted)
		}

		t.SetStatus(StatusCompleted, s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, EventCompleted, t, actor)
	return t, nil
}

func (s *Service) Destroy(ctx context.Context, actor *policy.Actor, id string) (err error) {
	ctx, span := core.StartSpan(ctx, "task.destroy", attribute.String("task.id", id))
	defer func() { core.EndSpan(span, err) }()

	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !policy.Authorize(actor, policy.TaskDelete, t.Subject()) {
		return fmt.Errorf("delete task: %w", core.ErrForbidden)
	}

	return s.repo.Delete(ctx, t.ID)
}

type ArchiveSummary struct {
	Archived int
	Skipped  int
	Failed   int
}

// ArchiveStale archives completed tasks whose completion is older than
// age, walking them in id order batchSize at a time. A row that fails is
// counted and the walk continues; only a failed read aborts.
func (s *Service) ArchiveStale(
	ctx context.Context,
	age time.Duration,
	batchSize int,
) (sum ArchiveSummary, err error) {
	ctx, span := core.StartSpan(ctx, "task.archive_stale")
	defer func() { core.EndSpan(span, err) }()

	cutoff := s.now().Add(-age)
	afterID := ""

	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		batch, err := s.repo.ListArchivable(ctx, cutoff, afterID, batchSize)
		if err != nil {
			return sum, fmt.Errorf("archive stale tasks: %w", err)
		}

		for i := range batch {
			ok, err := s.repo.Archive(ctx, batch[i].ID, cutoff)
			switch {
			case err != nil:
				sum.Failed++
				metrics.SweepRows.WithLabelValues("archival", "failed").Inc()
				s.logger.Error("archive task failed", "task_id", batch[i].ID, "error", err)
			case !ok:
				sum.Skipped++
				metrics.SweepRows.WithLabelValues("archival", "skipped").Inc()
			default:
				sum.Archived++
				metrics.SweepRows.WithLabelValues("archival", "archived").Inc()
			}
		}

		if len(batch) < batchSize {
			return sum, nil
		}
		afterID = batch[len(batch)-1].ID
	}
}

// DueBetween pages through open, assigned tasks due in [from, to].
func (s *Service) DueBetween(
	ctx context.Context,
	from, to time.Time,
	afterID string,
	limit int,
) ([]Task, error) {
	return s.repo.ListDueBetween(ctx, from, to, afterID, limit)
}

func (s *Service) ExportRows(ctx context.Context, userID string) ([]ExportRow, error) {
	return s.repo.ListAssignedForExport(ctx, userID)
}

// Lookup reads a task without a policy check, for background jobs.
func (s *Service) Lookup(ctx context.Context, id string) (*Task, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) emit(ctx context.Context, kind EventKind, t *Task, actor *policy.Actor) {
	metrics.TaskEvents.WithLabelValues(string(kind)).Inc()
	core.AddSpanEvent(ctx, "task."+string(kind))

	s.events.Emit(ctx, Event{
		Kind:       kind,
		TaskID:     t.ID,
		ActorID:    actor.ID,
		OccurredAt: s.now(),
	})
}
