// AngelaMos | 2026
// dispatcher.go

package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/carterperez-dev/taskmanager/internal/core"
	"github.com/carterperez-dev/taskmanager/internal/metrics"
	"github.com/carterperez-dev/taskmanager/internal/queue"
	"github.com/carterperez-dev/taskmanager/internal/task"
	"github.com/carterperez-dev/taskmanager/internal/user"
)

const enqueueTimeout = 2 * time.Second

type TaskSource interface {
	Lookup(ctx context.Context, id string) (*task.Task, error)
}

type UserSource interface {
	Lookup(ctx context.Context, id string) (*user.User, error)
}

// NotificationPayload is the body of a task_notification job.
type NotificationPayload struct {
	Event   task.EventKind `json:"event"`
	TaskID  string         `json:"task_id"`
	ActorID string         `json:"actor_id"`
}

// Dispatcher turns lifecycle events into queued notifications and
// delivers them from the worker.
type Dispatcher struct {
	enqueuer queue.Enqueuer
	tasks    TaskSource
	users    UserSource
	sender   Sender
	logger   *slog.Logger
}

func NewDispatcher(
	enqueuer queue.Enqueuer,
	tasks TaskSource,
	users UserSource,
	sender Sender,
	logger *slog.Logger,
) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		enqueuer: enqueuer,
		tasks:    tasks,
		users:    users,
		sender:   sender,
		logger:   logger.With("component", "dispatcher"),
	}
}

// Emit enqueues a notification job for e. A queue failure is logged and
// counted, never returned to the lifecycle operation that emitted e.
func (d *Dispatcher) Emit(ctx context.Context, e task.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
	defer cancel()

	_, err := d.enqueuer.Enqueue(ctx, queue.Notification, NotificationPayload{
		Event:   e.Kind,
		TaskID:  e.TaskID,
		ActorID: e.ActorID,
	})
	if err != nil {
		metrics.NotificationsSent.WithLabelValues(string(kindFor(e.Kind)), "enqueue_failed").Inc()
		d.logger.WarnContext(ctx, "notification not enqueued",
			"event", e.Kind,
			"task_id", e.TaskID,
			"error", err,
		)
	}
}

// Handle delivers one task_notification job.
func (d *Dispatcher) Handle(ctx context.Context, job *queue.Job) error {
	var p NotificationPayload
	if err := job.Decode(&p); err != nil {
		return err
	}

	log := d.logger.With("job_id", job.ID, "task_id", p.TaskID, "event", p.Event)
	kind := kindFor(p.Event)
	if kind == "" {
		return queue.Permanent(fmt.Errorf("unknown lifecycle event %q", p.Event))
	}

	t, err := d.tasks.Lookup(ctx, p.TaskID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			log.ErrorContext(ctx, "notification task missing")
			return queue.Permanent(err)
		}
		return err
	}

	recipientID := recipientFor(p.Event, t)
	if recipientID == "" {
		log.WarnContext(ctx, "notification skipped, no recipient")
		metrics.NotificationsSent.WithLabelValues(string(kind), "skipped").Inc()
		return nil
	}

	recipient, err := d.users.Lookup(ctx, recipientID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			log.WarnContext(ctx, "notification skipped, recipient missing", "user_id", recipientID)
			metrics.NotificationsSent.WithLabelValues(string(kind), "skipped").Inc()
			return nil
		}
		return err
	}

	data := taskData(t, recipient)
	if p.ActorID != "" && p.ActorID != recipient.ID {
		if actor, err := d.users.Lookup(ctx, p.ActorID); err == nil {
			data.ActorName = actor.FullName()
		}
	}

	return d.deliver(ctx, kind, recipient.Email, data, nil)
}

// SendReminder mails the assignee of t that it is due.
func (d *Dispatcher) SendReminder(ctx context.Context, t *task.Task) error {
	if !t.HasAssignee() {
		return nil
	}

	recipient, err := d.users.Lookup(ctx, *t.AssigneeID)
	if err != nil {
		return fmt.Errorf("reminder recipient: %w", err)
	}

	return d.deliver(ctx, KindTaskReminder, recipient.Email, taskData(t, recipient), nil)
}

// SendExport mails a finished export to the user who asked for it.
func (d *Dispatcher) SendExport(
	ctx context.Context,
	userID string,
	filename string,
	rows int,
	data []byte,
) error {
	recipient, err := d.users.Lookup(ctx, userID)
	if err != nil {
		return fmt.Errorf("export recipient: %w", err)
	}

	td := TemplateData{
		RecipientName: recipient.FullName(),
		Filename:      filename,
		RowCount:      rows,
	}
	attachment := Attachment{
		Filename:    filename,
		ContentType: "text/csv",
		Data:        data,
	}

	return d.deliver(ctx, KindDataExport, recipient.Email, td, []Attachment{attachment})
}

func (d *Dispatcher) deliver(
	ctx context.Context,
	kind Kind,
	to string,
	data TemplateData,
	attachments []Attachment,
) error {
	subject, body, err := Render(kind, data)
	if err != nil {
		return queue.Permanent(err)
	}

	err = d.sender.Send(ctx, Message{
		Kind:        kind,
		To:          to,
		Subject:     subject,
		Body:        body,
		Attachments: attachments,
	})
	if err != nil {
		metrics.NotificationsSent.WithLabelValues(string(kind), "failed").Inc()
		return fmt.Errorf("send %s: %w", kind, err)
	}

	metrics.NotificationsSent.WithLabelValues(string(kind), "sent").Inc()
	return nil
}

func kindFor(e task.EventKind) Kind {
	switch e {
	case task.EventCreated, task.EventAssigned:
		return KindTaskAssigned
	case task.EventCompleted:
		return KindTaskCompleted
	default:
		return ""
	}
}

// recipientFor picks who hears about e: the assignee for creation and
// assignment, the creator for completion.
func recipientFor(e task.EventKind, t *task.Task) string {
	switch e {
	case task.EventCreated, task.EventAssigned:
		if t.HasAssignee() {
			return *t.AssigneeID
		}
		return ""
	case task.EventCompleted:
		return t.CreatorID
	default:
		return ""
	}
}

func taskData(t *task.Task, recipient *user.User) TemplateData {
	return TemplateData{
		RecipientName: recipient.FullName(),
		TaskTitle:     t.Title,
		TaskID:        t.ID,
		Priority:      string(t.Priority),
		DueDate:       t.DueDate,
	}
}
