// AngelaMos | 2026
// notify_test.go

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/carterperez-dev/taskmanager/internal/core"
	"github.com/carterperez-dev/taskmanager/internal/queue"
	"github.com/carterperez-dev/taskmanager/internal/task"
	"github.com/carterperez-dev/taskmanager/internal/user"
)

const (
	creatorID  = "00000000-0000-0000-0000-00000000000a"
	assigneeID = "00000000-0000-0000-0000-00000000000b"
	taskID     = "10000000-0000-0000-0000-000000000001"
)

type fakeEnqueuer struct {
	jobs []*queue.Job
	err  error
}

func (f *fakeEnqueuer) Enqueue(
	_ context.Context,
	def queue.Definition,
	payload any,
	_ ...queue.EnqueueOption,
) (*queue.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	job := &queue.Job{ID: fmt.Sprintf("job-%d", len(f.jobs)+1), Kind: def.Kind, Queue: def.Queue, Payload: raw}
	f.jobs = append(f.jobs, job)
	return job, nil
}

type fakeTasks map[string]*task.Task

func (f fakeTasks) Lookup(_ context.Context, id string) (*task.Task, error) {
	if t, ok := f[id]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("get task: %w", core.ErrNotFound)
}

type fakeUsers map[string]*user.User

func (f fakeUsers) Lookup(_ context.Context, id string) (*user.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
}

type recordingSender struct {
	sent []Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixtures() (fakeTasks, fakeUsers) {
	assignee := assigneeID
	tasks := fakeTasks{taskID: {
		ID:         taskID,
		Title:      "Write report",
		Status:     task.StatusPending,
		Priority:   task.PriorityHigh,
		CreatorID:  creatorID,
		AssigneeID: &assignee,
	}}
	users := fakeUsers{
		creatorID:  {ID: creatorID, Email: "admin@example.com", FirstName: "Ada", LastName: "Admin"},
		assigneeID: {ID: assigneeID, Email: "member@example.com", FirstName: "Max", LastName: "Member"},
	}
	return tasks, users
}

func TestEmitEnqueuesNotification(t *testing.T) {
	tasks, users := fixtures()
	enq := &fakeEnqueuer{}
	d := NewDispatcher(enq, tasks, users, &recordingSender{}, quietLogger())

	d.Emit(context.Background(), task.Event{Kind: task.EventAssigned, TaskID: taskID, ActorID: creatorID})

	if len(enq.jobs) != 1 {
		t.Fatalf("enqueued = %d, want 1", len(enq.jobs))
	}
	job := enq.jobs[0]
	if job.Kind != queue.KindNotification || job.Queue != queue.QueueDefault {
		t.Errorf("job = %s on %s", job.Kind, job.Queue)
	}

	var p NotificationPayload
	if err := job.Decode(&p); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Event != task.EventAssigned || p.TaskID != taskID || p.ActorID != creatorID {
		t.Errorf("payload = %+v", p)
	}
}

func TestEmitSwallowsTransportFailure(t *testing.T) {
	tasks, users := fixtures()
	enq := &fakeEnqueuer{err: fmt.Errorf("push: %w", queue.ErrTransportUnavailable)}
	d := NewDispatcher(enq, tasks, users, &recordingSender{}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Must return normally even with a dead transport and cancelled request.
	d.Emit(ctx, task.Event{Kind: task.EventCompleted, TaskID: taskID, ActorID: assigneeID})
}

func TestHandleRoutesRecipient(t *testing.T) {
	tests := []struct {
		event       task.EventKind
		actor       string
		wantTo      string
		wantSubject string
	}{
		{task.EventCreated, creatorID, "member@example.com", "Task assigned: Write report"},
		{task.EventAssigned, creatorID, "member@example.com", "Task assigned: Write report"},
		{task.EventCompleted, assigneeID, "admin@example.com", "Task completed: Write report"},
	}

	for _, tt := range tests {
		t.Run(string(tt.event), func(t *testing.T) {
			tasks, users := fixtures()
			enq := &fakeEnqueuer{}
			sender := &recordingSender{}
			d := NewDispatcher(enq, tasks, users, sender, quietLogger())

			d.Emit(context.Background(), task.Event{Kind: tt.event, TaskID: taskID, ActorID: tt.actor})
			if err := d.Handle(context.Background(), enq.jobs[0]); err != nil {
				t.Fatalf("Handle: %v", err)
			}

			if len(sender.sent) != 1 {
				t.Fatalf("sent = %d, want 1", len(sender.sent))
			}
			msg := sender.sent[0]
			if msg.To != tt.wantTo || msg.Subject != tt.wantSubject {
				t.Errorf("message to %q subject %q", msg.To, msg.Subject)
			}
		})
	}
}

func TestHandleMissingTaskIsPermanent(t *testing.T) {
	_, users := fixtures()
	enq := &fakeEnqueuer{}
	sender := &recordingSender{}
	d := NewDispatcher(enq, fakeTasks{}, users, sender, quietLogger())

	d.Emit(context.Background(), task.Event{Kind: task.EventAssigned, TaskID: taskID})
	err := d.Handle(context.Background(), enq.jobs[0])

	if !queue.IsPermanent(err) {
		t.Fatalf("error = %v, want permanent", err)
	}
	if len(sender.sent) != 0 {
		t.Error("sent mail for missing task")
	}
}

func TestHandleMissingRecipientSkips(t *testing.T) {
	tasks, _ := fixtures()
	enq := &fakeEnqueuer{}
	sender := &recordingSender{}
	d := NewDispatcher(enq, tasks, fakeUsers{}, sender, quietLogger())

	d.Emit(context.Background(), task.Event{Kind: task.EventAssigned, TaskID: taskID})
	if err := d.Handle(context.Background(), enq.jobs[0]); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Error("sent mail without recipient")
	}
}

func TestHandleSendFailureRetries(t *testing.T) {
	tasks, users := fixtures()
	enq := &fakeEnqueuer{}
	sender := &recordingSender{err: errors.New("connection refused")}
	d := NewDispatcher(enq, tasks, users, sender, quietLogger())

	d.Emit(context.Background(), task.Event{Kind: task.EventCompleted, TaskID: taskID})
	err := d.Handle(context.Background(), enq.jobs[0])

	if err == nil || queue.IsPermanent(err) {
		t.Fatalf("error = %v, want retryable", err)
	}
}

func TestSendReminder(t *testing.T) {
	tasks, users := fixtures()
	sender := &recordingSender{}
	d := NewDispatcher(&fakeEnqueuer{}, tasks, users, sender, quietLogger())

	due := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)
	tk := *tasks[taskID]
	tk.DueDate = &due

	if err := d.SendReminder(context.Background(), &tk); err != nil {
		t.Fatalf("SendReminder: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0].Subject != "Reminder: Write report is due tomorrow" {
		t.Fatalf("sent = %+v", sender.sent)
	}
	if !strings.Contains(sender.sent[0].Body, "Wed, 11 Mar 2026") {
		t.Errorf("body = %q", sender.sent[0].Body)
	}
}

func TestBuildMIMEWithAttachment(t *testing.T) {
	csv := bytes.Repeat([]byte("Title,Status\nWrite report,pending\n"), 10)
	msg := Message{
		Kind:    KindDataExport,
		To:      "member@example.com",
		Subject: "Your task export",
		Body:    "attached",
		Attachments: []Attachment{
			{Filename: "tasks_export_2026-03-10.csv", ContentType: "text/csv", Data: csv},
		},
	}

	raw, err := buildMIME("noreply@example.com", msg, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("buildMIME: %v", err)
	}

	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if parsed.Header.Get("To") != "member@example.com" {
		t.Errorf("to = %q", parsed.Header.Get("To"))
	}

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/mixed" {
		t.Fatalf("content type = %q, %v", mediaType, err)
	}

	mr := multipart.NewReader(parsed.Body, params["boundary"])
	var parts []*multipart.Part
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextPart: %v", err)
		}
		if _, err := io.ReadAll(p); err != nil {
			t.Fatalf("read part: %v", err)
		}
		parts = append(parts, p)
	}

	if len(parts) != 2 {
		t.Fatalf("parts = %d, want 2", len(parts))
	}
	if parts[1].FileName() != "tasks_export_2026-03-10.csv" {
		t.Errorf("attachment filename = %q", parts[1].FileName())
	}
}

func TestBuildMIMEPlain(t *testing.T) {
	raw, err := buildMIME("noreply@example.com", Message{To: "a@example.com", Subject: "hi", Body: "hello"}, time.Now())
	if err != nil {
		t.Fatalf("buildMIME: %v", err)
	}
	if !strings.HasSuffix(string(raw), "\r\n\r\nhello") {
		t.Errorf("raw = %q", raw)
	}
}
