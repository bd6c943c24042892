// AngelaMos | 2026
// jobs_test.go

package jobs

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/carterperez-dev/taskmanager/internal/core"
	"github.com/carterperez-dev/taskmanager/internal/queue"
	"github.com/carterperez-dev/taskmanager/internal/task"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTomorrowWindow(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	tests := []struct {
		name     string
		now      time.Time
		loc      *time.Location
		wantFrom time.Time
	}{
		{
			"utc midday",
			time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
			time.UTC,
			time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		},
		{
			"utc late evening",
			time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC),
			time.UTC,
			time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		},
		{
			"local day differs from utc",
			time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC),
			ny,
			time.Date(2026, 3, 10, 0, 0, 0, 0, ny),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to := TomorrowWindow(tt.now, tt.loc)
			if !from.Equal(tt.wantFrom) {
				t.Fatalf("from = %v, want %v", from, tt.wantFrom)
			}
			if want := tt.wantFrom.AddDate(0, 0, 1).Add(-time.Microsecond); !to.Equal(want) {
				t.Errorf("to = %v, want %v", to, want)
			}
		})
	}
}

type fakeDue struct {
	tasks []task.Task
	err   error
	calls int
}

func (f *fakeDue) DueBetween(_ context.Context, from, to time.Time, afterID string, limit int) ([]task.Task, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []task.Task
	for _, t := range f.tasks {
		if t.ID <= afterID || t.DueDate == nil || t.DueDate.Before(from) || t.DueDate.After(to) {
			continue
		}
		out = append(out, t)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type fakeReminder struct {
	sent []string
	fail map[string]bool
}

func (f *fakeReminder) SendReminder(_ context.Context, t *task.Task) error {
	if f.fail[t.ID] {
		return errors.New("smtp down")
	}
	f.sent = append(f.sent, t.ID)
	return nil
}

type memMarker struct {
	keys map[string]bool
	err  error
}

func (m *memMarker) MarkOnce(_ context.Context, key string, _ time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memMarker) Release(_ context.Context, key string) error {
	delete(m.keys, key)
	return nil
}

func dueTasks(now time.Time) []task.Task {
	at := func(d time.Duration) *time.Time {
		t := now.Add(d)
		return &t
	}
	assignee := "00000000-0000-0000-0000-00000000000b"
	return []task.Task{
		{ID: "a", DueDate: at(20 * time.Hour), AssigneeID: &assignee},
		{ID: "b", DueDate: at(30 * time.Hour), AssigneeID: &assignee},
		{ID: "c", DueDate: at(50 * time.Hour), AssigneeID: &assignee},
		{ID: "d", DueDate: at(6 * time.Hour), AssigneeID: &assignee},
	}
}

func newReminderSweep(due DueSource, r Reminder, m Marker, now time.Time) *ReminderSweep {
	s := NewReminderSweep(due, r, m, time.UTC, 1, quietLogger())
	s.now = func() time.Time { return now }
	return s
}

func TestReminderSweepSendsOncePerTask(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	due := &fakeDue{tasks: dueTasks(now)}
	rem := &fakeReminder{}
	marks := &memMarker{keys: map[string]bool{}}
	sweep := newReminderSweep(due, rem, marks, now)

	sum, err := sweep.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// a (Mar 11 08:00) and b (Mar 11 18:00) fall on tomorrow; c and d do not.
	if sum.Sent != 2 || len(rem.sent) != 2 || rem.sent[0] != "a" || rem.sent[1] != "b" {
		t.Fatalf("summary = %+v, sent = %v", sum, rem.sent)
	}

	sum, err = sweep.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if sum.Sent != 0 || sum.Skipped != 2 || len(rem.sent) != 2 {
		t.Fatalf("rerun summary = %+v, sent = %v", sum, rem.sent)
	}
}

func TestReminderSweepIsolatesFailures(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	rem := &fakeReminder{fail: map[string]bool{"a": true}}
	sweep := newReminderSweep(&fakeDue{tasks: dueTasks(now)}, rem, &memMarker{err: errors.New("redis down")}, now)

	sum, err := sweep.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Sent != 1 || sum.Failed != 1 {
		t.Fatalf("summary = %+v, want 1 sent 1 failed", sum)
	}
}

func TestReminderSweepRetriesFailedSendOnRerun(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	rem := &fakeReminder{fail: map[string]bool{"a": true}}
	sweep := newReminderSweep(&fakeDue{tasks: dueTasks(now)}, rem, &memMarker{keys: map[string]bool{}}, now)

	first, err := sweep.Run(context.Background())
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if first.Sent != 1 || first.Failed != 1 {
		t.Fatalf("first summary = %+v, want 1 sent 1 failed", first)
	}

	rem.fail = nil
	second, err := sweep.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.Sent != 1 || second.Skipped != 1 || second.Failed != 0 {
		t.Fatalf("second summary = %+v, want 1 sent 1 skipped", second)
	}
	if len(rem.sent) != 2 || rem.sent[0] != "b" || rem.sent[1] != "a" {
		t.Fatalf("sent = %v, want [b a]", rem.sent)
	}
}

func TestReminderSweepQueryFailureAborts(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sweep := newReminderSweep(&fakeDue{err: errors.New("db down")}, &fakeReminder{}, nil, now)

	if err := sweep.Handle(context.Background(), &queue.Job{ID: "j1"}); err == nil {
		t.Fatal("expected error from failed query")
	}
}

type fakeArchiver struct {
	sum task.ArchiveSummary
	err error
}

func (f fakeArchiver) ArchiveStale(context.Context, time.Duration, int) (task.ArchiveSummary, error) {
	return f.sum, f.err
}

func TestArchivalSweep(t *testing.T) {
	ok := NewArchivalSweep(fakeArchiver{sum: task.ArchiveSummary{Archived: 3, Failed: 1}}, 720*time.Hour, 100, quietLogger())
	if err := ok.Handle(context.Background(), &queue.Job{ID: "j1"}); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	down := NewArchivalSweep(fakeArchiver{err: errors.New("db down")}, 720*time.Hour, 100, quietLogger())
	if err := down.Handle(context.Background(), &queue.Job{ID: "j2"}); err == nil {
		t.Fatal("expected query failure to surface for retry")
	}
}

type fakeEnqueuer struct {
	err error
	def queue.Definition
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, def queue.Definition, _ any, _ ...queue.EnqueueOption) (*queue.Job, error) {
	f.def = def
	if f.err != nil {
		return nil, f.err
	}
	return &queue.Job{ID: "job-1", Kind: def.Kind}, nil
}

func TestRequestExport(t *testing.T) {
	enq := &fakeEnqueuer{}
	id, err := NewExporter(enq).RequestExport(context.Background(), "user-1")
	if err != nil || id != "job-1" || enq.def.Kind != queue.KindDataExport {
		t.Fatalf("RequestExport = %q, %v (kind %s)", id, err, enq.def.Kind)
	}

	down := &fakeEnqueuer{err: fmt.Errorf("push: %w", queue.ErrTransportUnavailable)}
	if _, err := NewExporter(down).RequestExport(context.Background(), "user-1"); !errors.Is(err, core.ErrServiceUnavailable) {
		t.Fatalf("error = %v, want ErrServiceUnavailable", err)
	}

	broken := &fakeEnqueuer{err: errors.New("encode failed")}
	_, err = NewExporter(broken).RequestExport(context.Background(), "user-1")
	if err == nil || errors.Is(err, core.ErrServiceUnavailable) {
		t.Fatalf("error = %v, want internal failure", err)
	}
}

type fakeExportSource []task.ExportRow

func (f fakeExportSource) ExportRows(context.Context, string) ([]task.ExportRow, error) {
	return f, nil
}

type recordingMailer struct {
	userID, filename string
	rows             int
	data             []byte
}

func (m *recordingMailer) SendExport(_ context.Context, userID, filename string, rows int, data []byte) error {
	m.userID, m.filename, m.rows, m.data = userID, filename, rows, data
	return nil
}

func TestExportJobEmptyReport(t *testing.T) {
	mailer := &recordingMailer{}
	job := NewExportJob(fakeExportSource(nil), mailer, quietLogger())
	job.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }

	q := &queue.Job{ID: "j1", Kind: queue.KindDataExport, Payload: []byte(`{"user_id":"user-1"}`)}
	if err := job.Handle(context.Background(), q); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if mailer.userID != "user-1" || mailer.filename != "tasks_export_2026-03-10.csv" || mailer.rows != 0 {
		t.Fatalf("mailer = %+v", mailer)
	}

	records, err := csv.NewReader(bytes.NewReader(mailer.data)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 1 || records[0][0] != "Title" {
		t.Fatalf("records = %v, want header only", records)
	}
}

func TestBuildCSV(t *testing.T) {
	desc := "quarterly, with commas"
	due := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)
	rows := []task.ExportRow{{
		Title:        "Write report",
		Description:  &desc,
		Status:       task.StatusInProgress.Ordinal(),
		Priority:     task.PriorityUrgent.Ordinal(),
		DueDate:      &due,
		CreatedAt:    time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		CreatorName:  "Ada Admin",
		AssigneeName: "Max Member",
	}}

	data, err := BuildCSV(rows)
	if err != nil {
		t.Fatalf("BuildCSV: %v", err)
	}

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	want := []string{
		"Write report", desc, "in_progress", "urgent",
		"2026-03-12T09:00:00Z", "2026-03-01T08:00:00Z", "Ada Admin", "Max Member",
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	for i, v := range want {
		if records[1][i] != v {
			t.Errorf("column %s = %q, want %q", exportHeader[i], records[1][i], v)
		}
	}
}

func TestBuildCSVRejectsUnknownOrdinal(t *testing.T) {
	if _, err := BuildCSV([]task.ExportRow{{Title: "x", Status: 9}}); err == nil {
		t.Fatal("expected error for unknown status ordinal")
	}
	if _, err := BuildCSV([]task.ExportRow{{Title: "x", Priority: -1}}); err == nil {
		t.Fatal("expected error for unknown priority ordinal")
	}
}

func TestExportJobRejectsMissingUser(t *testing.T) {
	job := NewExportJob(fakeExportSource(nil), &recordingMailer{}, quietLogger())
	err := job.Handle(context.Background(), &queue.Job{ID: "j1", Payload: []byte(`{}`)})
	if !queue.IsPermanent(err) {
		t.Fatalf("error = %v, want permanent", err)
	}
}
