// AngelaMos | 2026
// export.go

package jobs

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/carterperez-dev/taskmanager/internal/core"
	"github.com/carterperez-dev/taskmanager/internal/queue"
	"github.com/carterperez-dev/taskmanager/internal/task"
)

var exportHeader = []string{
	"Title", "Description", "Status", "Priority",
	"Due Date", "Created At", "Creator", "Assignee",
}

type ExportPayload struct {
	UserID string `json:"user_id"`
}

// Exporter schedules export generation for the HTTP layer.
type Exporter struct {
	enqueuer queue.Enqueuer
}

func NewExporter(enqueuer queue.Enqueuer) *Exporter {
	return &Exporter{enqueuer: enqueuer}
}

// RequestExport enqueues an export for userID and returns the job id. A
// broker that cannot be reached is reported as ErrServiceUnavailable.
func (e *Exporter) RequestExport(ctx context.Context, userID string) (string, error) {
	job, err := e.enqueuer.Enqueue(ctx, queue.DataExport, ExportPayload{UserID: userID})
	if err != nil {
		if errors.Is(err, queue.ErrTransportUnavailable) {
			return "", fmt.Errorf("request export: %w", core.ErrServiceUnavailable)
		}
		return "", fmt.Errorf("request export: %w", err)
	}
	return job.ID, nil
}

type ExportSource interface {
	ExportRows(ctx context.Context, userID string) ([]task.ExportRow, error)
}

type ExportMailer interface {
	SendExport(ctx context.Context, userID, filename string, rows int, data []byte) error
}

type ExportJob struct {
	tasks  ExportSource
	mailer ExportMailer
	now    func() time.Time
	logger *slog.Logger
}

func NewExportJob(tasks ExportSource, mailer ExportMailer, logger *slog.Logger) *ExportJob {
	return &ExportJob{
		tasks:  tasks,
		mailer: mailer,
		now:    time.Now,
		logger: logger.With("component", "export"),
	}
}

func (j *ExportJob) Handle(ctx context.Context, job *queue.Job) error {
	var p ExportPayload
	if err := job.Decode(&p); err != nil {
		return err
	}
	if p.UserID == "" {
		return queue.Permanent(errors.New("export payload missing user_id"))
	}

	rows, err := j.tasks.ExportRows(ctx, p.UserID)
	if err != nil {
		return err
	}

	data, err := BuildCSV(rows)
	if err != nil {
		return queue.Permanent(err)
	}

	filename := "tasks_export_" + j.now().Format(time.DateOnly) + ".csv"
	if err := j.mailer.SendExport(ctx, p.UserID, filename, len(rows), data); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			j.logger.WarnContext(ctx, "export recipient missing", "job_id", job.ID, "user_id", p.UserID)
			return queue.Permanent(err)
		}
		return err
	}

	j.logger.InfoContext(ctx, "export delivered",
		"job_id", job.ID,
		"user_id", p.UserID,
		"rows", len(rows),
	)
	return nil
}

// BuildCSV renders rows as a report. No rows yields the header alone.
func BuildCSV(rows []task.ExportRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}

	for i := range rows {
		record, err := exportRecord(&rows[i])
		if err != nil {
			return nil, err
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write export: %w", err)
	}
	return buf.Bytes(), nil
}

func exportRecord(r *task.ExportRow) ([]string, error) {
	status, err := task.StatusFromOrdinal(r.Status)
	if err != nil {
		return nil, err
	}
	priority, err := task.PriorityFromOrdinal(r.Priority)
	if err != nil {
		return nil, err
	}

	var description, due string
	if r.Description != nil {
		description = *r.Description
	}
	if r.DueDate != nil {
		due = r.DueDate.UTC().Format(time.RFC3339)
	}

	return []string{
		r.Title,
		description,
		string(status),
		string(priority),
		due,
		r.CreatedAt.UTC().Format(time.RFC3339),
		r.CreatorName,
		r.AssigneeName,
	}, nil
}
