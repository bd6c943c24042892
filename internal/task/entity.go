// AngelaMos | 2026
// entity.go

package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/carterperez-dev/taskmanager/internal/core"
	"github.com/carterperez-dev/taskmanager/internal/policy"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusArchived   Status = "archived"
)

// Statuses lists every status in storage order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted, StatusArchived}

func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

func (s Status) Ordinal() int {
	for i, st := range Statuses {
		if st == s {
			return i
		}
	}
	return -1
}

func StatusFromOrdinal(n int) (Status, error) {
	if n < 0 || n >= len(Statuses) {
		return "", fmt.Errorf("unknown status ordinal %d", n)
	}
	return Statuses[n], nil
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

func ParsePriority(s string) (Priority, error) {
	for _, p := range Priorities {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown priority %q", s)
}

func (p Priority) Ordinal() int {
	for i, known := range Priorities {
		if known == p {
			return i
		}
	}
	return -1
}

func PriorityFromOrdinal(n int) (Priority, error) {
	if n < 0 || n >= len(Priorities) {
		return "", fmt.Errorf("unknown priority ordinal %d", n)
	}
	return Priorities[n], nil
}

const maxTitleLength = 255

type Task struct {
	ID          string
	Title       string
	Description *string
	Status      Status
	Priority    Priority
	DueDate     *time.Time
	CompletedAt *time.Time
	CreatorID   string
	AssigneeID  *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SetStatus moves the task to s and keeps CompletedAt in step: entering
// completed stamps it, leaving completed clears it.
func (t *Task) SetStatus(s Status, now time.Time) {
	if s == t.Status {
		return
	}

	switch {
	case s == StatusCompleted:
		stamp := now
		t.CompletedAt = &stamp
	case t.Status == StatusCompleted || t.CompletedAt != nil:
		t.CompletedAt = nil
	}

	t.Status = s
}

// IsOverdue holds for any task past its due date that is not completed,
// archived tasks included.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && t.Status != StatusCompleted
}

func (t *Task) HasAssignee() bool {
	return t.AssigneeID != nil && *t.AssigneeID != ""
}

func (t *Task) AssignedTo(userID string) bool {
	return t.HasAssignee() && *t.AssigneeID == userID
}

func (t *Task) Subject() *policy.Subject {
	return policy.Task(t.CreatorID, t.AssigneeID)
}

// validate records every field constraint t breaks into v.
func (t *Task) validate(v *core.ValidationError) {
	switch title := strings.TrimSpace(t.Title); {
	case title == "":
		v.Add("title", "can't be blank")
	case len(title) > maxTitleLength:
		v.Add("title", fmt.Sprintf("is too long (maximum is %d characters)", maxTitleLength))
	}

	if t.Status.Ordinal() < 0 {
		v.Add("status", "is not included in the list")
	}
	if t.Priority.Ordinal() < 0 {
		v.Add("priority", "is not included in the list")
	}
}

type taskRow struct {
	ID          string     `db:"id"`
	Title       string     `db:"title"`
	Description *string    `db:"description"`
	Status      int        `db:"status"`
	Priority    int        `db:"priority"`
	DueDate     *time.Time `db:"due_date"`
	CompletedAt *time.Time `db:"completed_at"`
	CreatorID   string     `db:"creator_id"`
	AssigneeID  *string    `db:"assignee_id"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

func (r *taskRow) toTask() (*Task, error) {
	status, err := StatusFromOrdinal(r.Status)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", r.ID, err)
	}
	priority, err := PriorityFromOrdinal(r.Priority)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", r.ID, err)
	}

	return &Task{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Status:      status,
		Priority:    priority,
		DueDate:     r.DueDate,
		CompletedAt: r.CompletedAt,
		CreatorID:   r.CreatorID,
		AssigneeID:  r.AssigneeID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}

func rowsToTasks(rows []taskRow) ([]Task, error) {
	out := make([]Task, 0, len(rows))
	for i := range rows {
		t, err := rows[i].toTask()
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}

// ExportRow is one line of a user's task export, with names resolved.
type ExportRow struct {
	Title        string     `db:"title"`
	Description  *string    `db:"description"`
	Status       int        `db:"status"`
	Priority     int        `db:"priority"`
	DueDate      *time.Time `db:"due_date"`
	CreatedAt    time.Time  `db:"created_at"`
	CreatorName  string     `db:"creator_name"`
	AssigneeName string     `db:"assignee_name"`
}
