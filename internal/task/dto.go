// AngelaMos | 2026
// dto.go

package task

import (
	"time"
)

type CreateTaskRequest struct {
	Title       string     `json:"title"`
	Description *string    `json:"description" validate:"omitempty,max=10000"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	AssigneeID  *string    `json:"assignee_id" validate:"omitempty,uuid"`
}

// UpdateTaskRequest carries only the fields being changed. Assignment is
// not part of it: that goes through the assign endpoint.
type UpdateTaskRequest struct {
	Title        *string    `json:"title,omitempty"`
	Description  *string    `json:"description,omitempty" validate:"omitempty,max=10000"`
	Status       *string    `json:"status,omitempty"`
	Priority     *string    `json:"priority,omitempty"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	ClearDueDate bool       `json:"clear_due_date,omitempty"`
}

type AssignTaskRequest struct {
	AssigneeID string `json:"assignee_id" validate:"required,uuid"`
}

type ListParams struct {
	Page         int
	PerPage      int
	Status       string
	Priority     string
	AssignedToMe bool
	CreatedByMe  bool
}

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

func (p *ListParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = defaultPerPage
	}
	if p.PerPage > maxPerPage {
		p.PerPage = maxPerPage
	}
}

func (p *ListParams) Offset() int {
	return (p.Page - 1) * p.PerPage
}

type TaskResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	CompletedAt *time.Time `json:"completed_at"`
	Overdue     bool       `json:"overdue"`
	CreatorID   string     `json:"creator_id"`
	AssigneeID  *string    `json:"assignee_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type DashboardResponse struct {
	TotalByStatus      map[string]int `json:"total_by_status"`
	OverdueCount       int            `json:"overdue_count"`
	AssignedIncomplete []TaskResponse `json:"assigned_incomplete"`
	RecentActivity     []TaskResponse `json:"recent_activity"`
}

func ToTaskResponse(t *Task, now time.Time) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		DueDate:     t.DueDate,
		CompletedAt: t.CompletedAt,
		Overdue:     t.IsOverdue(now),
		CreatorID:   t.CreatorID,
		AssigneeID:  t.AssigneeID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func ToTaskResponseList(tasks []Task, now time.Time) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, ToTaskResponse(&tasks[i], now))
	}
	return out
}

func ToDashboardResponse(d *Dashboard, now time.Time) DashboardResponse {
	byStatus := make(map[string]int, len(Statuses))
	for _, s := range Statuses {
		byStatus[string(s)] = d.TotalByStatus[s]
	}

	return DashboardResponse{
		TotalByStatus:      byStatus,
		OverdueCount:       d.OverdueCount,
		AssignedIncomplete: ToTaskResponseList(d.AssignedIncomplete, now),
		RecentActivity:     ToTaskResponseList(d.RecentActivity, now),
	}
}
