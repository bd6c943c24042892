// AngelaMos | 2026
// query.go

package task

import (
	"context"
	"fmt"

	"github.com/carterperez-dev/taskmanager/internal/core"
	"github.com/carterperez-dev/taskmanager/internal/policy"
)

const recentActivityLimit = 10

type Dashboard struct {
	TotalByStatus      map[Status]int
	OverdueCount       int
	AssignedIncomplete []Task
	RecentActivity     []Task
}

func (s *Service) Get(ctx context.Context, actor *policy.Actor, id string) (*Task, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !policy.Authorize(actor, policy.TaskView, t.Subject()) {
		return nil, fmt.Errorf("get task: %w", core.ErrForbidden)
	}

	return t, nil
}

func (s *Service) AuthorizeExport(ctx context.Context, actor *policy.Actor, id string) error {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !policy.Authorize(actor, policy.TaskExport, t.Subject()) {
		return fmt.Errorf("export tasks: %w", core.ErrForbidden)
	}

	return nil
}

func (s *Service) List(
	ctx context.Context,
	actor *policy.Actor,
	params ListParams,
) ([]Task, int, error) {
	if !policy.Authorize(actor, policy.TaskList, nil) {
		return nil, 0, fmt.Errorf("list tasks: %w", core.ErrForbidden)
	}

	params.Normalize()
	f := Filter{
		Limit:  params.PerPage,
		Offset: params.Offset(),
	}

	v := core.NewValidationError(core.ErrInvalidInput)
	if params.Status != "" {
		st, err := ParseStatus(params.Status)
		if err != nil {
			v.Add("status", "is not included in the list")
		}
		f.Status = &st
	}
	if params.Priority != "" {
		p, err := ParsePriority(params.Priority)
		if err != nil {
			v.Add("priority", "is not included in the list")
		}
		f.Priority = &p
	}
	if err := v.OrNil(); err != nil {
		return nil, 0, err
	}

	if params.AssignedToMe {
		f.AssigneeID = actor.ID
	}
	if params.CreatedByMe {
		f.CreatorID = actor.ID
	}

	return s.repo.List(ctx, policy.VisibleScope(actor), f)
}

func (s *Service) Overdue(ctx context.Context, actor *policy.Actor) ([]Task, error) {
	if !policy.Authorize(actor, policy.TaskList, nil) {
		return nil, fmt.Errorf("list overdue tasks: %w", core.ErrForbidden)
	}

	now := s.now()
	tasks, _, err := s.repo.List(ctx, policy.VisibleScope(actor), Filter{OverdueAt: &now})
	return tasks, err
}

func (s *Service) Dashboard(ctx context.Context, actor *policy.Actor) (*Dashboard, error) {
	if !policy.Authorize(actor, policy.TaskList, nil) {
		return nil, fmt.Errorf("dashboard: %w", core.ErrForbidden)
	}

	scope := policy.VisibleScope(actor)
	now := s.now()

	byStatus, err := s.repo.CountByStatus(ctx, scope)
	if err != nil {
		return nil, err
	}

	_, overdue, err := s.repo.List(ctx, scope, Filter{OverdueAt: &now, Limit: 1})
	if err != nil {
		return nil, err
	}

	completed := StatusCompleted
	assigned, _, err := s.repo.List(ctx, scope, Filter{AssigneeID: actor.ID, NotStatus: &completed})
	if err != nil {
		return nil, err
	}

	recent, _, err := s.repo.List(ctx, scope, Filter{Limit: recentActivityLimit})
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		TotalByStatus:      byStatus,
		OverdueCount:       overdue,
		AssignedIncomplete: assigned,
		RecentActivity:     recent,
	}, nil
}
