// AngelaMos | 2026
// service.go

package comment

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/carterperez-dev/taskmanager/internal/core"
	"github.com/carterperez-dev/taskmanager/internal/policy"
	"github.com/carterperez-dev/taskmanager/internal/task"
)

// TaskReader is the slice of the task service comments depend on.
type TaskReader interface {
	Get(ctx context.Context, actor *policy.Actor, id string) (*task.Task, error)
	Lookup(ctx context.Context, id string) (*task.Task, error)
}

type Service struct {
	repo  Repository
	tasks TaskReader
}

func NewService(repo Repository, tasks TaskReader) *Service {
	return &Service{repo: repo, tasks: tasks}
}

// List returns a task's comments oldest first. The caller must be able to
// view the task.
func (s *Service) List(ctx context.Context, actor *policy.Actor, taskID string) ([]Comment, error) {
	if _, err := s.tasks.Get(ctx, actor, taskID); err != nil {
		return nil, err
	}
	return s.repo.ListByTask(ctx, taskID)
}

func (s *Service) Create(
	ctx context.Context,
	actor *policy.Actor,
	taskID string,
	req CreateCommentRequest,
) (*Comment, error) {
	if !policy.Authorize(actor, policy.CommentCreate, nil) {
		return nil, fmt.Errorf("create comment: %w", core.ErrForbidden)
	}

	if _, err := s.tasks.Lookup(ctx, taskID); err != nil {
		return nil, err
	}

	c := &Comment{
		ID:       uuid.New().String(),
		Content:  strings.TrimSpace(req.Content),
		TaskID:   taskID,
		AuthorID: actor.ID,
	}
	if err := c.validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	return c, nil
}

// Delete removes a comment. Its author, the task's creator and admins may
// do so.
func (s *Service) Delete(ctx context.Context, actor *policy.Actor, id string) error {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return s.delete(ctx, actor, c)
}

// DeleteFromTask deletes a comment addressed through its task. A comment
// that belongs to another task is not found.
func (s *Service) DeleteFromTask(ctx context.Context, actor *policy.Actor, taskID, id string) error {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if c.TaskID != taskID {
		return fmt.Errorf("delete comment: %w", core.ErrNotFound)
	}
	return s.delete(ctx, actor, c)
}

func (s *Service) delete(ctx context.Context, actor *policy.Actor, c *Comment) error {
	t, err := s.tasks.Lookup(ctx, c.TaskID)
	if err != nil {
		return err
	}

	if !policy.Authorize(actor, policy.CommentDelete, c.Subject(t.CreatorID)) {
		return fmt.Errorf("delete comment: %w", core.ErrForbidden)
	}

	return s.repo.Delete(ctx, c.ID)
}
