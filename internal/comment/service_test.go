// AngelaMos | 2026
// service_test.go

package comment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/taskmanager/internal/core"
	"github.com/carterperez-dev/taskmanager/internal/middleware"
	"github.com/carterperez-dev/taskmanager/internal/policy"
	"github.com/carterperez-dev/taskmanager/internal/task"
)

const (
	taskID    = "10000000-0000-0000-0000-000000000001"
	creatorID = "00000000-0000-0000-0000-00000000000a"
	authorID  = "00000000-0000-0000-0000-00000000000b"
	otherID   = "00000000-0000-0000-0000-00000000000c"
)

type fakeRepo struct {
	comments map[string]*Comment
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{comments: make(map[string]*Comment)}
}

func (r *fakeRepo) Create(_ context.Context, c *Comment) error {
	cp := *c
	r.comments[c.ID] = &cp
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id string) (*Comment, error) {
	c, ok := r.comments[id]
	if !ok {
		return nil, fmt.Errorf("get comment: %w", core.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (r *fakeRepo) ListByTask(_ context.Context, id string) ([]Comment, error) {
	var out []Comment
	for _, c := range r.comments {
		if c.TaskID == id {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.comments[id]; !ok {
		return fmt.Errorf("delete comment: %w", core.ErrNotFound)
	}
	delete(r.comments, id)
	return nil
}

type fakeTasks map[string]*task.Task

func (f fakeTasks) Lookup(_ context.Context, id string) (*task.Task, error) {
	t, ok := f[id]
	if !ok {
		return nil, fmt.Errorf("get task: %w", core.ErrNotFound)
	}
	return t, nil
}

func (f fakeTasks) Get(ctx context.Context, actor *policy.Actor, id string) (*task.Task, error) {
	t, err := f.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.Authorize(actor, policy.TaskView, t.Subject()) {
		return nil, core.ErrForbidden
	}
	return t, nil
}

func newTestService() (*Service, *fakeRepo) {
	repo := newFakeRepo()
	tasks := fakeTasks{taskID: {ID: taskID, CreatorID: creatorID, Status: task.StatusPending}}
	return NewService(repo, tasks), repo
}

func actor(id string, role policy.Role) *policy.Actor {
	return &policy.Actor{ID: id, Role: role}
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("any user may comment", func(t *testing.T) {
		svc, repo := newTestService()

		c, err := svc.Create(ctx, actor(otherID, policy.RoleMember), taskID, CreateCommentRequest{Content: " looks good "})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if c.Content != "looks good" || c.AuthorID != otherID {
			t.Errorf("comment = %+v", c)
		}
		if len(repo.comments) != 1 {
			t.Errorf("stored = %d, want 1", len(repo.comments))
		}
	})

	t.Run("blank content", func(t *testing.T) {
		svc, repo := newTestService()

		_, err := svc.Create(ctx, actor(authorID, policy.RoleMember), taskID, CreateCommentRequest{Content: "   "})
		if !errors.Is(err, core.ErrInvalidInput) {
			t.Fatalf("error = %v, want ErrInvalidInput", err)
		}
		if len(repo.comments) != 0 {
			t.Error("blank comment stored")
		}
	})

	t.Run("missing task", func(t *testing.T) {
		svc, _ := newTestService()

		_, err := svc.Create(ctx, actor(authorID, policy.RoleMember),
			"10000000-0000-0000-0000-0000000000ff", CreateCommentRequest{Content: "hi"})
		if !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("error = %v, want ErrNotFound", err)
		}
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		actor *policy.Actor
		want  error
	}{
		{"author", actor(authorID, policy.RoleMember), nil},
		{"task creator", actor(creatorID, policy.RoleMember), nil},
		{"admin", actor(otherID, policy.RoleAdmin), nil},
		{"unrelated member", actor(otherID, policy.RoleMember), core.ErrForbidden},
		{"unrelated manager", actor(otherID, policy.RoleManager), core.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestService()
			c, err := svc.Create(ctx, actor(authorID, policy.RoleMember), taskID, CreateCommentRequest{Content: "note"})
			if err != nil {
				t.Fatalf("Create: %v", err)
			}

			err = svc.Delete(ctx, tt.actor, c.ID)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}

			_, stillThere := repo.comments[c.ID]
			if tt.want == nil && stillThere {
				t.Error("comment not deleted")
			}
			if tt.want != nil && !stillThere {
				t.Error("comment deleted despite denial")
			}
		})
	}
}

func TestDeleteFromTaskChecksOwningTask(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService()
	c, err := svc.Create(ctx, actor(authorID, policy.RoleMember), taskID, CreateCommentRequest{Content: "note"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	const otherTask = "10000000-0000-0000-0000-000000000002"
	err = svc.DeleteFromTask(ctx, actor(authorID, policy.RoleMember), otherTask, c.ID)
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("wrong task: error = %v, want ErrNotFound", err)
	}
	if _, ok := repo.comments[c.ID]; !ok {
		t.Fatal("comment deleted through another task")
	}

	if err := svc.DeleteFromTask(ctx, actor(authorID, policy.RoleMember), taskID, c.ID); err != nil {
		t.Fatalf("DeleteFromTask: %v", err)
	}
	if _, ok := repo.comments[c.ID]; ok {
		t.Error("comment not deleted")
	}
}

func TestListRequiresTaskVisibility(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	if _, err := svc.List(ctx, actor(otherID, policy.RoleMember), taskID); !errors.Is(err, core.ErrForbidden) {
		t.Fatalf("error = %v, want ErrForbidden", err)
	}
	if _, err := svc.List(ctx, actor(otherID, policy.RoleManager), taskID); err != nil {
		t.Fatalf("manager List: %v", err)
	}
}

func TestTaskRoutes(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Route("/tasks/{taskID}", func(r chi.Router) {
		r.Mount("/comments", h.TaskRoutes())
	})

	withActor := func(req *http.Request, a *policy.Actor) *http.Request {
		return req.WithContext(middleware.WithActor(req.Context(), a))
	}

	body := strings.NewReader(`{"content":"first"}`)
	req := withActor(httptest.NewRequest(http.MethodPost, "/tasks/"+taskID+"/comments", body),
		actor(creatorID, policy.RoleMember))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("POST status = %d, body %s", rec.Code, rec.Body.String())
	}

	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil || created.Data.ID == "" {
		t.Fatalf("decode created comment: %v, body %s", err, rec.Body.String())
	}

	req = withActor(httptest.NewRequest(http.MethodDelete,
		"/tasks/10000000-0000-0000-0000-000000000002/comments/"+created.Data.ID, nil),
		actor(creatorID, policy.RoleMember))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("DELETE via other task status = %d, want 404", rec.Code)
	}

	req = withActor(httptest.NewRequest(http.MethodDelete, "/tasks/"+taskID+"/comments/"+created.Data.ID, nil),
		actor(creatorID, policy.RoleMember))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, body %s", rec.Code, rec.Body.String())
	}

	req = withActor(httptest.NewRequest(http.MethodGet, "/tasks/not-a-uuid/comments", nil),
		actor(creatorID, policy.RoleMember))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("bad id status = %d, want 404", rec.Code)
	}
}
