// AngelaMos | 2026
// handler.go

package comment

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/carterperez-dev/taskmanager/internal/core"
	"github.com/carterperez-dev/taskmanager/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// TaskRoutes serves the comments of one task. It expects to be mounted
// below a route that defines {taskID}.
func (h *Handler) TaskRoutes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Delete("/{commentID}", h.DeleteFromTask)
	return r
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/comments", func(r chi.Router) {
		r.Use(authenticator)
		r.Delete("/{commentID}", h.Delete)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathID(w, r, "taskID", "task")
	if !ok {
		return
	}

	comments, err := h.service.List(r.Context(), middleware.GetActor(r.Context()), taskID)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, ToCommentResponseList(comments))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathID(w, r, "taskID", "task")
	if !ok {
		return
	}

	var req CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	c, err := h.service.Create(r.Context(), middleware.GetActor(r.Context()), taskID, req)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.Created(w, ToCommentResponse(c))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "commentID", "comment")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), middleware.GetActor(r.Context()), id); err != nil {
		core.JSONError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) DeleteFromTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathID(w, r, "taskID", "task")
	if !ok {
		return
	}
	id, ok := pathID(w, r, "commentID", "comment")
	if !ok {
		return
	}

	err := h.service.DeleteFromTask(r.Context(), middleware.GetActor(r.Context()), taskID, id)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.NoContent(w)
}

func pathID(w http.ResponseWriter, r *http.Request, param, resource string) (string, bool) {
	raw := chi.URLParam(r, param)
	if _, err := uuid.Parse(raw); err != nil {
		core.NotFound(w, resource)
		return "", false
	}
	return raw, true
}
