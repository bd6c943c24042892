// AngelaMos | 2026
// handler.go

package task

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/carterperez-dev/taskmanager/internal/core"
	"github.com/carterperez-dev/taskmanager/internal/middleware"
)

// Exporter schedules an export of a user's assigned tasks and returns the
// job id.
type Exporter interface {
	RequestExport(ctx context.Context, userID string) (string, error)
}

type Handler struct {
	service   *Service
	exporter  Exporter
	validator *validator.Validate
	now       func() time.Time
}

func NewHandler(service *Service, exporter Exporter) *Handler {
	return &Handler{
		service:   service,
		exporter:  exporter,
		validator: validator.New(validator.WithRequiredStructEnabled()),
		now:       time.Now,
	}
}

// RegisterRoutes mounts /tasks. comments, when set, is served under
// /tasks/{taskID}/comments.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	comments http.Handler,
) {
	r.Route("/tasks", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/dashboard", h.Dashboard)
		r.Get("/overdue", h.Overdue)

		r.Route("/{taskID}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Put("/", h.Update)
			r.Patch("/", h.Update)
			r.Delete("/", h.Delete)
			r.Post("/assign", h.Assign)
			r.Patch("/assign", h.Assign)
			r.Post("/complete", h.Complete)
			r.Patch("/complete", h.Complete)
			r.Post("/export", h.Export)

			if comments != nil {
				r.Mount("/comments", comments)
			}
		})
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := ListParams{
		Page:         parseIntQuery(r, "page", 1),
		PerPage:      parseIntQuery(r, "per_page", defaultPerPage),
		Status:       q.Get("status"),
		Priority:     q.Get("priority"),
		AssignedToMe: parseBoolQuery(r, "assigned_to_me"),
		CreatedByMe:  parseBoolQuery(r, "created_by_me"),
	}
	params.Normalize()

	tasks, total, err := h.service.List(r.Context(), middleware.GetActor(r.Context()), params)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.Paginated(w, ToTaskResponseList(tasks, h.now()), params.Page, params.PerPage, total)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if !h.decode(w, r, &req) {
		return
	}

	t, err := h.service.Create(r.Context(), middleware.GetActor(r.Context()), req)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.Created(w, ToTaskResponse(t, h.now()))
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Dashboard(r.Context(), middleware.GetActor(r.Context()))
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, ToDashboardResponse(d, h.now()))
}

func (h *Handler) Overdue(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.service.Overdue(r.Context(), middleware.GetActor(r.Context()))
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, ToTaskResponseList(tasks, h.now()))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	t, err := h.service.Get(r.Context(), middleware.GetActor(r.Context()), id)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, ToTaskResponse(t, h.now()))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if !h.decode(w, r, &req) {
		return
	}

	t, err := h.service.Update(r.Context(), middleware.GetActor(r.Context()), id, req)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, ToTaskResponse(t, h.now()))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	if err := h.service.Destroy(r.Context(), middleware.GetActor(r.Context()), id); err != nil {
		core.JSONError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	var req AssignTaskRequest
	if !h.decode(w, r, &req) {
		return
	}

	t, err := h.service.Assign(r.Context(), middleware.GetActor(r.Context()), id, req.AssigneeID)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, ToTaskResponse(t, h.now()))
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	t, err := h.service.Complete(r.Context(), middleware.GetActor(r.Context()), id)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, ToTaskResponse(t, h.now()))
}

// Export queues an export of the caller's assigned tasks. Access to the
// task in the path is required, matching view.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	actor := middleware.GetActor(r.Context())

	if err := h.service.AuthorizeExport(r.Context(), actor, id); err != nil {
		core.JSONError(w, err)
		return
	}

	if h.exporter == nil {
		core.JSONError(w, core.ErrServiceUnavailable)
		return
	}

	jobID, err := h.exporter.RequestExport(r.Context(), actor.ID)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.Accepted(w, map[string]string{
		"job_id":  jobID,
		"message": "Export started. You will receive an email when ready.",
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}

	return true
}

// taskID reads the path id. Anything that is not a UUID cannot name a
// task and is reported as not found.
func taskID(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "taskID")
	if _, err := uuid.Parse(raw); err != nil {
		core.NotFound(w, "task")
		return "", false
	}
	return raw, true
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return parsed
}

func parseBoolQuery(r *http.Request, key string) bool {
	ok, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && ok
}
