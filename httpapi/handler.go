package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	taskAuth "github.com/MrEthical07/taskAuth"
	"github.com/MrEthical07/taskAuth/middleware"
	"github.com/MrEthical07/taskAuth/tasks"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler serves the auth, profile and task endpoints.
type Handler struct {
	logger    *slog.Logger
	engine    *taskAuth.Engine
	tasks     *tasks.Service
	validator *validator.Validate
}

// NewHandler constructs a Handler. A nil logger discards output.
func NewHandler(logger *slog.Logger, engine *taskAuth.Engine, taskService *tasks.Service) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{
		logger:    logger,
		engine:    engine,
		tasks:     taskService,
		validator: v,
	}
}

// MountRoutes registers all API routes on r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", h.signUp)
		r.Post("/auth/login", h.signIn)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Guard(h.engine))

			r.Get("/user", h.getUser)
			r.Put("/user", h.updateUser)
			r.Delete("/user", h.deleteUser)
			r.Put("/user/password", h.changePassword)

			r.Get("/task", h.listOwnTasks)
			r.Post("/task", h.createTask)
			r.Get("/task/username/{username}", h.listTasksByAuthor)
			r.Get("/task/executor/{username}", h.listTasksByExecutor)
			r.Get("/task/{id}", h.getTask)
			r.Put("/task/{id}", h.editTask)
			r.Delete("/task/{id}", h.deleteTask)
			r.Put("/task/{id}/status/{status}", h.changeStatus)
			r.Put("/task/{id}/executor/{username}", h.addExecutor)
			r.Delete("/task/{id}/executor/{username}", h.removeExecutor)

			r.Put("/comment/task_id/{id}", h.addComment)
		})
	})
}

// decode reads and validates a JSON body.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := DecodeJSON(w, r, target); err != nil {
		h.writeError(w, r, err)
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		h.writeError(w, r, err)
		return false
	}
	return true
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (taskAuth.Identity, bool) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok || id.IsZero() {
		Problem(w, ProblemDetail{Status: http.StatusUnauthorized, Title: problemUnauthorized})
		return taskAuth.Identity{}, false
	}
	return id, true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, r, fmt.Errorf("%w: invalid task id", taskAuth.ErrInvalidRequest))
		return 0, false
	}
	return id, true
}

func queryVersion(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("version")
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: invalid version", taskAuth.ErrInvalidRequest)
	}
	return v, nil
}

func queryPage(r *http.Request) (tasks.Page, error) {
	var page tasks.Page
	q := r.URL.Query()
	for key, dst := range map[string]*int{"offset": &page.Offset, "limit": &page.Limit} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return tasks.Page{}, fmt.Errorf("%w: invalid %s", taskAuth.ErrInvalidRequest, key)
		}
		*dst = n
	}
	return page, nil
}

// namedUser resolves a username from the path. A miss is a 404, not a 401.
func (h *Handler) namedUser(r *http.Request) (taskAuth.Identity, error) {
	id, err := h.engine.LookupUser(middleware.AuditContext(r), chi.URLParam(r, "username"))
	if errors.Is(err, taskAuth.ErrIdentityNotFound) {
		return taskAuth.Identity{}, errUnknownUser
	}
	return id, err
}

// ---- auth ----

func (h *Handler) signUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !h.decode(w, r, &req) {
		return
	}

	token, err := h.engine.SignUp(middleware.AuditContext(r), taskAuth.SignUpRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, tokenDTO(token))
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !h.decode(w, r, &req) {
		return
	}

	token, err := h.engine.SignIn(middleware.AuditContext(r), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, tokenDTO(token))
}

// ---- user ----

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	profile, err := h.engine.Profile(r.Context(), caller)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	authored, err := h.tasks.ListByAuthor(r.Context(), caller, caller.ID, tasks.Page{Limit: tasks.MaxPageLimit})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, userDTO(profile, authored))
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req updateUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	profile, err := h.engine.UpdateProfile(r.Context(), caller, caller.ID, taskAuth.ProfileUpdate{
		Email:   req.Email,
		Version: req.Version,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, userDTO(profile, nil))
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := h.engine.DeleteProfile(r.Context(), caller, caller.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.engine.ChangePassword(r.Context(), caller, caller.ID, req.CurrentPassword, req.NewPassword); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- tasks ----

func (h *Handler) listOwnTasks(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	page, err := queryPage(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	list, err := h.tasks.ListByAuthor(r.Context(), caller, caller.ID, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, taskDTOs(list))
}

func (h *Handler) listTasksByAuthor(w http.ResponseWriter, r *http.Request) {
	h.listByUser(w, r, h.tasks.ListByAuthor)
}

func (h *Handler) listTasksByExecutor(w http.ResponseWriter, r *http.Request) {
	h.listByUser(w, r, h.tasks.ListByExecutor)
}

type userListFunc func(context.Context, taskAuth.Identity, int64, tasks.Page) ([]tasks.Task, error)

func (h *Handler) listByUser(w http.ResponseWriter, r *http.Request, list userListFunc) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	page, err := queryPage(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.namedUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out, err := list(r.Context(), caller, user.ID, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, taskDTOs(out))
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req createTaskRequest
	if !h.decode(w, r, &req) {
		return
	}

	task, err := h.tasks.Create(r.Context(), caller, tasks.Draft{
		Title:       req.Title,
		Description: req.Description,
		Status:      tasks.Status(req.Status),
		Priority:    tasks.Priority(req.Priority),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, taskDTO(task))
}

func (h *Handler) getTask(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	task, err := h.tasks.Get(r.Context(), caller, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, taskDTO(task))
}

func (h *Handler) editTask(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req editTaskRequest
	if !h.decode(w, r, &req) {
		return
	}

	edit := tasks.Edit{
		Title:       req.Title,
		Description: req.Description,
		Version:     req.Version,
	}
	if req.Priority != nil {
		p := tasks.Priority(*req.Priority)
		edit.Priority = &p
	}
	task, err := h.tasks.Edit(r.Context(), caller, id, edit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, taskDTO(task))
}

func (h *Handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.tasks.Delete(r.Context(), caller, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	status, ok := tasks.ParseStatus(chi.URLParam(r, "status"))
	if !ok {
		h.writeError(w, r, fmt.Errorf("%w: unknown status %q", taskAuth.ErrInvalidRequest, chi.URLParam(r, "status")))
		return
	}
	version, err := queryVersion(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	task, err := h.tasks.ChangeStatus(r.Context(), caller, id, status, version)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, taskDTO(task))
}

func (h *Handler) addExecutor(w http.ResponseWriter, r *http.Request) {
	h.executorChange(w, r, h.tasks.AddExecutor)
}

func (h *Handler) removeExecutor(w http.ResponseWriter, r *http.Request) {
	h.executorChange(w, r, h.tasks.RemoveExecutor)
}

type executorFunc func(context.Context, taskAuth.Identity, int64, string) (tasks.Task, error)

func (h *Handler) executorChange(w http.ResponseWriter, r *http.Request, change executorFunc) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	task, err := change(r.Context(), caller, id, chi.URLParam(r, "username"))
	if errors.Is(err, taskAuth.ErrIdentityNotFound) {
		// The named executor is missing; the caller already resolved.
		err = errUnknownUser
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, taskDTO(task))
}

// ---- comments ----

func (h *Handler) addComment(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req commentRequest
	if !h.decode(w, r, &req) {
		return
	}

	task, err := h.tasks.AddComment(r.Context(), caller, id, req.Text)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, taskDTO(task))
}
