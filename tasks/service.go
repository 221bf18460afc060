package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"unicode/utf8"

	taskAuth "github.com/MrEthical07/taskAuth"
	"github.com/MrEthical07/taskAuth/identity"
	"github.com/MrEthical07/taskAuth/permission"
)

const (
	MaxTitleRunes       = 255
	MaxDescriptionRunes = 4000
	MaxCommentRunes     = 2000
)

// Authorizer records a guard decision and converts a denial to an error.
// *taskAuth.Engine implements it.
type Authorizer interface {
	Authorize(ctx context.Context, caller identity.Identity, d permission.Decision) error
}

// UserDirectory resolves a username or email to an identity.
// *taskAuth.Engine implements it.
type UserDirectory interface {
	LookupUser(ctx context.Context, login string) (identity.Identity, error)
}

// Deps wires a Service. Store and Users are required. A nil Guard applies the
// strict rules; a nil Authorizer converts decisions with Decision.Err.
type Deps struct {
	Store      Store
	Guard      *permission.Guard
	Authorizer Authorizer
	Users      UserDirectory
	Logger     *slog.Logger
}

// Service runs guarded task operations.
type Service struct {
	store  Store
	guard  *permission.Guard
	authz  Authorizer
	users  UserDirectory
	logger *slog.Logger
}

func NewService(d Deps) (*Service, error) {
	if d.Store == nil {
		return nil, errors.New("task store required")
	}
	if d.Users == nil {
		return nil, errors.New("user directory required")
	}
	if d.Guard == nil {
		d.Guard = permission.NewGuard(permission.Policy{})
	}
	if d.Logger == nil {
		d.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		store:  d.Store,
		guard:  d.Guard,
		authz:  d.Authorizer,
		users:  d.Users,
		logger: d.Logger,
	}, nil
}

// Create stores a new task authored by caller.
func (s *Service) Create(ctx context.Context, caller identity.Identity, draft Draft) (Task, error) {
	if err := s.authorize(ctx, caller, s.guard.CanCreateTask(caller)); err != nil {
		return Task{}, err
	}

	title := strings.TrimSpace(draft.Title)
	if err := checkText("title", title, 1, MaxTitleRunes); err != nil {
		return Task{}, err
	}
	if err := checkText("description", draft.Description, 0, MaxDescriptionRunes); err != nil {
		return Task{}, err
	}

	task := Task{
		Title:       title,
		Description: draft.Description,
		Status:      draft.Status,
		Priority:    draft.Priority,
		Author:      memberOf(caller),
	}
	if task.Status == "" {
		task.Status = StatusNotLaunched
	}
	if task.Priority == "" {
		task.Priority = PriorityMedium
	}
	if !task.Status.Valid() {
		return Task{}, fmt.Errorf("%w: unknown status %q", taskAuth.ErrInvalidRequest, task.Status)
	}
	if !task.Priority.Valid() {
		return Task{}, fmt.Errorf("%w: unknown priority %q", taskAuth.ErrInvalidRequest, task.Priority)
	}

	created, err := s.store.Create(ctx, task)
	if err != nil {
		s.logger.ErrorContext(ctx, "create task failed", slog.Int64("author_id", caller.ID), slog.Any("error", err))
		return Task{}, err
	}
	return created, nil
}

// Get returns a task to any resolved identity.
func (s *Service) Get(ctx context.Context, caller identity.Identity, id int64) (Task, error) {
	if err := s.requireIdentity(ctx, caller, s.guard.CanViewTask); err != nil {
		return Task{}, err
	}
	task, err := s.store.Get(ctx, id)
	if err != nil {
		return Task{}, err
	}
	if err := s.authorize(ctx, caller, s.guard.CanViewTask(caller, task.Ref())); err != nil {
		return Task{}, err
	}
	return task, nil
}

// ListByAuthor returns tasks written by authorID, ordered by id.
func (s *Service) ListByAuthor(ctx context.Context, caller identity.Identity, authorID int64, page Page) ([]Task, error) {
	if err := s.authorize(ctx, caller, s.guard.CanViewTask(caller, permission.TaskRef{})); err != nil {
		return nil, err
	}
	return s.store.ListByAuthor(ctx, authorID, page)
}

// ListByExecutor returns tasks assigned to executorID, ordered by id.
func (s *Service) ListByExecutor(ctx context.Context, caller identity.Identity, executorID int64, page Page) ([]Task, error) {
	if err := s.authorize(ctx, caller, s.guard.CanViewTask(caller, permission.TaskRef{})); err != nil {
		return nil, err
	}
	return s.store.ListByExecutor(ctx, executorID, page)
}

// Edit changes title, description or priority. Author only.
func (s *Service) Edit(ctx context.Context, caller identity.Identity, id int64, edit Edit) (Task, error) {
	return s.mutate(ctx, caller, id, edit.Version, s.guard.CanEditTask, func(t *Task) error {
		if edit.Title != nil {
			title := strings.TrimSpace(*edit.Title)
			if err := checkText("title", title, 1, MaxTitleRunes); err != nil {
				return err
			}
			t.Title = title
		}
		if edit.Description != nil {
			if err := checkText("description", *edit.Description, 0, MaxDescriptionRunes); err != nil {
				return err
			}
			t.Description = *edit.Description
		}
		if edit.Priority != nil {
			if !edit.Priority.Valid() {
				return fmt.Errorf("%w: unknown priority %q", taskAuth.ErrInvalidRequest, *edit.Priority)
			}
			t.Priority = *edit.Priority
		}
		return nil
	})
}

// ChangeStatus moves the task to status. Only an assigned executor may do
// this; the author is not implicitly an executor.
func (s *Service) ChangeStatus(ctx context.Context, caller identity.Identity, id int64, status Status, version int64) (Task, error) {
	if !status.Valid() {
		return Task{}, fmt.Errorf("%w: unknown status %q", taskAuth.ErrInvalidRequest, status)
	}
	return s.mutate(ctx, caller, id, version, s.guard.CanChangeStatus, func(t *Task) error {
		t.Status = status
		return nil
	})
}

// AddExecutor assigns the user named by login. Author only. Unknown users
// return taskAuth.ErrIdentityNotFound. Adding an existing executor is a
// no-op write.
func (s *Service) AddExecutor(ctx context.Context, caller identity.Identity, id int64, login string) (Task, error) {
	return s.mutate(ctx, caller, id, 0, s.guard.CanManageExecutors, func(t *Task) error {
		user, err := s.users.LookupUser(ctx, login)
		if err != nil {
			return err
		}
		if !t.HasExecutor(user.ID) {
			t.Executors = append(t.Executors, memberOf(user))
		}
		return nil
	})
}

// RemoveExecutor unassigns the user named by login. Author only.
func (s *Service) RemoveExecutor(ctx context.Context, caller identity.Identity, id int64, login string) (Task, error) {
	return s.mutate(ctx, caller, id, 0, s.guard.CanManageExecutors, func(t *Task) error {
		user, err := s.users.LookupUser(ctx, login)
		if err != nil {
			return err
		}
		t.Executors = slices.DeleteFunc(t.Executors, func(m Member) bool { return m.ID == user.ID })
		return nil
	})
}

// Delete removes the task. Author only.
func (s *Service) Delete(ctx context.Context, caller identity.Identity, id int64) error {
	if err := s.requireIdentity(ctx, caller, s.guard.CanDeleteTask); err != nil {
		return err
	}
	task, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, caller, s.guard.CanDeleteTask(caller, task.Ref())); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// AddComment appends a comment written by caller.
func (s *Service) AddComment(ctx context.Context, caller identity.Identity, taskID int64, text string) (Task, error) {
	if err := checkText("comment", strings.TrimSpace(text), 1, MaxCommentRunes); err != nil {
		return Task{}, err
	}
	return s.mutate(ctx, caller, taskID, 0, s.guard.CanComment, func(t *Task) error {
		t.Comments = append(t.Comments, StampComment(caller, Comment{TaskID: t.ID, Text: text}))
		return nil
	})
}

// mutate loads the task, checks the decision, applies fn and writes with the
// loaded version.
func (s *Service) mutate(
	ctx context.Context,
	caller identity.Identity,
	id int64,
	version int64,
	check func(identity.Identity, permission.TaskRef) permission.Decision,
	fn func(*Task) error,
) (Task, error) {
	if err := s.requireIdentity(ctx, caller, check); err != nil {
		return Task{}, err
	}
	task, err := s.store.Get(ctx, id)
	if err != nil {
		return Task{}, err
	}
	if err := s.authorize(ctx, caller, check(caller, task.Ref())); err != nil {
		return Task{}, err
	}
	if version != 0 && version != task.Version {
		return Task{}, taskAuth.ErrConflictingUpdate
	}
	if err := fn(&task); err != nil {
		return Task{}, err
	}

	updated, err := s.store.Update(ctx, task)
	switch {
	case err == nil:
		return updated, nil
	case errors.Is(err, ErrTaskVersionConflict):
		return Task{}, taskAuth.ErrConflictingUpdate
	case errors.Is(err, ErrTaskNotFound):
		return Task{}, err
	default:
		s.logger.ErrorContext(ctx, "update task failed", slog.Int64("task_id", id), slog.Any("error", err))
		return Task{}, err
	}
}

// requireIdentity denies a zero caller before the store is read, so a
// missing task and a forbidden one look the same without an identity.
func (s *Service) requireIdentity(
	ctx context.Context,
	caller identity.Identity,
	check func(identity.Identity, permission.TaskRef) permission.Decision,
) error {
	if !caller.IsZero() {
		return nil
	}
	return s.authorize(ctx, caller, check(caller, permission.TaskRef{}))
}

func (s *Service) authorize(ctx context.Context, caller identity.Identity, d permission.Decision) error {
	if s.authz != nil {
		return s.authz.Authorize(ctx, caller, d)
	}
	return d.Err()
}

func checkText(field, value string, minRunes, maxRunes int) error {
	n := utf8.RuneCountInString(value)
	if n < minRunes {
		return fmt.Errorf("%w: %s is required", taskAuth.ErrInvalidRequest, field)
	}
	if n > maxRunes {
		return fmt.Errorf("%w: %s exceeds %d characters", taskAuth.ErrInvalidRequest, field, maxRunes)
	}
	return nil
}
