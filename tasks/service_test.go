package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	taskAuth "github.com/MrEthical07/taskAuth"
	"github.com/MrEthical07/taskAuth/identity"
	"github.com/MrEthical07/taskAuth/permission"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	author   = identity.Identity{ID: 1, Username: "author", Role: identity.RoleUser}
	executor = identity.Identity{ID: 2, Username: "executor", Role: identity.RoleUser}
	outsider = identity.Identity{ID: 3, Username: "outsider", Role: identity.RoleUser}
)

type directory map[string]identity.Identity

func (d directory) LookupUser(_ context.Context, login string) (identity.Identity, error) {
	id, ok := d[login]
	if !ok {
		return identity.Identity{}, taskAuth.ErrIdentityNotFound
	}
	return id, nil
}

type recordingAuthorizer struct {
	denied []permission.Decision
}

func (r *recordingAuthorizer) Authorize(_ context.Context, _ identity.Identity, d permission.Decision) error {
	if !d.Allowed {
		r.denied = append(r.denied, d)
	}
	return d.Err()
}

func newService(t *testing.T) (*Service, *recordingAuthorizer) {
	t.Helper()
	authz := &recordingAuthorizer{}
	svc, err := NewService(Deps{
		Store:      NewMemoryStore(),
		Authorizer: authz,
		Users: directory{
			"author":   author,
			"executor": executor,
			"outsider": outsider,
		},
	})
	require.NoError(t, err)
	return svc, authz
}

func seedTask(t *testing.T, svc *Service) Task {
	t.Helper()
	ctx := context.Background()
	task, err := svc.Create(ctx, author, Draft{Title: "write report", Priority: PriorityHigh})
	require.NoError(t, err)
	task, err = svc.AddExecutor(ctx, author, task.ID, "executor")
	require.NoError(t, err)
	return task
}

func TestCreateStampsAuthorAndDefaults(t *testing.T) {
	svc, _ := newService(t)

	task, err := svc.Create(context.Background(), author, Draft{Title: "  title  "})
	require.NoError(t, err)
	assert.Equal(t, "title", task.Title)
	assert.Equal(t, Member{ID: 1, Username: "author"}, task.Author)
	assert.Equal(t, StatusNotLaunched, task.Status)
	assert.Equal(t, PriorityMedium, task.Priority)
	assert.Equal(t, int64(1), task.Version)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, author, Draft{Title: "   "})
	assert.ErrorIs(t, err, taskAuth.ErrInvalidRequest)

	_, err = svc.Create(ctx, author, Draft{Title: "x", Priority: "URGENT"})
	assert.ErrorIs(t, err, taskAuth.ErrInvalidRequest)

	_, err = svc.Create(ctx, identity.Identity{}, Draft{Title: "x"})
	assert.ErrorIs(t, err, taskAuth.ErrDenied)
}

func TestEditAuthorOnly(t *testing.T) {
	svc, authz := newService(t)
	task := seedTask(t, svc)
	title := "new title"

	_, err := svc.Edit(context.Background(), executor, task.ID, Edit{Title: &title})
	require.ErrorIs(t, err, taskAuth.ErrDenied)
	assert.Equal(t, permission.ReasonNotAuthor, permission.ReasonOf(err))
	require.Len(t, authz.denied, 1)
	assert.Equal(t, permission.ActionEditTask, authz.denied[0].Action)

	got, err := svc.Get(context.Background(), outsider, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "write report", got.Title)

	edited, err := svc.Edit(context.Background(), author, task.ID, Edit{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "new title", edited.Title)
	assert.Equal(t, task.Version+1, edited.Version)
}

func TestChangeStatusExecutorOnly(t *testing.T) {
	svc, _ := newService(t)
	task := seedTask(t, svc)
	ctx := context.Background()

	_, err := svc.ChangeStatus(ctx, author, task.ID, StatusDone, 0)
	assert.ErrorIs(t, err, taskAuth.ErrDenied)
	assert.Equal(t, permission.ReasonNotExecutor, permission.ReasonOf(err))

	_, err = svc.ChangeStatus(ctx, outsider, task.ID, StatusDone, 0)
	assert.ErrorIs(t, err, taskAuth.ErrDenied)

	done, err := svc.ChangeStatus(ctx, executor, task.ID, StatusDone, 0)
	require.NoError(t, err)
	assert.Equal(t, StatusDone, done.Status)

	_, err = svc.ChangeStatus(ctx, executor, task.ID, "FINISHED", 0)
	assert.ErrorIs(t, err, taskAuth.ErrInvalidRequest)
}

func TestStaleVersionConflicts(t *testing.T) {
	svc, _ := newService(t)
	task := seedTask(t, svc)

	_, err := svc.ChangeStatus(context.Background(), executor, task.ID, StatusInProcess, task.Version-1)
	assert.ErrorIs(t, err, taskAuth.ErrConflictingUpdate)
	assert.True(t, taskAuth.IsRetryable(err))
}

func TestConcurrentStatusChangesOneWinsPerVersion(t *testing.T) {
	svc, _ := newService(t)
	task := seedTask(t, svc)

	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ChangeStatus(context.Background(), executor, task.ID, StatusInProcess, task.Version)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, taskAuth.ErrConflictingUpdate):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(7), conflicts.Load())
}

func TestManageExecutors(t *testing.T) {
	svc, _ := newService(t)
	task := seedTask(t, svc)
	ctx := context.Background()

	_, err := svc.AddExecutor(ctx, executor, task.ID, "outsider")
	assert.ErrorIs(t, err, taskAuth.ErrDenied)

	_, err = svc.AddExecutor(ctx, author, task.ID, "ghost")
	assert.ErrorIs(t, err, taskAuth.ErrIdentityNotFound)

	again, err := svc.AddExecutor(ctx, author, task.ID, "executor")
	require.NoError(t, err)
	assert.Len(t, again.Executors, 1)

	removed, err := svc.RemoveExecutor(ctx, author, task.ID, "executor")
	require.NoError(t, err)
	assert.Empty(t, removed.Executors)

	_, err = svc.ChangeStatus(ctx, executor, task.ID, StatusDone, 0)
	assert.ErrorIs(t, err, taskAuth.ErrDenied)
}

func TestCommentAuthorComesFromIdentity(t *testing.T) {
	svc, _ := newService(t)
	task := seedTask(t, svc)

	updated, err := svc.AddComment(context.Background(), outsider, task.ID, "looks good")
	require.NoError(t, err)
	require.Len(t, updated.Comments, 1)
	c := updated.Comments[0]
	assert.Equal(t, Member{ID: 3, Username: "outsider"}, c.Author)
	assert.Equal(t, task.ID, c.TaskID)
	assert.NotZero(t, c.ID)

	_, err = svc.AddComment(context.Background(), identity.Identity{}, task.ID, "anon")
	assert.ErrorIs(t, err, taskAuth.ErrDenied)
}

func TestStampCommentDiscardsClientAuthor(t *testing.T) {
	forged := Comment{Text: "hi", Author: Member{ID: 1, Username: "author"}}
	got := StampComment(outsider, forged)
	assert.Equal(t, Member{ID: 3, Username: "outsider"}, got.Author)
	assert.Equal(t, "hi", got.Text)
}

func TestDeleteAuthorOnly(t *testing.T) {
	svc, _ := newService(t)
	task := seedTask(t, svc)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Delete(ctx, executor, task.ID), taskAuth.ErrDenied)
	require.NoError(t, svc.Delete(ctx, author, task.ID))

	_, err := svc.Get(ctx, author, task.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestZeroIdentityDeniedBeforeLookup(t *testing.T) {
	svc, authz := newService(t)
	task := seedTask(t, svc)
	ctx := context.Background()
	var nobody identity.Identity

	for _, id := range []int64{task.ID, task.ID + 100} {
		_, err := svc.Get(ctx, nobody, id)
		assert.ErrorIs(t, err, taskAuth.ErrDenied)
		assert.NotErrorIs(t, err, ErrTaskNotFound)

		_, err = svc.ChangeStatus(ctx, nobody, id, StatusDone, 0)
		assert.ErrorIs(t, err, taskAuth.ErrDenied)

		_, err = svc.AddComment(ctx, nobody, id, "hello")
		assert.ErrorIs(t, err, taskAuth.ErrDenied)

		err = svc.Delete(ctx, nobody, id)
		assert.ErrorIs(t, err, taskAuth.ErrDenied)
		assert.Equal(t, permission.ReasonNoIdentity, permission.ReasonOf(err))
	}
	require.Len(t, authz.denied, 8)

	stored, err := svc.Get(ctx, author, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.Version, stored.Version)
}

func TestListings(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	first := seedTask(t, svc)
	_, err := svc.Create(ctx, author, Draft{Title: "second"})
	require.NoError(t, err)

	byAuthor, err := svc.ListByAuthor(ctx, outsider, author.ID, Page{})
	require.NoError(t, err)
	assert.Len(t, byAuthor, 2)
	assert.Equal(t, first.ID, byAuthor[0].ID)

	byExec, err := svc.ListByExecutor(ctx, outsider, executor.ID, Page{})
	require.NoError(t, err)
	require.Len(t, byExec, 1)
	assert.Equal(t, first.ID, byExec[0].ID)

	paged, err := svc.ListByAuthor(ctx, outsider, author.ID, Page{Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "second", paged[0].Title)
}

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(Deps{Users: directory{}})
	assert.Error(t, err)
	_, err = NewService(Deps{Store: NewMemoryStore()})
	assert.Error(t, err)
}
