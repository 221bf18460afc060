package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/MrEthical07/taskAuth/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var taskRowColumns = []string{
	"id", "title", "description", "status", "priority", "author_id", "author_username",
	"executors", "comments", "version", "created_at", "updated_at",
}

func newTaskStoreWithMock(t *testing.T) (*TaskStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewTaskStore(db).WithClock(func() time.Time { return fixedNow }), mock
}

func reportRow(id, version int64, executors, comments string) *sqlmock.Rows {
	return sqlmock.NewRows(taskRowColumns).AddRow(
		id, "write report", "", "NOT_LAUNCH", "HIGH", int64(1), "alice",
		[]byte(executors), []byte(comments), version, fixedNow, fixedNow)
}

func TestTaskStoreCreate(t *testing.T) {
	s, mock := newTaskStoreWithMock(t)

	mock.ExpectQuery(`SELECT nextval\('tasks_id_seq'\)`).
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(int64(7)))
	mock.ExpectQuery(`(?s)^INSERT INTO tasks \(id, title, .*\) VALUES .* RETURNING id, title, `).
		WithArgs(int64(7), "write report", "", "NOT_LAUNCH", "HIGH", int64(1), "alice",
			[]byte("[]"), []byte("[]"), fixedNow).
		WillReturnRows(reportRow(7, 1, "[]", "[]"))

	created, err := s.Create(context.Background(), tasks.Task{
		Title:    "write report",
		Status:   tasks.StatusNotLaunched,
		Priority: tasks.PriorityHigh,
		Author:   tasks.Member{ID: 1, Username: "alice"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), created.ID)
	assert.Equal(t, int64(1), created.Version)
	assert.Equal(t, tasks.PriorityHigh, created.Priority)
	assert.Empty(t, created.Executors)
}

func TestTaskStoreGetDecodesJSON(t *testing.T) {
	s, mock := newTaskStoreWithMock(t)

	mock.ExpectQuery(`FROM tasks WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(reportRow(3, 4,
			`[{"id":2,"username":"bobby"}]`,
			`[{"id":9,"author":{"id":2,"username":"bobby"},"text":"on it","created_at":"2024-05-06T07:08:09Z"}]`))

	task, err := s.Get(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []tasks.Member{{ID: 2, Username: "bobby"}}, task.Executors)
	require.Len(t, task.Comments, 1)
	assert.Equal(t, int64(9), task.Comments[0].ID)
	assert.Equal(t, int64(3), task.Comments[0].TaskID)
	assert.Equal(t, "bobby", task.Comments[0].Author.Username)
	assert.True(t, fixedNow.Equal(task.Comments[0].CreatedAt))
}

func TestTaskStoreGetNotFound(t *testing.T) {
	s, mock := newTaskStoreWithMock(t)

	mock.ExpectQuery(`FROM tasks WHERE id = \$1`).
		WithArgs(int64(5)).
		WillReturnError(sql.ErrNoRows)

	_, err := s.Get(context.Background(), 5)
	assert.ErrorIs(t, err, tasks.ErrTaskNotFound)
}

func TestTaskStoreListByExecutor(t *testing.T) {
	s, mock := newTaskStoreWithMock(t)

	rows := reportRow(1, 1, `[{"id":2,"username":"bobby"}]`, "[]")
	rows.AddRow(int64(4), "review", "", "DONE", "LOW", int64(1), "alice",
		[]byte(`[{"id":2,"username":"bobby"}]`), []byte("[]"), int64(2), fixedNow, fixedNow)

	mock.ExpectQuery(`WHERE executors @> \$1::jsonb ORDER BY id LIMIT \$2 OFFSET \$3`).
		WithArgs(`[{"id":2}]`, tasks.DefaultPageLimit, 0).
		WillReturnRows(rows)

	list, err := s.ListByExecutor(context.Background(), 2, tasks.Page{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(4), list[1].ID)
	assert.Equal(t, tasks.StatusDone, list[1].Status)
}

func TestTaskStoreListByAuthorClampsPage(t *testing.T) {
	s, mock := newTaskStoreWithMock(t)

	mock.ExpectQuery(`WHERE author_id = \$1 ORDER BY id LIMIT \$2 OFFSET \$3`).
		WithArgs(int64(1), tasks.MaxPageLimit, 0).
		WillReturnRows(sqlmock.NewRows(taskRowColumns))

	list, err := s.ListByAuthor(context.Background(), 1, tasks.Page{Offset: -3, Limit: 5000})
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestTaskStoreUpdateAssignsCommentIDs(t *testing.T) {
	s, mock := newTaskStoreWithMock(t)

	mock.ExpectQuery(`SELECT nextval\('task_comment_id_seq'\)`).
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(int64(11)))
	mock.ExpectQuery(`(?s)^UPDATE tasks.*WHERE id = \$8 AND version = \$9`).
		WithArgs("write report", "", "NOT_LAUNCH", "HIGH", []byte("[]"),
			sqlmock.AnyArg(), fixedNow, int64(3), int64(1)).
		WillReturnRows(reportRow(3, 2, "[]",
			`[{"id":11,"author":{"id":2,"username":"bobby"},"text":"on it","created_at":"2024-05-06T07:08:09Z"}]`))

	updated, err := s.Update(context.Background(), tasks.Task{
		ID:       3,
		Title:    "write report",
		Status:   tasks.StatusNotLaunched,
		Priority: tasks.PriorityHigh,
		Comments: []tasks.Comment{{Author: tasks.Member{ID: 2, Username: "bobby"}, Text: "on it"}},
		Version:  1,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	require.Len(t, updated.Comments, 1)
	assert.Equal(t, int64(11), updated.Comments[0].ID)
}

func TestTaskStoreUpdateConflictOrMissing(t *testing.T) {
	tests := []struct {
		name   string
		exists bool
		want   error
	}{
		{name: "stale version", exists: true, want: tasks.ErrTaskVersionConflict},
		{name: "deleted", exists: false, want: tasks.ErrTaskNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, mock := newTaskStoreWithMock(t)

			mock.ExpectQuery(`(?s)^UPDATE tasks`).WillReturnError(sql.ErrNoRows)
			mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM tasks WHERE id = \$1\)`).
				WithArgs(int64(3)).
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(tc.exists))

			_, err := s.Update(context.Background(), tasks.Task{ID: 3, Version: 1})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestTaskStoreDelete(t *testing.T) {
	s, mock := newTaskStoreWithMock(t)

	mock.ExpectExec(`DELETE FROM tasks WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM tasks WHERE id = \$1`).
		WithArgs(int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Delete(context.Background(), 3))
	assert.ErrorIs(t, s.Delete(context.Background(), 4), tasks.ErrTaskNotFound)
}
