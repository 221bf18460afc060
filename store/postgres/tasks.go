package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/taskAuth/tasks"
)

// TaskStore is a PostgreSQL-backed tasks.Store. Executors and comments are
// JSONB columns on the tasks row so a task reads and writes as one unit.
type TaskStore struct {
	db  DBTX
	now func() time.Time
}

func NewTaskStore(db DBTX) *TaskStore {
	return &TaskStore{db: db, now: time.Now}
}

// WithClock returns s with a different time source for timestamps.
func (s *TaskStore) WithClock(now func() time.Time) *TaskStore {
	if now != nil {
		s.now = now
	}
	return s
}

const taskColumns = `id, title, description, status, priority, author_id, author_username, executors, comments, version, created_at, updated_at`

type memberRow struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type commentRow struct {
	ID        int64     `json:"id"`
	Author    memberRow `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (tasks.Task, error) {
	var (
		t                        tasks.Task
		status, priority         string
		executorsJSON, notesJSON []byte
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &status, &priority,
		&t.Author.ID, &t.Author.Username, &executorsJSON, &notesJSON,
		&t.Version, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return tasks.Task{}, tasks.ErrTaskNotFound
		}
		return tasks.Task{}, err
	}
	t.Status = tasks.Status(status)
	t.Priority = tasks.Priority(priority)

	var members []memberRow
	if err := json.Unmarshal(executorsJSON, &members); err != nil {
		return tasks.Task{}, fmt.Errorf("decode executors of task %d: %w", t.ID, err)
	}
	t.Executors = make([]tasks.Member, len(members))
	for i, m := range members {
		t.Executors[i] = tasks.Member{ID: m.ID, Username: m.Username}
	}

	var notes []commentRow
	if err := json.Unmarshal(notesJSON, &notes); err != nil {
		return tasks.Task{}, fmt.Errorf("decode comments of task %d: %w", t.ID, err)
	}
	t.Comments = make([]tasks.Comment, len(notes))
	for i, c := range notes {
		t.Comments[i] = tasks.Comment{
			ID:        c.ID,
			TaskID:    t.ID,
			Author:    tasks.Member{ID: c.Author.ID, Username: c.Author.Username},
			Text:      c.Text,
			CreatedAt: c.CreatedAt,
		}
	}
	return t, nil
}

func encodeMembers(members []tasks.Member) ([]byte, error) {
	rows := make([]memberRow, len(members))
	for i, m := range members {
		rows[i] = memberRow{ID: m.ID, Username: m.Username}
	}
	return json.Marshal(rows)
}

func encodeComments(comments []tasks.Comment) ([]byte, error) {
	rows := make([]commentRow, len(comments))
	for i, c := range comments {
		rows[i] = commentRow{
			ID:        c.ID,
			Author:    memberRow{ID: c.Author.ID, Username: c.Author.Username},
			Text:      c.Text,
			CreatedAt: c.CreatedAt.UTC(),
		}
	}
	return json.Marshal(rows)
}

// assignCommentIDs draws ids for comments that have none.
func (s *TaskStore) assignCommentIDs(ctx context.Context, task *tasks.Task, now time.Time) error {
	for i := range task.Comments {
		if task.Comments[i].ID != 0 {
			continue
		}
		var id int64
		if err := s.db.QueryRowContext(ctx, `SELECT nextval('task_comment_id_seq')`).Scan(&id); err != nil {
			return err
		}
		task.Comments[i].ID = id
		task.Comments[i].TaskID = task.ID
		if task.Comments[i].CreatedAt.IsZero() {
			task.Comments[i].CreatedAt = now
		}
	}
	return nil
}

func (s *TaskStore) Create(ctx context.Context, task tasks.Task) (tasks.Task, error) {
	task = task.Clone()
	if err := s.db.QueryRowContext(ctx, `SELECT nextval('tasks_id_seq')`).Scan(&task.ID); err != nil {
		return tasks.Task{}, err
	}

	now := s.now().UTC()
	if err := s.assignCommentIDs(ctx, &task, now); err != nil {
		return tasks.Task{}, err
	}
	executors, err := encodeMembers(task.Executors)
	if err != nil {
		return tasks.Task{}, err
	}
	comments, err := encodeComments(task.Comments)
	if err != nil {
		return tasks.Task{}, err
	}

	query :=
		`INSERT INTO tasks (id, title, description, status, priority, author_id, author_username, executors, comments, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $10, $10)
		 RETURNING ` + taskColumns

	return scanTask(s.db.QueryRowContext(ctx, query,
		task.ID, task.Title, task.Description, string(task.Status), string(task.Priority),
		task.Author.ID, task.Author.Username, executors, comments, now))
}

func (s *TaskStore) Get(ctx context.Context, id int64) (tasks.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	return scanTask(s.db.QueryRowContext(ctx, query, id))
}

func (s *TaskStore) ListByAuthor(ctx context.Context, authorID int64, page tasks.Page) ([]tasks.Task, error) {
	page = page.Normalize()
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE author_id = $1 ORDER BY id LIMIT $2 OFFSET $3`
	return s.list(ctx, query, authorID, page.Limit, page.Offset)
}

// ListByExecutor matches through JSONB containment so the GIN index on
// executors serves the lookup.
func (s *TaskStore) ListByExecutor(ctx context.Context, executorID int64, page tasks.Page) ([]tasks.Task, error) {
	page = page.Normalize()
	contains, err := json.Marshal([]struct {
		ID int64 `json:"id"`
	}{{ID: executorID}})
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE executors @> $1::jsonb ORDER BY id LIMIT $2 OFFSET $3`
	return s.list(ctx, query, string(contains), page.Limit, page.Offset)
}

func (s *TaskStore) list(ctx context.Context, query string, args ...any) ([]tasks.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]tasks.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update writes the mutable columns when the stored version equals
// task.Version. Author and created_at are never rewritten.
func (s *TaskStore) Update(ctx context.Context, task tasks.Task) (tasks.Task, error) {
	task = task.Clone()
	now := s.now().UTC()
	if err := s.assignCommentIDs(ctx, &task, now); err != nil {
		return tasks.Task{}, err
	}
	executors, err := encodeMembers(task.Executors)
	if err != nil {
		return tasks.Task{}, err
	}
	comments, err := encodeComments(task.Comments)
	if err != nil {
		return tasks.Task{}, err
	}

	query :=
		`UPDATE tasks
		 SET title = $1, description = $2, status = $3, priority = $4, executors = $5, comments = $6,
		     version = version + 1, updated_at = $7
		 WHERE id = $8 AND version = $9
		 RETURNING ` + taskColumns

	updated, err := scanTask(s.db.QueryRowContext(ctx, query,
		task.Title, task.Description, string(task.Status), string(task.Priority),
		executors, comments, now, task.ID, task.Version))
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, tasks.ErrTaskNotFound) {
		return tasks.Task{}, err
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, task.ID).Scan(&exists); err != nil {
		return tasks.Task{}, err
	}
	if exists {
		return tasks.Task{}, tasks.ErrTaskVersionConflict
	}
	return tasks.Task{}, tasks.ErrTaskNotFound
}

func (s *TaskStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return tasks.ErrTaskNotFound
	}
	return nil
}

var _ tasks.Store = (*TaskStore)(nil)
