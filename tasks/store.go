package tasks

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

var (
	// ErrTaskNotFound is returned for unknown task ids.
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskVersionConflict is returned by Store.Update when the stored
	// version differs from the task's.
	ErrTaskVersionConflict = errors.New("task version conflict")
)

// Store persists tasks. Update must compare the stored Version with
// task.Version, write, and store Version+1 atomically.
type Store interface {
	Create(ctx context.Context, task Task) (Task, error)
	Get(ctx context.Context, id int64) (Task, error)
	ListByAuthor(ctx context.Context, authorID int64, page Page) ([]Task, error)
	ListByExecutor(ctx context.Context, executorID int64, page Page) ([]Task, error)
	Update(ctx context.Context, task Task) (Task, error)
	Delete(ctx context.Context, id int64) error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu            sync.RWMutex
	nextID        int64
	nextCommentID int64
	tasks         map[int64]Task
	now           func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks: make(map[int64]Task),
		now:   time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, task Task) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	now := s.now().UTC()
	task = task.Clone()
	task.ID = s.nextID
	task.Version = 1
	task.CreatedAt = now
	task.UpdatedAt = now
	s.assignCommentIDs(&task)

	s.tasks[task.ID] = task
	return task.Clone(), nil
}

func (s *MemoryStore) Get(ctx context.Context, id int64) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	return task.Clone(), nil
}

func (s *MemoryStore) ListByAuthor(ctx context.Context, authorID int64, page Page) ([]Task, error) {
	return s.list(ctx, page, func(t Task) bool { return t.Author.ID == authorID })
}

func (s *MemoryStore) ListByExecutor(ctx context.Context, executorID int64, page Page) ([]Task, error) {
	return s.list(ctx, page, func(t Task) bool { return t.HasExecutor(executorID) })
}

func (s *MemoryStore) list(ctx context.Context, page Page, match func(Task) bool) ([]Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page = page.Normalize()

	s.mu.RLock()
	matched := make([]Task, 0)
	for _, t := range s.tasks {
		if match(t) {
			matched = append(matched, t.Clone())
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b Task) int { return cmp.Compare(a.ID, b.ID) })

	if page.Offset >= len(matched) {
		return []Task{}, nil
	}
	end := min(page.Offset+page.Limit, len(matched))
	return matched[page.Offset:end], nil
}

func (s *MemoryStore) Update(ctx context.Context, task Task) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.tasks[task.ID]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	if current.Version != task.Version {
		return Task{}, ErrTaskVersionConflict
	}

	next := task.Clone()
	next.Author = current.Author
	next.CreatedAt = current.CreatedAt
	next.Version = current.Version + 1
	next.UpdatedAt = s.now().UTC()
	s.assignCommentIDs(&next)

	s.tasks[next.ID] = next
	return next.Clone(), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

// assignCommentIDs numbers new comments. Caller holds s.mu.
func (s *MemoryStore) assignCommentIDs(task *Task) {
	for i := range task.Comments {
		if task.Comments[i].ID != 0 {
			continue
		}
		s.nextCommentID++
		task.Comments[i].ID = s.nextCommentID
		task.Comments[i].TaskID = task.ID
		if task.Comments[i].CreatedAt.IsZero() {
			task.Comments[i].CreatedAt = s.now().UTC()
		}
	}
}

var _ Store = (*MemoryStore)(nil)
