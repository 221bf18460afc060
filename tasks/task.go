package tasks

import (
	"slices"
	"strings"
	"time"

	"github.com/MrEthical07/taskAuth/identity"
	"github.com/MrEthical07/taskAuth/permission"
)

// Status is the task lifecycle state.
type Status string

const (
	StatusNotLaunched Status = "NOT_LAUNCH"
	StatusInProcess   Status = "IN_PROCESS"
	StatusDone        Status = "DONE"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNotLaunched, StatusInProcess, StatusDone:
		return true
	}
	return false
}

// ParseStatus accepts a status name in any case.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	return st, st.Valid()
}

// Priority orders tasks by urgency.
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// ParsePriority accepts a priority name in any case.
func ParsePriority(s string) (Priority, bool) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	return p, p.Valid()
}

// Member is a user referenced by a task.
type Member struct {
	ID       int64
	Username string
}

func memberOf(id identity.Identity) Member {
	return Member{ID: id.ID, Username: id.Username}
}

// Comment is a note on a task. Author is always the identity that wrote it.
type Comment struct {
	ID        int64
	TaskID    int64
	Author    Member
	Text      string
	CreatedAt time.Time
}

// StampComment returns draft with its author set from id. Any author the
// client supplied is discarded.
func StampComment(id identity.Identity, draft Comment) Comment {
	draft.Author = memberOf(id)
	return draft
}

// Task is a unit of work with one author and any number of executors.
type Task struct {
	ID          int64
	Title       string
	Description string
	Status      Status
	Priority    Priority
	Author      Member
	Executors   []Member
	Comments    []Comment
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Ref is the view of t the guard evaluates.
func (t Task) Ref() permission.TaskRef {
	ids := make([]int64, len(t.Executors))
	for i, m := range t.Executors {
		ids[i] = m.ID
	}
	return permission.TaskRef{ID: t.ID, AuthorID: t.Author.ID, ExecutorIDs: ids}
}

// HasExecutor reports whether userID is among the executors.
func (t Task) HasExecutor(userID int64) bool {
	return slices.ContainsFunc(t.Executors, func(m Member) bool { return m.ID == userID })
}

// Clone returns a deep copy of t.
func (t Task) Clone() Task {
	t.Executors = slices.Clone(t.Executors)
	t.Comments = slices.Clone(t.Comments)
	return t
}

// Draft is the input to Service.Create.
type Draft struct {
	Title       string
	Description string
	Priority    Priority
	Status      Status
}

// Edit changes the author-writable fields. Nil fields are left unchanged.
// A non-zero Version must match the stored task.
type Edit struct {
	Title       *string
	Description *string
	Priority    *Priority
	Version     int64
}

// Page bounds a list query. A zero Limit means DefaultPageLimit.
type Page struct {
	Offset int
	Limit  int
}

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// Normalize clamps p to a valid offset and limit.
func (p Page) Normalize() Page {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}
