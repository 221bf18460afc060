package permission

import (
	"errors"

	"github.com/MrEthical07/taskAuth/identity"
)

// ErrDenied is wrapped by every error produced from a denied Decision.
var ErrDenied = errors.New("denied")

// Action names a guarded operation.
type Action string

const (
	ActionCreateTask      Action = "create_task"
	ActionViewTask        Action = "view_task"
	ActionEditTask        Action = "edit_task"
	ActionChangeStatus    Action = "change_status"
	ActionManageExecutors Action = "manage_executors"
	ActionDeleteTask      Action = "delete_task"
	ActionComment         Action = "comment"
	ActionUpdateProfile   Action = "update_profile"
	ActionDeleteProfile   Action = "delete_profile"
)

// Denial reasons. They are stable strings safe to show to the caller.
const (
	ReasonNoIdentity  = "no resolved identity"
	ReasonNotAuthor   = "only the task author may perform this action"
	ReasonNotExecutor = "only an assigned executor may change the task status"
	ReasonNotOwner    = "only the profile owner may perform this action"
)

// TaskRef is the slice of a task the guard needs.
type TaskRef struct {
	ID          int64
	AuthorID    int64
	ExecutorIDs []int64
}

// HasExecutor reports whether userID is assigned to the task.
func (t TaskRef) HasExecutor(userID int64) bool {
	for _, id := range t.ExecutorIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Decision is the outcome of a guard predicate. A denial is a value, not an
// error; call Err to convert it.
type Decision struct {
	Allowed bool
	Action  Action
	Reason  string
}

func allow(action Action) Decision {
	return Decision{Allowed: true, Action: action}
}

func deny(action Action, reason string) Decision {
	return Decision{Action: action, Reason: reason}
}

// Err returns nil for an allowed decision and a *DeniedError otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &DeniedError{Action: d.Action, Reason: d.Reason}
}

// DeniedError carries the reason for a denial and unwraps to ErrDenied.
type DeniedError struct {
	Action Action
	Reason string
}

func (e *DeniedError) Error() string {
	if e.Reason == "" {
		return "denied: " + string(e.Action)
	}
	return "denied: " + e.Reason
}

func (e *DeniedError) Unwrap() error {
	return ErrDenied
}

// ReasonOf extracts the denial reason from err, or "" when err is not a
// denial.
func ReasonOf(err error) string {
	var denied *DeniedError
	if errors.As(err, &denied) {
		return denied.Reason
	}
	return ""
}

// Policy holds opt-in extensions to the ownership rules.
type Policy struct {
	// AdminOverride lets ADMIN identities pass every task and profile check.
	AdminOverride bool
}

// Guard evaluates ownership rules under a Policy. The zero value applies the
// strict rules. Guard holds no mutable state.
type Guard struct {
	policy Policy
}

// NewGuard returns a Guard for p.
func NewGuard(p Policy) *Guard {
	return &Guard{policy: p}
}

func (g *Guard) override(id identity.Identity) bool {
	return g != nil && g.policy.AdminOverride && id.IsAdmin()
}

// CanEditTask allows only the task author.
func (g *Guard) CanEditTask(id identity.Identity, task TaskRef) Decision {
	return g.authorOnly(ActionEditTask, id, task)
}

// CanManageExecutors allows only the task author to add or remove executors.
func (g *Guard) CanManageExecutors(id identity.Identity, task TaskRef) Decision {
	return g.authorOnly(ActionManageExecutors, id, task)
}

// CanDeleteTask allows only the task author.
func (g *Guard) CanDeleteTask(id identity.Identity, task TaskRef) Decision {
	return g.authorOnly(ActionDeleteTask, id, task)
}

// CanChangeStatus allows only identities in the task's executor set. Being
// the author is not enough.
func (g *Guard) CanChangeStatus(id identity.Identity, task TaskRef) Decision {
	if id.IsZero() {
		return deny(ActionChangeStatus, ReasonNoIdentity)
	}
	if task.HasExecutor(id.ID) || g.override(id) {
		return allow(ActionChangeStatus)
	}
	return deny(ActionChangeStatus, ReasonNotExecutor)
}

// CanCreateTask allows any resolved identity. The author is the identity.
func (g *Guard) CanCreateTask(id identity.Identity) Decision {
	return authenticated(ActionCreateTask, id)
}

// CanViewTask allows any resolved identity.
func (g *Guard) CanViewTask(id identity.Identity, _ TaskRef) Decision {
	return authenticated(ActionViewTask, id)
}

// CanComment allows any resolved identity. The comment author must still be
// taken from id, never from the request.
func (g *Guard) CanComment(id identity.Identity, _ TaskRef) Decision {
	return authenticated(ActionComment, id)
}

// CanUpdateProfile allows a user to modify only their own profile.
func (g *Guard) CanUpdateProfile(id identity.Identity, targetUserID int64) Decision {
	return g.ownerOnly(ActionUpdateProfile, id, targetUserID)
}

// CanDeleteOwnProfile allows a user to delete only their own profile.
func (g *Guard) CanDeleteOwnProfile(id identity.Identity, targetUserID int64) Decision {
	return g.ownerOnly(ActionDeleteProfile, id, targetUserID)
}

func authenticated(action Action, id identity.Identity) Decision {
	if id.IsZero() {
		return deny(action, ReasonNoIdentity)
	}
	return allow(action)
}

func (g *Guard) authorOnly(action Action, id identity.Identity, task TaskRef) Decision {
	if id.IsZero() {
		return deny(action, ReasonNoIdentity)
	}
	if task.AuthorID == id.ID || g.override(id) {
		return allow(action)
	}
	return deny(action, ReasonNotAuthor)
}

func (g *Guard) ownerOnly(action Action, id identity.Identity, targetUserID int64) Decision {
	if id.IsZero() {
		return deny(action, ReasonNoIdentity)
	}
	if id.ID == targetUserID || g.override(id) {
		return allow(action)
	}
	return deny(action, ReasonNotOwner)
}

var strict = &Guard{}

// CanEditTask applies the strict rules. See Guard.CanEditTask.
func CanEditTask(id identity.Identity, task TaskRef) Decision {
	return strict.CanEditTask(id, task)
}

// CanChangeStatus applies the strict rules. See Guard.CanChangeStatus.
func CanChangeStatus(id identity.Identity, task TaskRef) Decision {
	return strict.CanChangeStatus(id, task)
}

// CanManageExecutors applies the strict rules.
func CanManageExecutors(id identity.Identity, task TaskRef) Decision {
	return strict.CanManageExecutors(id, task)
}

// CanDeleteTask applies the strict rules.
func CanDeleteTask(id identity.Identity, task TaskRef) Decision {
	return strict.CanDeleteTask(id, task)
}

// CanComment applies the strict rules.
func CanComment(id identity.Identity, task TaskRef) Decision {
	return strict.CanComment(id, task)
}

// CanUpdateProfile applies the strict rules.
func CanUpdateProfile(id identity.Identity, targetUserID int64) Decision {
	return strict.CanUpdateProfile(id, targetUserID)
}

// CanDeleteOwnProfile applies the strict rules.
func CanDeleteOwnProfile(id identity.Identity, targetUserID int64) Decision {
	return strict.CanDeleteOwnProfile(id, targetUserID)
}
