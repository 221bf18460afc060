package permission

import (
	"errors"
	"testing"

	"github.com/MrEthical07/taskAuth/identity"
)

var (
	authorA   = identity.Identity{ID: 1, Username: "author", Role: identity.RoleUser}
	executorB = identity.Identity{ID: 2, Username: "executor", Role: identity.RoleUser}
	outsiderC = identity.Identity{ID: 3, Username: "outsider", Role: identity.RoleUser}
	adminD    = identity.Identity{ID: 4, Username: "admin", Role: identity.RoleAdmin}
	taskT     = TaskRef{ID: 10, AuthorID: 1, ExecutorIDs: []int64{2}}
)

func TestTaskTruthTable(t *testing.T) {
	type row struct {
		name   string
		check  func(identity.Identity, TaskRef) Decision
		author bool
		exec   bool
		other  bool
	}
	rows := []row{
		{"edit", CanEditTask, true, false, false},
		{"changeStatus", CanChangeStatus, false, true, false},
		{"manageExecutors", CanManageExecutors, true, false, false},
		{"delete", CanDeleteTask, true, false, false},
		{"comment", CanComment, true, true, true},
	}

	for _, r := range rows {
		if got := r.check(authorA, taskT).Allowed; got != r.author {
			t.Fatalf("%s for author: got %v want %v", r.name, got, r.author)
		}
		if got := r.check(executorB, taskT).Allowed; got != r.exec {
			t.Fatalf("%s for executor: got %v want %v", r.name, got, r.exec)
		}
		if got := r.check(outsiderC, taskT).Allowed; got != r.other {
			t.Fatalf("%s for outsider: got %v want %v", r.name, got, r.other)
		}
	}
}

func TestAuthorWhoIsAlsoExecutorMayChangeStatus(t *testing.T) {
	task := TaskRef{ID: 11, AuthorID: 1, ExecutorIDs: []int64{1, 2}}
	if !CanChangeStatus(authorA, task).Allowed {
		t.Fatal("expected author assigned as executor to change status")
	}
}

func TestDenialCarriesReason(t *testing.T) {
	d := CanEditTask(executorB, taskT)
	if d.Allowed {
		t.Fatal("expected denial")
	}
	if d.Reason != ReasonNotAuthor || d.Action != ActionEditTask {
		t.Fatalf("unexpected decision %+v", d)
	}

	err := d.Err()
	if !errors.Is(err, ErrDenied) {
		t.Fatalf("expected ErrDenied, got %v", err)
	}
	if ReasonOf(err) != ReasonNotAuthor {
		t.Fatalf("unexpected reason %q", ReasonOf(err))
	}

	status := CanChangeStatus(authorA, taskT)
	if status.Allowed || status.Reason != ReasonNotExecutor {
		t.Fatalf("unexpected status decision %+v", status)
	}
}

func TestAllowedDecisionHasNoError(t *testing.T) {
	if err := CanEditTask(authorA, taskT).Err(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if ReasonOf(nil) != "" {
		t.Fatal("expected empty reason for nil error")
	}
}

func TestZeroIdentityDeniedEverywhere(t *testing.T) {
	var none identity.Identity
	zeroTask := TaskRef{}
	checks := []Decision{
		CanEditTask(none, zeroTask),
		CanChangeStatus(none, TaskRef{ExecutorIDs: []int64{0}}),
		CanManageExecutors(none, zeroTask),
		CanDeleteTask(none, zeroTask),
		CanComment(none, zeroTask),
		CanUpdateProfile(none, 0),
		CanDeleteOwnProfile(none, 0),
	}
	for i, d := range checks {
		if d.Allowed || d.Reason != ReasonNoIdentity {
			t.Fatalf("check %d: expected no-identity denial, got %+v", i, d)
		}
	}
}

func TestProfileOwnership(t *testing.T) {
	if !CanUpdateProfile(authorA, authorA.ID).Allowed {
		t.Fatal("expected owner to update own profile")
	}
	if CanUpdateProfile(authorA, executorB.ID).Allowed {
		t.Fatal("expected update of another profile to be denied")
	}
	if !CanDeleteOwnProfile(executorB, executorB.ID).Allowed {
		t.Fatal("expected owner to delete own profile")
	}
	d := CanDeleteOwnProfile(executorB, authorA.ID)
	if d.Allowed || d.Reason != ReasonNotOwner {
		t.Fatalf("unexpected decision %+v", d)
	}
}

func TestAdminHasNoImplicitOverride(t *testing.T) {
	if CanEditTask(adminD, taskT).Allowed {
		t.Fatal("expected admin without override to be denied")
	}
	if CanDeleteOwnProfile(adminD, authorA.ID).Allowed {
		t.Fatal("expected admin without override to be denied profile deletion")
	}
}

func TestAdminOverridePolicy(t *testing.T) {
	g := NewGuard(Policy{AdminOverride: true})
	if !g.CanEditTask(adminD, taskT).Allowed {
		t.Fatal("expected override to allow edit")
	}
	if !g.CanChangeStatus(adminD, taskT).Allowed {
		t.Fatal("expected override to allow status change")
	}
	if !g.CanDeleteOwnProfile(adminD, authorA.ID).Allowed {
		t.Fatal("expected override to allow profile deletion")
	}
	if g.CanEditTask(outsiderC, taskT).Allowed {
		t.Fatal("expected override not to apply to non-admins")
	}
}

func TestAuthenticatedOnlyActions(t *testing.T) {
	g := NewGuard(Policy{})
	if !g.CanCreateTask(outsiderC).Allowed || !g.CanViewTask(outsiderC, taskT).Allowed {
		t.Fatal("expected any resolved identity to create and view")
	}
	d := g.CanCreateTask(identity.Identity{})
	if d.Allowed || d.Reason != ReasonNoIdentity || d.Action != ActionCreateTask {
		t.Fatalf("unexpected decision %+v", d)
	}
}
