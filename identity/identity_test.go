package identity

import "testing"

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"ADMIN":  RoleAdmin,
		"admin":  RoleAdmin,
		" User ": RoleUser,
	}
	for in, want := range cases {
		got, ok := ParseRole(in)
		if !ok || got != want {
			t.Fatalf("ParseRole(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}

	if _, ok := ParseRole("ROOT"); ok {
		t.Fatal("expected unknown role to be rejected")
	}
	if _, ok := ParseRole(""); ok {
		t.Fatal("expected empty role to be rejected")
	}
}

func TestCanonicalEmail(t *testing.T) {
	if got := CanonicalEmail("  Alice@X.COM "); got != "alice@x.com" {
		t.Fatalf("unexpected canonical email %q", got)
	}
}

func TestIdentityHelpers(t *testing.T) {
	if !(Identity{}).IsZero() {
		t.Fatal("expected zero identity")
	}
	id := Identity{ID: 1, Username: "alice", Role: RoleAdmin}
	if id.IsZero() || !id.IsAdmin() {
		t.Fatalf("unexpected helpers for %+v", id)
	}
}
