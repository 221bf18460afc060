package password

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHashAndVerify(t *testing.T) {
	hasher, err := NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}

	hash, err := hasher.Hash("pw12345")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$") {
		t.Fatalf("unexpected bcrypt prefix: %s", hash)
	}
	if !hasher.Verify("pw12345", hash) {
		t.Fatal("expected verification to succeed")
	}
	if hasher.Verify("pw1234", hash) {
		t.Fatal("expected wrong password to fail")
	}
}

func TestBcryptVerifyMalformedHash(t *testing.T) {
	hasher, err := NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}
	for _, encoded := range []string{"", "plain", "$2a$04$short", "$argon2id$v=19$m=1,t=1,p=1$x$y"} {
		if hasher.Verify("pw12345", encoded) {
			t.Fatalf("expected %q not to verify", encoded)
		}
	}
}

func TestBcryptTooLong(t *testing.T) {
	hasher, err := NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}
	if _, err := hasher.Hash(strings.Repeat("x", BcryptMaxBytes+1)); err != ErrPasswordTooLong {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
	if _, err := hasher.Hash(strings.Repeat("x", BcryptMaxBytes)); err != nil {
		t.Fatalf("expected %d-byte password to hash: %v", BcryptMaxBytes, err)
	}
}

func TestBcryptNeedsRehash(t *testing.T) {
	weak, _ := NewBcrypt(bcrypt.MinCost)
	strong, _ := NewBcrypt(bcrypt.MinCost + 1)

	hash, err := weak.Hash("pw12345")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strong.NeedsRehash(hash) {
		t.Fatal("expected lower cost hash to need rehash")
	}
	if weak.NeedsRehash(hash) {
		t.Fatal("expected same cost hash not to need rehash")
	}
	if strong.NeedsRehash("garbage") {
		t.Fatal("expected malformed hash to report no rehash")
	}
}

func TestNewBcryptCostBounds(t *testing.T) {
	if h, err := NewBcrypt(0); err != nil || h.Cost() != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %v %v", h, err)
	}
	if _, err := NewBcrypt(bcrypt.MinCost - 1); err == nil {
		t.Fatal("expected cost below minimum to fail")
	}
	if _, err := NewBcrypt(bcrypt.MaxCost + 1); err == nil {
		t.Fatal("expected cost above maximum to fail")
	}
}

func TestMigratingVerifiesLegacyHashes(t *testing.T) {
	legacy, _ := NewBcrypt(bcrypt.MinCost)
	primary, err := NewArgon2(fastArgon2Config())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	m, err := NewMigrating(primary, legacy)
	if err != nil {
		t.Fatalf("NewMigrating error: %v", err)
	}

	old, _ := legacy.Hash("pw12345")
	if !m.Verify("pw12345", old) {
		t.Fatal("expected legacy hash to verify")
	}
	if !m.NeedsRehash(old) {
		t.Fatal("expected legacy hash to need rehash")
	}

	fresh, err := m.Hash("pw12345")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !primary.Recognizes(fresh) {
		t.Fatalf("expected primary format, got %s", fresh)
	}
	if m.NeedsRehash(fresh) {
		t.Fatal("expected fresh hash not to need rehash")
	}
	if m.Verify("pw12345", "unknown-format") {
		t.Fatal("expected unknown format not to verify")
	}
}

func TestNewMigratingRejectsNil(t *testing.T) {
	if _, err := NewMigrating(nil); err == nil {
		t.Fatal("expected nil primary to fail")
	}
	b, _ := NewBcrypt(bcrypt.MinCost)
	if _, err := NewMigrating(b, nil); err == nil {
		t.Fatal("expected nil legacy to fail")
	}
}
