package taskAuth

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/MrEthical07/taskAuth/identity"
	internalaudit "github.com/MrEthical07/taskAuth/internal/audit"
)

// Identity is the resolved principal passed to every guarded operation.
type Identity = identity.Identity

// Role is ADMIN or USER.
type Role = identity.Role

const (
	RoleAdmin = identity.RoleAdmin
	RoleUser  = identity.RoleUser
)

// CredentialRecord is the stored account. Version starts at 1 and is bumped
// by every successful Update.
type CredentialRecord struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity projects the record onto the principal shape.
func (r CredentialRecord) Identity() Identity {
	return Identity{
		ID:       r.ID,
		Username: r.Username,
		Email:    r.Email,
		Role:     r.Role,
	}
}

// NewCredential is the input to CredentialStore.Create.
type NewCredential struct {
	Username     string
	Email        string
	PasswordHash string
	Role         Role
}

// CredentialStore persists accounts.
//
// Emails passed in are already canonical (trimmed, lower-case). Create must
// enforce username and email uniqueness atomically and report violations as
// ErrRecordDuplicate. Update must succeed only when the stored version equals
// record.Version, then store Version+1; otherwise ErrVersionConflict.
// Finders return ErrRecordNotFound for misses. Connectivity failures are
// returned as-is and the engine does not reinterpret them.
type CredentialStore interface {
	FindByID(ctx context.Context, id int64) (CredentialRecord, error)
	FindByUsername(ctx context.Context, username string) (CredentialRecord, error)
	FindByEmail(ctx context.Context, email string) (CredentialRecord, error)
	// FindByUsernameOrEmail returns the record whose username equals
	// username or whose email equals email, preferring the username match.
	FindByUsernameOrEmail(ctx context.Context, username, email string) (CredentialRecord, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, input NewCredential) (CredentialRecord, error)
	Update(ctx context.Context, record CredentialRecord) (CredentialRecord, error)
	Delete(ctx context.Context, id int64) error
}

// SignUpRequest is the input for Engine.SignUp.
type SignUpRequest struct {
	Username string
	Email    string
	Password string
}

// Token is returned by SignUp and SignIn.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
	ExpiresIn   time.Duration
	Identity    Identity
}

// Profile is the caller-visible view of an account.
type Profile struct {
	ID        int64
	Username  string
	Email     string
	Role      Role
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func profileOf(r CredentialRecord) Profile {
	return Profile{
		ID:        r.ID,
		Username:  r.Username,
		Email:     r.Email,
		Role:      r.Role,
		Version:   r.Version,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// ProfileUpdate changes mutable profile fields. A zero Version skips the
// client-side version check; the store's compare-and-swap still applies.
type ProfileUpdate struct {
	Email   string
	Version int64
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives AuditEvent values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an AuditSink that discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based AuditSink.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes JSON-encoded events to an io.Writer.
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink writes events through a *slog.Logger.
type SlogSink = internalaudit.SlogSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}
