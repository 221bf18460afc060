package taskAuth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrEthical07/taskAuth/identity"
	"github.com/MrEthical07/taskAuth/password"
	"github.com/MrEthical07/taskAuth/permission"
)

// Profile returns the caller's own account.
func (e *Engine) Profile(ctx context.Context, caller Identity) (Profile, error) {
	if !e.ready() {
		return Profile{}, ErrEngineNotReady
	}
	if caller.IsZero() {
		return Profile{}, permission.Decision{Action: permission.ActionUpdateProfile, Reason: permission.ReasonNoIdentity}.Err()
	}

	record, err := e.findAccount(ctx, caller.ID)
	if err != nil {
		return Profile{}, err
	}
	return profileOf(record), nil
}

// LookupUser resolves a username or an email address to its identity. It is
// used to attach executors to tasks.
func (e *Engine) LookupUser(ctx context.Context, login string) (Identity, error) {
	if !e.ready() {
		return Identity{}, ErrEngineNotReady
	}

	login = strings.TrimSpace(login)
	if login == "" {
		return Identity{}, ErrIdentityNotFound
	}
	record, err := e.store.FindByUsernameOrEmail(ctx, login, identity.CanonicalEmail(login))
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return Identity{}, ErrIdentityNotFound
		}
		return Identity{}, err
	}
	return record.Identity(), nil
}

// UpdateProfile changes the email of targetID. Only the owner may do so.
// A stale update.Version or a lost store race returns ErrConflictingUpdate.
func (e *Engine) UpdateProfile(ctx context.Context, caller Identity, targetID int64, update ProfileUpdate) (Profile, error) {
	if !e.ready() {
		return Profile{}, ErrEngineNotReady
	}
	if err := e.Authorize(ctx, caller, e.guard.CanUpdateProfile(caller, targetID)); err != nil {
		return Profile{}, err
	}

	email := identity.CanonicalEmail(update.Email)
	if email == "" {
		return Profile{}, fmt.Errorf("%w: email is required", ErrInvalidRequest)
	}

	record, err := e.findAccount(ctx, targetID)
	if err != nil {
		return Profile{}, err
	}
	if update.Version != 0 && update.Version != record.Version {
		e.metricInc(MetricConflictingUpdate)
		return Profile{}, ErrConflictingUpdate
	}
	if record.Email == email {
		return profileOf(record), nil
	}

	taken, err := e.store.ExistsByEmail(ctx, email)
	if err != nil {
		return Profile{}, err
	}
	if taken {
		return Profile{}, ErrDuplicateIdentity
	}

	next := record
	next.Email = email
	next.UpdatedAt = e.now().UTC()
	updated, err := e.writeAccount(ctx, next)
	if err != nil {
		return Profile{}, err
	}

	e.metricInc(MetricProfileUpdate)
	e.emitAudit(ctx, auditEventProfileUpdate, true, updated.Identity(), nil, nil)
	return profileOf(updated), nil
}

// ChangePassword replaces the password of targetID after verifying the
// current one. A wrong current password returns ErrAuthenticationFailed.
//
// Tokens issued before the change remain valid until they expire.
func (e *Engine) ChangePassword(ctx context.Context, caller Identity, targetID int64, current, next string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if err := e.Authorize(ctx, caller, e.guard.CanUpdateProfile(caller, targetID)); err != nil {
		return err
	}
	if next == "" {
		return fmt.Errorf("%w: new password is required", ErrInvalidRequest)
	}

	record, err := e.findAccount(ctx, targetID)
	if err != nil {
		return err
	}
	if !e.hasher.Verify(current, record.PasswordHash) {
		e.emitAudit(ctx, auditEventPasswordChange, false, record.Identity(), ErrAuthenticationFailed, nil)
		return ErrAuthenticationFailed
	}

	hash, err := e.hasher.Hash(next)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooLong) {
			return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		return fmt.Errorf("hash password: %w", err)
	}

	record.PasswordHash = hash
	record.UpdatedAt = e.now().UTC()
	updated, err := e.writeAccount(ctx, record)
	if err != nil {
		return err
	}

	e.metricInc(MetricPasswordChange)
	e.emitAudit(ctx, auditEventPasswordChange, true, updated.Identity(), nil, nil)
	return nil
}

// DeleteProfile removes targetID. Only the owner may delete their profile.
// Outstanding tokens for the account resolve to ErrIdentityNotFound when
// re-fetch is enabled.
func (e *Engine) DeleteProfile(ctx context.Context, caller Identity, targetID int64) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if err := e.Authorize(ctx, caller, e.guard.CanDeleteOwnProfile(caller, targetID)); err != nil {
		return err
	}

	if err := e.store.Delete(ctx, targetID); err != nil {
		switch {
		case errors.Is(err, ErrRecordNotFound):
			return ErrIdentityNotFound
		case errors.Is(err, ErrVersionConflict):
			e.metricInc(MetricConflictingUpdate)
			return ErrConflictingUpdate
		}
		e.logger.ErrorContext(ctx, "delete credential failed", slog.Int64("user_id", targetID), slog.Any("error", err))
		return err
	}

	e.metricInc(MetricProfileDelete)
	e.emitAudit(ctx, auditEventProfileDelete, true, caller, nil, nil)
	return nil
}

func (e *Engine) findAccount(ctx context.Context, id int64) (CredentialRecord, error) {
	record, err := e.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return CredentialRecord{}, ErrIdentityNotFound
		}
		return CredentialRecord{}, err
	}
	return record, nil
}

// writeAccount performs the compare-and-swap update and maps store errors.
func (e *Engine) writeAccount(ctx context.Context, record CredentialRecord) (CredentialRecord, error) {
	updated, err := e.store.Update(ctx, record)
	switch {
	case err == nil:
		return updated, nil
	case errors.Is(err, ErrVersionConflict):
		e.metricInc(MetricConflictingUpdate)
		return CredentialRecord{}, ErrConflictingUpdate
	case errors.Is(err, ErrRecordDuplicate):
		return CredentialRecord{}, ErrDuplicateIdentity
	case errors.Is(err, ErrRecordNotFound):
		return CredentialRecord{}, ErrIdentityNotFound
	default:
		e.logger.ErrorContext(ctx, "update credential failed", slog.Int64("user_id", record.ID), slog.Any("error", err))
		return CredentialRecord{}, err
	}
}
