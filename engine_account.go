package taskAuth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrEthical07/taskAuth/identity"
	"github.com/MrEthical07/taskAuth/password"
)

// SignUp registers a USER account and returns a token for it.
//
// The username and email pre-checks give a fast answer for the common case;
// the store's unique constraint is authoritative, so two concurrent sign-ups
// for the same name yield exactly one success and one ErrDuplicateIdentity.
func (e *Engine) SignUp(ctx context.Context, req SignUpRequest) (*Token, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	username := strings.TrimSpace(req.Username)
	email := identity.CanonicalEmail(req.Email)
	attempted := Identity{Username: username}

	if username == "" || email == "" || req.Password == "" {
		e.metricInc(MetricSignUpFailure)
		e.emitAudit(ctx, auditEventSignUpFailure, false, attempted, ErrInvalidRequest, func() map[string]string {
			return map[string]string{"reason": "missing_field"}
		})
		return nil, fmt.Errorf("%w: username, email and password are required", ErrInvalidRequest)
	}

	taken, err := e.identityTaken(ctx, username, email)
	if err != nil {
		e.metricInc(MetricSignUpFailure)
		e.logger.ErrorContext(ctx, "sign-up uniqueness check failed", slog.String("username", username), slog.Any("error", err))
		return nil, err
	}
	if taken {
		return nil, e.signUpDuplicate(ctx, attempted)
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		e.metricInc(MetricSignUpFailure)
		if errors.Is(err, password.ErrPasswordTooLong) {
			e.emitAudit(ctx, auditEventSignUpFailure, false, attempted, ErrInvalidRequest, func() map[string]string {
				return map[string]string{"reason": "password_too_long"}
			})
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	record, err := e.store.Create(ctx, NewCredential{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         RoleUser,
	})
	if err != nil {
		if errors.Is(err, ErrRecordDuplicate) {
			return nil, e.signUpDuplicate(ctx, attempted)
		}
		e.metricInc(MetricSignUpFailure)
		e.logger.ErrorContext(ctx, "create credential failed", slog.String("username", username), slog.Any("error", err))
		return nil, err
	}

	token, err := e.issue(record)
	if err != nil {
		e.metricInc(MetricSignUpFailure)
		return nil, err
	}

	e.metricInc(MetricSignUpSuccess)
	e.emitAudit(ctx, auditEventSignUpSuccess, true, record.Identity(), nil, nil)
	return token, nil
}

func (e *Engine) identityTaken(ctx context.Context, username, email string) (bool, error) {
	exists, err := e.store.ExistsByUsername(ctx, username)
	if err != nil || exists {
		return exists, err
	}
	return e.store.ExistsByEmail(ctx, email)
}

func (e *Engine) signUpDuplicate(ctx context.Context, attempted Identity) error {
	e.metricInc(MetricSignUpDuplicate)
	e.emitAudit(ctx, auditEventSignUpDuplicate, false, attempted, ErrDuplicateIdentity, nil)
	return ErrDuplicateIdentity
}

// SignIn authenticates by email and password. Unknown email and wrong
// password both return ErrAuthenticationFailed after the same amount of
// hashing work. Store failures are returned unchanged.
func (e *Engine) SignIn(ctx context.Context, email, plain string) (*Token, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	email = identity.CanonicalEmail(email)
	if email == "" || plain == "" {
		e.hasher.Verify(plain, e.dummyHash)
		return nil, e.signInFailure(ctx, Identity{}, "missing_field")
	}

	record, err := e.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			e.hasher.Verify(plain, e.dummyHash)
			return nil, e.signInFailure(ctx, Identity{}, "unknown_email")
		}
		e.metricInc(MetricSignInFailure)
		e.logger.ErrorContext(ctx, "credential lookup failed", slog.Any("error", err))
		return nil, err
	}

	if !e.hasher.Verify(plain, record.PasswordHash) {
		return nil, e.signInFailure(ctx, record.Identity(), "wrong_password")
	}

	if e.config.Password.UpgradeOnLogin && e.hasher.NeedsRehash(record.PasswordHash) {
		record = e.rehash(ctx, record, plain)
	}

	token, err := e.issue(record)
	if err != nil {
		e.metricInc(MetricSignInFailure)
		return nil, err
	}

	e.metricInc(MetricSignInSuccess)
	e.emitAudit(ctx, auditEventSignInSuccess, true, record.Identity(), nil, nil)
	return token, nil
}

func (e *Engine) signInFailure(ctx context.Context, subject Identity, reason string) error {
	e.metricInc(MetricSignInFailure)
	e.emitAudit(ctx, auditEventSignInFailure, false, subject, ErrAuthenticationFailed, func() map[string]string {
		return map[string]string{"reason": reason}
	})
	return ErrAuthenticationFailed
}

// rehash upgrades the stored hash. Failure is logged and otherwise ignored;
// the sign-in already succeeded.
func (e *Engine) rehash(ctx context.Context, record CredentialRecord, plain string) CredentialRecord {
	hash, err := e.hasher.Hash(plain)
	if err != nil {
		e.logger.WarnContext(ctx, "password rehash failed", slog.Int64("user_id", record.ID), slog.Any("error", err))
		return record
	}

	next := record
	next.PasswordHash = hash
	next.UpdatedAt = e.now().UTC()
	updated, err := e.store.Update(ctx, next)
	if err != nil {
		e.logger.WarnContext(ctx, "password rehash not stored", slog.Int64("user_id", record.ID), slog.Any("error", err))
		return record
	}

	e.metricInc(MetricPasswordRehash)
	e.emitAudit(ctx, auditEventPasswordRehash, true, updated.Identity(), nil, nil)
	return updated
}
