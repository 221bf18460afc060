package taskAuth

import (
	"context"
	"errors"
)

const (
	auditEventSignUpSuccess          = "sign_up_success"
	auditEventSignUpDuplicate        = "sign_up_duplicate"
	auditEventSignUpFailure          = "sign_up_failure"
	auditEventSignInSuccess          = "sign_in_success"
	auditEventSignInFailure          = "sign_in_failure"
	auditEventPasswordRehash         = "password_rehash"
	auditEventIdentityResolveFailure = "identity_resolve_failure"
	auditEventProfileUpdate          = "profile_update"
	auditEventPasswordChange         = "password_change"
	auditEventProfileDelete          = "profile_delete"
	auditEventAuthorizationDenied    = "authorization_denied"
)

// AuditErrorCode is the stable error label written to audit events.
type AuditErrorCode string

const (
	auditErrDuplicate       AuditErrorCode = "duplicate"
	auditErrAuthentication  AuditErrorCode = "authentication_failed"
	auditErrMalformedToken  AuditErrorCode = "malformed_token"
	auditErrBadSignature    AuditErrorCode = "bad_signature"
	auditErrExpired         AuditErrorCode = "expired"
	auditErrIdentityMissing AuditErrorCode = "identity_not_found"
	auditErrConflict        AuditErrorCode = "conflicting_update"
	auditErrDenied          AuditErrorCode = "denied"
	auditErrInvalidRequest  AuditErrorCode = "invalid_request"
	auditErrInternal        AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subject Identity,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    subject.ID,
		Username:  subject.Username,
		IP:        clientIPFromContext(ctx),
		RequestID: requestIDFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrDuplicateIdentity):
		return auditErrDuplicate
	case errors.Is(err, ErrAuthenticationFailed):
		return auditErrAuthentication
	case errors.Is(err, ErrMalformedToken):
		return auditErrMalformedToken
	case errors.Is(err, ErrBadSignature):
		return auditErrBadSignature
	case errors.Is(err, ErrExpired):
		return auditErrExpired
	case errors.Is(err, ErrIdentityNotFound):
		return auditErrIdentityMissing
	case errors.Is(err, ErrConflictingUpdate):
		return auditErrConflict
	case errors.Is(err, ErrDenied):
		return auditErrDenied
	case errors.Is(err, ErrInvalidRequest):
		return auditErrInvalidRequest
	default:
		return auditErrInternal
	}
}
