package taskAuth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/taskAuth/internal/audit"
	internalmetrics "github.com/MrEthical07/taskAuth/internal/metrics"
	"github.com/MrEthical07/taskAuth/jwt"
	"github.com/MrEthical07/taskAuth/password"
	"github.com/MrEthical07/taskAuth/permission"
	"github.com/MrEthical07/taskAuth/session"
)

// Engine implements sign-up, sign-in, identity resolution and profile
// management. All methods are safe for concurrent use after Build.
type Engine struct {
	config    Config
	store     CredentialStore
	hasher    password.Hasher
	codec     *jwt.Codec
	resolver  *session.Resolver
	guard     *permission.Guard
	audit     *internalaudit.Dispatcher
	metrics   *internalmetrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
	dummyHash string
}

// Close flushes pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports audit events lost to backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of all counters and histograms.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return internalmetrics.EmptySnapshot()
	}
	return e.metrics.Snapshot()
}

// Guard returns the engine's authorization guard, configured with the
// engine's policy.
func (e *Engine) Guard() *permission.Guard {
	if e == nil || e.guard == nil {
		return &permission.Guard{}
	}
	return e.guard
}

// Logger returns the engine's logger.
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}

// Authorize evaluates d and records a denial. It returns d.Err().
func (e *Engine) Authorize(ctx context.Context, caller Identity, d permission.Decision) error {
	if d.Allowed {
		return nil
	}
	e.metricInc(MetricAuthorizationDenied)
	e.emitAudit(ctx, auditEventAuthorizationDenied, false, caller, ErrDenied, func() map[string]string {
		return map[string]string{
			"action": string(d.Action),
			"reason": d.Reason,
		}
	})
	return d.Err()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.store != nil && e.hasher != nil && e.codec != nil && e.resolver != nil
}

func (e *Engine) issue(record CredentialRecord) (*Token, error) {
	claims := jwt.Claims{
		UserID: record.ID,
		Email:  record.Email,
		Role:   string(record.Role),
	}
	claims.Subject = record.Username

	issued, err := e.codec.Issue(claims)
	if err != nil {
		return nil, err
	}

	return &Token{
		AccessToken: issued.Token,
		TokenType:   "Bearer",
		ExpiresAt:   issued.ExpiresAt,
		ExpiresIn:   issued.ExpiresAt.Sub(issued.IssuedAt),
		Identity:    record.Identity(),
	}, nil
}

func (e *Engine) loadIdentity(ctx context.Context, id int64) (Identity, error) {
	record, err := e.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return Identity{}, ErrIdentityNotFound
		}
		return Identity{}, err
	}
	return record.Identity(), nil
}
