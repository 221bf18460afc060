package taskAuth

import (
	"context"
	"errors"
	"log/slog"
)

// ResolveIdentity turns a bearer token into the caller's Identity.
//
// Errors are ErrMalformedToken, ErrBadSignature, ErrExpired,
// ErrIdentityNotFound (re-fetch only) or a store error, in that order of
// checking. All but the store error should be reported as unauthenticated
// without saying which check failed.
func (e *Engine) ResolveIdentity(ctx context.Context, token string) (Identity, error) {
	if !e.ready() {
		return Identity{}, ErrEngineNotReady
	}

	start := e.now()
	id, err := e.resolver.Resolve(ctx, token)
	if e.metrics != nil {
		e.metrics.Observe(MetricResolveLatency, e.now().Sub(start))
	}

	if err != nil {
		e.recordResolveFailure(ctx, err)
		return Identity{}, err
	}

	e.metricInc(MetricResolveSuccess)
	return id, nil
}

func (e *Engine) recordResolveFailure(ctx context.Context, err error) {
	switch {
	case errors.Is(err, ErrBadSignature):
		e.metricInc(MetricResolveBadSignature)
	case errors.Is(err, ErrExpired):
		e.metricInc(MetricResolveExpired)
	case errors.Is(err, ErrIdentityNotFound):
		e.metricInc(MetricResolveIdentityNotFound)
	case errors.Is(err, ErrMalformedToken):
		e.metricInc(MetricResolveMalformed)
	default:
		e.logger.ErrorContext(ctx, "identity refetch failed", slog.Any("error", err))
		return
	}

	e.emitAudit(ctx, auditEventIdentityResolveFailure, false, Identity{}, err, nil)
}
