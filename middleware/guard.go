package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	taskAuth "github.com/MrEthical07/taskAuth"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// IdentityResolver is satisfied by *taskAuth.Engine.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, token string) (taskAuth.Identity, error)
}

type identityContextKey struct{}

// IdentityFromContext returns the identity stored by Guard.
func IdentityFromContext(ctx context.Context) (taskAuth.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(taskAuth.Identity)
	return id, ok
}

// WithIdentity returns ctx carrying id. It is exported for handler tests.
func WithIdentity(ctx context.Context, id taskAuth.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// Guard rejects requests without a resolvable bearer token.
func Guard(resolver IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if resolver == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := AuditContext(r)
			id, err := resolver.ResolveIdentity(ctx, token)
			if err != nil {
				if taskAuth.IsUnauthenticated(err) {
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, id)))
		})
	}
}

// AuditContext returns the request context annotated with the client address
// and request id for audit records. The id is chi's request id when present,
// otherwise the X-Request-Id header.
func AuditContext(r *http.Request) context.Context {
	ctx := r.Context()
	if ip := clientIP(r); ip != "" {
		ctx = taskAuth.WithClientIP(ctx, ip)
	}
	rid := chimw.GetReqID(ctx)
	if rid == "" {
		rid = r.Header.Get("X-Request-Id")
	}
	if rid != "" {
		ctx = taskAuth.WithRequestID(ctx, rid)
	}
	return ctx
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
