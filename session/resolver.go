package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/taskAuth/identity"
	"github.com/MrEthical07/taskAuth/jwt"
)

// ErrIdentityNotFound is returned when re-fetch is enabled and the token's
// account no longer exists.
var ErrIdentityNotFound = errors.New("identity not found")

// Loader re-reads the current identity for an account id. Implementations
// return ErrIdentityNotFound for missing accounts and pass any other store
// error through unchanged.
type Loader interface {
	LoadIdentity(ctx context.Context, id int64) (identity.Identity, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, id int64) (identity.Identity, error)

func (f LoaderFunc) LoadIdentity(ctx context.Context, id int64) (identity.Identity, error) {
	return f(ctx, id)
}

// Resolver turns a bearer token into an Identity.
type Resolver struct {
	codec  *jwt.Codec
	loader Loader
}

// NewResolver returns a Resolver. A nil loader trusts the token claims; a
// non-nil loader re-reads the account on every resolve so the identity
// reflects the current role and email.
func NewResolver(codec *jwt.Codec, loader Loader) (*Resolver, error) {
	if codec == nil {
		return nil, errors.New("token codec required")
	}
	return &Resolver{codec: codec, loader: loader}, nil
}

// Refetches reports whether the resolver consults the store.
func (r *Resolver) Refetches() bool {
	return r.loader != nil
}

// Resolve decodes token and maps its claims to an Identity. Codec errors are
// returned unchanged.
func (r *Resolver) Resolve(ctx context.Context, token string) (identity.Identity, error) {
	claims, err := r.codec.Decode(token)
	if err != nil {
		return identity.Identity{}, err
	}

	id, err := identityFromClaims(claims)
	if err != nil {
		return identity.Identity{}, err
	}

	if r.loader == nil {
		return id, nil
	}

	current, err := r.loader.LoadIdentity(ctx, id.ID)
	if err != nil {
		return identity.Identity{}, err
	}
	// Usernames are immutable; a different name under the same id means the
	// account the token was issued for is gone.
	if current.Username != id.Username {
		return identity.Identity{}, ErrIdentityNotFound
	}

	return current, nil
}

func identityFromClaims(claims *jwt.Claims) (identity.Identity, error) {
	if claims.Subject == "" {
		return identity.Identity{}, fmt.Errorf("%w: empty subject", jwt.ErrMalformedToken)
	}
	if claims.UserID <= 0 {
		return identity.Identity{}, fmt.Errorf("%w: missing id claim", jwt.ErrMalformedToken)
	}
	role, ok := identity.ParseRole(claims.Role)
	if !ok {
		return identity.Identity{}, fmt.Errorf("%w: unknown role", jwt.ErrMalformedToken)
	}

	return identity.Identity{
		ID:       claims.UserID,
		Username: claims.Subject,
		Email:    claims.Email,
		Role:     role,
	}, nil
}
