package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod names a supported symmetric signing algorithm.
type SigningMethod string

const (
	// MethodHS256 is the default signing method.
	MethodHS256 SigningMethod = "HS256"
	// MethodHS384 signs with HMAC-SHA384.
	MethodHS384 SigningMethod = "HS384"
	// MethodHS512 signs with HMAC-SHA512.
	MethodHS512 SigningMethod = "HS512"
)

const (
	// MinKeyBytes is the shortest signing key NewCodec accepts.
	MinKeyBytes = 32
	// MaxLeeway bounds the clock-skew allowance on expiry checks.
	MaxLeeway = 2 * time.Minute
)

var (
	// ErrMalformedToken covers structural, encoding and algorithm failures.
	ErrMalformedToken = errors.New("malformed token")
	// ErrBadSignature is returned when the signature does not verify under the
	// current key.
	ErrBadSignature = errors.New("bad token signature")
	// ErrExpired is returned only for tokens whose signature verified.
	ErrExpired = errors.New("token expired")

	errUnexpectedAlg = errors.New("unexpected signing algorithm")
)

// Config configures a Codec.
type Config struct {
	Key    []byte
	TTL    time.Duration
	Method SigningMethod
	Issuer string
	Leeway time.Duration
	// Now overrides the clock used for issuing and validating. Nil means
	// time.Now.
	Now func() time.Time
}

// Claims is the session token payload. Subject carries the username.
type Claims struct {
	UserID int64  `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Issued is the result of signing a token.
type Issued struct {
	Token     string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Codec signs and verifies session tokens. It holds no mutable state and is
// safe for concurrent use.
type Codec struct {
	key    []byte
	ttl    time.Duration
	method jwt.SigningMethod
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// NewCodec validates cfg and returns a Codec.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Key) == 0 {
		return nil, errors.New("signing key required")
	}
	if len(cfg.Key) < MinKeyBytes {
		return nil, fmt.Errorf("signing key must be at least %d bytes", MinKeyBytes)
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.TTL < time.Second {
		return nil, errors.New("TTL must be at least one second")
	}
	if cfg.Leeway < 0 || cfg.Leeway > MaxLeeway {
		return nil, errors.New("invalid leeway configuration")
	}

	method, err := resolveMethod(cfg.Method)
	if err != nil {
		return nil, err
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	key := make([]byte, len(cfg.Key))
	copy(key, cfg.Key)

	return &Codec{
		key:    key,
		ttl:    cfg.TTL,
		method: method,
		issuer: strings.TrimSpace(cfg.Issuer),
		leeway: cfg.Leeway,
		now:    now,
	}, nil
}

// TTL returns the configured token lifetime.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Encode signs claims and returns the compact token string.
func (c *Codec) Encode(claims Claims) (string, error) {
	issued, err := c.Issue(claims)
	if err != nil {
		return "", err
	}
	return issued.Token, nil
}

// Issue signs claims, stamping iat, exp, jti and iss. Any registered claims
// already set on the input other than Subject are overwritten.
func (c *Codec) Issue(claims Claims) (*Issued, error) {
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("subject required")
	}

	// NumericDate has whole-second resolution; expiry is computed from the
	// truncated issue time so exp-iat always equals the TTL.
	issuedAt := c.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(c.ttl)
	tokenID := uuid.NewString()

	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.Subject,
		Issuer:    c.issuer,
		ID:        tokenID,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.key)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &Issued{
		Token:     signed,
		TokenID:   tokenID,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Decode verifies token and returns its claims. The error always wraps one
// of ErrMalformedToken, ErrBadSignature or ErrExpired. Expiry is only
// reported after the signature verified.
func (c *Codec) Decode(token string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
	}
	if c.leeway > 0 {
		options = append(options, jwt.WithLeeway(c.leeway))
	}
	if c.issuer != "" {
		options = append(options, jwt.WithIssuer(c.issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != c.method.Alg() {
			return nil, fmt.Errorf("%w: %s", errUnexpectedAlg, t.Method.Alg())
		}
		return c.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) && signatureOnlyDefect(parser, token) {
			return nil, fmt.Errorf("%w: %w", ErrBadSignature, err)
		}
		return nil, classify(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformedToken
	}

	return claims, nil
}

// signatureOnlyDefect reports whether the header and claims segments of
// token parse on their own, which puts a decode failure in the signature
// segment. Extra delimiters count as part of that segment.
func signatureOnlyDefect(parser *jwt.Parser, token string) bool {
	header, rest, ok := strings.Cut(token, ".")
	if !ok {
		return false
	}
	payload, _, ok := strings.Cut(rest, ".")
	if !ok {
		return false
	}
	_, _, err := parser.ParseUnverified(header+"."+payload+".", &Claims{})
	return err == nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %w", ErrBadSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrExpired, err)
	default:
		return fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
}

func resolveMethod(m SigningMethod) (jwt.SigningMethod, error) {
	switch SigningMethod(strings.ToUpper(string(m))) {
	case "", MethodHS256:
		return jwt.SigningMethodHS256, nil
	case MethodHS384:
		return jwt.SigningMethodHS384, nil
	case MethodHS512:
		return jwt.SigningMethodHS512, nil
	default:
		return nil, errors.New("unsupported signing method")
	}
}
