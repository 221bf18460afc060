package taskAuth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/taskAuth/jwt"
	"github.com/MrEthical07/taskAuth/password"
	"golang.org/x/crypto/bcrypt"
)

// Config holds every engine setting. Obtain one from DefaultConfig and
// override fields; Builder.Build validates it.
type Config struct {
	JWT           JWTConfig
	Password      PasswordConfig
	Session       SessionConfig
	Authorization AuthorizationConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures session token signing.
type JWTConfig struct {
	// SigningKey is the symmetric key. Required, at least jwt.MinKeyBytes.
	SigningKey []byte
	AccessTTL  time.Duration
	// SigningMethod is "HS256" (default), "HS384" or "HS512".
	SigningMethod string
	Issuer        string
	Leeway        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

const (
	PasswordAlgorithmBcrypt = "bcrypt"
	PasswordAlgorithmArgon2 = "argon2"
)

// PasswordConfig selects the hashing algorithm. Hashes produced by the other
// algorithm still verify and are upgraded on sign-in when UpgradeOnLogin is
// set.
type PasswordConfig struct {
	Algorithm      string
	BcryptCost     int
	Argon2         password.Config
	UpgradeOnLogin bool
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls identity resolution.
type SessionConfig struct {
	// RefetchIdentity re-reads the account on every resolve. Deleted
	// accounts then fail with ErrIdentityNotFound before their tokens expire.
	RefetchIdentity bool
}

// AuthorizationConfig holds guard policy switches.
type AuthorizationConfig struct {
	// AdminOverride lets ADMIN pass ownership checks. Off by default.
	AdminOverride bool
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a Config with every field but JWT.SigningKey set.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: string(jwt.MethodHS256),
		},
		Password: PasswordConfig{
			Algorithm:      PasswordAlgorithmBcrypt,
			BcryptCost:     bcrypt.DefaultCost,
			Argon2:         password.DefaultArgon2Config(),
			UpgradeOnLogin: true,
		},
		Session: SessionConfig{
			RefetchIdentity: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.SigningKey = cloneBytes(cfg.JWT.SigningKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.SigningKey) == 0 {
		return errors.New("JWT SigningKey is required")
	}
	if len(c.JWT.SigningKey) < jwt.MinKeyBytes {
		return fmt.Errorf("JWT SigningKey must be at least %d bytes", jwt.MinKeyBytes)
	}
	if c.JWT.AccessTTL < time.Second {
		return errors.New("JWT AccessTTL must be >= 1s")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > jwt.MaxLeeway {
		return errors.New("JWT Leeway must be within [0, 2m]")
	}
	switch strings.ToUpper(c.JWT.SigningMethod) {
	case "", string(jwt.MethodHS256), string(jwt.MethodHS384), string(jwt.MethodHS512):
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Issuer != "" && strings.TrimSpace(c.JWT.Issuer) == "" {
		return errors.New("JWT Issuer must not be blank")
	}

	// Password
	switch c.Password.Algorithm {
	case PasswordAlgorithmBcrypt, PasswordAlgorithmArgon2:
	default:
		return errors.New("Password Algorithm must be 'bcrypt' or 'argon2'")
	}
	if c.Password.BcryptCost < bcrypt.MinCost || c.Password.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("Password BcryptCost must be within [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.Password.Algorithm == PasswordAlgorithmArgon2 {
		if c.Password.Argon2.Memory < 8*1024 {
			return errors.New("Password Argon2 Memory must be >= 8192 KB")
		}
		if c.Password.Argon2.Time < 1 {
			return errors.New("Password Argon2 Time must be >= 1")
		}
		if c.Password.Argon2.Parallelism < 1 {
			return errors.New("Password Argon2 Parallelism must be >= 1")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}

func (c *Config) buildHasher() (password.Hasher, error) {
	bc, err := password.NewBcrypt(c.Password.BcryptCost)
	if err != nil {
		return nil, err
	}

	var argon *password.Argon2
	if c.Password.Algorithm == PasswordAlgorithmArgon2 {
		argon, err = password.NewArgon2(c.Password.Argon2)
	} else {
		// only needed to verify hashes written before a switch to bcrypt
		argon, err = password.NewArgon2(password.DefaultArgon2Config())
	}
	if err != nil {
		return nil, err
	}

	if c.Password.Algorithm == PasswordAlgorithmArgon2 {
		return password.NewMigrating(argon, bc)
	}
	return password.NewMigrating(bc, argon)
}
