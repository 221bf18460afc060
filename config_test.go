package taskAuth

import (
	"bytes"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func validTestConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.SigningKey = bytes.Repeat([]byte("s"), 32)
	cfg.Password.BcryptCost = bcrypt.MinCost
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults with key",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "missing key",
			mutate: func(c *Config) {
				c.JWT.SigningKey = nil
			},
			wantValid: false,
		},
		{
			name: "short key",
			mutate: func(c *Config) {
				c.JWT.SigningKey = []byte("short")
			},
			wantValid: false,
		},
		{
			name: "ttl below one second",
			mutate: func(c *Config) {
				c.JWT.AccessTTL = 500 * time.Millisecond
			},
			wantValid: false,
		},
		{
			name: "leeway valid",
			mutate: func(c *Config) {
				c.JWT.Leeway = 45 * time.Second
			},
			wantValid: true,
		},
		{
			name: "leeway too large",
			mutate: func(c *Config) {
				c.JWT.Leeway = 3 * time.Minute
			},
			wantValid: false,
		},
		{
			name: "leeway negative",
			mutate: func(c *Config) {
				c.JWT.Leeway = -time.Second
			},
			wantValid: false,
		},
		{
			name: "signing method lower case",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "hs512"
			},
			wantValid: true,
		},
		{
			name: "asymmetric signing method",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "RS256"
			},
			wantValid: false,
		},
		{
			name: "blank issuer",
			mutate: func(c *Config) {
				c.JWT.Issuer = "   "
			},
			wantValid: false,
		},
		{
			name: "unknown algorithm",
			mutate: func(c *Config) {
				c.Password.Algorithm = "md5"
			},
			wantValid: false,
		},
		{
			name: "bcrypt cost too high",
			mutate: func(c *Config) {
				c.Password.BcryptCost = bcrypt.MaxCost + 1
			},
			wantValid: false,
		},
		{
			name: "argon2 memory too small",
			mutate: func(c *Config) {
				c.Password.Algorithm = PasswordAlgorithmArgon2
				c.Password.Argon2.Memory = 1024
			},
			wantValid: false,
		},
		{
			name: "audit enabled without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validTestConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestDefaultConfigPolicy(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.Session.RefetchIdentity {
		t.Fatal("identity refetch should be on by default")
	}
	if cfg.Authorization.AdminOverride {
		t.Fatal("admin override should be off by default")
	}
	if cfg.JWT.AccessTTL != 15*time.Minute {
		t.Fatalf("unexpected default TTL %v", cfg.JWT.AccessTTL)
	}
}

func TestWithConfigCopiesKey(t *testing.T) {
	cfg := validTestConfig()
	b := New().WithConfig(cfg)
	cfg.JWT.SigningKey[0] = 'x'
	if b.config.JWT.SigningKey[0] != 's' {
		t.Fatal("builder config shares the caller's key slice")
	}
}

func TestBuildRequiresStore(t *testing.T) {
	if _, err := New().WithConfig(validTestConfig()).Build(); err == nil {
		t.Fatal("expected error without credential store")
	}
}
