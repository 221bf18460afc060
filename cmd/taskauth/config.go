package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	taskAuth "github.com/MrEthical07/taskAuth"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "TASKAUTH"

const (
	storeMemory   = "memory"
	storeRedis    = "redis"
	storePostgres = "postgres"
)

// serverConfig is read from TASKAUTH_* environment variables.
type serverConfig struct {
	Env             string        `envconfig:"ENV" default:"development"`
	Addr            string        `envconfig:"ADDR" default:":8080"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"15s"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	// TokenKey is the HMAC key. A "base64:" prefix marks an encoded key.
	TokenKey    string        `envconfig:"TOKEN_KEY" required:"true"`
	TokenTTL    time.Duration `envconfig:"TOKEN_TTL" default:"15m"`
	TokenIssuer string        `envconfig:"TOKEN_ISSUER"`
	TokenLeeway time.Duration `envconfig:"TOKEN_LEEWAY" default:"0s"`

	Hasher          string `envconfig:"HASHER" default:"bcrypt"`
	RefetchIdentity bool   `envconfig:"REFETCH_IDENTITY" default:"true"`
	AdminOverride   bool   `envconfig:"ADMIN_OVERRIDE" default:"false"`
	Audit           bool   `envconfig:"AUDIT" default:"true"`

	Store       string `envconfig:"STORE" default:"memory"`
	RedisAddr   string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPrefix string `envconfig:"REDIS_PREFIX" default:"taskauth"`
	PGDSN       string `envconfig:"PG_DSN"`
}

func loadServerConfig() (*serverConfig, error) {
	var cfg serverConfig
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, err
	}
	if cfg.TokenKey == "" {
		return nil, errors.New("TASKAUTH_TOKEN_KEY must be provided")
	}
	switch cfg.Store {
	case storeMemory, storeRedis:
	case storePostgres:
		if cfg.PGDSN == "" {
			return nil, errors.New("TASKAUTH_PG_DSN is required for the postgres store")
		}
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
	return &cfg, nil
}

func (c *serverConfig) isProduction() bool {
	return c.Env == "production"
}

func (c *serverConfig) signingKey() ([]byte, error) {
	if encoded, ok := strings.CutPrefix(c.TokenKey, "base64:"); ok {
		key, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decode token key: %w", err)
		}
		return key, nil
	}
	return []byte(c.TokenKey), nil
}

// engineConfig maps the environment onto the engine settings.
func (c *serverConfig) engineConfig() (taskAuth.Config, error) {
	key, err := c.signingKey()
	if err != nil {
		return taskAuth.Config{}, err
	}

	cfg := taskAuth.DefaultConfig()
	cfg.JWT.SigningKey = key
	cfg.JWT.AccessTTL = c.TokenTTL
	cfg.JWT.Issuer = c.TokenIssuer
	cfg.JWT.Leeway = c.TokenLeeway
	cfg.Password.Algorithm = c.Hasher
	cfg.Session.RefetchIdentity = c.RefetchIdentity
	cfg.Authorization.AdminOverride = c.AdminOverride
	cfg.Audit.Enabled = c.Audit

	if err := cfg.Validate(); err != nil {
		return taskAuth.Config{}, err
	}
	return cfg, nil
}

func newLogger(w io.Writer, format, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With(slog.String("service", "taskauth"))
}
