package taskAuth

import (
	"errors"
	"io"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/taskAuth/internal/audit"
	"github.com/MrEthical07/taskAuth/jwt"
	"github.com/MrEthical07/taskAuth/password"
	"github.com/MrEthical07/taskAuth/permission"
	"github.com/MrEthical07/taskAuth/session"
)

// dummyPassword is hashed once at build time. SignIn verifies against its
// hash when the email is unknown so both failure paths cost the same.
const dummyPassword = "taskauth-timing-equalizer"

// Builder assembles an Engine. A Builder is single-use.
type Builder struct {
	config Config
	store  CredentialStore

	auditSink AuditSink
	logger    *slog.Logger
	now       func() time.Time
	hasher    password.Hasher

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithSigningKey sets the symmetric token key.
func (b *Builder) WithSigningKey(key []byte) *Builder {
	b.config.JWT.SigningKey = cloneBytes(key)
	return b
}

// WithAccessTTL sets the token lifetime.
func (b *Builder) WithAccessTTL(ttl time.Duration) *Builder {
	b.config.JWT.AccessTTL = ttl
	return b
}

func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the operational logger. The default discards output.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides time.Now for token issuing, validation and record
// timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithHasher replaces the hasher derived from Config.Password.
func (b *Builder) WithHasher(h password.Hasher) *Builder {
	b.hasher = h
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.store == nil {
		return nil, errors.New("credential store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	// -------- TOKEN CODEC --------
	codec, err := jwt.NewCodec(jwt.Config{
		Key:    cfg.JWT.SigningKey,
		TTL:    cfg.JWT.AccessTTL,
		Method: jwt.SigningMethod(cfg.JWT.SigningMethod),
		Issuer: cfg.JWT.Issuer,
		Leeway: cfg.JWT.Leeway,
		Now:    now,
	})
	if err != nil {
		return nil, err
	}

	// -------- PASSWORD HASHER --------
	hasher := b.hasher
	if hasher == nil {
		hasher, err = cfg.buildHasher()
		if err != nil {
			return nil, err
		}
	}
	dummyHash, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:    cfg,
		store:     b.store,
		hasher:    hasher,
		codec:     codec,
		guard:     permission.NewGuard(permission.Policy{AdminOverride: cfg.Authorization.AdminOverride}),
		metrics:   NewMetrics(cfg.Metrics),
		logger:    logger,
		now:       now,
		dummyHash: dummyHash,
	}

	// -------- SESSION RESOLVER --------
	var loader session.Loader
	if cfg.Session.RefetchIdentity {
		loader = session.LoaderFunc(engine.loadIdentity)
	}
	engine.resolver, err = session.NewResolver(codec, loader)
	if err != nil {
		return nil, err
	}

	// -------- AUDIT --------
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	b.built = true
	return engine, nil
}
