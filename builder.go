package gorefresh

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/arkadian7/goRefresh/internal/stores"
	"github.com/arkadian7/goRefresh/jwt"
	"github.com/arkadian7/goRefresh/token"
)

// Builder assembles an [Engine]. Configure it during initialization and call
// Build exactly once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	accounts  AccountProvider
	issuer    AccessIssuer
	auditSink AuditSink

	built bool
}

// New returns a builder seeded with the default config.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the builder's config. The config is cloned; later
// mutation of cfg does not affect the built engine.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing every store. Accepts single-node,
// cluster, and sentinel clients.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAccounts sets the account provider consulted on every winning refresh.
func (b *Builder) WithAccounts(provider AccountProvider) *Builder {
	b.accounts = provider
	return b
}

// WithAccessIssuer overrides the built-in JWT manager with a custom access
// token source. When set, the JWT config is ignored.
func (b *Builder) WithAccessIssuer(issuer AccessIssuer) *Builder {
	b.issuer = issuer
	return b
}

// WithAuditSink sets the destination for audit events. Without a sink the
// dispatcher is still created over a [NoOpSink] when auditing is enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles counter collection.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles refresh latency histograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, wires the stores, and returns a ready
// engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	if b.accounts == nil {
		return nil, errors.New("account provider required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	issuer := b.issuer
	if issuer == nil {
		jm, err := jwt.NewManager(jwt.Config{
			AccessTTL:     cfg.JWT.AccessTTL,
			SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
			PrivateKey:    append([]byte(nil), cfg.JWT.PrivateKey...),
			PublicKey:     append([]byte(nil), cfg.JWT.PublicKey...),
			Issuer:        cfg.JWT.Issuer,
			Audience:      cfg.JWT.Audience,
			Leeway:        cfg.JWT.Leeway,
		})
		if err != nil {
			return nil, err
		}
		issuer = jm
	}

	recordStore := token.NewStore(b.redis, cfg.Refresh.RedisPrefix)

	engine := &Engine{
		cfg:         cfg,
		recordStore: recordStore,
		lockStore:   stores.NewRefreshLockStore(b.redis, ""),
		cacheStore:  stores.NewResultCacheStore(b.redis, ""),
		rotator:     NewRotator(recordStore, cfg.Refresh, cfg.DeviceCheck),
		issuer:      issuer,
		accounts:    b.accounts,
		metrics:     NewMetrics(cfg.Metrics),
	}

	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.rotator.onAnomaly = engine.noteDeviceAnomaly

	b.built = true

	return engine, nil
}
