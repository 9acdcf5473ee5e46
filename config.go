package gorefresh

import (
	"errors"
	"time"
)

// Config defines the engine configuration.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable.
type Config struct {
	JWT         JWTConfig
	Refresh     RefreshConfig
	Coordinator CoordinatorConfig
	DeviceCheck DeviceCheckConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the built-in access-token issuer.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig configures refresh-token record lifetimes and storage.
type RefreshConfig struct {
	// TokenTTL is the absolute refresh-token lifetime.
	TokenTTL time.Duration
	// GraceWindow is how long a rotated token remains acceptable for
	// validation after rotation. It never permits a second rotation.
	GraceWindow time.Duration
	RedisPrefix string
}

/*
====================================
COORDINATOR CONFIG
====================================
*/

// CoordinatorConfig tunes the concurrent-refresh episode: the per-user lock
// and the follower wait loop.
type CoordinatorConfig struct {
	// LockTTL bounds how long a crashed winner can block later episodes.
	LockTTL time.Duration
	// WaitInterval is the follower poll period.
	WaitInterval time.Duration
	// WaitAttempts bounds the follower poll count.
	WaitAttempts int
	// ResultCacheTTL is the shared result lifetime. Validate enforces
	// ResultCacheTTL >= WaitAttempts * WaitInterval so followers cannot
	// time out spuriously while a valid result exists.
	ResultCacheTTL time.Duration
}

/*
====================================
DEVICE CHECK CONFIG
====================================
*/

// DeviceCheckConfig controls advisory device-mismatch detection. Detection
// only logs, audits, and counts; it never denies access.
type DeviceCheckConfig struct {
	DetectIPChange        bool
	DetectUserAgentChange bool
	// AnomalyWindow throttles mismatch warnings to one per token and kind.
	AnomalyWindow time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the async audit event dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     5 * time.Minute,
			SigningMethod: "ed25519",
		},
		Refresh: RefreshConfig{
			TokenTTL:    7 * 24 * time.Hour,
			GraceWindow: 30 * time.Second,
			RedisPrefix: "rt",
		},
		Coordinator: CoordinatorConfig{
			LockTTL:        10 * time.Second,
			WaitInterval:   100 * time.Millisecond,
			WaitAttempts:   50,
			ResultCacheTTL: time.Minute,
		},
		DeviceCheck: DeviceCheckConfig{
			DetectIPChange:        true,
			DetectUserAgentChange: true,
			AnomalyWindow:         time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if len(cfg.JWT.PrivateKey) > 0 {
		out.JWT.PrivateKey = append([]byte(nil), cfg.JWT.PrivateKey...)
	}
	if len(cfg.JWT.PublicKey) > 0 {
		out.JWT.PublicKey = append([]byte(nil), cfg.JWT.PublicKey...)
	}
	return out
}

// Validate checks the configuration for internal consistency. It is called
// by [Builder.Build]; exported so callers can validate ahead of time.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.SigningMethod != "ed25519" && c.JWT.SigningMethod != "hs256" {
		return errors.New("unsupported JWT signing method")
	}
	// Key material is enforced by the JWT manager; a custom AccessIssuer
	// needs no key at all.

	// Refresh
	if c.Refresh.TokenTTL <= 0 {
		return errors.New("Refresh TokenTTL must be > 0")
	}
	if c.Refresh.GraceWindow <= 0 {
		return errors.New("Refresh GraceWindow must be > 0")
	}
	if c.Refresh.GraceWindow >= c.Refresh.TokenTTL {
		return errors.New("Refresh GraceWindow must be < TokenTTL")
	}

	// Coordinator
	if c.Coordinator.LockTTL <= 0 {
		return errors.New("Coordinator LockTTL must be > 0")
	}
	if c.Coordinator.WaitInterval <= 0 {
		return errors.New("Coordinator WaitInterval must be > 0")
	}
	if c.Coordinator.WaitAttempts <= 0 {
		return errors.New("Coordinator WaitAttempts must be > 0")
	}
	worstWait := time.Duration(c.Coordinator.WaitAttempts) * c.Coordinator.WaitInterval
	if c.Coordinator.ResultCacheTTL < worstWait {
		return errors.New("Coordinator ResultCacheTTL must cover WaitAttempts * WaitInterval")
	}

	// Device check
	if c.DeviceCheck.AnomalyWindow < 0 {
		return errors.New("DeviceCheck AnomalyWindow must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
