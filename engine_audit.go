package gorefresh

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/arkadian7/goRefresh/token"
)

// Audit event types emitted by the engine.
const (
	AuditRefreshTokenIssued  = "refresh_token_issued"
	AuditRefreshSuccess      = "refresh_success"
	AuditRefreshInvalid      = "refresh_invalid"
	AuditRefreshTimeout      = "refresh_timeout"
	AuditRefreshFanout       = "refresh_fanout"
	AuditRefreshTokenRevoked = "refresh_token_revoked"
	AuditRevokedAll          = "refresh_tokens_revoked_all"
	AuditDeviceAnomaly       = "device_anomaly_detected"
	AuditAccountRejected     = "refresh_account_rejected"
)

// tokenFingerprint returns a short stable digest of a refresh token so audit
// records never carry the plaintext credential.
func tokenFingerprint(tok string) string {
	if tok == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(tok))
	return hex.EncodeToString(sum[:8])
}

// noteDeviceAnomaly records an advisory device mismatch. Anomalies never
// fail the calling operation.
func (e *Engine) noteDeviceAnomaly(ctx context.Context, kind string, rec *token.Record) {
	switch kind {
	case "ip":
		e.metrics.Inc(MetricDeviceIPMismatch)
	case "ua":
		e.metrics.Inc(MetricDeviceUAMismatch)
	}

	e.emitAudit(ctx, AuditDeviceAnomaly, rec.UserID, rec.Token, true, "", map[string]string{
		"kind": kind,
	})
}

func (e *Engine) emitAudit(ctx context.Context, eventType, userID, tok string, success bool, errMsg string, metadata map[string]string) {
	if e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		UserID:    userID,
		Token:     tokenFingerprint(tok),
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Error:     errMsg,
		Metadata:  metadata,
	}

	e.audit.Emit(ctx, event)
}
