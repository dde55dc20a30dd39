package security

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Audit event types emitted by the provider engine.
const (
	EventTokenIssued    = "token_issued"
	EventTokenRefreshed = "token_refreshed"
	EventTokenRevoked   = "token_revoked"
	EventCodeIssued     = "authorization_code_issued"
	EventAuthFailure    = "auth_failure"
	EventReuseDetected  = "reuse_detected"
	EventAccessRevoked  = "access_revoked"
)

// Auditor logs security events with PII protection. User identifiers are
// hashed before they reach the log stream.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
}

// NewAuditor creates an auditor. A nil logger falls back to slog.Default.
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{logger: logger, enabled: enabled}
}

// Event is a single security audit record.
type Event struct {
	ID        string
	Type      string
	UserID    string
	ClientID  string
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent logs a security event. The user ID is hashed; the event is
// assigned a unique ID for correlation with downstream alerting.
func (a *Auditor) LogEvent(event Event) {
	if a == nil || !a.enabled {
		return
	}

	event.ID = uuid.NewString()
	event.Timestamp = time.Now()

	a.logger.Info("security_audit",
		"event_id", event.ID,
		"event_type", event.Type,
		"user_id_hash", hashForLogging(event.UserID),
		"client_id", event.ClientID,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)
}

// LogTokenIssued logs issuance of an access token under the given grant.
func (a *Auditor) LogTokenIssued(userID, clientID, grantType, scope string) {
	a.LogEvent(Event{
		Type:     EventTokenIssued,
		UserID:   userID,
		ClientID: clientID,
		Details: map[string]any{
			"grant_type": grantType,
			"scope":      scope,
		},
	})
}

// LogCodeIssued logs issuance of an authorization code.
func (a *Auditor) LogCodeIssued(userID, clientID, scope string) {
	a.LogEvent(Event{
		Type:     EventCodeIssued,
		UserID:   userID,
		ClientID: clientID,
		Details: map[string]any{
			"scope": scope,
		},
	})
}

// LogTokenRefreshed logs an access-token refresh, noting whether the
// refresh token was rotated.
func (a *Auditor) LogTokenRefreshed(userID, clientID string, rotated bool) {
	a.LogEvent(Event{
		Type:     EventTokenRefreshed,
		UserID:   userID,
		ClientID: clientID,
		Details: map[string]any{
			"rotated": rotated,
		},
	})
}

// LogTokenRevoked logs revocation of a single token.
func (a *Auditor) LogTokenRevoked(userID, clientID, tokenType string) {
	a.LogEvent(Event{
		Type:     EventTokenRevoked,
		UserID:   userID,
		ClientID: clientID,
		Details: map[string]any{
			"token_type": tokenType,
		},
	})
}

// LogAuthFailure logs a failed authentication or grant validation.
func (a *Auditor) LogAuthFailure(userID, clientID, reason string) {
	a.LogEvent(Event{
		Type:     EventAuthFailure,
		UserID:   userID,
		ClientID: clientID,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogReuseDetected logs redemption of an already-redeemed grant artifact,
// which indicates a replay or token theft attempt.
func (a *Auditor) LogReuseDetected(userID, clientID, artifact string) {
	a.LogEvent(Event{
		Type:     EventReuseDetected,
		UserID:   userID,
		ClientID: clientID,
		Details: map[string]any{
			"artifact": artifact,
			"severity": "critical",
			"action":   "all_tokens_revoked",
		},
	})
}

// LogAccessRevoked logs a full revocation cascade for a user/client pair.
func (a *Auditor) LogAccessRevoked(userID, clientID string, revoked int) {
	a.LogEvent(Event{
		Type:     EventAccessRevoked,
		UserID:   userID,
		ClientID: clientID,
		Details: map[string]any{
			"tokens_revoked": revoked,
		},
	})
}

// hashForLogging hashes sensitive identifiers before logging.
func hashForLogging(sensitive string) string {
	if sensitive == "" {
		return "<empty>"
	}
	hash := sha256.Sum256([]byte(sensitive))
	return hex.EncodeToString(hash[:])[:16]
}
