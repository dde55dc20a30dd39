package security

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func newCapturedAuditor(enabled bool) (*Auditor, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	return NewAuditor(logger, enabled), &buf
}

func TestAuditorHashesUserID(t *testing.T) {
	auditor, buf := newCapturedAuditor(true)
	auditor.LogTokenIssued("sensitive-user-id", "client-1", "password", "profile")

	out := buf.String()
	if out == "" {
		t.Fatal("expected an audit log line")
	}
	if strings.Contains(out, "sensitive-user-id") {
		t.Error("raw user ID must not appear in audit logs")
	}
	if !strings.Contains(out, "event_type="+EventTokenIssued) {
		t.Errorf("expected event type in output, got %q", out)
	}
	if !strings.Contains(out, "client_id=client-1") {
		t.Errorf("expected client ID in output, got %q", out)
	}
}

func TestAuditorDisabled(t *testing.T) {
	auditor, buf := newCapturedAuditor(false)
	auditor.LogReuseDetected("user-1", "client-1", "refresh_token")

	if buf.Len() != 0 {
		t.Errorf("disabled auditor must not log, got %q", buf.String())
	}
}

func TestAuditorNilReceiver(t *testing.T) {
	var auditor *Auditor
	// Must not panic.
	auditor.LogAuthFailure("user-1", "client-1", "test")
}

func TestAuditorEventTypes(t *testing.T) {
	auditor, buf := newCapturedAuditor(true)

	auditor.LogCodeIssued("u", "c", "profile")
	auditor.LogTokenRefreshed("u", "c", true)
	auditor.LogTokenRevoked("u", "c", "access_token")
	auditor.LogAccessRevoked("u", "c", 3)

	out := buf.String()
	for _, want := range []string{EventCodeIssued, EventTokenRefreshed, EventTokenRevoked, EventAccessRevoked} {
		if !strings.Contains(out, want) {
			t.Errorf("expected event %q in output", want)
		}
	}
}
