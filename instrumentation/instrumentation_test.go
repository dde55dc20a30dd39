package instrumentation

import (
	"context"
	"testing"
)

func TestNewDefaults(t *testing.T) {
	inst, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if inst.config.ServiceName != "oauth-provider" {
		t.Errorf("ServiceName = %q", inst.config.ServiceName)
	}
	if inst.config.ServiceVersion != DefaultServiceVersion {
		t.Errorf("ServiceVersion = %q", inst.config.ServiceVersion)
	}
	if inst.Metrics() == nil {
		t.Fatal("Metrics() returned nil")
	}
	if inst.MeterProvider() == nil || inst.TracerProvider() == nil {
		t.Error("providers must always be set")
	}
}

func TestMeterAndTracerScoping(t *testing.T) {
	inst, err := New(Config{ServiceName: "test"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if m := inst.Meter("provider"); m == nil {
		t.Error("Meter() returned nil")
	}
	if tr := inst.Tracer("provider"); tr == nil {
		t.Error("Tracer() returned nil")
	}
}

func TestMetricsRecordersAreUsable(t *testing.T) {
	inst, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// No-op providers must absorb recordings without panicking.
	ctx := context.Background()
	m := inst.Metrics()
	m.RecordCodeIssued(ctx, "c1")
	m.RecordCodeExchange(ctx, "c1")
	m.RecordTokensIssued(ctx, "c1", "password")
	m.RecordTokenRefresh(ctx, "c1", true)
	m.RecordTokenRevocation(ctx, "c1", 2)
	m.RecordGrantDuration(ctx, "password", 1.5)
	m.RecordReuseDetected(ctx, "c1", "refresh_token")
	m.RecordAuthFailure(ctx, "c1", "bad_secret")
	m.RecordAuditEvent(ctx, "token_issued")
}

func TestRegisterStorageSizeCallbacks(t *testing.T) {
	inst, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	err = inst.RegisterStorageSizeCallbacks(
		func() int64 { return 1 },
		func() int64 { return 2 },
		nil,
		nil,
	)
	if err != nil {
		t.Errorf("RegisterStorageSizeCallbacks() error = %v", err)
	}
}

func TestShutdownIdempotent(t *testing.T) {
	inst, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	if err := inst.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	if err := inst.Shutdown(ctx); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}
