package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments for the engine.
type Metrics struct {
	// Grant flow metrics
	CodesIssued     metric.Int64Counter
	CodesExchanged  metric.Int64Counter
	TokensIssued    metric.Int64Counter
	TokensRefreshed metric.Int64Counter
	TokensRevoked   metric.Int64Counter
	GrantDuration   metric.Float64Histogram

	// Security metrics
	ReuseDetected    metric.Int64Counter
	AuthFailures     metric.Int64Counter
	AuditEventsTotal metric.Int64Counter

	// Storage metrics
	StorageCodesCount         metric.Int64ObservableGauge
	StorageAccessTokensCount  metric.Int64ObservableGauge
	StorageRefreshTokensCount metric.Int64ObservableGauge
	StorageClientsCount       metric.Int64ObservableGauge
}

// newMetrics creates and registers all metric instruments.
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	m := &Metrics{}
	provider := inst.Meter("provider")
	security := inst.Meter("security")
	storage := inst.Meter("storage")

	var err error
	m.CodesIssued, err = provider.Int64Counter(
		"oauth.codes.issued",
		metric.WithDescription("Number of authorization codes issued"),
		metric.WithUnit("{code}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create codes.issued counter: %w", err)
	}

	m.CodesExchanged, err = provider.Int64Counter(
		"oauth.codes.exchanged",
		metric.WithDescription("Number of authorization codes exchanged for tokens"),
		metric.WithUnit("{exchange}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create codes.exchanged counter: %w", err)
	}

	m.TokensIssued, err = provider.Int64Counter(
		"oauth.tokens.issued",
		metric.WithDescription("Number of access tokens issued"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokens.issued counter: %w", err)
	}

	m.TokensRefreshed, err = provider.Int64Counter(
		"oauth.tokens.refreshed",
		metric.WithDescription("Number of tokens refreshed"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokens.refreshed counter: %w", err)
	}

	m.TokensRevoked, err = provider.Int64Counter(
		"oauth.tokens.revoked",
		metric.WithDescription("Number of tokens revoked"),
		metric.WithUnit("{revocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokens.revoked counter: %w", err)
	}

	m.GrantDuration, err = provider.Float64Histogram(
		"oauth.grant.duration",
		metric.WithDescription("Grant processing duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create grant.duration histogram: %w", err)
	}

	m.ReuseDetected, err = security.Int64Counter(
		"oauth.reuse.detected",
		metric.WithDescription("Number of code or refresh token reuse attempts detected"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create reuse.detected counter: %w", err)
	}

	m.AuthFailures, err = security.Int64Counter(
		"oauth.auth.failures",
		metric.WithDescription("Number of failed client or grant authentications"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth.failures counter: %w", err)
	}

	m.AuditEventsTotal, err = security.Int64Counter(
		"oauth.audit.events.total",
		metric.WithDescription("Total number of audit events"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit.events.total counter: %w", err)
	}

	m.StorageCodesCount, err = storage.Int64ObservableGauge(
		"storage.codes.count",
		metric.WithDescription("Number of stored authorization codes"),
		metric.WithUnit("{code}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.codes.count gauge: %w", err)
	}

	m.StorageAccessTokensCount, err = storage.Int64ObservableGauge(
		"storage.access_tokens.count",
		metric.WithDescription("Number of stored access tokens"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.access_tokens.count gauge: %w", err)
	}

	m.StorageRefreshTokensCount, err = storage.Int64ObservableGauge(
		"storage.refresh_tokens.count",
		metric.WithDescription("Number of stored refresh tokens"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.refresh_tokens.count gauge: %w", err)
	}

	m.StorageClientsCount, err = storage.Int64ObservableGauge(
		"storage.clients.count",
		metric.WithDescription("Number of registered clients"),
		metric.WithUnit("{client}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.clients.count gauge: %w", err)
	}

	return m, nil
}

// Helper methods for common metric recording patterns.

// RecordCodeIssued records an authorization code issuance.
func (m *Metrics) RecordCodeIssued(ctx context.Context, clientID string) {
	m.CodesIssued.Add(ctx, 1, metric.WithAttributes(
		attribute.String("client_id", clientID),
	))
}

// RecordCodeExchange records an authorization code exchange.
func (m *Metrics) RecordCodeExchange(ctx context.Context, clientID string) {
	m.CodesExchanged.Add(ctx, 1, metric.WithAttributes(
		attribute.String("client_id", clientID),
	))
}

// RecordTokensIssued records an access token issuance under the grant type.
func (m *Metrics) RecordTokensIssued(ctx context.Context, clientID, grantType string) {
	m.TokensIssued.Add(ctx, 1, metric.WithAttributes(
		attribute.String("client_id", clientID),
		attribute.String("grant_type", grantType),
	))
}

// RecordTokenRefresh records a refresh grant, noting whether the refresh
// token was rotated.
func (m *Metrics) RecordTokenRefresh(ctx context.Context, clientID string, rotated bool) {
	m.TokensRefreshed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("client_id", clientID),
		attribute.Bool("rotated", rotated),
	))
}

// RecordTokenRevocation records revoked tokens for a client.
func (m *Metrics) RecordTokenRevocation(ctx context.Context, clientID string, count int64) {
	m.TokensRevoked.Add(ctx, count, metric.WithAttributes(
		attribute.String("client_id", clientID),
	))
}

// RecordGrantDuration records how long a grant took to process.
func (m *Metrics) RecordGrantDuration(ctx context.Context, grantType string, durationMs float64) {
	m.GrantDuration.Record(ctx, durationMs, metric.WithAttributes(
		attribute.String("grant_type", grantType),
	))
}

// RecordReuseDetected records a redeemed artifact being presented again.
func (m *Metrics) RecordReuseDetected(ctx context.Context, clientID, artifact string) {
	m.ReuseDetected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("client_id", clientID),
		attribute.String("artifact", artifact),
	))
}

// RecordAuthFailure records a failed authentication attempt.
func (m *Metrics) RecordAuthFailure(ctx context.Context, clientID, reason string) {
	m.AuthFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("client_id", clientID),
		attribute.String("reason", reason),
	))
}

// RecordAuditEvent records an emitted audit event.
func (m *Metrics) RecordAuditEvent(ctx context.Context, eventType string) {
	m.AuditEventsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
	))
}
