package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Common span attribute keys. Only metadata is ever attached to spans;
// issued plaintext values, hashes and client secrets never appear in
// telemetry.
const (
	AttrClientID     = "oauth.client_id"
	AttrUserID       = "oauth.user_id"
	AttrScope        = "oauth.scope"
	AttrGrantType    = "oauth.grant_type"
	AttrResponseType = "oauth.response_type"
	AttrRedirectURI  = "oauth.redirect_uri"
	AttrTokenRotated = "oauth.token.rotated"
)

// RecordError records an error on a span with error status. Nil-safe.
func RecordError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanOK marks a span as successful. Nil-safe.
func SetSpanOK(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// StringAttr builds a string attribute, substituting "unknown" for empty
// values so dashboards can group on the key.
func StringAttr(key, value string) attribute.KeyValue {
	if value == "" {
		value = "unknown"
	}
	return attribute.String(key, value)
}
