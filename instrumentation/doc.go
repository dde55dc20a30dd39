// Package instrumentation provides OpenTelemetry metrics and tracing for
// the authorization server engine. When disabled it installs no-op
// providers, so instrumented code paths carry no overhead and callers never
// need nil checks.
package instrumentation
