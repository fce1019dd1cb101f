/*
Package observability exposes tickler runs to Prometheus and OpenTelemetry.

Metrics are fed by lifecycle hooks, so any engine can be instrumented by merging
Metrics.Hooks into its own hooks. NewTracer installs a global tracer provider
that exports spans over OTLP gRPC when an endpoint is configured.
*/
package observability
