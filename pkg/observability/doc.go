// Package observability provides structured logging, Prometheus metrics,
// health checks, and graceful shutdown for the realtime layer.
//
// Logging uses stdlib slog with a JSON handler. Metrics cover store command
// outcomes and latencies plus the domain counters (trending bumps, alerts
// raised, activity pushes, rate-limit decisions, hot-cache hits). The health
// checker exposes liveness and readiness HTTP handlers that probe Redis.
package observability
