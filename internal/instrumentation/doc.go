// Package instrumentation provides OpenTelemetry instrumentation for the
// drivebridge server.
//
// This package enables production-grade observability through:
//   - OpenTelemetry metrics for HTTP requests, OAuth operations, and Drive API calls
//   - Distributed tracing for request flows and Drive API calls
//   - Prometheus metrics export via /metrics endpoint on a dedicated port
//   - OTLP export support for modern observability platforms
//
// # Metrics
//
// The package exposes the following metric categories:
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//   - active_streams: Gauge of media streams currently being served
//
// Drive API Metrics:
//   - drive_api_operations_total: Counter of Drive API operations by operation and status
//   - drive_api_operation_duration_seconds: Histogram of Drive API operation durations
//
// OAuth Authentication Metrics:
//   - oauth_auth_total: Counter of OAuth code exchanges by result
//   - oauth_token_refresh_total: Counter of token refresh attempts by result
//
// Streaming and Archiving Metrics:
//   - stream_bytes_total: Counter of bytes relayed to clients
//   - archive_jobs_total: Counter of ZIP archive jobs by kind and status
//   - archive_job_duration_seconds: Histogram of ZIP archive job durations
//   - archive_entries_total: Counter of files written into ZIP archives
//
// # Tracing
//
// Distributed tracing spans are created for:
//   - HTTP request handling
//   - Drive API calls (drive.<operation>)
//
// # Audit Logging
//
// Media and archive accesses are recorded as MediaAccess events. The default
// log stream uses cardinality-controlled, anonymized attributes; the audit
// stream includes client addresses and is intended for secured storage.
//
// # Configuration
//
// Behavior is controlled through environment variables; see DefaultConfig for
// the full list. INSTRUMENTATION_ENABLED=false disables the whole subsystem,
// in which case every recording method becomes a no-op.
package instrumentation
