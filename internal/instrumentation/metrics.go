package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys - using constants for consistency and DRY
const (
	// Common attributes (reused across metrics)
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrResult    = "result"
	attrKind      = "kind"
	attrFileID    = "file_id"
)

// Metrics provides methods for recording observability metrics.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram
	activeStreams       metric.Int64UpDownCounter

	// Drive API metrics
	driveOperationsTotal   metric.Int64Counter
	driveOperationDuration metric.Float64Histogram

	// OAuth metrics
	oauthAuthTotal         metric.Int64Counter
	oauthTokenRefreshTotal metric.Int64Counter

	// Streaming and archiving metrics
	streamBytesTotal    metric.Int64Counter
	archiveJobsTotal    metric.Int64Counter
	archiveJobDuration  metric.Float64Histogram
	archiveEntriesTotal metric.Int64Counter

	// Configuration
	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The detailedLabels parameter controls whether high-cardinality labels are included.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	// HTTP Metrics
	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	m.activeStreams, err = meter.Int64UpDownCounter(
		"active_streams",
		metric.WithDescription("Number of media streams currently being served"),
		metric.WithUnit("{stream}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active_streams gauge: %w", err)
	}

	// Drive API Metrics
	m.driveOperationsTotal, err = meter.Int64Counter(
		"drive_api_operations_total",
		metric.WithDescription("Total number of Google Drive API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive_api_operations_total counter: %w", err)
	}

	m.driveOperationDuration, err = meter.Float64Histogram(
		"drive_api_operation_duration_seconds",
		metric.WithDescription("Google Drive API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive_api_operation_duration_seconds histogram: %w", err)
	}

	// OAuth Metrics
	m.oauthAuthTotal, err = meter.Int64Counter(
		"oauth_auth_total",
		metric.WithDescription("Total number of OAuth authentication attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_auth_total counter: %w", err)
	}

	m.oauthTokenRefreshTotal, err = meter.Int64Counter(
		"oauth_token_refresh_total",
		metric.WithDescription("Total number of OAuth token refresh attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_token_refresh_total counter: %w", err)
	}

	// Streaming and archiving metrics
	m.streamBytesTotal, err = meter.Int64Counter(
		"stream_bytes_total",
		metric.WithDescription("Total bytes relayed to clients by the stream proxy"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream_bytes_total counter: %w", err)
	}

	m.archiveJobsTotal, err = meter.Int64Counter(
		"archive_jobs_total",
		metric.WithDescription("Total number of ZIP archive jobs"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive_jobs_total counter: %w", err)
	}

	m.archiveJobDuration, err = meter.Float64Histogram(
		"archive_job_duration_seconds",
		metric.WithDescription("ZIP archive job duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 300.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive_job_duration_seconds histogram: %w", err)
	}

	m.archiveEntriesTotal, err = meter.Int64Counter(
		"archive_entries_total",
		metric.WithDescription("Total number of files written into ZIP archives"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive_entries_total counter: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordDriveOperation records a Google Drive API operation.
//
// Parameters:
//   - operation: Operation type (get, list, content, content_range, upload)
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the operation
func (m *Metrics) RecordDriveOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if m == nil || m.driveOperationsTotal == nil || m.driveOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.driveOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.driveOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordOAuthAuth records an OAuth authentication attempt with result.
// Result should be one of: "success", "failure"
func (m *Metrics) RecordOAuthAuth(ctx context.Context, result string) {
	if m == nil || m.oauthAuthTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrResult, result),
	}

	m.oauthAuthTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordOAuthTokenRefresh records an OAuth token refresh attempt with result.
// Result should be one of: "success", "failure", "skipped"
func (m *Metrics) RecordOAuthTokenRefresh(ctx context.Context, result string) {
	if m == nil || m.oauthTokenRefreshTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrResult, result),
	}

	m.oauthTokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordStreamBytes records bytes relayed to a client by the stream proxy.
func (m *Metrics) RecordStreamBytes(ctx context.Context, n int64) {
	if m == nil || m.streamBytesTotal == nil {
		return // Instrumentation not initialized
	}

	m.streamBytesTotal.Add(ctx, n)
}

// RecordArchiveJob records a completed (or failed) ZIP archive job.
//
// Parameters:
//   - kind: Job kind ("folder" or "files")
//   - status: Result status ("success" or "error")
//   - entries: Number of file entries written before the job ended
//   - duration: Time taken for the job
func (m *Metrics) RecordArchiveJob(ctx context.Context, kind, status string, entries int64, duration time.Duration) {
	if m == nil || m.archiveJobsTotal == nil || m.archiveJobDuration == nil || m.archiveEntriesTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrKind, kind),
		attribute.String(attrStatus, status),
	}

	m.archiveJobsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.archiveJobDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	if entries > 0 {
		m.archiveEntriesTotal.Add(ctx, entries, metric.WithAttributes(attrs...))
	}
}

// IncrementActiveStreams increments the active streams gauge.
func (m *Metrics) IncrementActiveStreams(ctx context.Context) {
	if m == nil || m.activeStreams == nil {
		return // Instrumentation not initialized
	}

	m.activeStreams.Add(ctx, 1)
}

// DecrementActiveStreams decrements the active streams gauge.
func (m *Metrics) DecrementActiveStreams(ctx context.Context) {
	if m == nil || m.activeStreams == nil {
		return // Instrumentation not initialized
	}

	m.activeStreams.Add(ctx, -1)
}

// RecordDriveOperationWithFile records a Drive API operation including the
// file id label. The file id is only attached when detailedLabels is enabled,
// since it is unbounded cardinality.
func (m *Metrics) RecordDriveOperationWithFile(ctx context.Context, operation, status, fileID string, duration time.Duration) {
	if m == nil || m.driveOperationsTotal == nil || m.driveOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	// Only add high-cardinality labels if explicitly enabled
	if m.detailedLabels && fileID != "" {
		attrs = append(attrs, attribute.String(attrFileID, fileID))
	}

	m.driveOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.driveOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
