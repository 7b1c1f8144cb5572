package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// MediaAccess captures all information about one media or archive access for
// audit logging. This gives operators a trail of who pulled what out of the
// Drive tree.
//
// # Privacy Considerations
//
// The RemoteAddr field identifies the client. When logging, consider:
//   - Using OriginHost() to get only the origin host for metrics/general logs
//   - Only logging the remote address in audit-specific log streams
//   - Ensuring audit logs have appropriate access controls
type MediaAccess struct {
	// Operation is the logical route: stream, view, download, archive_folder,
	// archive_files, upload.
	Operation string

	// Target information
	FileID string

	// Client identity
	Origin     string // browser Origin header
	RemoteAddr string // client network address

	// Execution details
	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	// Tracing context
	TraceID string
	SpanID  string
}

// OriginHost returns the host portion of the client origin for
// lower-cardinality logging.
func (ma *MediaAccess) OriginHost() string {
	return ExtractOriginHost(ma.Origin)
}

// Status returns "success" or "error" based on the Success field.
func (ma *MediaAccess) Status() string {
	if ma.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns slog attributes for structured logging.
// This provides a consistent set of fields for all access logs.
//
// # Cardinality
//
// This function uses cardinality-controlled values (origin host, no remote
// address) for metrics-compatible logging. For full audit logging, use
// LogAuditAttrs.
func (ma *MediaAccess) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("operation", ma.Operation),
		slog.String("origin_host", ma.OriginHost()),
		slog.Duration("duration", ma.Duration),
		slog.Bool("success", ma.Success),
	}

	// Add optional fields only if present
	if ma.FileID != "" {
		attrs = append(attrs, slog.String("file_id", ma.FileID))
	}
	if ma.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ma.TraceID))
	}
	if ma.Error != "" {
		attrs = append(attrs, slog.String("error", ma.Error))
	}

	return attrs
}

// LogAuditAttrs returns slog attributes for full audit logging.
// This includes the client's remote address for compliance/audit purposes.
//
// # Security Warning
//
// This method includes client-identifying data. Ensure audit logs are:
//   - Stored securely with appropriate access controls
//   - Not exposed to general monitoring dashboards
//   - Retained according to compliance requirements
func (ma *MediaAccess) LogAuditAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("operation", ma.Operation),
		slog.String("remote_addr", ma.RemoteAddr),
		slog.Duration("duration", ma.Duration),
		slog.Bool("success", ma.Success),
	}

	// Add all optional fields
	if ma.FileID != "" {
		attrs = append(attrs, slog.String("file_id", ma.FileID))
	}
	if ma.Origin != "" {
		attrs = append(attrs, slog.String("origin", ma.Origin))
	}
	if ma.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ma.TraceID))
	}
	if ma.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", ma.SpanID))
	}
	if ma.Error != "" {
		attrs = append(attrs, slog.String("error", ma.Error))
	}

	return attrs
}

// NewMediaAccess creates a new MediaAccess with timing started.
// Call Complete() when the access finishes.
func NewMediaAccess(operation string) *MediaAccess {
	return &MediaAccess{
		Operation: operation,
		StartTime: time.Now(),
	}
}

// WithFile sets the target file or folder id.
func (ma *MediaAccess) WithFile(fileID string) *MediaAccess {
	ma.FileID = fileID
	return ma
}

// WithClient sets the client identity information.
func (ma *MediaAccess) WithClient(origin, remoteAddr string) *MediaAccess {
	ma.Origin = origin
	ma.RemoteAddr = remoteAddr
	return ma
}

// WithSpanContext extracts trace context from the current span.
func (ma *MediaAccess) WithSpanContext(ctx context.Context) *MediaAccess {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		ma.TraceID = span.SpanContext().TraceID().String()
		ma.SpanID = span.SpanContext().SpanID().String()
	}
	return ma
}

// Complete marks the access as completed and calculates duration.
// Returns the same MediaAccess for method chaining.
func (ma *MediaAccess) Complete(success bool, err error) *MediaAccess {
	ma.Duration = time.Since(ma.StartTime)
	ma.Success = success
	if err != nil {
		ma.Error = err.Error()
	}
	return ma
}

// CompleteWithError marks the access as failed with the given error.
func (ma *MediaAccess) CompleteWithError(err error) *MediaAccess {
	return ma.Complete(false, err)
}

// CompleteSuccess marks the access as successful.
func (ma *MediaAccess) CompleteSuccess() *MediaAccess {
	return ma.Complete(true, nil)
}

// AuditLogger provides structured audit logging for media accesses.
// It wraps slog.Logger with convenience methods for logging access events.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates a new AuditLogger with the given slog.Logger.
// By default, client-identifying data is not included (origin hosts are used
// instead).
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: false,
		enabled:    true,
	}
}

// NewAuditLoggerWithConfig creates a new AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// SetIncludePII sets whether to include client addresses in audit logs.
func (al *AuditLogger) SetIncludePII(include bool) {
	al.includePII = include
}

// SetEnabled sets whether audit logging is enabled.
func (al *AuditLogger) SetEnabled(enabled bool) {
	al.enabled = enabled
}

// LogMediaAccess logs an access using the standard log attributes.
// This is suitable for general operational logging with cardinality controls.
// If the logger is configured with IncludePII, client addresses are logged;
// otherwise, only origin-host identifiers are used.
func (al *AuditLogger) LogMediaAccess(ma *MediaAccess) {
	if al == nil || !al.enabled {
		return
	}

	// Choose between PII and anonymized logging based on configuration
	var attrs []slog.Attr
	if al.includePII {
		attrs = ma.LogAuditAttrs()
	} else {
		attrs = ma.LogAttrs()
	}

	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	if ma.Success {
		al.logger.Info("media_access", args...)
	} else {
		al.logger.Warn("media_access_failed", args...)
	}
}

// LogAccessAudit logs an access with full audit details.
// This includes client-identifying data for compliance/audit purposes.
// SECURITY: Ensure audit logs are routed to secure storage with appropriate
// access controls.
//
// Note: This method respects the enabled flag but always includes client
// data when called, regardless of the IncludePII configuration. Use
// LogMediaAccess for configuration-aware logging.
func (al *AuditLogger) LogAccessAudit(ma *MediaAccess) {
	if al == nil || !al.enabled {
		return
	}

	attrs := ma.LogAuditAttrs()
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	al.logger.Info("media_access_audit", args...)
}
