package instrumentation

import "net/url"

// Cardinality management helpers for metrics.
// These functions reduce high-cardinality label values to prevent metrics explosion.
//
// # Warning
//
// High cardinality in metrics can cause:
// - Increased memory usage in Prometheus/metrics backends
// - Slower query performance
// - Higher storage costs
//
// Always use these helpers when recording metrics with client identifiers.

// ExtractOriginHost extracts the host from a browser Origin header value.
// This reduces cardinality by dropping scheme and port details and collapses
// garbage values into "unknown".
//
// Example:
//
//	ExtractOriginHost("https://app.example.com")      // "app.example.com"
//	ExtractOriginHost("http://localhost:3000")        // "localhost"
//	ExtractOriginHost("not a url")                    // "unknown"
//	ExtractOriginHost("")                             // "unknown"
func ExtractOriginHost(origin string) string {
	if origin == "" {
		return "unknown"
	}

	u, err := url.Parse(origin)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return u.Hostname()
}

// Common operation types for Drive API metrics.
// Status and OAuth constants are defined in config.go.
const (
	OperationGet          = "get"
	OperationList         = "list"
	OperationContent      = "content"
	OperationContentRange = "content_range"
	OperationUpload       = "upload"
)
