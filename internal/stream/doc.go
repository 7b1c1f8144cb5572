// Package stream relays Google Drive media to HTTP clients.
//
// The proxy resolves file metadata, enforces a per-route media-kind
// allowlist, and serves video content with HTTP range semantics: a Range
// request yields a 206 partial response with exact Content-Range headers,
// an unsatisfiable range yields 416, and open-ended ranges are bounded by
// a fixed fallback window so a single request never pins the whole file.
//
// Bodies are relayed without buffering. When the upstream read fails after
// the response headers are committed, the proxy aborts the connection so
// the client observes a truncated transfer instead of a silently short one.
package stream
