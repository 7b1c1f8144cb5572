// Package server implements the browser-facing HTTP API: the Google OAuth
// flow, authenticated streaming and ZIP download routes, the proxied
// resumable upload, CORS, health probes, and the dedicated Prometheus
// metrics listener.
//
// Handlers depend on small interfaces (MediaStreamer, Archiver,
// UploadInitiator, AuthFlow, CredentialState) so the route behavior can be
// tested without a Drive backend.
package server
