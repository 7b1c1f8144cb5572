// Package drive provides a capability-restricted client for the Google
// Drive API: file metadata retrieval, folder child listing, content
// streaming with optional provider-side byte ranges, and resumable upload
// initiation.
//
// The restriction is deliberate. The proxy only ever needs to locate files
// and move their bytes; management operations (create, rename, delete,
// share) are not part of its contract and are not exposed here.
//
// Authorization flows through an oauth2.TokenSource supplied by the caller,
// typically the live token store, so every call picks up the most recently
// refreshed credential. The HTTP transport is pinned to HTTP/1.1 because
// large media downloads over HTTP/2 are unstable against the googleapis
// edge.
package drive
