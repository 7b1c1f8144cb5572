// Package token owns the OAuth2 credential lifecycle for the Drive proxy.
//
// Store is the single mutable cell holding the process-wide credential set,
// persisted to tokens.json in development or injected read-only via
// GOOGLE_TOKENS in ephemeral deployments. Refresher performs the
// authorization-code exchange and refresh-token grant against Google's
// token endpoint, writing results back through Store.
//
// The refresh policy is deliberately fail-fast: a failed refresh clears the
// whole credential and forces re-authorization rather than retrying a broken
// refresh token indefinitely.
package token
