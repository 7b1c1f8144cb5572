// Package gate guards media routes behind the server's Google Drive
// authentication state.
package gate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"drivebridge/internal/logging"
	"drivebridge/internal/token"
)

// Refresher is the part of the token refresher the gate drives.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Gate is the policy layer deciding whether a request may proceed to a
// provider-backed operation. Every gated request is refreshed proactively:
// the extra refresh calls buy much simpler error handling than reacting to
// provider 401s mid-stream.
type Gate struct {
	store     *token.Store
	refresher Refresher
	logger    *slog.Logger
}

// New creates a Gate over the given store and refresher.
func New(store *token.Store, refresher Refresher) *Gate {
	return &Gate{
		store:     store,
		refresher: refresher,
		logger:    logging.WithComponent(slog.Default(), "auth_gate"),
	}
}

// Middleware rejects requests without valid provider credentials and
// refreshes the credential before letting the handler run.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.store.HasValidAccess() {
			g.reject(w, "Google Drive not authenticated. Please authenticate first.")
			return
		}

		if err := g.refresher.Refresh(r.Context()); err != nil && !errors.Is(err, token.ErrNoRefreshToken) {
			g.logger.Warn("proactive token refresh failed", logging.Err(err))
		}

		// Refresh failure clears the store, so this re-check catches an
		// expired credential set.
		if !g.store.HasValidAccess() {
			g.reject(w, "Google Drive authentication expired. Please re-authenticate.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (g *Gate) reject(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":     msg,
		"needsAuth": true,
	})
}
