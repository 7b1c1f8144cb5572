package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/oauth2"

	"drivebridge/internal/config"
	"drivebridge/internal/logging"
)

// ErrNotAuthenticated is returned when an operation needs a credential and
// the store holds none.
var ErrNotAuthenticated = errors.New("token: not authenticated")

// Store is the single process-wide holder of the OAuth2 credential set.
// All access goes through Store; no other component keeps credential state.
//
// Persistence is file-backed in development (tokens.json) and read-only
// environment-backed in ephemeral deployments (GOOGLE_TOKENS). In the
// environment-backed mode a refreshed credential cannot be written back, so
// Save emits the serialized credential through the operator log for manual
// re-injection.
type Store struct {
	mu     sync.RWMutex
	cred   *Credential
	mode   config.TokenPersistence
	path   string
	envRaw string
	logger *slog.Logger
}

// NewStore creates a Store bound to the configured persistence mode.
// Call Load to restore any persisted credential.
func NewStore(cfg *config.Config) *Store {
	return &Store{
		mode:   cfg.TokenMode(),
		path:   cfg.TokensFile,
		envRaw: cfg.GoogleTokens,
		logger: logging.WithComponent(slog.Default(), "token_store"),
	}
}

// Load restores the credential from durable storage. A parse failure is
// logged and leaves the store in the "no credentials" state; it is never
// fatal, the operator simply has to re-authorize.
func (s *Store) Load() {
	var (
		data   []byte
		source string
	)

	switch s.mode {
	case config.PersistEnv:
		data = []byte(s.envRaw)
		source = "environment"
	default:
		b, err := os.ReadFile(s.path)
		if err != nil {
			if !os.IsNotExist(err) {
				s.logger.Warn("could not read token file", "path", s.path, logging.Err(err))
			}
			return
		}
		data = b
		source = "file"
	}

	var cred *Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		s.logger.Warn("stored credential is not valid JSON, ignoring", "source", source, logging.Err(err))
		return
	}

	s.mu.Lock()
	s.cred = cred
	s.mu.Unlock()

	if cred != nil {
		s.logger.Info("credential loaded", "source", source,
			"access_token", logging.SanitizeToken(cred.AccessToken),
			"has_refresh_token", cred.RefreshToken != "")
	}
}

// Save atomically replaces the in-memory credential and persists it.
// A nil credential clears the stored value, forcing re-authorization.
func (s *Store) Save(cred *Credential) error {
	s.mu.Lock()
	s.cred = cred
	s.mu.Unlock()

	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}

	if s.mode == config.PersistEnv {
		// The process cannot update its own environment. Surface the value so
		// the operator can update GOOGLE_TOKENS and redeploy.
		if cred != nil {
			s.logger.Warn("credential refreshed in environment-backed mode; update GOOGLE_TOKENS and redeploy to persist",
				"google_tokens", string(data))
		} else {
			s.logger.Warn("credential cleared in environment-backed mode; remove GOOGLE_TOKENS to persist")
		}
		return nil
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("write token file %s: %w", s.path, err)
	}
	return nil
}

// Clear removes the stored credential.
func (s *Store) Clear() error {
	return s.Save(nil)
}

// Current returns the in-memory credential, or nil when absent. The returned
// value must not be mutated.
func (s *Store) Current() *Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred
}

// HasValidAccess reports whether a credential with a non-empty access token
// is present. It does not consult the expiry; the AuthGate refreshes
// proactively instead.
func (s *Store) HasValidAccess() bool {
	cred := s.Current()
	return cred != nil && cred.AccessToken != ""
}

// TokenSource returns an oauth2.TokenSource that reads the live credential
// on every request, so a refresh performed by one request is visible to all
// concurrent requests immediately.
func (s *Store) TokenSource() oauth2.TokenSource {
	return liveTokenSource{store: s}
}

type liveTokenSource struct {
	store *Store
}

func (ts liveTokenSource) Token() (*oauth2.Token, error) {
	cred := ts.store.Current()
	if cred == nil || cred.AccessToken == "" {
		return nil, ErrNotAuthenticated
	}
	// Expiry is deliberately left zero: the AuthGate has already refreshed,
	// and the oauth2 transport must not trigger a second refresh of its own.
	return &oauth2.Token{
		AccessToken: cred.AccessToken,
		TokenType:   "Bearer",
	}, nil
}
