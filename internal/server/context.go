package server

import (
	"context"
	"fmt"
	"sync"

	"drivebridge/internal/config"
	"drivebridge/internal/drive"
	"drivebridge/internal/token"
)

// ServerContext holds the long-lived dependencies of the API server: the
// configuration, the credential store, the refresher, and the Drive client.
type ServerContext struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      *config.Config
	store    *token.Store
	refresh  *token.Refresher
	drive    *drive.Client
	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext creates a server context, loading any persisted credential
// into the store. The Drive client is built lazily on first use.
func NewServerContext(ctx context.Context, cfg *config.Config) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)

	store := token.NewStore(cfg)
	store.Load()

	return &ServerContext{
		ctx:     shutdownCtx,
		cancel:  cancel,
		cfg:     cfg,
		store:   store,
		refresh: token.NewRefresher(store, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURI),
	}
}

// Context returns the server lifetime context.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Config returns the runtime configuration.
func (sc *ServerContext) Config() *config.Config {
	return sc.cfg
}

// TokenStore returns the credential store.
func (sc *ServerContext) TokenStore() *token.Store {
	return sc.store
}

// Refresher returns the token refresher.
func (sc *ServerContext) Refresher() *token.Refresher {
	return sc.refresh
}

// DriveClient returns the shared Drive client, creating it on first use.
// The client reads its token from the live store per request, so it stays
// valid across refreshes and re-authentication.
func (sc *ServerContext) DriveClient() (*drive.Client, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.drive != nil {
		return sc.drive, nil
	}

	client, err := drive.NewClient(sc.ctx, sc.store.TokenSource())
	if err != nil {
		return nil, fmt.Errorf("creating drive client: %w", err)
	}
	sc.drive = client
	return client, nil
}

// IsShutdown returns whether the server has been shut down.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the server lifetime context. Safe to call more than once.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
