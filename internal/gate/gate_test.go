package gate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drivebridge/internal/config"
	"drivebridge/internal/token"
)

type fakeRefresher struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context) error
}

func (f *fakeRefresher) Refresh(ctx context.Context) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(ctx)
	}
	return nil
}

func (f *fakeRefresher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newStore(t *testing.T) *token.Store {
	t.Helper()
	return token.NewStore(&config.Config{
		TokensFile: filepath.Join(t.TempDir(), "tokens.json"),
	})
}

func okHandler(hits *atomic.Int32) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	})
}

func TestGateRejectsWithoutCredentials(t *testing.T) {
	store := newStore(t)
	refresher := &fakeRefresher{}
	var hits atomic.Int32

	handler := New(store, refresher).Middleware(okHandler(&hits))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stream/f1", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, int32(0), hits.Load())
	assert.Equal(t, 0, refresher.callCount(), "provider must not be contacted without credentials")

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["needsAuth"])
}

func TestGatePassesThroughAfterRefresh(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Save(&token.Credential{AccessToken: "a1", RefreshToken: "r1"}))

	refresher := &fakeRefresher{}
	var hits atomic.Int32
	handler := New(store, refresher).Middleware(okHandler(&hits))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stream/f1", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 1, refresher.callCount(), "refresh is proactive on every gated request")
}

func TestGateRejectsWhenRefreshClearsCredential(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Save(&token.Credential{AccessToken: "a1", RefreshToken: "revoked"}))

	// Mirrors the refresher's fail-fast behavior on invalid_grant.
	refresher := &fakeRefresher{fn: func(context.Context) error {
		_ = store.Save(nil)
		return errors.New("invalid_grant")
	}}

	var hits atomic.Int32
	handler := New(store, refresher).Middleware(okHandler(&hits))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stream/f1", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, int32(0), hits.Load())

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["needsAuth"])
	assert.Contains(t, body["error"], "expired")
}

func TestGateToleratesMissingRefreshToken(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Save(&token.Credential{AccessToken: "a1"}))

	refresher := &fakeRefresher{fn: func(context.Context) error {
		return token.ErrNoRefreshToken
	}}

	var hits atomic.Int32
	handler := New(store, refresher).Middleware(okHandler(&hits))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/view/f1", nil))

	// An access token without a refresh token still passes; it simply cannot
	// be refreshed.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(1), hits.Load())
}

func TestGateConcurrentRequestsDuringRefreshRace(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Save(&token.Credential{AccessToken: "stale", RefreshToken: "r1"}))

	// Every caller triggers its own refresh; all of them succeed and the
	// last save wins. No locking, no lock-out.
	refresher := &fakeRefresher{fn: func(context.Context) error {
		return store.Save(&token.Credential{AccessToken: "fresh", RefreshToken: "r1"})
	}}

	var hits atomic.Int32
	handler := New(store, refresher).Middleware(okHandler(&hits))

	const n = 8
	var wg sync.WaitGroup
	codes := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stream/f1", nil))
			codes[i] = rec.Code
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		assert.Equal(t, http.StatusOK, code, "request %d", i)
	}
	assert.Equal(t, int32(n), hits.Load())
	assert.Equal(t, n, refresher.callCount(), "each request refreshes independently")
	assert.Equal(t, "fresh", store.Current().AccessToken)
}
