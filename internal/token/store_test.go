package token

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drivebridge/internal/config"
)

func fileStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(&config.Config{
		TokensFile: filepath.Join(t.TempDir(), "tokens.json"),
	})
}

func TestStoreLoadMissingFile(t *testing.T) {
	s := fileStore(t)
	s.Load()

	assert.Nil(t, s.Current())
	assert.False(t, s.HasValidAccess())
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	s := fileStore(t)

	cred := &Credential{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		ExpiryDate:   1735689600000,
	}
	require.NoError(t, s.Save(cred))
	assert.True(t, s.HasValidAccess())

	// A fresh store over the same file must restore the identical value.
	restored := NewStore(&config.Config{TokensFile: s.path})
	restored.Load()

	got := restored.Current()
	require.NotNil(t, got)
	assert.Equal(t, cred, got)
	assert.True(t, restored.HasValidAccess())
}

func TestStoreSaveNilClears(t *testing.T) {
	s := fileStore(t)
	require.NoError(t, s.Save(&Credential{AccessToken: "access-1"}))
	require.True(t, s.HasValidAccess())

	require.NoError(t, s.Save(nil))
	assert.Nil(t, s.Current())
	assert.False(t, s.HasValidAccess())

	// The persisted "null" must survive a reload as the empty state.
	restored := NewStore(&config.Config{TokensFile: s.path})
	restored.Load()
	assert.Nil(t, restored.Current())
}

func TestStoreLoadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	s := NewStore(&config.Config{TokensFile: path})
	s.Load()

	// Corrupt storage degrades to "no credentials", never a crash.
	assert.Nil(t, s.Current())
	assert.False(t, s.HasValidAccess())
}

func TestStoreLoadFromEnvironment(t *testing.T) {
	s := NewStore(&config.Config{
		GoogleTokens: `{"access_token":"env-access","refresh_token":"env-refresh"}`,
	})
	s.Load()

	cred := s.Current()
	require.NotNil(t, cred)
	assert.Equal(t, "env-access", cred.AccessToken)
	assert.Equal(t, "env-refresh", cred.RefreshToken)
}

func TestStoreEnvironmentModeSaveDoesNotWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tokens.json")
	s := NewStore(&config.Config{
		GoogleTokens: `{"access_token":"env-access"}`,
		TokensFile:   path,
	})
	s.Load()

	require.NoError(t, s.Save(&Credential{AccessToken: "refreshed"}))

	// In-memory value updated, durable file untouched.
	assert.Equal(t, "refreshed", s.Current().AccessToken)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestHasValidAccessRequiresAccessToken(t *testing.T) {
	s := fileStore(t)
	require.NoError(t, s.Save(&Credential{RefreshToken: "refresh-only"}))
	assert.False(t, s.HasValidAccess())
}

func TestLiveTokenSource(t *testing.T) {
	s := fileStore(t)

	_, err := s.TokenSource().Token()
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	require.NoError(t, s.Save(&Credential{AccessToken: "access-1"}))

	ts := s.TokenSource()
	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok.AccessToken)

	// The source reads the live store: a later save is visible through the
	// same TokenSource value.
	require.NoError(t, s.Save(&Credential{AccessToken: "access-2"}))
	tok, err = ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "access-2", tok.AccessToken)
}
