package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"drivebridge/internal/instrumentation"
	"drivebridge/internal/logging"
)

// DriveScope grants full Drive access, required for streaming, archiving
// and upload proxying within the configured folder tree.
const DriveScope = "https://www.googleapis.com/auth/drive"

// ErrNoRefreshToken is returned by Refresh when the stored credential has no
// refresh token; the provider is not contacted in that case.
var ErrNoRefreshToken = errors.New("token: no refresh token available")

// Refresher exchanges the stored refresh token for a fresh access token and
// writes the result back to the Store.
type Refresher struct {
	store   *Store
	conf    *oauth2.Config
	metrics *instrumentation.Metrics
	logger  *slog.Logger
}

// SetMetrics enables OAuth metrics recording. A nil recorder is fine.
func (r *Refresher) SetMetrics(m *instrumentation.Metrics) {
	r.metrics = m
}

// NewRefresher builds a Refresher for the given OAuth2 application.
func NewRefresher(store *Store, clientID, clientSecret, redirectURL string) *Refresher {
	return &Refresher{
		store: store,
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  redirectURL,
			Scopes:       []string{DriveScope},
		},
		logger: logging.WithComponent(slog.Default(), "token_refresher"),
	}
}

// AuthCodeURL returns the provider consent URL. Offline access and forced
// consent ensure a refresh token is issued even on re-authorization.
func (r *Refresher) AuthCodeURL(state string) string {
	return r.conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"))
}

// Exchange trades an authorization code for a credential set and stores it.
func (r *Refresher) Exchange(ctx context.Context, code string) error {
	tok, err := r.conf.Exchange(ctx, code)
	if err != nil {
		r.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		return fmt.Errorf("exchange auth code: %w", err)
	}
	if err := r.store.Save(fromOAuthToken(tok, "")); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	r.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultSuccess)
	r.logger.Info("authorization code exchanged",
		"access_token", logging.SanitizeToken(tok.AccessToken),
		"has_refresh_token", tok.RefreshToken != "")
	return nil
}

// Refresh exchanges the stored refresh token for a new access token.
//
// On success the merged credential (refresh token carried forward when the
// provider omits it) is saved. On any provider failure the whole credential
// is cleared: a refresh token that stops working must force re-authorization
// instead of being retried forever.
func (r *Refresher) Refresh(ctx context.Context) error {
	cur := r.store.Current()
	if cur == nil || cur.RefreshToken == "" {
		r.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultSkipped)
		return ErrNoRefreshToken
	}

	// An already-expired seed token forces the token source to perform the
	// refresh grant instead of returning the cached access token.
	seed := &oauth2.Token{
		RefreshToken: cur.RefreshToken,
		Expiry:       time.Unix(1, 0),
	}

	tok, err := r.conf.TokenSource(ctx, seed).Token()
	if err != nil {
		r.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultFailure)
		r.logger.Error("token refresh failed, clearing credential", logging.Err(err))
		if saveErr := r.store.Save(nil); saveErr != nil {
			return errors.Join(fmt.Errorf("refresh token: %w", err), saveErr)
		}
		return fmt.Errorf("refresh token: %w", err)
	}

	if err := r.store.Save(fromOAuthToken(tok, cur.RefreshToken)); err != nil {
		return fmt.Errorf("save refreshed credential: %w", err)
	}
	r.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultSuccess)

	r.logger.Debug("token refreshed",
		"access_token", logging.SanitizeToken(tok.AccessToken),
		"expiry", tok.Expiry)
	return nil
}
