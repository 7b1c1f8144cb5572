package token

import (
	"time"

	"golang.org/x/oauth2"
)

// Credential is the persisted OAuth2 credential set. The JSON shape matches
// the provider token record as stored in tokens.json / GOOGLE_TOKENS, with
// expiry_date in unix milliseconds.
//
// A Credential value is immutable once stored: Save replaces the whole value,
// never mutates fields in place, so concurrent readers always observe a
// consistent snapshot.
type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
	ExpiryDate   int64  `json:"expiry_date,omitempty"`
}

// Expiry returns the access token expiry, or the zero time when unknown.
func (c *Credential) Expiry() time.Time {
	if c.ExpiryDate == 0 {
		return time.Time{}
	}
	return time.UnixMilli(c.ExpiryDate)
}

// OAuthToken converts the credential for use with golang.org/x/oauth2.
func (c *Credential) OAuthToken() *oauth2.Token {
	tokenType := c.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    tokenType,
		Expiry:       c.Expiry(),
	}
}

// fromOAuthToken converts a provider token into a Credential. The refresh
// token is carried over from prevRefresh when the provider omits it, which
// Google does on refresh-grant responses.
func fromOAuthToken(t *oauth2.Token, prevRefresh string) *Credential {
	cred := &Credential{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
	}
	if cred.RefreshToken == "" {
		cred.RefreshToken = prevRefresh
	}
	if !t.Expiry.IsZero() {
		cred.ExpiryDate = t.Expiry.UnixMilli()
	}
	return cred
}
