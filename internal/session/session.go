// Package session handles Spotify authorization: the OAuth2
// authorization-code flow for user sessions, the client-credentials flow
// for unauthenticated catalog access, and persistence of tokens.
package session

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"mixtape/internal/shared"
)

const (
	authURL  = "https://accounts.spotify.com/authorize"
	tokenURL = "https://accounts.spotify.com/api/token"
)

// scopes required to read the user's playlists and publish new ones.
var scopes = []string{
	"playlist-read-private",
	"playlist-modify-public",
	"playlist-modify-private",
}

// Manager owns the OAuth2 configuration and token lifecycle. A single
// Manager serves all sessions; per-session state lives in [Store].
type Manager struct {
	conf    *oauth2.Config
	appConf *clientcredentials.Config
}

// NewManager builds a Manager from application credentials. Returns
// [shared.ErrNotConfigured] when either credential is empty, so callers can
// reject work before any remote call is attempted.
func NewManager(clientID, clientSecret, redirectURI string) (*Manager, error) {
	if clientID == "" || clientSecret == "" {
		return nil, shared.ErrNotConfigured
	}

	return &Manager{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
			},
		},
		appConf: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
		},
	}, nil
}

// AuthURL returns the provider consent page URL carrying the given
// anti-forgery state.
func (m *Manager) AuthURL(state string) string {
	return m.conf.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange redeems an authorization code for a token.
func (m *Manager) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := m.conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	return tok, nil
}

// Valid returns a usable token, refreshing at most once when the given one
// has expired. A refreshed token differs from the input and should be
// persisted by the caller.
func (m *Manager) Valid(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	if tok == nil {
		return nil, shared.ErrNotAuthenticated
	}
	if tok.Valid() {
		return tok, nil
	}
	if tok.RefreshToken == "" {
		return nil, shared.ErrNoRefreshToken
	}

	fresh, err := m.conf.TokenSource(ctx, tok).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = tok.RefreshToken
	}
	return fresh, nil
}

// Client returns an HTTP client that authenticates requests with tok.
func (m *Manager) Client(ctx context.Context, tok *oauth2.Token) *http.Client {
	return m.conf.Client(ctx, tok)
}

// AppClient returns an HTTP client authenticated via the client-credentials
// grant. It carries no user identity and suits catalog reads only.
func (m *Manager) AppClient(ctx context.Context) *http.Client {
	return m.appConf.Client(ctx)
}

// AppToken fetches an application token via the client-credentials grant.
func (m *Manager) AppToken(ctx context.Context) (*oauth2.Token, error) {
	tok, err := m.appConf.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	return tok, nil
}

// OAuthConfig exposes the underlying authorization-code configuration.
func (m *Manager) OAuthConfig() *oauth2.Config {
	return m.conf
}
