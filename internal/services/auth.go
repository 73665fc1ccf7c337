package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/desertthunder/tunelink/internal/models"
	"github.com/desertthunder/tunelink/internal/shared"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// SoundCloud OAuth endpoints.
var SoundCloudEndpoint = oauth2.Endpoint{
	AuthURL:   "https://api.soundcloud.com/connect",
	TokenURL:  "https://api.soundcloud.com/oauth2/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// SpotifyEndpoint uses HTTP basic client authentication on the token URL.
var SpotifyEndpoint = oauth2.Endpoint{
	AuthURL:   spotifyauth.AuthURL,
	TokenURL:  spotifyauth.TokenURL,
	AuthStyle: oauth2.AuthStyleInHeader,
}

// SpotifyScopes are requested on connect.
var SpotifyScopes = []string{
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopeUserReadEmail,
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistReadCollaborative,
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopePlaylistModifyPrivate,
	spotifyauth.ScopeUserLibraryRead,
	spotifyauth.ScopeStreaming,
	spotifyauth.ScopeUserReadPlaybackState,
	spotifyauth.ScopeUserModifyPlaybackState,
}

// Authenticator runs the authorization code flow for one provider.
type Authenticator interface {
	// AuthURL returns the provider's authorize URL carrying state.
	AuthURL(state string) string
	// Exchange trades an authorization code for a token set.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	// Refresh trades a refresh token for a new token set. Providers that do not rotate
	// return the refresh token that was passed in.
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// OAuthAuthenticator implements [Authenticator] on an [oauth2.Config].
type OAuthAuthenticator struct {
	provider models.Provider
	config   *oauth2.Config
	client   *http.Client
}

// NewOAuthAuthenticator wraps config. A nil client uses [http.DefaultClient].
func NewOAuthAuthenticator(p models.Provider, config *oauth2.Config, client *http.Client) *OAuthAuthenticator {
	if client == nil {
		client = http.DefaultClient
	}
	return &OAuthAuthenticator{provider: p, config: config, client: client}
}

// NewSpotifyAuthenticator creates the Spotify authenticator from configured credentials.
func NewSpotifyAuthenticator(creds shared.OAuthClientConfig, client *http.Client) (*OAuthAuthenticator, error) {
	if !creds.Configured() {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret", shared.ErrMissingCredentials)
	}
	return NewOAuthAuthenticator(models.Spotify, &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  creds.RedirectURI,
		Scopes:       SpotifyScopes,
		Endpoint:     SpotifyEndpoint,
	}, client), nil
}

// NewSoundCloudAuthenticator creates the SoundCloud authenticator from configured credentials.
func NewSoundCloudAuthenticator(creds shared.OAuthClientConfig, client *http.Client) (*OAuthAuthenticator, error) {
	if !creds.Configured() {
		return nil, fmt.Errorf("%w: soundcloud client_id and client_secret", shared.ErrMissingCredentials)
	}
	return NewOAuthAuthenticator(models.SoundCloud, &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  creds.RedirectURI,
		Endpoint:     SoundCloudEndpoint,
	}, client), nil
}

func (a *OAuthAuthenticator) AuthURL(state string) string {
	return a.config.AuthCodeURL(state)
}

func (a *OAuthAuthenticator) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: authorization code is required", shared.ErrInvalidInput)
	}
	tok, err := a.config.Exchange(a.context(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: %s code exchange: %w", shared.ErrAuthFailed, a.provider, err)
	}
	return tok, nil
}

func (a *OAuthAuthenticator) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, shared.ErrNoRefresh
	}
	tok, err := a.config.TokenSource(a.context(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %s token refresh: %w", shared.ErrAuthFailed, a.provider, err)
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = refreshToken
	}
	return tok, nil
}

func (a *OAuthAuthenticator) context(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, a.client)
}
