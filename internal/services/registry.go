package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/desertthunder/tunelink/internal/metrics"
	"github.com/desertthunder/tunelink/internal/models"
	"github.com/desertthunder/tunelink/internal/shared"
	"golang.org/x/oauth2"
)

// Factory creates a [Provider] bound to one access token.
type Factory interface {
	New(accessToken string) Provider
}

// FactoryFunc adapts a function to [Factory].
type FactoryFunc func(accessToken string) Provider

func (f FactoryFunc) New(accessToken string) Provider { return f(accessToken) }

// Registry dispatches on [models.Provider] so callers never name a concrete adapter.
//
// It satisfies vault.Refresher.
type Registry struct {
	factories map[models.Provider]Factory
	auths     map[models.Provider]Authenticator
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[models.Provider]Factory),
		auths:     make(map[models.Provider]Authenticator),
	}
}

// NewDefaultRegistry registers both adapters, and an authenticator for every provider
// whose client credentials are configured.
func NewDefaultRegistry(cfg *shared.Config, m *metrics.Metrics) *Registry {
	r := NewRegistry()
	opts := ClientOpts{
		Timeout:   cfg.Providers.RequestTimeout,
		RateLimit: cfg.Providers.RateLimit,
		Metrics:   m,
	}
	tokenClient := &http.Client{Timeout: opts.withDefaults().Timeout}

	r.Register(models.Spotify, NewSpotifyFactory(opts))
	if auth, err := NewSpotifyAuthenticator(cfg.Credentials.Spotify, tokenClient); err == nil {
		r.RegisterAuthenticator(models.Spotify, auth)
	}

	r.Register(models.SoundCloud, NewSoundCloudFactory(opts))
	if auth, err := NewSoundCloudAuthenticator(cfg.Credentials.SoundCloud, tokenClient); err == nil {
		r.RegisterAuthenticator(models.SoundCloud, auth)
	}
	return r
}

// Register sets the factory for p, replacing any previous one.
func (r *Registry) Register(p models.Provider, f Factory) {
	r.factories[p] = f
}

// RegisterAuthenticator sets the OAuth authenticator for p.
func (r *Registry) RegisterAuthenticator(p models.Provider, a Authenticator) {
	r.auths[p] = a
}

// Provider returns p's adapter authorized with accessToken.
func (r *Registry) Provider(p models.Provider, accessToken string) (Provider, error) {
	f, ok := r.factories[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrUnsupportedProvider, p)
	}
	return f.New(accessToken), nil
}

// Authenticator returns p's authenticator, or [shared.ErrMissingCredentials] when the
// provider has no client credentials.
func (r *Registry) Authenticator(p models.Provider) (Authenticator, error) {
	if _, ok := r.factories[p]; !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrUnsupportedProvider, p)
	}
	a, ok := r.auths[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrMissingCredentials, p)
	}
	return a, nil
}

// Refresh exchanges refreshToken with p's token endpoint.
func (r *Registry) Refresh(ctx context.Context, p models.Provider, refreshToken string) (*oauth2.Token, error) {
	a, err := r.Authenticator(p)
	if err != nil {
		return nil, err
	}
	return a.Refresh(ctx, refreshToken)
}

// Kinds lists registered providers in display order.
func (r *Registry) Kinds() []models.Provider {
	var out []models.Provider
	for _, p := range models.Providers {
		if _, ok := r.factories[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
