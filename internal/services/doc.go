// Package services defines the [Provider] capability interface for music streaming
// services and implements it for Spotify and SoundCloud.
//
// # Provider Interface
//
// Every adapter exposes the same calls (profile, playlists, playlist items, search,
// playlist edits, playback resolution), so the reconciler and the unified playlist
// service work against [Provider] only. Adapters are created per access token through
// a [Factory]; the [Registry] selects one by [models.Provider].
//
// # Spotify Implementation
//
// [SpotifyProvider] wraps github.com/zmb3/spotify/v2. Profiles are cached per token in
// an expirable LRU because ownership flags and playback checks need the current user.
//
// # SoundCloud Implementation
//
// [SoundCloudProvider] is a plain REST client. SoundCloud has no partial playlist
// edits, so add, remove and reorder rewrite the whole track list.
//
// # OAuth
//
// [OAuthAuthenticator] builds authorize URLs and runs code exchange and refresh on
// golang.org/x/oauth2. [Registry.Refresh] lets the token vault refresh any provider.
//
// # Transport
//
// All adapter HTTP clients share a per-provider [Transport] that waits on a
// golang.org/x/time/rate limiter and records request metrics. Each client has a
// request timeout.
//
// # Error Handling
//
//   - [*ProviderError] : non-2xx response, matches [shared.ErrProviderRequest]
//   - [shared.ErrProviderRequest] : transport failure
//   - [shared.ErrAuthFailed] : code exchange or refresh rejected
//   - [shared.ErrMissingCredentials] : provider has no client credentials configured
//   - [shared.ErrUnsupportedProvider] : no adapter registered
package services
