// Spotify implementation of [Provider] on github.com/zmb3/spotify/v2
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/tunelink/internal/models"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/zmb3/spotify/v2"
)

const (
	spotifyBaseURL     = "https://api.spotify.com/v1/"
	spotifyOpenURL     = "https://open.spotify.com/track/"
	spotifyBatchSize   = 100
	profileCacheSize   = 256
	profileCacheTTL    = 5 * time.Minute
	spotifyPlaylistMax = 50
)

// SpotifyFactory builds per-token [SpotifyProvider]s that share one rate limited
// transport and one profile cache.
type SpotifyFactory struct {
	baseURL   string
	timeout   time.Duration
	transport http.RoundTripper
	profiles  *expirable.LRU[string, *Profile]
}

// NewSpotifyFactory creates the factory. opts.Provider is ignored.
func NewSpotifyFactory(opts ClientOpts) *SpotifyFactory {
	opts.Provider = models.Spotify
	opts = opts.withDefaults()
	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}
	if !strings.HasSuffix(opts.BaseURL, "/") {
		opts.BaseURL += "/"
	}

	return &SpotifyFactory{
		baseURL:   opts.BaseURL,
		timeout:   opts.Timeout,
		transport: NewTransport(opts),
		profiles:  expirable.NewLRU[string, *Profile](profileCacheSize, nil, profileCacheTTL),
	}
}

// New returns a provider authorized with accessToken.
func (f *SpotifyFactory) New(accessToken string) Provider {
	httpClient := authorizedClient(f.transport, f.timeout, "Bearer", accessToken)
	return &SpotifyProvider{
		client:   spotify.New(httpClient, spotify.WithBaseURL(f.baseURL)),
		profiles: f.profiles,
		cacheKey: tokenKey(accessToken),
	}
}

// SpotifyProvider implements [Provider] for one access token.
type SpotifyProvider struct {
	client   *spotify.Client
	profiles *expirable.LRU[string, *Profile]
	cacheKey string
}

func (s *SpotifyProvider) Kind() models.Provider { return models.Spotify }

// CurrentUser is cached per token: playlist ownership and playback checks ask for it
// on every call.
func (s *SpotifyProvider) CurrentUser(ctx context.Context) (*Profile, error) {
	if p, ok := s.profiles.Get(s.cacheKey); ok {
		return p, nil
	}

	u, err := s.client.CurrentUser(ctx)
	if err != nil {
		return nil, spotifyError(err)
	}

	p := &Profile{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		ProfileURL:  u.ExternalURLs["spotify"],
		ImageURL:    firstImage(u.Images, func(i spotify.Image) string { return i.URL }),
		Premium:     u.Product == "premium",
	}
	s.profiles.Add(s.cacheKey, p)
	return p, nil
}

func (s *SpotifyProvider) Playlists(ctx context.Context) ([]RemotePlaylist, error) {
	me, err := s.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	page, err := s.client.CurrentUsersPlaylists(ctx, spotify.Limit(spotifyPlaylistMax))
	if err != nil {
		return nil, spotifyError(err)
	}

	var playlists []RemotePlaylist
	for {
		for _, p := range page.Playlists {
			playlists = append(playlists, fromSpotifyPlaylist(p, me.ID))
		}

		err := s.client.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, spotifyError(err)
		}
	}
	return playlists, nil
}

func (s *SpotifyProvider) PlaylistItems(ctx context.Context, playlistID string) ([]RemoteTrack, error) {
	var tracks []RemoteTrack
	offset := 0

	for {
		page, err := s.client.GetPlaylistItems(ctx, spotify.ID(playlistID),
			spotify.Limit(spotifyBatchSize), spotify.Offset(offset))
		if err != nil {
			return nil, spotifyError(err)
		}

		// Episodes and removed tracks come back without a track object.
		for i := range page.Items {
			if t := page.Items[i].Track.Track; t != nil {
				tracks = append(tracks, fromSpotifyTrack(t))
			}
		}

		offset += len(page.Items)
		if len(page.Items) < spotifyBatchSize || offset >= int(page.Total) {
			break
		}
	}
	return tracks, nil
}

func (s *SpotifyProvider) SearchTracks(ctx context.Context, query string, opts SearchOptions) ([]RemoteTrack, error) {
	opts = opts.normalize()
	results, err := s.client.Search(ctx, query, spotify.SearchTypeTrack,
		spotify.Limit(opts.Limit), spotify.Offset(opts.Offset))
	if err != nil {
		return nil, spotifyError(err)
	}
	if results.Tracks == nil {
		return []RemoteTrack{}, nil
	}

	tracks := make([]RemoteTrack, 0, len(results.Tracks.Tracks))
	for i := range results.Tracks.Tracks {
		tracks = append(tracks, fromSpotifyTrack(&results.Tracks.Tracks[i]))
	}
	return tracks, nil
}

func (s *SpotifyProvider) CreatePlaylist(ctx context.Context, name, description string) (*RemotePlaylist, error) {
	me, err := s.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	created, err := s.client.CreatePlaylistForUser(ctx, me.ID, name, description, false, false)
	if err != nil {
		return nil, spotifyError(err)
	}

	p := fromSpotifyPlaylist(created.SimplePlaylist, me.ID)
	p.TrackCount = 0
	return &p, nil
}

func (s *SpotifyProvider) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	for _, batch := range batches(trackIDs, spotifyBatchSize) {
		if _, err := s.client.AddTracksToPlaylist(ctx, spotify.ID(playlistID), spotifyIDs(batch)...); err != nil {
			return spotifyError(err)
		}
	}
	return nil
}

func (s *SpotifyProvider) RemoveTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	for _, batch := range batches(trackIDs, spotifyBatchSize) {
		if _, err := s.client.RemoveTracksFromPlaylist(ctx, spotify.ID(playlistID), spotifyIDs(batch)...); err != nil {
			return spotifyError(err)
		}
	}
	return nil
}

func (s *SpotifyProvider) ReorderTracks(ctx context.Context, playlistID string, rangeStart, insertBefore, rangeLength int) error {
	if rangeLength < 1 {
		rangeLength = 1
	}
	_, err := s.client.ReorderPlaylistTracks(ctx, spotify.ID(playlistID), spotify.PlaylistReorderOptions{
		RangeStart:   spotify.Numeric(rangeStart),
		RangeLength:  spotify.Numeric(rangeLength),
		InsertBefore: spotify.Numeric(insertBefore),
	})
	if err != nil {
		return spotifyError(err)
	}
	return nil
}

// PlaybackInfo prefers the Web Playback SDK for premium users, then the 30s preview,
// then the open.spotify.com link.
func (s *SpotifyProvider) PlaybackInfo(ctx context.Context, trackID string) PlaybackInfo {
	fallback := PlaybackInfo{Type: PlaybackExternal, ExternalURL: s.ExternalURL(trackID)}

	if s.SupportsFullPlayback(ctx) {
		return PlaybackInfo{
			Type:        PlaybackWeb,
			URI:         "spotify:track:" + trackID,
			ExternalURL: fallback.ExternalURL,
		}
	}

	track, err := s.client.GetTrack(ctx, spotify.ID(trackID))
	if err != nil {
		return fallback
	}

	if u := track.ExternalURLs["spotify"]; u != "" {
		fallback.ExternalURL = u
	}
	if track.PreviewURL != "" {
		return PlaybackInfo{Type: PlaybackPreview, PreviewURL: track.PreviewURL, ExternalURL: fallback.ExternalURL}
	}
	return fallback
}

func (s *SpotifyProvider) ExternalURL(trackID string) string {
	return spotifyOpenURL + trackID
}

func (s *SpotifyProvider) SupportsFullPlayback(ctx context.Context) bool {
	me, err := s.CurrentUser(ctx)
	return err == nil && me.Premium
}

func fromSpotifyPlaylist(p spotify.SimplePlaylist, userID string) RemotePlaylist {
	return RemotePlaylist{
		ID:          string(p.ID),
		Name:        p.Name,
		Description: p.Description,
		ImageURL:    firstImage(p.Images, func(i spotify.Image) string { return i.URL }),
		TrackCount:  int(p.Tracks.Total),
		IsPublic:    p.IsPublic,
		IsOwner:     p.Owner.ID == userID,
		SnapshotID:  p.SnapshotID,
		ExternalURL: p.ExternalURLs["spotify"],
	}
}

func fromSpotifyTrack(t *spotify.FullTrack) RemoteTrack {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}

	return RemoteTrack{
		ID:          string(t.ID),
		Name:        t.Name,
		Artist:      strings.Join(artists, ", "),
		Album:       t.Album.Name,
		DurationMS:  int(t.Duration),
		ISRC:        t.ExternalIDs["isrc"],
		PreviewURL:  t.PreviewURL,
		ExternalURL: t.ExternalURLs["spotify"],
		ImageURL:    firstImage(t.Album.Images, func(i spotify.Image) string { return i.URL }),
		IsPlayable:  t.IsPlayable == nil || *t.IsPlayable,
	}
}

func spotifyIDs(ids []string) []spotify.ID {
	out := make([]spotify.ID, len(ids))
	for i, id := range ids {
		out[i] = spotify.ID(id)
	}
	return out
}

func spotifyError(err error) error {
	var se spotify.Error
	if errors.As(err, &se) {
		return &ProviderError{Provider: models.Spotify, StatusCode: se.Status, Body: se.Message}
	}
	return requestFailed(models.Spotify, err)
}

// tokenKey keeps raw access tokens out of the profile cache keys.
func tokenKey(accessToken string) string {
	sum := sha256.Sum256([]byte(accessToken))
	return hex.EncodeToString(sum[:])
}

var _ Provider = (*SpotifyProvider)(nil)
