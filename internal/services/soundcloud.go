// SoundCloud implementation of [Provider]
//
// Response types follow https://developers.soundcloud.com/docs/api/explorer/open-api
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/desertthunder/tunelink/internal/models"
	"github.com/desertthunder/tunelink/internal/ordering"
	"github.com/desertthunder/tunelink/internal/shared"
)

const (
	soundCloudBaseURL = "https://api.soundcloud.com"
	soundCloudSiteURL = "https://soundcloud.com/tracks/"
)

// SoundCloudUser represents a SoundCloud user profile.
type SoundCloudUser struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PermalinkURL string `json:"permalink_url"`
	AvatarURL    string `json:"avatar_url"`
}

// SoundCloudTrack represents a SoundCloud track.
type SoundCloudTrack struct {
	ID           int64          `json:"id"`
	Title        string         `json:"title"`
	User         SoundCloudUser `json:"user"`
	Duration     int            `json:"duration"` // milliseconds
	ArtworkURL   string         `json:"artwork_url"`
	StreamURL    string         `json:"stream_url"`
	PermalinkURL string         `json:"permalink_url"`
	Streamable   bool           `json:"streamable"`
}

// SoundCloudPlaylist represents a SoundCloud playlist ("set").
type SoundCloudPlaylist struct {
	ID           int64             `json:"id"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	ArtworkURL   string            `json:"artwork_url"`
	TrackCount   int               `json:"track_count"`
	Sharing      string            `json:"sharing"` // public or private
	User         SoundCloudUser    `json:"user"`
	PermalinkURL string            `json:"permalink_url"`
	Tracks       []SoundCloudTrack `json:"tracks"`
}

type soundCloudTrackRef struct {
	ID int64 `json:"id"`
}

type soundCloudPlaylistBody struct {
	Playlist struct {
		Title       string               `json:"title,omitempty"`
		Description string               `json:"description,omitempty"`
		Sharing     string               `json:"sharing,omitempty"`
		Tracks      []soundCloudTrackRef `json:"tracks"`
	} `json:"playlist"`
}

// SoundCloudFactory builds per-token [SoundCloudProvider]s on one shared transport.
type SoundCloudFactory struct {
	baseURL   string
	timeout   time.Duration
	transport http.RoundTripper
}

// NewSoundCloudFactory creates the factory. opts.Provider is ignored.
func NewSoundCloudFactory(opts ClientOpts) *SoundCloudFactory {
	opts.Provider = models.SoundCloud
	opts = opts.withDefaults()
	if opts.BaseURL == "" {
		opts.BaseURL = soundCloudBaseURL
	}
	return &SoundCloudFactory{baseURL: opts.BaseURL, timeout: opts.Timeout, transport: NewTransport(opts)}
}

// New returns a provider authorized with accessToken.
func (f *SoundCloudFactory) New(accessToken string) Provider {
	return &SoundCloudProvider{
		baseURL:     f.baseURL,
		httpClient:  authorizedClient(f.transport, f.timeout, "OAuth", accessToken),
		accessToken: accessToken,
	}
}

// SoundCloudProvider implements [Provider] for one access token.
//
// SoundCloud has no partial playlist edits: add, remove and reorder read the whole
// track list and write it back.
type SoundCloudProvider struct {
	baseURL     string
	httpClient  *http.Client
	accessToken string
}

func (s *SoundCloudProvider) Kind() models.Provider { return models.SoundCloud }

func (s *SoundCloudProvider) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return requestFailed(models.SoundCloud, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newProviderError(models.SoundCloud, resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (s *SoundCloudProvider) CurrentUser(ctx context.Context) (*Profile, error) {
	var u SoundCloudUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &u); err != nil {
		return nil, err
	}
	return &Profile{
		ID:          strconv.FormatInt(u.ID, 10),
		DisplayName: u.Username,
		ProfileURL:  u.PermalinkURL,
		ImageURL:    u.AvatarURL,
	}, nil
}

func (s *SoundCloudProvider) Playlists(ctx context.Context) ([]RemotePlaylist, error) {
	var raw []SoundCloudPlaylist
	if err := s.doRequest(ctx, http.MethodGet, "/me/playlists", nil, &raw); err != nil {
		return nil, err
	}

	me, err := s.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	playlists := make([]RemotePlaylist, 0, len(raw))
	for _, p := range raw {
		playlists = append(playlists, fromSoundCloudPlaylist(p, me.ID))
	}
	return playlists, nil
}

func (s *SoundCloudProvider) playlist(ctx context.Context, playlistID string) (*SoundCloudPlaylist, error) {
	var p SoundCloudPlaylist
	if err := s.doRequest(ctx, http.MethodGet, "/playlists/"+url.PathEscape(playlistID), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SoundCloudProvider) PlaylistItems(ctx context.Context, playlistID string) ([]RemoteTrack, error) {
	p, err := s.playlist(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	tracks := make([]RemoteTrack, 0, len(p.Tracks))
	for _, t := range p.Tracks {
		tracks = append(tracks, fromSoundCloudTrack(t))
	}
	return tracks, nil
}

func (s *SoundCloudProvider) SearchTracks(ctx context.Context, query string, opts SearchOptions) ([]RemoteTrack, error) {
	opts = opts.normalize()
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(opts.Limit))
	params.Set("offset", strconv.Itoa(opts.Offset))

	var raw []SoundCloudTrack
	if err := s.doRequest(ctx, http.MethodGet, "/tracks?"+params.Encode(), nil, &raw); err != nil {
		return nil, err
	}

	tracks := make([]RemoteTrack, 0, len(raw))
	for _, t := range raw {
		tracks = append(tracks, fromSoundCloudTrack(t))
	}
	return tracks, nil
}

func (s *SoundCloudProvider) CreatePlaylist(ctx context.Context, name, description string) (*RemotePlaylist, error) {
	var body soundCloudPlaylistBody
	body.Playlist.Title = name
	body.Playlist.Description = description
	body.Playlist.Sharing = "private"
	body.Playlist.Tracks = []soundCloudTrackRef{}

	var created SoundCloudPlaylist
	if err := s.doRequest(ctx, http.MethodPost, "/playlists", body, &created); err != nil {
		return nil, err
	}

	p := fromSoundCloudPlaylist(created, "")
	p.IsOwner = true
	return &p, nil
}

func (s *SoundCloudProvider) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	add, err := parseSoundCloudIDs(trackIDs)
	if err != nil {
		return err
	}
	return s.rewrite(ctx, playlistID, func(ids []int64) ([]int64, error) {
		return append(ids, add...), nil
	})
}

func (s *SoundCloudProvider) RemoveTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	remove, err := parseSoundCloudIDs(trackIDs)
	if err != nil {
		return err
	}
	drop := make(map[int64]bool, len(remove))
	for _, id := range remove {
		drop[id] = true
	}
	return s.rewrite(ctx, playlistID, func(ids []int64) ([]int64, error) {
		kept := ids[:0]
		for _, id := range ids {
			if !drop[id] {
				kept = append(kept, id)
			}
		}
		return kept, nil
	})
}

func (s *SoundCloudProvider) ReorderTracks(ctx context.Context, playlistID string, rangeStart, insertBefore, rangeLength int) error {
	if rangeLength < 1 {
		rangeLength = 1
	}
	return s.rewrite(ctx, playlistID, func(ids []int64) ([]int64, error) {
		return ordering.Reorder(ids, rangeStart, rangeLength, insertBefore)
	})
}

// rewrite reads the playlist's track ids, applies edit and PUTs the result.
func (s *SoundCloudProvider) rewrite(ctx context.Context, playlistID string, edit func([]int64) ([]int64, error)) error {
	p, err := s.playlist(ctx, playlistID)
	if err != nil {
		return err
	}

	ids := make([]int64, len(p.Tracks))
	for i, t := range p.Tracks {
		ids[i] = t.ID
	}
	ids, err = edit(ids)
	if err != nil {
		return err
	}

	var body soundCloudPlaylistBody
	body.Playlist.Tracks = make([]soundCloudTrackRef, len(ids))
	for i, id := range ids {
		body.Playlist.Tracks[i] = soundCloudTrackRef{ID: id}
	}
	return s.doRequest(ctx, http.MethodPut, "/playlists/"+url.PathEscape(playlistID), body, nil)
}

// PlaybackInfo returns the authorized stream URL when the track is streamable.
func (s *SoundCloudProvider) PlaybackInfo(ctx context.Context, trackID string) PlaybackInfo {
	fallback := PlaybackInfo{Type: PlaybackExternal, ExternalURL: s.ExternalURL(trackID)}

	var t SoundCloudTrack
	if err := s.doRequest(ctx, http.MethodGet, "/tracks/"+url.PathEscape(trackID), nil, &t); err != nil {
		return fallback
	}

	if t.PermalinkURL != "" {
		fallback.ExternalURL = t.PermalinkURL
	}
	if t.Streamable && t.StreamURL != "" {
		return PlaybackInfo{
			Type:        PlaybackPreview,
			PreviewURL:  t.StreamURL + "?oauth_token=" + url.QueryEscape(s.accessToken),
			ExternalURL: fallback.ExternalURL,
		}
	}
	return fallback
}

func (s *SoundCloudProvider) ExternalURL(trackID string) string {
	return soundCloudSiteURL + trackID
}

// SupportsFullPlayback is always false: the widget only streams previews for most users.
func (s *SoundCloudProvider) SupportsFullPlayback(context.Context) bool {
	return false
}

func fromSoundCloudPlaylist(p SoundCloudPlaylist, userID string) RemotePlaylist {
	return RemotePlaylist{
		ID:          strconv.FormatInt(p.ID, 10),
		Name:        p.Title,
		Description: p.Description,
		ImageURL:    p.ArtworkURL,
		TrackCount:  p.TrackCount,
		IsPublic:    p.Sharing == "public",
		IsOwner:     userID != "" && strconv.FormatInt(p.User.ID, 10) == userID,
		ExternalURL: p.PermalinkURL,
	}
}

func fromSoundCloudTrack(t SoundCloudTrack) RemoteTrack {
	rt := RemoteTrack{
		ID:          strconv.FormatInt(t.ID, 10),
		Name:        t.Title,
		Artist:      t.User.Username,
		DurationMS:  t.Duration,
		ExternalURL: t.PermalinkURL,
		ImageURL:    t.ArtworkURL,
		IsPlayable:  t.Streamable,
	}
	if t.Streamable {
		rt.PreviewURL = t.StreamURL
	}
	return rt
}

func parseSoundCloudIDs(ids []string) ([]int64, error) {
	out := make([]int64, len(ids))
	for i, id := range ids {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: soundcloud track id %q: %v", shared.ErrInvalidInput, id, err)
		}
		out[i] = n
	}
	return out, nil
}

var _ Provider = (*SoundCloudProvider)(nil)
