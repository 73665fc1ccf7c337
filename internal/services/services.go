package services

import (
	"context"

	"github.com/desertthunder/tunelink/internal/models"
)

// Provider is the capability set every music service adapter implements.
//
// Calls are not retried here. Transport failures wrap [shared.ErrProviderRequest] and
// non-2xx responses come back as [*ProviderError].
type Provider interface {
	// Kind returns the provider enum this adapter serves.
	Kind() models.Provider

	// CurrentUser returns the profile of the token's owner.
	CurrentUser(ctx context.Context) (*Profile, error)

	// Playlists returns every playlist visible to the user, following pagination.
	Playlists(ctx context.Context) ([]RemotePlaylist, error)

	// PlaylistItems returns the playlist's tracks in remote order.
	PlaylistItems(ctx context.Context, playlistID string) ([]RemoteTrack, error)

	SearchTracks(ctx context.Context, query string, opts SearchOptions) ([]RemoteTrack, error)

	// CreatePlaylist creates a private playlist owned by the user.
	CreatePlaylist(ctx context.Context, name, description string) (*RemotePlaylist, error)

	AddTracks(ctx context.Context, playlistID string, trackIDs []string) error
	RemoveTracks(ctx context.Context, playlistID string, trackIDs []string) error

	// ReorderTracks moves [rangeStart, rangeStart+rangeLength) before the item at
	// insertBefore, where insertBefore indexes the playlist before the range is removed.
	ReorderTracks(ctx context.Context, playlistID string, rangeStart, insertBefore, rangeLength int) error

	// PlaybackInfo resolves how a track can be played. It never fails: resolution
	// errors degrade to an external link.
	PlaybackInfo(ctx context.Context, trackID string) PlaybackInfo

	ExternalURL(trackID string) string

	// SupportsFullPlayback reports whether the user can stream whole tracks in-app.
	SupportsFullPlayback(ctx context.Context) bool
}

// Profile is the provider's view of the connected user.
type Profile struct {
	ID          string
	DisplayName string
	Email       string
	ProfileURL  string
	ImageURL    string
	Premium     bool
}

// RemotePlaylist represents a playlist as the provider reports it
type RemotePlaylist struct {
	ID          string
	Name        string
	Description string
	ImageURL    string
	TrackCount  int
	IsPublic    bool
	IsOwner     bool
	SnapshotID  string
	ExternalURL string
}

// ToModel maps the playlist onto a local mirror owned by accountID.
func (p RemotePlaylist) ToModel(accountID string) *models.Playlist {
	return &models.Playlist{
		AccountID:          accountID,
		ProviderPlaylistID: p.ID,
		Name:               p.Name,
		Description:        p.Description,
		ImageURL:           p.ImageURL,
		TrackCount:         p.TrackCount,
		IsPublic:           p.IsPublic,
		IsOwner:            p.IsOwner,
		SnapshotID:         p.SnapshotID,
	}
}

// RemoteTrack represents a track as the provider reports it
type RemoteTrack struct {
	ID          string
	Name        string
	Artist      string
	Album       string
	DurationMS  int
	ISRC        string // only Spotify exposes one
	PreviewURL  string
	ExternalURL string
	ImageURL    string
	IsPlayable  bool
}

// ToModel maps the track onto a local [models.Track] for provider p.
func (t RemoteTrack) ToModel(p models.Provider) *models.Track {
	return &models.Track{
		Provider:        p,
		ProviderTrackID: t.ID,
		Name:            t.Name,
		Artist:          t.Artist,
		Album:           t.Album,
		DurationMS:      t.DurationMS,
		ISRC:            t.ISRC,
		PreviewURL:      t.PreviewURL,
		ExternalURL:     t.ExternalURL,
		ImageURL:        t.ImageURL,
		IsPlayable:      t.IsPlayable,
	}
}

// PlaybackType says how a client should play a track.
type PlaybackType string

const (
	PlaybackWeb      PlaybackType = "web_playback"
	PlaybackPreview  PlaybackType = "preview"
	PlaybackExternal PlaybackType = "external"
)

// PlaybackInfo is the resolved playback strategy for one track.
type PlaybackInfo struct {
	Type        PlaybackType `json:"type"`
	URI         string       `json:"uri,omitempty"`
	PreviewURL  string       `json:"preview_url,omitempty"`
	ExternalURL string       `json:"external_url"`
}

// SearchOptions pages a search. Zero Limit means 20.
type SearchOptions struct {
	Limit  int
	Offset int
}

func (o SearchOptions) normalize() SearchOptions {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	if o.Limit > 50 {
		o.Limit = 50
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

func firstImage[T any](images []T, url func(T) string) string {
	if len(images) == 0 {
		return ""
	}
	return url(images[0])
}

func batches(ids []string, size int) [][]string {
	var out [][]string
	for size < len(ids) {
		ids, out = ids[size:], append(out, ids[:size])
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
