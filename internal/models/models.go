// package models defines the entities shared by the vault, the reconciler and the playlist stores
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/tunelink/internal/shared"
)

// Provider identifies an external music service.
type Provider string

const (
	Spotify    Provider = "spotify"
	SoundCloud Provider = "soundcloud"
)

// Providers lists every supported provider in display order.
var Providers = []Provider{Spotify, SoundCloud}

// ParseProvider converts a case-insensitive name into a [Provider].
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case Spotify, SoundCloud:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", shared.ErrUnsupportedProvider, s)
	}
}

func (p Provider) String() string { return string(p) }

// DisplayName is the provider's name as shown to users.
func (p Provider) DisplayName() string {
	switch p {
	case Spotify:
		return "Spotify"
	case SoundCloud:
		return "SoundCloud"
	default:
		return string(p)
	}
}

// SyncType is the direction of a sync run.
type SyncType string

const (
	SyncPull SyncType = "pull"
	SyncPush SyncType = "push"
	SyncFull SyncType = "full"
)

// SyncStatus is the lifecycle state of a sync run.
//
// pending -> running -> completed | failed
type SyncStatus string

const (
	StatusPending   SyncStatus = "pending"
	StatusRunning   SyncStatus = "running"
	StatusCompleted SyncStatus = "completed"
	StatusFailed    SyncStatus = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s SyncStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ConflictType classifies a recorded sync anomaly.
type ConflictType string

const (
	ConflictTrackUnavailable  ConflictType = "track_unavailable"
	ConflictTrackModified     ConflictType = "track_modified"
	ConflictTrackRemoved      ConflictType = "track_removed"
	ConflictDuplicateDetected ConflictType = "duplicate_detected"
	ConflictSyncFailed        ConflictType = "sync_failed"
)

// Resolution is the user's decision for a conflict.
type Resolution string

const (
	ResolutionKeep    Resolution = "keep"
	ResolutionRemove  Resolution = "remove"
	ResolutionReplace Resolution = "replace"
	ResolutionIgnore  Resolution = "ignore"
)

// ParseResolution validates a resolution name.
func ParseResolution(s string) (Resolution, error) {
	switch r := Resolution(strings.ToLower(strings.TrimSpace(s))); r {
	case ResolutionKeep, ResolutionRemove, ResolutionReplace, ResolutionIgnore:
		return r, nil
	default:
		return "", fmt.Errorf("%w: unknown resolution %q", shared.ErrInvalidInput, s)
	}
}

// User owns provider accounts, unified playlists and sync runs.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (u *User) Validate() error {
	if !strings.Contains(u.Email, "@") {
		return fmt.Errorf("%w: email %q", shared.ErrInvalidInput, u.Email)
	}
	return nil
}

// ProviderAccount links one user to one provider.
type ProviderAccount struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Provider       Provider  `json:"provider"`
	ProviderUserID string    `json:"provider_user_id"`
	DisplayName    string    `json:"display_name"`
	Email          string    `json:"email,omitempty"`
	ProfileURL     string    `json:"profile_url,omitempty"`
	ImageURL       string    `json:"image_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (a *ProviderAccount) Validate() error {
	if a.UserID == "" {
		return fmt.Errorf("%w: account user id is required", shared.ErrInvalidInput)
	}
	if _, err := ParseProvider(string(a.Provider)); err != nil {
		return err
	}
	if a.ProviderUserID == "" {
		return fmt.Errorf("%w: provider user id is required", shared.ErrInvalidInput)
	}
	return nil
}

// ProviderToken holds encrypted credentials for one account.
//
// Provider is filled in from the owning account on read and is not stored.
type ProviderToken struct {
	ID                    string     `json:"id"`
	AccountID             string     `json:"account_id"`
	Provider              Provider   `json:"provider"`
	AccessTokenEncrypted  string     `json:"-"`
	RefreshTokenEncrypted *string    `json:"-"`
	TokenType             string     `json:"token_type"`
	ExpiresAt             *time.Time `json:"expires_at,omitempty"`
	Scope                 *string    `json:"scope,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// Track is deduplicated per (Provider, ProviderTrackID).
type Track struct {
	ID              string    `json:"id"`
	Provider        Provider  `json:"provider"`
	ProviderTrackID string    `json:"provider_track_id"`
	Name            string    `json:"name"`
	Artist          string    `json:"artist"`
	Album           string    `json:"album,omitempty"`
	DurationMS      int       `json:"duration_ms"`
	ISRC            string    `json:"isrc,omitempty"`
	PreviewURL      string    `json:"preview_url,omitempty"`
	ExternalURL     string    `json:"external_url,omitempty"`
	ImageURL        string    `json:"image_url,omitempty"`
	IsPlayable      bool      `json:"is_playable"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (t *Track) Validate() error {
	if t.ProviderTrackID == "" {
		return fmt.Errorf("%w: provider track id is required", shared.ErrInvalidInput)
	}
	if t.Name == "" {
		return fmt.Errorf("%w: track name is required", shared.ErrInvalidInput)
	}
	_, err := ParseProvider(string(t.Provider))
	return err
}

// Playlist mirrors one remote playlist of one account.
type Playlist struct {
	ID                 string     `json:"id"`
	AccountID          string     `json:"account_id"`
	Provider           Provider   `json:"provider"`
	ProviderPlaylistID string     `json:"provider_playlist_id"`
	Name               string     `json:"name"`
	Description        string     `json:"description,omitempty"`
	ImageURL           string     `json:"image_url,omitempty"`
	TrackCount         int        `json:"track_count"`
	IsPublic           bool       `json:"is_public"`
	IsOwner            bool       `json:"is_owner"`
	SnapshotID         string     `json:"snapshot_id,omitempty"`
	LastSyncedAt       *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (p *Playlist) Validate() error {
	if p.AccountID == "" || p.ProviderPlaylistID == "" {
		return fmt.Errorf("%w: playlist account and provider id are required", shared.ErrInvalidInput)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: playlist name is required", shared.ErrInvalidInput)
	}
	return nil
}

// PlaylistItem places a track at a position in a mirrored playlist.
type PlaylistItem struct {
	ID         string    `json:"id"`
	PlaylistID string    `json:"playlist_id"`
	TrackID    string    `json:"track_id"`
	Position   int       `json:"position"`
	AddedAt    time.Time `json:"added_at"`
	AddedBy    string    `json:"added_by,omitempty"`
	Track      *Track    `json:"track,omitempty"`
}

// UnifiedPlaylist is a user-curated list that may mix providers.
type UnifiedPlaylist struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	TrackCount  int       `json:"track_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (u *UnifiedPlaylist) Validate() error {
	if u.UserID == "" {
		return fmt.Errorf("%w: unified playlist user id is required", shared.ErrInvalidInput)
	}
	if strings.TrimSpace(u.Name) == "" {
		return fmt.Errorf("%w: unified playlist name is required", shared.ErrInvalidInput)
	}
	return nil
}

// UnifiedItem places a shared track at a position in a unified playlist.
type UnifiedItem struct {
	ID                string    `json:"id"`
	UnifiedPlaylistID string    `json:"unified_playlist_id"`
	TrackID           string    `json:"track_id"`
	Position          int       `json:"position"`
	IsAvailable       bool      `json:"is_available"`
	AddedAt           time.Time `json:"added_at"`
	Track             *Track    `json:"track,omitempty"`
}

// SyncCounts are the aggregate counters of a run.
type SyncCounts struct {
	Processed int `json:"processed"`
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Removed   int `json:"removed"`
}

// Add sums o into c.
func (c *SyncCounts) Add(o SyncCounts) {
	c.Processed += o.Processed
	c.Added += o.Added
	c.Updated += o.Updated
	c.Removed += o.Removed
}

// SyncRun records one reconciliation attempt.
type SyncRun struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	AccountID    *string    `json:"account_id,omitempty"`
	Type         SyncType   `json:"sync_type"`
	Status       SyncStatus `json:"status"`
	Counts       SyncCounts `json:"counts"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (r *SyncRun) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("%w: sync run user id is required", shared.ErrInvalidInput)
	}
	switch r.Type {
	case SyncPull, SyncPush, SyncFull:
	default:
		return fmt.Errorf("%w: sync type %q", shared.ErrInvalidInput, r.Type)
	}
	switch r.Status {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
	default:
		return fmt.Errorf("%w: sync status %q", shared.ErrInvalidInput, r.Status)
	}
	return nil
}

// Conflict is an anomaly raised during a run that needs a user decision.
type Conflict struct {
	ID            string         `json:"id"`
	SyncRunID     string         `json:"sync_run_id"`
	UnifiedItemID *string        `json:"unified_item_id,omitempty"`
	Type          ConflictType   `json:"conflict_type"`
	Details       map[string]any `json:"details"`
	Resolved      bool           `json:"resolved"`
	Resolution    *Resolution    `json:"resolution,omitempty"`
	ResolvedAt    *time.Time     `json:"resolved_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// ConflictView is a conflict joined with what it points at.
type ConflictView struct {
	Conflict
	TrackName           string `json:"track_name,omitempty"`
	TrackArtist         string `json:"track_artist,omitempty"`
	UnifiedPlaylistID   string `json:"unified_playlist_id,omitempty"`
	UnifiedPlaylistName string `json:"unified_playlist_name,omitempty"`
}
