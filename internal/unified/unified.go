package unified

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunelink/internal/duplicates"
	"github.com/desertthunder/tunelink/internal/models"
	"github.com/desertthunder/tunelink/internal/repositories"
	"github.com/desertthunder/tunelink/internal/services"
	"github.com/desertthunder/tunelink/internal/shared"
)

// Sessions resolves an adapter authorized as the user's account for a provider.
type Sessions interface {
	SessionFor(ctx context.Context, userID string, provider models.Provider) (services.Provider, *models.ProviderAccount, error)
}

// Detail is a unified playlist with its items in position order.
type Detail struct {
	Playlist *models.UnifiedPlaylist `json:"playlist"`
	Items    []*models.UnifiedItem   `json:"items"`
}

// Changes are the fields [Service.Update] rewrites. Nil fields are kept.
type Changes struct {
	Name        *string
	Description *string
}

// Service manages unified playlists and the track library built from search.
//
// Every lookup is scoped to the calling user; playlists of other users are
// reported as not found.
type Service struct {
	store    *repositories.Store
	sessions Sessions
	logger   *log.Logger
}

// New creates a [Service].
func New(store *repositories.Store, sessions Sessions, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{store: store, sessions: sessions, logger: logger}
}

// Create adds an empty unified playlist for userID.
func (s *Service) Create(userID, name, description string) (*models.UnifiedPlaylist, error) {
	p := &models.UnifiedPlaylist{
		UserID:      userID,
		Name:        strings.TrimSpace(name),
		Description: description,
	}
	if err := s.store.Unified.Create(p); err != nil {
		return nil, err
	}
	s.logger.Debug("unified playlist created", "user", userID, "playlist", p.ID)
	return p, nil
}

// List returns the user's unified playlists with their track counts.
func (s *Service) List(userID string) ([]*models.UnifiedPlaylist, error) {
	return s.store.Unified.ListByUser(userID)
}

// Get returns one playlist with its items.
func (s *Service) Get(userID, playlistID string) (*Detail, error) {
	p, err := s.store.Unified.GetForUser(userID, playlistID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.Unified.Items(p.ID)
	if err != nil {
		return nil, err
	}
	p.TrackCount = len(items)
	return &Detail{Playlist: p, Items: items}, nil
}

// Update applies changes to a playlist the user owns. An empty name is ignored.
func (s *Service) Update(userID, playlistID string, changes Changes) (*models.UnifiedPlaylist, error) {
	p, err := s.store.Unified.GetForUser(userID, playlistID)
	if err != nil {
		return nil, err
	}
	if changes.Name != nil && strings.TrimSpace(*changes.Name) != "" {
		p.Name = strings.TrimSpace(*changes.Name)
	}
	if changes.Description != nil {
		p.Description = *changes.Description
	}
	if err := s.store.Unified.Update(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes a playlist the user owns with all of its items.
func (s *Service) Delete(userID, playlistID string) error {
	return s.store.Unified.Delete(userID, playlistID)
}

// AddTracks inserts trackIDs at position at, or appends them when at is nil, and
// returns the new items. Unknown track ids reject the whole call before anything moves.
func (s *Service) AddTracks(userID, playlistID string, trackIDs []string, at *int) ([]*models.UnifiedItem, error) {
	p, err := s.store.Unified.GetForUser(userID, playlistID)
	if err != nil {
		return nil, err
	}

	if err := s.store.Unified.AddItems(p.ID, trackIDs, at); err != nil {
		return nil, err
	}

	items, err := s.store.Unified.Items(p.ID)
	if err != nil {
		return nil, err
	}

	start := len(items) - len(trackIDs)
	if at != nil {
		start = *at
	}
	if start < 0 || start+len(trackIDs) > len(items) {
		return nil, fmt.Errorf("%w: playlist changed while adding tracks", shared.ErrInvalidPosition)
	}
	return items[start : start+len(trackIDs)], nil
}

// RemoveItem deletes one item and closes the gap it leaves.
func (s *Service) RemoveItem(userID, playlistID, itemID string) error {
	p, err := s.store.Unified.GetForUser(userID, playlistID)
	if err != nil {
		return err
	}
	return s.store.Unified.RemoveItem(p.ID, itemID)
}

// MoveItem moves one item to newPosition and returns the playlist's items afterwards.
// Moving an item onto its own position changes nothing and still returns the snapshot.
func (s *Service) MoveItem(userID, playlistID, itemID string, newPosition int) ([]*models.UnifiedItem, error) {
	p, err := s.store.Unified.GetForUser(userID, playlistID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Unified.MoveItem(p.ID, itemID, newPosition); err != nil {
		return nil, err
	}
	return s.store.Unified.Items(p.ID)
}

// Duplicates reports groups of items in the playlist that look like the same recording.
func (s *Service) Duplicates(userID, playlistID string) ([]duplicates.Group, error) {
	p, err := s.store.Unified.GetForUser(userID, playlistID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.Unified.Items(p.ID)
	if err != nil {
		return nil, err
	}
	return duplicates.Find(items), nil
}
