package unified

import (
	"github.com/desertthunder/tunelink/internal/models"
	"github.com/desertthunder/tunelink/internal/repositories"
	"github.com/desertthunder/tunelink/internal/shared"
)

// MirrorPage is one page of mirrored provider playlists, ordered by name.
type MirrorPage struct {
	Playlists  []*models.Playlist `json:"playlists"`
	Page       int                `json:"page"`
	Limit      int                `json:"limit"`
	Total      int                `json:"total"`
	TotalPages int                `json:"total_pages"`
}

// Mirror is a mirrored playlist with its items in position order.
type Mirror struct {
	Playlist *models.Playlist       `json:"playlist"`
	Items    []*models.PlaylistItem `json:"items"`
}

// Mirrors lists the user's mirrored playlists, optionally for one provider.
func (s *Service) Mirrors(userID string, provider models.Provider, page, limit int) (*MirrorPage, error) {
	p := shared.NewPage(page, limit, 50)
	playlists, total, err := s.store.Playlists.List(repositories.PlaylistFilter{UserID: userID, Provider: provider, Page: p})
	if err != nil {
		return nil, err
	}
	return &MirrorPage{
		Playlists:  playlists,
		Page:       p.Number,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: p.TotalPages(total),
	}, nil
}

// Mirror returns one mirrored playlist the user owns, with its tracks.
func (s *Service) Mirror(userID, playlistID string) (*Mirror, error) {
	pl, err := s.store.Playlists.GetForUser(userID, playlistID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.Playlists.Items(pl.ID)
	if err != nil {
		return nil, err
	}
	return &Mirror{Playlist: pl, Items: items}, nil
}
