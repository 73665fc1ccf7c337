package unified

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/tunelink/internal/models"
	"github.com/desertthunder/tunelink/internal/services"
	"github.com/desertthunder/tunelink/internal/shared"
	"golang.org/x/sync/errgroup"
)

const searchLimit = 20

// SearchResult holds local tracks per provider. Every supported provider has an
// entry, empty when it is not connected or its search failed.
type SearchResult struct {
	Query   string                             `json:"query"`
	Results map[models.Provider][]*models.Track `json:"results"`
}

// Playback is how to play one stored track.
type Playback struct {
	Track    *models.Track         `json:"track"`
	Playback services.PlaybackInfo `json:"playback"`
}

// SearchTracks queries every connected provider, or only provider when set, and
// stores each hit through the track cache so results carry local ids.
//
// Providers are searched concurrently. A provider that fails is logged and
// contributes an empty list; SearchTracks itself fails only on bad input or when the
// user's accounts cannot be listed.
func (s *Service) SearchTracks(ctx context.Context, userID, query string, provider models.Provider) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}

	accounts, err := s.store.Accounts.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	result := &SearchResult{Query: query, Results: make(map[models.Provider][]*models.Track, len(models.Providers))}
	for _, p := range models.Providers {
		result.Results[p] = []*models.Track{}
	}

	found := make([][]*models.Track, len(accounts))
	failures := make([]error, len(accounts))

	var g errgroup.Group
	for i, account := range accounts {
		if provider != "" && account.Provider != provider {
			continue
		}
		g.Go(func() error {
			tracks, err := s.searchProvider(ctx, userID, account.Provider, query)
			if err != nil {
				failures[i] = fmt.Errorf("%s: %w", account.Provider, err)
				return failures[i]
			}
			found[i] = tracks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("provider search failed", "user", userID, "error", errors.Join(failures...))
	}

	for i, account := range accounts {
		if found[i] != nil {
			result.Results[account.Provider] = found[i]
		}
	}
	return result, nil
}

func (s *Service) searchProvider(ctx context.Context, userID string, provider models.Provider, query string) ([]*models.Track, error) {
	adapter, _, err := s.sessions.SessionFor(ctx, userID, provider)
	if err != nil {
		return nil, err
	}

	remote, err := adapter.SearchTracks(ctx, query, services.SearchOptions{Limit: searchLimit})
	if err != nil {
		return nil, err
	}

	tracks := make([]*models.Track, 0, len(remote))
	for _, rt := range remote {
		track := rt.ToModel(provider)
		if _, err := s.store.Tracks.FindOrCreate(track); err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

// PlaybackInfo resolves how to play a stored track. Once the track exists it never
// fails: when the provider cannot be reached the stored external link is returned.
func (s *Service) PlaybackInfo(ctx context.Context, userID, trackID string) (*Playback, error) {
	track, err := s.store.Tracks.Get(trackID)
	if err != nil {
		return nil, err
	}

	fallback := &Playback{
		Track:    track,
		Playback: services.PlaybackInfo{Type: services.PlaybackExternal, ExternalURL: track.ExternalURL},
	}

	adapter, _, err := s.sessions.SessionFor(ctx, userID, track.Provider)
	if err != nil {
		s.logger.Debug("playback falls back to external link", "track", track.ID, "error", err)
		return fallback, nil
	}

	info := adapter.PlaybackInfo(ctx, track.ProviderTrackID)
	if info.Type == "" {
		return fallback, nil
	}
	if info.ExternalURL == "" {
		info.ExternalURL = track.ExternalURL
	}
	return &Playback{Track: track, Playback: info}, nil
}
