package repositories

import (
	"errors"
	"fmt"

	"github.com/desertthunder/tunelink/internal/models"
	"github.com/desertthunder/tunelink/internal/shared"
)

// TrackChange reports what [TrackRepository.FindOrCreate] did.
type TrackChange int

const (
	TrackUnchanged TrackChange = iota
	TrackCreated
	TrackUpdated
)

// FindOrCreate resolves a freshly fetched track to its stored row.
//
// Unknown tracks are created with every mapped field. Known tracks are updated only
// when name, artist, playability or image differ. On return track carries the stored ID.
// A concurrent insert of the same provider identity is treated as a find.
func (r *TrackRepository) FindOrCreate(track *models.Track) (TrackChange, error) {
	existing, err := r.GetByProviderID(track.Provider, track.ProviderTrackID)
	if err != nil && !errors.Is(err, shared.ErrTrackNotFound) {
		return TrackUnchanged, err
	}

	if existing == nil {
		err := r.Create(track)
		if err == nil {
			return TrackCreated, nil
		}
		if !isUniqueViolation(err) {
			return TrackUnchanged, fmt.Errorf("failed to cache track: %w", err)
		}
		if existing, err = r.GetByProviderID(track.Provider, track.ProviderTrackID); err != nil {
			return TrackUnchanged, err
		}
	}

	if !trackChanged(existing, track) {
		*track = *existing
		return TrackUnchanged, nil
	}

	existing.Name = track.Name
	existing.Artist = track.Artist
	existing.IsPlayable = track.IsPlayable
	existing.ImageURL = track.ImageURL
	if err := r.Update(existing); err != nil {
		return TrackUnchanged, err
	}

	*track = *existing
	return TrackUpdated, nil
}

func trackChanged(stored, fetched *models.Track) bool {
	return stored.Name != fetched.Name ||
		stored.Artist != fetched.Artist ||
		stored.IsPlayable != fetched.IsPlayable ||
		stored.ImageURL != fetched.ImageURL
}
