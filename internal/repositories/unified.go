package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/tunelink/internal/models"
	"github.com/desertthunder/tunelink/internal/ordering"
	"github.com/desertthunder/tunelink/internal/shared"
)

const unifiedSelect = `
	SELECT up.id, up.user_id, up.name, up.description,
		(SELECT COUNT(*) FROM unified_items ui WHERE ui.unified_playlist_id = up.id),
		up.created_at, up.updated_at
	FROM unified_playlists up
`

// UnifiedRepository persists user-curated playlists and their ordered items.
//
// Every item edit holds the playlist's lock for the whole transaction, so concurrent
// edits of one playlist are serialized while different playlists proceed in parallel.
type UnifiedRepository struct {
	db    *sql.DB
	locks ordering.Locker
}

// NewUnifiedRepository creates a new [UnifiedRepository] with the given database connection
func NewUnifiedRepository(db *sql.DB) *UnifiedRepository {
	return &UnifiedRepository{db: db}
}

// Create inserts a new, empty unified playlist
func (r *UnifiedRepository) Create(playlist *models.UnifiedPlaylist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	ts := now()
	playlist.ID = shared.GenerateID()
	playlist.CreatedAt, playlist.UpdatedAt = ts, ts
	playlist.TrackCount = 0

	query := `INSERT INTO unified_playlists (id, user_id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := r.db.Exec(query, playlist.ID, playlist.UserID, playlist.Name, playlist.Description, ts, ts); err != nil {
		return fmt.Errorf("failed to insert unified playlist: %w", err)
	}
	return nil
}

// GetForUser retrieves a unified playlist only when the user owns it
func (r *UnifiedRepository) GetForUser(userID, id string) (*models.UnifiedPlaylist, error) {
	row := r.db.QueryRow(unifiedSelect+` WHERE up.id = ? AND up.user_id = ?`, id, userID)
	p, err := scanUnified(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}
	return p, err
}

// ListByUser retrieves the user's unified playlists with their track counts, newest first
func (r *UnifiedRepository) ListByUser(userID string) ([]*models.UnifiedPlaylist, error) {
	rows, err := r.db.Query(unifiedSelect+` WHERE up.user_id = ? ORDER BY up.created_at DESC, up.id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query unified playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*models.UnifiedPlaylist
	for rows.Next() {
		p, err := scanUnified(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return playlists, nil
}

// Update rewrites name and description of a playlist the user owns
func (r *UnifiedRepository) Update(playlist *models.UnifiedPlaylist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	ts := now()
	result, err := r.db.Exec(
		`UPDATE unified_playlists SET name = ?, description = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		playlist.Name, playlist.Description, ts, playlist.ID, playlist.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update unified playlist: %w", err)
	}
	if err := expectRows(result, shared.ErrPlaylistNotFound, playlist.ID); err != nil {
		return err
	}

	playlist.UpdatedAt = ts
	return nil
}

// Delete removes a unified playlist the user owns, with its items
func (r *UnifiedRepository) Delete(userID, id string) error {
	unlock := r.locks.Lock(id)
	defer unlock()

	result, err := r.db.Exec(`DELETE FROM unified_playlists WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete unified playlist: %w", err)
	}
	return expectRows(result, shared.ErrPlaylistNotFound, id)
}

// Items retrieves a unified playlist's items with their tracks, ordered by position
func (r *UnifiedRepository) Items(playlistID string) ([]*models.UnifiedItem, error) {
	query := `
		SELECT i.id, i.unified_playlist_id, i.track_id, i.position, i.is_available, i.added_at,
			t.id, t.provider, t.provider_track_id, t.name, t.artist, t.album, t.duration_ms, t.isrc,
			t.preview_url, t.external_url, t.image_url, t.is_playable, t.created_at, t.updated_at
		FROM unified_items i
		JOIN tracks t ON t.id = i.track_id
		WHERE i.unified_playlist_id = ?
		ORDER BY i.position ASC
	`

	rows, err := r.db.Query(query, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query unified items: %w", err)
	}
	defer rows.Close()

	var items []*models.UnifiedItem
	for rows.Next() {
		var (
			item models.UnifiedItem
			t    models.Track
		)
		err := rows.Scan(
			&item.ID, &item.UnifiedPlaylistID, &item.TrackID, &item.Position, &item.IsAvailable, &item.AddedAt,
			&t.ID, &t.Provider, &t.ProviderTrackID, &t.Name, &t.Artist, &t.Album, &t.DurationMS, &t.ISRC,
			&t.PreviewURL, &t.ExternalURL, &t.ImageURL, &t.IsPlayable, &t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan unified item: %w", err)
		}
		item.Track = &t
		items = append(items, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

// AddItems inserts trackIDs as new items starting at position at, or appends when at is nil.
//
// Every track id is checked before anything moves. Existing items at or after the
// insertion point shift by len(trackIDs). Availability is copied from each track.
func (r *UnifiedRepository) AddItems(playlistID string, trackIDs []string, at *int) error {
	if len(trackIDs) == 0 {
		return fmt.Errorf("%w: no track ids", shared.ErrInvalidInput)
	}

	unlock := r.locks.Lock(playlistID)
	defer unlock()

	return withTx(r.db, func(tx *sql.Tx) error {
		missing, err := missingTrackIDs(tx, dedupe(trackIDs))
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: %v", shared.ErrTrackNotFound, missing)
		}

		current, err := unifiedItems.positions(tx, playlistID)
		if err != nil {
			return err
		}

		start, moves, err := ordering.Insert(current, at, len(trackIDs))
		if err != nil {
			return err
		}
		if err := unifiedItems.apply(tx, playlistID, moves); err != nil {
			return err
		}

		ts := now()
		insert := `
			INSERT INTO unified_items (id, unified_playlist_id, track_id, position, is_available, added_at)
			SELECT ?, ?, id, ?, is_playable, ? FROM tracks WHERE id = ?
		`
		for i, trackID := range trackIDs {
			if _, err := tx.Exec(insert, shared.GenerateID(), playlistID, start+i, ts, trackID); err != nil {
				return fmt.Errorf("failed to insert unified item at %d: %w", start+i, err)
			}
		}

		return touchUnified(tx, playlistID, ts)
	})
}

// RemoveItem deletes one item and collapses the positions after it
func (r *UnifiedRepository) RemoveItem(playlistID, itemID string) error {
	unlock := r.locks.Lock(playlistID)
	defer unlock()

	return withTx(r.db, func(tx *sql.Tx) error {
		current, err := unifiedItems.positions(tx, playlistID)
		if err != nil {
			return err
		}

		_, moves, err := ordering.Remove(current, itemID)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(`DELETE FROM unified_items WHERE id = ? AND unified_playlist_id = ?`, itemID, playlistID); err != nil {
			return fmt.Errorf("failed to delete unified item: %w", err)
		}
		if err := unifiedItems.apply(tx, playlistID, moves); err != nil {
			return err
		}

		return touchUnified(tx, playlistID, now())
	})
}

// MoveItem moves one item to newPosition, shifting the items between its old and new place
func (r *UnifiedRepository) MoveItem(playlistID, itemID string, newPosition int) error {
	unlock := r.locks.Lock(playlistID)
	defer unlock()

	return withTx(r.db, func(tx *sql.Tx) error {
		current, err := unifiedItems.positions(tx, playlistID)
		if err != nil {
			return err
		}

		moves, err := ordering.MoveTo(current, itemID, newPosition)
		if err != nil {
			return err
		}
		if len(moves) == 0 {
			return nil
		}
		if err := unifiedItems.apply(tx, playlistID, moves); err != nil {
			return err
		}

		return touchUnified(tx, playlistID, now())
	})
}

func touchUnified(tx *sql.Tx, playlistID string, ts time.Time) error {
	if _, err := tx.Exec(`UPDATE unified_playlists SET updated_at = ? WHERE id = ?`, ts, playlistID); err != nil {
		return fmt.Errorf("failed to touch unified playlist: %w", err)
	}
	return nil
}

func scanUnified(row scanner) (*models.UnifiedPlaylist, error) {
	var p models.UnifiedPlaylist
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.TrackCount, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan unified playlist: %w", err)
	}
	return &p, nil
}
