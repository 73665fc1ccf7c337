package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/tunelink/internal/models"
	"github.com/desertthunder/tunelink/internal/ordering"
	"github.com/desertthunder/tunelink/internal/shared"
)

const playlistSelect = `
	SELECT p.id, p.provider_account_id, a.provider, p.provider_playlist_id, p.name, p.description,
		p.image_url, p.track_count, p.is_public, p.is_owner, p.snapshot_id, p.last_synced_at,
		p.created_at, p.updated_at
	FROM playlists p
	JOIN provider_accounts a ON a.id = p.provider_account_id
`

// PlaylistFilter narrows [PlaylistRepository.List].
type PlaylistFilter struct {
	UserID   string
	Provider models.Provider // empty means every provider
	Page     shared.Page
}

// PlaylistRepository persists mirrored provider playlists and their items.
type PlaylistRepository struct {
	db    *sql.DB
	locks ordering.Locker
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Create inserts a new playlist mirror with a generated ID
func (r *PlaylistRepository) Create(playlist *models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	ts := now()
	playlist.ID = shared.GenerateID()
	playlist.CreatedAt, playlist.UpdatedAt = ts, ts

	query := `
		INSERT INTO playlists (
			id, provider_account_id, provider_playlist_id, name, description, image_url,
			track_count, is_public, is_owner, snapshot_id, last_synced_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		playlist.ID,
		playlist.AccountID,
		playlist.ProviderPlaylistID,
		playlist.Name,
		playlist.Description,
		playlist.ImageURL,
		playlist.TrackCount,
		playlist.IsPublic,
		playlist.IsOwner,
		playlist.SnapshotID,
		nullTime(playlist.LastSyncedAt),
		ts,
		ts,
	)
	if err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}
	return nil
}

// Get retrieves a playlist by ID
func (r *PlaylistRepository) Get(id string) (*models.Playlist, error) {
	return r.scanOne(r.db.QueryRow(playlistSelect+` WHERE p.id = ?`, id), id)
}

// GetForUser retrieves a playlist only when it belongs to one of the user's accounts
func (r *PlaylistRepository) GetForUser(userID, id string) (*models.Playlist, error) {
	return r.scanOne(r.db.QueryRow(playlistSelect+` WHERE p.id = ? AND a.user_id = ?`, id, userID), id)
}

// GetByProviderID retrieves an account's mirror of one remote playlist
func (r *PlaylistRepository) GetByProviderID(accountID, providerPlaylistID string) (*models.Playlist, error) {
	query := playlistSelect + ` WHERE p.provider_account_id = ? AND p.provider_playlist_id = ?`
	return r.scanOne(r.db.QueryRow(query, accountID, providerPlaylistID), providerPlaylistID)
}

// Update rewrites a playlist's remote metadata
func (r *PlaylistRepository) Update(playlist *models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	ts := now()
	query := `
		UPDATE playlists
		SET name = ?, description = ?, image_url = ?, track_count = ?, is_public = ?,
			is_owner = ?, snapshot_id = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		playlist.Name,
		playlist.Description,
		playlist.ImageURL,
		playlist.TrackCount,
		playlist.IsPublic,
		playlist.IsOwner,
		playlist.SnapshotID,
		ts,
		playlist.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}
	if err := expectRows(result, shared.ErrPlaylistNotFound, playlist.ID); err != nil {
		return err
	}

	playlist.UpdatedAt = ts
	return nil
}

// MarkSynced records a completed per-playlist resync
func (r *PlaylistRepository) MarkSynced(id string, trackCount int, at time.Time) error {
	result, err := r.db.Exec(
		`UPDATE playlists SET track_count = ?, last_synced_at = ?, updated_at = ? WHERE id = ?`,
		trackCount, at.UTC(), now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark playlist synced: %w", err)
	}
	return expectRows(result, shared.ErrPlaylistNotFound, id)
}

// List retrieves the user's mirrored playlists ordered by name, with the unpaged total
func (r *PlaylistRepository) List(filter PlaylistFilter) ([]*models.Playlist, int, error) {
	where := ` WHERE a.user_id = ?`
	args := []any{filter.UserID}
	if filter.Provider != "" {
		where += ` AND a.provider = ?`
		args = append(args, filter.Provider)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM playlists p JOIN provider_accounts a ON a.id = p.provider_account_id` + where
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count playlists: %w", err)
	}

	query := playlistSelect + where + ` ORDER BY p.name COLLATE NOCASE ASC, p.id ASC`
	if filter.Page.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Page.Limit, filter.Page.Offset())
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*models.Playlist
	for rows.Next() {
		playlist, err := scanPlaylist(rows)
		if err != nil {
			return nil, 0, err
		}
		playlists = append(playlists, playlist)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("row iteration error: %w", err)
	}
	return playlists, total, nil
}

// Items retrieves a playlist's items with their tracks, ordered by position
func (r *PlaylistRepository) Items(playlistID string) ([]*models.PlaylistItem, error) {
	query := `
		SELECT i.id, i.playlist_id, i.track_id, i.position, i.added_at, i.added_by,
			t.id, t.provider, t.provider_track_id, t.name, t.artist, t.album, t.duration_ms, t.isrc,
			t.preview_url, t.external_url, t.image_url, t.is_playable, t.created_at, t.updated_at
		FROM playlist_items i
		JOIN tracks t ON t.id = i.track_id
		WHERE i.playlist_id = ?
		ORDER BY i.position ASC
	`

	rows, err := r.db.Query(query, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist items: %w", err)
	}
	defer rows.Close()

	var items []*models.PlaylistItem
	for rows.Next() {
		var (
			item models.PlaylistItem
			t    models.Track
		)
		err := rows.Scan(
			&item.ID, &item.PlaylistID, &item.TrackID, &item.Position, &item.AddedAt, &item.AddedBy,
			&t.ID, &t.Provider, &t.ProviderTrackID, &t.Name, &t.Artist, &t.Album, &t.DurationMS, &t.ISRC,
			&t.PreviewURL, &t.ExternalURL, &t.ImageURL, &t.IsPlayable, &t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan playlist item: %w", err)
		}
		item.Track = &t
		items = append(items, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

// ReplaceItems discards every item of the playlist and writes trackIDs at 0..len-1.
//
// Track ids are checked before anything is deleted.
func (r *PlaylistRepository) ReplaceItems(playlistID string, trackIDs []string, addedBy string) error {
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

		if _, err := tx.Exec(`DELETE FROM playlist_items WHERE playlist_id = ?`, playlistID); err != nil {
			return fmt.Errorf("failed to clear playlist items: %w", err)
		}

		ts := now()
		insert := `INSERT INTO playlist_items (id, playlist_id, track_id, position, added_at, added_by) VALUES (?, ?, ?, ?, ?, ?)`
		for pos, trackID := range trackIDs {
			if _, err := tx.Exec(insert, shared.GenerateID(), playlistID, trackID, pos, ts, addedBy); err != nil {
				return fmt.Errorf("failed to insert playlist item at %d: %w", pos, err)
			}
		}
		return nil
	})
}

// Delete removes a playlist mirror and its items
func (r *PlaylistRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM playlists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	return expectRows(result, shared.ErrPlaylistNotFound, id)
}

func (r *PlaylistRepository) scanOne(row *sql.Row, key string) (*models.Playlist, error) {
	p, err := scanPlaylist(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, key)
	}
	return p, err
}

func scanPlaylist(row scanner) (*models.Playlist, error) {
	var (
		p        models.Playlist
		syncedAt sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.AccountID, &p.Provider, &p.ProviderPlaylistID, &p.Name, &p.Description,
		&p.ImageURL, &p.TrackCount, &p.IsPublic, &p.IsOwner, &p.SnapshotID, &syncedAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}
	p.LastSyncedAt = timePtr(syncedAt)
	return &p, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
