package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/tunelink/internal/models"
	"github.com/desertthunder/tunelink/internal/shared"
)

const trackColumns = `id, provider, provider_track_id, name, artist, album, duration_ms, isrc,
	preview_url, external_url, image_url, is_playable, created_at, updated_at`

// TrackRepository persists [models.Track] rows, shared by every playlist and user.
//
// A track is addressed by (provider, provider_track_id) and is never recreated, so
// resyncing one playlist cannot disturb other collections referencing the same row.
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new [TrackRepository] with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// Create inserts a new track with a generated ID
func (r *TrackRepository) Create(track *models.Track) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	ts := now()
	track.ID = shared.GenerateID()
	track.CreatedAt, track.UpdatedAt = ts, ts

	query := `INSERT INTO tracks (` + trackColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.Exec(query,
		track.ID,
		track.Provider,
		track.ProviderTrackID,
		track.Name,
		track.Artist,
		track.Album,
		track.DurationMS,
		track.ISRC,
		track.PreviewURL,
		track.ExternalURL,
		track.ImageURL,
		track.IsPlayable,
		ts,
		ts,
	)
	if err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}
	return nil
}

// Get retrieves a track by ID
func (r *TrackRepository) Get(id string) (*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE id = ?`
	return r.scanOne(r.db.QueryRow(query, id), id)
}

// GetByProviderID retrieves a track by its provider identity
func (r *TrackRepository) GetByProviderID(provider models.Provider, providerTrackID string) (*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE provider = ? AND provider_track_id = ?`
	return r.scanOne(r.db.QueryRow(query, provider, providerTrackID), providerTrackID)
}

// ListByISRC retrieves every track sharing an ISRC, across providers
func (r *TrackRepository) ListByISRC(isrc string) ([]*models.Track, error) {
	if isrc == "" {
		return nil, nil
	}
	return r.list(`SELECT `+trackColumns+` FROM tracks WHERE isrc = ? ORDER BY provider ASC`, isrc)
}

// Update rewrites the mapped fields of an existing track.
//
// When playability changes, unified items pointing at the track follow it in the same
// transaction.
func (r *TrackRepository) Update(track *models.Track) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	ts := now()
	return withTx(r.db, func(tx *sql.Tx) error {
		query := `
			UPDATE tracks
			SET name = ?, artist = ?, album = ?, duration_ms = ?, isrc = ?, preview_url = ?,
				external_url = ?, image_url = ?, is_playable = ?, updated_at = ?
			WHERE id = ?
		`
		result, err := tx.Exec(query,
			track.Name,
			track.Artist,
			track.Album,
			track.DurationMS,
			track.ISRC,
			track.PreviewURL,
			track.ExternalURL,
			track.ImageURL,
			track.IsPlayable,
			ts,
			track.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update track: %w", err)
		}
		if err := expectRows(result, shared.ErrTrackNotFound, track.ID); err != nil {
			return err
		}

		if _, err := tx.Exec(
			`UPDATE unified_items SET is_available = ? WHERE track_id = ? AND is_available != ?`,
			track.IsPlayable, track.ID, track.IsPlayable,
		); err != nil {
			return fmt.Errorf("failed to update item availability: %w", err)
		}

		track.UpdatedAt = ts
		return nil
	})
}

// Delete removes a track. It fails while any playlist or unified item references it.
func (r *TrackRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM tracks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}
	return expectRows(result, shared.ErrTrackNotFound, id)
}

// MissingIDs returns the ids that do not exist, preserving input order.
func (r *TrackRepository) MissingIDs(ids []string) ([]string, error) {
	return missingTrackIDs(r.db, ids)
}

type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
}

func missingTrackIDs(q querier, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := q.Query(`SELECT id FROM tracks WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	found := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan track id: %w", err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	var missing []string
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (r *TrackRepository) list(query string, args ...any) ([]*models.Track, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tracks, nil
}

func (r *TrackRepository) scanOne(row *sql.Row, key string) (*models.Track, error) {
	t, err := scanTrack(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, key)
	}
	return t, err
}

func scanTrack(row scanner) (*models.Track, error) {
	var t models.Track
	err := row.Scan(
		&t.ID, &t.Provider, &t.ProviderTrackID, &t.Name, &t.Artist, &t.Album,
		&t.DurationMS, &t.ISRC, &t.PreviewURL, &t.ExternalURL, &t.ImageURL,
		&t.IsPlayable, &t.CreatedAt, &t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}
	return &t, nil
}
