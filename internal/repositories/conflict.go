package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/tunelink/internal/models"
	"github.com/desertthunder/tunelink/internal/shared"
)

const conflictSelect = `
	SELECT c.id, c.sync_run_id, c.unified_item_id, c.conflict_type, c.details, c.resolved,
		c.resolution, c.resolved_at, c.created_at,
		t.name, t.artist, up.id, up.name
	FROM conflicts c
	JOIN sync_runs r ON r.id = c.sync_run_id
	LEFT JOIN unified_items ui ON ui.id = c.unified_item_id
	LEFT JOIN tracks t ON t.id = ui.track_id
	LEFT JOIN unified_playlists up ON up.id = ui.unified_playlist_id
`

// ConflictRepository persists [models.Conflict] rows raised by sync runs.
//
// Ownership of a conflict is the ownership of its run.
type ConflictRepository struct {
	db *sql.DB
}

// NewConflictRepository creates a new [ConflictRepository] with the given database connection
func NewConflictRepository(db *sql.DB) *ConflictRepository {
	return &ConflictRepository{db: db}
}

// Create inserts a new, unresolved conflict
func (r *ConflictRepository) Create(conflict *models.Conflict) error {
	if conflict.SyncRunID == "" || conflict.Type == "" {
		return fmt.Errorf("%w: conflict run and type are required", shared.ErrInvalidInput)
	}

	details := conflict.Details
	if details == nil {
		details = map[string]any{}
	}
	data, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode conflict details: %w", err)
	}

	conflict.ID = shared.GenerateID()
	conflict.CreatedAt = now()
	conflict.Resolved, conflict.Resolution, conflict.ResolvedAt = false, nil, nil

	query := `
		INSERT INTO conflicts (id, sync_run_id, unified_item_id, conflict_type, details, resolved, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)
	`
	_, err = r.db.Exec(query,
		conflict.ID,
		conflict.SyncRunID,
		nullString(conflict.UnifiedItemID),
		conflict.Type,
		string(data),
		conflict.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert conflict: %w", err)
	}
	return nil
}

// GetForUser retrieves a conflict only when its run belongs to the user
func (r *ConflictRepository) GetForUser(userID, id string) (*models.ConflictView, error) {
	row := r.db.QueryRow(conflictSelect+` WHERE c.id = ? AND r.user_id = ?`, id, userID)
	view, err := scanConflict(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrConflictNotFound, id)
	}
	return view, err
}

// Resolve marks a conflict resolved with the chosen resolution
func (r *ConflictRepository) Resolve(id string, resolution models.Resolution, at time.Time) error {
	result, err := r.db.Exec(
		`UPDATE conflicts SET resolved = 1, resolution = ?, resolved_at = ? WHERE id = ?`,
		resolution, at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve conflict: %w", err)
	}
	return expectRows(result, shared.ErrConflictNotFound, id)
}

// ListByUser retrieves conflicts from the user's runs, newest first.
//
// A nil resolved returns both states.
func (r *ConflictRepository) ListByUser(userID string, resolved *bool) ([]*models.ConflictView, error) {
	query := conflictSelect + ` WHERE r.user_id = ?`
	args := []any{userID}
	if resolved != nil {
		query += ` AND c.resolved = ?`
		args = append(args, *resolved)
	}
	query += ` ORDER BY c.created_at DESC, c.id ASC`
	return r.list(query, args...)
}

// ListByRun retrieves the conflicts raised by one run, oldest first
func (r *ConflictRepository) ListByRun(runID string) ([]*models.ConflictView, error) {
	return r.list(conflictSelect+` WHERE c.sync_run_id = ? ORDER BY c.created_at ASC, c.id ASC`, runID)
}

func (r *ConflictRepository) list(query string, args ...any) ([]*models.ConflictView, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conflicts: %w", err)
	}
	defer rows.Close()

	var views []*models.ConflictView
	for rows.Next() {
		view, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return views, nil
}

func scanConflict(row scanner) (*models.ConflictView, error) {
	var (
		v            models.ConflictView
		itemID       sql.NullString
		details      string
		resolution   sql.NullString
		resolvedAt   sql.NullTime
		trackName    sql.NullString
		trackArtist  sql.NullString
		playlistID   sql.NullString
		playlistName sql.NullString
	)

	err := row.Scan(
		&v.ID, &v.SyncRunID, &itemID, &v.Type, &details, &v.Resolved,
		&resolution, &resolvedAt, &v.CreatedAt,
		&trackName, &trackArtist, &playlistID, &playlistName,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan conflict: %w", err)
	}

	if err := json.Unmarshal([]byte(details), &v.Details); err != nil {
		return nil, fmt.Errorf("failed to decode conflict details: %w", err)
	}

	v.UnifiedItemID = stringPtr(itemID)
	if resolution.Valid {
		res := models.Resolution(resolution.String)
		v.Resolution = &res
	}
	v.ResolvedAt = timePtr(resolvedAt)
	v.TrackName = trackName.String
	v.TrackArtist = trackArtist.String
	v.UnifiedPlaylistID = playlistID.String
	v.UnifiedPlaylistName = playlistName.String
	return &v, nil
}
