package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/tunelink/internal/ordering"
	"github.com/desertthunder/tunelink/internal/shared"
)

// Store bundles every repository over one database connection.
type Store struct {
	DB        *sql.DB
	Users     *UserRepository
	Accounts  *AccountRepository
	Tokens    *TokenRepository
	Tracks    *TrackRepository
	Playlists *PlaylistRepository
	Unified   *UnifiedRepository
	SyncRuns  *SyncRunRepository
	Conflicts *ConflictRepository
	States    *StateRepository
}

// NewStore creates every repository over db.
func NewStore(db *sql.DB) *Store {
	return &Store{
		DB:        db,
		Users:     NewUserRepository(db),
		Accounts:  NewAccountRepository(db),
		Tokens:    NewTokenRepository(db),
		Tracks:    NewTrackRepository(db),
		Playlists: NewPlaylistRepository(db),
		Unified:   NewUnifiedRepository(db),
		SyncRuns:  NewSyncRunRepository(db),
		Conflicts: NewConflictRepository(db),
		States:    NewStateRepository(db),
	}
}

// scanner is satisfied by both [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

// withTx runs fn inside a transaction, committing only when fn returns nil.
func withTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// collection names the table and owning column of one ordered collection.
type collection struct {
	table string
	owner string
}

var (
	playlistItems = collection{table: "playlist_items", owner: "playlist_id"}
	unifiedItems  = collection{table: "unified_items", owner: "unified_playlist_id"}
)

// positions loads the ordering view of one collection.
func (c collection) positions(tx *sql.Tx, ownerID string) ([]ordering.Item, error) {
	rows, err := tx.Query(fmt.Sprintf("SELECT id, position FROM %s WHERE %s = ?", c.table, c.owner), ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s positions: %w", c.table, err)
	}
	defer rows.Close()

	var items []ordering.Item
	for rows.Next() {
		var it ordering.Item
		if err := rows.Scan(&it.ID, &it.Position); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

// apply writes moves in two phases so UNIQUE(owner, position) never trips mid-update:
// each target is first parked at -(to+1), then every parked row is flipped back.
func (c collection) apply(tx *sql.Tx, ownerID string, moves []ordering.Move) error {
	if len(moves) == 0 {
		return nil
	}

	park := fmt.Sprintf("UPDATE %s SET position = ? WHERE id = ? AND %s = ?", c.table, c.owner)
	for _, m := range moves {
		if _, err := tx.Exec(park, -(m.To + 1), m.ID, ownerID); err != nil {
			return fmt.Errorf("failed to move %s: %w", m.ID, err)
		}
	}

	flip := fmt.Sprintf("UPDATE %s SET position = -position - 1 WHERE %s = ? AND position < 0", c.table, c.owner)
	if _, err := tx.Exec(flip, ownerID); err != nil {
		return fmt.Errorf("failed to settle positions: %w", err)
	}
	return nil
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// expectRows maps zero affected rows to notFound.
func expectRows(result sql.Result, notFound error, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", notFound, id)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func now() time.Time {
	return time.Now().UTC()
}

func errorsIsNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}
