package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/tunelink/internal/shared"
)

// StateRepository persists pending OAuth handshake states.
type StateRepository struct {
	db *sql.DB
}

// NewStateRepository creates a new [StateRepository] with the given database connection
func NewStateRepository(db *sql.DB) *StateRepository {
	return &StateRepository{db: db}
}

// Insert records a newly issued state for userID
func (r *StateRepository) Insert(state, userID string, issuedAt time.Time) error {
	_, err := r.db.Exec(`INSERT INTO oauth_states (state, user_id, issued_at) VALUES (?, ?, ?)`, state, userID, issuedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert oauth state: %w", err)
	}
	return nil
}

// Consume deletes state and returns what it was bound to, in one statement.
//
// Of any number of concurrent calls with the same state at most one succeeds; the
// rest fail with [shared.ErrInvalidState].
func (r *StateRepository) Consume(state string) (userID string, issuedAt time.Time, err error) {
	var nanos int64
	err = r.db.QueryRow(`DELETE FROM oauth_states WHERE state = ? RETURNING user_id, issued_at`, state).Scan(&userID, &nanos)
	if err == sql.ErrNoRows {
		return "", time.Time{}, shared.ErrInvalidState
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to consume oauth state: %w", err)
	}
	return userID, time.Unix(0, nanos).UTC(), nil
}

// PruneBefore deletes every state issued before cutoff and reports how many went
func (r *StateRepository) PruneBefore(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM oauth_states WHERE issued_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune oauth states: %w", err)
	}
	return result.RowsAffected()
}
