package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/tunelink/internal/models"
	"github.com/desertthunder/tunelink/internal/shared"
)

const syncRunColumns = `id, user_id, provider_account_id, sync_type, status, items_processed, items_added,
	items_updated, items_removed, error_message, started_at, completed_at, created_at`

// SyncRunRepository persists [models.SyncRun] history.
//
// Runs are never deleted by the application, failed ones included, so history and
// diagnostics survive failure.
type SyncRunRepository struct {
	db *sql.DB
}

// NewSyncRunRepository creates a new [SyncRunRepository] with the given database connection
func NewSyncRunRepository(db *sql.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

// Create inserts a new run with a generated ID
func (r *SyncRunRepository) Create(run *models.SyncRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	run.ID = shared.GenerateID()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now()
	}

	query := `INSERT INTO sync_runs (` + syncRunColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.Exec(query,
		run.ID,
		run.UserID,
		nullString(run.AccountID),
		run.Type,
		run.Status,
		run.Counts.Processed,
		run.Counts.Added,
		run.Counts.Updated,
		run.Counts.Removed,
		nullString(run.ErrorMessage),
		nullTime(run.StartedAt),
		nullTime(run.CompletedAt),
		run.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync run: %w", err)
	}
	return nil
}

// Finish records the run's terminal status, counters, error message and completion time
func (r *SyncRunRepository) Finish(run *models.SyncRun) error {
	if !run.Status.Terminal() {
		return fmt.Errorf("%w: run %s cannot finish as %s", shared.ErrInvalidInput, run.ID, run.Status)
	}

	query := `
		UPDATE sync_runs
		SET status = ?, items_processed = ?, items_added = ?, items_updated = ?, items_removed = ?,
			error_message = ?, completed_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		run.Status,
		run.Counts.Processed,
		run.Counts.Added,
		run.Counts.Updated,
		run.Counts.Removed,
		nullString(run.ErrorMessage),
		nullTime(run.CompletedAt),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update sync run: %w", err)
	}
	return expectRows(result, shared.ErrSyncRunNotFound, run.ID)
}

// Get retrieves a run by ID
func (r *SyncRunRepository) Get(id string) (*models.SyncRun, error) {
	row := r.db.QueryRow(`SELECT `+syncRunColumns+` FROM sync_runs WHERE id = ?`, id)
	return r.scanOne(row, id)
}

// GetForUser retrieves a run only when the user triggered it
func (r *SyncRunRepository) GetForUser(userID, id string) (*models.SyncRun, error) {
	row := r.db.QueryRow(`SELECT `+syncRunColumns+` FROM sync_runs WHERE id = ? AND user_id = ?`, id, userID)
	return r.scanOne(row, id)
}

// History retrieves the user's runs newest first, with the unpaged total
func (r *SyncRunRepository) History(userID string, page shared.Page) ([]*models.SyncRun, int, error) {
	var total int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM sync_runs WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count sync runs: %w", err)
	}

	runs, err := r.list(
		`SELECT `+syncRunColumns+` FROM sync_runs WHERE user_id = ? ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?`,
		userID, page.Limit, page.Offset(),
	)
	if err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}

// Running retrieves the user's runs that have not reached a terminal status
func (r *SyncRunRepository) Running(userID string) ([]*models.SyncRun, error) {
	return r.list(
		`SELECT `+syncRunColumns+` FROM sync_runs WHERE user_id = ? AND status IN ('pending', 'running') ORDER BY created_at DESC`,
		userID,
	)
}

// LastCompleted retrieves the user's most recently completed run, or nil when there is none
func (r *SyncRunRepository) LastCompleted(userID string) (*models.SyncRun, error) {
	runs, err := r.list(
		`SELECT `+syncRunColumns+` FROM sync_runs WHERE user_id = ? AND status = 'completed' ORDER BY completed_at DESC LIMIT 1`,
		userID,
	)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return runs[0], nil
}

func (r *SyncRunRepository) list(query string, args ...any) ([]*models.SyncRun, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		run, err := scanSyncRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

func (r *SyncRunRepository) scanOne(row *sql.Row, key string) (*models.SyncRun, error) {
	run, err := scanSyncRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrSyncRunNotFound, key)
	}
	return run, err
}

func scanSyncRun(row scanner) (*models.SyncRun, error) {
	var (
		run         models.SyncRun
		accountID   sql.NullString
		errorMsg    sql.NullString
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)

	err := row.Scan(
		&run.ID, &run.UserID, &accountID, &run.Type, &run.Status,
		&run.Counts.Processed, &run.Counts.Added, &run.Counts.Updated, &run.Counts.Removed,
		&errorMsg, &startedAt, &completedAt, &run.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync run: %w", err)
	}

	run.AccountID = stringPtr(accountID)
	run.ErrorMessage = stringPtr(errorMsg)
	run.StartedAt = timePtr(startedAt)
	run.CompletedAt = timePtr(completedAt)
	return &run, nil
}
