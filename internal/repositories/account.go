package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/tunelink/internal/models"
	"github.com/desertthunder/tunelink/internal/shared"
)

const accountColumns = `id, user_id, provider, provider_user_id, display_name, email, profile_url, image_url, created_at, updated_at`

// AccountRepository persists [models.ProviderAccount] rows, at most one per (user, provider).
type AccountRepository struct {
	db *sql.DB
}

// NewAccountRepository creates a new [AccountRepository] with the given database connection
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Upsert creates the user's account for the provider or refreshes its profile snapshot.
//
// The row keeps its original ID and created_at on re-authentication.
func (r *AccountRepository) Upsert(account *models.ProviderAccount) error {
	if err := account.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	ts := now()
	query := `
		INSERT INTO provider_accounts (` + accountColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			provider_user_id = excluded.provider_user_id,
			display_name = excluded.display_name,
			email = excluded.email,
			profile_url = excluded.profile_url,
			image_url = excluded.image_url,
			updated_at = excluded.updated_at
		RETURNING id, created_at
	`

	err := r.db.QueryRow(query,
		shared.GenerateID(),
		account.UserID,
		account.Provider,
		account.ProviderUserID,
		account.DisplayName,
		account.Email,
		account.ProfileURL,
		account.ImageURL,
		ts,
		ts,
	).Scan(&account.ID, &account.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert provider account: %w", err)
	}

	account.UpdatedAt = ts
	return nil
}

// Get retrieves an account by ID
func (r *AccountRepository) Get(id string) (*models.ProviderAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM provider_accounts WHERE id = ?`
	return r.scanOne(r.db.QueryRow(query, id), id)
}

// GetByUserAndProvider retrieves the user's account for one provider
func (r *AccountRepository) GetByUserAndProvider(userID string, provider models.Provider) (*models.ProviderAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM provider_accounts WHERE user_id = ? AND provider = ?`
	return r.scanOne(r.db.QueryRow(query, userID, provider), string(provider))
}

// ListByUser retrieves every account the user has linked, ordered by provider
func (r *AccountRepository) ListByUser(userID string) ([]*models.ProviderAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM provider_accounts WHERE user_id = ? ORDER BY provider ASC`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query provider accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.ProviderAccount
	for rows.Next() {
		account, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return accounts, nil
}

// Delete removes an account. Its token and mirrored playlists cascade with it.
func (r *AccountRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM provider_accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete provider account: %w", err)
	}
	return expectRows(result, shared.ErrAccountNotFound, id)
}

func (r *AccountRepository) scanOne(row *sql.Row, key string) (*models.ProviderAccount, error) {
	account, err := r.scan(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrAccountNotFound, key)
	}
	return account, err
}

func (r *AccountRepository) scan(row scanner) (*models.ProviderAccount, error) {
	var a models.ProviderAccount
	err := row.Scan(
		&a.ID, &a.UserID, &a.Provider, &a.ProviderUserID, &a.DisplayName,
		&a.Email, &a.ProfileURL, &a.ImageURL, &a.CreatedAt, &a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan provider account: %w", err)
	}
	return &a, nil
}
