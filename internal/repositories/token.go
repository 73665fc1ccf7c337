package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/tunelink/internal/models"
	"github.com/desertthunder/tunelink/internal/shared"
)

// TokenRepository persists encrypted [models.ProviderToken] rows. It never sees plaintext.
type TokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new [TokenRepository] with the given database connection
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Upsert stores token as the account's only token, overwriting any previous one
func (r *TokenRepository) Upsert(token *models.ProviderToken) error {
	if token.AccountID == "" || token.AccessTokenEncrypted == "" {
		return fmt.Errorf("%w: token account and access token are required", shared.ErrInvalidInput)
	}

	ts := now()
	query := `
		INSERT INTO provider_tokens (
			id, provider_account_id, access_token_encrypted, refresh_token_encrypted,
			token_type, expires_at, scope, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider_account_id) DO UPDATE SET
			access_token_encrypted = excluded.access_token_encrypted,
			refresh_token_encrypted = excluded.refresh_token_encrypted,
			token_type = excluded.token_type,
			expires_at = excluded.expires_at,
			scope = excluded.scope,
			updated_at = excluded.updated_at
		RETURNING id, created_at
	`

	err := r.db.QueryRow(query,
		shared.GenerateID(),
		token.AccountID,
		token.AccessTokenEncrypted,
		nullString(token.RefreshTokenEncrypted),
		token.TokenType,
		nullTime(token.ExpiresAt),
		nullString(token.Scope),
		ts,
		ts,
	).Scan(&token.ID, &token.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert token: %w", err)
	}

	token.UpdatedAt = ts
	return nil
}

// GetByAccount retrieves the account's token along with the account's provider
func (r *TokenRepository) GetByAccount(accountID string) (*models.ProviderToken, error) {
	query := `
		SELECT t.id, t.provider_account_id, a.provider, t.access_token_encrypted, t.refresh_token_encrypted,
			t.token_type, t.expires_at, t.scope, t.created_at, t.updated_at
		FROM provider_tokens t
		JOIN provider_accounts a ON a.id = t.provider_account_id
		WHERE t.provider_account_id = ?
	`

	var (
		t         models.ProviderToken
		refresh   sql.NullString
		expiresAt sql.NullTime
		scope     sql.NullString
	)

	err := r.db.QueryRow(query, accountID).Scan(
		&t.ID, &t.AccountID, &t.Provider, &t.AccessTokenEncrypted, &refresh,
		&t.TokenType, &expiresAt, &scope, &t.CreatedAt, &t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: account %s", shared.ErrTokenNotFound, accountID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query token: %w", err)
	}

	t.RefreshTokenEncrypted = stringPtr(refresh)
	t.ExpiresAt = timePtr(expiresAt)
	t.Scope = stringPtr(scope)
	return &t, nil
}

// DeleteByAccount removes the account's token. Deleting a missing token is not an error.
func (r *TokenRepository) DeleteByAccount(accountID string) error {
	if _, err := r.db.Exec(`DELETE FROM provider_tokens WHERE provider_account_id = ?`, accountID); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
