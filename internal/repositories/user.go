package repositories

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/desertthunder/tunelink/internal/models"
	"github.com/desertthunder/tunelink/internal/shared"
)

// UserRepository persists [models.User] rows.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user with a generated ID
func (r *UserRepository) Create(user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	ts := now()
	user.ID = shared.GenerateID()
	user.CreatedAt, user.UpdatedAt = ts, ts

	query := `INSERT INTO users (id, email, display_name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := r.db.Exec(query, user.ID, user.Email, user.DisplayName, ts, ts); err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// Get retrieves a user by ID
func (r *UserRepository) Get(id string) (*models.User, error) {
	query := `SELECT id, email, display_name, created_at, updated_at FROM users WHERE id = ?`
	return r.scanOne(r.db.QueryRow(query, id), id)
}

// GetByEmail retrieves a user by email, case-insensitively
func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	query := `SELECT id, email, display_name, created_at, updated_at FROM users WHERE email = ?`
	return r.scanOne(r.db.QueryRow(query, email), email)
}

// GetOrCreateByEmail returns the user with email, creating it on first use
func (r *UserRepository) GetOrCreateByEmail(email, displayName string) (*models.User, error) {
	user, err := r.GetByEmail(email)
	if err == nil {
		return user, nil
	}
	if !errorsIsNotFound(err) {
		return nil, err
	}

	user = &models.User{Email: email, DisplayName: displayName}
	if err := r.Create(user); err != nil {
		if isUniqueViolation(err) {
			return r.GetByEmail(email)
		}
		return nil, err
	}
	return user, nil
}

// Delete removes a user and, through cascades, everything the user owns
func (r *UserRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return expectRows(result, shared.ErrUserNotFound, id)
}

func (r *UserRepository) scanOne(row scanner, key string) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrUserNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}
