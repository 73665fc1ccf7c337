package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/tunelink/internal/models"
	"github.com/desertthunder/tunelink/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(shared.InMemoryDB)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func createUser(t *testing.T, store *Store, email string) *models.User {
	t.Helper()
	user := &models.User{Email: email, DisplayName: "Test User"}
	if err := store.Users.Create(user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func createAccount(t *testing.T, store *Store, userID string, provider models.Provider) *models.ProviderAccount {
	t.Helper()
	account := &models.ProviderAccount{
		UserID:         userID,
		Provider:       provider,
		ProviderUserID: "remote-" + string(provider),
		DisplayName:    "Remote " + string(provider),
	}
	if err := store.Accounts.Upsert(account); err != nil {
		t.Fatalf("failed to upsert account: %v", err)
	}
	return account
}

func createTrack(t *testing.T, store *Store, provider models.Provider, remoteID, name string) *models.Track {
	t.Helper()
	track := &models.Track{
		Provider:        provider,
		ProviderTrackID: remoteID,
		Name:            name,
		Artist:          "Artist " + name,
		IsPlayable:      true,
	}
	if err := store.Tracks.Create(track); err != nil {
		t.Fatalf("failed to create track: %v", err)
	}
	return track
}

func TestUserRepository(t *testing.T) {
	t.Run("Create and Get", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		user := createUser(t, store, "Test@Example.com")

		if user.ID == "" {
			t.Fatal("user ID should be set after creation")
		}

		retrieved, err := store.Users.Get(user.ID)
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if retrieved.Email != "test@example.com" {
			t.Errorf("expected normalized email, got %s", retrieved.Email)
		}
	})

	t.Run("GetOrCreateByEmail", func(t *testing.T) {
		store := NewStore(setupTestDB(t))

		first, err := store.Users.GetOrCreateByEmail("me@example.com", "Me")
		if err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
		second, err := store.Users.GetOrCreateByEmail("ME@example.com", "Someone else")
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if first.ID != second.ID {
			t.Errorf("expected same user, got %s and %s", first.ID, second.ID)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		if _, err := store.Users.Get("missing"); !errors.Is(err, shared.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
		if err := store.Users.Delete("missing"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("InvalidEmail", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		if err := store.Users.Create(&models.User{Email: "nope"}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestAccountRepository(t *testing.T) {
	t.Run("Upsert keeps one account per provider", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		user := createUser(t, store, "a@example.com")

		first := createAccount(t, store, user.ID, models.Spotify)

		again := &models.ProviderAccount{
			UserID:         user.ID,
			Provider:       models.Spotify,
			ProviderUserID: "remote-spotify",
			DisplayName:    "Renamed",
		}
		if err := store.Accounts.Upsert(again); err != nil {
			t.Fatalf("failed to upsert account: %v", err)
		}
		if again.ID != first.ID {
			t.Errorf("expected re-auth to keep account %s, got %s", first.ID, again.ID)
		}

		accounts, err := store.Accounts.ListByUser(user.ID)
		if err != nil {
			t.Fatalf("failed to list accounts: %v", err)
		}
		if len(accounts) != 1 {
			t.Fatalf("expected 1 account, got %d", len(accounts))
		}
		if accounts[0].DisplayName != "Renamed" {
			t.Errorf("expected profile to be refreshed, got %s", accounts[0].DisplayName)
		}
	})

	t.Run("GetByUserAndProvider", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		user := createUser(t, store, "a@example.com")
		account := createAccount(t, store, user.ID, models.SoundCloud)

		got, err := store.Accounts.GetByUserAndProvider(user.ID, models.SoundCloud)
		if err != nil {
			t.Fatalf("failed to get account: %v", err)
		}
		if got.ID != account.ID {
			t.Errorf("expected %s, got %s", account.ID, got.ID)
		}

		if _, err := store.Accounts.GetByUserAndProvider(user.ID, models.Spotify); !errors.Is(err, shared.ErrAccountNotFound) {
			t.Errorf("expected ErrAccountNotFound, got %v", err)
		}
	})

	t.Run("Delete cascades token and playlists", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		user := createUser(t, store, "a@example.com")
		account := createAccount(t, store, user.ID, models.Spotify)

		if err := store.Tokens.Upsert(&models.ProviderToken{AccountID: account.ID, AccessTokenEncrypted: "ct", TokenType: "Bearer"}); err != nil {
			t.Fatalf("failed to upsert token: %v", err)
		}
		playlist := &models.Playlist{AccountID: account.ID, ProviderPlaylistID: "pl", Name: "Mix"}
		if err := store.Playlists.Create(playlist); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}

		if err := store.Accounts.Delete(account.ID); err != nil {
			t.Fatalf("failed to delete account: %v", err)
		}

		if _, err := store.Tokens.GetByAccount(account.ID); !errors.Is(err, shared.ErrTokenNotFound) {
			t.Errorf("expected token to be deleted, got %v", err)
		}
		if _, err := store.Playlists.Get(playlist.ID); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected playlist to be deleted, got %v", err)
		}
	})

	t.Run("Validation", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		err := store.Accounts.Upsert(&models.ProviderAccount{UserID: "u", Provider: "tidal", ProviderUserID: "x"})
		if !errors.Is(err, shared.ErrUnsupportedProvider) {
			t.Errorf("expected ErrUnsupportedProvider, got %v", err)
		}
	})
}

func TestTokenRepository(t *testing.T) {
	t.Run("Upsert overwrites", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		user := createUser(t, store, "a@example.com")
		account := createAccount(t, store, user.ID, models.SoundCloud)

		refresh := "refresh-ct"
		expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
		first := &models.ProviderToken{
			AccountID:             account.ID,
			AccessTokenEncrypted:  "first-ct",
			RefreshTokenEncrypted: &refresh,
			TokenType:             "Bearer",
			ExpiresAt:             &expires,
		}
		if err := store.Tokens.Upsert(first); err != nil {
			t.Fatalf("failed to upsert token: %v", err)
		}

		second := &models.ProviderToken{AccountID: account.ID, AccessTokenEncrypted: "second-ct", TokenType: "Bearer"}
		if err := store.Tokens.Upsert(second); err != nil {
			t.Fatalf("failed to upsert token: %v", err)
		}
		if second.ID != first.ID {
			t.Errorf("expected token row to be reused")
		}

		got, err := store.Tokens.GetByAccount(account.ID)
		if err != nil {
			t.Fatalf("failed to get token: %v", err)
		}
		if got.AccessTokenEncrypted != "second-ct" {
			t.Errorf("expected second-ct, got %s", got.AccessTokenEncrypted)
		}
		if got.RefreshTokenEncrypted != nil || got.ExpiresAt != nil {
			t.Errorf("expected nullable fields to be cleared")
		}
		if got.Provider != models.SoundCloud {
			t.Errorf("expected provider from account, got %s", got.Provider)
		}
	})

	t.Run("Nullable fields round trip", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		user := createUser(t, store, "a@example.com")
		account := createAccount(t, store, user.ID, models.Spotify)

		refresh, scope := "refresh-ct", "streaming"
		expires := time.Date(2030, 1, 1, 12, 30, 0, 0, time.UTC)
		if err := store.Tokens.Upsert(&models.ProviderToken{
			AccountID:             account.ID,
			AccessTokenEncrypted:  "ct",
			RefreshTokenEncrypted: &refresh,
			TokenType:             "Bearer",
			ExpiresAt:             &expires,
			Scope:                 &scope,
		}); err != nil {
			t.Fatalf("failed to upsert token: %v", err)
		}

		got, err := store.Tokens.GetByAccount(account.ID)
		if err != nil {
			t.Fatalf("failed to get token: %v", err)
		}
		if got.RefreshTokenEncrypted == nil || *got.RefreshTokenEncrypted != refresh {
			t.Errorf("expected refresh token ciphertext to round trip")
		}
		if got.ExpiresAt == nil || !got.ExpiresAt.Equal(expires) {
			t.Errorf("expected expiry %v, got %v", expires, got.ExpiresAt)
		}
		if got.Scope == nil || *got.Scope != scope {
			t.Errorf("expected scope to round trip")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		user := createUser(t, store, "a@example.com")
		account := createAccount(t, store, user.ID, models.Spotify)

		if err := store.Tokens.Upsert(&models.ProviderToken{AccountID: account.ID, AccessTokenEncrypted: "ct", TokenType: "Bearer"}); err != nil {
			t.Fatalf("failed to upsert token: %v", err)
		}
		if err := store.Tokens.DeleteByAccount(account.ID); err != nil {
			t.Fatalf("failed to delete token: %v", err)
		}
		if err := store.Tokens.DeleteByAccount(account.ID); err != nil {
			t.Errorf("deleting a missing token should not fail: %v", err)
		}
		if _, err := store.Tokens.GetByAccount(account.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestStateRepository(t *testing.T) {
	store := NewStore(setupTestDB(t))
	issued := time.Date(2025, 1, 1, 10, 0, 0, 123, time.UTC)

	if err := store.States.Insert("abc", "user-1", issued); err != nil {
		t.Fatalf("failed to insert state: %v", err)
	}

	userID, at, err := store.States.Consume("abc")
	if err != nil {
		t.Fatalf("failed to consume state: %v", err)
	}
	if userID != "user-1" || !at.Equal(issued) {
		t.Errorf("expected user-1 at %v, got %s at %v", issued, userID, at)
	}

	if _, _, err := store.States.Consume("abc"); !errors.Is(err, shared.ErrInvalidState) {
		t.Errorf("expected second consume to fail, got %v", err)
	}

	t.Run("PruneBefore", func(t *testing.T) {
		if err := store.States.Insert("old", "u", issued); err != nil {
			t.Fatalf("failed to insert state: %v", err)
		}
		if err := store.States.Insert("new", "u", issued.Add(time.Hour)); err != nil {
			t.Fatalf("failed to insert state: %v", err)
		}

		n, err := store.States.PruneBefore(issued.Add(time.Minute))
		if err != nil {
			t.Fatalf("failed to prune: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 pruned state, got %d", n)
		}
		if _, _, err := store.States.Consume("new"); err != nil {
			t.Errorf("expected newer state to survive: %v", err)
		}
	})
}
