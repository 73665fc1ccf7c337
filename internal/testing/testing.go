// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/tunelink/internal/models"
	"github.com/desertthunder/tunelink/internal/repositories"
	"github.com/desertthunder/tunelink/internal/services"
	"github.com/desertthunder/tunelink/internal/shared"
	"golang.org/x/oauth2"
)

// TestKey is a valid 32 byte encryption key, hex encoded.
const TestKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

// MustStore opens an in-memory database with migrations applied.
func MustStore(t *testing.T) *repositories.Store {
	t.Helper()
	db, err := shared.NewDatabase(shared.InMemoryDB)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return repositories.NewStore(db)
}

// MustUser creates a user with email.
func MustUser(t *testing.T, store *repositories.Store, email string) *models.User {
	t.Helper()
	user, err := store.Users.GetOrCreateByEmail(email, "Test User")
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

// MustAccount links userID to provider.
func MustAccount(t *testing.T, store *repositories.Store, userID string, provider models.Provider) *models.ProviderAccount {
	t.Helper()
	account := &models.ProviderAccount{
		UserID:         userID,
		Provider:       provider,
		ProviderUserID: string(provider) + "-" + userID,
		DisplayName:    "listener",
	}
	if err := store.Accounts.Upsert(account); err != nil {
		t.Fatalf("failed to create account: %v", err)
	}
	return account
}

// MustTrack stores a track with the given provider id.
func MustTrack(t *testing.T, store *repositories.Store, provider models.Provider, id, name, artist string) *models.Track {
	t.Helper()
	track := &models.Track{
		Provider:        provider,
		ProviderTrackID: id,
		Name:            name,
		Artist:          artist,
		ExternalURL:     "https://example.test/" + id,
		IsPlayable:      true,
	}
	if err := store.Tracks.Create(track); err != nil {
		t.Fatalf("failed to create track: %v", err)
	}
	return track
}

// MockProvider is a scriptable [services.Provider].
type MockProvider struct {
	mu sync.Mutex

	Provider      models.Provider
	Profile       *services.Profile
	Remote        []services.RemotePlaylist
	Items         map[string][]services.RemoteTrack
	SearchResults []services.RemoteTrack
	Playback      *services.PlaybackInfo
	FullPlayback  bool

	Err      error // returned by every fallible call when set
	ItemsErr error // returned by PlaylistItems only
	Calls    []string
}

func (m *MockProvider) record(call string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, call)
	return m.Err
}

// CallCount reports how many times call was made.
func (m *MockProvider) CallCount(call string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c == call {
			n++
		}
	}
	return n
}

func (m *MockProvider) Kind() models.Provider { return m.Provider }

func (m *MockProvider) CurrentUser(context.Context) (*services.Profile, error) {
	if err := m.record("CurrentUser"); err != nil {
		return nil, err
	}
	if m.Profile == nil {
		return &services.Profile{ID: "remote-user", DisplayName: "Remote User"}, nil
	}
	return m.Profile, nil
}

func (m *MockProvider) Playlists(context.Context) ([]services.RemotePlaylist, error) {
	if err := m.record("Playlists"); err != nil {
		return nil, err
	}
	return m.Remote, nil
}

func (m *MockProvider) PlaylistItems(_ context.Context, playlistID string) ([]services.RemoteTrack, error) {
	if err := m.record("PlaylistItems"); err != nil {
		return nil, err
	}
	if m.ItemsErr != nil {
		return nil, m.ItemsErr
	}
	return m.Items[playlistID], nil
}

func (m *MockProvider) SearchTracks(context.Context, string, services.SearchOptions) ([]services.RemoteTrack, error) {
	if err := m.record("SearchTracks"); err != nil {
		return nil, err
	}
	return m.SearchResults, nil
}

func (m *MockProvider) CreatePlaylist(_ context.Context, name, description string) (*services.RemotePlaylist, error) {
	if err := m.record("CreatePlaylist"); err != nil {
		return nil, err
	}
	return &services.RemotePlaylist{ID: "new-" + name, Name: name, Description: description, IsOwner: true}, nil
}

func (m *MockProvider) AddTracks(context.Context, string, []string) error {
	return m.record("AddTracks")
}

func (m *MockProvider) RemoveTracks(context.Context, string, []string) error {
	return m.record("RemoveTracks")
}

func (m *MockProvider) ReorderTracks(context.Context, string, int, int, int) error {
	return m.record("ReorderTracks")
}

func (m *MockProvider) PlaybackInfo(_ context.Context, trackID string) services.PlaybackInfo {
	if err := m.record("PlaybackInfo"); err != nil || m.Playback == nil {
		return services.PlaybackInfo{Type: services.PlaybackExternal, ExternalURL: m.ExternalURL(trackID)}
	}
	return *m.Playback
}

func (m *MockProvider) ExternalURL(trackID string) string {
	return "https://" + string(m.Provider) + ".test/track/" + trackID
}

func (m *MockProvider) SupportsFullPlayback(context.Context) bool { return m.FullPlayback }

// MockAuthenticator is a [services.Authenticator] accepting one code.
type MockAuthenticator struct {
	Code  string
	Token *oauth2.Token
	Err   error
}

func (m *MockAuthenticator) AuthURL(state string) string {
	return "https://auth.test/authorize?state=" + state
}

func (m *MockAuthenticator) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if code != m.Code {
		return nil, shared.ErrAuthFailed
	}
	if m.Token != nil {
		return m.Token, nil
	}
	return &oauth2.Token{
		AccessToken:  "access-" + code,
		RefreshToken: "refresh-" + code,
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}, nil
}

func (m *MockAuthenticator) Refresh(_ context.Context, refreshToken string) (*oauth2.Token, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return &oauth2.Token{AccessToken: "refreshed", RefreshToken: refreshToken, Expiry: time.Now().Add(time.Hour)}, nil
}

// StaticSessions serves the same adapter for every account of a provider.
type StaticSessions map[models.Provider]services.Provider

func (s StaticSessions) Session(_ context.Context, account *models.ProviderAccount) (services.Provider, error) {
	p, ok := s[account.Provider]
	if !ok {
		return nil, shared.ErrUnsupportedProvider
	}
	return p, nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
