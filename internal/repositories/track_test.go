package repositories

import (
	"errors"
	"testing"

	"github.com/desertthunder/tunelink/internal/models"
	"github.com/desertthunder/tunelink/internal/shared"
)

func TestTrackRepository(t *testing.T) {
	t.Run("GetByProviderID", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		track := createTrack(t, store, models.Spotify, "sp-1", "Song")

		got, err := store.Tracks.GetByProviderID(models.Spotify, "sp-1")
		if err != nil {
			t.Fatalf("failed to get track: %v", err)
		}
		if got.ID != track.ID {
			t.Errorf("expected %s, got %s", track.ID, got.ID)
		}

		if _, err := store.Tracks.GetByProviderID(models.SoundCloud, "sp-1"); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
	})

	t.Run("ProviderIdentityIsUnique", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		createTrack(t, store, models.Spotify, "sp-1", "Song")

		dup := &models.Track{Provider: models.Spotify, ProviderTrackID: "sp-1", Name: "Other"}
		if err := store.Tracks.Create(dup); err == nil {
			t.Fatal("expected unique constraint violation")
		}
	})

	t.Run("ListByISRC", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		a := &models.Track{Provider: models.Spotify, ProviderTrackID: "sp", Name: "Song", ISRC: "USRC17607839"}
		b := &models.Track{Provider: models.SoundCloud, ProviderTrackID: "sc", Name: "Song", ISRC: "USRC17607839"}
		for _, tr := range []*models.Track{a, b} {
			if err := store.Tracks.Create(tr); err != nil {
				t.Fatalf("failed to create track: %v", err)
			}
		}

		tracks, err := store.Tracks.ListByISRC("USRC17607839")
		if err != nil {
			t.Fatalf("failed to list by isrc: %v", err)
		}
		if len(tracks) != 2 {
			t.Errorf("expected 2 tracks, got %d", len(tracks))
		}
	})

	t.Run("Delete is restricted while referenced", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		user := createUser(t, store, "a@example.com")
		track := createTrack(t, store, models.Spotify, "sp-1", "Song")

		unified := &models.UnifiedPlaylist{UserID: user.ID, Name: "Mine"}
		if err := store.Unified.Create(unified); err != nil {
			t.Fatalf("failed to create unified playlist: %v", err)
		}
		if err := store.Unified.AddItems(unified.ID, []string{track.ID}, nil); err != nil {
			t.Fatalf("failed to add items: %v", err)
		}

		if err := store.Tracks.Delete(track.ID); err == nil {
			t.Fatal("expected foreign key violation deleting a referenced track")
		}
	})

	t.Run("MissingIDs", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		track := createTrack(t, store, models.Spotify, "sp-1", "Song")

		missing, err := store.Tracks.MissingIDs([]string{"x", track.ID, "y"})
		if err != nil {
			t.Fatalf("failed to check ids: %v", err)
		}
		if len(missing) != 2 || missing[0] != "x" || missing[1] != "y" {
			t.Errorf("expected [x y], got %v", missing)
		}
	})
}

func TestFindOrCreate(t *testing.T) {
	store := NewStore(setupTestDB(t))

	fetched := func() *models.Track {
		return &models.Track{
			Provider:        models.SoundCloud,
			ProviderTrackID: "sc-9",
			Name:            "Night Drive",
			Artist:          "Someone",
			Album:           "LP",
			DurationMS:      200000,
			ImageURL:        "https://img/1.jpg",
			IsPlayable:      true,
		}
	}

	first := fetched()
	change, err := store.Tracks.FindOrCreate(first)
	if err != nil {
		t.Fatalf("failed to find or create: %v", err)
	}
	if change != TrackCreated || first.ID == "" {
		t.Fatalf("expected created track with id, got %v %q", change, first.ID)
	}

	same := fetched()
	change, err = store.Tracks.FindOrCreate(same)
	if err != nil {
		t.Fatalf("failed to find or create: %v", err)
	}
	if change != TrackUnchanged || same.ID != first.ID {
		t.Errorf("expected unchanged %s, got %v %s", first.ID, change, same.ID)
	}

	t.Run("only tracked fields count as changes", func(t *testing.T) {
		albumOnly := fetched()
		albumOnly.Album = "Deluxe"
		change, err := store.Tracks.FindOrCreate(albumOnly)
		if err != nil {
			t.Fatalf("failed to find or create: %v", err)
		}
		if change != TrackUnchanged {
			t.Errorf("album change should not count as an update, got %v", change)
		}
	})

	t.Run("playability change updates and propagates", func(t *testing.T) {
		user := createUser(t, store, "p@example.com")
		unified := &models.UnifiedPlaylist{UserID: user.ID, Name: "Mine"}
		if err := store.Unified.Create(unified); err != nil {
			t.Fatalf("failed to create unified playlist: %v", err)
		}
		if err := store.Unified.AddItems(unified.ID, []string{first.ID}, nil); err != nil {
			t.Fatalf("failed to add items: %v", err)
		}

		gone := fetched()
		gone.IsPlayable = false
		change, err := store.Tracks.FindOrCreate(gone)
		if err != nil {
			t.Fatalf("failed to find or create: %v", err)
		}
		if change != TrackUpdated || gone.ID != first.ID {
			t.Errorf("expected update of %s, got %v %s", first.ID, change, gone.ID)
		}

		items, err := store.Unified.Items(unified.ID)
		if err != nil {
			t.Fatalf("failed to get items: %v", err)
		}
		if len(items) != 1 || items[0].IsAvailable {
			t.Errorf("expected unified item to become unavailable")
		}
	})
}
