package unified

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunelink/internal/duplicates"
	"github.com/desertthunder/tunelink/internal/models"
	"github.com/desertthunder/tunelink/internal/repositories"
	"github.com/desertthunder/tunelink/internal/services"
	"github.com/desertthunder/tunelink/internal/shared"
	tu "github.com/desertthunder/tunelink/internal/testing"
)

type fakeSessions map[models.Provider]services.Provider

func (f fakeSessions) SessionFor(_ context.Context, _ string, p models.Provider) (services.Provider, *models.ProviderAccount, error) {
	adapter, ok := f[p]
	if !ok {
		return nil, nil, shared.ErrNotConnected
	}
	return adapter, &models.ProviderAccount{Provider: p}, nil
}

func newService(t *testing.T, sessions fakeSessions) (*Service, *repositories.Store, *models.User) {
	t.Helper()
	store := tu.MustStore(t)
	user := tu.MustUser(t, store, "listener@example.com")
	return New(store, sessions, log.New(io.Discard)), store, user
}

func positions(items []*models.UnifiedItem) map[string]int {
	out := make(map[string]int, len(items))
	for _, it := range items {
		out[it.TrackID] = it.Position
	}
	return out
}

func trackOrder(items []*models.UnifiedItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Track.Name
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPlaylists(t *testing.T) {
	t.Run("Create List Update Delete", func(t *testing.T) {
		svc, _, user := newService(t, nil)

		p, err := svc.Create(user.ID, "  Road Trip ", "long drives")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if p.Name != "Road Trip" || p.TrackCount != 0 {
			t.Errorf("unexpected playlist %+v", p)
		}

		name, desc := "Road Trip 2", ""
		updated, err := svc.Update(user.ID, p.ID, Changes{Name: &name, Description: &desc})
		if err != nil {
			t.Fatalf("update failed: %v", err)
		}
		if updated.Name != name || updated.Description != "" {
			t.Errorf("unexpected update %+v", updated)
		}

		blank := "   "
		kept, err := svc.Update(user.ID, p.ID, Changes{Name: &blank})
		if err != nil || kept.Name != name {
			t.Errorf("expected blank name to be ignored, got %+v (%v)", kept, err)
		}

		list, err := svc.List(user.ID)
		if err != nil || len(list) != 1 {
			t.Fatalf("expected one playlist, got %d (%v)", len(list), err)
		}

		if err := svc.Delete(user.ID, p.ID); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if _, err := svc.Get(user.ID, p.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
	})

	t.Run("Requires Name", func(t *testing.T) {
		svc, _, user := newService(t, nil)
		if _, err := svc.Create(user.ID, " ", ""); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Other Users Get Not Found", func(t *testing.T) {
		svc, store, user := newService(t, nil)
		other := tu.MustUser(t, store, "other@example.com")
		p, _ := svc.Create(user.ID, "Mine", "")
		track := tu.MustTrack(t, store, models.Spotify, "t1", "Song", "Band")

		if _, err := svc.Get(other.ID, p.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("get: expected ErrNotFound, got %v", err)
		}
		if _, err := svc.AddTracks(other.ID, p.ID, []string{track.ID}, nil); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("add: expected ErrNotFound, got %v", err)
		}
		if err := svc.Delete(other.ID, p.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("delete: expected ErrNotFound, got %v", err)
		}
	})
}

func TestItems(t *testing.T) {
	setup := func(t *testing.T) (*Service, *repositories.Store, *models.User, *models.UnifiedPlaylist, []*models.Track) {
		svc, store, user := newService(t, nil)
		p, err := svc.Create(user.ID, "Mix", "")
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		tracks := []*models.Track{
			tu.MustTrack(t, store, models.Spotify, "a", "A", "X"),
			tu.MustTrack(t, store, models.SoundCloud, "b", "B", "Y"),
			tu.MustTrack(t, store, models.Spotify, "c", "C", "Z"),
		}
		return svc, store, user, p, tracks
	}

	t.Run("Append Then Insert", func(t *testing.T) {
		svc, _, user, p, tracks := setup(t)

		added, err := svc.AddTracks(user.ID, p.ID, []string{tracks[0].ID, tracks[2].ID}, nil)
		if err != nil {
			t.Fatalf("append failed: %v", err)
		}
		if len(added) != 2 || added[0].Position != 0 || added[1].Position != 1 {
			t.Errorf("unexpected appended items %+v", added)
		}

		at := 1
		added, err = svc.AddTracks(user.ID, p.ID, []string{tracks[1].ID}, &at)
		if err != nil {
			t.Fatalf("insert failed: %v", err)
		}
		if len(added) != 1 || added[0].TrackID != tracks[1].ID || added[0].Position != 1 {
			t.Errorf("unexpected inserted item %+v", added)
		}

		detail, _ := svc.Get(user.ID, p.ID)
		if got := trackOrder(detail.Items); !equal(got, []string{"A", "B", "C"}) {
			t.Errorf("expected A B C, got %v", got)
		}
		if detail.Playlist.TrackCount != 3 {
			t.Errorf("expected track count 3, got %d", detail.Playlist.TrackCount)
		}

		list, _ := svc.List(user.ID)
		if list[0].TrackCount != 3 {
			t.Errorf("expected listed track count 3, got %d", list[0].TrackCount)
		}
	})

	t.Run("Unknown Track Changes Nothing", func(t *testing.T) {
		svc, _, user, p, tracks := setup(t)
		if _, err := svc.AddTracks(user.ID, p.ID, []string{tracks[0].ID}, nil); err != nil {
			t.Fatalf("append failed: %v", err)
		}

		at := 0
		_, err := svc.AddTracks(user.ID, p.ID, []string{tracks[1].ID, "missing"}, &at)
		if !errors.Is(err, shared.ErrTrackNotFound) {
			t.Fatalf("expected ErrTrackNotFound, got %v", err)
		}

		detail, _ := svc.Get(user.ID, p.ID)
		if len(detail.Items) != 1 || detail.Items[0].Position != 0 {
			t.Errorf("expected untouched playlist, got %+v", detail.Items)
		}
	})

	t.Run("Position Out Of Range", func(t *testing.T) {
		svc, _, user, p, tracks := setup(t)
		at := 5
		if _, err := svc.AddTracks(user.ID, p.ID, []string{tracks[0].ID}, &at); !errors.Is(err, shared.ErrInvalidPosition) {
			t.Errorf("expected ErrInvalidPosition, got %v", err)
		}
	})

	t.Run("Remove Collapses Positions", func(t *testing.T) {
		svc, _, user, p, tracks := setup(t)
		added, _ := svc.AddTracks(user.ID, p.ID, []string{tracks[0].ID, tracks[1].ID, tracks[2].ID}, nil)

		if err := svc.RemoveItem(user.ID, p.ID, added[0].ID); err != nil {
			t.Fatalf("remove failed: %v", err)
		}
		detail, _ := svc.Get(user.ID, p.ID)
		got := positions(detail.Items)
		if len(got) != 2 || got[tracks[1].ID] != 0 || got[tracks[2].ID] != 1 {
			t.Errorf("unexpected positions %v", got)
		}

		if err := svc.RemoveItem(user.ID, p.ID, "missing"); !errors.Is(err, shared.ErrItemNotFound) {
			t.Errorf("expected ErrItemNotFound, got %v", err)
		}
	})

	t.Run("Move", func(t *testing.T) {
		svc, _, user, p, tracks := setup(t)
		added, _ := svc.AddTracks(user.ID, p.ID, []string{tracks[0].ID, tracks[1].ID, tracks[2].ID}, nil)

		tests := []struct {
			name  string
			item  string
			to    int
			order []string
		}{
			{"forward", added[0].ID, 2, []string{"B", "C", "A"}},
			{"backward", added[0].ID, 0, []string{"A", "B", "C"}},
			{"same position", added[1].ID, 1, []string{"A", "B", "C"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				items, err := svc.MoveItem(user.ID, p.ID, tt.item, tt.to)
				if err != nil {
					t.Fatalf("move failed: %v", err)
				}
				if got := trackOrder(items); !equal(got, tt.order) {
					t.Errorf("expected %v, got %v", tt.order, got)
				}
			})
		}

		if _, err := svc.MoveItem(user.ID, p.ID, added[0].ID, 3); !errors.Is(err, shared.ErrInvalidPosition) {
			t.Errorf("expected ErrInvalidPosition, got %v", err)
		}
	})

	t.Run("Duplicates", func(t *testing.T) {
		svc, store, user, p, tracks := setup(t)
		again := tu.MustTrack(t, store, models.SoundCloud, "a2", "a!", "x")
		if _, err := svc.AddTracks(user.ID, p.ID, []string{tracks[0].ID, tracks[1].ID, again.ID}, nil); err != nil {
			t.Fatalf("add failed: %v", err)
		}

		groups, err := svc.Duplicates(user.ID, p.ID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(groups) != 1 || groups[0].Reason != duplicates.ReasonNameArtist || len(groups[0].Items) != 2 {
			t.Errorf("unexpected groups %+v", groups)
		}
	})
}

func TestSearchTracks(t *testing.T) {
	ctx := context.Background()

	spotify := &tu.MockProvider{
		Provider:      models.Spotify,
		SearchResults: []services.RemoteTrack{{ID: "s1", Name: "Hit", Artist: "Star", IsPlayable: true}},
	}
	soundcloud := &tu.MockProvider{Provider: models.SoundCloud, Err: errors.New("search down")}

	svc, store, user := newService(t, fakeSessions{models.Spotify: spotify, models.SoundCloud: soundcloud})
	tu.MustAccount(t, store, user.ID, models.Spotify)
	tu.MustAccount(t, store, user.ID, models.SoundCloud)

	t.Run("Failing Provider Yields Empty List", func(t *testing.T) {
		res, err := svc.SearchTracks(ctx, user.ID, "hit", "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(res.Results[models.Spotify]) != 1 || res.Results[models.Spotify][0].ID == "" {
			t.Errorf("expected one stored spotify track, got %+v", res.Results[models.Spotify])
		}
		if got := res.Results[models.SoundCloud]; got == nil || len(got) != 0 {
			t.Errorf("expected empty soundcloud list, got %v", got)
		}

		stored, err := store.Tracks.GetByProviderID(models.Spotify, "s1")
		if err != nil || stored.ID != res.Results[models.Spotify][0].ID {
			t.Errorf("expected search hit cached, got %+v (%v)", stored, err)
		}
	})

	t.Run("Failures Are Logged", func(t *testing.T) {
		var buf bytes.Buffer
		logged := New(store, fakeSessions{models.Spotify: spotify, models.SoundCloud: soundcloud}, log.New(&buf))
		res, err := logged.SearchTracks(ctx, user.ID, "hit", "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(res.Results[models.Spotify]) != 1 {
			t.Errorf("expected spotify results kept, got %+v", res.Results)
		}
		if out := buf.String(); !strings.Contains(out, "provider search failed") || !strings.Contains(out, "soundcloud: search down") {
			t.Errorf("expected soundcloud failure in log, got %q", out)
		}
	})

	t.Run("Repeated Search Reuses Tracks", func(t *testing.T) {
		first, _ := svc.SearchTracks(ctx, user.ID, "hit", models.Spotify)
		second, _ := svc.SearchTracks(ctx, user.ID, "hit", models.Spotify)
		if first.Results[models.Spotify][0].ID != second.Results[models.Spotify][0].ID {
			t.Error("expected the same local track id")
		}
	})

	t.Run("Provider Filter", func(t *testing.T) {
		before := soundcloud.CallCount("SearchTracks")
		if _, err := svc.SearchTracks(ctx, user.ID, "hit", models.Spotify); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if soundcloud.CallCount("SearchTracks") != before {
			t.Error("expected soundcloud not to be searched")
		}
	})

	t.Run("Empty Query", func(t *testing.T) {
		if _, err := svc.SearchTracks(ctx, user.ID, "  ", ""); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}

func TestPlaybackInfo(t *testing.T) {
	ctx := context.Background()

	t.Run("Provider Answer", func(t *testing.T) {
		adapter := &tu.MockProvider{
			Provider: models.Spotify,
			Playback: &services.PlaybackInfo{Type: services.PlaybackWeb, URI: "spotify:track:t1"},
		}
		svc, store, user := newService(t, fakeSessions{models.Spotify: adapter})
		track := tu.MustTrack(t, store, models.Spotify, "t1", "Song", "Band")

		pb, err := svc.PlaybackInfo(ctx, user.ID, track.ID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if pb.Playback.Type != services.PlaybackWeb || pb.Playback.ExternalURL != track.ExternalURL {
			t.Errorf("unexpected playback %+v", pb.Playback)
		}
	})

	t.Run("Falls Back When Not Connected", func(t *testing.T) {
		svc, store, user := newService(t, fakeSessions{})
		track := tu.MustTrack(t, store, models.SoundCloud, "t1", "Song", "Band")

		pb, err := svc.PlaybackInfo(ctx, user.ID, track.ID)
		if err != nil {
			t.Fatalf("expected fallback, got %v", err)
		}
		if pb.Playback.Type != services.PlaybackExternal || pb.Playback.ExternalURL != track.ExternalURL {
			t.Errorf("unexpected playback %+v", pb.Playback)
		}
	})

	t.Run("Unknown Track", func(t *testing.T) {
		svc, _, user := newService(t, fakeSessions{})
		if _, err := svc.PlaybackInfo(ctx, user.ID, "missing"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestMirrors(t *testing.T) {
	svc, store, user := newService(t, nil)
	account := tu.MustAccount(t, store, user.ID, models.Spotify)
	for _, name := range []string{"Zeta", "Alpha"} {
		pl := &models.Playlist{AccountID: account.ID, Provider: models.Spotify, ProviderPlaylistID: name, Name: name}
		if err := store.Playlists.Create(pl); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}
	}

	page, err := svc.Mirrors(user.ID, "", 1, 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if page.Total != 2 || page.TotalPages != 2 || len(page.Playlists) != 1 || page.Playlists[0].Name != "Alpha" {
		t.Errorf("unexpected page %+v", page)
	}

	mirror, err := svc.Mirror(user.ID, page.Playlists[0].ID)
	if err != nil || mirror.Playlist.Name != "Alpha" || len(mirror.Items) != 0 {
		t.Errorf("unexpected mirror %+v (%v)", mirror, err)
	}

	other := tu.MustUser(t, store, "other@example.com")
	if _, err := svc.Mirror(other.ID, page.Playlists[0].ID); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
