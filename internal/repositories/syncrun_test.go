package repositories

import (
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/tunelink/internal/models"
	"github.com/desertthunder/tunelink/internal/shared"
)

func createRun(t *testing.T, store *Store, userID string, status models.SyncStatus, created time.Time) *models.SyncRun {
	t.Helper()
	run := &models.SyncRun{UserID: userID, Type: models.SyncPull, Status: status, StartedAt: &created, CreatedAt: created}
	if err := store.SyncRuns.Create(run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	return run
}

func TestSyncRunRepository(t *testing.T) {
	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

	t.Run("Create and Finish", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		user := createUser(t, store, "a@example.com")
		run := createRun(t, store, user.ID, models.StatusRunning, base)

		msg := "provider exploded"
		done := base.Add(time.Minute)
		run.Status = models.StatusFailed
		run.Counts = models.SyncCounts{Processed: 3, Added: 2, Updated: 1}
		run.ErrorMessage = &msg
		run.CompletedAt = &done
		if err := store.SyncRuns.Finish(run); err != nil {
			t.Fatalf("failed to finish run: %v", err)
		}

		got, err := store.SyncRuns.GetForUser(user.ID, run.ID)
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.Status != models.StatusFailed || got.Counts != run.Counts {
			t.Errorf("unexpected run %+v", got)
		}
		if got.ErrorMessage == nil || *got.ErrorMessage != msg {
			t.Errorf("expected error message to be kept")
		}
		if got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
			t.Errorf("expected completion time %v, got %v", done, got.CompletedAt)
		}

		if _, err := store.SyncRuns.GetForUser("other", run.ID); !errors.Is(err, shared.ErrSyncRunNotFound) {
			t.Errorf("expected ErrSyncRunNotFound, got %v", err)
		}
	})

	t.Run("Finish requires a terminal status", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		user := createUser(t, store, "a@example.com")
		run := createRun(t, store, user.ID, models.StatusRunning, base)

		if err := store.SyncRuns.Finish(run); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("History, Running and LastCompleted", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		user := createUser(t, store, "a@example.com")

		var runs []*models.SyncRun
		for i := range 5 {
			runs = append(runs, createRun(t, store, user.ID, models.StatusRunning, base.Add(time.Duration(i)*time.Hour)))
		}
		for _, i := range []int{0, 1, 3} {
			done := base.Add(time.Duration(i)*time.Hour + time.Minute)
			runs[i].Status = models.StatusCompleted
			runs[i].CompletedAt = &done
			if err := store.SyncRuns.Finish(runs[i]); err != nil {
				t.Fatalf("failed to finish run: %v", err)
			}
		}

		page, total, err := store.SyncRuns.History(user.ID, shared.NewPage(1, 2, 20))
		if err != nil {
			t.Fatalf("failed to get history: %v", err)
		}
		if total != 5 || len(page) != 2 {
			t.Fatalf("expected 2 of 5, got %d of %d", len(page), total)
		}
		if page[0].ID != runs[4].ID || page[1].ID != runs[3].ID {
			t.Errorf("expected newest first")
		}

		running, err := store.SyncRuns.Running(user.ID)
		if err != nil {
			t.Fatalf("failed to get running runs: %v", err)
		}
		if len(running) != 2 {
			t.Errorf("expected 2 running runs, got %d", len(running))
		}

		last, err := store.SyncRuns.LastCompleted(user.ID)
		if err != nil {
			t.Fatalf("failed to get last completed: %v", err)
		}
		if last == nil || last.ID != runs[3].ID {
			t.Errorf("expected run %s, got %+v", runs[3].ID, last)
		}

		none, err := store.SyncRuns.LastCompleted("nobody")
		if err != nil || none != nil {
			t.Errorf("expected no run and no error, got %v %v", none, err)
		}
	})
}

func TestConflictRepository(t *testing.T) {
	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

	t.Run("Create, list and resolve", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		user := createUser(t, store, "a@example.com")
		run := createRun(t, store, user.ID, models.StatusRunning, base)

		conflict := &models.Conflict{
			SyncRunID: run.ID,
			Type:      models.ConflictSyncFailed,
			Details:   map[string]any{"provider": "spotify", "error": "503"},
		}
		if err := store.Conflicts.Create(conflict); err != nil {
			t.Fatalf("failed to create conflict: %v", err)
		}

		unresolved := false
		open, err := store.Conflicts.ListByUser(user.ID, &unresolved)
		if err != nil {
			t.Fatalf("failed to list conflicts: %v", err)
		}
		if len(open) != 1 || open[0].Details["provider"] != "spotify" {
			t.Fatalf("unexpected conflicts %+v", open)
		}

		at := base.Add(time.Hour)
		if err := store.Conflicts.Resolve(conflict.ID, models.ResolutionIgnore, at); err != nil {
			t.Fatalf("failed to resolve: %v", err)
		}

		got, err := store.Conflicts.GetForUser(user.ID, conflict.ID)
		if err != nil {
			t.Fatalf("failed to get conflict: %v", err)
		}
		if !got.Resolved || got.Resolution == nil || *got.Resolution != models.ResolutionIgnore {
			t.Errorf("expected resolved with ignore, got %+v", got)
		}
		if got.ResolvedAt == nil || !got.ResolvedAt.Equal(at) {
			t.Errorf("expected resolved at %v, got %v", at, got.ResolvedAt)
		}

		open, _ = store.Conflicts.ListByUser(user.ID, &unresolved)
		if len(open) != 0 {
			t.Errorf("expected no unresolved conflicts, got %d", len(open))
		}
		all, _ := store.Conflicts.ListByUser(user.ID, nil)
		if len(all) != 1 {
			t.Errorf("expected 1 conflict overall, got %d", len(all))
		}
	})

	t.Run("Ownership follows the run", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		owner := createUser(t, store, "owner@example.com")
		other := createUser(t, store, "other@example.com")
		run := createRun(t, store, owner.ID, models.StatusRunning, base)

		conflict := &models.Conflict{SyncRunID: run.ID, Type: models.ConflictTrackRemoved}
		if err := store.Conflicts.Create(conflict); err != nil {
			t.Fatalf("failed to create conflict: %v", err)
		}

		if _, err := store.Conflicts.GetForUser(other.ID, conflict.ID); !errors.Is(err, shared.ErrConflictNotFound) {
			t.Errorf("expected ErrConflictNotFound, got %v", err)
		}
		list, _ := store.Conflicts.ListByUser(other.ID, nil)
		if len(list) != 0 {
			t.Errorf("expected no conflicts for other user")
		}
	})

	t.Run("Joins unified item summary", func(t *testing.T) {
		store, playlist, ids := setupUnified(t, "Song")
		run := createRun(t, store, playlist.UserID, models.StatusRunning, base)

		itemID := ids["Song"]
		conflict := &models.Conflict{SyncRunID: run.ID, UnifiedItemID: &itemID, Type: models.ConflictTrackUnavailable}
		if err := store.Conflicts.Create(conflict); err != nil {
			t.Fatalf("failed to create conflict: %v", err)
		}

		views, err := store.Conflicts.ListByRun(run.ID)
		if err != nil {
			t.Fatalf("failed to list conflicts: %v", err)
		}
		if len(views) != 1 {
			t.Fatalf("expected 1 conflict, got %d", len(views))
		}
		v := views[0]
		if v.TrackName != "Song" || v.TrackArtist != "Artist Song" || v.UnifiedPlaylistID != playlist.ID || v.UnifiedPlaylistName != "Unified" {
			t.Errorf("unexpected summary %+v", v)
		}
	})

	t.Run("Validation", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		if err := store.Conflicts.Create(&models.Conflict{}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if err := store.Conflicts.Resolve("missing", models.ResolutionKeep, base); !errors.Is(err, shared.ErrConflictNotFound) {
			t.Errorf("expected ErrConflictNotFound, got %v", err)
		}
	})
}
