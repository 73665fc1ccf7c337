package formatter

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/tunelink/internal/duplicates"
	"github.com/desertthunder/tunelink/internal/models"
	"github.com/desertthunder/tunelink/internal/tasks"
	tu "github.com/desertthunder/tunelink/internal/testing"
	"github.com/desertthunder/tunelink/internal/unified"
)

func sampleExport() *Export {
	return &Export{
		ID:          "test123",
		Name:        "Test Playlist",
		Description: "A test playlist",
		Provider:    models.Spotify,
		Public:      true,
		Tracks: []*models.Track{
			{
				Provider:        models.Spotify,
				ProviderTrackID: "track1",
				Name:            "Song One",
				Artist:          "Artist One",
				Album:           "Album One",
				DurationMS:      180000,
				ISRC:            "USRC12345678",
			},
			{
				Provider:        models.SoundCloud,
				ProviderTrackID: "track2",
				Name:            "Song Two",
				Artist:          "Artist Two",
				DurationMS:      245500,
			},
		},
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(sampleExport())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "ID,Provider,Title,Artist,Album,Duration,ISRC,URL") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "track1,spotify,Song One,Artist One,Album One,180,USRC12345678") {
			t.Errorf("CSV missing track1 row, got: %s", output)
		}
		if !strings.Contains(output, "track2,soundcloud,Song Two") {
			t.Errorf("CSV missing track2 row")
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		t.Run("without cover image", func(t *testing.T) {
			data, err := ExportToMarkdown(sampleExport(), "")
			if err != nil {
				t.Fatalf("ExportToMarkdown failed: %v", err)
			}

			output := string(data)
			for _, want := range []string{
				"# Test Playlist",
				"**Description**: A test playlist",
				"**Tracks**: 2",
				"**Provider**: Spotify",
				"**Visibility**: Public",
				"1. Artist One - Song One (Album One) [3:00] · Spotify",
				"2. Artist Two - Song Two [4:05] · SoundCloud",
			} {
				if !strings.Contains(output, want) {
					t.Errorf("Markdown missing %q, got:\n%s", want, output)
				}
			}
			if strings.Contains(output, "![Cover]") {
				t.Errorf("Markdown should not have a cover")
			}
		})

		t.Run("with cover image", func(t *testing.T) {
			data, _ := ExportToMarkdown(sampleExport(), "cover.jpg")
			if !strings.Contains(string(data), "![Cover](cover.jpg)") {
				t.Errorf("Markdown missing cover image")
			}
		})

		t.Run("unified playlist has no provider line", func(t *testing.T) {
			export := sampleExport()
			export.Provider = ""
			data, _ := ExportToMarkdown(export, "")
			if strings.Contains(string(data), "**Provider**") {
				t.Errorf("Markdown should not name a provider")
			}
		})
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(sampleExport())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Playlist: Test Playlist") {
			t.Errorf("Text missing playlist name")
		}
		if !strings.Contains(output, "1. Artist One - Song One") || !strings.Contains(output, "2. Artist Two - Song Two") {
			t.Errorf("Text missing tracks, got:\n%s", output)
		}
	})

	t.Run("ToMetadataJSON", func(t *testing.T) {
		data, err := ToMetadataJSON(sampleExport())
		if err != nil {
			t.Fatalf("ToMetadataJSON failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, `"id": "test123"`) || !strings.Contains(output, `"name": "Test Playlist"`) {
			t.Errorf("JSON missing fields, got: %s", output)
		}
		if strings.Contains(output, "Song One") {
			t.Errorf("JSON should not include tracks")
		}
	})

	t.Run("FromUnified", func(t *testing.T) {
		p := &models.UnifiedPlaylist{ID: "u1", Name: "Mix"}
		items := []*models.UnifiedItem{
			{ID: "i1", Track: &models.Track{Name: "A"}},
			{ID: "i2"},
		}
		export := FromUnified(p, items)
		if export.Name != "Mix" || export.Provider != "" || len(export.Tracks) != 1 {
			t.Errorf("unexpected export %+v", export)
		}
	})

	t.Run("FromMirror", func(t *testing.T) {
		p := &models.Playlist{ID: "p1", Name: "Mirror", Provider: models.SoundCloud, IsPublic: true, ImageURL: "https://img.test/a.jpg"}
		export := FromMirror(p, []*models.PlaylistItem{{Track: &models.Track{Name: "A"}}})
		if export.Provider != models.SoundCloud || !export.Public || export.ImageURL == "" || len(export.Tracks) != 1 {
			t.Errorf("unexpected export %+v", export)
		}
	})
}

func TestDuration(t *testing.T) {
	tests := []struct {
		ms   int
		want string
	}{
		{0, "-"},
		{59999, "0:59"},
		{180000, "3:00"},
		{3723000, "62:03"},
	}
	for _, tt := range tests {
		if got := Duration(tt.ms); got != tt.want {
			t.Errorf("Duration(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestDownloadImage(t *testing.T) {
	t.Run("EmptyURL", func(t *testing.T) {
		if _, err := DownloadImage(nil, ""); err == nil {
			t.Error("DownloadImage with empty URL should return error")
		}
	})

	t.Run("NonOKStatus", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		if _, err := DownloadImage(srv.Client(), srv.URL); err == nil {
			t.Error("expected error for 404")
		}
	})
}

func TestWriters(t *testing.T) {
	t.Run("WriteCSVExport", func(t *testing.T) {
		t.Run("WithDefaultPath", func(t *testing.T) {
			tempDir := t.TempDir()
			originalDir := tu.MustGetwd(t)
			tu.MustChdir(t, tempDir)
			defer tu.MustChdir(t, originalDir)

			result, err := WriteCSVExport(sampleExport(), "")
			if err != nil {
				t.Fatalf("WriteCSVExport failed: %v", err)
			}

			if result.TracksFile != "test123_tracks.csv" {
				t.Errorf("Expected tracks file 'test123_tracks.csv', got '%s'", result.TracksFile)
			}
			if result.MetadataFile != "test123_metadata.json" {
				t.Errorf("Expected metadata file 'test123_metadata.json', got '%s'", result.MetadataFile)
			}

			tu.AssertFileExists(t, result.TracksFile)
			tu.AssertFileExists(t, result.MetadataFile)

			if csvContent := tu.MustReadFile(t, result.TracksFile); !strings.Contains(csvContent, "Song One") {
				t.Errorf("CSV missing track data")
			}
		})

		t.Run("WithCustomPath", func(t *testing.T) {
			base := filepath.Join(t.TempDir(), "custom_export")

			result, err := WriteCSVExport(sampleExport(), base)
			if err != nil {
				t.Fatalf("WriteCSVExport failed: %v", err)
			}
			if result.TracksFile != base+"_tracks.csv" {
				t.Errorf("Expected '%s_tracks.csv', got '%s'", base, result.TracksFile)
			}
			tu.AssertFileExists(t, result.MetadataFile)
		})
	})

	t.Run("WriteMarkdownExport", func(t *testing.T) {
		t.Run("WithCover", func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("jpeg-bytes"))
			}))
			defer srv.Close()

			export := sampleExport()
			export.ImageURL = srv.URL + "/cover"
			dir := filepath.Join(t.TempDir(), "out")

			result, err := WriteMarkdownExport(srv.Client(), export, dir)
			if err != nil {
				t.Fatalf("WriteMarkdownExport failed: %v", err)
			}
			if result.CoverImage == "" || len(result.Files) != 2 || len(result.Warnings) != 0 {
				t.Errorf("unexpected result %+v", result)
			}
			if content := tu.MustReadFile(t, filepath.Join(dir, "README.md")); !strings.Contains(content, "![Cover](cover.jpg)") {
				t.Errorf("Markdown missing cover")
			}
		})

		t.Run("CoverFailureIsAWarning", func(t *testing.T) {
			srv := httptest.NewServer(http.NotFoundHandler())
			defer srv.Close()

			export := sampleExport()
			export.ImageURL = srv.URL
			result, err := WriteMarkdownExport(srv.Client(), export, filepath.Join(t.TempDir(), "out"))
			if err != nil {
				t.Fatalf("WriteMarkdownExport failed: %v", err)
			}
			if result.CoverImage != "" || len(result.Warnings) != 1 || len(result.Files) != 1 {
				t.Errorf("unexpected result %+v", result)
			}
		})
	})

	t.Run("WriteTextExport", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tracks.txt")
		got, err := WriteTextExport(sampleExport(), path)
		if err != nil {
			t.Fatalf("WriteTextExport failed: %v", err)
		}
		if got != path {
			t.Errorf("expected %s, got %s", path, got)
		}
		tu.AssertFileExists(t, path)
	})

	t.Run("WriteFailure", func(t *testing.T) {
		if _, err := WriteTextExport(sampleExport(), filepath.Join(t.TempDir(), "missing", "tracks.txt")); err == nil {
			t.Error("expected error writing into a missing directory")
		}
	})
}

func TestTables(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := "spotify API error (status 503)"

	t.Run("ProvidersTable", func(t *testing.T) {
		out := ProvidersTable([]tasks.ProviderStatus{
			{Provider: models.Spotify, Name: "Spotify", Connected: true, Account: &models.ProviderAccount{DisplayName: "DJ", CreatedAt: now}},
			{Provider: models.SoundCloud, Name: "SoundCloud"},
		})
		for _, want := range []string{"Provider", "Spotify", "DJ", "SoundCloud", "✓", "✗"} {
			if !strings.Contains(out, want) {
				t.Errorf("providers table missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("RunsTable", func(t *testing.T) {
		out := RunsTable([]*models.SyncRun{
			{ID: "0123456789abcdef", Type: models.SyncPull, Status: models.StatusCompleted, Counts: models.SyncCounts{Processed: 12, Added: 3}, StartedAt: &now},
		})
		for _, want := range []string{"01234567", "pull", "completed", "12"} {
			if !strings.Contains(out, want) {
				t.Errorf("runs table missing %q:\n%s", want, out)
			}
		}
		if strings.Contains(out, "0123456789abcdef") {
			t.Errorf("expected shortened id")
		}
	})

	t.Run("RunSummary", func(t *testing.T) {
		out := RunSummary(&models.SyncRun{ID: "r1", Status: models.StatusFailed, ErrorMessage: &msg})
		if !strings.Contains(out, "r1") || !strings.Contains(out, msg) {
			t.Errorf("unexpected summary:\n%s", out)
		}
	})

	t.Run("ConflictsTable", func(t *testing.T) {
		res := models.ResolutionIgnore
		out := ConflictsTable([]*models.ConflictView{{
			Conflict: models.Conflict{
				ID:         "c1",
				SyncRunID:  "r1",
				Type:       models.ConflictSyncFailed,
				Details:    map[string]any{"provider": "soundcloud", "error": "boom"},
				Resolved:   true,
				Resolution: &res,
			},
		}})
		for _, want := range []string{"sync_failed", "error=boom provider=soundcloud", "ignore"} {
			if !strings.Contains(out, want) {
				t.Errorf("conflicts table missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("MirrorsTable", func(t *testing.T) {
		out := MirrorsTable([]*models.Playlist{{ID: "p1", Provider: models.SoundCloud, Name: "Sets", TrackCount: 4}})
		for _, want := range []string{"SoundCloud", "Sets", "4", "Private"} {
			if !strings.Contains(out, want) {
				t.Errorf("mirrors table missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("ItemsAndDuplicates", func(t *testing.T) {
		items := []*models.UnifiedItem{
			{ID: "i1", Position: 0, IsAvailable: true, Track: &models.Track{Provider: models.Spotify, Name: "Hello", Artist: "Adele", DurationMS: 295000}},
			{ID: "i2", Position: 1, Track: &models.Track{Provider: models.SoundCloud, Name: "hello", Artist: "adele"}},
		}
		out := ItemsTable(items)
		if !strings.Contains(out, "4:55") || !strings.Contains(out, "i2") {
			t.Errorf("items table missing data:\n%s", out)
		}

		out = DuplicatesTable(duplicates.Find(items))
		if !strings.Contains(out, duplicates.ReasonNameArtist) || !strings.Contains(out, "SoundCloud") {
			t.Errorf("duplicates table missing data:\n%s", out)
		}
	})

	t.Run("SearchResults", func(t *testing.T) {
		out := SearchResults(&unified.SearchResult{
			Query: "hello",
			Results: map[models.Provider][]*models.Track{
				models.Spotify:    {{ID: "t1", Name: "Hello", Artist: "Adele"}},
				models.SoundCloud: {},
			},
		})
		if !strings.Contains(out, "Spotify (1)") || !strings.Contains(out, "SoundCloud (0)") || !strings.Contains(out, "no results") {
			t.Errorf("unexpected search output:\n%s", out)
		}
	})
}
