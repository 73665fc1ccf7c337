package formatter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/tunelink/internal/duplicates"
	"github.com/desertthunder/tunelink/internal/models"
	"github.com/desertthunder/tunelink/internal/tasks"
	"github.com/desertthunder/tunelink/internal/unified"
)

const timeLayout = "2006-01-02 15:04"

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(Styles.Border).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return Styles.Header
			}
			return Styles.Cell
		}).
		Headers(headers...)
}

func when(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func check(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

// ProvidersTable lists each provider with its connection state.
func ProvidersTable(statuses []tasks.ProviderStatus) string {
	t := newTable("Provider", "Connected", "Account", "Since")
	for _, s := range statuses {
		account, since := "-", "-"
		if s.Account != nil {
			account = s.Account.DisplayName
			if account == "" {
				account = s.Account.ProviderUserID
			}
			since = s.Account.CreatedAt.Local().Format(timeLayout)
		}
		t.Row(s.Name, check(s.Connected), account, since)
	}
	return t.String()
}

// RunsTable lists sync runs, one per row.
func RunsTable(runs []*models.SyncRun) string {
	t := newTable("ID", "Type", "Status", "Processed", "Added", "Updated", "Started", "Completed")
	for _, r := range runs {
		t.Row(
			short(r.ID),
			string(r.Type),
			Status(r.Status),
			strconv.Itoa(r.Counts.Processed),
			strconv.Itoa(r.Counts.Added),
			strconv.Itoa(r.Counts.Updated),
			when(r.StartedAt),
			when(r.CompletedAt),
		)
	}
	return t.String()
}

// Status colors a run status.
func Status(s models.SyncStatus) string {
	switch s {
	case models.StatusCompleted:
		return Styles.OK.Render(string(s))
	case models.StatusFailed:
		return Styles.Err.Render(string(s))
	case models.StatusRunning:
		return Styles.Warn.Render(string(s))
	default:
		return string(s)
	}
}

// RunSummary describes one finished run in a few lines.
func RunSummary(run *models.SyncRun) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s %s\n", run.ID, Status(run.Status))
	fmt.Fprintf(&b, "Processed: %d  Added: %d  Updated: %d  Removed: %d\n",
		run.Counts.Processed, run.Counts.Added, run.Counts.Updated, run.Counts.Removed)
	if run.ErrorMessage != nil {
		fmt.Fprintf(&b, "%s %s\n", Styles.Err.Render("Error:"), *run.ErrorMessage)
	}
	return b.String()
}

// ConflictsTable lists conflicts with their details flattened to key=value pairs.
func ConflictsTable(conflicts []*models.ConflictView) string {
	t := newTable("ID", "Type", "Run", "Track", "Details", "Resolved")
	for _, c := range conflicts {
		track := "-"
		if c.TrackName != "" {
			track = c.TrackArtist + " - " + c.TrackName
		}
		resolved := check(c.Resolved)
		if c.Resolution != nil {
			resolved += " " + string(*c.Resolution)
		}
		t.Row(short(c.ID), string(c.Type), short(c.SyncRunID), track, Details(c.Details), resolved)
	}
	return t.String()
}

// Details renders a conflict's details sorted by key.
func Details(details map[string]any) string {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, details[k]))
	}
	return strings.Join(parts, " ")
}

// MirrorsTable lists mirrored provider playlists.
func MirrorsTable(playlists []*models.Playlist) string {
	t := newTable("ID", "Provider", "Name", "Tracks", "Visibility", "Last Synced")
	for _, p := range playlists {
		t.Row(short(p.ID), p.Provider.DisplayName(), p.Name, strconv.Itoa(p.TrackCount), Visibility(p.IsPublic), when(p.LastSyncedAt))
	}
	return t.String()
}

// UnifiedTable lists unified playlists.
func UnifiedTable(playlists []*models.UnifiedPlaylist) string {
	t := newTable("ID", "Name", "Tracks", "Updated")
	for _, p := range playlists {
		updated := p.UpdatedAt
		t.Row(p.ID, p.Name, strconv.Itoa(p.TrackCount), when(&updated))
	}
	return t.String()
}

// ItemsTable lists unified playlist items in position order.
func ItemsTable(items []*models.UnifiedItem) string {
	t := newTable("#", "Item", "Title", "Artist", "Provider", "Length", "Available")
	for _, it := range items {
		var track models.Track
		if it.Track != nil {
			track = *it.Track
		}
		t.Row(
			strconv.Itoa(it.Position),
			it.ID,
			track.Name,
			track.Artist,
			track.Provider.DisplayName(),
			Duration(track.DurationMS),
			check(it.IsAvailable),
		)
	}
	return t.String()
}

// TracksTable lists stored tracks, for search results.
func TracksTable(tracks []*models.Track) string {
	t := newTable("ID", "Title", "Artist", "Album", "Length", "Playable")
	for _, tr := range tracks {
		t.Row(tr.ID, tr.Name, tr.Artist, tr.Album, Duration(tr.DurationMS), check(tr.IsPlayable))
	}
	return t.String()
}

// SearchResults renders one table per provider in display order.
func SearchResults(res *unified.SearchResult) string {
	var b strings.Builder
	for _, p := range models.Providers {
		tracks := res.Results[p]
		fmt.Fprintf(&b, "%s\n", Styles.Title.Render(fmt.Sprintf("%s (%d)", p.DisplayName(), len(tracks))))
		if len(tracks) == 0 {
			b.WriteString(Styles.Help.Render("no results") + "\n\n")
			continue
		}
		b.WriteString(TracksTable(tracks) + "\n\n")
	}
	return b.String()
}

// DuplicatesTable lists duplicate groups, one row per item.
func DuplicatesTable(groups []duplicates.Group) string {
	t := newTable("Group", "Reason", "#", "Title", "Artist", "Provider")
	for i, g := range groups {
		for _, it := range g.Items {
			t.Row(
				strconv.Itoa(i+1),
				g.Reason,
				strconv.Itoa(it.Position),
				it.Track.Name,
				it.Track.Artist,
				it.Track.Provider.DisplayName(),
			)
		}
	}
	return t.String()
}
