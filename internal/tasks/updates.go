package tasks

import (
	"fmt"

	"github.com/desertthunder/tunelink/internal/models"
)

// ProgressUpdate represents a progress event during a sync.
//
// Used to send real-time updates to the CLI for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	FetchAccounts Phase = iota
	FetchPlaylists
	SavePlaylists
	FetchTracks
	SaveTracks
	AccountFailed
	Finished
)

func (p Phase) String() string {
	switch p {
	case FetchAccounts:
		return "fetch_accounts"
	case FetchPlaylists:
		return "fetch_playlists"
	case SavePlaylists:
		return "save_playlists"
	case FetchTracks:
		return "fetch_tracks"
	case SaveTracks:
		return "save_tracks"
	case AccountFailed:
		return "account_failed"
	case Finished:
		return "finished"
	default:
		return ""
	}
}

func fetchAccountsUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchAccounts,
		Total:   total,
		Message: fmt.Sprintf("Syncing %d connected account(s)...", total),
	}
}

func fetchPlaylistsUpdate(step, total int, p models.Provider) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Fetching playlists from %s...", p),
	}
}

func savePlaylistsUpdate(step, total int, p models.Provider, counts models.SyncCounts) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SavePlaylists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("✓ %s: %d playlists (%d new, %d updated)", p, counts.Processed, counts.Added, counts.Updated),
		Data:    counts,
	}
}

func accountFailedUpdate(step, total int, p models.Provider, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AccountFailed,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("✗ %s: %v", p, err),
	}
}

func fetchTracksUpdate(step, total int, pl *models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching tracks: %s...", step, total, pl.Name),
	}
}

func saveTracksUpdate(step, total int, pl *models.Playlist, counts models.SyncCounts) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SaveTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d tracks)", step, total, pl.Name, counts.Processed),
		Data:    counts,
	}
}

func finishedUpdate(run *models.SyncRun) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Finished,
		Message: fmt.Sprintf("Sync %s: %s", run.ID, run.Status),
		Data:    run,
	}
}
