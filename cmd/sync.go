package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/tunelink/internal/formatter"
	"github.com/desertthunder/tunelink/internal/models"
	"github.com/desertthunder/tunelink/internal/shared"
	"github.com/desertthunder/tunelink/internal/tasks"
	"github.com/urfave/cli/v3"
)

type syncFunc func(ctx context.Context, userID string, progress chan<- tasks.ProgressUpdate) (*models.SyncRun, error)

// runSync executes fn while printing progress, unless --json asks for the run alone.
func (r *Runner) runSync(ctx context.Context, cmd *cli.Command, fn syncFunc) error {
	user, err := r.user(cmd)
	if err != nil {
		return err
	}

	var progress chan tasks.ProgressUpdate
	var done <-chan struct{}
	if !cmd.Bool("json") {
		progress = make(chan tasks.ProgressUpdate, 50)
		done = r.printProgress(progress)
	}

	run, err := fn(ctx, user.ID, progress)
	if progress != nil {
		close(progress)
		<-done
	}

	if run != nil {
		if cmd.Bool("json") {
			if werr := r.writeJSON(run, cmd.Bool("pretty")); werr != nil {
				return werr
			}
		} else {
			r.writePlain("\n%s", formatter.RunSummary(run))
			r.printRunConflicts(run)
		}
	}
	return err
}

func (r *Runner) printRunConflicts(run *models.SyncRun) {
	conflicts, err := r.store.Conflicts.ListByRun(run.ID)
	if err != nil {
		r.logger.Warn("failed to list run conflicts", "run", run.ID, "error", err)
		return
	}
	if len(conflicts) == 0 {
		return
	}
	r.writePlainln("%d conflict(s) recorded:", len(conflicts))
	r.writePlain("%s\n", formatter.ConflictsTable(conflicts))
	r.writePlain("Resolve with: tunelink conflicts resolve <id> <keep|remove|replace|ignore>\n")
}

// SyncPull refreshes playlists from every connected account.
func (r *Runner) SyncPull(ctx context.Context, cmd *cli.Command) error {
	return r.runSync(ctx, cmd, func(ctx context.Context, userID string, progress chan<- tasks.ProgressUpdate) (*models.SyncRun, error) {
		return r.reconciler.PullFromProviders(ctx, userID, progress)
	})
}

// SyncPlaylist re-fetches the tracks of one mirrored playlist.
func (r *Runner) SyncPlaylist(ctx context.Context, cmd *cli.Command) error {
	id, err := requiredArg(cmd, "id")
	if err != nil {
		return err
	}
	return r.runSync(ctx, cmd, func(ctx context.Context, userID string, progress chan<- tasks.ProgressUpdate) (*models.SyncRun, error) {
		return r.reconciler.SyncPlaylist(ctx, userID, id, progress)
	})
}

// SyncAll re-fetches the tracks of every mirrored playlist, optionally for one provider.
func (r *Runner) SyncAll(ctx context.Context, cmd *cli.Command) error {
	provider, err := optionalProvider(cmd.String("provider"))
	if err != nil {
		return err
	}
	return r.runSync(ctx, cmd, func(ctx context.Context, userID string, progress chan<- tasks.ProgressUpdate) (*models.SyncRun, error) {
		return r.reconciler.SyncAllPlaylists(ctx, userID, provider, progress)
	})
}

// SyncStatus shows running syncs and the most recent completed one.
func (r *Runner) SyncStatus(ctx context.Context, cmd *cli.Command) error {
	user, err := r.user(cmd)
	if err != nil {
		return err
	}

	status, err := r.reconciler.Status(user.ID)
	if err != nil {
		return err
	}

	return r.writeResult(cmd, status, func() string {
		var b strings.Builder
		if len(status.Active) == 0 {
			b.WriteString("No syncs running\n")
		} else {
			fmt.Fprintf(&b, "Running:\n%s\n", formatter.RunsTable(status.Active))
		}
		if status.LastSync == nil {
			b.WriteString("No completed sync yet")
		} else {
			fmt.Fprintf(&b, "\nLast sync:\n%s", formatter.RunSummary(status.LastSync))
		}
		return b.String()
	})
}

// SyncHistory lists sync runs newest first.
func (r *Runner) SyncHistory(ctx context.Context, cmd *cli.Command) error {
	user, err := r.user(cmd)
	if err != nil {
		return err
	}

	history, err := r.reconciler.History(user.ID, cmd.Int("page"), cmd.Int("limit"))
	if err != nil {
		return err
	}

	return r.writeResult(cmd, history, func() string {
		return fmt.Sprintf("%s\nPage %d of %d (%d runs)", formatter.RunsTable(history.Runs), history.Page, history.TotalPages, history.Total)
	})
}

// ConflictsList lists the user's conflicts, optionally filtered by resolution state.
func (r *Runner) ConflictsList(ctx context.Context, cmd *cli.Command) error {
	var resolved *bool
	switch open, done := cmd.Bool("open"), cmd.Bool("resolved"); {
	case open && done:
		return fmt.Errorf("%w: --open and --resolved are exclusive", shared.ErrInvalidArgument)
	case open:
		resolved = new(bool)
	case done:
		resolved = new(bool)
		*resolved = true
	}

	user, err := r.user(cmd)
	if err != nil {
		return err
	}

	conflicts, err := r.reconciler.Conflicts(user.ID, resolved)
	if err != nil {
		return err
	}
	return r.writeResult(cmd, conflicts, func() string { return formatter.ConflictsTable(conflicts) })
}

// ConflictsResolve records a resolution for one conflict.
func (r *Runner) ConflictsResolve(ctx context.Context, cmd *cli.Command) error {
	id, err := requiredArg(cmd, "id")
	if err != nil {
		return err
	}
	raw, err := requiredArg(cmd, "resolution")
	if err != nil {
		return err
	}
	resolution, err := models.ParseResolution(raw)
	if err != nil {
		return err
	}

	user, err := r.user(cmd)
	if err != nil {
		return err
	}

	conflict, err := r.reconciler.ResolveConflict(ctx, user.ID, id, resolution)
	if err != nil {
		return err
	}
	return r.writeResult(cmd, conflict, func() string {
		return fmt.Sprintf("✓ Conflict %s resolved: %s", conflict.ID, resolution)
	})
}
