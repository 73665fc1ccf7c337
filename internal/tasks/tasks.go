package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunelink/internal/metrics"
	"github.com/desertthunder/tunelink/internal/models"
	"github.com/desertthunder/tunelink/internal/repositories"
	"github.com/desertthunder/tunelink/internal/services"
	"github.com/desertthunder/tunelink/internal/shared"
	"golang.org/x/sync/errgroup"
)

// maxParallelAccounts bounds how many accounts one pull talks to at once.
const maxParallelAccounts = 4

// Sessions hands out adapters authorized as a stored account.
type Sessions interface {
	Session(ctx context.Context, account *models.ProviderAccount) (services.Provider, error)
}

// ResolutionApplier carries out the side effect of a conflict resolution.
type ResolutionApplier interface {
	Apply(ctx context.Context, conflict *models.ConflictView, resolution models.Resolution) error
}

// NoopApplier records the decision and changes nothing else.
type NoopApplier struct{}

func (NoopApplier) Apply(context.Context, *models.ConflictView, models.Resolution) error { return nil }

// SyncStatus is the user's running runs and most recent completed run.
type SyncStatus struct {
	Active   []*models.SyncRun `json:"active_syncs"`
	LastSync *models.SyncRun   `json:"last_sync"`
}

// HistoryPage is one page of a user's runs, newest first.
type HistoryPage struct {
	Runs       []*models.SyncRun `json:"sync_runs"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	Total      int               `json:"total"`
	TotalPages int               `json:"total_pages"`
}

// Reconciler mirrors provider state into the local store and records every
// attempt as a [models.SyncRun]. Failures scoped to one account or playlist
// become sync_failed conflicts instead of failing the run.
type Reconciler struct {
	store    *repositories.Store
	sessions Sessions
	applier  ResolutionApplier
	logger   *log.Logger
	metrics  *metrics.Metrics
	clock    shared.Clock
}

// ReconcilerOpts configures [NewReconciler].
type ReconcilerOpts struct {
	Store    *repositories.Store
	Sessions Sessions
	Applier  ResolutionApplier // defaults to NoopApplier
	Logger   *log.Logger
	Metrics  *metrics.Metrics
	Clock    shared.Clock
}

// NewReconciler creates a [Reconciler].
func NewReconciler(opts ReconcilerOpts) (*Reconciler, error) {
	if opts.Store == nil || opts.Sessions == nil {
		return nil, fmt.Errorf("%w: reconciler needs a store and sessions", shared.ErrMissingArgument)
	}
	if opts.Applier == nil {
		opts.Applier = NoopApplier{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Reconciler{
		store:    opts.Store,
		sessions: opts.Sessions,
		applier:  opts.Applier,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		clock:    opts.Clock,
	}, nil
}

// sendProgress sends a progress update through the channel without blocking.
func (r *Reconciler) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// PullFromProviders refreshes the playlist mirrors of every account the user has
// connected. Accounts are pulled concurrently and independently: one that fails is
// recorded as a sync_failed conflict and the run still completes.
//
// The run is marked failed, and the error returned, only when something outside a
// single account goes wrong.
func (r *Reconciler) PullFromProviders(ctx context.Context, userID string, progress chan<- ProgressUpdate) (*models.SyncRun, error) {
	run, err := r.startRun(userID, nil)
	if err != nil {
		return nil, err
	}
	logger := r.logger.With("run", run.ID, "user", userID)

	accounts, err := r.store.Accounts.ListByUser(userID)
	if err != nil {
		return r.fail(run, err, progress)
	}
	r.sendProgress(progress, fetchAccountsUpdate(len(accounts)))

	counts := make([]models.SyncCounts, len(accounts))
	var step atomic.Int32

	var g errgroup.Group
	g.SetLimit(maxParallelAccounts)
	for i, account := range accounts {
		g.Go(func() error {
			r.sendProgress(progress, fetchPlaylistsUpdate(i+1, len(accounts), account.Provider))

			c, err := r.pullAccount(ctx, account)
			n := int(step.Add(1))
			if err != nil {
				logger.Warn("account pull failed", "provider", account.Provider, "account", account.ID, "error", err)
				r.sendProgress(progress, accountFailedUpdate(n, len(accounts), account.Provider, err))
				return r.recordFailure(run, map[string]any{
					"provider": string(account.Provider),
					"error":    err.Error(),
				})
			}

			counts[i] = c
			r.sendProgress(progress, savePlaylistsUpdate(n, len(accounts), account.Provider, c))
			return nil
		})
	}
	err = g.Wait()
	for _, c := range counts {
		run.Counts.Add(c)
	}
	if err != nil {
		return r.fail(run, err, progress)
	}
	return r.complete(run, progress)
}

// pullAccount finds or updates the mirror of every remote playlist of one account.
// Processed counts remote playlists, Added new mirrors and Updated refreshed ones.
func (r *Reconciler) pullAccount(ctx context.Context, account *models.ProviderAccount) (models.SyncCounts, error) {
	var counts models.SyncCounts

	adapter, err := r.sessions.Session(ctx, account)
	if err != nil {
		return counts, err
	}
	remote, err := adapter.Playlists(ctx)
	if err != nil {
		return counts, err
	}

	for _, rp := range remote {
		fetched := rp.ToModel(account.ID)
		fetched.Provider = account.Provider

		existing, err := r.store.Playlists.GetByProviderID(account.ID, rp.ID)
		switch {
		case err == nil:
			existing.Name = fetched.Name
			existing.Description = fetched.Description
			existing.ImageURL = fetched.ImageURL
			existing.TrackCount = fetched.TrackCount
			existing.IsPublic = fetched.IsPublic
			existing.IsOwner = fetched.IsOwner
			existing.SnapshotID = fetched.SnapshotID
			if err := r.store.Playlists.Update(existing); err != nil {
				return counts, err
			}
			counts.Updated++
		case isNotFound(err):
			if err := r.store.Playlists.Create(fetched); err != nil {
				return counts, err
			}
			counts.Added++
		default:
			return counts, err
		}
		counts.Processed++
	}
	return counts, nil
}

// SyncPlaylist replaces the items of one mirrored playlist with the provider's
// current track list and records the attempt as a pull run of its own.
//
// Processed counts fetched tracks; a track whose stored row had to change counts
// as Updated, every other item as Added. Nothing is ever Removed: positions are
// rewritten, tracks are kept.
func (r *Reconciler) SyncPlaylist(ctx context.Context, userID, playlistID string, progress chan<- ProgressUpdate) (*models.SyncRun, error) {
	playlist, err := r.store.Playlists.GetForUser(userID, playlistID)
	if err != nil {
		return nil, err
	}
	account, err := r.store.Accounts.Get(playlist.AccountID)
	if err != nil {
		return nil, err
	}

	run, err := r.startRun(userID, &account.ID)
	if err != nil {
		return nil, err
	}

	r.sendProgress(progress, fetchTracksUpdate(1, 1, playlist))
	counts, err := r.syncTracks(ctx, account, playlist)
	run.Counts = counts
	if err != nil {
		return r.fail(run, err, progress)
	}
	r.sendProgress(progress, saveTracksUpdate(1, 1, playlist, counts))
	return r.complete(run, progress)
}

// SyncAllPlaylists refreshes the playlist mirrors of every account, optionally limited
// to one provider, then resyncs the tracks of each mirror. An account whose playlists
// cannot be listed, or a playlist that fails, is recorded as a sync_failed conflict and
// the run continues. The run's counters cover tracks only.
func (r *Reconciler) SyncAllPlaylists(ctx context.Context, userID string, provider models.Provider, progress chan<- ProgressUpdate) (*models.SyncRun, error) {
	run, err := r.startRun(userID, nil)
	if err != nil {
		return nil, err
	}

	accounts, err := r.store.Accounts.ListByUser(userID)
	if err != nil {
		return r.fail(run, err, progress)
	}
	byID := make(map[string]*models.ProviderAccount, len(accounts))
	skip := make(map[string]bool)
	for i, a := range accounts {
		if provider != "" && a.Provider != provider {
			continue
		}
		byID[a.ID] = a

		r.sendProgress(progress, fetchPlaylistsUpdate(i+1, len(accounts), a.Provider))
		c, err := r.pullAccount(ctx, a)
		if err != nil {
			r.logger.Warn("account pull failed", "run", run.ID, "provider", a.Provider, "account", a.ID, "error", err)
			r.sendProgress(progress, accountFailedUpdate(i+1, len(accounts), a.Provider, err))
			details := map[string]any{
				"provider": string(a.Provider),
				"error":    err.Error(),
			}
			if err := r.recordFailure(run, details); err != nil {
				return r.fail(run, err, progress)
			}
			skip[a.ID] = true
			continue
		}
		r.sendProgress(progress, savePlaylistsUpdate(i+1, len(accounts), a.Provider, c))
	}

	playlists, err := r.allPlaylists(userID, provider)
	if err != nil {
		return r.fail(run, err, progress)
	}

	for i, pl := range playlists {
		if skip[pl.AccountID] {
			continue
		}
		r.sendProgress(progress, fetchTracksUpdate(i+1, len(playlists), pl))

		counts, err := r.syncTracks(ctx, byID[pl.AccountID], pl)
		run.Counts.Add(counts)
		if err != nil {
			r.logger.Warn("playlist sync failed", "run", run.ID, "playlist", pl.ID, "error", err)
			r.sendProgress(progress, accountFailedUpdate(i+1, len(playlists), pl.Provider, err))
			details := map[string]any{
				"provider":    string(pl.Provider),
				"playlist_id": pl.ID,
				"error":       err.Error(),
			}
			if err := r.recordFailure(run, details); err != nil {
				return r.fail(run, err, progress)
			}
			continue
		}
		r.sendProgress(progress, saveTracksUpdate(i+1, len(playlists), pl, counts))
	}
	return r.complete(run, progress)
}

// allPlaylists lists every mirror of the user, unpaged.
func (r *Reconciler) allPlaylists(userID string, provider models.Provider) ([]*models.Playlist, error) {
	playlists, _, err := r.store.Playlists.List(repositories.PlaylistFilter{UserID: userID, Provider: provider})
	return playlists, err
}

func (r *Reconciler) syncTracks(ctx context.Context, account *models.ProviderAccount, playlist *models.Playlist) (models.SyncCounts, error) {
	var counts models.SyncCounts
	if account == nil {
		return counts, fmt.Errorf("%w: %s", shared.ErrAccountNotFound, playlist.AccountID)
	}

	adapter, err := r.sessions.Session(ctx, account)
	if err != nil {
		return counts, err
	}
	remote, err := adapter.PlaylistItems(ctx, playlist.ProviderPlaylistID)
	if err != nil {
		return counts, err
	}

	trackIDs := make([]string, 0, len(remote))
	for _, rt := range remote {
		track := rt.ToModel(account.Provider)
		change, err := r.store.Tracks.FindOrCreate(track)
		if err != nil {
			return counts, err
		}
		if change == repositories.TrackUpdated {
			counts.Updated++
		} else {
			counts.Added++
		}
		counts.Processed++
		trackIDs = append(trackIDs, track.ID)
	}

	if err := r.store.Playlists.ReplaceItems(playlist.ID, trackIDs, string(account.Provider)); err != nil {
		return counts, err
	}
	if err := r.store.Playlists.MarkSynced(playlist.ID, len(trackIDs), r.clock.Now()); err != nil {
		return counts, err
	}
	return counts, nil
}

// Status returns the user's running runs and last completed run.
func (r *Reconciler) Status(userID string) (*SyncStatus, error) {
	active, err := r.store.SyncRuns.Running(userID)
	if err != nil {
		return nil, err
	}
	last, err := r.store.SyncRuns.LastCompleted(userID)
	if err != nil {
		return nil, err
	}
	return &SyncStatus{Active: active, LastSync: last}, nil
}

// History returns one page of the user's runs, newest first.
func (r *Reconciler) History(userID string, page, limit int) (*HistoryPage, error) {
	p := shared.NewPage(page, limit, 20)
	runs, total, err := r.store.SyncRuns.History(userID, p)
	if err != nil {
		return nil, err
	}
	return &HistoryPage{
		Runs:       runs,
		Page:       p.Number,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: p.TotalPages(total),
	}, nil
}

// Conflicts lists the user's conflicts, newest first. A nil resolved lists all of them.
func (r *Reconciler) Conflicts(userID string, resolved *bool) ([]*models.ConflictView, error) {
	return r.store.Conflicts.ListByUser(userID, resolved)
}

// ResolveConflict records the user's decision for a conflict raised by one of their runs.
//
// Conflicts of other users are reported as not found. The applier runs first; the
// decision is stored only if it succeeds.
func (r *Reconciler) ResolveConflict(ctx context.Context, userID, conflictID string, resolution models.Resolution) (*models.ConflictView, error) {
	if _, err := models.ParseResolution(string(resolution)); err != nil {
		return nil, err
	}

	conflict, err := r.store.Conflicts.GetForUser(userID, conflictID)
	if err != nil {
		return nil, err
	}

	if err := r.applier.Apply(ctx, conflict, resolution); err != nil {
		return nil, fmt.Errorf("failed to apply resolution: %w", err)
	}

	at := r.clock.Now()
	if err := r.store.Conflicts.Resolve(conflict.ID, resolution, at); err != nil {
		return nil, err
	}

	conflict.Resolved = true
	conflict.Resolution = &resolution
	conflict.ResolvedAt = &at
	r.logger.Info("conflict resolved", "conflict", conflict.ID, "resolution", resolution)
	return conflict, nil
}

func (r *Reconciler) startRun(userID string, accountID *string) (*models.SyncRun, error) {
	started := r.clock.Now()
	run := &models.SyncRun{
		UserID:    userID,
		AccountID: accountID,
		Type:      models.SyncPull,
		Status:    models.StatusRunning,
		StartedAt: &started,
		CreatedAt: started,
	}
	if err := r.store.SyncRuns.Create(run); err != nil {
		return nil, err
	}
	return run, nil
}

func (r *Reconciler) recordFailure(run *models.SyncRun, details map[string]any) error {
	conflict := &models.Conflict{
		SyncRunID: run.ID,
		Type:      models.ConflictSyncFailed,
		Details:   details,
	}
	if err := r.store.Conflicts.Create(conflict); err != nil {
		return err
	}
	r.metrics.RecordConflict(conflict.Type)
	return nil
}

func (r *Reconciler) complete(run *models.SyncRun, progress chan<- ProgressUpdate) (*models.SyncRun, error) {
	run.Status = models.StatusCompleted
	if err := r.finish(run); err != nil {
		return nil, err
	}
	r.logger.Info("sync completed", "run", run.ID, "processed", run.Counts.Processed, "added", run.Counts.Added, "updated", run.Counts.Updated)
	r.sendProgress(progress, finishedUpdate(run))
	return run, nil
}

// fail marks run failed with cause and returns cause. The run and its partial
// counters stay in history.
func (r *Reconciler) fail(run *models.SyncRun, cause error, progress chan<- ProgressUpdate) (*models.SyncRun, error) {
	msg := cause.Error()
	run.Status = models.StatusFailed
	run.ErrorMessage = &msg
	if err := r.finish(run); err != nil {
		r.logger.Error("failed to record failed run", "run", run.ID, "error", err)
	}
	r.logger.Error("sync failed", "run", run.ID, "error", cause)
	r.sendProgress(progress, finishedUpdate(run))
	return run, cause
}

func (r *Reconciler) finish(run *models.SyncRun) error {
	completed := r.clock.Now()
	run.CompletedAt = &completed
	if err := r.store.SyncRuns.Finish(run); err != nil {
		return err
	}
	r.metrics.RecordSyncRun(run)
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}
