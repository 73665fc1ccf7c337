// Package tasks reconciles provider state with the local mirror and manages the
// accounts that state comes from.
//
// # Core Operations
//
// [Reconciler] records every attempt as a [models.SyncRun] that moves from running
// to completed or failed:
//
//  1. [Reconciler.PullFromProviders] : refresh playlist mirrors of every account
//     - Accounts are pulled concurrently through an errgroup
//     - A failing account becomes a sync_failed conflict; the run still completes
//
//  2. [Reconciler.SyncPlaylist] : replace one mirror's items with the remote list
//     - Tracks are found or created by provider identity, so their ids survive
//
//  3. [Reconciler.SyncAllPlaylists] : [Reconciler.SyncPlaylist] for every mirror in one run
//
// [Reconciler.ResolveConflict] stores the user's decision. The side effect of a
// decision is delegated to a [ResolutionApplier]; [NoopApplier] does nothing.
//
// # Accounts
//
// [Accounts] connects and disconnects provider accounts and turns a stored account
// into an authorized [services.Provider] through the token vault.
//
// # Progress Reporting
//
// Sync operations take an optional channel of [ProgressUpdate]. Updates use select
// with default so a slow or absent reader never blocks a sync.
package tasks
