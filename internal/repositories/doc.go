// Package repositories implements SQLite persistence for every domain entity.
//
// Repositories are thin: each method is one statement or one transaction, errors are
// wrapped with the failing step, and missing rows map to the lookup sentinels in
// package shared. Ownership checks return not found rather than forbidden.
//
// Ordered collections (mirrored playlist items and unified playlist items) are edited
// through [ordering] plans. Each edit holds the collection's lock and runs in one
// transaction, writing positions in two phases so UNIQUE(owner, position) holds at
// every statement boundary.
//
// Key Implementations:
//   - [UserRepository] : local users keyed by email
//   - [AccountRepository] : one linked provider account per (user, provider)
//   - [TokenRepository] : encrypted credentials, implements vault.TokenStore
//   - [TrackRepository] : provider-addressed tracks with find-or-create
//   - [PlaylistRepository] : mirrored provider playlists and their items
//   - [UnifiedRepository] : user-curated playlists with insert, remove and move
//   - [SyncRunRepository] : reconciliation run history
//   - [ConflictRepository] : anomalies raised by runs and their resolutions
//   - [StateRepository] : pending OAuth handshakes with atomic consume
package repositories
