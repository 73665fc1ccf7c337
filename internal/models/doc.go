// Package models defines the entities persisted by tunelink.
//
// Entities are plain structs with exported fields. Those written by user input carry a
// Validate method that the repositories call before any insert or update:
//   - [User] : owner of everything else
//   - [ProviderAccount] : one linked provider per user, with its remote profile snapshot
//   - [ProviderToken] : encrypted OAuth credentials, never holding plaintext
//   - [Track] : shared per (provider, provider track id)
//   - [Playlist] and [PlaylistItem] : local mirror of a remote playlist
//   - [UnifiedPlaylist] and [UnifiedItem] : user-curated mixed-provider lists
//   - [SyncRun] and [Conflict] : reconciliation history
//
// Item positions are 0-based and contiguous within their collection.
package models
