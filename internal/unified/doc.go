// Package unified manages user-curated playlists that mix tracks from every provider.
//
// # Playlists
//
// A unified playlist is an ordered list of items, each pointing at a cached track.
// Adding, removing and moving items keeps positions 0..n-1 unique and gap free;
// the repository serializes edits per playlist.
//
// # Library
//
// Search fans out to the user's connected providers and stores every hit in the
// shared track cache, so results can be added to any unified playlist directly.
// Mirrored provider playlists are read here too.
//
// # Playback
//
// PlaybackInfo asks the track's provider how to play it and falls back to the stored
// external link whenever the provider cannot answer.
package unified
