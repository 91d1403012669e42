// Package repositories implements SQLite persistence for the local playlist library.
//
// [PlaylistRepository] stores [models.UserPlaylist] rows in the user_playlists table.
// Track listings are kept as a JSON blob in the tracks column and are only decoded
// by this package. Every change to a playlist bumps updated_at and clears the synced
// flag until [PlaylistRepository.MarkSynced] is called again.
//
// The "liked-songs" playlist is created on demand by [PlaylistRepository.EnsureLikedSongs]
// and cannot be deleted.
package repositories
