// Package models defines the catalog and library types shared by the polychrome packages.
//
// Catalog types mirror the upstream API's camelCase JSON so responses decode directly:
//   - [Track] : a single recording with artist, album and quality metadata
//   - [Album] and [AlbumDetails] : album metadata, optionally with its track listing
//   - [Artist] and [ArtistDetails] : artist metadata with discography and top tracks
//   - [Playlist] : a catalog playlist (identified by UUID)
//   - [SearchResult] : a page of search hits
//   - [TrackLookup] : a track with its playback info (manifest) and optional original URL
//
// [UserPlaylist] is the local library record persisted by the repositories package.
// Upstream IDs are numbers for some entities and strings for others; [ID] accepts both.
package models
