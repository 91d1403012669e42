package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is an upstream identifier that may be encoded as a JSON number or string.
type ID string

// UnmarshalJSON accepts numbers, strings and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid id %s: %w", data, err)
		}
		*id = ID(n.String())
	}
	return nil
}

// MarshalJSON encodes numeric IDs as numbers so cached payloads keep the upstream shape.
func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ID) String() string { return string(id) }

// MediaMetadata carries the quality tags attached to tracks and albums.
type MediaMetadata struct {
	Tags []string `json:"tags,omitempty"`
}

// Artist represents an artist from the catalog.
type Artist struct {
	ID          ID       `json:"id"`
	Name        string   `json:"name"`
	Picture     string   `json:"picture,omitempty"`
	Type        string   `json:"type,omitempty"`
	ArtistTypes []string `json:"artistTypes,omitempty"`
	Popularity  int      `json:"popularity,omitempty"`
}

// Album represents an album from the catalog.
type Album struct {
	ID             ID             `json:"id"`
	Title          string         `json:"title"`
	Cover          string         `json:"cover,omitempty"`
	ReleaseDate    string         `json:"releaseDate,omitempty"`
	Artist         *Artist        `json:"artist,omitempty"`
	Artists        []Artist       `json:"artists,omitempty"`
	NumberOfTracks int            `json:"numberOfTracks,omitempty"`
	Explicit       bool           `json:"explicit,omitempty"`
	MediaMetadata  *MediaMetadata `json:"mediaMetadata,omitempty"`
}

// Track represents a track from the catalog.
type Track struct {
	ID            ID             `json:"id"`
	Title         string         `json:"title"`
	Version       string         `json:"version,omitempty"`
	Duration      int            `json:"duration"` // seconds
	TrackNumber   int            `json:"trackNumber,omitempty"`
	VolumeNumber  int            `json:"volumeNumber,omitempty"`
	ISRC          string         `json:"isrc,omitempty"`
	AudioQuality  string         `json:"audioQuality,omitempty"`
	Explicit      bool           `json:"explicit,omitempty"`
	Popularity    int            `json:"popularity,omitempty"`
	Artist        *Artist        `json:"artist,omitempty"`
	Artists       []Artist       `json:"artists,omitempty"`
	Album         *Album         `json:"album,omitempty"`
	MediaMetadata *MediaMetadata `json:"mediaMetadata,omitempty"`
	URL           string         `json:"url,omitempty"`
}

// DisplayTitle appends the version, e.g. "Song (Remastered)".
func (t Track) DisplayTitle() string {
	if t.Title == "" {
		return "Unknown Title"
	}
	if t.Version != "" {
		return fmt.Sprintf("%s (%s)", t.Title, t.Version)
	}
	return t.Title
}

// ArtistNames joins all credited artists, falling back to the primary artist.
func (t Track) ArtistNames() string {
	if len(t.Artists) > 0 {
		var buf bytes.Buffer
		for i, a := range t.Artists {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(a.Name)
		}
		return buf.String()
	}
	if t.Artist != nil && t.Artist.Name != "" {
		return t.Artist.Name
	}
	return "Unknown Artist"
}

// Creator is the owner of a catalog playlist.
type Creator struct {
	Name string `json:"name,omitempty"`
}

// Playlist represents a catalog playlist.
type Playlist struct {
	UUID           string   `json:"uuid"`
	Title          string   `json:"title"`
	NumberOfTracks int      `json:"numberOfTracks"`
	Image          string   `json:"image,omitempty"`
	Creator        *Creator `json:"creator,omitempty"`
}

// SearchResult is one page of search hits.
type SearchResult[T any] struct {
	Items              []T `json:"items"`
	Limit              int `json:"limit"`
	Offset             int `json:"offset"`
	TotalNumberOfItems int `json:"totalNumberOfItems"`
}

// AlbumDetails is an album with its track listing.
type AlbumDetails struct {
	Album  Album   `json:"album"`
	Tracks []Track `json:"tracks"`
}

// ArtistDetails is an artist with discography and top tracks.
type ArtistDetails struct {
	Artist
	Albums []Album `json:"albums"`
	Tracks []Track `json:"tracks"`
}

// PlaylistDetails is a catalog playlist with its tracks.
type PlaylistDetails struct {
	Playlist Playlist `json:"playlist"`
	Tracks   []Track  `json:"tracks"`
}

// TrackInfo is the playback descriptor returned next to a track.
type TrackInfo struct {
	TrackID          ID     `json:"trackId,omitempty"`
	AudioQuality     string `json:"audioQuality,omitempty"`
	AudioMode        string `json:"audioMode,omitempty"`
	ManifestMimeType string `json:"manifestMimeType,omitempty"`
	Manifest         string `json:"manifest,omitempty"`
	BitDepth         int    `json:"bitDepth,omitempty"`
	SampleRate       int    `json:"sampleRate,omitempty"`
}

// TrackLookup bundles a track with its playback info.
type TrackLookup struct {
	Track            Track     `json:"track"`
	Info             TrackInfo `json:"info"`
	OriginalTrackURL string    `json:"originalTrackUrl,omitempty"`
}
