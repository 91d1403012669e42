package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/polychrome/internal/models"
	"github.com/desertthunder/polychrome/internal/shared"
)

// Catalog is the part of [services.Catalog] an export needs.
type Catalog interface {
	Album(ctx context.Context, id string) (models.AlbumDetails, error)
	Playlist(ctx context.Context, id string) (models.PlaylistDetails, error)
	StreamURL(ctx context.Context, id, quality string) (string, error)
}

// Sweeper drops expired cache entries; implemented by [services.Catalog].
type Sweeper interface {
	Sweep(ctx context.Context) (responses, streams int)
}

// SourceKind names the collection an export reads its tracks from.
type SourceKind string

const (
	SourceAlbum    SourceKind = "album"
	SourcePlaylist SourceKind = "playlist"
)

// Source identifies an album or playlist to export.
type Source struct {
	Kind SourceKind
	ID   string
}

// ParseSource validates kind and id from the command line.
func ParseSource(kind, id string) (Source, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Source{}, fmt.Errorf("%w: %s ID is required", shared.ErrMissingArgument, kind)
	}

	switch k := SourceKind(strings.ToLower(strings.TrimSpace(kind))); k {
	case SourceAlbum, SourcePlaylist:
		return Source{Kind: k, ID: id}, nil
	default:
		return Source{}, fmt.Errorf("%w: unknown source %q", shared.ErrInvalidArgument, kind)
	}
}

// loadSource fetches the title and track listing of src.
func loadSource(ctx context.Context, catalog Catalog, src Source) (string, []models.Track, error) {
	switch src.Kind {
	case SourceAlbum:
		album, err := catalog.Album(ctx, src.ID)
		if err != nil {
			return "", nil, fmt.Errorf("failed to fetch album: %w", err)
		}
		return album.Album.Title, album.Tracks, nil
	case SourcePlaylist:
		playlist, err := catalog.Playlist(ctx, src.ID)
		if err != nil {
			return "", nil, fmt.Errorf("failed to fetch playlist: %w", err)
		}
		return playlist.Playlist.Title, playlist.Tracks, nil
	default:
		return "", nil, fmt.Errorf("%w: unknown source %q", shared.ErrInvalidArgument, src.Kind)
	}
}
