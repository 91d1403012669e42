package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/polychrome/internal/formatter"
	"github.com/desertthunder/polychrome/internal/models"
	"github.com/desertthunder/polychrome/internal/services"
	"github.com/desertthunder/polychrome/internal/shared"
)

func requireArg(cmd *cli.Command, name string) (string, error) {
	v := strings.TrimSpace(cmd.StringArg(name))
	if v == "" {
		return "", fmt.Errorf("%w: %s is required", shared.ErrMissingArgument, name)
	}
	return v, nil
}

// Search returns the action for one search kind: tracks, albums or artists.
func (r *Runner) Search(kind string) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		query, err := requireArg(cmd, "query")
		if err != nil {
			return err
		}

		catalog := r.ensureCatalog()
		r.logger.Debug("searching", "kind", kind, "query", query)

		switch kind {
		case "tracks":
			result, err := catalog.SearchTracks(ctx, query)
			if err != nil {
				return err
			}
			return r.render(cmd, result, func() error {
				r.writePlain("Found %d tracks for %q:\n\n", len(result.Items), query)
				return r.writeBytes(formatter.TrackListing(result.Items))
			})
		case "albums":
			result, err := catalog.SearchAlbums(ctx, query)
			if err != nil {
				return err
			}
			return r.render(cmd, result, func() error {
				r.writePlain("Found %d albums for %q:\n\n", len(result.Items), query)
				return r.writeBytes(formatter.AlbumListing(result.Items))
			})
		case "artists":
			result, err := catalog.SearchArtists(ctx, query)
			if err != nil {
				return err
			}
			return r.render(cmd, result, func() error {
				r.writePlain("Found %d artists for %q:\n\n", len(result.Items), query)
				return r.writeBytes(formatter.ArtistListing(result.Items))
			})
		default:
			return fmt.Errorf("%w: unknown search kind %q", shared.ErrInvalidArgument, kind)
		}
	}
}

// Album prints an album and its tracks.
func (r *Runner) Album(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	album, err := r.ensureCatalog().Album(ctx, id)
	if err != nil {
		return err
	}

	return r.render(cmd, album, func() error {
		artist := "Unknown Artist"
		if album.Album.Artist != nil {
			artist = album.Album.Artist.Name
		}
		r.writePlainHeader(fmt.Sprintf("%s - %s", album.Album.Title, artist))
		if album.Album.ReleaseDate != "" {
			r.writePlain("Released: %s\n", album.Album.ReleaseDate)
		}
		if album.Album.Cover != "" {
			r.writePlain("Cover: %s\n", services.CoverURL(album.Album.Cover, 0))
		}
		r.writePlain("\n")
		return r.writeBytes(formatter.TrackListing(album.Tracks))
	})
}

// Artist prints an artist with their top tracks and albums.
func (r *Runner) Artist(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	artist, err := r.ensureCatalog().Artist(ctx, id)
	if err != nil {
		return err
	}

	return r.render(cmd, artist, func() error {
		r.writePlainHeader(artist.Name)
		if artist.Picture != "" {
			r.writePlain("Picture: %s\n", services.ArtistPictureURL(artist.Picture, 0))
		}
		r.writePlainln("Top tracks:")
		r.writeBytes(formatter.TrackListing(artist.Tracks))
		r.writePlainln("Albums:")
		return r.writeBytes(formatter.AlbumListing(artist.Albums))
	})
}

// Playlist prints a catalog playlist and its tracks.
func (r *Runner) Playlist(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	playlist, err := r.ensureCatalog().Playlist(ctx, id)
	if err != nil {
		return err
	}

	return r.render(cmd, playlist, func() error {
		r.writePlainHeader(playlist.Playlist.Title)
		if playlist.Playlist.Creator != nil && playlist.Playlist.Creator.Name != "" {
			r.writePlain("By: %s\n", playlist.Playlist.Creator.Name)
		}
		r.writePlain("Tracks: %d\n\n", playlist.Playlist.NumberOfTracks)
		return r.writeBytes(formatter.TrackListing(playlist.Tracks))
	})
}

// Track prints a track with its playback info for the requested quality.
func (r *Runner) Track(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	lookup, err := r.ensureCatalog().Track(ctx, id, cmd.String("quality"))
	if err != nil {
		return err
	}

	return r.render(cmd, lookup, func() error {
		t := lookup.Track
		r.writePlainHeader(t.DisplayTitle())
		r.writePlain("Artist:   %s\n", t.ArtistNames())
		if t.Album != nil {
			r.writePlain("Album:    %s\n", t.Album.Title)
		}
		r.writePlain("Length:   %s\n", shared.FormatDuration(t.Duration))
		r.writePlain("Quality:  %s\n", displayQuality(lookup.Info.AudioQuality, services.TrackQuality(t)))
		if lookup.Info.BitDepth > 0 {
			r.writePlain("Format:   %d-bit / %.1f kHz\n", lookup.Info.BitDepth, float64(lookup.Info.SampleRate)/1000)
		}
		if lookup.OriginalTrackURL != "" {
			r.writePlain("Stream:   %s\n", lookup.OriginalTrackURL)
		}
		return nil
	})
}

func displayQuality(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return "unknown"
}

// Stream resolves a playable URL for a track and optionally opens it.
func (r *Runner) Stream(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	quality, err := services.ParseQuality(cmd.String("quality"))
	if err != nil {
		return err
	}

	url, err := r.ensureCatalog().StreamURL(ctx, id, quality)
	if err != nil {
		return err
	}

	if cmd.Bool("open") {
		r.logger.Info("opening stream", "id", id, "quality", quality)
		if err := r.openURL(url); err != nil {
			return err
		}
	}

	return r.render(cmd, streamOutput{ID: models.ID(id), Quality: quality, URL: url}, func() error {
		return r.writePlain("%s\n", url)
	})
}

type streamOutput struct {
	ID      models.ID `json:"id"`
	Quality string    `json:"quality"`
	URL     string    `json:"url"`
}
