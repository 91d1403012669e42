package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/polychrome/internal/formatter"
	"github.com/desertthunder/polychrome/internal/models"
)

// LibraryList prints every local playlist.
func (r *Runner) LibraryList(ctx context.Context, cmd *cli.Command) error {
	library, err := r.ensureLibrary(ctx)
	if err != nil {
		return err
	}

	playlists, err := library.List(ctx)
	if err != nil {
		return err
	}

	return r.render(cmd, playlists, func() error {
		r.writePlain("Found %d playlists:\n\n", len(playlists))
		return r.writeBytes(formatter.LibraryListing(playlists))
	})
}

// LibraryShow prints one local playlist with its tracks.
func (r *Runner) LibraryShow(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	library, err := r.ensureLibrary(ctx)
	if err != nil {
		return err
	}

	playlist, err := library.Get(ctx, id)
	if err != nil {
		return err
	}

	return r.render(cmd, playlist, func() error {
		r.writePlainHeader(playlist.Name)
		r.writePlain("ID: %s\n", playlist.ID)
		r.writePlain("Synced: %t\n", playlist.SyncedToGoogle)
		r.writePlain("Tracks: %d\n\n", len(playlist.Tracks))
		return r.writeBytes(formatter.TrackListing(playlist.Tracks))
	})
}

// LibraryCreate creates an empty local playlist.
func (r *Runner) LibraryCreate(ctx context.Context, cmd *cli.Command) error {
	name, err := requireArg(cmd, "name")
	if err != nil {
		return err
	}

	library, err := r.ensureLibrary(ctx)
	if err != nil {
		return err
	}

	playlist, err := library.Create(ctx, name)
	if err != nil {
		return err
	}

	r.logger.Info("playlist created", "id", playlist.ID, "name", playlist.Name)
	return r.render(cmd, playlist, func() error {
		return r.writePlain("✓ Created playlist %s (%s)\n", playlist.Name, playlist.ID)
	})
}

// LibraryAdd looks a track up in the catalog and appends it to a local playlist.
func (r *Runner) LibraryAdd(ctx context.Context, cmd *cli.Command) error {
	trackID, err := requireArg(cmd, "track")
	if err != nil {
		return err
	}
	playlistID := cmd.String("playlist")

	library, err := r.ensureLibrary(ctx)
	if err != nil {
		return err
	}

	lookup, err := r.ensureCatalog().Track(ctx, trackID, "")
	if err != nil {
		return fmt.Errorf("failed to look up track %s: %w", trackID, err)
	}
	track := lookup.Track
	if track.ID == "" {
		track.ID = models.ID(trackID)
	}

	added, err := library.AddTrack(ctx, playlistID, track)
	if err != nil {
		return err
	}

	return r.render(cmd, map[string]any{"playlist": playlistID, "track": track.ID, "added": added}, func() error {
		if !added {
			return r.writePlain("• %s is already in %s\n", track.DisplayTitle(), playlistID)
		}
		return r.writePlain("✓ Added %s - %s to %s\n", track.ArtistNames(), track.DisplayTitle(), playlistID)
	})
}

// LibraryRemove removes a track from a local playlist.
func (r *Runner) LibraryRemove(ctx context.Context, cmd *cli.Command) error {
	trackID, err := requireArg(cmd, "track")
	if err != nil {
		return err
	}
	playlistID := cmd.String("playlist")

	library, err := r.ensureLibrary(ctx)
	if err != nil {
		return err
	}

	removed, err := library.RemoveTrack(ctx, playlistID, models.ID(trackID))
	if err != nil {
		return err
	}

	return r.render(cmd, map[string]any{"playlist": playlistID, "track": trackID, "removed": removed}, func() error {
		if !removed {
			return r.writePlain("• Track %s is not in %s\n", trackID, playlistID)
		}
		return r.writePlain("✓ Removed track %s from %s\n", trackID, playlistID)
	})
}

// LibraryRename renames a local playlist.
func (r *Runner) LibraryRename(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	name, err := requireArg(cmd, "name")
	if err != nil {
		return err
	}

	library, err := r.ensureLibrary(ctx)
	if err != nil {
		return err
	}
	if err := library.Rename(ctx, id, name); err != nil {
		return err
	}

	return r.render(cmd, map[string]string{"id": id, "name": name}, func() error {
		return r.writePlain("✓ Renamed %s to %s\n", id, name)
	})
}

// LibrarySynced marks a local playlist as uploaded to the cloud copy, or clears the mark with --unset.
func (r *Runner) LibrarySynced(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	library, err := r.ensureLibrary(ctx)
	if err != nil {
		return err
	}

	synced := !cmd.Bool("unset")
	if err := library.MarkSynced(ctx, id, synced); err != nil {
		return err
	}

	return r.render(cmd, map[string]any{"id": id, "synced": synced}, func() error {
		if synced {
			return r.writePlain("✓ Marked %s as synced\n", id)
		}
		return r.writePlain("✓ Marked %s as not synced\n", id)
	})
}

// LibraryDelete deletes a local playlist. Liked Songs cannot be deleted.
func (r *Runner) LibraryDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	library, err := r.ensureLibrary(ctx)
	if err != nil {
		return err
	}
	if err := library.Delete(ctx, id); err != nil {
		return err
	}

	r.logger.Info("playlist deleted", "id", id)
	return r.render(cmd, map[string]string{"deleted": id}, func() error {
		return r.writePlain("✓ Deleted playlist %s\n", id)
	})
}
