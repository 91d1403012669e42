// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/polychrome/internal/repositories"
	"github.com/desertthunder/polychrome/internal/tasks"
)

func qualityFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "quality",
		Aliases: []string{"q"},
		Usage:   "Audio quality (HI_RES_LOSSLESS, LOSSLESS, HIGH, LOW)",
		Value:   "LOSSLESS",
	}
}

// setupCommand initializes the config file, library database and durable cache.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config, initialize database and run migrations",
		Action: r.Setup,
	}
}

// mirrorsCommand handles ranking of the catalog mirrors
func mirrorsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "mirrors",
		Aliases: []string{"m"},
		Usage:   "Rank and inspect catalog mirrors",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "Show the current ranking",
				Action: r.MirrorsList,
			},
			{
				Name:   "refresh",
				Usage:  "Probe every mirror and rank again",
				Action: r.MirrorsRefresh,
			},
			{
				Name:  "watch",
				Usage: "Interactive mirror monitor",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "interval",
						Usage: "How often to rank again",
						Value: time.Minute,
					},
					&cli.StringFlag{
						Name:  "log-file",
						Usage: "Where logs go while the monitor is open",
						Value: "./tmp/poly-tui.log",
					},
				},
				Action: r.MirrorsWatch,
			},
		},
	}
}

// searchCommand searches the catalog
func searchCommand(r *Runner) *cli.Command {
	sub := func(kind, usage string) *cli.Command {
		return &cli.Command{
			Name:      kind,
			Usage:     usage,
			Arguments: []cli.Argument{&cli.StringArg{Name: "query"}},
			Action:    r.Search(kind),
		}
	}
	return &cli.Command{
		Name:    "search",
		Aliases: []string{"s"},
		Usage:   "Search the catalog",
		Commands: []*cli.Command{
			sub("tracks", "Search for tracks"),
			sub("albums", "Search for albums"),
			sub("artists", "Search for artists"),
		},
	}
}

func albumCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "album",
		Usage:     "Show an album and its tracks",
		Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
		Action:    r.Album,
	}
}

func artistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "artist",
		Usage:     "Show an artist with top tracks and albums",
		Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
		Action:    r.Artist,
	}
}

func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "playlist",
		Usage:     "Show a catalog playlist and its tracks",
		Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
		Action:    r.Playlist,
	}
}

func trackCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "track",
		Usage:     "Show a track and its playback info",
		Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
		Flags:     []cli.Flag{qualityFlag()},
		Action:    r.Track,
	}
}

func streamCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "stream",
		Usage:     "Resolve a playable stream URL for a track",
		Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
		Flags: []cli.Flag{
			qualityFlag(),
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the stream with the system player",
			},
		},
		Action: r.Stream,
	}
}

// exportCommand resolves stream URLs for a whole album or playlist
func exportCommand(r *Runner) *cli.Command {
	flags := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format (m3u, json, csv, txt)",
				Value:   "m3u",
			},
			qualityFlag(),
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file path (default: <kind>_<id>.<ext>)",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent stream lookups (max 10)",
				Value: tasks.DefaultExportWorkers,
			},
			&cli.FloatFlag{
				Name:  "rate",
				Usage: "Stream lookups per second",
				Value: tasks.DefaultExportRate,
			},
		}
	}
	return &cli.Command{
		Name:  "export",
		Usage: "Export stream URLs for an album or playlist",
		Commands: []*cli.Command{
			{
				Name:      "album",
				Usage:     "Export every track of an album",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     flags(),
				Action:    r.Export(tasks.SourceAlbum),
			},
			{
				Name:      "playlist",
				Usage:     "Export every track of a catalog playlist",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     flags(),
				Action:    r.Export(tasks.SourcePlaylist),
			},
		},
	}
}

// cacheCommand manages the response and stream caches
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and clear the response caches",
		Commands: []*cli.Command{
			{
				Name:   "clear",
				Usage:  "Remove every cached response and stream URL",
				Action: r.CacheClear,
			},
			{
				Name:   "sweep",
				Usage:  "Remove expired responses and trim stream URLs",
				Action: r.CacheSweep,
			},
			{
				Name:   "stats",
				Usage:  "Show cache sizes and hit counters",
				Action: r.CacheStats,
			},
		},
	}
}

// libraryCommand manages local playlists
func libraryCommand(r *Runner) *cli.Command {
	playlistFlag := func() *cli.StringFlag {
		return &cli.StringFlag{
			Name:    "playlist",
			Aliases: []string{"p"},
			Usage:   "Local playlist ID",
			Value:   repositories.LikedSongsID,
		}
	}
	return &cli.Command{
		Name:    "library",
		Aliases: []string{"lib"},
		Usage:   "Manage local playlists",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List local playlists",
				Action: r.LibraryList,
			},
			{
				Name:      "show",
				Usage:     "Show a local playlist",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.LibraryShow,
			},
			{
				Name:      "create",
				Usage:     "Create a local playlist",
				Arguments: []cli.Argument{&cli.StringArg{Name: "name"}},
				Action:    r.LibraryCreate,
			},
			{
				Name:      "add",
				Usage:     "Add a catalog track to a local playlist (Liked Songs by default)",
				Arguments: []cli.Argument{&cli.StringArg{Name: "track"}},
				Flags:     []cli.Flag{playlistFlag()},
				Action:    r.LibraryAdd,
			},
			{
				Name:      "remove",
				Usage:     "Remove a track from a local playlist",
				Arguments: []cli.Argument{&cli.StringArg{Name: "track"}},
				Flags:     []cli.Flag{playlistFlag()},
				Action:    r.LibraryRemove,
			},
			{
				Name:  "rename",
				Usage: "Rename a local playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
					&cli.StringArg{Name: "name"},
				},
				Action: r.LibraryRename,
			},
			{
				Name:      "synced",
				Usage:     "Mark a local playlist as synced to the cloud copy",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "unset",
						Usage: "Clear the synced mark instead",
					},
				},
				Action: r.LibrarySynced,
			},
			{
				Name:      "delete",
				Usage:     "Delete a local playlist",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.LibraryDelete,
			},
		},
	}
}

// serveCommand runs the HTTP API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the JSON API with background ranking and cache sweeps",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default: server.host:server.port from config)",
			},
		},
		Action: r.Serve,
	}
}
