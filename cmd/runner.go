package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"go.uber.org/multierr"

	"github.com/desertthunder/polychrome/internal/cache"
	"github.com/desertthunder/polychrome/internal/metrics"
	"github.com/desertthunder/polychrome/internal/mirrors"
	"github.com/desertthunder/polychrome/internal/repositories"
	"github.com/desertthunder/polychrome/internal/server"
	"github.com/desertthunder/polychrome/internal/services"
	"github.com/desertthunder/polychrome/internal/shared"
	"github.com/desertthunder/polychrome/internal/tasks"
	"github.com/desertthunder/polychrome/internal/ui"
)

// Catalog is everything the commands need from [services.Catalog].
type Catalog interface {
	server.Catalog
	tasks.Catalog
	tasks.Sweeper
	CacheStats() services.CacheStats
}

// Mirrors is everything the commands need from [mirrors.Ranker].
type Mirrors interface {
	ui.Mirrors
	services.HostSource
	Start(ctx context.Context, interval time.Duration)
	Stop()
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Services missing from [RunnerOpts] are built from the loaded config the first time a command needs them.
type Runner struct {
	config     *shared.Config
	configPath string
	catalog    Catalog
	mirrors    Mirrors
	library    *repositories.PlaylistRepository
	metrics    *metrics.Metrics
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	openURL    func(string) error
	closers    []io.Closer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Catalog    Catalog
	Mirrors    Mirrors
	Library    *repositories.PlaylistRepository
	Metrics    *metrics.Metrics
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	OpenURL    func(string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.OpenURL == nil {
		opts.OpenURL = shared.OpenURL
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		catalog:    opts.Catalog,
		mirrors:    opts.Mirrors,
		library:    opts.Library,
		metrics:    opts.Metrics,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		openURL:    opts.OpenURL,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, mirrorsCommand, searchCommand, albumCommand, artistCommand, playlistCommand,
		trackCommand, streamCommand, exportCommand, cacheCommand, libraryCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// app builds the root command with the global flags.
func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "poly",
		Usage:   "Search, stream and export from lossless catalog mirrors",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override the configured log level (debug, info, warn, error)",
			},
		},
		Before:   r.load,
		After:    r.close,
		Commands: r.register(),
	}
}

// load reads the config named by --config, falling back to defaults when the file does not exist.
func (r *Runner) load(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if r.config == nil {
		r.configPath = cmd.String("config")
		if _, err := os.Stat(r.configPath); err == nil {
			config, err := shared.LoadConfig(r.configPath)
			if err != nil {
				return ctx, err
			}
			r.config = config
		} else {
			r.logger.Debug("config file not found, using defaults", "path", r.configPath)
			r.config = shared.DefaultConfig()
		}
	}

	level := r.config.Log.Level
	if lvl := cmd.String("log-level"); lvl != "" {
		level = lvl
	}
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(level))
	return ctx, nil
}

// close releases every database and cache opened while running the command.
func (r *Runner) close(context.Context, *cli.Command) error {
	var err error
	for i := len(r.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, r.closers[i].Close())
	}
	r.closers = nil
	return err
}

func (r *Runner) ensureConfig() *shared.Config {
	if r.config == nil {
		r.config = shared.DefaultConfig()
	}
	return r.config
}

// ensureMirrors builds the ranker from the mirrors section of the config.
func (r *Runner) ensureMirrors() Mirrors {
	if r.mirrors != nil {
		return r.mirrors
	}

	cfg := r.ensureConfig().Mirrors
	prober := mirrors.NewProber(mirrors.ProberOptions{
		Client:  r.httpClient,
		Relay:   cfg.Relay,
		Timeout: cfg.ProbeTimeout.Duration,
		Logger:  r.logger,
	})
	r.mirrors = mirrors.NewRanker(mirrors.Options{
		Hosts:   cfg.Hosts,
		Relay:   cfg.Relay,
		TTL:     cfg.RankingTTL.Duration,
		Prober:  prober,
		Logger:  r.logger,
		Metrics: r.metrics,
	})
	return r.mirrors
}

// ensureCatalog wires the dispatcher and both caches behind a [services.Catalog].
func (r *Runner) ensureCatalog() Catalog {
	if r.catalog != nil {
		return r.catalog
	}

	cfg := r.ensureConfig()
	dispatcher := services.NewDispatcher(services.DispatcherOptions{
		Hosts:           r.ensureMirrors(),
		Client:          r.httpClient,
		MaxAttempts:     cfg.Dispatcher.MaxAttempts,
		BackoffBase:     cfg.Dispatcher.BackoffBase.Duration,
		RateLimitPolicy: services.RateLimitPolicy(cfg.Dispatcher.RateLimit429),
		RequestsPerSec:  cfg.Dispatcher.RateLimit,
		RequestTimeout:  cfg.Dispatcher.RequestTimeout.Duration,
		Logger:          r.logger,
		Metrics:         r.metrics,
	})

	responses := cache.NewFromConfig(cfg.Cache, nil, r.logger, r.metrics)
	r.closers = append(r.closers, responses)

	r.catalog = services.NewCatalog(services.CatalogOptions{
		Fetcher: dispatcher,
		Cache:   responses,
		Streams: services.NewStreamCache(cfg.Cache.StreamMaxEntries),
		Logger:  r.logger,
	})
	return r.catalog
}

// ensureLibrary opens the migrated library database and makes sure Liked Songs exists.
func (r *Runner) ensureLibrary(ctx context.Context) (*repositories.PlaylistRepository, error) {
	if r.library != nil {
		return r.library, nil
	}

	cfg := r.ensureConfig().Database
	db, err := shared.OpenMigrated(cfg.Path, cfg.MaxOpenConns, cfg.MaxIdleConns)
	if err != nil {
		return nil, fmt.Errorf("failed to open library: %w", err)
	}
	r.closers = append(r.closers, db)

	library := repositories.NewPlaylistRepository(db)
	if _, err := library.EnsureLikedSongs(ctx); err != nil {
		return nil, err
	}
	r.library = library
	return library, nil
}

// SetLogger replaces the logger used by commands started after the call.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

func (r *Runner) writeBytes(b []byte) error {
	if _, err := r.output.Write(b); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// render writes v as JSON when --json is set, otherwise calls plain.
func (r *Runner) render(cmd *cli.Command, v any, plain func() error) error {
	if cmd.Bool("json") {
		return r.writeJSON(v, true)
	}
	return plain()
}
