package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/polychrome/internal/cache"
	"github.com/desertthunder/polychrome/internal/mirrors"
	"github.com/desertthunder/polychrome/internal/models"
	"github.com/desertthunder/polychrome/internal/repositories"
	"github.com/desertthunder/polychrome/internal/services"
	"github.com/desertthunder/polychrome/internal/shared"
	tu "github.com/desertthunder/polychrome/internal/testing"
)

type fakeCatalog struct {
	mu      sync.Mutex
	tracks  []models.Track
	streams map[string]string
	cleared int
	swept   int
}

func newFakeCatalog() *fakeCatalog {
	artist := &models.Artist{ID: "7", Name: "Miles Davis"}
	return &fakeCatalog{
		tracks: []models.Track{
			{ID: "1", Title: "So What", Duration: 562, Artist: artist, AudioQuality: "LOSSLESS"},
			{ID: "2", Title: "Freddie Freeloader", Duration: 589, Artist: artist, AudioQuality: "LOSSLESS"},
			{ID: "3", Title: "Blue in Green", Duration: 337, Artist: artist, AudioQuality: "LOSSLESS"},
		},
		streams: map[string]string{"1": "https://cdn.example/1.flac", "3": "https://cdn.example/3.flac"},
	}
}

func (f *fakeCatalog) SearchTracks(_ context.Context, q string) (models.SearchResult[models.Track], error) {
	return models.SearchResult[models.Track]{Items: f.tracks, Limit: 25, TotalNumberOfItems: len(f.tracks)}, nil
}

func (f *fakeCatalog) SearchAlbums(context.Context, string) (models.SearchResult[models.Album], error) {
	return models.SearchResult[models.Album]{Items: []models.Album{{ID: "42", Title: "Kind of Blue", NumberOfTracks: 3}}}, nil
}

func (f *fakeCatalog) SearchArtists(context.Context, string) (models.SearchResult[models.Artist], error) {
	return models.SearchResult[models.Artist]{Items: []models.Artist{{ID: "7", Name: "Miles Davis"}}}, nil
}

func (f *fakeCatalog) Album(_ context.Context, id string) (models.AlbumDetails, error) {
	if id != "42" {
		return models.AlbumDetails{}, fmt.Errorf("%w: %s", shared.ErrAlbumNotFound, id)
	}
	return models.AlbumDetails{
		Album:  models.Album{ID: "42", Title: "Kind of Blue", Artist: &models.Artist{Name: "Miles Davis"}, ReleaseDate: "1959-08-17"},
		Tracks: f.tracks,
	}, nil
}

func (f *fakeCatalog) Artist(context.Context, string) (models.ArtistDetails, error) {
	return models.ArtistDetails{
		Artist: models.Artist{ID: "7", Name: "Miles Davis"},
		Albums: []models.Album{{ID: "42", Title: "Kind of Blue"}},
		Tracks: f.tracks[:1],
	}, nil
}

func (f *fakeCatalog) Playlist(_ context.Context, id string) (models.PlaylistDetails, error) {
	return models.PlaylistDetails{
		Playlist: models.Playlist{UUID: id, Title: "Late Night", NumberOfTracks: 2, Creator: &models.Creator{Name: "poly"}},
		Tracks:   f.tracks[:2],
	}, nil
}

func (f *fakeCatalog) Track(_ context.Context, id, quality string) (models.TrackLookup, error) {
	for _, t := range f.tracks {
		if t.ID.String() == id {
			return models.TrackLookup{
				Track: t,
				Info:  models.TrackInfo{TrackID: t.ID, AudioQuality: "LOSSLESS", BitDepth: 16, SampleRate: 44100},
			}, nil
		}
	}
	return models.TrackLookup{}, shared.ErrAllHostsFailed
}

func (f *fakeCatalog) StreamURL(_ context.Context, id, quality string) (string, error) {
	if _, err := services.ParseQuality(quality); err != nil {
		return "", err
	}
	if u, ok := f.streams[id]; ok {
		return u, nil
	}
	return "", shared.ErrStreamUnavailable
}

func (f *fakeCatalog) ClearCaches(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
}

func (f *fakeCatalog) Sweep(context.Context) (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.swept++
	return 4, 1
}

func (f *fakeCatalog) CacheStats() services.CacheStats {
	return services.CacheStats{Stats: cache.Stats{Entries: 12, Durable: true, FastHits: 3, FastMisses: 9}, Streams: 2}
}

type fakeMirrors struct {
	mu        sync.Mutex
	records   []mirrors.HostRecord
	rankedAt  time.Time
	refreshes int
	started   bool
	stopped   bool
}

func (f *fakeMirrors) RankedHosts() []mirrors.HostRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records
}

func (f *fakeMirrors) LastRanked() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rankedAt
}

func (f *fakeMirrors) Refresh(context.Context) ([]mirrors.HostRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	f.records = []mirrors.HostRecord{
		{URL: "https://a.example", Latency: 30 * time.Millisecond},
		{URL: "https://b.example", Latency: mirrors.Unreachable},
	}
	f.rankedAt = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return f.records, nil
}

func (f *fakeMirrors) Subscribe(func([]mirrors.HostRecord)) func() { return func() {} }

func (f *fakeMirrors) UsableHostURLs(context.Context) ([]string, error) {
	return []string{"https://a.example"}, nil
}

func (f *fakeMirrors) Start(context.Context, time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
}

func (f *fakeMirrors) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func setupTestLibrary(t *testing.T) *repositories.PlaylistRepository {
	t.Helper()
	db, err := shared.OpenMigrated(":memory:", 1, 1)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	library := repositories.NewPlaylistRepository(db)
	if _, err := library.EnsureLikedSongs(context.Background()); err != nil {
		t.Fatalf("failed to create liked songs: %v", err)
	}
	return library
}

type testEnv struct {
	runner  *Runner
	output  *bytes.Buffer
	catalog *fakeCatalog
	mirrors *fakeMirrors
	opened  []string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{output: &bytes.Buffer{}, catalog: newFakeCatalog(), mirrors: &fakeMirrors{}}
	env.runner = NewRunner(RunnerOpts{
		Config:  shared.DefaultConfig(),
		Catalog: env.catalog,
		Mirrors: env.mirrors,
		Library: setupTestLibrary(t),
		Logger:  shared.NewLogger(&bytes.Buffer{}),
		Output:  env.output,
		OpenURL: func(u string) error {
			env.opened = append(env.opened, u)
			return nil
		},
	})
	return env
}

func (e *testEnv) run(t *testing.T, args ...string) error {
	t.Helper()
	e.output.Reset()
	return e.runner.app().Run(context.Background(), append([]string{"poly"}, args...))
}

func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	if err := e.run(t, args...); err != nil {
		t.Fatalf("poly %s: %v", strings.Join(args, " "), err)
	}
	return e.output.String()
}

func decode[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("failed to decode %q: %v", s, err)
	}
	return v
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			catalog := newFakeCatalog()
			ranker := &fakeMirrors{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Catalog:    catalog,
				Mirrors:    ranker,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.ensureCatalog() != Catalog(catalog) {
				t.Error("expected catalog to be used as provided")
			}
			if runner.ensureMirrors() != Mirrors(ranker) {
				t.Error("expected mirrors to be used as provided")
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
			if runner.metrics == nil {
				t.Error("expected metrics to be created")
			}
			if runner.ensureConfig() == nil {
				t.Error("expected default config")
			}
		})

		t.Run("builds services from config", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Cache.Backend = "none"
			config.Mirrors.Hosts = []string{"https://only.example"}
			runner := NewRunner(RunnerOpts{Config: config, Logger: shared.NewLogger(&bytes.Buffer{})})

			ranker, ok := runner.ensureMirrors().(*mirrors.Ranker)
			if !ok {
				t.Fatalf("expected *mirrors.Ranker, got %T", runner.mirrors)
			}
			if hosts := ranker.Hosts(); len(hosts) != 1 || hosts[0] != "https://only.example" {
				t.Errorf("expected configured hosts, got %v", hosts)
			}

			catalog, ok := runner.ensureCatalog().(*services.Catalog)
			if !ok {
				t.Fatalf("expected *services.Catalog, got %T", runner.catalog)
			}
			if catalog.CacheStats().Durable {
				t.Error("expected memory-only cache for the none backend")
			}
			if len(runner.closers) != 1 {
				t.Errorf("expected the response cache to be closed later, got %d closers", len(runner.closers))
			}
			if err := runner.close(context.Background(), nil); err != nil {
				t.Errorf("expected clean close, got %v", err)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}

		for _, want := range []string{"setup", "mirrors", "search", "album", "artist", "playlist", "track", "stream", "export", "cache", "library", "serve"} {
			if !names[want] {
				t.Errorf("expected %s command to be registered", want)
			}
		}
	})
}

func TestConfigLoading(t *testing.T) {
	t.Run("Loads The Named File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "poly.toml")
		if err := os.WriteFile(path, []byte("[server]\nport = 4000\n\n[log]\nlevel = \"debug\"\n"), 0644); err != nil {
			t.Fatal(err)
		}

		runner := NewRunner(RunnerOpts{Catalog: newFakeCatalog(), Output: &bytes.Buffer{}, Logger: shared.NewLogger(&bytes.Buffer{})})
		if err := runner.app().Run(context.Background(), []string{"poly", "--config", path, "cache", "stats"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if runner.config.Server.Port != 4000 {
			t.Errorf("expected port 4000, got %d", runner.config.Server.Port)
		}
		if runner.config.Cache.MaxEntries != 200 {
			t.Errorf("expected defaults for missing keys, got max_entries %d", runner.config.Cache.MaxEntries)
		}
		if runner.configPath != path {
			t.Errorf("expected config path %s, got %s", path, runner.configPath)
		}
	})

	t.Run("Missing File Uses Defaults", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Catalog: newFakeCatalog(), Output: &bytes.Buffer{}, Logger: shared.NewLogger(&bytes.Buffer{})})
		missing := filepath.Join(t.TempDir(), "nope.toml")
		if err := runner.app().Run(context.Background(), []string{"poly", "--config", missing, "cache", "stats"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if runner.config.Server.Port != 3000 {
			t.Errorf("expected default port, got %d", runner.config.Server.Port)
		}
	})

	t.Run("Invalid File Fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.toml")
		if err := os.WriteFile(path, []byte("[dispatcher]\nmax_attempts = 0\n"), 0644); err != nil {
			t.Fatal(err)
		}

		runner := NewRunner(RunnerOpts{Catalog: newFakeCatalog(), Output: &bytes.Buffer{}, Logger: shared.NewLogger(&bytes.Buffer{})})
		err := runner.app().Run(context.Background(), []string{"poly", "--config", path, "cache", "stats"})
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestCatalogCommands(t *testing.T) {
	env := newTestEnv(t)

	t.Run("Search Tracks", func(t *testing.T) {
		out := env.mustRun(t, "search", "tracks", "miles")
		for _, want := range []string{`Found 3 tracks for "miles"`, "So What", "Miles Davis", "9:22"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("Search JSON", func(t *testing.T) {
		out := env.mustRun(t, "--json", "search", "albums", "kind")
		result := decode[models.SearchResult[models.Album]](t, out)
		if len(result.Items) != 1 || result.Items[0].Title != "Kind of Blue" {
			t.Errorf("unexpected albums %+v", result.Items)
		}
	})

	t.Run("Search Artists", func(t *testing.T) {
		out := env.mustRun(t, "search", "artists", "miles")
		if !strings.Contains(out, "Found 1 artists") || !strings.Contains(out, "Miles Davis") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("Missing Query", func(t *testing.T) {
		if err := env.run(t, "search", "tracks"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("Album", func(t *testing.T) {
		out := env.mustRun(t, "album", "42")
		for _, want := range []string{"Kind of Blue - Miles Davis", "Released: 1959-08-17", "Blue in Green"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("Album Not Found", func(t *testing.T) {
		err := env.run(t, "album", "404")
		if shared.KindOf(err) != shared.KindNotFound {
			t.Errorf("expected not_found, got %v", err)
		}
	})

	t.Run("Artist", func(t *testing.T) {
		out := env.mustRun(t, "artist", "7")
		for _, want := range []string{"Miles Davis", "Top tracks:", "So What", "Albums:", "Kind of Blue"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("Playlist", func(t *testing.T) {
		out := env.mustRun(t, "playlist", "pl-1")
		if !strings.Contains(out, "Late Night") || !strings.Contains(out, "By: poly") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("Track", func(t *testing.T) {
		out := env.mustRun(t, "track", "1")
		for _, want := range []string{"So What", "Quality:  LOSSLESS", "16-bit / 44.1 kHz"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("Stream", func(t *testing.T) {
		out := env.mustRun(t, "stream", "1")
		if strings.TrimSpace(out) != "https://cdn.example/1.flac" {
			t.Errorf("unexpected output %q", out)
		}
		if len(env.opened) != 0 {
			t.Error("expected nothing opened without --open")
		}
	})

	t.Run("Stream Open", func(t *testing.T) {
		out := env.mustRun(t, "--json", "stream", "--open", "--quality", "hi-res", "3")
		got := decode[streamOutput](t, out)
		if got.Quality != services.QualityHiResLossless || got.URL != "https://cdn.example/3.flac" {
			t.Errorf("unexpected stream %+v", got)
		}
		if len(env.opened) != 1 || env.opened[0] != "https://cdn.example/3.flac" {
			t.Errorf("expected stream opened, got %v", env.opened)
		}
	})

	t.Run("Stream Invalid Quality", func(t *testing.T) {
		if err := env.run(t, "stream", "--quality", "ultra", "1"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Stream Unavailable", func(t *testing.T) {
		if err := env.run(t, "stream", "2"); !errors.Is(err, shared.ErrStreamUnavailable) {
			t.Errorf("expected ErrStreamUnavailable, got %v", err)
		}
	})
}

func TestExportCommand(t *testing.T) {
	t.Run("Album To M3U", func(t *testing.T) {
		env := newTestEnv(t)
		path := filepath.Join(t.TempDir(), "out", "kind.m3u")

		out := env.mustRun(t, "export", "album", "--format", "m3u", "--output", path, "--rate", "100", "42")
		for _, want := range []string{"Fetching album 42", "Export Complete!", "Resolved: 2/3", "Failed to resolve 1 tracks", "Freddie Freeloader"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}

		tu.AssertFileExists(t, path)
		content := tu.MustReadFile(t, path)
		if !strings.HasPrefix(content, "#EXTM3U") || !strings.Contains(content, "https://cdn.example/3.flac") {
			t.Errorf("unexpected playlist:\n%s", content)
		}
	})

	t.Run("Playlist JSON Output", func(t *testing.T) {
		env := newTestEnv(t)
		t.Chdir(t.TempDir())

		out := env.mustRun(t, "--json", "export", "playlist", "--format", "json", "--rate", "100", "pl-1")
		got := decode[struct {
			Path     string `json:"path"`
			Resolved int    `json:"resolved"`
			Failed   int    `json:"failed"`
		}](t, out)

		if got.Path != "playlist_pl-1.json" || got.Resolved != 1 || got.Failed != 1 {
			t.Errorf("unexpected result %+v", got)
		}
		tu.AssertFileExists(t, "playlist_pl-1.json")
	})

	t.Run("Invalid Format", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run(t, "export", "album", "--format", "wav", "42"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Missing ID", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run(t, "export", "album"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}

func TestMirrorCommands(t *testing.T) {
	t.Run("List Ranks When Unranked", func(t *testing.T) {
		env := newTestEnv(t)

		out := env.mustRun(t, "mirrors", "list")
		if env.mirrors.refreshes != 1 {
			t.Errorf("expected one refresh, got %d", env.mirrors.refreshes)
		}
		for _, want := range []string{"1 of 2 mirrors usable", "https://a.example", "30ms", "unreachable"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}

		env.mustRun(t, "mirrors", "list")
		if env.mirrors.refreshes != 1 {
			t.Errorf("expected cached ranking to be reused, got %d refreshes", env.mirrors.refreshes)
		}
	})

	t.Run("Refresh JSON", func(t *testing.T) {
		env := newTestEnv(t)

		out := env.mustRun(t, "--json", "mirrors", "refresh")
		got := decode[mirrorsOutput](t, out)
		if len(got.Hosts) != 2 || got.Hosts[0].URL != "https://a.example" {
			t.Errorf("unexpected hosts %+v", got.Hosts)
		}
		if got.RankedAt.IsZero() {
			t.Error("expected ranking time")
		}
	})
}

func TestCacheCommands(t *testing.T) {
	env := newTestEnv(t)

	t.Run("Stats", func(t *testing.T) {
		out := env.mustRun(t, "cache", "stats")
		for _, want := range []string{"Responses:      12", "Stream URLs:    2", "Durable tier:   sqlite", "Fast hits:      3 / misses 9"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("Sweep", func(t *testing.T) {
		out := env.mustRun(t, "cache", "sweep")
		if !strings.Contains(out, "Swept 4 expired responses and 1 stream URLs") {
			t.Errorf("unexpected output:\n%s", out)
		}
		if env.catalog.swept != 1 {
			t.Errorf("expected one sweep, got %d", env.catalog.swept)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		env.mustRun(t, "cache", "clear")
		if env.catalog.cleared != 1 {
			t.Errorf("expected caches cleared once, got %d", env.catalog.cleared)
		}
	})
}

func TestLibraryCommands(t *testing.T) {
	env := newTestEnv(t)

	created := decode[models.UserPlaylist](t, env.mustRun(t, "--json", "library", "create", "Road Trip"))
	if created.ID == "" || created.Name != "Road Trip" {
		t.Fatalf("unexpected playlist %+v", created)
	}

	t.Run("List", func(t *testing.T) {
		playlists := decode[[]models.UserPlaylist](t, env.mustRun(t, "--json", "library", "list"))
		if len(playlists) != 2 {
			t.Fatalf("expected Liked Songs and Road Trip, got %d playlists", len(playlists))
		}

		out := env.mustRun(t, "library", "list")
		if !strings.Contains(out, "Liked Songs") || !strings.Contains(out, "Road Trip") {
			t.Errorf("unexpected listing:\n%s", out)
		}
	})

	t.Run("Add Defaults To Liked Songs", func(t *testing.T) {
		out := env.mustRun(t, "library", "add", "1")
		if !strings.Contains(out, "Added Miles Davis - So What to liked-songs") {
			t.Errorf("unexpected output:\n%s", out)
		}

		out = env.mustRun(t, "library", "add", "1")
		if !strings.Contains(out, "already in liked-songs") {
			t.Errorf("expected duplicate notice, got:\n%s", out)
		}
	})

	t.Run("Add To Playlist", func(t *testing.T) {
		env.mustRun(t, "library", "add", "--playlist", created.ID, "3")

		out := env.mustRun(t, "library", "show", created.ID)
		if !strings.Contains(out, "Blue in Green") || !strings.Contains(out, "Tracks: 1") {
			t.Errorf("unexpected playlist:\n%s", out)
		}
	})

	t.Run("Add Unknown Track", func(t *testing.T) {
		if err := env.run(t, "library", "add", "999"); err == nil {
			t.Error("expected lookup error")
		}
	})

	t.Run("Remove", func(t *testing.T) {
		out := env.mustRun(t, "library", "remove", "--playlist", created.ID, "3")
		if !strings.Contains(out, "Removed track 3") {
			t.Errorf("unexpected output:\n%s", out)
		}

		out = env.mustRun(t, "library", "remove", "--playlist", created.ID, "3")
		if !strings.Contains(out, "is not in") {
			t.Errorf("expected missing notice, got:\n%s", out)
		}
	})

	t.Run("Rename", func(t *testing.T) {
		env.mustRun(t, "library", "rename", created.ID, "Night Drive")

		got := decode[models.UserPlaylist](t, env.mustRun(t, "--json", "library", "show", created.ID))
		if got.Name != "Night Drive" {
			t.Errorf("expected renamed playlist, got %q", got.Name)
		}
	})

	t.Run("Synced", func(t *testing.T) {
		env.mustRun(t, "library", "synced", created.ID)
		if out := env.mustRun(t, "library", "show", created.ID); !strings.Contains(out, "Synced: true") {
			t.Errorf("expected synced playlist, got:\n%s", out)
		}

		env.mustRun(t, "library", "synced", "--unset", created.ID)
		got := decode[models.UserPlaylist](t, env.mustRun(t, "--json", "library", "show", created.ID))
		if got.SyncedToGoogle {
			t.Error("expected synced mark cleared")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		env.mustRun(t, "library", "delete", created.ID)

		if err := env.run(t, "library", "show", created.ID); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("Liked Songs Is Protected", func(t *testing.T) {
		if err := env.run(t, "library", "delete", repositories.LikedSongsID); !errors.Is(err, shared.ErrProtectedPlaylist) {
			t.Errorf("expected ErrProtectedPlaylist, got %v", err)
		}
	})
}

func TestSetupCommand(t *testing.T) {
	t.Chdir(t.TempDir())

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{Output: output, Logger: shared.NewLogger(&bytes.Buffer{})})
	if err := runner.app().Run(context.Background(), []string{"poly", "setup"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	tu.AssertFileExists(t, "config.toml")
	tu.AssertFileExists(t, "polychrome.db")
	tu.AssertFileExists(t, "polychrome-cache.db")

	out := output.String()
	if !strings.Contains(out, "Library database ready: ./polychrome.db") || !strings.Contains(out, "Response cache ready") {
		t.Errorf("unexpected output:\n%s", out)
	}

	t.Run("Library Has Liked Songs", func(t *testing.T) {
		db, err := shared.OpenMigrated("polychrome.db", 1, 1)
		if err != nil {
			t.Fatal(err)
		}
		defer db.Close()

		if _, err := repositories.NewPlaylistRepository(db).Get(context.Background(), repositories.LikedSongsID); err != nil {
			t.Errorf("expected liked songs playlist, got %v", err)
		}
	})

	t.Run("Second Run Keeps Config", func(t *testing.T) {
		before := tu.MustReadFile(t, "config.toml")
		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}, Logger: shared.NewLogger(&bytes.Buffer{})})
		if err := runner.app().Run(context.Background(), []string{"poly", "setup"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if tu.MustReadFile(t, "config.toml") != before {
			t.Error("expected config to be left alone")
		}
	})
}

func TestServeCommand(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := env.runner.app().Run(ctx, []string{"poly", "serve", "--addr", "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}
	if !env.mirrors.started || !env.mirrors.stopped {
		t.Errorf("expected ranker started and stopped, got started=%t stopped=%t", env.mirrors.started, env.mirrors.stopped)
	}
}
