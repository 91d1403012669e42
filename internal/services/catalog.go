package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/polychrome/internal/cache"
	"github.com/desertthunder/polychrome/internal/models"
	"github.com/desertthunder/polychrome/internal/shared"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Cache namespaces.
const (
	NamespaceSearchTracks  = "search_tracks"
	NamespaceSearchAlbums  = "search_albums"
	NamespaceSearchArtists = "search_artists"
	NamespaceAlbum         = "album"
	NamespaceArtist        = "artist"
	NamespacePlaylist      = "playlist"
	NamespaceTrack         = "track"
)

const topTracksLimit = 10

// DefaultFillTimeout bounds a shared cache fill independently of the callers waiting on it.
const DefaultFillTimeout = 2 * time.Minute

// CatalogOptions configures a [Catalog].
type CatalogOptions struct {
	Fetcher Fetcher
	Cache   *cache.TieredCache
	Streams *StreamCache
	Logger  *log.Logger
	// FillTimeout bounds one shared upstream fill. Zero means [DefaultFillTimeout].
	FillTimeout time.Duration
}

// Catalog reads albums, artists, playlists and tracks through the dispatcher, memoizing results.
type Catalog struct {
	fetcher Fetcher
	cache   *cache.TieredCache
	streams *StreamCache
	logger  *log.Logger
	fill    time.Duration
	group   singleflight.Group
}

// NewCatalog creates a [Catalog]. Missing caches are created in memory.
func NewCatalog(opts CatalogOptions) *Catalog {
	c := &Catalog{
		fetcher: opts.Fetcher,
		cache:   opts.Cache,
		streams: opts.Streams,
		logger:  opts.Logger,
		fill:    opts.FillTimeout,
	}

	if c.fill <= 0 {
		c.fill = DefaultFillTimeout
	}

	if c.logger == nil {
		c.logger = shared.NewLogger(nil)
	}
	if c.cache == nil {
		c.cache = cache.New(cache.Options{Logger: c.logger})
	}
	if c.streams == nil {
		c.streams = NewStreamCache(DefaultStreamEntries)
	}
	return c
}

// Cache exposes the response cache.
func (c *Catalog) Cache() *cache.TieredCache { return c.cache }

// Streams exposes the stream URL cache.
func (c *Catalog) Streams() *StreamCache { return c.streams }

// memoize serves ns/id from the cache or fills it once, sharing the fill between concurrent callers.
//
// The fill runs detached from the caller that started it, so one caller going away
// does not fail the others joined to the same key.
func memoize[T any](ctx context.Context, c *Catalog, ns, id string, fill func(context.Context) (T, error)) (T, error) {
	var zero T
	if v, ok := cache.GetJSON[T](ctx, c.cache, ns, id); ok {
		return v, nil
	}

	ch := c.group.DoChan(cache.Key(ns, id), func() (any, error) {
		fillCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fill)
		defer cancel()

		val, err := fill(fillCtx)
		if err != nil {
			return nil, err
		}
		if err := cache.SetJSON(fillCtx, c.cache, ns, id, val); err != nil {
			c.logger.Warn("failed to cache response", "namespace", ns, "id", id, "error", err)
		}
		return val, nil
	})

	select {
	case <-ctx.Done():
		return zero, fmt.Errorf("%w: %w", shared.ErrCanceled, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

func (c *Catalog) fetchTree(ctx context.Context, path string) (any, error) {
	resp, err := c.fetcher.Fetch(ctx, path)
	if err != nil {
		return nil, err
	}
	return decodeTree(resp.Body)
}

// SearchTracks searches tracks by free text.
func (c *Catalog) SearchTracks(ctx context.Context, query string) (models.SearchResult[models.Track], error) {
	return search(ctx, c, NamespaceSearchTracks, "s", "tracks", query, trackItem)
}

// SearchAlbums searches albums by free text.
func (c *Catalog) SearchAlbums(ctx context.Context, query string) (models.SearchResult[models.Album], error) {
	return search(ctx, c, NamespaceSearchAlbums, "al", "albums", query, albumItem)
}

// SearchArtists searches artists by free text.
func (c *Catalog) SearchArtists(ctx context.Context, query string) (models.SearchResult[models.Artist], error) {
	return search(ctx, c, NamespaceSearchArtists, "a", "artists", query, artistItem)
}

// search degrades to an empty page on failure. Cancellation, rate limiting and a missing
// host list still propagate so callers can tell the user why nothing came back.
func search[T any](ctx context.Context, c *Catalog, ns, param, section, query string, item func(any) (T, bool)) (models.SearchResult[T], error) {
	empty := models.SearchResult[T]{Items: []T{}}

	query = strings.TrimSpace(query)
	if query == "" {
		return empty, fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}

	result, err := memoize(ctx, c, ns, query, func(ctx context.Context) (models.SearchResult[T], error) {
		tree, err := c.fetchTree(ctx, fmt.Sprintf("/search/?%s=%s", param, url.QueryEscape(query)))
		if err != nil {
			return empty, err
		}
		return searchPage(findSection(tree, section), item), nil
	})
	if err != nil {
		if propagates(err) {
			return empty, err
		}
		c.logger.Error("search failed", "namespace", ns, "query", query, "error", err)
		return empty, nil
	}
	return result, nil
}

func propagates(err error) bool {
	return shared.IsCanceled(err) || errors.Is(err, shared.ErrRateLimited) || errors.Is(err, shared.ErrNoHosts)
}

// Album returns an album with its tracks.
func (c *Catalog) Album(ctx context.Context, id string) (models.AlbumDetails, error) {
	if id == "" {
		return models.AlbumDetails{}, fmt.Errorf("%w: album id", shared.ErrMissingArgument)
	}

	return memoize(ctx, c, NamespaceAlbum, id, func(ctx context.Context) (models.AlbumDetails, error) {
		tree, err := c.fetchTree(ctx, "/album/?id="+url.QueryEscape(id))
		if err != nil {
			return models.AlbumDetails{}, err
		}

		details, err := parseAlbum(tree)
		if err != nil {
			return models.AlbumDetails{}, fmt.Errorf("album %s: %w", id, err)
		}
		return details, nil
	})
}

// Artist returns an artist with albums sorted newest first and its most popular tracks.
//
// The profile and the discography come from two endpoints fetched concurrently.
func (c *Catalog) Artist(ctx context.Context, id string) (models.ArtistDetails, error) {
	if id == "" {
		return models.ArtistDetails{}, fmt.Errorf("%w: artist id", shared.ErrMissingArgument)
	}

	return memoize(ctx, c, NamespaceArtist, id, func(ctx context.Context) (models.ArtistDetails, error) {
		var primary, content any

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			primary, err = c.fetchTree(gctx, "/artist/?id="+url.QueryEscape(id))
			return err
		})
		g.Go(func() error {
			var err error
			content, err = c.fetchTree(gctx, "/artist/?f="+url.QueryEscape(id))
			return err
		})
		if err := g.Wait(); err != nil {
			return models.ArtistDetails{}, err
		}

		artist, err := parseArtistPrimary(primary)
		if err != nil {
			return models.ArtistDetails{}, fmt.Errorf("artist %s: %w", id, err)
		}

		d := newDiscography()
		for _, entry := range fragments(content) {
			d.scan(entry)
		}
		albums, tracks := d.result(topTracksLimit)

		return models.ArtistDetails{Artist: artist, Albums: albums, Tracks: tracks}, nil
	})
}

// Playlist returns a catalog playlist with its tracks.
func (c *Catalog) Playlist(ctx context.Context, id string) (models.PlaylistDetails, error) {
	if id == "" {
		return models.PlaylistDetails{}, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	return memoize(ctx, c, NamespacePlaylist, id, func(ctx context.Context) (models.PlaylistDetails, error) {
		tree, err := c.fetchTree(ctx, "/playlist/?id="+url.QueryEscape(id))
		if err != nil {
			return models.PlaylistDetails{}, err
		}

		details, err := parsePlaylist(tree)
		if err != nil {
			return models.PlaylistDetails{}, fmt.Errorf("playlist %s: %w", id, err)
		}
		return details, nil
	})
}

// Track looks up a track and its playback info at quality (LOSSLESS when empty).
func (c *Catalog) Track(ctx context.Context, id, quality string) (models.TrackLookup, error) {
	if id == "" {
		return models.TrackLookup{}, fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}
	quality, err := ParseQuality(quality)
	if err != nil {
		return models.TrackLookup{}, err
	}

	return memoize(ctx, c, NamespaceTrack, id+"_"+quality, func(ctx context.Context) (models.TrackLookup, error) {
		tree, err := c.fetchTree(ctx, fmt.Sprintf("/track/?id=%s&quality=%s", url.QueryEscape(id), quality))
		if err != nil {
			return models.TrackLookup{}, err
		}

		lookup, err := parseTrackLookup(tree)
		if err != nil {
			return models.TrackLookup{}, fmt.Errorf("track %s: %w", id, err)
		}
		return lookup, nil
	})
}

// StreamURL resolves a playable URL for a track, preferring OriginalTrackUrl over the manifest.
func (c *Catalog) StreamURL(ctx context.Context, id, quality string) (string, error) {
	quality, err := ParseQuality(quality)
	if err != nil {
		return "", err
	}
	if u, ok := c.streams.Get(id, quality); ok {
		return u, nil
	}

	lookup, err := c.Track(ctx, id, quality)
	if err != nil {
		return "", err
	}

	streamURL := lookup.OriginalTrackURL
	if streamURL == "" && lookup.Info.Manifest != "" {
		streamURL, _ = c.ResolveManifest(lookup.Info.Manifest)
	}
	if streamURL == "" {
		c.logger.Warn("stream lookup failed", "id", id, "quality", quality)
		return "", fmt.Errorf("track %s: %w", id, shared.ErrStreamUnavailable)
	}

	c.streams.Set(id, quality, streamURL)
	return streamURL, nil
}

// ResolveManifest returns the stream URL in a base64 manifest. Failures are logged and reported as absent.
func (c *Catalog) ResolveManifest(manifest string) (string, bool) {
	u, err := ParseManifest(manifest)
	if err != nil {
		c.logger.Debug("manifest unresolved", "error", err)
		return "", false
	}
	return u, true
}

// Sweep drops expired responses and trims the stream cache.
func (c *Catalog) Sweep(ctx context.Context) (responses, streams int) {
	return c.cache.ClearExpired(ctx), c.streams.Prune()
}

// ClearCaches flushes the response and stream caches.
func (c *Catalog) ClearCaches(ctx context.Context) {
	c.cache.Clear(ctx)
	c.streams.Clear()
}

// CacheStats combines the response cache counters with the stream cache size.
type CacheStats struct {
	cache.Stats
	Streams int `json:"streams"`
}

// CacheStats reports the current cache sizes and hit counters.
func (c *Catalog) CacheStats() CacheStats {
	return CacheStats{Stats: c.cache.Stats(), Streams: c.streams.Len()}
}

// ParseQuality canonicalizes a quality name, defaulting to LOSSLESS.
func ParseQuality(quality string) (string, error) {
	if strings.TrimSpace(quality) == "" {
		return DefaultQuality, nil
	}
	if q := NormalizeQuality(quality); q != "" {
		return q, nil
	}
	return "", fmt.Errorf("%w: unknown quality %q", shared.ErrInvalidArgument, quality)
}

// CoverURL returns the image URL for an album cover or playlist image id.
func CoverURL(id string, size int) string {
	if id == "" {
		return "https://picsum.photos/300/300?grayscale"
	}
	if size <= 0 {
		size = 1280
	}
	return imageURL(id, size)
}

// ArtistPictureURL returns the image URL for an artist picture id.
func ArtistPictureURL(id string, size int) string {
	if id == "" {
		return "https://picsum.photos/300/300?blur"
	}
	if size <= 0 {
		size = 750
	}
	return imageURL(id, size)
}

func imageURL(id string, size int) string {
	s := strconv.Itoa(size)
	return "https://resources.tidal.com/images/" + strings.ReplaceAll(id, "-", "/") + "/" + s + "x" + s + ".jpg"
}
