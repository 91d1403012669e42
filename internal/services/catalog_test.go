package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/desertthunder/polychrome/internal/cache"
	"github.com/desertthunder/polychrome/internal/shared"
)

// stubFetcher answers fixed bodies per relative path and counts calls.
type stubFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	errs   map[string]error
	calls  map[string]int
	gate   chan struct{}
}

func newStubFetcher(bodies map[string]string) *stubFetcher {
	return &stubFetcher{bodies: bodies, errs: map[string]error{}, calls: map[string]int{}}
}

func (s *stubFetcher) Fetch(ctx context.Context, path string) (*Response, error) {
	s.mu.Lock()
	s.calls[path]++
	gate := s.gate
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err, ok := s.errs[path]; ok {
		return nil, err
	}
	body, ok := s.bodies[path]
	if !ok {
		return nil, &shared.APIError{Kind: shared.KindStatus, Status: 404, URL: path}
	}
	return &Response{StatusCode: 200, Body: []byte(body)}, nil
}

func (s *stubFetcher) count(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

func newTestCatalog(f Fetcher) *Catalog {
	logger := shared.NewLogger(nil)
	return NewCatalog(CatalogOptions{
		Fetcher: f,
		Cache:   cache.New(cache.Options{Clock: clock.NewMock(), Logger: logger}),
		Logger:  logger,
	})
}

const searchTracksBody = `{"version":"2.0","data":{"tracks":{"limit":25,"offset":0,"totalNumberOfItems":1,
	"items":[{"id":1,"title":"So What","duration":545,"artists":[{"id":9,"name":"Miles Davis"}],"audioQuality":"LOSSLESS"}]}}}`

func TestCatalogSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("Tracks", func(t *testing.T) {
		f := newStubFetcher(map[string]string{"/search/?s=so+what": searchTracksBody})
		c := newTestCatalog(f)

		result, err := c.SearchTracks(ctx, "so what")
		if err != nil {
			t.Fatalf("SearchTracks failed: %v", err)
		}
		if len(result.Items) != 1 || result.Items[0].Artist.Name != "Miles Davis" {
			t.Fatalf("unexpected result %+v", result)
		}
		if result.Limit != 25 || result.TotalNumberOfItems != 1 {
			t.Errorf("expected counts from section, got %+v", result)
		}

		if _, err := c.SearchTracks(ctx, "so what"); err != nil {
			t.Fatalf("SearchTracks failed: %v", err)
		}
		if f.count("/search/?s=so+what") != 1 {
			t.Errorf("expected cached second search, got %d fetches", f.count("/search/?s=so+what"))
		}
	})

	t.Run("Albums And Artists", func(t *testing.T) {
		f := newStubFetcher(map[string]string{
			"/search/?al=kind": `{"albums":{"items":[{"id":5,"title":"Kind of Blue","numberOfTracks":5,"artists":[{"id":9,"name":"Miles"}]}]}}`,
			"/search/?a=miles": `[{"artists":{"items":[{"id":9,"name":"Miles","artistTypes":["ARTIST"]}]}}]`,
		})
		c := newTestCatalog(f)

		albums, err := c.SearchAlbums(ctx, "kind")
		if err != nil || len(albums.Items) != 1 || albums.Items[0].Artist.Name != "Miles" {
			t.Errorf("unexpected albums %+v (%v)", albums, err)
		}

		artists, err := c.SearchArtists(ctx, "miles")
		if err != nil || len(artists.Items) != 1 || artists.Items[0].Type != "ARTIST" {
			t.Errorf("unexpected artists %+v (%v)", artists, err)
		}
	})

	t.Run("Failures Degrade To Empty", func(t *testing.T) {
		f := newStubFetcher(map[string]string{"/search/?s=broken": "<html>"})
		f.errs["/search/?s=down"] = &shared.APIError{Kind: shared.KindTransient, Status: 502, URL: "x"}
		c := newTestCatalog(f)

		for _, q := range []string{"broken", "down", "missing"} {
			result, err := c.SearchTracks(ctx, q)
			if err != nil {
				t.Errorf("%s: expected degraded result, got error %v", q, err)
			}
			if result.Items == nil || len(result.Items) != 0 {
				t.Errorf("%s: expected empty items, got %+v", q, result.Items)
			}
		}

		if _, ok := c.Cache().Get(ctx, NamespaceSearchTracks, "broken"); ok {
			t.Error("expected failed search not to be cached")
		}
	})

	t.Run("Rate Limit Propagates", func(t *testing.T) {
		f := newStubFetcher(nil)
		f.errs["/search/?s=x"] = &shared.APIError{Kind: shared.KindRateLimited, Status: 429, URL: "x", Err: shared.ErrRateLimited}
		c := newTestCatalog(f)

		if _, err := c.SearchTracks(ctx, "x"); !errors.Is(err, shared.ErrRateLimited) {
			t.Errorf("expected ErrRateLimited, got %v", err)
		}
	})

	t.Run("No Hosts Propagates", func(t *testing.T) {
		f := newStubFetcher(nil)
		f.errs["/search/?a=x"] = shared.ErrNoHosts
		c := newTestCatalog(f)

		if _, err := c.SearchArtists(ctx, "x"); !errors.Is(err, shared.ErrNoHosts) {
			t.Errorf("expected ErrNoHosts, got %v", err)
		}
	})

	t.Run("Empty Query", func(t *testing.T) {
		c := newTestCatalog(newStubFetcher(nil))
		if _, err := c.SearchTracks(ctx, "  "); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}

func TestCatalogLookups(t *testing.T) {
	ctx := context.Background()

	t.Run("Album Is Cached", func(t *testing.T) {
		f := newStubFetcher(map[string]string{
			"/album/?id=10": `[{"id":10,"title":"Blue","numberOfTracks":1},{"items":[{"item":{"id":1,"title":"T","duration":5}}]}]`,
		})
		c := newTestCatalog(f)

		for range 2 {
			details, err := c.Album(ctx, "10")
			if err != nil {
				t.Fatalf("Album failed: %v", err)
			}
			if details.Album.Title != "Blue" || len(details.Tracks) != 1 {
				t.Fatalf("unexpected album %+v", details)
			}
		}
		if f.count("/album/?id=10") != 1 {
			t.Errorf("expected a single fetch, got %d", f.count("/album/?id=10"))
		}
	})

	t.Run("Album Not Found", func(t *testing.T) {
		c := newTestCatalog(newStubFetcher(map[string]string{"/album/?id=1": `{"items":[]}`}))
		_, err := c.Album(ctx, "1")
		if shared.KindOf(err) != shared.KindNotFound {
			t.Errorf("expected not_found kind, got %s (%v)", shared.KindOf(err), err)
		}
	})

	t.Run("Concurrent Fills Coalesce", func(t *testing.T) {
		f := newStubFetcher(map[string]string{"/album/?id=3": `{"id":3,"title":"C","numberOfTracks":0}`})
		f.gate = make(chan struct{})
		c := newTestCatalog(f)

		var wg sync.WaitGroup
		for range 3 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := c.Album(ctx, "3"); err != nil {
					t.Errorf("Album failed: %v", err)
				}
			}()
		}
		time.Sleep(50 * time.Millisecond)
		close(f.gate)
		wg.Wait()

		if f.count("/album/?id=3") != 1 {
			t.Errorf("expected one upstream fetch, got %d", f.count("/album/?id=3"))
		}
	})

	t.Run("Canceled Caller Does Not Fail Joined Callers", func(t *testing.T) {
		f := newStubFetcher(map[string]string{"/album/?id=4": `{"id":4,"title":"D","numberOfTracks":0}`})
		f.gate = make(chan struct{})
		c := newTestCatalog(f)

		ctxA, cancelA := context.WithCancel(ctx)
		errA := make(chan error, 1)
		go func() {
			_, err := c.Album(ctxA, "4")
			errA <- err
		}()
		time.Sleep(20 * time.Millisecond)

		type albumResult struct {
			title string
			err   error
		}
		resB := make(chan albumResult, 1)
		go func() {
			album, err := c.Album(ctx, "4")
			resB <- albumResult{album.Album.Title, err}
		}()
		time.Sleep(50 * time.Millisecond)

		cancelA()
		if err := <-errA; shared.KindOf(err) != shared.KindCanceled {
			t.Fatalf("expected first caller to be canceled, got %v", err)
		}

		close(f.gate)
		got := <-resB
		if got.err != nil {
			t.Fatalf("expected joined caller to succeed, got %v", got.err)
		}
		if got.title != "D" {
			t.Errorf("expected album D, got %q", got.title)
		}
		if f.count("/album/?id=4") != 1 {
			t.Errorf("expected one upstream fetch, got %d", f.count("/album/?id=4"))
		}
		if _, err := c.Album(ctx, "4"); err != nil || f.count("/album/?id=4") != 1 {
			t.Errorf("expected the shared fill to be cached, err %v, fetches %d", err, f.count("/album/?id=4"))
		}
	})

	t.Run("Fill Is Bounded By Its Own Timeout", func(t *testing.T) {
		f := newStubFetcher(nil)
		f.gate = make(chan struct{})
		defer close(f.gate)
		logger := shared.NewLogger(nil)
		c := NewCatalog(CatalogOptions{
			Fetcher:     f,
			Cache:       cache.New(cache.Options{Clock: clock.NewMock(), Logger: logger}),
			Logger:      logger,
			FillTimeout: 20 * time.Millisecond,
		})

		if _, err := c.Album(ctx, "9"); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected context.DeadlineExceeded, got %v", err)
		}
	})

	t.Run("Artist", func(t *testing.T) {
		var tracks []string
		for i := range 12 {
			tracks = append(tracks, fmt.Sprintf(`{"item":{"id":%d,"title":"T%d","duration":100,"popularity":%d,"album":{"id":20}}}`, 100+i, i, i))
		}
		content := `{"rows":[{"modules":[
			{"pagedList":{"items":[
				{"id":20,"title":"Old","numberOfTracks":10,"releaseDate":"2001-01-01"},
				{"id":21,"title":"New","numberOfTracks":8,"releaseDate":"2020-05-01"}
			]}},
			{"pagedList":{"items":[` + strings.Join(tracks, ",") + `]}}
		]}]}`

		f := newStubFetcher(map[string]string{
			"/artist/?id=5": `[{"id":5,"name":"Band","artistTypes":["ARTIST","CONTRIBUTOR"],"picture":"ab-cd"}]`,
			"/artist/?f=5":  content,
		})
		c := newTestCatalog(f)

		details, err := c.Artist(ctx, "5")
		if err != nil {
			t.Fatalf("Artist failed: %v", err)
		}
		if details.Name != "Band" || details.Type != "ARTIST" || details.Picture != "ab-cd" {
			t.Errorf("unexpected artist %+v", details.Artist)
		}
		if len(details.Albums) != 2 || details.Albums[0].Title != "New" {
			t.Errorf("expected albums newest first, got %+v", details.Albums)
		}
		if len(details.Tracks) != 10 {
			t.Fatalf("expected top 10 tracks, got %d", len(details.Tracks))
		}
		if details.Tracks[0].Popularity != 11 || details.Tracks[9].Popularity != 2 {
			t.Errorf("expected tracks by popularity desc, got first %d last %d", details.Tracks[0].Popularity, details.Tracks[9].Popularity)
		}
	})

	t.Run("Artist Fetch Failure", func(t *testing.T) {
		f := newStubFetcher(map[string]string{"/artist/?id=5": `{"id":5,"name":"Band"}`})
		c := newTestCatalog(f)

		if _, err := c.Artist(ctx, "5"); err == nil {
			t.Error("expected error when discography fetch fails")
		}
	})

	t.Run("Artist Without Name", func(t *testing.T) {
		f := newStubFetcher(map[string]string{
			"/artist/?id=6": `{"id":6}`,
			"/artist/?f=6":  `[]`,
		})
		details, err := newTestCatalog(f).Artist(ctx, "6")
		if err != nil {
			t.Fatalf("Artist failed: %v", err)
		}
		if details.Name != "Unknown Artist" || details.Albums == nil || details.Tracks == nil {
			t.Errorf("unexpected artist %+v", details)
		}
	})

	t.Run("Playlist", func(t *testing.T) {
		f := newStubFetcher(map[string]string{
			"/playlist/?id=ab-cd": `[{"uuid":"ab-cd","title":"Mix","numberOfTracks":1},{"items":[{"item":{"id":1,"title":"T","duration":1}}]}]`,
		})
		details, err := newTestCatalog(f).Playlist(ctx, "ab-cd")
		if err != nil {
			t.Fatalf("Playlist failed: %v", err)
		}
		if details.Playlist.Title != "Mix" || len(details.Tracks) != 1 {
			t.Errorf("unexpected playlist %+v", details)
		}
	})

	t.Run("Missing IDs", func(t *testing.T) {
		c := newTestCatalog(newStubFetcher(nil))
		if _, err := c.Album(ctx, ""); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if _, err := c.Playlist(ctx, ""); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if _, err := c.Track(ctx, "", ""); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}

func TestCatalogStreams(t *testing.T) {
	ctx := context.Background()
	manifest := base64.StdEncoding.EncodeToString([]byte(`{"urls":["https://cdn.test/1.flac"]}`))

	t.Run("Track Lookup Uses Quality In Path And Key", func(t *testing.T) {
		f := newStubFetcher(map[string]string{
			"/track/?id=1&quality=HI_RES_LOSSLESS": `[{"id":1,"title":"T","duration":1},{"manifest":"` + manifest + `"}]`,
		})
		c := newTestCatalog(f)

		lookup, err := c.Track(ctx, "1", "hi-res lossless")
		if err != nil {
			t.Fatalf("Track failed: %v", err)
		}
		if lookup.Info.Manifest != manifest {
			t.Errorf("expected manifest, got %+v", lookup.Info)
		}
		if _, ok := c.Cache().Get(ctx, NamespaceTrack, "1_HI_RES_LOSSLESS"); !ok {
			t.Error("expected lookup cached under id_quality")
		}
	})

	t.Run("Manifest Stream", func(t *testing.T) {
		path := "/track/?id=1&quality=LOSSLESS"
		f := newStubFetcher(map[string]string{path: `[{"id":1,"title":"T","duration":1},{"manifest":"` + manifest + `"}]`})
		c := newTestCatalog(f)

		u, err := c.StreamURL(ctx, "1", "")
		if err != nil {
			t.Fatalf("StreamURL failed: %v", err)
		}
		if u != "https://cdn.test/1.flac" {
			t.Errorf("unexpected url %s", u)
		}

		c.Cache().Clear(ctx)
		if _, err := c.StreamURL(ctx, "1", "LOSSLESS"); err != nil {
			t.Fatalf("StreamURL failed: %v", err)
		}
		if f.count(path) != 1 {
			t.Errorf("expected stream cache hit, got %d fetches", f.count(path))
		}
	})

	t.Run("Original URL Preferred", func(t *testing.T) {
		f := newStubFetcher(map[string]string{
			"/track/?id=2&quality=LOSSLESS": `[{"id":2,"title":"T","duration":1},{"manifest":"` + manifest + `"},{"OriginalTrackUrl":"https://orig.test/2.flac"}]`,
		})
		u, err := newTestCatalog(f).StreamURL(ctx, "2", "")
		if err != nil || u != "https://orig.test/2.flac" {
			t.Errorf("expected original url, got %q (%v)", u, err)
		}
	})

	t.Run("Unresolvable", func(t *testing.T) {
		bad := base64.StdEncoding.EncodeToString([]byte("no links here"))
		f := newStubFetcher(map[string]string{
			"/track/?id=3&quality=LOSSLESS": `[{"id":3,"title":"T","duration":1},{"manifest":"` + bad + `"}]`,
		})
		c := newTestCatalog(f)

		_, err := c.StreamURL(ctx, "3", "")
		if !errors.Is(err, shared.ErrStreamUnavailable) {
			t.Fatalf("expected ErrStreamUnavailable, got %v", err)
		}
		if shared.KindOf(err) != shared.KindStreamUnavailable {
			t.Errorf("expected stream_unavailable kind, got %s", shared.KindOf(err))
		}
		if c.Streams().Len() != 0 {
			t.Error("expected nothing cached for an unresolvable stream")
		}
	})

	t.Run("Invalid Quality", func(t *testing.T) {
		if _, err := newTestCatalog(newStubFetcher(nil)).StreamURL(ctx, "1", "ultra"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Sweep And Clear", func(t *testing.T) {
		c := newTestCatalog(newStubFetcher(nil))
		c.Streams().Set("1", QualityLossless, "u")
		c.Cache().Set(ctx, NamespaceAlbum, "1", []byte("{}"))

		if responses, streams := c.Sweep(ctx); responses != 0 || streams != 0 {
			t.Errorf("expected nothing swept, got %d/%d", responses, streams)
		}
		if stats := c.CacheStats(); stats.Entries != 1 || stats.Streams != 1 {
			t.Errorf("expected 1 response and 1 stream cached, got %+v", stats)
		}

		c.ClearCaches(ctx)
		if c.Streams().Len() != 0 || c.Cache().Stats().Entries != 0 {
			t.Error("expected both caches cleared")
		}
	})
}

func TestImageURLs(t *testing.T) {
	if got := CoverURL("ab-cd-ef", 640); got != "https://resources.tidal.com/images/ab/cd/ef/640x640.jpg" {
		t.Errorf("unexpected cover url %s", got)
	}
	if got := CoverURL("ab", 0); !strings.HasSuffix(got, "/1280x1280.jpg") {
		t.Errorf("expected default cover size, got %s", got)
	}
	if got := ArtistPictureURL("ab", 0); !strings.HasSuffix(got, "/750x750.jpg") {
		t.Errorf("expected default picture size, got %s", got)
	}
	if !strings.Contains(CoverURL("", 0), "picsum") || !strings.Contains(ArtistPictureURL("", 0), "picsum") {
		t.Error("expected placeholder for empty ids")
	}
}
