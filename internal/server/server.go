package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/polychrome/internal/metrics"
	"github.com/desertthunder/polychrome/internal/mirrors"
	"github.com/desertthunder/polychrome/internal/models"
	"github.com/desertthunder/polychrome/internal/shared"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, panic recovery, CORS, rate limiting, etc.
type Middleware func(http.Handler) http.Handler

// Handler defines the interface for HTTP request handlers that own a set of routes.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
// Implementations register handlers, apply middleware, and configure the HTTP server.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Catalog is the part of [services.Catalog] the API serves.
type Catalog interface {
	SearchTracks(ctx context.Context, query string) (models.SearchResult[models.Track], error)
	SearchAlbums(ctx context.Context, query string) (models.SearchResult[models.Album], error)
	SearchArtists(ctx context.Context, query string) (models.SearchResult[models.Artist], error)
	Album(ctx context.Context, id string) (models.AlbumDetails, error)
	Artist(ctx context.Context, id string) (models.ArtistDetails, error)
	Playlist(ctx context.Context, id string) (models.PlaylistDetails, error)
	Track(ctx context.Context, id, quality string) (models.TrackLookup, error)
	StreamURL(ctx context.Context, id, quality string) (string, error)
	ClearCaches(ctx context.Context)
}

// Mirrors is the part of [mirrors.Ranker] the API serves.
type Mirrors interface {
	RankedHosts() []mirrors.HostRecord
	LastRanked() time.Time
	Refresh(ctx context.Context) ([]mirrors.HostRecord, error)
}

// Options configures a [Server].
type Options struct {
	Catalog Catalog
	Mirrors Mirrors
	Metrics *metrics.Metrics
	Logger  *log.Logger
}

// Server serves the JSON API.
type Server struct {
	router  *BasicRouter
	catalog Catalog
	mirrors Mirrors
	logger  *log.Logger
}

// New builds a Server with every route registered.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	logger := shared.WithLogger(opts.Logger, "component", "server")

	s := &Server{
		router:  NewBasicRouter(),
		catalog: opts.Catalog,
		mirrors: opts.Mirrors,
		logger:  logger,
	}

	s.router.Use(Logging(logger, opts.Metrics), Recovery(logger))
	s.routes()
	s.router.Handler(metricsHandler{opts.Metrics.Handler()})
	s.router.Handler(fallbackHandler{})
	return s
}

// Routes lists the registered route patterns.
func (s *Server) Routes() []string { return s.router.Routes() }

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

type metricsHandler struct {
	http.Handler
}

func (metricsHandler) Routes() []string { return []string{"GET /metrics"} }

type fallbackHandler struct{}

func (fallbackHandler) Routes() []string { return []string{"/"} }

func (fallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorBody{Kind: string(shared.KindNotFound), Message: "no route for " + r.URL.Path})
}
