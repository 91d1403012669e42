package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/desertthunder/polychrome/internal/mirrors"
	"github.com/desertthunder/polychrome/internal/services"
	"github.com/desertthunder/polychrome/internal/shared"
)

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type mirrorsBody struct {
	RankedAt *time.Time           `json:"rankedAt,omitempty"`
	Usable   int                  `json:"usable"`
	Hosts    []mirrors.HostRecord `json:"hosts"`
}

type streamBody struct {
	ID      string `json:"id"`
	Quality string `json:"quality"`
	URL     string `json:"url"`
}

func (s *Server) routes() {
	r := s.router
	r.HandleFunc(http.MethodGet, "/api/search/{kind}", s.handleSearch)
	r.HandleFunc(http.MethodGet, "/api/albums/{id}", s.handleAlbum)
	r.HandleFunc(http.MethodGet, "/api/artists/{id}", s.handleArtist)
	r.HandleFunc(http.MethodGet, "/api/playlists/{id}", s.handlePlaylist)
	r.HandleFunc(http.MethodGet, "/api/tracks/{id}", s.handleTrack)
	r.HandleFunc(http.MethodGet, "/api/stream/{id}", s.handleStream)
	r.HandleFunc(http.MethodGet, "/api/mirrors", s.handleMirrors)
	r.HandleFunc(http.MethodPost, "/api/mirrors/refresh", s.handleRefresh)
	r.HandleFunc(http.MethodPost, "/api/cache/clear", s.handleClearCache)
	r.HandleFunc(http.MethodGet, "/api/health", s.handleHealth)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx, q := r.Context(), r.URL.Query().Get("q")

	var (
		result any
		err    error
	)
	switch kind := r.PathValue("kind"); kind {
	case "tracks":
		result, err = s.catalog.SearchTracks(ctx, q)
	case "albums":
		result, err = s.catalog.SearchAlbums(ctx, q)
	case "artists":
		result, err = s.catalog.SearchArtists(ctx, q)
	default:
		writeJSON(w, http.StatusNotFound, errorBody{Kind: string(shared.KindNotFound), Message: "unknown search kind " + kind})
		return
	}
	s.respond(w, r, result, err)
}

func (s *Server) handleAlbum(w http.ResponseWriter, r *http.Request) {
	album, err := s.catalog.Album(r.Context(), r.PathValue("id"))
	s.respond(w, r, album, err)
}

func (s *Server) handleArtist(w http.ResponseWriter, r *http.Request) {
	artist, err := s.catalog.Artist(r.Context(), r.PathValue("id"))
	s.respond(w, r, artist, err)
}

func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	playlist, err := s.catalog.Playlist(r.Context(), r.PathValue("id"))
	s.respond(w, r, playlist, err)
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	lookup, err := s.catalog.Track(r.Context(), r.PathValue("id"), r.URL.Query().Get("quality"))
	s.respond(w, r, lookup, err)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id, quality := r.PathValue("id"), r.URL.Query().Get("quality")

	u, err := s.catalog.StreamURL(r.Context(), id, quality)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if r.URL.Query().Get("redirect") == "1" {
		http.Redirect(w, r, u, http.StatusFound)
		return
	}
	quality, _ = services.ParseQuality(quality)
	writeJSON(w, http.StatusOK, streamBody{ID: id, Quality: quality, URL: u})
}

func (s *Server) handleMirrors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mirrorsBody(s.mirrors.RankedHosts()))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	records, err := s.mirrors.Refresh(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.mirrorsBody(records))
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.catalog.ClearCaches(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := s.mirrorsBody(s.mirrors.RankedHosts())
	status := "ok"
	if body.RankedAt != nil && body.Usable == 0 {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status, "usableMirrors": body.Usable})
}

func (s *Server) mirrorsBody(records []mirrors.HostRecord) mirrorsBody {
	body := mirrorsBody{Hosts: records}
	if body.Hosts == nil {
		body.Hosts = []mirrors.HostRecord{}
	}
	if at := s.mirrors.LastRanked(); !at.IsZero() {
		body.RankedAt = &at
	}
	for _, rec := range records {
		if rec.Reachable() {
			body.Usable++
		}
	}
	return body
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// writeError maps err onto a status code and JSON body. Nothing is written for canceled requests.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := shared.KindOf(err)
	if kind == shared.KindCanceled {
		s.logger.Debug("request canceled", "path", r.URL.Path)
		return
	}

	status := StatusFor(err)
	if status >= 500 {
		s.logger.Error("request failed", "path", r.URL.Path, "kind", kind, "error", err)
	}
	writeJSON(w, status, errorBody{Kind: string(kind), Message: err.Error()})
}

// StatusFor returns the HTTP status an API error is reported with.
func StatusFor(err error) int {
	switch shared.KindOf(err) {
	case shared.KindInvalidArgument:
		return http.StatusBadRequest
	case shared.KindRateLimited:
		return http.StatusTooManyRequests
	case shared.KindNoHosts:
		return http.StatusServiceUnavailable
	case shared.KindStreamUnavailable, shared.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
