// Package server exposes the catalog, mirror ranking and caches over a small JSON HTTP API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// [Logging] records one line and one metric per request; [Recovery] turns panics into 500 responses.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering,
// so route patterns may use path wildcards such as /api/albums/{id}.
//
// # Routes
//
//	GET  /api/search/{kind}?q=   kind is tracks, albums or artists
//	GET  /api/albums/{id}
//	GET  /api/artists/{id}
//	GET  /api/playlists/{id}
//	GET  /api/tracks/{id}?quality=
//	GET  /api/stream/{id}?quality=
//	GET  /api/mirrors
//	POST /api/mirrors/refresh
//	POST /api/cache/clear
//	GET  /api/health
//	GET  /metrics
//
// # Errors
//
// Failures are written as {"kind": ..., "message": ...}. Rate limiting maps to 429,
// an empty mirror list to 503, missing entities and unresolvable streams to 404, bad
// input to 400 and every other upstream failure to 502. When the client has gone away
// (context canceled) nothing is written.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
