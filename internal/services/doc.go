// Package services implements the client side of the lossless catalog API.
//
// # Dispatcher
//
// [Dispatcher] issues GET requests against the hosts a [HostSource] hands out, in
// order. Each host gets up to three attempts: 401, 5xx and network errors back off
// linearly (200ms × attempt) and retry, other failures move to the next host, and
// a 429 is reported as a rate-limit error. Cancellation is never retried.
//
// # Catalog
//
// [Catalog] wraps the dispatcher with the response cache. Upstream bodies are either
// single objects or arrays of fragments; each endpoint picks the fragments it needs
// (the album is the fragment with numberOfTracks, the track the one with duration)
// and search results fall back to a depth-first scan for the first object carrying
// an items array.
//
// # Streams
//
// Stream URLs come from OriginalTrackUrl when present or from the base64 manifest,
// which decodes to JSON with a urls array or to text containing a URL. Resolved URLs
// are kept in a small FIFO [StreamCache].
package services
