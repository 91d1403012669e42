package shared

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Dispatch errors
	ErrNoHosts            = fmt.Errorf("no API instances configured or reachable")
	ErrRateLimited        = fmt.Errorf("too many requests, please wait a moment and try again")
	ErrTransientHost      = fmt.Errorf("upstream host failed")
	ErrAllHostsFailed     = fmt.Errorf("all API instances failed")
	ErrCanceled           = fmt.Errorf("request canceled")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Catalog errors
	ErrMalformedResponse = fmt.Errorf("malformed response")
	ErrStreamUnavailable = fmt.Errorf("could not resolve stream URL, track might be restricted or manifest unavailable")
	ErrAlbumNotFound     = fmt.Errorf("album not found")
	ErrArtistNotFound    = fmt.Errorf("artist not found")
	ErrPlaylistNotFound  = fmt.Errorf("playlist not found")
	ErrTrackNotFound     = fmt.Errorf("track not found")

	// Library errors
	ErrProtectedPlaylist = fmt.Errorf("playlist cannot be deleted")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// ErrorKind classifies failures so callers can choose a user-facing message.
type ErrorKind string

const (
	KindUnknown           ErrorKind = "unknown"
	KindNoHosts           ErrorKind = "no_hosts"
	KindRateLimited       ErrorKind = "rate_limited"
	KindTransient         ErrorKind = "transient"
	KindStatus            ErrorKind = "status"
	KindAllHostsFailed    ErrorKind = "all_hosts_failed"
	KindMalformed         ErrorKind = "malformed_response"
	KindStreamUnavailable ErrorKind = "stream_unavailable"
	KindNotFound          ErrorKind = "not_found"
	KindCanceled          ErrorKind = "canceled"
	KindInvalidArgument   ErrorKind = "invalid_argument"
)

// APIError describes a failed upstream request.
type APIError struct {
	Kind   ErrorKind
	Status int    // HTTP status, 0 for network failures
	URL    string // full request URL
	Err    error  // underlying cause, if any
}

func (e *APIError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("request to %s failed with status %d: %v", e.URL, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("request to %s failed with status %d", e.URL, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("request to %s failed", e.URL)
	}
}

func (e *APIError) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind, so errors.Is(err, ErrRateLimited) holds for a 429.
func (e *APIError) Is(target error) bool {
	switch e.Kind {
	case KindRateLimited:
		return target == ErrRateLimited
	case KindTransient, KindStatus:
		return target == ErrTransientHost
	}
	return false
}

// IsCanceled reports whether err stems from context cancellation rather than a failure.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, ErrCanceled)
}

// KindOf maps an error onto its [ErrorKind].
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	switch {
	case err == nil:
		return ""
	case IsCanceled(err):
		return KindCanceled
	case errors.Is(err, ErrNoHosts):
		return KindNoHosts
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrStreamUnavailable):
		return KindStreamUnavailable
	case errors.Is(err, ErrMalformedResponse):
		return KindMalformed
	case errors.Is(err, ErrAlbumNotFound), errors.Is(err, ErrArtistNotFound),
		errors.Is(err, ErrPlaylistNotFound), errors.Is(err, ErrTrackNotFound):
		return KindNotFound
	case errors.Is(err, ErrAllHostsFailed):
		return KindAllHostsFailed
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrMissingArgument), errors.Is(err, ErrInvalidInput):
		return KindInvalidArgument
	case errors.As(err, &apiErr):
		return apiErr.Kind
	default:
		return KindUnknown
	}
}
