// package services talks to the lossless catalog mirrors: dispatching requests, normalizing responses and resolving streams.
package services

import (
	"context"
)

// HostSource supplies base URLs in preference order. [mirrors.Ranker] implements it.
type HostSource interface {
	UsableHostURLs(ctx context.Context) ([]string, error)
}

// StaticHosts is a fixed [HostSource].
type StaticHosts []string

func (s StaticHosts) UsableHostURLs(context.Context) ([]string, error) {
	return append([]string(nil), s...), nil
}

// Fetcher issues a GET for a path relative to the best available host. [Dispatcher] implements it.
type Fetcher interface {
	Fetch(ctx context.Context, relativePath string) (*Response, error)
}
