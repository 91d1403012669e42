package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/polychrome/internal/metrics"
	"github.com/desertthunder/polychrome/internal/shared"
	"golang.org/x/time/rate"
)

// RateLimitPolicy decides what a 429 does to the host loop.
type RateLimitPolicy string

const (
	// RateLimitAbort surfaces the first 429 without trying further hosts.
	RateLimitAbort RateLimitPolicy = "abort"
	// RateLimitSkipHost records the 429 and moves on to the next host.
	RateLimitSkipHost RateLimitPolicy = "skip-host"
)

const (
	// DefaultMaxAttempts is how many times one host is tried before the next.
	DefaultMaxAttempts = 3
	// DefaultBackoffBase is multiplied by the attempt number between retries on the same host.
	DefaultBackoffBase = 200 * time.Millisecond
)

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Host       string // base URL that answered
}

// DispatcherOptions configures a [Dispatcher]. Zero values select defaults.
type DispatcherOptions struct {
	Hosts           HostSource
	Client          *http.Client
	MaxAttempts     int
	BackoffBase     time.Duration
	RateLimitPolicy RateLimitPolicy
	RequestsPerSec  float64       // client-side pacing, 0 disables
	RequestTimeout  time.Duration // per attempt, 0 leaves it to the transport
	Clock           clock.Clock
	Logger          *log.Logger
	Metrics         *metrics.Metrics
}

// Dispatcher walks ranked hosts with bounded per-host retries.
type Dispatcher struct {
	hosts       HostSource
	client      *http.Client
	maxAttempts int
	backoff     time.Duration
	policy      RateLimitPolicy
	timeout     time.Duration
	limiter     *rate.Limiter
	clock       clock.Clock
	logger      *log.Logger
	metrics     *metrics.Metrics
}

// NewDispatcher creates a [Dispatcher].
func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	d := &Dispatcher{
		hosts:       opts.Hosts,
		client:      opts.Client,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.BackoffBase,
		policy:      opts.RateLimitPolicy,
		timeout:     opts.RequestTimeout,
		clock:       opts.Clock,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
	}

	if d.hosts == nil {
		d.hosts = StaticHosts(nil)
	}
	if d.client == nil {
		d.client = http.DefaultClient
	}
	if d.maxAttempts <= 0 {
		d.maxAttempts = DefaultMaxAttempts
	}
	if d.backoff <= 0 {
		d.backoff = DefaultBackoffBase
	}
	if d.policy == "" {
		d.policy = RateLimitAbort
	}
	if opts.RequestsPerSec > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSec), 1)
	}
	if d.clock == nil {
		d.clock = clock.New()
	}
	if d.logger == nil {
		d.logger = shared.NewLogger(nil)
	}
	return d
}

// Fetch requests relativePath from each usable host in order until one succeeds.
//
// A 429 yields an [shared.APIError] of kind rate_limited. 401, 5xx and network errors
// are retried on the same host with linear backoff; other statuses move straight to
// the next host. Cancellation stops everything and is reported as [shared.ErrCanceled].
func (d *Dispatcher) Fetch(ctx context.Context, relativePath string) (*Response, error) {
	hosts, err := d.hosts.UsableHostURLs(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, canceled(ctx)
		}
		return nil, fmt.Errorf("failed to resolve hosts: %w", err)
	}
	if len(hosts) == 0 {
		return nil, shared.ErrNoHosts
	}

	var lastErr error

hostLoop:
	for _, base := range hosts {
		target := JoinURL(base, relativePath)

		for attempt := 1; attempt <= d.maxAttempts; attempt++ {
			if d.limiter != nil {
				if err := d.limiter.Wait(ctx); err != nil {
					if ctx.Err() != nil {
						return nil, canceled(ctx)
					}
					return nil, fmt.Errorf("rate limiter: %w", err)
				}
			}

			resp, err := d.do(ctx, target)
			if err != nil {
				if ctx.Err() != nil {
					d.metrics.DispatchAttempt("canceled")
					return nil, canceled(ctx)
				}

				d.metrics.DispatchAttempt("network")
				lastErr = &shared.APIError{Kind: shared.KindTransient, URL: target, Err: err}
				d.logger.Debug("request failed", "url", target, "attempt", attempt, "error", err)

				if attempt < d.maxAttempts {
					if err := d.sleep(ctx, d.backoff*time.Duration(attempt)); err != nil {
						return nil, canceled(ctx)
					}
				}
				continue
			}

			resp.Host = base
			status := resp.StatusCode

			switch {
			case status == http.StatusTooManyRequests:
				d.metrics.DispatchAttempt("rate_limited")
				rlErr := &shared.APIError{Kind: shared.KindRateLimited, Status: status, URL: target, Err: shared.ErrRateLimited}
				if d.policy != RateLimitSkipHost {
					return nil, rlErr
				}
				d.logger.Warn("host rate limited, trying next", "host", base)
				lastErr = rlErr
				continue hostLoop

			case status >= 200 && status <= 299:
				d.metrics.DispatchAttempt("ok")
				return resp, nil

			case status == http.StatusUnauthorized || status >= 500:
				d.metrics.DispatchAttempt("retry")
				lastErr = &shared.APIError{Kind: shared.KindTransient, Status: status, URL: target}
				d.logger.Debug("transient status", "url", target, "status", status, "attempt", attempt)

				if attempt < d.maxAttempts {
					if err := d.sleep(ctx, d.backoff*time.Duration(attempt)); err != nil {
						return nil, canceled(ctx)
					}
					continue
				}
				continue hostLoop

			default:
				d.metrics.DispatchAttempt("status")
				lastErr = &shared.APIError{Kind: shared.KindStatus, Status: status, URL: target}
				continue hostLoop
			}
		}

		d.logger.Debug("host exhausted", "host", base, "attempts", d.maxAttempts)
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w for: %s", shared.ErrAllHostsFailed, relativePath)
}

func (d *Dispatcher) do(ctx context.Context, target string) (*Response, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// sleep waits on the injected clock so tests can advance time.
func (d *Dispatcher) sleep(ctx context.Context, dur time.Duration) error {
	t := d.clock.Timer(dur)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// JoinURL appends path to base, dropping the path's leading slash when base already ends in one.
func JoinURL(base, path string) string {
	if strings.HasSuffix(base, "/") {
		return base + strings.TrimPrefix(path, "/")
	}
	return base + path
}

func canceled(ctx context.Context) error {
	cause := ctx.Err()
	if cause == nil {
		cause = context.Canceled
	}
	if errors.Is(cause, shared.ErrCanceled) {
		return cause
	}
	return fmt.Errorf("%w: %w", shared.ErrCanceled, cause)
}
