package mirrors

import (
	"context"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/polychrome/internal/shared"
)

// Unreachable is the latency recorded for a host that failed its probe.
const Unreachable = time.Duration(math.MaxInt64)

// DefaultRelay is the CORS relay used when a host cannot be reached directly.
const DefaultRelay = "https://cors-anywhere.herokuapp.com/"

// HostRecord is the outcome of probing one host.
type HostRecord struct {
	URL     string        `json:"url"`
	Latency time.Duration `json:"latency"`
	Relayed bool          `json:"relayed"`
}

// Reachable reports whether the probe succeeded.
func (r HostRecord) Reachable() bool {
	return r.Latency != Unreachable
}

// HostProber measures a single host. Implementations never fail; a failed probe yields [Unreachable].
type HostProber interface {
	Probe(ctx context.Context, host string, useRelay bool) HostRecord
}

// RelayURL wraps host so requests reach it through relay.
func RelayURL(relay, host string) string {
	if relay == "" {
		relay = DefaultRelay
	}
	return relay + url.QueryEscape(host)
}

// Prober issues GET <host>/ and times the round trip.
type Prober struct {
	client  *http.Client
	relay   string
	timeout time.Duration
	clock   clock.Clock
	logger  *log.Logger
}

// ProberOptions configures a [Prober]. Zero values select defaults.
type ProberOptions struct {
	Client  *http.Client
	Relay   string
	Timeout time.Duration
	Clock   clock.Clock
	Logger  *log.Logger
}

// NewProber creates a [Prober] with a 5s per-probe timeout unless opts says otherwise.
func NewProber(opts ProberOptions) *Prober {
	p := &Prober{
		client:  opts.Client,
		relay:   opts.Relay,
		timeout: opts.Timeout,
		clock:   opts.Clock,
		logger:  opts.Logger,
	}

	if p.client == nil {
		p.client = http.DefaultClient
	}
	if p.relay == "" {
		p.relay = DefaultRelay
	}
	if p.timeout <= 0 {
		p.timeout = 5 * time.Second
	}
	if p.clock == nil {
		p.clock = clock.New()
	}
	if p.logger == nil {
		p.logger = shared.NewLogger(nil)
	}
	return p
}

// Probe measures host, directly or through the relay. Network errors and non-2xx responses are [Unreachable].
func (p *Prober) Probe(ctx context.Context, host string, useRelay bool) HostRecord {
	record := HostRecord{URL: host, Latency: Unreachable, Relayed: useRelay}

	target := strings.TrimSuffix(host, "/")
	if useRelay {
		target = RelayURL(p.relay, target)
	}
	target += "/"

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		p.logger.Debug("invalid probe target", "host", host, "relayed", useRelay, "error", err)
		return record
	}

	start := p.clock.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("probe failed", "host", host, "relayed", useRelay, "error", err)
		return record
	}
	elapsed := p.clock.Since(start)
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		p.logger.Debug("probe returned non-success status", "host", host, "relayed", useRelay, "status", resp.StatusCode)
		return record
	}

	record.Latency = elapsed
	return record
}
