package mirrors

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/polychrome/internal/metrics"
	"github.com/desertthunder/polychrome/internal/shared"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a ranking stays fresh before [Ranker.UsableHostURLs] rebuilds it.
const DefaultTTL = 5 * time.Minute

// DefaultPassTimeout bounds one ranking pass independently of the callers waiting on it.
const DefaultPassTimeout = 30 * time.Second

// tieWindow is the latency difference under which a direct host beats a relayed one.
const tieWindow = 10 * time.Millisecond

// Options configures a [Ranker].
type Options struct {
	Hosts []string
	Relay string
	TTL   time.Duration
	// PassTimeout bounds a shared ranking pass. Zero means [DefaultPassTimeout].
	PassTimeout time.Duration
	Prober      HostProber
	Clock       clock.Clock
	Logger      *log.Logger
	Metrics     *metrics.Metrics
}

// Ranker owns the ranked host snapshot.
//
// Readers always see a complete snapshot: a pass builds a new slice and swaps it in
// under the write lock, so [Ranker.RankedHosts] never observes a half-sorted list.
type Ranker struct {
	hosts   []string
	relay   string
	ttl     time.Duration
	pass    time.Duration
	prober  HostProber
	clock   clock.Clock
	logger  *log.Logger
	metrics *metrics.Metrics

	mu       sync.RWMutex
	ranked   []HostRecord
	rankedAt time.Time

	group singleflight.Group

	subMu  sync.Mutex
	subs   map[int]func([]HostRecord)
	nextID int

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRanker creates a [Ranker]. A nil Prober defaults to an HTTP [Prober] on the same relay and clock.
func NewRanker(opts Options) *Ranker {
	r := &Ranker{
		hosts:   append([]string(nil), opts.Hosts...),
		relay:   opts.Relay,
		ttl:     opts.TTL,
		pass:    opts.PassTimeout,
		prober:  opts.Prober,
		clock:   opts.Clock,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		subs:    make(map[int]func([]HostRecord)),
	}

	if r.relay == "" {
		r.relay = DefaultRelay
	}
	if r.ttl <= 0 {
		r.ttl = DefaultTTL
	}
	if r.pass <= 0 {
		r.pass = DefaultPassTimeout
	}
	if r.clock == nil {
		r.clock = clock.New()
	}
	if r.logger == nil {
		r.logger = shared.NewLogger(nil)
	}
	if r.prober == nil {
		r.prober = NewProber(ProberOptions{Relay: r.relay, Clock: r.clock, Logger: r.logger})
	}
	return r
}

// Hosts returns the configured candidates.
func (r *Ranker) Hosts() []string {
	return append([]string(nil), r.hosts...)
}

// Refresh probes every host and publishes a new ranking.
//
// Concurrent calls share one pass. The pass does not inherit the cancellation of the
// caller that started it: a canceled caller returns early while the pass keeps running
// for everyone else, bounded by the pass timeout. Until it finishes the previous
// snapshot is kept.
func (r *Ranker) Refresh(ctx context.Context) ([]HostRecord, error) {
	ch := r.group.DoChan("refresh", func() (any, error) {
		passCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.pass)
		defer cancel()
		return r.rank(passCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return cloneRecords(res.Val.([]HostRecord)), nil
	}
}

func (r *Ranker) rank(ctx context.Context) ([]HostRecord, error) {
	start := r.clock.Now()

	direct := r.probeAll(ctx, r.hosts, false)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]HostRecord, 0, len(direct))
	var failed []string
	for _, rec := range direct {
		if rec.Reachable() {
			results = append(results, rec)
		} else {
			failed = append(failed, rec.URL)
		}
	}

	if len(failed) > 0 {
		results = append(results, r.probeAll(ctx, failed, true)...)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	SortRecords(results)

	r.mu.Lock()
	r.ranked = results
	r.rankedAt = r.clock.Now()
	r.mu.Unlock()

	usable := countReachable(results)
	r.metrics.RankingCompleted(usable, r.clock.Since(start).Seconds())
	r.logger.Info("mirrors ranked", "usable", usable, "total", len(results), "failed_direct", len(failed))

	r.notify(results)
	return results, nil
}

// probeAll fans out one probe per host and collects the records in input order.
func (r *Ranker) probeAll(ctx context.Context, hosts []string, useRelay bool) []HostRecord {
	records := make([]HostRecord, len(hosts))

	var g errgroup.Group
	for i, host := range hosts {
		g.Go(func() error {
			records[i] = r.prober.Probe(ctx, host, useRelay)
			return nil
		})
	}
	_ = g.Wait()

	return records
}

// SortRecords orders records by ascending latency, preferring direct hosts within 10ms of a relayed one.
func SortRecords(records []HostRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Relayed != b.Relayed && absDuration(a.Latency-b.Latency) < tieWindow {
			return !a.Relayed
		}
		return a.Latency < b.Latency
	})
}

// RankedHosts returns the latest snapshot, including unreachable hosts. It never waits on a pass in progress.
func (r *Ranker) RankedHosts() []HostRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneRecords(r.ranked)
}

// LastRanked reports when the current snapshot was published; zero if none has been.
func (r *Ranker) LastRanked() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rankedAt
}

// UsableHostURLs returns reachable hosts in rank order, relay-wrapped where needed.
//
// A missing or stale snapshot is rebuilt first. The result is empty when every host failed.
func (r *Ranker) UsableHostURLs(ctx context.Context) ([]string, error) {
	if r.stale() {
		if _, err := r.Refresh(ctx); err != nil {
			return nil, err
		}
	}

	records := r.RankedHosts()
	urls := make([]string, 0, len(records))
	for _, rec := range records {
		if !rec.Reachable() {
			continue
		}
		if rec.Relayed {
			urls = append(urls, RelayURL(r.relay, rec.URL))
		} else {
			urls = append(urls, rec.URL)
		}
	}
	return urls, nil
}

func (r *Ranker) stale() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rankedAt.IsZero() || r.clock.Since(r.rankedAt) > r.ttl
}

// Subscribe registers fn to receive every published ranking. The returned func removes it.
func (r *Ranker) Subscribe(fn func([]HostRecord)) (cancel func()) {
	r.subMu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = fn
	r.subMu.Unlock()

	return func() {
		r.subMu.Lock()
		delete(r.subs, id)
		r.subMu.Unlock()
	}
}

func (r *Ranker) notify(records []HostRecord) {
	r.subMu.Lock()
	fns := make([]func([]HostRecord), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	r.subMu.Unlock()

	for _, fn := range fns {
		fn(cloneRecords(records))
	}
}

// Start refreshes immediately and then every interval until [Ranker.Stop] or ctx is done.
// Calling Start on a running ranker is a no-op.
func (r *Ranker) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = r.ttl
	}

	r.runMu.Lock()
	defer r.runMu.Unlock()
	if r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.run(ctx, interval, r.done)
}

func (r *Ranker) run(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := r.clock.Ticker(interval)
	defer ticker.Stop()

	if _, err := r.Refresh(ctx); err != nil && !shared.IsCanceled(err) {
		r.logger.Warn("mirror ranking failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Refresh(ctx); err != nil && !shared.IsCanceled(err) {
				r.logger.Warn("mirror ranking failed", "error", err)
			}
		}
	}
}

// Stop halts the periodic refresh and waits for it to exit.
func (r *Ranker) Stop() {
	r.runMu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func cloneRecords(records []HostRecord) []HostRecord {
	if records == nil {
		return nil
	}
	return append([]HostRecord(nil), records...)
}

func countReachable(records []HostRecord) int {
	n := 0
	for _, rec := range records {
		if rec.Reachable() {
			n++
		}
	}
	return n
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
