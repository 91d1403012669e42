package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/polychrome/internal/metrics"
	"github.com/desertthunder/polychrome/internal/shared"
	"go.uber.org/multierr"
)

// DefaultTTL is the lifetime of a response cache entry.
const DefaultTTL = 30 * time.Minute

// Options configures a [TieredCache].
type Options struct {
	Fast       FastCache    // defaults to a [MemoryCache] of MaxEntries
	Durable    DurableCache // nil runs fast-tier only
	MaxEntries int
	TTL        time.Duration
	Clock      clock.Clock
	Logger     *log.Logger
	Metrics    *metrics.Metrics
}

// Stats reports tier sizes and hit counters.
type Stats struct {
	Entries       int    `json:"entries"`
	Durable       bool   `json:"durable"`
	FastHits      uint64 `json:"fastHits"`
	FastMisses    uint64 `json:"fastMisses"`
	DurableHits   uint64 `json:"durableHits"`
	DurableMisses uint64 `json:"durableMisses"`
}

// TieredCache composes a fast and an optional durable tier.
type TieredCache struct {
	fast    FastCache
	durable DurableCache
	ttl     time.Duration
	clock   clock.Clock
	logger  *log.Logger
	metrics *metrics.Metrics

	fastHits, fastMisses       atomic.Uint64
	durableHits, durableMisses atomic.Uint64
}

// New creates a [TieredCache].
func New(opts Options) *TieredCache {
	c := &TieredCache{
		fast:    opts.Fast,
		durable: opts.Durable,
		ttl:     opts.TTL,
		clock:   opts.Clock,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}

	if c.fast == nil {
		c.fast = NewMemoryCache(opts.MaxEntries)
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.clock == nil {
		c.clock = clock.New()
	}
	if c.logger == nil {
		c.logger = shared.NewLogger(nil)
	}
	return c
}

// OpenDurable opens the durable backend named by cfg. The "none" backend returns nil.
func OpenDurable(cfg shared.CacheConfig) (DurableCache, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "none":
		return nil, nil
	case "sqlite":
		return OpenSQLiteStore(cfg.Path)
	case "leveldb":
		return OpenLevelStore(cfg.Path)
	default:
		return nil, fmt.Errorf("%w: unknown cache backend %q", shared.ErrInvalidConfig, cfg.Backend)
	}
}

// NewFromConfig builds a cache from configuration. A durable tier that fails to open is
// logged and skipped so the cache still works from memory.
func NewFromConfig(cfg shared.CacheConfig, clk clock.Clock, logger *log.Logger, m *metrics.Metrics) *TieredCache {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	durable, err := OpenDurable(cfg)
	if err != nil {
		logger.Warn("durable cache unavailable, using memory only", "backend", cfg.Backend, "path", cfg.Path, "error", err)
		durable = nil
	}

	return New(Options{
		Durable:    durable,
		MaxEntries: cfg.MaxEntries,
		TTL:        cfg.TTL.Duration,
		Clock:      clk,
		Logger:     logger,
		Metrics:    m,
	})
}

// Get returns the value stored under namespace and id, if present and unexpired.
func (c *TieredCache) Get(ctx context.Context, namespace, id string) ([]byte, bool) {
	key := Key(namespace, id)
	now := c.clock.Now()

	if entry, ok := c.fast.Get(key); ok {
		if !entry.Expired(now) {
			c.record("fast", true)
			return entry.Value, true
		}
		c.fast.Delete(key)
	}
	c.record("fast", false)

	if c.durable == nil {
		return nil, false
	}

	entry, ok, err := c.durable.Get(ctx, key)
	if err != nil {
		c.logDurable("read", key, err)
		c.record("durable", false)
		return nil, false
	}
	if !ok {
		c.record("durable", false)
		return nil, false
	}
	if entry.Expired(now) {
		if err := c.durable.Delete(ctx, key); err != nil {
			c.logDurable("delete", key, err)
		}
		c.record("durable", false)
		return nil, false
	}

	c.fast.Set(entry)
	c.record("durable", true)
	return entry.Value, true
}

// Set writes value to both tiers with an expiry of now plus the TTL.
func (c *TieredCache) Set(ctx context.Context, namespace, id string, value []byte) {
	entry := Entry{
		Key:       Key(namespace, id),
		Value:     value,
		ExpiresAt: c.clock.Now().Add(c.ttl),
	}

	c.fast.Set(entry)

	if c.durable == nil {
		return
	}
	if err := c.durable.Set(ctx, entry); err != nil {
		c.logDurable("write", entry.Key, err)
	}
}

// Delete drops a single key from both tiers.
func (c *TieredCache) Delete(ctx context.Context, namespace, id string) {
	key := Key(namespace, id)
	c.fast.Delete(key)

	if c.durable == nil {
		return
	}
	if err := c.durable.Delete(ctx, key); err != nil {
		c.logDurable("delete", key, err)
	}
}

// ClearExpired sweeps both tiers and returns how many entries were removed.
func (c *TieredCache) ClearExpired(ctx context.Context) int {
	now := c.clock.Now()
	removed := c.fast.DeleteExpired(now)

	if c.durable != nil {
		n, err := c.durable.DeleteExpired(ctx, now)
		if err != nil {
			c.logDurable("sweep", "", err)
		}
		removed += n
	}

	c.logger.Debug("cache swept", "removed", removed)
	return removed
}

// Clear flushes both tiers.
func (c *TieredCache) Clear(ctx context.Context) {
	c.fast.Clear()

	if c.durable == nil {
		return
	}
	if err := c.durable.Clear(ctx); err != nil {
		c.logDurable("clear", "", err)
	}
}

// Stats returns a snapshot of the counters.
func (c *TieredCache) Stats() Stats {
	return Stats{
		Entries:       c.fast.Len(),
		Durable:       c.durable != nil,
		FastHits:      c.fastHits.Load(),
		FastMisses:    c.fastMisses.Load(),
		DurableHits:   c.durableHits.Load(),
		DurableMisses: c.durableMisses.Load(),
	}
}

// Close releases the durable tier.
func (c *TieredCache) Close() error {
	var err error
	if c.durable != nil {
		err = multierr.Append(err, c.durable.Close())
	}
	return err
}

func (c *TieredCache) record(tier string, hit bool) {
	result := "miss"
	switch {
	case tier == "fast" && hit:
		c.fastHits.Add(1)
		result = "hit"
	case tier == "fast":
		c.fastMisses.Add(1)
	case hit:
		c.durableHits.Add(1)
		result = "hit"
	default:
		c.durableMisses.Add(1)
	}
	c.metrics.CacheLookup(tier, result)
}

func (c *TieredCache) logDurable(op, key string, err error) {
	if shared.IsCanceled(err) {
		return
	}
	c.logger.Warn("durable cache "+op+" failed", "key", key, "error", err)
}

// GetJSON decodes the cached value into T. Undecodable entries are treated as misses.
func GetJSON[T any](ctx context.Context, c *TieredCache, namespace, id string) (T, bool) {
	var v T

	b, ok := c.Get(ctx, namespace, id)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(b, &v); err != nil {
		c.logger.Debug("discarding undecodable cache entry", "namespace", namespace, "id", id, "error", err)
		c.Delete(ctx, namespace, id)
		return v, false
	}
	return v, true
}

// SetJSON encodes v and stores it.
func SetJSON(ctx context.Context, c *TieredCache, namespace, id string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}
	c.Set(ctx, namespace, id, b)
	return nil
}
