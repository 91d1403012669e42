package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/polychrome/internal/tasks"
)

// CacheClear flushes the response and stream caches, including the durable tier.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	catalog := r.ensureCatalog()
	catalog.ClearCaches(ctx)

	r.logger.Info("caches cleared")
	return r.render(cmd, map[string]bool{"cleared": true}, func() error {
		return r.writePlain("✓ Caches cleared\n")
	})
}

// CacheSweep drops expired responses and trims the stream cache once.
func (r *Runner) CacheSweep(ctx context.Context, cmd *cli.Command) error {
	scheduler := tasks.NewScheduler(r.ensureCatalog(), 0, nil, r.logger)
	result := scheduler.RunOnce(ctx)

	return r.render(cmd, result, func() error {
		return r.writePlain("✓ Swept %d expired responses and %d stream URLs\n", result.Responses, result.Streams)
	})
}

// CacheStats prints cache sizes and hit counters.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	stats := r.ensureCatalog().CacheStats()

	return r.render(cmd, stats, func() error {
		backend := "memory only"
		if stats.Durable {
			backend = r.ensureConfig().Cache.Backend
		}
		r.writePlainHeader("Cache")
		r.writePlain("Responses:      %d\n", stats.Entries)
		r.writePlain("Stream URLs:    %d\n", stats.Streams)
		r.writePlain("Durable tier:   %s\n", backend)
		r.writePlain("Fast hits:      %d / misses %d\n", stats.FastHits, stats.FastMisses)
		r.writePlain("Durable hits:   %d / misses %d\n", stats.DurableHits, stats.DurableMisses)
		return nil
	})
}
