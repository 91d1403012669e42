package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/polychrome/internal/server"
	"github.com/desertthunder/polychrome/internal/tasks"
)

// Serve runs the JSON API with background mirror ranking and cache sweeps until ctx is canceled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config := r.ensureConfig()
	addr := config.Server.Addr()
	if a := cmd.String("addr"); a != "" {
		addr = a
	}

	catalog := r.ensureCatalog()
	ranker := r.ensureMirrors()

	ranker.Start(ctx, config.Mirrors.RankingTTL.Duration)
	defer ranker.Stop()

	scheduler := tasks.NewScheduler(catalog, config.Cache.SweepInterval.Duration, nil, r.logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	srv := server.New(server.Options{
		Catalog: catalog,
		Mirrors: ranker,
		Metrics: r.metrics,
		Logger:  r.logger,
	})

	r.logger.Info("starting server", "addr", addr, "routes", len(srv.Routes()))
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
