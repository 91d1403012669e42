package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/polychrome/internal/formatter"
	"github.com/desertthunder/polychrome/internal/mirrors"
)

type mirrorsOutput struct {
	RankedAt time.Time            `json:"rankedAt"`
	Hosts    []mirrors.HostRecord `json:"hosts"`
}

// MirrorsList prints the current ranking, ranking first when nothing has been ranked yet.
func (r *Runner) MirrorsList(ctx context.Context, cmd *cli.Command) error {
	ranker := r.ensureMirrors()

	records := ranker.RankedHosts()
	if ranker.LastRanked().IsZero() {
		var err error
		if records, err = ranker.Refresh(ctx); err != nil {
			return err
		}
	}
	return r.writeMirrors(cmd, ranker.LastRanked(), records)
}

// MirrorsRefresh probes every host again and prints the new ranking.
func (r *Runner) MirrorsRefresh(ctx context.Context, cmd *cli.Command) error {
	ranker := r.ensureMirrors()

	r.logger.Info("probing mirrors")
	records, err := ranker.Refresh(ctx)
	if err != nil {
		return err
	}
	return r.writeMirrors(cmd, ranker.LastRanked(), records)
}

func (r *Runner) writeMirrors(cmd *cli.Command, rankedAt time.Time, records []mirrors.HostRecord) error {
	return r.render(cmd, mirrorsOutput{RankedAt: rankedAt, Hosts: records}, func() error {
		usable := 0
		for _, rec := range records {
			if rec.Reachable() {
				usable++
			}
		}
		r.writePlain("%d of %d mirrors usable (ranked %s)\n\n", usable, len(records), rankedAt.Format(time.RFC3339))
		return r.writeBytes(formatter.MirrorListing(records))
	})
}
