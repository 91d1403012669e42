package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/polychrome/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := NewRunner(RunnerOpts{Logger: logger})

	if err := runner.app().Run(ctx, os.Args); err != nil {
		if shared.IsCanceled(err) || ctx.Err() != nil {
			logger.Warn("interrupted")
			os.Exit(130)
		}
		logger.Fatal("application error", "kind", shared.KindOf(err), "error", err)
	}
}
