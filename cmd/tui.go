package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/polychrome/internal/shared"
	"github.com/desertthunder/polychrome/internal/ui"
)

// MirrorsWatch launches the interactive mirror monitor. The ranking is refreshed every
// --interval while it runs.
func (r *Runner) MirrorsWatch(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	ranker := r.ensureMirrors()
	ranker.Start(ctx, cmd.Duration("interval"))
	defer ranker.Stop()

	model := ui.NewModel(ctx, ranker, fileLogger)
	defer model.Close()

	p := tea.NewProgram(model, tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
