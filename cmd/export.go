package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/polychrome/internal/tasks"
)

type exportOutput struct {
	Path     string `json:"path,omitempty"`
	Resolved int    `json:"resolved"`
	Failed   int    `json:"failed"`
	Export   any    `json:"export"`
}

// Export returns the action that resolves every track of an album or playlist and writes the result.
func (r *Runner) Export(kind tasks.SourceKind) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		src, err := tasks.ParseSource(string(kind), cmd.StringArg("id"))
		if err != nil {
			return err
		}

		opts := tasks.ExportOpts{
			Format:     cmd.String("format"),
			Quality:    cmd.String("quality"),
			OutputPath: cmd.String("output"),
			NumWorkers: int(cmd.Int("workers")),
			RateLimit:  cmd.Float("rate"),
		}

		r.logger.Info("starting export", "source", src.Kind, "id", src.ID, "format", opts.Format)
		exporter := tasks.NewStreamExporter(r.ensureCatalog(), nil, r.logger)

		quiet := cmd.Bool("json")
		progressCh := make(chan tasks.ProgressUpdate, 50)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for update := range progressCh {
				if quiet {
					continue
				}
				switch update.Phase {
				case tasks.FetchSource:
					r.writePlain("📥 %s\n", update.Message)
				case tasks.ResolveStreams:
					r.writePlain("   %s\n", update.Message)
				case tasks.WriteExport:
					r.writePlain("\n💾 %s\n", update.Message)
				}
			}
		}()

		result, err := exporter.Export(ctx, progressCh, src, opts)
		close(progressCh)
		<-done

		if err != nil {
			return err
		}

		export := result.Export
		return r.render(cmd, exportOutput{Path: result.Path, Resolved: export.Resolved, Failed: export.Failed, Export: export}, func() error {
			r.writePlain("\n")
			r.writePlainHeader("Export Complete!")
			r.writePlain("Source: %s (%d tracks)\n", export.Title, len(export.Entries))
			r.writePlain("Quality: %s\n", export.Quality)
			r.writePlain("Resolved: %d/%d\n", export.Resolved, len(export.Entries))
			if result.Path != "" {
				r.writePlain("Output: %s\n", result.Path)
			}

			if export.Failed > 0 {
				r.writePlain("\nFailed to resolve %d tracks:\n", export.Failed)
				for _, entry := range export.Entries {
					if !entry.Resolved() {
						r.writePlain("  - %s - %s\n", entry.Track.ArtistNames(), entry.Track.DisplayTitle())
					}
				}
			}
			return nil
		})
	}
}
