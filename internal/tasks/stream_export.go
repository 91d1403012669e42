package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/polychrome/internal/formatter"
	"github.com/desertthunder/polychrome/internal/models"
	"github.com/desertthunder/polychrome/internal/services"
	"github.com/desertthunder/polychrome/internal/shared"
)

const (
	DefaultExportWorkers = 4
	MaxExportWorkers     = 10
	DefaultExportRate    = 5.0
)

// ExportOpts contains configuration for stream exports.
type ExportOpts struct {
	Format     string  // m3u, json, csv or txt; empty skips writing a file
	Quality    string  // requested quality, LOSSLESS when empty
	OutputPath string  // defaults to formatter.DefaultExportPath
	NumWorkers int     // concurrent lookups (default: 4, max: 10)
	RateLimit  float64 // lookups per second (default: 5)
}

// ExportResult is a finished export and the file it was written to.
type ExportResult struct {
	Export *models.StreamExport
	Path   string
}

// StreamExporter resolves stream URLs for whole albums and playlists.
type StreamExporter struct {
	catalog Catalog
	clock   clock.Clock
	logger  *log.Logger
}

// NewStreamExporter creates a StreamExporter backed by catalog.
func NewStreamExporter(catalog Catalog, clk clock.Clock, logger *log.Logger) *StreamExporter {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &StreamExporter{
		catalog: catalog,
		clock:   clk,
		logger:  shared.WithLogger(logger, "component", "export"),
	}
}

type streamJob struct {
	index int
	track models.Track
}

type streamResult struct {
	index int
	entry models.StreamEntry
}

// Export resolves every track of src with a rate limited worker pool and writes the result in opts.Format.
//
// A track that cannot be resolved is recorded on its entry; the run only fails when the source cannot be
// loaded, the context is canceled, or the output cannot be written. Entries keep the source's track order.
func (e *StreamExporter) Export(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	src Source,
	opts ExportOpts,
) (*ExportResult, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}

	quality, err := services.ParseQuality(opts.Quality)
	if err != nil {
		return nil, err
	}
	format := ""
	if opts.Format != "" {
		if format, err = formatter.ParseFormat(opts.Format); err != nil {
			return nil, err
		}
	}

	if opts.NumWorkers <= 0 {
		opts.NumWorkers = DefaultExportWorkers
	}
	if opts.NumWorkers > MaxExportWorkers {
		opts.NumWorkers = MaxExportWorkers
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = DefaultExportRate
	}

	sendProgress(progress, fetchingSourceUpdate(src))
	title, tracks, err := loadSource(ctx, e.catalog, src)
	if err != nil {
		return nil, err
	}
	sendProgress(progress, foundSourceUpdate(title, len(tracks)))

	export := &models.StreamExport{
		Kind:      string(src.Kind),
		ID:        src.ID,
		Title:     title,
		Quality:   quality,
		Entries:   make([]models.StreamEntry, len(tracks)),
		CreatedAt: e.clock.Now(),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan streamJob, len(tracks))
	results := make(chan streamResult, len(tracks))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.resolveWorker(ctx, &wg, limiter, quality, jobs, results)
	}

	go func() {
		defer close(jobs)
		for i, track := range tracks {
			select {
			case <-ctx.Done():
				return
			case jobs <- streamJob{index: i, track: track}:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		export.Entries[res.index] = res.entry
		if res.entry.Resolved() {
			export.Resolved++
		} else {
			export.Failed++
		}
		sendProgress(progress, resolvedUpdate(completed, len(tracks), res.entry))
	}

	if err := ctx.Err(); err != nil {
		e.logger.Warn("export canceled", "source", src.Kind, "id", src.ID, "completed", completed, "total", len(tracks))
		return &ExportResult{Export: export}, fmt.Errorf("%w: %w", shared.ErrCanceled, err)
	}

	e.logger.Info("export finished", "source", src.Kind, "id", src.ID, "resolved", export.Resolved, "failed", export.Failed)

	result := &ExportResult{Export: export}
	if format == "" {
		return result, nil
	}

	path, err := formatter.WriteStreamExport(export, format, opts.OutputPath)
	if err != nil {
		return result, fmt.Errorf("export completed but failed to write output: %w", err)
	}
	result.Path = path
	sendProgress(progress, writtenUpdate(path))
	return result, nil
}

// resolveWorker looks up stream URLs for tracks from the jobs channel.
func (e *StreamExporter) resolveWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	quality string,
	jobs <-chan streamJob,
	results chan<- streamResult,
) {
	defer wg.Done()

	for job := range jobs {
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		entry := models.StreamEntry{Track: job.track}
		u, err := e.catalog.StreamURL(ctx, job.track.ID.String(), quality)
		if err != nil {
			if shared.IsCanceled(err) || ctx.Err() != nil {
				return
			}
			e.logger.Debug("track unresolved", "id", job.track.ID, "error", err)
			entry.Error = err.Error()
		} else {
			entry.URL = u
		}
		results <- streamResult{index: job.index, entry: entry}
	}
}
