package tasks

import (
	"fmt"

	"github.com/desertthunder/polychrome/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchSource Phase = iota
	ResolveStreams
	WriteExport
	Sweep
)

func (p Phase) String() string {
	switch p {
	case FetchSource:
		return "fetch_source"
	case ResolveStreams:
		return "resolve_streams"
	case WriteExport:
		return "write_export"
	case Sweep:
		return "sweep"
	default:
		return ""
	}
}

func fetchingSourceUpdate(src Source) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching %s %s...", src.Kind, src.ID),
	}
}

func foundSourceUpdate(title string, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %s (%d tracks)", title, total),
	}
}

func resolvedUpdate(step, total int, entry models.StreamEntry) ProgressUpdate {
	if entry.Resolved() {
		return ProgressUpdate{
			Phase:   ResolveStreams,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] ✓ %s - %s", step, total, entry.Track.ArtistNames(), entry.Track.DisplayTitle()),
			Data:    entry,
		}
	}
	return ProgressUpdate{
		Phase:   ResolveStreams,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %s", step, total, entry.Track.DisplayTitle(), entry.Error),
		Data:    entry,
	}
}

func writtenUpdate(path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteExport,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Wrote %s", path),
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
