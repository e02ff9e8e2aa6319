package tasks

import (
	"fmt"

	"github.com/desertthunder/podq/internal/models"
)

// ProgressUpdate represents a progress event during an update run.
//
// Used to send real-time updates to the job registry and the CLI.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	LoadState Phase = iota
	FetchShows
	ScanShows
	Checkpoint
	BuildBatch
	UpdatePlaylist
	SaveState
)

func (p Phase) String() string {
	switch p {
	case LoadState:
		return "load_state"
	case FetchShows:
		return "fetch_shows"
	case ScanShows:
		return "scan_shows"
	case Checkpoint:
		return "checkpoint"
	case BuildBatch:
		return "build_batch"
	case UpdatePlaylist:
		return "update_playlist"
	case SaveState:
		return "save_state"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full, skip this update
	}
}

func loadStateUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: LoadState, Step: 0, Total: 1, Message: "Loading saved progress..."}
}

func fetchShowsUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: FetchShows, Step: 0, Total: 1, Message: "Fetching saved shows..."}
}

func scannedShowUpdate(step, total int, show models.Show) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScanShows,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("(%d/%d) Scanned: %s", step, total, show.Name),
		Data:    show,
	}
}

func skippedShowUpdate(step, total int, show models.Show) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScanShows,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("(%d/%d) Skipping completed: %s", step, total, show.Name),
		Data:    show,
	}
}

func checkpointUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Checkpoint,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Saved scan progress after %d of %d shows", step, total),
	}
}

func buildBatchUpdate(shows, priority, backlog int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   BuildBatch,
		Step:    shows,
		Total:   shows,
		Message: fmt.Sprintf("Found %d new and %d backlog episodes", priority, backlog),
	}
}

func updatePlaylistUpdate(shows, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   UpdatePlaylist,
		Step:    shows,
		Total:   shows,
		Message: fmt.Sprintf("Updating playlist with %d episodes...", count),
	}
}

func saveStateUpdate(shows int) ProgressUpdate {
	return ProgressUpdate{Phase: SaveState, Step: shows, Total: shows, Message: "Saving progress..."}
}
