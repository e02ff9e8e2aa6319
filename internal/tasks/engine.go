package tasks

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/podq/internal/models"
	"github.com/desertthunder/podq/internal/services"
	"github.com/desertthunder/podq/internal/shared"
)

// BatchTimestampLayout formats [models.BatchInfo.Timestamp].
const BatchTimestampLayout = "2006-01-02 15:04:05 UTC"

// Options tunes the catalog scan.
type Options struct {
	Blocklist          []string // nil means [DefaultBlocklist]
	SkipCompletedShows bool
	CheckpointInterval int // shows between mid-scan saves; 0 disables
}

// OptionsFromConfig maps the [scan] config section onto [Options].
func OptionsFromConfig(cfg shared.ScanConfig) Options {
	return Options{
		Blocklist:          cfg.Blocklist,
		SkipCompletedShows: cfg.SkipCompletedShows,
		CheckpointInterval: cfg.CheckpointInterval,
	}
}

// RunResult describes a successful update run.
type RunResult struct {
	Shows         int
	Skipped       int
	PriorityCount int
	BacklogMinute int
	BacklogCount  int
	URIs          []string
	NoShows       bool              // the user has no saved shows; nothing was changed
	State         *models.UserState // state as persisted
}

// Message is the terminal status text for the run.
func (r *RunResult) Message() string {
	if r.NoShows {
		return "No saved shows found."
	}
	return "Update complete!"
}

// UpdateEngine runs one incremental update: scan, batch, rewrite the playlist and commit state.
type UpdateEngine struct {
	states models.StateStore
	opts   Options
	logger *log.Logger
	now    func() time.Time
}

// NewUpdateEngine creates an engine persisting through states.
func NewUpdateEngine(states models.StateStore, opts Options, logger *log.Logger) *UpdateEngine {
	if logger == nil {
		logger = log.Default()
	}
	return &UpdateEngine{states: states, opts: opts, logger: logger, now: time.Now}
}

// SetClock replaces the time source used for the completion instant.
func (e *UpdateEngine) SetClock(now func() time.Time) {
	e.now = now
}

// Run performs a full update for userID against playlistID using svc.
//
// State is saved only when the run succeeds, except for opt-in mid-scan checkpoints.
// On error the stored state is left as it was before the run.
func (e *UpdateEngine) Run(ctx context.Context, svc services.PodcastService, userID, playlistID string, progress chan<- ProgressUpdate) (*RunResult, error) {
	if playlistID == "" {
		return nil, shared.ErrMissingPlaylist
	}
	if svc == nil {
		return nil, fmt.Errorf("%w: podcast service not initialized", shared.ErrServiceUnavailable)
	}

	logger := shared.WithLogger(e.logger, "user", userID, "playlist", playlistID)

	sendProgress(progress, loadStateUpdate())
	stored, err := e.states.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	state := stored.Clone()

	classifier := NewClassifier(svc, e.opts.Blocklist, e.opts.SkipCompletedShows)
	scanner := NewScanner(svc, classifier, e.opts.SkipCompletedShows, e.opts.CheckpointInterval)

	sendProgress(progress, fetchShowsUpdate())
	shows, err := scanner.ListShows(ctx)
	if err != nil {
		return nil, err
	}
	if len(shows) == 0 {
		logger.Info("no saved shows")
		return &RunResult{NoShows: true, BacklogMinute: state.CurrentMinute, State: stored}, nil
	}

	var checkpoint CheckpointFunc
	if e.opts.CheckpointInterval > 0 {
		checkpoint = func(ctx context.Context, s *models.UserState) error {
			return e.states.Save(ctx, userID, s)
		}
	}

	scan, err := scanner.Scan(ctx, shows, state, progress, checkpoint)
	if err != nil {
		return nil, err
	}
	logger.Debug("scan finished", "shows", scan.Shows, "skipped", scan.Skipped, "priority", len(scan.Priority), "backlog", len(scan.Backlog))

	sendProgress(progress, buildBatchUpdate(len(shows), len(scan.Priority), len(scan.Backlog)))
	batch, nextMinute := DetermineNextBatch(scan.Backlog, state.CurrentMinute, state.MinDuration)
	uris := PlaylistOrder(scan.Priority, batch)

	sendProgress(progress, updatePlaylistUpdate(len(shows), len(uris)))
	if err := e.writePlaylist(ctx, svc, playlistID, uris); err != nil {
		return nil, err
	}

	completed := e.now().UTC()
	state.CurrentMinute = nextMinute
	state.LastUpdate = completed
	state.LastBatch = &models.BatchInfo{
		PriorityCount: len(scan.Priority),
		BacklogMinute: nextMinute,
		BacklogCount:  len(batch),
		TotalCount:    len(uris),
		Timestamp:     completed.Format(BatchTimestampLayout),
	}

	sendProgress(progress, saveStateUpdate(len(shows)))
	if err := e.states.Save(ctx, userID, state); err != nil {
		return nil, fmt.Errorf("failed to save state: %w", err)
	}

	logger.Info("update complete", "priority", len(scan.Priority), "minute", nextMinute, "backlog", len(batch), "total", len(uris))

	return &RunResult{
		Shows:         scan.Shows,
		Skipped:       scan.Skipped,
		PriorityCount: len(scan.Priority),
		BacklogMinute: nextMinute,
		BacklogCount:  len(batch),
		URIs:          uris,
		State:         state,
	}, nil
}

// writePlaylist clears the playlist, then appends uris in chunks of [services.MaxPlaylistItems].
func (e *UpdateEngine) writePlaylist(ctx context.Context, svc services.PlaylistWriter, playlistID string, uris []string) error {
	if err := svc.ReplaceItems(ctx, playlistID, nil); err != nil {
		return fmt.Errorf("failed to clear playlist: %w", err)
	}
	for chunk := range slices.Chunk(uris, services.MaxPlaylistItems) {
		if err := svc.AddItems(ctx, playlistID, chunk); err != nil {
			return fmt.Errorf("failed to add episodes: %w", err)
		}
	}
	return nil
}

// PlaylistOrder returns priority URIs shortest first, then the batch in its given order.
func PlaylistOrder(priority, batch []models.Episode) []string {
	sorted := slices.Clone(priority)
	slices.SortStableFunc(sorted, func(a, b models.Episode) int {
		return cmp.Compare(a.DurationMS, b.DurationMS)
	})

	uris := make([]string, 0, len(sorted)+len(batch))
	for _, ep := range sorted {
		uris = append(uris, ep.URI)
	}
	for _, ep := range batch {
		uris = append(uris, ep.URI)
	}
	return uris
}
