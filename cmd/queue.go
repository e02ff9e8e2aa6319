package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/podq/internal/formatter"
	"github.com/desertthunder/podq/internal/models"
	"github.com/desertthunder/podq/internal/server"
	"github.com/desertthunder/podq/internal/services"
	"github.com/desertthunder/podq/internal/shared"
	"github.com/desertthunder/podq/internal/tasks"
	"github.com/desertthunder/podq/internal/ui"
	"github.com/urfave/cli/v3"
)

// runSummary is the JSON form of a finished run.
type runSummary struct {
	Message       string   `json:"message"`
	Shows         int      `json:"shows"`
	Skipped       int      `json:"skipped"`
	PriorityCount int      `json:"priority_count"`
	BacklogMinute int      `json:"backlog_minute"`
	BacklogCount  int      `json:"backlog_count"`
	URIs          []string `json:"uris"`
}

// loadState returns the configured user and their stored state.
func (r *Runner) loadState(ctx context.Context) (string, *models.UserState, error) {
	userID, err := r.userID()
	if err != nil {
		return "", nil, err
	}
	states, _, err := r.stores()
	if err != nil {
		return "", nil, err
	}
	state, err := states.Load(ctx, userID)
	if err != nil {
		return "", nil, err
	}
	return userID, state, nil
}

// editState applies edit to the configured user's state; it fails while an update is registered.
func (r *Runner) editState(ctx context.Context, edit func(*models.UserState) error) (*models.UserState, error) {
	userID, err := r.userID()
	if err != nil {
		return nil, err
	}
	dispatcher, err := r.dispatcher()
	if err != nil {
		return nil, err
	}
	return dispatcher.UpdateState(ctx, userID, edit)
}

// dispatcher builds the update dispatcher over the configured stores.
func (r *Runner) dispatcher() (*tasks.Dispatcher, error) {
	states, jobs, err := r.stores()
	if err != nil {
		return nil, err
	}
	resolver := tasks.ClientResolverFunc(func(ctx context.Context, _ string) (services.PodcastService, error) {
		return r.spotifyClient(ctx)
	})
	return tasks.NewDispatcher(r.engine(states), jobs, resolver, r.logger), nil
}

// Update runs an update in the foreground and prints its progress.
func (r *Runner) Update(ctx context.Context, cmd *cli.Command) error {
	userID, state, err := r.loadState(ctx)
	if err != nil {
		return err
	}
	if state.PlaylistID == "" {
		return fmt.Errorf("%w: run 'podq playlist set' or 'podq playlist create' first", shared.ErrMissingPlaylist)
	}
	return r.runUpdate(ctx, userID, state.PlaylistID, cmd.Bool("quiet"), cmd.Bool("json"))
}

func (r *Runner) runUpdate(ctx context.Context, userID, playlistID string, quiet, asJSON bool) error {
	dispatcher, err := r.dispatcher()
	if err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, 64)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		if asJSON {
			for range progress {
			}
			return
		}
		ui.NewPrinter(r.output, quiet).Consume(progress)
	}()

	result, err := dispatcher.Run(ctx, userID, playlistID, progress)
	close(progress)
	<-printed

	if err != nil {
		return err
	}

	if asJSON {
		return r.writeJSON(runSummary{
			Message:       result.Message(),
			Shows:         result.Shows,
			Skipped:       result.Skipped,
			PriorityCount: result.PriorityCount,
			BacklogMinute: result.BacklogMinute,
			BacklogCount:  result.BacklogCount,
			URIs:          result.URIs,
		}, true)
	}
	return r.writePlain("\n%s", ui.RenderResult(result))
}

// Status prints the stored state, plus any registered run.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	userID, state, err := r.loadState(ctx)
	if err != nil {
		return err
	}

	if format != formatter.FormatTable {
		data, err := formatter.Render(format, userID, state)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	}

	r.writePlain("%s\n", ui.Styles.Title("podq queue for "+userID))
	r.writePlain("%s", formatter.RenderTable(state, cmd.Bool("shows")))

	_, jobs, err := r.stores()
	if err != nil {
		return err
	}
	job, err := jobs.Get(ctx, userID)
	if err != nil {
		return err
	}
	if job != nil {
		r.writePlain("%s\n", ui.Styles.Warn(fmt.Sprintf("Update registered: %s (%d/%d)", job.Message, job.Progress, job.Total)))
	}
	return nil
}

// Export writes the stored state to --output.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	userID, state, err := r.loadState(ctx)
	if err != nil {
		return err
	}

	path := cmd.String("output")
	if err := formatter.WriteExport(format, userID, state, path); err != nil {
		return err
	}
	r.logger.Info("exported state", "format", format, "path", path)
	return r.writePlain("✓ Exported %s to %s\n", format, path)
}

// PlaylistSet stores the playlist named by a URL, URI or ID and resets the cursor.
func (r *Runner) PlaylistSet(ctx context.Context, cmd *cli.Command) error {
	input := cmd.StringArg("playlist")
	if input == "" {
		return fmt.Errorf("%w: playlist", shared.ErrMissingArgument)
	}

	id, ok := services.ExtractItemID(input)
	if !ok {
		return fmt.Errorf("%w: could not find a playlist id in %q", shared.ErrInvalidInput, input)
	}

	if _, err := r.editState(ctx, func(state *models.UserState) error {
		state.SetPlaylist(id)
		return nil
	}); err != nil {
		return err
	}

	return r.writePlain("✓ Queue playlist set to %s\n", id)
}

// PlaylistCreate creates a private queue playlist, stores it and optionally runs an update.
func (r *Runner) PlaylistCreate(ctx context.Context, cmd *cli.Command) error {
	userID, err := r.userID()
	if err != nil {
		return err
	}

	client, err := r.spotifyClient(ctx)
	if err != nil {
		return err
	}

	name := cmd.String("name")
	if name == "" {
		name = r.config.Scan.PlaylistName
	}
	pl, err := server.CreateQueuePlaylist(ctx, client, name)
	if err != nil {
		return err
	}

	if _, err := r.editState(ctx, func(state *models.UserState) error {
		state.SetPlaylist(pl.ID)
		return nil
	}); err != nil {
		return err
	}
	r.writePlain("✓ Created playlist %q (%s)\n", pl.Name, pl.ID)

	if !cmd.Bool("scan") {
		return nil
	}
	return r.runUpdate(ctx, userID, pl.ID, false, false)
}

// SettingsMinDuration stores the minimum backlog duration; unparseable or negative input becomes 0.
func (r *Runner) SettingsMinDuration(ctx context.Context, cmd *cli.Command) error {
	raw := cmd.StringArg("minutes")
	if raw == "" {
		return fmt.Errorf("%w: minutes", shared.ErrMissingArgument)
	}

	state, err := r.editState(ctx, func(state *models.UserState) error {
		state.MinDuration = server.ParseMinDuration(raw)
		return nil
	})
	if err != nil {
		return err
	}

	return r.writePlain("✓ Minimum duration set to %d min\n", state.MinDuration)
}

// Reset clears scan progress and the pacing cursor, keeping the playlist and min duration.
func (r *Runner) Reset(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") {
		return fmt.Errorf("%w: pass --yes to forget all scan progress", shared.ErrMissingArgument)
	}

	if _, err := r.editState(ctx, func(state *models.UserState) error {
		fresh := models.NewUserState()
		fresh.PlaylistID = state.PlaylistID
		fresh.MinDuration = state.MinDuration
		*state = *fresh
		return nil
	}); err != nil {
		return err
	}

	return r.writePlain("✓ Scan progress cleared; the next update rescans every show\n")
}
