package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/podq/internal/models"
	"github.com/desertthunder/podq/internal/services"
	"github.com/desertthunder/podq/internal/shared"
)

const progressBuffer = 64

// ClientResolver returns an authorized [services.PodcastService] for a user.
type ClientResolver interface {
	Resolve(ctx context.Context, userID string) (services.PodcastService, error)
}

// ClientResolverFunc adapts a function to [ClientResolver].
type ClientResolverFunc func(ctx context.Context, userID string) (services.PodcastService, error)

func (f ClientResolverFunc) Resolve(ctx context.Context, userID string) (services.PodcastService, error) {
	return f(ctx, userID)
}

// Dispatcher starts update runs in the background and publishes their progress to a [models.JobStore].
//
// A run is admitted only if [models.JobStore.Claim] succeeds for the user. Workers are detached
// from the triggering request and cannot be cancelled; [Dispatcher.Wait] blocks until they finish.
type Dispatcher struct {
	engine   *UpdateEngine
	jobs     models.JobStore
	resolver ClientResolver
	logger   *log.Logger
	wg       sync.WaitGroup

	mu     sync.Mutex        // serializes claims against state edits
	active map[string]string // user id → job id of runs executing here
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(engine *UpdateEngine, jobs models.JobStore, resolver ClientResolver, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{engine: engine, jobs: jobs, resolver: resolver, logger: logger, active: make(map[string]string)}
}

// Start launches a run for userID and reports whether one was started.
//
// A run already registered for the user makes Start a no-op returning false.
// A missing playlist is rejected before anything is registered.
func (d *Dispatcher) Start(ctx context.Context, userID, playlistID string) (bool, error) {
	job, ok, err := d.claim(ctx, userID, playlistID)
	if err != nil || !ok {
		return false, err
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		_, _ = d.execute(context.WithoutCancel(ctx), userID, playlistID, job, nil)
	}()
	return true, nil
}

// Run performs a run in the foreground, forwarding progress to the caller.
//
// The caller is the consumer of the terminal status, so the job entry is removed when Run returns.
func (d *Dispatcher) Run(ctx context.Context, userID, playlistID string, progress chan<- ProgressUpdate) (*RunResult, error) {
	job, ok, err := d.claim(ctx, userID, playlistID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w for %s", shared.ErrJobRunning, userID)
	}
	defer func() {
		if err := d.jobs.Delete(context.WithoutCancel(ctx), userID); err != nil {
			d.logger.Warn("failed to clear job", "user", userID, "error", err)
		}
	}()

	return d.execute(ctx, userID, playlistID, job, progress)
}

// Status returns the user's job, or nil when no run is registered.
//
// Reading a terminal job removes it, so exactly one poller observes completion.
func (d *Dispatcher) Status(ctx context.Context, userID string) (*models.Job, error) {
	job, err := d.jobs.Get(ctx, userID)
	if err != nil || job == nil {
		return nil, err
	}
	if job.Terminal() {
		if err := d.jobs.Delete(ctx, userID); err != nil {
			return nil, err
		}
	}
	return job, nil
}

// Running reports whether the user has a registered job, finished or not.
func (d *Dispatcher) Running(ctx context.Context, userID string) (bool, error) {
	job, err := d.jobs.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return job != nil, nil
}

// UpdateState applies edit to the user's stored state and saves it.
//
// Edits are refused with [shared.ErrJobRunning] while a run is registered and unfinished:
// the run commits the state it loaded at start and would overwrite them.
func (d *Dispatcher) UpdateState(ctx context.Context, userID string, edit func(*models.UserState) error) (*models.UserState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	job, err := d.jobs.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if job != nil && !job.Terminal() {
		return nil, fmt.Errorf("%w for %s", shared.ErrJobRunning, userID)
	}

	state, err := d.engine.states.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := edit(state); err != nil {
		return nil, err
	}
	if err := d.engine.states.Save(ctx, userID, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Abandon marks every run still executing in this process as failed with reason.
//
// Shutdown calls it once it stops waiting; later progress from those runs is dropped.
func (d *Dispatcher) Abandon(ctx context.Context, reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now().UTC()
	for userID, id := range d.active {
		job := models.Job{
			ID:        id,
			Message:   fmt.Sprintf("An error occurred: %s", reason),
			Progress:  1,
			Total:     1,
			IsError:   true,
			UpdatedAt: now,
		}
		if err := d.jobs.Put(ctx, userID, job); err != nil {
			d.logger.Error("failed to mark abandoned run", "user", userID, "error", err)
			continue
		}
		d.logger.Warn("update abandoned", "user", userID, "job", id)
	}
	clear(d.active)
}

// Wait blocks until every started worker has returned or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) claim(ctx context.Context, userID, playlistID string) (models.Job, bool, error) {
	if playlistID == "" {
		return models.Job{}, false, shared.ErrMissingPlaylist
	}

	now := time.Now().UTC()
	job := models.Job{
		ID:        shared.GenerateID(),
		Message:   "Starting update...",
		Progress:  0,
		Total:     1,
		StartedAt: now,
		UpdatedAt: now,
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ok, err := d.jobs.Claim(ctx, userID, job)
	if err != nil {
		return models.Job{}, false, fmt.Errorf("failed to register job: %w", err)
	}
	if ok {
		d.active[userID] = job.ID
	}
	return job, ok, nil
}

// publish stores job while it is still the user's active run; abandoned runs are dropped.
func (d *Dispatcher) publish(ctx context.Context, userID string, job models.Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active[userID] != job.ID {
		return nil
	}
	return d.jobs.Put(ctx, userID, job)
}

func (d *Dispatcher) release(userID, jobID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active[userID] == jobID {
		delete(d.active, userID)
	}
}

// execute runs the engine, mirrors progress into the job store and writes the terminal status.
func (d *Dispatcher) execute(ctx context.Context, userID, playlistID string, job models.Job, forward chan<- ProgressUpdate) (*RunResult, error) {
	logger := shared.WithLogger(d.logger, "user", userID, "job", job.ID)
	logger.Info("update started", "playlist", playlistID)

	progress := make(chan ProgressUpdate, progressBuffer)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for update := range progress {
			job.Message = update.Message
			job.Progress = update.Step
			job.Total = update.Total
			job.UpdatedAt = time.Now().UTC()
			if err := d.publish(ctx, userID, job); err != nil {
				logger.Warn("failed to publish progress", "error", err)
			}
			sendProgress(forward, update)
		}
	}()

	result, err := d.runEngine(ctx, userID, playlistID, progress)
	close(progress)
	<-drained

	job.UpdatedAt = time.Now().UTC()
	if err != nil {
		logger.Error("update failed", "error", err)
		job.Message = fmt.Sprintf("An error occurred: %v", err)
		job.Progress, job.Total = 1, 1
		job.IsError = true
	} else {
		logger.Info("update finished", "message", result.Message(), "total", len(result.URIs))
		job.Message = result.Message()
		if result.NoShows {
			job.Progress, job.Total = 1, 1
		} else {
			job.Progress, job.Total = 100, 100
		}
		job.IsDone = true
	}

	if perr := d.publish(ctx, userID, job); perr != nil {
		logger.Error("failed to publish final status", "error", perr)
	}
	d.release(userID, job.ID)
	return result, err
}

// runEngine resolves the user's client and runs the engine, converting panics into errors.
func (d *Dispatcher) runEngine(ctx context.Context, userID, playlistID string, progress chan<- ProgressUpdate) (result *RunResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("update panicked: %v", r)
		}
	}()

	svc, err := d.resolver.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	return d.engine.Run(ctx, svc, userID, playlistID, progress)
}
