package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/podq/internal/models"
	"github.com/desertthunder/podq/internal/repositories"
	"github.com/desertthunder/podq/internal/services"
	"github.com/desertthunder/podq/internal/shared"
	"github.com/desertthunder/podq/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The CLI acts on behalf of the single user whose token and id are stored in the config file.
type Runner struct {
	config     *shared.Config
	configPath string
	auth       services.Authorizer
	client     services.PodcastService
	logger     *log.Logger
	output     io.Writer

	db     *sql.DB
	states models.StateStore
	jobs   models.JobStore

	mu sync.Mutex // guards config writes from token refreshes
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Auth       services.Authorizer
	Client     services.PodcastService // used instead of building one from the stored token
	States     models.StateStore
	Jobs       models.JobStore
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		auth:       opts.Auth,
		client:     opts.Client,
		states:     opts.States,
		jobs:       opts.Jobs,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, serveCommand, updateCommand, statusCommand, exportCommand,
		playlistCommand, settingsCommand, resetCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before loads the config named by --config, unless one was injected, and builds the Spotify service.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")
	if r.configPath == "" {
		r.configPath = path
	}

	if _, err := os.Stat(r.configPath); err == nil {
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return ctx, err
		}
		r.config = config
	} else {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
	}

	if err := shared.SetLogLevel(r.logger, r.config.LogLevel); err != nil {
		r.logger.Warn("ignoring log level", "error", err)
	}

	if r.auth == nil {
		if svc, err := services.NewSpotifyService(r.config.Credentials.Spotify.Map()); err == nil {
			svc.SetPageSize(r.config.Scan.PageSize)
			svc.SetRateLimit(r.config.Scan.RequestsPerSecond)
			r.auth = svc
		} else {
			r.logger.Debug("spotify service unavailable", "error", err)
		}
	}

	return ctx, nil
}

// after releases the database handle, if one was opened.
func (r *Runner) after(ctx context.Context, cmd *cli.Command) error {
	return r.Close()
}

// Close closes the database handle, if one was opened.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// database opens the configured SQLite database and applies migrations.
func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	r.db = db
	return db, nil
}

// stores builds the state store and job registry selected by the config.
func (r *Runner) stores() (models.StateStore, models.JobStore, error) {
	var db *sql.DB
	if (r.states == nil && r.config.State.Backend == "sqlite") || (r.jobs == nil && r.config.Jobs.Backend == "sqlite") {
		var err error
		if db, err = r.database(); err != nil {
			return nil, nil, err
		}
	}

	if r.states == nil {
		states, err := repositories.NewStateStore(r.config.State, db, r.logger)
		if err != nil {
			return nil, nil, err
		}
		r.states = states
	}
	if r.jobs == nil {
		jobs, err := repositories.NewJobStore(r.config.Jobs, db)
		if err != nil {
			return nil, nil, err
		}
		r.jobs = jobs
	}
	return r.states, r.jobs, nil
}

// userID returns the user recorded by `podq auth`.
func (r *Runner) userID() (string, error) {
	id := r.config.Credentials.Spotify.UserID
	if id == "" {
		return "", fmt.Errorf("%w: run 'podq auth' first", shared.ErrNotAuthenticated)
	}
	return id, nil
}

// spotifyClient returns a client for the configured user; refreshed tokens are written back to the config.
func (r *Runner) spotifyClient(ctx context.Context) (services.PodcastService, error) {
	if r.client != nil {
		return r.client, nil
	}
	if r.auth == nil {
		return nil, fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s", shared.ErrMissingCredentials, r.configPath)
	}

	token := r.config.Credentials.Spotify.Token()
	if token == nil {
		return nil, fmt.Errorf("%w: run 'podq auth' first", shared.ErrNotAuthenticated)
	}

	return r.auth.NewClient(ctx, token, func(t *oauth2.Token) {
		if err := r.saveTokens(t); err != nil {
			r.logger.Warn("failed to persist refreshed token", "error", err)
		}
	}), nil
}

// saveTokens stores token in the config and writes it to the config path, if any.
func (r *Runner) saveTokens(token *oauth2.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.config == nil {
		return errors.New("config is nil")
	}

	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}

	if r.configPath == "" {
		return nil
	}

	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// engine builds an update engine over the configured state store.
func (r *Runner) engine(states models.StateStore) *tasks.UpdateEngine {
	return tasks.NewUpdateEngine(states, tasks.OptionsFromConfig(r.config.Scan), r.logger)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
