package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/podq/internal/repositories"
	"github.com/desertthunder/podq/internal/server"
	"github.com/desertthunder/podq/internal/shared"
	"github.com/urfave/cli/v3"
)

// shutdownTimeout bounds how long Serve waits for in-flight requests and update runs.
const shutdownTimeout = 30 * time.Second

// Serve runs the web API until interrupted, then drains in-flight update runs.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if r.auth == nil {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s", shared.ErrMissingCredentials, r.configPath)
	}

	db, err := r.database()
	if err != nil {
		return err
	}
	states, jobs, err := r.stores()
	if err != nil {
		return err
	}

	srv := server.NewServer(server.Deps{
		Auth:   r.auth,
		Tokens: repositories.NewTokenRepository(db),
		States: states,
		Jobs:   jobs,
		Engine: r.engine(states),
		Logger: r.logger,
	}, server.Options{
		PlaylistName:  r.config.Scan.PlaylistName,
		SecureCookies: cmd.Bool("secure-cookies"),
	})

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() { errs <- srv.ListenAndServe(addr) }()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	r.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
