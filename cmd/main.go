package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/podq/internal/shared"
	"github.com/desertthunder/podq/internal/ui"
	"github.com/urfave/cli/v3"
)

func newApp(runner *Runner) *cli.Command {
	return &cli.Command{
		Name:    "podq",
		Usage:   "Build a smart queue playlist from your saved Spotify podcasts",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
				Sources: cli.EnvVars("PODQ_CONFIG"),
			},
		},
		Before:   runner.before,
		After:    runner.after,
		Commands: runner.register(),
	}
}

func main() {
	runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(nil)})

	if err := newApp(runner).Run(context.Background(), os.Args); err != nil {
		fmt.Fprint(os.Stderr, ui.RenderFailure(err))
		os.Exit(1)
	}
}
