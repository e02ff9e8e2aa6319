// submodule cmd contains command definitions
package main

import (
	"strings"
	"time"

	"github.com/desertthunder/podq/internal/formatter"
	"github.com/urfave/cli/v3"
)

func formatNames() string {
	names := make([]string, len(formatter.Formats))
	for i, f := range formatter.Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

// setupCommand creates the config file, the state directory and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml, initialize the database and run migrations",
		Action: r.Setup,
	}
}

// authCommand runs the OAuth2 flow for the CLI user.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with Spotify using OAuth2",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to wait for the browser callback",
				Value: 2 * time.Minute,
			},
			&cli.BoolFlag{
				Name:  "no-browser",
				Usage: "Print the authorization URL instead of opening a browser",
			},
		},
		Action: r.Auth,
	}
}

// serveCommand runs the multi-user web API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default: server.host:server.port)",
			},
			&cli.BoolFlag{
				Name:  "secure-cookies",
				Usage: "Mark session cookies Secure (serve behind HTTPS)",
			},
		},
		Action: r.Serve,
	}
}

// updateCommand runs an update in the foreground.
func updateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "update",
		Aliases: []string{"run"},
		Usage:   "Scan saved shows and rebuild the queue playlist",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Hide per-show scan lines",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the result as JSON",
			},
		},
		Action: r.Update,
	}
}

// statusCommand prints the stored state.
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show queue state and scan progress",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: " + formatNames(),
				Value:   string(formatter.FormatTable),
			},
			&cli.BoolFlag{
				Name:  "shows",
				Usage: "Include the per-show table",
			},
		},
		Action: r.Status,
	}
}

// exportCommand writes the stored state to a file.
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export queue state to a file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: " + formatNames(),
				Value:   string(formatter.FormatMarkdown),
			},
			&cli.StringFlag{
				Name:     "output",
				Aliases:  []string{"o"},
				Usage:    "Output file path",
				Required: true,
			},
		},
		Action: r.Export,
	}
}

// playlistCommand manages the target playlist.
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlist",
		Usage: "Manage the queue playlist",
		Commands: []*cli.Command{
			{
				Name:  "set",
				Usage: "Use an existing playlist (URL, spotify: URI or ID)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "playlist"},
				},
				Action: r.PlaylistSet,
			},
			{
				Name:  "create",
				Usage: "Create a private queue playlist and use it",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "name",
						Usage: "Playlist name (default: scan.playlist_name)",
					},
					&cli.BoolFlag{
						Name:  "scan",
						Usage: "Run an update once the playlist is created",
					},
				},
				Action: r.PlaylistCreate,
			},
		},
	}
}

// settingsCommand changes per-user settings.
func settingsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Change queue settings",
		Commands: []*cli.Command{
			{
				Name:  "min-duration",
				Usage: "Exclude backlog episodes shorter than this many minutes",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "minutes"},
				},
				Action: r.SettingsMinDuration,
			},
		},
	}
}

// resetCommand forgets scan progress.
func resetCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "Forget scan progress; the playlist and settings are kept",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "yes",
				Usage: "Confirm the reset",
			},
		},
		Action: r.Reset,
	}
}
