package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/podq/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file if it is missing, then prepares the state directory and database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	if _, err := os.Stat(r.configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", r.configPath)
		if err := shared.CreateConfigFile(r.configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return fmt.Errorf("failed to load created config: %w", err)
		}
		r.config = config
		r.writePlain("✓ Created %s\n", r.configPath)
	}

	if r.config.State.Backend == "file" {
		if err := os.MkdirAll(r.config.State.Dir, 0755); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
		r.logger.Info("state directory ready", "path", r.config.State.Dir)
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	if _, err := r.database(); err != nil {
		return err
	}
	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)

	r.writePlain("✓ Database ready at %s\n\n", r.config.Database.Path)
	r.writePlain("Next steps:\n")
	r.writePlain("1. Set credentials.spotify.client_id and client_secret in %s\n", r.configPath)
	r.writePlain("2. Run 'podq auth' to connect your Spotify account\n")
	r.writePlain("3. Run 'podq playlist create --scan' to build your first queue\n")
	return nil
}
