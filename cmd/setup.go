package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/isoca/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file when missing and runs the token database migrations.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = "config.toml"
	}

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		r.writePlain("✓ Created %s\n", configPath)

		config, err := shared.ResolveConfig(configPath)
		if err != nil {
			return err
		}
		r.config = config
	}

	storeCfg := r.config.Store
	if storeCfg.Driver != "" && storeCfg.Driver != "sqlite" {
		r.logger.Info("store driver needs no setup", "driver", storeCfg.Driver)
		return r.writePlain("✓ Store driver %q is ready\n", storeCfg.Driver)
	}

	r.logger.Info("initializing database", "path", storeCfg.Path)

	db, err := shared.NewDatabase(storeCfg.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, storeCfg.MaxOpenConns, storeCfg.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", storeCfg.Path)

	if r.config.Credentials.Spotify.ClientID == "" || r.config.Credentials.Spotify.ClientID == "your_spotify_client_id" {
		r.writePlainln("Next steps:")
		r.writePlain("1. Set credentials.spotify.client_id and client_secret in %s\n", configPath)
		r.writePlain("2. Run 'isoca backend' and 'isoca serve', then open the dashboard\n")
	}
	return r.writePlain("✓ Database ready at %s\n", storeCfg.Path)
}
