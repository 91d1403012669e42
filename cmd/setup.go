package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/polychrome/internal/cache"
	"github.com/desertthunder/polychrome/internal/repositories"
	"github.com/desertthunder/polychrome/internal/shared"
)

// Setup writes a config file when none exists, migrates the library database and prepares the durable cache.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
			config, err := shared.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load created config: %w", err)
			}
			r.config = config
		}
	}
	config := r.ensureConfig()

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if _, err := repositories.NewPlaylistRepository(db).EnsureLikedSongs(ctx); err != nil {
		return fmt.Errorf("failed to create default playlist: %w", err)
	}

	durable, err := cache.OpenDurable(config.Cache)
	if err != nil {
		return fmt.Errorf("failed to open %s cache: %w", config.Cache.Backend, err)
	}
	if durable != nil {
		if err := durable.Close(); err != nil {
			return fmt.Errorf("failed to close cache: %w", err)
		}
	}

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	r.writePlain("✓ Library database ready: %s\n", config.Database.Path)
	if durable != nil {
		r.writePlain("✓ Response cache ready: %s (%s)\n", config.Cache.Path, config.Cache.Backend)
	} else {
		r.writePlain("• Response cache runs in memory only\n")
	}
	r.writePlainln("Next steps:")
	r.writePlain("1. Run 'poly mirrors refresh' to rank the configured mirrors\n")
	r.writePlain("2. Run 'poly search tracks \"your song\"' to try a search\n")
	return nil
}
