package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/tunelink/internal/server"
	"github.com/desertthunder/tunelink/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the database and runs migrations.
//
// A missing config file is created from the embedded template first.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	config := r.config
	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load created config, using defaults", "error", err)
			config = shared.DefaultConfig()
		} else {
			r.logger.Info("config file created", "path", configPath)
		}
	}

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

	version, applied, err := shared.SchemaVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	r.writePlain("✓ Database ready at %s (schema v%d, %d migrations)\n", config.Database.Path, version, applied)

	if _, err := shared.ParseEncryptionKey(config.Security.EncryptionKey); err != nil {
		r.writePlainln("No usable encryption key yet: %v", err)
		r.writePlain("Run 'tunelink setup key' and set %s or security.encryption_key\n", shared.EncryptionKeyEnv)
	}
	return nil
}

// SetupKey prints a new random 32 byte encryption key in hex.
func (r *Runner) SetupKey(ctx context.Context, cmd *cli.Command) error {
	key, err := shared.RandomHex(32)
	if err != nil {
		return err
	}

	r.writePlain("%s\n", key)
	r.writePlainln("Export it as %s or store it under [security] encryption_key.", shared.EncryptionKeyEnv)
	r.writePlain("Tokens saved under one key cannot be read with another.\n")
	return nil
}

// newOAuthServer wires the state coordinator and OAuth handler into an HTTP server on the configured address.
func (r *Runner) newOAuthServer() (*server.Server, *server.OAuthHandler, error) {
	states, err := server.NewStateStore(r.config.Security.StateStore, r.store)
	if err != nil {
		return nil, nil, err
	}

	coordinator := server.NewCoordinator(server.CoordinatorOpts{
		Store:   states,
		TTL:     r.config.Security.StateTTL,
		Metrics: r.metrics,
	})
	oauth := server.NewOAuthHandler(coordinator, r.registry, r.accounts, r.logger)

	srv := server.New(server.ServerOpts{
		Addr:    r.config.Server.Addr(),
		OAuth:   oauth,
		Metrics: r.metrics.Handler(),
		Logger:  r.logger,
	})
	return srv, oauth, nil
}

// Serve runs the HTTP server until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	srv, _, err := r.newOAuthServer()
	if err != nil {
		return err
	}

	addr := r.config.Server.Addr()
	r.writePlainHeader("tunelink server")
	r.writePlain("Connect:  http://%s/auth/{spotify|soundcloud}/connect?user=<user id>\n", addr)
	r.writePlain("Health:   http://%s/healthz\n", addr)
	r.writePlain("Metrics:  http://%s/metrics\n\n", addr)

	return srv.Start(ctx)
}
