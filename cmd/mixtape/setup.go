package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"mixtape/internal/shared"
)

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create a config file and initialize the database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.StringFlag{
				Name:  "client-id",
				Usage: "Spotify client ID to store in the config file",
			},
			&cli.StringFlag{
				Name:  "client-secret",
				Usage: "Spotify client secret to store in the config file",
			},
			&cli.StringFlag{
				Name:  "redirect-uri",
				Usage: "OAuth redirect URI to store in the config file",
			},
		},
		Action: r.Setup,
	}
}

// Setup writes the config template when missing, persists any credentials
// passed on the command line, and brings the database schema up to date.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err == nil {
		r.logger.Info("config file already exists", "path", configPath)
	} else {
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		r.logger.Info("config file created", "path", configPath)

		if config, err := shared.LoadConfig(configPath); err == nil {
			r.config = config
		}
	}

	if cmd.IsSet("client-id") || cmd.IsSet("client-secret") || cmd.IsSet("redirect-uri") {
		if v := cmd.String("client-id"); v != "" {
			r.config.Credentials.Spotify.ClientID = v
		}
		if v := cmd.String("client-secret"); v != "" {
			r.config.Credentials.Spotify.ClientSecret = v
		}
		if v := cmd.String("redirect-uri"); v != "" {
			r.config.Credentials.Spotify.RedirectURI = v
		}
		if err := shared.SaveConfig(configPath, r.config); err != nil {
			return fmt.Errorf("failed to save credentials: %w", err)
		}
		r.logger.Info("credentials saved", "path", configPath)
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	r.writePlain("✓ Setup complete\n")
	if !r.config.Configured() {
		r.writePlain("Add your Spotify credentials to %s (or set CLIENT_ID and CLIENT_SECRET) before logging in.\n", configPath)
	}
	return nil
}
