package main

import (
	"bytes"
	"context"
	"testing"

	"mixtape/internal/shared"
)

func TestSetup(t *testing.T) {
	t.Run("creates the config file and schema", func(t *testing.T) {
		t.Chdir(t.TempDir())

		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
		cmd := setupCommand(runner)
		if err := cmd.Run(context.Background(), []string{"setup", "--config", "config.toml"}); err != nil {
			t.Fatalf("setup failed: %v", err)
		}

		if _, err := shared.LoadConfig("config.toml"); err != nil {
			t.Errorf("config file not readable: %v", err)
		}

		db, err := shared.NewDatabase(runner.config.Database.Path)
		if err != nil {
			t.Fatalf("database not created: %v", err)
		}
		defer db.Close()
		if _, err := db.Exec("SELECT 1 FROM sessions LIMIT 1"); err != nil {
			t.Errorf("sessions table should exist: %v", err)
		}
	})

	t.Run("persists credentials passed as flags", func(t *testing.T) {
		t.Chdir(t.TempDir())

		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
		cmd := setupCommand(runner)
		args := []string{
			"setup", "--config", "config.toml",
			"--client-id", "id-from-flag",
			"--client-secret", "secret-from-flag",
			"--redirect-uri", "https://mixer.example.com/callback",
		}
		if err := cmd.Run(context.Background(), args); err != nil {
			t.Fatalf("setup failed: %v", err)
		}

		saved, err := shared.LoadConfig("config.toml")
		if err != nil {
			t.Fatalf("failed to load saved config: %v", err)
		}
		if saved.Credentials.Spotify.ClientID != "id-from-flag" {
			t.Errorf("client ID not persisted, got %q", saved.Credentials.Spotify.ClientID)
		}
		if saved.Credentials.Spotify.ClientSecret != "secret-from-flag" {
			t.Errorf("client secret not persisted, got %q", saved.Credentials.Spotify.ClientSecret)
		}
		if saved.Credentials.Spotify.RedirectURI != "https://mixer.example.com/callback" {
			t.Errorf("redirect URI not persisted, got %q", saved.Credentials.Spotify.RedirectURI)
		}
		if !saved.Configured() {
			t.Error("saved config should report configured")
		}
	})
}
