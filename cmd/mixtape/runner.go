package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"mixtape/internal/services"
	"mixtape/internal/session"
	"mixtape/internal/shared"
)

// cliSession is the session ID the CLI stores its token under. The terminal
// is a single user, so one well-known row suffices.
const cliSession = "cli"

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config *shared.Config
	logger *log.Logger
	output io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *shared.Config
	Logger *log.Logger
	Output io.Writer
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
		config: opts.Config,
		logger: opts.Logger,
		output: opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, loginCommand, searchCommand, generateCommand, playlistsCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// openDatabase opens the configured sqlite database and brings the schema up
// to date.
func (r *Runner) openDatabase() (*sql.DB, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// manager builds the OAuth manager from the loaded credentials.
func (r *Runner) manager() (*session.Manager, error) {
	return session.NewManager(
		r.config.Credentials.Spotify.ClientID,
		r.config.Credentials.Spotify.ClientSecret,
		r.config.Credentials.Spotify.RedirectURI,
	)
}

// userClient resolves the stored CLI token into an authenticated HTTP
// client, refreshing and persisting it when expired.
func (r *Runner) userClient(ctx context.Context, manager *session.Manager, store *session.Store) (*http.Client, error) {
	token, err := store.Get(ctx, cliSession)
	if err != nil {
		return nil, err
	}

	fresh, err := manager.Valid(ctx, token)
	if err != nil {
		return nil, err
	}
	if fresh.AccessToken != token.AccessToken {
		if err := store.Save(ctx, cliSession, fresh); err != nil {
			r.logger.Warn("failed to persist refreshed token", "error", err)
		}
	}

	return manager.Client(ctx, fresh), nil
}

// catalog returns a provider catalog, preferring the stored user token and
// falling back to the client-credentials grant.
func (r *Runner) catalog(ctx context.Context, manager *session.Manager, store *session.Store) services.Catalog {
	client, err := r.userClient(ctx, manager, store)
	if err != nil {
		r.logger.Debug("no user session, using app credentials", "reason", err)
		client = manager.AppClient(ctx)
	}
	return services.NewSpotifyClient(client, r.logger)
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

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
