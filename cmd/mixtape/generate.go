package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"mixtape/internal/services"
	"mixtape/internal/session"
	"mixtape/internal/shared"
	"mixtape/internal/tasks"
	"mixtape/internal/ui"
)

func generateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "generate",
		Usage:     "Mix source playlists into new shuffled playlists",
		ArgsUsage: "<playlist-id>...",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "count", Aliases: []string{"c"}, Usage: "Number of playlists to create", Value: 1},
			&cli.IntFlag{Name: "tracks", Aliases: []string{"t"}, Usage: "Tracks per playlist", Value: 20},
			&cli.BoolFlag{Name: "allow-duplicates", Usage: "Allow the same track in more than one output"},
			&cli.BoolFlag{Name: "public", Usage: "Create public playlists"},
			&cli.StringSliceFlag{Name: "name", Usage: "Custom playlist name (repeatable, by position)"},
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Playlist description"},
			&cli.IntFlag{Name: "seed", Usage: "Shuffle seed for reproducible mixes", Value: -1},
			&cli.BoolFlag{Name: "json", Usage: "Output JSON instead of a table"},
		},
		Action: r.Generate,
	}
}

// Generate runs a full generation task against the stored login.
func (r *Runner) Generate(ctx context.Context, cmd *cli.Command) error {
	sourceIDs := cmd.Args().Slice()
	if len(sourceIDs) == 0 {
		return cli.Exit("usage: mixtape generate <playlist-id>...", 1)
	}

	manager, err := r.manager()
	if err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	client, err := r.userClient(ctx, manager, session.NewStore(db))
	if err != nil {
		return err
	}

	public := r.config.Generator.Public
	if cmd.IsSet("public") {
		public = cmd.Bool("public")
	}

	params := tasks.Params{
		SourceIDs:       sourceIDs,
		Count:           int(cmd.Int("count")),
		TracksPer:       int(cmd.Int("tracks")),
		AvoidDuplicates: !cmd.Bool("allow-duplicates"),
		Public:          public,
		Names:           cmd.StringSlice("name"),
		Description:     cmd.String("description"),
	}
	if cmd.IsSet("seed") {
		seed := int64(cmd.Int("seed"))
		params.Seed = &seed
	}

	spotify := services.NewSpotifyClient(client, r.logger)
	engine := tasks.NewEngine(spotify, spotify, shared.WithLogger(r.logger, "component", "engine"))

	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			if update.Message != "" {
				r.writePlain("→ %s\n", update.Message)
			}
		}
	}()

	result, err := engine.Generate(ctx, params, progress)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}

	r.writePlainln("%s", ui.Title(fmt.Sprintf("Mixed %d tracks from %d playlists", result.PoolSize, len(result.Sources))))
	return r.writePlain("%s\n", ui.ResultTable(result))
}
