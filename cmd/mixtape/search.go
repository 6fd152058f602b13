package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"mixtape/internal/services"
	"mixtape/internal/session"
	"mixtape/internal/ui"
)

func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search Spotify for public playlists",
		ArgsUsage: "<query>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "query"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "country", Usage: "Restrict results to a market (ISO 3166-1 code)"},
			&cli.StringFlag{Name: "genre", Usage: "Add a genre qualifier to the query"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Maximum number of results", Value: 20},
			&cli.BoolFlag{Name: "json", Usage: "Output JSON instead of a table"},
		},
		Action: r.Search,
	}
}

// Search queries the catalog. Works without a login by falling back to app
// credentials.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	if query == "" {
		return cli.Exit("usage: mixtape search <query>", 1)
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

	catalog := r.catalog(ctx, manager, session.NewStore(db))
	results, err := catalog.SearchPlaylists(ctx, query, services.SearchFilters{
		Country: cmd.String("country"),
		Genre:   cmd.String("genre"),
		Limit:   int(cmd.Int("limit")),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(results, true)
	}

	if len(results) == 0 {
		return r.writePlain("No playlists found for %q\n", query)
	}

	r.writePlain("%s\n", ui.Title("Search results"))
	r.writePlain("%s\n", ui.PlaylistTable(results))
	return r.writePlain("%s\n", ui.Help("Pass playlist IDs to `mixtape generate` to mix them."))
}

func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlists",
		Usage: "List your own playlists (requires login)",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Output JSON instead of a table"},
		},
		Action: r.Playlists,
	}
}

// Playlists lists the authenticated user's playlists.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
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

	playlists, err := services.NewSpotifyClient(client, r.logger).UserPlaylists(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, true)
	}

	r.writePlain("%s\n", ui.Title("Your playlists"))
	return r.writePlain("%s\n", ui.PlaylistTable(playlists))
}
