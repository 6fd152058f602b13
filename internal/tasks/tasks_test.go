package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/charmbracelet/log"

	"mixtape/internal/services"
	"mixtape/internal/shared"
)

type fakeCatalog struct {
	playlists map[string]*services.PlaylistSummary
	tracks    map[string][]services.Track
}

func (f *fakeCatalog) SearchPlaylists(ctx context.Context, query string, filters services.SearchFilters) ([]services.PlaylistSummary, error) {
	return nil, nil
}

func (f *fakeCatalog) Playlist(ctx context.Context, id string) (*services.PlaylistSummary, error) {
	pl, ok := f.playlists[id]
	if !ok {
		return nil, shared.ErrPlaylistNotFound
	}
	return pl, nil
}

func (f *fakeCatalog) PlaylistTracks(ctx context.Context, id string) ([]services.Track, error) {
	tracks, ok := f.tracks[id]
	if !ok {
		return nil, shared.ErrPlaylistNotFound
	}
	return tracks, nil
}

func (f *fakeCatalog) UserPlaylists(ctx context.Context) ([]services.PlaylistSummary, error) {
	return nil, nil
}

type fakePublisher struct {
	created []string
	added   map[string][]string

	failCreate    map[string]error // by playlist name
	commitLimit   int              // when > 0, AddTracks commits at most this many
	cancelAfter   int              // when > 0, cancel after this many creations
	cancelContext context.CancelFunc
}

func (f *fakePublisher) CurrentUser(ctx context.Context) (*services.User, error) {
	return &services.User{ID: "user1", DisplayName: "Listener"}, nil
}

func (f *fakePublisher) CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*services.CreatedPlaylist, error) {
	if err := f.failCreate[name]; err != nil {
		return nil, err
	}

	id := fmt.Sprintf("created-%d", len(f.created))
	f.created = append(f.created, name)

	if f.cancelAfter > 0 && len(f.created) >= f.cancelAfter && f.cancelContext != nil {
		f.cancelContext()
	}

	return &services.CreatedPlaylist{ID: id, Name: name, URL: "https://open.spotify.com/playlist/" + id}, nil
}

func (f *fakePublisher) AddTracks(ctx context.Context, playlistID string, uris []string) (int, error) {
	if f.added == nil {
		f.added = make(map[string][]string)
	}
	if f.commitLimit > 0 && len(uris) > f.commitLimit {
		f.added[playlistID] = uris[:f.commitLimit]
		return f.commitLimit, fmt.Errorf("%w: batch rejected", shared.ErrAPIRequest)
	}
	f.added[playlistID] = uris
	return len(uris), nil
}

func newFixture(trackCounts map[string]int) (*fakeCatalog, *fakePublisher) {
	catalog := &fakeCatalog{
		playlists: make(map[string]*services.PlaylistSummary),
		tracks:    make(map[string][]services.Track),
	}
	for id, n := range trackCounts {
		catalog.playlists[id] = &services.PlaylistSummary{ID: id, Name: "Source " + id, TrackCount: n}
		tracks := make([]services.Track, n)
		for i := range tracks {
			tid := fmt.Sprintf("%s-t%d", id, i)
			tracks[i] = services.Track{ID: tid, URI: "spotify:track:" + tid}
		}
		catalog.tracks[id] = tracks
	}
	return catalog, &fakePublisher{}
}

func seed(n int64) *int64 { return &n }

func TestGenerate(t *testing.T) {
	logger := log.New(io.Discard)

	t.Run("publishes all playlists", func(t *testing.T) {
		catalog, publisher := newFixture(map[string]int{"a": 20, "b": 20})
		engine := NewEngine(catalog, publisher, logger)

		result, err := engine.Generate(context.Background(), Params{
			SourceIDs:       []string{"a", "b"},
			Count:           2,
			TracksPer:       10,
			AvoidDuplicates: true,
			Seed:            seed(7),
		}, nil)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}

		if result.PoolSize != 40 {
			t.Errorf("expected pool of 40, got %d", result.PoolSize)
		}
		if len(result.Playlists) != 2 {
			t.Fatalf("expected 2 playlists, got %d", len(result.Playlists))
		}
		for _, pl := range result.Playlists {
			if pl.Status != StatusPublished {
				t.Errorf("playlist %s: expected published, got %s", pl.Name, pl.Status)
			}
			if pl.Committed != 10 {
				t.Errorf("playlist %s: expected 10 committed, got %d", pl.Name, pl.Committed)
			}
		}
		if len(publisher.created) != 2 {
			t.Errorf("expected 2 creations, got %d", len(publisher.created))
		}
	})

	t.Run("reports partial publish with uncommitted tracks", func(t *testing.T) {
		catalog, publisher := newFixture(map[string]int{"a": 20})
		publisher.commitLimit = 4
		engine := NewEngine(catalog, publisher, logger)

		result, err := engine.Generate(context.Background(), Params{
			SourceIDs:       []string{"a"},
			Count:           1,
			TracksPer:       10,
			AvoidDuplicates: true,
			Seed:            seed(7),
		}, nil)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}

		pl := result.Playlists[0]
		if pl.Status != StatusPartiallyPublished {
			t.Fatalf("expected partially_published, got %s", pl.Status)
		}
		if pl.Committed != 4 {
			t.Errorf("expected 4 committed, got %d", pl.Committed)
		}
		if len(pl.Uncommitted) != 6 {
			t.Errorf("expected 6 uncommitted URIs, got %d", len(pl.Uncommitted))
		}
		if pl.PlaylistID == "" || pl.Error == "" {
			t.Errorf("expected playlist ID and error recorded: %+v", pl)
		}
	})

	t.Run("records creation failure and continues", func(t *testing.T) {
		catalog, publisher := newFixture(map[string]int{"a": 20})
		engine := NewEngine(catalog, publisher, logger)

		params := Params{
			SourceIDs:       []string{"a"},
			Count:           2,
			TracksPer:       5,
			AvoidDuplicates: true,
			Names:           []string{"Doomed", "Fine"},
			Seed:            seed(7),
		}
		publisher.failCreate = map[string]error{"Doomed": fmt.Errorf("%w: server error", shared.ErrAPIRequest)}

		result, err := engine.Generate(context.Background(), params, nil)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}

		if result.Playlists[0].Status != StatusFailed {
			t.Errorf("expected first playlist failed, got %s", result.Playlists[0].Status)
		}
		if result.Playlists[1].Status != StatusPublished {
			t.Errorf("expected second playlist published, got %s", result.Playlists[1].Status)
		}
	})

	t.Run("cancellation leaves remaining playlists planned", func(t *testing.T) {
		catalog, publisher := newFixture(map[string]int{"a": 30})
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		publisher.cancelAfter = 1
		publisher.cancelContext = cancel

		engine := NewEngine(catalog, publisher, logger)
		result, err := engine.Generate(ctx, Params{
			SourceIDs:       []string{"a"},
			Count:           3,
			TracksPer:       10,
			AvoidDuplicates: true,
			Seed:            seed(7),
		}, nil)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}

		if len(result.Playlists) != 3 {
			t.Fatalf("expected 3 results, got %d", len(result.Playlists))
		}
		if result.Playlists[0].Status != StatusPublished {
			t.Errorf("expected first playlist published, got %s", result.Playlists[0].Status)
		}
		for _, pl := range result.Playlists[1:] {
			if pl.Status != StatusPlanned {
				t.Errorf("playlist %s: expected planned, got %s", pl.Name, pl.Status)
			}
		}
	})

	t.Run("fails the run on an insufficient pool", func(t *testing.T) {
		catalog, publisher := newFixture(map[string]int{"a": 5})
		engine := NewEngine(catalog, publisher, logger)

		_, err := engine.Generate(context.Background(), Params{
			SourceIDs:       []string{"a"},
			Count:           2,
			TracksPer:       10,
			AvoidDuplicates: true,
		}, nil)
		if !errors.Is(err, shared.ErrInsufficientTracks) {
			t.Errorf("expected ErrInsufficientTracks, got %v", err)
		}
		if len(publisher.created) != 0 {
			t.Errorf("expected no playlists created, got %d", len(publisher.created))
		}
	})

	t.Run("fails the run on a missing source", func(t *testing.T) {
		catalog, publisher := newFixture(map[string]int{"a": 20})
		engine := NewEngine(catalog, publisher, logger)

		_, err := engine.Generate(context.Background(), Params{
			SourceIDs: []string{"a", "nope"},
			Count:     1,
			TracksPer: 5,
		}, nil)
		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("rejects empty sources", func(t *testing.T) {
		catalog, publisher := newFixture(nil)
		engine := NewEngine(catalog, publisher, logger)

		_, err := engine.Generate(context.Background(), Params{Count: 1, TracksPer: 5}, nil)
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("emits progress updates", func(t *testing.T) {
		catalog, publisher := newFixture(map[string]int{"a": 20})
		engine := NewEngine(catalog, publisher, logger)

		progress := make(chan ProgressUpdate, 32)
		_, err := engine.Generate(context.Background(), Params{
			SourceIDs:       []string{"a"},
			Count:           1,
			TracksPer:       5,
			AvoidDuplicates: true,
			Seed:            seed(7),
		}, progress)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		close(progress)

		phases := make(map[Phase]bool)
		for update := range progress {
			phases[update.Phase] = true
		}
		for _, want := range []Phase{PhaseFetching, PhasePlanning, PhasePublishing, PhaseDone} {
			if !phases[want] {
				t.Errorf("missing %s progress update", want)
			}
		}
	})
}
