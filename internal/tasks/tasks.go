// Package tasks orchestrates generation runs: fetching source playlists,
// planning mixes and publishing them to the provider.
package tasks

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/charmbracelet/log"

	"mixtape/internal/mixer"
	"mixtape/internal/services"
	"mixtape/internal/shared"
)

const defaultCallTimeout = 30 * time.Second

// Status of one output playlist at the end of a run.
type Status string

const (
	// StatusPlanned marks playlists left unpublished after cancellation.
	StatusPlanned Status = "planned"
	// StatusPublished marks playlists created with all tracks committed.
	StatusPublished Status = "published"
	// StatusPartiallyPublished marks playlists created with only a prefix
	// of their tracks committed.
	StatusPartiallyPublished Status = "partially_published"
	// StatusFailed marks playlists whose creation failed outright.
	StatusFailed Status = "failed"
)

// PartialPublishError reports a playlist that was created but received only
// a prefix of its tracks.
type PartialPublishError struct {
	PlaylistID  string
	Committed   int
	Uncommitted []string
	Err         error
}

func (e *PartialPublishError) Error() string {
	return fmt.Sprintf("playlist %s: %d tracks committed, %d not added: %v",
		e.PlaylistID, e.Committed, len(e.Uncommitted), e.Err)
}

func (e *PartialPublishError) Unwrap() error {
	return shared.ErrPartialPublish
}

// Params describes one generation run.
type Params struct {
	SourceIDs       []string `json:"source_ids"`
	Count           int      `json:"count"`
	TracksPer       int      `json:"tracks_per_playlist"`
	AvoidDuplicates bool     `json:"avoid_duplicates"`
	Public          bool     `json:"public"`
	Names           []string `json:"names,omitempty"`
	Description     string   `json:"description,omitempty"`
	Seed            *int64   `json:"seed,omitempty"`
}

// PlaylistResult is the outcome for one output playlist.
type PlaylistResult struct {
	Name        string   `json:"name"`
	Status      Status   `json:"status"`
	PlaylistID  string   `json:"playlist_id,omitempty"`
	URL         string   `json:"url,omitempty"`
	TrackCount  int      `json:"track_count"`
	Committed   int      `json:"committed"`
	Uncommitted []string `json:"uncommitted,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// Result is the outcome of a whole generation run.
type Result struct {
	Sources   []string         `json:"sources"`
	PoolSize  int              `json:"pool_size"`
	Playlists []PlaylistResult `json:"playlists"`
}

// Engine runs generation tasks against a catalog and a publisher.
type Engine struct {
	catalog     services.Catalog
	publisher   services.Publisher
	logger      *log.Logger
	callTimeout time.Duration
}

// NewEngine wires an Engine. The catalog reads sources; the publisher
// creates the outputs, so it must carry a user identity.
func NewEngine(catalog services.Catalog, publisher services.Publisher, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		catalog:     catalog,
		publisher:   publisher,
		logger:      logger,
		callTimeout: defaultCallTimeout,
	}
}

// Generate runs one task end to end. Progress updates are sent on progress
// when non-nil; slow consumers miss updates instead of blocking the run.
//
// Errors before publishing (bad input, fetch failures, insufficient pool)
// fail the whole run. Once publishing starts, failures are recorded per
// playlist in the result instead. Cancellation mid-publish leaves the
// remaining playlists in [StatusPlanned].
func (e *Engine) Generate(ctx context.Context, params Params, progress chan<- ProgressUpdate) (*Result, error) {
	if len(params.SourceIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one source playlist is required", shared.ErrInvalidInput)
	}

	sources, err := e.fetchSources(ctx, params.SourceIDs, progress)
	if err != nil {
		return nil, err
	}

	pool := mixer.Pool(sources)
	sourceNames := make([]string, 0, len(sources))
	for _, src := range sources {
		sourceNames = append(sourceNames, src.Name)
	}

	sendProgress(progress, ProgressUpdate{
		Phase:   PhasePlanning,
		Message: fmt.Sprintf("planning %d playlists from %d pooled tracks", params.Count, pool.Size()),
	})

	planned, err := mixer.Generate(pool, sourceNames, mixer.Request{
		Count:           params.Count,
		TracksPer:       params.TracksPer,
		AvoidDuplicates: params.AvoidDuplicates,
		Names:           params.Names,
	}, e.rng(params.Seed))
	if err != nil {
		return nil, err
	}

	result := &Result{
		Sources:  sourceNames,
		PoolSize: pool.Size(),
	}
	if err := e.publish(ctx, params, planned, result, progress); err != nil {
		return nil, err
	}

	sendProgress(progress, ProgressUpdate{Phase: PhaseDone, Completed: len(planned), Total: len(planned)})
	return result, nil
}

// fetchSources snapshots every source playlist with its tracks.
func (e *Engine) fetchSources(ctx context.Context, sourceIDs []string, progress chan<- ProgressUpdate) ([]services.SourcePlaylist, error) {
	sources := make([]services.SourcePlaylist, 0, len(sourceIDs))

	for i, id := range sourceIDs {
		sendProgress(progress, ProgressUpdate{
			Phase:     PhaseFetching,
			Message:   fmt.Sprintf("fetching playlist %s", id),
			Completed: i,
			Total:     len(sourceIDs),
		})

		summary, err := e.playlist(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch playlist %s: %w", id, err)
		}

		tracks, err := e.playlistTracks(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch tracks of %s: %w", id, err)
		}

		sources = append(sources, services.SourcePlaylist{ID: id, Name: summary.Name, Tracks: tracks})
		e.logger.Debug("fetched source playlist", "playlist", summary.Name, "tracks", len(tracks))
	}

	return sources, nil
}

// publish creates the planned playlists in order, recording per-playlist
// outcomes. Cancellation between playlists stops publishing; already
// published playlists keep their status.
func (e *Engine) publish(ctx context.Context, params Params, planned []mixer.Planned, result *Result, progress chan<- ProgressUpdate) error {
	user, err := e.currentUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve user: %w", err)
	}

	description := params.Description
	if description == "" {
		description = fmt.Sprintf("Auto-generated mix created on %s", time.Now().Format("2006-01-02 15:04"))
	}

	for i, plan := range planned {
		if ctx.Err() != nil {
			e.logger.Warn("run cancelled", "published", i, "remaining", len(planned)-i)
			for _, rest := range planned[i:] {
				result.Playlists = append(result.Playlists, PlaylistResult{
					Name:       rest.Name,
					Status:     StatusPlanned,
					TrackCount: len(rest.Tracks),
				})
			}
			return nil
		}

		sendProgress(progress, ProgressUpdate{
			Phase:     PhasePublishing,
			Message:   fmt.Sprintf("publishing %s", plan.Name),
			Completed: i,
			Total:     len(planned),
		})

		result.Playlists = append(result.Playlists, e.publishOne(ctx, user.ID, plan, description, params.Public))
	}

	return nil
}

// publishOne creates a single playlist and adds its tracks, mapping partial
// batch failures to [StatusPartiallyPublished] with the uncommitted URIs.
func (e *Engine) publishOne(ctx context.Context, userID string, plan mixer.Planned, description string, public bool) PlaylistResult {
	res := PlaylistResult{
		Name:       plan.Name,
		TrackCount: len(plan.Tracks),
	}

	created, err := e.createPlaylist(ctx, userID, plan.Name, description, public)
	if err != nil {
		e.logger.Error("failed to create playlist", "name", plan.Name, "error", err)
		res.Status = StatusFailed
		res.Error = err.Error()
		return res
	}
	res.PlaylistID = created.ID
	res.URL = created.URL

	uris := make([]string, len(plan.Tracks))
	for i, t := range plan.Tracks {
		uris[i] = t.URI
	}

	committed, err := e.addTracks(ctx, created.ID, uris)
	res.Committed = committed
	if err != nil {
		pubErr := &PartialPublishError{
			PlaylistID:  created.ID,
			Committed:   committed,
			Uncommitted: uris[committed:],
			Err:         err,
		}
		e.logger.Error("partial publish", "name", plan.Name, "committed", committed, "error", err)
		res.Status = StatusPartiallyPublished
		res.Uncommitted = pubErr.Uncommitted
		res.Error = pubErr.Error()
		return res
	}

	res.Status = StatusPublished
	return res
}

// rng builds the shuffle source, seeded deterministically when requested.
func (e *Engine) rng(seed *int64) *rand.Rand {
	if seed != nil {
		return rand.New(rand.NewSource(*seed))
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// Per-call timeout wrappers around the provider interfaces.

func (e *Engine) playlist(ctx context.Context, id string) (*services.PlaylistSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	return e.catalog.Playlist(ctx, id)
}

func (e *Engine) playlistTracks(ctx context.Context, id string) ([]services.Track, error) {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	return e.catalog.PlaylistTracks(ctx, id)
}

func (e *Engine) currentUser(ctx context.Context) (*services.User, error) {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	return e.publisher.CurrentUser(ctx)
}

func (e *Engine) createPlaylist(ctx context.Context, userID, name, description string, public bool) (*services.CreatedPlaylist, error) {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	return e.publisher.CreatePlaylist(ctx, userID, name, description, public)
}

func (e *Engine) addTracks(ctx context.Context, playlistID string, uris []string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	return e.publisher.AddTracks(ctx, playlistID, uris)
}
