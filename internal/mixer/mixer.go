// Package mixer builds mixed playlists from a pool of source tracks.
// It is pure computation: no provider calls, no I/O.
package mixer

import (
	"fmt"
	"math/rand"

	"mixtape/internal/services"
	"mixtape/internal/shared"
)

// TrackPool accumulates tracks from source playlists, deduplicating by track
// ID. The first occurrence of an ID wins and insertion order is preserved.
type TrackPool struct {
	tracks []services.Track
	seen   map[string]bool
}

// NewTrackPool returns an empty pool.
func NewTrackPool() *TrackPool {
	return &TrackPool{seen: make(map[string]bool)}
}

// Pool unions the tracks of the given source playlists, in order.
func Pool(sources []services.SourcePlaylist) *TrackPool {
	pool := NewTrackPool()
	for _, src := range sources {
		pool.Add(src.Tracks)
	}
	return pool
}

// Add merges tracks into the pool, skipping IDs already present.
func (p *TrackPool) Add(tracks []services.Track) {
	for _, t := range tracks {
		if t.ID == "" || p.seen[t.ID] {
			continue
		}
		p.seen[t.ID] = true
		p.tracks = append(p.tracks, t)
	}
}

// Size reports the number of unique tracks pooled so far.
func (p *TrackPool) Size() int {
	return len(p.tracks)
}

// Tracks returns a copy of the pooled tracks in insertion order.
func (p *TrackPool) Tracks() []services.Track {
	out := make([]services.Track, len(p.tracks))
	copy(out, p.tracks)
	return out
}

// Request describes one generation run.
type Request struct {
	// Count is the number of playlists to produce.
	Count int
	// TracksPer is the target track count per playlist.
	TracksPer int
	// AvoidDuplicates makes the produced playlists pairwise disjoint.
	AvoidDuplicates bool
	// Names optionally overrides derived playlist names, by index.
	Names []string
}

// Planned is one generated playlist before publishing.
type Planned struct {
	Name   string
	Tracks []services.Track
}

// BaseName derives a display name from the source playlist names.
func BaseName(sourceNames []string) string {
	switch len(sourceNames) {
	case 0:
		return "Mixed Playlist"
	case 1:
		return fmt.Sprintf("Mixed from %s", sourceNames[0])
	case 2:
		return fmt.Sprintf("%s + %s Mix", sourceNames[0], sourceNames[1])
	default:
		return fmt.Sprintf("Mixed from %d Playlists", len(sourceNames))
	}
}

// Generate plans req.Count playlists from the pool.
//
// With AvoidDuplicates the pool is shuffled once and cut into disjoint
// chunks; the pool must hold at least Count*TracksPer unique tracks or
// [shared.ErrInsufficientTracks] is returned. Without it each playlist is an
// independent sample, and TracksPer is clamped to the pool size.
//
// The same rng seed over the same pool yields the same plan.
func Generate(pool *TrackPool, sourceNames []string, req Request, rng *rand.Rand) ([]Planned, error) {
	if req.Count < 1 || req.TracksPer < 1 {
		return nil, fmt.Errorf("%w: playlist count and size must be positive", shared.ErrInvalidInput)
	}

	tracks := pool.Tracks()

	per := req.TracksPer
	if req.AvoidDuplicates {
		if len(tracks) < req.Count*per {
			return nil, fmt.Errorf("%w: need %d, have %d",
				shared.ErrInsufficientTracks, req.Count*per, len(tracks))
		}
		rng.Shuffle(len(tracks), func(i, j int) {
			tracks[i], tracks[j] = tracks[j], tracks[i]
		})
	} else if per > len(tracks) {
		per = len(tracks)
	}
	if per == 0 {
		return nil, fmt.Errorf("%w: need %d, have 0", shared.ErrInsufficientTracks, req.TracksPer)
	}

	planned := make([]Planned, 0, req.Count)
	for i := range req.Count {
		var selection []services.Track
		if req.AvoidDuplicates {
			selection = append(selection, tracks[i*per:(i+1)*per]...)
		} else {
			sample := pool.Tracks()
			rng.Shuffle(len(sample), func(a, b int) {
				sample[a], sample[b] = sample[b], sample[a]
			})
			selection = sample[:per]
		}

		planned = append(planned, Planned{
			Name:   playlistName(sourceNames, req, i),
			Tracks: selection,
		})
	}

	return planned, nil
}

// playlistName picks the custom name for index i when given, otherwise the
// derived base name, numbered when the run produces more than one playlist.
func playlistName(sourceNames []string, req Request, i int) string {
	if i < len(req.Names) && req.Names[i] != "" {
		return req.Names[i]
	}

	name := BaseName(sourceNames)
	if req.Count > 1 {
		name = fmt.Sprintf("%s #%d", name, i+1)
	}
	return name
}
