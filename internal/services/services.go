// package services implements the HTTP client for the Spotify Web API and
// defines the domain types and interfaces consumed by the mixer and the
// generation engine.
package services

import (
	"context"
)

// Track is a single track as returned by the catalog. Immutable once fetched.
type Track struct {
	ID         string   `json:"id"`
	URI        string   `json:"uri"`
	Title      string   `json:"title"`
	Artists    []string `json:"artists"`
	DurationMS int      `json:"duration_ms"`
}

// PlaylistSummary is a playlist as it appears in search results and listings.
type PlaylistSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Owner      string `json:"owner"`
	TrackCount int    `json:"track_count"`
	Public     bool   `json:"public"`
	URL        string `json:"url,omitempty"`
}

// SourcePlaylist is a read-only snapshot of a playlist and its tracks at
// fetch time. It exists only for the duration of one generation request.
type SourcePlaylist struct {
	ID     string
	Name   string
	Tracks []Track
}

// User is the authenticated Spotify user.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// CreatedPlaylist is a playlist created on the remote service.
type CreatedPlaylist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// SearchFilters narrows a playlist search.
type SearchFilters struct {
	Country string // ISO country code, sent as the market parameter
	Genre   string // appended to the query as a genre qualifier
	Limit   int    // cap on total results across pages; 0 uses the default cap
}

// Catalog reads playlists and tracks from the remote service.
type Catalog interface {
	// SearchPlaylists searches for playlists, paginating until the provider
	// reports no further pages or the filter cap is reached.
	SearchPlaylists(ctx context.Context, query string, f SearchFilters) ([]PlaylistSummary, error)

	// Playlist retrieves a single playlist summary by ID.
	Playlist(ctx context.Context, playlistID string) (*PlaylistSummary, error)

	// PlaylistTracks retrieves all tracks of a playlist in server-returned
	// order, paginating transparently.
	PlaylistTracks(ctx context.Context, playlistID string) ([]Track, error)

	// UserPlaylists retrieves the authenticated user's playlists.
	UserPlaylists(ctx context.Context) ([]PlaylistSummary, error)
}

// Publisher creates playlists and adds tracks on the remote service.
type Publisher interface {
	// CurrentUser retrieves the authenticated user's profile.
	CurrentUser(ctx context.Context) (*User, error)

	// CreatePlaylist creates an empty playlist owned by userID.
	CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*CreatedPlaylist, error)

	// AddTracks adds track URIs to a playlist in sequential batches no larger
	// than the provider's per-call cap. Returns the number of tracks already
	// committed when a batch fails; partial success is a valid outcome.
	AddTracks(ctx context.Context, playlistID string, uris []string) (int, error)
}
