// Spotify Web API client.
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"mixtape/internal/shared"
)

const (
	spotifyBaseURL = "https://api.spotify.com/v1"

	searchPageSize = 50  // max page size for /search
	trackPageSize  = 100 // max page size for /playlists/{id}/tracks

	// AddTracksBatchSize is the provider's maximum items per add-tracks call.
	AddTracksBatchSize = 100

	defaultSearchCap = 100 // total search results when the caller sets no cap

	defaultTimeout     = 15 * time.Second
	defaultRequestRate = 10 // requests per second
)

type spotifyImage struct {
	URL string `json:"url"`
}

type spotifyOwner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type spotifyTrack struct {
	ID         string `json:"id"`
	URI        string `json:"uri"`
	Name       string `json:"name"`
	DurationMS int    `json:"duration_ms"`
	Artists    []struct {
		Name string `json:"name"`
	} `json:"artists"`
}

// playlistItem wraps a track within a playlist; Track is null for tracks the
// provider can no longer resolve and such entries are skipped.
type playlistItem struct {
	AddedAt string        `json:"added_at"`
	Track   *spotifyTrack `json:"track"`
}

type trackPage struct {
	Items  []playlistItem `json:"items"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
	Next   *string        `json:"next"`
}

type spotifyPlaylist struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Owner       spotifyOwner      `json:"owner"`
	Public      bool              `json:"public"`
	Images      []spotifyImage    `json:"images"`
	ExternalURL map[string]string `json:"external_urls"`
	Tracks      struct {
		Total int `json:"total"`
	} `json:"tracks"`
}

type playlistPage struct {
	Items  []*spotifyPlaylist `json:"items"`
	Total  int                `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
	Next   *string            `json:"next"`
}

type searchResponse struct {
	Playlists playlistPage `json:"playlists"`
}

type spotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type spotifyError struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// SpotifyClient is a REST client for the Spotify Web API. The http.Client is
// expected to carry authentication (an [oauth2] transport). Every call is
// bounded by a timeout and gated by a client-side rate limiter.
//
// Implements [Catalog] and [Publisher].
type SpotifyClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
	logger     *log.Logger
}

// NewSpotifyClient creates a Spotify client on top of an authenticated HTTP client.
func NewSpotifyClient(httpClient *http.Client, logger *log.Logger) *SpotifyClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = log.Default()
	}

	return &SpotifyClient{
		baseURL:    spotifyBaseURL,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(defaultRequestRate), 1),
		timeout:    defaultTimeout,
		logger:     logger,
	}
}

// doRequest performs one rate-limited, timeout-bounded HTTP request against
// the API and decodes the JSON response into result when non-nil.
func (c *SpotifyClient) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s %s", shared.ErrTimeout, method, endpoint)
		}
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.apiError(resp, endpoint)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// apiError maps a non-2xx response onto the error taxonomy.
func (c *SpotifyClient) apiError(resp *http.Response, endpoint string) error {
	var apiErr spotifyError
	message := ""
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil {
		message = apiErr.Error.Message
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: status %d: %s", shared.ErrNotAuthenticated, resp.StatusCode, message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s: %s", shared.ErrPlaylistNotFound, endpoint, message)
	case http.StatusTooManyRequests:
		var retryAfter time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return &RateLimitError{RetryAfter: retryAfter}
	default:
		return fmt.Errorf("%w: status %d on %s: %s", shared.ErrAPIRequest, resp.StatusCode, endpoint, message)
	}
}

// SearchPages is a lazy, finite, restartable sequence of search result pages.
// Each call to Next issues one remote call.
type SearchPages struct {
	client  *SpotifyClient
	query   string
	filters SearchFilters

	offset  int
	fetched int
	done    bool
}

// Search prepares a lazy playlist search. No remote call happens until
// [SearchPages.Next] is invoked.
func (c *SpotifyClient) Search(query string, f SearchFilters) *SearchPages {
	if f.Limit <= 0 {
		f.Limit = defaultSearchCap
	}
	return &SearchPages{client: c, query: query, filters: f}
}

// Next fetches the next page of results. Returns (nil, nil) once the provider
// reports no further pages or the result cap is reached.
func (p *SearchPages) Next(ctx context.Context) ([]PlaylistSummary, error) {
	if p.done {
		return nil, nil
	}

	pageSize := searchPageSize
	if remaining := p.filters.Limit - p.fetched; remaining < pageSize {
		pageSize = remaining
	}
	if pageSize <= 0 {
		p.done = true
		return nil, nil
	}

	q := p.query
	if p.filters.Genre != "" {
		q = strings.TrimSpace(fmt.Sprintf("%s genre:%q", q, p.filters.Genre))
	}

	params := url.Values{}
	params.Set("q", q)
	params.Set("type", "playlist")
	params.Set("limit", strconv.Itoa(pageSize))
	params.Set("offset", strconv.Itoa(p.offset))
	if p.filters.Country != "" {
		params.Set("market", p.filters.Country)
	}

	var response searchResponse
	if err := p.client.doRequest(ctx, http.MethodGet, "/search?"+params.Encode(), nil, &response); err != nil {
		return nil, err
	}

	// An empty page is exhaustion regardless of the next link; without this
	// the offset never advances.
	if len(response.Playlists.Items) == 0 {
		p.done = true
		return nil, nil
	}

	page := make([]PlaylistSummary, 0, len(response.Playlists.Items))
	for _, item := range response.Playlists.Items {
		if item == nil {
			continue
		}
		page = append(page, toSummary(item))
	}

	p.offset += len(response.Playlists.Items)
	p.fetched += len(page)
	if response.Playlists.Next == nil || p.fetched >= p.filters.Limit {
		p.done = true
	}

	return page, nil
}

// Restart rewinds the sequence so it can be iterated again from the first page.
func (p *SearchPages) Restart() {
	p.offset = 0
	p.fetched = 0
	p.done = false
}

// SearchPlaylists drains a lazy search into a single slice.
func (c *SpotifyClient) SearchPlaylists(ctx context.Context, query string, f SearchFilters) ([]PlaylistSummary, error) {
	pages := c.Search(query, f)

	var all []PlaylistSummary
	for {
		page, err := pages.Next(ctx)
		if err != nil {
			return nil, err
		}
		if page == nil {
			return all, nil
		}
		all = append(all, page...)
	}
}

// Playlist retrieves a playlist summary by ID.
func (c *SpotifyClient) Playlist(ctx context.Context, playlistID string) (*PlaylistSummary, error) {
	var pl spotifyPlaylist
	endpoint := fmt.Sprintf("/playlists/%s", url.PathEscape(playlistID))
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &pl); err != nil {
		return nil, err
	}

	summary := toSummary(&pl)
	return &summary, nil
}

// PlaylistTracks retrieves all tracks of a playlist, paginating transparently
// and concatenating pages in server-returned order. Unresolvable (null)
// entries are skipped.
func (c *SpotifyClient) PlaylistTracks(ctx context.Context, playlistID string) ([]Track, error) {
	var tracks []Track
	offset := 0

	for {
		endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d",
			url.PathEscape(playlistID), trackPageSize, offset)

		var page trackPage
		if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			if item.Track == nil || item.Track.ID == "" {
				continue
			}
			tracks = append(tracks, toTrack(item.Track))
		}

		if page.Next == nil || len(page.Items) == 0 {
			return tracks, nil
		}
		offset += len(page.Items)
	}
}

// UserPlaylists retrieves all playlists of the authenticated user.
func (c *SpotifyClient) UserPlaylists(ctx context.Context) ([]PlaylistSummary, error) {
	var all []PlaylistSummary
	offset := 0

	for {
		endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", searchPageSize, offset)

		var page playlistPage
		if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			if item == nil {
				continue
			}
			all = append(all, toSummary(item))
		}

		if page.Next == nil || len(page.Items) == 0 {
			return all, nil
		}
		offset += len(page.Items)
	}
}

// CurrentUser retrieves the authenticated user's profile.
func (c *SpotifyClient) CurrentUser(ctx context.Context) (*User, error) {
	var user spotifyUser
	if err := c.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &User{ID: user.ID, DisplayName: user.DisplayName}, nil
}

// CreatePlaylist creates an empty playlist owned by userID.
func (c *SpotifyClient) CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*CreatedPlaylist, error) {
	body := map[string]any{
		"name":        name,
		"description": description,
		"public":      public,
	}

	var created spotifyPlaylist
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(userID))
	if err := c.doRequest(ctx, http.MethodPost, endpoint, body, &created); err != nil {
		return nil, err
	}

	return &CreatedPlaylist{
		ID:   created.ID,
		Name: created.Name,
		URL:  created.ExternalURL["spotify"],
	}, nil
}

// AddTracks adds track URIs to a playlist in sequential batches of at most
// [AddTracksBatchSize], preserving order. On a batch failure it returns the
// number of tracks already committed alongside the error.
func (c *SpotifyClient) AddTracks(ctx context.Context, playlistID string, uris []string) (int, error) {
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))

	committed := 0
	for start := 0; start < len(uris); start += AddTracksBatchSize {
		end := min(start+AddTracksBatchSize, len(uris))
		batch := uris[start:end]

		body := map[string]any{"uris": batch}
		if err := c.doRequest(ctx, http.MethodPost, endpoint, body, nil); err != nil {
			return committed, fmt.Errorf("adding tracks %d-%d: %w", start+1, end, err)
		}
		committed = end
	}

	return committed, nil
}

func toTrack(t *spotifyTrack) Track {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}
	return Track{
		ID:         t.ID,
		URI:        t.URI,
		Title:      t.Name,
		Artists:    artists,
		DurationMS: t.DurationMS,
	}
}

func toSummary(pl *spotifyPlaylist) PlaylistSummary {
	return PlaylistSummary{
		ID:         pl.ID,
		Name:       pl.Name,
		Owner:      pl.Owner.DisplayName,
		TrackCount: pl.Tracks.Total,
		Public:     pl.Public,
		URL:        pl.ExternalURL["spotify"],
	}
}
