package server

import (
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"mixtape/internal/services"
	"mixtape/internal/session"
	"mixtape/internal/shared"
	"mixtape/internal/tasks"
)

const (
	sessionCookie = "mixtape_session"
	stateCookie   = "mixtape_oauth_state"

	stateTTL = 10 * time.Minute
)

// Default generation parameters when the request omits them.
const (
	defaultPlaylistCount = 1
	defaultTracksPer     = 20
)

// Browse endpoints mirror the provider's page sizes for curated listings.
const (
	featuredQuery = "popular"
	featuredLimit = 12
	popularLimit  = 20
)

// App is the playlist mixer web application. It holds the OAuth manager
// (nil when credentials are missing), the session store, and factories for
// provider clients so tests can substitute fakes.
type App struct {
	cfg      *shared.Config
	logger   *log.Logger
	manager  *session.Manager
	sessions *session.Store

	// secureCookies marks cookies Secure when the app is served over TLS,
	// derived from the redirect URI scheme.
	secureCookies bool

	newCatalog   func(client *http.Client) services.Catalog
	newPublisher func(client *http.Client) services.Publisher
}

// NewApp wires the application. Missing credentials are not fatal: the app
// starts and every provider-backed endpoint answers with the configuration
// error instead.
func NewApp(cfg *shared.Config, db *sql.DB, logger *log.Logger) *App {
	if logger == nil {
		logger = log.Default()
	}

	manager, err := session.NewManager(
		cfg.Credentials.Spotify.ClientID,
		cfg.Credentials.Spotify.ClientSecret,
		cfg.Credentials.Spotify.RedirectURI,
	)
	if err != nil {
		logger.Warn("spotify credentials missing, provider endpoints disabled")
		manager = nil
	}

	app := &App{
		cfg:           cfg,
		logger:        logger,
		manager:       manager,
		sessions:      session.NewStore(db),
		secureCookies: strings.HasPrefix(cfg.Credentials.Spotify.RedirectURI, "https://"),
	}
	app.newCatalog = func(client *http.Client) services.Catalog {
		return services.NewSpotifyClient(client, logger)
	}
	app.newPublisher = func(client *http.Client) services.Publisher {
		return services.NewSpotifyClient(client, logger)
	}

	return app
}

// Router builds the HTTP routing table.
func (a *App) Router() *Mux {
	router := NewMux()
	router.Use(RequestLogger(a.logger))

	router.Handle(http.MethodGet, "/login", http.HandlerFunc(a.handleLogin))
	router.Handle(http.MethodGet, "/callback", http.HandlerFunc(a.handleCallback))
	router.Handle(http.MethodGet, "/logout", http.HandlerFunc(a.handleLogout))
	router.Handle(http.MethodGet, "/auth/status", http.HandlerFunc(a.handleAuthStatus))
	router.Handle(http.MethodPost, "/search", http.HandlerFunc(a.handleSearch))
	router.Handle(http.MethodGet, "/featured", http.HandlerFunc(a.handleFeatured))
	router.Handle(http.MethodPost, "/popular", http.HandlerFunc(a.handlePopular))
	router.Handle(http.MethodPost, "/generate", http.HandlerFunc(a.handleGenerate))
	router.Handle(http.MethodGet, "/playlists", http.HandlerFunc(a.handlePlaylists))

	return router
}

// configured rejects the request with the configuration error when no OAuth
// manager exists. No remote call is ever attempted in that state.
func (a *App) configured(w http.ResponseWriter) bool {
	if a.manager == nil {
		writeError(w, shared.ErrNotConfigured)
		return false
	}
	return true
}

// handleLogin starts the authorization-code flow: it plants the anti-forgery
// state in a cookie and redirects to the provider's consent page.
func (a *App) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.configured(w) {
		return
	}

	state := shared.GenerateState()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, a.manager.AuthURL(state), http.StatusFound)
}

// handleCallback finishes the flow: verifies state, exchanges the code, and
// binds the token to a fresh session cookie.
func (a *App) handleCallback(w http.ResponseWriter, r *http.Request) {
	if !a.configured(w) {
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		writeError(w, fmt.Errorf("%w: state mismatch", shared.ErrInvalidInput))
		return
	}

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		a.logger.Warn("authorization denied", "error", errParam)
		writeError(w, shared.ErrAuthFailed)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, fmt.Errorf("%w: missing code parameter", shared.ErrInvalidInput))
		return
	}

	token, err := a.manager.Exchange(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}

	sessionID := shared.GenerateID()
	if err := a.sessions.Save(r.Context(), sessionID, token); err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1, Secure: a.secureCookies})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(successPage))
}

// handleLogout deletes the caller's stored token and expires the session
// cookie. Logging out without a session is not an error.
func (a *App) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		if err := a.sessions.Delete(r.Context(), cookie.Value); err != nil {
			writeError(w, err)
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, struct {
		Authenticated bool `json:"authenticated"`
	}{})
}

// handleAuthStatus reports whether the caller holds a live session, and for
// whom.
func (a *App) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	status := struct {
		Configured    bool   `json:"configured"`
		Authenticated bool   `json:"authenticated"`
		UserID        string `json:"user_id,omitempty"`
	}{Configured: a.manager != nil}

	if a.manager != nil {
		if client, err := a.sessionClient(w, r, false); err == nil {
			status.Authenticated = true
			if user, err := a.newPublisher(client).CurrentUser(r.Context()); err == nil {
				status.UserID = user.ID
			}
		}
	}

	writeJSON(w, http.StatusOK, status)
}

// sessionClient resolves the caller's session cookie into an authenticated
// HTTP client, refreshing the stored token when needed. With report set it
// writes the error response itself.
func (a *App) sessionClient(w http.ResponseWriter, r *http.Request, report bool) (*http.Client, error) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil || cookie.Value == "" {
		if report {
			writeError(w, shared.ErrNotAuthenticated)
		}
		return nil, shared.ErrNotAuthenticated
	}

	token, err := a.sessions.Get(r.Context(), cookie.Value)
	if err != nil {
		if report {
			writeError(w, err)
		}
		return nil, err
	}

	fresh, err := a.manager.Valid(r.Context(), token)
	if err != nil {
		if report {
			writeError(w, err)
		}
		return nil, err
	}
	if fresh.AccessToken != token.AccessToken {
		if err := a.sessions.Save(r.Context(), cookie.Value, fresh); err != nil {
			a.logger.Error("failed to persist refreshed token", "error", err)
		}
	}

	return a.manager.Client(r.Context(), fresh), nil
}

type searchRequest struct {
	Query   string `json:"query"`
	Country string `json:"country,omitempty"`
	Genre   string `json:"genre,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// handleSearch searches the provider catalog for playlists. An authenticated
// session is used when present; otherwise the app falls back to the
// client-credentials grant, so search works before login.
func (a *App) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !a.configured(w) {
		return
	}

	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Query == "" {
		writeError(w, fmt.Errorf("%w: query is required", shared.ErrMissingArgument))
		return
	}

	client, err := a.sessionClient(w, r, false)
	if err != nil {
		client = a.manager.AppClient(r.Context())
	}

	catalog := a.newCatalog(client)
	results, err := catalog.SearchPlaylists(r.Context(), req.Query, services.SearchFilters{
		Country: req.Country,
		Genre:   req.Genre,
		Limit:   req.Limit,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Playlists []services.PlaylistSummary `json:"playlists"`
		Count     int                        `json:"count"`
	}{Playlists: results, Count: len(results)})
}

// handleFeatured serves a curated listing without requiring a login: a
// fixed catalog search on the client-credentials grant.
func (a *App) handleFeatured(w http.ResponseWriter, r *http.Request) {
	if !a.configured(w) {
		return
	}

	catalog := a.newCatalog(a.manager.AppClient(r.Context()))
	results, err := catalog.SearchPlaylists(r.Context(), featuredQuery, services.SearchFilters{Limit: featuredLimit})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Playlists []services.PlaylistSummary `json:"playlists"`
		Count     int                        `json:"count"`
	}{Playlists: results, Count: len(results)})
}

type popularRequest struct {
	Genre string `json:"genre"`
}

// handlePopular lists playlists for a genre, again on the
// client-credentials grant so it works before login.
func (a *App) handlePopular(w http.ResponseWriter, r *http.Request) {
	if !a.configured(w) {
		return
	}

	var req popularRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Genre == "" {
		writeError(w, fmt.Errorf("%w: genre is required", shared.ErrMissingArgument))
		return
	}

	catalog := a.newCatalog(a.manager.AppClient(r.Context()))
	results, err := catalog.SearchPlaylists(r.Context(), "", services.SearchFilters{Genre: req.Genre, Limit: popularLimit})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Playlists []services.PlaylistSummary `json:"playlists"`
		Count     int                        `json:"count"`
	}{Playlists: results, Count: len(results)})
}

type generateRequest struct {
	SourceIDs       []string `json:"source_ids"`
	Count           int      `json:"count"`
	TracksPer       int      `json:"tracks_per_playlist"`
	AvoidDuplicates *bool    `json:"avoid_duplicates,omitempty"`
	Public          *bool    `json:"public,omitempty"`
	Names           []string `json:"names,omitempty"`
	Description     string   `json:"description,omitempty"`
	Seed            *int64   `json:"seed,omitempty"`
}

// params fills request gaps with the documented defaults; visibility falls
// back to the configured default.
func (req *generateRequest) params(defaultPublic bool) tasks.Params {
	p := tasks.Params{
		SourceIDs:       req.SourceIDs,
		Count:           req.Count,
		TracksPer:       req.TracksPer,
		AvoidDuplicates: true,
		Public:          defaultPublic,
		Names:           req.Names,
		Description:     req.Description,
		Seed:            req.Seed,
	}
	if p.Count == 0 {
		p.Count = defaultPlaylistCount
	}
	if p.TracksPer == 0 {
		p.TracksPer = defaultTracksPer
	}
	if req.AvoidDuplicates != nil {
		p.AvoidDuplicates = *req.AvoidDuplicates
	}
	if req.Public != nil {
		p.Public = *req.Public
	}
	return p
}

// handleGenerate runs a full generation task for the caller's session.
func (a *App) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if !a.configured(w) {
		return
	}

	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	client, err := a.sessionClient(w, r, true)
	if err != nil {
		return
	}

	engine := tasks.NewEngine(a.newCatalog(client), a.newPublisher(client), a.logger)
	result, err := engine.Generate(r.Context(), req.params(a.cfg.Generator.Public), nil)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handlePlaylists lists the authenticated user's own playlists.
func (a *App) handlePlaylists(w http.ResponseWriter, r *http.Request) {
	if !a.configured(w) {
		return
	}

	client, err := a.sessionClient(w, r, true)
	if err != nil {
		return
	}

	playlists, err := a.newCatalog(client).UserPlaylists(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Playlists []services.PlaylistSummary `json:"playlists"`
		Count     int                        `json:"count"`
	}{Playlists: playlists, Count: len(playlists)})
}
