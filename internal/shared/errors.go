package shared

import "fmt"

var (
	// Configuration errors
	ErrNotConfigured = fmt.Errorf("credentials not configured")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and catalog errors
	ErrAPIRequest       = fmt.Errorf("API request failed")
	ErrPlaylistNotFound = fmt.Errorf("playlist not found")
	ErrRateLimited      = fmt.Errorf("rate limited")

	// Mixing and publishing errors
	ErrInsufficientTracks = fmt.Errorf("not enough tracks in pool")
	ErrPartialPublish     = fmt.Errorf("some tracks were not added")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)
