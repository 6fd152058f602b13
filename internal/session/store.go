package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"mixtape/internal/shared"
)

// Store persists per-session tokens in sqlite. Sessions are isolated: each
// row maps one session ID to one token.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Save inserts or replaces the token for a session.
func (s *Store) Save(ctx context.Context, sessionID string, tok *oauth2.Token) error {
	query := `
		INSERT INTO sessions (id, access_token, token_type, refresh_token, expiry, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			token_type = excluded.token_type,
			refresh_token = excluded.refresh_token,
			expiry = excluded.expiry,
			updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		sessionID, tok.AccessToken, tok.TokenType, tok.RefreshToken, tok.Expiry, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", sessionID, err)
	}
	return nil
}

// Get retrieves the token for a session. Returns
// [shared.ErrNotAuthenticated] when no such session exists.
func (s *Store) Get(ctx context.Context, sessionID string) (*oauth2.Token, error) {
	query := `SELECT access_token, token_type, refresh_token, expiry FROM sessions WHERE id = ?`

	tok := &oauth2.Token{}
	err := s.db.QueryRowContext(ctx, query, sessionID).
		Scan(&tok.AccessToken, &tok.TokenType, &tok.RefreshToken, &tok.Expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	return tok, nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}
