package session

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"mixtape/internal/shared"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return NewStore(db)
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("round-trips a token", func(t *testing.T) {
		store := newTestStore(t)

		expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
		tok := &oauth2.Token{
			AccessToken:  "access-1",
			TokenType:    "Bearer",
			RefreshToken: "refresh-1",
			Expiry:       expiry,
		}

		if err := store.Save(ctx, "sess-1", tok); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		got, err := store.Get(ctx, "sess-1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.AccessToken != "access-1" || got.RefreshToken != "refresh-1" {
			t.Errorf("token mismatch: %+v", got)
		}
		if !got.Expiry.Equal(expiry) {
			t.Errorf("expiry mismatch: got %v, want %v", got.Expiry, expiry)
		}
	})

	t.Run("replaces on repeated save", func(t *testing.T) {
		store := newTestStore(t)

		first := &oauth2.Token{AccessToken: "old", TokenType: "Bearer", Expiry: time.Now()}
		second := &oauth2.Token{AccessToken: "new", TokenType: "Bearer", Expiry: time.Now()}

		if err := store.Save(ctx, "sess-1", first); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if err := store.Save(ctx, "sess-1", second); err != nil {
			t.Fatalf("second Save failed: %v", err)
		}

		got, err := store.Get(ctx, "sess-1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.AccessToken != "new" {
			t.Errorf("expected replaced token, got %s", got.AccessToken)
		}
	})

	t.Run("isolates sessions", func(t *testing.T) {
		store := newTestStore(t)

		if err := store.Save(ctx, "sess-a", &oauth2.Token{AccessToken: "a", TokenType: "Bearer", Expiry: time.Now()}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		if _, err := store.Get(ctx, "sess-b"); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated for unknown session, got %v", err)
		}
	})

	t.Run("deletes a session", func(t *testing.T) {
		store := newTestStore(t)

		if err := store.Save(ctx, "sess-1", &oauth2.Token{AccessToken: "x", TokenType: "Bearer", Expiry: time.Now()}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if err := store.Delete(ctx, "sess-1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := store.Get(ctx, "sess-1"); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated after delete, got %v", err)
		}

		// idempotent
		if err := store.Delete(ctx, "sess-1"); err != nil {
			t.Errorf("repeated Delete failed: %v", err)
		}
	})
}
