package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"mixtape/internal/shared"
)

func newTestManager(t *testing.T, handler http.Handler) *Manager {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	m, err := NewManager("client-id", "client-secret", "http://127.0.0.1:3000/callback")
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	m.conf.Endpoint.TokenURL = server.URL
	m.appConf.TokenURL = server.URL

	return m
}

func tokenHandler(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token": "fresh-token", "token_type": "Bearer", "expires_in": 3600}`))
	})
}

func TestNewManager(t *testing.T) {
	t.Run("rejects missing credentials", func(t *testing.T) {
		if _, err := NewManager("", "secret", ""); !errors.Is(err, shared.ErrNotConfigured) {
			t.Errorf("expected ErrNotConfigured, got %v", err)
		}
		if _, err := NewManager("id", "", ""); !errors.Is(err, shared.ErrNotConfigured) {
			t.Errorf("expected ErrNotConfigured, got %v", err)
		}
	})

	t.Run("embeds state in consent URL", func(t *testing.T) {
		m, err := NewManager("id", "secret", "http://127.0.0.1:3000/callback")
		if err != nil {
			t.Fatalf("NewManager failed: %v", err)
		}

		url := m.AuthURL("state-42")
		for _, want := range []string{"state=state-42", "accounts.spotify.com", "playlist-modify-private"} {
			if !strings.Contains(url, want) {
				t.Errorf("consent URL missing %q: %s", want, url)
			}
		}
	})
}

func TestValid(t *testing.T) {
	t.Run("passes through an unexpired token", func(t *testing.T) {
		calls := 0
		m := newTestManager(t, tokenHandler(&calls))

		tok := &oauth2.Token{AccessToken: "live", Expiry: time.Now().Add(time.Hour)}
		got, err := m.Valid(context.Background(), tok)
		if err != nil {
			t.Fatalf("Valid failed: %v", err)
		}
		if got.AccessToken != "live" {
			t.Errorf("expected original token, got %s", got.AccessToken)
		}
		if calls != 0 {
			t.Errorf("expected no refresh calls, got %d", calls)
		}
	})

	t.Run("refreshes an expired token once", func(t *testing.T) {
		calls := 0
		m := newTestManager(t, tokenHandler(&calls))

		tok := &oauth2.Token{
			AccessToken:  "stale",
			RefreshToken: "refresh-1",
			Expiry:       time.Now().Add(-time.Hour),
		}
		got, err := m.Valid(context.Background(), tok)
		if err != nil {
			t.Fatalf("Valid failed: %v", err)
		}
		if got.AccessToken != "fresh-token" {
			t.Errorf("expected refreshed token, got %s", got.AccessToken)
		}
		if got.RefreshToken != "refresh-1" {
			t.Errorf("expected refresh token carried over, got %s", got.RefreshToken)
		}
		if calls != 1 {
			t.Errorf("expected exactly one refresh call, got %d", calls)
		}
	})

	t.Run("rejects expired token without refresh token", func(t *testing.T) {
		calls := 0
		m := newTestManager(t, tokenHandler(&calls))

		tok := &oauth2.Token{AccessToken: "stale", Expiry: time.Now().Add(-time.Hour)}
		if _, err := m.Valid(context.Background(), tok); !errors.Is(err, shared.ErrNoRefreshToken) {
			t.Errorf("expected ErrNoRefreshToken, got %v", err)
		}
		if calls != 0 {
			t.Errorf("expected no refresh calls, got %d", calls)
		}
	})

	t.Run("rejects nil token", func(t *testing.T) {
		m := newTestManager(t, tokenHandler(new(int)))
		if _, err := m.Valid(context.Background(), nil); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})
}

func TestExchange(t *testing.T) {
	t.Run("redeems a code", func(t *testing.T) {
		calls := 0
		m := newTestManager(t, tokenHandler(&calls))

		tok, err := m.Exchange(context.Background(), "auth-code")
		if err != nil {
			t.Fatalf("Exchange failed: %v", err)
		}
		if tok.AccessToken != "fresh-token" {
			t.Errorf("unexpected token %s", tok.AccessToken)
		}
	})

	t.Run("wraps provider rejection", func(t *testing.T) {
		m := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": "invalid_grant"}`))
		}))

		if _, err := m.Exchange(context.Background(), "bad-code"); !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})
}

func TestAppToken(t *testing.T) {
	calls := 0
	m := newTestManager(t, tokenHandler(&calls))

	tok, err := m.AppToken(context.Background())
	if err != nil {
		t.Fatalf("AppToken failed: %v", err)
	}
	if tok.AccessToken != "fresh-token" {
		t.Errorf("unexpected token %s", tok.AccessToken)
	}
	if calls != 1 {
		t.Errorf("expected one token call, got %d", calls)
	}
}
