package auth_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"AutoDJ-Go/pkg/auth"
	"AutoDJ-Go/pkg/credentials"
)

// fakeExchanger counts exchange calls and returns a canned token or error.
type fakeExchanger struct {
	calls int32
	tok   *oauth2.Token
	err   error
	delay time.Duration
}

func (f *fakeExchanger) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.tok, nil
}

func newGateway(ex auth.TokenExchanger) (*auth.Gateway, *credentials.MemoryStore, *credentials.Sessions) {
	store := credentials.NewMemoryStore()
	sessions := credentials.NewSessions()
	return auth.NewGateway(store, sessions, ex), store, sessions
}

func TestAuthorizeUnknownUser(t *testing.T) {
	g, _, _ := newGateway(&fakeExchanger{})
	_, err := g.Authorize(context.Background(), "nobody")
	if !errors.Is(err, auth.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated got %v", err)
	}
}

func TestAuthorizeFreshTokenPassesThrough(t *testing.T) {
	ex := &fakeExchanger{}
	g, store, _ := newGateway(ex)
	store.Put("u", credentials.Credential{
		UserID:      "u",
		AccessToken: "fresh",
		ExpiresAt:   time.Now().Add(time.Hour),
	})
	tok, err := g.Authorize(context.Background(), "u")
	if err != nil {
		t.Fatal(err)
	}
	if tok != "fresh" {
		t.Errorf("expected stored token, got %q", tok)
	}
	if n := atomic.LoadInt32(&ex.calls); n != 0 {
		t.Errorf("no exchange expected, got %d", n)
	}
}

func TestAuthorizeRefreshesExpiredToken(t *testing.T) {
	ex := &fakeExchanger{tok: &oauth2.Token{AccessToken: "renewed", Expiry: time.Now().Add(time.Hour)}}
	g, store, _ := newGateway(ex)
	store.Put("u", credentials.Credential{
		UserID:       "u",
		AccessToken:  "stale",
		RefreshToken: "keepme",
		ExpiresAt:    time.Now().Add(-time.Minute),
	})

	tok, err := g.Authorize(context.Background(), "u")
	if err != nil {
		t.Fatal(err)
	}
	if tok != "renewed" {
		t.Errorf("expected refreshed token, got %q", tok)
	}
	cred, err := store.Get("u")
	if err != nil {
		t.Fatal(err)
	}
	if cred.AccessToken != "renewed" {
		t.Errorf("store not updated: %q", cred.AccessToken)
	}
	// The provider omitted a new refresh token, so the old one survives.
	if cred.RefreshToken != "keepme" {
		t.Errorf("refresh token must be preserved, got %q", cred.RefreshToken)
	}
}

func TestConcurrentRequestsRefreshOnce(t *testing.T) {
	ex := &fakeExchanger{
		tok:   &oauth2.Token{AccessToken: "renewed", Expiry: time.Now().Add(time.Hour)},
		delay: 20 * time.Millisecond,
	}
	g, store, _ := newGateway(ex)
	store.Put("u", credentials.Credential{
		UserID:       "u",
		AccessToken:  "stale",
		RefreshToken: "r",
		ExpiresAt:    time.Now().Add(-time.Minute),
	})

	const n = 16
	var wg sync.WaitGroup
	results := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = g.Authorize(context.Background(), "u")
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("request %d failed: %v", i, errs[i])
		}
		if results[i] != "renewed" {
			t.Errorf("request %d got stale token %q", i, results[i])
		}
	}
	if calls := atomic.LoadInt32(&ex.calls); calls != 1 {
		t.Errorf("expected exactly one exchange call, got %d", calls)
	}
}

func TestRefreshFailureInvalidatesEverything(t *testing.T) {
	ex := &fakeExchanger{err: errors.New("invalid_grant")}
	g, store, sessions := newGateway(ex)
	store.Put("u", credentials.Credential{
		UserID:       "u",
		AccessToken:  "stale",
		RefreshToken: "revoked",
		ExpiresAt:    time.Now().Add(-time.Minute),
	})
	sid, _ := sessions.Create("u")

	_, err := g.Authorize(context.Background(), "u")
	if !errors.Is(err, auth.ErrRefreshFailed) {
		t.Fatalf("expected ErrRefreshFailed got %v", err)
	}
	if _, err := store.Get("u"); !errors.Is(err, credentials.ErrNotFound) {
		t.Error("credential must be removed after failed refresh")
	}
	if _, ok := sessions.Lookup(sid); ok {
		t.Error("session must be destroyed after failed refresh")
	}
}

func TestForceRefreshIgnoresExpiry(t *testing.T) {
	ex := &fakeExchanger{tok: &oauth2.Token{AccessToken: "renewed", Expiry: time.Now().Add(time.Hour)}}
	g, store, _ := newGateway(ex)
	store.Put("u", credentials.Credential{
		UserID:       "u",
		AccessToken:  "still-valid",
		RefreshToken: "r",
		ExpiresAt:    time.Now().Add(time.Hour),
	})

	tok, err := g.ForceRefresh(context.Background(), "u")
	if err != nil {
		t.Fatal(err)
	}
	if tok != "renewed" {
		t.Errorf("expected exchange despite valid token, got %q", tok)
	}
	if calls := atomic.LoadInt32(&ex.calls); calls != 1 {
		t.Errorf("expected one exchange call, got %d", calls)
	}
}

func TestRefreshObserver(t *testing.T) {
	ex := &fakeExchanger{err: errors.New("boom")}
	g, store, _ := newGateway(ex)
	var outcomes []string
	g.OnRefresh = func(o string) { outcomes = append(outcomes, o) }
	store.Put("u", credentials.Credential{UserID: "u", RefreshToken: "r", ExpiresAt: time.Now().Add(-time.Second)})

	g.Authorize(context.Background(), "u")
	if len(outcomes) != 1 || outcomes[0] != "failed" {
		t.Errorf("unexpected outcomes %v", outcomes)
	}
}
