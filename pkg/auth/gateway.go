// Package auth gates every protected operation on a valid access token. The
// gateway reads the stored credential for the requesting user, transparently
// refreshes it through the identity provider when expired, and uniformly
// rejects requests that cannot be authenticated.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"AutoDJ-Go/pkg/credentials"
)

// ErrUnauthenticated is returned when no credential exists for the user.
var ErrUnauthenticated = errors.New("not authenticated")

// ErrRefreshFailed is returned when the identity provider rejected the
// refresh, for example because the grant was revoked. The credential and all
// sessions for the user are destroyed before this error is returned.
var ErrRefreshFailed = errors.New("token refresh failed")

// TokenExchanger trades a refresh token for a fresh access token. The
// production implementation talks to the identity provider's token endpoint;
// tests substitute a fake.
type TokenExchanger interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// Gateway checks and refreshes user credentials. Refreshes for the same user
// are serialized through a per-key mutex so that N concurrent requests
// observing an expired token produce exactly one exchange call; the waiters
// reuse its result.
type Gateway struct {
	Store     credentials.Store
	Sessions  *credentials.Sessions
	Exchanger TokenExchanger

	// Now is substitutable in tests; nil means time.Now.
	Now func() time.Time

	// OnRefresh, when set, observes the outcome of each exchange call
	// ("ok" or "failed"). Used to feed metrics.
	OnRefresh func(outcome string)

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewGateway wires a gateway over the given store, session registry and
// exchanger.
func NewGateway(store credentials.Store, sessions *credentials.Sessions, ex TokenExchanger) *Gateway {
	return &Gateway{Store: store, Sessions: sessions, Exchanger: ex, locks: make(map[string]*sync.Mutex)}
}

func (g *Gateway) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

// userLock returns the mutex guarding refreshes for userID, creating it on
// first use. Lock entries are small and never reclaimed; the population is
// bounded by the number of distinct users seen by one process.
func (g *Gateway) userLock(userID string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		g.locks[userID] = l
	}
	return l
}

// Authorize returns a non-expired access token for userID, refreshing the
// stored credential first when needed. Callers must use the returned token
// for downstream calls, never a value read before Authorize; an operation
// straddling the expiry boundary would otherwise send a dead token.
func (g *Gateway) Authorize(ctx context.Context, userID string) (string, error) {
	cred, err := g.Store.Get(userID)
	if err != nil {
		return "", fmt.Errorf("%w: no credential for %q", ErrUnauthenticated, userID)
	}
	if !cred.Expired(g.now()) {
		return cred.AccessToken, nil
	}
	return g.refresh(ctx, userID, false)
}

// ForceRefresh exchanges the stored refresh token regardless of the current
// expiry. It shares the per-user lock with Authorize so a forced refresh
// never races an implicit one.
func (g *Gateway) ForceRefresh(ctx context.Context, userID string) (string, error) {
	return g.refresh(ctx, userID, true)
}

// refresh serializes the exchange per user. Unless forced, the credential is
// re-read under the lock: a concurrent request may already have completed
// the refresh, in which case its result is reused without a second exchange
// call.
func (g *Gateway) refresh(ctx context.Context, userID string, force bool) (string, error) {
	l := g.userLock(userID)
	l.Lock()
	defer l.Unlock()

	cred, err := g.Store.Get(userID)
	if err != nil {
		// Another request invalidated the credential while we waited.
		return "", fmt.Errorf("%w: no credential for %q", ErrUnauthenticated, userID)
	}
	if !force && !cred.Expired(g.now()) {
		return cred.AccessToken, nil
	}

	tok, err := g.Exchanger.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		g.observe("failed")
		// A rejected refresh means the grant is gone. Drop the
		// credential and every session referencing it so the user is
		// forced back through the login flow.
		g.Store.Remove(userID)
		if g.Sessions != nil {
			g.Sessions.DestroyUser(userID)
		}
		return "", fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	g.observe("ok")

	cred.AccessToken = tok.AccessToken
	cred.ExpiresAt = tok.Expiry
	// Providers may omit the refresh token from the exchange response;
	// the stored one stays valid in that case.
	if tok.RefreshToken != "" {
		cred.RefreshToken = tok.RefreshToken
	}
	g.Store.Put(userID, cred)
	return cred.AccessToken, nil
}

func (g *Gateway) observe(outcome string) {
	if g.OnRefresh != nil {
		g.OnRefresh(outcome)
	}
}

// Invalidate destroys the credential and sessions for userID. Used by the
// logout handler.
func (g *Gateway) Invalidate(userID string) {
	g.Store.Remove(userID)
	if g.Sessions != nil {
		g.Sessions.DestroyUser(userID)
	}
}
