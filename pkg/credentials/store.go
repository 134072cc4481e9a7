// Package credentials holds the per-user token state for the lifetime of one
// running instance. The store is deliberately memory-only: correctness across
// process restarts is out of scope, so users simply re-authenticate after a
// redeploy. Mutation goes through the auth gateway's refresh path; everything
// else only reads.
package credentials

import (
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned by Get when no credential exists for the user.
// Callers must treat it as "not authenticated", not as a retryable failure.
var ErrNotFound = errors.New("credential not found")

// Credential is the access/refresh token pair and expiry for one
// authenticated user.
type Credential struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Expired reports whether the access token must be refreshed before use.
func (c Credential) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Store is keyed storage of user credentials. Implementations must make a
// Put visible to all subsequent Gets for the same user immediately.
type Store interface {
	Put(userID string, c Credential)
	Get(userID string) (Credential, error)
	Remove(userID string)
}

// MemoryStore is the in-process Store implementation used by the service.
type MemoryStore struct {
	mu    sync.RWMutex
	creds map[string]Credential
}

// NewMemoryStore returns an empty credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{creds: make(map[string]Credential)}
}

// Put stores or replaces the credential for c's user.
func (s *MemoryStore) Put(userID string, c Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[userID] = c
}

// Get returns the credential for userID or ErrNotFound.
func (s *MemoryStore) Get(userID string) (Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.creds[userID]
	if !ok {
		return Credential{}, ErrNotFound
	}
	return c, nil
}

// Remove deletes the credential for userID. Removing an absent entry is a
// no-op.
func (s *MemoryStore) Remove(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, userID)
}
