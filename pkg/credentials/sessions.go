// This file implements the server-side session registry. A session is a weak
// reference from a browser cookie to one user's credential; it carries no
// secrets of its own and can be invalidated independently of the cookie.
package credentials

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
)

// Sessions maps opaque session identifiers to user IDs. Destroying a session
// makes the cookie that references it useless even before it expires.
type Sessions struct {
	mu     sync.RWMutex
	active map[string]string
}

// NewSessions returns an empty session registry.
func NewSessions() *Sessions {
	return &Sessions{active: make(map[string]string)}
}

// Create registers a new session for userID and returns its identifier. The
// identifier carries 128 bits of entropy and is safe to place in a cookie.
func (s *Sessions) Create(userID string) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	id := base64.RawURLEncoding.EncodeToString(b)
	s.mu.Lock()
	s.active[id] = userID
	s.mu.Unlock()
	return id, nil
}

// Lookup resolves a session identifier to its user ID. The second return
// value is false when the session does not exist or has been destroyed.
func (s *Sessions) Lookup(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.active[id]
	return userID, ok
}

// Destroy removes a single session.
func (s *Sessions) Destroy(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, id)
}

// DestroyUser removes every session that references userID. Used when a
// refresh fails and the user must re-authenticate.
func (s *Sessions) DestroyUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, uid := range s.active {
		if uid == userID {
			delete(s.active, id)
		}
	}
}
