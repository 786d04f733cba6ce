package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sessions is an in-memory session token registry. Tokens are opaque uuids;
// expired entries are dropped lazily on lookup.
type Sessions struct {
	mu   sync.Mutex
	ttl  time.Duration
	byID map[string]session
}

type session struct {
	userID    int64
	expiresAt time.Time
}

// NewSessions creates a session registry with the given token lifetime.
func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{ttl: ttl, byID: make(map[string]session)}
}

// Create issues a new session token for a user.
func (s *Sessions) Create(userID int64) string {
	token := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[token] = session{userID: userID, expiresAt: time.Now().Add(s.ttl)}
	return token
}

// Resolve returns the user behind a token, or false when the token is
// unknown or expired.
func (s *Sessions) Resolve(token string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[token]
	if !ok {
		return 0, false
	}
	if time.Now().After(sess.expiresAt) {
		delete(s.byID, token)
		return 0, false
	}
	return sess.userID, true
}

// Destroy removes a token. Destroying an unknown token is a no-op.
func (s *Sessions) Destroy(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, token)
}
