// Package session keeps the short-lived conversation state of private chat
// flows. A user holds at most one active flow at a time; an expired record is
// indistinguishable from no record and is reaped in the background.
package session

import (
	"sync"
	"time"
)

// Flow kinds. One per multi-step conversation.
const (
	KindConfession = "confession"
	KindPromo      = "promo"
	KindBroadcast  = "broadcast"
	KindWhoisGuess = "whois_guess"
	KindBanInput   = "ban_input"
)

// Session is one user's place in a multi-step flow. Data carries the
// accumulated inputs keyed by flow-specific names.
type Session struct {
	UserID    int64
	Kind      string
	State     string
	Data      map[string]string
	StartedAt time.Time
	ExpiresAt time.Time
}

type Store struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	ttl      time.Duration
	now      func() time.Time
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[int64]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Begin replaces whatever flow the user was in with a fresh one.
func (s *Store) Begin(userID int64, kind, state string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	session := &Session{
		UserID:    userID,
		Kind:      kind,
		State:     state,
		Data:      make(map[string]string),
		StartedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.sessions[userID] = session
	return session
}

// Get returns a copy of the user's live session. A lapsed record reads as
// absent; the stale entry is dropped on the spot.
func (s *Store) Get(userID int64) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[userID]
	if !ok {
		return Session{}, false
	}
	if !s.now().Before(session.ExpiresAt) {
		delete(s.sessions, userID)
		return Session{}, false
	}
	clone := *session
	clone.Data = make(map[string]string, len(session.Data))
	for k, v := range session.Data {
		clone.Data[k] = v
	}
	return clone, true
}

// Advance moves the user's session to the next state and merges data in. Each
// interaction refreshes the TTL, so only an idle flow times out.
func (s *Store) Advance(userID int64, state string, data map[string]string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[userID]
	if !ok || !s.now().Before(session.ExpiresAt) {
		delete(s.sessions, userID)
		return false
	}
	session.State = state
	for k, v := range data {
		session.Data[k] = v
	}
	session.ExpiresAt = s.now().Add(s.ttl)
	return true
}

// End removes the user's session and reports whether one was live.
func (s *Store) End(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[userID]
	if !ok {
		return false
	}
	delete(s.sessions, userID)
	return s.now().Before(session.ExpiresAt)
}

// Reap drops all lapsed sessions and returns them so callers can notify the
// abandoned users.
func (s *Store) Reap() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var reaped []Session
	for userID, session := range s.sessions {
		if !now.Before(session.ExpiresAt) {
			reaped = append(reaped, *session)
			delete(s.sessions, userID)
		}
	}
	return reaped
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
