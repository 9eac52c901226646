// Package mock provides an in-memory test double for the store.Store interface.
package mock

import (
	"context"
	"sync"

	"github.com/admitly/interviewd/internal/store"
)

// SavedSession records a single invocation of SaveCompleteSession.
type SavedSession struct {
	Session store.Session
	Pairs   []store.QAPair
}

// Store is a mock implementation of store.Store. Zero values behave as an
// empty, always-healthy store. Set Err fields to inject failures.
type Store struct {
	mu sync.Mutex

	// SaveErr, if non-nil, is returned by SaveCompleteSession.
	SaveErr error

	// SessionsResult is returned by UserSessions.
	SessionsResult []store.SessionSummary

	// SessionsErr, if non-nil, is returned by UserSessions.
	SessionsErr error

	// PingErr, if non-nil, is returned by Ping.
	PingErr error

	// Saved records every successful SaveCompleteSession call in order.
	Saved []SavedSession

	// Closed reports whether Close has been called.
	Closed bool
}

var _ store.Store = (*Store)(nil)

// SaveCompleteSession implements store.Store.
func (s *Store) SaveCompleteSession(ctx context.Context, session store.Session, pairs []store.QAPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	pairsCopy := make([]store.QAPair, len(pairs))
	copy(pairsCopy, pairs)
	s.Saved = append(s.Saved, SavedSession{Session: session, Pairs: pairsCopy})
	return nil
}

// UserSessions implements store.Store.
func (s *Store) UserSessions(ctx context.Context, userID string) ([]store.SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.SessionsResult, s.SessionsErr
}

// Ping implements store.Store.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PingErr
}

// Close implements store.Store.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
}

// LastSaved returns the most recent saved session, or nil if none.
func (s *Store) LastSaved() *SavedSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Saved) == 0 {
		return nil
	}
	saved := s.Saved[len(s.Saved)-1]
	return &saved
}
