package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/shopbot/core/logger"
)

// lockEntry serializes work on one user. refs counts goroutines holding or
// waiting for mu so the entry can be dropped once nobody needs it.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Store maps user identities to sessions. Work on one user is serialized by
// a per-user lock; different users never contend beyond a short map lookup.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	locks    map[int64]*lockEntry

	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[int64]*Session),
		locks:    make(map[int64]*lockEntry),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) acquire(userID int64) *lockEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.locks[userID]
	if !ok {
		entry = &lockEntry{}
		s.locks[userID] = entry
	}
	entry.refs++
	return entry
}

func (s *Store) release(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.locks[userID]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(s.locks, userID)
	}
}

// withLock runs fn while holding the user's lock.
func (s *Store) withLock(userID int64, fn func()) {
	entry := s.acquire(userID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		s.release(userID)
	}()
	fn()
}

// load looks the session up under the map lock. LastSeen is only written
// while holding both the map lock and the user's lock, so Sweep may read it
// under the map lock alone.
func (s *Store) load(userID int64, create, touch bool) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		if !create {
			return nil
		}
		sess = &Session{}
		s.sessions[userID] = sess
		touch = true
	}
	if touch {
		sess.LastSeen = s.now()
	}
	return sess
}

// GetOrCreate returns a copy of the user's session, creating an empty one
// on first contact.
func (s *Store) GetOrCreate(userID int64) Session {
	var out Session
	s.withLock(userID, func() {
		out = s.load(userID, true, false).Clone()
	})
	return out
}

// Peek returns a copy of the session without creating it.
func (s *Store) Peek(userID int64) (Session, bool) {
	var (
		out Session
		ok  bool
	)
	s.withLock(userID, func() {
		if sess := s.load(userID, false, false); sess != nil {
			out, ok = sess.Clone(), true
		}
	})
	return out, ok
}

// Update runs fn on the user's live session under that user's lock, creating
// the session if needed. fn must not retain the pointer. The error from fn is
// returned unchanged; mutations made before the error are kept.
func (s *Store) Update(userID int64, fn func(*Session) error) error {
	var err error
	s.withLock(userID, func() {
		err = fn(s.load(userID, true, true))
	})
	return err
}

// Reset empties the session but keeps its entry.
func (s *Store) Reset(userID int64) {
	s.withLock(userID, func() {
		s.load(userID, true, true).Clear()
	})
}

// Remove drops the user's session entirely.
func (s *Store) Remove(userID int64) {
	s.withLock(userID, func() {
		s.mu.Lock()
		delete(s.sessions, userID)
		s.mu.Unlock()
	})
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes sessions untouched for longer than idle and returns how
// many were dropped.
func (s *Store) Sweep(idle time.Duration) int {
	cutoff := s.now().Add(-idle)

	s.mu.Lock()
	candidates := make([]int64, 0)
	for id, sess := range s.sessions {
		if sess.LastSeen.Before(cutoff) {
			candidates = append(candidates, id)
		}
	}
	s.mu.Unlock()

	removed := 0
	for _, id := range candidates {
		s.withLock(id, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			// LastSeen may have moved while we waited for the lock.
			if sess, ok := s.sessions[id]; ok && sess.LastSeen.Before(cutoff) {
				delete(s.sessions, id)
				removed++
			}
		})
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Store) RunSweeper(ctx context.Context, interval, idle time.Duration) {
	if interval <= 0 || idle <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(idle); n > 0 {
				logger.Info(ctx, logger.ComponentSession, "session.sweep",
					slog.Int("removed", n),
					slog.Int("live", s.Len()),
				)
			}
		}
	}
}
