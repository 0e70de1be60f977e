// Package http exposes the sale builder over a JSON API: draft sessions
// with mutate/submit/cancel operations plus candidate lookups.
package http

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/balcao-erp/balcao-erp/internal/lookup"
	"github.com/balcao-erp/balcao-erp/internal/sale"
)

// Session couples one draft builder with its two typeahead fields. The
// fields debounce independently: typing in the client box never cancels a
// pending product search.
type Session struct {
	Builder  *sale.Builder
	Clients  *lookup.Field[sale.Client]
	Products *lookup.Field[sale.Product]
}

// Close stops any pending lookup dispatches.
func (s *Session) Close() {
	s.Clients.Stop()
	s.Products.Stop()
}

// Store keeps live draft sessions in memory, keyed by session id. Nothing is
// persisted: a draft exists for the duration of its sale-building session
// and disappears on cancel, eviction or process exit.
type Store struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	session *Session
	touched time.Time
}

// NewStore builds a Store evicting sessions idle longer than ttl.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// Put registers a session and returns its id.
func (s *Store) Put(sess *Session) string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = &entry{session: sess, touched: s.now()}
	return id
}

// Get returns the session for id and refreshes its idle timer.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	e.touched = s.now()
	return e.session, true
}

// Delete drops the session for id, if present, stopping its lookups.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[id]; ok {
		e.session.Close()
		delete(s.sessions, id)
	}
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep evicts idle sessions and returns how many were dropped.
func (s *Store) Sweep() int {
	cutoff := s.now().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	var dropped int
	for id, e := range s.sessions {
		if e.touched.Before(cutoff) {
			e.session.Close()
			delete(s.sessions, id)
			dropped++
		}
	}
	return dropped
}

// Janitor sweeps the store until ctx is done.
func (s *Store) Janitor(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if dropped := s.Sweep(); dropped > 0 {
				logger.Info("evicted idle draft sessions", slog.Int("count", dropped))
			}
		}
	}
}
