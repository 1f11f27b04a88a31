package server

import (
	"errors"
	"sync"

	"github.com/busantrip/map-explorer/internal/explorer"
)

var errTooManySessions = errors.New("session limit reached")

// registry tracks the open explorer sessions by id.
type registry struct {
	max int

	mu       sync.Mutex
	sessions map[string]*explorer.Session
}

func newRegistry(max int) *registry {
	if max <= 0 {
		max = 256
	}
	return &registry{max: max, sessions: make(map[string]*explorer.Session)}
}

func (r *registry) add(s *explorer.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sessions) >= r.max {
		return errTooManySessions
	}
	r.sessions[s.ID] = s
	return nil
}

func (r *registry) get(id string) (*explorer.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *registry) remove(id string) (*explorer.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	return s, ok
}

func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// closeAll tears every session down; used on shutdown.
func (r *registry) closeAll() {
	r.mu.Lock()
	all := make([]*explorer.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.sessions = make(map[string]*explorer.Session)
	r.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}
