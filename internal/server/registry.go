// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

package server

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/toeirei/blockmove/internal/session"
)

var (
	// ErrFull is returned when the server already runs its maximum number
	// of authenticated sessions.
	ErrFull = errors.New("session limit reached")
	// ErrTooManyPending is returned when too many connections are still
	// authenticating.
	ErrTooManyPending = errors.New("too many unauthenticated connections")
	// ErrNotRegistered is returned by Admit for an unknown session.
	ErrNotRegistered = errors.New("session not registered")
)

// Entry is one live connection.
type Entry struct {
	ID        uuid.UUID
	Remote    string
	StartedAt time.Time
	Loop      *session.Loop
	Admitted  bool // authenticated and counted against the session limit
}

// Registry tracks live sessions. Sessions never share state through it; it
// only exists for limits, shutdown and listing.
//
// Connections count against the pending budget until Admit moves them into
// the session limit.
type Registry struct {
	sync.RWMutex
	max        int
	maxPending int
	pending    int
	admitted   int
	sessions   map[uuid.UUID]*Entry
}

// NewRegistry returns a registry allowing max authenticated sessions and
// maxPending connections that have not authenticated yet. A limit <= 0
// means no limit.
func NewRegistry(max, maxPending int) *Registry {
	return &Registry{max: max, maxPending: maxPending, sessions: make(map[uuid.UUID]*Entry)}
}

// Add allocates a fresh session ID, builds the loop with mk and registers
// it as pending.
func (r *Registry) Add(remote string, mk func(id uuid.UUID) *session.Loop) (*Entry, error) {
	r.Lock()
	defer r.Unlock()
	if r.maxPending > 0 && r.pending >= r.maxPending {
		return nil, ErrTooManyPending
	}
	id := uuid.New()
	for {
		if _, ok := r.sessions[id]; !ok {
			break
		}
		id = uuid.New()
	}
	e := &Entry{ID: id, Remote: remote, StartedAt: time.Now(), Loop: mk(id)}
	r.sessions[id] = e
	r.pending++
	return e, nil
}

// Admit moves an authenticated session out of the pending budget and into
// the session limit.
func (r *Registry) Admit(id uuid.UUID) error {
	r.Lock()
	defer r.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return ErrNotRegistered
	}
	if e.Admitted {
		return nil
	}
	if r.max > 0 && r.admitted >= r.max {
		return ErrFull
	}
	e.Admitted = true
	r.pending--
	r.admitted++
	return nil
}

// Remove forgets a session.
func (r *Registry) Remove(id uuid.UUID) {
	r.Lock()
	defer r.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return
	}
	if e.Admitted {
		r.admitted--
	} else {
		r.pending--
	}
	delete(r.sessions, id)
}

// Admitted returns the number of authenticated sessions.
func (r *Registry) Admitted() int {
	r.RLock()
	defer r.RUnlock()
	return r.admitted
}

// Len returns the number of live connections, pending or admitted.
func (r *Registry) Len() int {
	r.RLock()
	defer r.RUnlock()
	return len(r.sessions)
}

// List returns the live sessions, oldest first.
func (r *Registry) List() []Entry {
	r.RLock()
	out := make([]Entry, 0, len(r.sessions))
	for _, e := range r.sessions {
		out = append(out, *e)
	}
	r.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// CloseAll closes every live session with reason.
func (r *Registry) CloseAll(reason session.Reason) {
	for _, e := range r.List() {
		e.Loop.Close(reason)
	}
}
