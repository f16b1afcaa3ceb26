package app

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	Participant domain.Participant
	Signal      core.SignalConnection
	Cancel      context.CancelFunc
}

// Registry maps live connections of one room to participant identity and
// transport. Mutations happen on the room dispatch loop; the lock only
// protects concurrent readers such as the HTTP API.
type Registry struct {
	mu       sync.RWMutex
	room     domain.RoomID
	sessions map[core.SessionID]*sessionEntry
}

func NewRegistry(room domain.RoomID) *Registry {
	return &Registry{
		room:     room,
		sessions: make(map[core.SessionID]*sessionEntry),
	}
}

// Upsert binds sid to p. Re-joining on the same connection replaces the
// previous entry, so the roster never holds a connection twice.
func (r *Registry) Upsert(
	sid core.SessionID,
	p domain.Participant,
	sig core.SignalConnection,
	cancel context.CancelFunc,
) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &sessionEntry{
		Participant: p,
		Signal:      sig,
		Cancel:      cancel,
	}
	log.Info().Str("module", "app.registry").Str("room", string(r.room)).Str("sid", string(sid)).Str("role", string(p.Role)).Msg("bound session")
}

// Remove drops sid and returns the participant it was bound to.
func (r *Registry) Remove(sid core.SessionID) (domain.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return domain.Participant{}, false
	}
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("room", string(r.room)).Str("sid", string(sid)).Msg("unbind session")
	return e.Participant, true
}

func (r *Registry) Get(sid core.SessionID) (domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Participant, true
	}
	return domain.Participant{}, false
}

func (r *Registry) Signal(sid core.SessionID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok && e.Signal != nil {
		return e.Signal, true
	}
	return nil, false
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// AuthorityCount returns the number of connected authority participants.
func (r *Registry) AuthorityCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.sessions {
		if e.Participant.IsAuthority() {
			n++
		}
	}
	return n
}

// Roster returns participants ordered by join time.
func (r *Registry) Roster() []domain.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Participant, 0, len(r.sessions))
	for _, e := range r.sessions {
		out = append(out, e.Participant)
	}
	slices.SortFunc(out, func(a, b domain.Participant) int {
		if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ConnectionID, b.ConnectionID)
	})
	return out
}

type RegSnap struct {
	SID    core.SessionID
	Signal core.SignalConnection
}

// Members returns the transports of every bound connection.
func (r *Registry) Members() []RegSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RegSnap, 0, len(r.sessions))
	for sid, e := range r.sessions {
		if e.Signal == nil {
			continue
		}
		out = append(out, RegSnap{SID: sid, Signal: e.Signal})
	}
	return out
}

// Cancel stops the connection context of sid, which makes its pumps exit.
func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("room", string(r.room)).Str("sid", string(sid)).Msg("canceled session")
	return true
}
