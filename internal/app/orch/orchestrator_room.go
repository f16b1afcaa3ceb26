package orch

import (
	"context"
	"errors"

	"github.com/dkeye/Classroom/internal/conversion"
	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrNoIdentityProvider = errors.New("no identity provider configured")

// JoinRequest is what a connection presents to enter a room. Name is
// used only when the identity carries no display name (guests).
type JoinRequest struct {
	Room     domain.RoomID
	Username string
	Name     string
	ClientID string
}

// Join resolves the identity, registers the connection and pushes the
// room state to it. A connection already in another room leaves it first.
func (o *Orchestrator) Join(ctx context.Context, sid core.SessionID, sig core.SignalConnection, cancel context.CancelFunc, req JoinRequest) (domain.Participant, error) {
	if o.identities == nil {
		return domain.Participant{}, ErrNoIdentityProvider
	}
	id, err := o.identities.Lookup(ctx, req.Username)
	if err != nil {
		return domain.Participant{}, err
	}
	if id.DisplayName == "" {
		id.DisplayName = req.Name
	}
	p, err := domain.NewParticipant(string(sid), id, o.now())
	if err != nil {
		return domain.Participant{}, err
	}
	p.ClientID = req.ClientID

	if cur, ok := o.RoomOf(sid); ok && cur != req.Room {
		o.Leave(ctx, sid)
	}

	var joinErr error
	_, err = o.withRoom(ctx, req.Room, func(r *Room) {
		if p.IsAuthority() {
			present := r.reg.AuthorityCount()
			if prev, ok := r.reg.Get(sid); ok && prev.IsAuthority() {
				present--
			}
			if joinErr = o.authority.Admit(present); joinErr != nil {
				return
			}
		}
		r.reg.Upsert(sid, *p, sig, cancel)
		r.state.AuthorityPresent = r.reg.AuthorityCount() > 0

		r.sendTo(sid, core.JoinedEvent{
			Type:        core.EventJoined,
			State:       o.roomSnapshot(r),
			Role:        p.Role,
			Participant: *p,
			RTC:         o.rtc,
		})
		r.broadcastRoster()
	})
	if err != nil {
		return domain.Participant{}, err
	}
	if joinErr != nil {
		return domain.Participant{}, joinErr
	}
	o.setMember(sid, req.Room)
	log.Info().Str("module", "orch").Str("room", string(req.Room)).Str("sid", string(sid)).Str("user", p.Username).Str("role", string(p.Role)).Msg("joined")
	return *p, nil
}

// Leave removes sid from its room but keeps the connection open.
func (o *Orchestrator) Leave(ctx context.Context, sid core.SessionID) bool {
	room, ok := o.roomOf(sid)
	if !ok {
		return false
	}
	removed := false
	err := room.Do(ctx, func(r *Room) {
		removed = o.removeParticipant(r, sid)
	})
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Msg("leave")
	}
	o.forgetMember(sid, room.ID())
	o.chatLimiter.Forget(sid)
	o.reapIfIdle(room)
	return removed
}

// Disconnect is called by the transport once a connection is gone.
func (o *Orchestrator) Disconnect(sid core.SessionID) {
	if o.Leave(context.Background(), sid) {
		log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("disconnected")
	}
}

// removeParticipant runs on the room loop.
func (o *Orchestrator) removeParticipant(r *Room, sid core.SessionID) bool {
	p, ok := r.reg.Remove(sid)
	if !ok {
		return false
	}
	r.state.AuthorityPresent = r.reg.AuthorityCount() > 0
	if p.IsAuthority() && !r.state.AuthorityPresent {
		o.resetRoom(r)
	}
	r.broadcastRoster()
	return true
}

// resetRoom clears everything the departed authority left behind and
// tells the remaining participants once.
func (o *Orchestrator) resetRoom(r *Room) {
	owned := r.ownedDecks()
	for id, cancel := range r.jobs {
		cancel(conversion.ErrSuperseded)
		delete(r.jobs, id)
	}
	r.active = ""
	r.backup = nil
	r.state.Reset()
	log.Info().Str("module", "orch").Str("room", string(r.id)).Msg("authority left, room reset")

	r.broadcast(core.AuthorityLeftEvent{
		Type:      core.EventAuthorityLeft,
		State:     o.roomSnapshot(r),
		Timestamp: o.timestamp(),
	})

	o.purgeDecks(r.id, owned)
}

// purgeDecks removes the given job directories in the background. Only
// ids a room owns are passed in so other rooms keep their slides.
func (o *Orchestrator) purgeDecks(room domain.RoomID, ids []string) {
	if o.storage == nil || len(ids) == 0 {
		return
	}
	o.purgeWG.Add(1)
	go func() {
		defer o.purgeWG.Done()
		for _, id := range ids {
			if err := o.storage.Purge(id); err != nil {
				log.Error().Err(err).Str("module", "orch").Str("room", string(room)).Str("job", id).Msg("purge slides")
			}
		}
		log.Info().Str("module", "orch").Str("room", string(room)).Strs("jobs", ids).Msg("purged slides")
	}()
}
