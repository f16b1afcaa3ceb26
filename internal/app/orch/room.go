package orch

import (
	"context"
	"encoding/json"
	"errors"
	"slices"

	"github.com/dkeye/Classroom/internal/app"
	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrRoomStopped = errors.New("room stopped")

type command struct {
	fn   func(r *Room)
	done chan struct{}
	err  error
}

// Room owns one RoomState and its Registry. Every mutation runs as a
// command on the room loop, one at a time.
type Room struct {
	id      domain.RoomID
	ctx     context.Context
	cancel  context.CancelFunc
	cmds    chan *command
	stopped chan struct{}

	state  *domain.RoomState
	reg    *app.Registry
	policy app.Policy

	// conversion bookkeeping, loop-owned
	jobs   map[string]context.CancelCauseFunc
	active string
	backup *domain.Deck

	// retired rooms refuse every further command
	retired bool
}

func newRoom(parent context.Context, id domain.RoomID, policy app.Policy) *Room {
	ctx, cancel := context.WithCancel(parent)
	return &Room{
		id:      id,
		ctx:     ctx,
		cancel:  cancel,
		cmds:    make(chan *command),
		stopped: make(chan struct{}),
		state:   domain.NewRoomState(),
		reg:     app.NewRegistry(id),
		policy:  policy,
		jobs:    make(map[string]context.CancelCauseFunc),
	}
}

func (r *Room) ID() domain.RoomID       { return r.id }
func (r *Room) Registry() *app.Registry { return r.reg }

func (r *Room) run() {
	defer close(r.stopped)
	log.Info().Str("module", "orch.room").Str("room", string(r.id)).Msg("room loop started")
	for {
		select {
		case <-r.ctx.Done():
			for _, cancel := range r.jobs {
				cancel(ErrRoomStopped)
			}
			log.Info().Str("module", "orch.room").Str("room", string(r.id)).Msg("room loop stopped")
			return
		case c := <-r.cmds:
			if r.retired {
				c.err = ErrRoomStopped
			} else {
				c.fn(r)
			}
			close(c.done)
		}
	}
}

// Do runs fn on the room loop and waits for it to finish. fn must not
// call Do on the same room.
func (r *Room) Do(ctx context.Context, fn func(r *Room)) error {
	c := &command{fn: fn, done: make(chan struct{})}
	select {
	case r.cmds <- c:
	case <-r.ctx.Done():
		return ErrRoomStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	// Once accepted the command always completes.
	<-c.done
	return c.err
}

func (r *Room) stop() {
	r.cancel()
	<-r.stopped
}

// The helpers below are only called from the room loop.

func encode(v any) (core.Frame, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch.room").Msg("marshal event")
		return nil, false
	}
	return b, true
}

// broadcast sends v to every member except the listed sessions.
func (r *Room) broadcast(v any, except ...core.SessionID) core.PublishResult {
	frame, ok := encode(v)
	if !ok {
		return core.PublishResult{}
	}
	res := core.PublishResult{}
	for _, m := range r.reg.Members() {
		if isExcluded(m.SID, except) {
			continue
		}
		if err := m.Signal.TrySend(frame); err != nil {
			res.Dropped = append(res.Dropped, m.SID)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "orch.room").Str("room", string(r.id)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	r.applyPolicy(res)
	return res
}

// sendTo delivers v to one session and reports whether it was registered.
func (r *Room) sendTo(sid core.SessionID, v any) bool {
	sig, ok := r.reg.Signal(sid)
	if !ok {
		return false
	}
	frame, ok := encode(v)
	if !ok {
		return false
	}
	if err := sig.TrySend(frame); err != nil {
		r.applyPolicy(core.PublishResult{Dropped: []core.SessionID{sid}})
	}
	return true
}

func isExcluded(sid core.SessionID, except []core.SessionID) bool {
	for _, e := range except {
		if e == sid {
			return true
		}
	}
	return false
}

func (r *Room) applyPolicy(res core.PublishResult) {
	if r.policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch r.policy.OnBackPressure(r.id, slow) {
		case app.KickMember:
			r.kick(slow)
		case app.MarkSlow, app.DropFrame, app.NoAction:
		}
	}
}

// kick closes the transport of sid. The adapter then reports the
// disconnect, which removes the participant through the normal path.
func (r *Room) kick(sid core.SessionID) {
	log.Warn().Str("module", "orch.room").Str("room", string(r.id)).Str("sid", string(sid)).Msg("kicking slow connection")
	if sig, ok := r.reg.Signal(sid); ok {
		sig.Close()
	}
	r.reg.Cancel(sid)
}

// idle reports whether the room holds nothing worth keeping: no
// connections, no running jobs and no deck.
func (r *Room) idle() bool {
	return r.reg.Len() == 0 && len(r.jobs) == 0 && r.state.DeckID == "" && r.state.TotalSlides == 0
}

// ownedDecks lists the storage ids this room is responsible for: the shown
// deck, the rollback deck and every job still running.
func (r *Room) ownedDecks() []string {
	ids := make([]string, 0, len(r.jobs)+2)
	add := func(id string) {
		if id != "" && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	add(r.state.DeckID)
	if r.backup != nil {
		add(r.backup.DeckID)
	}
	for id := range r.jobs {
		add(id)
	}
	slices.Sort(ids)
	return ids
}

func (r *Room) snapshot() domain.RoomSnapshot {
	return r.state.Snapshot(r.reg.Roster())
}

func (r *Room) broadcastRoster() {
	r.broadcast(core.ParticipantsEvent{Type: core.EventParticipantsUpdated, Participants: r.reg.Roster()})
}
