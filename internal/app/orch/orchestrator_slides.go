package orch

import (
	"context"

	"github.com/dkeye/Classroom/internal/app/preload"
	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/rs/zerolog/log"
)

// ChangeSlide moves the room to index. Only authorities may navigate and
// only within the current deck; a rejected command changes nothing.
func (o *Orchestrator) ChangeSlide(ctx context.Context, sid core.SessionID, index int) error {
	var room *Room
	err := o.actorCommand(ctx, sid, func(r *Room, actor domain.Participant) error {
		if !actor.IsAuthority() {
			return &domain.AuthorizationError{Action: "change slides"}
		}
		if !r.state.CanNavigate(index) {
			return domain.NewValidationError("slide %d out of range [0,%d)", index, r.state.TotalSlides)
		}
		r.state.CurrentSlideIndex = index
		r.broadcast(core.SlideChangedEvent{
			Type:        core.EventSlideChanged,
			SlideNumber: index,
			TotalSlides: r.state.TotalSlides,
			Timestamp:   o.timestamp(),
		})
		room = r
		return nil
	})
	if err != nil {
		return err
	}
	o.triggerPreload(room, index)
	return nil
}

// TriggerPreload asks for a lookahead pass from index. Any participant may
// ask; the pass itself is bounded by the room state.
func (o *Orchestrator) TriggerPreload(ctx context.Context, sid core.SessionID, index int) error {
	room, ok := o.roomOf(sid)
	if !ok {
		return domain.ErrNotJoined
	}
	if index < 0 {
		return domain.NewValidationError("invalid slide index %d", index)
	}
	o.triggerPreload(room, index)
	return nil
}

func (o *Orchestrator) triggerPreload(room *Room, current int) {
	o.scheduler.Trigger(room.ID(), preloadTarget{o: o, room: room}, current)
}

type preloadTarget struct {
	o    *Orchestrator
	room *Room
}

func (t preloadTarget) Candidates(ctx context.Context, current, window int) ([]preload.Candidate, error) {
	var out []preload.Candidate
	err := t.room.Do(ctx, func(r *Room) {
		out = preload.SelectCandidates(r.state, current, window)
	})
	return out, err
}

func (t preloadTarget) MarkPreloaded(ctx context.Context, c preload.Candidate, size int64) (bool, error) {
	marked := false
	err := t.room.Do(ctx, func(r *Room) {
		if r.state.DeckID != c.DeckID {
			return
		}
		marked = t.o.markPreloaded(r, c.Artifact, size)
	})
	return marked, err
}

// markPreloaded runs on the room loop.
func (o *Orchestrator) markPreloaded(r *Room, a domain.SlideArtifact, size int64) bool {
	if !r.state.MarkPreloaded(a.Index) {
		return false
	}
	r.broadcast(core.SlidePreloadedEvent{
		Type:       core.EventSlidePreloaded,
		JobID:      r.state.DeckID,
		SlideIndex: a.Index,
		URL:        a.URL,
		FileSize:   size,
		Timestamp:  o.timestamp(),
	})
	log.Debug().Str("module", "orch").Str("room", string(r.id)).Int("index", a.Index).Msg("slide preloaded")
	return true
}
