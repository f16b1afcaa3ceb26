package orch

import (
	"context"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

// WhiteboardUpdate merges op into the board and replicates it to everyone
// but the originator.
func (o *Orchestrator) WhiteboardUpdate(ctx context.Context, sid core.SessionID, op domain.BoardOp) error {
	return o.actorCommand(ctx, sid, func(r *Room, actor domain.Participant) error {
		out, err := o.board.Apply(r.state, actor, op)
		if err != nil {
			return err
		}
		r.broadcast(core.WhiteboardUpdateEvent{
			Type:      core.EventWhiteboardUpdate,
			Update:    out,
			Timestamp: o.timestamp(),
		}, sid)
		return nil
	})
}

// WhiteboardClear empties the board and tells the whole room.
func (o *Orchestrator) WhiteboardClear(ctx context.Context, sid core.SessionID) error {
	return o.actorCommand(ctx, sid, func(r *Room, actor domain.Participant) error {
		if err := o.board.Clear(r.state, actor); err != nil {
			return err
		}
		r.broadcast(core.TypeOnly{Type: core.EventWhiteboardClear})
		return nil
	})
}

// WhiteboardToggle switches the board mode. Anyone may toggle.
func (o *Orchestrator) WhiteboardToggle(ctx context.Context, sid core.SessionID, mode string) error {
	m, err := domain.ParseWhiteboardMode(mode)
	if err != nil {
		return err
	}
	return o.actorCommand(ctx, sid, func(r *Room, actor domain.Participant) error {
		r.state.WhiteboardMode = m
		r.broadcast(core.WhiteboardToggleEvent{
			Type:        core.EventWhiteboardToggle,
			Mode:        m,
			TriggeredBy: actor.DisplayName,
		})
		return nil
	})
}
