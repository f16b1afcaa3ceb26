package orch

import (
	"context"
	"encoding/json"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/rs/zerolog/log"
)

// Negotiation payloads are relayed untouched. Undeliverable targeted
// messages are dropped; peers renegotiate.

func validPayload(p json.RawMessage) error {
	if len(p) == 0 || string(p) == "null" {
		return domain.NewValidationError("missing payload")
	}
	if !json.Valid(p) {
		return domain.NewValidationError("payload is not valid JSON")
	}
	return nil
}

// Offer broadcasts an authority's offer to every other participant.
func (o *Orchestrator) Offer(ctx context.Context, sid core.SessionID, payload json.RawMessage) error {
	if err := validPayload(payload); err != nil {
		return err
	}
	return o.actorCommand(ctx, sid, func(r *Room, actor domain.Participant) error {
		if !actor.IsAuthority() {
			return &domain.AuthorizationError{Action: "start a broadcast"}
		}
		r.broadcast(core.SignalEvent{Type: core.EventNegotiationOffer, Payload: payload, SenderID: sid}, sid)
		return nil
	})
}

// Answer delivers payload to target only.
func (o *Orchestrator) Answer(ctx context.Context, sid, target core.SessionID, payload json.RawMessage) error {
	if err := validPayload(payload); err != nil {
		return err
	}
	if target == "" {
		return domain.NewValidationError("answer needs a target")
	}
	return o.actorCommand(ctx, sid, func(r *Room, _ domain.Participant) error {
		o.relay(r, sid, target, core.SignalEvent{Type: core.EventNegotiationAnswer, Payload: payload, SenderID: sid})
		return nil
	})
}

// Candidate delivers payload to target, or to every other participant
// when no target is named.
func (o *Orchestrator) Candidate(ctx context.Context, sid, target core.SessionID, payload json.RawMessage) error {
	if err := validPayload(payload); err != nil {
		return err
	}
	return o.actorCommand(ctx, sid, func(r *Room, _ domain.Participant) error {
		ev := core.SignalEvent{Type: core.EventNegotiationCand, Payload: payload, SenderID: sid}
		if target == "" {
			r.broadcast(ev, sid)
			return nil
		}
		o.relay(r, sid, target, ev)
		return nil
	})
}

func (o *Orchestrator) relay(r *Room, from, target core.SessionID, ev core.SignalEvent) {
	if !r.sendTo(target, ev) {
		log.Warn().Str("module", "orch.signal").Str("room", string(r.id)).Str("from", string(from)).Str("target", string(target)).Str("type", ev.Type).Msg("target gone, dropped")
	}
}
