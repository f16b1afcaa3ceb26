package signal

import (
	"context"
	"encoding/json"

	"github.com/dkeye/Classroom/internal/core"
)

// Negotiation messages are relayed opaquely; payload is whatever the
// browser produced (session description or ICE candidate).
type negotiationPayload struct {
	Payload  json.RawMessage `json:"payload" validate:"required"`
	TargetID string          `json:"targetId" validate:"omitempty,max=64"`
}

func (ctl *SignalWSController) decodeNegotiation(data []byte) (negotiationPayload, error) {
	var p negotiationPayload
	err := ctl.decode(data, &p)
	return p, err
}

func (ctl *SignalWSController) handleOffer(ctx context.Context, s *session, data []byte) error {
	p, err := ctl.decodeNegotiation(data)
	if err != nil {
		return err
	}
	return ctl.Orch.Offer(ctx, s.sid, p.Payload)
}

func (ctl *SignalWSController) handleAnswer(ctx context.Context, s *session, data []byte) error {
	p, err := ctl.decodeNegotiation(data)
	if err != nil {
		return err
	}
	return ctl.Orch.Answer(ctx, s.sid, core.SessionID(p.TargetID), p.Payload)
}

func (ctl *SignalWSController) handleCandidate(ctx context.Context, s *session, data []byte) error {
	p, err := ctl.decodeNegotiation(data)
	if err != nil {
		return err
	}
	return ctl.Orch.Candidate(ctx, s.sid, core.SessionID(p.TargetID), p.Payload)
}
