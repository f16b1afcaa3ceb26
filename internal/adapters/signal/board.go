package signal

import (
	"context"
	"encoding/json"
)

type boardUpdatePayload struct {
	Update json.RawMessage `json:"update" validate:"required"`
}

func (ctl *SignalWSController) handleWhiteboardUpdate(ctx context.Context, s *session, data []byte) error {
	var p boardUpdatePayload
	if err := ctl.decode(data, &p); err != nil {
		return err
	}
	return ctl.Orch.WhiteboardUpdate(ctx, s.sid, p.Update)
}

type boardTogglePayload struct {
	Mode string `json:"mode" validate:"required,oneof=off board overlay"`
}

func (ctl *SignalWSController) handleWhiteboardToggle(ctx context.Context, s *session, data []byte) error {
	var p boardTogglePayload
	if err := ctl.decode(data, &p); err != nil {
		return err
	}
	return ctl.Orch.WhiteboardToggle(ctx, s.sid, p.Mode)
}
