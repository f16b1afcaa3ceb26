package signal

import (
	"context"

	"github.com/dkeye/Classroom/internal/core"
)

func (ctl *SignalWSController) handlePing(s *session) {
	ctl.sendJSON(s, core.TypeOnly{Type: core.EventPong})
}

type changeSlidePayload struct {
	SlideNumber *int `json:"slideNumber" validate:"required"`
}

func (ctl *SignalWSController) handleChangeSlide(ctx context.Context, s *session, data []byte) error {
	var p changeSlidePayload
	if err := ctl.decode(data, &p); err != nil {
		return err
	}
	return ctl.Orch.ChangeSlide(ctx, s.sid, *p.SlideNumber)
}

type triggerPreloadPayload struct {
	CurrentSlide *int `json:"currentSlide" validate:"required"`
}

func (ctl *SignalWSController) handleTriggerPreload(ctx context.Context, s *session, data []byte) error {
	var p triggerPreloadPayload
	if err := ctl.decode(data, &p); err != nil {
		return err
	}
	return ctl.Orch.TriggerPreload(ctx, s.sid, *p.CurrentSlide)
}
