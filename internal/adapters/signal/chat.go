package signal

import "context"

type messagePayload struct {
	Text string `json:"text" validate:"required"`
}

func (ctl *SignalWSController) handleSendMessage(ctx context.Context, s *session, data []byte) error {
	var p messagePayload
	if err := ctl.decode(data, &p); err != nil {
		return err
	}
	return ctl.Orch.SendMessage(ctx, s.sid, p.Text)
}
