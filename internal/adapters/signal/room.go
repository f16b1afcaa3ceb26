package signal

import (
	"context"

	"github.com/dkeye/Classroom/internal/app/orch"
	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/rs/zerolog/log"
)

type joinPayload struct {
	Username string `json:"username" validate:"required,max=36"`
	Name     string `json:"name" validate:"max=64"`
	Room     string `json:"room" validate:"omitempty,max=36,alphanum"`
}

func (ctl *SignalWSController) handleJoin(ctx context.Context, s *session, data []byte) error {
	var p joinPayload
	if err := ctl.decode(data, &p); err != nil {
		return err
	}
	room := domain.RoomID(p.Room)
	if room == "" {
		room = ctl.opts.DefaultRoom
	}
	log.Info().Str("module", "signal").Str("sid", string(s.sid)).Str("room", string(room)).Str("user", p.Username).Msg("join")
	_, err := ctl.Orch.Join(ctx, s.sid, s.conn, s.cancel, orch.JoinRequest{
		Room:     room,
		Username: p.Username,
		Name:     p.Name,
		ClientID: s.clientID,
	})
	return err
}

// handleLeave leaves the current room; the connection stays open.
func (ctl *SignalWSController) handleLeave(ctx context.Context, s *session) {
	log.Info().Str("module", "signal").Str("sid", string(s.sid)).Msg("leave")
	ctl.Orch.Leave(ctx, s.sid)
	ctl.sendJSON(s, core.TypeOnly{Type: core.EventLeft})
}
