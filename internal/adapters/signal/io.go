package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, s *session) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	c := s.conn
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("sid", string(s.sid)).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("sid", string(s.sid)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("sid", string(s.sid)).Msg("ping failed")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, s *session) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(s.sid)).Msg("readPump closing")
		s.cancel()
		s.conn.Close()
		ctl.Orch.Disconnect(s.sid)
	}()

	ws := s.conn.conn
	pongWait := ctl.opts.PingPeriod * 10 / 9
	ws.SetReadLimit(ctl.opts.ReadLimit)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(s.sid)).Msg("readPump read error")
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		ctl.handleSignal(ctx, s, data)
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, s *session, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(s.sid)).Msg("bad json")
		ctl.sendError(s, "bad_payload")
		return
	}

	var err error
	switch env.Type {
	case "join":
		err = ctl.handleJoin(ctx, s, data)
	case "leave":
		ctl.handleLeave(ctx, s)
	case "ping":
		ctl.handlePing(s)
	case "change-slide":
		err = ctl.handleChangeSlide(ctx, s, data)
	case "trigger-preload":
		err = ctl.handleTriggerPreload(ctx, s, data)
	case "send-message":
		err = ctl.handleSendMessage(ctx, s, data)
	case "whiteboard-update":
		err = ctl.handleWhiteboardUpdate(ctx, s, data)
	case "whiteboard-clear":
		err = ctl.Orch.WhiteboardClear(ctx, s.sid)
	case "whiteboard-toggle":
		err = ctl.handleWhiteboardToggle(ctx, s, data)
	case "negotiation-offer":
		err = ctl.handleOffer(ctx, s, data)
	case "negotiation-answer":
		err = ctl.handleAnswer(ctx, s, data)
	case "negotiation-candidate":
		err = ctl.handleCandidate(ctx, s, data)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		err = domain.NewValidationError("unknown message type %q", env.Type)
	}
	if err != nil {
		ctl.reject(s, env.Type, err)
	}
}

// reject reports a failed command to the actor only.
func (ctl *SignalWSController) reject(s *session, typ string, err error) {
	logger := log.With().Str("module", "signal").Str("sid", string(s.sid)).Str("type", typ).Err(err).Logger()
	var verrs validator.ValidationErrors
	switch {
	case domain.IsAuthorization(err), domain.IsValidation(err):
		logger.Warn().Msg("command rejected")
	case errors.As(err, &verrs):
		logger.Warn().Msg("invalid payload")
		ctl.sendError(s, "invalid payload: "+verrs[0].Field())
		return
	case errors.Is(err, domain.ErrNotJoined):
		logger.Debug().Msg("command before join")
	default:
		logger.Error().Msg("command failed")
	}
	ctl.sendError(s, err.Error())
}

func (ctl *SignalWSController) decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return domain.NewValidationError("bad_payload")
	}
	return ctl.validate.Struct(v)
}

func (ctl *SignalWSController) sendJSON(s *session, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := s.conn.TrySend(b); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(s.sid)).Msg("sendJSON dropped")
	}
}

func (ctl *SignalWSController) sendError(s *session, msg string) {
	ctl.sendJSON(s, core.ErrorEvent{Type: core.EventError, Error: msg})
}
