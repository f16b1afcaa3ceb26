package orch

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/google/uuid"
)

// SendMessage relays a chat line from any participant to the whole room.
func (o *Orchestrator) SendMessage(ctx context.Context, sid core.SessionID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.NewValidationError("message is empty")
	}
	text = truncateRunes(text, o.chatMaxLen)

	return o.actorCommand(ctx, sid, func(r *Room, actor domain.Participant) error {
		if !o.chatLimiter.Allow(sid) {
			return domain.NewValidationError("too many messages, slow down")
		}
		r.broadcast(core.NewMessageEvent{
			Type: core.EventNewMessage,
			Message: core.ChatMessage{
				ID:        uuid.NewString(),
				Sender:    actor.DisplayName,
				Role:      actor.Role,
				Text:      text,
				Timestamp: o.timestamp(),
			},
		})
		return nil
	})
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
