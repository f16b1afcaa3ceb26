// Package whiteboard merges draw operations into a room's whiteboard log.
//
// The default SingleWriter accepts operations from authority participants
// only and appends them in arrival order; the room dispatch loop already
// serializes them. A multi-writer merge (for rooms that admit several
// simultaneous authorities drawing at once) plugs in by implementing
// Strategy and passing it to the orchestrator; the orchestrator never
// touches the log directly.
package whiteboard

import (
	"bytes"
	"encoding/json"
	"slices"

	"github.com/dkeye/Classroom/internal/domain"
)

// MaxOpSize bounds a single operation payload.
const MaxOpSize = 64 << 10

// Strategy mutates RoomState.WhiteboardLog. Implementations are called from
// the room dispatch loop only.
type Strategy interface {
	// Apply merges op into the log and returns the operation to replicate
	// to the other participants.
	Apply(state *domain.RoomState, actor domain.Participant, op domain.BoardOp) (domain.BoardOp, error)
	// Clear empties the log.
	Clear(state *domain.RoomState, actor domain.Participant) error
	// Snapshot returns what a late joiner needs to rebuild the board.
	Snapshot(state *domain.RoomState) []domain.BoardOp
}

// SingleWriter is an authority-gated append log. An operation whose payload
// is a JSON array is a full board snapshot and replaces the log, which keeps
// late-join replay short when the client periodically sends snapshots.
type SingleWriter struct{}

var _ Strategy = SingleWriter{}

func (SingleWriter) Apply(state *domain.RoomState, actor domain.Participant, op domain.BoardOp) (domain.BoardOp, error) {
	if !actor.IsAuthority() {
		return nil, &domain.AuthorizationError{Action: "update whiteboard"}
	}
	trimmed := bytes.TrimSpace(op)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, domain.NewValidationError("empty whiteboard update")
	}
	if len(trimmed) > MaxOpSize {
		return nil, domain.NewValidationError("whiteboard update too large")
	}
	if !json.Valid(trimmed) {
		return nil, domain.NewValidationError("whiteboard update is not valid JSON")
	}

	stored := domain.BoardOp(slices.Clone(trimmed))
	if trimmed[0] == '[' {
		var ops []json.RawMessage
		if err := json.Unmarshal(trimmed, &ops); err != nil {
			return nil, domain.NewValidationError("bad whiteboard snapshot")
		}
		state.WhiteboardLog = make([]domain.BoardOp, 0, len(ops))
		for _, o := range ops {
			state.WhiteboardLog = append(state.WhiteboardLog, domain.BoardOp(o))
		}
		return stored, nil
	}
	state.WhiteboardLog = append(state.WhiteboardLog, stored)
	return stored, nil
}

func (SingleWriter) Clear(state *domain.RoomState, actor domain.Participant) error {
	if !actor.IsAuthority() {
		return &domain.AuthorizationError{Action: "clear whiteboard"}
	}
	state.WhiteboardLog = nil
	return nil
}

func (SingleWriter) Snapshot(state *domain.RoomState) []domain.BoardOp {
	return slices.Clone(state.WhiteboardLog)
}
