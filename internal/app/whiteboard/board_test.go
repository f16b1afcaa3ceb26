package whiteboard

import (
	"encoding/json"
	"testing"

	"github.com/dkeye/Classroom/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	teacher = domain.Participant{ConnectionID: "t", Role: domain.RoleAuthority}
	student = domain.Participant{ConnectionID: "s", Role: domain.RoleViewer}
)

func TestSingleWriter_AppendsAuthorityOps(t *testing.T) {
	s := domain.NewRoomState()
	w := SingleWriter{}

	out, err := w.Apply(s, teacher, json.RawMessage(`{"tool":"pen","x":1}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"tool":"pen","x":1}`, string(out))

	_, err = w.Apply(s, teacher, json.RawMessage(`{"tool":"pen","x":2}`))
	require.NoError(t, err)
	assert.Len(t, s.WhiteboardLog, 2)
}

func TestSingleWriter_RejectsViewer(t *testing.T) {
	s := domain.NewRoomState()
	w := SingleWriter{}
	_, err := w.Apply(s, teacher, json.RawMessage(`{"x":1}`))
	require.NoError(t, err)

	_, err = w.Apply(s, student, json.RawMessage(`{"x":2}`))
	assert.True(t, domain.IsAuthorization(err))
	assert.ErrorIs(t, w.Clear(s, student), domain.ErrAuthorityOnly)
	assert.Len(t, s.WhiteboardLog, 1, "log untouched by viewer")
}

func TestSingleWriter_SnapshotReplacesLog(t *testing.T) {
	s := domain.NewRoomState()
	w := SingleWriter{}
	for i := 0; i < 5; i++ {
		_, err := w.Apply(s, teacher, json.RawMessage(`{"x":0}`))
		require.NoError(t, err)
	}

	_, err := w.Apply(s, teacher, json.RawMessage(`[{"x":1},{"x":2}]`))
	require.NoError(t, err)
	snap := w.Snapshot(s)
	require.Len(t, snap, 2)
	assert.JSONEq(t, `{"x":2}`, string(snap[1]))
}

func TestSingleWriter_InvalidOps(t *testing.T) {
	s := domain.NewRoomState()
	w := SingleWriter{}
	for _, raw := range []string{``, `null`, `{broken`} {
		_, err := w.Apply(s, teacher, json.RawMessage(raw))
		assert.True(t, domain.IsValidation(err), "payload %q", raw)
	}
	assert.Empty(t, s.WhiteboardLog)
}

func TestSingleWriter_Clear(t *testing.T) {
	s := domain.NewRoomState()
	w := SingleWriter{}
	_, err := w.Apply(s, teacher, json.RawMessage(`{"x":1}`))
	require.NoError(t, err)

	require.NoError(t, w.Clear(s, teacher))
	assert.Empty(t, w.Snapshot(s))
}
