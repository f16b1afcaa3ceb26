package rtc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfiguration_Default(t *testing.T) {
	cfg, err := NewConfiguration(nil)
	require.NoError(t, err)
	require.Len(t, cfg.ICEServers, 1)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.ICEServers[0].URLs)
}

func TestNewConfiguration_TURN(t *testing.T) {
	cfg, err := NewConfiguration([]ICEServer{
		{URLs: []string{"stun:stun.example.org:3478"}},
		{URLs: []string{"turn:turn.example.org:3478?transport=udp"}, Username: "u", Credential: "p"},
	})
	require.NoError(t, err)
	require.Len(t, cfg.ICEServers, 2)

	b, err := json.Marshal(ForClient(cfg))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"iceServers"`)
	assert.Contains(t, string(b), `turn:turn.example.org`)
}

func TestNewConfiguration_Invalid(t *testing.T) {
	_, err := NewConfiguration([]ICEServer{{URLs: []string{"http://not-ice"}}})
	assert.Error(t, err)

	_, err = NewConfiguration([]ICEServer{{URLs: []string{"turn:turn.example.org"}}})
	assert.Error(t, err, "turn without credentials")
}
