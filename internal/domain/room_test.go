package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomState_CanNavigate(t *testing.T) {
	s := NewRoomState()
	assert.False(t, s.CanNavigate(0), "empty deck has no valid index")

	s.TotalSlides = 3
	assert.True(t, s.CanNavigate(0))
	assert.True(t, s.CanNavigate(2))
	assert.False(t, s.CanNavigate(3))
	assert.False(t, s.CanNavigate(-1))
}

func TestRoomState_MarkPreloaded(t *testing.T) {
	s := NewRoomState()
	s.TotalSlides = 2

	assert.True(t, s.MarkPreloaded(1))
	assert.False(t, s.MarkPreloaded(1), "second mark is a no-op")
	assert.False(t, s.MarkPreloaded(2), "out of range")
	assert.False(t, s.MarkPreloaded(-1))
	assert.Len(t, s.PreloadedIndices, 1)
}

func TestRoomState_Reset(t *testing.T) {
	s := NewRoomState()
	s.TotalSlides = 2
	s.CurrentSlideIndex = 1
	s.SlideArtifacts = []SlideArtifact{{Index: 0}, {Index: 1}}
	s.AuthorityPresent = true
	s.WhiteboardMode = WhiteboardOverlay
	s.WhiteboardLog = []BoardOp{json.RawMessage(`{"x":1}`)}
	s.MarkPreloaded(1)

	s.Reset()

	assert.Equal(t, 0, s.TotalSlides)
	assert.Equal(t, 0, s.CurrentSlideIndex)
	assert.Empty(t, s.SlideArtifacts)
	assert.False(t, s.AuthorityPresent)
	assert.Equal(t, WhiteboardOff, s.WhiteboardMode)
	assert.Empty(t, s.WhiteboardLog)
	assert.Empty(t, s.PreloadedIndices)
}

func TestRoomState_SaveRestoreDeck(t *testing.T) {
	s := NewRoomState()
	s.TotalSlides = 1
	s.DeckID = "old"
	s.SlideArtifacts = []SlideArtifact{{Index: 0, Name: "slide-1.jpg"}}
	s.MarkPreloaded(0)

	saved := s.SaveDeck()
	s.ResetSlides()
	s.TotalSlides = 5
	s.DeckID = "new"

	s.RestoreDeck(saved)
	assert.Equal(t, 1, s.TotalSlides)
	assert.Equal(t, "old", s.DeckID)
	assert.True(t, s.IsPreloaded(0))
	a, ok := s.Artifact(0)
	require.True(t, ok)
	assert.Equal(t, "slide-1.jpg", a.Name)
}

func TestRoomState_SnapshotIsSortedCopy(t *testing.T) {
	s := NewRoomState()
	s.TotalSlides = 4
	s.MarkPreloaded(3)
	s.MarkPreloaded(1)

	snap := s.Snapshot(nil)
	assert.Equal(t, []int{1, 3}, snap.PreloadedSlides)
	assert.NotNil(t, snap.SlideData)
	assert.NotNil(t, snap.WhiteboardState)
}

func TestParseWhiteboardMode(t *testing.T) {
	m, err := ParseWhiteboardMode("overlay")
	require.NoError(t, err)
	assert.Equal(t, WhiteboardOverlay, m)

	_, err = ParseWhiteboardMode("fullscreen")
	assert.True(t, IsValidation(err))
}

func TestNewParticipant(t *testing.T) {
	now := time.Unix(100, 0)
	p, err := NewParticipant("c1", Identity{Username: "ada", Role: RoleAuthority}, now)
	require.NoError(t, err)
	assert.Equal(t, "ada", p.DisplayName, "display name falls back to username")
	assert.True(t, p.IsAuthority())

	_, err = NewParticipant("c2", Identity{Username: "", Role: RoleViewer}, now)
	assert.ErrorIs(t, err, ErrUsernameEmpty)

	_, err = NewParticipant("c3", Identity{Username: "bob", Role: "admin"}, now)
	assert.True(t, IsValidation(err))
}
