package domain

import (
	"encoding/json"
	"slices"
)

type RoomID string

// SlideArtifact is one display-ready image. Immutable once created.
type SlideArtifact struct {
	Index int    `json:"index"`
	URL   string `json:"url"`
	Name  string `json:"name"`
}

type WhiteboardMode string

const (
	WhiteboardOff     WhiteboardMode = "off"
	WhiteboardBoard   WhiteboardMode = "board"
	WhiteboardOverlay WhiteboardMode = "overlay"
)

func ParseWhiteboardMode(s string) (WhiteboardMode, error) {
	switch m := WhiteboardMode(s); m {
	case WhiteboardOff, WhiteboardBoard, WhiteboardOverlay:
		return m, nil
	}
	return "", NewValidationError("invalid whiteboard mode %q", s)
}

// BoardOp is one opaque draw operation as produced by the authority client.
type BoardOp = json.RawMessage

// RoomState is the single mutable record of a room. Only the room's
// dispatch loop may touch it.
type RoomState struct {
	CurrentSlideIndex int
	TotalSlides       int
	SlideArtifacts    []SlideArtifact
	DeckID            string
	AuthorityPresent  bool
	WhiteboardMode    WhiteboardMode
	WhiteboardLog     []BoardOp
	PreloadedIndices  map[int]struct{}
}

func NewRoomState() *RoomState {
	return &RoomState{
		WhiteboardMode:   WhiteboardOff,
		PreloadedIndices: make(map[int]struct{}),
	}
}

// CanNavigate reports whether index is a valid slide position.
func (s *RoomState) CanNavigate(index int) bool {
	return index >= 0 && index < s.TotalSlides
}

// Artifact returns the artifact at index if it has been published.
func (s *RoomState) Artifact(index int) (SlideArtifact, bool) {
	if index < 0 || index >= len(s.SlideArtifacts) {
		return SlideArtifact{}, false
	}
	a := s.SlideArtifacts[index]
	return a, a.Index == index
}

func (s *RoomState) IsPreloaded(index int) bool {
	_, ok := s.PreloadedIndices[index]
	return ok
}

// MarkPreloaded records index and reports whether it was newly added.
func (s *RoomState) MarkPreloaded(index int) bool {
	if index < 0 || index >= s.TotalSlides || s.IsPreloaded(index) {
		return false
	}
	s.PreloadedIndices[index] = struct{}{}
	return true
}

// ResetSlides drops every slide-related field.
func (s *RoomState) ResetSlides() {
	s.CurrentSlideIndex = 0
	s.TotalSlides = 0
	s.SlideArtifacts = nil
	s.DeckID = ""
	s.PreloadedIndices = make(map[int]struct{})
}

// Reset returns the state to the empty room, keeping nothing from the
// departed authority.
func (s *RoomState) Reset() {
	s.ResetSlides()
	s.AuthorityPresent = false
	s.WhiteboardMode = WhiteboardOff
	s.WhiteboardLog = nil
}

// Deck is a copy of the slide fields, used to roll back a failed job.
type Deck struct {
	CurrentSlideIndex int
	TotalSlides       int
	SlideArtifacts    []SlideArtifact
	DeckID            string
	PreloadedIndices  map[int]struct{}
}

func (s *RoomState) SaveDeck() Deck {
	pre := make(map[int]struct{}, len(s.PreloadedIndices))
	for i := range s.PreloadedIndices {
		pre[i] = struct{}{}
	}
	return Deck{
		CurrentSlideIndex: s.CurrentSlideIndex,
		TotalSlides:       s.TotalSlides,
		SlideArtifacts:    slices.Clone(s.SlideArtifacts),
		DeckID:            s.DeckID,
		PreloadedIndices:  pre,
	}
}

func (s *RoomState) RestoreDeck(d Deck) {
	s.CurrentSlideIndex = d.CurrentSlideIndex
	s.TotalSlides = d.TotalSlides
	s.SlideArtifacts = d.SlideArtifacts
	s.DeckID = d.DeckID
	s.PreloadedIndices = d.PreloadedIndices
	if s.PreloadedIndices == nil {
		s.PreloadedIndices = make(map[int]struct{})
	}
}

// RoomSnapshot is the read-only view handed to joiners and the HTTP API.
type RoomSnapshot struct {
	CurrentSlide     int             `json:"currentSlide"`
	TotalSlides      int             `json:"totalSlides"`
	SlideData        []SlideArtifact `json:"slideData"`
	DeckID           string          `json:"deckId,omitempty"`
	AuthorityPresent bool            `json:"isTeacherPresent"`
	WhiteboardMode   WhiteboardMode  `json:"whiteboardMode"`
	WhiteboardState  []BoardOp       `json:"whiteboardState"`
	PreloadedSlides  []int           `json:"preloadedSlides"`
	Participants     []Participant   `json:"participants"`
}

func (s *RoomState) Snapshot(roster []Participant) RoomSnapshot {
	pre := make([]int, 0, len(s.PreloadedIndices))
	for i := range s.PreloadedIndices {
		pre = append(pre, i)
	}
	slices.Sort(pre)
	slidesCopy := slices.Clone(s.SlideArtifacts)
	if slidesCopy == nil {
		slidesCopy = []SlideArtifact{}
	}
	board := slices.Clone(s.WhiteboardLog)
	if board == nil {
		board = []BoardOp{}
	}
	return RoomSnapshot{
		CurrentSlide:     s.CurrentSlideIndex,
		TotalSlides:      s.TotalSlides,
		SlideData:        slidesCopy,
		DeckID:           s.DeckID,
		AuthorityPresent: s.AuthorityPresent,
		WhiteboardMode:   s.WhiteboardMode,
		WhiteboardState:  board,
		PreloadedSlides:  pre,
		Participants:     roster,
	}
}
