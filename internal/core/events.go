package core

import (
	"encoding/json"

	"github.com/dkeye/Classroom/internal/domain"
)

// Outbound event types.
const (
	EventJoined              = "joined"
	EventParticipantsUpdated = "participants-updated"
	EventSlideChanged        = "slide-changed"
	EventUploadStarted       = "upload-started"
	EventTotalSlides         = "total-slides"
	EventSlideReady          = "slide-ready"
	EventSlidePreloaded      = "slide-preloaded"
	EventConversionProgress  = "conversion-progress"
	EventUploadComplete      = "upload-complete"
	EventNewMessage          = "new-message"
	EventWhiteboardUpdate    = "whiteboard-update"
	EventWhiteboardClear     = "whiteboard-clear"
	EventWhiteboardToggle    = "whiteboard-toggle"
	EventAuthorityLeft       = "authority-left"
	EventResourceAdded       = "resource-added"
	EventResourceRemoved     = "resource-removed"
	EventNegotiationOffer    = "negotiation-offer"
	EventNegotiationAnswer   = "negotiation-answer"
	EventNegotiationCand     = "negotiation-candidate"
	EventLeft                = "left"
	EventError               = "error"
	EventPong                = "pong"
)

type JoinedEvent struct {
	Type        string              `json:"type"`
	State       domain.RoomSnapshot `json:"state"`
	Role        domain.Role         `json:"role"`
	Participant domain.Participant  `json:"participant"`
	RTC         any                 `json:"rtc,omitempty"`
}

type ParticipantsEvent struct {
	Type         string               `json:"type"`
	Participants []domain.Participant `json:"participants"`
}

type SlideChangedEvent struct {
	Type        string `json:"type"`
	SlideNumber int    `json:"slideNumber"`
	TotalSlides int    `json:"totalSlides"`
	Timestamp   int64  `json:"timestamp"`
}

type UploadStartedEvent struct {
	Type      string `json:"type"`
	JobID     string `json:"jobId"`
	Filename  string `json:"filename"`
	Timestamp int64  `json:"timestamp"`
}

type TotalSlidesEvent struct {
	Type        string `json:"type"`
	JobID       string `json:"jobId"`
	TotalSlides int    `json:"totalSlides"`
}

type SlideReadyEvent struct {
	Type  string `json:"type"`
	JobID string `json:"jobId"`
	URL   string `json:"url"`
	Index int    `json:"index"`
}

type SlidePreloadedEvent struct {
	Type       string `json:"type"`
	JobID      string `json:"jobId"`
	SlideIndex int    `json:"slideIndex"`
	URL        string `json:"url"`
	FileSize   int64  `json:"fileSize,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

type ProgressEvent struct {
	Type            string `json:"type"`
	JobID           string `json:"jobId"`
	Progress        int    `json:"progress"`
	CompletedSlides int    `json:"completedSlides"`
	TotalSlides     int    `json:"totalSlides"`
}

type UploadCompleteEvent struct {
	Type        string `json:"type"`
	JobID       string `json:"jobId"`
	TotalSlides int    `json:"totalSlides"`
	Timestamp   int64  `json:"timestamp"`
}

// ChatMessage is one relayed chat line.
type ChatMessage struct {
	ID        string      `json:"id"`
	Sender    string      `json:"sender"`
	Role      domain.Role `json:"role"`
	Text      string      `json:"text"`
	Timestamp int64       `json:"timestamp"`
}

type NewMessageEvent struct {
	Type    string      `json:"type"`
	Message ChatMessage `json:"message"`
}

type WhiteboardUpdateEvent struct {
	Type      string          `json:"type"`
	Update    json.RawMessage `json:"update"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

type WhiteboardToggleEvent struct {
	Type        string                `json:"type"`
	Mode        domain.WhiteboardMode `json:"mode"`
	TriggeredBy string                `json:"triggeredBy,omitempty"`
}

type AuthorityLeftEvent struct {
	Type      string              `json:"type"`
	State     domain.RoomSnapshot `json:"state"`
	Timestamp int64               `json:"timestamp"`
}

type ResourceAddedEvent struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	SafeName  string `json:"safeName"`
	URL       string `json:"url"`
	Size      int64  `json:"size"`
	MIME      string `json:"mime"`
	Timestamp int64  `json:"timestamp"`
}

type ResourceRemovedEvent struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	Timestamp int64  `json:"timestamp"`
}

// SignalEvent carries an opaque negotiation payload between peers.
type SignalEvent struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	SenderID SessionID       `json:"senderId"`
}

type ErrorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// TypeOnly is used for payload-less events such as pong and whiteboard-clear.
type TypeOnly struct {
	Type string `json:"type"`
}
