package gateway

import (
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/config"
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/transcript"
)

const (
	clientTypeStart = "start"
	clientTypeStop  = "stop"
)

const (
	serverTypeStarted = "started"
	serverTypeSegment = "segment"
	serverTypeStopped = "stopped"
	serverTypeError   = "error"
)

// clientMessage is a control frame on the live socket. Audio itself travels
// as binary frames of PCM16 little-endian samples.
type clientMessage struct {
	Type       string         `json:"type"`
	Config     *config.Config `json:"config,omitempty"`
	SampleRate int            `json:"sampleRate,omitempty"`
}

type serverMessage struct {
	Type      string              `json:"type"`
	SessionID string              `json:"sessionId,omitempty"`
	Backend   string              `json:"backend,omitempty"`
	Segment   *transcript.Segment `json:"segment,omitempty"`
	Error     string              `json:"error,omitempty"`
}

type transcriptionResponse struct {
	Segments []transcript.Segment `json:"segments"`
	Count    int                  `json:"count"`
}

type progressPayload struct {
	Percent int `json:"percent"`
}
