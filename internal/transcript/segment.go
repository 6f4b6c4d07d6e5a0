package transcript

import "fmt"

// DefaultSpeaker is the label used when no diarization information is available.
const DefaultSpeaker = "Person1"

// Segment is the atomic output unit of a transcription session. Once emitted
// with IsFinal set, its ID is never reissued; interim segments are resent
// under the next ID value and replace the prior interim text for that slot.
type Segment struct {
	ID               string  `json:"id"`
	Text             string  `json:"text"`
	AudioTimeMs      int64   `json:"audioTimeMs"`
	Confidence       float64 `json:"confidence"`
	Speaker          string  `json:"speaker"`
	IsFinal          bool    `json:"isFinal"`
	IsManuallyEdited bool    `json:"isManuallyEdited"`
}

// IDAllocator issues monotonically increasing, source-tagged segment ids.
// Peek returns the next id without consuming it, so interim updates can
// reuse the slot the eventual final segment will take.
type IDAllocator struct {
	prefix string
	next   int
}

func NewIDAllocator(prefix string) *IDAllocator {
	return &IDAllocator{prefix: prefix}
}

func (a *IDAllocator) Peek() string {
	return fmt.Sprintf("%s%d", a.prefix, a.next)
}

func (a *IDAllocator) Take() string {
	id := a.Peek()
	a.next++
	return id
}
