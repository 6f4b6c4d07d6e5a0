package orchestrator

// Source supplies raw PCM16 little-endian mono audio frames for a live
// session. The channel closes when the capture side is done.
type Source interface {
	Audio() <-chan []byte
	SampleRate() int
}

// ChanSource is the channel-backed Source used by the gateway and tests.
type ChanSource struct {
	frames chan []byte
	rate   int
}

func NewChanSource(rate, buffer int) *ChanSource {
	return &ChanSource{
		frames: make(chan []byte, buffer),
		rate:   rate,
	}
}

func (s *ChanSource) Audio() <-chan []byte { return s.frames }
func (s *ChanSource) SampleRate() int      { return s.rate }

// Push hands one frame to the session, dropping it if the session is not
// keeping up. Live capture must never block on a slow consumer.
func (s *ChanSource) Push(frame []byte) bool {
	select {
	case s.frames <- frame:
		return true
	default:
		return false
	}
}

func (s *ChanSource) Close() { close(s.frames) }
