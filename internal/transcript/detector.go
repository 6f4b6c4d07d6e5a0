package transcript

import (
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	defaultPollInterval  = 500 * time.Millisecond
	defaultSilenceWindow = 2 * time.Second

	// recognizerLatency approximates how far behind the audio the first
	// interim text of a segment arrives. The estimated start time is frozen
	// for the whole segment.
	recognizerLatency = time.Second
)

// Event is one partial or final recognition result from the local engine.
type Event struct {
	Text       string
	Confidence float64
	IsFinal    bool
}

type DetectorConfig struct {
	MaxLengthChars int
	SilenceWindow  time.Duration
	PollInterval   time.Duration
	IDPrefix       string
	Now            func() time.Time
	Log            *slog.Logger
}

// Detector converts a stream of partial/final recognition events into
// discrete final segments. Any one of four triggers closes the open segment:
// an engine-final event, the interim text exceeding MaxLengthChars, the
// interim text ending a sentence followed by whitespace, or no update
// arriving within SilenceWindow. Event delivery and the silence poll both
// mutate the open-segment state, so everything runs under one mutex.
type Detector struct {
	mu   sync.Mutex
	emit func(Segment)
	ids  *IDAllocator
	log  *slog.Logger

	maxLength     int
	silenceWindow time.Duration
	pollInterval  time.Duration
	now           func() time.Time

	sessionStart time.Time
	open         bool
	text         string
	confidence   float64
	audioTimeMs  int64
	lastUpdate   time.Time
	lastInterim  string

	done    chan struct{}
	wg      sync.WaitGroup
	started bool
	stopped bool
}

func NewDetector(cfg DetectorConfig, emit func(Segment)) *Detector {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.SilenceWindow <= 0 {
		cfg.SilenceWindow = defaultSilenceWindow
	}
	prefix := cfg.IDPrefix
	if prefix == "" {
		prefix = "live-"
	}

	return &Detector{
		emit:          emit,
		ids:           NewIDAllocator(prefix),
		log:           cfg.Log.With("component", "segment_detector"),
		maxLength:     cfg.MaxLengthChars,
		silenceWindow: cfg.SilenceWindow,
		pollInterval:  cfg.PollInterval,
		now:           cfg.Now,
		done:          make(chan struct{}),
	}
}

// Start records the session start time and launches the silence poll.
func (d *Detector) Start() {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	d.sessionStart = d.now()
	d.mu.Unlock()

	d.wg.Add(1)
	go d.silenceLoop()
}

func (d *Detector) silenceLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.done:
			return
		case <-ticker.C:
			d.pollSilence()
		}
	}
}

func (d *Detector) pollSilence() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.open || strings.TrimSpace(d.text) == "" {
		return
	}
	if d.now().Sub(d.lastUpdate) >= d.silenceWindow {
		d.log.Debug("silence trigger", "idle", d.now().Sub(d.lastUpdate))
		d.finalizeLocked()
	}
}

// HandleEvent processes one recognition event. Interim updates are re-emitted
// only when the text actually changed.
func (d *Detector) HandleEvent(evt Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if !d.open {
		if strings.TrimSpace(evt.Text) == "" {
			return
		}
		d.open = true
		elapsed := d.now().Sub(d.sessionStart) - recognizerLatency
		if elapsed < 0 {
			elapsed = 0
		}
		d.audioTimeMs = elapsed.Milliseconds()
	}

	d.text = evt.Text
	d.confidence = evt.Confidence
	d.lastUpdate = d.now()

	switch {
	case evt.IsFinal:
		d.finalizeLocked()
	case utf8.RuneCountInString(evt.Text) > d.maxLength:
		d.finalizeLocked()
	case endsCompletedUtterance(evt.Text):
		d.finalizeLocked()
	default:
		d.emitInterimLocked()
	}
}

func (d *Detector) finalizeLocked() {
	text := strings.TrimSpace(d.text)
	if text != "" {
		d.emit(Segment{
			ID:          d.ids.Take(),
			Text:        text,
			AudioTimeMs: d.audioTimeMs,
			Confidence:  d.confidence,
			Speaker:     DefaultSpeaker,
			IsFinal:     true,
		})
	}
	d.open = false
	d.text = ""
	d.confidence = 0
	d.audioTimeMs = 0
	d.lastInterim = ""
}

func (d *Detector) emitInterimLocked() {
	if d.text == d.lastInterim {
		return
	}
	d.lastInterim = d.text

	d.emit(Segment{
		ID:          d.ids.Peek(),
		Text:        d.text,
		AudioTimeMs: d.audioTimeMs,
		Confidence:  d.confidence,
		Speaker:     DefaultSpeaker,
		IsFinal:     false,
	})
}

// Stop halts the silence poll and drops any pending interim state. Idempotent.
func (d *Detector) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	started := d.started
	d.open = false
	d.text = ""
	d.lastInterim = ""
	d.mu.Unlock()

	close(d.done)
	if started {
		d.wg.Wait()
	}
}

// endsCompletedUtterance reports whether interim text reads as a finished
// sentence: sentence punctuation followed by trailing whitespace.
func endsCompletedUtterance(text string) bool {
	if text == "" {
		return false
	}
	last := text[len(text)-1]
	if last != ' ' && last != '\t' && last != '\n' && last != '\r' {
		return false
	}
	trimmed := strings.TrimRight(text, " \t\n\r")
	if trimmed == "" {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}
