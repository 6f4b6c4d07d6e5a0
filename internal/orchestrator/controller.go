package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/audio"
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/config"
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/recognition"
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/remote"
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/shared"
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/transcript"
)

type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseRunning  Phase = "running"
	PhaseStopping Phase = "stopping"
	PhaseStopped  Phase = "stopped"
)

const defaultFlushInterval = 10 * time.Second

// LocalEngine is what the controller needs from the local recognizer client.
type LocalEngine interface {
	SendAudio(pcm []byte) error
	Restart() error
	Close() error
}

// Recognizer is the remote call shared with the batch pipeline.
type Recognizer interface {
	Recognize(ctx context.Context, audioData []byte, encoding string, sampleRateHertz int) (*remote.Response, error)
}

// Options wire the controller to its collaborators. The function fields exist
// so tests can substitute fakes for the engine and the remote provider.
type Options struct {
	LocalAddress  string
	FlushInterval time.Duration
	Log           *slog.Logger

	ProbeLocal func(address string) bool
	DialLocal  func(cfg recognition.EngineConfig, opts recognition.Options, cb recognition.Callbacks) (LocalEngine, error)
	NewRemote  func(cfg config.Config) Recognizer
	Now        func() time.Time
}

func (o Options) normalized() Options {
	if o.Log == nil {
		o.Log = slog.Default()
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = defaultFlushInterval
	}
	if o.ProbeLocal == nil {
		o.ProbeLocal = func(address string) bool {
			return address != "" && recognition.Probe(address)
		}
	}
	if o.DialLocal == nil {
		o.DialLocal = func(cfg recognition.EngineConfig, opts recognition.Options, cb recognition.Callbacks) (LocalEngine, error) {
			return recognition.NewEngine(cfg, opts, cb)
		}
	}
	if o.NewRemote == nil {
		o.NewRemote = func(cfg config.Config) Recognizer {
			return remote.NewClient(cfg, o.Log)
		}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Controller owns one live session: it picks the backend once at start,
// restarts the local engine when it ends on its own, and falls over to the
// remote recognizer exactly once on a transport failure.
type Controller struct {
	opts Options
	log  *slog.Logger

	mu        sync.Mutex
	sessionID string
	phase     Phase
	backend   recognition.Kind
	cfg       config.Config
	onSegment func(transcript.Segment)

	detector  *transcript.Detector
	engine    LocalEngine
	remoteRec Recognizer
	ids       *transcript.IDAllocator

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	transcribing atomic.Bool
	fellBack     bool

	bufMu        sync.Mutex
	buffer       []byte
	bufferStart  int64
	totalSamples int64
	sampleRate   int
}

func NewController(opts Options) *Controller {
	opts = opts.normalized()
	return &Controller{
		opts:  opts,
		log:   opts.Log.With("component", "live_session"),
		phase: PhaseIdle,
	}
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Controller) Backend() recognition.Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend
}

// Start begins a live session. A second call while running is a warning
// no-op, not an error.
func (c *Controller) Start(cfg *config.Config, source Source, onSegment func(transcript.Segment)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase == PhaseRunning {
		c.log.Warn("start ignored, session already running", "session_id", c.sessionID)
		return nil
	}
	if cfg == nil {
		return shared.NewConfigurationError("no config supplied")
	}

	normalized := cfg.Normalized()
	if err := normalized.Validate(); err != nil {
		return err
	}

	localAvailable := c.opts.ProbeLocal(c.opts.LocalAddress)
	kind, err := recognition.Select(normalized, localAvailable)
	if err != nil {
		return err
	}

	c.sessionID = uuid.New().String()
	c.log = c.opts.Log.With("component", "live_session", "session_id", c.sessionID)
	c.cfg = normalized
	c.onSegment = onSegment
	c.backend = kind
	c.fellBack = false
	c.ids = transcript.NewIDAllocator("live-")
	c.sampleRate = source.SampleRate()
	c.buffer = nil
	c.bufferStart = 0
	c.totalSamples = 0
	c.ctx, c.cancel = context.WithCancel(context.Background())

	switch kind {
	case recognition.KindLocal:
		if err := c.startLocalLocked(); err != nil {
			c.cancel()
			return err
		}
	case recognition.KindRemote:
		c.startRemoteLocked()
	}

	c.phase = PhaseRunning
	c.transcribing.Store(true)

	c.wg.Add(1)
	go c.pumpLoop(source)

	c.log.Info("live session started", "backend", kind, "sample_rate", c.sampleRate)
	return nil
}

func (c *Controller) startLocalLocked() error {
	c.detector = transcript.NewDetector(transcript.DetectorConfig{
		MaxLengthChars: c.cfg.SegmentMaxLengthChars,
		SilenceWindow:  c.cfg.SilenceWindow(),
		IDPrefix:       "live-",
		Now:            c.opts.Now,
		Log:            c.log,
	}, c.emitSegment)

	engine, err := c.opts.DialLocal(
		recognition.EngineConfig{Address: c.opts.LocalAddress, Log: c.log},
		recognition.Options{
			Language:       c.cfg.LanguageCode,
			SampleRate:     c.sampleRate,
			InterimResults: true,
		},
		recognition.Callbacks{
			OnResult: c.onEngineResult,
			OnEnd:    c.onEngineEnd,
			OnError:  c.onEngineError,
		},
	)
	if err != nil {
		c.detector = nil
		return fmt.Errorf("start local engine: %w", err)
	}

	c.engine = engine
	c.detector.Start()
	return nil
}

func (c *Controller) startRemoteLocked() {
	c.remoteRec = c.opts.NewRemote(c.cfg)
	c.wg.Add(1)
	go c.flushLoop(c.ctx)
}

func (c *Controller) pumpLoop(source Source) {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		case frame, ok := <-source.Audio():
			if !ok {
				return
			}
			c.handleFrame(frame)
		}
	}
}

func (c *Controller) handleFrame(frame []byte) {
	c.mu.Lock()
	backend := c.backend
	engine := c.engine
	c.mu.Unlock()

	c.bufMu.Lock()
	start := c.totalSamples
	c.totalSamples += int64(len(frame) / 2)
	if backend == recognition.KindRemote {
		if len(c.buffer) == 0 {
			c.bufferStart = start
		}
		c.buffer = append(c.buffer, frame...)
	}
	c.bufMu.Unlock()

	if backend == recognition.KindLocal && engine != nil {
		if err := engine.SendAudio(frame); err != nil {
			c.log.Error("failed to send audio to local engine", "error", err)
			if shared.IsNetworkError(err) {
				c.fallbackToRemote(err)
			}
		}
	}
}

func (c *Controller) onEngineResult(r recognition.Result) {
	c.mu.Lock()
	detector := c.detector
	c.mu.Unlock()
	if detector == nil {
		return
	}
	detector.HandleEvent(transcript.Event{
		Text:       r.Text,
		Confidence: r.Confidence,
		IsFinal:    r.IsFinal,
	})
}

// onEngineEnd treats an engine-initiated end as transient while running.
func (c *Controller) onEngineEnd() {
	c.mu.Lock()
	running := c.phase == PhaseRunning && c.backend == recognition.KindLocal
	engine := c.engine
	c.mu.Unlock()
	if !running || engine == nil {
		return
	}

	c.log.Info("local engine ended unexpectedly, restarting")
	go func() {
		if err := engine.Restart(); err != nil {
			c.log.Error("local engine restart failed", "error", err)
		}
	}()
}

func (c *Controller) onEngineError(err error) {
	c.log.Error("local engine error", "error", err)
	if shared.IsNetworkError(err) {
		c.fallbackToRemote(err)
	}
}

// fallbackToRemote switches the session to the remote backend for the rest of
// its lifetime. It happens at most once, and only for network-class errors.
func (c *Controller) fallbackToRemote(cause error) {
	c.mu.Lock()
	if c.fellBack || c.phase != PhaseRunning || c.backend != recognition.KindLocal {
		c.mu.Unlock()
		return
	}
	if c.cfg.APIKey == "" {
		c.mu.Unlock()
		c.log.Warn("network error but no remote credential, staying on local engine", "error", cause)
		return
	}
	c.fellBack = true
	engine := c.engine
	detector := c.detector
	c.engine = nil
	c.detector = nil
	c.backend = recognition.KindRemote
	c.startRemoteLocked()
	c.mu.Unlock()

	c.log.Warn("falling back to remote backend", "error", cause)
	if engine != nil {
		engine.Close()
	}
	if detector != nil {
		detector.Stop()
	}
}

func (c *Controller) flushLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.flushOnce(ctx)
		}
	}
}

// flushOnce submits the rolling buffer as one independent request. A failed
// flush logs and drops that window's audio; the session continues.
func (c *Controller) flushOnce(ctx context.Context) {
	c.bufMu.Lock()
	if len(c.buffer) == 0 {
		c.bufMu.Unlock()
		return
	}
	buf := c.buffer
	start := c.bufferStart
	c.buffer = nil
	c.bufMu.Unlock()

	c.mu.Lock()
	rec := c.remoteRec
	rate := c.sampleRate
	c.mu.Unlock()
	if rec == nil {
		return
	}

	payload := audio.EncodeWAV(audio.PCMBytesToInt16(buf), rate)
	resp, err := rec.Recognize(ctx, payload, "LINEAR16", rate)
	if err != nil {
		c.log.Error("remote flush failed, dropping window", "error", err, "bytes", len(buf))
		return
	}

	startMs := start * 1000 / int64(rate)
	c.emitRemoteResults(resp, startMs)
}

func (c *Controller) emitRemoteResults(resp *remote.Response, startMs int64) {
	c.mu.Lock()
	emit := c.onSegment
	ids := c.ids
	c.mu.Unlock()
	if emit == nil || ids == nil {
		return
	}

	for _, res := range resp.Results {
		alt, ok := res.First()
		if !ok || strings.TrimSpace(alt.Transcript) == "" {
			continue
		}
		emit(transcript.Segment{
			ID:          ids.Take(),
			Text:        strings.TrimSpace(alt.Transcript),
			AudioTimeMs: startMs,
			Confidence:  alt.Confidence,
			Speaker:     speakerLabels(alt.Words),
			IsFinal:     true,
		})
	}
}

// speakerLabels joins the distinct diarization tags observed in a result.
func speakerLabels(words []remote.WordInfo) string {
	seen := make(map[int]bool)
	var tags []int
	for _, w := range words {
		if w.SpeakerTag > 0 && !seen[w.SpeakerTag] {
			seen[w.SpeakerTag] = true
			tags = append(tags, w.SpeakerTag)
		}
	}
	if len(tags) == 0 {
		return transcript.DefaultSpeaker
	}
	sort.Ints(tags)
	labels := make([]string, len(tags))
	for i, tag := range tags {
		labels[i] = fmt.Sprintf("Person%d", tag)
	}
	return strings.Join(labels, ", ")
}

func (c *Controller) emitSegment(seg transcript.Segment) {
	c.mu.Lock()
	emit := c.onSegment
	c.mu.Unlock()
	if emit != nil {
		emit(seg)
	}
}

// Stop halts the session deterministically. Idempotent; it only affects live
// sessions, never an in-flight batch job.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.phase != PhaseRunning {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseStopping
	engine := c.engine
	detector := c.detector
	c.engine = nil
	c.detector = nil
	c.remoteRec = nil
	c.mu.Unlock()

	c.cancel()
	if engine != nil {
		engine.Close()
	}
	if detector != nil {
		detector.Stop()
	}
	c.wg.Wait()

	c.bufMu.Lock()
	c.buffer = nil
	c.bufMu.Unlock()

	c.mu.Lock()
	c.onSegment = nil
	c.phase = PhaseStopped
	c.mu.Unlock()

	c.transcribing.Store(false)
	c.log.Info("live session stopped")
}

func (c *Controller) IsTranscribing() bool {
	return c.transcribing.Load()
}
