package recognition

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/shared"
)

const (
	dialTimeout  = 3 * time.Second
	probeTimeout = 500 * time.Millisecond
	writeWait    = 10 * time.Second
)

type EngineConfig struct {
	Address string
	Backoff shared.BackoffConfig
	Log     *slog.Logger
}

// engineStart is the first frame sent on a new stream.
type engineStart struct {
	Language       string `json:"language"`
	SampleRate     int    `json:"sample_rate"`
	InterimResults bool   `json:"interim_results"`
	Continuous     bool   `json:"continuous"`
}

// engineMessage is one recognition frame from the local engine.
type engineMessage struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	IsFinal    bool    `json:"is_final"`
	Error      string  `json:"error,omitempty"`
}

// Engine is a streaming client for the locally-running recognizer. Audio goes
// out as binary PCM16 frames; partial and final recognitions come back as
// JSON frames on the same connection.
type Engine struct {
	addr    string
	mu      sync.RWMutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	ctx     context.Context
	cancel  context.CancelFunc
	cb      Callbacks
	opts    Options
	backoff shared.BackoffConfig
	log     *slog.Logger
	closed  bool
}

func NewEngine(cfg EngineConfig, opts Options, cb Callbacks) (*Engine, error) {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		addr:    engineURL(cfg.Address),
		ctx:     ctx,
		cancel:  cancel,
		cb:      cb,
		opts:    opts,
		backoff: shared.NormalizeBackoff(cfg.Backoff),
		log:     cfg.Log.With("component", "local_engine"),
	}

	if err := e.connectAndStart(); err != nil {
		cancel()
		return nil, err
	}
	return e, nil
}

// Probe reports whether a local recognizer is reachable at address. Used by
// the backend decision at session start.
func Probe(address string) bool {
	dialer := websocket.Dialer{HandshakeTimeout: probeTimeout}
	conn, _, err := dialer.Dial(engineURL(address), nil)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func engineURL(address string) string {
	if strings.Contains(address, "://") {
		return address
	}
	u := url.URL{Scheme: "ws", Host: address, Path: "/recognize"}
	return u.String()
}

func (e *Engine) connectAndStart() error {
	e.log.Info("dialing local engine", "address", e.addr)
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.DialContext(e.ctx, e.addr, nil)
	if err != nil {
		return fmt.Errorf("dial local engine: %w", err)
	}

	start := engineStart{
		Language:       e.opts.Language,
		SampleRate:     e.opts.SampleRate,
		InterimResults: e.opts.InterimResults,
		Continuous:     true,
	}
	e.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = conn.WriteJSON(start)
	e.writeMu.Unlock()
	if err != nil {
		conn.Close()
		return fmt.Errorf("send start frame: %w", err)
	}

	e.mu.Lock()
	e.conn = conn
	e.mu.Unlock()

	go e.readLoop(conn)
	return nil
}

func (e *Engine) SendAudio(pcm []byte) error {
	e.mu.RLock()
	conn := e.conn
	e.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("stream not ready")
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.BinaryMessage, pcm)
}

func (e *Engine) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if e.ctx.Err() != nil || e.isClosed() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				e.log.Info("local engine ended the stream")
				if e.cb.OnEnd != nil {
					e.cb.OnEnd()
				}
				return
			}
			e.log.Error("local engine read error", "error", err)
			if e.cb.OnError != nil {
				e.cb.OnError(err)
			}
			return
		}

		var msg engineMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			e.log.Error("failed to unmarshal engine frame", "error", err)
			continue
		}

		if msg.Error != "" {
			if e.cb.OnError != nil {
				e.cb.OnError(fmt.Errorf("engine error: %s", msg.Error))
			}
			continue
		}

		if e.cb.OnResult != nil {
			e.cb.OnResult(Result{
				Text:       msg.Text,
				Confidence: msg.Confidence,
				IsFinal:    msg.IsFinal,
			})
		}
	}
}

// Restart re-dials the engine after an engine-initiated end. The session
// treats those ends as transient while it is still running.
func (e *Engine) Restart() error {
	if e.isClosed() {
		return fmt.Errorf("engine closed")
	}

	e.mu.Lock()
	if e.conn != nil {
		e.conn.Close()
		e.conn = nil
	}
	e.mu.Unlock()

	backoff := e.backoff.Initial
	var lastErr error
	for attempts := 0; attempts < e.backoff.MaxAttempts; attempts++ {
		select {
		case <-e.ctx.Done():
			return e.ctx.Err()
		default:
		}

		if lastErr = e.connectAndStart(); lastErr == nil {
			e.log.Info("local engine restarted", "attempts", attempts+1)
			return nil
		}

		select {
		case <-e.ctx.Done():
			return e.ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, e.backoff.MaxDelay)
	}
	return fmt.Errorf("restart failed after %d attempts: %w", e.backoff.MaxAttempts, lastErr)
}

func (e *Engine) isClosed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.closed
}

func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	conn := e.conn
	e.conn = nil
	e.mu.Unlock()

	e.cancel()
	if conn != nil {
		return conn.Close()
	}
	return nil
}
