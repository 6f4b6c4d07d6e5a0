package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/config"
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/orchestrator"
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/transcript"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024

	defaultSampleRate = 16000
	sourceBuffer      = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// LiveServer upgrades clients to the live transcription socket. Each
// connection owns one session controller; the socket closing ends the session.
type LiveServer struct {
	base   config.Config
	opts   orchestrator.Options
	logger *slog.Logger
}

func NewLiveServer(base config.Config, opts orchestrator.Options, logger *slog.Logger) *LiveServer {
	return &LiveServer{
		base:   base.Normalized(),
		opts:   opts,
		logger: logger.With("component", "live_server"),
	}
}

func (s *LiveServer) HandleConnection(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return err
	}

	conn := newLiveConn(ws, s.logger)
	controller := orchestrator.NewController(s.opts)

	go conn.writePump()
	conn.readPump(s.base, controller)

	controller.Stop()
	conn.Close()
	return nil
}

type liveConn struct {
	ws     *websocket.Conn
	logger *slog.Logger
	send   chan *serverMessage
	done   chan struct{}

	mu     sync.Mutex
	closed bool

	// source is only touched from readPump.
	source *orchestrator.ChanSource
}

func newLiveConn(ws *websocket.Conn, logger *slog.Logger) *liveConn {
	return &liveConn{
		ws:     ws,
		logger: logger,
		send:   make(chan *serverMessage, 256),
		done:   make(chan struct{}),
	}
}

func (c *liveConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	return c.ws.Close()
}

func (c *liveConn) enqueue(msg *serverMessage) {
	select {
	case <-c.done:
	case c.send <- msg:
	default:
		c.logger.Warn("send buffer full, dropping message", "type", msg.Type)
	}
}

func (c *liveConn) readPump(base config.Config, controller *orchestrator.Controller) {
	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("read error", "error", err)
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if c.source == nil {
				continue
			}
			if !c.source.Push(message) {
				c.logger.Warn("session not keeping up, dropping audio frame", "bytes", len(message))
			}

		case websocket.TextMessage:
			var msg clientMessage
			if err := json.Unmarshal(message, &msg); err != nil {
				c.logger.Error("unmarshal error", "error", err)
				continue
			}
			c.handleControl(msg, base, controller)
		}
	}
}

func (c *liveConn) handleControl(msg clientMessage, base config.Config, controller *orchestrator.Controller) {
	switch msg.Type {
	case clientTypeStart:
		cfg := base
		if msg.Config != nil {
			cfg = *msg.Config
		}
		rate := msg.SampleRate
		if rate <= 0 {
			rate = defaultSampleRate
		}

		source := orchestrator.NewChanSource(rate, sourceBuffer)
		err := controller.Start(&cfg, source, func(seg transcript.Segment) {
			c.enqueue(&serverMessage{Type: serverTypeSegment, Segment: &seg})
		})
		if err != nil {
			c.enqueue(&serverMessage{Type: serverTypeError, Error: err.Error()})
			return
		}

		c.source = source
		c.enqueue(&serverMessage{
			Type:      serverTypeStarted,
			SessionID: controller.SessionID(),
			Backend:   string(controller.Backend()),
		})

	case clientTypeStop:
		controller.Stop()
		c.source = nil
		c.enqueue(&serverMessage{Type: serverTypeStopped})

	default:
		c.logger.Warn("unknown control message", "type", msg.Type)
	}
}

func (c *liveConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))

			data, err := json.Marshal(msg)
			if err != nil {
				c.logger.Error("marshal error", "error", err)
				continue
			}

			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Error("write error", "error", err)
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
