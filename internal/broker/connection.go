package broker

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/grab/TalkToFigmaDesktop-sub000/internal/monitoring"
	"github.com/grab/TalkToFigmaDesktop-sub000/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// Disconnect reasons recorded in metrics and passed to observers.
const (
	ReasonClientClosed  = "client_closed"
	ReasonReadError     = "read_error"
	ReasonWriteError    = "write_error"
	ReasonProtocolError = "protocol_error"
	ReasonSlowConsumer  = "slow_consumer"
	ReasonShutdown      = "shutdown"
)

// Connection is one accepted WebSocket peer. A single reader goroutine
// decodes inbound frames in order; a single writer drains the bounded
// outbound queue in enqueue order. All cleanup funnels through the reader's
// exit path so it runs exactly once.
type Connection struct {
	id     string
	sock   *websocket.Conn
	send   chan []byte
	logger zerolog.Logger
	srv    *Server

	mu           sync.RWMutex
	clientType   string
	connectedAt  time.Time
	lastActivity time.Time

	// joined is guarded by the channel registry's mutex, never touched
	// outside registry methods.
	joined map[string]struct{}

	closeOnce   sync.Once
	closed      chan struct{}
	reasonOnce  sync.Once
	closeReason string
}

func newConnection(id string, sock *websocket.Conn, srv *Server, logger zerolog.Logger) *Connection {
	now := time.Now()
	return &Connection{
		id:           id,
		sock:         sock,
		send:         make(chan []byte, srv.cfg.SendQueueSize),
		logger:       logger.With().Str("conn", id).Logger(),
		srv:          srv,
		clientType:   protocol.ClientUnknown,
		connectedAt:  now,
		lastActivity: now,
		joined:       make(map[string]struct{}),
		closed:       make(chan struct{}),
	}
}

// ID returns the opaque identity assigned at accept.
func (c *Connection) ID() string { return c.id }

// ClientType returns the self-declared role. Hint only; routing never
// consults it.
func (c *Connection) ClientType() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clientType
}

// setClientTypeOnce records the role declared on the first join. Later
// joins cannot reclassify the connection.
func (c *Connection) setClientTypeOnce(declared string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clientType != protocol.ClientUnknown {
		return
	}
	switch declared {
	case protocol.ClientExecutor:
		c.clientType = protocol.ClientExecutor
	default:
		c.clientType = protocol.ClientController
	}
}

func (c *Connection) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

// enqueue appends raw to the outbound queue without blocking. A full queue
// means the consumer stopped keeping up; the connection is closed with
// reason slow_consumer rather than stalling the broker.
func (c *Connection) enqueue(raw []byte) {
	select {
	case <-c.closed:
	case c.send <- raw:
	default:
		monitoring.SendQueueOverflow.Inc()
		c.logger.Warn().Int("queue", cap(c.send)).Msg("outbound queue full, disconnecting slow consumer")
		c.close(ReasonSlowConsumer, websocket.ClosePolicyViolation, ReasonSlowConsumer)
	}
}

// close records the first close reason, sends a best-effort close frame,
// and tears down the socket. Safe to call from any goroutine.
func (c *Connection) close(reason string, code int, text string) {
	c.reasonOnce.Do(func() { c.closeReason = reason })
	c.closeOnce.Do(func() {
		close(c.closed)
		deadline := time.Now().Add(writeWait)
		_ = c.sock.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, text), deadline)
		_ = c.sock.Close()
	})
}

// readPump decodes inbound frames and hands them to the router, in order.
// Its exit is the single cleanup point for the connection.
func (c *Connection) readPump() {
	defer func() {
		c.close(ReasonClientClosed, websocket.CloseNormalClosure, "")
		c.srv.dropConnection(c)
	}()

	c.sock.SetReadLimit(c.srv.cfg.MaxFrameBytes)
	_ = c.sock.SetReadDeadline(time.Now().Add(pongWait))
	c.sock.SetPongHandler(func(string) error {
		return c.sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, raw, err := c.sock.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				c.logger.Warn().Int64("limit", c.srv.cfg.MaxFrameBytes).Msg("frame exceeds size limit")
				c.close(ReasonProtocolError, websocket.CloseMessageTooBig, "frame too large")
			} else if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				c.logger.Debug().Err(err).Msg("read failed")
				c.close(ReasonReadError, websocket.CloseAbnormalClosure, "")
			}
			return
		}
		if msgType != websocket.TextMessage {
			c.logger.Warn().Int("frame_type", msgType).Msg("binary frame rejected")
			c.close(ReasonProtocolError, websocket.CloseUnsupportedData, "text frames only")
			return
		}
		c.touch()
		c.srv.router.dispatch(c, raw)
	}
}

// writePump is the connection's single writer: outbound messages leave in
// enqueue order, interleaved with keepalive pings.
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close(ReasonWriteError, websocket.CloseAbnormalClosure, "")
	}()

	for {
		select {
		case raw := <-c.send:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.TextMessage, raw); err != nil {
				c.logger.Debug().Err(err).Msg("write failed")
				return
			}
		case <-ticker.C:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

// drainAndClose waits for the outbound queue to empty, bounded by deadline,
// then closes with the shutdown reason. Used during broker shutdown.
func (c *Connection) drainAndClose(deadline time.Time) {
	for len(c.send) > 0 && time.Now().Before(deadline) {
		select {
		case <-c.closed:
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
	c.close(ReasonShutdown, websocket.CloseGoingAway, "broker shutting down")
}
