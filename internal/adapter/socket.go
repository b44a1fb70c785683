// Package adapter is the MCP stdio side of the bridge: a fixed tool and
// prompt catalog served over stdin/stdout, backed by a WebSocket leg to the
// broker. All logging goes to stderr; stdout belongs to MCP framing.
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/grab/TalkToFigmaDesktop-sub000/internal/pending"
	"github.com/grab/TalkToFigmaDesktop-sub000/internal/protocol"
)

// State is the socket lifecycle. Closures in stateOpen schedule a reconnect
// unless the adapter is shutting down; a late close event observed after
// Close cannot, because the CAS into stateConnecting fails.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "disconnected"
	}
}

const (
	dialTimeout     = 10 * time.Second
	socketWriteWait = 10 * time.Second
)

// SocketConfig tunes the broker leg.
type SocketConfig struct {
	URL               string
	ReconnectDelay    time.Duration
	RequestTimeout    time.Duration
	ProgressExtension time.Duration
}

// Socket maintains the adapter's connection to the broker: one reader
// goroutine correlating replies into the pending table, a mutex-guarded
// writer, and a fixed-delay reconnect loop.
type Socket struct {
	cfg    SocketConfig
	logger zerolog.Logger
	table  *pending.Table

	state  atomic.Int32
	closed atomic.Bool

	connMu  sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	channelMu sync.Mutex
	channel   string

	// OnState observes lifecycle transitions. Set before Connect.
	OnState func(State)
}

// NewSocket builds the broker leg. Zero config fields take the pending
// package defaults.
func NewSocket(cfg SocketConfig, logger zerolog.Logger) *Socket {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 2 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = pending.DefaultRequestTimeout
	}
	if cfg.ProgressExtension <= 0 {
		cfg.ProgressExtension = pending.ProgressExtension
	}
	return &Socket{
		cfg:    cfg,
		logger: logger.With().Str("component", "socket").Logger(),
		table:  pending.NewTable(0, 0, logger),
	}
}

// Table exposes the pending table for the MCP layer.
func (s *Socket) Table() *pending.Table { return s.table }

// CurrentState reports the lifecycle state.
func (s *Socket) CurrentState() State { return State(s.state.Load()) }

func (s *Socket) setState(next State) {
	s.state.Store(int32(next))
	s.logger.Debug().Str("state", next.String()).Msg("socket state")
	if s.OnState != nil {
		s.OnState(next)
	}
}

// Connect dials the broker. Only one transition out of disconnected runs at
// a time; concurrent calls return immediately.
func (s *Socket) Connect(ctx context.Context) error {
	if s.closed.Load() {
		return fmt.Errorf("socket is closed")
	}
	if !s.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		return nil
	}
	if s.OnState != nil {
		s.OnState(StateConnecting)
	}

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, resp, err := dialer.DialContext(ctx, s.cfg.URL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		s.setState(StateDisconnected)
		s.scheduleReconnect()
		return fmt.Errorf("dialing broker %s: %w", s.cfg.URL, err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	s.setState(StateOpen)
	s.logger.Info().Str("url", s.cfg.URL).Msg("connected to broker")
	go s.readLoop(conn)
	return nil
}

// scheduleReconnect arms one fixed-delay retry. Suppressed during shutdown.
func (s *Socket) scheduleReconnect() {
	if s.closed.Load() {
		return
	}
	go func() {
		time.Sleep(s.cfg.ReconnectDelay)
		if s.closed.Load() {
			return
		}
		s.logger.Info().Dur("delay", s.cfg.ReconnectDelay).Msg("reconnecting to broker")
		if err := s.Connect(context.Background()); err != nil {
			s.logger.Warn().Err(err).Msg("reconnect failed")
			return
		}
		s.rejoinRecordedChannel()
	}()
}

// rejoinRecordedChannel restores channel membership after a reconnect so
// in-flight tool sessions keep working.
func (s *Socket) rejoinRecordedChannel() {
	channel := s.Channel()
	if channel == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
	defer cancel()
	if err := s.Join(ctx, channel); err != nil {
		s.logger.Warn().Err(err).Str("channel", channel).Msg("re-join after reconnect failed")
		return
	}
	s.logger.Info().Str("channel", channel).Msg("re-joined channel after reconnect")
}

// readLoop correlates inbound frames into the pending table. On exit every
// waiter is rejected with connection_closed and a reconnect is scheduled
// unless the adapter is shutting down.
func (s *Socket) readLoop(conn *websocket.Conn) {
	defer func() {
		s.setState(StateDisconnected)
		s.table.RejectAll(protocol.Errorf(protocol.KindConnectionClosed, "broker connection lost"))
		s.scheduleReconnect()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() {
				s.logger.Warn().Err(err).Msg("broker read failed")
			}
			return
		}
		env, err := protocol.ParseEnvelope(raw)
		if err != nil {
			s.logger.Debug().Err(err).Msg("unparseable broker frame")
			continue
		}
		s.dispatch(env)
	}
}

func (s *Socket) dispatch(env *protocol.Envelope) {
	switch env.Type {
	case protocol.TypeSystem:
		// Join acks carry the join's envelope id; the welcome and member
		// notices do not.
		if env.ID != "" {
			if s.table.Resolve(env.ID, env.Message) {
				return
			}
		}
		s.logger.Debug().Str("text", env.Text()).Msg("broker notice")

	case protocol.TypeMessage:
		body, kind := env.DecodeBody()
		if kind != protocol.BodyResponse {
			s.logger.Debug().Str("type", env.Type).Msg("non-response message ignored")
			return
		}
		if body.Error != nil {
			s.rejectWithBodyError(body)
			return
		}
		if !s.table.Resolve(body.ID, body.Result) {
			s.logger.Debug().Str("id", body.ID).Msg("late response dropped")
		}

	case protocol.TypeProgress:
		body, _ := env.DecodeBody()
		if body == nil || body.ID == "" {
			return
		}
		deadline := time.Now().Add(s.cfg.ProgressExtension)
		if s.table.Extend(body.ID, deadline) {
			s.logger.Debug().Str("id", body.ID).Time("deadline", deadline).Msg("deadline extended")
		}

	case protocol.TypeError:
		var details struct {
			Error   protocol.ErrorKind `json:"error"`
			Message string             `json:"message"`
		}
		if err := json.Unmarshal(env.Message, &details); err != nil {
			s.logger.Warn().RawJSON("frame", env.Message).Msg("malformed error envelope")
			return
		}
		if env.ID != "" && s.table.Reject(env.ID, protocol.Errorf(details.Error, "%s", details.Message)) {
			return
		}
		s.logger.Warn().Str("kind", string(details.Error)).Str("message", details.Message).Msg("broker error")

	default:
		s.logger.Debug().Str("type", env.Type).Msg("unexpected frame type ignored")
	}
}

func (s *Socket) rejectWithBodyError(body *protocol.MessageBody) {
	var cerr protocol.CommandError
	if err := json.Unmarshal(body.Error, &cerr); err != nil || cerr.Kind == "" {
		// Executors may reply with a bare string or foreign shape.
		cerr = protocol.CommandError{Kind: protocol.KindInternal, Message: string(body.Error)}
	}
	if !s.table.Reject(body.ID, &cerr) {
		s.logger.Debug().Str("id", body.ID).Msg("late error dropped")
	}
}

// send writes one frame under the writer lock.
func (s *Socket) send(raw []byte) error {
	s.connMu.Lock()
	conn := s.conn
	s.connMu.Unlock()
	if conn == nil || s.CurrentState() != StateOpen {
		return protocol.Errorf(protocol.KindConnectionClosed, "not connected to broker")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return protocol.Errorf(protocol.KindConnectionClosed, "writing to broker: %v", err)
	}
	return nil
}

// Channel reports the recorded channel, empty before the first join.
func (s *Socket) Channel() string {
	s.channelMu.Lock()
	defer s.channelMu.Unlock()
	return s.channel
}

// Join issues a join envelope and waits for the broker's acknowledgement.
// The channel is recorded for membership checks and reconnect re-joins.
func (s *Socket) Join(ctx context.Context, channel string) error {
	if cerr := protocol.ValidateChannel(channel); cerr != nil {
		return cerr
	}

	envID := uuid.NewString()
	waiter, err := s.table.Register(envID, time.Now().Add(s.cfg.RequestTimeout), "join")
	if err != nil {
		return err
	}

	frame := protocol.Envelope{
		Type:       protocol.TypeJoin,
		Channel:    channel,
		ID:         envID,
		ClientType: protocol.ClientController,
	}
	raw, err := json.Marshal(frame)
	if err != nil {
		s.table.Reject(envID, protocol.Errorf(protocol.KindInternal, "encoding join: %v", err))
		return err
	}
	if err := s.send(raw); err != nil {
		s.table.Reject(envID, protocol.FromError(err))
		return err
	}

	select {
	case outcome := <-waiter.Done():
		if outcome.Err != nil {
			return outcome.Err
		}
		s.channelMu.Lock()
		s.channel = channel
		s.channelMu.Unlock()
		return nil
	case <-ctx.Done():
		s.table.Reject(envID, protocol.Errorf(protocol.KindInternal, "join cancelled"))
		return ctx.Err()
	}
}

// Request sends a command to the joined channel and returns the raw result.
// It blocks until the executor replies, the deadline expires, or ctx is
// cancelled; cancellation rejects the waiter so a late reply is dropped.
func (s *Socket) Request(ctx context.Context, command string, params json.RawMessage) (json.RawMessage, error) {
	channel := s.Channel()
	if channel == "" {
		return nil, protocol.Errorf(protocol.KindNotJoined, "join a channel before calling %s", command)
	}
	return s.request(ctx, command, params, channel)
}

// RequestLocal sends a command the broker answers itself; no channel
// membership is needed.
func (s *Socket) RequestLocal(ctx context.Context, command string, params json.RawMessage) (json.RawMessage, error) {
	return s.request(ctx, command, params, s.Channel())
}

func (s *Socket) request(ctx context.Context, command string, params json.RawMessage, channel string) (json.RawMessage, error) {
	reqID := uuid.NewString()
	waiter, err := s.table.Register(reqID, time.Now().Add(s.cfg.RequestTimeout), command)
	if err != nil {
		return nil, err
	}

	body := protocol.MessageBody{ID: reqID, Command: command, Params: params}
	bodyRaw, err := json.Marshal(body)
	if err != nil {
		s.table.Reject(reqID, protocol.Errorf(protocol.KindInternal, "encoding request: %v", err))
		return nil, err
	}
	frame := protocol.Envelope{
		Type:    protocol.TypeMessage,
		Channel: channel,
		ID:      uuid.NewString(),
		Message: bodyRaw,
	}
	raw, err := json.Marshal(frame)
	if err != nil {
		s.table.Reject(reqID, protocol.Errorf(protocol.KindInternal, "encoding envelope: %v", err))
		return nil, err
	}
	if err := s.send(raw); err != nil {
		s.table.Reject(reqID, protocol.FromError(err))
		return nil, err
	}

	s.logger.Debug().Str("command", command).Str("id", reqID).Msg("request sent")

	select {
	case outcome := <-waiter.Done():
		if outcome.Err != nil {
			return nil, outcome.Err
		}
		return outcome.Value, nil
	case <-ctx.Done():
		s.table.Reject(reqID, protocol.Errorf(protocol.KindInternal, "tool call cancelled by MCP client"))
		return nil, ctx.Err()
	}
}

// Close shuts the socket down for good: no reconnect will fire afterwards.
func (s *Socket) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.table.Stop()
	s.table.RejectAll(protocol.Errorf(protocol.KindShutdown, "adapter shutting down"))

	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != nil {
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(socketWriteWait))
		s.writeMu.Unlock()
		return s.conn.Close()
	}
	return nil
}
