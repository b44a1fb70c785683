package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grab/TalkToFigmaDesktop-sub000/internal/protocol"
)

// fakeBroker accepts WebSocket connections and hands them to the test for
// scripting. Every accepted connection gets the welcome frame first, like
// the real broker.
type fakeBroker struct {
	srv   *httptest.Server
	conns chan *websocket.Conn
}

func newFakeBroker(t *testing.T) *fakeBroker {
	t.Helper()
	fb := &fakeBroker{conns: make(chan *websocket.Conn, 4)}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	fb.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, protocol.Welcome()); err != nil {
			t.Errorf("welcome: %v", err)
			return
		}
		fb.conns <- conn
	}))
	t.Cleanup(fb.srv.Close)
	return fb
}

func (fb *fakeBroker) url() string {
	return "ws" + strings.TrimPrefix(fb.srv.URL, "http")
}

func (fb *fakeBroker) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-fb.conns:
		t.Cleanup(func() { conn.Close() })
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("no connection reached the fake broker")
		return nil
	}
}

func (fb *fakeBroker) expectNoConnection(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case <-fb.conns:
		t.Fatal("unexpected connection to the fake broker")
	case <-time.After(wait):
	}
}

func newTestSocket(t *testing.T, url string, mutate func(*SocketConfig)) *Socket {
	t.Helper()
	cfg := SocketConfig{
		URL:               url,
		ReconnectDelay:    20 * time.Millisecond,
		RequestTimeout:    500 * time.Millisecond,
		ProgressExtension: 2 * time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s := NewSocket(cfg, zerolog.Nop())
	t.Cleanup(func() { s.Close() })
	return s
}

func readClientEnvelope(t *testing.T, conn *websocket.Conn) *protocol.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	env, err := protocol.ParseEnvelope(raw)
	require.NoError(t, err)
	return env
}

func writeFrame(t *testing.T, conn *websocket.Conn, raw []byte) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, raw))
}

// serveJoin reads one join envelope and acknowledges it.
func serveJoin(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	env := readClientEnvelope(t, conn)
	require.Equal(t, protocol.TypeJoin, env.Type)
	require.NotEmpty(t, env.ID)
	require.Equal(t, protocol.ClientController, env.ClientType)
	writeFrame(t, conn, protocol.JoinAck(env.Channel, env.ID))
	return env.Channel
}

func joinedSocket(t *testing.T, fb *fakeBroker, mutate func(*SocketConfig)) (*Socket, *websocket.Conn) {
	t.Helper()
	s := newTestSocket(t, fb.url(), mutate)
	require.NoError(t, s.Connect(context.Background()))
	conn := fb.accept(t)
	done := make(chan struct{})
	go func() {
		defer close(done)
		serveJoin(t, conn)
	}()
	require.NoError(t, s.Join(context.Background(), "fig-1"))
	<-done
	return s, conn
}

func commandErr(t *testing.T, err error) *protocol.CommandError {
	t.Helper()
	var cerr *protocol.CommandError
	require.ErrorAs(t, err, &cerr)
	return cerr
}

func TestJoinRecordsChannel(t *testing.T) {
	fb := newFakeBroker(t)
	s, _ := joinedSocket(t, fb, nil)

	assert.Equal(t, "fig-1", s.Channel())
	assert.Equal(t, StateOpen, s.CurrentState())
}

func TestJoinValidatesChannelName(t *testing.T) {
	fb := newFakeBroker(t)
	s := newTestSocket(t, fb.url(), nil)
	require.NoError(t, s.Connect(context.Background()))
	fb.accept(t)

	err := s.Join(context.Background(), "")
	assert.Equal(t, protocol.KindBadRequest, commandErr(t, err).Kind)
	assert.Empty(t, s.Channel())
}

func TestRequestResolvesResult(t *testing.T) {
	fb := newFakeBroker(t)
	s, conn := joinedSocket(t, fb, nil)

	go func() {
		env := readClientEnvelope(t, conn)
		body, kind := env.DecodeBody()
		if kind != protocol.BodyRequest || body.Command != "get_selection" {
			t.Errorf("unexpected frame: %s", env.Type)
			return
		}
		reply, _ := protocol.LocalReply("srv-1", body.ID, map[string]any{"count": 2})
		_ = conn.WriteMessage(websocket.TextMessage, reply)
	}()

	result, err := s.Request(context.Background(), "get_selection", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":2}`, string(result))
}

func TestRequestCarriesChannelAndParams(t *testing.T) {
	fb := newFakeBroker(t)
	s, conn := joinedSocket(t, fb, nil)

	frames := make(chan *protocol.Envelope, 1)
	go func() {
		env := readClientEnvelope(t, conn)
		frames <- env
		body, _ := env.DecodeBody()
		reply, _ := protocol.LocalReply("srv-1", body.ID, "ok")
		_ = conn.WriteMessage(websocket.TextMessage, reply)
	}()

	_, err := s.Request(context.Background(), "move_node", json.RawMessage(`{"nodeId":"1:2","x":10,"y":20}`))
	require.NoError(t, err)

	env := <-frames
	assert.Equal(t, protocol.TypeMessage, env.Type)
	assert.Equal(t, "fig-1", env.Channel)
	assert.NotEmpty(t, env.ID)
	body, _ := env.DecodeBody()
	assert.NotEqual(t, env.ID, body.ID, "request id and envelope id are distinct")
	assert.JSONEq(t, `{"nodeId":"1:2","x":10,"y":20}`, string(body.Params))
}

func TestRequestErrorBodyKeepsKind(t *testing.T) {
	fb := newFakeBroker(t)
	s, conn := joinedSocket(t, fb, nil)

	go func() {
		env := readClientEnvelope(t, conn)
		body, _ := env.DecodeBody()
		fail := protocol.LocalError("srv-1", body.ID,
			protocol.Errorf(protocol.KindBadRequest, "nodeId is required"))
		_ = conn.WriteMessage(websocket.TextMessage, fail)
	}()

	_, err := s.Request(context.Background(), "get_node_info", nil)
	cerr := commandErr(t, err)
	assert.Equal(t, protocol.KindBadRequest, cerr.Kind)
	assert.Contains(t, cerr.Message, "nodeId")
}

func TestRequestTimesOut(t *testing.T) {
	fb := newFakeBroker(t)
	s, conn := joinedSocket(t, fb, func(cfg *SocketConfig) {
		cfg.RequestTimeout = 100 * time.Millisecond
	})

	go readClientEnvelope(t, conn) // swallow the request, never reply

	start := time.Now()
	_, err := s.Request(context.Background(), "export_node_as_image", nil)
	assert.Equal(t, protocol.KindTimeout, commandErr(t, err).Kind)
	assert.Less(t, time.Since(start), time.Second)
}

func TestProgressExtendsDeadline(t *testing.T) {
	fb := newFakeBroker(t)
	s, conn := joinedSocket(t, fb, func(cfg *SocketConfig) {
		cfg.RequestTimeout = 150 * time.Millisecond
		cfg.ProgressExtension = 600 * time.Millisecond
	})

	go func() {
		env := readClientEnvelope(t, conn)
		body, _ := env.DecodeBody()

		time.Sleep(100 * time.Millisecond)
		progress := map[string]any{
			"type":    protocol.TypeProgress,
			"channel": "fig-1",
			"message": map[string]any{"id": body.ID, "data": map[string]any{"progress": 40}},
		}
		raw, _ := json.Marshal(progress)
		_ = conn.WriteMessage(websocket.TextMessage, raw)

		// Past the original deadline, inside the extended one.
		time.Sleep(250 * time.Millisecond)
		reply, _ := protocol.LocalReply("srv-1", body.ID, "scanned")
		_ = conn.WriteMessage(websocket.TextMessage, reply)
	}()

	result, err := s.Request(context.Background(), "scan_text_nodes", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `"scanned"`, string(result))
}

func TestRequestBeforeJoinFails(t *testing.T) {
	fb := newFakeBroker(t)
	s := newTestSocket(t, fb.url(), nil)
	require.NoError(t, s.Connect(context.Background()))
	fb.accept(t)

	_, err := s.Request(context.Background(), "get_selection", nil)
	assert.Equal(t, protocol.KindNotJoined, commandErr(t, err).Kind)
}

func TestRequestLocalWorksBeforeJoin(t *testing.T) {
	fb := newFakeBroker(t)
	s := newTestSocket(t, fb.url(), nil)
	require.NoError(t, s.Connect(context.Background()))
	conn := fb.accept(t)

	go func() {
		env := readClientEnvelope(t, conn)
		if env.Channel != "" {
			t.Errorf("local command should not carry a channel, got %q", env.Channel)
		}
		body, _ := env.DecodeBody()
		reply, _ := protocol.LocalReply("srv-1", body.ID, "Active channels (0): none")
		_ = conn.WriteMessage(websocket.TextMessage, reply)
	}()

	result, err := s.RequestLocal(context.Background(), "get_active_channels", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `"Active channels (0): none"`, string(result))
}

func TestConnectionLossRejectsPendingAndRejoins(t *testing.T) {
	fb := newFakeBroker(t)
	s, conn := joinedSocket(t, fb, nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Request(context.Background(), "get_document_info", nil)
		errCh <- err
	}()
	readClientEnvelope(t, conn) // request is in flight
	conn.Close()

	select {
	case err := <-errCh:
		assert.Equal(t, protocol.KindConnectionClosed, commandErr(t, err).Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("pending request was not rejected on connection loss")
	}

	// The reconnect loop dials again and restores the channel.
	conn2 := fb.accept(t)
	assert.Equal(t, "fig-1", serveJoin(t, conn2))

	require.Eventually(t, func() bool {
		return s.CurrentState() == StateOpen && s.Channel() == "fig-1"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCancelledCallDropsLateReply(t *testing.T) {
	fb := newFakeBroker(t)
	s, conn := joinedSocket(t, fb, nil)

	replied := make(chan struct{})
	go func() {
		defer close(replied)
		env := readClientEnvelope(t, conn)
		body, _ := env.DecodeBody()
		time.Sleep(120 * time.Millisecond)
		reply, _ := protocol.LocalReply("srv-1", body.ID, "too late")
		_ = conn.WriteMessage(websocket.TextMessage, reply)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	_, err := s.Request(ctx, "get_styles", nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	<-replied
	assert.Equal(t, 0, s.Table().Len(), "late reply must not leave table entries")
}

func TestCloseStopsReconnect(t *testing.T) {
	fb := newFakeBroker(t)
	s, conn := joinedSocket(t, fb, nil)

	require.NoError(t, s.Close())
	conn.Close()

	fb.expectNoConnection(t, 150*time.Millisecond)

	_, err := s.Request(context.Background(), "get_selection", nil)
	require.Error(t, err)
	var cerr *protocol.CommandError
	if errors.As(err, &cerr) {
		assert.Contains(t,
			[]protocol.ErrorKind{protocol.KindConnectionClosed, protocol.KindShutdown}, cerr.Kind)
	}
}

func TestConnectIsIdempotentWhileOpen(t *testing.T) {
	fb := newFakeBroker(t)
	s, _ := joinedSocket(t, fb, nil)

	require.NoError(t, s.Connect(context.Background()))
	fb.expectNoConnection(t, 100*time.Millisecond)
	assert.Equal(t, StateOpen, s.CurrentState())
}
