package pending

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grab/TalkToFigmaDesktop-sub000/internal/protocol"
)

func newTestTable(t *testing.T) *Table {
	t.Helper()
	tbl := NewTable(0, 0, zerolog.Nop())
	t.Cleanup(tbl.Stop)
	return tbl
}

func TestRegisterDuplicateFails(t *testing.T) {
	tbl := newTestTable(t)

	_, err := tbl.Register("r1", time.Now().Add(time.Minute), "get_document_info")
	require.NoError(t, err)

	_, err = tbl.Register("r1", time.Now().Add(time.Minute), "get_document_info")
	require.Error(t, err)
	assert.Equal(t, 1, tbl.Len())
}

func TestResolveSettlesExactlyOnce(t *testing.T) {
	tbl := newTestTable(t)

	w, err := tbl.Register("r1", time.Now().Add(time.Minute), "get_document_info")
	require.NoError(t, err)

	require.True(t, tbl.Resolve("r1", json.RawMessage(`{"name":"Doc","pages":1}`)))
	assert.False(t, tbl.Resolve("r1", json.RawMessage(`{}`)), "second resolve must report dropped")
	assert.False(t, tbl.Reject("r1", protocol.Errorf(protocol.KindInternal, "late")))

	out := <-w.Done()
	require.Nil(t, out.Err)
	assert.JSONEq(t, `{"name":"Doc","pages":1}`, string(out.Value))
	assert.Equal(t, 0, tbl.Len())
}

func TestRejectDeliversError(t *testing.T) {
	tbl := newTestTable(t)

	w, err := tbl.Register("r2", time.Now().Add(time.Minute), "create_frame")
	require.NoError(t, err)
	require.True(t, tbl.Reject("r2", protocol.Errorf(protocol.KindConnectionClosed, "socket closed")))

	out := <-w.Done()
	require.NotNil(t, out.Err)
	assert.Equal(t, protocol.KindConnectionClosed, out.Err.Kind)
}

func TestDeadlineRejectsWithTimeout(t *testing.T) {
	tbl := newTestTable(t)

	w, err := tbl.Register("r3", time.Now().Add(30*time.Millisecond), "get_selection")
	require.NoError(t, err)

	select {
	case out := <-w.Done():
		require.NotNil(t, out.Err)
		assert.Equal(t, protocol.KindTimeout, out.Err.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("deadline never fired")
	}
	assert.Equal(t, 0, tbl.Len())
}

func TestExtendOutlivesOriginalDeadline(t *testing.T) {
	tbl := newTestTable(t)

	w, err := tbl.Register("r4", time.Now().Add(40*time.Millisecond), "export_node_as_image")
	require.NoError(t, err)

	require.True(t, tbl.Extend("r4", time.Now().Add(500*time.Millisecond)))

	select {
	case <-w.Done():
		t.Fatal("waiter settled before the extended deadline")
	case <-time.After(120 * time.Millisecond):
	}

	require.True(t, tbl.Resolve("r4", json.RawMessage(`true`)))
	out := <-w.Done()
	assert.Nil(t, out.Err)
}

func TestExtendNeverShortens(t *testing.T) {
	tbl := newTestTable(t)

	w, err := tbl.Register("r5", time.Now().Add(300*time.Millisecond), "scan_text_nodes")
	require.NoError(t, err)

	// An earlier deadline must not pull the timer in.
	require.True(t, tbl.Extend("r5", time.Now().Add(10*time.Millisecond)))

	select {
	case <-w.Done():
		t.Fatal("waiter settled at the shortened deadline")
	case <-time.After(100 * time.Millisecond):
	}
	tbl.Resolve("r5", json.RawMessage(`true`))
	<-w.Done()
}

func TestExtendUnknownID(t *testing.T) {
	tbl := newTestTable(t)
	assert.False(t, tbl.Extend("nope", time.Now().Add(time.Minute)))
}

func TestRejectAll(t *testing.T) {
	tbl := newTestTable(t)

	w1, err := tbl.Register("a", time.Now().Add(time.Minute), "get_styles")
	require.NoError(t, err)
	w2, err := tbl.Register("b", time.Now().Add(time.Minute), "get_annotations")
	require.NoError(t, err)

	tbl.RejectAll(protocol.Errorf(protocol.KindShutdown, "broker is terminating"))

	for _, w := range []*Waiter{w1, w2} {
		out := <-w.Done()
		require.NotNil(t, out.Err)
		assert.Equal(t, protocol.KindShutdown, out.Err.Kind)
	}
	assert.Equal(t, 0, tbl.Len())
}

func TestSweepRejectsStuckEntries(t *testing.T) {
	tbl := NewTable(50*time.Millisecond, 20*time.Millisecond, zerolog.Nop())
	defer tbl.Stop()

	// Deadline far out so only the sweep can settle it.
	w, err := tbl.Register("stuck", time.Now().Add(time.Hour), "get_document_info")
	require.NoError(t, err)

	select {
	case out := <-w.Done():
		require.NotNil(t, out.Err)
		assert.Equal(t, protocol.KindTimeout, out.Err.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("sweep never rejected the stuck entry")
	}
}

func TestCommandLookup(t *testing.T) {
	tbl := newTestTable(t)

	_, err := tbl.Register("r6", time.Now().Add(time.Minute), "move_node")
	require.NoError(t, err)

	cmd, ok := tbl.Command("r6")
	require.True(t, ok)
	assert.Equal(t, "move_node", cmd)

	_, ok = tbl.Command("absent")
	assert.False(t, ok)
}
