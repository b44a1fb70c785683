package adapter

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grab/TalkToFigmaDesktop-sub000/internal/localcmd"
	"github.com/grab/TalkToFigmaDesktop-sub000/internal/protocol"
)

func findSpec(t *testing.T, name string) toolSpec {
	t.Helper()
	for _, spec := range catalog() {
		if spec.tool.Name == name {
			return spec
		}
	}
	t.Fatalf("tool %q not in catalog", name)
	return toolSpec{}
}

func callTool(t *testing.T, a *Adapter, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	handler := a.toolHandler(findSpec(t, name))
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "tool results are text content")
	return text.Text
}

func newTestAdapter(t *testing.T, fb *fakeBroker) *Adapter {
	t.Helper()
	a := New(Config{
		BrokerURL:      fb.url(),
		Version:        "test",
		ReconnectDelay: 20 * time.Millisecond,
		RequestTimeout: 500 * time.Millisecond,
	}, zerolog.Nop())
	t.Cleanup(func() { a.socket.Close() })
	return a
}

func TestCatalogShape(t *testing.T) {
	specs := catalog()
	assert.Len(t, specs, 51)

	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		assert.False(t, seen[spec.tool.Name], "duplicate tool %q", spec.tool.Name)
		assert.NotEmpty(t, spec.tool.Description, "tool %q has no description", spec.tool.Name)
		seen[spec.tool.Name] = true
	}

	// Everything the broker serves locally must be callable before a join.
	brokerServed := []string{
		localcmd.CommandActiveChannels, localcmd.CommandDiagnostics, localcmd.CommandNotify,
		localcmd.CommandGetComments, localcmd.CommandPostComment, localcmd.CommandReplyComment,
		localcmd.CommandPostReaction, localcmd.CommandGetReactions, localcmd.CommandDeleteReaction,
		localcmd.CommandGetConfig, localcmd.CommandSetConfig,
	}
	for _, name := range brokerServed {
		spec := findSpec(t, name)
		assert.True(t, spec.local, "%q must not require a joined channel", name)
	}
	assert.True(t, findSpec(t, "join_channel").local)

	for _, name := range []string{"get_document_info", "set_fill_color", "create_frame", "export_node_as_image"} {
		assert.False(t, findSpec(t, name).local, "%q is served by the plugin", name)
	}
}

func TestPromptCatalog(t *testing.T) {
	specs := prompts()
	require.Len(t, specs, 6)

	names := make([]string, 0, len(specs))
	for _, spec := range specs {
		names = append(names, spec.prompt.Name)
		assert.NotEmpty(t, spec.prompt.Description)
		assert.Greater(t, len(spec.text), 400, "prompt %q should be a full strategy document", spec.prompt.Name)
	}
	assert.ElementsMatch(t, []string{
		"design_strategy", "read_design_strategy", "text_replacement_strategy",
		"annotation_conversion_strategy", "swap_overrides_instances", "reaction_to_connector_strategy",
	}, names)
}

func TestPromptHandlerReturnsText(t *testing.T) {
	spec := prompts()[0]
	res, err := promptHandler(spec)(context.Background(), mcp.GetPromptRequest{})
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	text, ok := res.Messages[0].Content.(mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, spec.text, text.Text)
}

func TestForwardedToolRequiresJoin(t *testing.T) {
	fb := newFakeBroker(t)
	a := newTestAdapter(t, fb)

	res := callTool(t, a, "get_selection", nil)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "join_channel")
}

func TestJoinChannelTool(t *testing.T) {
	fb := newFakeBroker(t)
	a := newTestAdapter(t, fb)
	require.NoError(t, a.socket.Connect(context.Background()))
	conn := fb.accept(t)
	go serveJoin(t, conn)

	res := callTool(t, a, "join_channel", map[string]any{"channel": "fig-1"})
	assert.False(t, res.IsError)
	assert.Equal(t, "Joined channel: fig-1", resultText(t, res))
	assert.Equal(t, "fig-1", a.socket.Channel())
}

func TestJoinChannelToolRequiresName(t *testing.T) {
	fb := newFakeBroker(t)
	a := newTestAdapter(t, fb)

	res := callTool(t, a, "join_channel", nil)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "channel is required")
}

func TestForwardedToolCanonicalizesColor(t *testing.T) {
	fb := newFakeBroker(t)
	a := newTestAdapter(t, fb)
	require.NoError(t, a.socket.Connect(context.Background()))
	conn := fb.accept(t)
	go serveJoin(t, conn)
	require.NoError(t, a.socket.Join(context.Background(), "fig-1"))

	params := make(chan json.RawMessage, 1)
	go func() {
		env := readClientEnvelope(t, conn)
		body, _ := env.DecodeBody()
		params <- body.Params
		reply, _ := protocol.LocalReply("srv-1", body.ID, "painted")
		_ = conn.WriteMessage(websocket.TextMessage, reply)
	}()

	res := callTool(t, a, "set_fill_color", map[string]any{
		"nodeId": "1:2", "r": 1.0, "g": 0.5, "b": 0.0,
	})
	assert.False(t, res.IsError)
	assert.Equal(t, "painted", resultText(t, res))
	assert.JSONEq(t, `{"nodeId":"1:2","color":{"r":1,"g":0.5,"b":0,"a":1},"weight":1}`, string(<-params))
}

func TestLocalToolSkipsJoinCheck(t *testing.T) {
	fb := newFakeBroker(t)
	a := newTestAdapter(t, fb)
	require.NoError(t, a.socket.Connect(context.Background()))
	conn := fb.accept(t)

	go func() {
		env := readClientEnvelope(t, conn)
		body, _ := env.DecodeBody()
		if body.Command != localcmd.CommandDiagnostics {
			t.Errorf("expected diagnostics command, got %q", body.Command)
		}
		reply, _ := protocol.LocalReply("srv-1", body.ID, map[string]any{"status": "ok"})
		_ = conn.WriteMessage(websocket.TextMessage, reply)
	}()

	res := callTool(t, a, "connection_diagnostics", nil)
	assert.False(t, res.IsError)
	assert.JSONEq(t, `{"status":"ok"}`, resultText(t, res))
}

func TestToolErrorSurfacesTaxonomy(t *testing.T) {
	fb := newFakeBroker(t)
	a := newTestAdapter(t, fb)
	require.NoError(t, a.socket.Connect(context.Background()))
	conn := fb.accept(t)
	go serveJoin(t, conn)
	require.NoError(t, a.socket.Join(context.Background(), "fig-1"))

	go func() {
		env := readClientEnvelope(t, conn)
		body, _ := env.DecodeBody()
		fail := protocol.LocalError("srv-1", body.ID, &protocol.CommandError{
			Kind: protocol.KindUpstream, Message: "REST API returned 404", Status: 404, Excerpt: `{"err":"Not found"}`,
		})
		_ = conn.WriteMessage(websocket.TextMessage, fail)
	}()

	res := callTool(t, a, "get_figma_comments", nil)
	assert.True(t, res.IsError)
	text := resultText(t, res)
	assert.Contains(t, text, "upstream")
	assert.Contains(t, text, "404")
	assert.Contains(t, text, "Not found")
}

func TestRenderResult(t *testing.T) {
	assert.Equal(t, "done", renderResult(nil))
	assert.Equal(t, "done", renderResult(json.RawMessage(`null`)))
	assert.Equal(t, "plain text", renderResult(json.RawMessage(`"plain text"`)))
	assert.Equal(t, `{"nodes":3}`, renderResult(json.RawMessage(`{"nodes":3}`)))
}

func TestRenderError(t *testing.T) {
	plain := protocol.Errorf(protocol.KindTimeout, "no response within 30s")
	assert.Equal(t, "timeout: no response within 30s", renderError(plain))

	upstream := protocol.UpstreamError(500, "boom", "REST API returned 500")
	assert.Equal(t, "upstream: REST API returned 500 (status 500): boom", renderError(upstream))
}
