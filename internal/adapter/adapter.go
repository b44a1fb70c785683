package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/grab/TalkToFigmaDesktop-sub000/internal/protocol"
)

const serverName = "TalkToFigma Desktop"

// Config tunes the adapter process.
type Config struct {
	BrokerURL         string
	Version           string
	ReconnectDelay    time.Duration
	RequestTimeout    time.Duration
	ProgressExtension time.Duration
}

// Adapter is the MCP process: stdio framing on one side, the broker socket
// on the other. Tool calls become channel requests; results come back as
// text content.
type Adapter struct {
	logger zerolog.Logger
	socket *Socket
	mcp    *server.MCPServer
}

// New assembles the MCP server with its fixed tool and prompt catalog.
func New(cfg Config, logger zerolog.Logger) *Adapter {
	a := &Adapter{
		logger: logger.With().Str("component", "adapter").Logger(),
		socket: NewSocket(SocketConfig{
			URL:               cfg.BrokerURL,
			ReconnectDelay:    cfg.ReconnectDelay,
			RequestTimeout:    cfg.RequestTimeout,
			ProgressExtension: cfg.ProgressExtension,
		}, logger),
	}

	a.mcp = server.NewMCPServer(serverName, cfg.Version,
		server.WithToolCapabilities(false),
		server.WithPromptCapabilities(false),
		server.WithRecovery(),
	)

	for _, spec := range catalog() {
		a.mcp.AddTool(spec.tool, a.toolHandler(spec))
	}
	for _, spec := range prompts() {
		a.mcp.AddPrompt(spec.prompt, promptHandler(spec))
	}
	return a
}

// Socket exposes the broker leg, mainly for tests.
func (a *Adapter) Socket() *Socket { return a.socket }

// Run connects to the broker and serves MCP over stdio until stdin closes.
// A broker that is not up yet is not fatal; the socket keeps retrying while
// tool calls fail fast with connection_closed.
func (a *Adapter) Run(ctx context.Context) error {
	if err := a.socket.Connect(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("broker not reachable yet, retrying in background")
	}
	defer a.socket.Close()
	return server.ServeStdio(a.mcp)
}

func (a *Adapter) toolHandler(spec toolSpec) server.ToolHandlerFunc {
	name := spec.tool.Name
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		if name == "join_channel" {
			return a.handleJoin(ctx, args)
		}
		if !spec.local && a.socket.Channel() == "" {
			return mcp.NewToolResultError("No channel joined. Call join_channel with the name shown in the Figma plugin first."), nil
		}

		params, err := json.Marshal(CanonicalizeParams(name, args))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encoding parameters: %v", err)), nil
		}

		a.logger.Debug().Str("tool", name).Msg("tool call")
		var result json.RawMessage
		if spec.local {
			result, err = a.socket.RequestLocal(ctx, name, params)
		} else {
			result, err = a.socket.Request(ctx, name, params)
		}
		if err != nil {
			return mcp.NewToolResultError(renderError(err)), nil
		}
		return mcp.NewToolResultText(renderResult(result)), nil
	}
}

func (a *Adapter) handleJoin(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	channel, _ := args["channel"].(string)
	if channel == "" {
		return mcp.NewToolResultError("channel is required"), nil
	}
	if err := a.socket.Join(ctx, channel); err != nil {
		return mcp.NewToolResultError(renderError(err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Joined channel: %s", channel)), nil
}

func promptHandler(spec promptSpec) server.PromptHandlerFunc {
	return func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return mcp.NewGetPromptResult(spec.prompt.Description, []mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleAssistant, mcp.NewTextContent(spec.text)),
		}), nil
	}
}

// renderResult turns an executor result into tool output text. String
// results are unquoted; anything else passes through as JSON.
func renderResult(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return "done"
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// renderError keeps the error taxonomy visible to the client so it can
// distinguish a timeout from a rejected credential.
func renderError(err error) string {
	cerr := protocol.FromError(err)
	if cerr.Kind == protocol.KindUpstream && cerr.Excerpt != "" {
		return fmt.Sprintf("%s: %s (status %d): %s", cerr.Kind, cerr.Message, cerr.Status, cerr.Excerpt)
	}
	return cerr.Error()
}
