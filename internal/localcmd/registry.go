// Package localcmd serves the commands the broker answers itself instead of
// forwarding to an executor: channel introspection, diagnostics, the
// REST-backed comment and reaction tools, and desktop notifications.
package localcmd

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/grab/TalkToFigmaDesktop-sub000/internal/protocol"
)

// Command names in the local set. Everything else on a message envelope is
// forwarded to channel members.
const (
	CommandJoin           = "join"
	CommandActiveChannels = "get_active_channels"
	CommandDiagnostics    = "connection_diagnostics"
	CommandGetComments    = "get_figma_comments"
	CommandPostComment    = "post_figma_comment"
	CommandReplyComment   = "reply_figma_comment"
	CommandPostReaction   = "post_comment_reaction"
	CommandGetReactions   = "get_comment_reactions"
	CommandDeleteReaction = "delete_comment_reaction"
	CommandGetConfig      = "get_figma_config"
	CommandSetConfig      = "set_figma_config"
	CommandNotify         = "send_notification"
)

// ChannelInfo is a point-in-time view of one channel. Role counts reflect
// self-declared client types and are hints, not authorization.
type ChannelInfo struct {
	Name        string `json:"name"`
	Members     int    `json:"members"`
	Controllers int    `json:"controllers"`
	Executors   int    `json:"executors"`
}

// BrokerState is the live state the introspection commands read. The broker
// implements it; tests substitute fixtures.
type BrokerState interface {
	ActiveChannels() []ChannelInfo
	Uptime() time.Duration
}

// FigmaAPI is the REST surface the comment and reaction commands call.
type FigmaAPI interface {
	GetComments(ctx context.Context, fileKey string, asMarkdown bool) (json.RawMessage, error)
	PostComment(ctx context.Context, fileKey, message, nodeID string, x, y float64) (json.RawMessage, error)
	ReplyComment(ctx context.Context, fileKey, commentID, message string) (json.RawMessage, error)
	PostReaction(ctx context.Context, fileKey, commentID, emoji string) (json.RawMessage, error)
	GetReactions(ctx context.Context, fileKey, commentID, cursor string) (json.RawMessage, error)
	DeleteReaction(ctx context.Context, fileKey, commentID, emoji string) (json.RawMessage, error)
	DefaultFileKey() string
	SetDefaultFileKey(fileKey string)
	APIBase() string
	Authenticated() bool
}

// Notifier surfaces desktop notifications through the shell collaborator.
type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

// Deps carries the collaborators handlers need. State is bound after the
// broker is constructed; until then introspection reports an empty broker.
type Deps struct {
	Figma    FigmaAPI
	Notifier Notifier
	Port     int
	Logger   zerolog.Logger
}

type handlerFunc func(ctx context.Context, channel string, params json.RawMessage) (any, *protocol.CommandError)

// Registry maps local command names to handlers.
type Registry struct {
	deps     Deps
	handlers map[string]handlerFunc

	mu    sync.RWMutex
	state BrokerState
}

// NewRegistry builds the handler table. The join command is owned by the
// router because it mutates the channel registry; it is still reported by
// Owns so routing checks one place.
func NewRegistry(deps Deps) *Registry {
	r := &Registry{deps: deps}
	r.handlers = map[string]handlerFunc{
		CommandActiveChannels: r.activeChannels,
		CommandDiagnostics:    r.diagnostics,
		CommandGetComments:    r.getComments,
		CommandPostComment:    r.postComment,
		CommandReplyComment:   r.replyComment,
		CommandPostReaction:   r.postReaction,
		CommandGetReactions:   r.getReactions,
		CommandDeleteReaction: r.deleteReaction,
		CommandGetConfig:      r.getConfig,
		CommandSetConfig:      r.setConfig,
		CommandNotify:         r.notify,
	}
	return r
}

// BindState attaches the live broker once it exists.
func (r *Registry) BindState(state BrokerState) {
	r.mu.Lock()
	r.state = state
	r.mu.Unlock()
}

func (r *Registry) brokerState() BrokerState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Owns reports whether a command is served locally.
func (r *Registry) Owns(command string) bool {
	if command == CommandJoin {
		return true
	}
	_, ok := r.handlers[command]
	return ok
}

// Handle runs a local command. Unknown commands are an internal error;
// the router only routes owned commands here.
func (r *Registry) Handle(ctx context.Context, command, channel string, params json.RawMessage) (any, *protocol.CommandError) {
	h, ok := r.handlers[command]
	if !ok {
		return nil, protocol.Errorf(protocol.KindInternal, "no handler for %s", command)
	}
	return h(ctx, channel, params)
}
