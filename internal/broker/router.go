package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/grab/TalkToFigmaDesktop-sub000/internal/localcmd"
	"github.com/grab/TalkToFigmaDesktop-sub000/internal/monitoring"
	"github.com/grab/TalkToFigmaDesktop-sub000/internal/protocol"
)

// router dispatches parsed envelopes. It never rewrites request ids and
// forwards original frames byte-for-byte; only locally-served replies are
// built fresh.
type router struct {
	reg     *channelRegistry
	tracker *requestTracker
	local   *localcmd.Registry
	events  *Events
	logger  zerolog.Logger
	timeout time.Duration
}

func newRouter(reg *channelRegistry, tracker *requestTracker, local *localcmd.Registry, events *Events, logger zerolog.Logger, timeout time.Duration) *router {
	return &router{
		reg:     reg,
		tracker: tracker,
		local:   local,
		events:  events,
		logger:  logger.With().Str("component", "router").Logger(),
		timeout: timeout,
	}
}

func (r *router) dispatch(c *Connection, raw []byte) {
	env, err := protocol.ParseEnvelope(raw)
	if err != nil {
		r.logger.Debug().Err(err).Str("conn", c.id).Msg("unparseable frame")
		c.enqueue(protocol.ErrorEnvelope("", protocol.KindBadRequest, err.Error()))
		return
	}

	switch env.Type {
	case protocol.TypeJoin:
		r.handleJoin(c, env)
	case protocol.TypeMessage:
		r.handleMessage(c, env, raw)
	case protocol.TypeProgress:
		r.handleProgress(c, env, raw)
	case protocol.TypeBroadcast:
		r.handleBroadcast(c, env, raw)
	case protocol.TypeSystem, protocol.TypeError:
		// Diagnostic traffic from clients is logged, never forwarded.
		monitoring.DroppedFrames.WithLabelValues("diagnostic_type").Inc()
		r.logger.Debug().Str("conn", c.id).Str("type", env.Type).Msg("diagnostic frame dropped")
	default:
		monitoring.DroppedFrames.WithLabelValues("unknown_type").Inc()
		r.logger.Warn().Str("conn", c.id).Str("type", env.Type).Msg("unknown message type")
		c.enqueue(protocol.ErrorEnvelope(env.ID, protocol.KindBadRequest,
			fmt.Sprintf("unknown message type: %s", env.Type)))
	}
}

// handleJoin adds the sender to the named channel, acks the sender, and
// notifies existing members. Joining a channel twice re-acks without a
// second notice.
func (r *router) handleJoin(c *Connection, env *protocol.Envelope) {
	if cerr := protocol.ValidateChannel(env.Channel); cerr != nil {
		c.enqueue(protocol.ErrorEnvelope(env.ID, cerr.Kind, cerr.Message))
		return
	}
	c.setClientTypeOnce(env.ClientType)
	r.admit(c, env.Channel, func() { c.enqueue(protocol.JoinAck(env.Channel, env.ID)) })
}

// admit performs the registry mutation shared by the join envelope and the
// join local command; ack delivers the caller-specific acknowledgement.
func (r *router) admit(c *Connection, channel string, ack func()) {
	created, already := r.reg.join(channel, c)
	if created {
		monitoring.ChannelsActive.Set(float64(r.reg.count()))
		r.events.channelCreated(channel)
	}
	ack()
	if already {
		return
	}
	notice := protocol.JoinNotice(channel)
	for _, member := range r.reg.members(channel) {
		if member == c {
			continue
		}
		member.enqueue(notice)
	}
	r.logger.Info().Str("conn", c.id).Str("channel", channel).Str("client_type", c.ClientType()).Msg("joined channel")
}

func (r *router) handleMessage(c *Connection, env *protocol.Envelope, raw []byte) {
	body, kind := env.DecodeBody()
	switch kind {
	case protocol.BodyRequest:
		r.handleRequest(c, env, body, raw)
	case protocol.BodyResponse:
		r.handleResponse(c, env, body, raw)
	case protocol.BodyText:
		r.forwardText(c, env, raw)
	case protocol.BodyNone:
		monitoring.DroppedFrames.WithLabelValues("empty_message").Inc()
		r.logger.Debug().Str("conn", c.id).Msg("message without payload dropped")
	default:
		// Neither request nor response. Forwarding it could re-correlate a
		// client's own echoed request as a reply, so it is dropped.
		monitoring.DroppedFrames.WithLabelValues("ambiguous_body").Inc()
		r.logger.Debug().Str("conn", c.id).Msg("ambiguous message body dropped")
	}
}

func (r *router) handleRequest(c *Connection, env *protocol.Envelope, body *protocol.MessageBody, raw []byte) {
	if body.Command == localcmd.CommandJoin {
		r.joinCommand(c, env, body)
		return
	}
	if r.local.Owns(body.Command) {
		r.serveLocal(c, env, body)
		return
	}
	if cerr := protocol.ValidateChannel(env.Channel); cerr != nil {
		c.enqueue(protocol.LocalError(env.ID, body.ID, cerr))
		return
	}
	if !r.reg.isMember(env.Channel, c) {
		c.enqueue(protocol.LocalError(env.ID, body.ID,
			protocol.Errorf(protocol.KindNotJoined, "join channel %q before sending commands", env.Channel)))
		return
	}
	r.tracker.track(body.ID, body.Command, c.id)
	r.forward(c, env.Channel, env.Type, raw)
}

func (r *router) handleResponse(c *Connection, env *protocol.Envelope, body *protocol.MessageBody, raw []byte) {
	if cerr := protocol.ValidateChannel(env.Channel); cerr != nil {
		c.enqueue(protocol.LocalError(env.ID, body.ID, cerr))
		return
	}
	if !r.reg.isMember(env.Channel, c) {
		c.enqueue(protocol.LocalError(env.ID, body.ID,
			protocol.Errorf(protocol.KindNotJoined, "join channel %q before sending responses", env.Channel)))
		return
	}
	if command, ok := r.tracker.categorize(body.ID, body.Error == nil); ok {
		r.logger.Debug().Str("command", command).Str("request_id", body.ID).
			Bool("success", body.Error == nil).Msg("request settled")
	}
	r.forward(c, env.Channel, env.Type, raw)
}

func (r *router) handleProgress(c *Connection, env *protocol.Envelope, raw []byte) {
	body, _ := env.DecodeBody()
	if body == nil {
		monitoring.DroppedFrames.WithLabelValues("empty_message").Inc()
		r.logger.Debug().Str("conn", c.id).Msg("progress without payload dropped")
		return
	}
	if cerr := protocol.ValidateChannel(env.Channel); cerr != nil {
		c.enqueue(protocol.ErrorEnvelope(env.ID, cerr.Kind, cerr.Message))
		return
	}
	if !r.reg.isMember(env.Channel, c) {
		c.enqueue(protocol.ErrorEnvelope(env.ID, protocol.KindNotJoined,
			fmt.Sprintf("join channel %q before sending progress", env.Channel)))
		return
	}
	if body.ID != "" {
		r.tracker.touch(body.ID)
	}
	r.forward(c, env.Channel, env.Type, raw)
}

// handleBroadcast fans a frame out to the other members of the named
// channel. Same membership rules as message traffic; no correlation
// bookkeeping.
func (r *router) handleBroadcast(c *Connection, env *protocol.Envelope, raw []byte) {
	if cerr := protocol.ValidateChannel(env.Channel); cerr != nil {
		c.enqueue(protocol.ErrorEnvelope(env.ID, cerr.Kind, cerr.Message))
		return
	}
	if !r.reg.isMember(env.Channel, c) {
		c.enqueue(protocol.ErrorEnvelope(env.ID, protocol.KindNotJoined,
			fmt.Sprintf("join channel %q before broadcasting", env.Channel)))
		return
	}
	r.forward(c, env.Channel, env.Type, raw)
}

func (r *router) forwardText(c *Connection, env *protocol.Envelope, raw []byte) {
	if cerr := protocol.ValidateChannel(env.Channel); cerr != nil {
		c.enqueue(protocol.ErrorEnvelope(env.ID, cerr.Kind, cerr.Message))
		return
	}
	if !r.reg.isMember(env.Channel, c) {
		c.enqueue(protocol.ErrorEnvelope(env.ID, protocol.KindNotJoined,
			fmt.Sprintf("join channel %q before sending messages", env.Channel)))
		return
	}
	r.forward(c, env.Channel, env.Type, raw)
}

// forward sends the original frame to every current member of the channel
// except the sender. A channel with no other members forwards to nobody;
// request senders time out normally.
func (r *router) forward(c *Connection, channel, envType string, raw []byte) {
	members := r.reg.members(channel)
	for _, member := range members {
		if member == c {
			continue
		}
		member.enqueue(raw)
	}
	monitoring.MessagesForwarded.WithLabelValues(envType).Inc()
}

// joinCommand serves join issued as a message command. The reply mirrors
// the local-command shape instead of the system ack.
func (r *router) joinCommand(c *Connection, env *protocol.Envelope, body *protocol.MessageBody) {
	var params struct {
		Channel    string `json:"channel"`
		ClientType string `json:"clientType"`
	}
	if len(body.Params) > 0 {
		if err := json.Unmarshal(body.Params, &params); err != nil {
			c.enqueue(protocol.LocalError(env.ID, body.ID,
				protocol.Errorf(protocol.KindBadRequest, "malformed join params: %v", err)))
			return
		}
	}
	if params.Channel == "" {
		params.Channel = env.Channel
	}
	if cerr := protocol.ValidateChannel(params.Channel); cerr != nil {
		c.enqueue(protocol.LocalError(env.ID, body.ID, cerr))
		monitoring.LocalCommands.WithLabelValues(localcmd.CommandJoin, "error").Inc()
		return
	}
	c.setClientTypeOnce(params.ClientType)
	r.admit(c, params.Channel, func() {
		reply, err := protocol.LocalReply(env.ID, body.ID, fmt.Sprintf("Joined channel: %s", params.Channel))
		if err != nil {
			c.enqueue(protocol.LocalError(env.ID, body.ID,
				protocol.Errorf(protocol.KindInternal, "encoding join reply: %v", err)))
			return
		}
		c.enqueue(reply)
	})
	monitoring.LocalCommands.WithLabelValues(localcmd.CommandJoin, "ok").Inc()
}

// serveLocal answers a local command without forwarding. Handlers run off
// the read loop so a slow REST upstream cannot stall the connection; a
// handler panic becomes an internal error response, never a broker crash.
func (r *router) serveLocal(c *Connection, env *protocol.Envelope, body *protocol.MessageBody) {
	go func() {
		status := "ok"
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error().Str("command", body.Command).Interface("panic", p).Msg("local handler panicked")
				c.enqueue(protocol.LocalError(env.ID, body.ID,
					protocol.Errorf(protocol.KindInternal, "handler failure serving %s", body.Command)))
				status = "error"
			}
			monitoring.LocalCommands.WithLabelValues(body.Command, status).Inc()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		result, cerr := r.local.Handle(ctx, body.Command, env.Channel, body.Params)
		if cerr != nil {
			c.enqueue(protocol.LocalError(env.ID, body.ID, cerr))
			status = "error"
			return
		}
		reply, err := protocol.LocalReply(env.ID, body.ID, result)
		if err != nil {
			c.enqueue(protocol.LocalError(env.ID, body.ID,
				protocol.Errorf(protocol.KindInternal, "encoding %s reply: %v", body.Command, err)))
			status = "error"
			return
		}
		c.enqueue(reply)
	}()
}
