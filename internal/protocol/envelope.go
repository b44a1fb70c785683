// Package protocol defines the JSON envelope exchanged between controllers,
// the broker, and executors, together with the error taxonomy carried in
// response bodies. It is the only package that touches raw wire JSON; the
// router forwards original frames untouched.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// Envelope type values.
const (
	TypeJoin      = "join"
	TypeMessage   = "message"
	TypeProgress  = "progress_update"
	TypeBroadcast = "broadcast"
	TypeSystem    = "system"
	TypeError     = "error"
)

// Client roles self-declared on join. Untrusted; diagnostics and metrics
// only, routing never consults them.
const (
	ClientController = "controller"
	ClientExecutor   = "executor"
	ClientUnknown    = "unknown"
)

// MaxFrameBytes bounds a single inbound text frame. Larger frames close the
// connection with a protocol error.
const MaxFrameBytes = 16 << 20

// WelcomeText is sent to every client on accept.
const WelcomeText = "Please join a channel to start chatting"

// JoinNoticeText is broadcast to existing members when a client joins.
const JoinNoticeText = "A new user has joined the channel"

// Envelope is the outer wire object. Message stays raw so that string and
// object payloads both survive and forwarding never re-serializes.
type Envelope struct {
	Type       string          `json:"type"`
	Channel    string          `json:"channel,omitempty"`
	ID         string          `json:"id,omitempty"`
	ClientType string          `json:"clientType,omitempty"`
	Message    json.RawMessage `json:"message,omitempty"`
}

// MessageBody is the nested application payload. Exactly one of the
// request fields (Command/Params), response fields (Result/Error), or
// progress field (Data) is populated on a well-formed body.
type MessageBody struct {
	ID      string          `json:"id,omitempty"`
	Command string          `json:"command,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// BodyKind classifies a decoded message payload for dispatch.
type BodyKind int

const (
	BodyNone      BodyKind = iota // no message field
	BodyText                      // message is a JSON string
	BodyRequest                   // command set, no result/error
	BodyResponse                  // result or error set
	BodyAmbiguous                 // object with neither; dropped by the router
)

// ParseEnvelope decodes a text frame. Unknown top-level keys are ignored
// (forward compatibility); a missing or non-string type is a bad_request.
func ParseEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("envelope missing type")
	}
	return &env, nil
}

// DecodeBody classifies Message and, for objects, decodes it.
// Strings yield BodyText with a nil body; malformed objects yield
// BodyAmbiguous so the router drops them instead of misrouting.
func (e *Envelope) DecodeBody() (*MessageBody, BodyKind) {
	trimmed := bytes.TrimSpace(e.Message)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, BodyNone
	}
	if trimmed[0] == '"' {
		return nil, BodyText
	}
	var body MessageBody
	if err := json.Unmarshal(trimmed, &body); err != nil {
		return nil, BodyAmbiguous
	}
	switch {
	case body.Result != nil || body.Error != nil:
		return &body, BodyResponse
	case body.Command != "":
		return &body, BodyRequest
	default:
		return &body, BodyAmbiguous
	}
}

// Text returns the message payload when it is a plain string.
func (e *Envelope) Text() string {
	var s string
	if err := json.Unmarshal(e.Message, &s); err != nil {
		return ""
	}
	return s
}

// ValidateChannel enforces the channel identity rules: non-empty valid
// UTF-8. Anything else is a bad_request.
func ValidateChannel(name string) *CommandError {
	if name == "" {
		return Errorf(KindBadRequest, "channel name must not be empty")
	}
	if !utf8.ValidString(name) {
		return Errorf(KindBadRequest, "channel name must be valid UTF-8")
	}
	return nil
}

func mustMarshal(v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		// All builder inputs are marshal-safe types; reaching this is a bug.
		panic(fmt.Sprintf("protocol: marshal failed: %v", err))
	}
	return raw
}

type systemEnvelope struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}

// Welcome builds the system message sent on accept.
func Welcome() []byte {
	return mustMarshal(systemEnvelope{Type: TypeSystem, Message: WelcomeText})
}

// JoinAck builds the system acknowledgement sent to a joiner. The envelope
// id of the join is preserved when present so clients can correlate.
func JoinAck(channel, id string) []byte {
	return mustMarshal(systemEnvelope{
		Type:    TypeSystem,
		Channel: channel,
		ID:      id,
		Message: fmt.Sprintf("Joined channel: %s", channel),
	})
}

// JoinNotice builds the system notice broadcast to the other members.
func JoinNotice(channel string) []byte {
	return mustMarshal(systemEnvelope{Type: TypeSystem, Channel: channel, Message: JoinNoticeText})
}

type resultReply struct {
	Type    string     `json:"type"`
	ID      string     `json:"id,omitempty"`
	Message resultBody `json:"message"`
}

type resultBody struct {
	ID     string `json:"id,omitempty"`
	Result any    `json:"result"`
}

type errorReply struct {
	Type    string    `json:"type"`
	ID      string    `json:"id,omitempty"`
	Message errorBody `json:"message"`
}

type errorBody struct {
	ID    string        `json:"id,omitempty"`
	Error *CommandError `json:"error"`
}

// LocalReply shapes a locally-served result exactly like a forwarded remote
// reply so controllers cannot tell the difference.
func LocalReply(envelopeID, requestID string, result any) ([]byte, error) {
	raw, err := json.Marshal(resultReply{
		Type:    TypeMessage,
		ID:      envelopeID,
		Message: resultBody{ID: requestID, Result: result},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding local reply: %w", err)
	}
	return raw, nil
}

// LocalError shapes a locally-served failure as a message.error response.
func LocalError(envelopeID, requestID string, cerr *CommandError) []byte {
	return mustMarshal(errorReply{
		Type:    TypeMessage,
		ID:      envelopeID,
		Message: errorBody{ID: requestID, Error: cerr},
	})
}

type errorEnvelope struct {
	Type    string       `json:"type"`
	ID      string       `json:"id,omitempty"`
	Message errorDetails `json:"message"`
}

type errorDetails struct {
	Error   ErrorKind `json:"error"`
	Message string    `json:"message"`
}

// ErrorEnvelope builds a diagnostic envelope-level error. The id of the
// offending frame is echoed when known so clients can correlate. These are
// never forwarded and never close the connection by themselves.
func ErrorEnvelope(id string, kind ErrorKind, detail string) []byte {
	return mustMarshal(errorEnvelope{Type: TypeError, ID: id, Message: errorDetails{Error: kind, Message: detail}})
}
