package protocol

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of error categories carried in message.error.
// Controllers branch on the kind, not the message text.
type ErrorKind string

const (
	KindBadRequest       ErrorKind = "bad_request"
	KindNotJoined        ErrorKind = "not_joined"
	KindTimeout          ErrorKind = "timeout"
	KindConnectionClosed ErrorKind = "connection_closed"
	KindUnauthenticated  ErrorKind = "unauthenticated"
	KindUpstream         ErrorKind = "upstream"
	KindInternal         ErrorKind = "internal"
	KindShutdown         ErrorKind = "shutdown"
)

// CommandError is the structured error embedded in a response body.
// Status and Excerpt are only set for upstream HTTP failures.
type CommandError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Status  int       `json:"status,omitempty"`
	Excerpt string    `json:"excerpt,omitempty"`
}

func (e *CommandError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Kind, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Errorf builds a CommandError with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *CommandError {
	return &CommandError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// UpstreamError wraps a non-2xx REST response. The excerpt is a bounded
// slice of the response body for diagnostics.
func UpstreamError(status int, excerpt, message string) *CommandError {
	return &CommandError{Kind: KindUpstream, Message: message, Status: status, Excerpt: excerpt}
}

// FromError coerces an error into a CommandError, preserving a typed one
// and wrapping anything else as internal. Nil passes through.
func FromError(err error) *CommandError {
	if err == nil {
		return nil
	}
	var cerr *CommandError
	if errors.As(err, &cerr) {
		return cerr
	}
	return &CommandError{Kind: KindInternal, Message: err.Error()}
}
