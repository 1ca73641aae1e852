package debug

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned when a request is made on a session whose
	// debugger has gone away.
	ErrNotConnected = errors.New("debugger not connected")

	// ErrPoolExhausted indicates every token in the pool is outstanding.
	ErrPoolExhausted = errors.New("token pool exhausted")

	// ErrUnregisteredToken indicates a consuming read of a token with no context.
	ErrUnregisteredToken = errors.New("no context registered for token")

	// ErrDuplicateContext indicates a second context registered for one token.
	ErrDuplicateContext = errors.New("token already has a registered context")

	// ErrTokenNotAllocated indicates use of a token that was never handed out.
	ErrTokenNotAllocated = errors.New("token not allocated")

	// ErrMalformedLocation indicates a breakpoint location without its number
	// or enabled field.
	ErrMalformedLocation = errors.New("breakpoint location lacks number or enabled")

	// ErrCaptureActive is returned when a capture is requested while another
	// one is still collecting output.
	ErrCaptureActive = errors.New("capture already active")

	// ErrMalformedReply reports a tokened reply that failed to parse.
	ErrMalformedReply = errors.New("malformed reply")
)

// ProtocolError is an error result reported by the debugger.
// Request names the kind of the failed request and Command holds its text
// payload; both are empty when no context was registered.
type ProtocolError struct {
	Token   Token
	Request string
	Command string
	Msg     string
	Code    string
}

func (e *ProtocolError) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = "unspecified error"
	}
	if e.Code != "" {
		msg = fmt.Sprintf("%s (code %s)", msg, e.Code)
	}
	if e.Command != "" {
		return fmt.Sprintf("%s: %s", e.Command, msg)
	}
	return msg
}

// InvariantError reports a bookkeeping bug. It is raised with panic and is
// never returned as an ordinary error.
type InvariantError struct {
	Op    string
	Token Token
	Err   error
}

func (e *InvariantError) Error() string {
	if e.Token != NoToken {
		return fmt.Sprintf("invariant violated in %s (token %d): %v", e.Op, e.Token, e.Err)
	}
	return fmt.Sprintf("invariant violated in %s: %v", e.Op, e.Err)
}

func (e *InvariantError) Unwrap() error {
	return e.Err
}

func invariant(op string, t Token, err error) {
	panic(&InvariantError{Op: op, Token: t, Err: err})
}
