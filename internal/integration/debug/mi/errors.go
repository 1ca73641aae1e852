package mi

import (
	"errors"
	"fmt"
)

var (
	// ErrSyntax indicates a line that does not follow the MI output grammar.
	ErrSyntax = errors.New("unparseable protocol line")

	// ErrClosed indicates the transport has been closed.
	ErrClosed = errors.New("transport closed")
)

// SyntaxError describes why a line failed to parse.
type SyntaxError struct {
	Line   string
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s: %q", ErrSyntax, e.Reason, e.Line)
}

// Unwrap returns ErrSyntax for errors.Is support.
func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}

func syntaxError(line, reason string) error {
	return &SyntaxError{Line: line, Reason: reason}
}
