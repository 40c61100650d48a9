package lexer

import (
	"errors"
	"fmt"
)

// ErrorKind identifies the category of a lexical failure.
type ErrorKind int

const (
	LexicalError ErrorKind = iota
)

func (k ErrorKind) String() string {
	switch k {
	case LexicalError:
		return "LexicalError"
	default:
		return "UnknownLexError"
	}
}

// SyntaxError is raised by the lexer on unterminated literals, invalid
// escapes, or disallowed characters in identifiers (spec.md §4.1).
type SyntaxError struct {
	Kind ErrorKind
	Span Span
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("velox: %s at %d:%d: %s", e.Kind, e.Span.Line, e.Span.Col, e.Msg)
}

// ErrSyntax is the sentinel every *SyntaxError matches via errors.Is.
var ErrSyntax = errors.New("velox: lexical error")

// Is allows errors.Is(err, ErrSyntax) to succeed against any *SyntaxError.
func (e *SyntaxError) Is(target error) bool {
	return target == ErrSyntax
}

func newError(span Span, format string, args ...any) *SyntaxError {
	return &SyntaxError{Kind: LexicalError, Span: span, Msg: fmt.Sprintf(format, args...)}
}
