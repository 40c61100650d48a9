package parser

import (
	"errors"
	"fmt"

	"github.com/syssam/velox/lexer"
)

// ErrorKind identifies the category of a parse failure.
type ErrorKind int

const (
	ParseError ErrorKind = iota
)

func (k ErrorKind) String() string {
	switch k {
	case ParseError:
		return "ParseError"
	default:
		return "UnknownParseError"
	}
}

// SyntaxError is raised on unexpected tokens (spec.md §4.2).
type SyntaxError struct {
	Kind ErrorKind
	Span lexer.Span
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("velox: %s at %d:%d: %s", e.Kind, e.Span.Line, e.Span.Col, e.Msg)
}

// ErrSyntax is the sentinel every *SyntaxError matches via errors.Is.
var ErrSyntax = errors.New("velox: syntax error")

func (e *SyntaxError) Is(target error) bool { return target == ErrSyntax }

func newError(span lexer.Span, format string, args ...any) *SyntaxError {
	return &SyntaxError{Kind: ParseError, Span: span, Msg: fmt.Sprintf(format, args...)}
}
