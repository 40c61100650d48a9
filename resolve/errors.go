// Package resolve tracks lexical scopes and assigns binding keys to path
// roots while the IR builder walks the AST (spec.md §4.4). It shares a
// mutable scope stack with the `ir` package rather than running as a
// separate pass (spec.md §2.4: "tightly coupled... may be implemented
// as a single traversal"), but is kept in its own package so the
// scoping rules — and their two selectable modes — have one place to
// live and be tested in isolation.
package resolve

import (
	"errors"
	"fmt"

	"github.com/syssam/velox/ast"
)

// ErrorKind enumerates name-resolution failure modes.
type ErrorKind int

const (
	Unknown ErrorKind = iota
	Ambiguous
	NotVisible
	WrongModule
)

func (k ErrorKind) String() string {
	switch k {
	case Unknown:
		return "Unknown"
	case Ambiguous:
		return "Ambiguous"
	case NotVisible:
		return "NotVisible"
	case WrongModule:
		return "WrongModule"
	default:
		return "Unknown"
	}
}

// NameError reports a resolution failure, following the same
// kind-plus-span shape the lexer/parser/catalog error types use.
type NameError struct {
	Kind ErrorKind
	Span ast.Span
	Name string
	Msg  string
}

func (e *NameError) Error() string {
	return fmt.Sprintf("velox/resolve: %s %q: %s", e.Kind, e.Name, e.Msg)
}

// ErrResolve is the sentinel every *NameError matches via errors.Is.
var ErrResolve = errors.New("velox/resolve: name resolution error")

func (e *NameError) Is(target error) bool { return target == ErrResolve }

func newError(kind ErrorKind, span ast.Span, name, format string, args ...any) *NameError {
	return &NameError{Kind: kind, Span: span, Name: name, Msg: fmt.Sprintf(format, args...)}
}
