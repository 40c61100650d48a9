package ir

import (
	"errors"
	"fmt"

	"github.com/syssam/velox/ast"
)

// TypeErrorKind enumerates the IR builder's type-checking failure modes
// (spec.md §4.5).
type TypeErrorKind int

const (
	NoOverload TypeErrorKind = iota
	Ambiguous
	CastFailed
	IntersectionEmpty
	BadShapeElement
	RequiredNotProvided
)

func (k TypeErrorKind) String() string {
	switch k {
	case NoOverload:
		return "NoOverload"
	case Ambiguous:
		return "Ambiguous"
	case CastFailed:
		return "CastFailed"
	case IntersectionEmpty:
		return "IntersectionEmpty"
	case BadShapeElement:
		return "BadShapeElement"
	case RequiredNotProvided:
		return "RequiredNotProvided"
	default:
		return "Unknown"
	}
}

// TypeError reports a type-checking failure.
type TypeError struct {
	Kind TypeErrorKind
	Span ast.Span
	Msg  string
}

func (e *TypeError) Error() string { return fmt.Sprintf("velox/ir: %s: %s", e.Kind, e.Msg) }

var ErrType = errors.New("velox/ir: type error")

func (e *TypeError) Is(target error) bool { return target == ErrType }

func newTypeError(kind TypeErrorKind, span ast.Span, format string, args ...any) *TypeError {
	return &TypeError{Kind: kind, Span: span, Msg: fmt.Sprintf(format, args...)}
}

// CardinalityErrorKind enumerates cardinality-checking failure modes.
type CardinalityErrorKind int

const (
	ExpectedSingleton CardinalityErrorKind = iota
	UnexpectedEmpty
)

func (k CardinalityErrorKind) String() string {
	switch k {
	case ExpectedSingleton:
		return "ExpectedSingleton"
	case UnexpectedEmpty:
		return "UnexpectedEmpty"
	default:
		return "Unknown"
	}
}

// CardinalityError reports a cardinality-checking failure.
type CardinalityError struct {
	Kind CardinalityErrorKind
	Span ast.Span
	Msg  string
}

func (e *CardinalityError) Error() string {
	return fmt.Sprintf("velox/ir: %s: %s", e.Kind, e.Msg)
}

var ErrCardinality = errors.New("velox/ir: cardinality error")

func (e *CardinalityError) Is(target error) bool { return target == ErrCardinality }

func newCardinalityError(kind CardinalityErrorKind, span ast.Span, format string, args ...any) *CardinalityError {
	return &CardinalityError{Kind: kind, Span: span, Msg: fmt.Sprintf(format, args...)}
}
