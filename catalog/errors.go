package catalog

import (
	"errors"
	"fmt"

	"github.com/syssam/velox/ast"
)

// ErrorKind enumerates the failure modes of the catalog builder (spec.md
// §4.3).
type ErrorKind int

const (
	Cycle ErrorKind = iota
	Duplicate
	InvalidOverride
	UnresolvedReference
	InvalidConstraint
)

func (k ErrorKind) String() string {
	switch k {
	case Cycle:
		return "Cycle"
	case Duplicate:
		return "Duplicate"
	case InvalidOverride:
		return "InvalidOverride"
	case UnresolvedReference:
		return "UnresolvedReference"
	case InvalidConstraint:
		return "InvalidConstraint"
	default:
		return "Unknown"
	}
}

// SchemaError reports a catalog-construction failure, following the
// kind-enum-plus-span shape shared by every phase's error type (errors.go
// at the repo root).
type SchemaError struct {
	Kind ErrorKind
	Span ast.Span
	Name string
	Msg  string
}

func (e *SchemaError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("velox/catalog: %s %q: %s", e.Kind, e.Name, e.Msg)
	}
	return fmt.Sprintf("velox/catalog: %s: %s", e.Kind, e.Msg)
}

// ErrSchema is the sentinel every *SchemaError matches via errors.Is.
var ErrSchema = errors.New("velox/catalog: schema error")

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

func newError(kind ErrorKind, name, format string, args ...any) *SchemaError {
	return &SchemaError{Kind: kind, Name: name, Msg: fmt.Sprintf(format, args...)}
}
