// Package sqlgen walks typed IR (spec.md §3.3, §4.5) and renders it to
// a SQL query tree using dialect/sql's builder and
// dialect/sql/sqlgraph's edge-traversal step model (spec.md §4.6). It
// performs no type checking of its own: the IR is assumed well-typed,
// and a shape the generator cannot lower is always an internal
// invariant failure, not a user-facing diagnostic.
package sqlgen

import "fmt"

// ICE ("internal compiler error") is the only error kind sqlgen
// raises, following spec.md §4.6 "Failure modes: the generator does
// not type-check ... It fails only on internal invariants (ICE{...})
// or on feature gaps that escape earlier phases."
type ICE struct {
	Reason string
}

func (e *ICE) Error() string { return "sqlgen: internal error: " + e.Reason }

func newICE(format string, args ...any) error {
	return &ICE{Reason: fmt.Sprintf(format, args...)}
}
