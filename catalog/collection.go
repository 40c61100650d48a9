package catalog

import (
	"fmt"
	"strings"
)

// CollectionKind discriminates array/tuple/range/multirange collection
// types (spec.md §3.2).
type CollectionKind int

const (
	CollectionArray CollectionKind = iota
	CollectionTuple
	CollectionRange
	CollectionMultirange
)

// CollectionType is a structural type: `array<T>`, `tuple<T0, T1, ...>`
// (optionally named), `range<T>`, `multirange<T>`. Two structurally
// identical references are the same entity (spec.md §3.2 invariant 4) —
// enforced by interning in Builder.intern, keyed by structuralKey.
type CollectionType struct {
	Header
	Kind       CollectionKind
	Elems      []EntityId
	ElemNames  []string // parallel to Elems for CollectionTuple; empty entries for unnamed
}

func (c *CollectionType) EntityKind() Kind { return KindCollectionType }
func (c *CollectionType) Head() Header     { return c.Header }

// structuralKey renders a CollectionType's structural identity as a
// string suitable for map-interning. It intentionally ignores Header.ID
// since two structurally-equal references must collapse to one entity.
func structuralKey(kind CollectionKind, elems []EntityId, names []string) string {
	var b strings.Builder
	switch kind {
	case CollectionArray:
		b.WriteString("array<")
	case CollectionRange:
		b.WriteString("range<")
	case CollectionMultirange:
		b.WriteString("multirange<")
	case CollectionTuple:
		b.WriteString("tuple<")
	}
	for i, e := range elems {
		if i > 0 {
			b.WriteString(",")
		}
		if kind == CollectionTuple && i < len(names) && names[i] != "" {
			fmt.Fprintf(&b, "%s:%d", names[i], e)
		} else {
			fmt.Fprintf(&b, "%d", e)
		}
	}
	b.WriteString(">")
	return b.String()
}
