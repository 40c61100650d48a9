// Package catalog builds and holds the schema catalog (spec.md §3.2): the
// closed variant set of schema entities — scalar types, object types,
// pointers, aliases, globals, functions, operators, casts, indexes,
// constraints, and collection types — addressed by EntityId rather than
// by Go pointer, so that cyclic-looking schemas (A links to B links back
// to A) never need a back-pointer (spec.md §9).
package catalog

// EntityId addresses one entity in a Snapshot's arena. Zero is never a
// valid id; the arena reserves index 0.
type EntityId int

// Kind discriminates the catalog's closed entity variant set.
type Kind int

const (
	KindScalarType Kind = iota + 1
	KindObjectType
	KindPointer
	KindAlias
	KindGlobal
	KindFunction
	KindOperator
	KindCast
	KindIndex
	KindConstraint
	KindCollectionType
)

func (k Kind) String() string {
	switch k {
	case KindScalarType:
		return "ScalarType"
	case KindObjectType:
		return "ObjectType"
	case KindPointer:
		return "Pointer"
	case KindAlias:
		return "Alias"
	case KindGlobal:
		return "Global"
	case KindFunction:
		return "Function"
	case KindOperator:
		return "Operator"
	case KindCast:
		return "Cast"
	case KindIndex:
		return "Index"
	case KindConstraint:
		return "Constraint"
	case KindCollectionType:
		return "CollectionType"
	default:
		return "Unknown"
	}
}

// Header is the shared envelope embedded by every named entity (spec.md
// §9: "a shared header ... and a variant-specific payload").
type Header struct {
	ID          EntityId
	Module      string
	Name        string
	Annotations map[string]string
}

// QualifiedName is the catalog's addressing key: module "::" short-name
// (spec.md §3.2).
func (h Header) QualifiedName() string {
	if h.Module == "" {
		return h.Name
	}
	return h.Module + "::" + h.Name
}

// Entity is implemented by every arena-held value.
type Entity interface {
	EntityKind() Kind
	Head() Header
}
