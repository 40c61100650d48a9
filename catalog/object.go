package catalog

import "github.com/syssam/velox/ast"

// Cardinality is a Pointer's declared multiplicity (spec.md §3.2). This
// is the catalog's two-valued declaration cardinality, distinct from the
// four-element inferred lattice the `ir` package computes for
// expressions (spec.md §3.3); a `Many` pointer always contributes `MANY`
// to that lattice, a `One` pointer contributes `ONE` unless `required`
// is false, in which case it weakens to `AT_MOST_ONE`.
type Cardinality int

const (
	CardinalityOne Cardinality = iota
	CardinalityMany
)

// DeleteAction is an on-target-delete / on-source-delete policy.
type DeleteAction int

const (
	Restrict DeleteAction = iota
	DeleteSource
	AllowDelete
	DeferredRestrict
)

// PointerKind discriminates Property (scalar/collection target) from
// Link (object-type target).
type PointerKind int

const (
	PointerProperty PointerKind = iota
	PointerLink
)

// Pointer is a property or link owned by an ObjectType (spec.md §3.2).
// Default/Computed are recorded unbound — the catalog builder defers
// expression binding to the IR builder's scope construction (spec.md
// §4.3 "For each derived pointer ... defer expression binding").
type Pointer struct {
	Header
	Kind           PointerKind
	Owner          EntityId
	Target         EntityId
	Cardinality    Cardinality
	Required       bool
	Readonly       bool
	Default        ast.Expr
	Computed       ast.Expr
	OnTargetDelete DeleteAction
	OnSourceDelete DeleteAction
	LinkProps      map[string]*Pointer // link properties, Link pointers only
	Inherited      []EntityId          // defining pointers this one overrides, nearest first; Builder leaves it empty
}

func (p *Pointer) EntityKind() Kind { return KindPointer }
func (p *Pointer) Head() Header     { return p.Header }

// ObjectType is a named relation with Pointer children (spec.md §3.2). It
// may be abstract and may inherit from multiple bases; MRO is the C3
// linearization of Bases, computed by Builder.linearize.
type ObjectType struct {
	Header
	Abstract    bool
	Bases       []EntityId
	MRO         []EntityId // includes this type's own id, most-derived first
	Pointers    map[string]EntityId
	Indexes     []EntityId
	Constraints []EntityId
	Policy      Policy
	Triggers    []*Trigger
	StorageKey  string // view/table name, pluralized (go-openapi/inflect)
}

func (o *ObjectType) EntityKind() Kind { return KindObjectType }
func (o *ObjectType) Head() Header     { return o.Header }

// OwnPointer reports whether name is declared directly on o (not
// inherited).
func (o *ObjectType) OwnPointer(name string) (EntityId, bool) {
	id, ok := o.Pointers[name]
	return id, ok
}
